// Package casebook ties the stores, image pipeline, and renderers together
// into the report-building session used by the command and RPC surfaces.
package casebook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/lvillar/casebook/imageprep"
	"github.com/lvillar/casebook/odt"
	"github.com/lvillar/casebook/pdf"
	"github.com/lvillar/casebook/report"
	"github.com/lvillar/casebook/schema"
	"github.com/lvillar/casebook/snapshot"
)

// Output formats.
const (
	FormatODT = "odt"
	FormatPDF = "pdf"
)

// Session operates on one target folder. It owns the folder's case records
// and numbering; the template store is shared across folders.
type Session struct {
	schemas   *schema.Store
	snapshots *snapshot.Store
	numbering *snapshot.Numbering

	log          *zap.Logger
	maxImageDim  int
	numberFormat string
	filenameStem string
	now          func() time.Time
}

// NewSession opens a session over the given target folder.
func NewSession(folder string, schemas *schema.Store, opts ...Option) (*Session, error) {
	if schemas == nil {
		return nil, fmt.Errorf("casebook: template store is required")
	}
	cfg := sessionConfig{
		logger:       zap.NewNop(),
		startNumber:  1,
		maxImageDim:  imageprep.DefaultMaxDimension,
		filenameStem: "Scammer report",
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	store, err := snapshot.NewStore(folder)
	if err != nil {
		return nil, err
	}
	return &Session{
		schemas:      schemas,
		snapshots:    store,
		numbering:    snapshot.NewNumbering(store, cfg.startNumber),
		log:          cfg.logger,
		maxImageDim:  cfg.maxImageDim,
		numberFormat: cfg.numberFormat,
		filenameStem: cfg.filenameStem,
		now:          cfg.now,
	}, nil
}

// Folder returns the session's target folder.
func (s *Session) Folder() string { return s.snapshots.Folder() }

// Schemas returns the shared template store.
func (s *Session) Schemas() *schema.Store { return s.schemas }

// ImageInput is one evidence image in a build request. Crop coordinates are
// in the rotated image's pixel space.
type ImageInput struct {
	SourcePath string          `json:"sourcePath"`
	FieldKey   string          `json:"fieldKey"`
	Caption    string          `json:"caption,omitempty"`
	Crop       *imageprep.Rect `json:"crop,omitempty"`
	Rotation   int             `json:"rotation,omitempty"`
}

// BuildRequest describes one report build. A new case gets the next free
// number; Modify rebuilds an existing case under its original number.
type BuildRequest struct {
	SchemaID     string                  `json:"schemaId"`
	Modify       bool                    `json:"modify,omitempty"`
	CaseNumber   int                     `json:"caseNumber,omitempty"`
	Values       map[string]schema.Value `json:"values"`
	Images       []ImageInput            `json:"images,omitempty"`
	Formats      []string                `json:"formats,omitempty"`
	NumberFormat string                  `json:"numberFormat,omitempty"`
}

// BuildResult reports what a build produced. ImageErrors lists evidence
// images that could not be prepared; the report was still generated without
// them.
type BuildResult struct {
	CaseNumber      int                    `json:"caseNumber"`
	FormattedNumber string                 `json:"formattedNumber"`
	Outputs         []string               `json:"outputs"`
	ImageErrors     []imageprep.BatchError `json:"-"`
}

// BuildReport runs the full pipeline: validate, number, prepare evidence,
// persist the case record, and render the requested document formats into
// the target folder. Nothing is persisted if validation fails or the
// context is already cancelled.
func (s *Session) BuildReport(ctx context.Context, req BuildRequest) (*BuildResult, error) {
	const op = "BuildReport"
	if err := ctx.Err(); err != nil {
		return nil, newOpError(op, err)
	}

	formats, err := normalizeFormats(req.Formats)
	if err != nil {
		return nil, newOpError(op, err)
	}

	var prev *snapshot.Snapshot
	if req.Modify {
		prev, err = s.snapshots.Load(ctx, req.CaseNumber)
		if err != nil {
			return nil, newOpError(op, err)
		}
	}

	sc, err := s.resolveSchema(ctx, req, prev)
	if err != nil {
		return nil, newOpError(op, err)
	}
	values := applyDefaults(sc, req.Values)

	if verr := validateValues(sc, values); verr != nil {
		return nil, newOpError(op, verr)
	}

	number := req.CaseNumber
	if req.Modify {
		if err := s.numbering.Reuse(ctx, number); err != nil {
			return nil, newOpError(op, err)
		}
	} else {
		number, err = s.numbering.Next(ctx)
		if err != nil {
			return nil, newOpError(op, err)
		}
	}

	format, err := s.displayFormat(ctx, req.NumberFormat)
	if err != nil {
		return nil, newOpError(op, err)
	}

	prepared, imageErrs, err := s.prepareImages(ctx, req.Images)
	if err != nil {
		return nil, newOpError(op, err)
	}
	for _, ie := range imageErrs {
		s.log.Warn("evidence image skipped",
			zap.String("path", ie.Path),
			zap.Error(ie.Err))
	}

	snap, evidence, err := s.persistCase(ctx, number, sc, values, req.Images, prepared, prev)
	if err != nil {
		return nil, newOpError(op, err)
	}

	meta := report.CaseMeta{
		CaseNumber:        number,
		FormattedNumber:   snapshot.FormatNumber(number, format),
		SchemaName:        sc.Name,
		SchemaDescription: sc.Description,
		CreatedAt:         snap.CreatedAt,
	}
	doc, err := report.Assemble(sc, values, evidence, meta)
	if err != nil {
		return nil, newOpError(op, err)
	}

	outputs, err := s.renderOutputs(doc, sc, values, meta.FormattedNumber, formats)
	if err != nil {
		return nil, newOpError(op, err)
	}

	if err := s.numbering.Commit(ctx, number, format); err != nil {
		return nil, newOpError(op, err)
	}

	s.log.Info("report built",
		zap.Int("case", number),
		zap.String("schema", sc.ID),
		zap.Int("images", len(evidence)),
		zap.Int("skippedImages", len(imageErrs)),
		zap.Strings("outputs", outputs))

	return &BuildResult{
		CaseNumber:      number,
		FormattedNumber: meta.FormattedNumber,
		Outputs:         outputs,
		ImageErrors:     imageErrs,
	}, nil
}

func normalizeFormats(formats []string) ([]string, error) {
	if len(formats) == 0 {
		return []string{FormatODT}, nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, f := range formats {
		switch f {
		case FormatODT, FormatPDF:
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		default:
			return nil, &ValidationError{Fields: []FieldError{{
				Key:     "formats",
				Message: fmt.Sprintf("unknown output format %q", f),
			}}}
		}
	}
	return out, nil
}

// resolveSchema looks up the request's template. A modified case whose
// template has since been deleted falls back to a freeform schema recovered
// from the stored values, so old cases always stay openable.
func (s *Session) resolveSchema(ctx context.Context, req BuildRequest, prev *snapshot.Snapshot) (*schema.Schema, error) {
	id := req.SchemaID
	if id == "" && prev != nil {
		id = prev.SchemaID
	}
	if id == "" {
		return nil, &ValidationError{Fields: []FieldError{{Key: "schemaId", Message: "required"}}}
	}
	sc, err := s.schemas.Get(ctx, id)
	if errors.Is(err, schema.ErrNotFound) && req.Modify {
		s.log.Warn("template missing, recovering freeform schema",
			zap.String("schema", id),
			zap.Int("case", req.CaseNumber))
		return schema.Freeform(req.Values), nil
	}
	if err != nil {
		return nil, err
	}
	return sc, nil
}

// applyDefaults copies the request values and fills blank fields from the
// schema: declared field defaults first, then the custom template's own
// name and description for the type and summary fields.
func applyDefaults(sc *schema.Schema, in map[string]schema.Value) map[string]schema.Value {
	values := make(map[string]schema.Value, len(in))
	for k, v := range in {
		values[k] = v
	}
	for _, f := range sc.Fields() {
		if f.Default != "" && values[f.Key].IsZero() {
			values[f.Key] = schema.TextValue(f.Default)
		}
	}
	if sc.Custom {
		if _, ok := sc.FieldByKey(schema.FieldType); ok && values[schema.FieldType].IsZero() {
			values[schema.FieldType] = schema.TextValue(sc.Name)
		}
		if _, ok := sc.FieldByKey(schema.FieldSummary); ok && values[schema.FieldSummary].IsZero() && sc.Description != "" {
			values[schema.FieldSummary] = schema.TextValue(sc.Description)
		}
	}
	return values
}

func validateValues(sc *schema.Schema, values map[string]schema.Value) error {
	var fields []FieldError
	for _, f := range sc.Fields() {
		if f.Required && values[f.Key].IsZero() {
			fields = append(fields, FieldError{Key: f.Key, Message: "required"})
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// displayFormat picks the case-number format: the request's, then the
// session default, then the folder's persisted choice.
func (s *Session) displayFormat(ctx context.Context, requested string) (string, error) {
	if requested != "" {
		return requested, nil
	}
	if s.numberFormat != "" {
		return s.numberFormat, nil
	}
	state, err := s.numbering.State(ctx)
	if err != nil {
		return "", err
	}
	return state.Format, nil
}

func (s *Session) prepareImages(ctx context.Context, images []ImageInput) ([]*imageprep.Prepared, []imageprep.BatchError, error) {
	if len(images) == 0 {
		return nil, nil, nil
	}
	inputs := make([]imageprep.Input, len(images))
	for i, img := range images {
		inputs[i] = imageprep.Input{
			Path: img.SourcePath,
			Options: imageprep.Options{
				Rotation:     img.Rotation,
				Crop:         img.Crop,
				MaxDimension: s.maxImageDim,
			},
		}
	}
	return imageprep.PrepareAll(ctx, inputs)
}

// persistCase copies the prepared evidence into the data area and writes
// the case record. Failed images are left out of both. The new evidence is
// staged and only swapped over the previous set after the record is saved,
// so a failure or cancellation partway through never loses the old images.
func (s *Session) persistCase(ctx context.Context, number int, sc *schema.Schema, values map[string]schema.Value, images []ImageInput, prepared []*imageprep.Prepared, prev *snapshot.Snapshot) (*snapshot.Snapshot, []report.EvidenceImage, error) {
	var blobs [][]byte
	var kept []int
	for i, p := range prepared {
		if p == nil {
			continue
		}
		blobs = append(blobs, p.Data)
		kept = append(kept, i)
	}
	stage, err := s.snapshots.StageEvidence(ctx, number, blobs)
	if err != nil {
		return nil, nil, err
	}
	rel := stage.Paths()

	now := s.now()
	snap := &snapshot.Snapshot{
		CaseNumber: number,
		SchemaID:   sc.ID,
		Values:     values,
		CreatedAt:  now,
		ModifiedAt: now,
	}
	if prev != nil && !prev.CreatedAt.IsZero() {
		snap.CreatedAt = prev.CreatedAt
	}

	evidence := make([]report.EvidenceImage, 0, len(kept))
	for j, i := range kept {
		in := images[i]
		p := prepared[i]
		caption := in.Caption
		if caption == "" {
			caption = filepath.Base(in.SourcePath)
		}
		ref := snapshot.ImageRef{
			RelativePath: rel[j],
			SourcePath:   in.SourcePath,
			FieldKey:     in.FieldKey,
			Caption:      caption,
			Rotation:     in.Rotation,
		}
		if in.Crop != nil {
			ref.Crop = &snapshot.CropRegion{X: in.Crop.X, Y: in.Crop.Y, W: in.Crop.W, H: in.Crop.H}
		}
		snap.Images = append(snap.Images, ref)
		evidence = append(evidence, report.EvidenceImage{
			FieldKey: in.FieldKey,
			Caption:  caption,
			Data:     p.Data,
			Width:    p.Width,
			Height:   p.Height,
		})
	}

	if err := s.snapshots.Save(ctx, snap); err != nil {
		stage.Discard()
		return nil, nil, err
	}
	if err := stage.Commit(); err != nil {
		return nil, nil, err
	}
	return snap, evidence, nil
}

// renderOutputs writes each requested document into the target folder with
// temp-then-rename visibility.
func (s *Session) renderOutputs(doc *report.Document, sc *schema.Schema, values map[string]schema.Value, formattedNumber string, formats []string) ([]string, error) {
	name := report.MainName(sc, values)
	outputs := make([]string, 0, len(formats))
	for _, format := range formats {
		var buf bytes.Buffer
		var err error
		switch format {
		case FormatODT:
			err = odt.Write(&buf, doc)
		case FormatPDF:
			err = pdf.Write(&buf, doc)
		}
		if err != nil {
			return nil, err
		}
		filename := snapshot.ReportFilename(formattedNumber, s.filenameStem, name, format)
		path := filepath.Join(s.snapshots.Folder(), filename)
		if err := writeFileAtomic(path, buf.Bytes()); err != nil {
			return nil, err
		}
		outputs = append(outputs, path)
	}
	return outputs, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("casebook: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("casebook: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("casebook: close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("casebook: replace %s: %w", path, err)
	}
	return nil
}

// CaseSummary is a folder listing entry.
type CaseSummary struct {
	CaseNumber int       `json:"caseNumber"`
	SchemaID   string    `json:"schemaId"`
	Name       string    `json:"name"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

// ListCases returns a summary for every case record in the folder.
func (s *Session) ListCases(ctx context.Context) ([]CaseSummary, error) {
	const op = "ListCases"
	numbers, err := s.snapshots.ListCaseNumbers(ctx)
	if err != nil {
		return nil, newOpError(op, err)
	}
	out := make([]CaseSummary, 0, len(numbers))
	for _, n := range numbers {
		snap, err := s.snapshots.Load(ctx, n)
		if err != nil {
			return nil, newOpError(op, err)
		}
		sum := CaseSummary{
			CaseNumber: n,
			SchemaID:   snap.SchemaID,
			ModifiedAt: snap.ModifiedAt,
		}
		if sc, _, err := s.caseSchema(ctx, snap); err == nil {
			sum.Name = report.MainName(sc, snap.Values)
		}
		out = append(out, sum)
	}
	return out, nil
}

// LoadCase returns a stored case record together with its resolved schema.
// The schema falls back to a freeform recovery when the original template
// no longer exists.
func (s *Session) LoadCase(ctx context.Context, caseNumber int) (*snapshot.Snapshot, *schema.Schema, error) {
	const op = "LoadCase"
	snap, err := s.snapshots.Load(ctx, caseNumber)
	if err != nil {
		return nil, nil, newOpError(op, err)
	}
	sc, recovered, err := s.caseSchema(ctx, snap)
	if err != nil {
		return nil, nil, newOpError(op, err)
	}
	if recovered {
		s.log.Warn("template missing, recovering freeform schema",
			zap.String("schema", snap.SchemaID),
			zap.Int("case", caseNumber))
	}
	return snap, sc, nil
}

func (s *Session) caseSchema(ctx context.Context, snap *snapshot.Snapshot) (*schema.Schema, bool, error) {
	if snap.SchemaID != "" {
		sc, err := s.schemas.Get(ctx, snap.SchemaID)
		if err == nil {
			return sc, false, nil
		}
		if !errors.Is(err, schema.ErrNotFound) {
			return nil, false, err
		}
	}
	return schema.Freeform(snap.Values), true, nil
}
