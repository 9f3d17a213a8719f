package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// DataDirName is the hidden per-folder data area holding case records and
// copied evidence.
const DataDirName = ".report_data"

const evidenceDirName = "evidence"

// Store reads and writes case records for one target folder.
type Store struct {
	folder  string
	dataDir string
}

// NewStore returns a store rooted at the given target folder. The folder
// must exist; the data area is created on first write.
func NewStore(folder string) (*Store, error) {
	if strings.TrimSpace(folder) == "" {
		return nil, fmt.Errorf("snapshot: target folder is required")
	}
	folder = filepath.Clean(folder)
	info, err := os.Stat(folder)
	if err != nil {
		return nil, fmt.Errorf("snapshot: target folder: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("snapshot: %q is not a directory", folder)
	}
	return &Store{folder: folder, dataDir: filepath.Join(folder, DataDirName)}, nil
}

// Folder returns the target folder this store is scoped to.
func (s *Store) Folder() string { return s.folder }

// DataDir returns the hidden data area path.
func (s *Store) DataDir() string { return s.dataDir }

func (s *Store) casePath(n int) string {
	return filepath.Join(s.dataDir, fmt.Sprintf("case_%04d.json", n))
}

// Save writes the record for snap.CaseNumber, replacing any previous one.
// The write goes to a temporary file first and is renamed into place, so a
// crash mid-write cannot corrupt an existing record.
func (s *Store) Save(ctx context.Context, snap *Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if snap == nil || snap.CaseNumber <= 0 {
		return fmt.Errorf("snapshot: case number must be positive")
	}
	if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
		return fmt.Errorf("snapshot: create data dir: %w", err)
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("snapshot: encode case %d: %w", snap.CaseNumber, err)
	}
	return atomicWrite(s.casePath(snap.CaseNumber), data)
}

// Load returns the record for the given case number.
func (s *Store) Load(ctx context.Context, caseNumber int) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.casePath(caseNumber))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: case %d in %s", ErrNotFound, caseNumber, s.folder)
		}
		return nil, fmt.Errorf("snapshot: read case %d: %w", caseNumber, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("snapshot: decode case %d: %w", caseNumber, err)
	}
	if snap.CaseNumber == 0 {
		snap.CaseNumber = caseNumber
	}
	return &snap, nil
}

// ListCaseNumbers returns the case numbers present in the folder, ascending.
// This is the scan the numbering service derives its state from.
func (s *Store) ListCaseNumbers(ctx context.Context) ([]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("snapshot: scan data dir: %w", err)
	}
	var numbers []int
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, "case_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "case_"), ".json"))
		if err != nil || n <= 0 {
			continue
		}
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	return numbers, nil
}

// EvidenceDir returns the per-case evidence directory.
func (s *Store) EvidenceDir(caseNumber int) string {
	return filepath.Join(s.dataDir, evidenceDirName, fmt.Sprintf("case_%04d", caseNumber))
}

// EvidenceStage is a prepared evidence replacement for one case. The new
// images sit in a staging directory until Commit swaps them in; until then
// the case's existing evidence is untouched, so a cancelled or failed
// replacement cannot destroy prior state.
type EvidenceStage struct {
	store      *Store
	caseNumber int
	dir        string // staging dir; empty when the stage holds no images
	paths      []string
}

// StageEvidence writes the replacement image set for a case into a staging
// directory, numbered in order. Nothing visible changes until Commit;
// Discard drops the staged files. Cancellation mid-batch discards the
// partial stage and returns the context error.
func (s *Store) StageEvidence(ctx context.Context, caseNumber int, images [][]byte) (*EvidenceStage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	st := &EvidenceStage{store: s, caseNumber: caseNumber}
	if len(images) == 0 {
		return st, nil
	}
	parent := filepath.Join(s.dataDir, evidenceDirName)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, fmt.Errorf("snapshot: create evidence dir: %w", err)
	}
	dir, err := os.MkdirTemp(parent, fmt.Sprintf(".case_%04d.stage*", caseNumber))
	if err != nil {
		return nil, fmt.Errorf("snapshot: create staging dir: %w", err)
	}
	st.dir = dir
	for i, data := range images {
		if err := ctx.Err(); err != nil {
			st.Discard()
			return nil, err
		}
		name := fmt.Sprintf("image_%02d.jpg", i+1)
		if err := atomicWrite(filepath.Join(dir, name), data); err != nil {
			st.Discard()
			return nil, err
		}
		st.paths = append(st.paths, filepath.ToSlash(filepath.Join(evidenceDirName, fmt.Sprintf("case_%04d", caseNumber), name)))
	}
	return st, nil
}

// Paths returns the data-area-relative paths the staged images will have
// once committed, for storage in ImageRef.RelativePath.
func (st *EvidenceStage) Paths() []string { return st.paths }

// Commit swaps the staged set into place: the previous evidence directory
// is moved aside, the stage renamed in, and the old set deleted last. An
// empty stage commits as a plain clear of the case's evidence.
func (st *EvidenceStage) Commit() error {
	final := st.store.EvidenceDir(st.caseNumber)
	old := final + ".old"
	_ = os.RemoveAll(old)
	hadOld := false
	if _, err := os.Stat(final); err == nil {
		if err := os.Rename(final, old); err != nil {
			return fmt.Errorf("snapshot: set aside old evidence: %w", err)
		}
		hadOld = true
	}
	if st.dir != "" {
		if err := os.Rename(st.dir, final); err != nil {
			if hadOld {
				_ = os.Rename(old, final)
			}
			return fmt.Errorf("snapshot: install evidence: %w", err)
		}
		st.dir = ""
	}
	if err := os.RemoveAll(old); err != nil {
		return fmt.Errorf("snapshot: remove old evidence: %w", err)
	}
	return nil
}

// Discard removes the staged files. Safe to call after Commit.
func (st *EvidenceStage) Discard() {
	if st.dir != "" {
		_ = os.RemoveAll(st.dir)
		st.dir = ""
	}
}

// ReadEvidence loads the copied bytes for one image reference.
func (s *Store) ReadEvidence(ref ImageRef) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.dataDir, filepath.FromSlash(ref.RelativePath)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: evidence %s", ErrNotFound, ref.RelativePath)
		}
		return nil, fmt.Errorf("snapshot: read evidence: %w", err)
	}
	return data, nil
}

// atomicWrite writes data to path with temp-file-then-rename visibility.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("snapshot: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("snapshot: write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("snapshot: sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("snapshot: close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("snapshot: replace %s: %w", path, err)
	}
	return nil
}
