// Package pdf serializes an assembled report document as a PDF.
package pdf

import (
	"bytes"
	"fmt"
	"io"

	"github.com/phpdave11/gofpdf"

	"github.com/lvillar/casebook/report"
)

const (
	fontFamily = "Helvetica"
	fontSize   = 11.0
	lineHeight = fontSize * 0.5

	// Pixel dimensions convert to millimetres at 96 DPI.
	mmPerPixel = 25.4 / 96.0
)

// Write renders doc and writes the PDF to w.
func Write(w io.Writer, doc *report.Document) error {
	if doc == nil {
		return fmt.Errorf("pdf: document is required")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 15)
	pdf.SetTitle(doc.Title, true)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont(fontFamily, "", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(contentWidth(pdf), 8, fmt.Sprintf("Page %d of {nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	})

	pdf.AddPage()
	pdf.SetFont(fontFamily, "", fontSize)

	r := &renderer{pdf: pdf}
	r.title(doc.Title)

	blocks := doc.Blocks
	for i := 0; i < len(blocks); i++ {
		// Consecutive label/value rows render as one field table.
		if run := valueRowRun(blocks[i:]); run > 1 {
			if err := r.fieldTable(blocks[i : i+run]); err != nil {
				return fmt.Errorf("pdf: %w", err)
			}
			i += run - 1
			continue
		}
		if err := r.block(blocks[i]); err != nil {
			return fmt.Errorf("pdf: %w", err)
		}
	}

	if pdf.Err() {
		return fmt.Errorf("pdf: %w", pdf.Error())
	}
	return pdf.Output(w)
}

// valueRowRun counts the leading row blocks that carry a value.
func valueRowRun(blocks []report.Block) int {
	n := 0
	for _, b := range blocks {
		if b.Type != report.BlockRow || b.Value == "" {
			break
		}
		n++
	}
	return n
}

type renderer struct {
	pdf        *gofpdf.Fpdf
	imageCount int
}

func contentWidth(pdf *gofpdf.Fpdf) float64 {
	pageW, _ := pdf.GetPageSize()
	lm, _, rm, _ := pdf.GetMargins()
	return pageW - lm - rm
}

func (r *renderer) title(text string) {
	r.pdf.SetFont(fontFamily, "BU", 14)
	r.pdf.MultiCell(contentWidth(r.pdf), 7, text, "", "L", false)
	r.pdf.Ln(3)
	r.pdf.SetFont(fontFamily, "", fontSize)
}

func (r *renderer) block(b report.Block) error {
	switch b.Type {
	case report.BlockHeading:
		r.heading(b.Text)
	case report.BlockRow:
		r.row(b.Label, b.Value)
	case report.BlockLines:
		for _, line := range b.Lines {
			r.pdf.MultiCell(contentWidth(r.pdf), lineHeight, line, "", "L", false)
		}
		r.pdf.Ln(1)
	case report.BlockBullets:
		r.bullets(b.Items)
	case report.BlockImage:
		if b.Image != nil {
			return r.image(b.Image)
		}
	case report.BlockPageBreak:
		r.pdf.AddPage()
	case report.BlockSpacer:
		r.pdf.Ln(lineHeight)
	default:
		return fmt.Errorf("unknown block type %q", b.Type)
	}
	return nil
}

func (r *renderer) heading(text string) {
	r.pdf.Ln(2)
	r.pdf.SetFont(fontFamily, "BU", fontSize+1)
	r.pdf.MultiCell(contentWidth(r.pdf), lineHeight+1, text, "", "L", false)
	r.pdf.Ln(1)
	r.pdf.SetFont(fontFamily, "", fontSize)
}

func (r *renderer) row(label, value string) {
	r.pdf.SetFont(fontFamily, "U", fontSize)
	r.pdf.CellFormat(r.pdf.GetStringWidth(label+":")+1, lineHeight, label+":", "", 0, "L", false, 0, "")
	r.pdf.SetFont(fontFamily, "", fontSize)
	if value == "" {
		r.pdf.Ln(lineHeight)
		return
	}
	lm, _, _, _ := r.pdf.GetMargins()
	remaining := contentWidth(r.pdf) - (r.pdf.GetX() - lm)
	r.pdf.MultiCell(remaining, lineHeight, " "+value, "", "L", false)
}

func (r *renderer) bullets(items []string) {
	lm, _, _, _ := r.pdf.GetMargins()
	w := contentWidth(r.pdf) - 5
	for _, item := range items {
		r.pdf.SetX(lm + 5)
		r.pdf.MultiCell(w, lineHeight, "- "+item, "", "L", false)
	}
	r.pdf.Ln(1)
}

// image embeds one evidence image from memory, scaled to the page width,
// with its caption beneath. The pair moves to a fresh page as a unit when
// it would not fit.
func (r *renderer) image(img *report.Image) error {
	if len(img.Data) == 0 {
		return fmt.Errorf("image %q has no data", img.Caption)
	}
	r.imageCount++
	name := fmt.Sprintf("evidence-%d", r.imageCount)

	opts := gofpdf.ImageOptions{ImageType: "JPG"}
	r.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(img.Data))
	if r.pdf.Err() {
		return fmt.Errorf("image %q: %w", img.Caption, r.pdf.Error())
	}

	w := float64(img.Width) * mmPerPixel
	h := float64(img.Height) * mmPerPixel
	if maxW := contentWidth(r.pdf); w > maxW {
		h *= maxW / w
		w = maxW
	}

	_, pageH := r.pdf.GetPageSize()
	_, _, _, bm := r.pdf.GetMargins()
	needed := h + lineHeight + 4
	if r.pdf.GetY()+needed > pageH-bm {
		r.pdf.AddPage()
	}

	y := r.pdf.GetY()
	r.pdf.ImageOptions(name, r.pdf.GetX(), y, w, h, false, opts, 0, "")
	r.pdf.SetY(y + h + 1)
	if img.Caption != "" {
		r.pdf.SetFont(fontFamily, "I", fontSize-2)
		r.pdf.MultiCell(contentWidth(r.pdf), lineHeight, img.Caption, "", "L", false)
		r.pdf.SetFont(fontFamily, "", fontSize)
	}
	r.pdf.Ln(2)
	return nil
}
