package pdf

import (
	"github.com/lvillar/casebook/report"
)

// Field-table layout: the label column takes the widest label, the value
// column fills the rest.
const (
	cellPadding   = 1.5
	minLabelWidth = 30.0
	maxLabelWidth = 70.0
)

// fieldTable renders a run of label/value rows as a two-column table with
// alternating row fill, splitting across pages row by row.
func (r *renderer) fieldTable(rows []report.Block) error {
	pdf := r.pdf
	total := contentWidth(pdf)

	labelW := minLabelWidth
	for _, row := range rows {
		if w := pdf.GetStringWidth(row.Label) + 2*cellPadding; w > labelW {
			labelW = w
		}
	}
	if labelW > maxLabelWidth {
		labelW = maxLabelWidth
	}
	valueW := total - labelW

	lm, _, _, bm := pdf.GetMargins()
	_, pageH := pdf.GetPageSize()

	for i, row := range rows {
		rowH := r.rowHeight(row, labelW, valueW)
		if pdf.GetY()+rowH > pageH-bm {
			pdf.AddPage()
		}
		y := pdf.GetY()

		if i%2 == 1 {
			pdf.SetFillColor(245, 245, 245)
			pdf.Rect(lm, y, total, rowH, "F")
		}
		pdf.SetDrawColor(200, 200, 200)
		pdf.Rect(lm, y, labelW, rowH, "D")
		pdf.Rect(lm+labelW, y, valueW, rowH, "D")
		pdf.SetDrawColor(0, 0, 0)

		pdf.SetXY(lm+cellPadding, y+cellPadding)
		pdf.SetFont(fontFamily, "B", fontSize)
		pdf.MultiCell(labelW-2*cellPadding, lineHeight, row.Label, "", "L", false)

		pdf.SetXY(lm+labelW+cellPadding, y+cellPadding)
		pdf.SetFont(fontFamily, "", fontSize)
		pdf.MultiCell(valueW-2*cellPadding, lineHeight, row.Value, "", "L", false)

		pdf.SetXY(lm, y+rowH)
	}
	pdf.Ln(2)
	return pdf.Error()
}

// rowHeight measures the taller of the two wrapped cells.
func (r *renderer) rowHeight(row report.Block, labelW, valueW float64) float64 {
	labelLines := len(r.pdf.SplitLines([]byte(row.Label), labelW-2*cellPadding))
	valueLines := len(r.pdf.SplitLines([]byte(row.Value), valueW-2*cellPadding))
	lines := labelLines
	if valueLines > lines {
		lines = valueLines
	}
	if lines < 1 {
		lines = 1
	}
	return float64(lines)*lineHeight + 2*cellPadding
}
