package pdf

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
	"time"

	"github.com/lvillar/casebook/report"
	"github.com/lvillar/casebook/schema"
)

func testJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 64, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode test jpeg: %v", err)
	}
	return buf.Bytes()
}

func testDocument(t *testing.T, images []report.EvidenceImage) *report.Document {
	t.Helper()
	sc, _ := schema.Builtin(schema.AdvanceFeeID)
	values := map[string]schema.Value{
		schema.FieldType:    schema.TextValue("Advance-Fee Scam"),
		schema.FieldAlias:   schema.ListValue("John Doe"),
		"emails":            schema.ListValue("a@example.com", "b@example.com"),
		"amount":            schema.MoneyValue("USD", 150000),
		"bank_info":         schema.ListValue("IBAN DE01\nBIC AAA"),
		schema.FieldRemarks: schema.ListValue("first remark", "second remark"),
	}
	doc, err := report.Assemble(&sc, values, images, report.CaseMeta{
		CaseNumber:      12,
		FormattedNumber: "12",
		SchemaName:      sc.Name,
		CreatedAt:       time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	return doc
}

func TestWriteProducesPDF(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, testDocument(t, nil)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("expected non-empty PDF output")
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF")) {
		t.Fatal("output does not start with %PDF header")
	}
}

func TestWriteEmbedsImages(t *testing.T) {
	images := []report.EvidenceImage{
		{FieldKey: "passport_ids", Caption: "passport.jpg", Data: testJPEG(t, 320, 200), Width: 320, Height: 200},
		{FieldKey: "others", Caption: "chat.jpg", Data: testJPEG(t, 200, 320), Width: 200, Height: 320},
	}

	var plain, withImages bytes.Buffer
	if err := Write(&plain, testDocument(t, nil)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := Write(&withImages, testDocument(t, images)); err != nil {
		t.Fatalf("Write with images failed: %v", err)
	}
	if withImages.Len() <= plain.Len() {
		t.Fatalf("image payload missing: %d <= %d bytes", withImages.Len(), plain.Len())
	}
}

func TestWriteRejectsEmptyImageData(t *testing.T) {
	doc := testDocument(t, []report.EvidenceImage{
		{FieldKey: "others", Caption: "missing.jpg", Width: 100, Height: 100},
	})
	var buf bytes.Buffer
	if err := Write(&buf, doc); err == nil {
		t.Fatal("expected an error for an image without data")
	}
}

func TestWriteLargeImageScalesToPage(t *testing.T) {
	// 3000px is wider than an A4 content area at 96 DPI; rendering must
	// not fail, the frame is scaled down instead.
	images := []report.EvidenceImage{
		{FieldKey: "others", Caption: "wide.jpg", Data: testJPEG(t, 1200, 300), Width: 3000, Height: 750},
	}
	var buf bytes.Buffer
	if err := Write(&buf, testDocument(t, images)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF")) {
		t.Fatal("output does not start with %PDF header")
	}
}

func TestValueRowRun(t *testing.T) {
	blocks := []report.Block{
		{Type: report.BlockRow, Label: "A", Value: "1"},
		{Type: report.BlockRow, Label: "B", Value: "2"},
		{Type: report.BlockRow, Label: "C"},
		{Type: report.BlockRow, Label: "D", Value: "4"},
	}
	if got := valueRowRun(blocks); got != 2 {
		t.Fatalf("valueRowRun = %d, want 2", got)
	}
	if got := valueRowRun(blocks[2:]); got != 0 {
		t.Fatalf("valueRowRun at label-only row = %d, want 0", got)
	}
}
