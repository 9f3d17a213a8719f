package odt

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/lvillar/casebook/report"
	"github.com/lvillar/casebook/schema"
)

func testDocument(t *testing.T, images []report.EvidenceImage) *report.Document {
	t.Helper()
	sc, _ := schema.Builtin(schema.AdvanceFeeID)
	values := map[string]schema.Value{
		schema.FieldType:    schema.TextValue("Advance-Fee Scam"),
		schema.FieldAlias:   schema.ListValue("John <Doe>"),
		"emails":            schema.ListValue("a@example.com"),
		schema.FieldRemarks: schema.ListValue("uses & abuses escrow"),
	}
	doc, err := report.Assemble(&sc, values, images, report.CaseMeta{
		CaseNumber:      7,
		FormattedNumber: "7",
		SchemaName:      sc.Name,
		CreatedAt:       time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	return doc
}

func renderZip(t *testing.T, doc *report.Document) *zip.Reader {
	t.Helper()
	var buf bytes.Buffer
	if err := Write(&buf, doc); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("output is not a zip: %v", err)
	}
	return zr
}

func readEntry(t *testing.T, zr *zip.Reader, name string) string {
	t.Helper()
	for _, f := range zr.File {
		if f.Name == name {
			rc, err := f.Open()
			if err != nil {
				t.Fatalf("open %s: %v", name, err)
			}
			defer rc.Close()
			data, err := io.ReadAll(rc)
			if err != nil {
				t.Fatalf("read %s: %v", name, err)
			}
			return string(data)
		}
	}
	t.Fatalf("entry %s missing from package", name)
	return ""
}

func TestWriteMimetypeFirstAndStored(t *testing.T) {
	zr := renderZip(t, testDocument(t, nil))
	if len(zr.File) == 0 {
		t.Fatal("empty package")
	}
	first := zr.File[0]
	if first.Name != "mimetype" {
		t.Fatalf("first entry is %q, want mimetype", first.Name)
	}
	if first.Method != zip.Store {
		t.Fatal("mimetype entry must be stored uncompressed")
	}
	if got := readEntry(t, zr, "mimetype"); got != Mimetype {
		t.Fatalf("mimetype = %q", got)
	}
}

func TestWritePackageEntries(t *testing.T) {
	zr := renderZip(t, testDocument(t, nil))
	for _, name := range []string{"content.xml", "styles.xml", "meta.xml", "META-INF/manifest.xml"} {
		readEntry(t, zr, name)
	}
}

func TestWriteContentRowsAndEscaping(t *testing.T) {
	zr := renderZip(t, testDocument(t, nil))
	content := readEntry(t, zr, "content.xml")

	if !strings.Contains(content, `Report for Advance-Fee Scam scammer &#34;John &lt;Doe&gt;&#34;`) {
		t.Fatalf("title missing or unescaped:\n%s", content)
	}
	if !strings.Contains(content, `<text:span text:style-name="T1Underline">Scammers aliase(s):</text:span> John &lt;Doe&gt;`) {
		t.Fatal("alias row missing")
	}
	if !strings.Contains(content, `>Email(s):</text:span> a@example.com`) {
		t.Fatal("email row missing")
	}
	if strings.Contains(content, "Website(s):") {
		t.Fatal("empty optional field rendered")
	}
	if !strings.Contains(content, `<text:p text:style-name="ListBullet">- uses &amp; abuses escrow</text:p>`) {
		t.Fatal("remark bullet missing or unescaped")
	}
}

func TestWriteEmbedsImages(t *testing.T) {
	images := []report.EvidenceImage{
		{FieldKey: "passport_ids", Caption: "passport.png", Data: []byte{0xFF, 0xD8, 1}, Width: 960, Height: 480},
		{FieldKey: "others", Caption: "chat.png", Data: []byte{0xFF, 0xD8, 2}, Width: 1200, Height: 600},
	}
	zr := renderZip(t, testDocument(t, images))

	if got := readEntry(t, zr, "Pictures/image_1.jpg"); got != string([]byte{0xFF, 0xD8, 1}) {
		t.Fatal("first image payload does not match")
	}
	readEntry(t, zr, "Pictures/image_2.jpg")

	manifest := readEntry(t, zr, "META-INF/manifest.xml")
	for _, want := range []string{"Pictures/image_1.jpg", "Pictures/image_2.jpg"} {
		if !strings.Contains(manifest, want) {
			t.Fatalf("manifest missing %s", want)
		}
	}

	content := readEntry(t, zr, "content.xml")
	if !strings.Contains(content, `xlink:href="Pictures/image_1.jpg"`) {
		t.Fatal("content does not reference first image")
	}
	// 960px at 96 DPI is 10in, capped to the 6in page width.
	if !strings.Contains(content, `svg:width="6.00in" svg:height="3.00in"`) {
		t.Fatalf("image frame not capped:\n%s", content)
	}
	if !strings.Contains(content, `<text:p text:style-name="PageBreak"/>`) {
		t.Fatal("missing page break before evidence")
	}
}

func TestWriteDeterministic(t *testing.T) {
	doc := testDocument(t, []report.EvidenceImage{
		{FieldKey: "others", Caption: "x", Data: []byte{1, 2, 3}, Width: 10, Height: 10},
	})
	var a, b bytes.Buffer
	if err := Write(&a, doc); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := Write(&b, doc); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Fatal("identical documents produced different packages")
	}
}

func TestFrameSize(t *testing.T) {
	cases := []struct {
		w, h         int
		wantW, wantH string
	}{
		{96, 96, "1.00in", "1.00in"},
		{960, 480, "6.00in", "3.00in"},
		{192, 384, "2.00in", "4.00in"},
		{0, 0, "4.00in", "3.00in"},
	}
	for _, c := range cases {
		gotW, gotH := frameSize(c.w, c.h)
		if gotW != c.wantW || gotH != c.wantH {
			t.Fatalf("frameSize(%d, %d) = %s x %s, want %s x %s", c.w, c.h, gotW, gotH, c.wantW, c.wantH)
		}
	}
}
