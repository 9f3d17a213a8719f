// Package odt serializes an assembled report document as an OpenDocument
// Text file. The output is a plain ODF 1.3 package: a zip whose first entry
// is the uncompressed mimetype, followed by content, styles, meta, the
// manifest, and the embedded evidence images.
package odt

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/lvillar/casebook/report"
)

const Mimetype = "application/vnd.oasis.opendocument.text"

// maxImageWidthIn caps embedded images at six inches; pixel sizes convert
// at 96 DPI.
const (
	maxImageWidthIn = 6.0
	imageDPI        = 96.0
)

// Write serializes doc as a complete ODT package.
func Write(w io.Writer, doc *report.Document) error {
	if doc == nil {
		return fmt.Errorf("odt: document is required")
	}
	images := doc.Images()

	zw := zip.NewWriter(w)

	// The mimetype entry must come first and must be stored uncompressed,
	// so readers can sniff the format from the raw bytes.
	mw, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		return fmt.Errorf("odt: write mimetype: %w", err)
	}
	if _, err := mw.Write([]byte(Mimetype)); err != nil {
		return fmt.Errorf("odt: write mimetype: %w", err)
	}

	entries := []struct {
		name string
		data []byte
	}{
		{"content.xml", contentXML(doc, images)},
		{"styles.xml", []byte(stylesXML)},
		{"meta.xml", metaXML(doc)},
		{"META-INF/manifest.xml", manifestXML(len(images))},
	}
	for _, e := range entries {
		ew, err := zw.Create(e.name)
		if err != nil {
			return fmt.Errorf("odt: write %s: %w", e.name, err)
		}
		if _, err := ew.Write(e.data); err != nil {
			return fmt.Errorf("odt: write %s: %w", e.name, err)
		}
	}

	for i, img := range images {
		name := pictureName(i + 1)
		iw, err := zw.Create(name)
		if err != nil {
			return fmt.Errorf("odt: write %s: %w", name, err)
		}
		if _, err := iw.Write(img.Data); err != nil {
			return fmt.Errorf("odt: write %s: %w", name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("odt: finalize package: %w", err)
	}
	return nil
}

func pictureName(index int) string {
	return fmt.Sprintf("Pictures/image_%d.jpg", index)
}

func manifestXML(imageCount int) []byte {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<manifest:manifest xmlns:manifest="urn:oasis:names:tc:opendocument:xmlns:manifest:1.0">
  <manifest:file-entry manifest:full-path="/" manifest:media-type="` + Mimetype + `"/>
  <manifest:file-entry manifest:full-path="content.xml" manifest:media-type="text/xml"/>
  <manifest:file-entry manifest:full-path="styles.xml" manifest:media-type="text/xml"/>
  <manifest:file-entry manifest:full-path="meta.xml" manifest:media-type="text/xml"/>`)
	for i := 1; i <= imageCount; i++ {
		fmt.Fprintf(&b, "\n  <manifest:file-entry manifest:full-path=\"Pictures/image_%d.jpg\" manifest:media-type=\"image/jpeg\"/>", i)
	}
	b.WriteString("\n</manifest:manifest>\n")
	return []byte(b.String())
}

const stylesXML = `<?xml version="1.0" encoding="UTF-8"?>
<office:document-styles xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0"
  xmlns:style="urn:oasis:names:tc:opendocument:xmlns:style:1.0"
  xmlns:text="urn:oasis:names:tc:opendocument:xmlns:text:1.0"
  xmlns:fo="urn:oasis:names:tc:opendocument:xmlns:xsl-fo-compatible:1.0"
  office:version="1.3">
  <office:styles>
    <style:style style:name="Standard" style:family="paragraph">
      <style:text-properties fo:font-size="12pt" fo:font-family="Liberation Serif"/>
    </style:style>
    <style:style style:name="Graphics" style:family="graphic">
      <style:graphic-properties text:anchor-type="paragraph"
        style:horizontal-pos="center" style:horizontal-rel="paragraph"/>
    </style:style>
  </office:styles>
</office:document-styles>
`

func metaXML(doc *report.Document) []byte {
	// Timestamps come from the document so repeated renders of the same
	// case produce identical packages.
	stamp := doc.Generated.Format("2006-01-02T15:04:05")
	return []byte(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<office:document-meta xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0"
  xmlns:meta="urn:oasis:names:tc:opendocument:xmlns:meta:1.0"
  xmlns:dc="http://purl.org/dc/elements/1.1/"
  office:version="1.3">
  <office:meta>
    <meta:generator>casebook</meta:generator>
    <dc:creator>casebook</dc:creator>
    <dc:date>%s</dc:date>
    <meta:creation-date>%s</meta:creation-date>
  </office:meta>
</office:document-meta>
`, stamp, stamp))
}

const contentHeader = `<?xml version="1.0" encoding="UTF-8"?>
<office:document-content xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0"
  xmlns:style="urn:oasis:names:tc:opendocument:xmlns:style:1.0"
  xmlns:text="urn:oasis:names:tc:opendocument:xmlns:text:1.0"
  xmlns:draw="urn:oasis:names:tc:opendocument:xmlns:drawing:1.0"
  xmlns:fo="urn:oasis:names:tc:opendocument:xmlns:xsl-fo-compatible:1.0"
  xmlns:xlink="http://www.w3.org/1999/xlink"
  xmlns:svg="urn:oasis:names:tc:opendocument:xmlns:svg-compatible:1.0"
  office:version="1.3">
  <office:scripts/>
  <office:font-face-decls>
    <style:font-face style:name="Liberation Serif" svg:font-family="&apos;Liberation Serif&apos;" style:font-family-generic="roman" style:font-pitch="variable"/>
  </office:font-face-decls>
  <office:automatic-styles>
    <style:style style:name="T1Underline" style:family="text">
      <style:text-properties fo:font-size="12pt" fo:font-family="Liberation Serif" style:font-name="Liberation Serif" style:text-underline-style="solid" style:text-underline-width="auto" style:text-underline-color="font-color"/>
    </style:style>
    <style:style style:name="P1" style:family="paragraph">
      <style:paragraph-properties fo:margin-top="0in" fo:margin-bottom="0.1in"/>
      <style:text-properties fo:font-size="12pt" fo:font-family="Liberation Serif" style:font-name="Liberation Serif"/>
    </style:style>
    <style:style style:name="P1BoldUnderline" style:family="paragraph">
      <style:paragraph-properties fo:margin-top="0in" fo:margin-bottom="0.1in"/>
      <style:text-properties fo:font-size="12pt" fo:font-family="Liberation Serif" style:font-name="Liberation Serif" fo:font-weight="bold" style:text-underline-style="solid" style:text-underline-width="auto" style:text-underline-color="font-color"/>
    </style:style>
    <style:style style:name="ListBullet" style:family="paragraph">
      <style:paragraph-properties fo:margin-top="0in" fo:margin-bottom="0in" fo:margin-left="0.2in" fo:text-indent="0in" style:auto-text-indent="false"/>
      <style:text-properties fo:font-size="12pt" fo:font-family="Liberation Serif" style:font-name="Liberation Serif"/>
    </style:style>
    <style:style style:name="PageBreak" style:family="paragraph">
      <style:paragraph-properties fo:break-before="page"/>
      <style:text-properties fo:font-size="12pt" fo:font-family="Liberation Serif" style:font-name="Liberation Serif"/>
    </style:style>
    <style:style style:name="fr1" style:family="graphic">
      <style:graphic-properties style:horizontal-pos="center" style:horizontal-rel="paragraph"/>
    </style:style>
  </office:automatic-styles>
  <office:body>
    <office:text>
      <text:sequence-decls>
        <text:sequence-decl text:display-outline-level="0" text:name="Illustration"/>
      </text:sequence-decls>
`

const contentFooter = `    </office:text>
  </office:body>
</office:document-content>
`

func contentXML(doc *report.Document, images []*report.Image) []byte {
	var b strings.Builder
	b.WriteString(contentHeader)

	para(&b, "P1BoldUnderline", esc(doc.Title))

	index := make(map[*report.Image]int, len(images))
	for i, img := range images {
		index[img] = i + 1
	}

	for _, block := range doc.Blocks {
		switch block.Type {
		case report.BlockHeading:
			para(&b, "P1BoldUnderline", esc(block.Text))
		case report.BlockRow:
			body := fmt.Sprintf(`<text:span text:style-name="T1Underline">%s:</text:span>`, esc(block.Label))
			if block.Value != "" {
				body += " " + esc(block.Value)
			}
			para(&b, "P1", body)
		case report.BlockLines:
			for _, line := range block.Lines {
				para(&b, "P1", esc(line))
			}
		case report.BlockBullets:
			for _, item := range block.Items {
				para(&b, "ListBullet", "- "+esc(item))
			}
		case report.BlockImage:
			if block.Image != nil {
				imagePara(&b, block.Image, index[block.Image])
			}
		case report.BlockPageBreak:
			para(&b, "PageBreak", "")
		case report.BlockSpacer:
			para(&b, "P1", "")
		}
	}

	b.WriteString(contentFooter)
	return []byte(b.String())
}

func para(b *strings.Builder, style, body string) {
	if body == "" {
		fmt.Fprintf(b, "      <text:p text:style-name=%q/>\n", style)
		return
	}
	fmt.Fprintf(b, "      <text:p text:style-name=%q>%s</text:p>\n", style, body)
}

func imagePara(b *strings.Builder, img *report.Image, index int) {
	w, h := frameSize(img.Width, img.Height)
	fmt.Fprintf(b, `      <text:p text:style-name="P1">
        <draw:frame draw:style-name="fr1" draw:name="Image%d" text:anchor-type="as-char" svg:width="%s" svg:height="%s" draw:z-index="0">
          <draw:image xlink:href="Pictures/image_%d.jpg" xlink:type="simple" xlink:show="embed" xlink:actuate="onLoad"/>
          <svg:desc>%s</svg:desc>
        </draw:frame>
      </text:p>
`, index, w, h, index, esc(img.Caption))
}

// frameSize converts pixel dimensions to inch frame sizes, scaling down to
// the page width cap while keeping the aspect ratio.
func frameSize(widthPx, heightPx int) (string, string) {
	if widthPx <= 0 || heightPx <= 0 {
		return "4.00in", "3.00in"
	}
	w := float64(widthPx) / imageDPI
	h := float64(heightPx) / imageDPI
	if w > maxImageWidthIn {
		h *= maxImageWidthIn / w
		w = maxImageWidthIn
	}
	return fmt.Sprintf("%.2fin", w), fmt.Sprintf("%.2fin", h)
}

func esc(s string) string {
	var buf bytes.Buffer
	if err := xml.EscapeText(&buf, []byte(s)); err != nil {
		return s
	}
	return buf.String()
}
