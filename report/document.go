// Package report assembles collected case data into an intermediate block
// document that the odt and pdf renderers serialize. The assembly is a pure
// transform: identical inputs always produce an identical document.
package report

import (
	"time"
)

// CaseMeta is the title-block information for one case.
type CaseMeta struct {
	CaseNumber        int
	FormattedNumber   string
	SchemaName        string
	SchemaDescription string
	CreatedAt         time.Time
}

// BlockType discriminates document blocks.
type BlockType string

const (
	BlockHeading   BlockType = "heading"   // bold underlined section line
	BlockRow       BlockType = "row"       // underlined label with inline value
	BlockLines     BlockType = "lines"     // plain paragraphs
	BlockBullets   BlockType = "bullets"   // dashed list items
	BlockImage     BlockType = "image"     // embedded image with caption
	BlockPageBreak BlockType = "pageBreak" // hard page break
	BlockSpacer    BlockType = "spacer"    // vertical gap
)

// Block is one visual element of the assembled document. The Type field
// determines which other fields are relevant.
type Block struct {
	Type  BlockType
	Text  string   // heading
	Label string   // row
	Value string   // row
	Lines []string // lines
	Items []string // bullets
	Image *Image   // image
}

// Image is a prepared evidence image ready for embedding.
type Image struct {
	Caption string
	Data    []byte
	Width   int // pixels
	Height  int // pixels
}

// EvidenceImage is an assembler input image, tagged with the image-set
// field it was collected under.
type EvidenceImage struct {
	FieldKey string
	Caption  string
	Data     []byte
	Width    int
	Height   int
}

// Document is the assembled report.
type Document struct {
	Title     string
	Generated time.Time
	Meta      CaseMeta
	Blocks    []Block
}

// Images returns the embedded images in document order.
func (d *Document) Images() []*Image {
	var out []*Image
	for i := range d.Blocks {
		if d.Blocks[i].Type == BlockImage && d.Blocks[i].Image != nil {
			out = append(out, d.Blocks[i].Image)
		}
	}
	return out
}

// Rows returns the label/value rows in document order, for structural
// inspection in tests.
func (d *Document) Rows() map[string]string {
	out := make(map[string]string)
	for _, b := range d.Blocks {
		if b.Type == BlockRow {
			out[b.Label] = b.Value
		}
	}
	return out
}
