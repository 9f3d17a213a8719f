package report

import (
	"fmt"
	"strings"

	"github.com/lvillar/casebook/schema"
)

// Assemble builds the report document for one case. Fields are rendered in
// schema order with one rule per field kind; empty optional fields produce
// no output at all, never a blank row. Evidence images keep their input
// order, grouped under the image-set field they belong to, with a page
// break before the evidence section and between groups.
func Assemble(sc *schema.Schema, values map[string]schema.Value, images []EvidenceImage, meta CaseMeta) (*Document, error) {
	if sc == nil {
		return nil, fmt.Errorf("report: schema is required")
	}

	doc := &Document{
		Title:     titleLine(sc, values, meta),
		Generated: meta.CreatedAt,
		Meta:      meta,
	}

	header := []Block{
		{Type: BlockRow, Label: "Case number", Value: meta.FormattedNumber},
		{Type: BlockRow, Label: "Generated", Value: meta.CreatedAt.Format("2006-01-02 15:04:05")},
		{Type: BlockSpacer},
	}
	doc.Blocks = append(doc.Blocks, header...)

	grouped := groupImages(sc, images)
	rendered := make(map[string]bool)

	for si, sec := range sc.Sections {
		blocks := sectionBlocks(sc, sec, values, grouped, rendered)
		if len(blocks) == 0 {
			continue
		}
		if evidenceSection(sec) {
			doc.Blocks = append(doc.Blocks, Block{Type: BlockPageBreak})
		}
		if si > 0 && strings.TrimSpace(sec.Title) != "" {
			doc.Blocks = append(doc.Blocks, Block{Type: BlockHeading, Text: sec.Title})
		}
		doc.Blocks = append(doc.Blocks, blocks...)
		doc.Blocks = append(doc.Blocks, Block{Type: BlockSpacer})
	}

	// Images collected under keys the schema does not know (recovered
	// cases) still embed, after everything else.
	doc.Blocks = append(doc.Blocks, orphanImageBlocks(images, rendered)...)

	return doc, nil
}

func titleLine(sc *schema.Schema, values map[string]schema.Value, meta CaseMeta) string {
	kind := values[schema.FieldType].First()
	if kind == "" {
		kind = meta.SchemaName
	}
	if kind == "" {
		kind = sc.Name
	}
	return fmt.Sprintf("Report for %s scammer %q", kind, mainName(sc, values))
}

// mainName resolves the filename-driving value: the configured filename
// field, falling back to the canonical alias field, then "Unknown".
func mainName(sc *schema.Schema, values map[string]schema.Value) string {
	key := sc.FilenameField
	if key == "" {
		key = schema.FieldAlias
	}
	if name := values[key].First(); name != "" {
		return name
	}
	return "Unknown"
}

// MainName exposes the filename-driving value for filename generation.
func MainName(sc *schema.Schema, values map[string]schema.Value) string {
	return mainName(sc, values)
}

func groupImages(sc *schema.Schema, images []EvidenceImage) map[string][]*Image {
	grouped := make(map[string][]*Image)
	for i := range images {
		img := &images[i]
		if _, ok := sc.FieldByKey(img.FieldKey); !ok {
			continue
		}
		grouped[img.FieldKey] = append(grouped[img.FieldKey], &Image{
			Caption: img.Caption,
			Data:    img.Data,
			Width:   img.Width,
			Height:  img.Height,
		})
	}
	return grouped
}

// evidenceSection reports whether the section declares an image-set field.
// Such a section starts on a fresh page whenever it renders at all, even
// when only its text fields carry values.
func evidenceSection(sec schema.Section) bool {
	for _, f := range sec.Fields {
		if f.Kind == schema.KindImages {
			return true
		}
	}
	return false
}

func sectionBlocks(sc *schema.Schema, sec schema.Section, values map[string]schema.Value, grouped map[string][]*Image, rendered map[string]bool) []Block {
	var blocks []Block
	imageGroups := 0
	for _, f := range sec.Fields {
		v := values[f.Key]
		switch f.Kind {
		case schema.KindText, schema.KindDate:
			if s := v.First(); s != "" {
				blocks = append(blocks, Block{Type: BlockRow, Label: f.Label, Value: s})
			}
		case schema.KindMultiline:
			blocks = append(blocks, multilineBlocks(f, v)...)
		case schema.KindList:
			if items := v.Strings(); len(items) > 0 {
				if f.Key == remarksKey(sc) {
					blocks = append(blocks,
						Block{Type: BlockRow, Label: f.Label},
						Block{Type: BlockBullets, Items: items})
				} else {
					blocks = append(blocks, Block{Type: BlockRow, Label: f.Label, Value: strings.Join(items, ", ")})
				}
			}
		case schema.KindCurrency:
			switch {
			case v.Amount != nil:
				blocks = append(blocks, Block{Type: BlockRow, Label: f.Label, Value: v.Amount.Format()})
			case v.First() != "":
				blocks = append(blocks, Block{Type: BlockRow, Label: f.Label, Value: v.First()})
			}
		case schema.KindPayments:
			if items := paymentItems(v); len(items) > 0 {
				blocks = append(blocks,
					Block{Type: BlockRow, Label: f.Label},
					Block{Type: BlockBullets, Items: items})
			}
		case schema.KindImages:
			group := grouped[f.Key]
			if len(group) == 0 {
				continue
			}
			rendered[f.Key] = true
			if imageGroups > 0 {
				blocks = append(blocks, Block{Type: BlockPageBreak})
			}
			imageGroups++
			blocks = append(blocks, Block{Type: BlockRow, Label: f.Label})
			for _, img := range group {
				blocks = append(blocks, Block{Type: BlockImage, Image: img})
			}
		}
	}
	return blocks
}

func remarksKey(sc *schema.Schema) string {
	if sc.RemarksField != "" {
		return sc.RemarksField
	}
	return schema.FieldRemarks
}

func multilineBlocks(f schema.Field, v schema.Value) []Block {
	entries := v.List
	if len(entries) == 0 && strings.TrimSpace(v.Text) != "" {
		entries = []string{v.Text}
	}
	var blocks []Block
	n := 0
	for _, entry := range entries {
		lines := nonBlankLines(entry)
		if len(lines) == 0 {
			continue
		}
		n++
		blocks = append(blocks,
			Block{Type: BlockRow, Label: fmt.Sprintf("%s %d", f.Label, n)},
			Block{Type: BlockLines, Lines: lines})
	}
	return blocks
}

func paymentItems(v schema.Value) []string {
	var items []string
	for _, p := range v.Payments {
		method := strings.TrimSpace(p.Method)
		details := strings.Join(nonBlankLines(p.Details), ", ")
		switch {
		case method == "" && details == "":
			continue
		case details == "":
			items = append(items, method)
		case method == "":
			items = append(items, details)
		default:
			items = append(items, method+": "+details)
		}
	}
	return items
}

func orphanImageBlocks(images []EvidenceImage, rendered map[string]bool) []Block {
	var blocks []Block
	seenKey := make(map[string]bool)
	for i := range images {
		img := &images[i]
		if rendered[img.FieldKey] {
			continue
		}
		if !seenKey[img.FieldKey] {
			seenKey[img.FieldKey] = true
			blocks = append(blocks, Block{Type: BlockPageBreak}, Block{Type: BlockRow, Label: "Other images"})
		}
		blocks = append(blocks, Block{Type: BlockImage, Image: &Image{
			Caption: img.Caption,
			Data:    img.Data,
			Width:   img.Width,
			Height:  img.Height,
		}})
	}
	return blocks
}

func nonBlankLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
