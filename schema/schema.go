// Package schema defines report templates: the ordered field layout a given
// report type collects, which fields are required, and how collected values
// are typed. Built-in templates are static; custom templates are authored by
// the user and persisted through Store.
package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors returned by template lookup and validation.
var (
	ErrNotFound = errors.New("schema: template not found")
	ErrInvalid  = errors.New("schema: invalid template definition")
)

// FieldKind is the closed set of value shapes a field can collect.
type FieldKind string

const (
	KindText      FieldKind = "text"      // single line of text
	KindMultiline FieldKind = "multiline" // free text spanning lines
	KindDate      FieldKind = "date"      // date entered as text (MM/DD/YY)
	KindList      FieldKind = "list"      // ordered list of strings
	KindCurrency  FieldKind = "currency"  // monetary amount
	KindPayments  FieldKind = "payments"  // method/details pairs
	KindImages    FieldKind = "images"    // ordered image set with captions
)

// Valid reports whether k is one of the known field kinds.
func (k FieldKind) Valid() bool {
	switch k {
	case KindText, KindMultiline, KindDate, KindList, KindCurrency, KindPayments, KindImages:
		return true
	}
	return false
}

// Field is one entry a report collects.
type Field struct {
	Key      string    `json:"key"`
	Label    string    `json:"label"`
	Kind     FieldKind `json:"kind"`
	Required bool      `json:"required,omitempty"`
	Default  string    `json:"default,omitempty"`
}

// Section groups consecutive fields under a document heading.
type Section struct {
	Title  string  `json:"title"`
	Fields []Field `json:"fields"`
}

// Schema describes one report type.
//
// FilenameField names the field whose value drives output filenames; empty
// means the canonical main-alias field. RemarksField names the free-text
// field rendered as the closing remarks section.
type Schema struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	Sections      []Section `json:"sections"`
	FilenameField string    `json:"useCustomFilenameField,omitempty"`
	RemarksField  string    `json:"remarksField,omitempty"`
	Custom        bool      `json:"custom,omitempty"`
}

// Summary is the listing view of a schema.
type Summary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Custom      bool   `json:"custom,omitempty"`
}

// Fields flattens all sections in declared order.
func (s *Schema) Fields() []Field {
	var out []Field
	for _, sec := range s.Sections {
		out = append(out, sec.Fields...)
	}
	return out
}

// FieldByKey returns the field with the given key.
func (s *Schema) FieldByKey(key string) (Field, bool) {
	for _, sec := range s.Sections {
		for _, f := range sec.Fields {
			if f.Key == key {
				return f, true
			}
		}
	}
	return Field{}, false
}

// Summary returns the listing view of s.
func (s *Schema) Summary() Summary {
	return Summary{ID: s.ID, Name: s.Name, Description: s.Description, Custom: s.Custom}
}

// Validate checks the structural invariants: at least one field, non-empty
// unique keys, known kinds, and that FilenameField and RemarksField, when
// set, reference existing field keys. Violations wrap ErrInvalid.
func (s *Schema) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	seen := make(map[string]bool)
	total := 0
	for _, sec := range s.Sections {
		for _, f := range sec.Fields {
			total++
			key := strings.TrimSpace(f.Key)
			if key == "" {
				return fmt.Errorf("%w: field with empty key", ErrInvalid)
			}
			if seen[key] {
				return fmt.Errorf("%w: duplicate field key %q", ErrInvalid, key)
			}
			seen[key] = true
			if !f.Kind.Valid() {
				return fmt.Errorf("%w: field %q has unknown kind %q", ErrInvalid, key, f.Kind)
			}
		}
	}
	if total == 0 {
		return fmt.Errorf("%w: template has no fields", ErrInvalid)
	}
	if s.FilenameField != "" && !seen[s.FilenameField] {
		return fmt.Errorf("%w: filename field %q does not exist", ErrInvalid, s.FilenameField)
	}
	if s.RemarksField != "" && !seen[s.RemarksField] {
		return fmt.Errorf("%w: remarks field %q does not exist", ErrInvalid, s.RemarksField)
	}
	return nil
}

// Freeform synthesizes a schema from a bare set of value keys. It is used
// when a case must be re-opened after its custom template was deleted:
// every key becomes an optional field labeled by itself, typed from the
// stored value shape.
func Freeform(values map[string]Value) *Schema {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]Field, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, Field{Key: k, Label: labelFromKey(k), Kind: values[k].Kind()})
	}
	return &Schema{
		Name:     "Recovered report",
		Sections: []Section{{Title: "Fields:", Fields: fields}},
	}
}

func labelFromKey(key string) string {
	words := strings.Split(key, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
