// Package snapshot persists case records under a hidden data area inside
// the user-chosen target folder, and derives case numbering from them.
// A snapshot holds everything needed to re-open a case for editing without
// re-entering data: field values, evidence image references, timestamps.
package snapshot

import (
	"errors"
	"time"

	"github.com/lvillar/casebook/schema"
)

// Sentinel errors for snapshot lookup.
var (
	ErrNotFound = errors.New("snapshot: case not found")
)

// CropRegion is a crop rectangle in post-rotation pixel coordinates.
type CropRegion struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// ImageRef references one evidence image.
//
// RelativePath points inside the per-folder data area, where the prepared
// bytes were copied at save time; regeneration never depends on the user's
// original files. SourcePath records where the image was imported from,
// for display only. FieldKey names the image-set field the image belongs to.
type ImageRef struct {
	RelativePath string      `json:"relativePath"`
	SourcePath   string      `json:"sourcePath,omitempty"`
	FieldKey     string      `json:"fieldKey,omitempty"`
	Caption      string      `json:"caption,omitempty"`
	Crop         *CropRegion `json:"cropRegion,omitempty"`
	Rotation     int         `json:"rotation,omitempty"`
}

// Snapshot is the persisted record of one case.
//
// Older records may lack newer fields; decoding substitutes defaults
// (zero rotation, no crop, empty schema id meaning free-form recovery).
type Snapshot struct {
	CaseNumber int                     `json:"caseNumber"`
	SchemaID   string                  `json:"schemaId,omitempty"`
	Values     map[string]schema.Value `json:"values"`
	Images     []ImageRef              `json:"images,omitempty"`
	CreatedAt  time.Time               `json:"createdAt"`
	ModifiedAt time.Time               `json:"modifiedAt"`
}
