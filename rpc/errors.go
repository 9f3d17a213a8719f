package rpc

import (
	"context"
	"errors"

	"github.com/lvillar/casebook"
	"github.com/lvillar/casebook/imageprep"
	"github.com/lvillar/casebook/schema"
	"github.com/lvillar/casebook/snapshot"
)

// Error kinds carried in the error payload so clients can branch without
// parsing messages.
const (
	KindValidation        = "validation"
	KindNotFound          = "not_found"
	KindUnsupportedFormat = "unsupported_format"
	KindIO                = "io"
	KindCancelled         = "cancelled"
)

type errorData struct {
	Kind   string                `json:"kind"`
	Fields []casebook.FieldError `json:"fields,omitempty"`
}

func dataFor(err error) errorData {
	var verr *casebook.ValidationError
	switch {
	case errors.As(err, &verr):
		return errorData{Kind: KindValidation, Fields: verr.Fields}
	case errors.Is(err, schema.ErrInvalid):
		return errorData{Kind: KindValidation}
	case errors.Is(err, schema.ErrNotFound), errors.Is(err, snapshot.ErrNotFound):
		return errorData{Kind: KindNotFound}
	case errors.Is(err, imageprep.ErrUnsupportedFormat):
		return errorData{Kind: KindUnsupportedFormat}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return errorData{Kind: KindCancelled}
	default:
		return errorData{Kind: KindIO}
	}
}
