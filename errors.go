package casebook

import (
	"fmt"
	"strings"
)

// OpError wraps a failure with the session operation it occurred in.
type OpError struct {
	Op  string // operation name, e.g. "BuildReport", "LoadCase"
	Err error  // underlying error
}

func (e *OpError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("casebook.%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("casebook.%s: unknown error", e.Op)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func newOpError(op string, err error) *OpError {
	return &OpError{Op: op, Err: err}
}

// FieldError describes one rejected input field.
type FieldError struct {
	Key     string `json:"key"`
	Message string `json:"message"`
}

// ValidationError reports every rejected field of a build request at once,
// so a caller can surface all problems in a single round trip.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "casebook: invalid request"
	}
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Key + ": " + f.Message
	}
	return "casebook: invalid request: " + strings.Join(parts, "; ")
}
