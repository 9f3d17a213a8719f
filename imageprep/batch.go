package imageprep

import (
	"context"
	"fmt"
)

// Input is one image in a batch.
type Input struct {
	Path    string
	Options Options
}

// BatchError records one failed preparation within a batch.
type BatchError struct {
	Index int
	Path  string
	Err   error
}

func (e BatchError) Error() string {
	return fmt.Sprintf("imageprep: image %d (%s): %v", e.Index, e.Path, e.Err)
}

func (e BatchError) Unwrap() error { return e.Err }

// PrepareAll prepares every input, collecting per-image failures instead of
// aborting: one bad image must not block the rest of the evidence set. The
// results slice is aligned with inputs; failed entries are nil and described
// in the returned BatchError list. Only context cancellation aborts the
// batch as a whole.
func PrepareAll(ctx context.Context, inputs []Input) ([]*Prepared, []BatchError, error) {
	results := make([]*Prepared, len(inputs))
	var failures []BatchError
	for i, in := range inputs {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		prepared, err := PrepareFile(in.Path, in.Options)
		if err != nil {
			failures = append(failures, BatchError{Index: i, Path: in.Path, Err: err})
			continue
		}
		results[i] = prepared
	}
	return results, failures, nil
}
