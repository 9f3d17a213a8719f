package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lvillar/casebook"
	"github.com/lvillar/casebook/schema"
	"github.com/lvillar/casebook/snapshot"
)

// RegisterSession wires the session's operations into the dispatch table.
func RegisterSession(s *Server, sess *casebook.Session) {
	s.Register("templates/list", func(ctx context.Context, _ json.RawMessage) (interface{}, error) {
		return sess.Schemas().List(ctx)
	})

	s.Register("templates/get", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		var p struct {
			ID string `json:"id"`
		}
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		return sess.Schemas().Get(ctx, p.ID)
	})

	s.Register("templates/save", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		var p struct {
			Template schema.Schema `json:"template"`
		}
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		id, err := sess.Schemas().SaveCustom(ctx, &p.Template)
		if err != nil {
			return nil, err
		}
		return map[string]string{"id": id}, nil
	})

	s.Register("templates/delete", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		var p struct {
			ID string `json:"id"`
		}
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		if err := sess.Schemas().DeleteCustom(ctx, p.ID); err != nil {
			return nil, err
		}
		return map[string]bool{"deleted": true}, nil
	})

	s.Register("cases/list", func(ctx context.Context, _ json.RawMessage) (interface{}, error) {
		return sess.ListCases(ctx)
	})

	s.Register("cases/load", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		var p struct {
			CaseNumber int `json:"caseNumber"`
		}
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		snap, sc, err := sess.LoadCase(ctx, p.CaseNumber)
		if err != nil {
			return nil, err
		}
		return caseLoadResult{Snapshot: snap, Schema: sc}, nil
	})

	s.Register("reports/build", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		var req casebook.BuildRequest
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		res, err := sess.BuildReport(ctx, req)
		if err != nil {
			return nil, err
		}
		return buildResult(res), nil
	})
}

type caseLoadResult struct {
	Snapshot *snapshot.Snapshot `json:"snapshot"`
	Schema   *schema.Schema     `json:"schema"`
}

type imageError struct {
	Index   int    `json:"index"`
	Path    string `json:"path"`
	Message string `json:"message"`
	Kind    string `json:"kind"`
}

type buildResponse struct {
	CaseNumber      int          `json:"caseNumber"`
	FormattedNumber string       `json:"formattedNumber"`
	Outputs         []string     `json:"outputs"`
	ImageErrors     []imageError `json:"imageErrors,omitempty"`
}

func buildResult(res *casebook.BuildResult) buildResponse {
	out := buildResponse{
		CaseNumber:      res.CaseNumber,
		FormattedNumber: res.FormattedNumber,
		Outputs:         res.Outputs,
	}
	for _, ie := range res.ImageErrors {
		out.ImageErrors = append(out.ImageErrors, imageError{
			Index:   ie.Index,
			Path:    ie.Path,
			Message: ie.Err.Error(),
			Kind:    dataFor(ie.Err).Kind,
		})
	}
	return out
}

func decodeParams(params json.RawMessage, dst interface{}) error {
	if len(params) == 0 {
		return &casebook.ValidationError{Fields: []casebook.FieldError{{
			Key:     "params",
			Message: "required",
		}}}
	}
	if err := json.Unmarshal(params, dst); err != nil {
		return &casebook.ValidationError{Fields: []casebook.FieldError{{
			Key:     "params",
			Message: fmt.Sprintf("malformed: %v", err),
		}}}
	}
	return nil
}
