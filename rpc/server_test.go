package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lvillar/casebook"
	"github.com/lvillar/casebook/schema"
)

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Data    struct {
			Kind   string               `json:"kind"`
			Fields []casebook.FieldError `json:"fields"`
		} `json:"data"`
	} `json:"error"`
}

func newTestServer(t *testing.T) *casebook.Session {
	t.Helper()
	schemas, err := schema.Open(filepath.Join(t.TempDir(), "templates.db"))
	if err != nil {
		t.Fatalf("open template store: %v", err)
	}
	t.Cleanup(func() { schemas.Close() })
	sess, err := casebook.NewSession(t.TempDir(), schemas)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	return sess
}

// run feeds newline-delimited requests through a session-backed server and
// returns one decoded response per line of output.
func run(t *testing.T, sess *casebook.Session, requests ...string) []response {
	t.Helper()
	in := strings.NewReader(strings.Join(requests, "\n") + "\n")
	var out bytes.Buffer
	srv := NewServerWithIO(in, &out, nil)
	RegisterSession(srv, sess)
	if err := srv.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	var responses []response
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		if line == "" {
			continue
		}
		var resp response
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			t.Fatalf("malformed response %q: %v", line, err)
		}
		responses = append(responses, resp)
	}
	return responses
}

func TestTemplatesList(t *testing.T) {
	sess := newTestServer(t)
	resps := run(t, sess, `{"jsonrpc":"2.0","id":1,"method":"templates/list"}`)
	if len(resps) != 1 {
		t.Fatalf("got %d responses", len(resps))
	}
	if resps[0].Error != nil {
		t.Fatalf("unexpected error: %+v", resps[0].Error)
	}
	var summaries []schema.Summary
	if err := json.Unmarshal(resps[0].Result, &summaries); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if len(summaries) == 0 || summaries[0].ID != schema.AdvanceFeeID {
		t.Fatalf("built-in template missing: %+v", summaries)
	}
}

func TestTemplatesSaveGetDelete(t *testing.T) {
	sess := newTestServer(t)
	save := `{"jsonrpc":"2.0","id":1,"method":"templates/save","params":{"template":{
		"name":"Romance Scam",
		"sections":[{"title":"Main","fields":[{"key":"alias","label":"Alias","kind":"list","required":true}]}]
	}}}`
	resps := run(t, sess, strings.ReplaceAll(save, "\n", " "))
	if resps[0].Error != nil {
		t.Fatalf("save failed: %+v", resps[0].Error)
	}
	var saved struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(resps[0].Result, &saved); err != nil || saved.ID == "" {
		t.Fatalf("no id in save result: %s", resps[0].Result)
	}

	resps = run(t, sess,
		`{"jsonrpc":"2.0","id":2,"method":"templates/get","params":{"id":"`+saved.ID+`"}}`,
		`{"jsonrpc":"2.0","id":3,"method":"templates/delete","params":{"id":"`+saved.ID+`"}}`,
		`{"jsonrpc":"2.0","id":4,"method":"templates/get","params":{"id":"`+saved.ID+`"}}`,
	)
	if resps[0].Error != nil {
		t.Fatalf("get failed: %+v", resps[0].Error)
	}
	var sc schema.Schema
	if err := json.Unmarshal(resps[0].Result, &sc); err != nil || sc.Name != "Romance Scam" {
		t.Fatalf("unexpected template: %s", resps[0].Result)
	}
	if resps[1].Error != nil {
		t.Fatalf("delete failed: %+v", resps[1].Error)
	}
	if resps[2].Error == nil || resps[2].Error.Data.Kind != KindNotFound {
		t.Fatalf("expected not_found after delete, got %+v", resps[2].Error)
	}
}

func TestReportsBuildAndCasesLoad(t *testing.T) {
	sess := newTestServer(t)
	build := `{"jsonrpc":"2.0","id":1,"method":"reports/build","params":{
		"schemaId":"advance-fee",
		"values":{"alias":{"list":["John Doe"]}}
	}}`
	resps := run(t, sess, strings.ReplaceAll(build, "\n", " "))
	if resps[0].Error != nil {
		t.Fatalf("build failed: %+v", resps[0].Error)
	}
	var res struct {
		CaseNumber      int      `json:"caseNumber"`
		FormattedNumber string   `json:"formattedNumber"`
		Outputs         []string `json:"outputs"`
	}
	if err := json.Unmarshal(resps[0].Result, &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if res.CaseNumber != 1 || res.FormattedNumber != "1" || len(res.Outputs) != 1 {
		t.Fatalf("unexpected build result: %+v", res)
	}

	resps = run(t, sess,
		`{"jsonrpc":"2.0","id":2,"method":"cases/list"}`,
		`{"jsonrpc":"2.0","id":3,"method":"cases/load","params":{"caseNumber":1}}`,
	)
	var cases []casebook.CaseSummary
	if err := json.Unmarshal(resps[0].Result, &cases); err != nil {
		t.Fatalf("decode cases: %v", err)
	}
	if len(cases) != 1 || cases[0].Name != "John Doe" {
		t.Fatalf("unexpected case list: %+v", cases)
	}
	var loaded struct {
		Snapshot struct {
			CaseNumber int `json:"caseNumber"`
		} `json:"snapshot"`
		Schema struct {
			ID string `json:"id"`
		} `json:"schema"`
	}
	if err := json.Unmarshal(resps[1].Result, &loaded); err != nil {
		t.Fatalf("decode loaded case: %v", err)
	}
	if loaded.Snapshot.CaseNumber != 1 || loaded.Schema.ID != schema.AdvanceFeeID {
		t.Fatalf("unexpected loaded case: %+v", loaded)
	}
}

func TestBuildValidationErrorPayload(t *testing.T) {
	sess := newTestServer(t)
	build := `{"jsonrpc":"2.0","id":1,"method":"reports/build","params":{"schemaId":"advance-fee","values":{}}}`
	resps := run(t, sess, build)
	if resps[0].Error == nil {
		t.Fatal("expected an error response")
	}
	if resps[0].Error.Data.Kind != KindValidation {
		t.Fatalf("kind = %q, want validation", resps[0].Error.Data.Kind)
	}
	found := false
	for _, f := range resps[0].Error.Data.Fields {
		if f.Key == "alias" {
			found = true
		}
	}
	if !found {
		t.Fatalf("alias not reported: %+v", resps[0].Error.Data.Fields)
	}
}

func TestCasesLoadNotFound(t *testing.T) {
	sess := newTestServer(t)
	resps := run(t, sess, `{"jsonrpc":"2.0","id":1,"method":"cases/load","params":{"caseNumber":42}}`)
	if resps[0].Error == nil || resps[0].Error.Data.Kind != KindNotFound {
		t.Fatalf("expected not_found, got %+v", resps[0].Error)
	}
}

func TestUnknownMethod(t *testing.T) {
	sess := newTestServer(t)
	resps := run(t, sess, `{"jsonrpc":"2.0","id":1,"method":"nope"}`)
	if resps[0].Error == nil || resps[0].Error.Code != codeMethodNotFound {
		t.Fatalf("expected method-not-found, got %+v", resps[0].Error)
	}
}

func TestNotificationGetsNoResponse(t *testing.T) {
	sess := newTestServer(t)
	resps := run(t, sess,
		`{"jsonrpc":"2.0","method":"templates/list"}`,
		`{"jsonrpc":"2.0","id":1,"method":"templates/list"}`,
	)
	if len(resps) != 1 {
		t.Fatalf("got %d responses, want 1", len(resps))
	}
}

func TestParseErrorResponse(t *testing.T) {
	sess := newTestServer(t)
	resps := run(t, sess, `{not json`)
	if resps[0].Error == nil || resps[0].Error.Code != codeParseError {
		t.Fatalf("expected parse error, got %+v", resps[0].Error)
	}
}
