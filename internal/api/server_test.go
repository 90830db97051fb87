package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/maidr/pkg/pipeline"
	"github.com/matzehuels/maidr/pkg/store"
)

const barSpec = `{
	"title": "Tips",
	"data": {"columns": ["day", "tips"], "rows": [["Sat", 3], ["Fri", 5], ["Thu", 2]]},
	"layers": [{"geom": "bar", "stat": "identity", "aes": {"x": "day", "y": "tips"}}]
}`

func testConfig() Config {
	return Config{
		RateLimit:      1000,
		RateBurst:      1000,
		MaxBodyBytes:   1 << 20,
		RequestTimeout: 10 * time.Second,
	}
}

func newTestServer(t *testing.T, cfg Config, withStore bool) *Server {
	t.Helper()
	logger := log.NewWithOptions(io.Discard, log.Options{})
	runner := pipeline.NewRunner(nil, nil, logger)
	if withStore {
		s, err := store.NewFileStore(t.TempDir())
		if err != nil {
			t.Fatal(err)
		}
		runner.Store = s
	}
	return NewServer(runner, logger, cfg)
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
}

func renderBody(t *testing.T, fields map[string]any) string {
	t.Helper()
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(fields); err != nil {
		t.Fatal(err)
	}
	return buf.String()
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestServer(t, testConfig(), false), http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	decode(t, rec, &body)
	if body["status"] != "ok" || body["version"] == "" {
		t.Errorf("body = %v", body)
	}
}

func TestRenderSpec(t *testing.T) {
	s := newTestServer(t, testConfig(), true)
	body := renderBody(t, map[string]any{
		"spec":    json.RawMessage(barSpec),
		"options": map[string]any{"formats": []string{"svg", "html"}},
	})
	rec := do(t, s, http.MethodPost, "/api/render", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var resp renderResponse
	decode(t, rec, &resp)
	if resp.RunID == "" {
		t.Error("run_id missing with a store configured")
	}
	if resp.Stats.Layers != 1 {
		t.Errorf("layers = %d, want 1", resp.Stats.Layers)
	}
	if !strings.Contains(resp.Artifacts["svg"], "maidr-data=") {
		t.Error("svg artifact lacks the payload attribute")
	}
	if !strings.HasPrefix(resp.Artifacts["html"], "<!DOCTYPE html>") {
		t.Error("html artifact is not a page")
	}
	if layers := resp.Payload.Layers(); len(layers) != 1 || layers[0].Type != "bar" {
		t.Errorf("payload layers = %+v", layers)
	}

	rec = do(t, s, http.MethodGet, "/api/runs/"+resp.RunID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET run status = %d", rec.Code)
	}
	var run store.Run
	decode(t, rec, &run)
	if run.SpecHash != resp.SpecHash || run.Title != "Tips" {
		t.Errorf("stored run = %+v", run)
	}

	rec = do(t, s, http.MethodGet, "/api/runs?limit=5", "")
	var list struct{ Runs []store.Run }
	decode(t, rec, &list)
	if len(list.Runs) != 1 {
		t.Errorf("listed %d runs, want 1", len(list.Runs))
	}
}

func TestRenderCallsAndTOML(t *testing.T) {
	s := newTestServer(t, testConfig(), false)
	tests := []struct {
		name   string
		fields map[string]any
		want   string
	}{
		{"calls", map[string]any{"calls": "hist x=1,2,2,3,3,3 breaks=3"}, "hist"},
		{"toml", map[string]any{"spec_toml": `
[data]
columns = ["x", "y"]
rows = [[1, 2], [2, 4], [3, 3]]
[[layers]]
geom = "line"
aes = { x = "x", y = "y" }
`}, "line"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fields["options"] = map[string]any{"formats": []string{"json"}}
			rec := do(t, s, http.MethodPost, "/api/render", renderBody(t, tt.fields))
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
			}
			var resp renderResponse
			decode(t, rec, &resp)
			if layers := resp.Payload.Layers(); len(layers) != 1 || layers[0].Type != tt.want {
				t.Errorf("payload layers = %+v, want one %s layer", layers, tt.want)
			}
			if len(resp.Artifacts) != 0 {
				t.Errorf("artifacts = %v, want the json payload only", resp.Artifacts)
			}
		})
	}
}

func TestRenderErrors(t *testing.T) {
	s := newTestServer(t, testConfig(), false)
	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"malformed", "{", http.StatusBadRequest, ""},
		{"no source", `{}`, http.StatusBadRequest, "INVALID_INPUT"},
		{"two sources", `{"calls": "hist x=1", "spec_toml": "title = 'x'"}`, http.StatusBadRequest, "INVALID_INPUT"},
		{"no layers", `{"spec": {"title": "empty"}}`, http.StatusBadRequest, "INVALID_SPEC"},
		{"dataset path", `{"spec": {"data": {"path": "tips.csv"}, "layers": [{"geom": "bar"}]}}`, http.StatusBadRequest, "INVALID_PATH"},
		{"bad format", `{"calls": "hist x=1,2", "options": {"formats": ["png"]}}`, http.StatusBadRequest, "INVALID_FORMAT"},
		{"unsupported call", `{"calls": "pie x=1,2"}`, http.StatusNotImplemented, "UNSUPPORTED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, "/api/render", tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body)
			}
			if tt.code == "" {
				return
			}
			var body map[string]string
			decode(t, rec, &body)
			if body["code"] != tt.code {
				t.Errorf("code = %q, want %q", body["code"], tt.code)
			}
		})
	}
}

func TestRunsWithoutStore(t *testing.T) {
	s := newTestServer(t, testConfig(), false)
	for _, path := range []string{"/api/runs", "/api/runs/abc"} {
		if rec := do(t, s, http.MethodGet, path, ""); rec.Code != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want 404", path, rec.Code)
		}
	}
}

func TestGetMissingRun(t *testing.T) {
	s := newTestServer(t, testConfig(), true)
	if rec := do(t, s, http.MethodGet, "/api/runs/nope", ""); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/api/runs?limit=0", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("limit=0 status = %d, want 400", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = 0.001
	cfg.RateBurst = 1
	s := newTestServer(t, cfg, false)

	body := `{"calls": "hist x=1,2,3"}`
	if rec := do(t, s, http.MethodPost, "/api/render", body); rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d, body %s", rec.Code, rec.Body)
	}
	rec := do(t, s, http.MethodPost, "/api/render", body)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header missing")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	for _, k := range []string{"MAIDR_ADDR", "MAIDR_RATE_LIMIT", "MAIDR_MONGO_URI", "MAIDR_SQLITE_PATH", "MAIDR_STORE"} {
		t.Setenv(k, "")
	}
	cfg := LoadConfig()
	if cfg.Addr != ":8080" || cfg.RateLimit != 10 || cfg.StoreDSN != "" {
		t.Errorf("LoadConfig() = %+v", cfg)
	}

	t.Setenv("MAIDR_SQLITE_PATH", "/var/lib/maidr/runs.db")
	t.Setenv("MAIDR_RATE_LIMIT", "2.5")
	cfg = LoadConfig()
	if cfg.StoreDSN != "sqlite:/var/lib/maidr/runs.db" {
		t.Errorf("StoreDSN = %q", cfg.StoreDSN)
	}
	if cfg.RateLimit != 2.5 {
		t.Errorf("RateLimit = %v, want 2.5", cfg.RateLimit)
	}
}
