package api

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/maidr/pkg/buildinfo"
	"github.com/matzehuels/maidr/pkg/calllog"
	"github.com/matzehuels/maidr/pkg/errors"
	"github.com/matzehuels/maidr/pkg/maidr"
	"github.com/matzehuels/maidr/pkg/pipeline"
	"github.com/matzehuels/maidr/pkg/plot"
	"github.com/matzehuels/maidr/pkg/store"
)

// renderRequest carries exactly one of Spec, SpecTOML or Calls.
type renderRequest struct {
	Spec     json.RawMessage  `json:"spec,omitempty"`
	SpecTOML string           `json:"spec_toml,omitempty"`
	Calls    string           `json:"calls,omitempty"`
	Options  pipeline.Options `json:"options"`
}

type renderStats struct {
	Layers     int   `json:"layers"`
	Degraded   int   `json:"degraded"`
	EngineMS   int64 `json:"engine_ms"`
	AssembleMS int64 `json:"assemble_ms"`
}

type renderResponse struct {
	RunID     string             `json:"run_id,omitempty"`
	SpecHash  string             `json:"spec_hash"`
	Payload   *maidr.Payload     `json:"payload"`
	Artifacts map[string]string  `json:"artifacts"`
	Warnings  []string           `json:"warnings,omitempty"`
	Stats     renderStats        `json:"stats"`
	Cache     pipeline.CacheInfo `json:"cache"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": buildinfo.Version,
		"commit":  buildinfo.Commit,
	})
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	var req renderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	spec, err := s.decodeSpec(&req)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	opts := req.Options
	opts.Spec = spec
	res, err := s.runner.Execute(ctx, opts)
	if err != nil {
		s.logger.Warn("render failed", "err", err)
		writeError(w, err)
		return
	}

	resp := renderResponse{
		RunID:     res.RunID,
		SpecHash:  res.SpecHash,
		Payload:   res.Payload,
		Artifacts: make(map[string]string, len(res.Artifacts)),
		Warnings:  res.Warnings,
		Stats: renderStats{
			Layers:     res.Stats.Layers,
			Degraded:   res.Stats.Degraded,
			EngineMS:   res.Stats.EngineTime.Milliseconds(),
			AssembleMS: res.Stats.AssembleTime.Milliseconds(),
		},
		Cache: res.CacheInfo,
	}
	for format, data := range res.Artifacts {
		if format == pipeline.FormatJSON {
			continue
		}
		resp.Artifacts[format] = string(data)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) decodeSpec(req *renderRequest) (*plot.Spec, error) {
	n := 0
	for _, set := range []bool{len(req.Spec) > 0, req.SpecTOML != "", req.Calls != ""} {
		if set {
			n++
		}
	}
	if n != 1 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "exactly one of spec, spec_toml or calls is required")
	}

	opts := plot.LoadOptions{
		BaseDir:    s.cfg.DataDir,
		AllowPaths: s.cfg.DataDir != "",
		Sandboxed:  true,
	}
	switch {
	case len(req.Spec) > 0:
		return plot.Decode(req.Spec, "json", opts)
	case req.SpecTOML != "":
		return plot.Decode([]byte(req.SpecTOML), "toml", opts)
	}
	calls, err := calllog.Parse(strings.NewReader(req.Calls))
	if err != nil {
		return nil, err
	}
	return calllog.ToSpec(calls)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.runner.Store == nil {
		jsonError(w, "run storage is not configured", http.StatusNotFound)
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			jsonError(w, "limit must be between 1 and 1000", http.StatusBadRequest)
			return
		}
		limit = n
	}
	runs, err := s.runner.Store.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if runs == nil {
		runs = []*store.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.runner.Store == nil {
		jsonError(w, "run storage is not configured", http.StatusNotFound)
		return
	}
	run, err := s.runner.Store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// writeError maps an error to its status code and a JSON body carrying
// the error code.
func writeError(w http.ResponseWriter, err error) {
	status := errors.HTTPStatus(err)
	switch {
	case stderrors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case stderrors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	body := map[string]string{"error": errors.UserMessage(err)}
	if code := errors.GetCode(err); code != "" {
		body["code"] = string(code)
	}
	writeJSON(w, status, body)
}
