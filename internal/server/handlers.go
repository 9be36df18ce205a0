package server

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/hwcomposer/pkg/buildinfo"
	"github.com/matzehuels/hwcomposer/pkg/errors"
	"github.com/matzehuels/hwcomposer/pkg/pipeline"
	"github.com/matzehuels/hwcomposer/pkg/scenario"
	"github.com/matzehuels/hwcomposer/pkg/store"
)

const defaultListLimit = 50

var diagramTypes = map[string]string{
	pipeline.FormatDOT: "text/vnd.graphviz; charset=utf-8",
	pipeline.FormatSVG: "image/svg+xml",
	pipeline.FormatPNG: "image/png",
}

type simulateRequest struct {
	Scenario json.RawMessage  `json:"scenario"`
	Options  pipeline.Options `json:"options"`
}

type simulateResponse struct {
	CacheHit bool             `json:"cache_hit"`
	Stored   bool             `json:"stored"`
	Report   *pipeline.Report `json:"report"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": buildinfo.Version,
		"commit":  buildinfo.Commit,
	})
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInvalidInput, err, "read body"))
		return
	}

	var (
		sc   *scenario.Scenario
		opts pipeline.Options
	)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/toml", "text/toml":
		if sc, err = scenario.Decode(bytes.NewReader(body), scenario.FormatTOML); err != nil {
			s.writeError(w, r, err)
			return
		}
		if opts, err = optionsFromQuery(r); err != nil {
			s.writeError(w, r, err)
			return
		}
	default:
		var req simulateRequest
		if err := json.Unmarshal(body, &req); err != nil {
			s.writeError(w, r, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode request"))
			return
		}
		if len(req.Scenario) == 0 {
			s.writeError(w, r, errors.New(errors.ErrCodeInvalidInput, "request has no scenario"))
			return
		}
		if sc, err = scenario.Decode(bytes.NewReader(req.Scenario), scenario.FormatJSON); err != nil {
			s.writeError(w, r, err)
			return
		}
		opts = req.Options
	}

	if opts.Persist && s.runner.Store == nil {
		s.writeError(w, r, errors.New(errors.ErrCodeUnsupported, "this server does not store reports"))
		return
	}
	opts.Logger = s.logger.With("scenario", sc.Name)

	res, err := s.runner.Execute(r.Context(), sc, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, simulateResponse{
		CacheHit: res.CacheHit,
		Stored:   res.Stored,
		Report:   res.Report,
	})
}

func optionsFromQuery(r *http.Request) (pipeline.Options, error) {
	q := r.URL.Query()
	opts := pipeline.Options{Topology: q.Get("topology")}
	for name, dst := range map[string]*bool{
		"dry_run": &opts.DryRun,
		"refresh": &opts.Refresh,
		"persist": &opts.Persist,
	} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, errors.New(errors.ErrCodeInvalidInput, "invalid %s: %q", name, v)
		}
		*dst = b
	}
	return opts, pipeline.ValidateTopology(opts.Topology)
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w, r) {
		return
	}
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, r, errors.New(errors.ErrCodeInvalidInput, "invalid limit: %q", v))
			return
		}
		limit = n
	}
	recs, err := s.runner.Store.List(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if recs == nil {
		recs = []*store.Record{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.report(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleDeleteReport(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w, r) {
		return
	}
	id := chi.URLParam(r, "id")
	if err := store.ValidateID(id); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.runner.Store.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetFrame(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.report(w, r)
	if !ok {
		return
	}
	index, ok := s.frameIndex(w, r)
	if !ok {
		return
	}
	fr, err := rep.Frame(index)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fr)
}

func (s *Server) handleDiagram(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = pipeline.FormatSVG
	}
	contentType, known := diagramTypes[format]
	if !known {
		s.writeError(w, r, errors.New(errors.ErrCodeInvalidFormat, "invalid diagram format: %q (must be one of: dot, svg, png)", format))
		return
	}
	rep, ok := s.report(w, r)
	if !ok {
		return
	}
	index, ok := s.frameIndex(w, r)
	if !ok {
		return
	}
	data, hit, err := s.runner.RenderFrame(r.Context(), rep, index, format)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	if hit {
		w.Header().Set("X-Cache", "hit")
	} else {
		w.Header().Set("X-Cache", "miss")
	}
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// report loads the report named by the {id} parameter.
func (s *Server) report(w http.ResponseWriter, r *http.Request) (*pipeline.Report, bool) {
	if !s.requireStore(w, r) {
		return nil, false
	}
	id := chi.URLParam(r, "id")
	if err := store.ValidateID(id); err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	rep, err := s.runner.Report(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	return rep, true
}

func (s *Server) frameIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	v := chi.URLParam(r, "frame")
	n, err := strconv.Atoi(v)
	if err != nil {
		s.writeError(w, r, errors.New(errors.ErrCodeInvalidInput, "invalid frame index: %q", v))
		return 0, false
	}
	return n, true
}

func (s *Server) requireStore(w http.ResponseWriter, r *http.Request) bool {
	if s.runner.Store == nil {
		s.writeError(w, r, errors.New(errors.ErrCodeUnsupported, "this server does not store reports"))
		return false
	}
	return true
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "err", err)
	} else {
		s.logger.Debug("request rejected", "path", r.URL.Path, "err", err)
	}
	writeJSON(w, status, errorResponse{
		Error: errors.UserMessage(err),
		Code:  string(errors.GetCode(err)),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
