package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"drivelogic-hq/reasoner/pkg/compiler"
	"drivelogic-hq/reasoner/pkg/engine"
	"drivelogic-hq/reasoner/pkg/results"
	"drivelogic-hq/reasoner/pkg/results/export"
	"drivelogic-hq/reasoner/pkg/runner"
	"drivelogic-hq/reasoner/pkg/scene"
	"drivelogic-hq/reasoner/pkg/telemetry/logging"
)

// ReasonRequest is the body of POST /v1/reason.
type ReasonRequest struct {
	// SceneID names the scene; the request id is used when empty.
	SceneID string            `json:"scene_id"`
	Scene   scene.Description `json:"scene"`
}

// ReasonResponse is the reply to POST /v1/reason.
type ReasonResponse struct {
	*engine.Result

	// UnmatchedIntentions lists intents no fired action covers. Only set
	// when intent synonyms are configured.
	UnmatchedIntentions []string `json:"unmatched_intentions,omitempty"`
}

// BatchResponse is the reply to POST /v1/reason/batch.
type BatchResponse struct {
	RunID       string `json:"run_id"`
	Fingerprint string `json:"fingerprint"`
	Evaluated   int    `json:"evaluated"`
	Cached      int    `json:"cached"`
	Failed      int    `json:"failed"`

	// Results uses the result-file shape keyed by scene id.
	Results map[string]export.SceneEntry `json:"results"`

	// Errors maps failed scene ids to their error.
	Errors map[string]string `json:"errors,omitempty"`
}

// RulesResponse is the reply to GET /v1/rules.
type RulesResponse struct {
	Fingerprint string               `json:"fingerprint"`
	Stats       compiler.Stats       `json:"stats"`
	Excluded    []compiler.Exclusion `json:"excluded"`
	Policy      *engine.Policy       `json:"policy"`
}

// ResultsResponse is the reply to GET /v1/results.
type ResultsResponse struct {
	Total   int64             `json:"total"`
	Results []*results.Record `json:"results"`
}

func (s *Server) handleReason(w http.ResponseWriter, r *http.Request) {
	var req ReasonRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.SceneID == "" {
		req.SceneID = logging.GetRequestID(r.Context())
	}

	res, err := s.engine.Reason(r.Context(), req.SceneID, req.Scene)
	if err != nil {
		var pe *scene.ParseError
		if errors.As(err, &pe) {
			idx := pe.Index
			writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: ErrorDetail{
				Message: err.Error(),
				Type:    ErrorTypeInvalidScene,
				Param:   pe.Section,
				Index:   &idx,
			}})
			s.storeRecord(r, results.FromError(logging.GetRequestID(r.Context()), req.SceneID,
				s.engine.Compiled().Fingerprint(), err, time.Now()))
			return
		}
		s.logger.ErrorContext(r.Context(), "reasoning failed", "scene_id", req.SceneID, "error", err)
		writeError(w, http.StatusInternalServerError, ErrorTypeServerError, "reasoning failed")
		return
	}

	s.storeRecord(r, results.FromResult(logging.GetRequestID(r.Context()), res, time.Now()))

	resp := ReasonResponse{Result: res}
	if len(s.synonyms) > 0 {
		resp.UnmatchedIntentions = res.UnmatchedIntentions(s.synonyms)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	if s.runner == nil {
		writeError(w, http.StatusServiceUnavailable, ErrorTypeServiceUnavailable, "batch evaluation is not configured")
		return
	}

	var doc map[string]scene.Description
	if !s.decode(w, r, &doc) {
		return
	}

	ids := make([]string, 0, len(doc))
	for id := range doc {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	scenes := make([]runner.Scene, len(ids))
	for i, id := range ids {
		scenes[i] = runner.Scene{ID: id, Description: doc[id]}
	}

	sum, err := s.runner.Run(r.Context(), scenes)
	if err != nil && !errors.Is(err, runner.ErrSceneFailed) {
		s.logger.ErrorContext(r.Context(), "batch failed", "error", err)
		writeError(w, http.StatusInternalServerError, ErrorTypeServerError, "batch evaluation failed")
		return
	}

	resp := BatchResponse{
		RunID:       sum.RunID,
		Fingerprint: sum.Fingerprint,
		Evaluated:   sum.Evaluated,
		Cached:      sum.Cached,
		Failed:      sum.Failed,
		Results:     make(map[string]export.SceneEntry, len(sum.Outcomes)),
	}
	for _, o := range sum.Outcomes {
		if o.Err != nil {
			if resp.Errors == nil {
				resp.Errors = make(map[string]string)
			}
			resp.Errors[o.SceneID] = o.Err.Error()
			continue
		}
		resp.Results[o.SceneID] = export.SceneEntry{Actions: o.Result.Fired, Intentions: o.Result.Intentions}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	c := s.engine.Compiled()
	excluded := c.Excluded()
	if excluded == nil {
		excluded = []compiler.Exclusion{}
	}
	writeJSON(w, http.StatusOK, RulesResponse{
		Fingerprint: c.Fingerprint(),
		Stats:       c.Stats(),
		Excluded:    excluded,
		Policy:      s.engine.Policy(),
	})
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, ErrorTypeServiceUnavailable, "result storage is disabled")
		return
	}

	q, err := parseQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorTypeInvalidRequest, err.Error())
		return
	}

	records, err := s.store.Query(r.Context(), q)
	if err == nil {
		var total int64
		total, err = s.store.Count(r.Context(), q)
		if err == nil {
			writeJSON(w, http.StatusOK, ResultsResponse{Total: total, Results: records})
			return
		}
	}

	var qe *results.QueryError
	if errors.As(err, &qe) {
		writeError(w, http.StatusBadRequest, ErrorTypeInvalidRequest, err.Error())
		return
	}
	s.logger.ErrorContext(r.Context(), "result query failed", "error", err)
	writeError(w, http.StatusInternalServerError, ErrorTypeServerError, "result query failed")
}

// parseQuery reads results.Query filters from URL parameters. Times are
// RFC 3339.
func parseQuery(r *http.Request) (*results.Query, error) {
	v := r.URL.Query()
	q := &results.Query{
		SceneID:     v.Get("scene_id"),
		RunID:       v.Get("run_id"),
		Fingerprint: v.Get("fingerprint"),
		Status:      v.Get("status"),
		SortOrder:   v.Get("order"),
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"limit", &q.Limit},
		{"offset", &q.Offset},
	}
	for _, p := range ints {
		if s := v.Get(p.name); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil {
				return nil, fmt.Errorf("invalid %s: %w", p.name, err)
			}
			*p.dst = n
		}
	}

	if s := v.Get("rule_id"); s != "" {
		id, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("invalid rule_id: %w", err)
		}
		q.RuleID = &id
	}

	for name, dst := range map[string]**time.Time{"since": &q.StartTime, "until": &q.EndTime} {
		if s := v.Get(name); s != "" {
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				return nil, fmt.Errorf("invalid %s: %w", name, err)
			}
			*dst = &t
		}
	}

	return q, nil
}

// decode reads a JSON body into v, replying with an error and returning
// false when that fails.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrorTypeRequestTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return false
		}
		writeError(w, http.StatusBadRequest, ErrorTypeInvalidRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) storeRecord(r *http.Request, rec *results.Record) {
	if s.store == nil {
		return
	}
	err := s.store.Put(r.Context(), rec)
	s.metrics.RecordStored(s.backend, err)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "failed to store result", "scene_id", rec.SceneID, "error", err)
	}
}
