package api

import (
	"net/http"
	"strconv"

	"github.com/verityhq/verity/internal/auth"
	"github.com/verityhq/verity/internal/models"
	"github.com/verityhq/verity/internal/service"
)

func (s *Server) handlePublishHook(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.CallerScope(r.Context())
	var in service.PublishHookInput
	if !decodeJSON(w, r, &in) {
		return
	}
	h, err := s.hookSvc.Publish(r.Context(), caller, in)
	if err != nil {
		writeFault(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, h)
}

func (s *Server) handleListHooks(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.CallerScope(r.Context())
	q := r.URL.Query()

	var projectID *int64
	if raw := q.Get("project_id"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
			projectID = &id
		}
	}
	latestOnly := q.Get("all_versions") != "true"

	hooks, err := s.hookSvc.List(r.Context(), caller, projectID, q.Get("category"), latestOnly)
	if err != nil {
		writeFault(w, err)
		return
	}
	if hooks == nil {
		hooks = []models.HookConfiguration{}
	}
	jsonResponse(w, http.StatusOK, hooks)
}

func (s *Server) handleGetHook(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.CallerScope(r.Context())
	id, ok := parsePathID(w, r, "id", "hook id")
	if !ok {
		return
	}
	h, err := s.hookSvc.Get(r.Context(), caller, id)
	if err != nil {
		writeFault(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, h)
}

type updateHookRequest struct {
	ScriptContent string `json:"script_content"`
}

func (s *Server) handleUpdateHookScript(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.CallerScope(r.Context())
	id, ok := parsePathID(w, r, "id", "hook id")
	if !ok {
		return
	}
	var req updateHookRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h, err := s.hookSvc.UpdateScript(r.Context(), caller, id, req.ScriptContent)
	if err != nil {
		writeFault(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, h)
}

type setEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) handleSetHookEnabled(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.CallerScope(r.Context())
	id, ok := parsePathID(w, r, "id", "hook id")
	if !ok {
		return
	}
	var req setEnabledRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h, err := s.hookSvc.SetEnabled(r.Context(), caller, id, req.Enabled)
	if err != nil {
		writeFault(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, h)
}

type testHookRequest struct {
	Input string `json:"input"`
}

func (s *Server) handleTestHook(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.CallerScope(r.Context())
	id, ok := parsePathID(w, r, "id", "hook id")
	if !ok {
		return
	}
	var req testHookRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := s.hookSvc.Test(r.Context(), caller, id, req.Input)
	if err != nil {
		writeFault(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, result)
}

func (s *Server) handleListHookTests(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.CallerScope(r.Context())
	id, ok := parsePathID(w, r, "id", "hook id")
	if !ok {
		return
	}
	limit, _ := parseLimitOffset(r, 20, 100)
	results, err := s.hookSvc.TestResults(r.Context(), caller, id, limit)
	if err != nil {
		writeFault(w, err)
		return
	}
	if results == nil {
		results = []models.HookTestResult{}
	}
	jsonResponse(w, http.StatusOK, results)
}
