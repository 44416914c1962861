package api

import (
	"net/http"
	"strings"

	"github.com/verityhq/verity/internal/auth"
	"github.com/verityhq/verity/internal/models"
	"github.com/verityhq/verity/internal/service"
)

func (s *Server) handleCreateKnowledgeLink(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.CallerScope(r.Context())
	var in service.LinkInput
	if !decodeJSON(w, r, &in) {
		return
	}
	link, err := s.knowledgeSvc.Link(r.Context(), caller, in)
	if err != nil {
		writeFault(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, link)
}

func (s *Server) handleListProjectKnowledge(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.CallerScope(r.Context())
	projectID, ok := parsePathID(w, r, "id", "project id")
	if !ok {
		return
	}
	var knowledgeType *models.KnowledgeType
	if raw := r.URL.Query().Get("type"); raw != "" {
		kt, err := models.ParseKnowledgeType(raw)
		if err != nil {
			jsonError(w, "invalid knowledge type", http.StatusBadRequest)
			return
		}
		knowledgeType = &kt
	}
	links, err := s.knowledgeSvc.ListForProject(r.Context(), caller, projectID, knowledgeType)
	if err != nil {
		writeFault(w, err)
		return
	}
	if links == nil {
		links = []models.KnowledgeLink{}
	}
	jsonResponse(w, http.StatusOK, links)
}

func (s *Server) handleResolveKnowledgeLink(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.CallerScope(r.Context())
	id, ok := parsePathID(w, r, "id", "link id")
	if !ok {
		return
	}
	resolved, err := s.knowledgeSvc.Resolve(r.Context(), caller, id)
	if err != nil {
		writeFault(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, resolved)
}

func (s *Server) handleSearchKnowledge(w http.ResponseWriter, r *http.Request) {
	limit, _ := parseLimitOffset(r, 20, 100)
	var collections []string
	for _, raw := range r.URL.Query()["collections"] {
		for _, name := range strings.Split(raw, ",") {
			if name = strings.TrimSpace(name); name != "" {
				collections = append(collections, name)
			}
		}
	}
	results, err := s.knowledgeSvc.Search(r.Context(), r.URL.Query().Get("q"), collections, limit)
	if err != nil {
		writeFault(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, results)
}

type rawQueryRequest struct {
	Query    string         `json:"query"`
	BindVars map[string]any `json:"bind_vars"`
}

func (s *Server) handleRawKnowledgeQuery(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.CallerScope(r.Context())
	var req rawQueryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rows, err := s.knowledgeSvc.RawQuery(r.Context(), caller, req.Query, req.BindVars)
	if err != nil {
		writeFault(w, err)
		return
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	jsonResponse(w, http.StatusOK, map[string]any{"rows": rows})
}
