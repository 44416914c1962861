package api

import (
	"net/http"

	"github.com/verityhq/verity/internal/auth"
	"github.com/verityhq/verity/internal/models"
	"github.com/verityhq/verity/internal/service"
)

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.CallerScope(r.Context())
	var in service.CreateProjectInput
	if !decodeJSON(w, r, &in) {
		return
	}
	p, err := s.projectSvc.Create(r.Context(), caller, in)
	if err != nil {
		writeFault(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, p)
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.CallerScope(r.Context())
	projects, err := s.projectSvc.List(r.Context(), caller)
	if err != nil {
		writeFault(w, err)
		return
	}
	if projects == nil {
		projects = []models.Project{}
	}
	jsonResponse(w, http.StatusOK, projects)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.CallerScope(r.Context())
	id, ok := parsePathID(w, r, "id", "project id")
	if !ok {
		return
	}
	p, err := s.projectSvc.Get(r.Context(), caller, id)
	if err != nil {
		writeFault(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, p)
}

func (s *Server) handleCreateEnvironment(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.CallerScope(r.Context())
	projectID, ok := parsePathID(w, r, "id", "project id")
	if !ok {
		return
	}
	var in service.CreateEnvironmentInput
	if !decodeJSON(w, r, &in) {
		return
	}
	env, err := s.projectSvc.CreateEnvironment(r.Context(), caller, projectID, in)
	if err != nil {
		writeFault(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, env)
}

func (s *Server) handleListEnvironments(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.CallerScope(r.Context())
	projectID, ok := parsePathID(w, r, "id", "project id")
	if !ok {
		return
	}
	envs, err := s.projectSvc.ListEnvironments(r.Context(), caller, projectID)
	if err != nil {
		writeFault(w, err)
		return
	}
	if envs == nil {
		envs = []models.Environment{}
	}
	jsonResponse(w, http.StatusOK, envs)
}
