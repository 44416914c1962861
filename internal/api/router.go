package api

import (
	"net/http"

	"github.com/verityhq/verity/internal/auth"
	"github.com/verityhq/verity/internal/database"
	"github.com/verityhq/verity/internal/graph"
	"github.com/verityhq/verity/internal/service"
)

type Server struct {
	db      database.DB
	authSvc *auth.Service
	graph   graph.Store

	evidenceSvc  *service.EvidenceService
	hookSvc      *service.HookService
	knowledgeSvc *service.KnowledgeService
	projectSvc   *service.ProjectService

	mux     *http.ServeMux
	handler http.Handler
}

func NewServer(
	db database.DB,
	authSvc *auth.Service,
	g graph.Store,
	evidenceSvc *service.EvidenceService,
	hookSvc *service.HookService,
	knowledgeSvc *service.KnowledgeService,
	projectSvc *service.ProjectService,
) *Server {
	s := &Server{
		db:           db,
		authSvc:      authSvc,
		graph:        g,
		evidenceSvc:  evidenceSvc,
		hookSvc:      hookSvc,
		knowledgeSvc: knowledgeSvc,
		projectSvc:   projectSvc,
		mux:          http.NewServeMux(),
	}
	s.routes()

	var h http.Handler = s.mux
	h = auth.Middleware(s.authSvc)(h)
	h = requestMetricsMiddleware(getDefaultHTTPMetrics(), h)
	h = requestLoggingMiddleware(h)
	h = requestBodyLimitMiddleware(h)
	s.handler = h
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes() {
	// Auth
	s.mux.HandleFunc("POST /api/v1/auth/register", s.handleRegister)
	s.mux.HandleFunc("POST /api/v1/auth/login", s.handleLogin)
	s.mux.HandleFunc("GET /api/v1/user", s.requireAuth(s.handleGetCurrentUser))
	s.mux.HandleFunc("PATCH /api/v1/users/{id}/role", s.requireAuth(s.handleUpdateUserRole))

	// Evidence ledger
	s.mux.HandleFunc("POST /api/v1/evidence", s.requireAuth(s.handleSubmitEvidence))
	s.mux.HandleFunc("POST /api/v1/evidence/legacy", s.handleSubmitLegacyEvidence)
	s.mux.HandleFunc("GET /api/v1/evidence", s.requireAuth(s.handleSearchEvidence))
	s.mux.HandleFunc("GET /api/v1/evidence/{id}", s.requireAuth(s.handleGetEvidence))
	s.mux.HandleFunc("GET /api/v1/metrics/compliance", s.requireAuth(s.handleComplianceMetrics))

	// Hook configurations
	s.mux.HandleFunc("POST /api/v1/hooks", s.requireAuth(s.handlePublishHook))
	s.mux.HandleFunc("GET /api/v1/hooks", s.requireAuth(s.handleListHooks))
	s.mux.HandleFunc("GET /api/v1/hooks/{id}", s.requireAuth(s.handleGetHook))
	s.mux.HandleFunc("PATCH /api/v1/hooks/{id}", s.requireAuth(s.handleUpdateHookScript))
	s.mux.HandleFunc("POST /api/v1/hooks/{id}/enabled", s.requireAuth(s.handleSetHookEnabled))
	s.mux.HandleFunc("POST /api/v1/hooks/{id}/test", s.requireAuth(s.handleTestHook))
	s.mux.HandleFunc("GET /api/v1/hooks/{id}/tests", s.requireAuth(s.handleListHookTests))

	// Knowledge bridge
	s.mux.HandleFunc("POST /api/v1/knowledge/links", s.requireAuth(s.handleCreateKnowledgeLink))
	s.mux.HandleFunc("GET /api/v1/knowledge/links/{id}/resolve", s.requireAuth(s.handleResolveKnowledgeLink))
	s.mux.HandleFunc("GET /api/v1/knowledge/search", s.requireAuth(s.handleSearchKnowledge))
	s.mux.HandleFunc("POST /api/v1/knowledge/query", s.requireAuth(s.handleRawKnowledgeQuery))

	// Projects and environments
	s.mux.HandleFunc("POST /api/v1/projects", s.requireAuth(s.handleCreateProject))
	s.mux.HandleFunc("GET /api/v1/projects", s.requireAuth(s.handleListProjects))
	s.mux.HandleFunc("GET /api/v1/projects/{id}", s.requireAuth(s.handleGetProject))
	s.mux.HandleFunc("POST /api/v1/projects/{id}/environments", s.requireAuth(s.handleCreateEnvironment))
	s.mux.HandleFunc("GET /api/v1/projects/{id}/environments", s.requireAuth(s.handleListEnvironments))
	s.mux.HandleFunc("GET /api/v1/projects/{id}/knowledge", s.requireAuth(s.handleListProjectKnowledge))

	// Operational surface
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.Handle("GET /metrics", metricsHandler(nil))
}

func (s *Server) requireAuth(fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if auth.GetClaims(r.Context()) == nil {
			http.Error(w, `{"error":"authentication required"}`, http.StatusUnauthorized)
			return
		}
		fn(w, r)
	}
}
