package api

import (
	"net/http"
	"time"
)

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Database  string    `json:"database"`
	Graph     string    `json:"graph"`
}

// handleHealth reports component liveness. The graph store being down
// degrades the response but the relational side staying up keeps the
// ledger writable, so only a database failure is fatal.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Database:  "ok",
		Graph:     "ok",
	}
	status := http.StatusOK

	if err := s.db.Ping(r.Context()); err != nil {
		resp.Database = "unreachable"
		resp.Status = "down"
		status = http.StatusServiceUnavailable
	}
	if err := s.graph.Health(r.Context()); err != nil {
		resp.Graph = "unreachable"
		if resp.Status == "ok" {
			resp.Status = "degraded"
		}
	}
	jsonResponse(w, status, resp)
}
