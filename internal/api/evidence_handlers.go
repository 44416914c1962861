package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/verityhq/verity/internal/auth"
	"github.com/verityhq/verity/internal/database"
	"github.com/verityhq/verity/internal/fault"
	"github.com/verityhq/verity/internal/models"
	"github.com/verityhq/verity/internal/service"
)

func (s *Server) handleSubmitEvidence(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.CallerScope(r.Context())
	var in service.SubmitEvidenceInput
	if !decodeJSON(w, r, &in) {
		return
	}
	ev, err := s.evidenceSvc.Submit(r.Context(), caller, in)
	if err != nil {
		writeFault(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, ev)
}

func (s *Server) handleSubmitLegacyEvidence(w http.ResponseWriter, r *http.Request) {
	var in service.LegacyEvidenceInput
	if !decodeJSON(w, r, &in) {
		return
	}
	ev, err := s.evidenceSvc.SubmitLegacy(r.Context(), in)
	if err != nil {
		writeFault(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, ev)
}

func (s *Server) handleGetEvidence(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.CallerScope(r.Context())
	id, ok := parsePathID(w, r, "id", "evidence id")
	if !ok {
		return
	}
	out, err := s.evidenceSvc.GetContext(r.Context(), caller, id)
	if err != nil {
		writeFault(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, out)
}

// evidenceFilterFromQuery builds the search filter out of query
// parameters. Unknown visibility values are passed through untouched and
// fall closed to the team scope downstream; malformed timestamps are
// rejected so a typo cannot silently widen the window.
func evidenceFilterFromQuery(r *http.Request) (database.EvidenceFilter, error) {
	q := r.URL.Query()
	f := database.EvidenceFilter{
		Category:   q.Get("category"),
		Visibility: models.Visibility(q.Get("visibility")),
	}
	f.Limit, f.Offset = parseLimitOffset(r, database.DefaultSearchLimit, database.MaxSearchLimit)
	if raw := q.Get("user_id"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
			f.UserID = &id
		}
	}
	if raw := q.Get("project_id"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
			f.ProjectID = &id
		}
	}
	if raw := q.Get("from"); raw != "" {
		at, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return f, fault.Validationf("invalid from timestamp %q, want RFC 3339", raw)
		}
		f.FromDate = &at
	}
	if raw := q.Get("to"); raw != "" {
		at, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return f, fault.Validationf("invalid to timestamp %q, want RFC 3339", raw)
		}
		f.ToDate = &at
	}
	return f, nil
}

func (s *Server) handleSearchEvidence(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.CallerScope(r.Context())
	f, err := evidenceFilterFromQuery(r)
	if err != nil {
		writeFault(w, err)
		return
	}
	items, total, err := s.evidenceSvc.Search(r.Context(), caller, f)
	if err != nil {
		writeFault(w, err)
		return
	}
	if items == nil {
		items = []models.Evidence{}
	}
	f.Normalize()
	jsonResponse(w, http.StatusOK, pageEnvelope{
		Items:  items,
		Total:  total,
		Limit:  f.Limit,
		Offset: f.Offset,
	})
}

func (s *Server) handleComplianceMetrics(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.CallerScope(r.Context())
	f, err := evidenceFilterFromQuery(r)
	if err != nil {
		writeFault(w, err)
		return
	}
	m, err := s.evidenceSvc.Metrics(r.Context(), caller, f)
	if err != nil {
		writeFault(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, m)
}
