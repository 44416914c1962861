package service

import (
	"context"
	"strings"

	"github.com/verityhq/verity/internal/database"
	"github.com/verityhq/verity/internal/fault"
	"github.com/verityhq/verity/internal/graph"
	"github.com/verityhq/verity/internal/models"
	"github.com/verityhq/verity/internal/scope"
)

var rawQueryRoles = []models.Role{models.RoleAdmin, models.RoleLead}

// KnowledgeService bridges the relational link table and the graph-side
// knowledge base. Links are written relational-first; the graph is
// consulted on read and never blocks a write.
type KnowledgeService struct {
	db    database.DB
	graph graph.Store
}

func NewKnowledgeService(db database.DB, g graph.Store) *KnowledgeService {
	return &KnowledgeService{db: db, graph: g}
}

type LinkInput struct {
	ProjectID     int64  `json:"project_id"`
	KnowledgeType string `json:"knowledge_type"`
	KnowledgeID   string `json:"knowledge_id"`
	Scope         string `json:"scope"`
}

// Link attaches a knowledge document to a project. Linking the same
// document twice returns the existing link unchanged.
func (s *KnowledgeService) Link(ctx context.Context, caller scope.Context, in LinkInput) (*models.KnowledgeLink, error) {
	kt, err := models.ParseKnowledgeType(in.KnowledgeType)
	if err != nil {
		return nil, fault.Validationf("invalid knowledge_type %q", in.KnowledgeType)
	}
	if strings.TrimSpace(in.KnowledgeID) == "" {
		return nil, fault.Validationf("knowledge_id is required")
	}
	ks := models.KnowledgeScopeProject
	if in.Scope != "" {
		parsed, err := models.ParseKnowledgeScope(in.Scope)
		if err != nil {
			return nil, fault.Validationf("invalid scope %q", in.Scope)
		}
		ks = parsed
	}
	if err := s.checkProjectAccess(ctx, caller, in.ProjectID); err != nil {
		return nil, err
	}

	link := &models.KnowledgeLink{
		ProjectID:     in.ProjectID,
		KnowledgeType: kt,
		KnowledgeID:   in.KnowledgeID,
		Scope:         ks,
		CreatedBy:     caller.UserID,
	}
	err = s.db.CreateKnowledgeLink(ctx, link)
	if fault.Is(err, fault.KindConflict) {
		return s.db.GetKnowledgeLink(ctx, in.ProjectID, kt, in.KnowledgeID)
	}
	if err != nil {
		return nil, err
	}
	return link, nil
}

func (s *KnowledgeService) ListForProject(ctx context.Context, caller scope.Context, projectID int64, knowledgeType *models.KnowledgeType) ([]models.KnowledgeLink, error) {
	if err := s.checkProjectAccess(ctx, caller, projectID); err != nil {
		return nil, err
	}
	return s.db.ListKnowledgeLinks(ctx, projectID, knowledgeType)
}

// ResolvedLink is a link joined with its graph-side document. Orphaned is
// set when the document no longer exists; the link itself survives.
type ResolvedLink struct {
	Link     *models.KnowledgeLink `json:"link"`
	Document *graph.Document       `json:"document,omitempty"`
	Orphaned bool                  `json:"orphaned"`
}

// Resolve fetches the document a link points at. A vanished document is
// reported as an orphan, not an error; an unreachable graph store is.
func (s *KnowledgeService) Resolve(ctx context.Context, caller scope.Context, linkID int64) (*ResolvedLink, error) {
	link, err := s.db.GetKnowledgeLinkByID(ctx, linkID)
	if err != nil {
		return nil, err
	}
	if err := s.checkProjectAccess(ctx, caller, link.ProjectID); err != nil {
		return nil, err
	}
	doc, err := s.graph.GetDocument(ctx, link.KnowledgeType, link.KnowledgeID)
	switch {
	case fault.Is(err, fault.KindNotFound):
		return &ResolvedLink{Link: link, Orphaned: true}, nil
	case err != nil:
		return nil, err
	}
	return &ResolvedLink{Link: link, Document: doc}, nil
}

// Search scans the named knowledge collections, or all of them when none
// are given.
func (s *KnowledgeService) Search(ctx context.Context, term string, collections []string, limit int) (*graph.SearchResults, error) {
	if strings.TrimSpace(term) == "" {
		return nil, fault.Validationf("search term is required")
	}
	for _, c := range collections {
		if !graph.KnownCollection(c) {
			return nil, fault.Validationf("unknown collection %q", c)
		}
	}
	return s.graph.Search(ctx, term, collections, limit)
}

// RawQuery exposes the graph query language to privileged callers only.
func (s *KnowledgeService) RawQuery(ctx context.Context, caller scope.Context, query string, bindVars map[string]any) ([]map[string]any, error) {
	if !scope.RoleAllows(rawQueryRoles, caller.Role) {
		return nil, fault.Authorization("raw knowledge queries require lead or admin role")
	}
	if strings.TrimSpace(query) == "" {
		return nil, fault.Validationf("query is required")
	}
	return s.graph.RawQuery(ctx, query, bindVars)
}

// checkProjectAccess confirms the project exists and belongs to the
// caller's team. Foreign projects read as absent.
func (s *KnowledgeService) checkProjectAccess(ctx context.Context, caller scope.Context, projectID int64) error {
	project, err := s.db.GetProjectByID(ctx, projectID)
	if err != nil {
		return err
	}
	if project.TeamID != caller.TeamID {
		return fault.NotFound("project")
	}
	return nil
}
