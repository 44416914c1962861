package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/verityhq/verity/internal/database"
	"github.com/verityhq/verity/internal/fault"
	"github.com/verityhq/verity/internal/graph"
	"github.com/verityhq/verity/internal/models"
	"github.com/verityhq/verity/internal/scope"
)

// EvidenceService owns the append-only verification ledger. Rows are
// written once and never touched again.
type EvidenceService struct {
	db    database.DB
	graph graph.Store
}

func NewEvidenceService(db database.DB, g graph.Store) *EvidenceService {
	return &EvidenceService{db: db, graph: g}
}

type SubmitEvidenceInput struct {
	TaskID             string          `json:"task_id"`
	TaskCategory       string          `json:"task_category"`
	EvidenceType       string          `json:"evidence_type"`
	EvidenceData       json.RawMessage `json:"evidence_data"`
	PromptText         string          `json:"prompt_text"`
	CompletionText     string          `json:"completion_text"`
	ConversationID     string          `json:"conversation_id"`
	KnowledgePatternID string          `json:"knowledge_pattern_id"`
	CodingStandardID   string          `json:"coding_standard_id"`
	RequirementID      string          `json:"requirement_id"`
	ProjectID          *int64          `json:"project_id"`
	EnvironmentID      *int64          `json:"environment_id"`
	RepoBranch         string          `json:"repo_branch"`
	CommitSHA          string          `json:"commit_sha"`
	GitRemote          string          `json:"git_remote"`
	Visibility         string          `json:"visibility"`
}

func (in *SubmitEvidenceInput) validate() (models.Visibility, error) {
	if strings.TrimSpace(in.TaskCategory) == "" {
		return "", fault.Validationf("task_category is required")
	}
	if strings.TrimSpace(in.EvidenceType) == "" {
		return "", fault.Validationf("evidence_type is required")
	}
	if len(in.EvidenceData) == 0 || !json.Valid(in.EvidenceData) {
		return "", fault.Validationf("evidence_data must be a JSON document")
	}
	if in.Visibility == "" {
		return models.VisibilityTeam, nil
	}
	vis, err := models.ParseVisibility(in.Visibility)
	if err != nil {
		return "", fault.Validationf("invalid visibility %q", in.Visibility)
	}
	return vis, nil
}

// Submit records one verification outcome attributed to the caller.
func (s *EvidenceService) Submit(ctx context.Context, caller scope.Context, in SubmitEvidenceInput) (*models.Evidence, error) {
	vis, err := in.validate()
	if err != nil {
		return nil, err
	}
	ev := &models.Evidence{
		TaskID:             in.TaskID,
		UserID:             &caller.UserID,
		TaskCategory:       in.TaskCategory,
		EvidenceType:       in.EvidenceType,
		EvidenceData:       in.EvidenceData,
		PromptText:         in.PromptText,
		CompletionText:     in.CompletionText,
		ConversationID:     in.ConversationID,
		KnowledgePatternID: in.KnowledgePatternID,
		CodingStandardID:   in.CodingStandardID,
		RequirementID:      in.RequirementID,
		ProjectID:          in.ProjectID,
		EnvironmentID:      in.EnvironmentID,
		RepoBranch:         in.RepoBranch,
		CommitSHA:          in.CommitSHA,
		GitRemote:          in.GitRemote,
		Visibility:         vis,
	}
	if caller.TeamID != 0 {
		teamID := caller.TeamID
		ev.TeamID = &teamID
	}
	if err := s.db.CreateEvidence(ctx, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

type LegacyEvidenceInput struct {
	SubmitEvidenceInput
	ReportedBy      string `json:"reported_by"`
	ReportedProject string `json:"reported_project"`
}

// SubmitLegacy accepts unauthenticated reports from older collectors.
// Identity strings are stored verbatim; no user or project is resolved.
func (s *EvidenceService) SubmitLegacy(ctx context.Context, in LegacyEvidenceInput) (*models.Evidence, error) {
	vis, err := in.validate()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.ReportedBy) == "" {
		return nil, fault.Validationf("reported_by is required")
	}
	ev := &models.Evidence{
		TaskID:             in.TaskID,
		TaskCategory:       in.TaskCategory,
		EvidenceType:       in.EvidenceType,
		EvidenceData:       in.EvidenceData,
		PromptText:         in.PromptText,
		CompletionText:     in.CompletionText,
		ConversationID:     in.ConversationID,
		KnowledgePatternID: in.KnowledgePatternID,
		CodingStandardID:   in.CodingStandardID,
		RequirementID:      in.RequirementID,
		RepoBranch:         in.RepoBranch,
		CommitSHA:          in.CommitSHA,
		GitRemote:          in.GitRemote,
		ReportedBy:         in.ReportedBy,
		ReportedProject:    in.ReportedProject,
		Visibility:         vis,
	}
	if err := s.db.CreateEvidence(ctx, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// EvidenceContext is one ledger row plus whatever referenced knowledge
// documents could be fetched. Degraded lists references that exist on the
// row but could not be resolved right now.
type EvidenceContext struct {
	Evidence  *models.Evidence `json:"evidence"`
	Knowledge []graph.Document `json:"knowledge,omitempty"`
	Degraded  []string         `json:"degraded,omitempty"`
}

// GetContext fetches one evidence row the caller may see and enriches it
// with its knowledge references, best effort.
func (s *EvidenceService) GetContext(ctx context.Context, caller scope.Context, id int64) (*EvidenceContext, error) {
	ev, err := s.db.GetEvidenceByID(ctx, id)
	if err != nil {
		return nil, err
	}
	ok, err := s.callerCanRead(ctx, caller, ev)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Out-of-scope rows look exactly like missing rows.
		return nil, fault.NotFound("evidence")
	}

	out := &EvidenceContext{Evidence: ev}
	refs := []struct {
		t   models.KnowledgeType
		key string
	}{
		{models.KnowledgePattern, ev.KnowledgePatternID},
		{models.KnowledgeStandard, ev.CodingStandardID},
		{models.KnowledgeRequirement, ev.RequirementID},
	}
	for _, ref := range refs {
		if ref.key == "" {
			continue
		}
		doc, err := s.graph.GetDocument(ctx, ref.t, ref.key)
		if err != nil {
			out.Degraded = append(out.Degraded, ref.key)
			continue
		}
		out.Knowledge = append(out.Knowledge, *doc)
	}
	return out, nil
}

// callerCanRead answers whether any visibility scope available to the
// caller reaches this row.
func (s *EvidenceService) callerCanRead(ctx context.Context, caller scope.Context, ev *models.Evidence) (bool, error) {
	if ev.Visibility == models.VisibilityPublic {
		return true, nil
	}
	if ev.UserID != nil && *ev.UserID == caller.UserID {
		return true, nil
	}
	if ev.TeamID == nil {
		return false, nil
	}
	if *ev.TeamID == caller.TeamID {
		return true, nil
	}
	if caller.TeamID == 0 {
		return false, nil
	}
	mine, err := s.db.GetTeamByID(ctx, caller.TeamID)
	if err != nil {
		return false, err
	}
	theirs, err := s.db.GetTeamByID(ctx, *ev.TeamID)
	if err != nil {
		if fault.Is(err, fault.KindNotFound) {
			return false, nil
		}
		return false, err
	}
	return mine.Organization != "" && mine.Organization == theirs.Organization, nil
}

// Search runs a scoped, paginated ledger read and returns the page plus
// the total match count.
func (s *EvidenceService) Search(ctx context.Context, caller scope.Context, f database.EvidenceFilter) ([]models.Evidence, int64, error) {
	return s.db.SearchEvidence(ctx, caller, f)
}

func (s *EvidenceService) Metrics(ctx context.Context, caller scope.Context, f database.EvidenceFilter) (*database.ComplianceMetrics, error) {
	return s.db.ComplianceMetrics(ctx, caller, f)
}
