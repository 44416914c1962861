package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/verityhq/verity/internal/database"
	"github.com/verityhq/verity/internal/fault"
	"github.com/verityhq/verity/internal/models"
	"github.com/verityhq/verity/internal/scope"
)

func TestSubmitValidation(t *testing.T) {
	env := newTestEnv(t)
	svc := NewEvidenceService(env.db, env.graph)
	ctx := context.Background()

	cases := []struct {
		name string
		in   SubmitEvidenceInput
	}{
		{"missing category", SubmitEvidenceInput{EvidenceType: "test_run", EvidenceData: json.RawMessage(`{}`)}},
		{"missing type", SubmitEvidenceInput{TaskCategory: "refactor", EvidenceData: json.RawMessage(`{}`)}},
		{"missing data", SubmitEvidenceInput{TaskCategory: "refactor", EvidenceType: "test_run"}},
		{"invalid json", SubmitEvidenceInput{TaskCategory: "refactor", EvidenceType: "test_run", EvidenceData: json.RawMessage(`{`)}},
		{"bad visibility", SubmitEvidenceInput{TaskCategory: "refactor", EvidenceType: "test_run", EvidenceData: json.RawMessage(`{}`), Visibility: "everyone"}},
	}
	for _, tc := range cases {
		if _, err := svc.Submit(ctx, env.devScope(), tc.in); !fault.Is(err, fault.KindValidation) {
			t.Errorf("%s: expected validation error, got %v", tc.name, err)
		}
	}
}

func TestSubmitStampsCaller(t *testing.T) {
	env := newTestEnv(t)
	svc := NewEvidenceService(env.db, env.graph)

	ev, err := svc.Submit(context.Background(), env.devScope(), SubmitEvidenceInput{
		TaskCategory: "refactor",
		EvidenceType: "test_run",
		EvidenceData: json.RawMessage(`{"passed":true}`),
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if ev.ID == 0 {
		t.Fatal("evidence not persisted")
	}
	if ev.UserID == nil || *ev.UserID != env.user.ID {
		t.Fatalf("user not stamped: %v", ev.UserID)
	}
	if ev.TeamID == nil || *ev.TeamID != env.team.ID {
		t.Fatalf("team not stamped: %v", ev.TeamID)
	}
	if ev.Visibility != models.VisibilityTeam {
		t.Fatalf("default visibility = %q, want team", ev.Visibility)
	}
	if ev.CreatedAt.IsZero() {
		t.Fatal("created_at not set")
	}
}

func TestSubmitLegacyKeepsRawIdentity(t *testing.T) {
	env := newTestEnv(t)
	svc := NewEvidenceService(env.db, env.graph)
	ctx := context.Background()

	_, err := svc.SubmitLegacy(ctx, LegacyEvidenceInput{
		SubmitEvidenceInput: SubmitEvidenceInput{
			TaskCategory: "bugfix",
			EvidenceType: "lint",
			EvidenceData: json.RawMessage(`{}`),
		},
	})
	if !fault.Is(err, fault.KindValidation) {
		t.Fatalf("missing reported_by: expected validation error, got %v", err)
	}

	ev, err := svc.SubmitLegacy(ctx, LegacyEvidenceInput{
		SubmitEvidenceInput: SubmitEvidenceInput{
			TaskCategory: "bugfix",
			EvidenceType: "lint",
			EvidenceData: json.RawMessage(`{}`),
		},
		ReportedBy:      "ci-bot@build-7",
		ReportedProject: "legacy/api",
	})
	if err != nil {
		t.Fatalf("submit legacy: %v", err)
	}
	if ev.UserID != nil || ev.TeamID != nil {
		t.Fatal("legacy evidence must not resolve identities")
	}
	got, err := env.db.GetEvidenceByID(ctx, ev.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ReportedBy != "ci-bot@build-7" || got.ReportedProject != "legacy/api" {
		t.Fatalf("raw identity not stored verbatim: %q %q", got.ReportedBy, got.ReportedProject)
	}
}

func TestGetContextScopeDenied(t *testing.T) {
	env := newTestEnv(t)
	svc := NewEvidenceService(env.db, env.graph)
	ctx := context.Background()

	other := &models.Team{Name: "core", Organization: "globex"}
	if err := env.db.CreateTeam(ctx, other); err != nil {
		t.Fatalf("create team: %v", err)
	}
	outsider := &models.User{Username: "mallory", Email: "m@example.com", Role: models.RoleDeveloper, TeamID: &other.ID}
	if err := env.db.CreateUser(ctx, outsider); err != nil {
		t.Fatalf("create user: %v", err)
	}

	ev, err := svc.Submit(ctx, env.devScope(), SubmitEvidenceInput{
		TaskCategory: "refactor", EvidenceType: "test_run", EvidenceData: json.RawMessage(`{}`),
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	foreign := scope.Context{UserID: outsider.ID, TeamID: other.ID, Role: models.RoleDeveloper}
	if _, err := svc.GetContext(ctx, foreign, ev.ID); !fault.Is(err, fault.KindNotFound) {
		t.Fatalf("foreign org read: expected not found, got %v", err)
	}

	// Same organization, different team: organization scope reaches it.
	sibling := &models.Team{Name: "infra", Organization: "acme"}
	if err := env.db.CreateTeam(ctx, sibling); err != nil {
		t.Fatalf("create sibling team: %v", err)
	}
	colleague := scope.Context{UserID: 999, TeamID: sibling.ID, Role: models.RoleDeveloper}
	if _, err := svc.GetContext(ctx, colleague, ev.ID); err != nil {
		t.Fatalf("same-org read: %v", err)
	}
}

func TestGetContextKnowledgeEnrichment(t *testing.T) {
	env := newTestEnv(t)
	svc := NewEvidenceService(env.db, env.graph)
	ctx := context.Background()

	env.graph.put(models.KnowledgePattern, "pat-1", map[string]any{"title": "retry with backoff"})

	ev, err := svc.Submit(ctx, env.devScope(), SubmitEvidenceInput{
		TaskCategory:       "refactor",
		EvidenceType:       "test_run",
		EvidenceData:       json.RawMessage(`{}`),
		KnowledgePatternID: "pat-1",
		CodingStandardID:   "std-missing",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	out, err := svc.GetContext(ctx, env.devScope(), ev.ID)
	if err != nil {
		t.Fatalf("get context: %v", err)
	}
	if len(out.Knowledge) != 1 || out.Knowledge[0].Key != "pat-1" {
		t.Fatalf("knowledge = %+v", out.Knowledge)
	}
	if len(out.Degraded) != 1 || out.Degraded[0] != "std-missing" {
		t.Fatalf("degraded = %v", out.Degraded)
	}
}

func TestSearchDelegatesScope(t *testing.T) {
	env := newTestEnv(t)
	svc := NewEvidenceService(env.db, env.graph)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Submit(ctx, env.devScope(), SubmitEvidenceInput{
			TaskCategory: "refactor", EvidenceType: "test_run", EvidenceData: json.RawMessage(`{}`),
		}); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	items, total, err := svc.Search(ctx, env.devScope(), database.EvidenceFilter{Visibility: models.VisibilityTeam})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if total != 3 || len(items) != 3 {
		t.Fatalf("got %d items, total %d", len(items), total)
	}
}
