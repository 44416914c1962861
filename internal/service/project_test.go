package service

import (
	"context"
	"testing"

	"github.com/verityhq/verity/internal/fault"
	"github.com/verityhq/verity/internal/models"
)

func TestCreateProject(t *testing.T) {
	env := newTestEnv(t)
	svc := NewProjectService(env.db)
	ctx := context.Background()

	p, err := svc.Create(ctx, env.devScope(), CreateProjectInput{
		Name: "billing", RepoURL: "https://git.example.com/billing.git",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.TeamID != env.team.ID {
		t.Fatalf("team = %d, want %d", p.TeamID, env.team.ID)
	}
	if p.DefaultBranch != "main" {
		t.Fatalf("default branch = %q", p.DefaultBranch)
	}

	_, err = svc.Create(ctx, env.devScope(), CreateProjectInput{
		Name: "billing-dup", RepoURL: "https://git.example.com/billing.git",
	})
	if !fault.Is(err, fault.KindConflict) {
		t.Fatalf("duplicate repo: expected conflict, got %v", err)
	}

	orphan := env.devScope()
	orphan.TeamID = 0
	if _, err := svc.Create(ctx, orphan, CreateProjectInput{Name: "x", RepoURL: "y"}); !fault.Is(err, fault.KindValidation) {
		t.Fatalf("teamless create: expected validation error, got %v", err)
	}
}

func TestCreateEnvironmentOwnership(t *testing.T) {
	env := newTestEnv(t)
	svc := NewProjectService(env.db)
	ctx := context.Background()

	shared, err := svc.CreateEnvironment(ctx, env.devScope(), env.project.ID, CreateEnvironmentInput{
		Name: "staging",
	})
	if err != nil {
		t.Fatalf("create shared: %v", err)
	}
	if shared.Type != models.EnvironmentShared || shared.UserID != nil {
		t.Fatalf("shared env = %+v", shared)
	}

	local, err := svc.CreateEnvironment(ctx, env.devScope(), env.project.ID, CreateEnvironmentInput{
		Name: "laptop", Type: "local",
	})
	if err != nil {
		t.Fatalf("create local: %v", err)
	}
	if local.UserID == nil || *local.UserID != env.user.ID {
		t.Fatalf("local env not owned by caller: %+v", local)
	}

	// The same local name for a second user does not collide.
	other := env.leadScope()
	if _, err := svc.CreateEnvironment(ctx, other, env.project.ID, CreateEnvironmentInput{
		Name: "laptop", Type: "local",
	}); err != nil {
		t.Fatalf("second user local env: %v", err)
	}

	_, err = svc.CreateEnvironment(ctx, env.devScope(), env.project.ID, CreateEnvironmentInput{Name: "staging"})
	if !fault.Is(err, fault.KindConflict) {
		t.Fatalf("duplicate shared: expected conflict, got %v", err)
	}

	_, err = svc.CreateEnvironment(ctx, env.devScope(), env.project.ID, CreateEnvironmentInput{Name: "qa", Type: "cloudy"})
	if !fault.Is(err, fault.KindValidation) {
		t.Fatalf("bad type: expected validation error, got %v", err)
	}

	envs, err := svc.ListEnvironments(ctx, env.devScope(), env.project.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(envs) != 3 {
		t.Fatalf("environments = %d, want 3", len(envs))
	}
}

func TestProjectHiddenAcrossTeams(t *testing.T) {
	env := newTestEnv(t)
	svc := NewProjectService(env.db)
	ctx := context.Background()

	foreign := env.devScope()
	foreign.TeamID = env.team.ID + 100
	if _, err := svc.Get(ctx, foreign, env.project.ID); !fault.Is(err, fault.KindNotFound) {
		t.Fatalf("foreign get: expected not found, got %v", err)
	}
	if _, err := svc.ListEnvironments(ctx, foreign, env.project.ID); !fault.Is(err, fault.KindNotFound) {
		t.Fatalf("foreign env list: expected not found, got %v", err)
	}
}
