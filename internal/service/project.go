package service

import (
	"context"
	"strings"

	"github.com/verityhq/verity/internal/database"
	"github.com/verityhq/verity/internal/fault"
	"github.com/verityhq/verity/internal/models"
	"github.com/verityhq/verity/internal/scope"
)

type ProjectService struct {
	db database.DB
}

func NewProjectService(db database.DB) *ProjectService {
	return &ProjectService{db: db}
}

type CreateProjectInput struct {
	Name          string `json:"name"`
	RepoURL       string `json:"repo_url"`
	RepoProvider  string `json:"repo_provider"`
	DefaultBranch string `json:"default_branch"`
}

func (s *ProjectService) Create(ctx context.Context, caller scope.Context, in CreateProjectInput) (*models.Project, error) {
	if caller.TeamID == 0 {
		return nil, fault.Validationf("caller has no team")
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, fault.Validationf("name is required")
	}
	if strings.TrimSpace(in.RepoURL) == "" {
		return nil, fault.Validationf("repo_url is required")
	}
	p := &models.Project{
		Name:          in.Name,
		RepoURL:       in.RepoURL,
		RepoProvider:  in.RepoProvider,
		TeamID:        caller.TeamID,
		DefaultBranch: in.DefaultBranch,
	}
	if err := s.db.CreateProject(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *ProjectService) Get(ctx context.Context, caller scope.Context, id int64) (*models.Project, error) {
	p, err := s.db.GetProjectByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.TeamID != caller.TeamID {
		return nil, fault.NotFound("project")
	}
	return p, nil
}

func (s *ProjectService) List(ctx context.Context, caller scope.Context) ([]models.Project, error) {
	return s.db.ListTeamProjects(ctx, caller.TeamID)
}

type CreateEnvironmentInput struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Hostname string `json:"hostname"`
}

// CreateEnvironment registers an execution context under a project. Local
// environments are owned by the calling user; every other type is shared
// across the project.
func (s *ProjectService) CreateEnvironment(ctx context.Context, caller scope.Context, projectID int64, in CreateEnvironmentInput) (*models.Environment, error) {
	if _, err := s.Get(ctx, caller, projectID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, fault.Validationf("name is required")
	}
	envType := models.EnvironmentShared
	if in.Type != "" {
		t, err := models.ParseEnvironmentType(in.Type)
		if err != nil {
			return nil, fault.Validationf("invalid environment type %q", in.Type)
		}
		envType = t
	}
	env := &models.Environment{
		ProjectID: projectID,
		Name:      in.Name,
		Type:      envType,
		Hostname:  in.Hostname,
	}
	if envType == models.EnvironmentLocal {
		userID := caller.UserID
		env.UserID = &userID
	}
	if err := s.db.CreateEnvironment(ctx, env); err != nil {
		return nil, err
	}
	return env, nil
}

func (s *ProjectService) ListEnvironments(ctx context.Context, caller scope.Context, projectID int64) ([]models.Environment, error) {
	if _, err := s.Get(ctx, caller, projectID); err != nil {
		return nil, err
	}
	return s.db.ListEnvironments(ctx, projectID)
}
