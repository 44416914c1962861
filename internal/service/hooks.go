package service

import (
	"context"
	"strings"

	"github.com/verityhq/verity/internal/database"
	"github.com/verityhq/verity/internal/fault"
	"github.com/verityhq/verity/internal/models"
	"github.com/verityhq/verity/internal/sandbox"
	"github.com/verityhq/verity/internal/scope"
)

// Roles allowed to manage hook configurations. Reads are open to any
// team member.
var hookManagerRoles = []models.Role{models.RoleAdmin, models.RoleLead}

type HookService struct {
	db   database.DB
	exec sandbox.Executor
}

func NewHookService(db database.DB, exec sandbox.Executor) *HookService {
	return &HookService{db: db, exec: exec}
}

type PublishHookInput struct {
	Name          string `json:"name"`
	Category      string `json:"category"`
	HookType      string `json:"hook_type"`
	ScriptContent string `json:"script_content"`
	Scope         string `json:"scope"`
	ProjectID     *int64 `json:"project_id"`
	Enabled       *bool  `json:"enabled"`
}

// Publish creates the next version of a hook chain. The first publish of
// a name starts the chain at version 1.
func (s *HookService) Publish(ctx context.Context, caller scope.Context, in PublishHookInput) (*models.HookConfiguration, error) {
	if !scope.RoleAllows(hookManagerRoles, caller.Role) {
		return nil, fault.Authorization("hook management requires lead or admin role")
	}
	if caller.TeamID == 0 {
		return nil, fault.Validationf("caller has no team")
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, fault.Validationf("name is required")
	}
	if strings.TrimSpace(in.ScriptContent) == "" {
		return nil, fault.Validationf("script_content is required")
	}
	hookType := models.HookCustom
	if in.HookType != "" {
		t, err := models.ParseHookType(in.HookType)
		if err != nil {
			return nil, fault.Validationf("invalid hook_type %q", in.HookType)
		}
		hookType = t
	}
	hookScope := models.HookScopeTeam
	if in.Scope != "" {
		sc, err := models.ParseHookScope(in.Scope)
		if err != nil {
			return nil, fault.Validationf("invalid scope %q", in.Scope)
		}
		hookScope = sc
	}
	if hookScope == models.HookScopeProject && in.ProjectID == nil {
		return nil, fault.Validationf("project scope requires project_id")
	}
	enabled := true
	if in.Enabled != nil {
		enabled = *in.Enabled
	}
	h := &models.HookConfiguration{
		Name:          in.Name,
		Category:      in.Category,
		HookType:      hookType,
		ScriptContent: in.ScriptContent,
		Enabled:       enabled,
		TeamID:        caller.TeamID,
		ProjectID:     in.ProjectID,
		Scope:         hookScope,
		CreatedBy:     caller.UserID,
	}
	if err := s.db.CreateHookVersion(ctx, h); err != nil {
		return nil, err
	}
	return h, nil
}

func (s *HookService) Get(ctx context.Context, caller scope.Context, id int64) (*models.HookConfiguration, error) {
	h, err := s.db.GetHookByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if h.TeamID != caller.TeamID && h.Scope != models.HookScopeGlobal {
		return nil, fault.NotFound("hook")
	}
	return h, nil
}

// getOwned fetches a hook for management. Global hooks are readable by
// every team, but only the team that published a hook may change it.
func (s *HookService) getOwned(ctx context.Context, caller scope.Context, id int64) (*models.HookConfiguration, error) {
	h, err := s.Get(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if h.TeamID != caller.TeamID {
		return nil, fault.Authorization("hook belongs to another team")
	}
	return h, nil
}

func (s *HookService) List(ctx context.Context, caller scope.Context, projectID *int64, category string, latestOnly bool) ([]models.HookConfiguration, error) {
	return s.db.ListHooks(ctx, database.HookFilter{
		TeamID:     caller.TeamID,
		ProjectID:  projectID,
		Category:   category,
		LatestOnly: latestOnly,
	})
}

// UpdateScript corrects the script body of an existing version without
// bumping the version number. Behavioral changes should go through
// Publish instead.
func (s *HookService) UpdateScript(ctx context.Context, caller scope.Context, id int64, script string) (*models.HookConfiguration, error) {
	if !scope.RoleAllows(hookManagerRoles, caller.Role) {
		return nil, fault.Authorization("hook management requires lead or admin role")
	}
	if strings.TrimSpace(script) == "" {
		return nil, fault.Validationf("script_content is required")
	}
	if _, err := s.getOwned(ctx, caller, id); err != nil {
		return nil, err
	}
	if err := s.db.UpdateHookScript(ctx, id, script); err != nil {
		return nil, err
	}
	return s.db.GetHookByID(ctx, id)
}

// SetEnabled flips the enabled flag on one version. The version number
// and script are untouched.
func (s *HookService) SetEnabled(ctx context.Context, caller scope.Context, id int64, enabled bool) (*models.HookConfiguration, error) {
	if !scope.RoleAllows(hookManagerRoles, caller.Role) {
		return nil, fault.Authorization("hook management requires lead or admin role")
	}
	if _, err := s.getOwned(ctx, caller, id); err != nil {
		return nil, err
	}
	if err := s.db.SetHookEnabled(ctx, id, enabled); err != nil {
		return nil, err
	}
	return s.db.GetHookByID(ctx, id)
}

// Test dry-runs a hook script in the sandbox and appends the outcome to
// the hook's audit trail. Disabled hooks can still be tested.
func (s *HookService) Test(ctx context.Context, caller scope.Context, id int64, input string) (*models.HookTestResult, error) {
	h, err := s.Get(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	res, err := s.exec.Run(ctx, h.ScriptContent, input)
	if err != nil {
		return nil, fault.Wrap(fault.KindUnavailable, "hook execution failed", err)
	}
	result := &models.HookTestResult{
		HookID:          h.ID,
		UserID:          caller.UserID,
		TestInput:       input,
		TestOutput:      res.Output,
		ExitCode:        res.ExitCode,
		Passed:          res.ExitCode == 0 && !res.TimedOut,
		ExecutionTimeMS: res.Duration.Milliseconds(),
	}
	if err := s.db.CreateHookTestResult(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *HookService) TestResults(ctx context.Context, caller scope.Context, hookID int64, limit int) ([]models.HookTestResult, error) {
	if _, err := s.Get(ctx, caller, hookID); err != nil {
		return nil, err
	}
	return s.db.ListHookTestResults(ctx, hookID, limit)
}
