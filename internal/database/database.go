package database

import (
	"context"
	"time"

	"github.com/verityhq/verity/internal/models"
	"github.com/verityhq/verity/internal/scope"
)

// DB defines the relational data access interface. Implemented by SQLite
// and PostgreSQL backends. Uniqueness invariants rely on the store's own
// constraint enforcement, surfaced as fault.KindConflict.
type DB interface {
	Close() error
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error

	// Teams
	CreateTeam(ctx context.Context, team *models.Team) error
	GetTeamByID(ctx context.Context, id int64) (*models.Team, error)
	GetTeamByName(ctx context.Context, organization, name string) (*models.Team, error)

	// Users
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	UpdateUserLastLogin(ctx context.Context, id int64, at time.Time) error
	UpdateUserRole(ctx context.Context, id int64, role models.Role) error

	// Projects
	CreateProject(ctx context.Context, project *models.Project) error
	GetProjectByID(ctx context.Context, id int64) (*models.Project, error)
	ListTeamProjects(ctx context.Context, teamID int64) ([]models.Project, error)
	DeleteProject(ctx context.Context, id int64) error

	// Environments
	CreateEnvironment(ctx context.Context, env *models.Environment) error
	ListEnvironments(ctx context.Context, projectID int64) ([]models.Environment, error)

	// Evidence (append-only; no update or delete path exists)
	CreateEvidence(ctx context.Context, ev *models.Evidence) error
	GetEvidenceByID(ctx context.Context, id int64) (*models.Evidence, error)
	SearchEvidence(ctx context.Context, caller scope.Context, f EvidenceFilter) ([]models.Evidence, int64, error)
	ComplianceMetrics(ctx context.Context, caller scope.Context, f EvidenceFilter) (*ComplianceMetrics, error)

	// Hook configurations
	CreateHookVersion(ctx context.Context, hook *models.HookConfiguration) error
	GetHookByID(ctx context.Context, id int64) (*models.HookConfiguration, error)
	ListHooks(ctx context.Context, f HookFilter) ([]models.HookConfiguration, error)
	UpdateHookScript(ctx context.Context, id int64, scriptContent string) error
	SetHookEnabled(ctx context.Context, id int64, enabled bool) error
	CreateHookTestResult(ctx context.Context, result *models.HookTestResult) error
	ListHookTestResults(ctx context.Context, hookID int64, limit int) ([]models.HookTestResult, error)

	// Knowledge links
	CreateKnowledgeLink(ctx context.Context, link *models.KnowledgeLink) error
	GetKnowledgeLink(ctx context.Context, projectID int64, knowledgeType models.KnowledgeType, knowledgeID string) (*models.KnowledgeLink, error)
	GetKnowledgeLinkByID(ctx context.Context, id int64) (*models.KnowledgeLink, error)
	ListKnowledgeLinks(ctx context.Context, projectID int64, knowledgeType *models.KnowledgeType) ([]models.KnowledgeLink, error)
	ListKnowledgeLinksForSweep(ctx context.Context, checkedBefore time.Time, limit int) ([]models.KnowledgeLink, error)
	MarkKnowledgeLinkChecked(ctx context.Context, id int64, orphaned bool, checkedAt time.Time) error
}

// EvidenceFilter narrows an evidence search. Visibility selects the scope
// predicate applied before any other condition; the remaining fields may
// only narrow the result further.
type EvidenceFilter struct {
	Category   string
	UserID     *int64
	ProjectID  *int64
	FromDate   *time.Time
	ToDate     *time.Time
	Visibility models.Visibility
	Limit      int
	Offset     int
}

const (
	DefaultSearchLimit = 100
	MaxSearchLimit     = 100
)

// Normalize clamps pagination to the documented defaults.
func (f *EvidenceFilter) Normalize() {
	if f.Limit <= 0 || f.Limit > MaxSearchLimit {
		f.Limit = DefaultSearchLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

type HookFilter struct {
	TeamID    int64
	ProjectID *int64
	Category  string
	// LatestOnly keeps only the highest version per hook name.
	LatestOnly bool
}

// ComplianceMetrics aggregates evidence counts under a scoped filter.
type ComplianceMetrics struct {
	TotalEvidence int64            `json:"total_evidence"`
	ByCategory    map[string]int64 `json:"by_category"`
	ByType        map[string]int64 `json:"by_type"`
	UniqueUsers   int64            `json:"unique_users"`
	OldestAt      *time.Time       `json:"oldest_at,omitempty"`
	NewestAt      *time.Time       `json:"newest_at,omitempty"`
}
