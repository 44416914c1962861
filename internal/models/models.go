package models

import (
	"encoding/json"
	"time"
)

type Team struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Organization string          `json:"organization"`
	Settings     json.RawMessage `json:"settings,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	TeamID       *int64     `json:"team_id,omitempty"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

type Project struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	RepoURL       string          `json:"repo_url"`
	RepoProvider  string          `json:"repo_provider,omitempty"`
	TeamID        int64           `json:"team_id"`
	DefaultBranch string          `json:"default_branch"`
	Settings      json.RawMessage `json:"settings,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

type Environment struct {
	ID        int64           `json:"id"`
	ProjectID int64           `json:"project_id"`
	Name      string          `json:"name"`
	Type      EnvironmentType `json:"type"`
	Hostname  string          `json:"hostname,omitempty"`
	UserID    *int64          `json:"user_id,omitempty"` // set only for local environments
	CreatedAt time.Time       `json:"created_at"`
}

// Evidence is an append-only verification outcome. Rows are never updated
// or deleted; corrections are new rows.
type Evidence struct {
	ID             int64           `json:"id"`
	TaskID         string          `json:"task_id,omitempty"`
	UserID         *int64          `json:"user_id,omitempty"`
	TeamID         *int64          `json:"team_id,omitempty"`
	TaskCategory   string          `json:"task_category"`
	EvidenceType   string          `json:"evidence_type"`
	EvidenceData   json.RawMessage `json:"evidence_data"`
	PromptText     string          `json:"prompt_text,omitempty"`
	CompletionText string          `json:"completion_text,omitempty"`
	ConversationID string          `json:"conversation_id,omitempty"`

	// Loose references into the graph store; opaque keys, never enforced.
	KnowledgePatternID string `json:"knowledge_pattern_id,omitempty"`
	CodingStandardID   string `json:"coding_standard_id,omitempty"`
	RequirementID      string `json:"requirement_id,omitempty"`

	ProjectID     *int64 `json:"project_id,omitempty"`
	EnvironmentID *int64 `json:"environment_id,omitempty"`
	RepoBranch    string `json:"repo_branch,omitempty"`
	CommitSHA     string `json:"commit_sha,omitempty"`
	GitRemote     string `json:"git_remote,omitempty"`

	// Raw identity strings from the unauthenticated legacy ingest path,
	// stored verbatim with no existence check.
	ReportedBy      string `json:"reported_by,omitempty"`
	ReportedProject string `json:"reported_project,omitempty"`

	Visibility Visibility `json:"visibility"`
	CreatedAt  time.Time  `json:"created_at"`
}

type HookConfiguration struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Category      string    `json:"category,omitempty"`
	HookType      HookType  `json:"hook_type"`
	ScriptContent string    `json:"script_content"`
	Enabled       bool      `json:"enabled"`
	TeamID        int64     `json:"team_id"`
	ProjectID     *int64    `json:"project_id,omitempty"`
	Scope         HookScope `json:"scope"`
	Version       int       `json:"version"`
	CreatedBy     int64     `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// HookTestResult is an append-only audit record of one dry-run execution.
type HookTestResult struct {
	ID              int64     `json:"id"`
	HookID          int64     `json:"hook_id"`
	UserID          int64     `json:"user_id"`
	TestInput       string    `json:"test_input"`
	TestOutput      string    `json:"test_output"`
	ExitCode        int       `json:"exit_code"`
	Passed          bool      `json:"passed"`
	ExecutionTimeMS int64     `json:"execution_time_ms"`
	CreatedAt       time.Time `json:"created_at"`
}

// KnowledgeLink correlates a project with a document in the graph store.
// It is the only durable proof of that relevance; when the document is
// gone the link dangles and is flagged, never auto-cleaned.
type KnowledgeLink struct {
	ID            int64          `json:"id"`
	ProjectID     int64          `json:"project_id"`
	KnowledgeType KnowledgeType  `json:"knowledge_type"`
	KnowledgeID   string         `json:"knowledge_id"`
	Scope         KnowledgeScope `json:"scope"`
	CreatedBy     int64          `json:"created_by"`
	Orphaned      bool           `json:"orphaned"`
	LastCheckedAt *time.Time     `json:"last_checked_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}
