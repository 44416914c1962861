package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/verityhq/verity/internal/models"
	"github.com/verityhq/verity/internal/scope"

	_ "modernc.org/sqlite"
)

type SQLiteDB struct {
	db *sql.DB
}

func OpenSQLite(dsn string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Enable WAL mode and foreign keys
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma %s: %w", pragma, err)
		}
	}
	return &SQLiteDB{db: db}, nil
}

func (s *SQLiteDB) Close() error { return s.db.Close() }

func (s *SQLiteDB) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLiteDB) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

const schema = `
CREATE TABLE IF NOT EXISTS teams (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	organization TEXT NOT NULL DEFAULT '',
	settings TEXT NOT NULL DEFAULT '{}',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(organization, name)
);

CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL DEFAULT '',
	role TEXT NOT NULL DEFAULT 'developer',
	team_id INTEGER REFERENCES teams(id) ON DELETE SET NULL,
	last_login DATETIME,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS projects (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	repo_url TEXT NOT NULL,
	repo_provider TEXT NOT NULL DEFAULT '',
	team_id INTEGER NOT NULL REFERENCES teams(id),
	default_branch TEXT NOT NULL DEFAULT 'main',
	settings TEXT NOT NULL DEFAULT '{}',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(repo_url, team_id)
);

CREATE TABLE IF NOT EXISTS environments (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	type TEXT NOT NULL DEFAULT 'shared',
	hostname TEXT NOT NULL DEFAULT '',
	user_id INTEGER REFERENCES users(id) ON DELETE CASCADE,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS evidence (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id TEXT NOT NULL DEFAULT '',
	user_id INTEGER,
	team_id INTEGER,
	task_category TEXT NOT NULL,
	evidence_type TEXT NOT NULL,
	evidence_data TEXT NOT NULL,
	prompt_text TEXT NOT NULL DEFAULT '',
	completion_text TEXT NOT NULL DEFAULT '',
	conversation_id TEXT NOT NULL DEFAULT '',
	knowledge_pattern_id TEXT NOT NULL DEFAULT '',
	coding_standard_id TEXT NOT NULL DEFAULT '',
	requirement_id TEXT NOT NULL DEFAULT '',
	project_id INTEGER REFERENCES projects(id) ON DELETE SET NULL,
	environment_id INTEGER REFERENCES environments(id) ON DELETE SET NULL,
	repo_branch TEXT NOT NULL DEFAULT '',
	commit_sha TEXT NOT NULL DEFAULT '',
	git_remote TEXT NOT NULL DEFAULT '',
	reported_by TEXT NOT NULL DEFAULT '',
	reported_project TEXT NOT NULL DEFAULT '',
	visibility TEXT NOT NULL DEFAULT 'team',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS hook_configurations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	category TEXT NOT NULL DEFAULT '',
	hook_type TEXT NOT NULL DEFAULT 'custom',
	script_content TEXT NOT NULL,
	enabled BOOLEAN NOT NULL DEFAULT TRUE,
	team_id INTEGER NOT NULL REFERENCES teams(id),
	project_id INTEGER REFERENCES projects(id) ON DELETE SET NULL,
	scope TEXT NOT NULL DEFAULT 'team',
	version INTEGER NOT NULL,
	created_by INTEGER NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(name, team_id, version)
);

CREATE TABLE IF NOT EXISTS hook_test_results (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	hook_id INTEGER NOT NULL REFERENCES hook_configurations(id) ON DELETE CASCADE,
	user_id INTEGER NOT NULL,
	test_input TEXT NOT NULL DEFAULT '',
	test_output TEXT NOT NULL DEFAULT '',
	exit_code INTEGER NOT NULL DEFAULT 0,
	passed BOOLEAN NOT NULL DEFAULT FALSE,
	execution_time_ms INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS project_knowledge_links (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	knowledge_type TEXT NOT NULL,
	knowledge_id TEXT NOT NULL,
	scope TEXT NOT NULL DEFAULT 'project',
	created_by INTEGER NOT NULL,
	orphaned BOOLEAN NOT NULL DEFAULT FALSE,
	last_checked_at DATETIME,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(project_id, knowledge_type, knowledge_id)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_environments_identity
	ON environments(project_id, name, COALESCE(user_id, 0));
CREATE INDEX IF NOT EXISTS idx_users_team ON users(team_id);
CREATE INDEX IF NOT EXISTS idx_projects_team ON projects(team_id);
CREATE INDEX IF NOT EXISTS idx_evidence_team_created ON evidence(team_id, created_at DESC, id);
CREATE INDEX IF NOT EXISTS idx_evidence_user_created ON evidence(user_id, created_at DESC, id);
CREATE INDEX IF NOT EXISTS idx_evidence_project_created ON evidence(project_id, created_at DESC, id);
CREATE INDEX IF NOT EXISTS idx_evidence_category ON evidence(task_category);
CREATE INDEX IF NOT EXISTS idx_hooks_team_name_version ON hook_configurations(team_id, name, version DESC);
CREATE INDEX IF NOT EXISTS idx_hook_test_results_hook ON hook_test_results(hook_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_knowledge_links_project ON project_knowledge_links(project_id, knowledge_type);
CREATE INDEX IF NOT EXISTS idx_knowledge_links_sweep ON project_knowledge_links(last_checked_at);
`

// --- Teams ---

func (s *SQLiteDB) CreateTeam(ctx context.Context, t *models.Team) error {
	t.CreatedAt = time.Now().UTC()
	if len(t.Settings) == 0 {
		t.Settings = []byte("{}")
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO teams (name, organization, settings, created_at) VALUES (?, ?, ?, ?)`,
		t.Name, t.Organization, string(t.Settings), t.CreatedAt)
	if err != nil {
		return mapConflict(isSQLiteUniqueViolation, "team already exists in this organization", err)
	}
	t.ID, _ = res.LastInsertId()
	return nil
}

func (s *SQLiteDB) GetTeamByID(ctx context.Context, id int64) (*models.Team, error) {
	t := &models.Team{}
	var settings []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, organization, settings, created_at FROM teams WHERE id = ?`, id).
		Scan(&t.ID, &t.Name, &t.Organization, &settings, &t.CreatedAt)
	if err != nil {
		return nil, mapNotFound("team", err)
	}
	t.Settings = settings
	return t, nil
}

func (s *SQLiteDB) GetTeamByName(ctx context.Context, organization, name string) (*models.Team, error) {
	t := &models.Team{}
	var settings []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, organization, settings, created_at FROM teams WHERE organization = ? AND name = ?`,
		organization, name).
		Scan(&t.ID, &t.Name, &t.Organization, &settings, &t.CreatedAt)
	if err != nil {
		return nil, mapNotFound("team", err)
	}
	t.Settings = settings
	return t, nil
}

// --- Users ---

func (s *SQLiteDB) CreateUser(ctx context.Context, u *models.User) error {
	u.CreatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash, role, team_id, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		u.Username, u.Email, u.PasswordHash, string(u.Role), u.TeamID, u.CreatedAt)
	if err != nil {
		return mapConflict(isSQLiteUniqueViolation, "username or email already taken", err)
	}
	u.ID, _ = res.LastInsertId()
	return nil
}

func (s *SQLiteDB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, role, team_id, last_login, created_at FROM users WHERE id = ?`, id))
}

func (s *SQLiteDB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, role, team_id, last_login, created_at FROM users WHERE username = ?`, username))
}

func (s *SQLiteDB) scanUser(row *sql.Row) (*models.User, error) {
	u := &models.User{}
	var role string
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &role, &u.TeamID, &u.LastLogin, &u.CreatedAt); err != nil {
		return nil, mapNotFound("user", err)
	}
	u.Role = models.Role(role)
	return u, nil
}

func (s *SQLiteDB) UpdateUserLastLogin(ctx context.Context, id int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET last_login = ? WHERE id = ?`, at, id)
	return err
}

func (s *SQLiteDB) UpdateUserRole(ctx context.Context, id int64, role models.Role) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET role = ? WHERE id = ?`, string(role), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return mapNotFound("user", sql.ErrNoRows)
	}
	return nil
}

// --- Projects ---

func (s *SQLiteDB) CreateProject(ctx context.Context, p *models.Project) error {
	p.CreatedAt = time.Now().UTC()
	if p.DefaultBranch == "" {
		p.DefaultBranch = "main"
	}
	if len(p.Settings) == 0 {
		p.Settings = []byte("{}")
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (name, repo_url, repo_provider, team_id, default_branch, settings, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.Name, p.RepoURL, p.RepoProvider, p.TeamID, p.DefaultBranch, string(p.Settings), p.CreatedAt)
	if err != nil {
		return mapConflict(isSQLiteUniqueViolation, "repository already registered for this team", err)
	}
	p.ID, _ = res.LastInsertId()
	return nil
}

func (s *SQLiteDB) GetProjectByID(ctx context.Context, id int64) (*models.Project, error) {
	p := &models.Project{}
	var settings []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, repo_url, repo_provider, team_id, default_branch, settings, created_at
		 FROM projects WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &p.RepoURL, &p.RepoProvider, &p.TeamID, &p.DefaultBranch, &settings, &p.CreatedAt)
	if err != nil {
		return nil, mapNotFound("project", err)
	}
	p.Settings = settings
	return p, nil
}

func (s *SQLiteDB) ListTeamProjects(ctx context.Context, teamID int64) ([]models.Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, repo_url, repo_provider, team_id, default_branch, settings, created_at
		 FROM projects WHERE team_id = ? ORDER BY name`, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Project
	for rows.Next() {
		var p models.Project
		var settings []byte
		if err := rows.Scan(&p.ID, &p.Name, &p.RepoURL, &p.RepoProvider, &p.TeamID, &p.DefaultBranch, &settings, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Settings = settings
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteDB) DeleteProject(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return mapNotFound("project", sql.ErrNoRows)
	}
	return nil
}

// --- Environments ---

func (s *SQLiteDB) CreateEnvironment(ctx context.Context, e *models.Environment) error {
	e.CreatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO environments (project_id, name, type, hostname, user_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ProjectID, e.Name, string(e.Type), e.Hostname, e.UserID, e.CreatedAt)
	if err != nil {
		return mapConflict(isSQLiteUniqueViolation, "environment already exists for this project", err)
	}
	e.ID, _ = res.LastInsertId()
	return nil
}

func (s *SQLiteDB) ListEnvironments(ctx context.Context, projectID int64) ([]models.Environment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, name, type, hostname, user_id, created_at
		 FROM environments WHERE project_id = ? ORDER BY name, id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Environment
	for rows.Next() {
		var e models.Environment
		var typ string
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.Name, &typ, &e.Hostname, &e.UserID, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Type = models.EnvironmentType(typ)
		out = append(out, e)
	}
	return out, rows.Err()
}

// --- Evidence ---

func (s *SQLiteDB) CreateEvidence(ctx context.Context, ev *models.Evidence) error {
	ev.CreatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO evidence (task_id, user_id, team_id, task_category, evidence_type, evidence_data,
			prompt_text, completion_text, conversation_id,
			knowledge_pattern_id, coding_standard_id, requirement_id,
			project_id, environment_id, repo_branch, commit_sha, git_remote,
			reported_by, reported_project, visibility, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.TaskID, ev.UserID, ev.TeamID, ev.TaskCategory, ev.EvidenceType, string(ev.EvidenceData),
		ev.PromptText, ev.CompletionText, ev.ConversationID,
		ev.KnowledgePatternID, ev.CodingStandardID, ev.RequirementID,
		ev.ProjectID, ev.EnvironmentID, ev.RepoBranch, ev.CommitSHA, ev.GitRemote,
		ev.ReportedBy, ev.ReportedProject, string(ev.Visibility), ev.CreatedAt)
	if err != nil {
		return err
	}
	ev.ID, _ = res.LastInsertId()
	return nil
}

func (s *SQLiteDB) GetEvidenceByID(ctx context.Context, id int64) (*models.Evidence, error) {
	ev, err := scanEvidence(s.db.QueryRowContext(ctx,
		`SELECT `+evidenceColumns+` FROM evidence WHERE id = ?`, id))
	if err != nil {
		return nil, mapNotFound("evidence", err)
	}
	return ev, nil
}

func (s *SQLiteDB) SearchEvidence(ctx context.Context, caller scope.Context, f EvidenceFilter) ([]models.Evidence, int64, error) {
	return searchEvidence(ctx, s.db, false, caller, f)
}

func (s *SQLiteDB) ComplianceMetrics(ctx context.Context, caller scope.Context, f EvidenceFilter) (*ComplianceMetrics, error) {
	return complianceMetrics(ctx, s.db, false, caller, f)
}

// --- Hook configurations ---

// CreateHookVersion inserts a new row with version = max(existing) + 1 for
// the (name, team_id) chain. A concurrent publish of the same chain loses
// on the unique constraint and surfaces as a conflict.
func (s *SQLiteDB) CreateHookVersion(ctx context.Context, h *models.HookConfiguration) error {
	now := time.Now().UTC()
	h.CreatedAt = now
	h.UpdatedAt = now
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO hook_configurations (name, category, hook_type, script_content, enabled, team_id, project_id, scope, version, created_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?,
			(SELECT COALESCE(MAX(version), 0) + 1 FROM hook_configurations WHERE name = ? AND team_id = ?),
			?, ?, ?)`,
		h.Name, h.Category, string(h.HookType), h.ScriptContent, h.Enabled, h.TeamID, h.ProjectID, string(h.Scope),
		h.Name, h.TeamID,
		h.CreatedBy, h.CreatedAt, h.UpdatedAt)
	if err != nil {
		return mapConflict(isSQLiteUniqueViolation, "hook version already published, retry", err)
	}
	h.ID, _ = res.LastInsertId()
	return s.db.QueryRowContext(ctx,
		`SELECT version FROM hook_configurations WHERE id = ?`, h.ID).Scan(&h.Version)
}

const hookColumns = `id, name, category, hook_type, script_content, enabled, team_id, project_id, scope, version, created_by, created_at, updated_at`

func scanHook(row rowScanner) (*models.HookConfiguration, error) {
	h := &models.HookConfiguration{}
	var hookType, hookScope string
	err := row.Scan(&h.ID, &h.Name, &h.Category, &hookType, &h.ScriptContent, &h.Enabled,
		&h.TeamID, &h.ProjectID, &hookScope, &h.Version, &h.CreatedBy, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return nil, err
	}
	h.HookType = models.HookType(hookType)
	h.Scope = models.HookScope(hookScope)
	return h, nil
}

func (s *SQLiteDB) GetHookByID(ctx context.Context, id int64) (*models.HookConfiguration, error) {
	h, err := scanHook(s.db.QueryRowContext(ctx,
		`SELECT `+hookColumns+` FROM hook_configurations WHERE id = ?`, id))
	if err != nil {
		return nil, mapNotFound("hook", err)
	}
	return h, nil
}

func (s *SQLiteDB) ListHooks(ctx context.Context, f HookFilter) ([]models.HookConfiguration, error) {
	wb := newWhereBuilder(false)
	wb.add("team_id = %s", f.TeamID)
	if f.ProjectID != nil {
		wb.add("(project_id = %s OR project_id IS NULL)", *f.ProjectID)
	}
	if f.Category != "" {
		wb.add("category = %s", f.Category)
	}
	if f.LatestOnly {
		wb.conds = append(wb.conds,
			`version = (SELECT MAX(h2.version) FROM hook_configurations h2
				WHERE h2.name = hook_configurations.name AND h2.team_id = hook_configurations.team_id)`)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+hookColumns+` FROM hook_configurations`+wb.where()+` ORDER BY name, version DESC`,
		wb.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.HookConfiguration
	for rows.Next() {
		h, err := scanHook(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *h)
	}
	return out, rows.Err()
}

// UpdateHookScript corrects the script body of an existing version in
// place. The version number never changes here; semantic changes go
// through CreateHookVersion.
func (s *SQLiteDB) UpdateHookScript(ctx context.Context, id int64, scriptContent string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE hook_configurations SET script_content = ?, updated_at = ? WHERE id = ?`,
		scriptContent, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return mapNotFound("hook", sql.ErrNoRows)
	}
	return nil
}

func (s *SQLiteDB) SetHookEnabled(ctx context.Context, id int64, enabled bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE hook_configurations SET enabled = ?, updated_at = ? WHERE id = ?`,
		enabled, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return mapNotFound("hook", sql.ErrNoRows)
	}
	return nil
}

func (s *SQLiteDB) CreateHookTestResult(ctx context.Context, r *models.HookTestResult) error {
	r.CreatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO hook_test_results (hook_id, user_id, test_input, test_output, exit_code, passed, execution_time_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.HookID, r.UserID, r.TestInput, r.TestOutput, r.ExitCode, r.Passed, r.ExecutionTimeMS, r.CreatedAt)
	if err != nil {
		return err
	}
	r.ID, _ = res.LastInsertId()
	return nil
}

func (s *SQLiteDB) ListHookTestResults(ctx context.Context, hookID int64, limit int) ([]models.HookTestResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, hook_id, user_id, test_input, test_output, exit_code, passed, execution_time_ms, created_at
		 FROM hook_test_results WHERE hook_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`, hookID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.HookTestResult
	for rows.Next() {
		var r models.HookTestResult
		if err := rows.Scan(&r.ID, &r.HookID, &r.UserID, &r.TestInput, &r.TestOutput, &r.ExitCode, &r.Passed, &r.ExecutionTimeMS, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// --- Knowledge links ---

func (s *SQLiteDB) CreateKnowledgeLink(ctx context.Context, l *models.KnowledgeLink) error {
	l.CreatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO project_knowledge_links (project_id, knowledge_type, knowledge_id, scope, created_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		l.ProjectID, string(l.KnowledgeType), l.KnowledgeID, string(l.Scope), l.CreatedBy, l.CreatedAt)
	if err != nil {
		return mapConflict(isSQLiteUniqueViolation, "knowledge already linked to this project", err)
	}
	l.ID, _ = res.LastInsertId()
	return nil
}

const knowledgeLinkColumns = `id, project_id, knowledge_type, knowledge_id, scope, created_by, orphaned, last_checked_at, created_at`

func scanKnowledgeLink(row rowScanner) (*models.KnowledgeLink, error) {
	l := &models.KnowledgeLink{}
	var ktype, kscope string
	err := row.Scan(&l.ID, &l.ProjectID, &ktype, &l.KnowledgeID, &kscope, &l.CreatedBy, &l.Orphaned, &l.LastCheckedAt, &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	l.KnowledgeType = models.KnowledgeType(ktype)
	l.Scope = models.KnowledgeScope(kscope)
	return l, nil
}

func (s *SQLiteDB) GetKnowledgeLink(ctx context.Context, projectID int64, knowledgeType models.KnowledgeType, knowledgeID string) (*models.KnowledgeLink, error) {
	l, err := scanKnowledgeLink(s.db.QueryRowContext(ctx,
		`SELECT `+knowledgeLinkColumns+` FROM project_knowledge_links
		 WHERE project_id = ? AND knowledge_type = ? AND knowledge_id = ?`,
		projectID, string(knowledgeType), knowledgeID))
	if err != nil {
		return nil, mapNotFound("knowledge link", err)
	}
	return l, nil
}

func (s *SQLiteDB) GetKnowledgeLinkByID(ctx context.Context, id int64) (*models.KnowledgeLink, error) {
	l, err := scanKnowledgeLink(s.db.QueryRowContext(ctx,
		`SELECT `+knowledgeLinkColumns+` FROM project_knowledge_links WHERE id = ?`, id))
	if err != nil {
		return nil, mapNotFound("knowledge link", err)
	}
	return l, nil
}

func (s *SQLiteDB) ListKnowledgeLinks(ctx context.Context, projectID int64, knowledgeType *models.KnowledgeType) ([]models.KnowledgeLink, error) {
	wb := newWhereBuilder(false)
	wb.add("project_id = %s", projectID)
	if knowledgeType != nil {
		wb.add("knowledge_type = %s", string(*knowledgeType))
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+knowledgeLinkColumns+` FROM project_knowledge_links`+wb.where()+` ORDER BY created_at DESC, id ASC`,
		wb.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.KnowledgeLink
	for rows.Next() {
		l, err := scanKnowledgeLink(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

func (s *SQLiteDB) ListKnowledgeLinksForSweep(ctx context.Context, checkedBefore time.Time, limit int) ([]models.KnowledgeLink, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+knowledgeLinkColumns+` FROM project_knowledge_links
		 WHERE last_checked_at IS NULL OR last_checked_at < ?
		 ORDER BY last_checked_at ASC, id ASC LIMIT ?`, checkedBefore, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.KnowledgeLink
	for rows.Next() {
		l, err := scanKnowledgeLink(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

func (s *SQLiteDB) MarkKnowledgeLinkChecked(ctx context.Context, id int64, orphaned bool, checkedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE project_knowledge_links SET orphaned = ?, last_checked_at = ? WHERE id = ?`,
		orphaned, checkedAt, id)
	return err
}
