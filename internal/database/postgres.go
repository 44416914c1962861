package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/verityhq/verity/internal/models"
	"github.com/verityhq/verity/internal/scope"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type PostgresDB struct {
	db *sql.DB
}

func OpenPostgres(dsn string) (*PostgresDB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	return &PostgresDB{db: db}, nil
}

func (p *PostgresDB) Close() error { return p.db.Close() }

func (p *PostgresDB) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *PostgresDB) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, pgSchema)
	return err
}

const pgSchema = `
CREATE TABLE IF NOT EXISTS teams (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	organization TEXT NOT NULL DEFAULT '',
	settings TEXT NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE(organization, name)
);

CREATE TABLE IF NOT EXISTS users (
	id BIGSERIAL PRIMARY KEY,
	username TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL DEFAULT '',
	role TEXT NOT NULL DEFAULT 'developer',
	team_id BIGINT REFERENCES teams(id) ON DELETE SET NULL,
	last_login TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS projects (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	repo_url TEXT NOT NULL,
	repo_provider TEXT NOT NULL DEFAULT '',
	team_id BIGINT NOT NULL REFERENCES teams(id),
	default_branch TEXT NOT NULL DEFAULT 'main',
	settings TEXT NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE(repo_url, team_id)
);

CREATE TABLE IF NOT EXISTS environments (
	id BIGSERIAL PRIMARY KEY,
	project_id BIGINT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	type TEXT NOT NULL DEFAULT 'shared',
	hostname TEXT NOT NULL DEFAULT '',
	user_id BIGINT REFERENCES users(id) ON DELETE CASCADE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS evidence (
	id BIGSERIAL PRIMARY KEY,
	task_id TEXT NOT NULL DEFAULT '',
	user_id BIGINT,
	team_id BIGINT,
	task_category TEXT NOT NULL,
	evidence_type TEXT NOT NULL,
	evidence_data TEXT NOT NULL,
	prompt_text TEXT NOT NULL DEFAULT '',
	completion_text TEXT NOT NULL DEFAULT '',
	conversation_id TEXT NOT NULL DEFAULT '',
	knowledge_pattern_id TEXT NOT NULL DEFAULT '',
	coding_standard_id TEXT NOT NULL DEFAULT '',
	requirement_id TEXT NOT NULL DEFAULT '',
	project_id BIGINT REFERENCES projects(id) ON DELETE SET NULL,
	environment_id BIGINT REFERENCES environments(id) ON DELETE SET NULL,
	repo_branch TEXT NOT NULL DEFAULT '',
	commit_sha TEXT NOT NULL DEFAULT '',
	git_remote TEXT NOT NULL DEFAULT '',
	reported_by TEXT NOT NULL DEFAULT '',
	reported_project TEXT NOT NULL DEFAULT '',
	visibility TEXT NOT NULL DEFAULT 'team',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS hook_configurations (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	category TEXT NOT NULL DEFAULT '',
	hook_type TEXT NOT NULL DEFAULT 'custom',
	script_content TEXT NOT NULL,
	enabled BOOLEAN NOT NULL DEFAULT TRUE,
	team_id BIGINT NOT NULL REFERENCES teams(id),
	project_id BIGINT REFERENCES projects(id) ON DELETE SET NULL,
	scope TEXT NOT NULL DEFAULT 'team',
	version INTEGER NOT NULL,
	created_by BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE(name, team_id, version)
);

CREATE TABLE IF NOT EXISTS hook_test_results (
	id BIGSERIAL PRIMARY KEY,
	hook_id BIGINT NOT NULL REFERENCES hook_configurations(id) ON DELETE CASCADE,
	user_id BIGINT NOT NULL,
	test_input TEXT NOT NULL DEFAULT '',
	test_output TEXT NOT NULL DEFAULT '',
	exit_code INTEGER NOT NULL DEFAULT 0,
	passed BOOLEAN NOT NULL DEFAULT FALSE,
	execution_time_ms BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS project_knowledge_links (
	id BIGSERIAL PRIMARY KEY,
	project_id BIGINT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	knowledge_type TEXT NOT NULL,
	knowledge_id TEXT NOT NULL,
	scope TEXT NOT NULL DEFAULT 'project',
	created_by BIGINT NOT NULL,
	orphaned BOOLEAN NOT NULL DEFAULT FALSE,
	last_checked_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
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

func (p *PostgresDB) CreateTeam(ctx context.Context, t *models.Team) error {
	t.CreatedAt = time.Now().UTC()
	if len(t.Settings) == 0 {
		t.Settings = []byte("{}")
	}
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO teams (name, organization, settings, created_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		t.Name, t.Organization, string(t.Settings), t.CreatedAt).Scan(&t.ID)
	return mapConflict(isPostgresUniqueViolation, "team already exists in this organization", err)
}

func (p *PostgresDB) GetTeamByID(ctx context.Context, id int64) (*models.Team, error) {
	t := &models.Team{}
	var settings []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT id, name, organization, settings, created_at FROM teams WHERE id = $1`, id).
		Scan(&t.ID, &t.Name, &t.Organization, &settings, &t.CreatedAt)
	if err != nil {
		return nil, mapNotFound("team", err)
	}
	t.Settings = settings
	return t, nil
}

func (p *PostgresDB) GetTeamByName(ctx context.Context, organization, name string) (*models.Team, error) {
	t := &models.Team{}
	var settings []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT id, name, organization, settings, created_at FROM teams WHERE organization = $1 AND name = $2`,
		organization, name).
		Scan(&t.ID, &t.Name, &t.Organization, &settings, &t.CreatedAt)
	if err != nil {
		return nil, mapNotFound("team", err)
	}
	t.Settings = settings
	return t, nil
}

// --- Users ---

func (p *PostgresDB) CreateUser(ctx context.Context, u *models.User) error {
	u.CreatedAt = time.Now().UTC()
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO users (username, email, password_hash, role, team_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		u.Username, u.Email, u.PasswordHash, string(u.Role), u.TeamID, u.CreatedAt).Scan(&u.ID)
	return mapConflict(isPostgresUniqueViolation, "username or email already taken", err)
}

func (p *PostgresDB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return p.scanUser(p.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, role, team_id, last_login, created_at FROM users WHERE id = $1`, id))
}

func (p *PostgresDB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return p.scanUser(p.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, role, team_id, last_login, created_at FROM users WHERE username = $1`, username))
}

func (p *PostgresDB) scanUser(row *sql.Row) (*models.User, error) {
	u := &models.User{}
	var role string
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &role, &u.TeamID, &u.LastLogin, &u.CreatedAt); err != nil {
		return nil, mapNotFound("user", err)
	}
	u.Role = models.Role(role)
	return u, nil
}

func (p *PostgresDB) UpdateUserLastLogin(ctx context.Context, id int64, at time.Time) error {
	_, err := p.db.ExecContext(ctx, `UPDATE users SET last_login = $1 WHERE id = $2`, at, id)
	return err
}

func (p *PostgresDB) UpdateUserRole(ctx context.Context, id int64, role models.Role) error {
	res, err := p.db.ExecContext(ctx, `UPDATE users SET role = $1 WHERE id = $2`, string(role), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return mapNotFound("user", sql.ErrNoRows)
	}
	return nil
}

// --- Projects ---

func (p *PostgresDB) CreateProject(ctx context.Context, pr *models.Project) error {
	pr.CreatedAt = time.Now().UTC()
	if pr.DefaultBranch == "" {
		pr.DefaultBranch = "main"
	}
	if len(pr.Settings) == 0 {
		pr.Settings = []byte("{}")
	}
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO projects (name, repo_url, repo_provider, team_id, default_branch, settings, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		pr.Name, pr.RepoURL, pr.RepoProvider, pr.TeamID, pr.DefaultBranch, string(pr.Settings), pr.CreatedAt).Scan(&pr.ID)
	return mapConflict(isPostgresUniqueViolation, "repository already registered for this team", err)
}

func (p *PostgresDB) GetProjectByID(ctx context.Context, id int64) (*models.Project, error) {
	pr := &models.Project{}
	var settings []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT id, name, repo_url, repo_provider, team_id, default_branch, settings, created_at
		 FROM projects WHERE id = $1`, id).
		Scan(&pr.ID, &pr.Name, &pr.RepoURL, &pr.RepoProvider, &pr.TeamID, &pr.DefaultBranch, &settings, &pr.CreatedAt)
	if err != nil {
		return nil, mapNotFound("project", err)
	}
	pr.Settings = settings
	return pr, nil
}

func (p *PostgresDB) ListTeamProjects(ctx context.Context, teamID int64) ([]models.Project, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, name, repo_url, repo_provider, team_id, default_branch, settings, created_at
		 FROM projects WHERE team_id = $1 ORDER BY name`, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Project
	for rows.Next() {
		var pr models.Project
		var settings []byte
		if err := rows.Scan(&pr.ID, &pr.Name, &pr.RepoURL, &pr.RepoProvider, &pr.TeamID, &pr.DefaultBranch, &settings, &pr.CreatedAt); err != nil {
			return nil, err
		}
		pr.Settings = settings
		out = append(out, pr)
	}
	return out, rows.Err()
}

func (p *PostgresDB) DeleteProject(ctx context.Context, id int64) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return mapNotFound("project", sql.ErrNoRows)
	}
	return nil
}

// --- Environments ---

func (p *PostgresDB) CreateEnvironment(ctx context.Context, e *models.Environment) error {
	e.CreatedAt = time.Now().UTC()
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO environments (project_id, name, type, hostname, user_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		e.ProjectID, e.Name, string(e.Type), e.Hostname, e.UserID, e.CreatedAt).Scan(&e.ID)
	return mapConflict(isPostgresUniqueViolation, "environment already exists for this project", err)
}

func (p *PostgresDB) ListEnvironments(ctx context.Context, projectID int64) ([]models.Environment, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, project_id, name, type, hostname, user_id, created_at
		 FROM environments WHERE project_id = $1 ORDER BY name, id`, projectID)
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

func (p *PostgresDB) CreateEvidence(ctx context.Context, ev *models.Evidence) error {
	ev.CreatedAt = time.Now().UTC()
	return p.db.QueryRowContext(ctx,
		`INSERT INTO evidence (task_id, user_id, team_id, task_category, evidence_type, evidence_data,
			prompt_text, completion_text, conversation_id,
			knowledge_pattern_id, coding_standard_id, requirement_id,
			project_id, environment_id, repo_branch, commit_sha, git_remote,
			reported_by, reported_project, visibility, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		 RETURNING id`,
		ev.TaskID, ev.UserID, ev.TeamID, ev.TaskCategory, ev.EvidenceType, string(ev.EvidenceData),
		ev.PromptText, ev.CompletionText, ev.ConversationID,
		ev.KnowledgePatternID, ev.CodingStandardID, ev.RequirementID,
		ev.ProjectID, ev.EnvironmentID, ev.RepoBranch, ev.CommitSHA, ev.GitRemote,
		ev.ReportedBy, ev.ReportedProject, string(ev.Visibility), ev.CreatedAt).Scan(&ev.ID)
}

func (p *PostgresDB) GetEvidenceByID(ctx context.Context, id int64) (*models.Evidence, error) {
	ev, err := scanEvidence(p.db.QueryRowContext(ctx,
		`SELECT `+evidenceColumns+` FROM evidence WHERE id = $1`, id))
	if err != nil {
		return nil, mapNotFound("evidence", err)
	}
	return ev, nil
}

func (p *PostgresDB) SearchEvidence(ctx context.Context, caller scope.Context, f EvidenceFilter) ([]models.Evidence, int64, error) {
	return searchEvidence(ctx, p.db, true, caller, f)
}

func (p *PostgresDB) ComplianceMetrics(ctx context.Context, caller scope.Context, f EvidenceFilter) (*ComplianceMetrics, error) {
	return complianceMetrics(ctx, p.db, true, caller, f)
}

// --- Hook configurations ---

func (p *PostgresDB) CreateHookVersion(ctx context.Context, h *models.HookConfiguration) error {
	now := time.Now().UTC()
	h.CreatedAt = now
	h.UpdatedAt = now
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO hook_configurations (name, category, hook_type, script_content, enabled, team_id, project_id, scope, version, created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8,
			(SELECT COALESCE(MAX(version), 0) + 1 FROM hook_configurations WHERE name = $1 AND team_id = $6),
			$9, $10, $11)
		 RETURNING id, version`,
		h.Name, h.Category, string(h.HookType), h.ScriptContent, h.Enabled, h.TeamID, h.ProjectID, string(h.Scope),
		h.CreatedBy, h.CreatedAt, h.UpdatedAt).Scan(&h.ID, &h.Version)
	return mapConflict(isPostgresUniqueViolation, "hook version already published, retry", err)
}

func (p *PostgresDB) GetHookByID(ctx context.Context, id int64) (*models.HookConfiguration, error) {
	h, err := scanHook(p.db.QueryRowContext(ctx,
		`SELECT `+hookColumns+` FROM hook_configurations WHERE id = $1`, id))
	if err != nil {
		return nil, mapNotFound("hook", err)
	}
	return h, nil
}

func (p *PostgresDB) ListHooks(ctx context.Context, f HookFilter) ([]models.HookConfiguration, error) {
	wb := newWhereBuilder(true)
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
	rows, err := p.db.QueryContext(ctx,
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

func (p *PostgresDB) UpdateHookScript(ctx context.Context, id int64, scriptContent string) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE hook_configurations SET script_content = $1, updated_at = $2 WHERE id = $3`,
		scriptContent, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return mapNotFound("hook", sql.ErrNoRows)
	}
	return nil
}

func (p *PostgresDB) SetHookEnabled(ctx context.Context, id int64, enabled bool) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE hook_configurations SET enabled = $1, updated_at = $2 WHERE id = $3`,
		enabled, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return mapNotFound("hook", sql.ErrNoRows)
	}
	return nil
}

func (p *PostgresDB) CreateHookTestResult(ctx context.Context, r *models.HookTestResult) error {
	r.CreatedAt = time.Now().UTC()
	return p.db.QueryRowContext(ctx,
		`INSERT INTO hook_test_results (hook_id, user_id, test_input, test_output, exit_code, passed, execution_time_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		r.HookID, r.UserID, r.TestInput, r.TestOutput, r.ExitCode, r.Passed, r.ExecutionTimeMS, r.CreatedAt).Scan(&r.ID)
}

func (p *PostgresDB) ListHookTestResults(ctx context.Context, hookID int64, limit int) ([]models.HookTestResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, hook_id, user_id, test_input, test_output, exit_code, passed, execution_time_ms, created_at
		 FROM hook_test_results WHERE hook_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`, hookID, limit)
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

func (p *PostgresDB) CreateKnowledgeLink(ctx context.Context, l *models.KnowledgeLink) error {
	l.CreatedAt = time.Now().UTC()
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO project_knowledge_links (project_id, knowledge_type, knowledge_id, scope, created_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		l.ProjectID, string(l.KnowledgeType), l.KnowledgeID, string(l.Scope), l.CreatedBy, l.CreatedAt).Scan(&l.ID)
	return mapConflict(isPostgresUniqueViolation, "knowledge already linked to this project", err)
}

func (p *PostgresDB) GetKnowledgeLink(ctx context.Context, projectID int64, knowledgeType models.KnowledgeType, knowledgeID string) (*models.KnowledgeLink, error) {
	l, err := scanKnowledgeLink(p.db.QueryRowContext(ctx,
		`SELECT `+knowledgeLinkColumns+` FROM project_knowledge_links
		 WHERE project_id = $1 AND knowledge_type = $2 AND knowledge_id = $3`,
		projectID, string(knowledgeType), knowledgeID))
	if err != nil {
		return nil, mapNotFound("knowledge link", err)
	}
	return l, nil
}

func (p *PostgresDB) GetKnowledgeLinkByID(ctx context.Context, id int64) (*models.KnowledgeLink, error) {
	l, err := scanKnowledgeLink(p.db.QueryRowContext(ctx,
		`SELECT `+knowledgeLinkColumns+` FROM project_knowledge_links WHERE id = $1`, id))
	if err != nil {
		return nil, mapNotFound("knowledge link", err)
	}
	return l, nil
}

func (p *PostgresDB) ListKnowledgeLinks(ctx context.Context, projectID int64, knowledgeType *models.KnowledgeType) ([]models.KnowledgeLink, error) {
	wb := newWhereBuilder(true)
	wb.add("project_id = %s", projectID)
	if knowledgeType != nil {
		wb.add("knowledge_type = %s", string(*knowledgeType))
	}
	rows, err := p.db.QueryContext(ctx,
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

func (p *PostgresDB) ListKnowledgeLinksForSweep(ctx context.Context, checkedBefore time.Time, limit int) ([]models.KnowledgeLink, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+knowledgeLinkColumns+` FROM project_knowledge_links
		 WHERE last_checked_at IS NULL OR last_checked_at < $1
		 ORDER BY last_checked_at ASC NULLS FIRST, id ASC LIMIT $2`, checkedBefore, limit)
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

func (p *PostgresDB) MarkKnowledgeLinkChecked(ctx context.Context, id int64, orphaned bool, checkedAt time.Time) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE project_knowledge_links SET orphaned = $1, last_checked_at = $2 WHERE id = $3`,
		orphaned, checkedAt, id)
	return err
}
