package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/verityhq/verity/internal/models"
	"github.com/verityhq/verity/internal/scope"
)

const evidenceColumns = `id, task_id, user_id, team_id, task_category, evidence_type, evidence_data,
	prompt_text, completion_text, conversation_id,
	knowledge_pattern_id, coding_standard_id, requirement_id,
	project_id, environment_id, repo_branch, commit_sha, git_remote,
	reported_by, reported_project, visibility, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvidence(row rowScanner) (*models.Evidence, error) {
	ev := &models.Evidence{}
	var data []byte
	var visibility string
	err := row.Scan(&ev.ID, &ev.TaskID, &ev.UserID, &ev.TeamID, &ev.TaskCategory, &ev.EvidenceType, &data,
		&ev.PromptText, &ev.CompletionText, &ev.ConversationID,
		&ev.KnowledgePatternID, &ev.CodingStandardID, &ev.RequirementID,
		&ev.ProjectID, &ev.EnvironmentID, &ev.RepoBranch, &ev.CommitSHA, &ev.GitRemote,
		&ev.ReportedBy, &ev.ReportedProject, &visibility, &ev.CreatedAt)
	if err != nil {
		return nil, err
	}
	ev.EvidenceData = data
	ev.Visibility = models.Visibility(visibility)
	return ev, nil
}

// searchEvidence runs the scoped, paginated read shared by both backends.
// Ordering is always created_at DESC with store-assigned id ascending on
// ties, so pagination is deterministic. The total count is computed under
// the same predicates without limit/offset.
func searchEvidence(ctx context.Context, db *sql.DB, postgres bool, caller scope.Context, f EvidenceFilter) ([]models.Evidence, int64, error) {
	f.Normalize()

	count := newWhereBuilder(postgres)
	count.addScopePredicate(caller, f.Visibility)
	count.addEvidenceFilter(f)

	var total int64
	countQuery := "SELECT COUNT(*) FROM evidence" + count.where()
	if err := db.QueryRowContext(ctx, countQuery, count.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count evidence: %w", err)
	}

	page := newWhereBuilder(postgres)
	page.addScopePredicate(caller, f.Visibility)
	page.addEvidenceFilter(f)
	query := "SELECT " + evidenceColumns + " FROM evidence" + page.where() +
		" ORDER BY created_at DESC, id ASC" +
		" LIMIT " + page.bind(f.Limit) + " OFFSET " + page.bind(f.Offset)

	rows, err := db.QueryContext(ctx, query, page.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("search evidence: %w", err)
	}
	defer rows.Close()

	var out []models.Evidence
	for rows.Next() {
		ev, err := scanEvidence(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *ev)
	}
	return out, total, rows.Err()
}

func complianceMetrics(ctx context.Context, db *sql.DB, postgres bool, caller scope.Context, f EvidenceFilter) (*ComplianceMetrics, error) {
	m := &ComplianceMetrics{
		ByCategory: make(map[string]int64),
		ByType:     make(map[string]int64),
	}

	base := newWhereBuilder(postgres)
	base.addScopePredicate(caller, f.Visibility)
	base.addEvidenceFilter(f)
	summary := `SELECT COUNT(*), COUNT(DISTINCT user_id) FROM evidence` + base.where()
	if err := db.QueryRowContext(ctx, summary, base.args...).
		Scan(&m.TotalEvidence, &m.UniqueUsers); err != nil {
		return nil, fmt.Errorf("compliance summary: %w", err)
	}

	// Endpoints are read as direct column selects so both drivers hand back
	// native timestamps.
	for _, bound := range []struct {
		order string
		dest  **time.Time
	}{
		{"ASC", &m.OldestAt},
		{"DESC", &m.NewestAt},
	} {
		wb := newWhereBuilder(postgres)
		wb.addScopePredicate(caller, f.Visibility)
		wb.addEvidenceFilter(f)
		query := "SELECT created_at FROM evidence" + wb.where() +
			" ORDER BY created_at " + bound.order + ", id ASC LIMIT 1"
		var at time.Time
		err := db.QueryRowContext(ctx, query, wb.args...).Scan(&at)
		switch {
		case err == sql.ErrNoRows:
		case err != nil:
			return nil, fmt.Errorf("compliance range: %w", err)
		default:
			*bound.dest = &at
		}
	}

	for _, group := range []struct {
		column string
		dest   map[string]int64
	}{
		{"task_category", m.ByCategory},
		{"evidence_type", m.ByType},
	} {
		wb := newWhereBuilder(postgres)
		wb.addScopePredicate(caller, f.Visibility)
		wb.addEvidenceFilter(f)
		query := "SELECT " + group.column + ", COUNT(*) FROM evidence" + wb.where() +
			" GROUP BY " + group.column
		rows, err := db.QueryContext(ctx, query, wb.args...)
		if err != nil {
			return nil, fmt.Errorf("compliance group by %s: %w", group.column, err)
		}
		for rows.Next() {
			var key string
			var n int64
			if err := rows.Scan(&key, &n); err != nil {
				rows.Close()
				return nil, err
			}
			group.dest[key] = n
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return m, nil
}
