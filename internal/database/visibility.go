package database

import (
	"fmt"
	"strings"

	"github.com/verityhq/verity/internal/models"
	"github.com/verityhq/verity/internal/scope"
)

// whereBuilder accumulates WHERE conditions with backend-appropriate
// placeholders. Each %s in a condition is replaced by the next placeholder.
type whereBuilder struct {
	postgres bool
	conds    []string
	args     []any
}

func newWhereBuilder(postgres bool) *whereBuilder {
	return &whereBuilder{postgres: postgres}
}

func (w *whereBuilder) placeholder() string {
	if w.postgres {
		return fmt.Sprintf("$%d", len(w.args))
	}
	return "?"
}

func (w *whereBuilder) add(cond string, args ...any) {
	marks := make([]any, 0, len(args))
	for _, a := range args {
		w.args = append(w.args, a)
		marks = append(marks, w.placeholder())
	}
	w.conds = append(w.conds, fmt.Sprintf(cond, marks...))
}

// bind appends a value outside the WHERE clause (LIMIT/OFFSET) and returns
// its placeholder.
func (w *whereBuilder) bind(v any) string {
	w.args = append(w.args, v)
	return w.placeholder()
}

func (w *whereBuilder) where() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// addScopePredicate narrows the query to the rows the caller may legally
// see. Exactly one predicate is applied; every caller-supplied filter can
// only narrow further. Unrecognized visibility values fail closed to the
// team predicate.
func (w *whereBuilder) addScopePredicate(caller scope.Context, vis models.Visibility) {
	switch vis {
	case models.VisibilityPrivate:
		w.add("user_id = %s", caller.UserID)
	case models.VisibilityOrganization:
		// Teams without an organization never share an org scope; an empty
		// organization must not match other empty ones. The caller's own
		// team always stays in scope.
		w.add("team_id IN (SELECT id FROM teams WHERE id = %s OR (organization <> '' AND organization = (SELECT organization FROM teams WHERE id = %s)))", caller.TeamID, caller.TeamID)
	case models.VisibilityPublic:
		// No restriction.
	default:
		w.add("team_id = %s", caller.TeamID)
	}
}

func (w *whereBuilder) addEvidenceFilter(f EvidenceFilter) {
	if f.Category != "" {
		w.add("task_category = %s", f.Category)
	}
	if f.UserID != nil {
		w.add("user_id = %s", *f.UserID)
	}
	if f.ProjectID != nil {
		w.add("project_id = %s", *f.ProjectID)
	}
	if f.FromDate != nil {
		w.add("created_at >= %s", *f.FromDate)
	}
	if f.ToDate != nil {
		w.add("created_at <= %s", *f.ToDate)
	}
}
