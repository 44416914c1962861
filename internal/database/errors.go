package database

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/verityhq/verity/internal/fault"
)

func isSQLiteUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isPostgresUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// mapNotFound converts a no-rows result into the taxonomy's not-found kind.
// Absence is reported as absence; the row may exist outside the caller's
// scope and that is deliberately indistinguishable.
func mapNotFound(what string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fault.NotFound(what)
	}
	return err
}

func mapConflict(unique func(error) bool, msg string, err error) error {
	if err == nil {
		return nil
	}
	if unique(err) {
		return fault.Wrap(fault.KindConflict, msg, err)
	}
	return err
}
