package fault

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestKindOf(t *testing.T) {
	err := Conflict("project already registered")
	if !Is(err, KindConflict) {
		t.Fatalf("expected conflict kind, got %q", KindOf(err))
	}
	wrapped := fmt.Errorf("create project: %w", err)
	if !Is(wrapped, KindConflict) {
		t.Fatal("kind should survive wrapping")
	}
	if Is(errors.New("plain"), KindConflict) {
		t.Fatal("plain error should have no kind")
	}
}

func TestPublicHidesInternalDetail(t *testing.T) {
	inner := errors.New(`pq: duplicate key value violates unique constraint "projects_repo_url_team_id_key"`)
	err := Wrap(KindConflict, "project already registered for this team", inner)
	if strings.Contains(err.Public(), "duplicate key") {
		t.Fatal("public message leaked store detail")
	}
	if !errors.Is(err, inner) {
		t.Fatal("wrapped error should unwrap for internal logging")
	}
}
