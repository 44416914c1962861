package service

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/verityhq/verity/internal/database"
	"github.com/verityhq/verity/internal/fault"
	"github.com/verityhq/verity/internal/graph"
	"github.com/verityhq/verity/internal/models"
	"github.com/verityhq/verity/internal/sandbox"
	"github.com/verityhq/verity/internal/scope"
)

// fakeGraph is an in-memory stand-in for the ArangoDB store.
type fakeGraph struct {
	docs        map[string]graph.Document // keyed by type/key
	unavailable bool
	rawRows     []map[string]any
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{docs: make(map[string]graph.Document)}
}

func (f *fakeGraph) put(t models.KnowledgeType, key string, fields map[string]any) {
	collection, _ := graph.CollectionFor(t)
	f.docs[string(t)+"/"+key] = graph.Document{Key: key, Collection: collection, Fields: fields}
}

func (f *fakeGraph) GetDocument(ctx context.Context, t models.KnowledgeType, key string) (*graph.Document, error) {
	if f.unavailable {
		return nil, fault.Unavailable("knowledge store unreachable", nil)
	}
	doc, ok := f.docs[string(t)+"/"+key]
	if !ok {
		return nil, fault.NotFound("knowledge document")
	}
	return &doc, nil
}

func (f *fakeGraph) Search(ctx context.Context, term string, collections []string, limit int) (*graph.SearchResults, error) {
	if f.unavailable {
		return nil, fault.Unavailable("knowledge store unreachable", nil)
	}
	wanted := func(collection string) bool {
		if len(collections) == 0 {
			return true
		}
		for _, c := range collections {
			if c == collection {
				return true
			}
		}
		return false
	}
	res := &graph.SearchResults{}
	for _, doc := range f.docs {
		if !wanted(doc.Collection) {
			continue
		}
		if strings.Contains(strings.ToLower(doc.Key), strings.ToLower(term)) {
			res.Hits = append(res.Hits, graph.Hit{Collection: doc.Collection, Document: doc})
		}
	}
	return res, nil
}

func (f *fakeGraph) RawQuery(ctx context.Context, query string, bindVars map[string]any) ([]map[string]any, error) {
	if f.unavailable {
		return nil, fault.Unavailable("knowledge query failed", nil)
	}
	return f.rawRows, nil
}

func (f *fakeGraph) Health(ctx context.Context) error { return nil }

// fakeExec returns a canned sandbox result without running anything.
type fakeExec struct {
	output   string
	exitCode int
}

func (f *fakeExec) Run(ctx context.Context, script, input string) (*sandbox.Result, error) {
	return &sandbox.Result{
		Output:   f.output,
		ExitCode: f.exitCode,
		Duration: 5 * time.Millisecond,
	}, nil
}

type testEnv struct {
	db    *database.SQLiteDB
	graph *fakeGraph
	exec  *fakeExec

	team    *models.Team
	user    *models.User
	lead    *models.User
	project *models.Project
}

func (e *testEnv) devScope() scope.Context {
	return scope.Context{UserID: e.user.ID, TeamID: e.team.ID, Role: models.RoleDeveloper}
}

func (e *testEnv) leadScope() scope.Context {
	return scope.Context{UserID: e.lead.ID, TeamID: e.team.ID, Role: models.RoleLead}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	env := &testEnv{db: db, graph: newFakeGraph(), exec: &fakeExec{output: "ok"}}

	env.team = &models.Team{Name: "platform", Organization: "acme"}
	if err := db.CreateTeam(ctx, env.team); err != nil {
		t.Fatalf("create team: %v", err)
	}
	env.user = &models.User{Username: "alice", Email: "alice@example.com", Role: models.RoleDeveloper, TeamID: &env.team.ID}
	if err := db.CreateUser(ctx, env.user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	env.lead = &models.User{Username: "lena", Email: "lena@example.com", Role: models.RoleLead, TeamID: &env.team.ID}
	if err := db.CreateUser(ctx, env.lead); err != nil {
		t.Fatalf("create lead: %v", err)
	}
	env.project = &models.Project{Name: "api", RepoURL: "https://git.example.com/api.git", TeamID: env.team.ID}
	if err := db.CreateProject(ctx, env.project); err != nil {
		t.Fatalf("create project: %v", err)
	}
	return env
}
