package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/verityhq/verity/internal/auth"
	"github.com/verityhq/verity/internal/database"
	"github.com/verityhq/verity/internal/fault"
	"github.com/verityhq/verity/internal/graph"
	"github.com/verityhq/verity/internal/models"
	"github.com/verityhq/verity/internal/sandbox"
	"github.com/verityhq/verity/internal/service"
)

type stubGraph struct {
	docs map[string]graph.Document
}

func (g *stubGraph) GetDocument(ctx context.Context, t models.KnowledgeType, key string) (*graph.Document, error) {
	doc, ok := g.docs[string(t)+"/"+key]
	if !ok {
		return nil, fault.NotFound("knowledge document")
	}
	return &doc, nil
}

func (g *stubGraph) Search(ctx context.Context, term string, collections []string, limit int) (*graph.SearchResults, error) {
	return &graph.SearchResults{}, nil
}

func (g *stubGraph) RawQuery(ctx context.Context, query string, bindVars map[string]any) ([]map[string]any, error) {
	return []map[string]any{{"answer": float64(42)}}, nil
}

func (g *stubGraph) Health(ctx context.Context) error { return nil }

type stubExec struct{}

func (stubExec) Run(ctx context.Context, script, input string) (*sandbox.Result, error) {
	return &sandbox.Result{Output: "ran: " + input, ExitCode: 0, Duration: time.Millisecond}, nil
}

type testServer struct {
	*Server
	db    *database.SQLiteDB
	graph *stubGraph
	http  *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	g := &stubGraph{docs: make(map[string]graph.Document)}
	authSvc := auth.NewService("test-secret-1234567890", time.Hour)
	srv := NewServer(
		db,
		authSvc,
		g,
		service.NewEvidenceService(db, g),
		service.NewHookService(db, stubExec{}),
		service.NewKnowledgeService(db, g),
		service.NewProjectService(db),
	)
	hs := httptest.NewServer(srv)
	t.Cleanup(hs.Close)
	return &testServer{Server: srv, db: db, graph: g, http: hs}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, ts.http.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var out bytes.Buffer
	out.ReadFrom(resp.Body)
	return resp, out.Bytes()
}

func (ts *testServer) register(t *testing.T, username string) string {
	t.Helper()
	resp, body := ts.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username":     username,
		"email":        username + "@example.com",
		"password":     "hunter2hunter2",
		"organization": "acme",
		"team":         "platform",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: %d %s", username, resp.StatusCode, body)
	}
	var tr struct {
		Token string       `json:"token"`
		User  *models.User `json:"user"`
	}
	if err := json.Unmarshal(body, &tr); err != nil {
		t.Fatalf("decode token: %v", err)
	}
	return tr.Token
}

// registerLead registers a user, promotes them and returns a fresh token
// carrying the lead role.
func (ts *testServer) registerLead(t *testing.T, username string) string {
	t.Helper()
	ts.register(t, username)
	u, err := ts.db.GetUserByUsername(context.Background(), username)
	if err != nil {
		t.Fatalf("lookup %s: %v", username, err)
	}
	if err := ts.db.UpdateUserRole(context.Background(), u.ID, models.RoleLead); err != nil {
		t.Fatalf("promote %s: %v", username, err)
	}
	resp, body := ts.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": username, "password": "hunter2hunter2",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: %d %s", resp.StatusCode, body)
	}
	var tr struct {
		Token string `json:"token"`
	}
	json.Unmarshal(body, &tr)
	return tr.Token
}

func TestAuthFlow(t *testing.T) {
	ts := newTestServer(t)

	token := ts.register(t, "alice")

	resp, _ := ts.do(t, http.MethodGet, "/api/v1/user", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no token: %d, want 401", resp.StatusCode)
	}

	resp, body := ts.do(t, http.MethodGet, "/api/v1/user", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("with token: %d %s", resp.StatusCode, body)
	}
	var u models.User
	json.Unmarshal(body, &u)
	if u.Username != "alice" || u.TeamID == nil {
		t.Fatalf("user = %+v", u)
	}

	resp, _ = ts.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "alice", "password": "wrong",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad password: %d, want 401", resp.StatusCode)
	}
}

func TestEvidenceEndpoints(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register(t, "alice")

	resp, body := ts.do(t, http.MethodPost, "/api/v1/evidence", token, map[string]any{
		"task_category": "refactor",
		"evidence_type": "test_run",
		"evidence_data": map[string]any{"passed": true},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("submit: %d %s", resp.StatusCode, body)
	}
	var ev models.Evidence
	json.Unmarshal(body, &ev)
	if ev.ID == 0 || ev.UserID == nil {
		t.Fatalf("evidence = %+v", ev)
	}

	// Validation failures surface the taxonomy kind.
	resp, body = ts.do(t, http.MethodPost, "/api/v1/evidence", token, map[string]any{
		"evidence_type": "test_run",
		"evidence_data": map[string]any{},
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid submit: %d", resp.StatusCode)
	}
	var fe struct {
		Kind string `json:"kind"`
	}
	json.Unmarshal(body, &fe)
	if fe.Kind != "validation_error" {
		t.Fatalf("kind = %q", fe.Kind)
	}

	resp, body = ts.do(t, http.MethodGet, "/api/v1/evidence?visibility=team", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("search: %d %s", resp.StatusCode, body)
	}
	var page struct {
		Items  []models.Evidence `json:"items"`
		Total  int64             `json:"total"`
		Limit  int               `json:"limit"`
		Offset int               `json:"offset"`
	}
	json.Unmarshal(body, &page)
	if page.Total != 1 || len(page.Items) != 1 || page.Limit != database.DefaultSearchLimit {
		t.Fatalf("page = %+v", page)
	}

	// A typoed timestamp is rejected instead of silently widening the
	// search window.
	resp, body = ts.do(t, http.MethodGet, "/api/v1/evidence?from=yesterday", token, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad from: %d %s, want 400", resp.StatusCode, body)
	}
	json.Unmarshal(body, &fe)
	if fe.Kind != "validation_error" {
		t.Fatalf("bad from kind = %q", fe.Kind)
	}
	resp, _ = ts.do(t, http.MethodGet, "/api/v1/evidence?to=2026-13-99", token, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad to: %d, want 400", resp.StatusCode)
	}

	resp, body = ts.do(t, http.MethodGet, fmt.Sprintf("/api/v1/evidence/%d", ev.ID), token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get: %d %s", resp.StatusCode, body)
	}

	resp, _ = ts.do(t, http.MethodGet, "/api/v1/evidence/999999", token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing evidence: %d, want 404", resp.StatusCode)
	}

	resp, body = ts.do(t, http.MethodGet, "/api/v1/metrics/compliance?visibility=team", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics: %d %s", resp.StatusCode, body)
	}
}

func TestLegacyEvidenceNoAuth(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodPost, "/api/v1/evidence/legacy", "", map[string]any{
		"task_category": "bugfix",
		"evidence_type": "lint",
		"evidence_data": map[string]any{},
		"reported_by":   "ci-bot",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("legacy submit: %d %s", resp.StatusCode, body)
	}
	var ev models.Evidence
	json.Unmarshal(body, &ev)
	if ev.ReportedBy != "ci-bot" || ev.UserID != nil {
		t.Fatalf("legacy evidence = %+v", ev)
	}
}

func TestHookEndpoints(t *testing.T) {
	ts := newTestServer(t)
	dev := ts.register(t, "alice")
	lead := ts.registerLead(t, "lena")

	resp, body := ts.do(t, http.MethodPost, "/api/v1/hooks", dev, map[string]string{
		"name": "lint", "script_content": "true",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("dev publish: %d %s", resp.StatusCode, body)
	}

	resp, body = ts.do(t, http.MethodPost, "/api/v1/hooks", lead, map[string]string{
		"name": "lint", "script_content": "true", "category": "quality",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("publish: %d %s", resp.StatusCode, body)
	}
	var h models.HookConfiguration
	json.Unmarshal(body, &h)
	if h.Version != 1 {
		t.Fatalf("version = %d", h.Version)
	}

	resp, body = ts.do(t, http.MethodPost, "/api/v1/hooks", lead, map[string]string{
		"name": "lint", "script_content": "false",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("publish v2: %d %s", resp.StatusCode, body)
	}
	var h2 models.HookConfiguration
	json.Unmarshal(body, &h2)
	if h2.Version != 2 {
		t.Fatalf("second version = %d", h2.Version)
	}

	// Latest-only listing by default.
	resp, body = ts.do(t, http.MethodGet, "/api/v1/hooks", dev, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: %d %s", resp.StatusCode, body)
	}
	var hooks []models.HookConfiguration
	json.Unmarshal(body, &hooks)
	if len(hooks) != 1 || hooks[0].Version != 2 {
		t.Fatalf("hooks = %+v", hooks)
	}

	resp, body = ts.do(t, http.MethodPatch, fmt.Sprintf("/api/v1/hooks/%d", h.ID), lead, map[string]string{
		"script_content": "echo corrected",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("patch: %d %s", resp.StatusCode, body)
	}
	var patched models.HookConfiguration
	json.Unmarshal(body, &patched)
	if patched.Version != 1 || patched.ScriptContent != "echo corrected" {
		t.Fatalf("patched = %+v", patched)
	}

	resp, body = ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/hooks/%d/enabled", h.ID), lead, map[string]bool{
		"enabled": false,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("disable: %d %s", resp.StatusCode, body)
	}

	resp, body = ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/hooks/%d/test", h.ID), dev, map[string]string{
		"input": "diff contents",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("test: %d %s", resp.StatusCode, body)
	}
	var result models.HookTestResult
	json.Unmarshal(body, &result)
	if !result.Passed || result.TestOutput != "ran: diff contents" {
		t.Fatalf("result = %+v", result)
	}

	resp, body = ts.do(t, http.MethodGet, fmt.Sprintf("/api/v1/hooks/%d/tests", h.ID), dev, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list tests: %d %s", resp.StatusCode, body)
	}
	var results []models.HookTestResult
	json.Unmarshal(body, &results)
	if len(results) != 1 {
		t.Fatalf("results = %d", len(results))
	}
}

func TestKnowledgeEndpoints(t *testing.T) {
	ts := newTestServer(t)
	dev := ts.register(t, "alice")
	lead := ts.registerLead(t, "lena")

	resp, body := ts.do(t, http.MethodPost, "/api/v1/projects", dev, map[string]string{
		"name": "api", "repo_url": "https://git.example.com/api.git",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create project: %d %s", resp.StatusCode, body)
	}
	var project models.Project
	json.Unmarshal(body, &project)

	ts.graph.docs["pattern/pat-1"] = graph.Document{Key: "pat-1", Collection: "knowledge_patterns"}

	resp, body = ts.do(t, http.MethodPost, "/api/v1/knowledge/links", dev, map[string]any{
		"project_id": project.ID, "knowledge_type": "pattern", "knowledge_id": "pat-1",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("link: %d %s", resp.StatusCode, body)
	}
	var link models.KnowledgeLink
	json.Unmarshal(body, &link)

	// Repeating the link returns the same row, still as a success.
	resp, body = ts.do(t, http.MethodPost, "/api/v1/knowledge/links", dev, map[string]any{
		"project_id": project.ID, "knowledge_type": "pattern", "knowledge_id": "pat-1",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("repeat link: %d %s", resp.StatusCode, body)
	}
	var link2 models.KnowledgeLink
	json.Unmarshal(body, &link2)
	if link2.ID != link.ID {
		t.Fatalf("repeat created new row: %d != %d", link2.ID, link.ID)
	}

	resp, body = ts.do(t, http.MethodGet, fmt.Sprintf("/api/v1/projects/%d/knowledge", project.ID), dev, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list knowledge: %d %s", resp.StatusCode, body)
	}

	resp, body = ts.do(t, http.MethodGet, fmt.Sprintf("/api/v1/knowledge/links/%d/resolve", link.ID), dev, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("resolve: %d %s", resp.StatusCode, body)
	}
	var resolved struct {
		Orphaned bool `json:"orphaned"`
	}
	json.Unmarshal(body, &resolved)
	if resolved.Orphaned {
		t.Fatal("live link reported orphaned")
	}

	resp, body = ts.do(t, http.MethodGet, "/api/v1/knowledge/search?q=retry&collections=knowledge_patterns,requirements", dev, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("search: %d %s", resp.StatusCode, body)
	}
	resp, _ = ts.do(t, http.MethodGet, "/api/v1/knowledge/search?q=retry&collections=secrets", dev, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown collection: %d, want 400", resp.StatusCode)
	}

	resp, _ = ts.do(t, http.MethodPost, "/api/v1/knowledge/query", dev, map[string]string{
		"query": "RETURN 1",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("dev raw query: %d, want 403", resp.StatusCode)
	}
	resp, body = ts.do(t, http.MethodPost, "/api/v1/knowledge/query", lead, map[string]string{
		"query": "RETURN 1",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("lead raw query: %d %s", resp.StatusCode, body)
	}
}

func TestEnvironmentEndpoints(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register(t, "alice")

	resp, body := ts.do(t, http.MethodPost, "/api/v1/projects", token, map[string]string{
		"name": "api", "repo_url": "https://git.example.com/api.git",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create project: %d %s", resp.StatusCode, body)
	}
	var project models.Project
	json.Unmarshal(body, &project)

	resp, body = ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/projects/%d/environments", project.ID), token, map[string]string{
		"name": "staging",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create env: %d %s", resp.StatusCode, body)
	}

	resp, body = ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/projects/%d/environments", project.ID), token, map[string]string{
		"name": "staging",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate env: %d %s, want 409", resp.StatusCode, body)
	}

	resp, body = ts.do(t, http.MethodGet, fmt.Sprintf("/api/v1/projects/%d/environments", project.ID), token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list envs: %d %s", resp.StatusCode, body)
	}
	var envs []models.Environment
	json.Unmarshal(body, &envs)
	if len(envs) != 1 {
		t.Fatalf("envs = %d", len(envs))
	}
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	resp, body := ts.do(t, http.MethodGet, "/healthz", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz: %d %s", resp.StatusCode, body)
	}
	var hr struct {
		Status string `json:"status"`
	}
	json.Unmarshal(body, &hr)
	if hr.Status != "ok" {
		t.Fatalf("status = %q", hr.Status)
	}
}
