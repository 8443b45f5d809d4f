package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"IntentCode/backend/go/internal/auth"
	"IntentCode/backend/go/internal/config"
	"IntentCode/backend/go/internal/models"
	"IntentCode/backend/go/internal/project_service/demo"
	"IntentCode/backend/go/internal/project_service/export"
	"IntentCode/backend/go/internal/project_service/lock"
	"IntentCode/backend/go/internal/project_service/reconcile"
	"IntentCode/backend/go/internal/project_service/service"
	"IntentCode/backend/go/internal/project_service/store"
	"IntentCode/backend/go/pkg/circuitbreaker"
	"IntentCode/backend/go/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const jwtSecret = "api-test-secret"

type fakeExporter struct {
	exported []string
}

func (e *fakeExporter) Export(_ context.Context, p *models.Project) (*export.Result, error) {
	e.exported = append(e.exported, p.ID)
	return &export.Result{Key: "exports/" + p.ID + ".zip", URL: "https://example.test/" + p.ID, Files: len(p.Files)}, nil
}

type fakeLister struct {
	records []models.IntentionRecord
}

func (l *fakeLister) List(_ context.Context, userID string, _ int64) ([]models.IntentionRecord, error) {
	var out []models.IntentionRecord
	for _, r := range l.records {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

type testServer struct {
	router   *gin.Engine
	hub      *Hub
	exporter *fakeExporter
	lister   *fakeLister
	issuer   *auth.Issuer
}

func newTestServer(t *testing.T, withExporter bool) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.NewDiscard()
	classifier, err := demo.NewClassifier(config.DemoConfig{
		Emails:     []string{"demo@*"},
		MockMarker: "mock",
		IDPrefix:   "demo-",
	})
	if err != nil {
		t.Fatalf("NewClassifier() error = %v", err)
	}
	mem := store.NewMemoryStore(log)
	engine := reconcile.NewEngine(mem, lock.NewLocalLocker(), log)
	hub := NewHub(log)

	registry, err := service.NewRegistry(16, time.Hour, func() *service.Container {
		return service.NewContainer(service.Deps{
			Store:      mem,
			Syncer:     engine,
			Classifier: classifier,
			Notifier:   hub,
			Logger:     log,
		})
	})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	ts := &testServer{
		router: gin.New(),
		hub:    hub,
		lister: &fakeLister{},
		issuer: auth.NewIssuer(jwtSecret, time.Hour),
	}
	opts := Options{Intentions: ts.lister, Hub: hub}
	if withExporter {
		ts.exporter = &fakeExporter{}
		opts.Exporter = ts.exporter
	}
	RegisterRoutes(ts.router, NewAPI(registry, opts, log), jwtSecret)
	return ts
}

func (s *testServer) token(t *testing.T, userID uint, email string) string {
	t.Helper()
	tok, err := s.issuer.Issue(userID, email)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	return tok
}

func (s *testServer) do(t *testing.T, token, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, want, w.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, false)
	w := s.do(t, "", http.MethodGet, "/healthz", nil)
	expectStatus(t, w, http.StatusOK)
}

func TestReadyz(t *testing.T) {
	gin.SetMode(gin.TestMode)
	probe := func(checks map[string]Check) (int, map[string]string) {
		router := gin.New()
		RegisterRoutes(router, NewAPI(nil, Options{Checks: checks}, logger.NewDiscard()), jwtSecret)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		var body struct {
			Checks map[string]string `json:"checks"`
		}
		decode(t, w, &body)
		return w.Code, body.Checks
	}

	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	code, checks := probe(map[string]Check{"mysql": ok, "redis": ok})
	if code != http.StatusOK || checks["mysql"] != "ok" || checks["redis"] != "ok" {
		t.Errorf("healthy probe = %d %v", code, checks)
	}
	code, checks = probe(map[string]Check{"mysql": ok, "mongodb": down})
	if code != http.StatusServiceUnavailable || checks["mongodb"] != "connection refused" {
		t.Errorf("unhealthy probe = %d %v", code, checks)
	}
	if code, _ := probe(nil); code != http.StatusOK {
		t.Errorf("no checks = %d", code)
	}
}

func TestRequiresToken(t *testing.T) {
	s := newTestServer(t, false)
	w := s.do(t, "", http.MethodGet, "/api/v1/projects", nil)
	expectStatus(t, w, http.StatusUnauthorized)
}

func TestProjectLifecycle(t *testing.T) {
	s := newTestServer(t, true)
	tok := s.token(t, 1, "dev@intentcode.dev")

	w := s.do(t, tok, http.MethodPost, "/api/v1/projects", map[string]interface{}{
		"title":         "Shop",
		"description":   "storefront",
		"customContext": "sells shoes",
		"files": []models.File{
			{Name: "src", Path: "/src", Type: "directory", IsDirectory: true},
			{Name: "main.ts", Path: "/src/main.ts", Type: "typescript", Content: "export {}"},
		},
	})
	expectStatus(t, w, http.StatusCreated)
	var created models.Project
	decode(t, w, &created)
	if created.ID == "" || created.KnowledgeContext != "sells shoes" {
		t.Fatalf("created = %+v", created)
	}
	base := "/api/v1/projects/" + created.ID

	w = s.do(t, tok, http.MethodPost, base+"/files", service.NewFile{Name: "README", Path: "/", Type: "markdown", Content: "# Shop"})
	expectStatus(t, w, http.StatusCreated)
	var readme models.File
	decode(t, w, &readme)
	if readme.Path != "/README.md" {
		t.Errorf("added file path = %q, want /README.md", readme.Path)
	}

	w = s.do(t, tok, http.MethodPost, base+"/files", service.NewFile{Name: "README.md", Path: "/", Content: "again"})
	expectStatus(t, w, http.StatusConflict)

	w = s.do(t, tok, http.MethodPut, base+"/files/"+readme.ID, map[string]string{"content": "# Shop v2"})
	expectStatus(t, w, http.StatusOK)

	w = s.do(t, tok, http.MethodGet, base+"/tree", nil)
	expectStatus(t, w, http.StatusOK)
	var tree struct {
		Items []treeNode `json:"items"`
	}
	decode(t, w, &tree)
	if len(tree.Items) != 2 || tree.Items[0].Path != "/src" || tree.Items[0].Icon != "folder" {
		t.Fatalf("tree = %+v, want /src first", tree.Items)
	}
	if len(tree.Items[0].Children) != 1 || tree.Items[0].Children[0].Language != "typescript" {
		t.Errorf("src children = %+v", tree.Items[0].Children)
	}

	w = s.do(t, tok, http.MethodPut, base+"/instructions", map[string]string{"value": "use tabs"})
	expectStatus(t, w, http.StatusOK)

	w = s.do(t, tok, http.MethodPut, base, map[string]string{"title": "Shop 2", "knowledge_context": "sells boots", "knowledge_instructions": "use tabs"})
	expectStatus(t, w, http.StatusOK)

	w = s.do(t, tok, http.MethodDelete, base+"/files/"+readme.ID, nil)
	expectStatus(t, w, http.StatusOK)

	w = s.do(t, tok, http.MethodGet, base, nil)
	expectStatus(t, w, http.StatusOK)
	var got models.Project
	decode(t, w, &got)
	if got.Title != "Shop 2" || got.KnowledgeContext != "sells boots" || got.KnowledgeInstructions != "use tabs" {
		t.Errorf("saved project = %+v", got)
	}
	if len(got.Files) != 2 {
		t.Errorf("files after delete = %d, want 2", len(got.Files))
	}

	w = s.do(t, tok, http.MethodGet, "/api/v1/projects?refresh=true", nil)
	expectStatus(t, w, http.StatusOK)
	var list struct {
		Projects []models.Project `json:"projects"`
	}
	decode(t, w, &list)
	if len(list.Projects) != 1 || len(list.Projects[0].Files) != 2 {
		t.Errorf("refetched projects = %+v", list.Projects)
	}
}

func TestSelectionAndSession(t *testing.T) {
	s := newTestServer(t, false)
	tok := s.token(t, 2, "dev@intentcode.dev")

	w := s.do(t, tok, http.MethodPost, "/api/v1/projects", map[string]string{"title": "Notes"})
	expectStatus(t, w, http.StatusCreated)
	var p models.Project
	decode(t, w, &p)

	expectStatus(t, s.do(t, tok, http.MethodPost, "/api/v1/projects/missing/select", nil), http.StatusNotFound)
	expectStatus(t, s.do(t, tok, http.MethodPost, "/api/v1/projects/"+p.ID+"/select", nil), http.StatusNoContent)

	w = s.do(t, tok, http.MethodGet, "/api/v1/session", nil)
	expectStatus(t, w, http.StatusOK)
	var sess sessionResponse
	decode(t, w, &sess)
	if sess.CurrentProjectID != p.ID || sess.Projects != 1 || sess.Identity == nil || sess.Identity.ID != "2" {
		t.Errorf("session = %+v", sess)
	}

	expectStatus(t, s.do(t, tok, http.MethodDelete, "/api/v1/selection", nil), http.StatusNoContent)
	w = s.do(t, tok, http.MethodGet, "/api/v1/session", nil)
	sess = sessionResponse{}
	decode(t, w, &sess)
	if sess.CurrentProjectID != "" {
		t.Errorf("selection not cleared: %+v", sess)
	}

	expectStatus(t, s.do(t, tok, http.MethodDelete, "/api/v1/session", nil), http.StatusNoContent)
	// 登出后重新读取远端，项目仍在存储中。
	w = s.do(t, tok, http.MethodGet, "/api/v1/projects", nil)
	var list struct {
		Projects []models.Project `json:"projects"`
	}
	decode(t, w, &list)
	if len(list.Projects) != 1 {
		t.Errorf("projects after sign-out = %d, want 1", len(list.Projects))
	}
}

func TestIntentionRoutes(t *testing.T) {
	s := newTestServer(t, false)
	tok := s.token(t, 3, "dev@intentcode.dev")

	expectStatus(t, s.do(t, tok, http.MethodPost, "/api/v1/intentions", map[string]string{"intention": "   "}), http.StatusBadRequest)

	w := s.do(t, tok, http.MethodPost, "/api/v1/intentions", map[string]string{"intention": "a todo app"})
	expectStatus(t, w, http.StatusCreated)
	var p models.Project
	decode(t, w, &p)
	if p.Title != "Project from Intention" || p.KnowledgeContext != "a todo app" {
		t.Errorf("intention project = %+v", p)
	}
	if len(p.Files) != 1 || p.Files[0].Path != "/README.md" {
		t.Errorf("placeholder files = %+v", p.Files)
	}

	s.lister.records = []models.IntentionRecord{{ID: "r1", UserID: "3", ProjectID: p.ID}, {ID: "r2", UserID: "9"}}
	w = s.do(t, tok, http.MethodGet, "/api/v1/intentions", nil)
	expectStatus(t, w, http.StatusOK)
	var list struct {
		Intentions []models.IntentionRecord `json:"intentions"`
	}
	decode(t, w, &list)
	if len(list.Intentions) != 1 || list.Intentions[0].ID != "r1" {
		t.Errorf("intentions = %+v", list.Intentions)
	}
}

func TestDemoIdentityGetsGeneratedProjects(t *testing.T) {
	s := newTestServer(t, false)
	tok := s.token(t, 4, "demo@intentcode.dev")

	w := s.do(t, tok, http.MethodGet, "/api/v1/projects", nil)
	expectStatus(t, w, http.StatusOK)
	var list struct {
		Projects []models.Project `json:"projects"`
	}
	decode(t, w, &list)
	if len(list.Projects) != 2 {
		t.Fatalf("demo projects = %d, want 2", len(list.Projects))
	}
	for _, p := range list.Projects {
		if !strings.Contains(p.ID, "mock") {
			t.Errorf("demo project id %q lacks the mock marker", p.ID)
		}
	}
}

func TestExport(t *testing.T) {
	s := newTestServer(t, true)
	tok := s.token(t, 5, "dev@intentcode.dev")
	w := s.do(t, tok, http.MethodPost, "/api/v1/projects", map[string]interface{}{
		"title": "Zip me",
		"files": []models.File{{Name: "a.txt", Path: "/a.txt", Content: "a"}},
	})
	var p models.Project
	decode(t, w, &p)

	w = s.do(t, tok, http.MethodPost, "/api/v1/projects/"+p.ID+"/export", nil)
	expectStatus(t, w, http.StatusOK)
	var res export.Result
	decode(t, w, &res)
	if res.Files != 1 || len(s.exporter.exported) != 1 {
		t.Errorf("export result = %+v, calls = %v", res, s.exporter.exported)
	}

	w = s.do(t, tok, http.MethodGet, "/api/v1/projects/"+p.ID+"/archive", nil)
	expectStatus(t, w, http.StatusOK)
	if ct := w.Header().Get("Content-Type"); ct != "application/zip" {
		t.Errorf("archive content type = %q", ct)
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("PK")) {
		t.Error("archive body is not a zip")
	}
}

func TestExportWithoutStorage(t *testing.T) {
	s := newTestServer(t, false)
	tok := s.token(t, 6, "dev@intentcode.dev")
	w := s.do(t, tok, http.MethodPost, "/api/v1/projects/any/export", nil)
	expectStatus(t, w, http.StatusServiceUnavailable)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{service.ErrUnauthenticated, http.StatusUnauthorized},
		{fmt.Errorf("wrap: %w", service.ErrFileNotFound), http.StatusNotFound},
		{service.ErrDuplicatePath, http.StatusConflict},
		{service.ErrIsDirectory, http.StatusBadRequest},
		{lock.ErrLockTimeout, http.StatusConflict},
		{circuitbreaker.ErrCircuitOpen, http.StatusServiceUnavailable},
		{&reconcile.BatchError{ProjectID: "p", Failures: map[reconcile.OpKind]error{reconcile.OpInsert: errors.New("boom")}}, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestWebSocketReceivesEvents(t *testing.T) {
	s := newTestServer(t, false)
	srv := httptest.NewServer(s.router)
	defer srv.Close()
	defer s.hub.Close()

	tok := s.token(t, 7, "dev@intentcode.dev")
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws?access_token=" + tok
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for s.hub.Count("7") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("connection was never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	w := s.do(t, tok, http.MethodPost, "/api/v1/projects", map[string]string{"title": "Live"})
	expectStatus(t, w, http.StatusCreated)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	var ev models.ProjectEvent
	if err := json.Unmarshal(msg, &ev); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if ev.Type != models.EventProjectCreated || ev.ProjectID == "" {
		t.Errorf("event = %+v", ev)
	}
}
