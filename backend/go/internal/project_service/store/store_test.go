package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"IntentCode/backend/go/internal/models"
	"IntentCode/backend/go/pkg/circuitbreaker"
	"IntentCode/backend/go/pkg/logger"
)

func TestFileFromRow(t *testing.T) {
	log := logger.NewDiscard()
	f := fileFromRow(models.ProjectFileRow{ID: "1", Path: "src/main.go", Type: "go", Content: []byte("package main")}, log)
	if f.Path != "/src/main.go" || f.Name != "main.go" || f.Content != "package main" || f.IsDirectory {
		t.Errorf("fileFromRow = %+v", f)
	}

	dir := fileFromRow(models.ProjectFileRow{ID: "2", Path: "/src", Type: models.DirectoryType}, log)
	if !dir.IsDirectory || dir.Name != "src" {
		t.Errorf("directory row = %+v", dir)
	}

	bad := fileFromRow(models.ProjectFileRow{ID: "3", Path: "/x.bin", Content: []byte{0xff, 0xfe}}, log)
	if bad.Content != "" {
		t.Errorf("malformed content should decode to empty, got %q", bad.Content)
	}
}

func TestRowFromFile(t *testing.T) {
	now := time.Now()
	r := rowFromFile("p", models.File{Path: "a/b", IsDirectory: true, Content: "ignored"}, now)
	if r.ID == "" {
		t.Error("missing ID should be generated")
	}
	if r.Type != models.DirectoryType || r.Content != nil || r.Path != "/a/b" {
		t.Errorf("directory row = %+v", r)
	}
	if r.ManifestID != models.DefaultManifestID {
		t.Errorf("ManifestID = %q", r.ManifestID)
	}

	kept := rowFromFile("p", models.File{ID: "keep", Path: "/x.md", Type: "markdown", Content: "# x"}, now)
	if kept.ID != "keep" || string(kept.Content) != "# x" || kept.AIType != models.GeneratedAIType {
		t.Errorf("file row = %+v", kept)
	}
}

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(logger.NewDiscard())

	p, err := s.CreateProject(ctx, NewProject{
		OwnerID: "u1",
		Title:   "T",
		Files:   []models.File{{ID: "f1", Path: "/a.txt", Content: "a"}},
	})
	if err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	if _, err := s.CreateProject(ctx, NewProject{OwnerID: "u2", Title: "other"}); err != nil {
		t.Fatal(err)
	}

	if err := s.InsertFiles(ctx, p.ID, []models.File{{ID: "f2", Path: "a.txt"}}); !errors.Is(err, ErrDuplicatePath) {
		t.Fatalf("InsertFiles duplicate err = %v, want ErrDuplicatePath", err)
	}
	if err := s.InsertFiles(ctx, p.ID, []models.File{{ID: "f2", Path: "/b.txt", Content: "b"}}); err != nil {
		t.Fatal(err)
	}
	f1 := p.Files[0].ID
	if f1 == "f1" {
		t.Errorf("CreateProject kept the caller's file ID")
	}
	if err := s.UpdateFileContents(ctx, p.ID, []FileUpdate{{ID: f1, Content: EncodeContent("A")}}); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteFiles(ctx, p.ID, []string{"f2"}); err != nil {
		t.Fatal(err)
	}
	at := p.UpdatedAt.Add(time.Second)
	if err := s.UpdateProjectField(ctx, p.ID, models.FieldKnowledgeContext, "ctx", at); err != nil {
		t.Fatal(err)
	}

	got, err := s.FetchProjects(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("FetchProjects returned %d projects, want 1", len(got))
	}
	if len(got[0].Files) != 1 || got[0].Files[0].Content != "A" {
		t.Errorf("files = %+v", got[0].Files)
	}
	if got[0].KnowledgeContext != "ctx" || !got[0].UpdatedAt.Equal(at) {
		t.Errorf("project = %+v", got[0])
	}

	if err := s.TouchProject(ctx, "missing", at); !errors.Is(err, ErrNotFound) {
		t.Errorf("TouchProject(missing) = %v", err)
	}
}

func TestMemoryStoreCreateAssignsFileIDs(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(logger.NewDiscard())

	p, err := s.CreateProject(ctx, NewProject{
		OwnerID: "u1",
		Files: []models.File{
			{ID: "x", Path: "/a.txt", Content: "a"},
			{ID: "x", Path: "/b.txt", Content: "b"},
		},
	})
	if err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	if len(p.Files) != 2 || p.Files[0].ID == p.Files[1].ID {
		t.Fatalf("files = %+v, want two rows with distinct IDs", p.Files)
	}

	// 另一个项目复用同样的客户端 ID 也不能影响前一个项目。
	if _, err := s.CreateProject(ctx, NewProject{OwnerID: "u1", Files: []models.File{{ID: p.Files[0].ID, Path: "/c.txt"}}}); err != nil {
		t.Fatal(err)
	}
	got, err := s.FetchProjects(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	total := 0
	for _, gp := range got {
		total += len(gp.Files)
	}
	if total != 3 {
		t.Errorf("stored %d files, want 3", total)
	}

	if err := s.InsertFiles(ctx, p.ID, []models.File{{ID: p.Files[0].ID, Path: "/d.txt"}}); !errors.Is(err, ErrDuplicatePath) {
		t.Errorf("InsertFiles reused ID err = %v, want ErrDuplicatePath", err)
	}
}

type failingStore struct {
	ProjectStore
	err   error
	calls int
}

func (f *failingStore) ListFileRefs(context.Context, string) ([]FileRef, error) {
	f.calls++
	return nil, f.err
}

func TestBreakerStoreTrips(t *testing.T) {
	inner := &failingStore{err: errors.New("connection refused")}
	s := NewBreakerStore(inner, circuitbreaker.Settings{FailureThreshold: 2, Timeout: time.Hour})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := s.ListFileRefs(ctx, "p"); err == nil {
			t.Fatal("expected error")
		}
	}
	if _, err := s.ListFileRefs(ctx, "p"); !errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
	if inner.calls != 2 {
		t.Errorf("inner calls = %d, want 2", inner.calls)
	}
}

func TestBreakerStoreIgnoresNotFound(t *testing.T) {
	inner := &failingStore{err: ErrNotFound}
	s := NewBreakerStore(inner, circuitbreaker.Settings{FailureThreshold: 1, Timeout: time.Hour})
	for i := 0; i < 3; i++ {
		_, _ = s.ListFileRefs(context.Background(), "p")
	}
	if s.State() != circuitbreaker.Closed {
		t.Errorf("state = %v, want Closed", s.State())
	}
}
