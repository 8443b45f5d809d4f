package export

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"IntentCode/backend/go/internal/models"

	"github.com/klauspost/compress/zip"
)

type fakeUploader struct {
	key      string
	body     []byte
	filename string
	err      error
}

func (u *fakeUploader) Upload(_ context.Context, key string, r io.Reader, size int64, _ string) error {
	if u.err != nil {
		return u.err
	}
	u.key = key
	u.body, _ = io.ReadAll(r)
	if int64(len(u.body)) != size {
		return errors.New("size mismatch")
	}
	return nil
}

func (u *fakeUploader) URL(_ context.Context, key, filename string, _ time.Duration) (string, error) {
	u.filename = filename
	return "https://objects.example/" + key, nil
}

func sampleProject() *models.Project {
	return &models.Project{
		ID:    "p1",
		Title: "Real Estate Team!",
		Files: []models.File{
			{Path: "/typescript/src/index.ts", Content: "// entry"},
			{Path: "/typescript", IsDirectory: true},
			{Path: "server.yaml", Content: "name: x"},
		},
	}
}

func TestExportUploadsZip(t *testing.T) {
	up := &fakeUploader{}
	e := NewExporter(up, 15*time.Minute)
	e.now = func() time.Time { return time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC) }

	res, err := e.Export(context.Background(), sampleProject())
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if res.Files != 2 {
		t.Errorf("Files = %d, want 2", res.Files)
	}
	if res.URL != "https://objects.example/"+res.Key || up.key != res.Key {
		t.Errorf("result = %+v", res)
	}
	if up.filename != "real-estate-team.zip" {
		t.Errorf("filename = %q", up.filename)
	}
	if !res.ExpiresAt.Equal(time.Date(2026, 2, 3, 4, 20, 6, 0, time.UTC)) {
		t.Errorf("ExpiresAt = %v", res.ExpiresAt)
	}

	zr, err := zip.NewReader(bytes.NewReader(up.body), int64(len(up.body)))
	if err != nil {
		t.Fatal(err)
	}
	contents := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		b, _ := io.ReadAll(rc)
		rc.Close()
		contents[f.Name] = string(b)
	}
	if contents["server.yaml"] != "name: x" || contents["typescript/src/index.ts"] != "// entry" {
		t.Errorf("zip contents = %v", contents)
	}
	if _, ok := contents["typescript/"]; !ok {
		t.Error("directory entry missing")
	}
}

func TestExportUploadFailure(t *testing.T) {
	e := NewExporter(&fakeUploader{err: errors.New("bucket missing")}, time.Minute)
	if _, err := e.Export(context.Background(), sampleProject()); err == nil {
		t.Fatal("expected error")
	}
}
