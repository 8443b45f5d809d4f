package cmd

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"IntentCode/backend/go/pkg/circuitbreaker"
)

func TestBaseURL(t *testing.T) {
	tests := map[string]string{
		":8080":             "http://localhost:8080",
		"10.0.0.2:8080":     "http://10.0.0.2:8080",
		"https://api.local": "https://api.local",
	}
	for in, want := range tests {
		if got := baseURL(in); got != want {
			t.Errorf("baseURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAPIClient_DoAndErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "no token"})
			return
		}
		if r.URL.Path == "/api/v1/missing" {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "project not found"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer srv.Close()

	c := newAPIClient(srv.URL+"/", "tok", circuitbreaker.Settings{FailureThreshold: 5}, time.Second)

	var out map[string]string
	if err := c.do(context.Background(), http.MethodGet, "/api/v1/ok", nil, &out); err != nil {
		t.Fatalf("do() error = %v", err)
	}
	if out["status"] != "ok" {
		t.Errorf("out = %v", out)
	}

	err := c.do(context.Background(), http.MethodGet, "/api/v1/missing", nil, nil)
	if err == nil || !strings.Contains(err.Error(), "project not found") {
		t.Errorf("do() error = %v, want server message", err)
	}
}

func TestWSURL(t *testing.T) {
	c := &apiClient{base: "https://api.local", token: "abc"}
	if got := c.wsURL(); got != "wss://api.local/api/v1/ws?access_token=abc" {
		t.Errorf("wsURL() = %q", got)
	}
}

func TestReadLocalFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.md")
	if err := os.WriteFile(path, []byte("# hi"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	files, err := readLocalFiles([]string{path})
	if err != nil {
		t.Fatalf("readLocalFiles() error = %v", err)
	}
	if len(files) != 1 || files[0].Path != "/notes.md" || files[0].Type != "markdown" {
		t.Errorf("files = %+v", files)
	}
	if _, err := readLocalFiles([]string{filepath.Join(dir, "nope")}); err == nil {
		t.Error("expected error for missing file")
	}
}
