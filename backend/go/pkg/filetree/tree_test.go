package filetree

import (
	"bytes"
	"sort"
	"strings"
	"testing"

	"IntentCode/backend/go/internal/models"
)

func TestNormalizePath(t *testing.T) {
	paths := []string{"", "/", "a.txt", "/a.txt", "dir/b.txt", "/dir/b.txt", "//x", "a/"}
	for _, p := range paths {
		once := NormalizePath(p)
		if !strings.HasPrefix(once, "/") {
			t.Errorf("NormalizePath(%q) = %q, want leading slash", p, once)
		}
		if twice := NormalizePath(once); twice != once {
			t.Errorf("NormalizePath not idempotent for %q: %q then %q", p, once, twice)
		}
		if strings.HasPrefix(p, "/") && once != p {
			t.Errorf("NormalizePath(%q) altered a rooted path to %q", p, once)
		}
	}
}

func TestParentPath(t *testing.T) {
	tests := []struct {
		path, want string
	}{
		{"/a.txt", "/"},
		{"/dir/b.txt", "/dir"},
		{"dir/sub/c.txt", "/dir/sub"},
		{"/", "/"},
		{"/dir/", "/"},
	}
	for _, tt := range tests {
		if got := ParentPath(tt.path); got != tt.want {
			t.Errorf("ParentPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func sampleRecords() []models.File {
	// 子目录故意排在父目录之前，验证按深度处理。
	return []models.File{
		{ID: "f3", Name: "property.ts", Path: "/typescript/src/tools/property.ts", Type: "typescript"},
		{ID: "d3", Name: "tools", Path: "/typescript/src/tools", Type: "directory", IsDirectory: true},
		{ID: "d2", Name: "src", Path: "/typescript/src", Type: "directory", IsDirectory: true},
		{ID: "f1", Name: "server.yaml", Path: "/server.yaml", Type: "yaml"},
		{ID: "d1", Name: "typescript", Path: "/typescript", Type: "directory", IsDirectory: true},
		{ID: "f2", Name: "README.md", Path: "/typescript/README.md", Type: "markdown"},
	}
}

func TestBuildTree_RoundTrip(t *testing.T) {
	records := sampleRecords()
	roots := BuildTree(records)

	got := Flatten(roots)
	if len(got) != len(records) {
		t.Fatalf("Flatten returned %d entries, want %d", len(got), len(records))
	}

	want := make([]Entry, 0, len(records))
	for _, r := range records {
		want = append(want, Entry{Path: r.Path, ID: r.ID})
	}
	less := func(s []Entry) func(i, j int) bool {
		return func(i, j int) bool { return s[i].Path < s[j].Path }
	}
	sort.Slice(got, less(got))
	sort.Slice(want, less(want))
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestBuildTree_Nesting(t *testing.T) {
	roots := BuildTree(sampleRecords())
	if len(roots) != 2 {
		t.Fatalf("expected 2 roots, got %d", len(roots))
	}

	tools := FindByPath(roots, "/typescript/src/tools")
	if tools == nil {
		t.Fatal("tools directory not found")
	}
	if len(tools.Children) != 1 || tools.Children[0].ID != "f3" {
		t.Errorf("tools children = %+v, want property.ts only", tools.Children)
	}

	ts := FindByPath(roots, "/typescript")
	if ts == nil || len(ts.Children) != 2 {
		t.Fatalf("typescript directory should hold src and README.md, got %+v", ts)
	}
}

func TestBuildTree_OrphanFallsBackToRoot(t *testing.T) {
	records := []models.File{
		{ID: "a", Path: "/a", IsDirectory: true},
		{ID: "c", Path: "/a/b/c.txt"},
	}
	roots := BuildTree(records)
	if len(roots) != 2 {
		t.Fatalf("expected orphan to be a root, got %d roots", len(roots))
	}
	if FindByPath(roots[0].Children, "/a/b/c.txt") != nil {
		t.Error("orphan must not be attached to an ancestor")
	}
	found := false
	for _, r := range roots {
		if r.ID == "c" {
			found = true
		}
	}
	if !found {
		t.Error("orphan file missing from roots")
	}
}

func TestBuildTree_NormalizesStoredPaths(t *testing.T) {
	records := []models.File{
		{ID: "d", Path: "dir", Type: "directory"},
		{ID: "f", Path: "dir/b.txt"},
	}
	roots := BuildTree(records)
	if len(roots) != 1 {
		t.Fatalf("expected 1 root, got %d", len(roots))
	}
	if roots[0].Path != "/dir" || !roots[0].IsDirectory {
		t.Errorf("root = %+v, want normalized directory /dir", roots[0].File)
	}
	if len(roots[0].Children) != 1 || roots[0].Children[0].Path != "/dir/b.txt" {
		t.Errorf("children = %+v", roots[0].Children)
	}
	if records[0].Path != "dir" {
		t.Error("BuildTree must not mutate its input records")
	}
}

func TestIconClass(t *testing.T) {
	tests := []struct {
		item     Item
		expanded bool
		want     string
	}{
		{Item{File: models.File{Name: "a.ts", Type: "typescript"}}, false, "file-code-ts"},
		{Item{File: models.File{Name: "Makefile", Type: "makefile"}}, false, "file"},
		{Item{File: models.File{Name: "LICENSE"}}, false, "file-text"},
		{Item{File: models.File{Name: "index.js"}}, false, "file-code-js"},
		{Item{File: models.File{Name: "src", IsDirectory: true}}, false, "folder"},
		{Item{File: models.File{Name: "src", IsDirectory: true}}, true, "folder-open"},
	}
	for _, tt := range tests {
		item := tt.item
		if got := IconClass(&item, tt.expanded); got != tt.want {
			t.Errorf("IconClass(%s, %v) = %q, want %q", tt.item.Name, tt.expanded, got, tt.want)
		}
	}
}

func TestCompleteNameAndLanguage(t *testing.T) {
	if got := CompleteName("app", "javascript"); got != "app.js" {
		t.Errorf("CompleteName = %q", got)
	}
	if got := CompleteName("notes.txt", "markdown"); got != "notes.txt" {
		t.Errorf("CompleteName kept extension wrong: %q", got)
	}
	if got := LanguageFor("main.tsx", ""); got != "typescript" {
		t.Errorf("LanguageFor = %q", got)
	}
	if got := LanguageFor("main.tsx", "javascript"); got != "javascript" {
		t.Errorf("type tag must win, got %q", got)
	}
	if got := InferType("page", []byte("<!DOCTYPE html><html><body></body></html>")); got != "html" {
		t.Errorf("InferType html = %q", got)
	}
	if got := InferType("conf.yml", nil); got != "yaml" {
		t.Errorf("InferType yaml = %q", got)
	}
}

func TestExpansionStateAndRender(t *testing.T) {
	records := sampleRecords()
	roots := BuildTree(records)
	Sort(roots)

	state := NewExpansionState()
	if state.IsExpanded("/typescript") {
		t.Fatal("directories must start collapsed")
	}

	var collapsed bytes.Buffer
	if err := Render(&collapsed, roots, state); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if strings.Contains(collapsed.String(), "README.md") {
		t.Errorf("collapsed render leaked children:\n%s", collapsed.String())
	}

	if !state.Toggle("typescript") {
		t.Fatal("Toggle should expand")
	}
	var expanded bytes.Buffer
	if err := Render(&expanded, roots, state); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.Contains(expanded.String(), "README.md") {
		t.Errorf("expanded render missing README.md:\n%s", expanded.String())
	}
	if records[4].Path != "/typescript" || records[4].Content != "" {
		t.Error("toggling expansion must not change records")
	}
}
