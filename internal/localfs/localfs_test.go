package localfs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

func TestIsHidden(t *testing.T) {
	tests := []struct {
		path     string
		expected bool
	}{
		{".hidden", true},
		{".gitignore", true},
		{"visible.txt", false},
		{"normal", false},
		{"/path/to/.hidden", true},
		{"/path/to/visible.txt", false},
		{"../.hidden", true},
		{"../visible.txt", false},
		{"..", false}, // Special case: parent dir reference
		{".", false},  // Special case: current dir reference
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			result := IsHidden(tt.path)
			if result != tt.expected {
				t.Errorf("IsHidden(%q) = %v, want %v", tt.path, result, tt.expected)
			}
		})
	}
}

func TestIsHiddenName(t *testing.T) {
	tests := []struct {
		name     string
		expected bool
	}{
		{".hidden", true},
		{".gitignore", true},
		{"visible.txt", false},
		{"normal", false},
		{"..", false}, // Parent dir reference starts with . but is special
		{".", false},  // Current dir reference
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsHiddenName(tt.name)
			if result != tt.expected {
				t.Errorf("IsHiddenName(%q) = %v, want %v", tt.name, result, tt.expected)
			}
		})
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func childNames(t *testing.T, e Entry) []string {
	t.Helper()
	children, err := e.Children(context.Background())
	if err != nil {
		t.Fatalf("Children(%s) error = %v", e.Name(), err)
	}
	names := make([]string, len(children))
	for i, c := range children {
		names[i] = c.Name()
	}
	sort.Strings(names)
	return names
}

func TestDirSource(t *testing.T) {
	root := filepath.Join(t.TempDir(), "project")
	writeFile(t, filepath.Join(root, "a.txt"), "aaa")
	writeFile(t, filepath.Join(root, "sub", "b.txt"), "bb")

	entry, err := DirSource(root)
	if err != nil {
		t.Fatalf("DirSource() error = %v", err)
	}
	if entry.Name() != "project" || !entry.IsDir() {
		t.Fatalf("root = %q dir=%v, want project dir", entry.Name(), entry.IsDir())
	}

	if got := childNames(t, entry); strings.Join(got, ",") != "a.txt,sub" {
		t.Errorf("children = %v, want [a.txt sub]", got)
	}

	children, _ := entry.Children(context.Background())
	for _, c := range children {
		if c.Name() != "a.txt" {
			continue
		}
		if c.Size() != 3 {
			t.Errorf("a.txt size = %d, want 3", c.Size())
		}
		rc, err := c.Open()
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		data, _ := io.ReadAll(rc)
		rc.Close()
		if string(data) != "aaa" {
			t.Errorf("a.txt contents = %q", data)
		}
	}

	if _, err := entry.Open(); err != ErrNotFile {
		t.Errorf("Open() on directory error = %v, want ErrNotFile", err)
	}
}

func TestDirSourceIdentity(t *testing.T) {
	root := filepath.Join(t.TempDir(), "root")
	writeFile(t, filepath.Join(root, "x", "data", "f"), "1")
	writeFile(t, filepath.Join(root, "y", "data", "f"), "2")

	entry, err := DirSource(root)
	if err != nil {
		t.Fatal(err)
	}
	again, err := DirSource(root)
	if err != nil {
		t.Fatal(err)
	}
	if entry.ID() != again.ID() {
		t.Errorf("same directory has IDs %q and %q", entry.ID(), again.ID())
	}

	x, _ := DirSource(filepath.Join(root, "x", "data"))
	y, _ := DirSource(filepath.Join(root, "y", "data"))
	if x.ID() == y.ID() {
		t.Errorf("same-named directories share ID %q", x.ID())
	}
}

func TestDirSourceMissing(t *testing.T) {
	if _, err := DirSource(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("DirSource() on missing path should fail")
	}
}

func TestFlatSource(t *testing.T) {
	open := func(s string) func() (io.ReadCloser, error) {
		return func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader(s)), nil }
	}

	entries, err := FlatSource([]FlatFile{
		{RelativePath: "root/a.txt", Size: 1, Opener: open("a")},
		{RelativePath: "root/sub/b.txt", Size: 2, Opener: open("bb")},
		{RelativePath: "root/sub/subsub/c.txt", Size: 3, Opener: open("ccc")},
	})
	if err != nil {
		t.Fatalf("FlatSource() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "root" || !entries[0].IsDir() {
		t.Fatalf("top level = %v, want single root directory", entries)
	}

	if got := childNames(t, entries[0]); strings.Join(got, ",") != "a.txt,sub" {
		t.Errorf("root children = %v", got)
	}

	children, _ := entries[0].Children(context.Background())
	var sub Entry
	for _, c := range children {
		if c.Name() == "sub" {
			sub = c
		}
	}
	if sub == nil || sub.ID() == entries[0].ID() {
		t.Fatalf("sub directory missing or shares root ID")
	}
	if got := childNames(t, sub); strings.Join(got, ",") != "b.txt,subsub" {
		t.Errorf("sub children = %v", got)
	}
}

func TestFlatSourceConflicts(t *testing.T) {
	tests := []struct {
		name  string
		paths []string
	}{
		{"duplicate", []string{"r/a", "r/a"}},
		{"file then dir", []string{"r/a", "r/a/b"}},
		{"dir then file", []string{"r/a/b", "r/a"}},
		{"empty", []string{""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files := make([]FlatFile, len(tt.paths))
			for i, p := range tt.paths {
				files[i] = FlatFile{RelativePath: p}
			}
			if _, err := FlatSource(files); err == nil {
				t.Errorf("FlatSource(%v) should fail", tt.paths)
			}
		})
	}
}

func TestFlatFilesFromPaths(t *testing.T) {
	base := filepath.Join(t.TempDir(), "docs")
	writeFile(t, filepath.Join(base, "guide", "intro.md"), "hello")

	files, err := FlatFilesFromPaths(base, []string{"guide/intro.md", ""})
	if err != nil {
		t.Fatalf("FlatFilesFromPaths() error = %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("got %d files, want 1", len(files))
	}
	if files[0].RelativePath != "docs/guide/intro.md" || files[0].Size != 5 {
		t.Errorf("file = %+v", files[0])
	}

	if _, err := FlatFilesFromPaths(base, []string{"guide"}); err == nil {
		t.Error("listing a directory should fail")
	}
}
