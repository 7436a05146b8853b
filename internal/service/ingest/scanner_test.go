package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func mustRules(t *testing.T) *Rules {
	t.Helper()
	rules, err := LoadRules()
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}
	return rules
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func scannedPaths(files []ScannedFile) []string {
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}
	return paths
}

func TestScan_CollectsTextFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "README.md", "# hello\n")
	writeFile(t, root, "src/index.ts", "export {}\n")
	writeFile(t, root, "Dockerfile", "FROM alpine\n")

	files, err := NewScanner(mustRules(t)).Scan(root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	want := map[string]bool{"README.md": true, "src/index.ts": true, "Dockerfile": true}
	if len(files) != len(want) {
		t.Fatalf("scanned %v, want %d files", scannedPaths(files), len(want))
	}
	for _, f := range files {
		if !want[f.Path] {
			t.Errorf("unexpected file %q", f.Path)
		}
		if f.Content == "" {
			t.Errorf("file %q has empty content", f.Path)
		}
	}
}

func TestScan_PrunesIgnoredDirectories(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main\n")
	writeFile(t, root, "node_modules/pkg/index.js", "module.exports = {}\n")
	writeFile(t, root, ".git/config.ini", "[core]\n")

	files, err := NewScanner(mustRules(t)).Scan(root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	for _, f := range files {
		if strings.HasPrefix(f.Path, "node_modules/") || strings.HasPrefix(f.Path, ".git/") {
			t.Errorf("ignored directory leaked file %q", f.Path)
		}
	}
	if len(files) != 1 || files[0].Path != "main.go" {
		t.Fatalf("scanned %v, want [main.go]", scannedPaths(files))
	}
}

func TestScan_SkipsUnwantedAndBinary(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "photo.png", "not really a png")
	writeFile(t, root, "binary.go", "package main\x00\xff\xfe")
	writeFile(t, root, "blank.md", "  \n\t\n")
	writeFile(t, root, "kept.md", "content\n")

	files, err := NewScanner(mustRules(t)).Scan(root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(files) != 1 || files[0].Path != "kept.md" {
		t.Fatalf("scanned %v, want [kept.md]", scannedPaths(files))
	}
}

func TestScan_SkipsOversizedFiles(t *testing.T) {
	rules := mustRules(t)
	root := t.TempDir()
	writeFile(t, root, "big.md", strings.Repeat("a", int(rules.MaxFileSize())+1))
	writeFile(t, root, "small.md", "ok\n")

	files, err := NewScanner(rules).Scan(root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(files) != 1 || files[0].Path != "small.md" {
		t.Fatalf("scanned %v, want [small.md]", scannedPaths(files))
	}
}

func TestRules_WantsFile(t *testing.T) {
	rules := mustRules(t)

	cases := []struct {
		name string
		want bool
	}{
		{"main.go", true},
		{"INDEX.MD", true}, // extension match is case-insensitive
		{"Dockerfile", true},
		{"docker-compose.yml", true},
		{"photo.png", false},
		{"archive.tar.gz", false},
		{"LICENSE", false},
	}
	for _, tc := range cases {
		if got := rules.WantsFile(tc.name); got != tc.want {
			t.Errorf("WantsFile(%q) = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestValidateRepoURL(t *testing.T) {
	name, err := ValidateRepoURL("https://github.com/golang/go")
	if err != nil {
		t.Fatalf("ValidateRepoURL: %v", err)
	}
	if name != "golang/go" {
		t.Errorf("name = %q, want golang/go", name)
	}

	name, err = ValidateRepoURL("https://github.com/golang/tools.git")
	if err != nil {
		t.Fatalf("ValidateRepoURL with .git: %v", err)
	}
	if name != "golang/tools" {
		t.Errorf("name = %q, want golang/tools", name)
	}

	bad := []string{
		"https://gitlab.com/group/project",
		"https://github.com/onlyowner",
		"ftp://github.com/a/b",
		"://not-a-url",
	}
	for _, u := range bad {
		if _, err := ValidateRepoURL(u); err == nil {
			t.Errorf("ValidateRepoURL(%q) succeeded, want error", u)
		}
	}
}
