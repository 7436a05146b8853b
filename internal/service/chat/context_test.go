package chat

import (
	"strings"
	"testing"

	"repochat/internal/domain/models"
	"repochat/internal/repotree"
)

func buildTestForest(t *testing.T) repotree.Forest {
	t.Helper()
	forest, err := repotree.Build([]repotree.Entry{
		{Path: "src/index.ts", Kind: models.KindFile},
		{Path: "src/util/paths.ts", Kind: models.KindFile},
		{Path: "README.md", Kind: models.KindFile},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return forest
}

func TestRenderTree(t *testing.T) {
	got := RenderTree(buildTestForest(t))
	want := strings.Join([]string{
		"├── src/",
		"│   ├── index.ts",
		"│   └── util/",
		"│       └── paths.ts",
		"└── README.md",
	}, "\n")
	if got != want {
		t.Errorf("RenderTree mismatch:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestRenderTree_Empty(t *testing.T) {
	if got := RenderTree(nil); got != "" {
		t.Errorf("RenderTree(nil) = %q, want empty", got)
	}
}

func TestRankFiles_FilenameOutweighsContent(t *testing.T) {
	b := NewContextBuilder()
	contents := map[string]string{
		"auth.go":   "package auth",
		"server.go": "package server // calls auth middleware auth auth",
		"readme.md": "nothing related",
	}

	ranked := b.rankFiles("explain auth.go", contents)
	if len(ranked) == 0 {
		t.Fatal("expected ranked files")
	}
	if ranked[0] != "auth.go" {
		t.Errorf("top file = %q, want auth.go", ranked[0])
	}
}

func TestRankFiles_CapsResultCount(t *testing.T) {
	b := NewContextBuilder()
	contents := map[string]string{
		"one.go":   "widget",
		"two.go":   "widget",
		"three.go": "widget",
	}

	ranked := b.rankFiles("where is the widget", contents)
	if len(ranked) > maxRelevantFiles {
		t.Errorf("ranked %d files, cap is %d", len(ranked), maxRelevantFiles)
	}
}

func TestRankFiles_NoTermsNoMatches(t *testing.T) {
	b := NewContextBuilder()
	contents := map[string]string{"a.go": "package a"}

	if got := b.rankFiles("??", contents); got != nil {
		t.Errorf("rankFiles with no usable terms = %v, want nil", got)
	}
	if got := b.rankFiles("unrelated zebra query", map[string]string{"a.go": "package a"}); len(got) != 0 {
		t.Errorf("rankFiles with no matches = %v, want empty", got)
	}
}

func TestBuildSystemPrompt_IncludesTreeAndRelevantFiles(t *testing.T) {
	b := NewContextBuilder()
	forest := buildTestForest(t)
	contents := map[string]string{
		"src/index.ts":      "export function main() {}",
		"src/util/paths.ts": "export function join() {}",
		"README.md":         "# demo",
	}

	prompt := b.BuildSystemPrompt("owner/demo", "what does index.ts export", forest, contents)

	if !strings.Contains(prompt, "owner/demo") {
		t.Error("prompt missing repository name")
	}
	if !strings.Contains(prompt, "└── README.md") {
		t.Error("prompt missing rendered tree")
	}
	if !strings.Contains(prompt, "--- src/index.ts ---") {
		t.Error("prompt missing relevant file section")
	}
	if !strings.Contains(prompt, "export function main()") {
		t.Error("prompt missing relevant file content")
	}
}

func TestBuildSystemPrompt_TruncatesLargeFiles(t *testing.T) {
	b := NewContextBuilder()
	forest, err := repotree.Build([]repotree.Entry{{Path: "big.md", Kind: models.KindFile}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	contents := map[string]string{
		"big.md": strings.Repeat("big ", maxInlineFileBytes),
	}

	prompt := b.BuildSystemPrompt("owner/demo", "summarize big.md", forest, contents)
	if !strings.Contains(prompt, "... (truncated)") {
		t.Error("oversized file content was not truncated")
	}
}
