package repotree

import (
	"errors"
	"math/rand"
	"testing"

	"repochat/internal/domain/models"
)

func TestBuild_Scenario(t *testing.T) {
	entries := []Entry{
		{Path: "src", Kind: models.KindDirectory},
		{Path: "src/index.ts", Kind: models.KindFile},
		{Path: "README.md", Kind: models.KindFile},
	}

	forest, err := Build(entries)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if len(forest) != 2 {
		t.Fatalf("expected 2 root nodes, got %d", len(forest))
	}

	// First-seen order: src before README.md
	if forest[0].Name != "src" || forest[0].Kind != models.KindDirectory {
		t.Errorf("expected first root to be directory 'src', got %s %q", forest[0].Kind, forest[0].Name)
	}
	if forest[1].Name != "README.md" || forest[1].Kind != models.KindFile {
		t.Errorf("expected second root to be file 'README.md', got %s %q", forest[1].Kind, forest[1].Name)
	}

	if len(forest[0].Children) != 1 {
		t.Fatalf("expected src to have 1 child, got %d", len(forest[0].Children))
	}
	child := forest[0].Children[0]
	if child.Name != "index.ts" || child.Path != "src/index.ts" || child.Kind != models.KindFile {
		t.Errorf("unexpected src child: name=%q path=%q kind=%s", child.Name, child.Path, child.Kind)
	}
}

func TestBuild_IntermediateDirectories(t *testing.T) {
	forest, err := Build([]Entry{
		{Path: "a/b/c.txt", Kind: models.KindFile},
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if Count(forest) != 3 {
		t.Fatalf("expected 3 nodes (a, a/b, a/b/c.txt), got %d", Count(forest))
	}

	for path, kind := range map[string]models.FileKind{
		"a":         models.KindDirectory,
		"a/b":       models.KindDirectory,
		"a/b/c.txt": models.KindFile,
	} {
		node, ok := Find(forest, path)
		if !ok {
			t.Fatalf("Find(%q) missed", path)
		}
		if node.Kind != kind {
			t.Errorf("Find(%q): expected kind %s, got %s", path, kind, node.Kind)
		}
	}
}

func TestBuild_NodeInvariants(t *testing.T) {
	forest, err := Build([]Entry{
		{Path: "a/b/c.txt", Kind: models.KindFile},
		{Path: "a/d.txt", Kind: models.KindFile},
		{Path: "e.txt", Kind: models.KindFile},
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	var check func(parentPath string, nodes []*Node)
	check = func(parentPath string, nodes []*Node) {
		seen := make(map[string]bool)
		for _, n := range nodes {
			want := n.Name
			if parentPath != "" {
				want = parentPath + "/" + n.Name
			}
			if n.Path != want {
				t.Errorf("path mismatch: got %q, want %q", n.Path, want)
			}
			if seen[n.Name] {
				t.Errorf("duplicate sibling name %q under %q", n.Name, parentPath)
			}
			seen[n.Name] = true
			if n.Kind == models.KindFile && len(n.Children) != 0 {
				t.Errorf("file node %q has children", n.Path)
			}
			check(n.Path, n.Children)
		}
	}
	check("", forest)
}

func TestBuild_DuplicatesIdempotent(t *testing.T) {
	forest, err := Build([]Entry{
		{Path: "a/b.txt", Kind: models.KindFile},
		{Path: "a/b.txt", Kind: models.KindFile},
		{Path: "a", Kind: models.KindDirectory},
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if Count(forest) != 2 {
		t.Errorf("expected 2 nodes, got %d", Count(forest))
	}
}

func TestBuild_KindConflict(t *testing.T) {
	// x cannot be both a file and a directory
	_, err := Build([]Entry{
		{Path: "x", Kind: models.KindFile},
		{Path: "x/y", Kind: models.KindFile},
	})
	if !errors.Is(err, ErrKindConflict) {
		t.Fatalf("expected ErrKindConflict, got %v", err)
	}

	var conflict *KindConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected *KindConflictError, got %T", err)
	}
	if conflict.Path != "x" {
		t.Errorf("expected conflict at 'x', got %q", conflict.Path)
	}
	if conflict.Existing != models.KindFile || conflict.Requested != models.KindDirectory {
		t.Errorf("unexpected conflict kinds: existing=%s requested=%s", conflict.Existing, conflict.Requested)
	}
}

func TestBuild_KindConflictReversed(t *testing.T) {
	_, err := Build([]Entry{
		{Path: "x/y", Kind: models.KindFile},
		{Path: "x", Kind: models.KindFile},
	})
	if !errors.Is(err, ErrKindConflict) {
		t.Fatalf("expected ErrKindConflict, got %v", err)
	}
}

func TestBuild_EmptySegment(t *testing.T) {
	cases := []string{"a//b", "/a", "a/", "", "//"}
	for _, path := range cases {
		_, err := Build([]Entry{{Path: path, Kind: models.KindFile}})
		if !errors.Is(err, ErrEmptySegment) {
			t.Errorf("Build(%q): expected ErrEmptySegment, got %v", path, err)
		}
	}
}

// Permuting input order must change only sibling order, never which paths
// exist or their kind.
func TestBuild_OrderIndependentMembership(t *testing.T) {
	entries := []Entry{
		{Path: "src", Kind: models.KindDirectory},
		{Path: "src/main.go", Kind: models.KindFile},
		{Path: "src/util/helpers.go", Kind: models.KindFile},
		{Path: "docs/readme.md", Kind: models.KindFile},
		{Path: "Makefile", Kind: models.KindFile},
	}

	base, err := Build(entries)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	want := collectPaths(base)

	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 20; trial++ {
		shuffled := make([]Entry, len(entries))
		copy(shuffled, entries)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		forest, err := Build(shuffled)
		if err != nil {
			t.Fatalf("Build(shuffled) failed: %v", err)
		}
		got := collectPaths(forest)
		if len(got) != len(want) {
			t.Fatalf("trial %d: expected %d paths, got %d", trial, len(want), len(got))
		}
		for path, kind := range want {
			if got[path] != kind {
				t.Errorf("trial %d: path %q kind %s, want %s", trial, path, got[path], kind)
			}
		}
	}
}

func collectPaths(forest Forest) map[string]models.FileKind {
	out := make(map[string]models.FileKind)
	var visit func(nodes []*Node)
	visit = func(nodes []*Node) {
		for _, n := range nodes {
			out[n.Path] = n.Kind
			visit(n.Children)
		}
	}
	visit(forest)
	return out
}

// Find returns a node iff the path is an entry path or a prefix of one.
func TestFind_MembershipProperty(t *testing.T) {
	entries := []Entry{
		{Path: "a/b/c.txt", Kind: models.KindFile},
		{Path: "d.txt", Kind: models.KindFile},
	}
	forest, err := Build(entries)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	hits := []string{"a", "a/b", "a/b/c.txt", "d.txt"}
	for _, path := range hits {
		if _, ok := Find(forest, path); !ok {
			t.Errorf("Find(%q) missed, expected hit", path)
		}
	}

	misses := []string{"b", "a/c.txt", "a/b/c.txt/d", "d.txt/x", "", "a//b"}
	for _, path := range misses {
		if node, ok := Find(forest, path); ok {
			t.Errorf("Find(%q) hit %q, expected miss", path, node.Path)
		}
	}
}

func TestInsert_ExistingDirectories(t *testing.T) {
	forest, err := Build([]Entry{
		{Path: "a/b", Kind: models.KindDirectory},
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	before := Count(forest)

	forest, err = Insert(forest, "a/b/c.txt", models.KindFile)
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	// Exactly one new node, zero new directories
	if Count(forest) != before+1 {
		t.Errorf("expected %d nodes after insert, got %d", before+1, Count(forest))
	}
	node, ok := Find(forest, "a/b/c.txt")
	if !ok || node.Kind != models.KindFile {
		t.Fatalf("inserted file not found")
	}
}

func TestInsert_CreatesIntermediates(t *testing.T) {
	var forest Forest

	forest, err := Insert(forest, "a/b/c.txt", models.KindFile)
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	// Two new directories plus the file
	if Count(forest) != 3 {
		t.Errorf("expected 3 nodes, got %d", Count(forest))
	}
	for _, path := range []string{"a", "a/b"} {
		node, ok := Find(forest, path)
		if !ok || node.Kind != models.KindDirectory {
			t.Errorf("expected directory at %q", path)
		}
	}
}

func TestInsert_KindConflictLeavesForestIntact(t *testing.T) {
	forest, err := Build([]Entry{
		{Path: "a/b", Kind: models.KindFile},
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	before := Count(forest)

	_, err = Insert(forest, "a/b/c.txt", models.KindFile)
	if !errors.Is(err, ErrKindConflict) {
		t.Fatalf("expected ErrKindConflict, got %v", err)
	}
	if Count(forest) != before {
		t.Errorf("forest changed on failed insert: %d -> %d nodes", before, Count(forest))
	}
}

func TestInsert_EmptySegment(t *testing.T) {
	forest, _ := Build([]Entry{{Path: "a", Kind: models.KindDirectory}})
	_, err := Insert(forest, "a//b", models.KindFile)
	if !errors.Is(err, ErrEmptySegment) {
		t.Fatalf("expected ErrEmptySegment, got %v", err)
	}
}

func TestSorted_PresentationOnly(t *testing.T) {
	forest, err := Build([]Entry{
		{Path: "z.txt", Kind: models.KindFile},
		{Path: "b", Kind: models.KindDirectory},
		{Path: "a.txt", Kind: models.KindFile},
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	sorted := Sorted(forest)

	// Directories first, then names ascending
	wantOrder := []string{"b", "a.txt", "z.txt"}
	for i, name := range wantOrder {
		if sorted[i].Name != name {
			t.Errorf("sorted[%d] = %q, want %q", i, sorted[i].Name, name)
		}
	}

	// Structural forest keeps first-seen order
	if forest[0].Name != "z.txt" || forest[1].Name != "b" || forest[2].Name != "a.txt" {
		t.Errorf("Sorted mutated the structural forest: %q %q %q",
			forest[0].Name, forest[1].Name, forest[2].Name)
	}
}
