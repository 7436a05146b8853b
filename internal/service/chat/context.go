package chat

import (
	"fmt"
	"sort"
	"strings"

	"repochat/internal/repotree"
)

const (
	// How many files get their content inlined into the prompt.
	maxRelevantFiles = 2
	// Per-file content cap keeps the prompt bounded for large files.
	maxInlineFileBytes = 8000

	filenameWeight = 0.6
	contentWeight  = 0.4
)

// ContextBuilder assembles the repository-aware system prompt: the full
// file tree plus the contents of the files most relevant to the query.
type ContextBuilder struct{}

// NewContextBuilder creates a ContextBuilder.
func NewContextBuilder() *ContextBuilder {
	return &ContextBuilder{}
}

// BuildSystemPrompt renders the prompt for one query. contents maps file
// paths to their stored bodies.
func (b *ContextBuilder) BuildSystemPrompt(repoName, query string, forest repotree.Forest, contents map[string]string) string {
	var sb strings.Builder

	sb.WriteString("You are a helpful assistant analyzing the code repository ")
	sb.WriteString(repoName)
	sb.WriteString(".\n\nRepository structure:\n")
	sb.WriteString(RenderTree(forest))

	relevant := b.rankFiles(query, contents)
	if len(relevant) > 0 {
		sb.WriteString("\n\nRelevant files:\n")
		for _, path := range relevant {
			content := contents[path]
			if len(content) > maxInlineFileBytes {
				content = content[:maxInlineFileBytes] + "\n... (truncated)"
			}
			fmt.Fprintf(&sb, "\n--- %s ---\n%s\n", path, content)
		}
	}

	sb.WriteString("\nGuidelines:\n")
	sb.WriteString("- When the user asks about a specific file, focus on that file's contents.\n")
	sb.WriteString("- Mention relationships to other files only when directly relevant.\n")
	sb.WriteString("- Provide specific code examples from the repository when appropriate.\n")
	return sb.String()
}

// rankFiles scores every file against the query terms and returns the top
// paths, best first. Filename matches weigh more than content matches so
// "explain main.go" lands on main.go.
func (b *ContextBuilder) rankFiles(query string, contents map[string]string) []string {
	terms := queryTerms(query)
	if len(terms) == 0 {
		return nil
	}

	type scored struct {
		path  string
		score float64
	}
	var ranked []scored

	for path, content := range contents {
		name := path
		if i := strings.LastIndexByte(path, '/'); i >= 0 {
			name = path[i+1:]
		}
		score := filenameWeight*termOverlap(terms, strings.ToLower(name)) +
			contentWeight*termOverlap(terms, strings.ToLower(content))
		if score > 0 {
			ranked = append(ranked, scored{path: path, score: score})
		}
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].path < ranked[j].path
	})

	n := len(ranked)
	if n > maxRelevantFiles {
		n = maxRelevantFiles
	}
	paths := make([]string, n)
	for i := 0; i < n; i++ {
		paths[i] = ranked[i].path
	}
	return paths
}

// queryTerms lowercases and splits the query, dropping terms too short to
// discriminate.
func queryTerms(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		switch r {
		case ' ', '\t', '\n', ',', '?', '!', '"', '\'', '(', ')', ':', ';':
			return true
		}
		return false
	})
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) >= 3 {
			terms = append(terms, f)
		}
	}
	return terms
}

// termOverlap returns the fraction of terms that appear in text.
func termOverlap(terms []string, text string) float64 {
	if len(terms) == 0 {
		return 0
	}
	hits := 0
	for _, t := range terms {
		if strings.Contains(text, t) {
			hits++
		}
	}
	return float64(hits) / float64(len(terms))
}
