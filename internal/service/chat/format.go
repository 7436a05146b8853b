package chat

import (
	"strings"

	"repochat/internal/domain/models"
	"repochat/internal/repotree"
)

// buildForest converts a stored flat listing into a tree. Listing order
// determines sibling order.
func buildForest(entries []models.FileEntry) (repotree.Forest, error) {
	treeEntries := make([]repotree.Entry, 0, len(entries))
	for _, e := range entries {
		treeEntries = append(treeEntries, repotree.Entry{Path: e.Path, Kind: e.Kind})
	}
	return repotree.Build(treeEntries)
}

// RenderTree renders a forest as an ASCII tree using box-drawing
// characters, directories marked with a trailing slash.
//
// Example output:
//
//	├── src/
//	│   └── index.ts
//	└── README.md
func RenderTree(forest repotree.Forest) string {
	var sb strings.Builder
	renderLevel(&sb, forest, "")
	return strings.TrimRight(sb.String(), "\n")
}

func renderLevel(sb *strings.Builder, nodes []*repotree.Node, prefix string) {
	for i, node := range nodes {
		last := i == len(nodes)-1

		connector := "├── "
		childPrefix := prefix + "│   "
		if last {
			connector = "└── "
			childPrefix = prefix + "    "
		}

		sb.WriteString(prefix)
		sb.WriteString(connector)
		sb.WriteString(node.Name)
		if node.Kind == models.KindDirectory {
			sb.WriteString("/")
		}
		sb.WriteString("\n")

		if len(node.Children) > 0 {
			renderLevel(sb, node.Children, childPrefix)
		}
	}
}
