package repotree

import "repochat/internal/domain/models"

// Navigator is a stateful expand/collapse view over a forest. The
// expansion state lives in the navigator, not the tree, so several views
// can share one immutable forest. A navigator belongs to a single view
// instance; no cross-view synchronization is done.
type Navigator struct {
	forest   Forest
	expanded map[string]bool
}

// NewNavigator creates a navigator over the given forest. Every directory
// starts collapsed.
func NewNavigator(forest Forest) *Navigator {
	return &Navigator{
		forest:   forest,
		expanded: make(map[string]bool),
	}
}

// Forest returns the underlying forest.
func (nav *Navigator) Forest() Forest {
	return nav.forest
}

// Toggle flips the expanded state of the directory at path. Paths that do
// not resolve, or resolve to a file, are ignored: toggling them is a
// no-op, not an error.
func (nav *Navigator) Toggle(path string) {
	node, ok := Find(nav.forest, path)
	if !ok || node.Kind != models.KindDirectory {
		return
	}
	nav.expanded[path] = !nav.expanded[path]
}

// IsExpanded reports the expansion state for a directory path. Directories
// that were never toggled are collapsed.
func (nav *Navigator) IsExpanded(path string) bool {
	return nav.expanded[path]
}

// Find resolves a path against the navigator's forest.
func (nav *Navigator) Find(path string) (*Node, bool) {
	return Find(nav.forest, path)
}

// RenderedNode is one visible row of the tree view.
type RenderedNode struct {
	Node  *Node
	Depth int
}

// Walk visits visible nodes depth-first in pre-order: root-level nodes are
// always visible, deeper nodes only when their full ancestor chain is
// expanded. Returning false from fn stops the walk. Re-invoking reflects
// the current expansion state.
func (nav *Navigator) Walk(fn func(node *Node, depth int) bool) {
	for _, root := range nav.forest {
		if !nav.walkNode(root, 0, fn) {
			return
		}
	}
}

func (nav *Navigator) walkNode(node *Node, depth int, fn func(node *Node, depth int) bool) bool {
	if !fn(node, depth) {
		return false
	}
	if node.Kind != models.KindDirectory || !nav.expanded[node.Path] {
		return true
	}
	for _, child := range node.Children {
		if !nav.walkNode(child, depth+1, fn) {
			return false
		}
	}
	return true
}

// Render materializes the visible rows. Bounded by tree size.
func (nav *Navigator) Render() []RenderedNode {
	var rows []RenderedNode
	nav.Walk(func(node *Node, depth int) bool {
		rows = append(rows, RenderedNode{Node: node, Depth: depth})
		return true
	})
	return rows
}
