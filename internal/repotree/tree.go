// Package repotree builds a hierarchical directory tree from the flat,
// '/'-separated file listing of a repository, and provides a navigator
// for expand/collapse traversal over the result.
//
// Construction is pure and deterministic: the same input sequence always
// produces the same forest, and sibling order follows first-seen order in
// the input (sorting is a presentation concern, see Sorted).
package repotree

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"repochat/internal/domain/models"
)

// Sentinel errors - use with errors.Is()
var (
	// ErrKindConflict is returned when a path is asserted with a kind that
	// contradicts an already-established node (e.g. seen as a file, later
	// asserted as a directory). Malformed or adversarial listings are
	// rejected rather than silently coerced.
	ErrKindConflict = errors.New("conflicting path kind")

	// ErrEmptySegment is returned for paths containing an empty segment
	// ("a//b", "/a", "a/").
	ErrEmptySegment = errors.New("empty path segment")
)

// KindConflictError carries the conflicting path and both kinds.
type KindConflictError struct {
	Path      string
	Existing  models.FileKind
	Requested models.FileKind
}

func (e *KindConflictError) Error() string {
	return fmt.Sprintf("path %q already exists as %s, cannot be %s", e.Path, e.Existing, e.Requested)
}

// Is allows errors.Is() to match against ErrKindConflict
func (e *KindConflictError) Is(target error) bool {
	return target == ErrKindConflict
}

// EmptySegmentError carries the offending path.
type EmptySegmentError struct {
	Path string
}

func (e *EmptySegmentError) Error() string {
	return fmt.Sprintf("path %q contains an empty segment", e.Path)
}

// Is allows errors.Is() to match against ErrEmptySegment
func (e *EmptySegmentError) Is(target error) bool {
	return target == ErrEmptySegment
}

// Entry is one flat listing record: a repository-relative path and its kind.
type Entry struct {
	Path string          `json:"path"`
	Kind models.FileKind `json:"kind"`
}

// Node is one node of the built tree. Children is non-nil only for
// directories; a file node never has children. Path is the full path from
// the root, equal to the parent's path joined with Name.
type Node struct {
	Name     string          `json:"name"`
	Path     string          `json:"path"`
	Kind     models.FileKind `json:"kind"`
	Children []*Node         `json:"children,omitempty"`
}

// Forest is an ordered sequence of root-level nodes.
type Forest []*Node

// splitPath splits a path into its '/'-delimited segments, rejecting empty
// segments (leading, trailing, or doubled separators).
func splitPath(path string) ([]string, error) {
	if path == "" {
		return nil, &EmptySegmentError{Path: path}
	}
	segments := strings.Split(path, "/")
	for _, seg := range segments {
		if seg == "" {
			return nil, &EmptySegmentError{Path: path}
		}
	}
	return segments, nil
}

// Build constructs a forest from an unordered sequence of entries.
// Intermediate directories are created on demand; duplicate entries (same
// path, same kind) are idempotent. The first error encountered is returned
// with no partial forest.
func Build(entries []Entry) (Forest, error) {
	var forest Forest
	// Index by full path so repeated walks don't rescan children.
	byPath := make(map[string]*Node, len(entries))

	for _, entry := range entries {
		if !entry.Kind.Valid() {
			return nil, fmt.Errorf("unknown kind %q for path %q", entry.Kind, entry.Path)
		}

		segments, err := splitPath(entry.Path)
		if err != nil {
			return nil, err
		}

		full := ""
		var parent *Node
		for i, seg := range segments {
			if i == 0 {
				full = seg
			} else {
				full = full + "/" + seg
			}

			// Every segment but the last is a directory.
			kind := models.KindDirectory
			if i == len(segments)-1 {
				kind = entry.Kind
			}

			node, exists := byPath[full]
			if exists {
				if node.Kind != kind {
					return nil, &KindConflictError{Path: full, Existing: node.Kind, Requested: kind}
				}
			} else {
				node = &Node{Name: seg, Path: full, Kind: kind}
				byPath[full] = node
				if parent == nil {
					forest = append(forest, node)
				} else {
					parent.Children = append(parent.Children, node)
				}
			}
			parent = node
		}
	}

	return forest, nil
}

// Insert adds a single entry to an existing forest, creating intermediate
// directories as needed, and returns the updated forest. A conflict can
// only arise on a node that already existed before the call, and existing
// nodes are checked before anything new is attached, so callers never
// observe a partially inserted path on error.
func Insert(forest Forest, path string, kind models.FileKind) (Forest, error) {
	if !kind.Valid() {
		return forest, fmt.Errorf("unknown kind %q for path %q", kind, path)
	}

	segments, err := splitPath(path)
	if err != nil {
		return forest, err
	}

	full := ""
	var parent *Node
	siblings := forest
	for i, seg := range segments {
		if i == 0 {
			full = seg
		} else {
			full = full + "/" + seg
		}

		segKind := models.KindDirectory
		if i == len(segments)-1 {
			segKind = kind
		}

		node := findChild(siblings, seg)
		if node != nil {
			if node.Kind != segKind {
				return forest, &KindConflictError{Path: full, Existing: node.Kind, Requested: segKind}
			}
		} else {
			node = &Node{Name: seg, Path: full, Kind: segKind}
			if parent == nil {
				forest = append(forest, node)
			} else {
				parent.Children = append(parent.Children, node)
			}
		}
		parent = node
		siblings = node.Children
	}

	return forest, nil
}

// findChild scans siblings for a node by name. Listings are shallow enough
// that a linear scan beats maintaining per-parent indexes on every forest.
func findChild(siblings []*Node, name string) *Node {
	for _, n := range siblings {
		if n.Name == name {
			return n
		}
	}
	return nil
}

// Find resolves a '/'-joined path segment by segment from the root.
// A miss is a query outcome, not an error: (nil, false).
func Find(forest Forest, path string) (*Node, bool) {
	if path == "" {
		return nil, false
	}
	siblings := forest
	var node *Node
	for _, seg := range strings.Split(path, "/") {
		if seg == "" {
			return nil, false
		}
		node = findChild(siblings, seg)
		if node == nil {
			return nil, false
		}
		siblings = node.Children
	}
	return node, true
}

// Count returns the total number of nodes in the forest.
func Count(forest Forest) int {
	total := 0
	for _, root := range forest {
		total += countNode(root)
	}
	return total
}

func countNode(n *Node) int {
	total := 1
	for _, child := range n.Children {
		total += countNode(child)
	}
	return total
}

// Sorted returns a deep copy of the forest with siblings ordered
// directories-first, then by name. The structural forest keeps first-seen
// order; this copy exists purely for presentation.
func Sorted(forest Forest) Forest {
	out := make(Forest, len(forest))
	for i, root := range forest {
		out[i] = sortedNode(root)
	}
	sortSiblings(out)
	return out
}

func sortedNode(n *Node) *Node {
	copied := &Node{Name: n.Name, Path: n.Path, Kind: n.Kind}
	if len(n.Children) > 0 {
		copied.Children = make([]*Node, len(n.Children))
		for i, child := range n.Children {
			copied.Children[i] = sortedNode(child)
		}
		sortSiblings(copied.Children)
	}
	return copied
}

func sortSiblings(nodes []*Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].Kind != nodes[j].Kind {
			return nodes[i].Kind == models.KindDirectory
		}
		return nodes[i].Name < nodes[j].Name
	})
}
