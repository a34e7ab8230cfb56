package util

import "slices"

type (
	// PathTree stores values keyed by hierarchical paths, such as the
	// context path of a nested flow. A value may live at any depth, so a
	// parent and its descendants can each hold one
	PathTree[T any] struct {
		root *pathNode[T]
	}

	pathNode[T any] struct {
		value T
		set   bool
		kids  map[string]*pathNode[T]
	}
)

// NewPathTree creates an empty PathTree
func NewPathTree[T any]() *PathTree[T] {
	return &PathTree[T]{root: &pathNode[T]{}}
}

// Insert stores v at path, replacing any value already there
func (t *PathTree[T]) Insert(path []string, v T) {
	n := t.root
	for _, seg := range path {
		if n.kids == nil {
			n.kids = map[string]*pathNode[T]{}
		}
		next, ok := n.kids[seg]
		if !ok {
			next = &pathNode[T]{}
			n.kids[seg] = next
		}
		n = next
	}
	n.value, n.set = v, true
}

// Get returns the value stored at exactly path
func (t *PathTree[T]) Get(path []string) (T, bool) {
	if n := t.find(path); n != nil && n.set {
		return n.value, true
	}
	var zero T
	return zero, false
}

// Under returns the values at or below prefix, parents before children and
// siblings in key order. Nil means nothing is stored there
func (t *PathTree[T]) Under(prefix []string) []T {
	n := t.find(prefix)
	if n == nil {
		return nil
	}
	return n.collect(nil)
}

// Remove clears the value at exactly path and prunes any branch left empty.
// Descendants are untouched
func (t *PathTree[T]) Remove(path []string) {
	t.root.clear(path)
}

// Detach cuts the subtree at prefix out of the tree and returns its values
// in the same order as Under
func (t *PathTree[T]) Detach(prefix []string) []T {
	if len(prefix) == 0 {
		old := t.root
		t.root = &pathNode[T]{}
		return old.collect(nil)
	}
	parent := t.find(prefix[:len(prefix)-1])
	if parent == nil {
		return nil
	}
	last := prefix[len(prefix)-1]
	n, ok := parent.kids[last]
	if !ok {
		return nil
	}
	delete(parent.kids, last)
	return n.collect(nil)
}

func (t *PathTree[T]) find(path []string) *pathNode[T] {
	n := t.root
	for _, seg := range path {
		next, ok := n.kids[seg]
		if !ok {
			return nil
		}
		n = next
	}
	return n
}

// clear reports whether n is now empty and can be pruned by its parent
func (n *pathNode[T]) clear(path []string) bool {
	if len(path) == 0 {
		var zero T
		n.value, n.set = zero, false
		return len(n.kids) == 0
	}
	next, ok := n.kids[path[0]]
	if !ok {
		return false
	}
	if next.clear(path[1:]) {
		delete(n.kids, path[0])
	}
	return !n.set && len(n.kids) == 0
}

func (n *pathNode[T]) collect(out []T) []T {
	if out == nil {
		out = []T{}
	}
	if n.set {
		out = append(out, n.value)
	}
	keys := make([]string, 0, len(n.kids))
	for k := range n.kids {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		out = n.kids[k].collect(out)
	}
	return out
}
