package tree

import "github.com/praetorian-inc/dynhooks/pkg/types"

// Index maps hook ids to hooks.
func Index(hooks []*types.Hook) map[int]*types.Hook {
	index := make(map[int]*types.Hook, len(hooks))
	for _, h := range hooks {
		index[h.ID] = h
	}
	return index
}

// Roots returns the ids of hooks without a parent, in document order.
func Roots(hooks []*types.Hook) []int {
	var roots []int
	for _, h := range hooks {
		if h.IsRoot() {
			roots = append(roots, h.ID)
		}
	}
	return roots
}

// Ancestors returns the ids above id, nearest first.
func Ancestors(index map[int]*types.Hook, id int) []int {
	var out []int
	h, ok := index[id]
	for ok && h.ParentID != 0 {
		out = append(out, h.ParentID)
		h, ok = index[h.ParentID]
	}
	return out
}

// Descendants returns the ids below id in post-order, deepest first, so
// destroying them in order never leaves a child without its parent.
func Descendants(index map[int]*types.Hook, id int) []int {
	var out []int
	var visit func(int)
	visit = func(id int) {
		h, ok := index[id]
		if !ok {
			return
		}
		for _, child := range h.ChildIDs {
			visit(child)
			out = append(out, child)
		}
	}
	visit(id)
	return out
}
