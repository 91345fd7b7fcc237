package finder

import (
	"golang.org/x/net/html"

	"github.com/praetorian-inc/dynhooks/pkg/types"
)

// Predicate selects hook elements in element mode.
type Predicate func(n *html.Node) bool

type predicateFinder struct {
	name  string
	match Predicate
}

// NewPredicate returns an element finder that hooks every element n for
// which match(n) is true. Only element nodes are offered to match.
func NewPredicate(name string, match Predicate) ElementFinder {
	return &predicateFinder{name: name, match: match}
}

func (f *predicateFinder) Name() string { return f.name }

func (f *predicateFinder) FindElements(root *html.Node) ([]types.HookPosition, error) {
	return walkElements(root, f.match), nil
}

// walkElements visits root in document order. Entering a node consumes one
// index and leaving it consumes another, so a matched element's opening is
// [enter, enter+1) and its closing is [exit, exit+1).
func walkElements(root *html.Node, match Predicate) []types.HookPosition {
	if root == nil {
		return nil
	}
	var positions []types.HookPosition
	idx := 0

	var visit func(n *html.Node)
	visit = func(n *html.Node) {
		enter := idx
		idx++

		at := -1
		if n.Type == html.ElementNode && match(n) {
			positions = append(positions, types.HookPosition{
				Opening: types.OffsetSpan{Start: enter, End: enter + 1},
				Element: n,
			})
			at = len(positions) - 1
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}

		exit := idx
		idx++
		if at >= 0 {
			positions[at].Closing = &types.OffsetSpan{Start: exit, End: exit + 1}
		}
	}
	visit(root)
	return positions
}

// ElementSpan returns the length of root's enter/exit index space.
func ElementSpan(root *html.Node) int {
	if root == nil {
		return 0
	}
	n := 2
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		n += ElementSpan(c)
	}
	return n
}
