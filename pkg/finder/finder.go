// Package finder locates hook markers in content.
//
// String-mode finders scan text and report byte offsets of opening and
// closing markers. Element-mode finders walk a parsed HTML tree and report
// positions in an enter/exit index space (see ElementSpan), so both modes
// share the same nesting rules downstream.
//
// Finders do not deduplicate: overlapping or repeated positions from several
// finders are resolved by the position validator.
package finder

import (
	"golang.org/x/net/html"

	"github.com/praetorian-inc/dynhooks/pkg/types"
)

// Finder locates hooks in string content.
type Finder interface {
	// Name returns the parser name positions are attributed to.
	Name() string

	// Find returns hook positions in content, in any order.
	Find(content string) ([]types.HookPosition, error)
}

// ElementFinder locates hooks in a parsed HTML tree.
type ElementFinder interface {
	Name() string
	FindElements(root *html.Node) ([]types.HookPosition, error)
}

// Keyworded is implemented by finders whose opening markers always contain a
// literal keyword. The prefilter skips such finders when the keyword is absent.
type Keyworded interface {
	Keyword() string
}

// AttributeReader is implemented by finders that know how to read bindings
// from their own opening markers.
type AttributeReader interface {
	Attributes(opening string) []types.RawAttribute
}
