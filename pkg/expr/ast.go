package expr

import (
	"strconv"
	"strings"
)

// Root names recognized at the start of a path.
const (
	RootContext = "context"
	RootEvent   = "$event"
)

type node interface{}

type literalNode struct {
	value any
}

type stringNode struct {
	body string // escapes still in place
}

type arrayNode struct {
	elems []node
}

type objectNode struct {
	keys   []string
	values []node
}

type accessorKind int

const (
	accField accessorKind = iota // .name or ["name"]
	accIndex                     // [expr]
	accCall                      // (args)
)

type accessor struct {
	kind accessorKind
	name string // accField
	key  node   // accIndex
	args []node // accCall
	pos  int
}

// pathNode is a context- or event-rooted path. head holds the leading property
// names read as a whole; rest is applied dynamically after the head.
type pathNode struct {
	root string
	head []string
	rest []accessor
}

// headKey renders the head in dotted form, e.g. context.user["full name"].
func (p *pathNode) headKey() string {
	return PathKey(p.root, p.head)
}

// PathKey renders a root and property names as a normalized path string.
func PathKey(root string, segments []string) string {
	var b strings.Builder
	b.WriteString(root)
	for _, seg := range segments {
		if isIdent(seg) {
			b.WriteByte('.')
			b.WriteString(seg)
			continue
		}
		b.WriteByte('[')
		b.WriteString(strconv.Quote(seg))
		b.WriteByte(']')
	}
	return b.String()
}

// Expr is a parsed binding expression.
type Expr struct {
	src         string
	root        node
	usesContext bool
	usesCalls   bool
}

// Source returns the expression text as it was parsed.
func (e *Expr) Source() string { return e.src }

// UsesContext reports whether any context-rooted path appears in the expression.
func (e *Expr) UsesContext() bool { return e.usesContext }

// UsesCalls reports whether the expression contains a call.
func (e *Expr) UsesCalls() bool { return e.usesCalls }
