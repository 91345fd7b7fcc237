package types

import "golang.org/x/net/html"

// HookValue is the raw material a hook was found with.
type HookValue struct {
	Opening string     // opening marker text (string mode)
	Closing string     // closing marker text, empty for self-closing hooks
	Inner   string     // content between the markers
	Element *html.Node // matched node (element mode)
}

// Hook is a validated, identified hook in the containment tree.
type Hook struct {
	ID       int
	Parser   string // name of the finder that reported it
	Position HookPosition
	Value    HookValue
	ParentID int   // 0 for root hooks
	ChildIDs []int // document order
}

// IsRoot reports whether no other hook contains this one.
func (h *Hook) IsRoot() bool {
	return h.ParentID == 0
}
