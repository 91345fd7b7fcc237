package types

import "golang.org/x/net/html"

// OffsetSpan is index range [Start, End) - half-open interval.
type OffsetSpan struct {
	Start int
	End   int
}

// Overlaps reports whether the two spans share at least one index.
func (s OffsetSpan) Overlaps(o OffsetSpan) bool {
	return s.Start < o.End && o.Start < s.End
}

// HookPosition locates the markers of one hook.
//
// In string mode the offsets index into the content string. In element mode they
// are document-order indices handed out by the element finder, and Element holds
// the matched node.
type HookPosition struct {
	Opening OffsetSpan
	Closing *OffsetSpan // nil for self-closing hooks
	Element *html.Node
}

// SelfClosing reports whether the hook has no closing marker.
func (p HookPosition) SelfClosing() bool {
	return p.Closing == nil
}

// End returns the index right after the hook's last marker.
func (p HookPosition) End() int {
	if p.Closing != nil {
		return p.Closing.End
	}
	return p.Opening.End
}

// Encloses reports whether idx lies between the opening and the closing marker.
func (p HookPosition) Encloses(idx int) bool {
	return p.Closing != nil && idx >= p.Opening.End && idx < p.Closing.Start
}

// Equal reports whether both positions describe exactly the same markers.
func (p HookPosition) Equal(o HookPosition) bool {
	if p.Opening != o.Opening || p.Element != o.Element {
		return false
	}
	if p.Closing == nil || o.Closing == nil {
		return p.Closing == nil && o.Closing == nil
	}
	return *p.Closing == *o.Closing
}

// Candidate is a position reported by one finder, tagged with the finder's name.
type Candidate struct {
	Position HookPosition
	Parser   string
}
