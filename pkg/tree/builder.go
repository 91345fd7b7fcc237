// Package tree assigns hook ids and builds the containment tree from
// validated positions.
package tree

import (
	"github.com/praetorian-inc/dynhooks/pkg/types"
)

// Builder assigns ids from a counter that starts at 1 and never goes back,
// so ids from an earlier pass are never handed out again.
type Builder struct {
	next int
}

// NewBuilder creates a builder whose first id is 1.
func NewBuilder() *Builder {
	return &Builder{next: 1}
}

// Build turns validated candidates, sorted by opening start, into hooks.
// content is the string the offsets index into; pass "" in element mode.
func (b *Builder) Build(cands []types.Candidate, content string) []*types.Hook {
	hooks := make([]*types.Hook, 0, len(cands))
	var stack []*types.Hook

	for _, c := range cands {
		start := c.Position.Opening.Start
		for len(stack) > 0 && !stack[len(stack)-1].Position.Encloses(start) {
			stack = stack[:len(stack)-1]
		}

		h := &types.Hook{
			ID:       b.next,
			Parser:   c.Parser,
			Position: c.Position,
			Value:    valueOf(c.Position, content),
		}
		b.next++

		if len(stack) > 0 {
			parent := stack[len(stack)-1]
			h.ParentID = parent.ID
			parent.ChildIDs = append(parent.ChildIDs, h.ID)
		}
		if !c.Position.SelfClosing() {
			stack = append(stack, h)
		}
		hooks = append(hooks, h)
	}
	return hooks
}

// NextID returns the id the next hook will get.
func (b *Builder) NextID() int {
	return b.next
}

func valueOf(p types.HookPosition, content string) types.HookValue {
	if p.Element != nil || content == "" {
		return types.HookValue{Element: p.Element}
	}
	v := types.HookValue{Opening: content[p.Opening.Start:p.Opening.End]}
	if p.Closing != nil {
		v.Closing = content[p.Closing.Start:p.Closing.End]
		v.Inner = content[p.Opening.End:p.Closing.Start]
	}
	return v
}
