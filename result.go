package dynhooks

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/net/html"

	"github.com/praetorian-inc/dynhooks/pkg/mount"
	"github.com/praetorian-inc/dynhooks/pkg/tree"
	"github.com/praetorian-inc/dynhooks/pkg/types"
)

// AnchorTag is the element hook markers are rewritten to in Result.Content.
const AnchorTag = "dynhooks-anchor"

// Result is the outcome of one parse.
type Result struct {
	// Content is the parsed string with every hook's markers replaced by
	// anchor elements. Empty for element mode.
	Content string

	// Root is the parsed tree for element mode, with hook elements marked.
	Root *html.Node

	// Hooks maps hook id to hook.
	Hooks map[int]*types.Hook

	// Roots lists the ids of hooks not nested in another hook, in document order.
	Roots []int

	pass *mount.Pass
}

func newResult(content string, root *html.Node, hooks []*types.Hook, pass *mount.Pass) *Result {
	return &Result{
		Content: content,
		Root:    root,
		Hooks:   tree.Index(hooks),
		Roots:   tree.Roots(hooks),
		pass:    pass,
	}
}

// IDs returns all hook ids in ascending order.
func (r *Result) IDs() []int {
	ids := make([]int, 0, len(r.Hooks))
	for id := range r.Hooks {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Settled is closed once every deferred unit of the parse has mounted, failed
// or been abandoned.
func (r *Result) Settled() <-chan struct{} {
	return r.pass.Settled()
}

// Wait blocks until the parse has settled or ctx is done.
func (r *Result) Wait(ctx context.Context) error {
	return r.pass.Wait(ctx)
}

// Pending returns the number of deferred units still resolving.
func (r *Result) Pending() int {
	return r.pass.Pending()
}

type replacement struct {
	span types.OffsetSpan
	text string
}

// anchor rewrites hook markers into anchor elements. Content without hooks
// is returned unchanged.
func anchor(content string, hooks []*types.Hook) string {
	if len(hooks) == 0 {
		return content
	}

	reps := make([]replacement, 0, 2*len(hooks))
	for _, h := range hooks {
		open := fmt.Sprintf(`<%s data-hook-id="%d" data-hook-parser="%s">`,
			AnchorTag, h.ID, html.EscapeString(h.Parser))
		closeTag := "</" + AnchorTag + ">"
		if h.Position.Closing == nil {
			reps = append(reps, replacement{span: h.Position.Opening, text: open + closeTag})
			continue
		}
		reps = append(reps,
			replacement{span: h.Position.Opening, text: open},
			replacement{span: *h.Position.Closing, text: closeTag},
		)
	}
	sort.Slice(reps, func(i, j int) bool { return reps[i].span.Start < reps[j].span.Start })

	var b strings.Builder
	b.Grow(len(content) + 64*len(hooks))
	last := 0
	for _, r := range reps {
		b.WriteString(content[last:r.span.Start])
		b.WriteString(r.text)
		last = r.span.End
	}
	b.WriteString(content[last:])
	return b.String()
}
