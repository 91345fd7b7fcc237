package position

import (
	"golang.org/x/net/html"

	"github.com/praetorian-inc/dynhooks/pkg/types"
)

// positionKey identifies a position independent of the finder that reported it.
type positionKey struct {
	opening types.OffsetSpan
	closing types.OffsetSpan
	closed  bool
	element *html.Node
}

func keyOf(p types.HookPosition) positionKey {
	k := positionKey{opening: p.Opening, element: p.Element}
	if p.Closing != nil {
		k.closing = *p.Closing
		k.closed = true
	}
	return k
}

// Deduplicator collapses positions reported more than once.
type Deduplicator struct {
	seen map[positionKey]bool
}

// NewDeduplicator creates an empty deduplicator.
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{seen: make(map[positionKey]bool)}
}

// IsDuplicate returns true if the position was already seen.
func (d *Deduplicator) IsDuplicate(p types.HookPosition) bool {
	return d.seen[keyOf(p)]
}

// Add marks a position as seen.
func (d *Deduplicator) Add(p types.HookPosition) {
	d.seen[keyOf(p)] = true
}

// Reset clears the deduplicator for reuse.
func (d *Deduplicator) Reset() {
	clear(d.seen)
}
