package mount

import (
	"context"
	"sync/atomic"
)

// Pass is one mount pass.
type Pass struct {
	id      uint64
	settled chan struct{}
	pending atomic.Int64
}

// ID returns the pass number.
func (p *Pass) ID() uint64 { return p.id }

// Settled is closed once every deferred resolution started by the pass has
// resolved or been abandoned.
func (p *Pass) Settled() <-chan struct{} { return p.settled }

// Pending returns the number of deferred resolutions still in flight.
func (p *Pass) Pending() int { return int(p.pending.Load()) }

// Wait blocks until the pass settles or ctx is done.
func (p *Pass) Wait(ctx context.Context) error {
	select {
	case <-p.settled:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
