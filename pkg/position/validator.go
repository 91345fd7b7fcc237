// Package position validates hook positions reported by finders.
//
// Candidates are sorted by opening offset and checked one by one against the
// candidates already accepted. A candidate breaking any rule is dropped with a
// warning; validation never fails as a whole.
package position

import (
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/praetorian-inc/dynhooks/pkg/types"
)

// Validate returns the well-formed, mutually consistent candidates sorted by
// opening start. Ties keep their input order. contentLen bounds all offsets;
// content, when non-empty, is used to report line and column of rejections.
func Validate(cands []types.Candidate, contentLen int, content string, log *slog.Logger) []types.Candidate {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	sorted := make([]types.Candidate, len(cands))
	copy(sorted, cands)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Position.Opening.Start < sorted[j].Position.Opening.Start
	})

	dedup := NewDeduplicator()
	accepted := make([]types.Candidate, 0, len(sorted))

	for _, c := range sorted {
		if err := wellFormed(c.Position, contentLen); err != nil {
			reject(log, c, content, err)
			continue
		}
		if dedup.IsDuplicate(c.Position) {
			continue
		}
		if err := conflicts(c.Position, accepted); err != nil {
			reject(log, c, content, err)
			continue
		}
		dedup.Add(c.Position)
		accepted = append(accepted, c)
	}

	return accepted
}

func wellFormed(p types.HookPosition, contentLen int) error {
	if p.Opening.Start < 0 || p.End() > contentLen {
		return fmt.Errorf("position [%d,%d) out of bounds (length %d)", p.Opening.Start, p.End(), contentLen)
	}
	if p.Opening.End <= p.Opening.Start {
		return fmt.Errorf("empty opening [%d,%d)", p.Opening.Start, p.Opening.End)
	}
	if c := p.Closing; c != nil {
		if c.Start < p.Opening.End {
			return fmt.Errorf("closing starts at %d, before opening end %d", c.Start, p.Opening.End)
		}
		if c.End <= c.Start {
			return fmt.Errorf("empty closing [%d,%d)", c.Start, c.End)
		}
	}
	return nil
}

func conflicts(p types.HookPosition, accepted []types.Candidate) error {
	for _, a := range accepted {
		prev := a.Position

		if p.Opening.Start < prev.Opening.End {
			return fmt.Errorf("opening starts inside the opening of a %q hook at %d", a.Parser, prev.Opening.Start)
		}
		if prev.Closing != nil && p.Opening.Overlaps(*prev.Closing) {
			return fmt.Errorf("opening overlaps the closing of a %q hook at %d", a.Parser, prev.Closing.Start)
		}
		if prev.Closing != nil && p.Closing != nil && p.Closing.Overlaps(*prev.Closing) {
			return fmt.Errorf("closing overlaps the closing of a %q hook at %d", a.Parser, prev.Closing.Start)
		}
		if prev.Encloses(p.Opening.Start) && p.End() > prev.Closing.Start {
			return fmt.Errorf("hook crosses the closing of the enclosing %q hook at %d", a.Parser, prev.Closing.Start)
		}
	}
	return nil
}

func reject(log *slog.Logger, c types.Candidate, content string, err error) {
	attrs := []any{"parser", c.Parser, "err", err}
	if content != "" {
		line, column := types.ComputeLineColumn(content, c.Position.Opening.Start)
		attrs = append(attrs, "line", line, "column", column)
	}
	log.Warn("hook position rejected", attrs...)
}
