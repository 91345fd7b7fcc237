// Package binding turns hook attributes into input and output bindings and
// keeps input bindings current across update passes.
package binding

import (
	"io"
	"log/slog"
	"sort"

	"github.com/praetorian-inc/dynhooks/pkg/compare"
	"github.com/praetorian-inc/dynhooks/pkg/expr"
	"github.com/praetorian-inc/dynhooks/pkg/types"
)

// Manager creates and refreshes bindings with an expression evaluator.
type Manager struct {
	eval *expr.Evaluator
	log  *slog.Logger
}

// NewManager creates a manager. A nil logger discards warnings.
func NewManager(eval *expr.Evaluator, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Manager{eval: eval, log: log}
}

// With returns a manager whose warnings carry the given attributes,
// typically hook_id and parser.
func (m *Manager) With(args ...any) *Manager {
	return &Manager{eval: m.eval, log: m.log.With(args...)}
}

// CreateInputs evaluates input and static attributes. Attributes whose
// expression does not evaluate are left out. When a name repeats, the first
// attribute wins.
func (m *Manager) CreateInputs(attrs []types.RawAttribute, data any) map[string]*types.Binding {
	bindings := make(map[string]*types.Binding)
	for _, a := range attrs {
		if a.Kind == types.AttrOutput {
			continue
		}
		if _, dup := bindings[a.Name]; dup {
			m.log.Debug("duplicate binding ignored", "binding", a.Name)
			continue
		}

		if a.Kind == types.AttrStatic {
			bindings[a.Name] = &types.Binding{
				Raw:     a.Value,
				Value:   a.Value,
				Tracked: map[string]types.TrackedPath{},
			}
			continue
		}

		res, err := m.eval.Evaluate(a.Value, data)
		if err != nil {
			m.log.Warn("input binding dropped", "binding", a.Name, "expr", a.Value, "err", err)
			continue
		}
		bindings[a.Name] = &types.Binding{
			Raw:     a.Value,
			Value:   res.Value,
			Tracked: res.Tracked,
		}
	}
	return bindings
}

// UpdateInputs re-reads the tracked paths of every non-static binding. When
// all of them still hold the same values the binding is left untouched;
// otherwise the expression is evaluated again and its value and tracked paths
// are replaced. It returns the names of replaced bindings, sorted.
//
// A failed re-evaluation keeps the previous value.
func (m *Manager) UpdateInputs(bindings map[string]*types.Binding, data any) []string {
	var updated []string
	for name, b := range bindings {
		if b.Static() || !m.stale(b, data) {
			continue
		}

		res, err := m.eval.Evaluate(b.Raw, data)
		if err != nil {
			m.log.Warn("input binding re-evaluation failed, keeping previous value",
				"binding", name, "expr", b.Raw, "err", err)
			continue
		}
		b.Value = res.Value
		b.Tracked = res.Tracked
		updated = append(updated, name)
	}
	sort.Strings(updated)
	return updated
}

func (m *Manager) stale(b *types.Binding, data any) bool {
	for _, tp := range b.Tracked {
		if tp.Method {
			continue
		}
		if !compare.Same(expr.Resolve(data, tp.Segments), tp.Value) {
			return true
		}
	}
	return false
}

// CreateOutputs builds handlers for output attributes. Each handler
// evaluates its expression against ref's value at the time it fires, with
// $event bound to the payload. An expression that does not parse yields a
// handler that only logs.
func (m *Manager) CreateOutputs(attrs []types.RawAttribute, ref *types.ContextRef) map[string]*types.OutputBinding {
	outputs := make(map[string]*types.OutputBinding)
	for _, a := range attrs {
		if a.Kind != types.AttrOutput {
			continue
		}
		if _, dup := outputs[a.Name]; dup {
			m.log.Debug("duplicate binding ignored", "binding", a.Name)
			continue
		}
		outputs[a.Name] = &types.OutputBinding{
			Raw:     a.Value,
			Handler: m.handler(a.Name, a.Value, ref),
		}
	}
	return outputs
}

func (m *Manager) handler(name, raw string, ref *types.ContextRef) types.OutputHandler {
	log := m.log.With("binding", name, "expr", raw)

	if _, err := m.eval.Parse(raw); err != nil {
		log.Warn("output binding does not parse", "err", err)
		return func(any) (any, error) {
			log.Warn("output binding fired but does not parse")
			return types.Undefined, nil
		}
	}

	return func(event any) (any, error) {
		res, err := m.eval.Evaluate(raw, ref.Load(), expr.WithEvent(event))
		if err != nil {
			log.Warn("output binding failed", "err", err)
			return nil, err
		}
		return res.Value, nil
	}
}
