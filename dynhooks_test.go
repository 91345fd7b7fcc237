package dynhooks

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/praetorian-inc/dynhooks/pkg/mount"
	"github.com/praetorian-inc/dynhooks/pkg/types"
)

type testClass string

func (c testClass) ClassName() string { return string(c) }

type testInstance struct {
	hookID  int
	inputs  map[string]any
	outputs map[string]types.OutputHandler
	mounts  []mount.MountEvent
	changes []mount.ChangesEvent
}

func (i *testInstance) OnDynamicMount(e mount.MountEvent) { i.mounts = append(i.mounts, e) }

func (i *testInstance) OnDynamicChanges(e mount.ChangesEvent) { i.changes = append(i.changes, e) }

type testFactory struct {
	mu        sync.Mutex
	instances map[int]*testInstance
	order     []int
	updates   map[int][]map[string]mount.Change
	unmounted []int
}

func newTestFactory() *testFactory {
	return &testFactory{
		instances: make(map[int]*testInstance),
		updates:   make(map[int][]map[string]mount.Change),
	}
}

func (f *testFactory) Mount(_ types.Class, req mount.MountRequest) (types.Instance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inst := &testInstance{hookID: req.Hook.ID, inputs: req.Inputs, outputs: req.Outputs}
	f.instances[req.Hook.ID] = inst
	f.order = append(f.order, req.Hook.ID)
	return inst, nil
}

func (f *testFactory) Update(inst types.Instance, changes map[string]mount.Change) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := inst.(*testInstance).hookID
	f.updates[id] = append(f.updates[id], changes)
	return nil
}

func (f *testFactory) Unmount(inst types.Instance) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unmounted = append(f.unmounted, inst.(*testInstance).hookID)
}

func (f *testFactory) instance(id int) *testInstance {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.instances[id]
}

// fixedFinder reports the same positions for any content.
type fixedFinder struct {
	name      string
	positions []types.HookPosition
}

func (f *fixedFinder) Name() string { return f.name }

func (f *fixedFinder) Find(string) ([]types.HookPosition, error) { return f.positions, nil }

func span(start, end int) types.OffsetSpan { return types.OffsetSpan{Start: start, End: end} }

func closing(start, end int) *types.OffsetSpan {
	s := span(start, end)
	return &s
}

func waitSettled(t *testing.T, r *Result) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, r.Wait(ctx))
}

func TestNew(t *testing.T) {
	engine, err := New(WithHookSpec(HookSpec{Selector: "app-card"}))
	require.NoError(t, err)
	defer engine.Close()

	assert.Equal(t, []string{"app-card"}, engine.Parsers())
	assert.Equal(t, 5, engine.Config().CompareByValueDepth)
}

func TestNew_Errors(t *testing.T) {
	_, err := New(WithUnit("app-card", types.Eager(testClass("card"))))
	assert.Error(t, err, "units need a factory")

	_, err = New(WithHookSpec(HookSpec{Selector: "app card"}))
	assert.Error(t, err)

	_, err = New(WithHookSpec(HookSpec{Selector: "a", DenyInputs: []string{"("}}))
	assert.Error(t, err)

	_, err = New(WithCompareByValue(-1))
	assert.Error(t, err)

	_, err = New(WithConfigFile(filepath.Join(t.TempDir(), "missing.yml")))
	assert.Error(t, err)
}

func TestNew_ParserCollision(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	engine, err := New(
		WithLogger(logger),
		WithHookSpec(HookSpec{Selector: "app-card"}),
		WithHookSpec(HookSpec{Selector: "app-card", OpeningDelimiter: "[", ClosingDelimiter: "]"}),
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"app-card"}, engine.Parsers())
	assert.Contains(t, buf.String(), "parser name already registered")

	// the first registration wins
	result, err := engine.Parse(context.Background(), "[app-card]<app-card></app-card>", nil)
	require.NoError(t, err)
	require.Len(t, result.Hooks, 1)
	assert.Equal(t, 10, result.Hooks[1].Position.Opening.Start)
}

func TestNew_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hooks.yml")
	data := `compare_by_value: true
hooks:
  - selector: app-card
  - name: lazy
    selector: lazy-hook
    self_closing: true
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	engine, err := New(WithConfigFile(path), WithHookSpec(HookSpec{Selector: "app-extra"}))
	require.NoError(t, err)

	assert.Equal(t, []string{"app-card", "lazy", "app-extra"}, engine.Parsers())
	assert.True(t, engine.Config().CompareByValue)
}

func TestParse_NoHooks(t *testing.T) {
	engine, err := New(WithHookSpec(HookSpec{Selector: "app-card"}))
	require.NoError(t, err)

	content := "<p>plain <b>text</b> with app-card mentioned</p>"
	result, err := engine.Parse(context.Background(), content, nil)
	require.NoError(t, err)

	assert.Equal(t, content, result.Content)
	assert.Empty(t, result.Hooks)
	assert.Empty(t, result.Roots)
	select {
	case <-result.Settled():
	default:
		t.Fatal("parse without deferred units should settle immediately")
	}
}

func TestParse_NilContext(t *testing.T) {
	engine, err := New()
	require.NoError(t, err)

	//nolint:staticcheck
	_, err = engine.Parse(nil, "x", nil)
	assert.Error(t, err)
}

func TestParse_NestedAnchors(t *testing.T) {
	factory := newTestFactory()
	engine, err := New(
		WithHookSpec(HookSpec{Selector: "app-outer"}),
		WithHookSpec(HookSpec{Selector: "app-inner", SelfClosing: true}),
		WithUnit("app-outer", types.Eager(testClass("outer"))),
		WithUnit("app-inner", types.Eager(testClass("inner"))),
		WithFactory(factory),
	)
	require.NoError(t, err)

	content := `x<app-outer title="a"><app-inner/></app-outer>y`
	result, err := engine.Parse(context.Background(), content, nil)
	require.NoError(t, err)

	want := `x<dynhooks-anchor data-hook-id="1" data-hook-parser="app-outer">` +
		`<dynhooks-anchor data-hook-id="2" data-hook-parser="app-inner"></dynhooks-anchor>` +
		`</dynhooks-anchor>y`
	assert.Equal(t, want, result.Content)
	assert.Equal(t, []int{1}, result.Roots)
	assert.Equal(t, []int{2}, result.Hooks[1].ChildIDs)
	assert.Equal(t, 1, result.Hooks[2].ParentID)

	assert.Equal(t, []int{1, 2}, factory.order)
	outer := factory.instance(1)
	assert.Equal(t, "a", outer.inputs["title"])
	require.Len(t, outer.mounts, 1)
	require.Len(t, outer.mounts[0].ContentChildren, 1)
	assert.Equal(t, 2, outer.mounts[0].ContentChildren[0].HookID)
}

func TestParse_IDsNeverReused(t *testing.T) {
	factory := newTestFactory()
	engine, err := New(
		WithHookSpec(HookSpec{Selector: "app-card"}),
		WithUnit("app-card", types.Eager(testClass("card"))),
		WithFactory(factory),
	)
	require.NoError(t, err)

	first, err := engine.Parse(context.Background(), "<app-card></app-card><app-card></app-card>", nil)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, first.IDs())

	second, err := engine.Parse(context.Background(), "<app-card></app-card>", nil)
	require.NoError(t, err)
	assert.Equal(t, []int{3}, second.IDs())

	// the previous parse was torn down
	assert.ElementsMatch(t, []int{1, 2}, factory.unmounted)
	_, ok := engine.Unit(1)
	assert.False(t, ok)
}

func TestParse_HookWithoutUnitKeepsTreeWalks(t *testing.T) {
	factory := newTestFactory()
	engine, err := New(
		WithHookSpec(HookSpec{Selector: "app-outer"}),
		WithHookSpec(HookSpec{Selector: "app-mid"}),
		WithHookSpec(HookSpec{Selector: "app-inner", SelfClosing: true}),
		WithUnit("app-outer", types.Eager(testClass("outer"))),
		WithUnit("app-inner", types.Eager(testClass("inner"))),
		WithFactory(factory),
	)
	require.NoError(t, err)

	result, err := engine.Parse(context.Background(), "<app-outer><app-mid><app-inner/></app-mid></app-outer>", nil)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3}, result.IDs())
	assert.Equal(t, []int{1, 3}, factory.order)

	outer := factory.instance(1)
	require.Len(t, outer.mounts, 1)
	require.Len(t, outer.mounts[0].ContentChildren, 1)
	assert.Equal(t, 3, outer.mounts[0].ContentChildren[0].HookID)

	engine.DestroyHook(1)
	assert.Equal(t, []int{3, 1}, factory.unmounted)
	_, ok := engine.Unit(3)
	assert.False(t, ok)
}

func TestParse_LazyBelowHookWithoutUnit(t *testing.T) {
	release := make(chan struct{})
	resolver := func(context.Context) (types.Class, error) {
		<-release
		return testClass("inner"), nil
	}

	factory := newTestFactory()
	engine, err := New(
		WithHookSpec(HookSpec{Selector: "app-outer"}),
		WithHookSpec(HookSpec{Selector: "app-mid"}),
		WithHookSpec(HookSpec{Selector: "app-inner", SelfClosing: true}),
		WithUnit("app-outer", types.Eager(testClass("outer"))),
		WithUnit("app-inner", types.Deferred(resolver)),
		WithFactory(factory),
	)
	require.NoError(t, err)
	defer engine.Close()

	result, err := engine.Parse(context.Background(), "<app-outer><app-mid><app-inner/></app-mid></app-outer>", nil)
	require.NoError(t, err)

	outer := factory.instance(1)
	require.Len(t, outer.mounts, 1)
	assert.Empty(t, outer.mounts[0].ContentChildren)

	close(release)
	waitSettled(t, result)

	require.Len(t, outer.changes, 1)
	require.Len(t, outer.changes[0].ContentChildren, 1)
	assert.Equal(t, 3, outer.changes[0].ContentChildren[0].HookID)
}

func TestParse_LazyOrdering(t *testing.T) {
	release := make(chan struct{})
	resolver := func(ctx context.Context) (types.Class, error) {
		select {
		case <-release:
			return testClass("lazy"), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	factory := newTestFactory()
	engine, err := New(
		WithHookSpec(HookSpec{Selector: "deferred-hook", OpeningDelimiter: "[", ClosingDelimiter: "]", SelfClosing: true}),
		WithUnit("deferred-hook", types.Deferred(resolver)),
		WithFactory(factory),
	)
	require.NoError(t, err)
	defer engine.Close()

	result, err := engine.Parse(context.Background(), "A [deferred-hook] B", nil)
	require.NoError(t, err)

	// anchor, ids and tree are in place before the class resolves
	anchor := `<dynhooks-anchor data-hook-id="1" data-hook-parser="deferred-hook"></dynhooks-anchor>`
	assert.Equal(t, "A "+anchor+" B", result.Content)
	assert.Equal(t, []int{1}, result.Roots)

	info, ok := engine.Unit(1)
	require.True(t, ok)
	assert.True(t, info.Pending)
	assert.Nil(t, info.Instance)
	assert.Nil(t, factory.instance(1))

	close(release)
	waitSettled(t, result)

	info, ok = engine.Unit(1)
	require.True(t, ok)
	assert.Equal(t, types.StateMounted, info.State)
	assert.NotNil(t, factory.instance(1))
	assert.Equal(t, "A "+anchor+" B", result.Content)
}

func TestParse_NestingRejection(t *testing.T) {
	var buf bytes.Buffer
	a := &fixedFinder{name: "a", positions: []types.HookPosition{
		{Opening: span(0, 50), Closing: closing(80, 90)},
	}}
	b := &fixedFinder{name: "b", positions: []types.HookPosition{
		{Opening: span(40, 60), Closing: closing(70, 75)},
	}}

	engine, err := New(
		WithLogger(slog.New(slog.NewTextHandler(&buf, nil))),
		WithFinder(a, HookSpec{}),
		WithFinder(b, HookSpec{}),
	)
	require.NoError(t, err)

	result, err := engine.Parse(context.Background(), strings.Repeat("x", 100), nil)
	require.NoError(t, err)

	require.Len(t, result.Hooks, 1)
	assert.Equal(t, "a", result.Hooks[1].Parser)
	assert.Contains(t, buf.String(), "hook position rejected")
}

func TestParse_DuplicateCollapse(t *testing.T) {
	pos := types.HookPosition{Opening: span(0, 5), Closing: closing(10, 15)}
	engine, err := New(
		WithFinder(&fixedFinder{name: "first", positions: []types.HookPosition{pos}}, HookSpec{}),
		WithFinder(&fixedFinder{name: "second", positions: []types.HookPosition{pos}}, HookSpec{}),
	)
	require.NoError(t, err)

	result, err := engine.Parse(context.Background(), strings.Repeat("x", 20), nil)
	require.NoError(t, err)

	require.Len(t, result.Hooks, 1)
	assert.Equal(t, "first", result.Hooks[1].Parser)
}

func TestParse_BindingsAndUpdate(t *testing.T) {
	factory := newTestFactory()
	engine, err := New(
		WithHookSpec(HookSpec{Selector: "app-counter", DenyInputs: []string{"^secret$"}}),
		WithUnit("app-counter", types.Eager(testClass("counter"))),
		WithFactory(factory),
	)
	require.NoError(t, err)

	var clicked any
	data := map[string]any{
		"n":     1,
		"other": "x",
		"click": func(e any) string { clicked = e; return "ok" },
	}
	content := `<app-counter [count]="context.n" label="hi" secret="s" (pressed)="context.click($event)"></app-counter>`

	_, err = engine.Parse(context.Background(), content, data)
	require.NoError(t, err)

	inst := factory.instance(1)
	require.NotNil(t, inst)
	assert.Equal(t, map[string]any{"count": 1, "label": "hi"}, inst.inputs)

	out, err := inst.outputs["pressed"]("payload")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, "payload", clicked)

	changed := engine.Update(map[string]any{"n": 2, "click": data["click"]})
	assert.Equal(t, map[int][]string{1: {"count"}}, changed)
	require.Len(t, factory.updates[1], 1)
	assert.Equal(t, mount.Change{Previous: 1, Current: 2}, factory.updates[1][0]["count"])

	// a context that leaves count untouched propagates nothing
	changed = engine.Update(map[string]any{"n": 2})
	assert.Empty(t, changed)
}

func TestParseElement(t *testing.T) {
	doc, err := html.Parse(strings.NewReader(
		`<div><app-card title="outer" [count]="context.n"><p><app-card title="inner"></app-card></p></app-card></div>`))
	require.NoError(t, err)

	factory := newTestFactory()
	engine, err := New(
		WithHookSpec(HookSpec{Selector: "app-card"}),
		WithUnit("app-card", types.Eager(testClass("card"))),
		WithFactory(factory),
	)
	require.NoError(t, err)

	result, err := engine.ParseElement(context.Background(), doc, map[string]any{"n": 7})
	require.NoError(t, err)

	assert.Equal(t, []int{1}, result.Roots)
	assert.Equal(t, []int{2}, result.Hooks[1].ChildIDs)
	assert.Same(t, doc, result.Root)

	outer := result.Hooks[1].Value.Element
	require.NotNil(t, outer)
	assert.Contains(t, outer.Attr, html.Attribute{Key: HookIDAttribute, Val: "1"})

	assert.Equal(t, map[string]any{"title": "outer", "count": 7}, factory.instance(1).inputs)
	assert.Equal(t, map[string]any{"title": "inner"}, factory.instance(2).inputs)
}

func TestClose(t *testing.T) {
	factory := newTestFactory()
	engine, err := New(
		WithHookSpec(HookSpec{Selector: "app-card"}),
		WithUnit("app-card", types.Eager(testClass("card"))),
		WithFactory(factory),
	)
	require.NoError(t, err)

	_, err = engine.Parse(context.Background(), "<app-card></app-card>", nil)
	require.NoError(t, err)

	require.NoError(t, engine.Close())
	assert.Equal(t, []int{1}, factory.unmounted)

	_, err = engine.Parse(context.Background(), "<app-card></app-card>", nil)
	assert.ErrorIs(t, err, ErrClosed)
	require.NoError(t, engine.Close())
}
