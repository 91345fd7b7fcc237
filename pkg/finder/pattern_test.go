package finder

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/dynhooks/pkg/types"
)

func newSelector(t *testing.T, spec types.HookSpec) *Selector {
	t.Helper()
	s, err := NewSelector(spec, nil)
	require.NoError(t, err)
	return s
}

func TestSelector_FindEnclosing(t *testing.T) {
	s := newSelector(t, types.HookSpec{Selector: "app-card"})
	content := `<p>x</p><app-card [title]="context.t">body</app-card>`

	positions, err := s.Find(content)
	require.NoError(t, err)
	require.Len(t, positions, 1)

	p := positions[0]
	assert.Equal(t, `<app-card [title]="context.t">`, content[p.Opening.Start:p.Opening.End])
	require.NotNil(t, p.Closing)
	assert.Equal(t, `</app-card>`, content[p.Closing.Start:p.Closing.End])
	assert.Equal(t, "body", content[p.Opening.End:p.Closing.Start])
}

func TestSelector_SameNameNesting(t *testing.T) {
	s := newSelector(t, types.HookSpec{Selector: "box"})
	content := `<box>a<box>b</box>c</box>`

	positions, err := s.Find(content)
	require.NoError(t, err)
	require.Len(t, positions, 2)

	outer, inner := positions[0], positions[1]
	assert.Equal(t, 0, outer.Opening.Start)
	assert.Equal(t, len(content)-len("</box>"), outer.Closing.Start)
	assert.Equal(t, 6, inner.Opening.Start)
	assert.Equal(t, 12, inner.Closing.Start)
	assert.True(t, outer.Encloses(inner.Opening.Start))
}

func TestSelector_NameBoundary(t *testing.T) {
	s := newSelector(t, types.HookSpec{Selector: "item"})

	positions, err := s.Find(`<items></items><item></item>`)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, 15, positions[0].Opening.Start)
}

func TestSelector_SelfClosing(t *testing.T) {
	s := newSelector(t, types.HookSpec{Selector: "hr-hook", SelfClosing: true})

	positions, err := s.Find(`a <hr-hook [x]="1"> b <hr-hook/>`)
	require.NoError(t, err)
	require.Len(t, positions, 2)
	for _, p := range positions {
		assert.True(t, p.SelfClosing())
	}
}

func TestSelector_SlashClosedOpeningOnEnclosingKind(t *testing.T) {
	s := newSelector(t, types.HookSpec{Selector: "x"})

	positions, err := s.Find(`<x/><x>in</x>`)
	require.NoError(t, err)
	require.Len(t, positions, 2)
	assert.True(t, positions[0].SelfClosing())
	assert.False(t, positions[1].SelfClosing())
}

func TestSelector_CustomDelimiters(t *testing.T) {
	s := newSelector(t, types.HookSpec{
		Selector:         "widget",
		OpeningDelimiter: "[[",
		ClosingDelimiter: "]]",
	})
	content := `text [[widget [a]="context.list[0]"]]inner[[/widget]] end`

	positions, err := s.Find(content)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	p := positions[0]
	assert.Equal(t, `[[widget [a]="context.list[0]"]]`, content[p.Opening.Start:p.Opening.End])
	assert.Equal(t, "inner", content[p.Opening.End:p.Closing.Start])
	assert.Equal(t, "[[widget", s.Keyword())
}

func TestSelector_DelimitersInsideQuotedValues(t *testing.T) {
	s := newSelector(t, types.HookSpec{Selector: "x"})
	content := `<x [label]="'a > b </x>'">body</x>`

	positions, err := s.Find(content)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	p := positions[0]
	assert.Equal(t, `<x [label]="'a > b </x>'">`, content[p.Opening.Start:p.Opening.End])
	assert.Equal(t, "body", content[p.Opening.End:p.Closing.Start])
}

func TestSelector_UnmatchedMarkersDropped(t *testing.T) {
	s := newSelector(t, types.HookSpec{Selector: "x"})

	positions, err := s.Find(`</x><x>open only`)
	require.NoError(t, err)
	assert.Empty(t, positions)
}

func TestSelector_NonASCIIOffsets(t *testing.T) {
	s := newSelector(t, types.HookSpec{Selector: "x"})
	content := `héllo wörld <x>ünïcode</x>`

	positions, err := s.Find(content)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	p := positions[0]
	assert.Equal(t, "<x>", content[p.Opening.Start:p.Opening.End])
	assert.Equal(t, "</x>", content[p.Closing.Start:p.Closing.End])
	assert.Equal(t, strings.Index(content, "<x>"), p.Opening.Start)
}

func TestSelector_Attributes(t *testing.T) {
	s := newSelector(t, types.HookSpec{Selector: "x"})

	attrs := s.Attributes(`<x [a]="context.a" (clicked)="context.on($event)" plain="text" flag/>`)
	assert.Equal(t, []types.RawAttribute{
		{Name: "a", Value: "context.a", Kind: types.AttrInput},
		{Name: "clicked", Value: "context.on($event)", Kind: types.AttrOutput},
		{Name: "plain", Value: "text", Kind: types.AttrStatic},
		{Name: "flag", Value: "", Kind: types.AttrStatic},
	}, attrs)
}

func TestNewSelector_Invalid(t *testing.T) {
	_, err := NewSelector(types.HookSpec{}, nil)
	assert.Error(t, err)

	_, err = NewSelector(types.HookSpec{Selector: "a b"}, nil)
	assert.Error(t, err)
}
