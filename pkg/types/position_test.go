package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOffsetSpan_Overlaps(t *testing.T) {
	assert.True(t, OffsetSpan{0, 10}.Overlaps(OffsetSpan{5, 15}))
	assert.True(t, OffsetSpan{5, 15}.Overlaps(OffsetSpan{0, 10}))
	assert.False(t, OffsetSpan{0, 10}.Overlaps(OffsetSpan{10, 20}), "touching spans do not overlap")
	assert.False(t, OffsetSpan{20, 30}.Overlaps(OffsetSpan{0, 10}))
}

func TestHookPosition_SelfClosing(t *testing.T) {
	p := HookPosition{Opening: OffsetSpan{0, 5}}
	assert.True(t, p.SelfClosing())
	assert.Equal(t, 5, p.End())
	assert.False(t, p.Encloses(3))

	p.Closing = &OffsetSpan{10, 15}
	assert.False(t, p.SelfClosing())
	assert.Equal(t, 15, p.End())
}

func TestHookPosition_Encloses(t *testing.T) {
	p := HookPosition{Opening: OffsetSpan{0, 5}, Closing: &OffsetSpan{20, 26}}

	assert.False(t, p.Encloses(4), "inside opening marker")
	assert.True(t, p.Encloses(5))
	assert.True(t, p.Encloses(19))
	assert.False(t, p.Encloses(20), "inside closing marker")
}

func TestHookPosition_Equal(t *testing.T) {
	a := HookPosition{Opening: OffsetSpan{0, 5}, Closing: &OffsetSpan{20, 26}}
	b := HookPosition{Opening: OffsetSpan{0, 5}, Closing: &OffsetSpan{20, 26}}
	c := HookPosition{Opening: OffsetSpan{0, 5}}

	assert.True(t, a.Equal(b), "distinct closing pointers with equal spans")
	assert.False(t, a.Equal(c))
	assert.False(t, c.Equal(a))
	assert.True(t, c.Equal(HookPosition{Opening: OffsetSpan{0, 5}}))
}
