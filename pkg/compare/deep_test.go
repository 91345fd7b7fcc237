package compare

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type node struct {
	Name string
	Next *node
}

func TestComparer_ByReference(t *testing.T) {
	c := Comparer{}

	eq, rep := c.Equal(map[string]any{"a": 1}, map[string]any{"a": 1})
	assert.False(t, eq)
	assert.False(t, rep.Fallback)
}

func TestComparer_ByValue(t *testing.T) {
	c := Comparer{ByValue: true, MaxDepth: DefaultMaxDepth}

	eq, _ := c.Equal(
		map[string]any{"a": 1, "b": []any{"x", map[string]any{"c": true}}},
		map[string]any{"b": []any{"x", map[string]any{"c": true}}, "a": 1},
	)
	assert.True(t, eq)

	eq, _ = c.Equal(map[string]any{"a": 1}, map[string]any{"a": 2})
	assert.False(t, eq)

	eq, _ = c.Equal(&point{1, 2}, &point{1, 2})
	assert.True(t, eq)

	eq, _ = c.Equal([]int{1, 2}, []int{1, 2, 3})
	assert.False(t, eq)
}

func TestComparer_Cycles(t *testing.T) {
	c := Comparer{ByValue: true, MaxDepth: DefaultMaxDepth}

	a := &node{Name: "n"}
	a.Next = a
	b := &node{Name: "n"}
	b.Next = b

	eq, rep := c.Equal(a, b)
	assert.True(t, eq)
	assert.False(t, rep.Fallback)

	m1 := map[string]any{"k": 1}
	m1["self"] = m1
	m2 := map[string]any{"k": 2}
	m2["self"] = m2

	eq, _ = c.Equal(m1, m2)
	assert.False(t, eq)
}

func TestComparer_DepthCap(t *testing.T) {
	c := Comparer{ByValue: true, MaxDepth: 1}
	a := map[string]any{"top": 1, "deep": map[string]any{"x": 1}}
	b := map[string]any{"top": 1, "deep": map[string]any{"x": 2}}

	eq, rep := c.Equal(a, b)
	assert.True(t, eq, "differences below the cap are not seen")
	assert.Equal(t, 2, rep.DepthHits)

	eq, rep = Comparer{ByValue: true}.Equal(a, b)
	assert.False(t, eq)
	assert.Zero(t, rep.DepthHits)
}

func TestComparer_UnserializableFallsBack(t *testing.T) {
	c := Comparer{ByValue: true, MaxDepth: DefaultMaxDepth}
	ch := make(chan int)

	eq, rep := c.Equal(map[string]any{"c": ch}, map[string]any{"c": ch})
	assert.False(t, eq)
	require.True(t, rep.Fallback)
	assert.True(t, errors.Is(rep.Err, ErrUnserializable))

	same := map[string]any{"c": ch}
	eq, rep = c.Equal(same, same)
	assert.True(t, eq)
	assert.False(t, rep.Fallback)
}

func TestComparer_FunctionsAndText(t *testing.T) {
	c := Comparer{ByValue: true, MaxDepth: DefaultMaxDepth}
	fn := func() {}
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	eq, _ := c.Equal(map[string]any{"f": fn, "t": ts}, map[string]any{"f": fn, "t": ts})
	assert.True(t, eq)

	eq, _ = c.Equal(map[string]any{"t": ts}, map[string]any{"t": ts.Add(time.Second)})
	assert.False(t, eq)

	eq, _ = c.Equal(map[string]any{"f": constant(1)}, map[string]any{"f": constant(1)})
	assert.False(t, eq, "distinct closures differ by value too")
}

func TestComparer_Encode(t *testing.T) {
	c := Comparer{ByValue: true}
	b1, _, err := c.Encode(map[string]int{"b": 2, "a": 1})
	require.NoError(t, err)
	b2, _, err := c.Encode(map[string]int{"a": 1, "b": 2})
	require.NoError(t, err)
	assert.Equal(t, b1, b2)

	_, _, err = c.Encode(complex(1, 2))
	assert.ErrorIs(t, err, ErrUnserializable)
}
