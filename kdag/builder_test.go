package kdag

import (
	"errors"
	"testing"

	"github.com/alecthomas/assert/v2"
)

// testNode is a minimal graph node. Children are pointers; nil is absent.
type testNode struct {
	name     string
	children []*testNode
}

func node(name string, children ...*testNode) *testNode {
	return &testNode{name: name, children: children}
}

func deps(n *testNode) []*testNode { return n.children }

func names(order []*testNode) []string {
	out := make([]string, len(order))
	for i, n := range order {
		out[i] = n.name
	}
	return out
}

func newTestSorter() *Sorter[*testNode] {
	return &Sorter[*testNode]{Deps: deps}
}

func TestSort(t *testing.T) {
	t.Run("children before parents", func(t *testing.T) {
		x := node("x")
		y := node("y")
		sum := node("sum", x)
		z := node("z", sum, y)

		order, err := newTestSorter().Sort([]*testNode{x, y, z})
		assert.NoError(t, err)
		assert.Equal(t, []string{"x", "y", "sum", "z"}, names(order))
		assert.NoError(t, ValidateOrder(order, deps))
	})

	t.Run("shared node emitted once", func(t *testing.T) {
		x := node("x")
		s := node("sin", x)
		out := node("add", s, s)

		order, err := newTestSorter().Sort([]*testNode{x, out})
		assert.NoError(t, err)
		assert.Equal(t, []string{"x", "sin", "add"}, names(order))
	})

	t.Run("absent children skipped", func(t *testing.T) {
		a := node("a")
		b := node("b")
		g := node("gemm", a, b, nil)

		order, err := newTestSorter().Sort([]*testNode{g})
		assert.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "gemm"}, names(order))
	})

	t.Run("absent and repeated roots", func(t *testing.T) {
		x := node("x")
		order, err := newTestSorter().Sort([]*testNode{nil, x, x})
		assert.NoError(t, err)
		assert.Equal(t, []string{"x"}, names(order))
	})

	t.Run("unused input still emitted", func(t *testing.T) {
		x := node("x")
		y := node("y")
		out := node("neg", y)

		order, err := newTestSorter().Sort([]*testNode{x, y, out})
		assert.NoError(t, err)
		assert.Equal(t, []string{"x", "y", "neg"}, names(order))
	})

	t.Run("deterministic", func(t *testing.T) {
		x := node("x")
		y := node("y")
		m := node("mul", x, y)
		out := node("add", m, node("cos", m), x)
		roots := []*testNode{x, y, out}

		first, err := newTestSorter().Sort(roots)
		assert.NoError(t, err)
		for i := 0; i < 5; i++ {
			again, err := newTestSorter().Sort(roots)
			assert.NoError(t, err)
			assert.Equal(t, names(first), names(again))
		}
	})

	t.Run("deep chain", func(t *testing.T) {
		const n = 50000
		cur := node("leaf")
		leaf := cur
		for i := 0; i < n; i++ {
			cur = node("neg", cur)
		}

		order, err := newTestSorter().Sort([]*testNode{leaf, cur})
		assert.NoError(t, err)
		assert.Equal(t, n+1, len(order))
		// Pointer comparison; assert.Equal would walk the whole chain.
		assert.True(t, order[0] == leaf)
		assert.True(t, order[n] == cur)
		assert.Equal(t, n+1, Depth(order, deps))
	})

	t.Run("cycle detected", func(t *testing.T) {
		a := node("a")
		b := node("b", a)
		a.children = []*testNode{b}

		_, err := newTestSorter().Sort([]*testNode{a})
		assert.Error(t, err)
		assert.True(t, errors.Is(err, ErrCycleDetected))
	})

	t.Run("node limit", func(t *testing.T) {
		x := node("x")
		out := node("sin", node("cos", x))

		s := &Sorter[*testNode]{Deps: deps, MaxNodes: 2}
		_, err := s.Sort([]*testNode{out})
		assert.True(t, errors.Is(err, ErrInvalidTopology))

		s.MaxNodes = 3
		order, err := s.Sort([]*testNode{out})
		assert.NoError(t, err)
		assert.Equal(t, 3, len(order))
	})
}
