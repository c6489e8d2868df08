package ksparsity

import (
	"errors"
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestDense(t *testing.T) {
	sp := Dense(2, 3)
	assert.Equal(t, 2, sp.Rows())
	assert.Equal(t, 3, sp.Cols())
	assert.Equal(t, 6, sp.NNZ())
	assert.True(t, sp.IsDense())
	assert.False(t, sp.IsScalar())
	assert.Equal(t, []int{0, 2, 4, 6}, sp.ColInd())
	assert.Equal(t, 3, sp.Linear(3))
	assert.Equal(t, 5, sp.Element(1, 2))
	assert.Equal(t, "dense 2x3", sp.String())
}

func TestEmptyAndDiagonal(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		sp := Empty(4, 2)
		assert.Equal(t, 0, sp.NNZ())
		assert.Equal(t, 8, sp.Numel())
		assert.True(t, sp.IsEmpty())
		assert.Equal(t, -1, sp.Element(0, 0))
	})

	t.Run("diagonal", func(t *testing.T) {
		sp := Diagonal(3)
		assert.Equal(t, 3, sp.NNZ())
		assert.Equal(t, 1, sp.Element(1, 1))
		assert.Equal(t, -1, sp.Element(0, 1))
		assert.Equal(t, 8, sp.Linear(2))
		assert.Equal(t, "sparse 3x3, 3 nnz", sp.String())
	})

	t.Run("zero sized", func(t *testing.T) {
		sp := Dense(0, 3)
		assert.Equal(t, 0, sp.NNZ())
		assert.True(t, sp.IsDense())
	})
}

func TestNew(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		sp, err := New(3, 2, []int{0, 1, 3}, []int{2, 0, 1})
		assert.NoError(t, err)
		assert.Equal(t, 3, sp.NNZ())
		assert.Equal(t, 0, sp.Element(2, 0))
		assert.Equal(t, 2, sp.Element(1, 1))

		var visited [][3]int
		sp.ForEach(func(k, r, c int) {
			visited = append(visited, [3]int{k, r, c})
		})
		assert.Equal(t, [][3]int{{0, 2, 0}, {1, 0, 1}, {2, 1, 1}}, visited)
	})

	cases := []struct {
		name   string
		rows   int
		cols   int
		colind []int
		row    []int
	}{
		{"negative rows", -1, 1, []int{0, 0}, nil},
		{"short colind", 2, 2, []int{0, 1}, []int{0}},
		{"nnz mismatch", 2, 1, []int{0, 2}, []int{0}},
		{"row out of range", 2, 1, []int{0, 1}, []int{5}},
		{"unsorted rows", 3, 1, []int{0, 2}, []int{2, 1}},
		{"decreasing colind", 2, 2, []int{0, 2, 1}, []int{0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.rows, tc.cols, tc.colind, tc.row)
			assert.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidPattern))
		})
	}
}

func TestEqual(t *testing.T) {
	assert.True(t, Dense(2, 2).Equal(Dense(2, 2)))
	assert.False(t, Dense(2, 2).Equal(Diagonal(2)))
	assert.False(t, Dense(2, 1).Equal(Dense(1, 2)))
	assert.True(t, Diagonal(2).Equal(MustNew(2, 2, []int{0, 1, 2}, []int{0, 1})))
	assert.True(t, Dense(2, 1).SameShape(Empty(2, 1)))
}

func TestMustNewPanics(t *testing.T) {
	assert.Panics(t, func() {
		MustNew(1, 1, []int{0}, nil)
	})
}
