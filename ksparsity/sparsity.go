// Package ksparsity describes the shape and nonzero structure of matrix-valued
// expressions.
//
// A Sparsity uses compressed column storage: ColInd has Cols()+1 entries and
// Row holds the row index of every structural nonzero, column by column. Values
// bound to a pattern are stored as one float64 per structural nonzero in that
// same order. Patterns are immutable once created and may be shared freely.
package ksparsity

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPattern is returned when a compressed column description is malformed.
var ErrInvalidPattern = errors.New("invalid sparsity pattern")

// Sparsity is an immutable nonzero pattern of a rows x cols matrix.
type Sparsity struct {
	rows   int
	cols   int
	colind []int
	row    []int

	// linear (column-major) index of every nonzero
	linear []int
}

// Dense returns the fully populated pattern of a rows x cols matrix.
func Dense(rows, cols int) *Sparsity {
	mustShape(rows, cols)
	colind := make([]int, cols+1)
	row := make([]int, 0, rows*cols)
	for c := 0; c < cols; c++ {
		for r := 0; r < rows; r++ {
			row = append(row, r)
		}
		colind[c+1] = len(row)
	}
	return newSparsity(rows, cols, colind, row)
}

// Scalar returns the dense 1x1 pattern.
func Scalar() *Sparsity {
	return Dense(1, 1)
}

// Empty returns a rows x cols pattern without structural nonzeros.
func Empty(rows, cols int) *Sparsity {
	mustShape(rows, cols)
	return newSparsity(rows, cols, make([]int, cols+1), nil)
}

// Diagonal returns the pattern of an n x n diagonal matrix.
func Diagonal(n int) *Sparsity {
	mustShape(n, n)
	colind := make([]int, n+1)
	row := make([]int, n)
	for i := 0; i < n; i++ {
		row[i] = i
		colind[i+1] = i + 1
	}
	return newSparsity(n, n, colind, row)
}

// New validates a compressed column description and returns the pattern.
func New(rows, cols int, colind, row []int) (*Sparsity, error) {
	if rows < 0 || cols < 0 {
		return nil, fmt.Errorf("%w: negative dimension %dx%d", ErrInvalidPattern, rows, cols)
	}
	if len(colind) != cols+1 {
		return nil, fmt.Errorf("%w: colind has %d entries, want %d", ErrInvalidPattern, len(colind), cols+1)
	}
	if colind[0] != 0 || colind[cols] != len(row) {
		return nil, fmt.Errorf("%w: colind must start at 0 and end at nnz %d", ErrInvalidPattern, len(row))
	}
	for c := 0; c < cols; c++ {
		if colind[c] > colind[c+1] {
			return nil, fmt.Errorf("%w: colind decreases at column %d", ErrInvalidPattern, c)
		}
	}
	for c := 0; c < cols; c++ {
		for k := colind[c]; k < colind[c+1]; k++ {
			if row[k] < 0 || row[k] >= rows {
				return nil, fmt.Errorf("%w: row index %d out of range in column %d", ErrInvalidPattern, row[k], c)
			}
			if k > colind[c] && row[k] <= row[k-1] {
				return nil, fmt.Errorf("%w: row indices not strictly increasing in column %d", ErrInvalidPattern, c)
			}
		}
	}
	return newSparsity(rows, cols, append([]int(nil), colind...), append([]int(nil), row...)), nil
}

// MustNew is like New but panics on error.
func MustNew(rows, cols int, colind, row []int) *Sparsity {
	sp, err := New(rows, cols, colind, row)
	if err != nil {
		panic(err)
	}
	return sp
}

func newSparsity(rows, cols int, colind, row []int) *Sparsity {
	linear := make([]int, len(row))
	for c := 0; c < cols; c++ {
		for k := colind[c]; k < colind[c+1]; k++ {
			linear[k] = row[k] + rows*c
		}
	}
	return &Sparsity{rows: rows, cols: cols, colind: colind, row: row, linear: linear}
}

func mustShape(rows, cols int) {
	if rows < 0 || cols < 0 {
		panic(fmt.Errorf("%w: negative dimension %dx%d", ErrInvalidPattern, rows, cols))
	}
}

// Rows returns the number of rows.
func (s *Sparsity) Rows() int { return s.rows }

// Cols returns the number of columns.
func (s *Sparsity) Cols() int { return s.cols }

// Numel returns rows*cols.
func (s *Sparsity) Numel() int { return s.rows * s.cols }

// NNZ returns the number of structural nonzeros.
func (s *Sparsity) NNZ() int { return len(s.row) }

// IsDense reports whether every element is a structural nonzero.
func (s *Sparsity) IsDense() bool { return s.NNZ() == s.Numel() }

// IsScalar reports whether the pattern is 1x1.
func (s *Sparsity) IsScalar() bool { return s.rows == 1 && s.cols == 1 }

// IsColumn reports whether the pattern has exactly one column.
func (s *Sparsity) IsColumn() bool { return s.cols == 1 }

// IsEmpty reports whether the pattern has no structural nonzeros.
func (s *Sparsity) IsEmpty() bool { return s.NNZ() == 0 }

// SameShape reports whether both patterns describe matrices of equal dimensions.
func (s *Sparsity) SameShape(o *Sparsity) bool {
	return s.rows == o.rows && s.cols == o.cols
}

// Equal reports whether both patterns have the same shape and nonzero structure.
func (s *Sparsity) Equal(o *Sparsity) bool {
	if s == o {
		return true
	}
	if !s.SameShape(o) || s.NNZ() != o.NNZ() {
		return false
	}
	for k := range s.linear {
		if s.linear[k] != o.linear[k] {
			return false
		}
	}
	return true
}

// ColInd returns a copy of the column offsets.
func (s *Sparsity) ColInd() []int { return append([]int(nil), s.colind...) }

// Row returns a copy of the row indices.
func (s *Sparsity) Row() []int { return append([]int(nil), s.row...) }

// Linear returns the column-major linear index of nonzero k.
func (s *Sparsity) Linear(k int) int { return s.linear[k] }

// Element returns the nonzero index of element (r, c), or -1 when the element is
// not structurally present.
func (s *Sparsity) Element(r, c int) int {
	if r < 0 || r >= s.rows || c < 0 || c >= s.cols {
		return -1
	}
	for k := s.colind[c]; k < s.colind[c+1]; k++ {
		if s.row[k] == r {
			return k
		}
		if s.row[k] > r {
			break
		}
	}
	return -1
}

// ForEach calls fn for every structural nonzero in storage order.
func (s *Sparsity) ForEach(fn func(k, r, c int)) {
	for c := 0; c < s.cols; c++ {
		for k := s.colind[c]; k < s.colind[c+1]; k++ {
			fn(k, s.row[k], c)
		}
	}
}

// Dims renders the shape as "RxC".
func (s *Sparsity) Dims() string {
	return fmt.Sprintf("%dx%d", s.rows, s.cols)
}

func (s *Sparsity) String() string {
	if s.IsDense() {
		return "dense " + s.Dims()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "sparse %s, %d nnz", s.Dims(), s.NNZ())
	return b.String()
}
