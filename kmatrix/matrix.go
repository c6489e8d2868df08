// Package kmatrix holds numeric values bound to a sparsity pattern.
//
// A Matrix stores one float64 per structural nonzero of its pattern, in the
// pattern's storage order. The backing slice is allocated once and never
// reallocated, so slices returned by Data stay valid for the lifetime of the
// matrix; execution plans rely on this to wire buffers ahead of time.
package kmatrix

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/birdayz/kfunc/ksparsity"
)

// ErrShapeMismatch is returned when values cannot be transferred between two
// matrices of different dimensions.
var ErrShapeMismatch = errors.New("shape mismatch")

// Matrix is a sparsity pattern plus its nonzero values.
type Matrix struct {
	sp   *ksparsity.Sparsity
	data []float64
}

// New allocates a zero-valued matrix with the given pattern.
func New(sp *ksparsity.Sparsity) *Matrix {
	return &Matrix{sp: sp, data: make([]float64, sp.NNZ())}
}

// Dense builds a dense rows x cols matrix from column-major values.
func Dense(rows, cols int, values ...float64) (*Matrix, error) {
	if len(values) != rows*cols {
		return nil, fmt.Errorf("%w: %d values for a %dx%d matrix", ErrShapeMismatch, len(values), rows, cols)
	}
	m := New(ksparsity.Dense(rows, cols))
	copy(m.data, values)
	return m, nil
}

// MustDense is like Dense but panics on error.
func MustDense(rows, cols int, values ...float64) *Matrix {
	m, err := Dense(rows, cols, values...)
	if err != nil {
		panic(err)
	}
	return m
}

// Column builds a dense column vector.
func Column(values ...float64) *Matrix {
	return MustDense(len(values), 1, values...)
}

// Scalar builds a 1x1 matrix.
func Scalar(v float64) *Matrix {
	return MustDense(1, 1, v)
}

// FromRows builds a dense matrix from row slices of equal length.
func FromRows(rows [][]float64) (*Matrix, error) {
	if len(rows) == 0 {
		return New(ksparsity.Dense(0, 0)), nil
	}
	cols := len(rows[0])
	m := New(ksparsity.Dense(len(rows), cols))
	for r, row := range rows {
		if len(row) != cols {
			return nil, fmt.Errorf("%w: row %d has %d entries, want %d", ErrShapeMismatch, r, len(row), cols)
		}
		for c, v := range row {
			m.data[r+len(rows)*c] = v
		}
	}
	return m, nil
}

// Sparsity returns the pattern of the matrix.
func (m *Matrix) Sparsity() *ksparsity.Sparsity { return m.sp }

// Rows returns the number of rows.
func (m *Matrix) Rows() int { return m.sp.Rows() }

// Cols returns the number of columns.
func (m *Matrix) Cols() int { return m.sp.Cols() }

// Data returns the nonzero values. The slice aliases the matrix storage.
func (m *Matrix) Data() []float64 { return m.data }

// At returns element (r, c); structural zeros read as 0.
func (m *Matrix) At(r, c int) float64 {
	k := m.sp.Element(r, c)
	if k < 0 {
		return 0
	}
	return m.data[k]
}

// Zero sets every nonzero to 0.
func (m *Matrix) Zero() {
	Fill(m.data, 0)
}

// Set copies src into m. Patterns may differ as long as the dimensions agree:
// nonzeros of m absent from src are set to zero, and nonzeros of src absent
// from m are dropped.
func (m *Matrix) Set(src *Matrix) error {
	if src.sp.Equal(m.sp) {
		copy(m.data, src.data)
		return nil
	}
	if !src.sp.SameShape(m.sp) {
		return fmt.Errorf("%w: cannot assign %s to %s", ErrShapeMismatch, src.sp.Dims(), m.sp.Dims())
	}
	m.sp.ForEach(func(k, r, c int) {
		m.data[k] = src.At(r, c)
	})
	return nil
}

// SetData copies raw nonzero values into m.
func (m *Matrix) SetData(values []float64) error {
	if len(values) != len(m.data) {
		return fmt.Errorf("%w: %d values for %d nonzeros", ErrShapeMismatch, len(values), len(m.data))
	}
	copy(m.data, values)
	return nil
}

// Get copies the values of m into dst, see Set.
func (m *Matrix) Get(dst *Matrix) error {
	return dst.Set(m)
}

// Clone returns a deep copy sharing only the immutable pattern.
func (m *Matrix) Clone() *Matrix {
	c := New(m.sp)
	copy(c.data, m.data)
	return c
}

// DenseValues returns all rows*cols values in column-major order.
func (m *Matrix) DenseValues() []float64 {
	out := make([]float64, m.sp.Numel())
	for k, v := range m.data {
		out[m.sp.Linear(k)] = v
	}
	return out
}

func (m *Matrix) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for r := 0; r < m.Rows(); r++ {
		if r > 0 {
			b.WriteString("; ")
		}
		for c := 0; c < m.Cols(); c++ {
			if c > 0 {
				b.WriteString(", ")
			}
			if m.sp.Element(r, c) < 0 {
				b.WriteString("00")
				continue
			}
			b.WriteString(strconv.FormatFloat(m.At(r, c), 'g', -1, 64))
		}
	}
	b.WriteByte(']')
	return b.String()
}
