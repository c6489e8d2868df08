package kmatrix

import (
	"golang.org/x/exp/constraints"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
)

// Buffers are column-major. A column-major r x c matrix is the row-major
// c x r transpose over the same slice, so the products below hand blas64
// transposed views and swap operand order.

// Fill sets every element of x to v.
func Fill[T constraints.Float](x []T, v T) {
	for i := range x {
		x[i] = v
	}
}

// Axpy computes y += a*x. x and y must have equal length.
func Axpy(a float64, x, y []float64) {
	blas64.Axpy(a, vector(x), vector(y))
}

// Accumulate computes y += x elementwise.
func Accumulate[T constraints.Float](x, y []T) {
	for i := range y {
		y[i] += x[i]
	}
}

// Dot returns the inner product of x and y.
func Dot(x, y []float64) float64 {
	return blas64.Dot(vector(x), vector(y))
}

// Sum returns the sum of all elements.
func Sum[T constraints.Float](x []T) T {
	var s T
	for _, v := range x {
		s += v
	}
	return s
}

// Gemm computes c += a*b for dense column-major a (m x k), b (k x n) and c (m x n).
func Gemm(m, k, n int, a, b, c []float64) {
	if m == 0 || k == 0 || n == 0 {
		return
	}
	// c^T += b^T * a^T
	blas64.Gemm(blas.NoTrans, blas.NoTrans, 1, view(n, k, b), view(k, m, a), 1, view(n, m, c))
}

// GemmTransA computes c += a^T*b for dense column-major a (k x m), b (k x n)
// and c (m x n).
func GemmTransA(m, k, n int, a, b, c []float64) {
	if m == 0 || k == 0 || n == 0 {
		return
	}
	// c^T += b^T * a
	blas64.Gemm(blas.NoTrans, blas.Trans, 1, view(n, k, b), view(m, k, a), 1, view(n, m, c))
}

// GemmTransB computes c += a*b^T for dense column-major a (m x k), b (n x k)
// and c (m x n).
func GemmTransB(m, k, n int, a, b, c []float64) {
	if m == 0 || k == 0 || n == 0 {
		return
	}
	// c^T += b * a^T
	blas64.Gemm(blas.Trans, blas.NoTrans, 1, view(k, n, b), view(k, m, a), 1, view(n, m, c))
}

// view is the row-major rows x cols matrix over data.
func view(rows, cols int, data []float64) blas64.General {
	return blas64.General{Rows: rows, Cols: cols, Stride: cols, Data: data}
}

func vector(x []float64) blas64.Vector {
	return blas64.Vector{N: len(x), Inc: 1, Data: x}
}
