package kexpr

import (
	"io"
	"strings"

	"github.com/birdayz/kfunc/kmatrix"
	"github.com/birdayz/kfunc/ksparsity"
)

// matmulNode computes acc + a*b. The accumulator slot is optional and may
// hold an absent handle.
type matmulNode struct {
	node
	r, s, c   int
	nonlinear bool
}

// MatMul returns the matrix product a*b.
func MatMul(a, b MX) MX {
	requirePresent("mtimes", a, b)
	return newMatMul(a, b, MX{}, false)
}

// Gemm returns acc + a*b. acc may be absent, in which case it is treated as
// zero and printed as [].
func Gemm(a, b, acc MX) MX {
	requirePresent("gemm", a, b)
	return newMatMul(a, b, acc, true)
}

func newMatMul(a, b, acc MX, withAcc bool) MX {
	if a.Size2() != b.Size1() {
		shapePanic("mtimes", "inner dimensions differ", a, b)
	}
	r, s, c := a.Size1(), a.Size2(), b.Size2()
	deps := []MX{dense(a), dense(b)}
	if withAcc {
		if !acc.IsNull() {
			if acc.Size1() != r || acc.Size2() != c {
				shapePanic("gemm", "accumulator does not match the product", a, b, acc)
			}
			acc = dense(acc)
		}
		deps = append(deps, acc)
	}
	return MX{&matmulNode{
		node:      node{sp: ksparsity.Dense(r, c), deps: deps},
		r:         r,
		s:         s,
		c:         c,
		nonlinear: !a.IsConstant() && !b.IsConstant(),
	}}
}

func (n *matmulNode) OpName() string {
	if len(n.deps) == 3 {
		return "gemm"
	}
	return "mtimes"
}

func (n *matmulNode) IsNonLinear() bool { return n.nonlinear }

func (n *matmulNode) hasAcc() bool { return len(n.deps) == 3 && !n.deps[2].IsNull() }

func (n *matmulNode) Forward(a *Args, nfdir int) {
	A, B := a.Input[0], a.Input[1]
	n.product(a.Output, A, B, n.accumulator(a.Input))
	for d := 0; d < nfdir; d++ {
		sens := a.FwdSens[d]
		var acc []float64
		if n.hasAcc() {
			acc = a.FwdSeed[2][d]
		}
		n.product(sens, a.FwdSeed[0][d], B, acc)
		kmatrix.Gemm(n.r, n.s, n.c, A, a.FwdSeed[1][d], sens)
	}
}

func (n *matmulNode) accumulator(in [][]float64) []float64 {
	if n.hasAcc() {
		return in[2]
	}
	return nil
}

// product writes acc + x*y into out.
func (n *matmulNode) product(out, x, y, acc []float64) {
	if acc != nil {
		copy(out, acc)
	} else {
		kmatrix.Fill(out, 0)
	}
	kmatrix.Gemm(n.r, n.s, n.c, x, y, out)
}

func (n *matmulNode) Adjoint(a *Args, nadir int) {
	A, B := a.Input[0], a.Input[1]
	for d := 0; d < nadir; d++ {
		seed := a.AdjSeed[d]
		kmatrix.GemmTransB(n.r, n.c, n.s, seed, B, a.AdjSens[0][d])
		kmatrix.GemmTransA(n.s, n.r, n.c, A, seed, a.AdjSens[1][d])
		if n.hasAcc() {
			kmatrix.Accumulate(seed, a.AdjSens[2][d])
		}
	}
}

func (n *matmulNode) ForwardDerivative(fseed []MX) (MX, error) {
	for i := 0; i < 2; i++ {
		if fseed[i].IsNull() {
			return MX{}, missing(n.OpName(), i)
		}
	}
	var dacc MX
	if n.hasAcc() {
		if fseed[2].IsNull() {
			return MX{}, missing(n.OpName(), 2)
		}
		dacc = fseed[2]
	}
	a, b := n.deps[0], n.deps[1]
	da, db := fseed[0], fseed[1]
	ncol := da.Size2()
	if ncol == 0 {
		return Zeros(n.sp.Numel(), 0), nil
	}

	var termA, termB MX
	switch {
	case da.IsZero():
	case n.r == 1:
		// vec(a*b) = b' * vec(a) for a row vector a
		termA = MatMul(Transpose(b), da)
	default:
		termA = perDirection(da, func(dk MX) MX {
			return Vec(MatMul(Reshape(dk, n.r, n.s), b))
		})
	}
	switch {
	case db.IsZero():
	case n.c == 1:
		termB = MatMul(a, db)
	default:
		termB = perDirection(db, func(dk MX) MX {
			return Vec(MatMul(a, Reshape(dk, n.s, n.c)))
		})
	}
	return sumTerms(n.sp.Numel(), ncol, termA, termB, dacc), nil
}

func perDirection(d MX, fn func(dk MX) MX) MX {
	ncol := d.Size2()
	if ncol == 1 {
		return fn(dense(d))
	}
	cols := make([]MX, ncol)
	for k := range cols {
		cols[k] = fn(Col(d, k))
	}
	return Horzcat(cols...)
}

func (n *matmulNode) Print(w io.Writer, args []string) {
	io.WriteString(w, n.OpName()+"("+strings.Join(args, ", ")+")")
}
