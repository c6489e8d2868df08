package kexpr

import (
	"fmt"
	"io"
	"strings"

	"github.com/birdayz/kfunc/kmatrix"
	"github.com/birdayz/kfunc/ksparsity"
)

// densifyNode scatters the nonzeros of a sparse operand into a dense result.
type densifyNode struct {
	node
}

// dense returns x with a dense pattern. Dense expressions are returned as-is
// and sparse constants are folded.
func dense(x MX) MX {
	sp := x.Sparsity()
	if sp.IsDense() {
		return x
	}
	if c, ok := x.n.(*constantNode); ok {
		m, _ := kmatrix.Dense(sp.Rows(), sp.Cols(), c.value.DenseValues()...)
		return constant(m, "")
	}
	return MX{&densifyNode{node: node{sp: ksparsity.Dense(sp.Rows(), sp.Cols()), deps: []MX{x}}}}
}

func (n *densifyNode) OpName() string { return "densify" }

func (n *densifyNode) Forward(a *Args, nfdir int) {
	src := n.deps[0].Sparsity()
	scatter := func(in, out []float64) {
		kmatrix.Fill(out, 0)
		for k, v := range in {
			out[src.Linear(k)] = v
		}
	}
	scatter(a.Input[0], a.Output)
	for d := 0; d < nfdir; d++ {
		scatter(a.FwdSeed[0][d], a.FwdSens[d])
	}
}

func (n *densifyNode) Adjoint(a *Args, nadir int) {
	src := n.deps[0].Sparsity()
	for d := 0; d < nadir; d++ {
		seed, sens := a.AdjSeed[d], a.AdjSens[0][d]
		for k := range sens {
			sens[k] += seed[src.Linear(k)]
		}
	}
}

func (n *densifyNode) ForwardDerivative(fseed []MX) (MX, error) {
	if fseed[0].IsNull() {
		return MX{}, missing("densify", 0)
	}
	return fseed[0], nil
}

func (n *densifyNode) Print(w io.Writer, args []string) {
	io.WriteString(w, "dense("+args[0]+")")
}

type sumNode struct {
	node
}

// Sum adds all elements of x into a scalar.
func Sum(x MX) MX {
	requirePresent("sum", x)
	return MX{&sumNode{node: node{sp: ksparsity.Scalar(), deps: []MX{x}}}}
}

func (n *sumNode) OpName() string { return "sum" }

func (n *sumNode) Forward(a *Args, nfdir int) {
	a.Output[0] = kmatrix.Sum(a.Input[0])
	for d := 0; d < nfdir; d++ {
		a.FwdSens[d][0] = kmatrix.Sum(a.FwdSeed[0][d])
	}
}

func (n *sumNode) Adjoint(a *Args, nadir int) {
	for d := 0; d < nadir; d++ {
		s := a.AdjSeed[d][0]
		if s == 0 {
			continue
		}
		sens := a.AdjSens[0][d]
		for k := range sens {
			sens[k] += s
		}
	}
}

func (n *sumNode) ForwardDerivative(fseed []MX) (MX, error) {
	dx := fseed[0]
	if dx.IsNull() {
		return MX{}, missing("sum", 0)
	}
	if dx.IsZero() {
		return Zeros(1, dx.Size2()), nil
	}
	if dx.Size1() == 1 {
		return dx, nil
	}
	return MatMul(Ones(1, dx.Size1()), dx), nil
}

func (n *sumNode) Print(w io.Writer, args []string) {
	io.WriteString(w, "sum("+args[0]+")")
}

// selectNode picks elements of a dense operand: out[k] = x[idx[k]]. Reshape,
// transpose and column extraction are all selections.
type selectNode struct {
	node
	idx   []int
	label string
	param string
}

func newSelect(label, param string, x MX, idx []int, rows, cols int) MX {
	x = dense(x)
	return MX{&selectNode{
		node:  node{sp: ksparsity.Dense(rows, cols), deps: []MX{x}},
		idx:   idx,
		label: label,
		param: param,
	}}
}

// Select returns the rows x cols matrix whose k-th element (column-major) is
// element idx[k] of x.
func Select(x MX, idx []int, rows, cols int) MX {
	requirePresent("select", x)
	if rows < 0 || cols < 0 {
		shapePanic("select", fmt.Sprintf("negative dimension %dx%d", rows, cols), x)
	}
	if rows*cols != len(idx) {
		shapePanic("select", fmt.Sprintf("%d indices for a %dx%d result", len(idx), rows, cols), x)
	}
	n := x.Numel()
	for _, i := range idx {
		if i < 0 || i >= n {
			shapePanic("select", fmt.Sprintf("index %d out of range", i), x)
		}
	}
	return newSelect("select", "", x, append([]int(nil), idx...), rows, cols)
}

// Reshape reinterprets x as rows x cols keeping the column-major order.
func Reshape(x MX, rows, cols int) MX {
	requirePresent("reshape", x)
	if rows < 0 || cols < 0 || rows*cols != x.Numel() {
		shapePanic("reshape", fmt.Sprintf("cannot reshape to %dx%d", rows, cols), x)
	}
	if x.Size1() == rows && x.Size2() == cols {
		return x
	}
	return newSelect("reshape", fmt.Sprintf("%dx%d", rows, cols), x, identity(rows*cols), rows, cols)
}

// Vec stacks the columns of x into a single column.
func Vec(x MX) MX {
	requirePresent("vec", x)
	if x.Size2() == 1 {
		return dense(x)
	}
	return Reshape(x, x.Numel(), 1)
}

// Transpose returns x'.
func Transpose(x MX) MX {
	requirePresent("transpose", x)
	r, c := x.Size1(), x.Size2()
	idx := make([]int, r*c)
	for i := 0; i < c; i++ {
		for j := 0; j < r; j++ {
			idx[i+c*j] = j + r*i
		}
	}
	return newSelect("transpose", "", x, idx, c, r)
}

// Col returns column j of x.
func Col(x MX, j int) MX {
	requirePresent("col", x)
	if j < 0 || j >= x.Size2() {
		shapePanic("col", fmt.Sprintf("column %d out of range", j), x)
	}
	r := x.Size1()
	idx := make([]int, r)
	for i := range idx {
		idx[i] = i + r*j
	}
	return newSelect("col", fmt.Sprint(j), x, idx, r, 1)
}

func identity(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

func (n *selectNode) OpName() string { return n.label }

func (n *selectNode) Forward(a *Args, nfdir int) {
	gather := func(in, out []float64) {
		for k, i := range n.idx {
			out[k] = in[i]
		}
	}
	gather(a.Input[0], a.Output)
	for d := 0; d < nfdir; d++ {
		gather(a.FwdSeed[0][d], a.FwdSens[d])
	}
}

func (n *selectNode) Adjoint(a *Args, nadir int) {
	for d := 0; d < nadir; d++ {
		seed, sens := a.AdjSeed[d], a.AdjSens[0][d]
		for k, i := range n.idx {
			sens[i] += seed[k]
		}
	}
}

func (n *selectNode) ForwardDerivative(fseed []MX) (MX, error) {
	dx := fseed[0]
	if dx.IsNull() {
		return MX{}, missing(n.label, 0)
	}
	if n.label == "reshape" {
		return dx, nil
	}
	return selectRows(dx, n.idx), nil
}

func (n *selectNode) Print(w io.Writer, args []string) {
	if n.param == "" {
		io.WriteString(w, n.label+"("+args[0]+")")
		return
	}
	io.WriteString(w, n.label+"("+args[0]+", "+n.param+")")
}

// selectRows returns the rows idx of the derivative d.
func selectRows(d MX, idx []int) MX {
	rows, ncol := d.Size1(), d.Size2()
	m := len(idx)
	if d.IsZero() {
		return Zeros(m, ncol)
	}
	if m == rows {
		same := true
		for k, i := range idx {
			if k != i {
				same = false
				break
			}
		}
		if same {
			return d
		}
	}
	all := make([]int, m*ncol)
	for j := 0; j < ncol; j++ {
		for k, i := range idx {
			all[k+m*j] = i + rows*j
		}
	}
	return newSelect("select", "", d, all, m, ncol)
}

// concatNode places each operand's elements at fixed positions of the result.
type concatNode struct {
	node
	label string
	pos   [][]int
}

// Vertcat stacks the operands on top of each other. All operands must have
// the same number of columns.
func Vertcat(xs ...MX) MX {
	requirePresent("vertcat", xs...)
	if len(xs) == 0 {
		return Zeros(0, 0)
	}
	if len(xs) == 1 {
		return xs[0]
	}
	cols, rows := xs[0].Size2(), 0
	for _, x := range xs {
		if x.Size2() != cols {
			shapePanic("vertcat", "column counts differ", xs...)
		}
		rows += x.Size1()
	}
	pos := make([][]int, len(xs))
	off := 0
	for t, x := range xs {
		r := x.Size1()
		p := make([]int, x.Numel())
		for k := range p {
			p[k] = k%r + off + rows*(k/r)
		}
		pos[t] = p
		off += r
	}
	return newConcat("vertcat", xs, pos, rows, cols)
}

// Horzcat places the operands side by side. All operands must have the same
// number of rows.
func Horzcat(xs ...MX) MX {
	requirePresent("horzcat", xs...)
	if len(xs) == 0 {
		return Zeros(0, 0)
	}
	if len(xs) == 1 {
		return xs[0]
	}
	rows, cols := xs[0].Size1(), 0
	for _, x := range xs {
		if x.Size1() != rows {
			shapePanic("horzcat", "row counts differ", xs...)
		}
		cols += x.Size2()
	}
	pos := make([][]int, len(xs))
	off := 0
	for t, x := range xs {
		p := make([]int, x.Numel())
		for k := range p {
			p[k] = off + k
		}
		pos[t] = p
		off += len(p)
	}
	return newConcat("horzcat", xs, pos, rows, cols)
}

func newConcat(label string, xs []MX, pos [][]int, rows, cols int) MX {
	deps := make([]MX, len(xs))
	for i, x := range xs {
		deps[i] = dense(x)
	}
	return MX{&concatNode{
		node:  node{sp: ksparsity.Dense(rows, cols), deps: deps},
		label: label,
		pos:   pos,
	}}
}

func (n *concatNode) OpName() string { return n.label }

func (n *concatNode) Forward(a *Args, nfdir int) {
	for t, p := range n.pos {
		in := a.Input[t]
		for k, o := range p {
			a.Output[o] = in[k]
		}
		for d := 0; d < nfdir; d++ {
			seed, sens := a.FwdSeed[t][d], a.FwdSens[d]
			for k, o := range p {
				sens[o] = seed[k]
			}
		}
	}
}

func (n *concatNode) Adjoint(a *Args, nadir int) {
	for t, p := range n.pos {
		for d := 0; d < nadir; d++ {
			seed, sens := a.AdjSeed[d], a.AdjSens[t][d]
			for k, o := range p {
				sens[k] += seed[o]
			}
		}
	}
}

func (n *concatNode) ForwardDerivative(fseed []MX) (MX, error) {
	zero := true
	for i, s := range fseed {
		if s.IsNull() {
			return MX{}, missing(n.label, i)
		}
		zero = zero && s.IsZero()
	}
	ncol := fseed[0].Size2()
	if zero {
		return Zeros(n.sp.Numel(), ncol), nil
	}
	stacked := Vertcat(fseed...)
	// stacked rows follow operand order; map every result element back to it
	idx := make([]int, n.sp.Numel())
	off := 0
	for _, p := range n.pos {
		for k, o := range p {
			idx[o] = off + k
		}
		off += len(p)
	}
	return selectRows(stacked, idx), nil
}

func (n *concatNode) Print(w io.Writer, args []string) {
	io.WriteString(w, n.label+"("+strings.Join(args, ", ")+")")
}
