package kexpr

import (
	"fmt"
	"io"
	"strconv"

	"github.com/birdayz/kfunc/kmatrix"
	"github.com/birdayz/kfunc/ksparsity"
)

type symbolNode struct {
	node
	name string
}

// Symbol creates a dense rows x cols symbolic variable.
func Symbol(name string, rows, cols int) MX {
	if rows < 0 || cols < 0 {
		panic(&ShapeError{Op: "symbol", Shapes: []string{fmt.Sprintf("%dx%d", rows, cols)}, Reason: "negative dimension"})
	}
	return SymbolSparse(name, ksparsity.Dense(rows, cols))
}

// SymbolSparse creates a symbolic variable with an arbitrary pattern.
func SymbolSparse(name string, sp *ksparsity.Sparsity) MX {
	return MX{&symbolNode{node: node{sp: sp}, name: name}}
}

func (n *symbolNode) OpName() string   { return "symbol" }
func (n *symbolNode) IsSymbolic() bool { return true }

// Name returns the symbol's name.
func (n *symbolNode) Name() string { return n.name }

// Forward leaves the buffers alone: values and seeds of symbols are written by
// the evaluator before the sweep.
func (n *symbolNode) Forward(*Args, int) {}
func (n *symbolNode) Adjoint(*Args, int) {}

func (n *symbolNode) ForwardDerivative([]MX) (MX, error) {
	return MX{}, fmt.Errorf("%w: free symbol %q has no seed", ErrMissingDerivative, n.name)
}

func (n *symbolNode) Print(w io.Writer, _ []string) {
	io.WriteString(w, n.name)
}

type constantNode struct {
	node
	value *kmatrix.Matrix
	label string
}

// Constant wraps a numeric value. The matrix is copied.
func Constant(m *kmatrix.Matrix) MX {
	return constant(m.Clone(), "")
}

func constant(m *kmatrix.Matrix, label string) MX {
	return MX{&constantNode{node: node{sp: m.Sparsity()}, value: m, label: label}}
}

// Scalar returns a 1x1 constant.
func Scalar(v float64) MX {
	return constant(kmatrix.Scalar(v), "")
}

// DenseConstant returns a dense constant from column-major values.
func DenseConstant(rows, cols int, values ...float64) MX {
	m, err := kmatrix.Dense(rows, cols, values...)
	if err != nil {
		panic(&ShapeError{Op: "constant", Shapes: []string{fmt.Sprintf("%dx%d", rows, cols)}, Reason: err.Error()})
	}
	return constant(m, "")
}

// Zeros returns a rows x cols constant without structural nonzeros.
func Zeros(rows, cols int) MX {
	return constant(kmatrix.New(ksparsity.Empty(rows, cols)), fmt.Sprintf("zeros(%dx%d)", rows, cols))
}

// Ones returns a dense rows x cols constant of ones.
func Ones(rows, cols int) MX {
	m := kmatrix.New(ksparsity.Dense(rows, cols))
	kmatrix.Fill(m.Data(), 1)
	return constant(m, fmt.Sprintf("ones(%dx%d)", rows, cols))
}

// Eye returns the n x n identity with diagonal sparsity.
func Eye(n int) MX {
	m := kmatrix.New(ksparsity.Diagonal(n))
	kmatrix.Fill(m.Data(), 1)
	return constant(m, fmt.Sprintf("eye(%d)", n))
}

func (n *constantNode) OpName() string   { return "constant" }
func (n *constantNode) IsConstant() bool { return true }

// Value returns a copy of the constant's value.
func (n *constantNode) Value() *kmatrix.Matrix { return n.value.Clone() }

func (n *constantNode) Forward(a *Args, nfdir int) {
	copy(a.Output, n.value.Data())
	for d := 0; d < nfdir; d++ {
		kmatrix.Fill(a.FwdSens[d], 0)
	}
}

func (n *constantNode) Adjoint(*Args, int) {}

func (n *constantNode) ForwardDerivative(fseed []MX) (MX, error) {
	// constants are seeded with zeros by the differentiator; this path only
	// serves direct callers
	return MX{}, fmt.Errorf("%w: constant has no operands to infer the direction count", ErrMissingDerivative)
}

func (n *constantNode) Print(w io.Writer, _ []string) {
	switch {
	case n.label != "":
		io.WriteString(w, n.label)
	case n.sp.IsScalar() && n.sp.IsDense():
		io.WriteString(w, strconv.FormatFloat(n.value.Data()[0], 'g', -1, 64))
	default:
		io.WriteString(w, n.value.String())
	}
}
