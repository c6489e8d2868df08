// Package kexpr builds symbolic matrix expressions.
//
// An expression is a DAG of immutable nodes referenced through MX handles.
// Constructors check operand shapes and panic with a *ShapeError on mismatch;
// Catch converts such a panic into an error. Every node knows how to evaluate
// itself numerically (Forward, Adjoint) and how to build its own directional
// derivative symbolically (ForwardDerivative).
//
// Elementwise operations broadcast a scalar against any shape and an r x 1
// column against an r x c matrix. Their results are dense.
package kexpr

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/birdayz/kfunc/ksparsity"
)

// ErrMissingDerivative is returned by a derivative rule when a seed it needs
// was not provided. Execution treats it as an invariant violation.
var ErrMissingDerivative = errors.New("missing derivative")

// Node is the capability surface every operation implements. Nodes are
// immutable after construction and may be shared by any number of handles,
// functions and plans.
type Node interface {
	// OpName identifies the operation kind, e.g. "add" or "symbol".
	OpName() string
	Sparsity() *ksparsity.Sparsity

	// NumDeps and Dep expose the ordered operands. A slot may hold an absent
	// handle (see MX.IsNull).
	NumDeps() int
	Dep(i int) MX

	IsSymbolic() bool
	IsConstant() bool
	IsNonLinear() bool

	// Forward writes the primal value and the first nfdir tangents into the
	// buffers wired in a.
	Forward(a *Args, nfdir int)
	// Adjoint adds the contributions of the first nadir adjoint seeds to the
	// adjoint buffers of the operands. It must accumulate, never assign.
	Adjoint(a *Args, nadir int)
	// ForwardDerivative builds the symbolic directional derivative of the node
	// from the derivatives of its operands. fseed[i] is absent when operand i
	// is absent. The result has Numel() rows and one column per direction.
	ForwardDerivative(fseed []MX) (MX, error)

	// Print renders the operation with the given operand names.
	Print(w io.Writer, args []string)
}

// ExperimentalRule is implemented by nodes whose derivative rule is only
// partially validated. The returned string explains the limitation, an empty
// string means the rule is fully supported for this node.
type ExperimentalRule interface {
	ExperimentalDerivative() string
}

// Args carries the buffers a node reads and writes during evaluation. They are
// wired once by the execution plan; every slice aliases plan-owned storage.
// Entries belonging to absent operands are nil.
type Args struct {
	Input  [][]float64
	Output []float64

	// FwdSeed is indexed [operand][direction], FwdSens [direction].
	FwdSeed [][][]float64
	FwdSens [][]float64

	// AdjSeed is indexed [direction], AdjSens [operand][direction].
	AdjSeed [][]float64
	AdjSens [][][]float64
}

// MX is a handle to an expression node. Handles are cheap values; copies
// refer to the same node. The zero value is the absent handle.
type MX struct {
	n Node
}

// Wrap returns a handle to n.
func Wrap(n Node) MX { return MX{n: n} }

// IsNull reports whether the handle refers to no node.
func (x MX) IsNull() bool { return x.n == nil }

// Node returns the referenced node, nil for an absent handle.
func (x MX) Node() Node { return x.n }

// Is reports whether both handles refer to the same node.
func (x MX) Is(y MX) bool { return x.n == y.n }

// Sparsity returns the node's pattern.
func (x MX) Sparsity() *ksparsity.Sparsity { return x.n.Sparsity() }

// Size1 returns the number of rows.
func (x MX) Size1() int { return x.n.Sparsity().Rows() }

// Size2 returns the number of columns.
func (x MX) Size2() int { return x.n.Sparsity().Cols() }

// Numel returns rows*cols.
func (x MX) Numel() int { return x.n.Sparsity().Numel() }

// NNZ returns the number of structural nonzeros.
func (x MX) NNZ() int { return x.n.Sparsity().NNZ() }

// IsScalar reports whether the expression is 1x1.
func (x MX) IsScalar() bool { return x.n.Sparsity().IsScalar() }

// IsSymbolic reports whether the expression is a symbolic leaf.
func (x MX) IsSymbolic() bool { return x.n != nil && x.n.IsSymbolic() }

// IsConstant reports whether the expression is a constant leaf.
func (x MX) IsConstant() bool { return x.n != nil && x.n.IsConstant() }

// IsZero reports whether the expression is a constant whose values are all zero.
func (x MX) IsZero() bool {
	c, ok := x.n.(*constantNode)
	if !ok {
		return false
	}
	for _, v := range c.value.Data() {
		if v != 0 {
			return false
		}
	}
	return true
}

// Dims renders the shape as "RxC".
func (x MX) Dims() string {
	if x.IsNull() {
		return "null"
	}
	return x.Sparsity().Dims()
}

// String renders the expression tree. Shared sub-expressions are printed
// once per reference.
func (x MX) String() string {
	if x.IsNull() {
		return "[]"
	}
	var b strings.Builder
	x.print(&b)
	return b.String()
}

func (x MX) print(w io.Writer) {
	args := make([]string, x.n.NumDeps())
	for i := range args {
		var b strings.Builder
		if dep := x.n.Dep(i); dep.IsNull() {
			b.WriteString("[]")
		} else {
			dep.print(&b)
		}
		args[i] = b.String()
	}
	x.n.Print(w, args)
}

// node holds the state shared by all operation kinds.
type node struct {
	sp   *ksparsity.Sparsity
	deps []MX
}

func (n *node) Sparsity() *ksparsity.Sparsity { return n.sp }
func (n *node) NumDeps() int                  { return len(n.deps) }
func (n *node) Dep(i int) MX                  { return n.deps[i] }
func (n *node) IsSymbolic() bool              { return false }
func (n *node) IsConstant() bool              { return false }
func (n *node) IsNonLinear() bool             { return false }

// ShapeError reports operands with incompatible dimensions. Constructors panic
// with a *ShapeError; use Catch to turn it into an error.
type ShapeError struct {
	Op     string
	Shapes []string
	Reason string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: %s (operands %s)", e.Op, e.Reason, strings.Join(e.Shapes, ", "))
}

func shapePanic(op, reason string, xs ...MX) {
	shapes := make([]string, len(xs))
	for i, x := range xs {
		shapes[i] = x.Dims()
	}
	panic(&ShapeError{Op: op, Shapes: shapes, Reason: reason})
}

func requirePresent(op string, xs ...MX) {
	for _, x := range xs {
		if x.IsNull() {
			shapePanic(op, "absent operand", xs...)
		}
	}
}

// Catch runs build and converts a *ShapeError panic into an error. Other
// panics are propagated.
func Catch(build func() MX) (x MX, err error) {
	defer func() {
		if r := recover(); r != nil {
			se, ok := r.(*ShapeError)
			if !ok {
				panic(r)
			}
			x, err = MX{}, se
		}
	}()
	return build(), nil
}

func seedCols(fseed []MX) (int, bool) {
	for _, s := range fseed {
		if !s.IsNull() {
			return s.Size2(), true
		}
	}
	return 0, false
}

func missing(op string, i int) error {
	return fmt.Errorf("%w: %s operand %d", ErrMissingDerivative, op, i)
}
