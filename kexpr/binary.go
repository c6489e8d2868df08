package kexpr

import (
	"io"
	"math"

	"github.com/birdayz/kfunc/kmatrix"
	"github.com/birdayz/kfunc/ksparsity"
)

type binaryOp struct {
	name  string
	infix string

	eval func(x, y float64) float64
	// partials returns df/dx and df/dy given the operands and the result f.
	partials func(x, y, f float64) (float64, float64)

	nonlinear    func(a, b MX) bool
	experimental string
}

var (
	opAdd = &binaryOp{
		name:     "add",
		infix:    "+",
		eval:     func(x, y float64) float64 { return x + y },
		partials: func(_, _, _ float64) (float64, float64) { return 1, 1 },
	}
	opSub = &binaryOp{
		name:     "sub",
		infix:    "-",
		eval:     func(x, y float64) float64 { return x - y },
		partials: func(_, _, _ float64) (float64, float64) { return 1, -1 },
	}
	opMul = &binaryOp{
		name:      "mul",
		infix:     "*",
		eval:      func(x, y float64) float64 { return x * y },
		partials:  func(x, y, _ float64) (float64, float64) { return y, x },
		nonlinear: func(a, b MX) bool { return !a.IsConstant() && !b.IsConstant() },
	}
	opDiv = &binaryOp{
		name:  "div",
		infix: "/",
		eval:  func(x, y float64) float64 { return x / y },
		partials: func(_, y, f float64) (float64, float64) {
			return 1 / y, -f / y
		},
		nonlinear: func(_, b MX) bool { return !b.IsConstant() },
	}
	opPow = &binaryOp{
		name: "pow",
		eval: math.Pow,
		partials: func(x, y, f float64) (float64, float64) {
			return y * math.Pow(x, y-1), f * math.Log(x)
		},
		nonlinear:    func(_, _ MX) bool { return true },
		experimental: "pow derivative is only valid for a positive base",
	}
)

type binaryNode struct {
	node
	op        *binaryOp
	ma, mb    bcast
	nonlinear bool
}

// Add returns a+b with broadcasting.
func Add(a, b MX) MX { return newBinary(opAdd, a, b) }

// Sub returns a-b with broadcasting.
func Sub(a, b MX) MX { return newBinary(opSub, a, b) }

// Mul returns the elementwise product with broadcasting.
func Mul(a, b MX) MX { return newBinary(opMul, a, b) }

// Div returns the elementwise quotient with broadcasting.
func Div(a, b MX) MX { return newBinary(opDiv, a, b) }

// Pow returns a raised elementwise to b. Its derivative rule is experimental.
func Pow(a, b MX) MX { return newBinary(opPow, a, b) }

func newBinary(op *binaryOp, a, b MX) MX {
	requirePresent(op.name, a, b)
	rows, cols, ma, mb := broadcast(op.name, a, b)
	a, b = dense(a), dense(b)
	n := &binaryNode{
		node: node{sp: ksparsity.Dense(rows, cols), deps: []MX{a, b}},
		op:   op,
		ma:   ma,
		mb:   mb,
	}
	if op.nonlinear != nil {
		n.nonlinear = op.nonlinear(a, b)
	}
	return MX{n}
}

func (n *binaryNode) OpName() string    { return n.op.name }
func (n *binaryNode) IsNonLinear() bool { return n.nonlinear }

// ExperimentalDerivative flags pow with a non-constant exponent: its rule goes
// through log(base).
func (n *binaryNode) ExperimentalDerivative() string {
	if n.op == opPow && n.deps[1].IsConstant() {
		return ""
	}
	return n.op.experimental
}

// operands returns both operands expanded to the result shape.
func (n *binaryNode) operands() (MX, MX) {
	r, c := n.sp.Rows(), n.sp.Cols()
	return expandValue(n.deps[0], n.ma, r, c), expandValue(n.deps[1], n.mb, r, c)
}

func (n *binaryNode) Forward(a *Args, nfdir int) {
	x, y, out := a.Input[0], a.Input[1], a.Output
	r := n.sp.Rows()
	for k := range out {
		out[k] = n.op.eval(x[n.ma.index(k, r)], y[n.mb.index(k, r)])
	}
	for d := 0; d < nfdir; d++ {
		sx, sy, sens := a.FwdSeed[0][d], a.FwdSeed[1][d], a.FwdSens[d]
		for k := range sens {
			i, j := n.ma.index(k, r), n.mb.index(k, r)
			px, py := n.op.partials(x[i], y[j], out[k])
			var v float64
			if sx[i] != 0 {
				v += px * sx[i]
			}
			if sy[j] != 0 {
				v += py * sy[j]
			}
			sens[k] = v
		}
	}
}

func (n *binaryNode) Adjoint(a *Args, nadir int) {
	if (n.op == opAdd || n.op == opSub) && n.ma == bcastNone && n.mb == bcastNone {
		sign := 1.0
		if n.op == opSub {
			sign = -1
		}
		for d := 0; d < nadir; d++ {
			kmatrix.Axpy(1, a.AdjSeed[d], a.AdjSens[0][d])
			kmatrix.Axpy(sign, a.AdjSeed[d], a.AdjSens[1][d])
		}
		return
	}
	x, y, out := a.Input[0], a.Input[1], a.Output
	r := n.sp.Rows()
	for d := 0; d < nadir; d++ {
		seed, ax, ay := a.AdjSeed[d], a.AdjSens[0][d], a.AdjSens[1][d]
		for k, s := range seed {
			if s == 0 {
				continue
			}
			i, j := n.ma.index(k, r), n.mb.index(k, r)
			px, py := n.op.partials(x[i], y[j], out[k])
			ax[i] += px * s
			ay[j] += py * s
		}
	}
}

func (n *binaryNode) ForwardDerivative(fseed []MX) (MX, error) {
	for i, s := range fseed {
		if s.IsNull() {
			return MX{}, missing(n.op.name, i)
		}
	}
	num := n.sp.Numel()
	reps := n.sp.Cols()
	ea := expandDerivative(fseed[0], n.ma, num, reps)
	eb := expandDerivative(fseed[1], n.mb, num, reps)
	return n.rule(ea, eb), nil
}

// rule builds the derivative from broadcast operand derivatives ea and eb.
func (n *binaryNode) rule(ea, eb MX) MX {
	switch n.op {
	case opAdd:
		return sumTerms(n.sp.Numel(), ea.Size2(), ea, eb)
	case opSub:
		return subTerms(ea, eb)
	case opMul:
		a, b := n.operands()
		return sumTerms(n.sp.Numel(), ea.Size2(),
			scaleRows(b, ea),
			scaleRows(a, eb))
	case opDiv:
		_, b := n.operands()
		num := subTerms(ea, scaleRows(MX{n}, eb))
		return divRows(num, b)
	default:
		x, y := n.deps[0], n.deps[1]
		da := scaleRows(Mul(y, Pow(x, Sub(y, Scalar(1)))), ea)
		db := scaleRows(Mul(MX{n}, Log(x)), eb)
		return sumTerms(n.sp.Numel(), ea.Size2(), da, db)
	}
}

func (n *binaryNode) Print(w io.Writer, args []string) {
	if n.op.infix == "" {
		io.WriteString(w, n.op.name+"("+args[0]+","+args[1]+")")
		return
	}
	io.WriteString(w, "("+args[0]+n.op.infix+args[1]+")")
}
