package kexpr

import (
	"io"
	"math"
	"strconv"

	"github.com/birdayz/kfunc/kmatrix"
	"github.com/birdayz/kfunc/ksparsity"
)

type unaryOp struct {
	name string
	eval func(x, p float64) float64
	// partial returns df/dx given the operand, the result f and the parameter.
	partial func(x, f, p float64) float64
	linear  bool
}

var (
	opNeg = &unaryOp{
		name:    "neg",
		eval:    func(x, _ float64) float64 { return -x },
		partial: func(_, _, _ float64) float64 { return -1 },
		linear:  true,
	}
	opSin = &unaryOp{
		name:    "sin",
		eval:    func(x, _ float64) float64 { return math.Sin(x) },
		partial: func(x, _, _ float64) float64 { return math.Cos(x) },
	}
	opCos = &unaryOp{
		name:    "cos",
		eval:    func(x, _ float64) float64 { return math.Cos(x) },
		partial: func(x, _, _ float64) float64 { return -math.Sin(x) },
	}
	opExp = &unaryOp{
		name:    "exp",
		eval:    func(x, _ float64) float64 { return math.Exp(x) },
		partial: func(_, f, _ float64) float64 { return f },
	}
	opLog = &unaryOp{
		name:    "log",
		eval:    func(x, _ float64) float64 { return math.Log(x) },
		partial: func(x, _, _ float64) float64 { return 1 / x },
	}
	opSqrt = &unaryOp{
		name:    "sqrt",
		eval:    func(x, _ float64) float64 { return math.Sqrt(x) },
		partial: func(_, f, _ float64) float64 { return 0.5 / f },
	}
	opTanh = &unaryOp{
		name:    "tanh",
		eval:    func(x, _ float64) float64 { return math.Tanh(x) },
		partial: func(_, f, _ float64) float64 { return 1 - f*f },
	}
	opSquare = &unaryOp{
		name:    "sq",
		eval:    func(x, _ float64) float64 { return x * x },
		partial: func(x, _, _ float64) float64 { return 2 * x },
	}
	opPowConst = &unaryOp{
		name:    "constpow",
		eval:    math.Pow,
		partial: func(x, _, p float64) float64 { return p * math.Pow(x, p-1) },
	}
)

type unaryNode struct {
	node
	op *unaryOp
	p  float64
}

// Neg returns -x.
func Neg(x MX) MX { return newUnary(opNeg, x, 0) }

func Sin(x MX) MX  { return newUnary(opSin, x, 0) }
func Cos(x MX) MX  { return newUnary(opCos, x, 0) }
func Exp(x MX) MX  { return newUnary(opExp, x, 0) }
func Log(x MX) MX  { return newUnary(opLog, x, 0) }
func Sqrt(x MX) MX { return newUnary(opSqrt, x, 0) }
func Tanh(x MX) MX { return newUnary(opTanh, x, 0) }

// Square returns x*x elementwise.
func Square(x MX) MX { return newUnary(opSquare, x, 0) }

// PowConst raises x elementwise to a constant exponent.
func PowConst(x MX, p float64) MX { return newUnary(opPowConst, x, p) }

func newUnary(op *unaryOp, x MX, p float64) MX {
	requirePresent(op.name, x)
	x = dense(x)
	return MX{&unaryNode{
		node: node{sp: ksparsity.Dense(x.Size1(), x.Size2()), deps: []MX{x}},
		op:   op,
		p:    p,
	}}
}

func (n *unaryNode) x() MX { return n.deps[0] }

func (n *unaryNode) OpName() string { return n.op.name }

func (n *unaryNode) IsNonLinear() bool {
	if n.op == opPowConst {
		return n.p != 0 && n.p != 1
	}
	return !n.op.linear
}

func (n *unaryNode) Forward(a *Args, nfdir int) {
	x, out := a.Input[0], a.Output
	for k := range out {
		out[k] = n.op.eval(x[k], n.p)
	}
	for d := 0; d < nfdir; d++ {
		seed, sens := a.FwdSeed[0][d], a.FwdSens[d]
		for k := range sens {
			if seed[k] == 0 {
				sens[k] = 0
				continue
			}
			sens[k] = n.op.partial(x[k], out[k], n.p) * seed[k]
		}
	}
}

func (n *unaryNode) Adjoint(a *Args, nadir int) {
	x, out := a.Input[0], a.Output
	for d := 0; d < nadir; d++ {
		seed, sens := a.AdjSeed[d], a.AdjSens[0][d]
		if n.op == opNeg {
			kmatrix.Axpy(-1, seed, sens)
			continue
		}
		for k, s := range seed {
			if s != 0 {
				sens[k] += n.op.partial(x[k], out[k], n.p) * s
			}
		}
	}
}

func (n *unaryNode) ForwardDerivative(fseed []MX) (MX, error) {
	if fseed[0].IsNull() {
		return MX{}, missing(n.op.name, 0)
	}
	return n.rule(fseed[0]), nil
}

func (n *unaryNode) rule(dx MX) MX {
	switch n.op {
	case opNeg:
		if dx.IsZero() {
			return dx
		}
		return Neg(dx)
	case opSin:
		return scaleRows(Cos(n.x()), dx)
	case opCos:
		return scaleRows(Neg(Sin(n.x())), dx)
	case opExp:
		return scaleRows(MX{n}, dx)
	case opLog:
		return divRows(dx, n.x())
	case opSqrt:
		return divRows(dx, Mul(Scalar(2), MX{n}))
	case opTanh:
		return scaleRows(Sub(Scalar(1), Square(MX{n})), dx)
	case opSquare:
		return scaleRows(Mul(Scalar(2), n.x()), dx)
	default:
		return scaleRows(Mul(Scalar(n.p), PowConst(n.x(), n.p-1)), dx)
	}
}

func (n *unaryNode) Print(w io.Writer, args []string) {
	switch n.op {
	case opNeg:
		io.WriteString(w, "(-"+args[0]+")")
	case opPowConst:
		io.WriteString(w, "pow("+args[0]+","+strconv.FormatFloat(n.p, 'g', -1, 64)+")")
	default:
		io.WriteString(w, n.op.name+"("+args[0]+")")
	}
}
