package khcl

import (
	"errors"
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
	"go.uber.org/multierr"
	"golang.org/x/exp/maps"

	"github.com/birdayz/kfunc/kexpr"
)

// errBroken marks a reference to a name whose own definition failed. It is
// not reported again.
var errBroken = errors.New("khcl: reference to a failed definition")

type function struct {
	arity int // -1 is variadic
	build func(args []kexpr.MX) kexpr.MX
}

func unary(fn func(kexpr.MX) kexpr.MX) function {
	return function{arity: 1, build: func(a []kexpr.MX) kexpr.MX { return fn(a[0]) }}
}

var functions = map[string]function{
	"sum":       unary(kexpr.Sum),
	"sin":       unary(kexpr.Sin),
	"cos":       unary(kexpr.Cos),
	"exp":       unary(kexpr.Exp),
	"log":       unary(kexpr.Log),
	"sqrt":      unary(kexpr.Sqrt),
	"tanh":      unary(kexpr.Tanh),
	"square":    unary(kexpr.Square),
	"transpose": unary(kexpr.Transpose),
	"vec":       unary(kexpr.Vec),
	"mtimes": {arity: 2, build: func(a []kexpr.MX) kexpr.MX {
		return kexpr.MatMul(a[0], a[1])
	}},
	"vertcat": {arity: -1, build: func(a []kexpr.MX) kexpr.MX { return kexpr.Vertcat(a...) }},
	"horzcat": {arity: -1, build: func(a []kexpr.MX) kexpr.MX { return kexpr.Horzcat(a...) }},
}

// converter turns hclsyntax expressions into expression graphs. scope maps
// input and let names to their handles.
type converter struct {
	scope  map[string]kexpr.MX
	broken map[string]bool
}

func (c *converter) convert(expr hcl.Expression) (kexpr.MX, error) {
	syn, ok := expr.(hclsyntax.Expression)
	if !ok {
		return kexpr.MX{}, fmt.Errorf("%s: %w: expression is not native syntax", expr.Range(), ErrUnsupported)
	}

	switch e := syn.(type) {
	case *hclsyntax.LiteralValueExpr:
		return constant(e, e.Val)

	case *hclsyntax.TupleConsExpr:
		if len(e.Variables()) > 0 {
			return kexpr.MX{}, fmt.Errorf("%s: %w: list literals must be constant, use vertcat or horzcat", e.Range(), ErrUnsupported)
		}
		v, diags := e.Value(nil)
		if diags.HasErrors() {
			return kexpr.MX{}, diags
		}
		return constant(e, v)

	case *hclsyntax.ScopeTraversalExpr:
		name := e.Traversal.RootName()
		if len(e.Traversal) > 1 {
			return kexpr.MX{}, fmt.Errorf("%s: %w: attribute or index access on %q", e.Range(), ErrUnsupported, name)
		}
		if c.broken[name] {
			return kexpr.MX{}, errBroken
		}
		x, ok := c.scope[name]
		if !ok {
			known := maps.Keys(c.scope)
			sort.Strings(known)
			return kexpr.MX{}, fmt.Errorf("%s: %w: %q (known: %v)", e.Range(), ErrUnknownReference, name, known)
		}
		return x, nil

	case *hclsyntax.ParenthesesExpr:
		return c.convert(e.Expression)

	case *hclsyntax.UnaryOpExpr:
		if e.Op != hclsyntax.OpNegate {
			return kexpr.MX{}, fmt.Errorf("%s: %w: unary operator", e.Range(), ErrUnsupported)
		}
		x, err := c.convert(e.Val)
		if err != nil {
			return kexpr.MX{}, err
		}
		return build(e, func() kexpr.MX { return kexpr.Neg(x) })

	case *hclsyntax.BinaryOpExpr:
		var op func(a, b kexpr.MX) kexpr.MX
		switch e.Op {
		case hclsyntax.OpAdd:
			op = kexpr.Add
		case hclsyntax.OpSubtract:
			op = kexpr.Sub
		case hclsyntax.OpMultiply:
			op = kexpr.Mul
		case hclsyntax.OpDivide:
			op = kexpr.Div
		default:
			return kexpr.MX{}, fmt.Errorf("%s: %w: binary operator", e.Range(), ErrUnsupported)
		}
		a, errA := c.convert(e.LHS)
		b, errB := c.convert(e.RHS)
		if err := multierr.Combine(errA, errB); err != nil {
			return kexpr.MX{}, err
		}
		return build(e, func() kexpr.MX { return op(a, b) })

	case *hclsyntax.FunctionCallExpr:
		return c.call(e)
	}
	return kexpr.MX{}, fmt.Errorf("%s: %w: %T", syn.Range(), ErrUnsupported, syn)
}

func (c *converter) call(e *hclsyntax.FunctionCallExpr) (kexpr.MX, error) {
	switch e.Name {
	case "reshape":
		if len(e.Args) != 3 {
			return kexpr.MX{}, arity(e, 3)
		}
		x, err := c.convert(e.Args[0])
		if err != nil {
			return kexpr.MX{}, err
		}
		rows, errR := integer(e.Args[1])
		cols, errC := integer(e.Args[2])
		if err := multierr.Combine(errR, errC); err != nil {
			return kexpr.MX{}, err
		}
		return build(e, func() kexpr.MX { return kexpr.Reshape(x, rows, cols) })

	case "pow":
		if len(e.Args) != 2 {
			return kexpr.MX{}, arity(e, 2)
		}
		x, err := c.convert(e.Args[0])
		if err != nil {
			return kexpr.MX{}, err
		}
		if len(e.Args[1].Variables()) == 0 {
			var p float64
			if v, diags := e.Args[1].Value(nil); !diags.HasErrors() && v.Type() == cty.Number && gocty.FromCtyValue(v, &p) == nil {
				return build(e, func() kexpr.MX { return kexpr.PowConst(x, p) })
			}
		}
		y, err := c.convert(e.Args[1])
		if err != nil {
			return kexpr.MX{}, err
		}
		return build(e, func() kexpr.MX { return kexpr.Pow(x, y) })
	}

	fn, ok := functions[e.Name]
	if !ok {
		return kexpr.MX{}, fmt.Errorf("%s: %w: function %q", e.NameRange, ErrUnknownFunction, e.Name)
	}
	if fn.arity >= 0 && len(e.Args) != fn.arity {
		return kexpr.MX{}, arity(e, fn.arity)
	}
	args := make([]kexpr.MX, len(e.Args))
	var errs []error
	for i, a := range e.Args {
		var err error
		if args[i], err = c.convert(a); err != nil {
			errs = append(errs, err)
		}
	}
	if err := multierr.Combine(errs...); err != nil {
		return kexpr.MX{}, err
	}
	return build(e, func() kexpr.MX { return fn.build(args) })
}

// build runs a constructor and attaches the source range to shape errors.
func build(e hclsyntax.Expression, fn func() kexpr.MX) (kexpr.MX, error) {
	x, err := kexpr.Catch(fn)
	if err != nil {
		return kexpr.MX{}, fmt.Errorf("%s: %w", e.Range(), err)
	}
	return x, nil
}

func constant(e hclsyntax.Expression, v cty.Value) (kexpr.MX, error) {
	m, err := ToMatrix(v, 0, 0)
	if err != nil {
		return kexpr.MX{}, fmt.Errorf("%s: %w", e.Range(), err)
	}
	if m.Rows() == 1 && m.Cols() == 1 {
		return kexpr.Scalar(m.Data()[0]), nil
	}
	return kexpr.Constant(m), nil
}

func integer(e hclsyntax.Expression) (int, error) {
	v, diags := e.Value(nil)
	if diags.HasErrors() {
		return 0, diags
	}
	var n int
	if err := gocty.FromCtyValue(v, &n); err != nil {
		return 0, fmt.Errorf("%s: %w: %v", e.Range(), ErrInvalidValue, err)
	}
	return n, nil
}

func arity(e *hclsyntax.FunctionCallExpr, want int) error {
	return fmt.Errorf("%s: %w: %s takes %d arguments, got %d", e.Range(), ErrArity, e.Name, want, len(e.Args))
}
