// Package kfunc compiles symbolic expression graphs into evaluable functions.
//
// A Function is declared by its symbolic inputs and its output expressions.
// Build sorts the graph and allocates one buffer set per node; afterwards
// Evaluate computes outputs, forward sensitivities and adjoint sensitivities
// numerically, while Jac and ForwardDifferentiate build new expressions for
// derivatives.
//
//	x := kexpr.Symbol("x", 2, 1)
//	y := kexpr.Symbol("y", 1, 1)
//	f, err := kfunc.New([]kexpr.MX{x, y}, []kexpr.MX{kexpr.Mul(kexpr.Sum(x), y)},
//	    kfunc.WithAdjointDirections(1))
//	if err != nil {
//	    return err
//	}
//	if err := f.Build(); err != nil {
//	    return err
//	}
//
// A Function is not safe for concurrent use. Distinct Functions may share
// expression nodes and run concurrently.
package kfunc

import (
	"github.com/go-logr/logr"

	"github.com/birdayz/kfunc/internal/execution"
	"github.com/birdayz/kfunc/kdag"
	"github.com/birdayz/kfunc/kexpr"
)

// LiftingFunc is called after every nonlinear node is evaluated, with the
// node's values and the user data registered alongside. values is only valid
// during the call.
type LiftingFunc func(values []float64, userData any)

// Function maps input expressions to output expressions and evaluates them
// through a compiled plan.
type Function struct {
	name     string
	inputs   []kexpr.MX
	outputs  []kexpr.MX
	opts     []Option
	nfdir    int
	nadir    int
	maxNodes int
	log      logr.Logger
	advisory AdvisoryHandler

	plan *execution.Plan

	lift     LiftingFunc
	liftData any
}

// New declares a function. Every input must be a distinct symbolic leaf and
// every output must be present; violations are reported as
// *ConstructionError. The function must be built before use.
func New(inputs, outputs []kexpr.MX, opts ...Option) (*Function, error) {
	if err := execution.ValidateDeclarations(inputs, outputs); err != nil {
		return nil, err
	}
	f := &Function{
		name:     "function",
		inputs:   append([]kexpr.MX(nil), inputs...),
		outputs:  append([]kexpr.MX(nil), outputs...),
		maxNodes: kdag.DefaultMaxNodes,
		log:      logr.Discard(),
	}
	f.apply(opts)
	return f, nil
}

// MustNew is like New but panics on error.
func MustNew(inputs, outputs []kexpr.MX, opts ...Option) *Function {
	f, err := New(inputs, outputs, opts...)
	if err != nil {
		panic(err)
	}
	return f
}

func (f *Function) apply(opts []Option) {
	for _, o := range opts {
		o(f)
	}
	f.opts = append(f.opts, opts...)
}

// Build sorts the expression graph and allocates the execution plan. Calling
// Build again discards the previous plan and rebuilds from the same nodes.
func (f *Function) Build() error {
	f.log.V(1).Info("build begin", "function", f.name)
	plan, err := execution.BuildPlan(f.inputs, f.outputs, execution.PlanConfig{
		ForwardDirections: f.nfdir,
		AdjointDirections: f.nadir,
		MaxNodes:          f.maxNodes,
		Logger:            f.log.WithValues("function", f.name),
	})
	if err != nil {
		return err
	}
	f.plan = plan
	f.log.V(1).Info("build end", "function", f.name, "records", len(plan.Records))
	return nil
}

// Configure applies options. The current plan is discarded, so the function
// has to be built again.
func (f *Function) Configure(opts ...Option) {
	f.apply(opts)
	f.plan = nil
}

// IsBuilt reports whether a plan is available.
func (f *Function) IsBuilt() bool { return f.plan != nil }

// Name returns the name set with WithName.
func (f *Function) Name() string { return f.name }

// NumInputs returns the number of declared inputs.
func (f *Function) NumInputs() int { return len(f.inputs) }

// NumOutputs returns the number of declared outputs.
func (f *Function) NumOutputs() int { return len(f.outputs) }

// Input returns input i.
func (f *Function) Input(i int) kexpr.MX { return f.inputs[i] }

// Output returns output i.
func (f *Function) Output(i int) kexpr.MX { return f.outputs[i] }

// FreeSymbols returns symbols the outputs depend on that are not declared
// inputs. They evaluate as zero.
func (f *Function) FreeSymbols() ([]kexpr.MX, error) {
	if f.plan == nil {
		return nil, ErrNotBuilt
	}
	return f.plan.FreeSymbols(), nil
}

// SetLiftingFunction registers fn to observe nonlinear node values during
// Evaluate. A nil fn removes the hook.
func (f *Function) SetLiftingFunction(fn LiftingFunc, userData any) {
	f.lift = fn
	f.liftData = userData
}

// Clone returns a function with the same inputs, outputs, options and lifting
// function. The clone is built if f is.
func (f *Function) Clone() (*Function, error) {
	c, err := New(f.inputs, f.outputs, f.opts...)
	if err != nil {
		return nil, err
	}
	c.lift, c.liftData = f.lift, f.liftData
	if f.plan != nil {
		if err := c.Build(); err != nil {
			return nil, err
		}
	}
	return c, nil
}
