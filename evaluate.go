package kfunc

import (
	"fmt"

	"github.com/birdayz/kfunc/internal/execution"
	"github.com/birdayz/kfunc/kmatrix"
	"github.com/birdayz/kfunc/ksparsity"
)

// Request carries the caller-owned input values and seeds.
//
//	Inputs   [input]
//	FwdSeeds [direction][input]
//	AdjSeeds [direction][output]
type Request = execution.Request

// Result carries the caller-owned output buffers.
//
//	Outputs [output]
//	FwdSens [direction][output]
//	AdjSens [direction][input]
type Result = execution.Result

// NewRequest allocates zeroed request buffers with nfdir forward and nadir
// adjoint directions.
func (f *Function) NewRequest(nfdir, nadir int) *Request {
	return execution.NewRequest(f.patterns(), f.outputPatterns(), nfdir, nadir)
}

// NewResult allocates result buffers with nfdir forward and nadir adjoint
// directions.
func (f *Function) NewResult(nfdir, nadir int) *Result {
	return execution.NewResult(f.patterns(), f.outputPatterns(), nfdir, nadir)
}

func (f *Function) patterns() []*ksparsity.Sparsity {
	out := make([]*ksparsity.Sparsity, len(f.inputs))
	for i, x := range f.inputs {
		out[i] = x.Sparsity()
	}
	return out
}

func (f *Function) outputPatterns() []*ksparsity.Sparsity {
	out := make([]*ksparsity.Sparsity, len(f.outputs))
	for i, x := range f.outputs {
		out[i] = x.Sparsity()
	}
	return out
}

// Evaluate computes the outputs for req.Inputs. The number of forward and
// adjoint directions is taken from req.FwdSeeds and req.AdjSeeds and may not
// exceed what the function was built with.
func (f *Function) Evaluate(req *Request, res *Result) error {
	if f.plan == nil {
		return ErrNotBuilt
	}
	if req == nil {
		return fmt.Errorf("%w: nil request", ErrBufferMismatch)
	}
	var lift execution.LiftFunc
	if f.lift != nil {
		fn, data := f.lift, f.liftData
		lift = func(values []float64) { fn(values, data) }
	}
	return f.plan.Evaluate(req, res, len(req.FwdSeeds), len(req.AdjSeeds), lift)
}

// Eval builds the function if needed and returns its outputs for the given
// input values.
func (f *Function) Eval(inputs ...*kmatrix.Matrix) ([]*kmatrix.Matrix, error) {
	if f.plan == nil {
		if err := f.Build(); err != nil {
			return nil, err
		}
	}
	if len(inputs) != len(f.inputs) {
		return nil, fmt.Errorf("%w: %d inputs, need %d", ErrBufferMismatch, len(inputs), len(f.inputs))
	}
	req := &Request{Inputs: inputs}
	res := f.NewResult(0, 0)
	if err := f.Evaluate(req, res); err != nil {
		return nil, err
	}
	return res.Outputs, nil
}
