package execution

import (
	"fmt"

	"github.com/birdayz/kfunc/kmatrix"
	"github.com/birdayz/kfunc/ksparsity"
)

// LiftFunc observes the primal values of a nonlinear node right after its
// forward evaluation. It must not retain or modify values.
type LiftFunc func(values []float64)

// Request carries the caller-owned buffers read by an evaluation.
type Request struct {
	Inputs []*kmatrix.Matrix
	// FwdSeeds is indexed [direction][input].
	FwdSeeds [][]*kmatrix.Matrix
	// AdjSeeds is indexed [direction][output].
	AdjSeeds [][]*kmatrix.Matrix
}

// Result carries the caller-owned buffers written by an evaluation.
type Result struct {
	Outputs []*kmatrix.Matrix
	// FwdSens is indexed [direction][output].
	FwdSens [][]*kmatrix.Matrix
	// AdjSens is indexed [direction][input].
	AdjSens [][]*kmatrix.Matrix
}

// NewRequest allocates zeroed request buffers for a function whose inputs and
// outputs have the given patterns.
func NewRequest(in, out []*ksparsity.Sparsity, nfdir, nadir int) *Request {
	req := &Request{
		Inputs:   alloc(in),
		FwdSeeds: make([][]*kmatrix.Matrix, nfdir),
		AdjSeeds: make([][]*kmatrix.Matrix, nadir),
	}
	for d := range req.FwdSeeds {
		req.FwdSeeds[d] = alloc(in)
	}
	for d := range req.AdjSeeds {
		req.AdjSeeds[d] = alloc(out)
	}
	return req
}

// NewResult allocates result buffers, see NewRequest.
func NewResult(in, out []*ksparsity.Sparsity, nfdir, nadir int) *Result {
	res := &Result{
		Outputs: alloc(out),
		FwdSens: make([][]*kmatrix.Matrix, nfdir),
		AdjSens: make([][]*kmatrix.Matrix, nadir),
	}
	for d := range res.FwdSens {
		res.FwdSens[d] = alloc(out)
	}
	for d := range res.AdjSens {
		res.AdjSens[d] = alloc(in)
	}
	return res
}

func alloc(patterns []*ksparsity.Sparsity) []*kmatrix.Matrix {
	out := make([]*kmatrix.Matrix, len(patterns))
	for i, sp := range patterns {
		out[i] = kmatrix.New(sp)
	}
	return out
}

// NewRequest allocates request buffers shaped after the plan.
func (p *Plan) NewRequest(nfdir, nadir int) *Request {
	return NewRequest(p.patterns(p.InputSlots), p.patterns(p.OutputSlots), nfdir, nadir)
}

// NewResult allocates result buffers shaped after the plan.
func (p *Plan) NewResult(nfdir, nadir int) *Result {
	return NewResult(p.patterns(p.InputSlots), p.patterns(p.OutputSlots), nfdir, nadir)
}

func (p *Plan) patterns(slots []int) []*ksparsity.Sparsity {
	out := make([]*ksparsity.Sparsity, len(slots))
	for i, s := range slots {
		out[i] = p.Records[s].Val.Sparsity()
	}
	return out
}

// Evaluate runs the forward sweep with nfdir tangent directions and, when
// nadir > 0, the adjoint sweep with nadir directions. Every call recomputes
// all records. lift may be nil.
func (p *Plan) Evaluate(req *Request, res *Result, nfdir, nadir int, lift LiftFunc) error {
	if nfdir < 0 || nadir < 0 || nfdir > p.nfdir || nadir > p.nadir {
		return fmt.Errorf("%w: requested %d forward and %d adjoint, configured %d and %d",
			ErrTooManyDirections, nfdir, nadir, p.nfdir, p.nadir)
	}
	if err := p.checkBuffers(req, res, nfdir, nadir); err != nil {
		return err
	}

	p.log.V(1).Info("evaluate begin", "fwdDirections", nfdir, "adjDirections", nadir)

	for i, slot := range p.InputSlots {
		r := p.Records[slot]
		if err := r.Val.Set(req.Inputs[i]); err != nil {
			return fmt.Errorf("%w: input %d: %v", ErrBufferMismatch, i, err)
		}
		for d := 0; d < nfdir; d++ {
			if err := r.Fwd[d].Set(req.FwdSeeds[d][i]); err != nil {
				return fmt.Errorf("%w: forward seed %d direction %d: %v", ErrBufferMismatch, i, d, err)
			}
		}
	}

	for _, r := range p.Records {
		n := r.MX.Node()
		n.Forward(&r.Args, nfdir)
		if lift != nil && n.IsNonLinear() {
			lift(r.Val.Data())
		}
	}

	for i, slot := range p.OutputSlots {
		r := p.Records[slot]
		if err := r.Val.Get(res.Outputs[i]); err != nil {
			return fmt.Errorf("%w: output %d: %v", ErrBufferMismatch, i, err)
		}
		for d := 0; d < nfdir; d++ {
			if err := r.Fwd[d].Get(res.FwdSens[d][i]); err != nil {
				return fmt.Errorf("%w: forward sensitivity %d direction %d: %v", ErrBufferMismatch, i, d, err)
			}
		}
	}

	if nadir > 0 {
		if err := p.adjointSweep(req, res, nadir); err != nil {
			return err
		}
	}

	p.log.V(1).Info("evaluate end")
	return nil
}

func (p *Plan) adjointSweep(req *Request, res *Result, nadir int) error {
	for _, r := range p.Records {
		for d := 0; d < nadir; d++ {
			r.Adj[d].Zero()
		}
	}

	// repeated outputs add their seeds
	for i, slot := range p.OutputSlots {
		r := p.Records[slot]
		for d := 0; d < nadir; d++ {
			seed := req.AdjSeeds[d][i]
			dst := r.Adj[d]
			if !seed.Sparsity().Equal(dst.Sparsity()) {
				conv := kmatrix.New(dst.Sparsity())
				if err := conv.Set(seed); err != nil {
					return fmt.Errorf("%w: adjoint seed %d direction %d: %v", ErrBufferMismatch, i, d, err)
				}
				seed = conv
			}
			kmatrix.Accumulate(seed.Data(), dst.Data())
		}
	}

	for i := len(p.Records) - 1; i >= 0; i-- {
		r := p.Records[i]
		r.MX.Node().Adjoint(&r.Args, nadir)
	}

	for i, slot := range p.InputSlots {
		r := p.Records[slot]
		for d := 0; d < nadir; d++ {
			if err := r.Adj[d].Get(res.AdjSens[d][i]); err != nil {
				return fmt.Errorf("%w: adjoint sensitivity %d direction %d: %v", ErrBufferMismatch, i, d, err)
			}
		}
	}
	return nil
}

func (p *Plan) checkBuffers(req *Request, res *Result, nfdir, nadir int) error {
	if req == nil || res == nil {
		return fmt.Errorf("%w: nil request or result", ErrBufferMismatch)
	}
	checks := []struct {
		what  string
		got   [][]*kmatrix.Matrix
		dirs  int
		slots []int
	}{
		{"forward seeds", req.FwdSeeds, nfdir, p.InputSlots},
		{"adjoint seeds", req.AdjSeeds, nadir, p.OutputSlots},
		{"forward sensitivities", res.FwdSens, nfdir, p.OutputSlots},
		{"adjoint sensitivities", res.AdjSens, nadir, p.InputSlots},
	}
	if err := p.checkList("inputs", -1, req.Inputs, p.InputSlots); err != nil {
		return err
	}
	if err := p.checkList("outputs", -1, res.Outputs, p.OutputSlots); err != nil {
		return err
	}
	for _, c := range checks {
		if len(c.got) < c.dirs {
			return fmt.Errorf("%w: %s: %d directions, need %d", ErrBufferMismatch, c.what, len(c.got), c.dirs)
		}
		for d := 0; d < c.dirs; d++ {
			if err := p.checkList(c.what, d, c.got[d], c.slots); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Plan) checkList(what string, dir int, got []*kmatrix.Matrix, slots []int) error {
	if len(got) != len(slots) {
		return fmt.Errorf("%w: %s direction %d: %d buffers, need %d", ErrBufferMismatch, what, dir, len(got), len(slots))
	}
	for i, m := range got {
		want := p.Records[slots[i]].Val.Sparsity()
		if m == nil || !m.Sparsity().SameShape(want) {
			return fmt.Errorf("%w: %s direction %d position %d: want %s", ErrBufferMismatch, what, dir, i, want.Dims())
		}
	}
	return nil
}
