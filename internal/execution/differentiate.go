package execution

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/birdayz/kfunc/kexpr"
)

// Derivative is the outcome of a symbolic forward pass.
type Derivative struct {
	// Outputs holds one numel x ncol expression per declared output.
	Outputs []kexpr.MX
	// Warnings combines one ErrExperimentalDerivative per experimental rule
	// used. It is nil when every rule is fully supported.
	Warnings error
}

// ForwardDerivative builds, for every output, the directional derivative
// along the seeds. fseed[i] is the numel x ncol derivative of input i; all
// seeds must have the same number of columns.
func (p *Plan) ForwardDerivative(fseed []kexpr.MX) (*Derivative, error) {
	if len(fseed) != len(p.InputSlots) {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrSeedCount, len(fseed), len(p.InputSlots))
	}
	ncol := -1
	for i, s := range fseed {
		in := p.Input(i).MX
		switch {
		case s.IsNull():
			return nil, fmt.Errorf("%w: seed %d is null", ErrSeedShape, i)
		case s.Size1() != in.Numel():
			return nil, fmt.Errorf("%w: seed %d has %d rows, input has %d elements", ErrSeedShape, i, s.Size1(), in.Numel())
		case ncol >= 0 && s.Size2() != ncol:
			return nil, fmt.Errorf("%w: seed %d has %d columns, seed 0 has %d", ErrSeedColumns, i, s.Size2(), ncol)
		}
		ncol = s.Size2()
	}
	if ncol < 0 {
		ncol = 0
	}

	p.log.V(1).Info("forward derivative begin", "directions", ncol)

	work := make([]kexpr.MX, len(p.Records))
	for i, slot := range p.InputSlots {
		work[slot] = fseed[i]
	}

	var warnings error
	for i, r := range p.Records {
		if !work[i].IsNull() {
			continue
		}
		if r.MX.IsConstant() {
			work[i] = kexpr.Zeros(r.MX.Numel(), ncol)
			continue
		}
		n := r.MX.Node()
		if n.IsSymbolic() {
			return nil, fmt.Errorf("%w: record %d: free symbol %s has no seed", ErrInvariantViolation, i, r.MX)
		}

		cseed := make([]kexpr.MX, len(r.Ch))
		for k, slot := range r.Ch {
			if slot != Absent {
				cseed[k] = work[slot]
			}
		}
		d, err := n.ForwardDerivative(cseed)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d (%s): %w", ErrInvariantViolation, i, n.OpName(), err)
		}
		if d.IsNull() || d.Size1() != r.MX.Numel() || d.Size2() != ncol {
			return nil, fmt.Errorf("%w: record %d (%s): derivative is %s, want %dx%d",
				ErrInvariantViolation, i, n.OpName(), d.Dims(), r.MX.Numel(), ncol)
		}
		work[i] = d

		if rule, ok := n.(kexpr.ExperimentalRule); ok {
			if msg := rule.ExperimentalDerivative(); msg != "" {
				warnings = multierr.Append(warnings,
					fmt.Errorf("%w: record %d (%s): %s", ErrExperimentalDerivative, i, n.OpName(), msg))
			}
		}
	}

	out := &Derivative{Outputs: make([]kexpr.MX, len(p.OutputSlots)), Warnings: warnings}
	for i, slot := range p.OutputSlots {
		out.Outputs[i] = work[slot]
	}

	p.log.V(1).Info("forward derivative end", "warnings", len(multierr.Errors(warnings)))
	return out, nil
}

// Jac returns the Jacobian of every output with respect to input i: the
// chosen input is seeded with the identity, all others with zeros.
func (p *Plan) Jac(i int) (*Derivative, error) {
	if i < 0 || i >= len(p.InputSlots) {
		return nil, fmt.Errorf("%w: %d of %d", ErrInputIndex, i, len(p.InputSlots))
	}
	ncol := p.Input(i).MX.Numel()
	fseed := make([]kexpr.MX, len(p.InputSlots))
	for j := range fseed {
		if j == i {
			fseed[j] = kexpr.Eye(ncol)
			continue
		}
		fseed[j] = kexpr.Zeros(p.Input(j).MX.Numel(), ncol)
	}
	return p.ForwardDerivative(fseed)
}
