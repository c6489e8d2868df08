package kfunc

import (
	"go.uber.org/multierr"

	"github.com/birdayz/kfunc/internal/execution"
	"github.com/birdayz/kfunc/kexpr"
)

// Jac returns the Jacobian of the first output with respect to input i, a
// numel(output) x numel(input) expression.
func (f *Function) Jac(i int) (kexpr.MX, error) {
	if len(f.outputs) == 0 {
		return kexpr.MX{}, ErrNoOutputs
	}
	all, err := f.JacAll(i)
	if err != nil {
		return kexpr.MX{}, err
	}
	return all[0], nil
}

// JacAll returns the Jacobian of every output with respect to input i.
func (f *Function) JacAll(i int) ([]kexpr.MX, error) {
	if f.plan == nil {
		return nil, ErrNotBuilt
	}
	d, err := f.plan.Jac(i)
	if err != nil {
		return nil, err
	}
	f.advise(d)
	return d.Outputs, nil
}

// ForwardDifferentiate returns, for every output, the derivative along the
// given input seeds. Seed i is a numel(input i) x ncol expression; all seeds
// need the same ncol.
func (f *Function) ForwardDifferentiate(fseed []kexpr.MX) ([]kexpr.MX, error) {
	if f.plan == nil {
		return nil, ErrNotBuilt
	}
	d, err := f.plan.ForwardDerivative(fseed)
	if err != nil {
		return nil, err
	}
	f.advise(d)
	return d.Outputs, nil
}

func (f *Function) advise(d *execution.Derivative) {
	for _, w := range multierr.Errors(d.Warnings) {
		f.log.Info("derivative uses an experimental rule", "function", f.name, "warning", w.Error())
		if f.advisory != nil {
			f.advisory(w)
		}
	}
}
