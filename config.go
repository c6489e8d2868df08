package kfunc

import (
	"github.com/go-logr/logr"
)

// Option is a function that configures a Function
type Option func(*Function)

// AdvisoryHandler receives advisory errors, such as ErrExperimentalDerivative,
// that do not fail the operation that produced them.
type AdvisoryHandler func(err error)

// WithName sets the name used in logs and printouts
var WithName = func(name string) Option {
	return func(f *Function) {
		f.name = name
	}
}

// WithLogr sets the logger
var WithLogr = func(log logr.Logger) Option {
	return func(f *Function) {
		f.log = log
	}
}

// WithForwardDirections sets the number of forward (tangent) directions the
// plan allocates buffers for
var WithForwardDirections = func(n int) Option {
	return func(f *Function) {
		f.nfdir = n
	}
}

// WithAdjointDirections sets the number of adjoint directions the plan
// allocates buffers for
var WithAdjointDirections = func(n int) Option {
	return func(f *Function) {
		f.nadir = n
	}
}

// WithMaxNodes limits the number of nodes a plan may hold
var WithMaxNodes = func(n int) Option {
	return func(f *Function) {
		f.maxNodes = n
	}
}

// WithAdvisoryHandler sets a callback for advisory errors. Advisories are
// always logged as well.
var WithAdvisoryHandler = func(h AdvisoryHandler) Option {
	return func(f *Function) {
		f.advisory = h
	}
}
