package kfunc

import (
	"errors"

	"github.com/birdayz/kfunc/internal/execution"
	"github.com/birdayz/kfunc/kdag"
)

var (
	// ErrNotBuilt is returned when a Function is used before Build, or after
	// Configure changed its options.
	ErrNotBuilt = errors.New("kfunc: function not built")
	// ErrNoOutputs is returned by Jac for a Function without outputs.
	ErrNoOutputs = errors.New("kfunc: function has no outputs")
)

// Construction errors, see ConstructionError
var (
	ErrNullInput        = execution.ErrNullInput
	ErrNonSymbolicInput = execution.ErrNonSymbolicInput
	ErrDuplicateInput   = execution.ErrDuplicateInput
	ErrNullOutput       = execution.ErrNullOutput
)

// Evaluation and differentiation errors
var (
	ErrTooManyDirections      = execution.ErrTooManyDirections
	ErrBufferMismatch         = execution.ErrBufferMismatch
	ErrSeedCount              = execution.ErrSeedCount
	ErrSeedShape              = execution.ErrSeedShape
	ErrSeedColumns            = execution.ErrSeedColumns
	ErrInputIndex             = execution.ErrInputIndex
	ErrInvariantViolation     = execution.ErrInvariantViolation
	ErrExperimentalDerivative = execution.ErrExperimentalDerivative
)

// Graph errors
var (
	ErrCycleDetected   = kdag.ErrCycleDetected
	ErrInvalidTopology = kdag.ErrInvalidTopology
)

// ConstructionError reports an invalid declared input or output
type ConstructionError = execution.ConstructionError

// Role names which declared list a ConstructionError refers to
type Role = execution.Role

const (
	RoleInput  = execution.RoleInput
	RoleOutput = execution.RoleOutput
)
