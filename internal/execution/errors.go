package execution

import (
	"errors"
	"fmt"
)

var (
	ErrNullInput        = errors.New("input is null")
	ErrNonSymbolicInput = errors.New("input is not symbolic")
	ErrDuplicateInput   = errors.New("input declared more than once")
	ErrNullOutput       = errors.New("output is null")

	ErrTooManyDirections = errors.New("more directions requested than configured")
	ErrBufferMismatch    = errors.New("buffer does not match plan")

	ErrSeedCount   = errors.New("seed count does not match input count")
	ErrSeedShape   = errors.New("seed rows do not match input size")
	ErrSeedColumns = errors.New("seed column counts differ")
	ErrInputIndex  = errors.New("input index out of range")

	// ErrInvariantViolation reports a broken internal assumption. It is never
	// recoverable by retrying.
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrExperimentalDerivative is advisory: the derivative was produced but
	// uses a rule that is not fully validated.
	ErrExperimentalDerivative = errors.New("experimental derivative rule used")
)

// Role names which declared list a ConstructionError refers to.
type Role string

const (
	RoleInput  Role = "input"
	RoleOutput Role = "output"
)

// ConstructionError reports an invalid declared input or output.
type ConstructionError struct {
	// Role is RoleInput or RoleOutput
	Role Role
	// Position is the index within the declared list
	Position int
	// Err is one of the construction sentinels
	Err error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("%s #%d: %v", e.Role, e.Position, e.Err)
}

func (e *ConstructionError) Unwrap() error {
	return e.Err
}
