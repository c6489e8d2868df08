package khcl

import "errors"

var (
	ErrSyntax           = errors.New("khcl: invalid definition file")
	ErrDuplicateName    = errors.New("khcl: duplicate name")
	ErrUnknownReference = errors.New("khcl: unknown reference")
	ErrUnknownFunction  = errors.New("khcl: unknown function")
	ErrUnsupported      = errors.New("khcl: unsupported expression")
	ErrArity            = errors.New("khcl: wrong number of arguments")
	ErrInvalidValue     = errors.New("khcl: invalid value")
	ErrNoValue          = errors.New("khcl: no value")
	ErrCycle            = errors.New("khcl: let definitions form a cycle")
)
