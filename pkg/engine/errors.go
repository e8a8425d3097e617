package engine

import "errors"

var (
	// ErrInvalidPolicy indicates a policy that cannot be applied to the
	// compiled rule base.
	ErrInvalidPolicy = errors.New("invalid policy")

	// ErrNilCompiled indicates a missing compiled rule base.
	ErrNilCompiled = errors.New("compiled rule base is nil")
)
