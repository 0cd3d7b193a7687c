package domain

import "errors"

// Error categories matched with errors.Is at the transport boundary.
// Anything that wraps none of them is treated as unexpected.
var (
	ErrValidation     = errors.New("validation failed")
	ErrAuthentication = errors.New("invalid credentials")
	ErrAuthorization  = errors.New("unauthorized")
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("already exists")
	ErrConfiguration  = errors.New("invalid configuration")
)
