package domain

import "errors"

// Sentinel errors shared across services and handlers. Repositories wrap
// storage errors with %w so callers can test with errors.Is.
var (
	ErrNotFound           = errors.New("not found")
	ErrDuplicate          = errors.New("already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotAMember         = errors.New("not a member of tenant")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrValidation         = errors.New("validation failed")
)
