package common

import "errors"

// Sentinel errors shared across layers. Wrap with fmt.Errorf("...: %w", err)
// and match with errors.Is.
var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrExternalUnavailable = errors.New("external service unavailable")
	ErrCredentialMissing   = errors.New("credential missing")
	ErrUnauthorized        = errors.New("unauthorized")
)
