package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: record does not exist at the derived address
// - ErrConflict: a record already occupies the derived address
// - ErrInsufficientBalance: a debit would take a balance below zero
// - ErrInvalidState: record in wrong state for the requested operation
// - ErrUnavailable: backing service temporarily unavailable
//
// For validation errors (bad input, length bounds), use pkg/domain-errors.
var (
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidState        = errors.New("invalid state")
	ErrUnavailable         = errors.New("unavailable")
)
