package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers
// return these (optionally wrapped) so services can translate them into coded
// domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrConflict: write lost a race (e.g., candidate version CAS failed)
// - ErrInvalidState: entity in wrong state for requested operation
// - ErrAlreadyApplied: idempotency key already consumed
// - ErrUnavailable: storage or broker temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors.
var (
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrInvalidState   = errors.New("invalid state")
	ErrAlreadyApplied = errors.New("already applied")
	ErrUnavailable    = errors.New("unavailable")
)
