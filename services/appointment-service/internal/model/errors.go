package model

import "errors"

// Error kinds surfaced by the scheduling engine. Callers match with errors.Is.
var (
	ErrSlotUnavailable           = errors.New("slot unavailable")
	ErrNotFound                  = errors.New("not found")
	ErrModificationWindowExpired = errors.New("modification window expired")
	ErrPersistenceFailure        = errors.New("persistence failure")
	ErrValidation                = errors.New("validation failure")
	ErrInvalidTransition         = errors.New("invalid status transition")
)
