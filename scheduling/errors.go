package scheduling

import (
	"errors"
	"fmt"
)

// Sentinel errors for the booking engine. Handlers translate these to HTTP
// statuses with errors.Is; everything else is treated as a server error.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrSlotUnavailable   = errors.New("slot unavailable")
	ErrSlotFull          = errors.New("slot full")
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrTimePassed marks input rejected because the named moment already
	// elapsed on the office clock. It wraps ErrInvalidInput so the HTTP
	// mapping stays 400.
	ErrTimePassed = fmt.Errorf("%w: time has passed", ErrInvalidInput)
)
