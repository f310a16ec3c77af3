package booking

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrAuth is returned when the account policy requires a signed-in user.
	ErrAuth = errors.New("sign in required")
	// ErrInvalidState is returned for operations the current state does not allow.
	ErrInvalidState = errors.New("operation not allowed in current state")
	// ErrUnknownSeat is returned when a seat id is not in the current seat map.
	ErrUnknownSeat = errors.New("unknown seat")
	// ErrSeatBooked is returned when toggling a seat that is already booked.
	ErrSeatBooked = errors.New("seat already booked")
	// ErrSuperseded reports that a newer showtime choice or submission made
	// this result stale.  The machine state was left untouched.
	ErrSuperseded = errors.New("superseded by a newer request")
	// ErrBookingFailed is returned when the backend answered but reported
	// the booking as FAILED.
	ErrBookingFailed = errors.New("booking was not completed")
)

// ValidationError is a local, pre-submission failure.  It never reaches
// the network.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }
