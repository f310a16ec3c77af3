package checkout

import "errors"

var (
	// ErrPaymentInit wraps every failure to open a payment session.  The
	// underlying API client error is wrapped too, so a seat conflict still
	// matches apiclient.ErrSeatUnavailable.
	ErrPaymentInit = errors.New("could not start payment")
	// ErrPaymentDeclined means the provider reports the payment as failed,
	// cancelled or expired.
	ErrPaymentDeclined = errors.New("payment was declined")
	// ErrVerification is matched by every *VerificationError.
	ErrVerification = errors.New("could not confirm payment")
)

// VerificationError means the booking could not be confirmed.  Pending is
// set when the provider or backend is still processing and the caller
// should try again later; it is never a declined payment.
type VerificationError struct {
	SessionID string
	Pending   bool
	Err       error
}

func (e *VerificationError) Error() string {
	if e.Pending {
		return "payment is still being processed"
	}
	if e.Err != nil {
		return "could not confirm payment: " + e.Err.Error()
	}
	return "could not confirm payment"
}

func (e *VerificationError) Unwrap() error { return e.Err }

func (e *VerificationError) Is(target error) bool { return target == ErrVerification }
