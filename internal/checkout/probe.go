package checkout

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	checkoutsession "github.com/stripe/stripe-go/v76/checkout/session"
)

// ProviderStatus is the payment provider's view of a checkout session.
type ProviderStatus struct {
	Status        string // open, complete or expired
	PaymentStatus string // paid, unpaid or no_payment_required
}

// Declined reports whether the session can no longer be paid.
func (s ProviderStatus) Declined() bool {
	return s.Status == string(stripe.CheckoutSessionStatusExpired)
}

// Paid reports whether the provider captured the payment.
func (s ProviderStatus) Paid() bool {
	return s.PaymentStatus == string(stripe.CheckoutSessionPaymentStatusPaid) ||
		s.PaymentStatus == string(stripe.CheckoutSessionPaymentStatusNoPaymentRequired)
}

// Probe asks the payment provider directly about a session.  It is used
// only to tell a declined payment from one the backend has not seen yet.
type Probe interface {
	SessionStatus(ctx context.Context, sessionID string) (ProviderStatus, error)
}

// StripeProbe reads checkout sessions from the Stripe API.
type StripeProbe struct {
	client checkoutsession.Client
}

// NewStripeProbe returns a probe using secretKey.  A nil backend selects
// the default Stripe API backend.
func NewStripeProbe(secretKey string, backend stripe.Backend) *StripeProbe {
	if backend == nil {
		backend = stripe.GetBackend(stripe.APIBackend)
	}
	return &StripeProbe{client: checkoutsession.Client{B: backend, Key: secretKey}}
}

func (p *StripeProbe) SessionStatus(ctx context.Context, sessionID string) (ProviderStatus, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	cs, err := p.client.Get(sessionID, params)
	if err != nil {
		return ProviderStatus{}, fmt.Errorf("stripe checkout session %s: %w", sessionID, err)
	}
	return ProviderStatus{Status: string(cs.Status), PaymentStatus: string(cs.PaymentStatus)}, nil
}
