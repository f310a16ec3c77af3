// Package checkout bridges the selection flow to the hosted payment
// provider.  Payment is a two-phase protocol: Initiate opens a session and
// records it before the browser leaves, Verify correlates the return by
// session id alone.  Nothing in memory is assumed to survive the redirect.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/filmpass/internal/apiclient"
	"github.com/iliyamo/filmpass/internal/booking"
	"github.com/iliyamo/filmpass/internal/model"
	"github.com/iliyamo/filmpass/internal/money"
	"github.com/iliyamo/filmpass/internal/queue"
	"github.com/iliyamo/filmpass/internal/session"
)

// sessionPlaceholder is replaced by the provider with the real session id
// when it redirects back.
const sessionPlaceholder = "{CHECKOUT_SESSION_ID}"

const publishTimeout = 5 * time.Second

// API is the slice of the API client the bridge needs.
type API interface {
	CreateCheckoutSession(ctx context.Context, id *session.Identity, p apiclient.CheckoutPayload) (apiclient.CheckoutSession, error)
	VerifyPayment(ctx context.Context, sessionID string) (apiclient.Verification, error)
}

// Publisher announces confirmed bookings.
type Publisher interface {
	PublishBookingConfirmed(ctx context.Context, ev queue.BookingConfirmedEvent) error
}

// Confirmation is a verified booking, ready for display.
type Confirmation struct {
	SessionID   string       `json:"session_id"`
	BookingID   string       `json:"booking_id"`
	MovieTitle  string       `json:"movie_title,omitempty"`
	Showtime    string       `json:"showtime,omitempty"`
	TheaterName string       `json:"theater_name,omitempty"`
	Seats       int          `json:"seats"`
	SeatLabels  []string     `json:"seat_labels,omitempty"`
	Total       money.Amount `json:"-"`
	Status      string       `json:"status"`
}

// Cancellation is what the cancel return page shows.  It is an outcome,
// not an error.
type Cancellation struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
}

// Bridge implements booking.Submitter for the payment route.
type Bridge struct {
	api       API
	ledger    Ledger
	publicURL string
	probe     Probe
	pub       Publisher
	log       *zap.Logger
	now       func() time.Time
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithProbe enables asking the provider about sessions the backend still
// reports as pending.
func WithProbe(p Probe) Option { return func(b *Bridge) { b.probe = p } }

// WithPublisher enables booking.confirmed events.
func WithPublisher(p Publisher) Option { return func(b *Bridge) { b.pub = p } }

// WithLogger sets the logger; the default discards everything.
func WithLogger(l *zap.Logger) Option { return func(b *Bridge) { b.log = l } }

// NewBridge returns a Bridge whose return URLs are rooted at publicURL.
func NewBridge(api API, ledger Ledger, publicURL string, opts ...Option) *Bridge {
	b := &Bridge{
		api:       api,
		ledger:    ledger,
		publicURL: strings.TrimRight(publicURL, "/"),
		log:       zap.NewNop(),
		now:       time.Now,
	}
	for _, o := range opts {
		o(b)
	}
	if b.ledger == nil {
		b.ledger = NewMemoryLedger()
	}
	return b
}

func (b *Bridge) returnURL(kind, sessionID string) string {
	return b.publicURL + "/v1/payment/" + kind + "?session_id=" + sessionID
}

// Initiate opens a payment session for req.  The amount is sent in minor
// units.  Failures wrap ErrPaymentInit together with the client error, or
// with a *booking.ValidationError when req cannot be paid for at all.
func (b *Bridge) Initiate(ctx context.Context, req booking.Request) (booking.PaymentHandoff, error) {
	amount := req.Total()
	if amount <= 0 {
		return booking.PaymentHandoff{}, fmt.Errorf("%w: %w", ErrPaymentInit,
			&booking.ValidationError{Field: "payment", Reason: "ticket price is unknown"})
	}
	if req.Contact.Email == "" {
		return booking.PaymentHandoff{}, fmt.Errorf("%w: %w", ErrPaymentInit,
			&booking.ValidationError{Field: "email", Reason: "email is required for card payment"})
	}
	ps, err := b.api.CreateCheckoutSession(ctx, req.Identity, apiclient.CheckoutPayload{
		ShowtimeID:     req.ShowtimeID,
		Seats:          req.SeatIDs(),
		TicketType:     string(req.TicketType),
		UserEmail:      req.Contact.Email,
		UserName:       req.Contact.Name,
		Amount:         amount.Minor(),
		SuccessURL:     b.returnURL("success", sessionPlaceholder),
		CancelURL:      b.returnURL("cancel", sessionPlaceholder),
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		return booking.PaymentHandoff{}, fmt.Errorf("%w: %w", ErrPaymentInit, err)
	}

	rec := model.CheckoutSession{
		SessionID:      ps.SessionID,
		BrowserSession: req.BrowserSession,
		IdempotencyKey: req.IdempotencyKey,
		ShowtimeID:     req.ShowtimeID,
		SeatLabels:     strings.Join(req.Labels(), ","),
		Email:          req.Contact.Email,
		AmountCents:    amount.Minor(),
		Status:         model.CheckoutPending,
	}
	// not fatal: the return URL still carries the session id
	if err := b.ledger.Record(ctx, rec); err != nil {
		b.log.Error("record checkout session", zap.String("session_id", ps.SessionID), zap.Error(err))
	}
	return booking.PaymentHandoff{
		SessionID:      ps.SessionID,
		ClientSecret:   ps.ClientSecret,
		PublishableKey: ps.PublishableKey,
		ReturnURL:      b.returnURL("success", url.QueryEscape(ps.SessionID)),
	}, nil
}

// Submit implements booking.Submitter.  A successful payment submission
// ends in status PENDING_PAYMENT; the booking exists only after Verify.
func (b *Bridge) Submit(ctx context.Context, req booking.Request) (booking.Result, error) {
	h, err := b.Initiate(ctx, req)
	if err != nil {
		return booking.Result{}, err
	}
	return booking.Result{
		Status:  booking.StatusPendingPayment,
		Total:   req.Total(),
		Seats:   req.Labels(),
		Payment: &h,
	}, nil
}

// Verify confirms the booking behind sessionID.  It is safe to call any
// number of times; every call returns the same booking id.
func (b *Bridge) Verify(ctx context.Context, sessionID string) (Confirmation, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return Confirmation{}, &VerificationError{Err: errors.New("missing session id")}
	}

	v, err := b.api.VerifyPayment(ctx, sessionID)
	if err != nil {
		if errors.Is(err, apiclient.ErrNetwork) {
			if c, ok := b.cached(ctx, sessionID); ok {
				return c, nil
			}
		}
		return Confirmation{}, &VerificationError{SessionID: sessionID, Err: err}
	}
	if v.Declined {
		b.close(ctx, sessionID, model.CheckoutDeclined)
		return Confirmation{}, fmt.Errorf("%w: %s", ErrPaymentDeclined, strings.ToLower(v.Status))
	}
	if v.Pending {
		return Confirmation{}, b.pending(ctx, sessionID)
	}

	c := Confirmation{
		SessionID:   sessionID,
		BookingID:   v.BookingID,
		MovieTitle:  v.MovieTitle,
		Showtime:    v.Showtime,
		TheaterName: v.TheaterName,
		Seats:       v.Seats,
		SeatLabels:  v.SeatLabels,
		Total:       v.Total,
		Status:      model.CheckoutConfirmed,
	}
	first, err := b.ledger.MarkVerified(ctx, sessionID, v.BookingID)
	if err != nil {
		b.log.Error("mark checkout verified", zap.String("session_id", sessionID), zap.Error(err))
		return c, nil
	}
	if first {
		b.publish(ctx, c)
	}
	return c, nil
}

// pending asks the provider, when possible, whether a session the backend
// has not confirmed yet can still succeed.
func (b *Bridge) pending(ctx context.Context, sessionID string) error {
	if b.probe != nil {
		st, err := b.probe.SessionStatus(ctx, sessionID)
		switch {
		case err != nil:
			b.log.Warn("provider status probe failed", zap.String("session_id", sessionID), zap.Error(err))
		case st.Declined():
			b.close(ctx, sessionID, model.CheckoutDeclined)
			return fmt.Errorf("%w: session %s", ErrPaymentDeclined, st.Status)
		}
	}
	return &VerificationError{SessionID: sessionID, Pending: true}
}

// cached rebuilds a confirmation from the ledger when the backend cannot
// be reached.
func (b *Bridge) cached(ctx context.Context, sessionID string) (Confirmation, bool) {
	cs, err := b.ledger.Get(ctx, sessionID)
	if err != nil || cs == nil || cs.Status != model.CheckoutConfirmed || !cs.BookingID.Valid {
		return Confirmation{}, false
	}
	var labels []string
	if cs.SeatLabels != "" {
		labels = strings.Split(cs.SeatLabels, ",")
	}
	return Confirmation{
		SessionID:  sessionID,
		BookingID:  cs.BookingID.String,
		Seats:      len(labels),
		SeatLabels: labels,
		Total:      money.FromMinor(cs.AmountCents),
		Status:     model.CheckoutConfirmed,
	}, true
}

// Cancel records that the user abandoned payment for sessionID.
func (b *Bridge) Cancel(ctx context.Context, sessionID string) Cancellation {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID != "" {
		b.close(ctx, sessionID, model.CheckoutCancelled)
	}
	return Cancellation{SessionID: sessionID, Message: "Payment was cancelled. Your seats were not booked."}
}

func (b *Bridge) close(ctx context.Context, sessionID, status string) {
	if err := b.ledger.MarkClosed(ctx, sessionID, status); err != nil {
		b.log.Error("close checkout session", zap.String("session_id", sessionID), zap.String("status", status), zap.Error(err))
	}
}

// publish runs detached from ctx so a browser leaving the success page
// does not drop the event.
func (b *Bridge) publish(ctx context.Context, c Confirmation) {
	if b.pub == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	ev := queue.BookingConfirmedEvent{
		BookingID:        c.BookingID,
		PaymentSession:   c.SessionID,
		MovieTitle:       c.MovieTitle,
		TheaterName:      c.TheaterName,
		Showtime:         c.Showtime,
		SeatLabels:       c.SeatLabels,
		TotalAmountCents: c.Total.Minor(),
		ConfirmedAt:      b.now().UTC().Format(time.RFC3339),
	}
	if cs, err := b.ledger.Get(ctx, c.SessionID); err == nil && cs != nil {
		ev.ShowtimeID = cs.ShowtimeID
		ev.Email = cs.Email
		if len(ev.SeatLabels) == 0 && cs.SeatLabels != "" {
			ev.SeatLabels = strings.Split(cs.SeatLabels, ",")
		}
		if ev.TotalAmountCents == 0 {
			ev.TotalAmountCents = cs.AmountCents
		}
	}
	if err := b.pub.PublishBookingConfirmed(ctx, ev); err != nil {
		b.log.Warn("publish booking confirmed", zap.String("booking_id", c.BookingID), zap.Error(err))
	}
}
