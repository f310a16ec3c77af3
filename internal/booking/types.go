// Package booking holds the seat selection state machine: one Machine per
// browser session drives a showtime from seat map load through submission,
// discarding stale results and reconciling the selection after failures.
package booking

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/iliyamo/filmpass/internal/money"
	"github.com/iliyamo/filmpass/internal/seatmap"
	"github.com/iliyamo/filmpass/internal/session"
)

// State is the phase of a Machine.
type State int

const (
	Idle State = iota
	LoadingSeats
	Selecting
	Submitting
	Confirmed
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case LoadingSeats:
		return "LOADING_SEATS"
	case Selecting:
		return "SELECTING"
	case Submitting:
		return "SUBMITTING"
	case Confirmed:
		return "CONFIRMED"
	case Failed:
		return "FAILED"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// TicketType applies uniformly to every seat of a selection.
type TicketType string

const (
	Adult TicketType = "ADULT"
	Child TicketType = "CHILD"
)

// ParseTicketType accepts any casing of ADULT or CHILD.
func ParseTicketType(s string) (TicketType, error) {
	switch t := TicketType(strings.ToUpper(strings.TrimSpace(s))); t {
	case Adult, Child:
		return t, nil
	}
	return "", &ValidationError{Field: "ticket_type", Reason: fmt.Sprintf("unknown ticket type %q", s)}
}

// Mode picks the submission route.
type Mode int

const (
	// Direct books through POST /bookings.
	Direct Mode = iota
	// Payment opens a hosted payment session first.
	Payment
)

func (m Mode) String() string {
	if m == Payment {
		return "payment"
	}
	return "direct"
}

// Contact is the guest contact block.  Signed-in users default to their
// profile values.
type Contact struct {
	Name  string `json:"name" validate:"max=120"`
	Email string `json:"email" validate:"required,email"`
}

// Submission is the input of Machine.Submit.
type Submission struct {
	Contact Contact
	Mode    Mode
}

// Request is what a Submitter receives once local validation passed.
type Request struct {
	ShowtimeID     int64
	Seats          []seatmap.Seat
	TicketType     TicketType
	Contact        Contact
	Identity       *session.Identity
	UnitPrice      money.Amount
	IdempotencyKey string
	// BrowserSession is the session the machine belongs to, if known.
	BrowserSession string
}

// SeatIDs returns the ids of the requested seats in seat map order.
func (r Request) SeatIDs() []int64 {
	ids := make([]int64, len(r.Seats))
	for i, s := range r.Seats {
		ids[i] = s.ID
	}
	return ids
}

// Labels returns "A1" style labels of the requested seats.
func (r Request) Labels() []string {
	out := make([]string, len(r.Seats))
	for i, s := range r.Seats {
		out[i] = s.Label()
	}
	return out
}

// Total is the advisory price of the request.  The backend total wins.
func (r Request) Total() money.Amount { return r.UnitPrice.Times(len(r.Seats)) }

// Status of a successful submission.
type Status string

const (
	StatusConfirmed      Status = "CONFIRMED"
	StatusPendingPayment Status = "PENDING_PAYMENT"
	// StatusFailed never appears in a Result; Submitters turn it into
	// ErrBookingFailed.
	StatusFailed Status = "FAILED"
)

// PaymentHandoff is what the browser needs to continue at the payment
// provider.  ReturnURL already carries the session id.
type PaymentHandoff struct {
	SessionID      string `json:"session_id"`
	ClientSecret   string `json:"client_secret"`
	PublishableKey string `json:"publishable_key,omitempty"`
	ReturnURL      string `json:"return_url"`
}

// Result is the outcome of a successful submission.  Total is the
// backend's total; zero means the backend did not report one.
type Result struct {
	BookingID string          `json:"booking_id,omitempty"`
	Status    Status          `json:"status"`
	Total     money.Amount    `json:"-"`
	Seats     []string        `json:"seats"`
	Payment   *PaymentHandoff `json:"payment,omitempty"`
}

// Submitter sends a validated request to the backend.
type Submitter interface {
	Submit(ctx context.Context, req Request) (Result, error)
}

// SubmitterFunc adapts a function to Submitter.
type SubmitterFunc func(ctx context.Context, req Request) (Result, error)

func (f SubmitterFunc) Submit(ctx context.Context, req Request) (Result, error) { return f(ctx, req) }

// Submitters are the two submission routes.  Payment may be nil when no
// payment provider is configured.
type Submitters struct {
	Direct  Submitter
	Payment Submitter
}

// sortedIDs returns the keys of set in ascending order.
func sortedIDs(set map[int64]struct{}) []int64 {
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
