package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/iliyamo/filmpass/internal/money"
	"github.com/iliyamo/filmpass/internal/session"
)

// CheckoutPayload is the body of POST /create-checkout-session.  Amount
// is always sent in minor units.
type CheckoutPayload struct {
	ShowtimeID     int64   `json:"showtimeId"`
	Seats          []int64 `json:"seats"`
	TicketType     string  `json:"ticketType,omitempty"`
	UserEmail      string  `json:"userEmail"`
	UserName       string  `json:"userName,omitempty"`
	Amount         int64   `json:"amount"`
	SuccessURL     string  `json:"successUrl,omitempty"`
	CancelURL      string  `json:"cancelUrl,omitempty"`
	IdempotencyKey string  `json:"-"`
}

// CheckoutSession is what the backend returns for a new payment session.
type CheckoutSession struct {
	ClientSecret   string
	PublishableKey string
	SessionID      string
}

// CreateCheckoutSession asks the backend to open a payment session.
func (c *Client) CreateCheckoutSession(ctx context.Context, id *session.Identity, p CheckoutPayload) (CheckoutSession, error) {
	const op = "create checkout session"
	body, _, err := c.do(ctx, call{
		op:       op,
		method:   http.MethodPost,
		path:     "/create-checkout-session",
		identity: id,
		body:     p,
		idemKey:  p.IdempotencyKey,
	})
	if err != nil {
		return CheckoutSession{}, err
	}
	var raw struct {
		ClientSecret   string `json:"clientSecret"`
		PublishableKey string `json:"publishableKey"`
		SessionID      string `json:"sessionId"`
		SessionIDAlt   string `json:"session_id"`
		ID             string `json:"id"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return CheckoutSession{}, malformed(op, "checkout session response: %v", err)
	}
	if raw.ClientSecret == "" {
		return CheckoutSession{}, malformed(op, "invalid response from payment server")
	}
	sid := firstNonEmpty(raw.SessionID, raw.SessionIDAlt, raw.ID)
	if sid == "" {
		return CheckoutSession{}, malformed(op, "payment session has no id")
	}
	return CheckoutSession{ClientSecret: raw.ClientSecret, PublishableKey: raw.PublishableKey, SessionID: sid}, nil
}

// Verification is the backend's view of a payment session after the
// redirect back from the provider.
type Verification struct {
	BookingID   string
	MovieTitle  string
	Showtime    string
	TheaterName string
	Seats       int
	SeatLabels  []string
	Total       money.Amount
	Status      string
	Pending     bool
	Declined    bool
}

// VerifyPayment looks up the booking created for a payment session.  A
// 202 response or a pending status sets Verification.Pending; a failed,
// cancelled or expired payment sets Verification.Declined.
func (c *Client) VerifyPayment(ctx context.Context, sessionID string) (Verification, error) {
	const op = "verify payment"
	body, status, err := c.do(ctx, call{
		op:     op,
		method: http.MethodGet,
		path:   "/verify-payment?session_id=" + url.QueryEscape(sessionID),
	})
	if err != nil {
		return Verification{}, err
	}
	var raw struct {
		BookingID    json.RawMessage `json:"bookingId"`
		BookingIDAlt json.RawMessage `json:"booking_id"`
		MovieTitle   string          `json:"movieTitle"`
		Showtime     string          `json:"showtime"`
		TheaterName  string          `json:"theaterName"`
		Seats        json.RawMessage `json:"seats"`
		Total        money.Raw       `json:"total"`
		Status       string          `json:"status"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return Verification{}, malformed(op, "verification response: %v", err)
	}
	v := Verification{
		BookingID:   firstID(raw.BookingID, raw.BookingIDAlt),
		MovieTitle:  raw.MovieTitle,
		Showtime:    raw.Showtime,
		TheaterName: raw.TheaterName,
		Status:      strings.ToUpper(strings.TrimSpace(raw.Status)),
	}
	v.Seats, v.SeatLabels = parseSeatSummary(raw.Seats)
	if !raw.Total.IsZero() {
		t, err := raw.Total.Amount()
		if err != nil {
			return Verification{}, malformed(op, "verification total: %v", err)
		}
		v.Total = t
	}
	switch v.Status {
	case "PENDING", "PROCESSING", "OPEN", "UNPAID":
		v.Pending = true
	}
	if status == http.StatusAccepted {
		v.Pending = true
	}
	v.Declined = !v.Pending && isDeclined(v.Status)
	if !v.Pending && !v.Declined && v.BookingID == "" {
		return Verification{}, malformed(op, "verification response has no booking id")
	}
	return v, nil
}

func isDeclined(status string) bool {
	switch status {
	case "FAILED", "DECLINED", "CANCELED", "CANCELLED", "EXPIRED":
		return true
	}
	return false
}

// parseSeatSummary accepts a seat count, a numeric string or a list of
// seat labels.
func parseSeatSummary(raw json.RawMessage) (int, []string) {
	if len(raw) == 0 {
		return 0, nil
	}
	var labels []string
	if err := json.Unmarshal(raw, &labels); err == nil {
		return len(labels), labels
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if i, err := n.Int64(); err == nil {
			return int(i), nil
		}
	}
	var ids []json.Number
	if err := json.Unmarshal(raw, &ids); err == nil {
		return len(ids), nil
	}
	return 0, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
