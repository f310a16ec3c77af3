package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/iliyamo/filmpass/internal/money"
	"github.com/iliyamo/filmpass/internal/session"
)

// BookingPayload is the body of POST /bookings.  Either SeatIDs or, for
// the legacy count-only flow, SeatCount is sent as "seats".
type BookingPayload struct {
	ShowtimeID     int64
	SeatIDs        []int64
	SeatCount      int
	TicketType     string
	UserEmail      string
	UserName       string
	IdempotencyKey string
}

func (p BookingPayload) MarshalJSON() ([]byte, error) {
	out := struct {
		ShowtimeID int64  `json:"showtimeId"`
		Seats      any    `json:"seats"`
		TicketType string `json:"ticketType,omitempty"`
		UserEmail  string `json:"userEmail,omitempty"`
		UserName   string `json:"userName,omitempty"`
	}{
		ShowtimeID: p.ShowtimeID,
		Seats:      p.SeatCount,
		TicketType: p.TicketType,
		UserEmail:  p.UserEmail,
		UserName:   p.UserName,
	}
	if len(p.SeatIDs) > 0 {
		out.Seats = p.SeatIDs
	}
	return json.Marshal(out)
}

// BookingReceipt is the canonical response of POST /bookings.  Status is
// CONFIRMED, PENDING_PAYMENT or FAILED; Total is zero when the backend sent
// none.
type BookingReceipt struct {
	BookingID string
	Total     money.Amount
	Status    string
}

// CreateBooking books seats directly, without an external payment step.
func (c *Client) CreateBooking(ctx context.Context, id *session.Identity, p BookingPayload) (BookingReceipt, error) {
	const op = "create booking"
	body, _, err := c.do(ctx, call{
		op:       op,
		method:   http.MethodPost,
		path:     "/bookings",
		identity: id,
		body:     p,
		idemKey:  p.IdempotencyKey,
	})
	if err != nil {
		return BookingReceipt{}, err
	}
	return parseBookingReceipt(op, body)
}

func parseBookingReceipt(op string, body []byte) (BookingReceipt, error) {
	var raw struct {
		BookingID    json.RawMessage `json:"bookingId"`
		BookingIDAlt json.RawMessage `json:"booking_id"`
		ID           json.RawMessage `json:"id"`
		Total        money.Raw       `json:"total"`
		TotalAmount  money.Raw       `json:"total_amount"`
		Status       string          `json:"status"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return BookingReceipt{}, malformed(op, "booking response: %v", err)
	}
	bid := firstID(raw.BookingID, raw.BookingIDAlt, raw.ID)
	if bid == "" {
		return BookingReceipt{}, malformed(op, "booking response has no booking id")
	}
	totalRaw := raw.Total
	if totalRaw.IsZero() {
		totalRaw = raw.TotalAmount
	}
	var total money.Amount
	if !totalRaw.IsZero() {
		t, err := totalRaw.Amount()
		if err != nil {
			return BookingReceipt{}, malformed(op, "booking total: %v", err)
		}
		total = t
	}
	status := strings.ToUpper(strings.TrimSpace(raw.Status))
	switch status {
	case "":
		status = "CONFIRMED"
	case "CONFIRMED", "PENDING_PAYMENT", "FAILED":
	default:
		return BookingReceipt{}, malformed(op, "booking status %q", raw.Status)
	}
	return BookingReceipt{BookingID: bid, Total: total, Status: status}, nil
}

// firstID returns the first non-empty id, accepting JSON numbers or strings.
func firstID(candidates ...json.RawMessage) string {
	for _, c := range candidates {
		if len(c) == 0 || string(c) == "null" {
			continue
		}
		var s string
		if err := json.Unmarshal(c, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
			continue
		}
		var n json.Number
		if err := json.Unmarshal(c, &n); err == nil && n.String() != "" {
			return n.String()
		}
	}
	return ""
}
