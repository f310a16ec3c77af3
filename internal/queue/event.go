// Package queue defines message payloads exchanged over the message broker.
package queue

// BookingConfirmedQueue is the durable queue carrying BookingConfirmedEvent.
const BookingConfirmedQueue = "booking.confirmed"

// BookingConfirmedEvent is published once per booking when the backend
// confirms it, either directly or after a verified payment.  It carries
// enough for downstream consumers to log or notify without calling the
// backend again.
type BookingConfirmedEvent struct {
	BookingID        string   `json:"booking_id"`
	PaymentSession   string   `json:"payment_session,omitempty"` // empty for direct bookings
	ShowtimeID       int64    `json:"showtime_id"`
	MovieTitle       string   `json:"movie_title,omitempty"`
	TheaterName      string   `json:"theater_name,omitempty"`
	Showtime         string   `json:"showtime,omitempty"`
	Email            string   `json:"email,omitempty"`
	SeatLabels       []string `json:"seats"`
	TotalAmountCents int64    `json:"total_amount_cents,omitempty"` // zero when the backend reported no total
	ConfirmedAt      string   `json:"confirmed_at"`
}
