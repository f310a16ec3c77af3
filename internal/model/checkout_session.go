package model

import (
	"database/sql"
	"time"
)

// Checkout session statuses.
const (
	CheckoutPending   = "PENDING"
	CheckoutConfirmed = "CONFIRMED"
	CheckoutCancelled = "CANCELLED"
	CheckoutDeclined  = "DECLINED"
)

// CheckoutSession is one row of the checkout ledger.  A row is written when
// a payment session is opened and updated once the browser returns from
// the provider.
type CheckoutSession struct {
	SessionID      string         `db:"session_id"`       // provider session id, also in the return URL
	BrowserSession string         `db:"browser_session"`  // fp_session cookie value, may be empty
	IdempotencyKey string         `db:"idempotency_key"`  // key sent with the create call
	ShowtimeID     int64          `db:"showtime_id"`      // showtime being paid for
	SeatLabels     string         `db:"seat_labels"`      // comma separated, e.g. "A1,A2"
	Email          string         `db:"email"`            // contact email of the buyer
	AmountCents    int64          `db:"amount_cents"`     // amount sent to the provider
	Status         string         `db:"status"`           // PENDING, CONFIRMED, CANCELLED or DECLINED
	BookingID      sql.NullString `db:"booking_id"`       // set on confirmation
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}
