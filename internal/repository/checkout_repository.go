package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/filmpass/internal/model"
)

// CheckoutSchema creates the checkout ledger table.
const CheckoutSchema = `CREATE TABLE IF NOT EXISTS checkout_sessions (
  session_id      VARCHAR(255) NOT NULL PRIMARY KEY,
  browser_session VARCHAR(64)  NOT NULL DEFAULT '',
  idempotency_key VARCHAR(64)  NOT NULL DEFAULT '',
  showtime_id     BIGINT       NOT NULL DEFAULT 0,
  seat_labels     VARCHAR(1024) NOT NULL DEFAULT '',
  email           VARCHAR(255) NOT NULL DEFAULT '',
  amount_cents    BIGINT       NOT NULL DEFAULT 0,
  status          VARCHAR(16)  NOT NULL DEFAULT 'PENDING',
  booking_id      VARCHAR(64)  NULL,
  created_at      DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updated_at      DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP,
  KEY idx_checkout_browser (browser_session)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

const checkoutColumns = "session_id, browser_session, idempotency_key, showtime_id, seat_labels, email, amount_cents, status, booking_id, created_at, updated_at"

// CheckoutRepo is the MySQL checkout ledger.
type CheckoutRepo struct{ DB *sqlx.DB }

// NewCheckoutRepo returns a CheckoutRepo on db.
func NewCheckoutRepo(db *sqlx.DB) *CheckoutRepo { return &CheckoutRepo{DB: db} }

// EnsureSchema creates the table when missing.
func (r *CheckoutRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.DB.ExecContext(ctx, CheckoutSchema); err != nil {
		return fmt.Errorf("create checkout_sessions: %w", err)
	}
	return nil
}

// Record inserts a PENDING row; an existing row for the same session wins.
func (r *CheckoutRepo) Record(ctx context.Context, cs model.CheckoutSession) error {
	if cs.Status == "" {
		cs.Status = model.CheckoutPending
	}
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO checkout_sessions (session_id, browser_session, idempotency_key, showtime_id, seat_labels, email, amount_cents, status) VALUES (?,?,?,?,?,?,?,?) ON DUPLICATE KEY UPDATE session_id=session_id",
		cs.SessionID, cs.BrowserSession, cs.IdempotencyKey, cs.ShowtimeID, cs.SeatLabels, cs.Email, cs.AmountCents, cs.Status)
	return err
}

// Get returns nil, nil when the session is unknown.
func (r *CheckoutRepo) Get(ctx context.Context, sessionID string) (*model.CheckoutSession, error) {
	var cs model.CheckoutSession
	err := r.DB.GetContext(ctx, &cs,
		"SELECT "+checkoutColumns+" FROM checkout_sessions WHERE session_id=? LIMIT 1", sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cs, nil
}

// MarkVerified confirms the session.  The boolean is true only for the call
// that moved the row to CONFIRMED (or created it confirmed).
func (r *CheckoutRepo) MarkVerified(ctx context.Context, sessionID, bookingID string) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE checkout_sessions SET status='CONFIRMED', booking_id=?, updated_at=NOW() WHERE session_id=? AND status<>'CONFIRMED'",
		bookingID, sessionID)
	if err != nil {
		return false, err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return true, nil
	}
	// already confirmed, or opened by another instance without a ledger row
	res, err = r.DB.ExecContext(ctx,
		"INSERT IGNORE INTO checkout_sessions (session_id, status, booking_id) VALUES (?, 'CONFIRMED', ?)",
		sessionID, bookingID)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// MarkClosed moves a PENDING row to status.  Confirmed rows are left alone.
func (r *CheckoutRepo) MarkClosed(ctx context.Context, sessionID, status string) error {
	if status != model.CheckoutCancelled && status != model.CheckoutDeclined {
		return fmt.Errorf("%w: cannot close checkout as %q", ErrConflict, status)
	}
	_, err := r.DB.ExecContext(ctx,
		"UPDATE checkout_sessions SET status=?, updated_at=NOW() WHERE session_id=? AND status='PENDING'",
		status, sessionID)
	return err
}
