package checkout

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/iliyamo/filmpass/internal/model"
)

// Ledger persists checkout sessions between the redirect to the payment
// provider and the return to the application.
type Ledger interface {
	// Record stores a new PENDING session.  Recording the same session id
	// twice keeps the first row.
	Record(ctx context.Context, cs model.CheckoutSession) error
	// Get returns nil, nil for unknown sessions.
	Get(ctx context.Context, sessionID string) (*model.CheckoutSession, error)
	// MarkVerified stores the booking id and reports whether this call
	// performed the transition to CONFIRMED.
	MarkVerified(ctx context.Context, sessionID, bookingID string) (bool, error)
	// MarkClosed moves a PENDING session to status (CANCELLED or DECLINED).
	MarkClosed(ctx context.Context, sessionID, status string) error
}

// MemoryLedger is an in-process Ledger used when MySQL is not configured.
type MemoryLedger struct {
	mu   sync.Mutex
	rows map[string]model.CheckoutSession
	now  func() time.Time
}

// NewMemoryLedger returns an empty MemoryLedger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{rows: map[string]model.CheckoutSession{}, now: time.Now}
}

func (l *MemoryLedger) Record(_ context.Context, cs model.CheckoutSession) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.rows[cs.SessionID]; ok {
		return nil
	}
	now := l.now().UTC()
	if cs.Status == "" {
		cs.Status = model.CheckoutPending
	}
	cs.CreatedAt, cs.UpdatedAt = now, now
	l.rows[cs.SessionID] = cs
	return nil
}

func (l *MemoryLedger) Get(_ context.Context, sessionID string) (*model.CheckoutSession, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cs, ok := l.rows[sessionID]
	if !ok {
		return nil, nil
	}
	return &cs, nil
}

// MarkVerified creates the row when the session was opened by another
// instance, so a confirmation is never lost.
func (l *MemoryLedger) MarkVerified(_ context.Context, sessionID, bookingID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now().UTC()
	cs, ok := l.rows[sessionID]
	if !ok {
		cs = model.CheckoutSession{SessionID: sessionID, CreatedAt: now}
	}
	if cs.Status == model.CheckoutConfirmed {
		return false, nil
	}
	cs.Status = model.CheckoutConfirmed
	cs.BookingID = sql.NullString{String: bookingID, Valid: bookingID != ""}
	cs.UpdatedAt = now
	l.rows[sessionID] = cs
	return true, nil
}

func (l *MemoryLedger) MarkClosed(_ context.Context, sessionID, status string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	cs, ok := l.rows[sessionID]
	if !ok || cs.Status != model.CheckoutPending {
		return nil
	}
	cs.Status = status
	cs.UpdatedAt = l.now().UTC()
	l.rows[sessionID] = cs
	return nil
}
