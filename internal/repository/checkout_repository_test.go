package repository_test

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sqlxmock "github.com/zhashkevych/go-sqlxmock"

	"github.com/iliyamo/filmpass/internal/model"
	"github.com/iliyamo/filmpass/internal/repository"
)

var (
	mock sqlxmock.Sqlmock
	dbx  *sqlx.DB
)

func setup(t *testing.T) *repository.CheckoutRepo {
	t.Helper()
	var err error
	dbx, mock, err = sqlxmock.Newx()
	require.NoError(t, err)
	t.Cleanup(func() { _ = dbx.Close() })
	return repository.NewCheckoutRepo(dbx)
}

func TestCheckoutRecord(t *testing.T) {
	repo := setup(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO checkout_sessions (session_id, browser_session, idempotency_key, showtime_id, seat_labels, email, amount_cents, status)")).
		WithArgs("cs_1", "b-1", "key-1", int64(7), "A1,A2", "a@b.co", int64(2500), model.CheckoutPending).
		WillReturnResult(sqlxmock.NewResult(0, 1))

	err := repo.Record(context.Background(), model.CheckoutSession{
		SessionID: "cs_1", BrowserSession: "b-1", IdempotencyKey: "key-1",
		ShowtimeID: 7, SeatLabels: "A1,A2", Email: "a@b.co", AmountCents: 2500,
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckoutGet(t *testing.T) {
	repo := setup(t)
	cols := []string{"session_id", "browser_session", "idempotency_key", "showtime_id", "seat_labels", "email", "amount_cents", "status", "booking_id", "created_at", "updated_at"}
	now := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)

	testCases := []struct {
		name      string
		sessionID string
		prepare   func()
		want      *model.CheckoutSession
		wantErr   bool
	}{
		{
			name:      "found",
			sessionID: "cs_1",
			prepare: func() {
				mock.ExpectQuery(regexp.QuoteMeta("FROM checkout_sessions WHERE session_id=?")).
					WithArgs("cs_1").
					WillReturnRows(sqlxmock.NewRows(cols).
						AddRow("cs_1", "b-1", "key-1", 7, "A1", "a@b.co", 1250, "CONFIRMED", "101", now, now))
			},
			want: &model.CheckoutSession{
				SessionID: "cs_1", BrowserSession: "b-1", IdempotencyKey: "key-1",
				ShowtimeID: 7, SeatLabels: "A1", Email: "a@b.co", AmountCents: 1250,
				Status: model.CheckoutConfirmed, BookingID: sql.NullString{String: "101", Valid: true},
				CreatedAt: now, UpdatedAt: now,
			},
		},
		{
			name:      "not found",
			sessionID: "cs_2",
			prepare: func() {
				mock.ExpectQuery(regexp.QuoteMeta("FROM checkout_sessions WHERE session_id=?")).
					WithArgs("cs_2").
					WillReturnRows(sqlxmock.NewRows(cols))
			},
		},
		{
			name:      "database error",
			sessionID: "cs_3",
			prepare: func() {
				mock.ExpectQuery(regexp.QuoteMeta("FROM checkout_sessions WHERE session_id=?")).
					WithArgs("cs_3").
					WillReturnError(errors.New("connection reset"))
			},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tc.prepare()
			got, err := repo.Get(context.Background(), tc.sessionID)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tc.want, got)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCheckoutMarkVerified(t *testing.T) {
	update := regexp.QuoteMeta("UPDATE checkout_sessions SET status='CONFIRMED'")
	insert := regexp.QuoteMeta("INSERT IGNORE INTO checkout_sessions")

	testCases := []struct {
		name      string
		prepare   func()
		wantFirst bool
	}{
		{
			name: "pending row is confirmed",
			prepare: func() {
				mock.ExpectExec(update).WithArgs("101", "cs_1").WillReturnResult(sqlxmock.NewResult(0, 1))
			},
			wantFirst: true,
		},
		{
			name: "already confirmed",
			prepare: func() {
				mock.ExpectExec(update).WithArgs("101", "cs_1").WillReturnResult(sqlxmock.NewResult(0, 0))
				mock.ExpectExec(insert).WithArgs("cs_1", "101").WillReturnResult(sqlxmock.NewResult(0, 0))
			},
		},
		{
			name: "row missing",
			prepare: func() {
				mock.ExpectExec(update).WithArgs("101", "cs_1").WillReturnResult(sqlxmock.NewResult(0, 0))
				mock.ExpectExec(insert).WithArgs("cs_1", "101").WillReturnResult(sqlxmock.NewResult(0, 1))
			},
			wantFirst: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			repo := setup(t)
			tc.prepare()
			first, err := repo.MarkVerified(context.Background(), "cs_1", "101")
			require.NoError(t, err)
			assert.Equal(t, tc.wantFirst, first)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCheckoutMarkClosed(t *testing.T) {
	repo := setup(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE checkout_sessions SET status=?, updated_at=NOW() WHERE session_id=? AND status='PENDING'")).
		WithArgs(model.CheckoutCancelled, "cs_1").
		WillReturnResult(sqlxmock.NewResult(0, 1))
	assert.NoError(t, repo.MarkClosed(context.Background(), "cs_1", model.CheckoutCancelled))

	err := repo.MarkClosed(context.Background(), "cs_1", model.CheckoutConfirmed)
	assert.ErrorIs(t, err, repository.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}
