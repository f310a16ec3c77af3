package booking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/filmpass/internal/apiclient"
	"github.com/iliyamo/filmpass/internal/money"
	"github.com/iliyamo/filmpass/internal/seatmap"
	"github.com/iliyamo/filmpass/internal/session"
)

func emptyLoader() seatmap.Loader {
	return seatmap.LoaderFunc(func(_ context.Context, id int64) (*seatmap.SeatMap, error) {
		return seatmap.Empty(id), nil
	})
}

func TestRegistryGetAndSweep(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	created := 0
	r := NewRegistry(func(string) *Machine {
		created++
		return New(emptyLoader(), session.Guest, Submitters{})
	}, 10*time.Minute)
	r.now = func() time.Time { return now }

	a := r.Get("a")
	assert.Same(t, a, r.Get("a"))
	r.Get("b")
	assert.Equal(t, 2, created)
	assert.Equal(t, 2, r.Len())

	now = now.Add(6 * time.Minute)
	r.Get("a")
	now = now.Add(6 * time.Minute)

	assert.Equal(t, 1, r.Sweep())
	assert.Equal(t, 1, r.Len())
	assert.Same(t, a, r.Get("a"))

	r.Forget("a")
	assert.Zero(t, r.Len())
}

func TestRegistryKeepsSubmittingMachines(t *testing.T) {
	now := time.Now()
	release := make(chan struct{})
	entered := make(chan struct{})
	sub := SubmitterFunc(func(context.Context, Request) (Result, error) {
		close(entered)
		<-release
		return Result{BookingID: "1", Status: StatusConfirmed}, nil
	})
	loader := seatmap.LoaderFunc(func(_ context.Context, id int64) (*seatmap.SeatMap, error) {
		return seatmap.New(id, []seatmap.Seat{{ID: 1, RowLabel: "A", SeatNumber: 1, Status: seatmap.Available}})
	})
	r := NewRegistry(func(string) *Machine { return New(loader, session.Guest, Submitters{Direct: sub}) }, time.Minute)
	r.now = func() time.Time { return now }

	m := r.Get("s")
	ctx := context.Background()
	require.NoError(t, m.ChooseShowtime(ctx, 1))
	_, err := m.ToggleSeat(1)
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() {
		_, err := m.Submit(ctx, Submission{Contact: Contact{Email: "g@x.io"}})
		done <- err
	}()
	<-entered

	now = now.Add(time.Hour)
	assert.Zero(t, r.Sweep())
	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, r.Sweep())
}

type fakeCreator struct {
	got apiclient.BookingPayload
	rec apiclient.BookingReceipt
	err error
}

func (f *fakeCreator) CreateBooking(_ context.Context, _ *session.Identity, p apiclient.BookingPayload) (apiclient.BookingReceipt, error) {
	f.got = p
	return f.rec, f.err
}

func TestDirectSubmitter(t *testing.T) {
	fc := &fakeCreator{rec: apiclient.BookingReceipt{BookingID: "42", Status: "CONFIRMED"}}
	d := NewDirectSubmitter(fc)
	req := Request{
		ShowtimeID:     3,
		Seats:          []seatmap.Seat{{ID: 7, RowLabel: "B", SeatNumber: 2}, {ID: 8, RowLabel: "B", SeatNumber: 3}},
		TicketType:     Child,
		Contact:        Contact{Name: "Ann", Email: "ann@x.io"},
		UnitPrice:      money.FromMinor(800),
		IdempotencyKey: "key",
	}

	res, err := d.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, Result{BookingID: "42", Status: StatusConfirmed, Seats: []string{"B2", "B3"}}, res, "no total without the backend's")
	assert.Equal(t, apiclient.BookingPayload{
		ShowtimeID:     3,
		SeatIDs:        []int64{7, 8},
		TicketType:     "CHILD",
		UserEmail:      "ann@x.io",
		UserName:       "Ann",
		IdempotencyKey: "key",
	}, fc.got)

	fc.rec = apiclient.BookingReceipt{BookingID: "43", Status: "CONFIRMED", Total: money.FromMinor(1500)}
	res, err = d.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, money.FromMinor(1500), res.Total)

	fc.rec = apiclient.BookingReceipt{BookingID: "44", Status: "FAILED"}
	_, err = d.Submit(context.Background(), req)
	assert.ErrorIs(t, err, ErrBookingFailed)

	fc.err = apiclient.ErrSeatUnavailable
	_, err = d.Submit(context.Background(), req)
	assert.ErrorIs(t, err, apiclient.ErrSeatUnavailable)
}
