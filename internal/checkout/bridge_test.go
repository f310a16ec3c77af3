package checkout_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/filmpass/internal/apiclient"
	"github.com/iliyamo/filmpass/internal/booking"
	"github.com/iliyamo/filmpass/internal/checkout"
	"github.com/iliyamo/filmpass/internal/model"
	"github.com/iliyamo/filmpass/internal/money"
	"github.com/iliyamo/filmpass/internal/queue"
	"github.com/iliyamo/filmpass/internal/seatmap"
)

// stubBackend mimics the payment endpoints of the booking backend.  It
// books once per session and then keeps answering with the same id.
type stubBackend struct {
	mu       sync.Mutex
	created  []map[string]any
	verifies int
	status   string
	code     int
	booked   map[string]int
	next     int
}

func newStub() *stubBackend {
	return &stubBackend{status: "confirmed", code: http.StatusOK, booked: map[string]int{}, next: 100}
}

func (s *stubBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/api/create-checkout-session":
		var body map[string]any
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &body)
		body["idempotency_key"] = r.Header.Get("Idempotency-Key")
		s.created = append(s.created, body)
		_, _ = io.WriteString(w, `{"clientSecret":"secret_1","publishableKey":"pk_test","sessionId":"cs_test_1"}`)
	case "/api/verify-payment":
		s.verifies++
		sid := r.URL.Query().Get("session_id")
		if s.status != "confirmed" {
			w.WriteHeader(s.code)
			_ = json.NewEncoder(w).Encode(map[string]any{"status": s.status})
			return
		}
		id, ok := s.booked[sid]
		if !ok {
			s.next++
			id = s.next
			s.booked[sid] = id
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"bookingId":   id,
			"movieTitle":  "Dune",
			"showtime":    "2024-05-01 20:00",
			"theaterName": "Odeon",
			"seats":       []string{"A1", "A3"},
			"total":       2500,
			"status":      "confirmed",
		})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (s *stubBackend) respond(status string, code int) {
	s.mu.Lock()
	s.status, s.code = status, code
	s.mu.Unlock()
}

func (s *stubBackend) creates() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]any(nil), s.created...)
}

func (s *stubBackend) verifyCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.verifies
}

type fakePublisher struct {
	mu     sync.Mutex
	events []queue.BookingConfirmedEvent
	err    error
}

func (p *fakePublisher) PublishBookingConfirmed(_ context.Context, ev queue.BookingConfirmedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

type fakeProbe struct {
	st  checkout.ProviderStatus
	err error
}

func (p fakeProbe) SessionStatus(context.Context, string) (checkout.ProviderStatus, error) {
	return p.st, p.err
}

func paymentRequest() booking.Request {
	return booking.Request{
		ShowtimeID: 9,
		Seats: []seatmap.Seat{
			{ID: 1, RowLabel: "A", SeatNumber: 1, Status: seatmap.Available},
			{ID: 3, RowLabel: "A", SeatNumber: 3, Status: seatmap.Available},
		},
		TicketType:     booking.Adult,
		Contact:        booking.Contact{Name: "Guest", Email: "guest@example.com"},
		UnitPrice:      money.FromMinor(1250),
		IdempotencyKey: "idem-1",
		BrowserSession: "browser-1",
	}
}

func setup(t *testing.T, opts ...checkout.Option) (*checkout.Bridge, *stubBackend, *checkout.MemoryLedger) {
	t.Helper()
	stub := newStub()
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)
	api := apiclient.New(srv.URL+"/api", apiclient.WithDoer(srv.Client()))
	ledger := checkout.NewMemoryLedger()
	return checkout.NewBridge(api, ledger, "https://tickets.example.com/", opts...), stub, ledger
}

func TestSubmitOpensSessionAndRecordsLedger(t *testing.T) {
	b, stub, ledger := setup(t)
	ctx := context.Background()

	res, err := b.Submit(ctx, paymentRequest())
	require.NoError(t, err)
	assert.Equal(t, booking.StatusPendingPayment, res.Status)
	assert.Equal(t, money.FromMinor(2500), res.Total)
	assert.Equal(t, []string{"A1", "A3"}, res.Seats)
	require.NotNil(t, res.Payment)
	assert.Equal(t, "cs_test_1", res.Payment.SessionID)
	assert.Equal(t, "secret_1", res.Payment.ClientSecret)
	assert.Equal(t, "https://tickets.example.com/v1/payment/success?session_id=cs_test_1", res.Payment.ReturnURL)

	created := stub.creates()
	require.Len(t, created, 1)
	sent := created[0]
	assert.EqualValues(t, 2500, sent["amount"])
	assert.Equal(t, []any{float64(1), float64(3)}, sent["seats"])
	assert.Equal(t, "https://tickets.example.com/v1/payment/success?session_id={CHECKOUT_SESSION_ID}", sent["successUrl"])
	assert.Equal(t, "idem-1", sent["idempotency_key"])

	cs, err := ledger.Get(ctx, "cs_test_1")
	require.NoError(t, err)
	require.NotNil(t, cs)
	assert.Equal(t, model.CheckoutPending, cs.Status)
	assert.Equal(t, "A1,A3", cs.SeatLabels)
	assert.Equal(t, int64(2500), cs.AmountCents)
	assert.Equal(t, "browser-1", cs.BrowserSession)
}

func TestInitiateFailures(t *testing.T) {
	t.Run("unknown price", func(t *testing.T) {
		b, stub, _ := setup(t)
		req := paymentRequest()
		req.UnitPrice = 0
		_, err := b.Initiate(context.Background(), req)
		assert.ErrorIs(t, err, checkout.ErrPaymentInit)
		assert.ErrorIs(t, err, booking.ErrValidation)
		assert.Empty(t, stub.creates())
	})

	t.Run("missing email", func(t *testing.T) {
		b, stub, _ := setup(t)
		req := paymentRequest()
		req.Contact.Email = ""
		_, err := b.Initiate(context.Background(), req)
		var verr *booking.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "email", verr.Field)
		assert.Empty(t, stub.creates())
	})

	t.Run("backend conflict keeps its kind", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
			_, _ = io.WriteString(w, `{"error":"Seat A3 is already booked"}`)
		}))
		defer srv.Close()
		b := checkout.NewBridge(apiclient.New(srv.URL, apiclient.WithDoer(srv.Client())), nil, "http://bff")

		_, err := b.Initiate(context.Background(), paymentRequest())
		assert.ErrorIs(t, err, checkout.ErrPaymentInit)
		assert.ErrorIs(t, err, apiclient.ErrSeatUnavailable)
		assert.Contains(t, err.Error(), "Seat A3 is already booked")
	})
}

func TestVerifyTwiceReturnsSameBooking(t *testing.T) {
	pub := &fakePublisher{}
	b, stub, ledger := setup(t, checkout.WithPublisher(pub))
	ctx := context.Background()
	_, err := b.Submit(ctx, paymentRequest())
	require.NoError(t, err)

	first, err := b.Verify(ctx, "cs_test_1")
	require.NoError(t, err)
	second, err := b.Verify(ctx, "cs_test_1")
	require.NoError(t, err)

	assert.Equal(t, "101", first.BookingID)
	assert.Equal(t, first.BookingID, second.BookingID)
	assert.Equal(t, "€25.00", first.Total.EUR())
	assert.Equal(t, 2, first.Seats)
	assert.Equal(t, 2, stub.verifyCalls())

	// one event per booking, enriched from the ledger
	require.Len(t, pub.events, 1)
	ev := pub.events[0]
	assert.Equal(t, "101", ev.BookingID)
	assert.Equal(t, "cs_test_1", ev.PaymentSession)
	assert.Equal(t, int64(9), ev.ShowtimeID)
	assert.Equal(t, "guest@example.com", ev.Email)
	assert.Equal(t, int64(2500), ev.TotalAmountCents)

	cs, _ := ledger.Get(ctx, "cs_test_1")
	assert.Equal(t, model.CheckoutConfirmed, cs.Status)
	assert.Equal(t, "101", cs.BookingID.String)
}

func TestVerifyPendingAndDeclined(t *testing.T) {
	testCases := []struct {
		name        string
		status      string
		code        int
		probe       checkout.Probe
		wantPending bool
		wantDecline bool
		ledger      string
	}{
		{name: "processing without probe", status: "processing", code: http.StatusAccepted, wantPending: true, ledger: model.CheckoutPending},
		{name: "probe says still open", status: "pending", code: http.StatusOK, probe: fakeProbe{st: checkout.ProviderStatus{Status: "open", PaymentStatus: "unpaid"}}, wantPending: true, ledger: model.CheckoutPending},
		{name: "probe fails", status: "pending", code: http.StatusOK, probe: fakeProbe{err: errors.New("boom")}, wantPending: true, ledger: model.CheckoutPending},
		{name: "probe says expired", status: "pending", code: http.StatusOK, probe: fakeProbe{st: checkout.ProviderStatus{Status: "expired"}}, wantDecline: true, ledger: model.CheckoutDeclined},
		{name: "backend says failed", status: "failed", code: http.StatusOK, wantDecline: true, ledger: model.CheckoutDeclined},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var opts []checkout.Option
			if tc.probe != nil {
				opts = append(opts, checkout.WithProbe(tc.probe))
			}
			b, stub, ledger := setup(t, opts...)
			ctx := context.Background()
			_, err := b.Submit(ctx, paymentRequest())
			require.NoError(t, err)
			stub.respond(tc.status, tc.code)

			_, err = b.Verify(ctx, "cs_test_1")
			require.Error(t, err)
			if tc.wantPending {
				var ve *checkout.VerificationError
				require.True(t, errors.As(err, &ve))
				assert.True(t, ve.Pending)
				assert.ErrorIs(t, err, checkout.ErrVerification)
				assert.NotErrorIs(t, err, checkout.ErrPaymentDeclined)
			}
			if tc.wantDecline {
				assert.ErrorIs(t, err, checkout.ErrPaymentDeclined)
				assert.NotErrorIs(t, err, checkout.ErrVerification)
			}
			cs, _ := ledger.Get(ctx, "cs_test_1")
			assert.Equal(t, tc.ledger, cs.Status)
		})
	}
}

func TestVerifyFallsBackToLedgerWhenBackendIsDown(t *testing.T) {
	stub := newStub()
	srv := httptest.NewServer(stub)
	api := apiclient.New(srv.URL+"/api", apiclient.WithDoer(srv.Client()))
	b := checkout.NewBridge(api, nil, "http://bff")
	ctx := context.Background()

	_, err := b.Submit(ctx, paymentRequest())
	require.NoError(t, err)
	first, err := b.Verify(ctx, "cs_test_1")
	require.NoError(t, err)

	srv.Close()
	again, err := b.Verify(ctx, "cs_test_1")
	require.NoError(t, err)
	assert.Equal(t, first.BookingID, again.BookingID)
	assert.Equal(t, []string{"A1", "A3"}, again.SeatLabels)

	_, err = b.Verify(ctx, "cs_unknown")
	assert.ErrorIs(t, err, checkout.ErrVerification)
	assert.ErrorIs(t, err, apiclient.ErrNetwork)
}

func TestVerifyMissingSession(t *testing.T) {
	b, stub, _ := setup(t)
	_, err := b.Verify(context.Background(), "  ")
	var ve *checkout.VerificationError
	require.True(t, errors.As(err, &ve))
	assert.False(t, ve.Pending)
	assert.Zero(t, stub.verifyCalls())
}

func TestCancelIsAnOutcome(t *testing.T) {
	b, _, ledger := setup(t)
	ctx := context.Background()
	_, err := b.Submit(ctx, paymentRequest())
	require.NoError(t, err)

	out := b.Cancel(ctx, "cs_test_1")
	assert.Equal(t, "cs_test_1", out.SessionID)
	assert.True(t, strings.Contains(out.Message, "cancelled"))
	cs, _ := ledger.Get(ctx, "cs_test_1")
	assert.Equal(t, model.CheckoutCancelled, cs.Status)

	// a later confirmation still wins
	_, err = b.Verify(ctx, "cs_test_1")
	require.NoError(t, err)
	b.Cancel(ctx, "cs_test_1")
	cs, _ = ledger.Get(ctx, "cs_test_1")
	assert.Equal(t, model.CheckoutConfirmed, cs.Status)
}

func TestMachineWithPaymentRoute(t *testing.T) {
	b, _, _ := setup(t)
	loader := seatmap.LoaderFunc(func(_ context.Context, id int64) (*seatmap.SeatMap, error) {
		return seatmap.New(id, paymentRequest().Seats)
	})
	m := booking.New(loader, nil, booking.Submitters{Payment: b})
	ctx := context.Background()
	require.NoError(t, m.ChooseShowtime(ctx, 9))
	m.SetUnitPrice(9, money.FromMinor(1000))
	_, err := m.ToggleSeat(1)
	require.NoError(t, err)

	res, err := m.Submit(ctx, booking.Submission{Contact: booking.Contact{Email: "g@x.io"}, Mode: booking.Payment})
	require.NoError(t, err)
	assert.Equal(t, booking.StatusPendingPayment, res.Status)
	assert.Equal(t, booking.Confirmed, m.Snapshot().State)
	assert.Equal(t, "cs_test_1", m.Snapshot().Result.Payment.SessionID)
}

// cancelOnVerify cancels the caller's context once the backend confirmed,
// as a browser leaving the success page would.
type cancelOnVerify struct {
	*checkout.MemoryLedger
	cancel context.CancelFunc
}

func (l cancelOnVerify) MarkVerified(ctx context.Context, sessionID, bookingID string) (bool, error) {
	l.cancel()
	return l.MemoryLedger.MarkVerified(ctx, sessionID, bookingID)
}

type ctxPublisher struct {
	errs []error
}

func (p *ctxPublisher) PublishBookingConfirmed(ctx context.Context, _ queue.BookingConfirmedEvent) error {
	p.errs = append(p.errs, ctx.Err())
	return nil
}

func TestVerifyPublishesAfterCallerLeaves(t *testing.T) {
	stub := newStub()
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pub := &ctxPublisher{}
	ledger := cancelOnVerify{MemoryLedger: checkout.NewMemoryLedger(), cancel: cancel}
	b := checkout.NewBridge(apiclient.New(srv.URL+"/api", apiclient.WithDoer(srv.Client())), ledger, "http://bff",
		checkout.WithPublisher(pub))

	conf, err := b.Verify(ctx, "cs_test_1")
	require.NoError(t, err)
	assert.Equal(t, "101", conf.BookingID)
	require.Error(t, ctx.Err())
	assert.Equal(t, []error{nil}, pub.errs)
}
