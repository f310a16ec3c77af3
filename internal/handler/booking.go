package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/filmpass/internal/apiclient"
	"github.com/iliyamo/filmpass/internal/booking"
	"github.com/iliyamo/filmpass/internal/checkout"
	"github.com/iliyamo/filmpass/internal/middleware"
	"github.com/iliyamo/filmpass/internal/money"
	"github.com/iliyamo/filmpass/internal/queue"
	"github.com/iliyamo/filmpass/internal/seatmap"
)

// BookingHandler exposes the selection machine of the caller's browser
// session.
type BookingHandler struct {
	Registry *booking.Registry
	// Catalog resolves the unit price when a showtime is chosen from a
	// movie page.  Optional.
	Catalog Catalog
	// Bookings serves the count-only quick booking.
	Bookings  booking.BookingCreator
	Publisher checkout.Publisher // optional
	Validate  *validator.Validate
	Log       *zap.Logger
	Now       func() time.Time
}

// BookingView is the JSON form of a booking.Snapshot.
type BookingView struct {
	State        booking.State      `json:"state"`
	ShowtimeID   int64              `json:"showtime_id,omitempty"`
	Rows         []seatmap.Row      `json:"rows"`
	Selected     []int64            `json:"selected"`
	TicketType   booking.TicketType `json:"ticket_type"`
	UnitPrice    money.Amount       `json:"unit_price_cents"`
	Total        money.Amount       `json:"total_cents"`
	TotalDisplay string             `json:"total_display"`
	LastError    string             `json:"last_error,omitempty"`
	LastOutcome  string             `json:"last_outcome,omitempty"`
	Result       *ResultView        `json:"result,omitempty"`
}

// ResultView is a submission result with its total spelled out.  The
// total is omitted when the backend did not report one.
type ResultView struct {
	booking.Result
	TotalCents   int64  `json:"total_cents,omitempty"`
	TotalDisplay string `json:"total_display,omitempty"`
}

func resultView(r booking.Result) *ResultView {
	v := &ResultView{Result: r}
	if r.Total > 0 {
		v.TotalCents, v.TotalDisplay = r.Total.Minor(), r.Total.EUR()
	}
	return v
}

func viewOf(s booking.Snapshot) BookingView {
	v := BookingView{
		State:        s.State,
		ShowtimeID:   s.ShowtimeID,
		Rows:         s.Rows,
		Selected:     s.Selected,
		TicketType:   s.TicketType,
		UnitPrice:    s.UnitPrice,
		Total:        s.Total,
		TotalDisplay: s.Total.EUR(),
	}
	if v.Rows == nil {
		v.Rows = []seatmap.Row{}
	}
	if s.LastError != nil {
		_, v.LastError = statusFor(s.LastError)
	}
	if s.LastOutcome != booking.Idle {
		v.LastOutcome = s.LastOutcome.String()
	}
	if s.Result != nil {
		v.Result = resultView(*s.Result)
	}
	return v
}

func (h *BookingHandler) machine(c echo.Context) *booking.Machine {
	return h.Registry.Get(middleware.SessionID(c))
}

type chooseShowtimeReq struct {
	ShowtimeID int64 `json:"showtime_id" validate:"required,gt=0"`
	MovieID    int64 `json:"movie_id" validate:"omitempty,gt=0"`
}

// ChooseShowtime handles POST /v1/booking/showtime.  A failed seat map load
// still answers with the (empty) booking so the page can offer a retry.
func (h *BookingHandler) ChooseShowtime(c echo.Context) error {
	var req chooseShowtimeReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if err := h.Validate.Struct(req); err != nil {
		return badRequest(c, "showtime_id is required")
	}
	ctx := c.Request().Context()
	m := h.machine(c)
	err := m.ChooseShowtime(ctx, req.ShowtimeID)
	if req.MovieID > 0 && h.Catalog != nil {
		h.applyPrice(ctx, m, req.MovieID, req.ShowtimeID)
	}
	view := viewOf(m.Snapshot())
	if err != nil {
		return errorJSON(c, err, echo.Map{"booking": view})
	}
	return c.JSON(http.StatusOK, view)
}

// applyPrice copies the showtime price from the movie details.  Failing to
// find one only disables the payment route.
func (h *BookingHandler) applyPrice(ctx context.Context, m *booking.Machine, movieID, showtimeID int64) {
	d, err := h.Catalog.MovieDetails(ctx, movieID)
	if err != nil {
		h.Log.Warn("showtime price lookup failed", zap.Int64("movie_id", movieID), zap.Error(err))
		return
	}
	for _, s := range d.Showtimes {
		if s.ID == showtimeID {
			m.SetUnitPrice(showtimeID, s.Price)
			return
		}
	}
}

// Get handles GET /v1/booking.
func (h *BookingHandler) Get(c echo.Context) error {
	return c.JSON(http.StatusOK, viewOf(h.machine(c).Snapshot()))
}

// ToggleSeat handles POST /v1/booking/seats/:id/toggle.
func (h *BookingHandler) ToggleSeat(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid seat id")
	}
	m := h.machine(c)
	if _, err := m.ToggleSeat(id); err != nil {
		return errorJSON(c, err, echo.Map{"booking": viewOf(m.Snapshot())})
	}
	return c.JSON(http.StatusOK, viewOf(m.Snapshot()))
}

type ticketTypeReq struct {
	TicketType string `json:"ticket_type"`
}

// SetTicketType handles PUT /v1/booking/ticket-type.
func (h *BookingHandler) SetTicketType(c echo.Context) error {
	var req ticketTypeReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	t, err := booking.ParseTicketType(req.TicketType)
	if err != nil {
		return errorJSON(c, err, nil)
	}
	m := h.machine(c)
	if err := m.SetTicketType(t); err != nil {
		return errorJSON(c, err, nil)
	}
	return c.JSON(http.StatusOK, viewOf(m.Snapshot()))
}

type submitReq struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Payment bool   `json:"payment"`
}

// Submit handles POST /v1/booking/submit.  Contact fields are validated by
// the machine; guests must give an email.
func (h *BookingHandler) Submit(c echo.Context) error {
	var req submitReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	sub := booking.Submission{
		Contact: booking.Contact{Name: strings.TrimSpace(req.Name), Email: strings.TrimSpace(req.Email)},
		Mode:    booking.Direct,
	}
	if req.Payment {
		sub.Mode = booking.Payment
	}

	ctx := c.Request().Context()
	m := h.machine(c)
	res, err := m.Submit(ctx, sub)
	if err != nil {
		return errorJSON(c, err, echo.Map{"booking": viewOf(m.Snapshot())})
	}

	snap := m.Snapshot()
	if res.Status == booking.StatusConfirmed {
		email := sub.Contact.Email
		if id := middleware.CurrentIdentity(c); email == "" && id != nil {
			email = id.User.Email
		}
		h.publish(ctx, snap.ShowtimeID, email, res)
	}
	status := http.StatusCreated
	if res.Status == booking.StatusPendingPayment {
		status = http.StatusAccepted
	}
	return c.JSON(status, echo.Map{"result": resultView(res), "booking": viewOf(snap)})
}

func (h *BookingHandler) publish(ctx context.Context, showtimeID int64, email string, res booking.Result) {
	if h.Publisher == nil {
		return
	}
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	ev := queue.BookingConfirmedEvent{
		BookingID:        res.BookingID,
		ShowtimeID:       showtimeID,
		Email:            email,
		SeatLabels:       res.Seats,
		TotalAmountCents: res.Total.Minor(),
		ConfirmedAt:      now().UTC().Format(time.RFC3339),
	}
	// the request may be cancelled once the response is written
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := h.Publisher.PublishBookingConfirmed(pctx, ev); err != nil {
		h.Log.Warn("publish booking confirmed", zap.String("booking_id", res.BookingID), zap.Error(err))
	}
}

type quickBookReq struct {
	ShowtimeID int64  `json:"showtime_id" validate:"required,gt=0"`
	Seats      int    `json:"seats" validate:"required,min=1,max=10"`
	TicketType string `json:"ticket_type"`
	Name       string `json:"name" validate:"max=120"`
	Email      string `json:"email" validate:"omitempty,email"`
}

// QuickBook handles POST /v1/bookings/quick: book a number of seats at a
// showtime and let the backend pick them.  It bypasses the selection
// machine entirely.
func (h *BookingHandler) QuickBook(c echo.Context) error {
	var req quickBookReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if err := h.Validate.Struct(req); err != nil {
		return badRequest(c, "showtime_id and between 1 and 10 seats are required")
	}
	tt := booking.Adult
	if req.TicketType != "" {
		t, err := booking.ParseTicketType(req.TicketType)
		if err != nil {
			return errorJSON(c, err, nil)
		}
		tt = t
	}
	id := middleware.CurrentIdentity(c)
	if id == nil && req.Email == "" {
		return badRequest(c, "email is required for guest bookings")
	}
	if id != nil {
		if req.Email == "" {
			req.Email = id.User.Email
		}
		if req.Name == "" {
			req.Name = id.User.Name
		}
	}
	key := c.Request().Header.Get("Idempotency-Key")
	if _, err := uuid.Parse(key); err != nil {
		key = uuid.NewString()
	}

	ctx := c.Request().Context()
	rec, err := h.Bookings.CreateBooking(ctx, id, apiclient.BookingPayload{
		ShowtimeID:     req.ShowtimeID,
		SeatCount:      req.Seats,
		TicketType:     string(tt),
		UserEmail:      req.Email,
		UserName:       req.Name,
		IdempotencyKey: key,
	})
	if err != nil {
		if errors.Is(err, apiclient.ErrNetwork) {
			c.Response().Header().Set("Idempotency-Key", key)
		}
		return errorJSON(c, err, nil)
	}
	if booking.Status(rec.Status) == booking.StatusFailed {
		return errorJSON(c, fmt.Errorf("booking %s: %w", rec.BookingID, booking.ErrBookingFailed), nil)
	}
	res := booking.Result{BookingID: rec.BookingID, Status: booking.Status(rec.Status), Total: rec.Total, Seats: []string{}}
	if res.Status == booking.StatusConfirmed {
		h.publish(ctx, req.ShowtimeID, req.Email, res)
	}
	return c.JSON(http.StatusCreated, echo.Map{"result": resultView(res), "seats_requested": req.Seats})
}
