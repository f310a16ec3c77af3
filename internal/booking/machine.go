package booking

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/iliyamo/filmpass/internal/apiclient"
	"github.com/iliyamo/filmpass/internal/money"
	"github.com/iliyamo/filmpass/internal/seatmap"
	"github.com/iliyamo/filmpass/internal/session"
)

// Transition describes one state change.  Err is set when the machine
// entered Failed or a seat map load failed.
type Transition struct {
	From       State
	To         State
	ShowtimeID int64
	Err        error
	At         time.Time
}

// Observer is called for every transition while the machine lock is held.
// It must not call back into the machine.
type Observer func(Transition)

// Snapshot is a consistent copy of the machine state.
type Snapshot struct {
	State       State
	ShowtimeID  int64
	Rows        []seatmap.Row
	Selected    []int64
	TicketType  TicketType
	UnitPrice   money.Amount
	Total       money.Amount
	LastError   error
	LastOutcome State
	Result      *Result
}

// Option configures a Machine.
type Option func(*Machine)

// WithObserver registers fn for transition notifications.
func WithObserver(fn Observer) Option { return func(m *Machine) { m.observer = fn } }

// WithRequireAccount makes Submit fail with ErrAuth for guests.
func WithRequireAccount(on bool) Option { return func(m *Machine) { m.requireAccount = on } }

// WithValidator shares a validator instance across machines.
func WithValidator(v *validator.Validate) Option { return func(m *Machine) { m.validate = v } }

// WithKeyFunc replaces the idempotency key generator.
func WithKeyFunc(fn func() string) Option { return func(m *Machine) { m.newKey = fn } }

// WithSessionID tags submitted requests with the browser session id.
func WithSessionID(id string) Option { return func(m *Machine) { m.sessionID = id } }

// WithClock replaces time.Now.
func WithClock(fn func() time.Time) Option { return func(m *Machine) { m.now = fn } }

// pendingKey remembers the idempotency key of the last attempt that failed
// with a transient error, so a retry of the same request reuses it.
type pendingKey struct {
	fingerprint string
	key         string
}

// Machine is the selection state machine of one browser session.  All
// methods are safe for concurrent use; every transition is applied under
// a single lock and network calls run outside it.
type Machine struct {
	loader         seatmap.Loader
	identity       session.Source
	submitters     Submitters
	validate       *validator.Validate
	observer       Observer
	requireAccount bool
	newKey         func() string
	now            func() time.Time
	sessionID      string

	mu          sync.Mutex
	state       State
	gen         uint64 // bumped on every showtime change
	attempt     uint64 // bumped on every submission
	showtimeID  int64
	seats       *seatmap.SeatMap
	loadFailed  bool
	selected    map[int64]struct{}
	ticket      TicketType
	unitPrice   money.Amount
	lastErr     error
	lastOutcome State
	result      *Result
	pending     *pendingKey
}

// New returns a Machine in state Idle.  identity is read on every Submit.
func New(loader seatmap.Loader, identity session.Source, subs Submitters, opts ...Option) *Machine {
	m := &Machine{
		loader:     loader,
		identity:   identity,
		submitters: subs,
		newKey:     func() string { return uuid.NewString() },
		now:        time.Now,
		selected:   map[int64]struct{}{},
		ticket:     Adult,
	}
	for _, o := range opts {
		o(m)
	}
	if m.identity == nil {
		m.identity = session.Guest
	}
	if m.validate == nil {
		m.validate = validator.New()
	}
	return m
}

// setState moves to s and notifies the observer.  Caller holds m.mu.
func (m *Machine) setState(s State, err error) {
	from := m.state
	m.state = s
	if m.observer != nil {
		m.observer(Transition{From: from, To: s, ShowtimeID: m.showtimeID, Err: err, At: m.now()})
	}
}

// ChooseShowtime switches to showtime id, clears the selection and loads
// the seat map.  Choosing the active showtime again is a no-op unless its
// last load failed or the previous booking was confirmed.  A load that
// completes after a newer choice returns ErrSuperseded and changes nothing.
func (m *Machine) ChooseShowtime(ctx context.Context, id int64) error {
	if id <= 0 {
		return &ValidationError{Field: "showtime_id", Reason: "must be positive"}
	}
	m.mu.Lock()
	if id == m.showtimeID && m.state != Idle && m.state != Confirmed && !m.loadFailed {
		m.mu.Unlock()
		return nil
	}
	m.gen++
	m.attempt++
	gen := m.gen
	m.showtimeID = id
	m.seats = nil
	m.loadFailed = false
	m.selected = map[int64]struct{}{}
	m.unitPrice = 0
	m.lastErr = nil
	m.result = nil
	m.pending = nil
	m.setState(LoadingSeats, nil)
	m.mu.Unlock()

	sm, err := m.loader.Load(ctx, id)

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return ErrSuperseded
	}
	if err != nil {
		m.seats = seatmap.Empty(id)
		m.loadFailed = true
		m.lastErr = err
		m.setState(Selecting, err)
		return fmt.Errorf("load seats for showtime %d: %w", id, err)
	}
	m.seats = sm
	m.setState(Selecting, nil)
	return nil
}

// ToggleSeat flips membership of seat id in the selection.  Booked seats
// are rejected with ErrSeatBooked and leave the selection unchanged.
func (m *Machine) ToggleSeat(id int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Selecting {
		return sortedIDs(m.selected), fmt.Errorf("toggle seat in %s: %w", m.state, ErrInvalidState)
	}
	seat, ok := m.seats.Lookup(id)
	if !ok {
		return sortedIDs(m.selected), fmt.Errorf("seat %d: %w", id, ErrUnknownSeat)
	}
	if _, on := m.selected[id]; on {
		delete(m.selected, id)
		return sortedIDs(m.selected), nil
	}
	if !seatmap.IsBookable(seat) {
		return sortedIDs(m.selected), fmt.Errorf("seat %s: %w", seat.Label(), ErrSeatBooked)
	}
	m.selected[id] = struct{}{}
	return sortedIDs(m.selected), nil
}

// SetTicketType sets the ticket type for the whole selection.
func (m *Machine) SetTicketType(t TicketType) error {
	if _, err := ParseTicketType(string(t)); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Submitting {
		return fmt.Errorf("set ticket type in %s: %w", m.state, ErrInvalidState)
	}
	m.ticket = t
	return nil
}

// SetUnitPrice records the advisory per-seat price of the active
// showtime, used for the payment amount.
func (m *Machine) SetUnitPrice(showtimeID int64, price money.Amount) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if showtimeID == m.showtimeID {
		m.unitPrice = price
	}
}

// Submit validates the selection locally and hands it to the submitter of
// sub.Mode.  On failure the seat map is reloaded and seats that are now
// booked are dropped from the selection before the error is returned.
func (m *Machine) Submit(ctx context.Context, sub Submission) (Result, error) {
	ident, err := m.identity.Current(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("read identity: %w", err)
	}

	m.mu.Lock()
	if m.state != Selecting {
		st := m.state
		m.mu.Unlock()
		return Result{}, fmt.Errorf("submit in %s: %w", st, ErrInvalidState)
	}
	req, submitter, err := m.prepare(ident, sub)
	if err != nil {
		m.lastErr = err
		m.mu.Unlock()
		return Result{}, err
	}
	fp := fingerprint(req, sub.Mode)
	if m.pending != nil && m.pending.fingerprint == fp {
		req.IdempotencyKey = m.pending.key
	} else {
		req.IdempotencyKey = m.newKey()
	}
	m.pending = &pendingKey{fingerprint: fp, key: req.IdempotencyKey}
	m.attempt++
	gen, attempt := m.gen, m.attempt
	m.lastErr = nil
	m.setState(Submitting, nil)
	m.mu.Unlock()

	res, err := submitter.Submit(ctx, req)

	m.mu.Lock()
	if gen != m.gen || attempt != m.attempt {
		m.mu.Unlock()
		return Result{}, ErrSuperseded
	}
	if err == nil {
		if len(res.Seats) == 0 {
			res.Seats = req.Labels()
		}
		m.result = &res
		m.pending = nil
		m.lastOutcome = Confirmed
		m.setState(Confirmed, nil)
		m.mu.Unlock()
		return res, nil
	}
	if !errors.Is(err, apiclient.ErrNetwork) {
		m.pending = nil
	}
	m.lastErr = err
	m.lastOutcome = Failed
	m.setState(Failed, err)
	showtimeID := m.showtimeID
	m.mu.Unlock()

	m.reconcile(ctx, gen, attempt, showtimeID)
	return Result{}, err
}

// prepare runs local validation.  Caller holds m.mu.
func (m *Machine) prepare(ident *session.Identity, sub Submission) (Request, Submitter, error) {
	if len(m.selected) == 0 {
		return Request{}, nil, &ValidationError{Field: "seats", Reason: "select at least one seat"}
	}
	var submitter Submitter
	switch sub.Mode {
	case Direct:
		submitter = m.submitters.Direct
	case Payment:
		submitter = m.submitters.Payment
	}
	if submitter == nil {
		return Request{}, nil, &ValidationError{Field: "payment", Reason: sub.Mode.String() + " booking is not available"}
	}

	contact := Contact{Name: strings.TrimSpace(sub.Contact.Name), Email: strings.TrimSpace(sub.Contact.Email)}
	if ident == nil {
		if m.requireAccount {
			return Request{}, nil, ErrAuth
		}
		if err := m.validate.Struct(contact); err != nil {
			return Request{}, nil, contactError(err)
		}
	} else {
		if contact.Email == "" {
			contact.Email = ident.User.Email
		}
		if contact.Name == "" {
			contact.Name = ident.User.Name
		}
		if contact.Email != "" {
			if err := m.validate.Var(contact.Email, "email"); err != nil {
				return Request{}, nil, &ValidationError{Field: "email", Reason: "email address is invalid"}
			}
		}
	}

	if sub.Mode == Payment {
		if contact.Email == "" {
			return Request{}, nil, &ValidationError{Field: "email", Reason: "email is required for card payment"}
		}
		if m.unitPrice <= 0 {
			return Request{}, nil, &ValidationError{Field: "payment", Reason: "ticket price is unknown, choose the showtime from its movie page"}
		}
	}

	seats := make([]seatmap.Seat, 0, len(m.selected))
	for _, id := range sortedIDs(m.selected) {
		s, ok := m.seats.Lookup(id)
		if !ok || !seatmap.IsBookable(s) {
			return Request{}, nil, &ValidationError{Field: "seats", Reason: fmt.Sprintf("seat %d is no longer available", id)}
		}
		seats = append(seats, s)
	}
	return Request{
		ShowtimeID:     m.showtimeID,
		Seats:          seats,
		TicketType:     m.ticket,
		Contact:        contact,
		Identity:       ident,
		UnitPrice:      m.unitPrice,
		BrowserSession: m.sessionID,
	}, submitter, nil
}

func contactError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			return &ValidationError{Field: field, Reason: field + " is required"}
		case "email":
			return &ValidationError{Field: field, Reason: "email address is invalid"}
		}
		return &ValidationError{Field: field, Reason: "failed " + fe.Tag() + " check"}
	}
	return &ValidationError{Reason: err.Error()}
}

// reconcile reloads the seat map after a failed submission and prunes
// seats that are no longer bookable.  The machine returns to Selecting
// either way; a failed reload keeps the previous map.
func (m *Machine) reconcile(ctx context.Context, gen, attempt uint64, showtimeID int64) {
	sm, err := m.loader.Load(ctx, showtimeID)

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen || attempt != m.attempt || m.state != Failed {
		return
	}
	if err == nil {
		m.seats = sm
		for id := range m.selected {
			if s, ok := sm.Lookup(id); !ok || !seatmap.IsBookable(s) {
				delete(m.selected, id)
			}
		}
	}
	m.setState(Selecting, nil)
}

// Snapshot returns a copy of the current state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Snapshot{
		State:       m.state,
		ShowtimeID:  m.showtimeID,
		Selected:    sortedIDs(m.selected),
		TicketType:  m.ticket,
		UnitPrice:   m.unitPrice,
		Total:       m.unitPrice.Times(len(m.selected)),
		LastError:   m.lastErr,
		LastOutcome: m.lastOutcome,
	}
	if m.seats != nil {
		s.Rows = m.seats.GroupByRow()
	}
	if m.result != nil {
		r := *m.result
		r.Seats = append([]string(nil), m.result.Seats...)
		s.Result = &r
	}
	return s
}

func fingerprint(req Request, mode Mode) string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(req.ShowtimeID, 10))
	b.WriteByte('|')
	for i, id := range req.SeatIDs() {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatInt(id, 10))
	}
	fmt.Fprintf(&b, "|%s|%s|%s", req.TicketType, mode, strings.ToLower(req.Contact.Email))
	return b.String()
}
