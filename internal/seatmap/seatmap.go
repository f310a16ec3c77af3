// Package seatmap models the seats of one auditorium for one showtime.  A
// SeatMap is immutable once built: a refreshed map replaces the old one
// wholesale so that readers never observe a partial update.
package seatmap

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Status is the server-authoritative booking state of a seat.
type Status string

const (
	Available Status = "AVAILABLE"
	Booked    Status = "BOOKED"
)

// ParseStatus maps the status strings used by the backend onto Status.
// FREE is accepted as AVAILABLE; HELD, RESERVED and SOLD all mean the seat
// cannot be selected.  Unknown values are rejected.
func ParseStatus(s string) (Status, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "AVAILABLE", "FREE":
		return Available, nil
	case "BOOKED", "RESERVED", "HELD", "SOLD":
		return Booked, nil
	}
	return "", fmt.Errorf("unknown seat status %q", s)
}

// Seat describes one seat in a showtime's seat map.
type Seat struct {
	ID         int64  `json:"id"`
	RowLabel   string `json:"row_label"`
	SeatNumber int    `json:"seat_number"`
	Status     Status `json:"status"`
}

// Label returns the human readable position of the seat, e.g. "A7".
func (s Seat) Label() string {
	return fmt.Sprintf("%s%d", s.RowLabel, s.SeatNumber)
}

// IsBookable reports whether the seat can be added to a selection.
func IsBookable(s Seat) bool { return s.Status == Available }

// Row is one row of seats in display order.
type Row struct {
	Label string `json:"label"`
	Seats []Seat `json:"seats"`
}

// ErrInvalidLayout is returned by New when the seat list cannot form a map.
var ErrInvalidLayout = errors.New("invalid seat layout")

// SeatMap holds the seats of a single showtime ordered by row label and
// then by seat number.
type SeatMap struct {
	showtimeID int64
	seats      []Seat
	byID       map[int64]int
}

// New validates and orders seats into a SeatMap for showtimeID.  Seat ids
// and (row, number) pairs must be unique and seat numbers positive.
func New(showtimeID int64, seats []Seat) (*SeatMap, error) {
	ordered := make([]Seat, len(seats))
	copy(ordered, seats)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].RowLabel != ordered[j].RowLabel {
			return ordered[i].RowLabel < ordered[j].RowLabel
		}
		return ordered[i].SeatNumber < ordered[j].SeatNumber
	})

	byID := make(map[int64]int, len(ordered))
	positions := make(map[string]struct{}, len(ordered))
	for i, s := range ordered {
		if s.RowLabel == "" || s.SeatNumber < 1 {
			return nil, fmt.Errorf("%w: seat %d has no valid position", ErrInvalidLayout, s.ID)
		}
		if s.Status != Available && s.Status != Booked {
			return nil, fmt.Errorf("%w: seat %d has status %q", ErrInvalidLayout, s.ID, s.Status)
		}
		if _, dup := byID[s.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate seat id %d", ErrInvalidLayout, s.ID)
		}
		pos := s.Label()
		if _, dup := positions[pos]; dup {
			return nil, fmt.Errorf("%w: duplicate seat position %s", ErrInvalidLayout, pos)
		}
		byID[s.ID] = i
		positions[pos] = struct{}{}
	}
	return &SeatMap{showtimeID: showtimeID, seats: ordered, byID: byID}, nil
}

// Empty returns a seat map without seats, used when a fetch failed.
func Empty(showtimeID int64) *SeatMap {
	return &SeatMap{showtimeID: showtimeID, byID: map[int64]int{}}
}

// ShowtimeID returns the showtime the map belongs to.
func (m *SeatMap) ShowtimeID() int64 { return m.showtimeID }

// Len returns the number of seats.
func (m *SeatMap) Len() int { return len(m.seats) }

// Seats returns a copy of the ordered seats.
func (m *SeatMap) Seats() []Seat {
	out := make([]Seat, len(m.seats))
	copy(out, m.seats)
	return out
}

// Lookup returns the seat with the given id.
func (m *SeatMap) Lookup(id int64) (Seat, bool) {
	i, ok := m.byID[id]
	if !ok {
		return Seat{}, false
	}
	return m.seats[i], true
}

// GroupByRow returns the seats grouped by row.  Rows are ordered
// lexicographically by label and seats ascending by number.
func (m *SeatMap) GroupByRow() []Row {
	var rows []Row
	for _, s := range m.seats {
		if n := len(rows); n == 0 || rows[n-1].Label != s.RowLabel {
			rows = append(rows, Row{Label: s.RowLabel})
		}
		last := &rows[len(rows)-1]
		last.Seats = append(last.Seats, s)
	}
	return rows
}

// Fetcher retrieves the raw seat list of a showtime from the backend.
type Fetcher interface {
	Seats(ctx context.Context, showtimeID int64) ([]Seat, error)
}

// Loader produces a fresh SeatMap for a showtime.
type Loader interface {
	Load(ctx context.Context, showtimeID int64) (*SeatMap, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, showtimeID int64) (*SeatMap, error)

func (f LoaderFunc) Load(ctx context.Context, showtimeID int64) (*SeatMap, error) {
	return f(ctx, showtimeID)
}

// NewLoader builds a Loader over f.  Every call performs a fresh fetch.
func NewLoader(f Fetcher) Loader {
	return LoaderFunc(func(ctx context.Context, showtimeID int64) (*SeatMap, error) {
		seats, err := f.Seats(ctx, showtimeID)
		if err != nil {
			return nil, err
		}
		return New(showtimeID, seats)
	})
}
