package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/iliyamo/filmpass/internal/seatmap"
)

type rawSeat struct {
	ID          json.Number `json:"id"`
	RowLabel    string      `json:"row_label"`
	RowLabelAlt string      `json:"rowLabel"`
	SeatNumber  json.Number `json:"seat_number"`
	SeatNumAlt  json.Number `json:"seatNumber"`
	Status      string      `json:"status"`
}

// Seats fetches the seat list of a showtime.  It implements
// seatmap.Fetcher.
func (c *Client) Seats(ctx context.Context, showtimeID int64) ([]seatmap.Seat, error) {
	const op = "get seats"
	body, _, err := c.do(ctx, call{
		op:     op,
		method: http.MethodGet,
		path:   fmt.Sprintf("/showtimes/%d/seats", showtimeID),
	})
	if err != nil {
		return nil, err
	}
	return parseSeats(op, body)
}

// parseSeats accepts either a bare array or an object with a "seats" array.
func parseSeats(op string, body []byte) ([]seatmap.Seat, error) {
	var raws []rawSeat
	if err := json.Unmarshal(body, &raws); err != nil {
		var wrapped struct {
			Seats []rawSeat `json:"seats"`
		}
		if err2 := json.Unmarshal(body, &wrapped); err2 != nil || wrapped.Seats == nil {
			return nil, malformed(op, "seat list is not an array")
		}
		raws = wrapped.Seats
	}

	seats := make([]seatmap.Seat, 0, len(raws))
	for i, r := range raws {
		id, err := r.ID.Int64()
		if err != nil {
			return nil, malformed(op, "seat %d has invalid id %q", i, r.ID)
		}
		row := strings.TrimSpace(r.RowLabel)
		if row == "" {
			row = strings.TrimSpace(r.RowLabelAlt)
		}
		numRaw := r.SeatNumber
		if numRaw == "" {
			numRaw = r.SeatNumAlt
		}
		num, err := strconv.Atoi(numRaw.String())
		if err != nil || row == "" {
			return nil, malformed(op, "seat %d has no row/number", id)
		}
		st, err := seatmap.ParseStatus(r.Status)
		if err != nil {
			return nil, malformed(op, "seat %d: %v", id, err)
		}
		seats = append(seats, seatmap.Seat{ID: id, RowLabel: row, SeatNumber: num, Status: st})
	}
	return seats, nil
}
