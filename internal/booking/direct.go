package booking

import (
	"context"
	"fmt"

	"github.com/iliyamo/filmpass/internal/apiclient"
	"github.com/iliyamo/filmpass/internal/session"
)

// BookingCreator is the slice of the API client used for direct bookings.
type BookingCreator interface {
	CreateBooking(ctx context.Context, id *session.Identity, p apiclient.BookingPayload) (apiclient.BookingReceipt, error)
}

// DirectSubmitter books seats with a single POST /bookings call.
type DirectSubmitter struct {
	api BookingCreator
}

// NewDirectSubmitter returns a Submitter that books through api.
func NewDirectSubmitter(api BookingCreator) *DirectSubmitter {
	return &DirectSubmitter{api: api}
}

// Submit sends req as one booking.  Total is left zero unless the backend
// reported one; a FAILED receipt is returned as ErrBookingFailed.
func (d *DirectSubmitter) Submit(ctx context.Context, req Request) (Result, error) {
	rec, err := d.api.CreateBooking(ctx, req.Identity, apiclient.BookingPayload{
		ShowtimeID:     req.ShowtimeID,
		SeatIDs:        req.SeatIDs(),
		TicketType:     string(req.TicketType),
		UserEmail:      req.Contact.Email,
		UserName:       req.Contact.Name,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		return Result{}, err
	}
	status := Status(rec.Status)
	switch status {
	case "":
		status = StatusConfirmed
	case StatusFailed:
		return Result{}, fmt.Errorf("booking %s: %w", rec.BookingID, ErrBookingFailed)
	}
	return Result{
		BookingID: rec.BookingID,
		Status:    status,
		Total:     rec.Total,
		Seats:     req.Labels(),
	}, nil
}
