package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/filmpass/internal/apiclient"
	"github.com/iliyamo/filmpass/internal/booking"
	"github.com/iliyamo/filmpass/internal/checkout"
)

func TestStatusFor(t *testing.T) {
	testCases := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"validation", &booking.ValidationError{Field: "email", Reason: "email is required"}, http.StatusBadRequest, "email: email is required"},
		{"sign in required", booking.ErrAuth, http.StatusUnauthorized, "please log in to book seats"},
		{"booked seat", fmt.Errorf("seat A1: %w", booking.ErrSeatBooked), http.StatusConflict, "seat is already booked"},
		{"backend conflict", &apiclient.APIError{Status: 409, Message: "Seat A1 is taken", Kind: apiclient.ErrSeatUnavailable}, http.StatusConflict, "Seat A1 is taken"},
		{
			"payment init caused by taken seat",
			fmt.Errorf("%w: %w", checkout.ErrPaymentInit, &apiclient.APIError{Message: "Seat A1 is taken", Kind: apiclient.ErrSeatUnavailable}),
			http.StatusConflict, "Seat A1 is taken",
		},
		{"backend failed the booking", fmt.Errorf("booking 9: %w", booking.ErrBookingFailed), http.StatusConflict, "the booking could not be completed, please check your seats and try again"},
		{"payment preflight", fmt.Errorf("%w: %w", checkout.ErrPaymentInit, &booking.ValidationError{Field: "payment", Reason: "ticket price is unknown"}), http.StatusBadRequest, "payment: ticket price is unknown"},
		{"superseded", booking.ErrSuperseded, http.StatusConflict, booking.ErrSuperseded.Error()},
		{"declined", checkout.ErrPaymentDeclined, http.StatusPaymentRequired, "payment was declined"},
		{"not found", &apiclient.APIError{Message: "Movie not found", Kind: apiclient.ErrNotFound}, http.StatusNotFound, "Movie not found"},
		{"network", &apiclient.APIError{Message: "dial tcp: refused", Kind: apiclient.ErrNetwork}, http.StatusServiceUnavailable, "booking service is unreachable, please try again"},
		{"malformed", &apiclient.APIError{Message: "bad json", Kind: apiclient.ErrMalformed}, http.StatusBadGateway, "unexpected response from booking service"},
		{"verification", &checkout.VerificationError{SessionID: "cs_1"}, http.StatusBadGateway, "could not confirm payment"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal error"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			status, msg := statusFor(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.message, msg)
		})
	}
}
