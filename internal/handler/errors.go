package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/filmpass/internal/apiclient"
	"github.com/iliyamo/filmpass/internal/booking"
	"github.com/iliyamo/filmpass/internal/checkout"
)

// statusFor maps an error from the booking stack onto an HTTP status and
// the message shown to the user.  Order matters: a payment init failure
// caused by a taken seat is a conflict, not a gateway error.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, booking.ErrValidation):
		var verr *booking.ValidationError
		if errors.As(err, &verr) {
			return http.StatusBadRequest, verr.Error()
		}
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, booking.ErrAuth):
		return http.StatusUnauthorized, "please log in to book seats"
	case errors.Is(err, booking.ErrUnknownSeat):
		return http.StatusBadRequest, "seat is not part of this showtime"
	case errors.Is(err, booking.ErrSeatBooked):
		return http.StatusConflict, "seat is already booked"
	case errors.Is(err, apiclient.ErrSeatUnavailable):
		return http.StatusConflict, apiclient.Message(err)
	case errors.Is(err, booking.ErrBookingFailed):
		return http.StatusConflict, "the booking could not be completed, please check your seats and try again"
	case errors.Is(err, booking.ErrInvalidState), errors.Is(err, booking.ErrSuperseded):
		return http.StatusConflict, err.Error()
	case errors.Is(err, checkout.ErrPaymentDeclined):
		return http.StatusPaymentRequired, "payment was declined"
	case errors.Is(err, apiclient.ErrAuth):
		return http.StatusUnauthorized, apiclient.Message(err)
	case errors.Is(err, apiclient.ErrNotFound):
		return http.StatusNotFound, apiclient.Message(err)
	case errors.Is(err, apiclient.ErrValidation):
		return http.StatusBadRequest, apiclient.Message(err)
	case errors.Is(err, apiclient.ErrNetwork):
		return http.StatusServiceUnavailable, "booking service is unreachable, please try again"
	case errors.Is(err, checkout.ErrPaymentInit):
		return http.StatusBadGateway, err.Error()
	case errors.Is(err, apiclient.ErrMalformed):
		return http.StatusBadGateway, "unexpected response from booking service"
	case errors.Is(err, checkout.ErrVerification):
		return http.StatusBadGateway, "could not confirm payment"
	}
	return http.StatusInternalServerError, "internal error"
}

// errorJSON writes the error envelope.  extra fields are merged in.
func errorJSON(c echo.Context, err error, extra echo.Map) error {
	status, msg := statusFor(err)
	body := echo.Map{"error": msg}
	for k, v := range extra {
		body[k] = v
	}
	return c.JSON(status, body)
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}
