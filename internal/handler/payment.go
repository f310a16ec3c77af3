package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/filmpass/internal/checkout"
)

// PaymentBridge is the return side of the checkout bridge.
type PaymentBridge interface {
	Verify(ctx context.Context, sessionID string) (checkout.Confirmation, error)
	Cancel(ctx context.Context, sessionID string) checkout.Cancellation
}

// PaymentHandler serves the pages the payment provider redirects back to.
// Both work from the session_id query parameter alone.
type PaymentHandler struct {
	Bridge PaymentBridge
}

// ConfirmationView is a verified booking with its total spelled out.
type ConfirmationView struct {
	checkout.Confirmation
	TotalCents   int64  `json:"total_cents"`
	TotalDisplay string `json:"total_display"`
}

// Success handles GET /v1/payment/success?session_id=.  A payment still in
// flight answers 202 so the page can poll.
func (h *PaymentHandler) Success(c echo.Context) error {
	sid := strings.TrimSpace(c.QueryParam("session_id"))
	if sid == "" {
		return badRequest(c, "missing session_id")
	}
	conf, err := h.Bridge.Verify(c.Request().Context(), sid)
	if err != nil {
		var ve *checkout.VerificationError
		if errors.As(err, &ve) && ve.Pending {
			return c.JSON(http.StatusAccepted, echo.Map{
				"status":     "PENDING",
				"session_id": sid,
				"message":    "Your payment is still being processed. This page will update shortly.",
			})
		}
		return errorJSON(c, err, echo.Map{"session_id": sid})
	}
	return c.JSON(http.StatusOK, ConfirmationView{
		Confirmation: conf,
		TotalCents:   conf.Total.Minor(),
		TotalDisplay: conf.Total.EUR(),
	})
}

// Cancel handles GET /v1/payment/cancel?session_id=.  Cancelling is an
// outcome, so it always answers 200.
func (h *PaymentHandler) Cancel(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Bridge.Cancel(c.Request().Context(), c.QueryParam("session_id")))
}
