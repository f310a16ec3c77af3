package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error kinds.  Every error returned by Client wraps one of these so that
// callers can branch with errors.Is.
var (
	// ErrNetwork covers transport failures, 5xx responses and an open
	// circuit.  Re-invoking the same call may succeed.
	ErrNetwork = errors.New("network error")
	// ErrNotFound is returned for 404 responses.
	ErrNotFound = errors.New("not found")
	// ErrSeatUnavailable means the backend rejected a booking because a
	// seat changed status concurrently.  Callers must refresh the seat map
	// rather than retry blindly.
	ErrSeatUnavailable = errors.New("seat unavailable")
	// ErrAuth is returned for 401 and 403 responses.
	ErrAuth = errors.New("authentication failed")
	// ErrValidation is returned when the backend rejects the request body.
	ErrValidation = errors.New("request rejected")
	// ErrMalformed is returned when a 2xx response does not have the
	// expected shape.
	ErrMalformed = errors.New("malformed backend response")
)

// APIError carries the human readable message extracted from the backend
// error envelope together with the failing operation and status code.
type APIError struct {
	Op      string
	Status  int
	Message string
	Kind    error
}

func (e *APIError) Error() string { return e.Message }

func (e *APIError) Unwrap() error { return e.Kind }

// Message returns the user facing message of err when it came from the
// backend, or err.Error() otherwise.
func Message(err error) string {
	var ae *APIError
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	return err.Error()
}

// conflict phrases some backends put in 400 bodies instead of using 409
var conflictHints = []string{"already booked", "not available", "unavailable", "already reserved"}

// decodeError builds an APIError from a non-2xx response.  The message is
// the "error" field of a JSON body when present, the status line otherwise.
func decodeError(op string, status int, body []byte) *APIError {
	msg := ""
	var env struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &env); err == nil {
		msg = strings.TrimSpace(env.Error)
		if msg == "" {
			msg = strings.TrimSpace(env.Message)
		}
	}
	if msg == "" {
		msg = fmt.Sprintf("%d %s", status, http.StatusText(status))
	}
	return &APIError{Op: op, Status: status, Message: msg, Kind: kindFor(status, msg)}
}

func kindFor(status int, msg string) error {
	switch {
	case status == http.StatusConflict:
		return ErrSeatUnavailable
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrAuth
	case status >= 500 || status == http.StatusTooManyRequests || status == http.StatusRequestTimeout:
		return ErrNetwork
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		lower := strings.ToLower(msg)
		for _, h := range conflictHints {
			if strings.Contains(lower, h) {
				return ErrSeatUnavailable
			}
		}
		return ErrValidation
	}
	return ErrValidation
}

func networkError(op string, err error) *APIError {
	return &APIError{Op: op, Message: fmt.Sprintf("%s: %v", op, err), Kind: ErrNetwork}
}

func malformed(op, format string, args ...any) *APIError {
	return &APIError{Op: op, Message: fmt.Sprintf(format, args...), Kind: ErrMalformed}
}
