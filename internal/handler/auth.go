package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/filmpass/internal/apiclient"
	"github.com/iliyamo/filmpass/internal/middleware"
	"github.com/iliyamo/filmpass/internal/session"
)

// Accounts is the auth slice of the API client.
type Accounts interface {
	Login(ctx context.Context, cr apiclient.Credentials) (session.Identity, error)
	Register(ctx context.Context, cr apiclient.Credentials) (session.Identity, error)
	Me(ctx context.Context, id *session.Identity) (session.User, error)
}

// AuthHandler proxies sign-in to the backend and keeps the resulting
// identity against the browser session.
type AuthHandler struct {
	API      Accounts
	Store    session.Store
	TTL      time.Duration
	Validate *validator.Validate
	Log      *zap.Logger
}

type loginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type registerReq struct {
	Name     string `json:"name" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// Login handles POST /v1/auth/login.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := h.Validate.Struct(req); err != nil {
		return badRequest(c, "a valid email and password are required")
	}
	id, err := h.API.Login(c.Request().Context(), apiclient.Credentials{Email: req.Email, Password: req.Password})
	return h.signIn(c, id, err, http.StatusOK)
}

// Register handles POST /v1/auth/register.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := h.Validate.Struct(req); err != nil {
		return badRequest(c, "name, a valid email and a password of at least 6 characters are required")
	}
	id, err := h.API.Register(c.Request().Context(), apiclient.Credentials{Name: req.Name, Email: req.Email, Password: req.Password})
	return h.signIn(c, id, err, http.StatusCreated)
}

func (h *AuthHandler) signIn(c echo.Context, id session.Identity, err error, status int) error {
	if err != nil {
		return errorJSON(c, err, nil)
	}
	sid := middleware.SessionID(c)
	if err := h.Store.Save(c.Request().Context(), sid, id, h.TTL); err != nil {
		h.Log.Error("save identity", zap.String("session_id", sid), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not keep you signed in"})
	}
	middleware.SetIdentity(c, &id)
	return c.JSON(status, echo.Map{"user": id.User})
}

// Logout handles POST /v1/auth/logout.  Logging out a guest is a no-op.
func (h *AuthHandler) Logout(c echo.Context) error {
	sid := middleware.SessionID(c)
	if err := h.Store.Clear(c.Request().Context(), sid); err != nil {
		h.Log.Warn("clear identity", zap.String("session_id", sid), zap.Error(err))
	}
	middleware.SetIdentity(c, nil)
	return c.NoContent(http.StatusNoContent)
}

// Me handles GET /v1/auth/me.  The profile is refreshed from the backend;
// a token the backend no longer accepts signs the session out.
func (h *AuthHandler) Me(c echo.Context) error {
	id := middleware.CurrentIdentity(c)
	u, err := h.API.Me(c.Request().Context(), id)
	switch {
	case errors.Is(err, apiclient.ErrAuth):
		_ = h.Store.Clear(c.Request().Context(), middleware.SessionID(c))
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "session expired, please log in again"})
	case errors.Is(err, apiclient.ErrNetwork):
		// stale profile beats no profile while the backend is down
		return c.JSON(http.StatusOK, echo.Map{"user": id.User, "stale": true})
	case err != nil:
		return errorJSON(c, err, nil)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": u})
}
