package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/filmpass/internal/session"
)

// SessionCookie names the cookie carrying the browser session id.
const SessionCookie = "fp_session"

const (
	ctxSessionID = "session_id"
	ctxIdentity  = "identity"
)

// SessionOptions configures the session middleware.
type SessionOptions struct {
	Secure bool          // mark the cookie Secure (production, https)
	MaxAge time.Duration // cookie lifetime; zero means 30 days
	Logger *zap.Logger
}

// Session issues an fp_session cookie when the request has none (or a
// malformed one) and loads the identity stored for it.  A store failure is
// logged and the request continues as a guest.
func Session(store session.Store, opts SessionOptions) echo.MiddlewareFunc {
	if opts.MaxAge <= 0 {
		opts.MaxAge = 30 * 24 * time.Hour
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sid := ""
			if ck, err := c.Cookie(SessionCookie); err == nil {
				if _, perr := uuid.Parse(ck.Value); perr == nil {
					sid = ck.Value
				}
			}
			if sid == "" {
				sid = uuid.NewString()
				c.SetCookie(&http.Cookie{
					Name:     SessionCookie,
					Value:    sid,
					Path:     "/",
					MaxAge:   int(opts.MaxAge / time.Second),
					HttpOnly: true,
					Secure:   opts.Secure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			c.Set(ctxSessionID, sid)

			id, err := store.Get(c.Request().Context(), sid)
			if err != nil {
				log.Warn("identity lookup failed", zap.String("session_id", sid), zap.Error(err))
				id = nil
			}
			if id != nil {
				c.Set(ctxIdentity, id)
			}
			return next(c)
		}
	}
}

// SessionID returns the browser session id set by Session.
func SessionID(c echo.Context) string {
	s, _ := c.Get(ctxSessionID).(string)
	return s
}

// CurrentIdentity returns the signed-in identity, or nil for guests.
func CurrentIdentity(c echo.Context) *session.Identity {
	id, _ := c.Get(ctxIdentity).(*session.Identity)
	return id
}

// SetIdentity replaces the identity for the rest of the request, e.g.
// right after login.  A nil id marks the request as guest.
func SetIdentity(c echo.Context, id *session.Identity) {
	c.Set(ctxIdentity, id)
}
