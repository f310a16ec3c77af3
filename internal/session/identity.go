// Package session keeps the identity of the person behind a browser
// session.  A nil *Identity means the visitor is a guest.
package session

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// User is the profile returned by the backend on login.
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Identity pairs the backend bearer token with the user it belongs to.
type Identity struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// ExpiresAt reads the exp claim of the bearer token.  The signature is
// not checked here; the backend verifies the token on every call.  ok is
// false when the token is not a JWT or has no exp claim.
func (i *Identity) ExpiresAt() (exp time.Time, ok bool) {
	if i == nil || i.Token == "" {
		return time.Time{}, false
	}
	tok, _, err := jwt.NewParser().ParseUnverified(i.Token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	nd, err := tok.Claims.GetExpirationTime()
	if err != nil || nd == nil {
		return time.Time{}, false
	}
	return nd.Time, true
}

// Expired reports whether the bearer token is past its exp claim.
// Tokens without a readable expiry never expire on the client side.
func (i *Identity) Expired(now time.Time) bool {
	exp, ok := i.ExpiresAt()
	return ok && !now.Before(exp)
}

// Source yields the identity to use for an outbound call.  It is read at
// the moment the identity is needed and never cached by callers.
type Source interface {
	Current(ctx context.Context) (*Identity, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (*Identity, error)

func (f SourceFunc) Current(ctx context.Context) (*Identity, error) { return f(ctx) }

// Guest is a Source that always reports no identity.
var Guest Source = SourceFunc(func(context.Context) (*Identity, error) { return nil, nil })

// Bind returns a Source reading sessionID from store on every call.
func Bind(store Store, sessionID string) Source {
	return SourceFunc(func(ctx context.Context) (*Identity, error) {
		return store.Get(ctx, sessionID)
	})
}
