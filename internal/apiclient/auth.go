package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/iliyamo/filmpass/internal/session"
)

// Credentials are sent to /auth/login and /auth/register.  Name is only
// used on registration.
type Credentials struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges credentials for a token and user profile.
func (c *Client) Login(ctx context.Context, cr Credentials) (session.Identity, error) {
	cr.Name = ""
	return c.authenticate(ctx, "login", "/auth/login", cr)
}

// Register creates an account and signs it in.
func (c *Client) Register(ctx context.Context, cr Credentials) (session.Identity, error) {
	return c.authenticate(ctx, "register", "/auth/register", cr)
}

func (c *Client) authenticate(ctx context.Context, op, path string, cr Credentials) (session.Identity, error) {
	body, _, err := c.do(ctx, call{op: op, method: http.MethodPost, path: path, body: cr})
	if err != nil {
		return session.Identity{}, err
	}
	var raw struct {
		Token string          `json:"token"`
		User  json.RawMessage `json:"user"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return session.Identity{}, malformed(op, "auth response: %v", err)
	}
	if strings.TrimSpace(raw.Token) == "" {
		return session.Identity{}, malformed(op, "auth response has no token")
	}
	u, err := parseUser(raw.User)
	if err != nil {
		return session.Identity{}, malformed(op, "auth user: %v", err)
	}
	return session.Identity{Token: raw.Token, User: u}, nil
}

// Me returns the profile of the bearer of id's token.
func (c *Client) Me(ctx context.Context, id *session.Identity) (session.User, error) {
	const op = "me"
	if id == nil || id.Token == "" {
		return session.User{}, &APIError{Op: op, Status: http.StatusUnauthorized, Message: "Not authenticated", Kind: ErrAuth}
	}
	body, _, err := c.do(ctx, call{op: op, method: http.MethodGet, path: "/auth/me", identity: id})
	if err != nil {
		return session.User{}, err
	}
	var wrapped struct {
		User json.RawMessage `json:"user"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && len(wrapped.User) > 0 {
		body = wrapped.User
	}
	u, err := parseUser(body)
	if err != nil {
		return session.User{}, malformed(op, "me: %v", err)
	}
	return u, nil
}

func parseUser(raw json.RawMessage) (session.User, error) {
	var u struct {
		ID    json.Number `json:"id"`
		Name  string      `json:"name"`
		Email string      `json:"email"`
		Role  string      `json:"role"`
	}
	if len(raw) == 0 {
		return session.User{}, nil
	}
	if err := json.Unmarshal(raw, &u); err != nil {
		return session.User{}, err
	}
	out := session.User{Name: u.Name, Email: u.Email, Role: strings.ToUpper(u.Role)}
	if u.ID != "" {
		id, err := u.ID.Int64()
		if err != nil {
			return session.User{}, err
		}
		out.ID = id
	}
	return out, nil
}
