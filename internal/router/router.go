// Package router wires handlers onto echo routes.  The session middleware
// is installed on the echo instance itself, so every route here can read
// the browser session and identity.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/filmpass/internal/handler"
	"github.com/iliyamo/filmpass/internal/middleware"
)

// RegisterRoutes registers the health check.
func RegisterRoutes(e *echo.Echo, checks map[string]handler.Check) {
	e.GET("/healthz", handler.Health(checks))
}

// RegisterPublic registers the catalog.  None of these routes care who is
// asking.
func RegisterPublic(e *echo.Echo, b *handler.BrowseHandler) {
	g := e.Group("/v1")
	g.GET("/theaters", b.Theaters)
	g.GET("/theaters/:id/movies", b.TheaterMovies)
	g.GET("/movies", b.Movies)
	g.GET("/movies/:id", b.Movie)
}

// RegisterAuth registers sign-in routes.  limit guards the credential
// endpoints against guessing.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, limit echo.MiddlewareFunc) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register, limit)
	g.POST("/login", a.Login, limit)
	g.POST("/logout", a.Logout)
	g.GET("/me", a.Me, middleware.RequireIdentity())
}
