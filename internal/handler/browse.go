package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/filmpass/internal/apiclient"
)

// Catalog is the read-only slice of the API client used for browsing.
type Catalog interface {
	Theaters(ctx context.Context) ([]apiclient.Theater, error)
	Movies(ctx context.Context) ([]apiclient.Movie, error)
	TheaterMovies(ctx context.Context, theaterID int64) ([]apiclient.Movie, error)
	MovieDetails(ctx context.Context, movieID int64) (apiclient.MovieDetails, error)
}

// BrowseHandler serves the public catalog.  Nothing here needs a session.
type BrowseHandler struct {
	Catalog Catalog
}

// ShowtimeView adds a display price to a showtime.
type ShowtimeView struct {
	apiclient.Showtime
	PriceDisplay string `json:"price_display"`
}

func pathID(c echo.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

// Theaters handles GET /v1/theaters.
func (h *BrowseHandler) Theaters(c echo.Context) error {
	items, err := h.Catalog.Theaters(c.Request().Context())
	if err != nil {
		return errorJSON(c, err, nil)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// TheaterMovies handles GET /v1/theaters/:id/movies.
func (h *BrowseHandler) TheaterMovies(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid theater id")
	}
	items, err := h.Catalog.TheaterMovies(c.Request().Context(), id)
	if err != nil {
		return errorJSON(c, err, nil)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Movies handles GET /v1/movies.
func (h *BrowseHandler) Movies(c echo.Context) error {
	items, err := h.Catalog.Movies(c.Request().Context())
	if err != nil {
		return errorJSON(c, err, nil)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Movie handles GET /v1/movies/:id, returning the movie and its showtimes.
func (h *BrowseHandler) Movie(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid movie id")
	}
	d, err := h.Catalog.MovieDetails(c.Request().Context(), id)
	if err != nil {
		return errorJSON(c, err, nil)
	}
	shows := make([]ShowtimeView, len(d.Showtimes))
	for i, s := range d.Showtimes {
		shows[i] = ShowtimeView{Showtime: s, PriceDisplay: s.Price.EUR()}
	}
	return c.JSON(http.StatusOK, echo.Map{"movie": d.Movie, "showtimes": shows})
}
