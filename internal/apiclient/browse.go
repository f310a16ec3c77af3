package apiclient

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/iliyamo/filmpass/internal/money"
)

// Theater is a cinema location.
type Theater struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location,omitempty"`
}

// Movie is a catalog entry.
type Movie struct {
	ID              int64  `json:"id"`
	Title           string `json:"title"`
	Description     string `json:"description,omitempty"`
	PosterURL       string `json:"poster_url,omitempty"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
}

// Showtime is one screening of a movie.  Price is per seat.
type Showtime struct {
	ID              int64        `json:"id"`
	ShowDate        string       `json:"show_date"`
	StartTime       string       `json:"start_time"`
	TheaterName     string       `json:"theater_name,omitempty"`
	TheaterLocation string       `json:"theater_location,omitempty"`
	Price           money.Amount `json:"price_cents"`
}

// MovieDetails is a movie together with its showtimes.
type MovieDetails struct {
	Movie     Movie      `json:"movie"`
	Showtimes []Showtime `json:"showtimes"`
}

// Theaters lists all theaters.
func (c *Client) Theaters(ctx context.Context) ([]Theater, error) {
	const op = "list theaters"
	var out []Theater
	err := c.cachedGet(ctx, op, "/theaters", func(body []byte) error {
		if err := decodeList(body, "theaters", &out); err != nil {
			return malformed(op, "theater list: %v", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Movies lists the catalog.
func (c *Client) Movies(ctx context.Context) ([]Movie, error) {
	const op = "list movies"
	var out []Movie
	err := c.cachedGet(ctx, op, "/movies", func(body []byte) error {
		if err := decodeList(body, "movies", &out); err != nil {
			return malformed(op, "movie list: %v", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// TheaterMovies lists the movies playing at one theater.
func (c *Client) TheaterMovies(ctx context.Context, theaterID int64) ([]Movie, error) {
	const op = "list theater movies"
	var out []Movie
	err := c.cachedGet(ctx, op, fmt.Sprintf("/theaters/%d/movies", theaterID), func(body []byte) error {
		if err := decodeList(body, "movies", &out); err != nil {
			return malformed(op, "movie list: %v", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

type rawShowtime struct {
	ID              json.Number `json:"id"`
	ShowDate        string      `json:"show_date"`
	StartTime       string      `json:"start_time"`
	TheaterName     string      `json:"theater_name"`
	TheaterLocation string      `json:"theater_location"`
	Price           money.Raw   `json:"price"`
	PriceCents      money.Raw   `json:"price_cents"`
	TicketPrice     money.Raw   `json:"ticket_price"`
}

// MovieDetails returns a movie and its showtimes.  The backend may send
// showtimes as an array or wrapped in {"showtimes": [...]}.
func (c *Client) MovieDetails(ctx context.Context, movieID int64) (MovieDetails, error) {
	const op = "movie details"
	var out MovieDetails
	err := c.cachedGet(ctx, op, fmt.Sprintf("/movies/%d", movieID), func(body []byte) error {
		d, err := parseMovieDetails(op, body)
		out = d
		return err
	})
	if err != nil {
		return MovieDetails{}, err
	}
	return out, nil
}

func parseMovieDetails(op string, body []byte) (MovieDetails, error) {
	var raw struct {
		Movie     *Movie          `json:"movie"`
		Showtimes json.RawMessage `json:"showtimes"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return MovieDetails{}, malformed(op, "movie details: %v", err)
	}
	if raw.Movie == nil {
		var m Movie
		if err := json.Unmarshal(body, &m); err != nil || m.ID == 0 {
			return MovieDetails{}, malformed(op, "movie details have no movie")
		}
		raw.Movie = &m
	}
	var rawShows []rawShowtime
	if len(raw.Showtimes) > 0 && string(raw.Showtimes) != "null" {
		if err := decodeList(raw.Showtimes, "showtimes", &rawShows); err != nil {
			return MovieDetails{}, malformed(op, "showtimes: %v", err)
		}
	}
	out := MovieDetails{Movie: *raw.Movie, Showtimes: make([]Showtime, 0, len(rawShows))}
	for _, rs := range rawShows {
		id, err := rs.ID.Int64()
		if err != nil {
			return MovieDetails{}, malformed(op, "showtime id %q", rs.ID)
		}
		price, err := showtimePrice(rs)
		if err != nil {
			return MovieDetails{}, malformed(op, "showtime %d price: %v", id, err)
		}
		out.Showtimes = append(out.Showtimes, Showtime{
			ID:              id,
			ShowDate:        rs.ShowDate,
			StartTime:       rs.StartTime,
			TheaterName:     rs.TheaterName,
			TheaterLocation: rs.TheaterLocation,
			Price:           price,
		})
	}
	return out, nil
}

// showtimePrice reads price_cents as minor units and the other fields
// through the amount heuristic.  A showtime without any price is free.
func showtimePrice(rs rawShowtime) (money.Amount, error) {
	if !rs.PriceCents.IsZero() {
		return rs.PriceCents.Minor()
	}
	for _, r := range []money.Raw{rs.Price, rs.TicketPrice} {
		if !r.IsZero() {
			return r.Amount()
		}
	}
	return 0, nil
}

// decodeList accepts a bare JSON array or an object holding it under key.
func decodeList(body []byte, key string, out any) error {
	if err := json.Unmarshal(body, out); err == nil {
		return nil
	}
	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return err
	}
	inner, ok := wrapped[key]
	if !ok {
		return fmt.Errorf("no %q array", key)
	}
	return json.Unmarshal(inner, out)
}
