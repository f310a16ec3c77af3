package apiclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-process cacheStore.
type memStore struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memStore) Get(_ context.Context, key string) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memStore) SetEx(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	case string:
		m.data[key] = v
	}
	return redis.NewStatusResult("OK", nil)
}

func (m *memStore) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

func TestBrowseCache(t *testing.T) {
	var mu sync.Mutex
	body := `not json`
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		hits++
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	store := &memStore{data: map[string]string{}}
	c := New(srv.URL, WithDoer(srv.Client()), WithBrowseCache(newBrowseCache(store, time.Minute, "")))
	ctx := context.Background()

	_, err := c.Theaters(ctx)
	assert.ErrorIs(t, err, ErrMalformed)
	assert.Zero(t, store.len(), "malformed bodies are not cached")

	mu.Lock()
	body = `[{"id":1,"name":"Odeon"}]`
	mu.Unlock()
	got, err := c.Theaters(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Theater{{ID: 1, Name: "Odeon"}}, got)
	assert.Equal(t, 1, store.len())

	got, err = c.Theaters(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Theater{{ID: 1, Name: "Odeon"}}, got)
	assert.Equal(t, 2, hits, "third read is served from the cache")
}

func TestBrowseCacheRefetchesUndecodableEntry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"movies":[{"id":3,"title":"Dune"}]}`)
	}))
	t.Cleanup(srv.Close)
	cache := newBrowseCache(&memStore{data: map[string]string{}}, time.Minute, "")
	cache.set(context.Background(), "/movies", []byte(`{"movies":"oops"}`))
	c := New(srv.URL, WithDoer(srv.Client()), WithBrowseCache(cache))

	got, err := c.Movies(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Movie{{ID: 3, Title: "Dune"}}, got)
}
