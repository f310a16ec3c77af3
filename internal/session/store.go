package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store persists identities by browser session id.  Get returns a nil
// identity and no error when nothing is stored or the token has expired.
type Store interface {
	Get(ctx context.Context, sessionID string) (*Identity, error)
	Save(ctx context.Context, sessionID string, id Identity, ttl time.Duration) error
	Clear(ctx context.Context, sessionID string) error
}

const defaultPrefix = "filmpass:identity"

// RedisStore keeps identities as JSON values in Redis.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisStore returns a RedisStore using rdb.  An empty prefix selects
// "filmpass:identity".
func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &RedisStore{rdb: rdb, prefix: prefix, now: time.Now}
}

func (s *RedisStore) key(sessionID string) string { return s.prefix + ":" + sessionID }

func (s *RedisStore) Get(ctx context.Context, sessionID string) (*Identity, error) {
	bs, err := s.rdb.Get(ctx, s.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("identity get: %w", err)
	}
	var id Identity
	if err := json.Unmarshal(bs, &id); err != nil {
		// a corrupt entry is treated as a logged-out session
		_ = s.rdb.Del(ctx, s.key(sessionID)).Err()
		return nil, nil
	}
	if id.Expired(s.now()) {
		_ = s.rdb.Del(ctx, s.key(sessionID)).Err()
		return nil, nil
	}
	return &id, nil
}

func (s *RedisStore) Save(ctx context.Context, sessionID string, id Identity, ttl time.Duration) error {
	bs, err := json.Marshal(id)
	if err != nil {
		return err
	}
	ttl = capTTL(id, ttl, s.now())
	if err := s.rdb.Set(ctx, s.key(sessionID), bs, ttl).Err(); err != nil {
		return fmt.Errorf("identity save: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.rdb.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("identity clear: %w", err)
	}
	return nil
}

// capTTL shortens ttl so that an entry never outlives its token.
// A zero result means no expiry.
func capTTL(id Identity, ttl time.Duration, now time.Time) time.Duration {
	exp, ok := id.ExpiresAt()
	if !ok {
		return ttl
	}
	if left := exp.Sub(now); ttl <= 0 || left < ttl {
		ttl = left
	}
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}

// MemoryStore is an in-process Store used when Redis is not reachable.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]memEntry
	now   func() time.Time
}

type memEntry struct {
	id  Identity
	exp time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]memEntry), now: time.Now}
}

func (s *MemoryStore) Get(_ context.Context, sessionID string) (*Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[sessionID]
	if !ok {
		return nil, nil
	}
	now := s.now()
	if (!e.exp.IsZero() && !now.Before(e.exp)) || e.id.Expired(now) {
		delete(s.items, sessionID)
		return nil, nil
	}
	id := e.id
	return &id, nil
}

func (s *MemoryStore) Save(_ context.Context, sessionID string, id Identity, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	e := memEntry{id: id}
	if ttl = capTTL(id, ttl, now); ttl > 0 {
		e.exp = now.Add(ttl)
	}
	s.items[sessionID] = e
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.items, sessionID)
	s.mu.Unlock()
	return nil
}
