package booking

import (
	"context"
	"sync"
	"time"
)

// Factory builds the machine of a new browser session.
type Factory func(sessionID string) *Machine

type slot struct {
	m        *Machine
	lastUsed time.Time
}

// Registry keeps one Machine per browser session and forgets sessions
// that stayed idle longer than the configured timeout.
type Registry struct {
	mu      sync.Mutex
	slots   map[string]*slot
	factory Factory
	idle    time.Duration
	now     func() time.Time
}

// NewRegistry returns a Registry building machines with factory.  A
// non-positive idle defaults to 30 minutes.
func NewRegistry(factory Factory, idle time.Duration) *Registry {
	if idle <= 0 {
		idle = 30 * time.Minute
	}
	return &Registry{slots: map[string]*slot{}, factory: factory, idle: idle, now: time.Now}
}

// Get returns the machine of sessionID, creating it on first use.
func (r *Registry) Get(sessionID string) *Machine {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[sessionID]
	if !ok {
		s = &slot{m: r.factory(sessionID)}
		r.slots[sessionID] = s
	}
	s.lastUsed = r.now()
	return s.m
}

// Forget drops the machine of sessionID.
func (r *Registry) Forget(sessionID string) {
	r.mu.Lock()
	delete(r.slots, sessionID)
	r.mu.Unlock()
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.slots)
}

// Sweep evicts idle machines and returns how many were removed.  Machines
// with a submission in flight are kept.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-r.idle)
	n := 0
	for id, s := range r.slots {
		if s.lastUsed.After(cutoff) {
			continue
		}
		if s.m.Snapshot().State == Submitting {
			continue
		}
		delete(r.slots, id)
		n++
	}
	return n
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.Sweep()
		}
	}
}
