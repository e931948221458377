package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/riskibarqy/matchpulse/internal/platform/resilience"
)

var errNilLoader = errors.New("cache: nil loader")

type loaded struct {
	value any
	at    time.Time
}

// Store keeps loader results for a fixed TTL on the server side. Concurrent
// misses on one key run the loader once. A TTL <= 0 keeps values until they
// are invalidated.
type Store struct {
	ttl    time.Duration
	now    func() time.Time
	flight resilience.SingleFlight

	mu     sync.Mutex
	values map[string]loaded
}

func NewStore(ttl time.Duration) *Store {
	return &Store{ttl: ttl, now: time.Now, values: make(map[string]loaded)}
}

// GetOrLoad returns the cached value for key or calls load. Errors are not
// cached; the next caller retries. load runs without the caller's
// cancellation and must bound itself. A caller whose ctx ends returns early.
func (s *Store) GetOrLoad(ctx context.Context, key string, load func(context.Context) (any, error)) (any, error) {
	if load == nil {
		return nil, errNilLoader
	}
	if value, ok := s.lookup(key); ok {
		return value, nil
	}

	value, err, _ := s.flight.DoWindow(ctx, key, 0, func(loadCtx context.Context) (any, error) {
		if value, ok := s.lookup(key); ok {
			return value, nil
		}
		value, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.values[key] = loaded{value: value, at: s.now()}
		s.mu.Unlock()
		return value, nil
	})
	return value, err
}

func (s *Store) lookup(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.values[key]
	if !ok || s.stale(v, s.now()) {
		return nil, false
	}
	return v.value, true
}

// Invalidate drops every key starting with prefix and reports how many went.
// An empty prefix clears the store.
func (s *Store) Invalidate(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for key := range s.values {
		if strings.HasPrefix(key, prefix) {
			delete(s.values, key)
			n++
		}
	}
	return n
}

// Sweep drops values past their TTL.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now, n := s.now(), 0
	for key, v := range s.values {
		if s.stale(v, now) {
			delete(s.values, key)
			n++
		}
	}
	return n
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.values)
}

func (s *Store) stale(v loaded, now time.Time) bool {
	return s.ttl > 0 && now.Sub(v.at) >= s.ttl
}
