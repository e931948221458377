package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

const (
	DefaultDedupWindow     = 500 * time.Millisecond
	DefaultResourceRefresh = 5 * time.Second
)

// ResourceKind groups cache keys that refresh at the same pace. A key's kind
// is the part before its first ':'.
type ResourceKind string

const (
	KindLive     ResourceKind = "live"
	KindUpcoming ResourceKind = "upcoming"
	KindLeague   ResourceKind = "league"
	KindLeagues  ResourceKind = "leagues"
	KindMatch    ResourceKind = "match"
)

// DefaultIntervals returns the refresh interval of every known kind.
func DefaultIntervals() map[ResourceKind]time.Duration {
	return map[ResourceKind]time.Duration{
		KindLive:     2 * time.Second,
		KindUpcoming: 3 * time.Second,
		KindLeague:   10 * time.Second,
		KindLeagues:  30 * time.Second,
		KindMatch:    2 * time.Second,
	}
}

func KindOf(key string) ResourceKind {
	kind, _, _ := strings.Cut(key, ":")
	return ResourceKind(kind)
}

// ResourceConfig holds consumer-side cache defaults. Intervals overrides
// DefaultIntervals per kind; DefaultInterval covers unknown kinds.
type ResourceConfig struct {
	DedupWindow     time.Duration
	DefaultInterval time.Duration
	Intervals       map[ResourceKind]time.Duration
}

// IntervalFor resolves the refresh interval of key.
func (c ResourceConfig) IntervalFor(key string) time.Duration {
	if interval := c.Intervals[KindOf(key)]; interval > 0 {
		return interval
	}
	return c.DefaultInterval
}

// Snapshot is the consumer view of a cached resource.
type Snapshot[T any] struct {
	Value     T
	HasValue  bool
	Loading   bool
	Err       error
	FetchedAt time.Time
	Stale     bool
}

// FetchFunc loads one resource from upstream.
type FetchFunc func(ctx context.Context) (any, error)

type resourceEntry struct {
	value     any
	hasValue  bool
	err       error
	fetchedAt time.Time
	inFlight  chan struct{}
	refs      int
	lastRef   time.Time
}

func (e *resourceEntry) snapshot() Snapshot[any] {
	return Snapshot[any]{
		Value:     e.value,
		HasValue:  e.hasValue,
		Loading:   e.inFlight != nil,
		Err:       e.err,
		FetchedAt: e.fetchedAt,
		Stale:     e.hasValue && e.err != nil,
	}
}

// ResourceCache is a client-side keyed cache. Concurrent identical keys share
// one upstream fetch, results younger than the dedup window are served
// without a fetch, and a failed refresh keeps the last good value.
type ResourceCache struct {
	mu      sync.Mutex
	entries map[string]*resourceEntry
	cfg     ResourceConfig
	now     func() time.Time
}

func NewResourceCache(cfg ResourceConfig) *ResourceCache {
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = DefaultDedupWindow
	}
	if cfg.DefaultInterval <= 0 {
		cfg.DefaultInterval = DefaultResourceRefresh
	}
	intervals := DefaultIntervals()
	for kind, interval := range cfg.Intervals {
		if interval > 0 {
			intervals[kind] = interval
		}
	}
	cfg.Intervals = intervals
	return &ResourceCache{
		entries: make(map[string]*resourceEntry),
		cfg:     cfg,
		now:     time.Now,
	}
}

func (c *ResourceCache) Config() ResourceConfig {
	return c.cfg
}

// Fetch returns the entry for key, loading it when missing or older than
// the dedup window.
func (c *ResourceCache) Fetch(ctx context.Context, key string, fetch FetchFunc) Snapshot[any] {
	return c.load(ctx, key, fetch, false)
}

// Refresh loads key regardless of age, joining a fetch already in flight.
func (c *ResourceCache) Refresh(ctx context.Context, key string, fetch FetchFunc) Snapshot[any] {
	return c.load(ctx, key, fetch, true)
}

// Peek returns the current entry without fetching.
func (c *ResourceCache) Peek(key string) (Snapshot[any], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return Snapshot[any]{}, false
	}
	return e.snapshot(), true
}

func (c *ResourceCache) Acquire(key string) {
	c.mu.Lock()
	e := c.entryLocked(key)
	e.refs++
	e.lastRef = c.now()
	c.mu.Unlock()
}

func (c *ResourceCache) Release(key string) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok && e.refs > 0 {
		e.refs--
		e.lastRef = c.now()
	}
	c.mu.Unlock()
}

// Sweep evicts unreferenced, idle entries older than the dedup window.
func (c *ResourceCache) Sweep() int {
	now := c.now()
	removed := 0

	c.mu.Lock()
	for key, e := range c.entries {
		if e.refs > 0 || e.inFlight != nil {
			continue
		}
		if now.Sub(e.lastRef) < c.cfg.DedupWindow || now.Sub(e.fetchedAt) < c.cfg.DedupWindow {
			continue
		}
		delete(c.entries, key)
		removed++
	}
	c.mu.Unlock()

	return removed
}

func (c *ResourceCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *ResourceCache) load(ctx context.Context, key string, fetch FetchFunc, force bool) Snapshot[any] {
	c.mu.Lock()
	e := c.entryLocked(key)

	if !force && e.hasValue && e.err == nil && c.now().Sub(e.fetchedAt) < c.cfg.DedupWindow {
		snap := e.snapshot()
		c.mu.Unlock()
		return snap
	}

	if wait := e.inFlight; wait != nil {
		c.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
		}
		c.mu.Lock()
		snap := e.snapshot()
		c.mu.Unlock()
		return snap
	}

	done := make(chan struct{})
	e.inFlight = done
	c.mu.Unlock()

	value, err := fetch(ctx)

	c.mu.Lock()
	switch {
	case err == nil:
		e.value = value
		e.hasValue = true
		e.err = nil
		e.fetchedAt = c.now()
	case ctx.Err() != nil:
		// the caller went away; keep the previous outcome
	default:
		e.err = err
	}
	e.inFlight = nil
	close(done)
	snap := e.snapshot()
	c.mu.Unlock()

	return snap
}

func (c *ResourceCache) entryLocked(key string) *resourceEntry {
	e, ok := c.entries[key]
	if !ok {
		e = &resourceEntry{lastRef: c.now()}
		c.entries[key] = e
	}
	return e
}
