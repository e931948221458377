package cache

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Resource keeps one cache key fresh on an interval for a single consumer.
type Resource[T any] struct {
	rc       *ResourceCache
	key      string
	interval time.Duration
	fetch    func(ctx context.Context) (T, error)

	mu       sync.Mutex
	snap     Snapshot[T]
	onUpdate func(Snapshot[T])
	cancel   context.CancelFunc
	started  bool
	stopped  bool
	wg       sync.WaitGroup
}

// Watch binds key to fetch. A non-positive interval uses the interval of the
// key's kind.
func Watch[T any](rc *ResourceCache, key string, interval time.Duration, fetch func(ctx context.Context) (T, error)) *Resource[T] {
	if interval <= 0 {
		interval = rc.Config().IntervalFor(key)
	}
	return &Resource[T]{
		rc:       rc,
		key:      key,
		interval: interval,
		fetch:    fetch,
	}
}

func (r *Resource[T]) Key() string {
	return r.key
}

func (r *Resource[T]) Interval() time.Duration {
	return r.interval
}

// OnUpdate registers a callback fired after every load. Set it before Start.
func (r *Resource[T]) OnUpdate(fn func(Snapshot[T])) {
	r.mu.Lock()
	r.onUpdate = fn
	r.mu.Unlock()
}

// Start loads immediately and then on every interval until Stop or ctx ends.
func (r *Resource[T]) Start(ctx context.Context) {
	r.mu.Lock()
	if r.started || r.stopped {
		r.mu.Unlock()
		return
	}
	r.started = true
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.snap.Loading = true
	r.mu.Unlock()

	r.rc.Acquire(r.key)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.run(runCtx)
	}()
}

func (r *Resource[T]) run(ctx context.Context) {
	r.load(ctx, false)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.load(ctx, false)
		}
	}
}

// Refresh forces a load now and returns the resulting snapshot.
func (r *Resource[T]) Refresh(ctx context.Context) Snapshot[T] {
	r.load(ctx, true)
	return r.Snapshot()
}

func (r *Resource[T]) Snapshot() Snapshot[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap
}

// Stop cancels the timer and any in-flight wait and releases the key. Safe to
// call more than once.
func (r *Resource[T]) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	started := r.started
	cancel := r.cancel
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
	if started {
		r.rc.Release(r.key)
	}
}

func (r *Resource[T]) load(ctx context.Context, force bool) {
	fetch := func(ctx context.Context) (any, error) {
		return r.fetch(ctx)
	}

	var raw Snapshot[any]
	if force {
		raw = r.rc.Refresh(ctx, r.key, fetch)
	} else {
		raw = r.rc.Fetch(ctx, r.key, fetch)
	}
	if ctx.Err() != nil {
		return
	}

	next := Snapshot[T]{
		HasValue:  raw.HasValue,
		Loading:   false,
		Err:       raw.Err,
		FetchedAt: raw.FetchedAt,
		Stale:     raw.Stale,
	}
	if raw.HasValue {
		value, ok := raw.Value.(T)
		if !ok {
			next.HasValue = false
			next.Err = fmt.Errorf("cache key %q holds %T", r.key, raw.Value)
		} else {
			next.Value = value
		}
	}

	r.mu.Lock()
	if r.stopped && !force {
		r.mu.Unlock()
		return
	}
	r.snap = next
	onUpdate := r.onUpdate
	r.mu.Unlock()

	if onUpdate != nil {
		onUpdate(next)
	}
}
