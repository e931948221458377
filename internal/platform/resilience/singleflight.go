package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// SingleFlight deduplicates concurrent calls for the same key. With a dedup
// window, a successful result is also shared with callers arriving shortly
// after the call finished.
type SingleFlight struct {
	mu    sync.Mutex
	calls map[string]*call
	now   func() time.Time
}

type call struct {
	done       chan struct{}
	val        any
	err        error
	window     time.Duration
	finishedAt time.Time
}

func (c *call) finished() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *call) fresh(now time.Time) bool {
	return c.err == nil && c.window > 0 && now.Sub(c.finishedAt) < c.window
}

func (g *SingleFlight) Do(key string, fn func() (any, error)) (any, error, bool) {
	return g.DoWindow(context.Background(), key, 0, func(context.Context) (any, error) {
		return fn()
	})
}

// DoWindow runs fn once per key. fn gets a context that keeps ctx's values
// but not its cancellation, so one caller going away does not fail the
// others; fn is expected to bound its own runtime. Every caller, the first
// one included, gives up when its own ctx is done.
func (g *SingleFlight) DoWindow(ctx context.Context, key string, window time.Duration, fn func(context.Context) (any, error)) (any, error, bool) {
	g.mu.Lock()
	if g.calls == nil {
		g.calls = make(map[string]*call)
	}
	now := g.clock()

	if c, ok := g.calls[key]; ok {
		if !c.finished() {
			g.mu.Unlock()
			return c.wait(ctx, true)
		}
		if c.fresh(now) {
			g.mu.Unlock()
			return c.val, nil, true
		}
		delete(g.calls, key)
	}
	g.evictExpiredLocked(now)

	c := &call{done: make(chan struct{}), window: window}
	g.calls[key] = c
	g.mu.Unlock()

	go g.run(context.WithoutCancel(ctx), key, c, fn)

	return c.wait(ctx, false)
}

func (g *SingleFlight) run(ctx context.Context, key string, c *call, fn func(context.Context) (any, error)) {
	var (
		val any
		err error
	)
	func() {
		// fn runs off the callers' goroutines; a panic becomes the call's error.
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("singleflight %s: panic: %v", key, r)
			}
		}()
		val, err = fn(ctx)
	}()

	g.mu.Lock()
	c.val, c.err = val, err
	c.finishedAt = g.clock()
	if (c.window <= 0 || c.err != nil) && g.calls[key] == c {
		delete(g.calls, key)
	}
	close(c.done)
	g.mu.Unlock()
}

func (c *call) wait(ctx context.Context, shared bool) (any, error, bool) {
	select {
	case <-c.done:
		return c.val, c.err, shared
	case <-ctx.Done():
		return nil, ctx.Err(), shared
	}
}

// Forget drops any finished or in-flight entry for key.
func (g *SingleFlight) Forget(key string) {
	g.mu.Lock()
	delete(g.calls, key)
	g.mu.Unlock()
}

func (g *SingleFlight) evictExpiredLocked(now time.Time) {
	for key, c := range g.calls {
		if c.finished() && !c.fresh(now) {
			delete(g.calls, key)
		}
	}
}

func (g *SingleFlight) clock() time.Time {
	if g.now != nil {
		return g.now()
	}
	return time.Now()
}
