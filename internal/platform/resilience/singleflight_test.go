package resilience

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSingleFlight_Do(t *testing.T) {
	var g SingleFlight
	var counter int32

	const workers = 20
	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(workers)

	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			<-start
			_, err, _ := g.Do("fixtures-live", func() (any, error) {
				atomic.AddInt32(&counter, 1)
				time.Sleep(20 * time.Millisecond)
				return "ok", nil
			})
			if err != nil {
				t.Errorf("singleflight call failed: %v", err)
			}
		}()
	}

	close(start)
	wg.Wait()

	if got := atomic.LoadInt32(&counter); got != 1 {
		t.Fatalf("expected function to run once, got %d", got)
	}
}

func TestSingleFlight_DoWindowSharesRecentResult(t *testing.T) {
	now := time.Date(2026, 2, 11, 12, 0, 0, 0, time.UTC)
	g := SingleFlight{now: func() time.Time { return now }}
	var counter atomic.Int32
	fn := func(context.Context) (any, error) {
		counter.Add(1)
		return counter.Load(), nil
	}

	first, _, _ := g.DoWindow(context.Background(), "k", 2*time.Second, fn)
	now = now.Add(time.Second)
	second, _, shared := g.DoWindow(context.Background(), "k", 2*time.Second, fn)
	if !shared || first != second {
		t.Fatalf("expected shared result inside window, got %v/%v shared=%v", first, second, shared)
	}

	now = now.Add(2 * time.Second)
	third, _, shared := g.DoWindow(context.Background(), "k", 2*time.Second, fn)
	if shared || third == first {
		t.Fatalf("expected fresh call after window, got %v shared=%v", third, shared)
	}
	if got := counter.Load(); got != 2 {
		t.Fatalf("expected 2 calls, got %d", got)
	}
}

func TestSingleFlight_DoWindowDoesNotCacheErrors(t *testing.T) {
	var g SingleFlight
	var counter atomic.Int32
	fn := func(context.Context) (any, error) {
		counter.Add(1)
		return nil, errors.New("upstream down")
	}

	_, _, _ = g.DoWindow(context.Background(), "k", time.Minute, fn)
	_, _, _ = g.DoWindow(context.Background(), "k", time.Minute, fn)
	if got := counter.Load(); got != 2 {
		t.Fatalf("expected errors to be retried, got %d calls", got)
	}
}

func TestSingleFlight_WaiterHonoursContext(t *testing.T) {
	var g SingleFlight
	release := make(chan struct{})
	started := make(chan struct{})

	go func() {
		_, _, _ = g.DoWindow(context.Background(), "slow", 0, func(context.Context) (any, error) {
			close(started)
			<-release
			return "done", nil
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err, shared := g.DoWindow(ctx, "slow", 0, func(context.Context) (any, error) { return "unexpected", nil })
	if !shared || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancelled waiter, got err=%v shared=%v", err, shared)
	}
	close(release)
}

func TestSingleFlight_CancelledLeaderDoesNotFailWaiters(t *testing.T) {
	var g SingleFlight
	started := make(chan struct{})
	release := make(chan struct{})
	var callErr atomic.Value

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderDone := make(chan error, 1)
	go func() {
		_, err, _ := g.DoWindow(leaderCtx, "fixtures-live", time.Minute, func(ctx context.Context) (any, error) {
			close(started)
			select {
			case <-release:
			case <-ctx.Done():
				callErr.Store(ctx.Err())
				return nil, ctx.Err()
			}
			return "payload", nil
		})
		leaderDone <- err
	}()
	<-started

	waiterDone := make(chan struct{})
	var (
		got    any
		err    error
		shared bool
	)
	go func() {
		defer close(waiterDone)
		got, err, shared = g.DoWindow(context.Background(), "fixtures-live", time.Minute, func(context.Context) (any, error) {
			return "unexpected", nil
		})
	}()

	cancelLeader()
	if leaderErr := <-leaderDone; !errors.Is(leaderErr, context.Canceled) {
		t.Fatalf("expected leader to return its own cancellation, got %v", leaderErr)
	}

	close(release)
	<-waiterDone
	if err != nil || got != "payload" || !shared {
		t.Fatalf("expected waiter to get shared payload, got %v err=%v shared=%v", got, err, shared)
	}
	if v := callErr.Load(); v != nil {
		t.Fatalf("shared call saw cancellation: %v", v)
	}
}

func TestSingleFlight_PanicBecomesError(t *testing.T) {
	var g SingleFlight
	_, err, _ := g.DoWindow(context.Background(), "boom", 0, func(context.Context) (any, error) {
		panic("bad payload")
	})
	if err == nil {
		t.Fatalf("expected panic to surface as error")
	}
}
