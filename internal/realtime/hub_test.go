package realtime

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/riskibarqy/matchpulse/internal/domain/match"
)

func scoreChange(matchID string, home, away int) match.ChangeEvent {
	return match.ChangeEvent{
		Type:      match.ChangeScoreUpdate,
		MatchID:   matchID,
		Priority:  match.PriorityHigh,
		Payload:   match.ScorePayload{HomeScore: home, AwayScore: away},
		Timestamp: time.Date(2026, 2, 11, 20, 30, 0, 0, time.UTC),
	}
}

func receive(t *testing.T, sub *Subscription) match.ChangeEvent {
	t.Helper()
	select {
	case event, ok := <-sub.C():
		if !ok {
			t.Fatalf("subscription %s closed unexpectedly", sub.ID)
		}
		return event
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting on %s", sub.Channel)
	}
	return match.ChangeEvent{}
}

func expectEmpty(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case event, ok := <-sub.C():
		if ok {
			t.Fatalf("unexpected event on %s: %+v", sub.Channel, event)
		}
	default:
	}
}

func TestHub_PublishFansOutAndMirrorsToAll(t *testing.T) {
	t.Parallel()

	hub := NewHub(8, nil)
	defer hub.Close()

	const perChannel = 5
	var matchSubs, allSubs []*Subscription
	for i := 0; i < perChannel; i++ {
		sub, err := hub.Subscribe("match:100")
		if err != nil {
			t.Fatalf("subscribe match: %v", err)
		}
		matchSubs = append(matchSubs, sub)

		sub, err = hub.Subscribe(match.ChannelAll)
		if err != nil {
			t.Fatalf("subscribe all: %v", err)
		}
		allSubs = append(allSubs, sub)
	}
	other, err := hub.Subscribe("match:200")
	if err != nil {
		t.Fatalf("subscribe other: %v", err)
	}

	if err := hub.PublishChange(scoreChange("100", 1, 0)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	for _, sub := range append(matchSubs, allSubs...) {
		event := receive(t, sub)
		if event.MatchID != "100" || event.Type != match.ChangeScoreUpdate {
			t.Fatalf("unexpected event: %+v", event)
		}
		expectEmpty(t, sub)
	}
	expectEmpty(t, other)

	stats := hub.Stats()
	if stats.Delivered != 2*perChannel || stats.Published != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestHub_LateSubscriberGetsNoReplay(t *testing.T) {
	t.Parallel()

	hub := NewHub(8, nil)
	defer hub.Close()

	if err := hub.PublishChange(scoreChange("100", 1, 0)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	late, err := hub.Subscribe("match:100")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	expectEmpty(t, late)

	if err := hub.PublishChange(scoreChange("100", 2, 0)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	event := receive(t, late)
	if payload := event.Payload.(match.ScorePayload); payload.HomeScore != 2 {
		t.Fatalf("expected only the later event, got %+v", payload)
	}
}

func TestHub_SlowSubscriberIsDisconnected(t *testing.T) {
	t.Parallel()

	hub := NewHub(2, nil)
	defer hub.Close()

	slow, _ := hub.Subscribe("match:100")
	fast, _ := hub.Subscribe("match:100")

	for i := 0; i < 3; i++ {
		if err := hub.PublishChange(scoreChange("100", i, 0)); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
		receive(t, fast)
	}

	received := 0
	for range slow.C() {
		received++
	}
	if received != 2 {
		t.Fatalf("expected slow subscriber to keep its buffered events, got %d", received)
	}
	if !slow.Dropped() {
		t.Fatalf("expected slow subscriber marked as dropped")
	}

	stats := hub.Stats()
	if stats.ActiveSubscriptions != 1 || stats.Disconnected != 1 {
		t.Fatalf("unexpected stats after drop: %+v", stats)
	}
}

func TestHub_UnsubscribeAndCloseAreIdempotent(t *testing.T) {
	t.Parallel()

	hub := NewHub(4, nil)
	sub, _ := hub.Subscribe(match.ChannelAll)

	hub.Unsubscribe(sub)
	hub.Unsubscribe(sub)
	if _, ok := <-sub.C(); ok {
		t.Fatalf("expected closed stream after unsubscribe")
	}

	remaining, _ := hub.Subscribe("match:1")
	hub.Close()
	hub.Close()
	if _, ok := <-remaining.C(); ok {
		t.Fatalf("expected closed stream after hub close")
	}

	if _, err := hub.Subscribe(match.ChannelAll); !errors.Is(err, ErrHubClosed) {
		t.Fatalf("expected ErrHubClosed, got %v", err)
	}
	if err := hub.PublishChange(scoreChange("1", 1, 0)); !errors.Is(err, ErrHubClosed) {
		t.Fatalf("expected ErrHubClosed on publish, got %v", err)
	}
}

func TestHub_RejectsInvalidChannels(t *testing.T) {
	t.Parallel()

	hub := NewHub(4, nil)
	defer hub.Close()

	for _, channel := range []string{"", "match:", "fixtures", " all"} {
		if _, err := hub.Subscribe(channel); !errors.Is(err, ErrInvalidChannel) {
			t.Fatalf("expected ErrInvalidChannel for %q, got %v", channel, err)
		}
	}
}

func TestHub_ConcurrentSubscribePublishUnsubscribe(t *testing.T) {
	t.Parallel()

	hub := NewHub(4, nil)
	defer hub.Close()

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
				_ = hub.PublishChange(scoreChange("100", i, 0))
			}
		}
	}()

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				sub, err := hub.Subscribe("match:100")
				if err != nil {
					t.Errorf("subscribe: %v", err)
					return
				}
				hub.Unsubscribe(sub)
			}
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(stop)
	wg.Wait()

	if stats := hub.Stats(); stats.ActiveSubscriptions != 0 {
		t.Fatalf("expected no active subscriptions, got %d", stats.ActiveSubscriptions)
	}
}

func TestConsume_ResubscribesAfterDrop(t *testing.T) {
	t.Parallel()

	hub := NewHub(1, nil)
	defer hub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var handled atomic.Int32
	var lastHome atomic.Int32
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = Consume(ctx, hub, match.ChannelAll, "test", nil, func(_ context.Context, event match.ChangeEvent) error {
			lastHome.Store(int32(event.Payload.(match.ScorePayload).HomeScore))
			if handled.Add(1) == 1 {
				<-release
			}
			return nil
		})
	}()

	waitFor(t, func() bool { return hub.Stats().ActiveSubscriptions == 1 })

	for i := 0; i < 3; i++ {
		_ = hub.PublishChange(scoreChange("100", i, 0))
	}
	waitFor(t, func() bool { return hub.Stats().Disconnected == 1 })
	close(release)

	waitFor(t, func() bool { return hub.Stats().ActiveSubscriptions == 1 })
	_ = hub.PublishChange(scoreChange("100", 9, 0))
	waitFor(t, func() bool { return lastHome.Load() == 9 })

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
