package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/riskibarqy/matchpulse/internal/domain/match"
	"github.com/riskibarqy/matchpulse/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/matchpulse/internal/platform/logging"
	"github.com/riskibarqy/matchpulse/internal/realtime"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []tgbotapi.MessageConfig
	err  error
}

func (s *recordingSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return tgbotapi.Message{}, s.err
	}
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		s.sent = append(s.sent, msg)
	}
	return tgbotapi.Message{MessageID: len(s.sent)}, nil
}

func (s *recordingSender) messages() []tgbotapi.MessageConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]tgbotapi.MessageConfig, len(s.sent))
	copy(out, s.sent)
	return out
}

func newNotifier(t *testing.T, sender Sender, queueSize int) *GoalNotifier {
	t.Helper()
	store := memory.NewMatchStore()
	_, err := store.Upsert(context.Background(), match.Match{
		ID:        "100",
		HomeTeam:  match.Team{ID: 40, Name: "Liverpool"},
		AwayTeam:  match.Team{ID: 50, Name: "Manchester City"},
		HomeScore: 2,
		AwayScore: 1,
		Status:    match.StatusLive,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return NewGoalNotifier(sender, store, NotifierConfig{ChatID: 42, SendInterval: time.Millisecond, QueueSize: queueSize}, logging.NewNop())
}

func goalEvent(detail string) match.ChangeEvent {
	return match.ChangeEvent{
		Type:     match.ChangeEventAdded,
		MatchID:  "100",
		Priority: match.PriorityHigh,
		Payload: match.EventPayload{
			Type:        match.EventTypeGoal,
			Detail:      detail,
			Minute:      45,
			ExtraMinute: 2,
			TeamName:    "Liverpool",
			PlayerName:  "M. Salah",
		},
	}
}

func TestGoalNotifier_Format(t *testing.T) {
	t.Parallel()

	n := newNotifier(t, &recordingSender{}, 1)
	ctx := context.Background()

	tests := []struct {
		name  string
		event match.ChangeEvent
		want  []string
		skip  bool
	}{
		{
			name:  "goal with score",
			event: goalEvent("Normal Goal"),
			want:  []string{"*GOAL*", "Liverpool *2\\-1* Manchester City", "45\\+2'", "M\\. Salah", "\\(Liverpool\\)"},
		},
		{
			name:  "penalty goal keeps detail",
			event: goalEvent("Penalty"),
			want:  []string{"_Penalty_"},
		},
		{
			name:  "missed penalty ignored",
			event: goalEvent("Missed Penalty"),
			skip:  true,
		},
		{
			name: "kickoff",
			event: match.ChangeEvent{Type: match.ChangeStatusChange, MatchID: "100", Payload: match.StatusPayload{
				From: match.StatusUpcoming, To: match.StatusLive, HomeTeam: "Arsenal", AwayTeam: "Chelsea",
			}},
			want: []string{"Kick\\-off", "Arsenal vs Chelsea"},
		},
		{
			name: "full time",
			event: match.ChangeEvent{Type: match.ChangeStatusChange, MatchID: "100", Payload: match.StatusPayload{
				From: match.StatusLive, To: match.StatusFinished, HomeTeam: "Arsenal", AwayTeam: "Chelsea", HomeScore: 3,
			}},
			want: []string{"Full time", "Arsenal *3\\-0* Chelsea"},
		},
		{
			name: "first observation ignored",
			event: match.ChangeEvent{Type: match.ChangeStatusChange, MatchID: "100", Payload: match.StatusPayload{
				To: match.StatusFinished, Appeared: true,
			}},
			skip: true,
		},
		{
			name: "half time ignored",
			event: match.ChangeEvent{Type: match.ChangeStatusChange, MatchID: "100", Payload: match.StatusPayload{
				From: match.StatusLive, To: match.StatusLive,
			}},
			skip: true,
		},
		{
			name:  "score update ignored",
			event: match.ChangeEvent{Type: match.ChangeScoreUpdate, MatchID: "100", Payload: match.ScorePayload{HomeScore: 1}},
			skip:  true,
		},
	}

	for _, tt := range tests {
		text, ok := n.format(ctx, tt.event)
		if tt.skip {
			if ok {
				t.Fatalf("%s: expected no message, got %q", tt.name, text)
			}
			continue
		}
		if !ok {
			t.Fatalf("%s: expected a message", tt.name)
		}
		for _, want := range tt.want {
			if !strings.Contains(text, want) {
				t.Fatalf("%s: %q does not contain %q", tt.name, text, want)
			}
		}
	}
}

func TestGoalNotifier_HandleDropsWhenQueueFull(t *testing.T) {
	t.Parallel()

	n := newNotifier(t, &recordingSender{}, 1)
	ctx := context.Background()

	if err := n.Handle(ctx, goalEvent("Normal Goal")); err != nil {
		t.Fatalf("first handle: %v", err)
	}
	if err := n.Handle(ctx, goalEvent("Normal Goal")); err != nil {
		t.Fatalf("second handle: %v", err)
	}
	if len(n.queue) != 1 {
		t.Fatalf("expected queue to hold one message, got %d", len(n.queue))
	}
}

func TestGoalNotifier_RunSendsAndFlushesOnHubClose(t *testing.T) {
	t.Parallel()

	sender := &recordingSender{}
	n := newNotifier(t, sender, 8)
	hub := realtime.NewHub(8, logging.NewNop())

	done := make(chan error, 1)
	go func() { done <- n.Run(context.Background(), hub) }()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Stats().ActiveSubscriptions == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("notifier did not subscribe")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := hub.PublishChange(goalEvent("Normal Goal")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	for len(sender.messages()) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("goal was not sent")
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.Close()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not stop after hub close")
	}

	msgs := sender.messages()
	if len(msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(msgs))
	}
	if msgs[0].ChatID != 42 || msgs[0].ParseMode != tgbotapi.ModeMarkdownV2 {
		t.Fatalf("unexpected message config %+v", msgs[0])
	}
}

func TestGoalNotifier_SendErrorDoesNotStopLoop(t *testing.T) {
	t.Parallel()

	sender := &recordingSender{err: errors.New("Too Many Requests: retry after 3")}
	n := newNotifier(t, sender, 4)
	ctx := context.Background()

	_ = n.Handle(ctx, goalEvent("Normal Goal"))
	_ = n.Handle(ctx, goalEvent("Penalty"))
	close(n.queue)

	finished := make(chan struct{})
	go func() {
		n.sendLoop(ctx)
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatalf("send loop did not drain the queue")
	}
	if len(n.queue) != 0 {
		t.Fatalf("expected queue drained, got %d", len(n.queue))
	}
}
