package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sourcegraph/conc"
	"golang.org/x/time/rate"

	"github.com/riskibarqy/matchpulse/internal/domain/match"
	"github.com/riskibarqy/matchpulse/internal/platform/logging"
	"github.com/riskibarqy/matchpulse/internal/realtime"
)

const (
	// Telegram allows roughly one message per second per chat.
	defaultSendInterval = time.Second
	defaultQueueSize    = 100
	consumerName        = "telegram-notifier"
)

// Sender is the part of tgbotapi.BotAPI the notifier needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type NotifierConfig struct {
	ChatID       int64
	SendInterval time.Duration
	QueueSize    int
}

// NewBot connects to the Bot API and verifies the token.
func NewBot(token string) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(strings.TrimSpace(token))
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	bot.Debug = false
	return bot, nil
}

// GoalNotifier posts goals, kickoffs and full-time results to one chat.
// Messages are queued and sent no faster than SendInterval; when the queue
// is full new messages are dropped.
type GoalNotifier struct {
	sender  Sender
	store   match.Store
	chatID  int64
	limiter *rate.Limiter
	queue   chan string
	logger  *logging.Logger
}

func NewGoalNotifier(sender Sender, store match.Store, cfg NotifierConfig, logger *logging.Logger) *GoalNotifier {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.SendInterval <= 0 {
		cfg.SendInterval = defaultSendInterval
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	return &GoalNotifier{
		sender:  sender,
		store:   store,
		chatID:  cfg.ChatID,
		limiter: rate.NewLimiter(rate.Every(cfg.SendInterval), 1),
		queue:   make(chan string, cfg.QueueSize),
		logger:  logger,
	}
}

// Run consumes the global channel and sends queued messages until ctx ends
// or the hub closes. Messages still queued when the hub closes are flushed.
func (n *GoalNotifier) Run(ctx context.Context, hub *realtime.Hub) error {
	var wg conc.WaitGroup
	wg.Go(func() {
		n.sendLoop(ctx)
	})

	err := realtime.Consume(ctx, hub, match.ChannelAll, consumerName, n.logger, n.Handle)
	close(n.queue)
	wg.Wait()
	return err
}

// Handle turns a change into a message and queues it. Changes that are not
// worth a notification are ignored.
func (n *GoalNotifier) Handle(ctx context.Context, event match.ChangeEvent) error {
	text, ok := n.format(ctx, event)
	if !ok {
		return nil
	}

	select {
	case n.queue <- text:
		return nil
	default:
		n.logger.WarnContext(ctx, "telegram queue full, dropping message",
			"match_id", event.MatchID,
			"change_type", event.Type,
		)
		return nil
	}
}

func (n *GoalNotifier) sendLoop(ctx context.Context) {
	for text := range n.queue {
		if err := n.limiter.Wait(ctx); err != nil {
			return
		}

		msg := tgbotapi.NewMessage(n.chatID, text)
		msg.ParseMode = tgbotapi.ModeMarkdownV2
		msg.DisableWebPagePreview = true
		if _, err := n.sender.Send(msg); err != nil {
			n.logger.ErrorContext(ctx, "telegram send failed", "chat_id", n.chatID, "error", err)
			continue
		}
		n.logger.DebugContext(ctx, "telegram message sent", "chat_id", n.chatID, "queue_length", len(n.queue))
	}
}

func (n *GoalNotifier) format(ctx context.Context, event match.ChangeEvent) (string, bool) {
	switch payload := event.Payload.(type) {
	case match.EventPayload:
		if !event.IsGoal() {
			return "", false
		}
		return n.formatGoal(ctx, event.MatchID, payload), true
	case match.StatusPayload:
		if payload.Appeared {
			return "", false
		}
		switch {
		case payload.To == match.StatusLive && payload.From == match.StatusUpcoming:
			return formatKickoff(payload), true
		case payload.To == match.StatusFinished:
			return formatFullTime(payload), true
		}
	}
	return "", false
}

func (n *GoalNotifier) formatGoal(ctx context.Context, matchID string, goal match.EventPayload) string {
	var b strings.Builder
	b.WriteString("⚽ *GOAL*")
	if item, ok, err := n.store.Get(ctx, matchID); err == nil && ok {
		b.WriteString("\n")
		b.WriteString(scoreLine(item.HomeTeam.Name, item.AwayTeam.Name, item.HomeScore, item.AwayScore))
	}
	b.WriteString("\n")
	b.WriteString(escapeMarkdown(minuteLabel(goal.Minute, goal.ExtraMinute)))
	if goal.PlayerName != "" {
		b.WriteString(" ")
		b.WriteString(escapeMarkdown(goal.PlayerName))
	}
	if goal.TeamName != "" {
		b.WriteString(" ")
		b.WriteString(escapeMarkdown("(" + goal.TeamName + ")"))
	}
	if goal.Detail != "" && !strings.EqualFold(goal.Detail, "Normal Goal") {
		b.WriteString(" _")
		b.WriteString(escapeMarkdown(goal.Detail))
		b.WriteString("_")
	}
	return b.String()
}

func formatKickoff(status match.StatusPayload) string {
	return "🟢 *Kick\\-off*\n" + escapeMarkdown(status.HomeTeam+" vs "+status.AwayTeam)
}

func formatFullTime(status match.StatusPayload) string {
	return "🏁 *Full time*\n" + scoreLine(status.HomeTeam, status.AwayTeam, status.HomeScore, status.AwayScore)
}

func scoreLine(home, away string, homeScore, awayScore int) string {
	return fmt.Sprintf("%s *%d\\-%d* %s", escapeMarkdown(home), homeScore, awayScore, escapeMarkdown(away))
}

func minuteLabel(minute, extra int) string {
	if extra > 0 {
		return fmt.Sprintf("%d+%d'", minute, extra)
	}
	return fmt.Sprintf("%d'", minute)
}

func escapeMarkdown(text string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, text)
}
