package realtime

import (
	"context"
	"errors"
	"time"

	"github.com/riskibarqy/matchpulse/internal/domain/match"
	"github.com/riskibarqy/matchpulse/internal/platform/logging"
)

const resubscribeDelay = 200 * time.Millisecond

// Handler processes one change event for an in-process consumer.
type Handler func(ctx context.Context, event match.ChangeEvent) error

// Consume feeds events from channel into handler until ctx ends or the hub
// closes. A consumer dropped for being slow subscribes again; events missed
// in between are not replayed.
func Consume(ctx context.Context, hub *Hub, channel string, name string, logger *logging.Logger, handler Handler) error {
	if logger == nil {
		logger = logging.Default()
	}

	for {
		sub, err := hub.Subscribe(channel)
		if err != nil {
			if errors.Is(err, ErrHubClosed) {
				return nil
			}
			return err
		}

		dropped := drain(ctx, hub, sub, name, logger, handler)
		if !dropped {
			return nil
		}

		logger.WarnContext(ctx, "consumer fell behind, resubscribing",
			"consumer", name,
			"channel", channel,
		)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(resubscribeDelay):
		}
	}
}

func drain(ctx context.Context, hub *Hub, sub *Subscription, name string, logger *logging.Logger, handler Handler) bool {
	defer hub.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return false
		case event, ok := <-sub.C():
			if !ok {
				return sub.Dropped() && ctx.Err() == nil
			}
			if err := handler(ctx, event); err != nil {
				logger.WarnContext(ctx, "consumer failed to handle change",
					"consumer", name,
					"match_id", event.MatchID,
					"change_type", event.Type,
					"error", err,
				)
			}
		}
	}
}
