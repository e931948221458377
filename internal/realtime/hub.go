package realtime

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	crerr "github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/riskibarqy/matchpulse/internal/domain/match"
	"github.com/riskibarqy/matchpulse/internal/platform/logging"
)

const DefaultSubscriberBuffer = 64

var (
	ErrInvalidChannel = crerr.New("invalid channel")
	ErrHubClosed      = crerr.New("hub closed")
)

// Subscription is one registered listener on a channel. Its stream is closed
// when the subscriber unsubscribes, falls behind, or the hub closes.
type Subscription struct {
	ID        string
	Channel   string
	CreatedAt time.Time

	ch      chan match.ChangeEvent
	mu      sync.Mutex
	closed  bool
	dropped bool
}

func (s *Subscription) C() <-chan match.ChangeEvent {
	return s.ch
}

// Dropped reports whether the hub disconnected this subscription because its
// buffer was full.
func (s *Subscription) Dropped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

func (s *Subscription) trySend(event match.ChangeEvent) (sent bool, open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, false
	}
	select {
	case s.ch <- event:
		return true, true
	default:
		return false, true
	}
}

func (s *Subscription) close(dropped bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	s.closed = true
	s.dropped = dropped
	close(s.ch)
	return true
}

// Stats is a point-in-time view of hub counters.
type Stats struct {
	ActiveSubscriptions int            `json:"activeSubscriptions"`
	Channels            map[string]int `json:"channels"`
	TotalSubscriptions  int64          `json:"totalSubscriptions"`
	Published           int64          `json:"published"`
	Delivered           int64          `json:"delivered"`
	Dropped             int64          `json:"dropped"`
	Disconnected        int64          `json:"disconnected"`
}

// Hub fans change events out to channel subscribers. Publish never blocks on
// a subscriber: a full buffer disconnects it.
type Hub struct {
	mu         sync.RWMutex
	channels   map[string]map[*Subscription]struct{}
	closed     bool
	bufferSize int
	logger     *logging.Logger
	now        func() time.Time

	totalSubscriptions atomic.Int64
	published          atomic.Int64
	delivered          atomic.Int64
	dropped            atomic.Int64
	disconnected       atomic.Int64
}

func NewHub(bufferSize int, logger *logging.Logger) *Hub {
	if bufferSize < 1 {
		bufferSize = DefaultSubscriberBuffer
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Hub{
		channels:   make(map[string]map[*Subscription]struct{}),
		bufferSize: bufferSize,
		logger:     logger,
		now:        time.Now,
	}
}

func ValidateChannel(channel string) error {
	if _, ok := match.ParseChannel(channel); ok && channel == strings.TrimSpace(channel) {
		return nil
	}
	return crerr.Wrapf(ErrInvalidChannel, "channel %q", channel)
}

func (h *Hub) Subscribe(channel string) (*Subscription, error) {
	if err := ValidateChannel(channel); err != nil {
		return nil, err
	}

	sub := &Subscription{
		ID:        uuid.NewString(),
		Channel:   channel,
		CreatedAt: h.now().UTC(),
		ch:        make(chan match.ChangeEvent, h.bufferSize),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrHubClosed
	}
	subs, ok := h.channels[channel]
	if !ok {
		subs = make(map[*Subscription]struct{})
		h.channels[channel] = subs
	}
	subs[sub] = struct{}{}
	h.totalSubscriptions.Add(1)

	return sub, nil
}

// Unsubscribe removes sub and closes its stream. Safe to call repeatedly.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	h.remove(sub, false)
}

// Publish delivers event to every subscriber of channel registered at call
// time. Events for a match channel are mirrored to the all channel.
func (h *Hub) Publish(channel string, event match.ChangeEvent) error {
	if err := ValidateChannel(channel); err != nil {
		return err
	}

	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return ErrHubClosed
	}
	targets := make([]*Subscription, 0, len(h.channels[channel])+len(h.channels[match.ChannelAll]))
	for sub := range h.channels[channel] {
		targets = append(targets, sub)
	}
	if channel != match.ChannelAll {
		for sub := range h.channels[match.ChannelAll] {
			targets = append(targets, sub)
		}
	}
	h.mu.RUnlock()

	h.published.Add(1)

	var slow []*Subscription
	for _, sub := range targets {
		sent, open := sub.trySend(event)
		switch {
		case sent:
			h.delivered.Add(1)
		case open:
			h.dropped.Add(1)
			slow = append(slow, sub)
		}
	}

	for _, sub := range slow {
		if h.remove(sub, true) {
			h.logger.Warn("subscriber buffer full, disconnecting",
				"subscription_id", sub.ID,
				"channel", sub.Channel,
				"match_id", event.MatchID,
			)
		}
	}

	return nil
}

// PublishChange routes a change event to its match channel.
func (h *Hub) PublishChange(event match.ChangeEvent) error {
	return h.Publish(event.Channel(), event)
}

// Close disconnects every subscriber. Safe to call repeatedly.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	channels := h.channels
	h.channels = make(map[string]map[*Subscription]struct{})
	h.mu.Unlock()

	count := 0
	for _, subs := range channels {
		for sub := range subs {
			if sub.close(false) {
				count++
			}
		}
	}
	h.logger.Info("hub closed", "subscriptions", count)
}

func (h *Hub) Stats() Stats {
	h.mu.RLock()
	channels := make(map[string]int, len(h.channels))
	active := 0
	for channel, subs := range h.channels {
		channels[channel] = len(subs)
		active += len(subs)
	}
	h.mu.RUnlock()

	return Stats{
		ActiveSubscriptions: active,
		Channels:            channels,
		TotalSubscriptions:  h.totalSubscriptions.Load(),
		Published:           h.published.Load(),
		Delivered:           h.delivered.Load(),
		Dropped:             h.dropped.Load(),
		Disconnected:        h.disconnected.Load(),
	}
}

func (h *Hub) remove(sub *Subscription, dropped bool) bool {
	h.mu.Lock()
	if subs, ok := h.channels[sub.Channel]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.channels, sub.Channel)
		}
	}
	h.mu.Unlock()

	closed := sub.close(dropped)
	if closed && dropped {
		h.disconnected.Add(1)
	}
	return closed
}
