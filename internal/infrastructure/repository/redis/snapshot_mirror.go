package redis

import (
	"context"
	"fmt"
	"time"

	sonic "github.com/bytedance/sonic"
	goredis "github.com/redis/go-redis/v9"
	"github.com/riskibarqy/matchpulse/internal/domain/match"
	"github.com/riskibarqy/matchpulse/internal/platform/logging"
	"github.com/riskibarqy/matchpulse/internal/realtime"
)

const (
	DefaultStream      = "matches.changes"
	DefaultSnapshotTTL = 6 * time.Hour
	mirrorConsumerName = "redis-mirror"
)

// Writer is the subset of the go-redis client used by the mirror.
type Writer interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *goredis.StatusCmd
	XAdd(ctx context.Context, a *goredis.XAddArgs) *goredis.StringCmd
}

type MirrorConfig struct {
	Stream       string
	StreamMaxLen int64
	SnapshotTTL  time.Duration
}

// SnapshotMirror copies every change into Redis: the latest match snapshot
// under match:<id>:snapshot and the change itself onto a stream.
type SnapshotMirror struct {
	client Writer
	store  match.Store
	cfg    MirrorConfig
	logger *logging.Logger
	now    func() time.Time
}

func NewSnapshotMirror(client Writer, store match.Store, cfg MirrorConfig, logger *logging.Logger) *SnapshotMirror {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Stream == "" {
		cfg.Stream = DefaultStream
	}
	if cfg.SnapshotTTL <= 0 {
		cfg.SnapshotTTL = DefaultSnapshotTTL
	}
	return &SnapshotMirror{
		client: client,
		store:  store,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

func SnapshotKey(matchID string) string {
	return fmt.Sprintf("match:%s:snapshot", matchID)
}

// Run mirrors the global channel until ctx is done or the hub closes.
func (m *SnapshotMirror) Run(ctx context.Context, hub *realtime.Hub) error {
	return realtime.Consume(ctx, hub, match.ChannelAll, mirrorConsumerName, m.logger, m.Handle)
}

func (m *SnapshotMirror) Handle(ctx context.Context, event match.ChangeEvent) error {
	item, ok, err := m.store.Get(ctx, event.MatchID)
	if err != nil {
		return fmt.Errorf("load match %s: %w", event.MatchID, err)
	}
	if ok {
		if err := m.writeSnapshot(ctx, item); err != nil {
			return err
		}
	}
	return m.appendChange(ctx, event)
}

func (m *SnapshotMirror) writeSnapshot(ctx context.Context, item match.Match) error {
	data, err := sonic.Marshal(newSnapshotDocument(item, m.now()))
	if err != nil {
		return fmt.Errorf("marshal snapshot %s: %w", item.ID, err)
	}
	if err := m.client.Set(ctx, SnapshotKey(item.ID), data, m.cfg.SnapshotTTL).Err(); err != nil {
		return fmt.Errorf("write snapshot %s: %w", item.ID, err)
	}
	return nil
}

func (m *SnapshotMirror) appendChange(ctx context.Context, event match.ChangeEvent) error {
	payload, err := sonic.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("marshal change payload %s: %w", event.MatchID, err)
	}

	args := &goredis.XAddArgs{
		Stream: m.cfg.Stream,
		Values: map[string]any{
			"type":      string(event.Type),
			"matchId":   event.MatchID,
			"priority":  string(event.Priority),
			"timestamp": event.Timestamp.UTC().Format(time.RFC3339Nano),
			"payload":   string(payload),
		},
	}
	if m.cfg.StreamMaxLen > 0 {
		args.MaxLen = m.cfg.StreamMaxLen
		args.Approx = true
	}
	if err := m.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("append change %s to %s: %w", event.MatchID, m.cfg.Stream, err)
	}
	return nil
}

type snapshotDocument struct {
	ID            string    `json:"id"`
	LeagueID      int64     `json:"leagueId"`
	LeagueName    string    `json:"leagueName"`
	Season        int       `json:"season"`
	HomeTeam      string    `json:"homeTeam"`
	AwayTeam      string    `json:"awayTeam"`
	HomeScore     int       `json:"homeScore"`
	AwayScore     int       `json:"awayScore"`
	Status        string    `json:"status"`
	StatusCode    string    `json:"statusCode"`
	MinuteElapsed int       `json:"minuteElapsed"`
	KickoffTime   time.Time `json:"kickoffTime"`
	Venue         string    `json:"venue"`
	Events        int       `json:"events"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func newSnapshotDocument(item match.Match, updatedAt time.Time) snapshotDocument {
	return snapshotDocument{
		ID:            item.ID,
		LeagueID:      item.League.ID,
		LeagueName:    item.League.Name,
		Season:        item.League.Season,
		HomeTeam:      item.HomeTeam.Name,
		AwayTeam:      item.AwayTeam.Name,
		HomeScore:     item.HomeScore,
		AwayScore:     item.AwayScore,
		Status:        item.Status.String(),
		StatusCode:    item.StatusCode,
		MinuteElapsed: item.MinuteElapsed,
		KickoffTime:   item.KickoffTime.UTC(),
		Venue:         item.Venue,
		Events:        len(item.Events),
		UpdatedAt:     updatedAt.UTC(),
	}
}
