package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel/attribute"

	"github.com/riskibarqy/matchpulse/internal/domain/match"
	"github.com/riskibarqy/matchpulse/internal/platform/logging"
)

const defaultSyncWorkers = 8

// ChangePublisher delivers change events to subscribers.
type ChangePublisher interface {
	PublishChange(event match.ChangeEvent) error
}

type SyncResult struct {
	Matches   int
	Changes   int
	Published int
	Failed    int
}

// MatchSyncService applies poll batches to the match store and publishes the
// resulting changes. Store update and publish are serialized per match.
// Matches that leave the live feed are looked up by id so their final state
// is recorded.
type MatchSyncService struct {
	store     match.Store
	feed      FixtureFeed
	publisher ChangePublisher
	archive   *RawArchiver
	workers   int
	logger    *logging.Logger
	locks     *keyedMutex
}

func NewMatchSyncService(store match.Store, feed FixtureFeed, publisher ChangePublisher, archive *RawArchiver, workers int, logger *logging.Logger) *MatchSyncService {
	if workers < 1 {
		workers = defaultSyncWorkers
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &MatchSyncService{
		store:     store,
		feed:      feed,
		publisher: publisher,
		archive:   archive,
		workers:   workers,
		logger:    logger,
		locks:     newKeyedMutex(),
	}
}

func (s *MatchSyncService) HandleBatch(ctx context.Context, batch Batch) {
	if batch.Err != nil {
		return
	}

	ctx, span := childSpan(ctx, "usecase.MatchSyncService.HandleBatch",
		attribute.String("feed.class", batch.Class),
		attribute.Int("feed.fixtures", len(batch.Fixtures)),
	)
	defer span.End()

	if s.archive != nil {
		if _, err := s.archive.Archive(ctx, batch); err != nil {
			s.logger.WarnContext(ctx, "raw payload archive failed", "class", batch.Class, "error", err)
		}
	}

	matches := NormalizeBatch(batch.Fixtures)
	result, err := s.Apply(ctx, matches)
	if err != nil {
		s.logger.ErrorContext(ctx, "apply poll batch failed", "class", batch.Class, "error", err)
		return
	}
	s.logApplied(ctx, batch.Class, result)

	if batch.Class == ClassLive {
		s.resolveDeparted(ctx, matches)
	}
}

// resolveDeparted re-fetches stored live matches missing from a live batch.
// The live feed drops a match once it ends, and no other class asks for
// finished fixtures.
func (s *MatchSyncService) resolveDeparted(ctx context.Context, batch []match.Match) {
	if s.feed == nil {
		return
	}

	stored, err := s.store.List(ctx, match.Filter{Statuses: []match.Status{match.StatusLive}})
	if err != nil {
		s.logger.WarnContext(ctx, "list live matches failed", "error", err)
		return
	}
	present := make(map[string]struct{}, len(batch))
	for _, item := range batch {
		present[item.ID] = struct{}{}
	}
	departed := make([]string, 0)
	for _, item := range stored {
		if _, ok := present[item.ID]; !ok {
			departed = append(departed, item.ID)
		}
	}
	if len(departed) == 0 {
		return
	}
	sort.Strings(departed)

	for start := 0; start < len(departed); start += MaxFeedIDs {
		ids := departed[start:min(start+MaxFeedIDs, len(departed))]
		fetched, err := s.feed.FetchFixtures(ctx, FeedQuery{IDs: ids})
		if err != nil {
			s.logger.WarnContext(ctx, "fetch departed live matches failed",
				"ids", len(ids),
				"error_kind", ErrorKind(err),
				"error", err,
			)
			continue
		}
		result, err := s.Apply(ctx, NormalizeBatch(fetched.Fixtures))
		if err != nil {
			s.logger.ErrorContext(ctx, "apply departed live matches failed", "error", err)
			continue
		}
		s.logApplied(ctx, "live-departed", result)
	}
}

func (s *MatchSyncService) logApplied(ctx context.Context, class string, result SyncResult) {
	if result.Changes == 0 && result.Failed == 0 {
		return
	}
	s.logger.InfoContext(ctx, "poll batch applied",
		"class", class,
		"matches", result.Matches,
		"changes", result.Changes,
		"published", result.Published,
		"failed", result.Failed,
	)
}

// Apply upserts every match and publishes its changes.
func (s *MatchSyncService) Apply(ctx context.Context, matches []match.Match) (SyncResult, error) {
	result := SyncResult{Matches: len(matches)}
	if len(matches) == 0 {
		return result, nil
	}

	workerCount := s.workers
	if workerCount > len(matches) {
		workerCount = len(matches)
	}
	pool, err := ants.NewPool(workerCount)
	if err != nil {
		return SyncResult{}, fmt.Errorf("create sync worker pool: %w", err)
	}
	defer pool.Release()

	var changes, published, failed atomic.Int32
	var workers sync.WaitGroup
	for _, item := range matches {
		item := item
		workers.Add(1)
		if err := pool.Submit(func() {
			defer workers.Done()

			emitted, sent, syncErr := s.syncOne(ctx, item)
			changes.Add(int32(emitted))
			published.Add(int32(sent))
			if syncErr != nil {
				failed.Add(1)
				s.logger.WarnContext(ctx, "sync match failed", "match_id", item.ID, "error", syncErr)
			}
		}); err != nil {
			workers.Done()
			failed.Add(1)
			s.logger.WarnContext(ctx, "submit match sync failed", "match_id", item.ID, "error", err)
		}
	}
	workers.Wait()

	result.Changes = int(changes.Load())
	result.Published = int(published.Load())
	result.Failed = int(failed.Load())
	return result, nil
}

func (s *MatchSyncService) syncOne(ctx context.Context, item match.Match) (int, int, error) {
	unlock := s.locks.Lock(item.ID)
	defer unlock()

	events, err := s.store.Upsert(ctx, item)
	if err != nil {
		return 0, 0, fmt.Errorf("upsert match: %w", err)
	}
	if s.publisher == nil {
		return len(events), 0, nil
	}

	sent := 0
	var firstErr error
	for _, event := range events {
		if err := s.publisher.PublishChange(event); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("publish %s: %w", event.Type, err)
			}
			continue
		}
		sent++
	}
	return len(events), sent, firstErr
}

// NormalizeBatch maps raw fixtures and keeps the last occurrence of each id.
func NormalizeBatch(fixtures []RawFixture) []match.Match {
	if len(fixtures) == 0 {
		return nil
	}

	index := make(map[string]int, len(fixtures))
	out := make([]match.Match, 0, len(fixtures))
	for _, raw := range fixtures {
		if raw.Fixture.ID <= 0 {
			continue
		}
		item := Normalize(raw)
		if pos, ok := index[item.ID]; ok {
			out[pos] = item
			continue
		}
		index[item.ID] = len(out)
		out = append(out, item)
	}
	return out
}

// PruneStale drops matches not observed within retention.
func (s *MatchSyncService) PruneStale(ctx context.Context, retention time.Duration) (int, error) {
	if retention <= 0 {
		return 0, nil
	}
	removed, err := s.store.Prune(ctx, time.Now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("prune match store: %w", err)
	}
	if removed > 0 {
		s.logger.InfoContext(ctx, "pruned stale matches", "removed", removed, "retention", retention.String())
	}
	return removed, nil
}
