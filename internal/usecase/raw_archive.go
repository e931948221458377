package usecase

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.opentelemetry.io/otel/attribute"

	"github.com/riskibarqy/matchpulse/internal/domain/rawdata"
	"github.com/riskibarqy/matchpulse/internal/platform/logging"
)

const FeedSource = "api-football"

// RawArchiver stores raw feed bodies, skipping writes when the body hash
// matches the last stored one for the endpoint.
type RawArchiver struct {
	repo   rawdata.Repository
	logger *logging.Logger

	mu     sync.Mutex
	hashes map[string]string
}

func NewRawArchiver(repo rawdata.Repository, logger *logging.Logger) *RawArchiver {
	if logger == nil {
		logger = logging.Default()
	}
	return &RawArchiver{
		repo:   repo,
		logger: logger,
		hashes: make(map[string]string),
	}
}

// Archive returns true when the payload was written.
func (a *RawArchiver) Archive(ctx context.Context, batch Batch) (bool, error) {
	if a == nil || a.repo == nil || len(batch.Raw) == 0 || batch.Endpoint == "" {
		return false, nil
	}

	ctx, span := childSpan(ctx, "usecase.RawArchiver.Archive",
		attribute.String("feed.class", batch.Class),
		attribute.String("feed.endpoint", batch.Endpoint),
	)
	defer span.End()

	hash := PayloadHash(batch.Raw)
	known, err := a.knownHash(ctx, batch.Endpoint)
	if err != nil {
		return false, err
	}
	if known == hash {
		return false, nil
	}

	err = a.repo.UpsertMany(ctx, []rawdata.Payload{{
		Source:       FeedSource,
		Class:        batch.Class,
		Endpoint:     batch.Endpoint,
		FixtureCount: len(batch.Fixtures),
		PayloadJSON:  string(batch.Raw),
		PayloadHash:  hash,
		FetchedAt:    batch.FetchedAt,
	}})
	if err != nil {
		return false, fmt.Errorf("archive raw payload class=%s: %w", batch.Class, err)
	}

	a.mu.Lock()
	a.hashes[batch.Endpoint] = hash
	a.mu.Unlock()
	return true, nil
}

func (a *RawArchiver) knownHash(ctx context.Context, endpoint string) (string, error) {
	a.mu.Lock()
	hash, ok := a.hashes[endpoint]
	a.mu.Unlock()
	if ok {
		return hash, nil
	}

	stored, err := a.repo.LatestHash(ctx, FeedSource, endpoint)
	if err != nil {
		return "", fmt.Errorf("load raw payload hash: %w", err)
	}
	if stored != "" {
		a.mu.Lock()
		a.hashes[endpoint] = stored
		a.mu.Unlock()
	}
	return stored, nil
}

// Prune deletes archived payloads fetched before now-retention. The hash
// cache is reset so pruned endpoints are written again on their next poll.
func (a *RawArchiver) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	if a == nil || a.repo == nil || retention <= 0 {
		return 0, nil
	}

	removed, err := a.repo.DeleteBefore(ctx, time.Now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("prune raw payloads: %w", err)
	}
	if removed > 0 {
		a.mu.Lock()
		a.hashes = make(map[string]string)
		a.mu.Unlock()
		a.logger.InfoContext(ctx, "pruned raw payloads", "removed", removed, "retention", retention.String())
	}
	return removed, nil
}

func PayloadHash(raw []byte) string {
	return strconv.FormatUint(xxhash.Sum64(raw), 16)
}
