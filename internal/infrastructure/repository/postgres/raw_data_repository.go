package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/riskibarqy/matchpulse/internal/domain/rawdata"
	qb "github.com/riskibarqy/matchpulse/internal/platform/querybuilder"
)

const rawFeedPayloadsTable = "raw_feed_payloads"

type RawDataRepository struct {
	db *sqlx.DB
}

func NewRawDataRepository(db *sqlx.DB) *RawDataRepository {
	return &RawDataRepository{db: db}
}

func (r *RawDataRepository) UpsertMany(ctx context.Context, items []rawdata.Payload) error {
	if len(items) == 0 {
		return nil
	}

	rows := rawPayloadRows(items)

	query, args, err := qb.InsertModels(rawFeedPayloadsTable, rows, `ON CONFLICT (source, endpoint)
DO UPDATE SET
    class = EXCLUDED.class,
    fixture_count = EXCLUDED.fixture_count,
    payload = EXCLUDED.payload,
    payload_hash = EXCLUDED.payload_hash,
    fetched_at = EXCLUDED.fetched_at,
    ingested_at = NOW()
WHERE raw_feed_payloads.payload_hash IS DISTINCT FROM EXCLUDED.payload_hash`)
	if err != nil {
		return fmt.Errorf("build upsert raw payload query: %w", err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx upsert raw payloads: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert raw payloads count=%d: %w", len(rows), err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert raw payloads tx: %w", err)
	}

	return nil
}

func (r *RawDataRepository) LatestHash(ctx context.Context, source, endpoint string) (string, error) {
	query, args, err := qb.Select("payload_hash").
		From(rawFeedPayloadsTable).
		Where(qb.Eq("source", source), qb.Eq("endpoint", endpoint)).
		Limit(1).
		ToSQL()
	if err != nil {
		return "", fmt.Errorf("build latest raw payload hash query: %w", err)
	}

	var hash string
	if err := r.db.GetContext(ctx, &hash, query, args...); err != nil {
		if isNotFound(err) {
			return "", nil
		}
		return "", fmt.Errorf("get latest raw payload hash endpoint=%s: %w", endpoint, err)
	}
	return hash, nil
}

func (r *RawDataRepository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	query, args, err := qb.DeleteFrom(rawFeedPayloadsTable).
		Where(qb.Lt("fetched_at", before.UTC())).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build delete raw payloads query: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete raw payloads before=%s: %w", before.UTC().Format(time.RFC3339), err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("raw payload delete rows affected: %w", err)
	}
	return affected, nil
}

// rawPayloadRows converts items to rows, keeping the last item per
// (source, endpoint) so one statement never conflicts with itself.
func rawPayloadRows(items []rawdata.Payload) []rawFeedPayloadModel {
	rows := make([]rawFeedPayloadModel, 0, len(items))
	seen := make(map[string]int, len(items))
	for _, item := range items {
		row := rawFeedPayloadModel{
			Source:       item.Source,
			Class:        item.Class,
			Endpoint:     item.Endpoint,
			FixtureCount: item.FixtureCount,
			Payload:      item.PayloadJSON,
			PayloadHash:  item.PayloadHash,
			FetchedAt:    item.FetchedAt.UTC(),
		}
		key := item.Source + "|" + item.Endpoint
		if idx, ok := seen[key]; ok {
			rows[idx] = row
			continue
		}
		seen[key] = len(rows)
		rows = append(rows, row)
	}
	return rows
}

type rawFeedPayloadModel struct {
	Source       string    `db:"source"`
	Class        string    `db:"class"`
	Endpoint     string    `db:"endpoint"`
	FixtureCount int       `db:"fixture_count"`
	Payload      string    `db:"payload"`
	PayloadHash  string    `db:"payload_hash"`
	FetchedAt    time.Time `db:"fetched_at"`
}
