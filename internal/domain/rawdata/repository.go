package rawdata

import (
	"context"
	"time"
)

type Repository interface {
	UpsertMany(ctx context.Context, items []Payload) error
	// LatestHash returns the stored hash for an endpoint, empty when unseen.
	LatestHash(ctx context.Context, source, endpoint string) (string, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}
