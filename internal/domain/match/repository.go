package match

import (
	"context"
	"time"
)

// Filter narrows a store listing. Zero values match everything.
type Filter struct {
	Statuses      []Status
	LeagueID      int64
	KickoffAfter  time.Time
	KickoffBefore time.Time
}

// Store holds the last known canonical state of every tracked match.
type Store interface {
	// Upsert replaces the stored match and returns the changes relative to the
	// previous observation. Replacement and change computation are atomic.
	Upsert(ctx context.Context, m Match) ([]ChangeEvent, error)
	Get(ctx context.Context, id string) (Match, bool, error)
	List(ctx context.Context, filter Filter) ([]Match, error)
	// Prune drops matches that have not been observed since before.
	Prune(ctx context.Context, before time.Time) (int, error)
}

func (f Filter) Matches(m Match) bool {
	if len(f.Statuses) > 0 {
		found := false
		for _, status := range f.Statuses {
			if m.Status == status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.LeagueID > 0 && m.League.ID != f.LeagueID {
		return false
	}
	if !f.KickoffAfter.IsZero() && m.KickoffTime.Before(f.KickoffAfter) {
		return false
	}
	if !f.KickoffBefore.IsZero() && m.KickoffTime.After(f.KickoffBefore) {
		return false
	}
	return true
}
