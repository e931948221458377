package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/riskibarqy/matchpulse/internal/domain/match"
)

type storedMatch struct {
	match    match.Match
	lastSeen time.Time
}

// MatchStore keeps the last observed state of every match in process memory.
type MatchStore struct {
	mu      sync.RWMutex
	matches map[string]storedMatch
	now     func() time.Time
}

func NewMatchStore() *MatchStore {
	return &MatchStore{
		matches: make(map[string]storedMatch),
		now:     time.Now,
	}
}

func (s *MatchStore) Upsert(_ context.Context, next match.Match) ([]match.ChangeEvent, error) {
	id := strings.TrimSpace(next.ID)
	if id == "" {
		return nil, fmt.Errorf("upsert match: id is required")
	}
	next.ID = id

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	prev, ok := s.matches[id]
	if !ok {
		stored := next.Clone()
		stored.Events = match.MergeEvents(nil, next.Events, now)
		s.matches[id] = storedMatch{match: stored, lastSeen: now}
		return match.Diff(nil, stored, now), nil
	}

	merged := next.Clone()
	merged.Events = match.MergeEvents(prev.match.Events, next.Events, now)
	changes := match.Diff(&prev.match, merged, now)
	s.matches[id] = storedMatch{match: merged, lastSeen: now}
	return changes, nil
}

func (s *MatchStore) Get(_ context.Context, id string) (match.Match, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.matches[strings.TrimSpace(id)]
	if !ok {
		return match.Match{}, false, nil
	}
	return item.match.Clone(), true, nil
}

func (s *MatchStore) List(_ context.Context, filter match.Filter) ([]match.Match, error) {
	s.mu.RLock()
	out := make([]match.Match, 0, len(s.matches))
	for _, item := range s.matches {
		if filter.Matches(item.match) {
			out = append(out, item.match.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].KickoffTime.Equal(out[j].KickoffTime) {
			return out[i].KickoffTime.Before(out[j].KickoffTime)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MatchStore) Prune(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, item := range s.matches {
		if item.lastSeen.Before(before) {
			delete(s.matches, id)
			removed++
		}
	}
	return removed, nil
}

func (s *MatchStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.matches)
}
