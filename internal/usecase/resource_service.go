package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	crerr "github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/riskibarqy/matchpulse/internal/domain/match"
	"github.com/riskibarqy/matchpulse/internal/platform/cache"
)

const (
	MaxUpcomingDays     = 14
	leagueCatalogKey    = "leagues:catalog"
	leagueMatchesPrefix = "league-matches:"
)

// ResourceView is a pull response: the latest items plus the health of the
// feed that produced them.
type ResourceView[T any] struct {
	Items     []T       `json:"items"`
	Error     string    `json:"error,omitempty"`
	Stale     bool      `json:"stale"`
	FetchedAt time.Time `json:"fetchedAt,omitempty"`
}

// FeedHealth exposes per-class poll status.
type FeedHealth interface {
	Status() []ClassStatus
}

// ResourceService serves the pull resources from the match store, falling
// back to cached on-demand feed reads for data no poll class covers.
type ResourceService struct {
	store   match.Store
	feed    FixtureFeed
	health  FeedHealth
	cache   *cache.Store
	tracked map[int64]int
	now     func() time.Time

	mu          sync.Mutex
	lastLeagues ResourceView[match.League]
}

func NewResourceService(store match.Store, feed FixtureFeed, health FeedHealth, catalogCache *cache.Store, trackedLeagues map[int64]int) *ResourceService {
	tracked := make(map[int64]int, len(trackedLeagues))
	for id, season := range trackedLeagues {
		tracked[id] = season
	}
	return &ResourceService{
		store:   store,
		feed:    feed,
		health:  health,
		cache:   catalogCache,
		tracked: tracked,
		now:     time.Now,
	}
}

func (s *ResourceService) Live(ctx context.Context) (ResourceView[match.Match], error) {
	ctx, span := childSpan(ctx, "usecase.ResourceService.Live")
	defer span.End()

	items, err := s.store.List(ctx, match.Filter{Statuses: []match.Status{match.StatusLive}})
	if err != nil {
		return ResourceView[match.Match]{}, fmt.Errorf("list live matches: %w", err)
	}
	return s.view(items, ClassLive), nil
}

func (s *ResourceService) Upcoming(ctx context.Context, days int) (ResourceView[match.Match], error) {
	ctx, span := childSpan(ctx, "usecase.ResourceService.Upcoming", attribute.Int("days", days))
	defer span.End()

	if days < 1 || days > MaxUpcomingDays {
		return ResourceView[match.Match]{}, fmt.Errorf("%w: days must be between 1 and %d", ErrInvalidInput, MaxUpcomingDays)
	}

	now := s.now().UTC()
	items, err := s.store.List(ctx, match.Filter{
		Statuses:      []match.Status{match.StatusUpcoming},
		KickoffAfter:  now.Truncate(24 * time.Hour),
		KickoffBefore: now.AddDate(0, 0, days),
	})
	if err != nil {
		return ResourceView[match.Match]{}, fmt.Errorf("list upcoming matches: %w", err)
	}
	return s.view(items, ClassUpcoming), nil
}

func (s *ResourceService) LeagueMatches(ctx context.Context, leagueID int64) (ResourceView[match.Match], error) {
	ctx, span := childSpan(ctx, "usecase.ResourceService.LeagueMatches", attribute.Int64("league.id", leagueID))
	defer span.End()

	if leagueID <= 0 {
		return ResourceView[match.Match]{}, fmt.Errorf("%w: league id must be > 0", ErrInvalidInput)
	}

	if _, ok := s.tracked[leagueID]; ok {
		items, err := s.store.List(ctx, match.Filter{LeagueID: leagueID})
		if err != nil {
			return ResourceView[match.Match]{}, fmt.Errorf("list league matches: %w", err)
		}
		return s.view(items, LeagueClassName(leagueID)), nil
	}

	season, err := s.currentSeason(ctx, leagueID)
	if err != nil {
		return ResourceView[match.Match]{}, err
	}

	key := fmt.Sprintf("%s%d:%d", leagueMatchesPrefix, leagueID, season)
	loaded, err := s.cache.GetOrLoad(ctx, key, func(ctx context.Context) (any, error) {
		result, err := s.feed.FetchFixtures(ctx, FeedQuery{LeagueID: leagueID, Season: season})
		if err != nil {
			return nil, err
		}
		return ResourceView[match.Match]{
			Items:     NormalizeBatch(result.Fixtures),
			FetchedAt: s.now().UTC(),
		}, nil
	})
	if err != nil {
		return ResourceView[match.Match]{}, fmt.Errorf("fetch league %d matches: %w", leagueID, err)
	}

	view, ok := loaded.(ResourceView[match.Match])
	if !ok {
		return ResourceView[match.Match]{}, fmt.Errorf("unexpected cached league matches type %T", loaded)
	}
	return view, nil
}

// Leagues returns the current league catalog. A failed refresh serves the
// previous catalog marked stale.
func (s *ResourceService) Leagues(ctx context.Context) (ResourceView[match.League], error) {
	ctx, span := childSpan(ctx, "usecase.ResourceService.Leagues")
	defer span.End()

	loaded, err := s.cache.GetOrLoad(ctx, leagueCatalogKey, func(ctx context.Context) (any, error) {
		entries, err := s.feed.FetchLeagues(ctx)
		if err != nil {
			return nil, err
		}
		items := make([]match.League, 0, len(entries))
		for _, entry := range entries {
			league := NormalizeLeague(entry)
			if league.ID <= 0 {
				continue
			}
			items = append(items, league)
		}
		return ResourceView[match.League]{Items: items, FetchedAt: s.now().UTC()}, nil
	})
	if err != nil {
		s.mu.Lock()
		last := s.lastLeagues
		s.mu.Unlock()
		if last.FetchedAt.IsZero() {
			return ResourceView[match.League]{}, fmt.Errorf("fetch league catalog: %w", err)
		}
		last.Stale = true
		last.Error = err.Error()
		return last, nil
	}

	view, ok := loaded.(ResourceView[match.League])
	if !ok {
		return ResourceView[match.League]{}, fmt.Errorf("unexpected cached league catalog type %T", loaded)
	}
	s.mu.Lock()
	s.lastLeagues = view
	s.mu.Unlock()
	return view, nil
}

func (s *ResourceService) Match(ctx context.Context, id string) (match.Match, error) {
	ctx, span := childSpan(ctx, "usecase.ResourceService.Match", attribute.String("match.id", id))
	defer span.End()

	id = strings.TrimSpace(id)
	if id == "" {
		return match.Match{}, fmt.Errorf("%w: match id is required", ErrInvalidInput)
	}
	item, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return match.Match{}, fmt.Errorf("get match: %w", err)
	}
	if !ok {
		return match.Match{}, fmt.Errorf("%w: match=%s", ErrNotFound, id)
	}
	return item, nil
}

func (s *ResourceService) FeedStatus() []ClassStatus {
	if s.health == nil {
		return nil
	}
	return s.health.Status()
}

func (s *ResourceService) currentSeason(ctx context.Context, leagueID int64) (int, error) {
	catalog, err := s.Leagues(ctx)
	if err != nil {
		return 0, err
	}
	for _, league := range catalog.Items {
		if league.ID == leagueID && league.Season > 0 {
			return league.Season, nil
		}
	}
	return 0, crerr.Mark(fmt.Errorf("league %d has no current season", leagueID), ErrNotFound)
}

func (s *ResourceService) view(items []match.Match, class string) ResourceView[match.Match] {
	if items == nil {
		items = []match.Match{}
	}
	view := ResourceView[match.Match]{Items: items}
	if s.health == nil {
		return view
	}
	for _, status := range s.health.Status() {
		if status.Name != class {
			continue
		}
		view.FetchedAt = status.LastSuccessAt
		if status.LastError != "" {
			view.Error = status.LastError
			// Nothing loaded yet is an error, not stale data.
			view.Stale = !status.LastSuccessAt.IsZero()
		}
		break
	}
	return view
}
