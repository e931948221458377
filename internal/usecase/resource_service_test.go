package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	crerr "github.com/cockroachdb/errors"
	"github.com/stretchr/testify/mock"

	"github.com/riskibarqy/matchpulse/internal/domain/match"
	"github.com/riskibarqy/matchpulse/internal/infrastructure/repository/memory"
	usecasemock "github.com/riskibarqy/matchpulse/internal/mocks/usecase"
	"github.com/riskibarqy/matchpulse/internal/platform/cache"
	"github.com/riskibarqy/matchpulse/internal/usecase"
)

type staticHealth []usecase.ClassStatus

func (h staticHealth) Status() []usecase.ClassStatus { return h }

func seedStore(t *testing.T, items ...match.Match) *memory.MatchStore {
	t.Helper()
	store := memory.NewMatchStore()
	for _, item := range items {
		if _, err := store.Upsert(context.Background(), item); err != nil {
			t.Fatalf("seed %s: %v", item.ID, err)
		}
	}
	return store
}

func catalogEntry(id int64, name string, season int) usecase.RawLeagueEntry {
	var entry usecase.RawLeagueEntry
	entry.League.ID = id
	entry.League.Name = name
	entry.Seasons = []usecase.RawSeason{{Year: season, Current: true}}
	return entry
}

func TestResourceService_LiveReportsStaleFeed(t *testing.T) {
	t.Parallel()

	store := seedStore(t,
		match.Match{ID: "100", Status: match.StatusLive},
		match.Match{ID: "200", Status: match.StatusUpcoming},
	)
	lastOK := time.Date(2026, 2, 11, 20, 0, 0, 0, time.UTC)
	health := staticHealth{{Name: usecase.ClassLive, LastSuccessAt: lastOK, LastError: "feed status 503"}}
	service := usecase.NewResourceService(store, nil, health, cache.NewStore(time.Minute), nil)

	view, err := service.Live(context.Background())
	if err != nil {
		t.Fatalf("live: %v", err)
	}
	if len(view.Items) != 1 || view.Items[0].ID != "100" {
		t.Fatalf("unexpected items: %+v", view.Items)
	}
	if !view.Stale || view.Error != "feed status 503" || !view.FetchedAt.Equal(lastOK) {
		t.Fatalf("expected stale view with error, got %+v", view)
	}
}

func TestResourceService_FirstLoadFailureIsNotStale(t *testing.T) {
	t.Parallel()

	health := staticHealth{{Name: usecase.ClassLive, LastError: "feed status 503"}}
	service := usecase.NewResourceService(seedStore(t), nil, health, cache.NewStore(time.Minute), nil)

	view, err := service.Live(context.Background())
	if err != nil {
		t.Fatalf("live: %v", err)
	}
	if view.Stale || view.Error != "feed status 503" || !view.FetchedAt.IsZero() {
		t.Fatalf("expected error without stale flag before any success, got %+v", view)
	}
	if view.Items == nil || len(view.Items) != 0 {
		t.Fatalf("expected empty item list, got %+v", view.Items)
	}
}

func TestResourceService_UpcomingValidatesDays(t *testing.T) {
	t.Parallel()

	service := usecase.NewResourceService(seedStore(t), nil, nil, cache.NewStore(time.Minute), nil)
	for _, days := range []int{0, -1, usecase.MaxUpcomingDays + 1} {
		if _, err := service.Upcoming(context.Background(), days); !crerr.Is(err, usecase.ErrInvalidInput) {
			t.Fatalf("expected invalid input for days=%d, got %v", days, err)
		}
	}

	view, err := service.Upcoming(context.Background(), 3)
	if err != nil {
		t.Fatalf("upcoming: %v", err)
	}
	if view.Items == nil {
		t.Fatalf("expected empty, non-nil items")
	}
}

func TestResourceService_MatchNotFound(t *testing.T) {
	t.Parallel()

	service := usecase.NewResourceService(seedStore(t), nil, nil, cache.NewStore(time.Minute), nil)
	if _, err := service.Match(context.Background(), "404"); !crerr.Is(err, usecase.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestResourceService_LeaguesCachedAndStaleOnError(t *testing.T) {
	t.Parallel()

	feed := usecasemock.NewFixtureFeed(t)
	feed.
		On("FetchLeagues", mock.Anything).
		Return([]usecase.RawLeagueEntry{catalogEntry(39, "Premier League", 2025)}, nil).
		Once()
	feed.
		On("FetchLeagues", mock.Anything).
		Return(nil, errors.New("feed status 502")).
		Once()

	catalog := cache.NewStore(20 * time.Millisecond)
	service := usecase.NewResourceService(seedStore(t), feed, nil, catalog, nil)

	for i := 0; i < 3; i++ {
		view, err := service.Leagues(context.Background())
		if err != nil {
			t.Fatalf("leagues call %d: %v", i, err)
		}
		if len(view.Items) != 1 || view.Stale {
			t.Fatalf("unexpected fresh view: %+v", view)
		}
	}

	time.Sleep(30 * time.Millisecond)
	view, err := service.Leagues(context.Background())
	if err != nil {
		t.Fatalf("expected stale catalog instead of error, got %v", err)
	}
	if !view.Stale || view.Error == "" || len(view.Items) != 1 {
		t.Fatalf("expected stale catalog, got %+v", view)
	}
}

func TestResourceService_LeagueMatchesOnDemandForUntrackedLeague(t *testing.T) {
	t.Parallel()

	feed := usecasemock.NewFixtureFeed(t)
	feed.
		On("FetchLeagues", mock.Anything).
		Return([]usecase.RawLeagueEntry{catalogEntry(140, "La Liga", 2025)}, nil).
		Once()
	feed.
		On("FetchFixtures", mock.Anything, usecase.FeedQuery{LeagueID: 140, Season: 2025}).
		Return(usecase.FeedResult{Fixtures: []usecase.RawFixture{fixture(500, "NS", 0, 0)}}, nil).
		Once()

	service := usecase.NewResourceService(seedStore(t), feed, nil, cache.NewStore(time.Minute), map[int64]int{39: 2025})

	for i := 0; i < 2; i++ {
		view, err := service.LeagueMatches(context.Background(), 140)
		if err != nil {
			t.Fatalf("league matches: %v", err)
		}
		if len(view.Items) != 1 || view.Items[0].ID != "500" {
			t.Fatalf("unexpected league view: %+v", view)
		}
	}
}

func TestResourceService_LeagueMatchesFromStoreForTrackedLeague(t *testing.T) {
	t.Parallel()

	store := seedStore(t,
		match.Match{ID: "100", League: match.League{ID: 39}, Status: match.StatusLive},
		match.Match{ID: "200", League: match.League{ID: 140}, Status: match.StatusLive},
	)
	service := usecase.NewResourceService(store, nil, nil, cache.NewStore(time.Minute), map[int64]int{39: 2025})

	view, err := service.LeagueMatches(context.Background(), 39)
	if err != nil {
		t.Fatalf("league matches: %v", err)
	}
	if len(view.Items) != 1 || view.Items[0].ID != "100" {
		t.Fatalf("unexpected tracked league view: %+v", view)
	}
}
