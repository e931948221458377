package usecase

import (
	"reflect"
	"testing"
	"time"

	"github.com/riskibarqy/matchpulse/internal/domain/match"
)

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }
func strPtr(v string) *string { return &v }

func sampleRawFixture() RawFixture {
	raw := RawFixture{}
	raw.Fixture.ID = 100
	raw.Fixture.Date = "2026-02-11T19:45:00+01:00"
	raw.Fixture.Referee = strPtr("  M. Oliver ")
	raw.Fixture.Status = RawStatus{Short: "1H", Elapsed: intPtr(23)}
	raw.League = RawLeague{ID: 39, Name: "Premier League", Country: "England", Season: 2025}
	raw.Teams.Home = RawTeam{ID: 33, Name: "Manchester United"}
	raw.Teams.Away = RawTeam{ID: 40, Name: "Liverpool"}
	raw.Goals = RawGoals{Home: intPtr(1), Away: intPtr(0)}
	raw.Events = []RawEvent{
		{
			ID:     int64Ptr(9001),
			Time:   RawEventTime{Elapsed: intPtr(12)},
			Team:   RawTeam{ID: 33, Name: "Manchester United"},
			Player: RawPerson{Name: strPtr("B. Fernandes")},
			Type:   "Goal",
			Detail: "Normal Goal",
		},
	}
	raw.Predictions = &RawPredictions{Percent: RawPercent{Home: "45%", Draw: "30%", Away: "25%"}}
	return raw
}

func TestNormalize_MapsFixture(t *testing.T) {
	t.Parallel()

	got := Normalize(sampleRawFixture())

	if got.ID != "100" {
		t.Fatalf("unexpected id: %q", got.ID)
	}
	if got.Status != match.StatusLive || got.StatusCode != "1H" {
		t.Fatalf("unexpected status: %s (%s)", got.Status, got.StatusCode)
	}
	if got.MinuteElapsed != 23 {
		t.Fatalf("unexpected minute: %d", got.MinuteElapsed)
	}
	if got.HomeScore != 1 || got.AwayScore != 0 {
		t.Fatalf("unexpected score: %d-%d", got.HomeScore, got.AwayScore)
	}
	wantKickoff := time.Date(2026, 2, 11, 18, 45, 0, 0, time.UTC)
	if !got.KickoffTime.Equal(wantKickoff) || got.KickoffTime.Location() != time.UTC {
		t.Fatalf("unexpected kickoff: %v", got.KickoffTime)
	}
	if got.Venue != match.DefaultVenue {
		t.Fatalf("expected default venue, got %q", got.Venue)
	}
	if got.Referee != "M. Oliver" {
		t.Fatalf("expected trimmed referee, got %q", got.Referee)
	}
	if got.Prediction != (match.Prediction{Home: 45, Draw: 30, Away: 25}) {
		t.Fatalf("unexpected prediction: %+v", got.Prediction)
	}
	if len(got.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got.Events))
	}
	event := got.Events[0]
	if event.Type != match.EventTypeGoal || event.ExternalID != "9001" || event.Minute != 12 {
		t.Fatalf("unexpected event: %+v", event)
	}
	if !event.Timestamp.IsZero() {
		t.Fatalf("normalizer must not stamp events, got %v", event.Timestamp)
	}
}

func TestNormalize_IsIdempotent(t *testing.T) {
	t.Parallel()

	raw := sampleRawFixture()
	first := Normalize(raw)
	second := Normalize(raw)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("normalize is not deterministic:\n%+v\n%+v", first, second)
	}
}

func TestNormalize_MinuteOnlyWhenLive(t *testing.T) {
	t.Parallel()

	raw := sampleRawFixture()
	raw.Fixture.Status = RawStatus{Short: "FT", Elapsed: intPtr(90)}

	got := Normalize(raw)
	if got.Status != match.StatusFinished {
		t.Fatalf("expected finished, got %s", got.Status)
	}
	if got.MinuteElapsed != 0 {
		t.Fatalf("expected minute 0 outside live play, got %d", got.MinuteElapsed)
	}
}

func TestNormalize_DefaultsForMissingFields(t *testing.T) {
	t.Parallel()

	raw := RawFixture{}
	raw.Fixture.ID = 7
	raw.Fixture.Timestamp = 1770835500
	raw.Fixture.Status = RawStatus{Short: "weird"}

	got := Normalize(raw)
	if got.ID != "7" || got.Status != match.StatusUpcoming {
		t.Fatalf("unexpected id/status: %q %s", got.ID, got.Status)
	}
	if got.HomeScore != 0 || got.AwayScore != 0 || got.Attendance != 0 {
		t.Fatalf("expected zero counters, got %+v", got)
	}
	if got.Venue != match.DefaultVenue {
		t.Fatalf("expected default venue, got %q", got.Venue)
	}
	if !got.KickoffTime.Equal(time.Unix(1770835500, 0)) {
		t.Fatalf("expected unix fallback kickoff, got %v", got.KickoffTime)
	}
	if got.Events != nil {
		t.Fatalf("expected nil events, got %+v", got.Events)
	}
}

func TestNormalize_SameFixtureSameID(t *testing.T) {
	t.Parallel()

	raw := RawFixture{}
	raw.Fixture.ID = 100
	raw.Fixture.Status = RawStatus{Short: "1H"}
	raw.Goals = RawGoals{Home: intPtr(0), Away: intPtr(0)}

	first := Normalize(raw)
	raw.Goals.Home = intPtr(1)
	second := Normalize(raw)

	if first.ID != "100" || first.ID != second.ID {
		t.Fatalf("expected stable id 100, got %q and %q", first.ID, second.ID)
	}
	if first.Status != match.StatusLive {
		t.Fatalf("expected live, got %s", first.Status)
	}
}

func TestNormalizeLeague_PicksCurrentSeason(t *testing.T) {
	t.Parallel()

	var raw RawLeagueEntry
	raw.League.ID = 140
	raw.League.Name = " La Liga "
	raw.Country.Name = "Spain"
	raw.Seasons = []RawSeason{{Year: 2024}, {Year: 2025, Current: true}}

	got := NormalizeLeague(raw)
	if got.ID != 140 || got.Name != "La Liga" || got.Country != "Spain" || got.Season != 2025 {
		t.Fatalf("unexpected league: %+v", got)
	}
}
