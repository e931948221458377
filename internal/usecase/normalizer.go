package usecase

import (
	"strconv"
	"strings"
	"time"

	"github.com/riskibarqy/matchpulse/internal/domain/match"
)

// Normalize maps one raw provider fixture into the canonical match.
// It is pure: the same input always yields a field-for-field equal output.
func Normalize(raw RawFixture) match.Match {
	status := match.MapStatus(raw.Fixture.Status.Short)

	minute := 0
	if status == match.StatusLive {
		minute = nonNegative(derefInt(raw.Fixture.Status.Elapsed))
	}

	out := match.Match{
		ID: strconv.FormatInt(raw.Fixture.ID, 10),
		League: match.League{
			ID:      raw.League.ID,
			Name:    strings.TrimSpace(raw.League.Name),
			Country: strings.TrimSpace(raw.League.Country),
			Logo:    strings.TrimSpace(raw.League.Logo),
			Season:  raw.League.Season,
		},
		HomeTeam:      normalizeTeam(raw.Teams.Home),
		AwayTeam:      normalizeTeam(raw.Teams.Away),
		HomeScore:     nonNegative(derefInt(raw.Goals.Home)),
		AwayScore:     nonNegative(derefInt(raw.Goals.Away)),
		Status:        status,
		StatusCode:    strings.ToUpper(strings.TrimSpace(raw.Fixture.Status.Short)),
		MinuteElapsed: minute,
		KickoffTime:   parseKickoff(raw.Fixture.Date, raw.Fixture.Timestamp),
		Venue:         firstNonEmpty(derefString(raw.Fixture.Venue.Name), match.DefaultVenue),
		VenueCity:     derefString(raw.Fixture.Venue.City),
		Referee:       derefString(raw.Fixture.Referee),
		Attendance:    nonNegative(derefInt(raw.Fixture.Attendance)),
	}

	if raw.Predictions != nil {
		out.Prediction = match.Prediction{
			Home: parsePercent(raw.Predictions.Percent.Home),
			Draw: parsePercent(raw.Predictions.Percent.Draw),
			Away: parsePercent(raw.Predictions.Percent.Away),
		}
	}

	if len(raw.Events) > 0 {
		out.Events = make([]match.Event, 0, len(raw.Events))
		for _, item := range raw.Events {
			out.Events = append(out.Events, normalizeEvent(item))
		}
	}

	return out
}

// NormalizeLeague maps a league catalog row, picking the current season.
func NormalizeLeague(raw RawLeagueEntry) match.League {
	season := 0
	for _, item := range raw.Seasons {
		if item.Current {
			season = item.Year
			break
		}
		if item.Year > season {
			season = item.Year
		}
	}
	return match.League{
		ID:      raw.League.ID,
		Name:    strings.TrimSpace(raw.League.Name),
		Country: strings.TrimSpace(raw.Country.Name),
		Logo:    strings.TrimSpace(raw.League.Logo),
		Season:  season,
	}
}

func normalizeTeam(raw RawTeam) match.Team {
	return match.Team{
		ID:   raw.ID,
		Name: strings.TrimSpace(raw.Name),
		Logo: strings.TrimSpace(raw.Logo),
	}
}

func normalizeEvent(raw RawEvent) match.Event {
	externalID := ""
	if raw.ID != nil && *raw.ID > 0 {
		externalID = strconv.FormatInt(*raw.ID, 10)
	}
	eventType := strings.ToLower(strings.TrimSpace(raw.Type))
	if eventType == "" {
		eventType = "unknown"
	}

	return match.Event{
		ExternalID:  externalID,
		Type:        eventType,
		Detail:      strings.TrimSpace(raw.Detail),
		Minute:      nonNegative(derefInt(raw.Time.Elapsed)),
		ExtraMinute: nonNegative(derefInt(raw.Time.Extra)),
		TeamID:      raw.Team.ID,
		TeamName:    strings.TrimSpace(raw.Team.Name),
		PlayerName:  derefString(raw.Player.Name),
		AssistName:  derefString(raw.Assist.Name),
	}
}

func parseKickoff(date string, unix int64) time.Time {
	if value := strings.TrimSpace(date); value != "" {
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05-0700", "2006-01-02 15:04:05"} {
			if parsed, err := time.Parse(layout, value); err == nil {
				return parsed.UTC()
			}
		}
	}
	if unix > 0 {
		return time.Unix(unix, 0).UTC()
	}
	return time.Time{}
}

func parsePercent(raw string) int {
	value := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "%"))
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || parsed < 0 {
		return 0
	}
	return int(parsed + 0.5)
}

func derefInt(value *int) int {
	if value == nil {
		return 0
	}
	return *value
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}

func nonNegative(value int) int {
	if value < 0 {
		return 0
	}
	return value
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
