package httpapi

import (
	"time"

	"github.com/riskibarqy/matchpulse/internal/domain/match"
	"github.com/riskibarqy/matchpulse/internal/usecase"
)

type leagueDTO struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Country string `json:"country,omitempty"`
	Logo    string `json:"logo,omitempty"`
	Season  int    `json:"season,omitempty"`
}

type teamDTO struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Logo string `json:"logo,omitempty"`
}

type predictionDTO struct {
	Home int `json:"home"`
	Draw int `json:"draw"`
	Away int `json:"away"`
}

type eventDTO struct {
	ID          string    `json:"id,omitempty"`
	Type        string    `json:"type"`
	Detail      string    `json:"detail,omitempty"`
	Minute      int       `json:"minute"`
	ExtraMinute int       `json:"extraMinute,omitempty"`
	TeamID      int64     `json:"teamId,omitempty"`
	TeamName    string    `json:"teamName,omitempty"`
	PlayerName  string    `json:"playerName,omitempty"`
	AssistName  string    `json:"assistName,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

type matchDTO struct {
	ID            string        `json:"id"`
	League        leagueDTO     `json:"league"`
	HomeTeam      teamDTO       `json:"homeTeam"`
	AwayTeam      teamDTO       `json:"awayTeam"`
	HomeScore     int           `json:"homeScore"`
	AwayScore     int           `json:"awayScore"`
	Status        string        `json:"status"`
	StatusCode    string        `json:"statusCode"`
	MinuteElapsed int           `json:"minuteElapsed"`
	KickoffTime   time.Time     `json:"kickoffTime"`
	Venue         string        `json:"venue"`
	VenueCity     string        `json:"venueCity,omitempty"`
	Referee       string        `json:"referee,omitempty"`
	Attendance    int           `json:"attendance,omitempty"`
	Prediction    predictionDTO `json:"prediction"`
	Events        []eventDTO    `json:"events"`
}

type resourceDTO[T any] struct {
	Items     []T        `json:"items"`
	Error     string     `json:"error,omitempty"`
	Stale     bool       `json:"stale"`
	FetchedAt *time.Time `json:"fetchedAt,omitempty"`
}

// changeFrame is one message on the subscription stream.
type changeFrame struct {
	Type      string    `json:"type"`
	MatchID   string    `json:"matchId"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
	Priority  string    `json:"priority"`
}

func toLeagueDTO(item match.League) leagueDTO {
	return leagueDTO{
		ID:      item.ID,
		Name:    item.Name,
		Country: item.Country,
		Logo:    item.Logo,
		Season:  item.Season,
	}
}

func toTeamDTO(item match.Team) teamDTO {
	return teamDTO{ID: item.ID, Name: item.Name, Logo: item.Logo}
}

func toMatchDTO(item match.Match) matchDTO {
	events := make([]eventDTO, 0, len(item.Events))
	for _, event := range item.Events {
		events = append(events, eventDTO{
			ID:          event.ExternalID,
			Type:        event.Type,
			Detail:      event.Detail,
			Minute:      event.Minute,
			ExtraMinute: event.ExtraMinute,
			TeamID:      event.TeamID,
			TeamName:    event.TeamName,
			PlayerName:  event.PlayerName,
			AssistName:  event.AssistName,
			Timestamp:   event.Timestamp,
		})
	}

	return matchDTO{
		ID:            item.ID,
		League:        toLeagueDTO(item.League),
		HomeTeam:      toTeamDTO(item.HomeTeam),
		AwayTeam:      toTeamDTO(item.AwayTeam),
		HomeScore:     item.HomeScore,
		AwayScore:     item.AwayScore,
		Status:        item.Status.String(),
		StatusCode:    item.StatusCode,
		MinuteElapsed: item.MinuteElapsed,
		KickoffTime:   item.KickoffTime,
		Venue:         item.Venue,
		VenueCity:     item.VenueCity,
		Referee:       item.Referee,
		Attendance:    item.Attendance,
		Prediction: predictionDTO{
			Home: item.Prediction.Home,
			Draw: item.Prediction.Draw,
			Away: item.Prediction.Away,
		},
		Events: events,
	}
}

func toResourceDTO[S any, T any](view usecase.ResourceView[S], convert func(S) T) resourceDTO[T] {
	items := make([]T, 0, len(view.Items))
	for _, item := range view.Items {
		items = append(items, convert(item))
	}

	out := resourceDTO[T]{
		Items: items,
		Error: view.Error,
		Stale: view.Stale,
	}
	if !view.FetchedAt.IsZero() {
		fetchedAt := view.FetchedAt.UTC()
		out.FetchedAt = &fetchedAt
	}
	return out
}

func toChangeFrame(event match.ChangeEvent) changeFrame {
	return changeFrame{
		Type:      string(event.Type),
		MatchID:   event.MatchID,
		Payload:   event.Payload,
		Timestamp: event.Timestamp.UTC(),
		Priority:  string(event.Priority),
	}
}
