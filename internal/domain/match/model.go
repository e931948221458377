package match

import (
	"fmt"
	"strings"
	"time"
)

const DefaultVenue = "Unknown"

// Match is the canonical representation of one provider fixture.
type Match struct {
	ID            string
	League        League
	HomeTeam      Team
	AwayTeam      Team
	HomeScore     int
	AwayScore     int
	Status        Status
	StatusCode    string
	MinuteElapsed int
	KickoffTime   time.Time
	Venue         string
	VenueCity     string
	Referee       string
	Attendance    int
	Prediction    Prediction
	Events        []Event
}

type League struct {
	ID      int64
	Name    string
	Country string
	Logo    string
	Season  int
}

type Team struct {
	ID   int64
	Name string
	Logo string
}

// Prediction holds win/draw/win percentages. Populated outside the sync pipeline.
type Prediction struct {
	Home int
	Draw int
	Away int
}

// Event is an append-only record attached to a match.
// Timestamp is assigned at ingestion, not taken from the provider.
type Event struct {
	ExternalID  string
	Type        string
	Detail      string
	Minute      int
	ExtraMinute int
	TeamID      int64
	TeamName    string
	PlayerName  string
	AssistName  string
	Timestamp   time.Time
}

const (
	EventTypeGoal  = "goal"
	EventTypeCard  = "card"
	EventTypeSubst = "subst"
	EventTypeVAR   = "var"
)

// Key identifies an event across polls.
func (e Event) Key() string {
	if id := strings.TrimSpace(e.ExternalID); id != "" {
		return "id:" + id
	}
	return fmt.Sprintf("%s|%s|%d|%d|%d|%s",
		strings.ToLower(e.Type),
		strings.ToLower(e.Detail),
		e.Minute,
		e.ExtraMinute,
		e.TeamID,
		strings.ToLower(e.PlayerName),
	)
}

func (e Event) IsGoal() bool {
	return strings.EqualFold(e.Type, EventTypeGoal) && !strings.EqualFold(e.Detail, "Missed Penalty")
}

func (m Match) IsLive() bool {
	return m.Status == StatusLive
}

// ChannelKey returns the per-match subscription channel.
func (m Match) ChannelKey() string {
	return ChannelForMatch(m.ID)
}

// Clone returns a copy that shares no slice memory with m.
func (m Match) Clone() Match {
	out := m
	if m.Events != nil {
		out.Events = make([]Event, len(m.Events))
		copy(out.Events, m.Events)
	}
	return out
}
