package match

import (
	"strings"
	"time"
)

type ChangeType string

const (
	ChangeScoreUpdate  ChangeType = "score-update"
	ChangeStatusChange ChangeType = "status-change"
	ChangeEventAdded   ChangeType = "event-added"
)

type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

const (
	ChannelAll         = "all"
	channelMatchPrefix = "match:"
)

// ChangeEvent is one typed delta between two observations of a match.
type ChangeEvent struct {
	Type      ChangeType
	MatchID   string
	Payload   any
	Priority  Priority
	Timestamp time.Time
}

type ScorePayload struct {
	HomeScore         int    `json:"homeScore"`
	AwayScore         int    `json:"awayScore"`
	PreviousHomeScore int    `json:"previousHomeScore"`
	PreviousAwayScore int    `json:"previousAwayScore"`
	MinuteElapsed     int    `json:"minuteElapsed"`
	HomeTeam          string `json:"homeTeam"`
	AwayTeam          string `json:"awayTeam"`
}

type StatusPayload struct {
	From          Status `json:"from,omitempty"`
	To            Status `json:"to"`
	StatusCode    string `json:"statusCode"`
	MinuteElapsed int    `json:"minuteElapsed"`
	Appeared      bool   `json:"appeared,omitempty"`
	HomeTeam      string `json:"homeTeam"`
	AwayTeam      string `json:"awayTeam"`
	HomeScore     int    `json:"homeScore"`
	AwayScore     int    `json:"awayScore"`
}

type EventPayload struct {
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

func (c ChangeEvent) Channel() string {
	return ChannelForMatch(c.MatchID)
}

func (c ChangeEvent) IsGoal() bool {
	if c.Type != ChangeEventAdded {
		return false
	}
	payload, ok := c.Payload.(EventPayload)
	if !ok {
		return false
	}
	return Event{Type: payload.Type, Detail: payload.Detail}.IsGoal()
}

func ChannelForMatch(matchID string) string {
	return channelMatchPrefix + strings.TrimSpace(matchID)
}

// ParseChannel validates a channel key and returns the match id it targets.
// The id is empty for the global channel.
func ParseChannel(channel string) (string, bool) {
	channel = strings.TrimSpace(channel)
	if channel == ChannelAll {
		return "", true
	}
	if !strings.HasPrefix(channel, channelMatchPrefix) {
		return "", false
	}
	id := strings.TrimSpace(strings.TrimPrefix(channel, channelMatchPrefix))
	if id == "" {
		return "", false
	}
	return id, true
}
