package usecase

import (
	"context"
	"time"
)

// MaxFeedIDs is the most fixture ids one feed query may name.
const MaxFeedIDs = 20

// FeedQuery selects a slice of the fixture feed. IDs looks fixtures up
// directly and holds at most MaxFeedIDs entries.
type FeedQuery struct {
	Live     bool
	IDs      []string
	LeagueID int64
	Season   int
	Statuses []string
	From     time.Time
	To       time.Time
}

// FeedResult is one decoded feed response together with its raw body.
type FeedResult struct {
	Fixtures []RawFixture
	Endpoint string
	Raw      []byte
}

// FixtureFeed is the external fixture provider.
type FixtureFeed interface {
	FetchFixtures(ctx context.Context, query FeedQuery) (FeedResult, error)
	FetchLeagues(ctx context.Context) ([]RawLeagueEntry, error)
}

// RawFixture mirrors the provider fixture payload.
type RawFixture struct {
	Fixture     RawFixtureInfo  `json:"fixture"`
	League      RawLeague       `json:"league"`
	Teams       RawTeams        `json:"teams"`
	Goals       RawGoals        `json:"goals"`
	Events      []RawEvent      `json:"events,omitempty"`
	Predictions *RawPredictions `json:"predictions,omitempty"`
}

type RawFixtureInfo struct {
	ID         int64     `json:"id"`
	Referee    *string   `json:"referee"`
	Timezone   string    `json:"timezone"`
	Date       string    `json:"date"`
	Timestamp  int64     `json:"timestamp"`
	Attendance *int      `json:"attendance,omitempty"`
	Venue      RawVenue  `json:"venue"`
	Status     RawStatus `json:"status"`
}

type RawVenue struct {
	ID   *int64  `json:"id"`
	Name *string `json:"name"`
	City *string `json:"city"`
}

type RawStatus struct {
	Long    string `json:"long"`
	Short   string `json:"short"`
	Elapsed *int   `json:"elapsed"`
	Extra   *int   `json:"extra"`
}

type RawLeague struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Country string `json:"country"`
	Logo    string `json:"logo"`
	Season  int    `json:"season"`
}

type RawTeams struct {
	Home RawTeam `json:"home"`
	Away RawTeam `json:"away"`
}

type RawTeam struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Logo string `json:"logo"`
}

type RawGoals struct {
	Home *int `json:"home"`
	Away *int `json:"away"`
}

type RawEvent struct {
	ID       *int64       `json:"id,omitempty"`
	Time     RawEventTime `json:"time"`
	Team     RawTeam      `json:"team"`
	Player   RawPerson    `json:"player"`
	Assist   RawPerson    `json:"assist"`
	Type     string       `json:"type"`
	Detail   string       `json:"detail"`
	Comments *string      `json:"comments"`
}

type RawEventTime struct {
	Elapsed *int `json:"elapsed"`
	Extra   *int `json:"extra"`
}

type RawPerson struct {
	ID   *int64  `json:"id"`
	Name *string `json:"name"`
}

type RawPredictions struct {
	Percent RawPercent `json:"percent"`
}

type RawPercent struct {
	Home string `json:"home"`
	Draw string `json:"draw"`
	Away string `json:"away"`
}

// RawLeagueEntry mirrors one row of the provider league catalog.
type RawLeagueEntry struct {
	League  RawLeagueInfo `json:"league"`
	Country RawCountry    `json:"country"`
	Seasons []RawSeason   `json:"seasons"`
}

type RawLeagueInfo struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
	Logo string `json:"logo"`
}

type RawCountry struct {
	Name string `json:"name"`
}

type RawSeason struct {
	Year    int  `json:"year"`
	Current bool `json:"current"`
}
