package matchapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type envelope struct {
	APIVersion string          `json:"apiVersion"`
	Data       json.RawMessage `json:"data"`
	Error      *errorBody      `json:"error"`
}

type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
	Errors  []struct {
		Domain  string `json:"domain"`
		Reason  string `json:"reason"`
		Message string `json:"message"`
	} `json:"errors"`
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Path       string
	Status     string
	Reason     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("GET %s: status=%d", e.Path, e.StatusCode)
	}
	return fmt.Sprintf("GET %s: status=%d reason=%s: %s", e.Path, e.StatusCode, e.Reason, e.Message)
}

func (e *APIError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// Resource is one pull API view. Error and Stale describe the last refresh
// on the server; Items may still hold the last good data.
type Resource[T any] struct {
	Items     []T        `json:"items"`
	Error     string     `json:"error"`
	Stale     bool       `json:"stale"`
	FetchedAt *time.Time `json:"fetchedAt"`
}

type League struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Country string `json:"country"`
	Logo    string `json:"logo"`
	Season  int    `json:"season"`
}

type Team struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Logo string `json:"logo"`
}

type Event struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Detail      string    `json:"detail"`
	Minute      int       `json:"minute"`
	ExtraMinute int       `json:"extraMinute"`
	TeamID      int64     `json:"teamId"`
	TeamName    string    `json:"teamName"`
	PlayerName  string    `json:"playerName"`
	AssistName  string    `json:"assistName"`
	Timestamp   time.Time `json:"timestamp"`
}

type Match struct {
	ID            string    `json:"id"`
	League        League    `json:"league"`
	HomeTeam      Team      `json:"homeTeam"`
	AwayTeam      Team      `json:"awayTeam"`
	HomeScore     int       `json:"homeScore"`
	AwayScore     int       `json:"awayScore"`
	Status        string    `json:"status"`
	StatusCode    string    `json:"statusCode"`
	MinuteElapsed int       `json:"minuteElapsed"`
	KickoffTime   time.Time `json:"kickoffTime"`
	Venue         string    `json:"venue"`
	Events        []Event   `json:"events"`
}
