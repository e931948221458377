package rawdata

import "time"

// Payload is one raw feed response kept for audit and replay.
type Payload struct {
	Source       string
	Class        string
	Endpoint     string
	FixtureCount int
	PayloadJSON  string
	PayloadHash  string
	FetchedAt    time.Time
}
