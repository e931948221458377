package match

import "strings"

// Status is the canonical match phase.
type Status string

const (
	StatusUpcoming  Status = "upcoming"
	StatusLive      Status = "live"
	StatusFinished  Status = "finished"
	StatusCancelled Status = "cancelled"
	StatusAbandoned Status = "abandoned"
	StatusAwarded   Status = "awarded"
	StatusWalkover  Status = "walkover"
)

var providerStatuses = map[string]Status{
	"NS":   StatusUpcoming,
	"TBD":  StatusUpcoming,
	"PST":  StatusUpcoming,
	"1H":   StatusLive,
	"HT":   StatusLive,
	"2H":   StatusLive,
	"ET":   StatusLive,
	"BT":   StatusLive,
	"P":    StatusLive,
	"LIVE": StatusLive,
	"INT":  StatusLive,
	"SUSP": StatusLive,
	"FT":   StatusFinished,
	"AET":  StatusFinished,
	"PEN":  StatusFinished,
	"CANC": StatusCancelled,
	"ABD":  StatusAbandoned,
	"AWD":  StatusAwarded,
	"WO":   StatusWalkover,
}

// MapStatus maps a provider status code to a canonical status.
// Unknown codes fall back to StatusUpcoming so the match stays visible.
func MapStatus(providerCode string) Status {
	if status, ok := providerStatuses[strings.ToUpper(strings.TrimSpace(providerCode))]; ok {
		return status
	}
	return StatusUpcoming
}

// IsKnownStatusCode reports whether code has an explicit mapping.
func IsKnownStatusCode(providerCode string) bool {
	_, ok := providerStatuses[strings.ToUpper(strings.TrimSpace(providerCode))]
	return ok
}

func (s Status) IsTerminal() bool {
	switch s {
	case StatusFinished, StatusCancelled, StatusAbandoned, StatusAwarded, StatusWalkover:
		return true
	default:
		return false
	}
}

func (s Status) String() string {
	return string(s)
}
