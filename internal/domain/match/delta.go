package match

import (
	"reflect"
	"time"
)

// Diff computes the change events between a stored match and a new
// observation of it. prev is nil when the match has not been seen before.
// Events in next that already exist in prev must carry the stored timestamp;
// new ones are stamped with at.
func Diff(prev *Match, next Match, at time.Time) []ChangeEvent {
	if prev == nil {
		return []ChangeEvent{{
			Type:     ChangeStatusChange,
			MatchID:  next.ID,
			Priority: PriorityNormal,
			Payload: StatusPayload{
				To:            next.Status,
				StatusCode:    next.StatusCode,
				MinuteElapsed: next.MinuteElapsed,
				Appeared:      true,
				HomeTeam:      next.HomeTeam.Name,
				AwayTeam:      next.AwayTeam.Name,
				HomeScore:     next.HomeScore,
				AwayScore:     next.AwayScore,
			},
			Timestamp: at,
		}}
	}

	if Equal(*prev, next) {
		return nil
	}

	var out []ChangeEvent
	if prev.HomeScore != next.HomeScore || prev.AwayScore != next.AwayScore {
		out = append(out, ChangeEvent{
			Type:     ChangeScoreUpdate,
			MatchID:  next.ID,
			Priority: PriorityHigh,
			Payload: ScorePayload{
				HomeScore:         next.HomeScore,
				AwayScore:         next.AwayScore,
				PreviousHomeScore: prev.HomeScore,
				PreviousAwayScore: prev.AwayScore,
				MinuteElapsed:     next.MinuteElapsed,
				HomeTeam:          next.HomeTeam.Name,
				AwayTeam:          next.AwayTeam.Name,
			},
			Timestamp: at,
		})
	}

	if prev.Status != next.Status {
		out = append(out, ChangeEvent{
			Type:     ChangeStatusChange,
			MatchID:  next.ID,
			Priority: PriorityNormal,
			Payload: StatusPayload{
				From:          prev.Status,
				To:            next.Status,
				StatusCode:    next.StatusCode,
				MinuteElapsed: next.MinuteElapsed,
				HomeTeam:      next.HomeTeam.Name,
				AwayTeam:      next.AwayTeam.Name,
				HomeScore:     next.HomeScore,
				AwayScore:     next.AwayScore,
			},
			Timestamp: at,
		})
	}

	known := make(map[string]struct{}, len(prev.Events))
	for _, item := range prev.Events {
		known[item.Key()] = struct{}{}
	}
	for _, item := range next.Events {
		key := item.Key()
		if _, ok := known[key]; ok {
			continue
		}
		known[key] = struct{}{}

		priority := PriorityNormal
		if item.IsGoal() {
			priority = PriorityHigh
		}
		stamp := item.Timestamp
		if stamp.IsZero() {
			stamp = at
		}
		out = append(out, ChangeEvent{
			Type:     ChangeEventAdded,
			MatchID:  next.ID,
			Priority: priority,
			Payload: EventPayload{
				Type:        item.Type,
				Detail:      item.Detail,
				Minute:      item.Minute,
				ExtraMinute: item.ExtraMinute,
				TeamID:      item.TeamID,
				TeamName:    item.TeamName,
				PlayerName:  item.PlayerName,
				AssistName:  item.AssistName,
				Timestamp:   stamp,
			},
			Timestamp: at,
		})
	}

	return out
}

// Equal compares two matches field by field. Event timestamps are ignored
// because they are assigned at ingestion.
func Equal(a, b Match) bool {
	if len(a.Events) != len(b.Events) {
		return false
	}
	for i := range a.Events {
		left, right := a.Events[i], b.Events[i]
		left.Timestamp, right.Timestamp = time.Time{}, time.Time{}
		if left != right {
			return false
		}
	}
	if !a.KickoffTime.Equal(b.KickoffTime) {
		return false
	}

	a.Events, b.Events = nil, nil
	a.KickoffTime, b.KickoffTime = time.Time{}, time.Time{}
	return reflect.DeepEqual(a, b)
}

// MergeEvents appends events from next that are unknown to stored, keeping
// stored events (and their timestamps) untouched.
func MergeEvents(stored, next []Event, at time.Time) []Event {
	out := make([]Event, 0, len(stored)+len(next))
	out = append(out, stored...)
	known := make(map[string]struct{}, len(stored))
	for _, item := range stored {
		known[item.Key()] = struct{}{}
	}
	for _, item := range next {
		key := item.Key()
		if _, ok := known[key]; ok {
			continue
		}
		known[key] = struct{}{}
		if item.Timestamp.IsZero() {
			item.Timestamp = at
		}
		out = append(out, item)
	}
	return out
}
