package models

// EventType classifies a play-by-play event. The numeric values mirror the
// stats API's EVENTMSGTYPE codes; only missed shots and rebounds matter to
// the scanner, everything else is folded into EventOther.
type EventType int

const (
	// EventOther is any play the scanner does not inspect.
	EventOther EventType = 0
	// EventMissedShot is a missed field goal (EVENTMSGTYPE 2).
	EventMissedShot EventType = 2
	// EventRebound is a rebound, individual or team (EVENTMSGTYPE 4).
	EventRebound EventType = 4
)

// PlayEvent is one immutable row of a game's play-by-play feed.
//
// Ordinal (EVENTNUM) increases monotonically per game but is not necessarily
// contiguous. The provider returns the full event list on every fetch, so the
// same ordinal is re-delivered across polls. Exactly one of HomeDescription
// and AwayDescription is populated per event.
type PlayEvent struct {
	Ordinal         int64     `json:"ordinal"`
	Type            EventType `json:"type"`
	Period          int       `json:"period"`
	Clock           string    `json:"clock"`
	HomeDescription string    `json:"home_description,omitempty"`
	AwayDescription string    `json:"away_description,omitempty"`
}

// Description returns whichever side's description is populated, preferring
// the home side when both are set.
func (e *PlayEvent) Description() string {
	if e.HomeDescription != "" {
		return e.HomeDescription
	}
	return e.AwayDescription
}
