package models

import (
	"errors"
	"time"
)

// AnomalyReason is the closed set of rules an anomaly can be flagged under.
type AnomalyReason string

const (
	// ReasonTeamRebound flags a missed shot followed by a team rebound,
	// where the board may belong to an individual player.
	ReasonTeamRebound AnomalyReason = "TEAM_REBOUND_MISATTRIBUTION"
	// ReasonNoRebound flags a missed shot with no qualifying team-rebound
	// event inside the lookahead window.
	ReasonNoRebound AnomalyReason = "NO_REBOUND_CREDITED"
)

// Anomaly is a flagged possible rebound-attribution error. Clock, Period, and
// Description are copied from the triggering missed-shot event. Records are
// created at most once per missed-shot ordinal and are never mutated.
type Anomaly struct {
	ID          string        `json:"id"`
	GameID      string        `json:"game_id"`
	Clock       string        `json:"timestamp"`
	Period      int           `json:"quarter"`
	Description string        `json:"description"`
	Reason      AnomalyReason `json:"reason"`
	DetectedAt  time.Time     `json:"detected_at"`
}

// Validate checks that all anomaly fields are valid.
func (a *Anomaly) Validate() error {
	if a.ID == "" {
		return errors.New("anomaly ID must not be empty")
	}
	if a.GameID == "" {
		return errors.New("game ID must not be empty")
	}
	if a.Period < 1 {
		return errors.New("quarter must be at least 1")
	}
	if a.Reason != ReasonTeamRebound && a.Reason != ReasonNoRebound {
		return errors.New("reason must be TEAM_REBOUND_MISATTRIBUTION or NO_REBOUND_CREDITED")
	}
	if a.DetectedAt.IsZero() {
		return errors.New("detected at must be set")
	}
	return nil
}
