// Package scanner implements rebound-attribution anomaly detection over a
// game's play-by-play feed.
//
// The provider re-delivers the full event list on every poll, so each game
// carries a cursor: the ordinal of the most recently processed event. A scan
// skips everything at or below the cursor, advances it through every newer
// event, and applies a fixed-size lookahead after each missed shot:
//
//	missed shot + "Team Rebound" within the window  → TEAM_REBOUND_MISATTRIBUTION
//	missed shot + window exhausted without one      → NO_REBOUND_CREDITED
//
// The lookahead is positional over the full sequence, matching provider
// ordering, not ordinal arithmetic. An individually credited rebound does not
// satisfy the team-rebound check, so NO_REBOUND_CREDITED fires even when one
// is present; the rule flags the absence of the team-rebound pattern
// specifically. Because the cursor guard removes previously seen events
// before any pattern matching, a missed shot can be flagged at most once.
package scanner

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/torrenbaker/nba-rebound-tracker/internal/models"
)

// teamReboundMarker is the literal phrase the provider puts in descriptions
// of rebounds credited to a team rather than a player.
const teamReboundMarker = "Team Rebound"

// DefaultLookahead is the number of subsequent events inspected after a
// missed shot.
const DefaultLookahead = 3

// Scanner applies the two-pattern rebound rule to play-by-play sequences.
// It performs no I/O; callers own fetching and state updates.
type Scanner struct {
	lookahead int
}

// New creates a Scanner with the given lookahead window size. Sizes below 1
// fall back to DefaultLookahead.
func New(lookahead int) *Scanner {
	if lookahead < 1 {
		lookahead = DefaultLookahead
	}
	return &Scanner{lookahead: lookahead}
}

// Scan processes the events of one game that are newer than cursor (nil
// cursor means nothing has been processed) and returns the advanced cursor
// plus any anomalies flagged, in the order their missed shots were scanned.
//
// events must be ordinal-ascending, which is how the provider delivers them.
// The returned cursor is >= the input cursor and equals the highest ordinal
// in events when any candidate was processed; when no candidates exist the
// input cursor is returned unchanged.
func (s *Scanner) Scan(gameID string, cursor *int64, events []models.PlayEvent) (*int64, []models.Anomaly) {
	newCursor := cursor
	var anomalies []models.Anomaly

	for i := range events {
		ev := &events[i]
		if cursor != nil && ev.Ordinal <= *cursor {
			continue
		}

		// Advance through every candidate, not just missed shots, so the
		// cursor makes forward progress even when nothing is flagged.
		ord := ev.Ordinal
		newCursor = &ord

		if ev.Type != models.EventMissedShot {
			continue
		}

		reason := models.ReasonNoRebound
		for j := i + 1; j < len(events) && j <= i+s.lookahead; j++ {
			next := &events[j]
			// First team rebound wins. An individual rebound does not stop
			// the search; the window keeps being inspected for the marker.
			if next.Type == models.EventRebound && strings.Contains(next.Description(), teamReboundMarker) {
				reason = models.ReasonTeamRebound
				break
			}
		}

		anomalies = append(anomalies, models.Anomaly{
			ID:          uuid.New().String(),
			GameID:      gameID,
			Clock:       ev.Clock,
			Period:      ev.Period,
			Description: ev.Description(),
			Reason:      reason,
			DetectedAt:  time.Now(),
		})
	}

	return newCursor, anomalies
}
