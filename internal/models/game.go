// Package models defines the core domain entities for the rebound tracker.
// These models represent tracked games, play-by-play events, and flagged
// rebound-attribution anomalies.
//
// Terminology (matching the stats API's own naming):
//   - Game: one scheduled NBA game for the tracked date, identified by GAME_ID.
//   - Play event: one row of the play-by-play feed, identified by EVENTNUM.
package models

import (
	"errors"
	"strings"
	"time"
)

// GameStatus classifies a game's progress as reported by the schedule feed.
type GameStatus string

const (
	// StatusScheduled means the game has not tipped off yet.
	StatusScheduled GameStatus = "scheduled"
	// StatusLive means the game is in progress and eligible for scanning.
	StatusLive GameStatus = "live"
	// StatusFinal means the game has ended.
	StatusFinal GameStatus = "final"
	// StatusUnknown covers status text that matched no known pattern.
	StatusUnknown GameStatus = "unknown"
)

// ParseGameStatus derives a GameStatus from the provider's free-form status
// text by substring match. Anything containing "live" or "qtr" is live.
// Status text for untipped games is a start time like "7:30 pm ET".
func ParseGameStatus(text string) GameStatus {
	s := strings.ToLower(strings.TrimSpace(text))
	switch {
	case strings.Contains(s, "live"), strings.Contains(s, "qtr"):
		return StatusLive
	case strings.Contains(s, "final"):
		return StatusFinal
	case strings.Contains(s, "am"), strings.Contains(s, "pm"):
		return StatusScheduled
	default:
		return StatusUnknown
	}
}

// Game represents one tracked game. A record is created when the schedule
// fetch first reports the game and lives for the rest of the process; state
// is process-local and resets on restart.
//
// LastEvent is the ordinal of the most recently processed play-by-play event
// (the cursor). nil means no events have been processed yet. The cursor is
// non-decreasing for the lifetime of the record.
type Game struct {
	ID          string     `json:"game_id"`
	HomeTeamID  int64      `json:"home_team_id"`
	AwayTeamID  int64      `json:"away_team_id"`
	Status      GameStatus `json:"status"`
	LastEvent   *int64     `json:"last_event"`
	LastUpdated time.Time  `json:"last_updated"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Validate checks that all game fields are valid.
func (g *Game) Validate() error {
	if g.ID == "" {
		return errors.New("game ID must not be empty")
	}
	if g.HomeTeamID == 0 {
		return errors.New("home team ID must not be zero")
	}
	if g.AwayTeamID == 0 {
		return errors.New("away team ID must not be zero")
	}
	switch g.Status {
	case StatusScheduled, StatusLive, StatusFinal, StatusUnknown:
	default:
		return errors.New("status must be one of: scheduled, live, final, unknown")
	}
	if g.LastEvent != nil && *g.LastEvent < 0 {
		return errors.New("last event ordinal must not be negative")
	}
	if g.CreatedAt.After(g.LastUpdated) {
		return errors.New("created at must be <= last updated")
	}
	return nil
}
