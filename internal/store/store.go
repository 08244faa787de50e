// Package store provides thread-safe in-memory state for tracked games and
// accumulated anomalies. It is the single owner of mutable tracking state:
// the polling driver writes through it and the read API reads from it, with
// a RWMutex keeping the two from observing torn updates.
//
// State is process-local by design. Nothing is persisted; a restart begins
// the day from scratch.
package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/torrenbaker/nba-rebound-tracker/internal/models"
)

// Store holds per-game records and the flagged-anomaly accumulator.
type Store struct {
	mu       sync.RWMutex
	games    map[string]*models.Game
	flagged  []models.Anomaly
	lastPoll time.Time
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		games:   make(map[string]*models.Game),
		flagged: make([]models.Anomaly, 0),
	}
}

// UpsertGame creates or refreshes a game record. A refresh keeps the
// existing CreatedAt and LastEvent cursor so re-seeding a day never loses
// scan progress.
func (s *Store) UpsertGame(game *models.Game) error {
	if err := game.Validate(); err != nil {
		return fmt.Errorf("invalid game: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	g := *game
	if existing, ok := s.games[g.ID]; ok {
		g.CreatedAt = existing.CreatedAt
		g.LastEvent = existing.LastEvent
	}
	s.games[g.ID] = &g
	return nil
}

// Game retrieves a copy of a game record by ID.
func (s *Store) Game(id string) (models.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	game, exists := s.games[id]
	if !exists {
		return models.Game{}, fmt.Errorf("game not found: %s", id)
	}
	return *game, nil
}

// Games returns copies of all game records, sorted by ID for stable output.
func (s *Store) Games() []models.Game {
	s.mu.RLock()
	defer s.mu.RUnlock()

	games := make([]models.Game, 0, len(s.games))
	for _, game := range s.games {
		games = append(games, *game)
	}
	sort.Slice(games, func(i, j int) bool {
		return games[i].ID < games[j].ID
	})
	return games
}

// LiveGameIDs returns the IDs of games currently in live status, sorted.
func (s *Store) LiveGameIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for id, game := range s.games {
		if game.Status == models.StatusLive {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// LiveCount returns the number of games currently in live status.
func (s *Store) LiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, game := range s.games {
		if game.Status == models.StatusLive {
			count++
		}
	}
	return count
}

// TouchGame updates a game's status and last-updated timestamp.
func (s *Store) TouchGame(id string, status models.GameStatus, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	game, exists := s.games[id]
	if !exists {
		return fmt.Errorf("game not found: %s", id)
	}
	game.Status = status
	game.LastUpdated = ts
	return nil
}

// ApplyScan commits one scan result: the anomalies are appended and then the
// cursor is advanced, under a single lock, so a reader can never see the
// cursor ahead of its anomalies. A nil cursor leaves the stored cursor
// untouched; a cursor below the stored one is rejected.
func (s *Store) ApplyScan(id string, cursor *int64, anomalies []models.Anomaly) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	game, exists := s.games[id]
	if !exists {
		return fmt.Errorf("game not found: %s", id)
	}
	if cursor != nil && game.LastEvent != nil && *cursor < *game.LastEvent {
		return fmt.Errorf("cursor regression for game %s: %d < %d", id, *cursor, *game.LastEvent)
	}

	s.flagged = append(s.flagged, anomalies...)

	if cursor != nil {
		c := *cursor
		game.LastEvent = &c
	}
	return nil
}

// Anomalies returns a copy of all flagged anomalies in arrival order.
func (s *Store) Anomalies() []models.Anomaly {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Anomaly, len(s.flagged))
	copy(out, s.flagged)
	return out
}

// AnomaliesForGame returns the anomalies flagged for one game, in arrival
// order.
func (s *Store) AnomaliesForGame(id string) []models.Anomaly {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Anomaly
	for _, a := range s.flagged {
		if a.GameID == id {
			out = append(out, a)
		}
	}
	return out
}

// AnomalyCount returns the total number of flagged anomalies.
func (s *Store) AnomalyCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.flagged)
}

// SetLastPoll records the completion time of the most recent poll cycle.
func (s *Store) SetLastPoll(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastPoll = t
}

// LastPoll returns the completion time of the most recent poll cycle, or the
// zero time when no cycle has completed.
func (s *Store) LastPoll() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastPoll
}
