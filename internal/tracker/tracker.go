// Package tracker runs the tracking session: seed today's schedule, then
// poll live games on a fixed interval and feed each game's play-by-play
// through the anomaly scanner.
//
// One session exists at a time. Start refuses to spawn a second loop against
// the same state, and Stop cancels the session and waits for it to exit.
// Within a cycle live games are scanned one at a time to bound the outbound
// request rate; failures are isolated per game, so one bad fetch never
// aborts the cycle or the session.
package tracker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/torrenbaker/nba-rebound-tracker/internal/logger"
	"github.com/torrenbaker/nba-rebound-tracker/internal/models"
	"github.com/torrenbaker/nba-rebound-tracker/internal/nba"
	"github.com/torrenbaker/nba-rebound-tracker/internal/scanner"
	"github.com/torrenbaker/nba-rebound-tracker/internal/store"
)

// ErrAlreadyRunning is returned by Start when a session is active.
var ErrAlreadyRunning = errors.New("tracking session already running")

// Provider is the upstream data source: the daily schedule and per-game
// play-by-play feeds. Satisfied by *nba.Client.
type Provider interface {
	FetchScoreboard(ctx context.Context, date time.Time) ([]nba.ScheduledGame, error)
	FetchPlayByPlay(ctx context.Context, gameID string) ([]models.PlayEvent, error)
}

// Notifier receives newly flagged anomalies for one game. Satisfied by
// *telegram.Client.
type Notifier interface {
	SendAnomalies(matchup string, anomalies []models.Anomaly) error
}

// Tracker owns the polling loop for a tracking session.
type Tracker struct {
	store    *store.Store
	provider Provider
	scanner  *scanner.Scanner
	interval time.Duration
	notifier Notifier // optional

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a Tracker. notifier may be nil when push notifications are
// disabled.
func New(s *store.Store, provider Provider, sc *scanner.Scanner, interval time.Duration, notifier Notifier) *Tracker {
	return &Tracker{
		store:    s,
		provider: provider,
		scanner:  sc,
		interval: interval,
		notifier: notifier,
	}
}

// Running reports whether a tracking session is active.
func (t *Tracker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Start begins a tracking session for the current date. It returns
// ErrAlreadyRunning when a session is active; otherwise it spawns the
// session goroutine and returns immediately. The session ends on its own
// when seeding finds no games, or when Stop is called or ctx is canceled.
func (t *Tracker) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return ErrAlreadyRunning
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	t.running = true
	t.cancel = cancel
	t.done = done

	// The goroutine closes the done channel it was created with, never the
	// struct field: a session that ends on its own may be replaced by a new
	// Start before this goroutine finishes winding down.
	go func() {
		defer func() {
			t.mu.Lock()
			t.running = false
			t.mu.Unlock()
			cancel()
			close(done)
		}()
		t.run(sessionCtx)
	}()

	return nil
}

// Stop cancels the active session, if any, and waits for its goroutine to
// exit.
func (t *Tracker) Stop() {
	t.mu.Lock()
	cancel := t.cancel
	done := t.done
	t.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	if done != nil {
		<-done
	}
}

// run seeds the day and then polls until the session context is canceled.
func (t *Tracker) run(ctx context.Context) {
	count, err := t.seed(ctx)
	if err != nil {
		logger.Error("Failed to seed today's schedule: %v", err)
		return
	}
	if count == 0 {
		logger.Info("No games today, ending tracking session")
		return
	}
	logger.Info("Tracking %d games (interval: %v)", count, t.interval)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	// Scan immediately rather than waiting out the first interval.
	t.pollOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Tracking session stopped")
			return
		case <-ticker.C:
			t.pollOnce(ctx)
		}
	}
}

// seed fetches today's scoreboard and creates or refreshes the game records.
// Returns the number of games found.
func (t *Tracker) seed(ctx context.Context) (int, error) {
	today := time.Now()
	logger.Info("Seeding schedule for %s", today.Format("2006-01-02"))

	scheduled, err := t.provider.FetchScoreboard(ctx, today)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	count := 0
	for _, sg := range scheduled {
		game := &models.Game{
			ID:          sg.GameID,
			HomeTeamID:  sg.HomeTeamID,
			AwayTeamID:  sg.AwayTeamID,
			Status:      models.ParseGameStatus(sg.StatusText),
			LastUpdated: now,
			CreatedAt:   now,
		}
		if err := game.Validate(); err != nil {
			logger.Warn("Skipping malformed scheduled game %s: %v", sg.GameID, err)
			continue
		}
		if err := t.store.UpsertGame(game); err != nil {
			logger.Warn("Failed to store game %s: %v", sg.GameID, err)
			continue
		}
		count++
	}
	return count, nil
}

// pollOnce runs one cycle: scan every live game sequentially and stamp the
// cycle completion time.
func (t *Tracker) pollOnce(ctx context.Context) {
	liveIDs := t.store.LiveGameIDs()
	logger.Debug("Poll cycle: %d live games", len(liveIDs))

	for _, gameID := range liveIDs {
		if ctx.Err() != nil {
			return
		}
		t.scanGame(ctx, gameID)
	}

	t.store.SetLastPoll(time.Now())
}

// scanGame fetches one game's play-by-play and commits the scan result. All
// failures are logged and skipped; the cursor stays put for the next cycle.
func (t *Tracker) scanGame(ctx context.Context, gameID string) {
	game, err := t.store.Game(gameID)
	if err != nil {
		logger.Warn("Live game %s missing from store: %v", gameID, err)
		return
	}

	events, err := t.provider.FetchPlayByPlay(ctx, gameID)
	if err != nil {
		switch {
		case errors.Is(err, nba.ErrGameNotFound):
			logger.Warn("No play-by-play for game %s this cycle: %v", gameID, err)
		case errors.Is(err, nba.ErrMalformedData):
			logger.Warn("Malformed play-by-play for game %s, skipping cycle: %v", gameID, err)
		default:
			logger.Error("Failed to fetch play-by-play for game %s: %v", gameID, err)
		}
		return
	}

	cursor, anomalies := t.scanner.Scan(gameID, game.LastEvent, events)
	if err := t.store.ApplyScan(gameID, cursor, anomalies); err != nil {
		logger.Error("Failed to commit scan for game %s: %v", gameID, err)
		return
	}
	if err := t.store.TouchGame(gameID, game.Status, time.Now()); err != nil {
		logger.Warn("Failed to touch game %s: %v", gameID, err)
	}

	if len(anomalies) > 0 {
		logger.Info("Flagged %d anomalies for game %s", len(anomalies), gameID)
		t.notify(game, anomalies)
	}
}

// notify pushes newly flagged anomalies if a notifier is configured. Send
// failures are not retried here; the notifier owns its retry policy.
func (t *Tracker) notify(game models.Game, anomalies []models.Anomaly) {
	if t.notifier == nil {
		return
	}
	matchup := nba.TeamName(game.AwayTeamID) + " @ " + nba.TeamName(game.HomeTeamID)
	if err := t.notifier.SendAnomalies(matchup, anomalies); err != nil {
		logger.Warn("Failed to send anomaly notification for game %s: %v", game.ID, err)
	}
}
