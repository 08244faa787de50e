package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/torrenbaker/nba-rebound-tracker/internal/models"
	"github.com/torrenbaker/nba-rebound-tracker/internal/nba"
	"github.com/torrenbaker/nba-rebound-tracker/internal/scanner"
	"github.com/torrenbaker/nba-rebound-tracker/internal/store"
)

type fakeProvider struct {
	mu          sync.Mutex
	schedule    []nba.ScheduledGame
	scheduleErr error
	events      map[string][]models.PlayEvent
	errs        map[string]error
	fetched     []string
	block       chan struct{} // when set, FetchScoreboard waits on it
}

func (f *fakeProvider) FetchScoreboard(ctx context.Context, date time.Time) ([]nba.ScheduledGame, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.schedule, f.scheduleErr
}

func (f *fakeProvider) FetchPlayByPlay(ctx context.Context, gameID string) ([]models.PlayEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, gameID)
	if err, ok := f.errs[gameID]; ok {
		return nil, err
	}
	return f.events[gameID], nil
}

func (f *fakeProvider) fetchedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.fetched))
	copy(out, f.fetched)
	return out
}

type fakeNotifier struct {
	mu       sync.Mutex
	matchups []string
	count    int
}

func (f *fakeNotifier) SendAnomalies(matchup string, anomalies []models.Anomaly) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.matchups = append(f.matchups, matchup)
	f.count += len(anomalies)
	return nil
}

func liveGame(id string) *models.Game {
	now := time.Now()
	return &models.Game{
		ID:          id,
		HomeTeamID:  1610612738,
		AwayTeamID:  1610612747,
		Status:      models.StatusLive,
		LastUpdated: now,
		CreatedAt:   now,
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

func TestStartRejectsSecondSession(t *testing.T) {
	provider := &fakeProvider{block: make(chan struct{})}
	tr := New(store.New(), provider, scanner.New(3), time.Hour, nil)
	defer tr.Stop()

	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("first Start failed: %v", err)
	}
	if err := tr.Start(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("expected ErrAlreadyRunning, got %v", err)
	}
}

func TestSeedWithNoGamesEndsSession(t *testing.T) {
	provider := &fakeProvider{}
	tr := New(store.New(), provider, scanner.New(3), time.Hour, nil)

	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitFor(t, func() bool { return !tr.Running() })

	// Starting again after the empty day must work.
	provider.mu.Lock()
	provider.schedule = nil
	provider.mu.Unlock()
	if err := tr.Start(context.Background()); err != nil {
		t.Errorf("restart after empty seed failed: %v", err)
	}
	waitFor(t, func() bool { return !tr.Running() })
}

func TestRestartRaceClosesOwnSession(t *testing.T) {
	// Each session ends on its own right after seeding finds no games.
	// Hammering Start against these self-ending sessions exercises the
	// window between a session marking itself not running and its goroutine
	// winding down; a finishing session must only ever close the channel it
	// was created with, not whatever a newer Start installed.
	provider := &fakeProvider{}
	tr := New(store.New(), provider, scanner.New(3), time.Hour, nil)

	for i := 0; i < 200; i++ {
		for {
			err := tr.Start(context.Background())
			if err == nil {
				break
			}
			if !errors.Is(err, ErrAlreadyRunning) {
				t.Fatalf("Start failed: %v", err)
			}
		}
	}

	tr.Stop()
	waitFor(t, func() bool { return !tr.Running() })
}

func TestSeedFailureEndsSession(t *testing.T) {
	provider := &fakeProvider{scheduleErr: nba.ErrUpstreamUnavailable}
	tr := New(store.New(), provider, scanner.New(3), time.Hour, nil)

	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitFor(t, func() bool { return !tr.Running() })
}

func TestSeedCreatesGameRecords(t *testing.T) {
	provider := &fakeProvider{
		schedule: []nba.ScheduledGame{
			{GameID: "0022300123", HomeTeamID: 1610612738, AwayTeamID: 1610612747, StatusText: "2nd Qtr"},
			{GameID: "0022300124", HomeTeamID: 1610612752, AwayTeamID: 1610612741, StatusText: "7:30 pm ET"},
		},
	}
	st := store.New()
	tr := New(st, provider, scanner.New(3), time.Hour, nil)

	count, err := tr.seed(context.Background())
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 games seeded, got %d", count)
	}

	game, err := st.Game("0022300123")
	if err != nil {
		t.Fatalf("game not stored: %v", err)
	}
	if game.Status != models.StatusLive {
		t.Errorf("expected live status, got %s", game.Status)
	}
	if got := st.LiveCount(); got != 1 {
		t.Errorf("expected 1 live game, got %d", got)
	}
}

func TestPollOnceScansOnlyLiveGames(t *testing.T) {
	st := store.New()
	live := liveGame("live-1")
	idle := liveGame("idle-1")
	idle.Status = models.StatusScheduled
	done := liveGame("done-1")
	done.Status = models.StatusFinal
	for _, g := range []*models.Game{live, idle, done} {
		if err := st.UpsertGame(g); err != nil {
			t.Fatalf("UpsertGame failed: %v", err)
		}
	}

	provider := &fakeProvider{events: map[string][]models.PlayEvent{
		"live-1": {{Ordinal: 1, Type: models.EventOther, Period: 1, Clock: "11:00"}},
	}}
	tr := New(st, provider, scanner.New(3), time.Hour, nil)

	tr.pollOnce(context.Background())

	fetched := provider.fetchedIDs()
	if len(fetched) != 1 || fetched[0] != "live-1" {
		t.Errorf("expected only live-1 fetched, got %v", fetched)
	}
	if st.LastPoll().IsZero() {
		t.Error("expected last poll timestamp to be set")
	}
}

func TestPollOnceIsolatesPerGameFailures(t *testing.T) {
	st := store.New()
	for _, id := range []string{"game-a", "game-b"} {
		if err := st.UpsertGame(liveGame(id)); err != nil {
			t.Fatalf("UpsertGame failed: %v", err)
		}
	}

	provider := &fakeProvider{
		errs: map[string]error{"game-a": nba.ErrGameNotFound},
		events: map[string][]models.PlayEvent{
			"game-b": {
				{Ordinal: 1, Type: models.EventMissedShot, Period: 1, Clock: "9:00", HomeDescription: "MISS X"},
				{Ordinal: 2, Type: models.EventRebound, Period: 1, Clock: "8:58", HomeDescription: "Team Rebound"},
			},
		},
	}
	tr := New(st, provider, scanner.New(3), time.Hour, nil)

	tr.pollOnce(context.Background())

	// game-a failed: cursor untouched, no anomalies.
	a, _ := st.Game("game-a")
	if a.LastEvent != nil {
		t.Errorf("expected game-a cursor untouched, got %v", a.LastEvent)
	}
	if got := st.AnomaliesForGame("game-a"); len(got) != 0 {
		t.Errorf("expected no anomalies for game-a, got %d", len(got))
	}

	// game-b scanned despite game-a's failure.
	b, _ := st.Game("game-b")
	if b.LastEvent == nil || *b.LastEvent != 2 {
		t.Errorf("expected game-b cursor 2, got %v", b.LastEvent)
	}
	got := st.AnomaliesForGame("game-b")
	if len(got) != 1 || got[0].Reason != models.ReasonTeamRebound {
		t.Errorf("expected one TEAM_REBOUND_MISATTRIBUTION for game-b, got %+v", got)
	}
}

func TestRepeatedPollsDoNotDoubleFlag(t *testing.T) {
	st := store.New()
	if err := st.UpsertGame(liveGame("game-1")); err != nil {
		t.Fatalf("UpsertGame failed: %v", err)
	}

	provider := &fakeProvider{events: map[string][]models.PlayEvent{
		"game-1": {
			{Ordinal: 1, Type: models.EventMissedShot, Period: 1, Clock: "9:00", HomeDescription: "MISS X"},
			{Ordinal: 2, Type: models.EventRebound, Period: 1, Clock: "8:58", HomeDescription: "Team Rebound"},
		},
	}}
	tr := New(st, provider, scanner.New(3), time.Hour, nil)

	tr.pollOnce(context.Background())
	tr.pollOnce(context.Background())
	tr.pollOnce(context.Background())

	if got := st.AnomalyCount(); got != 1 {
		t.Errorf("expected exactly 1 anomaly across repeated polls, got %d", got)
	}
}

func TestNotifierReceivesNewAnomalies(t *testing.T) {
	st := store.New()
	if err := st.UpsertGame(liveGame("game-1")); err != nil {
		t.Fatalf("UpsertGame failed: %v", err)
	}

	provider := &fakeProvider{events: map[string][]models.PlayEvent{
		"game-1": {
			{Ordinal: 1, Type: models.EventMissedShot, Period: 2, Clock: "5:00", AwayDescription: "MISS Y"},
		},
	}}
	notifier := &fakeNotifier{}
	tr := New(st, provider, scanner.New(3), time.Hour, notifier)

	tr.pollOnce(context.Background())
	tr.pollOnce(context.Background())

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if notifier.count != 1 {
		t.Errorf("expected notifier called with 1 anomaly, got %d", notifier.count)
	}
	if len(notifier.matchups) != 1 || notifier.matchups[0] != "Lakers @ Celtics" {
		t.Errorf("unexpected matchups: %v", notifier.matchups)
	}
}

func TestStopEndsSession(t *testing.T) {
	provider := &fakeProvider{
		schedule: []nba.ScheduledGame{
			{GameID: "0022300123", HomeTeamID: 1610612738, AwayTeamID: 1610612747, StatusText: "1st Qtr"},
		},
		events: map[string][]models.PlayEvent{},
	}
	tr := New(store.New(), provider, scanner.New(3), 10*time.Millisecond, nil)

	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitFor(t, func() bool { return len(provider.fetchedIDs()) > 0 })

	tr.Stop()
	if tr.Running() {
		t.Error("expected session stopped")
	}

	// Stop is safe to call again.
	tr.Stop()
}

func TestParentContextCancelEndsSession(t *testing.T) {
	provider := &fakeProvider{
		schedule: []nba.ScheduledGame{
			{GameID: "0022300123", HomeTeamID: 1610612738, AwayTeamID: 1610612747, StatusText: "1st Qtr"},
		},
	}
	tr := New(store.New(), provider, scanner.New(3), 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	if err := tr.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitFor(t, func() bool { return tr.Running() })

	cancel()
	waitFor(t, func() bool { return !tr.Running() })
}
