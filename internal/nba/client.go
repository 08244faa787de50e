// Package nba provides access to the stats.nba.com API: the daily scoreboard
// and per-game play-by-play feeds. Responses arrive in the stats API's
// tabular envelope (named result sets of headers plus row tuples), which this
// package flattens into domain models.
package nba

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/torrenbaker/nba-rebound-tracker/internal/models"
)

// Failure taxonomy for upstream calls. Callers branch with errors.Is.
var (
	// ErrUpstreamUnavailable covers network errors, rate limiting, and 5xx
	// responses after retries are exhausted.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrGameNotFound means the provider has no data for the requested game.
	ErrGameNotFound = errors.New("game not found")
	// ErrMalformedData means the provider responded with an unexpected shape.
	ErrMalformedData = errors.New("malformed data")
)

// ScheduledGame is one scoreboard row: a game scheduled for the requested
// date with its team identifiers and raw status text.
type ScheduledGame struct {
	GameID     string
	HomeTeamID int64
	AwayTeamID int64
	StatusText string
}

// Client provides access to the stats API.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a stats API client. maxRetries and retryDelayBase bound
// the retry loop for transient failures.
func NewClient(baseURL string, timeout time.Duration, maxRetries int, retryDelayBase time.Duration) *Client {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}
}

// statsResponse is the stats API's tabular envelope.
type statsResponse struct {
	ResultSets []resultSet `json:"resultSets"`
}

type resultSet struct {
	Name    string   `json:"name"`
	Headers []string `json:"headers"`
	RowSet  [][]any  `json:"rowSet"`
}

// column returns the index of a named header.
func (rs *resultSet) column(name string) (int, error) {
	for i, h := range rs.Headers {
		if h == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: result set %q has no column %q", ErrMalformedData, rs.Name, name)
}

// FetchScoreboard retrieves the games scheduled for the given date.
func (c *Client) FetchScoreboard(ctx context.Context, date time.Time) ([]ScheduledGame, error) {
	url := fmt.Sprintf("%s/scoreboardv2?GameDate=%s&LeagueID=00&DayOffset=0",
		c.baseURL, date.Format("01/02/2006"))

	var resp statsResponse
	if err := c.getJSON(ctx, url, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch scoreboard: %w", err)
	}

	rs, err := findResultSet(&resp, "GameHeader")
	if err != nil {
		return nil, err
	}

	idCol, err := rs.column("GAME_ID")
	if err != nil {
		return nil, err
	}
	homeCol, err := rs.column("HOME_TEAM_ID")
	if err != nil {
		return nil, err
	}
	awayCol, err := rs.column("VISITOR_TEAM_ID")
	if err != nil {
		return nil, err
	}
	statusCol, err := rs.column("GAME_STATUS_TEXT")
	if err != nil {
		return nil, err
	}

	games := make([]ScheduledGame, 0, len(rs.RowSet))
	for i, row := range rs.RowSet {
		gameID := cellString(cell(row, idCol))
		if gameID == "" {
			return nil, fmt.Errorf("%w: scoreboard row %d has no game ID", ErrMalformedData, i)
		}
		home, ok := cellInt(cell(row, homeCol))
		if !ok {
			return nil, fmt.Errorf("%w: scoreboard row %d has no home team ID", ErrMalformedData, i)
		}
		away, ok := cellInt(cell(row, awayCol))
		if !ok {
			return nil, fmt.Errorf("%w: scoreboard row %d has no visitor team ID", ErrMalformedData, i)
		}
		games = append(games, ScheduledGame{
			GameID:     gameID,
			HomeTeamID: home,
			AwayTeamID: away,
			StatusText: cellString(cell(row, statusCol)),
		})
	}
	return games, nil
}

// FetchPlayByPlay retrieves the full ordered event sequence observed so far
// for a game. An unknown game surfaces as ErrGameNotFound, whether the API
// answers 404 or an empty play-by-play set.
func (c *Client) FetchPlayByPlay(ctx context.Context, gameID string) ([]models.PlayEvent, error) {
	url := fmt.Sprintf("%s/playbyplayv2?GameID=%s&StartPeriod=1&EndPeriod=14", c.baseURL, gameID)

	var resp statsResponse
	if err := c.getJSON(ctx, url, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch play-by-play for game %s: %w", gameID, err)
	}

	rs, err := findResultSet(&resp, "PlayByPlay")
	if err != nil {
		return nil, err
	}
	if len(rs.RowSet) == 0 {
		return nil, fmt.Errorf("no play-by-play for game %s: %w", gameID, ErrGameNotFound)
	}

	numCol, err := rs.column("EVENTNUM")
	if err != nil {
		return nil, err
	}
	typeCol, err := rs.column("EVENTMSGTYPE")
	if err != nil {
		return nil, err
	}
	periodCol, err := rs.column("PERIOD")
	if err != nil {
		return nil, err
	}
	clockCol, err := rs.column("PCTIMESTRING")
	if err != nil {
		return nil, err
	}
	homeCol, err := rs.column("HOMEDESCRIPTION")
	if err != nil {
		return nil, err
	}
	awayCol, err := rs.column("VISITORDESCRIPTION")
	if err != nil {
		return nil, err
	}

	events := make([]models.PlayEvent, 0, len(rs.RowSet))
	for i, row := range rs.RowSet {
		ordinal, ok := cellInt(cell(row, numCol))
		if !ok {
			return nil, fmt.Errorf("%w: play-by-play row %d has no event number", ErrMalformedData, i)
		}
		msgType, ok := cellInt(cell(row, typeCol))
		if !ok {
			return nil, fmt.Errorf("%w: play-by-play row %d has no event type", ErrMalformedData, i)
		}
		period, _ := cellInt(cell(row, periodCol))
		events = append(events, models.PlayEvent{
			Ordinal:         ordinal,
			Type:            eventType(msgType),
			Period:          int(period),
			Clock:           cellString(cell(row, clockCol)),
			HomeDescription: cellString(cell(row, homeCol)),
			AwayDescription: cellString(cell(row, awayCol)),
		})
	}
	return events, nil
}

// eventType maps a raw EVENTMSGTYPE code onto the scanner's event alphabet.
func eventType(msgType int64) models.EventType {
	switch msgType {
	case 2:
		return models.EventMissedShot
	case 4:
		return models.EventRebound
	default:
		return models.EventOther
	}
}

func findResultSet(resp *statsResponse, name string) (*resultSet, error) {
	for i := range resp.ResultSets {
		if resp.ResultSets[i].Name == name {
			return &resp.ResultSets[i], nil
		}
	}
	return nil, fmt.Errorf("%w: response has no %q result set", ErrMalformedData, name)
}

// cell returns row[i], or nil when the row is short.
func cell(row []any, i int) any {
	if i >= len(row) {
		return nil
	}
	return row[i]
}

// cellString converts a row cell to a string. Null cells (the API uses null
// for the unpopulated description side) become "".
func cellString(v any) string {
	s, _ := v.(string)
	return s
}

// cellInt converts a row cell to an int64. The API emits identifiers and
// counters as JSON numbers, but tolerate strings too.
func cellInt(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

// getJSON performs a GET with bounded retry and decodes the JSON body.
// Network errors and 429/5xx responses are retried with linear backoff;
// a 404 fails immediately as game-not-found.
func (c *Client) getJSON(ctx context.Context, url string, out *statsResponse) error {
	var lastErr error

	for i := 0; i < c.maxRetries; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		// The stats API rejects requests without browser-looking headers.
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7)")
		req.Header.Set("Referer", "https://www.nba.com/")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if !sleepCtx(ctx, c.retryDelayBase*time.Duration(i+1)) {
				return ctx.Err()
			}
			continue
		}

		switch {
		case resp.StatusCode == http.StatusNotFound:
			resp.Body.Close()
			return ErrGameNotFound
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			resp.Body.Close()
			lastErr = fmt.Errorf("server returned %d", resp.StatusCode)
			if !sleepCtx(ctx, c.retryDelayBase*time.Duration(i+1)) {
				return ctx.Err()
			}
			continue
		case resp.StatusCode != http.StatusOK:
			resp.Body.Close()
			return fmt.Errorf("%w: server returned %d", ErrUpstreamUnavailable, resp.StatusCode)
		}

		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedData, err)
		}
		return nil
	}

	return fmt.Errorf("%w: max retries exceeded: %v", ErrUpstreamUnavailable, lastErr)
}

// sleepCtx sleeps for d unless ctx is canceled first. Returns false on
// cancellation.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
