package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/park285/chess-daily-coach/internal/domain"
	"github.com/park285/chess-daily-coach/internal/obslog"
	"github.com/park285/chess-daily-coach/internal/state"
)

const defaultBaseURL = "https://api.chess.com"

// Client fetches a player's finished games from the chess.com
// published-data API (monthly archive endpoints).
type Client struct {
	baseURL string
	http    *fasthttp.Client

	defaultTimeout time.Duration
	retryMax       int
	userAgent      string
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:        defaultBaseURL,
		http:           &fasthttp.Client{ReadTimeout: 15 * time.Second, WriteTimeout: 15 * time.Second, MaxConnsPerHost: 8},
		defaultTimeout: 15 * time.Second,
		retryMax:       4,
		userAgent:      "chess-daily-coach",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type monthArchive struct {
	Games []archiveGame `json:"games"`
}

type archiveGame struct {
	URL         string        `json:"url"`
	PGN         string        `json:"pgn"`
	TimeControl string        `json:"time_control"`
	TimeClass   string        `json:"time_class"`
	EndTime     int64         `json:"end_time"`
	Rated       bool          `json:"rated"`
	Rules       string        `json:"rules"`
	White       archivePlayer `json:"white"`
	Black       archivePlayer `json:"black"`
}

type archivePlayer struct {
	Username string `json:"username"`
	Rating   int    `json:"rating"`
	Result   string `json:"result"`
}

// GamesSince returns the player's standard-rules games that ended
// inside (since, until], deduplicated against the watermark, newest
// first. Zero games is a valid outcome; exhausted retries surface a
// RetrievalError.
func (c *Client) GamesSince(ctx context.Context, username string, since, until time.Time, wm *state.Watermark) ([]domain.Game, error) {
	if strings.TrimSpace(username) == "" {
		return nil, &domain.RetrievalError{Op: "fetch", Err: fmt.Errorf("empty username")}
	}
	if !until.After(since) {
		return nil, nil
	}

	var games []domain.Game
	for _, m := range monthsBetween(since, until) {
		arch, err := c.monthlyArchive(ctx, username, m.year, m.month)
		if err != nil {
			return nil, err
		}
		for _, ag := range arch.Games {
			g, ok := normalizeGame(ag, username)
			if !ok {
				continue
			}
			if !g.EndedAt.After(since) || g.EndedAt.After(until) {
				continue
			}
			if wm != nil && wm.Seen(g.ID, g.EndedAt) {
				continue
			}
			games = append(games, g)
		}
	}

	sort.Slice(games, func(i, j int) bool {
		if games[i].EndedAt.Equal(games[j].EndedAt) {
			return games[i].ID > games[j].ID
		}
		return games[i].EndedAt.After(games[j].EndedAt)
	})
	return games, nil
}

type yearMonth struct {
	year  int
	month time.Month
}

func monthsBetween(since, until time.Time) []yearMonth {
	since = since.UTC()
	until = until.UTC()
	var out []yearMonth
	cur := time.Date(since.Year(), since.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(until.Year(), until.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !cur.After(end) {
		out = append(out, yearMonth{year: cur.Year(), month: cur.Month()})
		cur = cur.AddDate(0, 1, 0)
	}
	return out
}

func (c *Client) monthlyArchive(ctx context.Context, username string, year int, month time.Month) (*monthArchive, error) {
	path := fmt.Sprintf("/pub/player/%s/games/%04d/%02d", strings.ToLower(username), year, int(month))

	body, status, err := c.get(ctx, path)
	if err != nil {
		return nil, &domain.RetrievalError{Op: "GET " + path, Err: err}
	}
	if status == fasthttp.StatusNotFound {
		// No archive for that month yet.
		return &monthArchive{}, nil
	}

	var arch monthArchive
	if err := json.Unmarshal(body, &arch); err != nil {
		return nil, &domain.RetrievalError{Op: "decode " + path, Err: err}
	}
	return &arch, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, int, error) {
	url := c.baseURL + path
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI(url)
	req.Header.Set("User-Agent", c.userAgent)

	attempts := c.retryMax
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		deadline := c.computeDeadline(ctx)
		err := c.http.DoDeadline(req, resp, deadline)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			if attempt == attempts {
				break
			}
			if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return nil, 0, lastErr
			}
			continue
		}

		status := resp.StatusCode()
		if status == fasthttp.StatusNotFound {
			return nil, status, nil
		}
		if status < 200 || status >= 300 {
			lastErr = fmt.Errorf("archive api error: status=%d body=%s", status, truncate(string(resp.Body()), 512))
			if attempt == attempts || !shouldRetryStatus(status) {
				break
			}
			obslog.L().Warn("archive fetch retrying",
				zap.String("path", path),
				zap.Int("status", status),
				zap.Int("attempt", attempt))
			if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return nil, 0, lastErr
			}
			continue
		}

		return append([]byte(nil), resp.Body()...), status, nil
	}

	return nil, 0, lastErr
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	if dl, ok := ctx.Deadline(); ok {
		clientDL := time.Now().Add(c.defaultTimeout)
		if dl.Before(clientDL) {
			return dl
		}
		return clientDL
	}
	return time.Now().Add(c.defaultTimeout)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	base := 250 * time.Millisecond
	return time.Duration(1<<uint(attempt-1)) * base // 250ms, 500ms ...
}

func shouldRetryStatus(code int) bool {
	switch code {
	case fasthttp.StatusTooManyRequests, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
