package nhl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	logx "goalbot/pkg/logx"
)

const DefaultBaseURL = "https://api-web.nhle.com/v1"

var (
	// ErrMalformedResponse marks a response with an unexpected content type
	// or shape (e.g. a missing plays array). The affected game is skipped
	// for the cycle; this never degrades softly into empty data.
	ErrMalformedResponse = errors.New("nhl: malformed response")
)

// statusError carries a non-2xx HTTP status for transient classification.
type statusError struct {
	code int
	url  string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("nhl: unexpected status %d for %s", e.code, e.url)
}

type Config struct {
	BaseURL        string
	RequestTimeout time.Duration
}

// Client fetches the scoreboard and per-game play-by-play.
type Client struct {
	baseURL string
	http    *http.Client
	ua      string
	log     logx.Logger
}

func NewClient(cfg Config, log logx.Logger) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: base,
		http:    &http.Client{Timeout: timeout},
		ua:      "goalbot/1.0",
		log:     log,
	}
}

// LiveGames returns the ids of games currently in progress.
func (c *Client) LiveGames(ctx context.Context) ([]int, error) {
	var sb scoreboardResponse
	if err := c.getJSON(ctx, c.baseURL+"/score/now", &sb); err != nil {
		return nil, fmt.Errorf("fetch scoreboard: %w", err)
	}
	var ids []int
	for _, g := range sb.Games {
		if g.Live() {
			ids = append(ids, g.ID)
		}
	}
	return ids, nil
}

// PlayByPlay fetches the play-by-play feed for a game. A missing plays
// array is a hard precondition failure (ErrMalformedResponse).
func (c *Client) PlayByPlay(ctx context.Context, gameID int) (*GameFeed, error) {
	url := fmt.Sprintf("%s/gamecenter/%d/play-by-play", c.baseURL, gameID)
	var feed GameFeed
	if err := c.getJSON(ctx, url, &feed); err != nil {
		return nil, fmt.Errorf("fetch play-by-play for game %d: %w", gameID, err)
	}
	if feed.Plays == nil {
		return nil, fmt.Errorf("%w: play-by-play for game %d has no plays array", ErrMalformedResponse, gameID)
	}
	return &feed, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.ua)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		// Drain a little so the connection can be reused.
		_, _ = io.CopyN(io.Discard, resp.Body, 4<<10)
		return &statusError{code: resp.StatusCode, url: url}
	}

	ct := resp.Header.Get("Content-Type")
	if !strings.Contains(ct, "application/json") {
		return fmt.Errorf("%w: content type %q for %s", ErrMalformedResponse, ct, url)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrMalformedResponse, url, err)
	}
	return nil
}

// IsTransient reports whether err looks like a temporary upstream problem
// (timeouts, connection failures, 5xx). Repeated transient failures are
// what escalate to a poll-loop restart.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500 || se.code == http.StatusTooManyRequests
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var oe *net.OpError
	if errors.As(err, &oe) {
		return true
	}
	// Fallback for wrapped transport errors that don't expose a type.
	msg := err.Error()
	for _, sig := range []string{"connection reset", "connection refused", "no such host", "EOF"} {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}
