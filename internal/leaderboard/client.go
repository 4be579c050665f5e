package leaderboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Entry is the payload posted for each player when a game ends.
type Entry struct {
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	BestScore int    `json:"bestScore"`
	GameMode  string `json:"gameMode"`
}

// Validate rejects entries the leaderboard cannot store.
func (e Entry) Validate() error {
	if strings.TrimSpace(e.UserID) == "" {
		return errors.New("userId is required")
	}
	if e.BestScore < 0 {
		return errors.New("bestScore must not be negative")
	}
	return nil
}

// Client posts scores to a remote leaderboard endpoint.
type Client struct {
	url        string
	httpClient *http.Client
	attempts   int
	backoff    time.Duration
}

// NewClient returns nil when no endpoint is configured.
func NewClient(url string, timeout time.Duration) *Client {
	if url == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		url:        strings.TrimRight(url, "/"),
		httpClient: &http.Client{Timeout: timeout},
		attempts:   3,
		backoff:    200 * time.Millisecond,
	}
}

// Submit posts one entry, retrying transport failures and 5xx responses.
func (c *Client) Submit(ctx context.Context, e Entry) error {
	if c == nil {
		return errors.New("leaderboard client not configured")
	}
	if err := e.Validate(); err != nil {
		return err
	}
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt < c.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(attempt) * c.backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		lastErr = fmt.Errorf("leaderboard responded %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
		if resp.StatusCode < 500 {
			return lastErr
		}
	}
	return lastErr
}
