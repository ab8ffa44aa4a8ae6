package worms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"plankton/internal"
	"plankton/internal/config"
)

const maxAttempts = 5

// Client talks to a WoRMS-style REST service: name in, best-match
// Aphia record (or nothing) out.
type Client struct {
	cfg        config.Config
	httpClient *http.Client
	limiter    *RateLimiter
}

func NewClient(cfg config.Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.WormsTimeoutMs) * time.Millisecond},
		limiter:    NewRateLimiter(cfg.WormsRateLimitRPS),
	}
}

// AphiaRecordsByName resolves a normalized name against the service.
// A clean "no match" returns (nil, nil); only transport-level
// problems surface as errors.
func (c *Client) AphiaRecordsByName(ctx context.Context, name string) (*internal.AphiaRecord, error) {
	endpoint := strings.TrimRight(c.cfg.WormsBaseURL, "/") + "/AphiaRecordsByName/" + url.PathEscape(name)
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("like", "false")
	q.Set("marine_only", "true")
	u.RawQuery = q.Encode()

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		c.limiter.WaitTurn()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode == http.StatusNoContent {
			return nil, nil
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if isRetryableStatus(resp.StatusCode) && attempt < maxAttempts {
				backoff := time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
				time.Sleep(backoff)
				lastErr = fmt.Errorf("worms status %d", resp.StatusCode)
				continue
			}
			return nil, fmt.Errorf("worms api error: status=%d body=%s", resp.StatusCode, string(body))
		}

		return bestRecord(body)
	}

	if lastErr == nil {
		lastErr = errors.New("worms request failed")
	}
	return nil, lastErr
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// bestRecord picks from the service's candidate list: the first
// accepted record, else the first record.
func bestRecord(body []byte) (*internal.AphiaRecord, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}

	records := make([]internal.AphiaRecord, len(raw))
	for i, blob := range raw {
		if err := json.Unmarshal(blob, &records[i]); err != nil {
			return nil, err
		}
		records[i].RawJSON = string(blob)
	}

	for i := range records {
		if records[i].Status != nil && *records[i].Status == "accepted" {
			return &records[i], nil
		}
	}
	return &records[0], nil
}
