package surveys

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"plankton/internal"
	"plankton/internal/config"
	"plankton/internal/util"
)

const maxAttempts = 5

// ErrDuplicateSubmission means the remote dataset handed out the same
// submission id on two pages. That is an inconsistent dataset, not
// something to dedup away.
var ErrDuplicateSubmission = errors.New("duplicate submission id across pages")

type pagePayload struct {
	Count   *int             `json:"count"`
	Results []map[string]any `json:"results"`
}

// Client downloads paginated survey-platform submissions with basic
// auth. Pages are fetched until one comes back shorter than the page
// size; a failed page aborts the whole download rather than silently
// truncating it.
type Client struct {
	cfg        config.Config
	httpClient *http.Client
}

func NewClient(cfg config.Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.SurveyTimeoutMs) * time.Millisecond},
	}
}

func (c *Client) FetchAll(ctx context.Context) ([]internal.Submission, error) {
	if err := c.cfg.Require("SURVEY_API_BASE_URL", c.cfg.SurveyAPIBaseURL); err != nil {
		return nil, err
	}

	pageSize := c.cfg.SurveyPageSize
	if pageSize <= 0 {
		pageSize = 100
	}

	all := []internal.Submission{}
	seen := map[string]struct{}{}
	for start := 0; ; start += pageSize {
		results, err := c.fetchPage(ctx, start, pageSize)
		if err != nil {
			return nil, fmt.Errorf("fetching submissions at offset %d: %w", start, err)
		}

		for _, raw := range results {
			sub, err := toSubmission(raw)
			if err != nil {
				return nil, err
			}
			if _, dup := seen[sub.ID]; dup {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateSubmission, sub.ID)
			}
			seen[sub.ID] = struct{}{}
			all = append(all, sub)
		}

		if len(results) < pageSize {
			break
		}
	}

	return all, nil
}

func (c *Client) fetchPage(ctx context.Context, start, limit int) ([]map[string]any, error) {
	u, err := url.Parse(strings.TrimRight(c.cfg.SurveyAPIBaseURL, "/") + "/data.json")
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("start", strconv.Itoa(start))
	q.Set("limit", strconv.Itoa(limit))
	u.RawQuery = q.Encode()

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if c.cfg.SurveyAPIUser != "" {
			req.SetBasicAuth(c.cfg.SurveyAPIUser, c.cfg.SurveyAPIPassword)
		}

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

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if isRetryableStatus(resp.StatusCode) && attempt < maxAttempts {
				backoff := time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
				time.Sleep(backoff)
				lastErr = fmt.Errorf("survey api status %d", resp.StatusCode)
				continue
			}
			return nil, fmt.Errorf("survey api error: status=%d body=%s", resp.StatusCode, string(body))
		}

		var payload pagePayload
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, err
		}
		return payload.Results, nil
	}

	if lastErr == nil {
		lastErr = errors.New("survey request failed")
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

func toSubmission(raw map[string]any) (internal.Submission, error) {
	id := submissionID(raw)
	if id == "" {
		return internal.Submission{}, errors.New("submission without an id field")
	}

	sub := internal.Submission{ID: id, Flat: Flatten(raw)}
	if t, ok := raw["_submission_time"].(string); ok && strings.TrimSpace(t) != "" {
		sub.SubmittedAt = util.StringPtr(strings.TrimSpace(t))
	}
	blob, err := json.Marshal(raw)
	if err != nil {
		return internal.Submission{}, err
	}
	sub.RawJSON = string(blob)
	return sub, nil
}

func submissionID(raw map[string]any) string {
	for _, key := range []string{"_id", "id", "_uuid"} {
		switch v := raw[key].(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case json.Number:
			return v.String()
		}
	}
	return ""
}
