package activity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// APIClient is the narrow REST surface DailyCheckIn and ReadToEarn call
// against the mobile rewards API, authenticated with a bearer token
// acquired during the Per-Account Pipeline's OAuth handoff.
type APIClient struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewAPIClient returns a client bound to one OAuth bearer token.
func NewAPIClient(baseURL, token string) *APIClient {
	return &APIClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    baseURL,
		token:      token,
	}
}

func (c *APIClient) post(ctx context.Context, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("activity: marshal request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("activity: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("activity: api call %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return fmt.Errorf("activity: read response %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("activity: api %s returned status %d: %s", path, resp.StatusCode, string(raw))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("activity: parse response %s: %w", path, err)
	}
	return nil
}

// DailyCheckInResult reports the points awarded by a check-in call.
type DailyCheckInResult struct {
	PointsEarned int `json:"pointsEarned"`
	AlreadyDone  bool `json:"alreadyDone"`
}

// DailyCheckIn calls the check-in endpoint directly; unlike the
// browser-driven kinds, no tab is involved (spec.md §4.11).
func (c *APIClient) DailyCheckIn(ctx context.Context) (DailyCheckInResult, error) {
	var out DailyCheckInResult
	if err := c.post(ctx, "/api/rewards/dailycheckin", nil, &out); err != nil {
		return DailyCheckInResult{}, err
	}
	return out, nil
}

// Article is one read-to-earn candidate returned by the feed endpoint.
type Article struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func (c *APIClient) readToEarnFeed(ctx context.Context) ([]Article, error) {
	var out struct {
		Articles []Article `json:"articles"`
	}
	if err := c.post(ctx, "/api/rewards/readtoearn/feed", nil, &out); err != nil {
		return nil, err
	}
	return out.Articles, nil
}

func (c *APIClient) readArticle(ctx context.Context, id string) (int, error) {
	var out struct {
		PointsEarned int `json:"pointsEarned"`
	}
	if err := c.post(ctx, "/api/rewards/readtoearn/read", map[string]string{"articleId": id}, &out); err != nil {
		return 0, err
	}
	return out.PointsEarned, nil
}
