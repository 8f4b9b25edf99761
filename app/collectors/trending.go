package collectors

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const trendingFetchTimeout = 10 * time.Second

// TrendingRepo is one entry from the GitHub trending fetch, used for the
// newsletter's community pulse section.
type TrendingRepo struct {
	FullName    string `json:"full_name"`
	URL         string `json:"html_url"`
	Description string `json:"description"`
	Language    string `json:"language"`
	Stars       int    `json:"stargazers_count"`
}

// TrendingCollector fetches the week's most-starred new repositories from the
// GitHub search API.
type TrendingCollector struct {
	client    *http.Client
	userAgent string
	baseURL   string
}

func NewTrendingCollector(client *http.Client, userAgent string) *TrendingCollector {
	return &TrendingCollector{
		client:    client,
		userAgent: userAgent,
		baseURL:   "https://api.github.com",
	}
}

// Collect returns up to limit trending repositories. Unlike the article
// collectors this returns an error: the caller treats the step as
// best-effort and records the failure without aborting.
func (c *TrendingCollector) Collect(ctx context.Context, limit int) ([]TrendingRepo, error) {
	reqCtx, cancel := context.WithTimeout(ctx, trendingFetchTimeout)
	defer cancel()

	since := time.Now().AddDate(0, 0, -7).Format("2006-01-02")
	url := fmt.Sprintf("%s/search/repositories?q=created:>%s&sort=stars&order=desc&per_page=%d",
		c.baseURL, since, limit)

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("github search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("github search returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var result struct {
		Items []TrendingRepo `json:"items"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse github response: %w", err)
	}

	slog.Info("Trending repositories fetched", "count", len(result.Items))
	return result.Items, nil
}
