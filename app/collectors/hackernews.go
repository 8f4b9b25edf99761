package collectors

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/aitechdaily/digest/app/article"
	"github.com/aitechdaily/digest/app/sources"
)

const (
	hnListTimeout = 10 * time.Second
	hnItemTimeout = 5 * time.Second
	hnBatchSize   = 10
)

type hnStory struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Score       int    `json:"score"`
	By          string `json:"by"`
	Time        int64  `json:"time"`
	Descendants int    `json:"descendants"`
	Type        string `json:"type"`
}

// HackerNewsCollector fetches top stories from the Hacker News Firebase API.
type HackerNewsCollector struct {
	config    sources.HackerNewsConfig
	client    *http.Client
	userAgent string
	baseURL   string
}

func NewHackerNewsCollector(config sources.HackerNewsConfig, client *http.Client, userAgent string) *HackerNewsCollector {
	return &HackerNewsCollector{
		config:    config,
		client:    client,
		userAgent: userAgent,
		baseURL:   "https://hacker-news.firebaseio.com/v0",
	}
}

// Collect fetches the ranked story ID list, then story details in parallel
// batches, keeping stories at or above the configured score floor. Any
// failure degrades to an empty or partial result.
func (c *HackerNewsCollector) Collect(ctx context.Context, limit int) []article.Article {
	if limit <= 0 {
		limit = c.config.TopStoriesLimit
	}

	slog.Info("Collecting Hacker News top stories", "limit", limit)

	ids, err := c.fetchTopIDs(ctx)
	if err != nil {
		slog.Warn("Hacker News list fetch failed", "error", err)
		return nil
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}

	now := time.Now()
	var mu sync.Mutex
	var collected []article.Article

	for start := 0; start < len(ids); start += hnBatchSize {
		end := min(start+hnBatchSize, len(ids))

		var wg sync.WaitGroup
		for _, id := range ids[start:end] {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()

				story, err := c.fetchStory(ctx, id)
				if err != nil {
					slog.Debug("Hacker News item fetch failed", "id", id, "error", err)
					return
				}

				if story.Type != "story" || story.URL == "" || story.Score < c.config.MinScore {
					return
				}

				mu.Lock()
				collected = append(collected, c.toArticle(story, now))
				mu.Unlock()
			}(id)
		}
		wg.Wait()

		select {
		case <-ctx.Done():
			slog.Warn("Hacker News collection cancelled", "collected", len(collected))
			return collected
		default:
		}
	}

	slog.Info("Hacker News collection complete", "stories", len(collected))
	return collected
}

func (c *HackerNewsCollector) toArticle(story *hnStory, now time.Time) article.Article {
	priority := article.PriorityMedium
	if story.Score > 200 {
		priority = article.PriorityHigh
	}

	importance := 5
	switch {
	case story.Score > 300:
		importance = 7
	case story.Score > 100:
		importance = 6
	}

	return article.Article{
		Title:       story.Title,
		Link:        story.URL,
		Description: fmt.Sprintf("HN Score: %d | Comments: %d", story.Score, story.Descendants),
		PublishedAt: time.Unix(story.Time, 0),
		Source:      "Hacker News",
		Category:    "tech",
		Priority:    priority,
		GUID:        fmt.Sprintf("hn-%d", story.ID),
		Author:      story.By,
		CollectedAt: now,
		Importance:  importance,
	}
}

func (c *HackerNewsCollector) fetchTopIDs(ctx context.Context) ([]int, error) {
	var ids []int
	if err := c.getJSON(ctx, c.baseURL+"/topstories.json", hnListTimeout, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (c *HackerNewsCollector) fetchStory(ctx context.Context, id int) (*hnStory, error) {
	var story hnStory
	if err := c.getJSON(ctx, fmt.Sprintf("%s/item/%d.json", c.baseURL, id), hnItemTimeout, &story); err != nil {
		return nil, err
	}
	return &story, nil
}

func (c *HackerNewsCollector) getJSON(ctx context.Context, url string, timeout time.Duration, out interface{}) error {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	return json.Unmarshal(body, out)
}
