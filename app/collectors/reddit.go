package collectors

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aitechdaily/digest/app/article"
	"github.com/aitechdaily/digest/app/sources"
)

const redditFetchTimeout = 10 * time.Second

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	URL         string  `json:"url"`
	SelfText    string  `json:"selftext"`
	Score       int     `json:"score"`
	Author      string  `json:"author"`
	CreatedUTC  float64 `json:"created_utc"`
	IsSelf      bool    `json:"is_self"`
	Subreddit   string  `json:"subreddit"`
	Thumbnail   string  `json:"thumbnail"`
	NumComments int     `json:"num_comments"`
}

// RedditCollector fetches hot posts from a fixed list of subreddits.
type RedditCollector struct {
	config    sources.RedditConfig
	client    *http.Client
	userAgent string
	baseURL   string
	pause     time.Duration // delay between subreddit fetches
}

func NewRedditCollector(config sources.RedditConfig, client *http.Client, userAgent string) *RedditCollector {
	return &RedditCollector{
		config:    config,
		client:    client,
		userAgent: userAgent,
		baseURL:   "https://www.reddit.com",
		pause:     time.Second,
	}
}

// Collect iterates the configured subreddits sequentially with a fixed pause
// between fetches to respect Reddit's rate limits. A failing subreddit is
// logged and skipped.
func (c *RedditCollector) Collect(ctx context.Context, subreddits []string) []article.Article {
	if len(subreddits) == 0 {
		subreddits = c.config.Subreddits
	}

	slog.Info("Collecting Reddit posts", "subreddits", len(subreddits))

	now := time.Now()
	var collected []article.Article

	for i, sub := range subreddits {
		posts, err := c.fetchSubreddit(ctx, sub)
		if err != nil {
			slog.Warn("Failed to fetch subreddit", "subreddit", sub, "error", err)
		} else {
			for _, post := range posts {
				if post.Score < c.config.MinScore {
					continue
				}
				collected = append(collected, c.toArticle(post, sub, now))
			}
			slog.Debug("Subreddit fetched", "subreddit", sub)
		}

		if i < len(subreddits)-1 {
			select {
			case <-ctx.Done():
				slog.Warn("Reddit collection cancelled", "collected", len(collected))
				return collected
			case <-time.After(c.pause):
			}
		}
	}

	slog.Info("Reddit collection complete", "posts", len(collected))
	return collected
}

func (c *RedditCollector) toArticle(post redditPost, sub string, now time.Time) article.Article {
	link := post.URL
	if post.IsSelf {
		link = fmt.Sprintf("https://reddit.com/r/%s/comments/%s", sub, post.ID)
	}

	priority := article.PriorityMedium
	if post.Score > 500 {
		priority = article.PriorityHigh
	}

	importance := 5
	switch {
	case post.Score > 1000:
		importance = 7
	case post.Score > 300:
		importance = 6
	}

	imageURL := ""
	if len(post.Thumbnail) > 4 && post.Thumbnail[:4] == "http" {
		imageURL = post.Thumbnail
	}

	return article.Article{
		Title:       post.Title,
		Link:        link,
		Description: truncate(post.SelfText, 500),
		Content:     post.SelfText,
		PublishedAt: time.Unix(int64(post.CreatedUTC), 0),
		Source:      fmt.Sprintf("Reddit r/%s", sub),
		Category:    "ai",
		Priority:    priority,
		GUID:        fmt.Sprintf("reddit-%s", post.ID),
		Author:      post.Author,
		ImageURL:    imageURL,
		CollectedAt: now,
		Importance:  importance,
	}
}

func (c *RedditCollector) fetchSubreddit(ctx context.Context, sub string) ([]redditPost, error) {
	reqCtx, cancel := context.WithTimeout(ctx, redditFetchTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/r/%s/hot.json?limit=20", c.baseURL, sub)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var listing redditListing
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("failed to parse listing: %w", err)
	}

	posts := make([]redditPost, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		posts = append(posts, child.Data)
	}
	return posts, nil
}
