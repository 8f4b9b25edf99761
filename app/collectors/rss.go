package collectors

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/aitechdaily/digest/app/article"
	"github.com/aitechdaily/digest/app/sources"
	"github.com/mmcdole/gofeed"
)

const (
	rssFetchTimeout  = 15 * time.Second
	rssBatchSize     = 5
	descriptionLimit = 1000
	contentLimit     = 5000
)

// RSSCollector fetches articles from the configured RSS/Atom feeds.
type RSSCollector struct {
	sources []sources.RSSSource
	parser  *gofeed.Parser
}

func NewRSSCollector(srcs []sources.RSSSource, userAgent string) *RSSCollector {
	parser := gofeed.NewParser()
	parser.UserAgent = userAgent

	return &RSSCollector{
		sources: srcs,
		parser:  parser,
	}
}

// Collect fetches all configured feeds in bounded parallel batches. A failing
// feed is logged and skipped; it never fails the collection as a whole.
func (c *RSSCollector) Collect(ctx context.Context) []article.Article {
	slog.Info("Collecting RSS feeds", "sources", len(c.sources))

	var mu sync.Mutex
	var collected []article.Article

	for start := 0; start < len(c.sources); start += rssBatchSize {
		end := min(start+rssBatchSize, len(c.sources))

		var wg sync.WaitGroup
		for _, source := range c.sources[start:end] {
			wg.Add(1)
			go func(source sources.RSSSource) {
				defer wg.Done()

				articles := c.fetchFeed(ctx, source)

				mu.Lock()
				collected = append(collected, articles...)
				mu.Unlock()
			}(source)
		}
		wg.Wait()

		select {
		case <-ctx.Done():
			slog.Warn("RSS collection cancelled", "collected", len(collected))
			return collected
		default:
		}
	}

	slog.Info("RSS collection complete", "articles", len(collected))
	return collected
}

func (c *RSSCollector) fetchFeed(ctx context.Context, source sources.RSSSource) []article.Article {
	fetchCtx, cancel := context.WithTimeout(ctx, rssFetchTimeout)
	defer cancel()

	feed, err := c.parser.ParseURLWithContext(source.URL, fetchCtx)
	if err != nil {
		slog.Warn("Failed to fetch feed", "source", source.Name, "error", err)
		return nil
	}

	now := time.Now()
	articles := make([]article.Article, 0, len(feed.Items))

	for _, item := range feed.Items {
		if item.Title == "" || item.Link == "" {
			continue
		}

		published := now
		if item.PublishedParsed != nil {
			published = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			published = *item.UpdatedParsed
		}

		importance := 5
		if source.Priority == article.PriorityHigh {
			importance = 6
		}

		articles = append(articles, article.Article{
			Title:       strings.TrimSpace(item.Title),
			Link:        item.Link,
			Description: truncate(firstNonEmpty(item.Description, item.Content), descriptionLimit),
			Content:     truncate(firstNonEmpty(item.Content, item.Description), contentLimit),
			PublishedAt: published,
			Source:      source.Name,
			Category:    source.Category,
			Priority:    source.Priority,
			GUID:        firstNonEmpty(item.GUID, item.Link),
			Author:      itemAuthor(item, source.Name),
			ImageURL:    extractImage(item),
			CollectedAt: now,
			Importance:  importance,
		})
	}

	slog.Debug("Feed fetched", "source", source.Name, "articles", len(articles))
	return articles
}

// extractImage picks an image for the item: the first <img> in the HTML
// content, then an image enclosure, then feed-level media metadata.
func extractImage(item *gofeed.Item) string {
	for _, html := range []string{item.Content, item.Description} {
		if html == "" {
			continue
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			continue
		}
		if src, ok := doc.Find("img").First().Attr("src"); ok && src != "" {
			return src
		}
	}

	for _, enclosure := range item.Enclosures {
		if strings.HasPrefix(enclosure.Type, "image/") && enclosure.URL != "" {
			return enclosure.URL
		}
	}

	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}

	if media, ok := item.Extensions["media"]; ok {
		for _, ext := range media["content"] {
			if url := ext.Attrs["url"]; url != "" {
				return url
			}
		}
		for _, ext := range media["thumbnail"] {
			if url := ext.Attrs["url"]; url != "" {
				return url
			}
		}
	}

	return ""
}

func itemAuthor(item *gofeed.Item, fallback string) string {
	if item.Author != nil && item.Author.Name != "" {
		return item.Author.Name
	}
	if len(item.Authors) > 0 && item.Authors[0].Name != "" {
		return item.Authors[0].Name
	}
	return fallback
}

// truncate cuts s to at most limit bytes without splitting a rune.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
