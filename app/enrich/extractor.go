package enrich

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"codeberg.org/readeck/go-readability"
	"github.com/aitechdaily/digest/app/article"
)

const (
	extractTimeout = 10 * time.Second
	extractBodyCap = 2 << 20 // 2 MiB page size cap
	extractedLimit = 5000
)

// ContentExtractor fetches the linked page and extracts readable text for
// articles that arrived without content (ranked-list and social sources
// carry only a link). Best-effort: failures leave the article untouched.
type ContentExtractor struct {
	client    *http.Client
	userAgent string
}

func NewContentExtractor(client *http.Client, userAgent string) *ContentExtractor {
	return &ContentExtractor{client: client, userAgent: userAgent}
}

// FillMissing extracts content for every article whose Content is empty.
func (e *ContentExtractor) FillMissing(ctx context.Context, articles []article.Article) []article.Article {
	filled := 0
	for i := range articles {
		if articles[i].Content != "" {
			continue
		}

		content, err := e.extract(ctx, articles[i].Link)
		if err != nil {
			slog.Debug("Content extraction failed", "link", articles[i].Link, "error", err)
			continue
		}

		articles[i].Content = content
		filled++
	}

	if filled > 0 {
		slog.Info("Extracted content for link-only articles", "filled", filled)
	}
	return articles
}

func (e *ContentExtractor) extract(ctx context.Context, link string) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, extractTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, link, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", e.userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, extractBodyCap)
	pageURL, _ := url.Parse(link)

	extracted, err := readability.FromReader(body, pageURL)
	if err != nil {
		return "", fmt.Errorf("failed to extract content: %w", err)
	}

	text := extracted.TextContent
	if text == "" {
		return "", fmt.Errorf("no content extracted")
	}
	return truncate(text, extractedLimit), nil
}
