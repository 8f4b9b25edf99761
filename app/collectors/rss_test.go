package collectors

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/aitechdaily/digest/app/article"
	"github.com/aitechdaily/digest/app/sources"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Example Feed</title>
  <link>https://example.com</link>
  <item>
    <title>  First Story  </title>
    <link>https://example.com/first</link>
    <guid>example-1</guid>
    <description>A short description</description>
    <pubDate>Mon, 02 Jan 2006 15:04:05 GMT</pubDate>
  </item>
  <item>
    <title>Second Story</title>
    <link>https://example.com/second</link>
    <description>&lt;p&gt;Intro text&lt;/p&gt;&lt;img src="https://example.com/pic.jpg"/&gt;</description>
  </item>
  <item>
    <title>No Link Story</title>
    <description>Should be skipped</description>
  </item>
</channel>
</rss>`

func TestRSSCollectorCollect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(sampleFeed))
	}))
	defer server.Close()

	collector := NewRSSCollector([]sources.RSSSource{
		{Name: "Example", URL: server.URL, Category: "ai", Priority: article.PriorityHigh},
	}, "test-agent")

	articles := collector.Collect(context.Background())

	if len(articles) != 2 {
		t.Fatalf("Expected 2 articles (item without link skipped), got %d", len(articles))
	}

	first := articles[0]
	if first.Title != "First Story" {
		t.Errorf("Expected trimmed title 'First Story', got %q", first.Title)
	}
	if first.GUID != "example-1" {
		t.Errorf("Expected source-provided GUID, got %q", first.GUID)
	}
	if first.Source != "Example" || first.Category != "ai" {
		t.Errorf("Expected source metadata applied, got source=%q category=%q", first.Source, first.Category)
	}
	if first.Priority != article.PriorityHigh {
		t.Errorf("Expected priority from source config, got %q", first.Priority)
	}
	if first.Importance != 6 {
		t.Errorf("Expected default importance 6 for high-priority source, got %d", first.Importance)
	}
	if first.Processed {
		t.Error("Collected articles must start unprocessed")
	}

	second := articles[1]
	if second.GUID != "https://example.com/second" {
		t.Errorf("Expected link fallback GUID, got %q", second.GUID)
	}
	if second.ImageURL != "https://example.com/pic.jpg" {
		t.Errorf("Expected first img extracted from content, got %q", second.ImageURL)
	}
}

func TestRSSCollectorFailingFeedDegrades(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()

	working := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleFeed))
	}))
	defer working.Close()

	collector := NewRSSCollector([]sources.RSSSource{
		{Name: "Broken", URL: broken.URL, Priority: article.PriorityMedium},
		{Name: "Working", URL: working.URL, Priority: article.PriorityMedium},
	}, "test-agent")

	articles := collector.Collect(context.Background())

	if len(articles) != 2 {
		t.Fatalf("Expected articles from the working feed only, got %d", len(articles))
	}
	for _, a := range articles {
		if a.Source != "Working" {
			t.Errorf("Expected all articles from 'Working', got %q", a.Source)
		}
	}

	if a := articles[0]; a.Importance != 5 {
		t.Errorf("Expected default importance 5 for medium-priority source, got %d", a.Importance)
	}
}

func TestTruncateKeepsRunesIntact(t *testing.T) {
	s := strings.Repeat("é", 10) // 2 bytes per rune

	got := truncate(s, 5)
	if !utf8.ValidString(got) {
		t.Errorf("truncated string is not valid UTF-8: %q", got)
	}
	if len(got) != 4 {
		t.Errorf("expected 4 bytes after backing off the split rune, got %d", len(got))
	}
}
