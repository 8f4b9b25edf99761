package collectors

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aitechdaily/digest/app/article"
	"github.com/aitechdaily/digest/app/sources"
)

func redditListingJSON(posts ...string) string {
	out := `{"data":{"children":[`
	for i, p := range posts {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf(`{"data":%s}`, p)
	}
	return out + `]}}`
}

func TestRedditCollectorCollect(t *testing.T) {
	created := float64(time.Now().Unix())
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "test-agent" {
			t.Errorf("Expected User-Agent header 'test-agent', got %q", r.Header.Get("User-Agent"))
		}
		w.Write([]byte(redditListingJSON(
			fmt.Sprintf(`{"id":"aaa","title":"Huge Post","url":"https://example.com/a","score":1200,"author":"alice","created_utc":%f,"is_self":false,"thumbnail":"https://img.example.com/t.png"}`, created),
			fmt.Sprintf(`{"id":"bbb","title":"Self Post","selftext":"body text","score":400,"author":"bob","created_utc":%f,"is_self":true,"thumbnail":"self"}`, created),
			fmt.Sprintf(`{"id":"ccc","title":"Low Score","url":"https://example.com/c","score":5,"author":"carol","created_utc":%f}`, created),
		)))
	}))
	defer server.Close()

	collector := NewRedditCollector(sources.RedditConfig{MinScore: 20, Subreddits: []string{"golang"}},
		server.Client(), "test-agent")
	collector.baseURL = server.URL
	collector.pause = 0

	articles := collector.Collect(context.Background(), nil)

	if len(articles) != 2 {
		t.Fatalf("Expected 2 posts above the score floor, got %d", len(articles))
	}

	huge := articles[0]
	if huge.GUID != "reddit-aaa" {
		t.Errorf("Expected GUID 'reddit-aaa', got %q", huge.GUID)
	}
	if huge.Priority != article.PriorityHigh {
		t.Errorf("Expected priority high for score 1200, got %q", huge.Priority)
	}
	if huge.Importance != 7 {
		t.Errorf("Expected importance 7 for score 1200, got %d", huge.Importance)
	}
	if huge.ImageURL != "https://img.example.com/t.png" {
		t.Errorf("Expected http thumbnail kept, got %q", huge.ImageURL)
	}
	if huge.Source != "Reddit r/golang" {
		t.Errorf("Expected source 'Reddit r/golang', got %q", huge.Source)
	}

	self := articles[1]
	if self.Link != "https://reddit.com/r/golang/comments/bbb" {
		t.Errorf("Expected self post link to point at the thread, got %q", self.Link)
	}
	if self.Importance != 6 {
		t.Errorf("Expected importance 6 for score 400, got %d", self.Importance)
	}
	if self.ImageURL != "" {
		t.Errorf("Expected non-http thumbnail dropped, got %q", self.ImageURL)
	}
}

func TestRedditCollectorFailingSubredditContinues(t *testing.T) {
	created := float64(time.Now().Unix())
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/r/broken/hot.json" {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(redditListingJSON(
			fmt.Sprintf(`{"id":"ddd","title":"Fine Post","url":"https://example.com/d","score":100,"author":"dan","created_utc":%f}`, created),
		)))
	}))
	defer server.Close()

	collector := NewRedditCollector(sources.RedditConfig{MinScore: 20},
		server.Client(), "test-agent")
	collector.baseURL = server.URL
	collector.pause = 0

	articles := collector.Collect(context.Background(), []string{"broken", "working"})

	if len(articles) != 1 {
		t.Fatalf("Expected 1 post from the working subreddit, got %d", len(articles))
	}
	if articles[0].GUID != "reddit-ddd" {
		t.Errorf("Expected post from working subreddit, got %q", articles[0].GUID)
	}
}
