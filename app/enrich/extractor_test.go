package enrich

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aitechdaily/digest/app/article"
)

func articlePage() string {
	paragraph := strings.Repeat("This is a long sentence with enough substance to count as readable article content. ", 20)
	return `<!DOCTYPE html>
<html>
<head><title>A Proper Article</title></head>
<body>
<nav>Home | About</nav>
<article>
<h1>A Proper Article</h1>
<p>` + paragraph + `</p>
<p>` + paragraph + `</p>
<p>` + paragraph + `</p>
</article>
<footer>Copyright</footer>
</body>
</html>`
}

func TestContentExtractorFillMissing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(articlePage()))
	}))
	defer server.Close()

	extractor := NewContentExtractor(server.Client(), "test-agent")

	articles := extractor.FillMissing(context.Background(), []article.Article{
		{Title: "Link only", Link: server.URL, Content: ""},
		{Title: "Already has content", Link: server.URL, Content: "existing"},
	})

	if articles[0].Content == "" {
		t.Error("Expected content extracted for the link-only article")
	}
	if !strings.Contains(articles[0].Content, "readable article content") {
		t.Errorf("Extracted content missing expected text: %.80q", articles[0].Content)
	}
	if len(articles[0].Content) > extractedLimit {
		t.Errorf("Extracted content should be capped at %d chars, got %d", extractedLimit, len(articles[0].Content))
	}
	if articles[1].Content != "existing" {
		t.Errorf("Articles with content must be left untouched, got %q", articles[1].Content)
	}
}

func TestContentExtractorFailureLeavesArticleUntouched(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	extractor := NewContentExtractor(server.Client(), "test-agent")

	articles := extractor.FillMissing(context.Background(), []article.Article{
		{Title: "Broken link", Link: server.URL, Content: ""},
	})

	if articles[0].Content != "" {
		t.Errorf("Expected content left empty on fetch failure, got %q", articles[0].Content)
	}
}
