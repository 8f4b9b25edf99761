package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aitechdaily/digest/app/article"
	"golang.org/x/time/rate"
)

// The external provider allows roughly 30 requests per minute on the free
// tier; one request every 2.5s keeps a comfortable margin under that ceiling.
const requestInterval = 2500 * time.Millisecond

const analysisSystemPrompt = "You are a senior tech news analyst. Analyze articles and return ONLY valid JSON (no markdown, no code blocks)."

// Analyzer enriches articles one at a time through a rate-limited model call.
type Analyzer struct {
	client  Completer
	limiter *rate.Limiter
}

func NewAnalyzer(client Completer) *Analyzer {
	return &Analyzer{
		client:  client,
		limiter: rate.NewLimiter(rate.Every(requestInterval), 1),
	}
}

// EnrichAll analyzes each article sequentially. A failed or malformed model
// response falls back to a default record; one bad article never aborts the
// batch. Only context cancellation stops the loop early.
func (a *Analyzer) EnrichAll(ctx context.Context, articles []article.Article) ([]article.Article, error) {
	slog.Info("Enriching articles", "count", len(articles))

	enriched := make([]article.Article, 0, len(articles))

	for i, art := range articles {
		if err := a.limiter.Wait(ctx); err != nil {
			return enriched, fmt.Errorf("enrichment cancelled: %w", err)
		}

		slog.Debug("Analyzing article", "index", i+1, "total", len(articles), "title", art.Title)

		analysis, err := a.analyze(ctx, art)
		if err != nil {
			if ctx.Err() != nil {
				return enriched, fmt.Errorf("enrichment cancelled: %w", ctx.Err())
			}
			slog.Warn("Article analysis failed, using fallback", "title", art.Title, "error", err)
			enriched = append(enriched, fallbackRecord(art))
			continue
		}

		enriched = append(enriched, applyAnalysis(art, analysis))
	}

	slog.Info("Enrichment complete", "enriched", len(enriched))
	return enriched, nil
}

func (a *Analyzer) analyze(ctx context.Context, art article.Article) (*Analysis, error) {
	response, err := a.client.Complete(ctx, analysisSystemPrompt, analysisPrompt(art))
	if err != nil {
		return nil, err
	}

	jsonBody := ExtractJSON(response)
	if jsonBody == "" {
		return nil, fmt.Errorf("no JSON object in model response")
	}

	var analysis Analysis
	if err := json.Unmarshal([]byte(jsonBody), &analysis); err != nil {
		return nil, fmt.Errorf("failed to parse model response: %w", err)
	}

	if analysis.Importance == 0 {
		analysis.Importance = 5
	}
	analysis.Importance = article.ClampImportance(analysis.Importance)

	return &analysis, nil
}

func analysisPrompt(art article.Article) string {
	excerpt := art.Description
	if excerpt == "" {
		excerpt = art.Content
	}
	excerpt = truncate(excerpt, 2000)

	return fmt.Sprintf(`Analyze this article and return this exact JSON structure:
{
  "summary": "2-3 sentence concise summary of the key points",
  "category": "one of: %s",
  "tags": ["tag1", "tag2", "tag3"],
  "importance": 7,
  "sentiment": "positive",
  "key_takeaway": "One line key insight for busy readers",
  "so_what": "Why this matters to tech professionals and what they should do about it. 1-2 sentences, actionable.",
  "data_points": ["$2.5B raised", "50M users", "3x faster than GPT-4"]
}

Rules:
- importance: 1-10 scale (10 = groundbreaking launch, 1 = minor blog post)
- sentiment: "positive", "negative", or "neutral"
- tags: 2-4 specific, lowercase tags
- summary: factual and concise, no opinions
- key_takeaway: actionable insight in one sentence
- so_what: explain the real-world impact, who is affected and what should they do
- data_points: extract 0-3 concrete numbers, stats, funding amounts, benchmarks or dates; empty array when none

ARTICLE:
Title: %s
Source: %s
Content: %s`, strings.Join(Categories, ", "), art.Title, art.Source, excerpt)
}

func applyAnalysis(art article.Article, analysis *Analysis) article.Article {
	art.Summary = analysis.Summary
	art.AICategory = analysis.Category
	art.Tags = analysis.Tags
	art.Importance = analysis.Importance
	art.Sentiment = analysis.Sentiment
	art.KeyTakeaway = analysis.KeyTakeaway
	art.WhyItMatters = analysis.SoWhat
	art.DataPoints = analysis.DataPoints
	art.Processed = true
	return art
}

// fallbackRecord fills the enrichment fields with safe defaults so a failed
// analysis degrades quality, not availability.
func fallbackRecord(art article.Article) article.Article {
	summary := truncate(art.Description, 200)
	if summary == "" {
		summary = "No summary available."
	}

	art.Summary = summary
	art.AICategory = art.Category
	art.Tags = []string{}
	art.Importance = 5
	art.Sentiment = article.SentimentNeutral
	art.KeyTakeaway = ""
	art.WhyItMatters = ""
	art.DataPoints = []string{}
	art.Processed = true
	return art
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

// ExtractJSON returns the outermost {...} block in a model response,
// tolerating prose or code fences around it.
func ExtractJSON(response string) string {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start == -1 || end == -1 || end < start {
		return ""
	}
	return response[start : end+1]
}
