package compose

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/aitechdaily/digest/app/article"
	"github.com/aitechdaily/digest/app/collectors"
	"github.com/aitechdaily/digest/app/enrich"
)

const (
	topStoriesCount = 5
	sectionLimit    = 7
	speedReadCount  = 10
	promptArticles  = 15
	dataPointsMax   = 4
)

// Completer produces one chat completion for a system/user prompt pair.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Composer assembles newsletters from ranked articles. The sectioning is
// deterministic; only the editorial copy comes from the model, with a
// canned fallback when the call fails.
type Composer struct {
	client Completer
}

func NewComposer(client Completer) *Composer {
	return &Composer{client: client}
}

type editorialCopy struct {
	SubjectLine       string `json:"subject_line"`
	Intro             string `json:"intro"`
	TopStoryHighlight string `json:"top_story_highlight"`
	TLDR              string `json:"tldr"`
	WeeklyTrend       string `json:"weekly_trend"`
}

// Compose builds a newsletter from the given articles. Articles are expected
// to be enriched; unenriched ones still get placed using source fields. The
// pulse repos are optional and pass straight through to the community
// section.
func (c *Composer) Compose(ctx context.Context, articles []article.Article, pulse []collectors.TrendingRepo) (Newsletter, error) {
	if len(articles) == 0 {
		return Newsletter{}, fmt.Errorf("no articles to compose")
	}

	sorted := make([]article.Article, len(articles))
	copy(sorted, articles)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Importance > sorted[j].Importance
	})

	newsletter := Newsletter{
		TopStories:      firstN(sorted, topStoriesCount),
		SpeedRead:       buildSpeedRead(sorted),
		DataPoints:      collectDataPoints(sorted),
		CommunityPulse:  pulse,
		ReadTimeMinutes: estimateReadTime(firstN(sorted, 20)),
		AllArticles:     sorted,
		GeneratedAt:     time.Now(),
	}
	c.fillSections(&newsletter, sorted)
	c.fillFallbackCopy(&newsletter)

	if c.client != nil {
		if copyText, err := c.generateCopy(ctx, sorted); err != nil {
			slog.Warn("Newsletter copy generation failed, using fallback", "error", err)
		} else {
			newsletter.Subject = copyText.SubjectLine
			newsletter.Intro = copyText.Intro
			newsletter.TopStoryHighlight = copyText.TopStoryHighlight
			newsletter.TLDR = copyText.TLDR
			newsletter.Trend = copyText.WeeklyTrend
			slog.Info("Newsletter composed", "subject", newsletter.Subject)
		}
	}

	return newsletter, nil
}

var (
	securitySourceRe = regexp.MustCompile(`(?i)security|netsec`)
	cloudSourceRe    = regexp.MustCompile(`(?i)aws|gcp|azure|cncf|new stack`)
)

// fillSections buckets articles into named sections. Each article appears in
// at most one section; leftovers end up in the tech bucket.
func (c *Composer) fillSections(n *Newsletter, sorted []article.Article) {
	used := make(map[string]bool, len(sorted))
	for _, a := range n.TopStories {
		used[a.Identity()] = true
	}

	take := func(limit int, match func(article.Article) bool) []article.Article {
		var picked []article.Article
		for _, a := range sorted {
			if len(picked) >= limit {
				break
			}
			if used[a.Identity()] || !match(a) {
				continue
			}
			used[a.Identity()] = true
			picked = append(picked, a)
		}
		return picked
	}

	n.AINews = take(sectionLimit, func(a article.Article) bool {
		return strings.Contains(strings.ToLower(a.AICategory), "ai")
	})
	n.SecurityNews = take(topStoriesCount, func(a article.Article) bool {
		return strings.Contains(strings.ToLower(a.AICategory), "security") ||
			a.Category == "cybersecurity" || securitySourceRe.MatchString(a.Source)
	})
	n.CloudNews = take(topStoriesCount, func(a article.Article) bool {
		return strings.Contains(strings.ToLower(a.AICategory), "cloud") ||
			a.Category == "cloud" || cloudSourceRe.MatchString(a.Source)
	})
	n.TechNews = take(sectionLimit, func(a article.Article) bool { return true })
}

func (c *Composer) fillFallbackCopy(n *Newsletter) {
	today := time.Now().Format("Monday, January 2, 2006")
	n.Subject = fmt.Sprintf("AI & Tech Daily, %s", today)
	n.Intro = "Good morning! Here's your curated roundup of the most important AI and tech stories from the past 24 hours."
	n.TLDR = "Another busy day in tech, here are the stories that matter."
	n.TopStoryHighlight = "Check out today's top stories below."
	if len(n.TopStories) > 0 && n.TopStories[0].Summary != "" {
		n.TopStoryHighlight = n.TopStories[0].Summary
	}
}

func (c *Composer) generateCopy(ctx context.Context, sorted []article.Article) (editorialCopy, error) {
	var copyText editorialCopy

	raw, err := c.client.Complete(ctx, compositionSystemPrompt, compositionPrompt(sorted))
	if err != nil {
		return copyText, fmt.Errorf("failed to generate newsletter copy: %w", err)
	}

	payload := enrich.ExtractJSON(raw)
	if payload == "" {
		return copyText, fmt.Errorf("no JSON object in composition response")
	}
	if err := json.Unmarshal([]byte(payload), &copyText); err != nil {
		return copyText, fmt.Errorf("failed to decode composition response: %w", err)
	}
	if copyText.SubjectLine == "" || copyText.Intro == "" {
		return copyText, fmt.Errorf("composition response missing subject or intro")
	}

	return copyText, nil
}

const compositionSystemPrompt = `You are the editor of "AI & Tech Daily", a newsletter read by tech professionals. Tone: sharp, witty, no fluff. Return ONLY valid JSON, never markdown.`

func compositionPrompt(sorted []article.Article) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Today's date: %s\nToday's top stories:\n\n", time.Now().Format("Monday, January 2, 2006"))
	for _, a := range firstN(sorted, promptArticles) {
		summary := a.Summary
		if summary == "" {
			summary = a.Description
		}
		fmt.Fprintf(&b, "Title: %s\nSummary: %s\nCategory: %s\nSource: %s\nImportance: %d/10\n\n",
			a.Title, summary, a.AICategory, a.Source, a.Importance)
	}

	b.WriteString(`Return this JSON:
{
  "subject_line": "A catchy email subject (under 60 chars)",
  "intro": "2-3 sentence greeting mentioning what's big in tech today. Conversational, smart tone.",
  "top_story_highlight": "2-3 sentences about the biggest story today and why it matters.",
  "tldr": "One punchy sentence summarizing today in tech.",
  "weekly_trend": "2-3 sentences on the patterns across these stories. Be insightful and forward-looking."
}`)

	return b.String()
}

func buildSpeedRead(sorted []article.Article) []SpeedReadItem {
	var items []SpeedReadItem
	for _, a := range firstN(sorted, speedReadCount) {
		oneLiner := a.KeyTakeaway
		if oneLiner == "" {
			oneLiner = firstSentence(a.Summary)
		}
		if oneLiner == "" {
			oneLiner = a.Title
		}
		items = append(items, SpeedReadItem{
			Title:    a.Title,
			Link:     a.Link,
			OneLiner: oneLiner,
			Source:   a.Source,
		})
	}
	return items
}

func collectDataPoints(sorted []article.Article) []DataPoint {
	var points []DataPoint
	for _, a := range sorted {
		for _, stat := range a.DataPoints {
			if len(stat) <= 2 || len(stat) >= 120 {
				continue
			}
			points = append(points, DataPoint{
				Stat:    stat,
				Context: a.Title,
				Source:  a.Source,
				Link:    a.Link,
			})
		}
		if len(points) >= dataPointsMax {
			break
		}
	}
	if len(points) > dataPointsMax {
		points = points[:dataPointsMax]
	}
	return points
}

// estimateReadTime assumes 230 words per minute over the digest copy.
func estimateReadTime(articles []article.Article) int {
	words := 0
	for _, a := range articles {
		words += len(strings.Fields(a.Summary + " " + a.KeyTakeaway))
	}
	minutes := (words + 229) / 230
	if minutes < 3 {
		minutes = 3
	}
	return minutes
}

func firstN(articles []article.Article, n int) []article.Article {
	if len(articles) < n {
		n = len(articles)
	}
	return articles[:n]
}

func firstSentence(text string) string {
	if idx := strings.Index(text, "."); idx > 0 {
		return text[:idx]
	}
	return text
}
