package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aitechdaily/digest/app/article"
	"github.com/aitechdaily/digest/app/collectors"
	"github.com/aitechdaily/digest/app/compose"
	"github.com/aitechdaily/digest/app/database"
	"github.com/aitechdaily/digest/app/delivery"
	"github.com/aitechdaily/digest/app/digest"
)

// ErrRunInProgress is returned when a trigger arrives while another run is
// still active.
var ErrRunInProgress = errors.New("pipeline run already in progress")

const (
	collectionHNLimit = 20
	composeCandidates = 50
	weeklyWindowHours = 168
	weeklyCandidates  = 200
	trendingRepoCount = 6
)

var fullSteps = []StepDef{
	{ID: "collect_rss", Label: "Collecting RSS feeds"},
	{ID: "collect_hn", Label: "Fetching Hacker News"},
	{ID: "collect_reddit", Label: "Fetching Reddit"},
	{ID: "dedup", Label: "Deduplicating articles"},
	{ID: "filter", Label: "Filtering recent articles"},
	{ID: "enrich", Label: "AI processing (summarize, rank, insights)"},
	{ID: "breaking", Label: "Checking breaking news alerts"},
	{ID: "save", Label: "Saving to database"},
	{ID: "trending", Label: "Fetching GitHub trending"},
	{ID: "compose", Label: "Composing newsletter"},
	{ID: "email", Label: "Sending emails"},
	{ID: "telegram", Label: "Sending Telegram"},
}

var collectSteps = []StepDef{
	{ID: "collect_rss", Label: "Collecting RSS feeds"},
	{ID: "collect_hn", Label: "Fetching Hacker News"},
	{ID: "dedup", Label: "Deduplicating articles"},
	{ID: "save", Label: "Saving to database"},
}

type RSSCollector interface {
	Collect(ctx context.Context) []article.Article
}

type StoryCollector interface {
	Collect(ctx context.Context, limit int) []article.Article
}

type SocialCollector interface {
	Collect(ctx context.Context, subreddits []string) []article.Article
}

type TrendingFetcher interface {
	Collect(ctx context.Context, limit int) ([]collectors.TrendingRepo, error)
}

type ContentFiller interface {
	FillMissing(ctx context.Context, articles []article.Article) []article.Article
}

type Enricher interface {
	EnrichAll(ctx context.Context, articles []article.Article) ([]article.Article, error)
}

type NewsletterComposer interface {
	Compose(ctx context.Context, articles []article.Article, pulse []collectors.TrendingRepo) (compose.Newsletter, error)
}

type EmailSender interface {
	SendDigest(ctx context.Context, newsletter compose.Newsletter, cadence string) (delivery.EmailResult, error)
	SendBreakingAlerts(ctx context.Context, articles []article.Article) (int, error)
}

type TelegramSender interface {
	SendTopArticles(ctx context.Context, articles []article.Article) (int, error)
}

// Deps wires the pipeline to its collaborators. Trending, Extractor,
// Email and Telegram are optional; their steps are skipped when nil.
type Deps struct {
	RSS        RSSCollector
	HackerNews StoryCollector
	Reddit     SocialCollector
	Trending   TrendingFetcher
	Extractor  ContentFiller
	Enricher   Enricher
	Composer   NewsletterComposer
	Email      EmailSender
	Telegram   TelegramSender
	Articles   database.ArticleRepository

	Subreddits   []string
	HNLimit      int
	RecencyHours int
	EnrichLimit  int
}

// Result summarizes one full pipeline run.
type Result struct {
	Success            bool   `json:"success"`
	ArticlesCollected  int    `json:"articlesCollected"`
	ArticlesAfterDedup int    `json:"articlesAfterDedup"`
	ArticlesProcessed  int    `json:"articlesProcessed"`
	ArticlesSaved      int    `json:"articlesSaved"`
	EmailsSent         int    `json:"emailsSent"`
	EmailsFailed       int    `json:"emailsFailed"`
	TelegramSent       int    `json:"telegramSent"`
	BreakingAlertsSent int    `json:"breakingAlertsSent"`
	Duration           string `json:"duration"`
	Error              string `json:"error,omitempty"`
}

// CollectionResult summarizes a collect-only run.
type CollectionResult struct {
	Collected int `json:"collected"`
	Saved     int `json:"saved"`
}

// WeeklyResult summarizes a weekly digest run.
type WeeklyResult struct {
	Success       bool   `json:"success"`
	EmailsSent    int    `json:"emailsSent"`
	EmailsFailed  int    `json:"emailsFailed"`
	ArticlesCount int    `json:"articlesCount"`
	Duration      string `json:"duration"`
	Error         string `json:"error,omitempty"`
}

// Runner executes the staged pipeline. At most one run is active at a time;
// concurrent triggers get ErrRunInProgress.
type Runner struct {
	deps    Deps
	tracker *Tracker
	runMu   sync.Mutex
}

func NewRunner(deps Deps) *Runner {
	return &Runner{deps: deps, tracker: NewTracker()}
}

// Tracker exposes the progress state for status and streaming endpoints.
func (r *Runner) Tracker() *Tracker {
	return r.tracker
}

// RunFull executes collection, dedup, enrichment, persistence, composition
// and delivery as one observed run.
func (r *Runner) RunFull(ctx context.Context) (Result, error) {
	if !r.runMu.TryLock() {
		return Result{}, ErrRunInProgress
	}
	defer r.runMu.Unlock()

	started := time.Now()
	result := Result{}
	r.tracker.Start("full", fullSteps)
	slog.Info("Full pipeline started")

	finish := func(err error) (Result, error) {
		r.tracker.Finish(err)
		result.Duration = formatDuration(time.Since(started))
		if err != nil {
			result.Error = err.Error()
			slog.Error("Pipeline failed", "error", err, "duration", result.Duration)
			return result, err
		}
		result.Success = true
		slog.Info("Pipeline complete", "duration", result.Duration)
		return result, nil
	}

	// Collection. Each collector recovers its own failures, so a dead
	// source shows up as zero articles, not a failed run.
	r.tracker.StepStart("collect_rss", "Fetching configured feeds")
	rssArticles := r.deps.RSS.Collect(ctx)
	r.tracker.StepDone("collect_rss", fmt.Sprintf("%d articles", len(rssArticles)))

	r.tracker.StepStart("collect_hn", "Fetching top stories")
	hnArticles := r.deps.HackerNews.Collect(ctx, r.deps.HNLimit)
	r.tracker.StepDone("collect_hn", fmt.Sprintf("%d stories", len(hnArticles)))

	r.tracker.StepStart("collect_reddit", "Fetching subreddits")
	redditArticles := r.deps.Reddit.Collect(ctx, r.deps.Subreddits)
	r.tracker.StepDone("collect_reddit", fmt.Sprintf("%d posts", len(redditArticles)))

	collected := make([]article.Article, 0, len(rssArticles)+len(hnArticles)+len(redditArticles))
	collected = append(collected, rssArticles...)
	collected = append(collected, hnArticles...)
	collected = append(collected, redditArticles...)
	result.ArticlesCollected = len(collected)

	if err := ctx.Err(); err != nil {
		return finish(err)
	}

	// Dedup and recency filter.
	r.tracker.StepStart("dedup", fmt.Sprintf("Processing %d articles", len(collected)))
	unique := digest.Deduplicate(collected)
	result.ArticlesAfterDedup = len(unique)
	r.tracker.StepDone("dedup", fmt.Sprintf("%d -> %d", len(collected), len(unique)))

	r.tracker.StepStart("filter", fmt.Sprintf("Last %d hours only", r.deps.RecencyHours))
	recent := digest.FilterRecent(unique, r.deps.RecencyHours)
	r.tracker.StepDone("filter", fmt.Sprintf("%d recent articles", len(recent)))

	// Enrichment, capped to keep within the provider quota.
	toProcess := recent
	if len(toProcess) > r.deps.EnrichLimit {
		toProcess = toProcess[:r.deps.EnrichLimit]
	}
	r.tracker.StepStart("enrich", fmt.Sprintf("Analyzing %d articles", len(toProcess)))
	if r.deps.Extractor != nil {
		toProcess = r.deps.Extractor.FillMissing(ctx, toProcess)
	}
	processed, err := r.deps.Enricher.EnrichAll(ctx, toProcess)
	if err != nil {
		r.tracker.StepError("enrich", err.Error())
		return finish(fmt.Errorf("enrichment aborted: %w", err))
	}
	ranked := digest.Rank(processed)
	result.ArticlesProcessed = len(processed)
	r.tracker.StepDone("enrich", fmt.Sprintf("%d summarized and ranked", len(processed)))

	// Breaking alerts, best effort.
	r.tracker.StepStart("breaking", "Checking for breaking news")
	if r.deps.Email != nil {
		alerts, err := r.deps.Email.SendBreakingAlerts(ctx, ranked)
		if err != nil {
			r.tracker.StepError("breaking", err.Error())
		} else if alerts > 0 {
			result.BreakingAlertsSent = alerts
			r.tracker.StepDone("breaking", fmt.Sprintf("%d alerts sent", alerts))
		} else {
			r.tracker.StepDone("breaking", "No breaking news")
		}
	} else {
		r.tracker.StepDone("breaking", "Skipped, email not configured")
	}

	// Persistence is essential; without it the digest has nothing to
	// compose from tomorrow.
	r.tracker.StepStart("save", "Writing to database")
	saved, err := r.deps.Articles.SaveBatch(ranked)
	if err != nil {
		r.tracker.StepError("save", err.Error())
		return finish(fmt.Errorf("failed to save articles: %w", err))
	}
	result.ArticlesSaved = saved
	r.tracker.StepDone("save", fmt.Sprintf("%d new articles saved", saved))

	// Trending repos, best effort; they feed the newsletter's community
	// pulse section.
	var pulse []collectors.TrendingRepo
	r.tracker.StepStart("trending", "Fetching trending repos")
	if r.deps.Trending != nil {
		repos, err := r.deps.Trending.Collect(ctx, trendingRepoCount)
		if err != nil {
			r.tracker.StepError("trending", err.Error())
		} else {
			pulse = repos
			r.tracker.StepDone("trending", fmt.Sprintf("%d repos", len(repos)))
		}
	} else {
		r.tracker.StepDone("trending", "Skipped, not configured")
	}

	// Composition draws from the stored pool so yesterday's strong stories
	// can still make the digest; falls back to this run's articles.
	r.tracker.StepStart("compose", "Writing newsletter")
	candidates, err := r.deps.Articles.GetRecent(r.deps.RecencyHours, composeCandidates)
	if err != nil || len(candidates) == 0 {
		if err != nil {
			slog.Warn("Failed to load stored articles for composition", "error", err)
		}
		candidates = ranked
	}
	newsletter, err := r.deps.Composer.Compose(ctx, candidates, pulse)
	if err != nil {
		r.tracker.StepError("compose", err.Error())
		return finish(fmt.Errorf("failed to compose newsletter: %w", err))
	}
	r.tracker.StepDone("compose", newsletter.Subject)

	// Delivery.
	r.tracker.StepStart("email", "Sending to subscribers")
	if r.deps.Email != nil {
		emailResult, err := r.deps.Email.SendDigest(ctx, newsletter, "daily")
		if err != nil {
			r.tracker.StepError("email", err.Error())
			return finish(fmt.Errorf("failed to send digest: %w", err))
		}
		result.EmailsSent = emailResult.Sent
		result.EmailsFailed = emailResult.Failed
		r.tracker.StepDone("email", fmt.Sprintf("%d sent, %d failed", emailResult.Sent, emailResult.Failed))
	} else {
		r.tracker.StepDone("email", "Skipped, not configured")
	}

	r.tracker.StepStart("telegram", "Posting top stories")
	if r.deps.Telegram != nil {
		sent, err := r.deps.Telegram.SendTopArticles(ctx, candidates)
		if err != nil {
			r.tracker.StepError("telegram", err.Error())
		} else if sent > 0 {
			result.TelegramSent = sent
			r.tracker.StepDone("telegram", fmt.Sprintf("%d messages", sent))
		} else {
			r.tracker.StepDone("telegram", "Skipped, not configured")
		}
	} else {
		r.tracker.StepDone("telegram", "Skipped, not configured")
	}

	return finish(nil)
}

// RunCollection executes the short collect-and-store run.
func (r *Runner) RunCollection(ctx context.Context) (CollectionResult, error) {
	if !r.runMu.TryLock() {
		return CollectionResult{}, ErrRunInProgress
	}
	defer r.runMu.Unlock()

	result := CollectionResult{}
	r.tracker.Start("collect", collectSteps)
	slog.Info("Collection pipeline started")

	r.tracker.StepStart("collect_rss", "Fetching configured feeds")
	rssArticles := r.deps.RSS.Collect(ctx)
	r.tracker.StepDone("collect_rss", fmt.Sprintf("%d articles", len(rssArticles)))

	r.tracker.StepStart("collect_hn", "Fetching top stories")
	hnArticles := r.deps.HackerNews.Collect(ctx, collectionHNLimit)
	r.tracker.StepDone("collect_hn", fmt.Sprintf("%d stories", len(hnArticles)))

	collected := append(rssArticles, hnArticles...)
	result.Collected = len(collected)

	if err := ctx.Err(); err != nil {
		r.tracker.Finish(err)
		return result, err
	}

	r.tracker.StepStart("dedup", fmt.Sprintf("Deduplicating %d articles", len(collected)))
	unique := digest.Deduplicate(collected)
	r.tracker.StepDone("dedup", fmt.Sprintf("%d -> %d", len(collected), len(unique)))

	r.tracker.StepStart("save", "Saving to database")
	saved, err := r.deps.Articles.SaveBatch(unique)
	if err != nil {
		r.tracker.StepError("save", err.Error())
		r.tracker.Finish(err)
		return result, fmt.Errorf("failed to save articles: %w", err)
	}
	result.Saved = saved
	r.tracker.StepDone("save", fmt.Sprintf("%d new articles saved", saved))

	r.tracker.Finish(nil)
	slog.Info("Collection complete", "collected", result.Collected, "saved", result.Saved)
	return result, nil
}

// RunWeekly composes and sends a digest over the stored articles of the
// past week. It does not re-collect and is not step-tracked.
func (r *Runner) RunWeekly(ctx context.Context) (WeeklyResult, error) {
	if !r.runMu.TryLock() {
		return WeeklyResult{}, ErrRunInProgress
	}
	defer r.runMu.Unlock()

	started := time.Now()
	slog.Info("Weekly pipeline started")

	articles, err := r.deps.Articles.GetRecent(weeklyWindowHours, weeklyCandidates)
	if err != nil {
		return WeeklyResult{Duration: formatDuration(time.Since(started)), Error: err.Error()},
			fmt.Errorf("failed to load weekly articles: %w", err)
	}
	if len(articles) == 0 {
		slog.Warn("No articles for weekly digest")
		return WeeklyResult{Success: true, Duration: formatDuration(time.Since(started))}, nil
	}

	newsletter, err := r.deps.Composer.Compose(ctx, articles, nil)
	if err != nil {
		return WeeklyResult{Duration: formatDuration(time.Since(started)), Error: err.Error()},
			fmt.Errorf("failed to compose weekly newsletter: %w", err)
	}

	result := WeeklyResult{ArticlesCount: len(articles)}
	if r.deps.Email != nil {
		emailResult, err := r.deps.Email.SendDigest(ctx, newsletter, "weekly")
		if err != nil {
			result.Duration = formatDuration(time.Since(started))
			result.Error = err.Error()
			return result, fmt.Errorf("failed to send weekly digest: %w", err)
		}
		result.EmailsSent = emailResult.Sent
		result.EmailsFailed = emailResult.Failed
	}

	result.Success = true
	result.Duration = formatDuration(time.Since(started))
	slog.Info("Weekly pipeline complete", "articles", result.ArticlesCount,
		"sent", result.EmailsSent, "duration", result.Duration)
	return result, nil
}

func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}
