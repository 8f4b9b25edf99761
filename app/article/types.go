package article

import (
	"time"
)

// Source-assigned priority levels.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Sentiment labels assigned during enrichment.
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

// Article is a single collected news item. Enrichment fields are zero-valued
// until Processed is set; Importance 0 means "not yet scored".
type Article struct {
	Title       string
	Link        string
	Description string
	Content     string
	PublishedAt time.Time
	Source      string
	Category    string // coarse, source-assigned
	Priority    string // high, medium, low
	GUID        string
	Author      string
	ImageURL    string
	CollectedAt time.Time

	Processed    bool
	Summary      string
	AICategory   string
	Tags         []string
	Importance   int // 1..10 once set
	Sentiment    string
	KeyTakeaway  string
	WhyItMatters string
	DataPoints   []string

	IncludedInEmail bool
}

// Identity returns the stable identifier used for storage-level deduplication:
// the source-provided GUID when present, else the link.
func (a Article) Identity() string {
	if a.GUID != "" {
		return a.GUID
	}
	return a.Link
}

// ClampImportance forces a score into the valid 1..10 range.
func ClampImportance(score int) int {
	if score < 1 {
		return 1
	}
	if score > 10 {
		return 10
	}
	return score
}
