package compose

import (
	"time"

	"github.com/aitechdaily/digest/app/article"
	"github.com/aitechdaily/digest/app/collectors"
)

// Newsletter is the composed digest handed to the delivery layer.
type Newsletter struct {
	Subject           string
	Intro             string
	TopStoryHighlight string
	TLDR              string
	Trend             string

	TopStories   []article.Article
	AINews       []article.Article
	TechNews     []article.Article
	SecurityNews []article.Article
	CloudNews    []article.Article

	SpeedRead       []SpeedReadItem
	DataPoints      []DataPoint
	CommunityPulse  []collectors.TrendingRepo
	ReadTimeMinutes int

	AllArticles []article.Article
	GeneratedAt time.Time
}

// SpeedReadItem is a one-line entry in the quick-scan section.
type SpeedReadItem struct {
	Title    string
	Link     string
	OneLiner string
	Source   string
}

// DataPoint is a standout statistic pulled from an article.
type DataPoint struct {
	Stat    string
	Context string
	Source  string
	Link    string
}
