package database

import (
	"time"

	"github.com/aitechdaily/digest/app/article"
)

type ArticleRepository interface {
	// SaveBatch stores articles, skipping ones whose guid or link already
	// exists. Returns the number of newly inserted rows.
	SaveBatch(articles []article.Article) (int, error)
	// GetRecent returns articles published within the last hoursAgo hours,
	// ordered by importance then recency.
	GetRecent(hoursAgo, limit int) ([]article.Article, error)
	GetStats() (ArticleStats, error)
}

type SubscriberRepository interface {
	GetActive(cadence string) ([]Subscriber, error)
	RecordDelivery(subscriberID int64, sentAt time.Time) error
}

type EmailLogRepository interface {
	Create(log EmailLog) error
}

// ArticleStats summarizes stored articles for the stats endpoint.
type ArticleStats struct {
	Total       int
	Processed   int
	Last24Hours int
}

// Subscriber is one digest recipient.
type Subscriber struct {
	ID               int64
	Email            string
	Active           bool
	Cadence          string // daily or weekly
	UnsubscribeToken string
	EmailsReceived   int
	LastEmailSent    *time.Time
	CreatedAt        time.Time
}

// EmailLog records one delivery attempt.
type EmailLog struct {
	ID            int64
	SubscriberID  int64
	Subject       string
	ArticlesCount int
	Status        string // sent or failed
	SentAt        time.Time
}
