package database

import (
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/aitechdaily/digest/app/article"
)

var articleColumns = []string{
	"guid", "title", "link", "description", "content", "published_at",
	"source", "category", "priority", "author", "image_url", "collected_at",
	"processed", "summary", "ai_category", "tags", "importance", "sentiment",
	"key_takeaway", "why_it_matters", "data_points", "included_in_email",
}

// SQLArticleRepository handles database operations for articles
type SQLArticleRepository struct {
	db *DB
}

var _ ArticleRepository = (*SQLArticleRepository)(nil)

// NewArticleRepository creates a new article repository
func NewArticleRepository(db *DB) *SQLArticleRepository {
	return &SQLArticleRepository{db: db}
}

// SaveBatch inserts articles one by one, ignoring rows that collide with an
// existing guid or link. This is the storage-level dedup backstop behind the
// in-memory deduplicator.
func (r *SQLArticleRepository) SaveBatch(articles []article.Article) (int, error) {
	saved := 0

	for _, a := range articles {
		tags, err := json.Marshal(a.Tags)
		if err != nil {
			return saved, fmt.Errorf("failed to encode tags: %w", err)
		}
		dataPoints, err := json.Marshal(a.DataPoints)
		if err != nil {
			return saved, fmt.Errorf("failed to encode data points: %w", err)
		}

		result, err := r.db.Exec(`
			INSERT OR IGNORE INTO articles (
				guid, title, link, description, content, published_at,
				source, category, priority, author, image_url, collected_at,
				processed, summary, ai_category, tags, importance, sentiment,
				key_takeaway, why_it_matters, data_points, included_in_email
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, a.Identity(), a.Title, a.Link, a.Description, a.Content, a.PublishedAt,
			a.Source, a.Category, a.Priority, a.Author, a.ImageURL, a.CollectedAt,
			a.Processed, a.Summary, a.AICategory, string(tags), a.Importance, a.Sentiment,
			a.KeyTakeaway, a.WhyItMatters, string(dataPoints), a.IncludedInEmail)
		if err != nil {
			return saved, fmt.Errorf("failed to save article %s: %w", a.Identity(), err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return saved, fmt.Errorf("failed to read affected rows: %w", err)
		}
		saved += int(affected)
	}

	return saved, nil
}

// GetRecent returns articles published within the window, best first.
func (r *SQLArticleRepository) GetRecent(hoursAgo, limit int) ([]article.Article, error) {
	cutoff := time.Now().Add(-time.Duration(hoursAgo) * time.Hour)

	query, args, err := sq.Select(articleColumns...).
		From("articles").
		Where(sq.Gt{"published_at": cutoff}).
		OrderBy("importance DESC", "published_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent articles: %w", err)
	}
	defer rows.Close()

	var articles []article.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating article rows: %w", err)
	}

	return articles, nil
}

// GetStats returns aggregate counts for the stats endpoint.
func (r *SQLArticleRepository) GetStats() (ArticleStats, error) {
	var stats ArticleStats

	err := r.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(processed), 0),
		       COALESCE(SUM(CASE WHEN collected_at > ? THEN 1 ELSE 0 END), 0)
		FROM articles
	`, time.Now().Add(-24*time.Hour)).Scan(&stats.Total, &stats.Processed, &stats.Last24Hours)
	if err != nil {
		return stats, fmt.Errorf("failed to get article stats: %w", err)
	}

	return stats, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanArticle(row rowScanner) (article.Article, error) {
	var a article.Article
	var tags, dataPoints string

	err := row.Scan(
		&a.GUID, &a.Title, &a.Link, &a.Description, &a.Content, &a.PublishedAt,
		&a.Source, &a.Category, &a.Priority, &a.Author, &a.ImageURL, &a.CollectedAt,
		&a.Processed, &a.Summary, &a.AICategory, &tags, &a.Importance, &a.Sentiment,
		&a.KeyTakeaway, &a.WhyItMatters, &dataPoints, &a.IncludedInEmail,
	)
	if err != nil {
		return a, fmt.Errorf("failed to scan article row: %w", err)
	}

	if err := json.Unmarshal([]byte(tags), &a.Tags); err != nil {
		return a, fmt.Errorf("failed to decode tags: %w", err)
	}
	if err := json.Unmarshal([]byte(dataPoints), &a.DataPoints); err != nil {
		return a, fmt.Errorf("failed to decode data points: %w", err)
	}

	return a, nil
}
