package database

import "fmt"

// SQLEmailLogRepository records individual email deliveries
type SQLEmailLogRepository struct {
	db *DB
}

var _ EmailLogRepository = (*SQLEmailLogRepository)(nil)

// NewEmailLogRepository creates a new email log repository
func NewEmailLogRepository(db *DB) *SQLEmailLogRepository {
	return &SQLEmailLogRepository{db: db}
}

// Create inserts a delivery log row.
func (r *SQLEmailLogRepository) Create(log EmailLog) error {
	_, err := r.db.Exec(`
		INSERT INTO email_logs (subscriber_id, subject, articles_count, status, sent_at)
		VALUES (?, ?, ?, ?, ?)
	`, log.SubscriberID, log.Subject, log.ArticlesCount, log.Status, log.SentAt)
	if err != nil {
		return fmt.Errorf("failed to create email log: %w", err)
	}
	return nil
}
