package database

import (
	"fmt"
	"time"
)

// SQLSubscriberRepository handles database operations for subscribers
type SQLSubscriberRepository struct {
	db *DB
}

var _ SubscriberRepository = (*SQLSubscriberRepository)(nil)

// NewSubscriberRepository creates a new subscriber repository
func NewSubscriberRepository(db *DB) *SQLSubscriberRepository {
	return &SQLSubscriberRepository{db: db}
}

// GetActive returns active subscribers for the given cadence.
func (r *SQLSubscriberRepository) GetActive(cadence string) ([]Subscriber, error) {
	rows, err := r.db.Query(`
		SELECT id, email, active, cadence, unsubscribe_token,
		       emails_received, last_email_sent, created_at
		FROM subscribers
		WHERE active = 1 AND cadence = ?
		ORDER BY created_at
	`, cadence)
	if err != nil {
		return nil, fmt.Errorf("failed to get active subscribers: %w", err)
	}
	defer rows.Close()

	var subscribers []Subscriber
	for rows.Next() {
		var s Subscriber
		err := rows.Scan(&s.ID, &s.Email, &s.Active, &s.Cadence, &s.UnsubscribeToken,
			&s.EmailsReceived, &s.LastEmailSent, &s.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscriber row: %w", err)
		}
		subscribers = append(subscribers, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subscriber rows: %w", err)
	}

	return subscribers, nil
}

// RecordDelivery bumps the delivery counters after a successful send.
func (r *SQLSubscriberRepository) RecordDelivery(subscriberID int64, sentAt time.Time) error {
	_, err := r.db.Exec(`
		UPDATE subscribers
		SET emails_received = emails_received + 1, last_email_sent = ?
		WHERE id = ?
	`, sentAt, subscriberID)
	if err != nil {
		return fmt.Errorf("failed to record delivery: %w", err)
	}
	return nil
}

// Add registers a new subscriber; used by setup tooling and tests.
func (r *SQLSubscriberRepository) Add(email, cadence, token string) (int64, error) {
	result, err := r.db.Exec(`
		INSERT INTO subscribers (email, cadence, unsubscribe_token)
		VALUES (?, ?, ?)
	`, email, cadence, token)
	if err != nil {
		return 0, fmt.Errorf("failed to add subscriber: %w", err)
	}
	return result.LastInsertId()
}
