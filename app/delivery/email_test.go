package delivery

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/aitechdaily/digest/app/article"
	"github.com/aitechdaily/digest/app/collectors"
	"github.com/aitechdaily/digest/app/compose"
	"github.com/aitechdaily/digest/app/database"
)

type fakeSubscriberRepo struct {
	subscribers []database.Subscriber
	deliveries  []int64
}

func (f *fakeSubscriberRepo) GetActive(cadence string) ([]database.Subscriber, error) {
	var out []database.Subscriber
	for _, s := range f.subscribers {
		if s.Cadence == cadence {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSubscriberRepo) RecordDelivery(subscriberID int64, _ time.Time) error {
	f.deliveries = append(f.deliveries, subscriberID)
	return nil
}

type fakeEmailLogRepo struct {
	logs []database.EmailLog
}

func (f *fakeEmailLogRepo) Create(log database.EmailLog) error {
	f.logs = append(f.logs, log)
	return nil
}

func newTestSender(subscribers *fakeSubscriberRepo, logs *fakeEmailLogRepo, send sendFunc) *EmailSender {
	s := NewEmailSender("smtp.example.com", "587", "user", "pass",
		"AI Tech Daily <digest@example.com>", "https://example.com", subscribers, logs)
	s.pause = 0
	s.send = send
	return s
}

func testNewsletter() compose.Newsletter {
	return compose.Newsletter{
		Subject: "Test digest",
		Intro:   "Good morning!",
		TopStories: []article.Article{
			{Title: "Top story", Link: "https://example.com/top", Source: "Src", Importance: 8, Summary: "Summary."},
		},
		AllArticles: []article.Article{
			{Title: "Top story", Link: "https://example.com/top"},
			{Title: "Other", Link: "https://example.com/other"},
		},
		CommunityPulse: []collectors.TrendingRepo{
			{FullName: "acme/llm-kit", URL: "https://github.com/acme/llm-kit", Stars: 4200},
		},
	}
}

func TestSendDigestDeliversToActiveSubscribers(t *testing.T) {
	subscribers := &fakeSubscriberRepo{subscribers: []database.Subscriber{
		{ID: 1, Email: "a@example.com", Cadence: "daily", UnsubscribeToken: "tok-a"},
		{ID: 2, Email: "b@example.com", Cadence: "daily"},
		{ID: 3, Email: "weekly@example.com", Cadence: "weekly"},
	}}
	logs := &fakeEmailLogRepo{}

	var recipients []string
	var bodies []string
	sender := newTestSender(subscribers, logs, func(_ string, _ smtp.Auth, _ string, to []string, msg []byte) error {
		recipients = append(recipients, to...)
		bodies = append(bodies, string(msg))
		return nil
	})

	result, err := sender.SendDigest(context.Background(), testNewsletter(), "daily")
	if err != nil {
		t.Fatalf("SendDigest failed: %v", err)
	}

	if result.Sent != 2 || result.Failed != 0 {
		t.Errorf("expected 2 sent, 0 failed; got %d sent, %d failed", result.Sent, result.Failed)
	}
	if len(recipients) != 2 || recipients[0] != "a@example.com" {
		t.Errorf("unexpected recipients: %v", recipients)
	}
	if !strings.Contains(bodies[0], "Subject: Test digest") {
		t.Error("expected subject header in message")
	}
	if !strings.Contains(bodies[0], "unsubscribe?token=tok-a") {
		t.Error("expected unsubscribe link in message body")
	}
	if !strings.Contains(bodies[0], "acme/llm-kit") {
		t.Error("expected community pulse repo in message body")
	}
	if len(subscribers.deliveries) != 2 {
		t.Errorf("expected 2 recorded deliveries, got %d", len(subscribers.deliveries))
	}
	if len(logs.logs) != 2 || logs.logs[0].Status != "sent" {
		t.Errorf("unexpected email logs: %+v", logs.logs)
	}
}

func TestSendDigestCountsPerRecipientFailures(t *testing.T) {
	subscribers := &fakeSubscriberRepo{subscribers: []database.Subscriber{
		{ID: 1, Email: "ok@example.com", Cadence: "daily"},
		{ID: 2, Email: "bad@example.com", Cadence: "daily"},
	}}
	logs := &fakeEmailLogRepo{}

	sender := newTestSender(subscribers, logs, func(_ string, _ smtp.Auth, _ string, to []string, _ []byte) error {
		if to[0] == "bad@example.com" {
			return errors.New("mailbox unavailable")
		}
		return nil
	})

	result, err := sender.SendDigest(context.Background(), testNewsletter(), "daily")
	if err != nil {
		t.Fatalf("SendDigest failed: %v", err)
	}

	if result.Sent != 1 || result.Failed != 1 {
		t.Errorf("expected 1 sent, 1 failed; got %d sent, %d failed", result.Sent, result.Failed)
	}
	if len(logs.logs) != 2 {
		t.Fatalf("expected 2 email logs, got %d", len(logs.logs))
	}
	if logs.logs[1].Status != "failed" {
		t.Errorf("expected failed log status, got %q", logs.logs[1].Status)
	}
	if len(subscribers.deliveries) != 1 {
		t.Errorf("expected 1 recorded delivery, got %d", len(subscribers.deliveries))
	}
}

func TestSendDigestUnconfiguredIsNoop(t *testing.T) {
	sender := NewEmailSender("", "", "", "", "", "", &fakeSubscriberRepo{}, &fakeEmailLogRepo{})

	result, err := sender.SendDigest(context.Background(), testNewsletter(), "daily")
	if err != nil {
		t.Fatalf("SendDigest failed: %v", err)
	}
	if result.Sent != 0 || result.Failed != 0 {
		t.Errorf("expected zero result, got %+v", result)
	}
}

func TestSendBreakingAlertsFiltersByImportance(t *testing.T) {
	subscribers := &fakeSubscriberRepo{subscribers: []database.Subscriber{
		{ID: 1, Email: "a@example.com", Cadence: "daily"},
	}}

	var subjects []string
	sender := newTestSender(subscribers, &fakeEmailLogRepo{}, func(_ string, _ smtp.Auth, _ string, _ []string, msg []byte) error {
		for _, line := range strings.Split(string(msg), "\r\n") {
			if strings.HasPrefix(line, "Subject: ") {
				subjects = append(subjects, strings.TrimPrefix(line, "Subject: "))
			}
		}
		return nil
	})

	articles := []article.Article{
		{Title: "Routine update", Link: "https://example.com/a", Importance: 7},
		{Title: "Major outage", Link: "https://example.com/b", Importance: 9},
		{Title: "Huge release", Link: "https://example.com/c", Importance: 10},
	}

	sent, err := sender.SendBreakingAlerts(context.Background(), articles)
	if err != nil {
		t.Fatalf("SendBreakingAlerts failed: %v", err)
	}

	if sent != 2 {
		t.Errorf("expected 2 alerts sent, got %d", sent)
	}
	if len(subjects) != 2 || subjects[0] != "Breaking: Major outage" {
		t.Errorf("unexpected subjects: %v", subjects)
	}
}

func TestSendBreakingAlertsNoBreakingNews(t *testing.T) {
	sender := newTestSender(&fakeSubscriberRepo{}, &fakeEmailLogRepo{}, nil)

	sent, err := sender.SendBreakingAlerts(context.Background(), []article.Article{
		{Title: "Calm day", Importance: 5},
	})
	if err != nil {
		t.Fatalf("SendBreakingAlerts failed: %v", err)
	}
	if sent != 0 {
		t.Errorf("expected 0 alerts, got %d", sent)
	}
}
