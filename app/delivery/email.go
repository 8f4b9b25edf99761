package delivery

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/smtp"
	"time"

	"github.com/aitechdaily/digest/app/article"
	"github.com/aitechdaily/digest/app/compose"
	"github.com/aitechdaily/digest/app/database"
)

const (
	emailPause         = 500 * time.Millisecond
	breakingImportance = 9
)

// EmailResult reports the outcome of one digest send.
type EmailResult struct {
	Sent   int
	Failed int
}

type sendFunc func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error

// EmailSender delivers digests over SMTP. An unconfigured sender is valid
// and reports zero deliveries instead of failing the pipeline.
type EmailSender struct {
	host     string
	port     string
	user     string
	password string
	from     string
	baseURL  string

	subscribers database.SubscriberRepository
	emailLogs   database.EmailLogRepository

	pause time.Duration
	send  sendFunc
}

func NewEmailSender(host, port, user, password, from, baseURL string,
	subscribers database.SubscriberRepository, emailLogs database.EmailLogRepository) *EmailSender {
	return &EmailSender{
		host:        host,
		port:        port,
		user:        user,
		password:    password,
		from:        from,
		baseURL:     baseURL,
		subscribers: subscribers,
		emailLogs:   emailLogs,
		pause:       emailPause,
		send:        smtp.SendMail,
	}
}

// Configured reports whether SMTP credentials are present.
func (s *EmailSender) Configured() bool {
	return s.host != "" && s.from != ""
}

// SendDigest mails the newsletter to every active subscriber of the cadence.
// Per-recipient failures are logged and counted, not propagated.
func (s *EmailSender) SendDigest(ctx context.Context, newsletter compose.Newsletter, cadence string) (EmailResult, error) {
	var result EmailResult

	if !s.Configured() {
		slog.Warn("SMTP not configured, skipping email delivery")
		return result, nil
	}

	subscribers, err := s.subscribers.GetActive(cadence)
	if err != nil {
		return result, fmt.Errorf("failed to load subscribers: %w", err)
	}
	if len(subscribers) == 0 {
		slog.Warn("No active subscribers, skipping email delivery", "cadence", cadence)
		return result, nil
	}

	slog.Info("Sending digest", "cadence", cadence, "subscribers", len(subscribers))

	for _, subscriber := range subscribers {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if err := s.sendNewsletter(newsletter, subscriber); err != nil {
			result.Failed++
			slog.Error("Failed to send digest", "email", subscriber.Email, "error", err)
			s.logDelivery(subscriber.ID, newsletter.Subject, 0, "failed")
			continue
		}

		result.Sent++
		s.logDelivery(subscriber.ID, newsletter.Subject, len(newsletter.AllArticles), "sent")
		if err := s.subscribers.RecordDelivery(subscriber.ID, time.Now()); err != nil {
			slog.Warn("Failed to record delivery", "email", subscriber.Email, "error", err)
		}

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(s.pause):
		}
	}

	slog.Info("Email delivery complete", "sent", result.Sent, "failed", result.Failed)
	return result, nil
}

// SendBreakingAlerts mails an alert per breaking article (importance 9 or
// higher) to daily subscribers. Returns the number of alerts delivered.
func (s *EmailSender) SendBreakingAlerts(ctx context.Context, articles []article.Article) (int, error) {
	var breaking []article.Article
	for _, a := range articles {
		if a.Importance >= breakingImportance {
			breaking = append(breaking, a)
		}
	}
	if len(breaking) == 0 {
		return 0, nil
	}

	if !s.Configured() {
		slog.Warn("SMTP not configured, skipping breaking alerts")
		return 0, nil
	}

	subscribers, err := s.subscribers.GetActive("daily")
	if err != nil {
		return 0, fmt.Errorf("failed to load subscribers: %w", err)
	}
	if len(subscribers) == 0 {
		return 0, nil
	}

	slog.Info("Sending breaking alerts", "articles", len(breaking), "subscribers", len(subscribers))

	sent := 0
	for _, a := range breaking {
		subject := "Breaking: " + a.Title
		body, err := renderBreakingAlert(a, s.baseURL)
		if err != nil {
			slog.Error("Failed to render breaking alert", "title", a.Title, "error", err)
			continue
		}

		for _, subscriber := range subscribers {
			if err := ctx.Err(); err != nil {
				return sent, err
			}
			if err := s.deliver(subscriber.Email, subject, body); err != nil {
				slog.Error("Failed to send breaking alert", "email", subscriber.Email, "error", err)
				continue
			}
			sent++

			select {
			case <-ctx.Done():
				return sent, ctx.Err()
			case <-time.After(s.pause):
			}
		}
	}

	return sent, nil
}

func (s *EmailSender) sendNewsletter(newsletter compose.Newsletter, subscriber database.Subscriber) error {
	body, err := renderDigest(newsletter, subscriber, s.baseURL)
	if err != nil {
		return fmt.Errorf("failed to render digest: %w", err)
	}
	return s.deliver(subscriber.Email, newsletter.Subject, body)
}

func (s *EmailSender) deliver(to, subject, htmlBody string) error {
	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", s.from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(htmlBody)

	var auth smtp.Auth
	if s.user != "" {
		auth = smtp.PlainAuth("", s.user, s.password, s.host)
	}

	addr := s.host + ":" + s.port
	if err := s.send(addr, auth, s.from, []string{to}, msg.Bytes()); err != nil {
		return fmt.Errorf("smtp send failed: %w", err)
	}
	return nil
}

func (s *EmailSender) logDelivery(subscriberID int64, subject string, articlesCount int, status string) {
	err := s.emailLogs.Create(database.EmailLog{
		SubscriberID:  subscriberID,
		Subject:       subject,
		ArticlesCount: articlesCount,
		Status:        status,
		SentAt:        time.Now(),
	})
	if err != nil {
		slog.Warn("Failed to write email log", "error", err)
	}
}

var digestTemplate = template.Must(template.New("digest").Parse(`<!DOCTYPE html>
<html>
<body style="font-family:sans-serif;max-width:620px;margin:0 auto;color:#18181b;">
  <h1 style="font-size:20px;">AI &amp; Tech Daily</h1>
  <p>{{.Newsletter.Intro}}</p>
  {{if .Newsletter.TLDR}}<p><strong>TL;DR:</strong> {{.Newsletter.TLDR}}</p>{{end}}
  {{if .Newsletter.Trend}}<p><em>{{.Newsletter.Trend}}</em></p>{{end}}

  <h2 style="font-size:16px;">Top Stories</h2>
  {{range .Newsletter.TopStories}}
  <div style="margin-bottom:16px;">
    <a href="{{.Link}}" style="font-weight:600;">{{.Title}}</a>
    <p style="margin:4px 0;color:#52525b;">{{if .Summary}}{{.Summary}}{{else}}{{.Description}}{{end}}</p>
    <p style="margin:0;font-size:12px;color:#a1a1aa;">{{.Source}} &middot; {{.Importance}}/10</p>
  </div>
  {{end}}

  {{if .Newsletter.SpeedRead}}
  <h2 style="font-size:16px;">Speed Read</h2>
  <ul>
    {{range .Newsletter.SpeedRead}}
    <li><a href="{{.Link}}">{{.Title}}</a> &mdash; {{.OneLiner}}</li>
    {{end}}
  </ul>
  {{end}}

  {{if .Newsletter.DataPoints}}
  <h2 style="font-size:16px;">By the Numbers</h2>
  <ul>
    {{range .Newsletter.DataPoints}}
    <li><strong>{{.Stat}}</strong> ({{.Context}})</li>
    {{end}}
  </ul>
  {{end}}

  {{if .Newsletter.CommunityPulse}}
  <h2 style="font-size:16px;">Community Pulse</h2>
  <ul>
    {{range .Newsletter.CommunityPulse}}
    <li><a href="{{.URL}}">{{.FullName}}</a>{{if .Language}} &middot; {{.Language}}{{end}} &middot; &#9733; {{.Stars}}{{if .Description}} &mdash; {{.Description}}{{end}}</li>
    {{end}}
  </ul>
  {{end}}

  <p style="font-size:12px;color:#a1a1aa;">
    Issue #{{.IssueNumber}} &middot; about {{.Newsletter.ReadTimeMinutes}} min read &middot;
    <a href="{{.BaseURL}}/unsubscribe?token={{.UnsubscribeToken}}">Unsubscribe</a>
  </p>
</body>
</html>`))

var breakingTemplate = template.Must(template.New("breaking").Parse(`<!DOCTYPE html>
<html>
<body style="font-family:sans-serif;max-width:620px;margin:0 auto;color:#18181b;">
  <p style="color:#dc2626;font-weight:700;text-transform:uppercase;">Breaking</p>
  <h1 style="font-size:20px;"><a href="{{.Article.Link}}">{{.Article.Title}}</a></h1>
  <p style="font-size:12px;color:#a1a1aa;">{{.Article.Source}} &middot; {{.Article.Importance}}/10</p>
  <p>{{if .Article.Summary}}{{.Article.Summary}}{{else}}{{.Article.Description}}{{end}}</p>
  {{if .Article.WhyItMatters}}<p><strong>Why it matters:</strong> {{.Article.WhyItMatters}}</p>{{end}}
</body>
</html>`))

func renderDigest(newsletter compose.Newsletter, subscriber database.Subscriber, baseURL string) (string, error) {
	var buf bytes.Buffer
	err := digestTemplate.Execute(&buf, map[string]any{
		"Newsletter":       newsletter,
		"IssueNumber":      subscriber.EmailsReceived + 1,
		"UnsubscribeToken": subscriber.UnsubscribeToken,
		"BaseURL":          baseURL,
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

func renderBreakingAlert(a article.Article, baseURL string) (string, error) {
	var buf bytes.Buffer
	err := breakingTemplate.Execute(&buf, map[string]any{
		"Article": a,
		"BaseURL": baseURL,
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
