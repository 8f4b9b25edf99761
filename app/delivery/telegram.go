package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aitechdaily/digest/app/article"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	telegramTopCount = 5
	telegramPause    = 1500 * time.Millisecond
)

// TelegramNotifier posts top stories to a Telegram chat or channel. Missing
// token or chat configuration disables it without erroring.
type TelegramNotifier struct {
	api   *tgbotapi.BotAPI
	chat  string
	pause time.Duration
	send  func(msg tgbotapi.Chattable) error
}

func NewTelegramNotifier(token, chat string) *TelegramNotifier {
	n := &TelegramNotifier{chat: chat, pause: telegramPause}

	if token == "" {
		slog.Warn("Telegram token not set, notifications disabled")
		return n
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		slog.Error("Failed to initialize Telegram bot, notifications disabled", "error", err)
		return n
	}

	n.api = api
	n.send = func(msg tgbotapi.Chattable) error {
		_, err := api.Send(msg)
		return err
	}
	return n
}

// Configured reports whether the notifier can actually send.
func (n *TelegramNotifier) Configured() bool {
	return n.send != nil && n.chat != ""
}

// SendTopArticles posts the five most important articles. Per-message
// failures are logged; the returned count covers successful sends only.
func (n *TelegramNotifier) SendTopArticles(ctx context.Context, articles []article.Article) (int, error) {
	if !n.Configured() {
		return 0, nil
	}

	top := make([]article.Article, len(articles))
	copy(top, articles)
	sort.SliceStable(top, func(i, j int) bool { return top[i].Importance > top[j].Importance })
	if len(top) > telegramTopCount {
		top = top[:telegramTopCount]
	}
	if len(top) == 0 {
		return 0, nil
	}

	header := fmt.Sprintf("*AI & Tech Daily, %s*\n\nTop stories from today:",
		escapeMarkdown(time.Now().Format("January 2, 2006")))
	if err := n.sendText(header); err != nil {
		slog.Error("Telegram header failed", "error", err)
	}

	sent := 0
	for _, a := range top {
		if err := ctx.Err(); err != nil {
			return sent, err
		}

		if err := n.sendText(formatArticle(a)); err != nil {
			slog.Error("Telegram send failed", "title", a.Title, "error", err)
			continue
		}
		sent++

		select {
		case <-ctx.Done():
			return sent, ctx.Err()
		case <-time.After(n.pause):
		}
	}

	slog.Info("Telegram delivery complete", "sent", sent, "chat", n.chat)
	return sent, nil
}

func (n *TelegramNotifier) sendText(text string) error {
	var msg tgbotapi.MessageConfig
	if chatID, err := strconv.ParseInt(n.chat, 10, 64); err == nil {
		msg = tgbotapi.NewMessage(chatID, text)
	} else {
		msg = tgbotapi.NewMessageToChannel(n.chat, text)
	}
	msg.ParseMode = tgbotapi.ModeMarkdownV2

	return n.send(msg)
}

func formatArticle(a article.Article) string {
	marker := "📌"
	switch {
	case a.Importance >= 8:
		marker = "🔥"
	case a.Importance >= 6:
		marker = "⭐"
	}

	var tags []string
	for i, t := range a.Tags {
		if i >= 3 {
			break
		}
		tags = append(tags, "\\#"+escapeMarkdown(t))
	}

	lines := []string{
		fmt.Sprintf("%s *%s*", marker, escapeMarkdown(a.Title)),
		"",
	}
	if a.Summary != "" {
		lines = append(lines, escapeMarkdown(a.Summary), "")
	}
	lines = append(lines, fmt.Sprintf("📰 %s \\| ⭐ %d/10", escapeMarkdown(a.Source), a.Importance))
	if len(tags) > 0 {
		lines = append(lines, "🏷️ "+strings.Join(tags, " "))
	}
	lines = append(lines, "", fmt.Sprintf("[Read More](%s)", a.Link))

	return strings.Join(lines, "\n")
}

func escapeMarkdown(text string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, text)
}
