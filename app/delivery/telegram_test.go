package delivery

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aitechdaily/digest/app/article"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func newTestNotifier(send func(msg tgbotapi.Chattable) error) *TelegramNotifier {
	return &TelegramNotifier{chat: "12345", pause: 0, send: send}
}

func rankedArticles(n int) []article.Article {
	articles := make([]article.Article, n)
	for i := range articles {
		articles[i] = article.Article{
			Title:      "Story " + string(rune('A'+i)),
			Link:       "https://example.com/" + string(rune('a'+i)),
			Source:     "Src",
			Importance: 10 - i,
			Summary:    "Summary text.",
		}
	}
	return articles
}

func TestSendTopArticlesLimitsToFive(t *testing.T) {
	var messages []string
	notifier := newTestNotifier(func(msg tgbotapi.Chattable) error {
		mc, ok := msg.(tgbotapi.MessageConfig)
		if !ok {
			t.Fatalf("unexpected message type %T", msg)
		}
		if mc.ParseMode != tgbotapi.ModeMarkdownV2 {
			t.Errorf("expected MarkdownV2 parse mode, got %q", mc.ParseMode)
		}
		messages = append(messages, mc.Text)
		return nil
	})

	sent, err := notifier.SendTopArticles(context.Background(), rankedArticles(8))
	if err != nil {
		t.Fatalf("SendTopArticles failed: %v", err)
	}

	if sent != 5 {
		t.Errorf("expected 5 articles sent, got %d", sent)
	}
	// Header plus five article messages.
	if len(messages) != 6 {
		t.Fatalf("expected 6 messages, got %d", len(messages))
	}
	if !strings.Contains(messages[1], "Story A") {
		t.Errorf("expected most important story first, got %q", messages[1])
	}
}

func TestSendTopArticlesUnconfigured(t *testing.T) {
	notifier := NewTelegramNotifier("", "")

	sent, err := notifier.SendTopArticles(context.Background(), rankedArticles(3))
	if err != nil {
		t.Fatalf("SendTopArticles failed: %v", err)
	}
	if sent != 0 {
		t.Errorf("expected 0 sent when unconfigured, got %d", sent)
	}
}

func TestSendTopArticlesSkipsFailedMessages(t *testing.T) {
	calls := 0
	notifier := newTestNotifier(func(msg tgbotapi.Chattable) error {
		calls++
		if calls == 3 {
			return errors.New("flood control")
		}
		return nil
	})

	sent, err := notifier.SendTopArticles(context.Background(), rankedArticles(3))
	if err != nil {
		t.Fatalf("SendTopArticles failed: %v", err)
	}
	// One of the three article messages failed.
	if sent != 2 {
		t.Errorf("expected 2 sent, got %d", sent)
	}
}

func TestFormatArticleEscapesMarkdown(t *testing.T) {
	text := formatArticle(article.Article{
		Title:      "Go 1.25 released! (finally)",
		Link:       "https://example.com/go",
		Source:     "golang.org",
		Importance: 9,
		Summary:    "New GC, faster builds.",
		Tags:       []string{"go", "release"},
	})

	if !strings.Contains(text, "🔥") {
		t.Error("expected fire marker for importance 9")
	}
	if !strings.Contains(text, `released\!`) {
		t.Error("expected exclamation mark to be escaped")
	}
	if !strings.Contains(text, `\#go`) {
		t.Error("expected escaped hashtag")
	}
	if !strings.Contains(text, "[Read More](https://example.com/go)") {
		t.Error("expected read more link")
	}
}
