// Package telegram posts a run digest to a Telegram chat via the Bot API.
// Delivery is retried with a linear backoff; callers treat failure as
// non-fatal.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rewired-gh/ratiosentry/internal/models"
)

// sender is the part of tgbotapi.BotAPI the client uses.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Client handles Telegram notifications
type Client struct {
	bot            sender
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	return newClient(bot, chatIDInt, maxRetries, retryDelayBase), nil
}

func newClient(bot sender, chatID int64, maxRetries int, retryDelayBase time.Duration) *Client {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}
	return &Client{
		bot:            bot,
		chatID:         chatID,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}
}

// Send posts the digest for rep.
func (c *Client) Send(ctx context.Context, rep *models.Report) error {
	msg := tgbotapi.NewMessage(c.chatID, formatMessage(rep))
	msg.ParseMode = tgbotapi.ModeMarkdownV2

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		_, err := c.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err

		if i == c.maxRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("message not sent: %w", ctx.Err())
		case <-time.After(c.retryDelayBase * time.Duration(i+1)):
		}
	}

	return fmt.Errorf("failed to send message after %d retries: %w", c.maxRetries, lastErr)
}

// formatMessage renders the digest in MarkdownV2.
func formatMessage(rep *models.Report) string {
	var b strings.Builder
	t := rep.Totals

	b.WriteString("📊 *Anomaly run summary*\n")
	fmt.Fprintf(&b, "🆔 `%s`\n\n", escapeMarkdownV2(rep.RunID))

	fmt.Fprintf(&b, "Entities: %d evaluated, %d excluded\n", t.EvaluatedEntities, t.ExcludedEntities)
	fmt.Fprintf(&b, "Flagged: *%d* of %d \\(%s high, %s low\\)\n",
		t.FlaggedCount, t.EvaluatedCount, strconv.Itoa(t.HighCount), strconv.Itoa(t.LowCount))
	fmt.Fprintf(&b, "Rate: *%s* vs %s expected, excess z %s\n",
		pct(t.Rate), pct(t.ExpectedRate), escapeMarkdownV2(fmt.Sprintf("%+.2f", t.ExcessZ)))

	if len(rep.Categories) > 0 {
		b.WriteString("\n*By category*\n")
		for _, c := range rep.Categories {
			emoji := "✅"
			if c.ObservedToExpected > 1.5 {
				emoji = "⚠️"
			}
			fmt.Fprintf(&b, "%s %s: %d/%d flagged, %s vs %s\n",
				emoji, escapeMarkdownV2(string(c.Category)), c.FlaggedCount, c.EvaluatedCount,
				pct(c.Rate), pct(c.ExpectedRate))
		}
	}

	if len(rep.TopEntities) > 0 {
		b.WriteString("\n*Most flagged*\n")
		for i, e := range rep.TopEntities {
			label := escapeMarkdownV2(e.EntityID)
			if e.EntityName != "" {
				label += " " + escapeMarkdownV2(e.EntityName)
			}
			fmt.Fprintf(&b, "%d\\. %s \\(%s\\): %d of %d\n",
				i+1, label, escapeMarkdownV2(string(e.Category)),
				e.FlaggedCount, e.EvaluatedCount)
		}
	}

	return b.String()
}

func pct(rate float64) string {
	return escapeMarkdownV2(fmt.Sprintf("%.2f%%", rate*100))
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	// _ * [ ] ( ) ~ ` > # + - = | { } . ! and the escape character itself
	var b strings.Builder
	for _, char := range text {
		switch char {
		case '\\', '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteRune('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
