// Package notify delivers alerts when a pinned item turns into a BUY.
package notify

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender delivers one formatted message.
type Sender interface {
	Send(text string) error
	Channel() string
}

// Telegram sends MarkdownV2 messages to a single chat.
type Telegram struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
	sleep          func(time.Duration)
}

// NewTelegram creates a Telegram sender. It contacts the Bot API once to
// validate the token.
func NewTelegram(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}
	return &Telegram{
		bot:            bot,
		chatID:         id,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
		sleep:          time.Sleep,
	}, nil
}

// Channel names the delivery channel in alert history.
func (t *Telegram) Channel() string { return "telegram" }

// Send delivers text with linear-backoff retry.
func (t *Telegram) Send(text string) error {
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	return t.retry(func() error {
		_, err := t.bot.Send(msg)
		return err
	})
}

// retry runs send up to maxRetries times, waiting retryDelayBase*n between
// attempts. No wait follows the last attempt.
func (t *Telegram) retry(send func() error) error {
	var lastErr error
	for i := 0; i < t.maxRetries; i++ {
		if lastErr = send(); lastErr == nil {
			return nil
		}
		if i < t.maxRetries-1 {
			t.sleep(t.retryDelayBase * time.Duration(i+1))
		}
	}
	return fmt.Errorf("failed after %d retries: %w", t.maxRetries, lastErr)
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4)
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
