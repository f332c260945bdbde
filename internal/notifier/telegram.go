package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// DefaultAPIURL is the Telegram Bot API endpoint.
const DefaultAPIURL = "https://api.telegram.org"

// Notifier delivers a run report to an operator.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// TelegramNotifier sends messages via the Telegram Bot API.
type TelegramNotifier struct {
	BotToken   string
	ChatID     string
	APIURL     string
	MaxRetries int
	Backoff    time.Duration
	client     *resty.Client
	logger     *zap.Logger
}

// NewTelegramNotifier creates a notifier with optional proxy support.
func NewTelegramNotifier(botToken, chatID, proxyURL string, logger *zap.Logger) *TelegramNotifier {
	client := resty.New().SetTimeout(35 * time.Second)
	if proxyURL != "" {
		client.SetProxy(proxyURL)
	}
	return &TelegramNotifier{
		BotToken:   botToken,
		ChatID:     chatID,
		APIURL:     DefaultAPIURL,
		MaxRetries: 3,
		Backoff:    time.Second,
		client:     client,
		logger:     logger.With(zap.String("component", "TelegramNotifier")),
	}
}

func (t *TelegramNotifier) endpoint(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", t.APIURL, t.BotToken, method)
}

// Send sends a message to the configured chat.
func (t *TelegramNotifier) Send(ctx context.Context, text string) error {
	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"chat_id": t.ChatID,
			"text":    text,
		}).
		SetResult(&result).
		SetError(&result).
		Post(t.endpoint("sendMessage"))
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	if resp.IsError() || !result.OK {
		return fmt.Errorf("telegram API error: status %d: %s", resp.StatusCode(), result.Description)
	}
	return nil
}

// Notify sends text, retrying with exponential backoff.
func (t *TelegramNotifier) Notify(ctx context.Context, text string) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = t.Backoff
	eb.Multiplier = 2
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(t.MaxRetries)), ctx)

	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		return t.Send(ctx, text)
	}, b, func(err error, next time.Duration) {
		t.logger.Warn("telegram send failed, retrying",
			zap.Int("attempt", attempt), zap.Int("max_attempts", t.MaxRetries+1),
			zap.Duration("backoff", next), zap.Error(err))
	})
	if err != nil {
		return fmt.Errorf("all %d attempts exhausted: %w", attempt, err)
	}
	return nil
}

// NoopNotifier discards every message.
type NoopNotifier struct{}

func (NoopNotifier) Notify(context.Context, string) error { return nil }
