// Package notify pushes download lifecycle messages to Telegram. All
// notifications are best-effort: failures are logged by the caller and
// never affect the queue.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lidagrab/lidagrab/internal/config"
)

const defaultAPIBase = "https://api.telegram.org"

// Service is the notification surface the queue listener uses.
type Service interface {
	NotifyStarted(ctx context.Context, artist, title string) error
	NotifyCompleted(ctx context.Context, artist, title string, degraded bool) error
	NotifyFailed(ctx context.Context, artist, title, reason string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a Telegram-backed service when a bot token and chat ID
// are configured, and a noop implementation otherwise.
func NewService(cfg config.NotificationsConfig) Service {
	tg := cfg.Telegram
	if tg == nil || !tg.Enabled || strings.TrimSpace(tg.BotToken) == "" || strings.TrimSpace(tg.ChatID) == "" {
		return noopService{}
	}
	return &telegramService{
		apiBase: defaultAPIBase,
		token:   strings.TrimSpace(tg.BotToken),
		chatID:  strings.TrimSpace(tg.ChatID),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type telegramService struct {
	apiBase string
	token   string
	chatID  string
	client  *http.Client
}

func (t *telegramService) NotifyStarted(ctx context.Context, artist, title string) error {
	return t.send(ctx, fmt.Sprintf("⬇️ Downloading: %s - %s", artist, title))
}

func (t *telegramService) NotifyCompleted(ctx context.Context, artist, title string, degraded bool) error {
	msg := fmt.Sprintf("✅ Downloaded: %s - %s", artist, title)
	if degraded {
		msg += "\n(imported without tags)"
	}
	return t.send(ctx, msg)
}

func (t *telegramService) NotifyFailed(ctx context.Context, artist, title, reason string) error {
	return t.send(ctx, fmt.Sprintf("❌ Failed: %s - %s\n%s", artist, title, reason))
}

func (t *telegramService) TestNotification(ctx context.Context) error {
	return t.send(ctx, "lidagrab notification test")
}

func (t *telegramService) send(ctx context.Context, text string) error {
	body, err := json.Marshal(map[string]string{
		"chat_id": t.chatID,
		"text":    text,
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("telegram returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyStarted(context.Context, string, string) error         { return nil }
func (noopService) NotifyCompleted(context.Context, string, string, bool) error { return nil }
func (noopService) NotifyFailed(context.Context, string, string, string) error  { return nil }
func (noopService) TestNotification(context.Context) error                      { return nil }
