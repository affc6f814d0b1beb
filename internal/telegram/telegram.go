// Package telegram sends operator messages to a Telegram chat.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/deusflow/newshub/internal/retry"
)

const defaultBaseURL = "https://api.telegram.org"

// maxMessageLen keeps messages under Telegram's 4096 character limit.
const maxMessageLen = 4000

type Client struct {
	token   string
	chatID  string
	baseURL string
	http    *http.Client
	policy  retry.Policy
	log     *slog.Logger
}

// New returns a client, or nil when token or chat id is missing so callers
// can treat notifications as optional.
func New(token, chatID string, httpClient *http.Client, log *slog.Logger) *Client {
	if token == "" || chatID == "" {
		return nil
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	log = log.With("component", "telegram")
	return &Client{
		token:   token,
		chatID:  chatID,
		baseURL: defaultBaseURL,
		http:    httpClient,
		policy: retry.Policy{
			MaxAttempts: 3,
			Delay:       2 * time.Second,
			Backoff:     true,
			OnRetry: func(attempt int, err error, wait time.Duration) {
				log.Warn("telegram send failed, retrying", "attempt", attempt, "wait", wait, "error", err)
			},
		},
		log: log,
	}
}

// SendMessage posts an HTML message with link previews disabled.
func (c *Client) SendMessage(ctx context.Context, text string) error {
	if len(text) > maxMessageLen {
		text = text[:maxMessageLen]
	}

	err := retry.Do(ctx, c.policy, func(ctx context.Context) error {
		return c.sendOnce(ctx, text)
	})
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	c.log.Info("message sent", "length", len(text))
	return nil
}

func (c *Client) sendOnce(ctx context.Context, text string) error {
	body, err := json.Marshal(map[string]interface{}{
		"chat_id":                  c.chatID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram API error: status %d: %s", resp.StatusCode, msg)
	}
	return nil
}
