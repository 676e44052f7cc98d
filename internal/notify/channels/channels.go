// Package channels implements one independent send operation per delivery
// channel kind. Every send is a bounded-timeout HTTP call; a non-2xx response
// is a send failure.
package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"domainwatch/internal/notify/models"
)

const defaultTimeout = 5 * time.Second

// Client sends notification messages over the supported channel kinds.
// Base URLs exist so tests can point senders at a local server.
type Client struct {
	http *http.Client

	// Email delivery API (service-level configuration, not per user).
	EmailAPIURL string
	EmailAPIKey string

	TelegramBaseURL string
	SignalBaseURL   string
	PushBaseURL     string
}

// NewClient builds a channel client with a bounded-timeout HTTP client.
func NewClient(emailAPIURL, emailAPIKey string) *Client {
	return &Client{
		http:            &http.Client{Timeout: defaultTimeout},
		EmailAPIURL:     emailAPIURL,
		EmailAPIKey:     emailAPIKey,
		TelegramBaseURL: "https://api.telegram.org",
		SignalBaseURL:   "https://api.callmebot.com",
		PushBaseURL:     "https://ntfy.sh",
	}
}

// SendEmail posts the message to the configured email delivery API.
func (c *Client) SendEmail(ctx context.Context, cfg *models.EmailChannel, message string) error {
	if c.EmailAPIURL == "" {
		return fmt.Errorf("email API is not configured")
	}
	payload := map[string]string{
		"to":      cfg.Address,
		"subject": "Domain update",
		"text":    message,
	}
	return c.postJSON(ctx, c.EmailAPIURL, payload, map[string]string{
		"Authorization": "Bearer " + c.EmailAPIKey,
	})
}

// SendPush publishes the message to the user's push topic.
func (c *Client) SendPush(ctx context.Context, cfg *models.PushChannel, message string) error {
	if cfg.Topic == "" {
		return fmt.Errorf("push channel has no topic")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.PushBaseURL+"/"+url.PathEscape(cfg.Topic), bytes.NewBufferString(message))
	if err != nil {
		return err
	}
	return c.do(req)
}

// SendWebhook posts the message to the user's webhook endpoint.
func (c *Client) SendWebhook(ctx context.Context, cfg *models.WebhookChannel, message string) error {
	headers := map[string]string{}
	if cfg.Token != "" {
		headers["Authorization"] = "Bearer " + cfg.Token
	}
	return c.postJSON(ctx, cfg.URL, map[string]string{"message": message}, headers)
}

// SendSignal delivers the message through the Signal gateway.
func (c *Client) SendSignal(ctx context.Context, cfg *models.SignalChannel, message string) error {
	endpoint := fmt.Sprintf("%s/signal/send.php?phone=%s&apikey=%s&text=%s",
		c.SignalBaseURL,
		url.QueryEscape(cfg.Number),
		url.QueryEscape(cfg.APIKey),
		url.QueryEscape(message),
	)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req)
}

// SendTelegram delivers the message via the Telegram bot API.
func (c *Client) SendTelegram(ctx context.Context, cfg *models.TelegramChannel, message string) error {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", c.TelegramBaseURL, cfg.BotToken)
	return c.postJSON(ctx, endpoint, map[string]string{
		"chat_id": cfg.ChatID,
		"text":    message,
	}, nil)
}

// SendSlack posts the message to the user's Slack incoming webhook.
func (c *Client) SendSlack(ctx context.Context, cfg *models.SlackChannel, message string) error {
	return c.postJSON(ctx, cfg.WebhookURL, map[string]string{"text": message}, nil)
}

// SendMatrix sends the message into the configured Matrix room.
func (c *Client) SendMatrix(ctx context.Context, cfg *models.MatrixChannel, message string) error {
	endpoint := fmt.Sprintf("%s/_matrix/client/r0/rooms/%s/send/m.room.message?access_token=%s",
		cfg.HomeserverURL,
		url.PathEscape(cfg.RoomID),
		url.QueryEscape(cfg.AccessToken),
	)
	return c.postJSON(ctx, endpoint, map[string]string{
		"msgtype": "m.text",
		"body":    message,
	}, nil)
}

func (c *Client) postJSON(ctx context.Context, endpoint string, payload any, headers map[string]string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return fmt.Errorf("channel send returned %d: %s", resp.StatusCode, snippet)
	}
	return nil
}
