package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Notification is a queued, user-facing message derived from one change,
// pending multi-channel delivery.
type Notification struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	DomainID   uuid.UUID
	ChangeType string
	Message    string
	Sent       bool
	Read       bool
	CreatedAt  time.Time
}

// Preference is a per-domain, per-notification-type opt-in flag. An absent
// row means disabled.
type Preference struct {
	DomainID         uuid.UUID
	NotificationType string
	IsEnabled        bool
}

// Tier is the user's billing tier. The free tier is restricted to email
// delivery regardless of stored channel configuration.
type Tier string

const (
	TierFree Tier = "free"
	TierPro  Tier = "pro"
)

// UserInfo carries the per-user delivery configuration the dispatcher needs.
type UserInfo struct {
	UserID   uuid.UUID
	Email    string
	Tier     Tier
	Channels ChannelSet
}

// Channel kinds, used as metric labels and sender registry keys.
const (
	ChannelEmail    = "email"
	ChannelPush     = "push"
	ChannelWebhook  = "webhook"
	ChannelSignal   = "signal"
	ChannelTelegram = "telegram"
	ChannelSlack    = "slack"
	ChannelMatrix   = "matrix"
)

// ChannelSet is the tagged variant decoded from the stored
// notification_channels JSON document: one case per channel kind, each
// validated on decode. Unknown keys are rejected.
type ChannelSet struct {
	Email    *EmailChannel    `json:"email,omitempty"`
	Push     *PushChannel     `json:"pushNotification,omitempty"`
	Webhook  *WebhookChannel  `json:"webHook,omitempty"`
	Signal   *SignalChannel   `json:"signal,omitempty"`
	Telegram *TelegramChannel `json:"telegram,omitempty"`
	Slack    *SlackChannel    `json:"slack,omitempty"`
	Matrix   *MatrixChannel   `json:"matrix,omitempty"`
}

type EmailChannel struct {
	Enabled bool   `json:"enabled"`
	Address string `json:"address"`
}

func (c *EmailChannel) validate() error {
	if c.Enabled && c.Address == "" {
		return fmt.Errorf("email channel requires an address")
	}
	return nil
}

type PushChannel struct {
	Enabled bool   `json:"enabled"`
	Topic   string `json:"topic"`
}

func (c *PushChannel) validate() error { return nil }

type WebhookChannel struct {
	Enabled  bool   `json:"enabled"`
	URL      string `json:"url"`
	Provider string `json:"provider"`
	Token    string `json:"token"`
}

func (c *WebhookChannel) validate() error {
	if c.Enabled && c.URL == "" {
		return fmt.Errorf("webhook channel requires a url")
	}
	return nil
}

type SignalChannel struct {
	Enabled bool   `json:"enabled"`
	Number  string `json:"number"`
	APIKey  string `json:"apiKey"`
}

func (c *SignalChannel) validate() error {
	if c.Enabled && c.Number == "" {
		return fmt.Errorf("signal channel requires a number")
	}
	return nil
}

type TelegramChannel struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"botToken"`
	ChatID   string `json:"chatId"`
}

func (c *TelegramChannel) validate() error {
	if c.Enabled && (c.BotToken == "" || c.ChatID == "") {
		return fmt.Errorf("telegram channel requires botToken and chatId")
	}
	return nil
}

type SlackChannel struct {
	Enabled    bool   `json:"enabled"`
	WebhookURL string `json:"webhookUrl"`
}

func (c *SlackChannel) validate() error {
	if c.Enabled && c.WebhookURL == "" {
		return fmt.Errorf("slack channel requires a webhookUrl")
	}
	return nil
}

type MatrixChannel struct {
	Enabled       bool   `json:"enabled"`
	HomeserverURL string `json:"homeserverUrl"`
	RoomID        string `json:"roomId"`
	AccessToken   string `json:"accessToken"`
}

func (c *MatrixChannel) validate() error {
	if c.Enabled && (c.HomeserverURL == "" || c.AccessToken == "") {
		return fmt.Errorf("matrix channel requires homeserverUrl and accessToken")
	}
	return nil
}

// DecodeChannelSet parses and validates a stored channel configuration
// document. Unknown channel kinds or invalid enabled entries are rejected so
// a bad row is caught at decode time, not mid-dispatch.
func DecodeChannelSet(data []byte) (ChannelSet, error) {
	var set ChannelSet
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&set); err != nil {
		return ChannelSet{}, fmt.Errorf("decode channel config: %w", err)
	}
	if err := set.Validate(); err != nil {
		return ChannelSet{}, err
	}
	return set, nil
}

// Validate checks every configured channel case.
func (s ChannelSet) Validate() error {
	checks := []func() error{}
	if s.Email != nil {
		checks = append(checks, s.Email.validate)
	}
	if s.Push != nil {
		checks = append(checks, s.Push.validate)
	}
	if s.Webhook != nil {
		checks = append(checks, s.Webhook.validate)
	}
	if s.Signal != nil {
		checks = append(checks, s.Signal.validate)
	}
	if s.Telegram != nil {
		checks = append(checks, s.Telegram.validate)
	}
	if s.Slack != nil {
		checks = append(checks, s.Slack.validate)
	}
	if s.Matrix != nil {
		checks = append(checks, s.Matrix.validate)
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

// EmailOnly strips the set down to its email case, used for free-tier users.
func (s ChannelSet) EmailOnly() ChannelSet {
	return ChannelSet{Email: s.Email}
}
