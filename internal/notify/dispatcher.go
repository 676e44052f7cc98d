package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"domainwatch/internal/notify/channels"
	"domainwatch/internal/notify/models"
	"domainwatch/internal/platform/metrics"
)

// UserStore loads per-user delivery configuration.
type UserStore interface {
	GetUserInfo(ctx context.Context, userID uuid.UUID) (*models.UserInfo, error)
}

// NotificationQueue is the dispatcher's view of the notifications table.
type NotificationQueue interface {
	ListUnsent(ctx context.Context) ([]models.Notification, error)
	MarkSent(ctx context.Context, id uuid.UUID) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Dispatcher fans a notification out to every enabled delivery channel.
// Channels fail independently; a notification is marked sent once dispatch
// has been attempted, regardless of channel outcomes. This is an
// at-most-once attempt, not a delivery guarantee.
type Dispatcher struct {
	users         UserStore
	notifications NotificationQueue
	senders       *channels.Client
	retention     time.Duration
	logger        *slog.Logger
	metrics       *metrics.Metrics
}

type DispatcherOption func(*Dispatcher)

func WithDispatcherLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = logger }
}

func WithDispatcherMetrics(m *metrics.Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithRetention overrides the retention window used by Sweep.
func WithRetention(window time.Duration) DispatcherOption {
	return func(d *Dispatcher) { d.retention = window }
}

// NewDispatcher constructs a Dispatcher. The default retention window is 30
// days.
func NewDispatcher(users UserStore, notifications NotificationQueue, senders *channels.Client, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		users:         users,
		notifications: notifications,
		senders:       senders,
		retention:     30 * 24 * time.Hour,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch delivers one notification to every enabled channel concurrently,
// then marks it sent. Free-tier users are restricted to email regardless of
// stored channel configuration; users with no configured channels fall back
// to their account email.
func (d *Dispatcher) Dispatch(ctx context.Context, n models.Notification) error {
	info, err := d.users.GetUserInfo(ctx, n.UserID)
	if err != nil {
		return fmt.Errorf("load user %s: %w", n.UserID, err)
	}

	set := info.Channels
	if set.Email == nil && info.Email != "" {
		set.Email = &models.EmailChannel{Enabled: true, Address: info.Email}
	}
	if info.Tier == models.TierFree {
		set = set.EmailOnly()
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, send := range d.enabledSends(set, n.Message) {
		g.Go(func() error {
			err := send.fn(gctx)
			d.metrics.ObserveDispatch(send.channel, err)
			if err != nil {
				d.logger.ErrorContext(ctx, "channel send failed",
					"notification_id", n.ID,
					"channel", send.channel,
					"error", err,
				)
			}
			// Channel failures never fail the notification.
			return nil
		})
	}
	_ = g.Wait()

	if err := d.notifications.MarkSent(ctx, n.ID); err != nil {
		return fmt.Errorf("mark sent %s: %w", n.ID, err)
	}
	return nil
}

type channelSend struct {
	channel string
	fn      func(context.Context) error
}

func (d *Dispatcher) enabledSends(set models.ChannelSet, message string) []channelSend {
	var sends []channelSend
	if set.Email != nil && set.Email.Enabled {
		cfg := set.Email
		sends = append(sends, channelSend{models.ChannelEmail, func(ctx context.Context) error {
			return d.senders.SendEmail(ctx, cfg, message)
		}})
	}
	if set.Push != nil && set.Push.Enabled {
		cfg := set.Push
		sends = append(sends, channelSend{models.ChannelPush, func(ctx context.Context) error {
			return d.senders.SendPush(ctx, cfg, message)
		}})
	}
	if set.Webhook != nil && set.Webhook.Enabled {
		cfg := set.Webhook
		sends = append(sends, channelSend{models.ChannelWebhook, func(ctx context.Context) error {
			return d.senders.SendWebhook(ctx, cfg, message)
		}})
	}
	if set.Signal != nil && set.Signal.Enabled {
		cfg := set.Signal
		sends = append(sends, channelSend{models.ChannelSignal, func(ctx context.Context) error {
			return d.senders.SendSignal(ctx, cfg, message)
		}})
	}
	if set.Telegram != nil && set.Telegram.Enabled {
		cfg := set.Telegram
		sends = append(sends, channelSend{models.ChannelTelegram, func(ctx context.Context) error {
			return d.senders.SendTelegram(ctx, cfg, message)
		}})
	}
	if set.Slack != nil && set.Slack.Enabled {
		cfg := set.Slack
		sends = append(sends, channelSend{models.ChannelSlack, func(ctx context.Context) error {
			return d.senders.SendSlack(ctx, cfg, message)
		}})
	}
	if set.Matrix != nil && set.Matrix.Enabled {
		cfg := set.Matrix
		sends = append(sends, channelSend{models.ChannelMatrix, func(ctx context.Context) error {
			return d.senders.SendMatrix(ctx, cfg, message)
		}})
	}
	return sends
}

// SweepResult summarizes one retention sweep.
type SweepResult struct {
	Dispatched int
	Failed     int
	Deleted    int64
}

// Sweep re-attempts delivery of still-unsent notifications, then deletes
// notifications older than the retention window regardless of sent state.
// The safety net for dispatches missed at detection time.
func (d *Dispatcher) Sweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult

	pending, err := d.notifications.ListUnsent(ctx)
	if err != nil {
		return result, fmt.Errorf("list unsent notifications: %w", err)
	}
	d.logger.InfoContext(ctx, "retention sweep started", "pending", len(pending))

	for _, n := range pending {
		if err := d.Dispatch(ctx, n); err != nil {
			result.Failed++
			d.logger.ErrorContext(ctx, "sweep dispatch failed", "notification_id", n.ID, "error", err)
			continue
		}
		result.Dispatched++
	}

	deleted, err := d.notifications.DeleteOlderThan(ctx, time.Now().Add(-d.retention))
	if err != nil {
		return result, fmt.Errorf("delete old notifications: %w", err)
	}
	result.Deleted = deleted

	d.logger.InfoContext(ctx, "retention sweep finished",
		"dispatched", result.Dispatched,
		"failed", result.Failed,
		"deleted", deleted,
	)
	return result, nil
}
