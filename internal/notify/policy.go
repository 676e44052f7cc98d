// Package notify turns detected domain changes into user-facing
// notifications and delivers them over the user's configured channels.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	monitormodels "domainwatch/internal/monitor/models"
	"domainwatch/internal/notify/models"
)

// PreferenceStore checks per-domain opt-in flags.
type PreferenceStore interface {
	IsEnabled(ctx context.Context, domainID uuid.UUID, notificationType string) (bool, error)
}

// NotificationStore records notifications pending delivery.
type NotificationStore interface {
	Insert(ctx context.Context, n *models.Notification) error
}

// fieldHumanNames maps change fields to the names used in notification
// messages.
var fieldHumanNames = map[string]string{
	"registrar":          "Registrar",
	"whois_name":         "WHOIS Name",
	"whois_organization": "WHOIS Organization",
	"whois_state":        "WHOIS State",
	"whois_city":         "WHOIS City",
	"whois_country":      "WHOIS Country",
	"whois_postal_code":  "WHOIS Postal Code",
	"dns_ns":             "Nameserver",
	"dns_txt":            "TXT Record",
	"dns_mx":             "MX Record",
	"ip_ipv4":            "IPv4 Address",
	"ip_ipv6":            "IPv6 Address",
	"ssl_issuer":         "SSL Issuer",
	"dates_expiry":       "Expiry Date",
	"dates_updated":      "Last Update Date",
	"status":             "Domain Status",
}

// NotificationType maps a change field to its coarser preference type. An
// empty result means the field never notifies (date changes, for one, are
// audit-log only).
func NotificationType(field string) string {
	switch {
	case strings.HasPrefix(field, "whois_"):
		return "whois_"
	case strings.HasPrefix(field, "dns_"):
		return "dns_"
	case strings.HasPrefix(field, "ip_"):
		return "ip_"
	case field == "registrar", field == "ssl_issuer", field == "status":
		return field
	default:
		return ""
	}
}

// Policy decides, per change, whether a notification should be created, and
// builds its message.
type Policy struct {
	preferences   PreferenceStore
	notifications NotificationStore
	logger        *slog.Logger
}

type PolicyOption func(*Policy)

func WithPolicyLogger(logger *slog.Logger) PolicyOption {
	return func(p *Policy) { p.logger = logger }
}

// NewPolicy constructs a Policy.
func NewPolicy(preferences PreferenceStore, notifications NotificationStore, opts ...PolicyOption) *Policy {
	p := &Policy{preferences: preferences, notifications: notifications, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// HandleChange creates a notification for the change if its field maps to a
// notification type and that type is enabled for the domain.
func (p *Policy) HandleChange(ctx context.Context, change monitormodels.Change) error {
	notificationType := NotificationType(change.Field)
	if notificationType == "" {
		p.logger.DebugContext(ctx, "no notification type for field", "field", change.Field)
		return nil
	}

	enabled, err := p.preferences.IsEnabled(ctx, change.DomainID, notificationType)
	if err != nil {
		return fmt.Errorf("check preference %q: %w", notificationType, err)
	}
	if !enabled {
		p.logger.DebugContext(ctx, "notifications disabled",
			"domain_id", change.DomainID,
			"notification_type", notificationType,
		)
		return nil
	}

	notification := &models.Notification{
		UserID:     change.UserID,
		DomainID:   change.DomainID,
		ChangeType: change.Field,
		Message:    buildMessage(change),
	}
	if err := p.notifications.Insert(ctx, notification); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}

	p.logger.InfoContext(ctx, "notification created",
		"domain_id", change.DomainID,
		"notification_type", notificationType,
	)
	return nil
}

func buildMessage(change monitormodels.Change) string {
	name := fieldHumanNames[change.Field]
	if name == "" {
		name = change.Field
	}
	switch change.ChangeType {
	case monitormodels.ChangeAdded:
		return fmt.Sprintf("%s was added %q", name, change.NewValue)
	case monitormodels.ChangeRemoved:
		return fmt.Sprintf("%s was removed %q", name, change.OldValue)
	default:
		return fmt.Sprintf("The %s for your domain has changed from %q to %q.", name, change.OldValue, change.NewValue)
	}
}
