// Package reminders queues expiry reminder notifications for domains
// approaching their expiration date.
package reminders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	moni "domainwatch/internal/monitor/models"
	"domainwatch/internal/monitor/store"
	notif "domainwatch/internal/notify/models"
)

// ChangeTypeReminder marks reminder notifications, distinguishing them
// from change-driven ones in the notification feed.
const ChangeTypeReminder = "reminder"

// reminderDays are checked most-distant first so a run close to expiry
// still queues the nearest applicable reminder.
var reminderDays = []int{90, 30, 7, 2}

// DomainStore lists domains by expiry day and resolves their registrar.
type DomainStore interface {
	ListExpiringOn(ctx context.Context, day time.Time) ([]moni.Domain, error)
	GetRegistrar(ctx context.Context, id uuid.UUID) (*moni.Registrar, error)
}

// NotificationStore queues reminder notifications.
type NotificationStore interface {
	Insert(ctx context.Context, n *notif.Notification) error
}

// Service scans for domains expiring at the reminder horizons and queues
// one notification per hit. Reminders bypass per-domain preferences.
type Service struct {
	domains       DomainStore
	notifications NotificationStore
	logger        *slog.Logger
	now           func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(domains DomainStore, notifications NotificationStore, opts ...Option) *Service {
	s := &Service{
		domains:       domains,
		notifications: notifications,
		logger:        slog.Default(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run checks every reminder horizon once and returns the number of
// reminders queued. Failures on one horizon do not stop the others.
func (s *Service) Run(ctx context.Context) (int, error) {
	queued := 0
	var errs []error
	for _, days := range reminderDays {
		target := s.now().UTC().AddDate(0, 0, days)
		expiring, err := s.domains.ListExpiringOn(ctx, target)
		if err != nil {
			errs = append(errs, fmt.Errorf("list domains expiring in %d days: %w", days, err))
			continue
		}
		for _, domain := range expiring {
			if err := s.queueReminder(ctx, domain, days); err != nil {
				errs = append(errs, fmt.Errorf("queue reminder for %s: %w", domain.DomainName, err))
				continue
			}
			queued++
		}
	}
	if queued > 0 {
		s.logger.InfoContext(ctx, "expiry reminders queued", "count", queued)
	}
	return queued, errors.Join(errs...)
}

func (s *Service) queueReminder(ctx context.Context, domain moni.Domain, days int) error {
	message := fmt.Sprintf("Domain %s expiring in %d days.", domain.DomainName, days)
	if registrar, err := s.domains.GetRegistrar(ctx, domain.RegistrarID); err == nil && registrar.URL != "" {
		message += fmt.Sprintf(" Renew it on %s.", registrar.URL)
	} else if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.WarnContext(ctx, "registrar lookup failed", "domain", domain.DomainName, "error", err)
	}

	return s.notifications.Insert(ctx, &notif.Notification{
		UserID:     domain.UserID,
		DomainID:   domain.ID,
		ChangeType: ChangeTypeReminder,
		Message:    message,
	})
}
