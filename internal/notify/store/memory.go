package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"domainwatch/internal/notify/models"
)

type preferenceKey struct {
	domainID         uuid.UUID
	notificationType string
}

// InMemory is a mutex-guarded in-memory mirror of the Postgres store, used by
// unit tests and local development.
type InMemory struct {
	mu            sync.RWMutex
	notifications map[uuid.UUID]models.Notification
	preferences   map[preferenceKey]bool
	users         map[uuid.UUID]models.UserInfo
}

// NewInMemory creates an empty in-memory notification store.
func NewInMemory() *InMemory {
	return &InMemory{
		notifications: make(map[uuid.UUID]models.Notification),
		preferences:   make(map[preferenceKey]bool),
		users:         make(map[uuid.UUID]models.UserInfo),
	}
}

// IsEnabled reports whether a notification type is enabled for a domain. An
// absent preference row means disabled.
func (s *InMemory) IsEnabled(_ context.Context, domainID uuid.UUID, notificationType string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.preferences[preferenceKey{domainID, notificationType}], nil
}

// SetPreference sets a per-domain opt-in flag.
func (s *InMemory) SetPreference(_ context.Context, pref models.Preference) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preferences[preferenceKey{pref.DomainID, pref.NotificationType}] = pref.IsEnabled
	return nil
}

// Insert records a notification.
func (s *InMemory) Insert(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	s.notifications[n.ID] = *n
	return nil
}

// ListUnsent returns notifications whose delivery has not yet been attempted.
func (s *InMemory) ListUnsent(_ context.Context) ([]models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Notification
	for _, n := range s.notifications {
		if !n.Sent {
			out = append(out, n)
		}
	}
	return out, nil
}

// MarkSent flags a notification as attempted.
func (s *InMemory) MarkSent(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok {
		return ErrNotFound
	}
	n.Sent = true
	s.notifications[id] = n
	return nil
}

// DeleteOlderThan removes notifications created before the cutoff, regardless
// of sent state, and returns the number removed.
func (s *InMemory) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int64
	for id, n := range s.notifications {
		if n.CreatedAt.Before(cutoff) {
			delete(s.notifications, id)
			deleted++
		}
	}
	return deleted, nil
}

// GetUserInfo loads the delivery configuration for a user.
func (s *InMemory) GetUserInfo(_ context.Context, userID uuid.UUID) (*models.UserInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, ok := s.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &info, nil
}

// SeedUser installs a user's delivery configuration, for tests and the
// account flow boundary.
func (s *InMemory) SeedUser(info models.UserInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[info.UserID] = info
}

// All returns every stored notification. Test helper.
func (s *InMemory) All() []models.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Notification, 0, len(s.notifications))
	for _, n := range s.notifications {
		out = append(out, n)
	}
	return out
}
