package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"domainwatch/internal/notify/models"
)

// Postgres persists notifications, preferences, and user delivery
// configuration in PostgreSQL.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed notification store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// IsEnabled reports whether a notification type is enabled for a domain. An
// absent preference row means disabled.
func (s *Postgres) IsEnabled(ctx context.Context, domainID uuid.UUID, notificationType string) (bool, error) {
	query := `
		SELECT is_enabled
		FROM notification_preferences
		WHERE domain_id = $1 AND notification_type = $2
	`
	var enabled bool
	err := s.db.QueryRowContext(ctx, query, domainID, notificationType).Scan(&enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query notification preference: %w", err)
	}
	return enabled, nil
}

// SetPreference upserts a per-domain opt-in flag.
func (s *Postgres) SetPreference(ctx context.Context, pref models.Preference) error {
	query := `
		INSERT INTO notification_preferences (domain_id, notification_type, is_enabled)
		VALUES ($1, $2, $3)
		ON CONFLICT (domain_id, notification_type) DO UPDATE SET is_enabled = EXCLUDED.is_enabled
	`
	if _, err := s.db.ExecContext(ctx, query, pref.DomainID, pref.NotificationType, pref.IsEnabled); err != nil {
		return fmt.Errorf("upsert notification preference: %w", err)
	}
	return nil
}

// Insert records a notification.
func (s *Postgres) Insert(ctx context.Context, n *models.Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	query := `
		INSERT INTO notifications (id, user_id, domain_id, change_type, message, sent, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query, n.ID, n.UserID, n.DomainID, n.ChangeType, n.Message, n.Sent, n.Read, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// ListUnsent returns notifications whose delivery has not yet been attempted.
func (s *Postgres) ListUnsent(ctx context.Context) ([]models.Notification, error) {
	query := `
		SELECT id, user_id, domain_id, change_type, message, sent, read, created_at
		FROM notifications
		WHERE sent = false
		ORDER BY created_at
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query unsent notifications: %w", err)
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.DomainID, &n.ChangeType, &n.Message, &n.Sent, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkSent flags a notification as attempted.
func (s *Postgres) MarkSent(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `UPDATE notifications SET sent = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark notification sent: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteOlderThan removes notifications created before the cutoff, regardless
// of sent state, and returns the number removed.
func (s *Postgres) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notifications WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old notifications: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count deleted notifications: %w", err)
	}
	return deleted, nil
}

// GetUserInfo loads the delivery configuration for a user. The channel
// document is validated on decode so a bad row fails here, not mid-dispatch.
func (s *Postgres) GetUserInfo(ctx context.Context, userID uuid.UUID) (*models.UserInfo, error) {
	query := `
		SELECT u.email, COALESCE(ui.billing_tier, 'free'), COALESCE(ui.notification_channels, '{}'::jsonb)
		FROM users u
		LEFT JOIN user_info ui ON ui.user_id = u.id
		WHERE u.id = $1
	`
	var (
		email    string
		tier     string
		channels []byte
	)
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&email, &tier, &channels)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user info: %w", err)
	}

	set, err := models.DecodeChannelSet(channels)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", userID, err)
	}
	return &models.UserInfo{
		UserID:   userID,
		Email:    email,
		Tier:     models.Tier(tier),
		Channels: set,
	}, nil
}
