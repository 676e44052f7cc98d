package changelog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"domainwatch/internal/monitor/models"
)

// Postgres appends changes to the domain_updates table.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed change log.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Append records one change.
func (s *Postgres) Append(ctx context.Context, change models.Change) error {
	if change.ID == uuid.Nil {
		change.ID = uuid.New()
	}
	if change.CreatedAt.IsZero() {
		change.CreatedAt = time.Now()
	}
	query := `
		INSERT INTO domain_updates (id, domain_id, user_id, change, change_type, old_value, new_value, date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		change.ID,
		change.DomainID,
		change.UserID,
		change.Field,
		string(change.ChangeType),
		nullIfEmpty(change.OldValue),
		nullIfEmpty(change.NewValue),
		change.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert domain update: %w", err)
	}
	return nil
}

// ListByDomain returns all recorded changes for a domain, oldest first.
func (s *Postgres) ListByDomain(ctx context.Context, domainID uuid.UUID) ([]models.Change, error) {
	query := `
		SELECT id, domain_id, user_id, change, change_type, old_value, new_value, date
		FROM domain_updates
		WHERE domain_id = $1
		ORDER BY date
	`
	rows, err := s.db.QueryContext(ctx, query, domainID)
	if err != nil {
		return nil, fmt.Errorf("query domain updates: %w", err)
	}
	defer rows.Close()

	var changes []models.Change
	for rows.Next() {
		var (
			c        models.Change
			kind     string
			oldValue sql.NullString
			newValue sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.DomainID, &c.UserID, &c.Field, &kind, &oldValue, &newValue, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan domain update: %w", err)
		}
		c.ChangeType = models.ChangeType(kind)
		c.OldValue = oldValue.String
		c.NewValue = newValue.String
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
