//go:build integration

// Package containers starts throwaway backing services for integration
// tests. Each helper blocks until the service answers, then registers a
// cleanup on the test.
package containers

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

// schema mirrors the production migrations, collapsed into one bootstrap
// script for test databases.
const schema = `
CREATE TABLE registrars (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	url TEXT NOT NULL DEFAULT ''
);

CREATE TABLE users (
	id UUID PRIMARY KEY,
	email TEXT NOT NULL
);

CREATE TABLE user_info (
	user_id UUID PRIMARY KEY REFERENCES users (id),
	billing_tier TEXT,
	notification_channels JSONB
);

CREATE TABLE domains (
	id UUID PRIMARY KEY,
	domain_name TEXT NOT NULL,
	user_id UUID NOT NULL,
	registrar_id UUID NOT NULL REFERENCES registrars (id),
	expiry_date TIMESTAMPTZ,
	updated_date TIMESTAMPTZ
);

CREATE TABLE whois_info (
	domain_id UUID PRIMARY KEY REFERENCES domains (id) ON DELETE CASCADE,
	name TEXT NOT NULL DEFAULT '',
	organization TEXT NOT NULL DEFAULT '',
	state TEXT NOT NULL DEFAULT '',
	city TEXT NOT NULL DEFAULT '',
	country TEXT NOT NULL DEFAULT '',
	postal_code TEXT NOT NULL DEFAULT ''
);

CREATE TABLE dns_records (
	id UUID PRIMARY KEY,
	domain_id UUID NOT NULL REFERENCES domains (id) ON DELETE CASCADE,
	record_type TEXT NOT NULL,
	record_value TEXT NOT NULL
);

CREATE TABLE ip_addresses (
	id UUID PRIMARY KEY,
	domain_id UUID NOT NULL REFERENCES domains (id) ON DELETE CASCADE,
	ip_address TEXT NOT NULL,
	is_ipv6 BOOLEAN NOT NULL
);

CREATE TABLE ssl_certificates (
	domain_id UUID PRIMARY KEY REFERENCES domains (id) ON DELETE CASCADE,
	issuer TEXT NOT NULL,
	valid_from TIMESTAMPTZ NOT NULL,
	valid_to TIMESTAMPTZ NOT NULL
);

CREATE TABLE domain_statuses (
	id UUID PRIMARY KEY,
	domain_id UUID NOT NULL REFERENCES domains (id) ON DELETE CASCADE,
	status_code TEXT NOT NULL
);

CREATE TABLE domain_updates (
	id UUID PRIMARY KEY,
	domain_id UUID NOT NULL,
	user_id UUID NOT NULL,
	change TEXT NOT NULL,
	change_type TEXT NOT NULL,
	old_value TEXT,
	new_value TEXT,
	date TIMESTAMPTZ NOT NULL
);

CREATE TABLE notifications (
	id UUID PRIMARY KEY,
	user_id UUID NOT NULL,
	domain_id UUID NOT NULL,
	change_type TEXT NOT NULL,
	message TEXT NOT NULL,
	sent BOOLEAN NOT NULL DEFAULT false,
	read BOOLEAN NOT NULL DEFAULT false,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE notification_preferences (
	domain_id UUID NOT NULL,
	notification_type TEXT NOT NULL,
	is_enabled BOOLEAN NOT NULL,
	PRIMARY KEY (domain_id, notification_type)
);

CREATE TABLE domain_update_jobs (
	id UUID PRIMARY KEY,
	domain TEXT NOT NULL UNIQUE,
	user_id UUID NOT NULL,
	status TEXT NOT NULL,
	attempts INT NOT NULL DEFAULT 0,
	last_attempt_at TIMESTAMPTZ,
	last_updated_at TIMESTAMPTZ NOT NULL
);
`

// PostgresContainer wraps a testcontainers Postgres instance with the
// application schema applied.
type PostgresContainer struct {
	Container *tcpostgres.PostgresContainer
	DB        *sql.DB
	URL       string
}

// NewPostgresContainer starts Postgres and applies the schema.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("domainwatch"),
		tcpostgres.WithUsername("domainwatch"),
		tcpostgres.WithPassword("domainwatch"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, container)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("postgres connection string: %v", err)
	}

	db, err := sql.Open("postgres", url)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := db.ExecContext(ctx, schema); err != nil {
		t.Fatalf("apply schema: %v", err)
	}

	return &PostgresContainer{Container: container, DB: db, URL: url}
}

// TruncateTables empties the given tables between tests.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		return nil
	}
	_, err := p.DB.ExecContext(ctx, fmt.Sprintf("TRUNCATE %s CASCADE", strings.Join(tables, ", ")))
	return err
}
