package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"domainwatch/internal/monitor/models"
)

// Postgres persists the domain entity graph in PostgreSQL.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed domain store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// GetDomain loads the full entity graph for a (domain name, user) pair.
func (s *Postgres) GetDomain(ctx context.Context, domainName string, userID uuid.UUID) (*models.DomainGraph, error) {
	query := `
		SELECT d.id, d.domain_name, d.user_id, d.registrar_id, d.expiry_date, d.updated_date,
		       r.id, r.name, r.url
		FROM domains d
		JOIN registrars r ON r.id = d.registrar_id
		WHERE lower(d.domain_name) = lower($1) AND d.user_id = $2
	`
	var (
		graph       models.DomainGraph
		expiryDate  sql.NullTime
		updatedDate sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query, domainName, userID).Scan(
		&graph.Domain.ID,
		&graph.Domain.DomainName,
		&graph.Domain.UserID,
		&graph.Domain.RegistrarID,
		&expiryDate,
		&updatedDate,
		&graph.Registrar.ID,
		&graph.Registrar.Name,
		&graph.Registrar.URL,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query domain: %w", err)
	}
	graph.Domain.ExpiryDate = expiryDate.Time
	graph.Domain.UpdatedDate = updatedDate.Time

	if err := s.loadWhois(ctx, &graph); err != nil {
		return nil, err
	}
	if err := s.loadSSL(ctx, &graph); err != nil {
		return nil, err
	}
	if err := s.loadDNSRecords(ctx, &graph); err != nil {
		return nil, err
	}
	if err := s.loadIPAddresses(ctx, &graph); err != nil {
		return nil, err
	}
	if err := s.loadStatuses(ctx, &graph); err != nil {
		return nil, err
	}
	return &graph, nil
}

func (s *Postgres) loadWhois(ctx context.Context, graph *models.DomainGraph) error {
	query := `
		SELECT name, organization, state, city, country, postal_code
		FROM whois_info
		WHERE domain_id = $1
	`
	err := s.db.QueryRowContext(ctx, query, graph.Domain.ID).Scan(
		&graph.Whois.Name,
		&graph.Whois.Organization,
		&graph.Whois.State,
		&graph.Whois.City,
		&graph.Whois.Country,
		&graph.Whois.PostalCode,
	)
	if errors.Is(err, sql.ErrNoRows) {
		graph.Whois = models.WhoisInfo{DomainID: graph.Domain.ID}
		return nil
	}
	if err != nil {
		return fmt.Errorf("query whois info: %w", err)
	}
	graph.Whois.DomainID = graph.Domain.ID
	return nil
}

func (s *Postgres) loadSSL(ctx context.Context, graph *models.DomainGraph) error {
	query := `
		SELECT issuer, valid_from, valid_to
		FROM ssl_certificates
		WHERE domain_id = $1
	`
	var cert models.SSLCertificate
	err := s.db.QueryRowContext(ctx, query, graph.Domain.ID).Scan(&cert.Issuer, &cert.ValidFrom, &cert.ValidTo)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("query ssl certificate: %w", err)
	}
	cert.DomainID = graph.Domain.ID
	graph.SSL = &cert
	return nil
}

func (s *Postgres) loadDNSRecords(ctx context.Context, graph *models.DomainGraph) error {
	query := `
		SELECT id, record_type, record_value
		FROM dns_records
		WHERE domain_id = $1
	`
	rows, err := s.db.QueryContext(ctx, query, graph.Domain.ID)
	if err != nil {
		return fmt.Errorf("query dns records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		record := models.DNSRecord{DomainID: graph.Domain.ID}
		if err := rows.Scan(&record.ID, &record.RecordType, &record.Value); err != nil {
			return fmt.Errorf("scan dns record: %w", err)
		}
		graph.DNSRecords = append(graph.DNSRecords, record)
	}
	return rows.Err()
}

func (s *Postgres) loadIPAddresses(ctx context.Context, graph *models.DomainGraph) error {
	query := `
		SELECT id, ip_address, is_ipv6
		FROM ip_addresses
		WHERE domain_id = $1
	`
	rows, err := s.db.QueryContext(ctx, query, graph.Domain.ID)
	if err != nil {
		return fmt.Errorf("query ip addresses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		ip := models.IPAddress{DomainID: graph.Domain.ID}
		if err := rows.Scan(&ip.ID, &ip.Address, &ip.IsIPv6); err != nil {
			return fmt.Errorf("scan ip address: %w", err)
		}
		graph.IPAddresses = append(graph.IPAddresses, ip)
	}
	return rows.Err()
}

func (s *Postgres) loadStatuses(ctx context.Context, graph *models.DomainGraph) error {
	query := `
		SELECT id, status_code
		FROM domain_statuses
		WHERE domain_id = $1
	`
	rows, err := s.db.QueryContext(ctx, query, graph.Domain.ID)
	if err != nil {
		return fmt.Errorf("query domain statuses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		status := models.StatusCode{DomainID: graph.Domain.ID}
		if err := rows.Scan(&status.ID, &status.Code); err != nil {
			return fmt.Errorf("scan domain status: %w", err)
		}
		graph.Statuses = append(graph.Statuses, status)
	}
	return rows.Err()
}

// ListDomains returns every monitored domain.
func (s *Postgres) ListDomains(ctx context.Context) ([]models.Domain, error) {
	query := `
		SELECT id, domain_name, user_id, registrar_id, expiry_date, updated_date
		FROM domains
		ORDER BY domain_name
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query domains: %w", err)
	}
	defer rows.Close()
	return scanDomains(rows)
}

// ListExpiringOn returns domains whose expiry date falls on the given
// calendar day.
func (s *Postgres) ListExpiringOn(ctx context.Context, day time.Time) ([]models.Domain, error) {
	query := `
		SELECT id, domain_name, user_id, registrar_id, expiry_date, updated_date
		FROM domains
		WHERE expiry_date::date = $1::date
		ORDER BY domain_name
	`
	rows, err := s.db.QueryContext(ctx, query, day)
	if err != nil {
		return nil, fmt.Errorf("query expiring domains: %w", err)
	}
	defer rows.Close()
	return scanDomains(rows)
}

func scanDomains(rows *sql.Rows) ([]models.Domain, error) {
	var domains []models.Domain
	for rows.Next() {
		var (
			d           models.Domain
			expiryDate  sql.NullTime
			updatedDate sql.NullTime
		)
		if err := rows.Scan(&d.ID, &d.DomainName, &d.UserID, &d.RegistrarID, &expiryDate, &updatedDate); err != nil {
			return nil, fmt.Errorf("scan domain: %w", err)
		}
		d.ExpiryDate = expiryDate.Time
		d.UpdatedDate = updatedDate.Time
		domains = append(domains, d)
	}
	return domains, rows.Err()
}

// GetRegistrar loads a registrar row by id.
func (s *Postgres) GetRegistrar(ctx context.Context, id uuid.UUID) (*models.Registrar, error) {
	query := `SELECT id, name, url FROM registrars WHERE id = $1`
	var r models.Registrar
	err := s.db.QueryRowContext(ctx, query, id).Scan(&r.ID, &r.Name, &r.URL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query registrar: %w", err)
	}
	return &r, nil
}

// FindRegistrarByName matches a registrar by case-insensitive name.
func (s *Postgres) FindRegistrarByName(ctx context.Context, name string) (*models.Registrar, error) {
	query := `SELECT id, name, url FROM registrars WHERE name ILIKE $1`
	var r models.Registrar
	err := s.db.QueryRowContext(ctx, query, name).Scan(&r.ID, &r.Name, &r.URL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query registrar: %w", err)
	}
	return &r, nil
}

// CreateRegistrar inserts a registrar row.
func (s *Postgres) CreateRegistrar(ctx context.Context, registrar *models.Registrar) error {
	if registrar.ID == uuid.Nil {
		registrar.ID = uuid.New()
	}
	query := `INSERT INTO registrars (id, name, url) VALUES ($1, $2, $3)`
	if _, err := s.db.ExecContext(ctx, query, registrar.ID, registrar.Name, registrar.URL); err != nil {
		return fmt.Errorf("insert registrar: %w", err)
	}
	return nil
}

// SetDomainRegistrar relinks a domain to a registrar.
func (s *Postgres) SetDomainRegistrar(ctx context.Context, domainID, registrarID uuid.UUID) error {
	query := `UPDATE domains SET registrar_id = $2 WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, query, domainID, registrarID); err != nil {
		return fmt.Errorf("update domain registrar: %w", err)
	}
	return nil
}

// UpsertWhoisField sets one whois column for a domain, inserting the row on
// first write. The column name is validated against a fixed whitelist before
// interpolation.
func (s *Postgres) UpsertWhoisField(ctx context.Context, domainID uuid.UUID, column, value string) error {
	if !whoisColumns[column] {
		return fmt.Errorf("unknown whois column %q", column)
	}
	query := fmt.Sprintf(`
		INSERT INTO whois_info (domain_id, %[1]s) VALUES ($1, $2)
		ON CONFLICT (domain_id) DO UPDATE SET %[1]s = EXCLUDED.%[1]s
	`, column)
	if _, err := s.db.ExecContext(ctx, query, domainID, value); err != nil {
		return fmt.Errorf("upsert whois %s: %w", column, err)
	}
	return nil
}

// InsertDNSRecord inserts a DNS record row.
func (s *Postgres) InsertDNSRecord(ctx context.Context, record *models.DNSRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	query := `INSERT INTO dns_records (id, domain_id, record_type, record_value) VALUES ($1, $2, $3, $4)`
	if _, err := s.db.ExecContext(ctx, query, record.ID, record.DomainID, record.RecordType, record.Value); err != nil {
		return fmt.Errorf("insert dns record: %w", err)
	}
	return nil
}

// DeleteDNSRecord removes a DNS record row by id.
func (s *Postgres) DeleteDNSRecord(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM dns_records WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete dns record: %w", err)
	}
	return nil
}

// InsertIPAddress inserts an IP address row.
func (s *Postgres) InsertIPAddress(ctx context.Context, ip *models.IPAddress) error {
	if ip.ID == uuid.Nil {
		ip.ID = uuid.New()
	}
	query := `INSERT INTO ip_addresses (id, domain_id, ip_address, is_ipv6) VALUES ($1, $2, $3, $4)`
	if _, err := s.db.ExecContext(ctx, query, ip.ID, ip.DomainID, ip.Address, ip.IsIPv6); err != nil {
		return fmt.Errorf("insert ip address: %w", err)
	}
	return nil
}

// DeleteIPAddress removes an IP address row by id.
func (s *Postgres) DeleteIPAddress(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM ip_addresses WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete ip address: %w", err)
	}
	return nil
}

// InsertSSL inserts the singleton certificate record for a domain.
func (s *Postgres) InsertSSL(ctx context.Context, cert *models.SSLCertificate) error {
	query := `INSERT INTO ssl_certificates (domain_id, issuer, valid_from, valid_to) VALUES ($1, $2, $3, $4)`
	if _, err := s.db.ExecContext(ctx, query, cert.DomainID, cert.Issuer, cert.ValidFrom, cert.ValidTo); err != nil {
		return fmt.Errorf("insert ssl certificate: %w", err)
	}
	return nil
}

// UpdateSSL replaces the stored certificate record for a domain.
func (s *Postgres) UpdateSSL(ctx context.Context, cert *models.SSLCertificate) error {
	query := `UPDATE ssl_certificates SET issuer = $2, valid_from = $3, valid_to = $4 WHERE domain_id = $1`
	res, err := s.db.ExecContext(ctx, query, cert.DomainID, cert.Issuer, cert.ValidFrom, cert.ValidTo)
	if err != nil {
		return fmt.Errorf("update ssl certificate: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertStatus inserts a status code row.
func (s *Postgres) InsertStatus(ctx context.Context, status *models.StatusCode) error {
	if status.ID == uuid.Nil {
		status.ID = uuid.New()
	}
	query := `INSERT INTO domain_statuses (id, domain_id, status_code) VALUES ($1, $2, $3)`
	if _, err := s.db.ExecContext(ctx, query, status.ID, status.DomainID, status.Code); err != nil {
		return fmt.Errorf("insert domain status: %w", err)
	}
	return nil
}

// DeleteStatus removes a status code row by id.
func (s *Postgres) DeleteStatus(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM domain_statuses WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete domain status: %w", err)
	}
	return nil
}

// UpdateDomainExpiry sets the stored expiry date.
func (s *Postgres) UpdateDomainExpiry(ctx context.Context, domainID uuid.UUID, expiry time.Time) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE domains SET expiry_date = $2 WHERE id = $1`, domainID, expiry); err != nil {
		return fmt.Errorf("update expiry date: %w", err)
	}
	return nil
}

// UpdateDomainUpdated sets the stored last-updated date.
func (s *Postgres) UpdateDomainUpdated(ctx context.Context, domainID uuid.UUID, updated time.Time) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE domains SET updated_date = $2 WHERE id = $1`, domainID, updated); err != nil {
		return fmt.Errorf("update updated date: %w", err)
	}
	return nil
}
