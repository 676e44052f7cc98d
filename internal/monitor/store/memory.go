package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"domainwatch/internal/monitor/models"
)

// InMemory is a mutex-guarded in-memory mirror of the Postgres store, used by
// unit tests and local development.
type InMemory struct {
	mu         sync.RWMutex
	domains    map[uuid.UUID]models.Domain
	registrars map[uuid.UUID]models.Registrar
	whois      map[uuid.UUID]models.WhoisInfo
	ssl        map[uuid.UUID]models.SSLCertificate
	dns        map[uuid.UUID]models.DNSRecord
	ips        map[uuid.UUID]models.IPAddress
	statuses   map[uuid.UUID]models.StatusCode
}

// NewInMemory creates an empty in-memory domain store.
func NewInMemory() *InMemory {
	return &InMemory{
		domains:    make(map[uuid.UUID]models.Domain),
		registrars: make(map[uuid.UUID]models.Registrar),
		whois:      make(map[uuid.UUID]models.WhoisInfo),
		ssl:        make(map[uuid.UUID]models.SSLCertificate),
		dns:        make(map[uuid.UUID]models.DNSRecord),
		ips:        make(map[uuid.UUID]models.IPAddress),
		statuses:   make(map[uuid.UUID]models.StatusCode),
	}
}

// SeedDomain installs a domain with its registrar and whois record, for tests
// and the registration flow boundary.
func (s *InMemory) SeedDomain(domain models.Domain, registrar models.Registrar, whois models.WhoisInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	domain.RegistrarID = registrar.ID
	whois.DomainID = domain.ID
	s.domains[domain.ID] = domain
	s.registrars[registrar.ID] = registrar
	s.whois[domain.ID] = whois
}

// GetDomain loads the full entity graph for a (domain name, user) pair.
func (s *InMemory) GetDomain(_ context.Context, domainName string, userID uuid.UUID) (*models.DomainGraph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, d := range s.domains {
		if !strings.EqualFold(d.DomainName, domainName) || d.UserID != userID {
			continue
		}
		graph := &models.DomainGraph{
			Domain:    d,
			Registrar: s.registrars[d.RegistrarID],
			Whois:     s.whois[d.ID],
		}
		if cert, ok := s.ssl[d.ID]; ok {
			c := cert
			graph.SSL = &c
		}
		for _, r := range s.dns {
			if r.DomainID == d.ID {
				graph.DNSRecords = append(graph.DNSRecords, r)
			}
		}
		for _, ip := range s.ips {
			if ip.DomainID == d.ID {
				graph.IPAddresses = append(graph.IPAddresses, ip)
			}
		}
		for _, st := range s.statuses {
			if st.DomainID == d.ID {
				graph.Statuses = append(graph.Statuses, st)
			}
		}
		return graph, nil
	}
	return nil, ErrNotFound
}

// ListDomains returns every monitored domain.
func (s *InMemory) ListDomains(_ context.Context) ([]models.Domain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Domain, 0, len(s.domains))
	for _, d := range s.domains {
		out = append(out, d)
	}
	return out, nil
}

// ListExpiringOn returns domains whose expiry date falls on the given
// calendar day (UTC).
func (s *InMemory) ListExpiringOn(_ context.Context, day time.Time) ([]models.Domain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	target := day.UTC().Format(time.DateOnly)
	var out []models.Domain
	for _, d := range s.domains {
		if !d.ExpiryDate.IsZero() && d.ExpiryDate.UTC().Format(time.DateOnly) == target {
			out = append(out, d)
		}
	}
	return out, nil
}

// GetRegistrar loads a registrar row by id.
func (s *InMemory) GetRegistrar(_ context.Context, id uuid.UUID) (*models.Registrar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.registrars[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

// FindRegistrarByName matches a registrar by case-insensitive name.
func (s *InMemory) FindRegistrarByName(_ context.Context, name string) (*models.Registrar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.registrars {
		if strings.EqualFold(r.Name, name) {
			reg := r
			return &reg, nil
		}
	}
	return nil, ErrNotFound
}

// CreateRegistrar inserts a registrar row.
func (s *InMemory) CreateRegistrar(_ context.Context, registrar *models.Registrar) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if registrar.ID == uuid.Nil {
		registrar.ID = uuid.New()
	}
	s.registrars[registrar.ID] = *registrar
	return nil
}

// SetDomainRegistrar relinks a domain to a registrar.
func (s *InMemory) SetDomainRegistrar(_ context.Context, domainID, registrarID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.domains[domainID]
	if !ok {
		return ErrNotFound
	}
	d.RegistrarID = registrarID
	s.domains[domainID] = d
	return nil
}

// UpsertWhoisField sets one whois column for a domain.
func (s *InMemory) UpsertWhoisField(_ context.Context, domainID uuid.UUID, column, value string) error {
	if !whoisColumns[column] {
		return fmt.Errorf("unknown whois column %q", column)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.whois[domainID]
	w.DomainID = domainID
	switch column {
	case "name":
		w.Name = value
	case "organization":
		w.Organization = value
	case "state":
		w.State = value
	case "city":
		w.City = value
	case "country":
		w.Country = value
	case "postal_code":
		w.PostalCode = value
	}
	s.whois[domainID] = w
	return nil
}

// InsertDNSRecord inserts a DNS record row.
func (s *InMemory) InsertDNSRecord(_ context.Context, record *models.DNSRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	s.dns[record.ID] = *record
	return nil
}

// DeleteDNSRecord removes a DNS record row by id.
func (s *InMemory) DeleteDNSRecord(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.dns, id)
	return nil
}

// InsertIPAddress inserts an IP address row.
func (s *InMemory) InsertIPAddress(_ context.Context, ip *models.IPAddress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ip.ID == uuid.Nil {
		ip.ID = uuid.New()
	}
	s.ips[ip.ID] = *ip
	return nil
}

// DeleteIPAddress removes an IP address row by id.
func (s *InMemory) DeleteIPAddress(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ips, id)
	return nil
}

// InsertSSL inserts the singleton certificate record for a domain.
func (s *InMemory) InsertSSL(_ context.Context, cert *models.SSLCertificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ssl[cert.DomainID] = *cert
	return nil
}

// UpdateSSL replaces the stored certificate record for a domain.
func (s *InMemory) UpdateSSL(_ context.Context, cert *models.SSLCertificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ssl[cert.DomainID]; !ok {
		return ErrNotFound
	}
	s.ssl[cert.DomainID] = *cert
	return nil
}

// InsertStatus inserts a status code row.
func (s *InMemory) InsertStatus(_ context.Context, status *models.StatusCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status.ID == uuid.Nil {
		status.ID = uuid.New()
	}
	s.statuses[status.ID] = *status
	return nil
}

// DeleteStatus removes a status code row by id.
func (s *InMemory) DeleteStatus(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.statuses, id)
	return nil
}

// UpdateDomainExpiry sets the stored expiry date.
func (s *InMemory) UpdateDomainExpiry(_ context.Context, domainID uuid.UUID, expiry time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.domains[domainID]
	if !ok {
		return ErrNotFound
	}
	d.ExpiryDate = expiry
	s.domains[domainID] = d
	return nil
}

// UpdateDomainUpdated sets the stored last-updated date.
func (s *InMemory) UpdateDomainUpdated(_ context.Context, domainID uuid.UUID, updated time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.domains[domainID]
	if !ok {
		return ErrNotFound
	}
	d.UpdatedDate = updated
	s.domains[domainID] = d
	return nil
}
