//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"domainwatch/internal/monitor/models"
	"domainwatch/internal/monitor/store"
	"domainwatch/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	ctx      context.Context
	postgres *containers.PostgresContainer
	store    *store.Postgres
	userID   uuid.UUID
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.userID = uuid.New()
	err := s.postgres.TruncateTables(s.ctx, "domains", "registrars")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) seedDomain(name string, expiry time.Time) uuid.UUID {
	registrarID := uuid.New()
	_, err := s.postgres.DB.ExecContext(s.ctx,
		`INSERT INTO registrars (id, name, url) VALUES ($1, 'GoDaddy', 'https://godaddy.com')`, registrarID)
	s.Require().NoError(err)

	domainID := uuid.New()
	_, err = s.postgres.DB.ExecContext(s.ctx,
		`INSERT INTO domains (id, domain_name, user_id, registrar_id, expiry_date, updated_date)
		 VALUES ($1, $2, $3, $4, $5, $5)`,
		domainID, name, s.userID, registrarID, expiry)
	s.Require().NoError(err)
	return domainID
}

func (s *PostgresStoreSuite) TestGetDomainAssemblesGraph() {
	domainID := s.seedDomain("example.com", time.Date(2027, 3, 15, 0, 0, 0, 0, time.UTC))

	s.Require().NoError(s.store.UpsertWhoisField(s.ctx, domainID, "country", "US"))
	s.Require().NoError(s.store.InsertDNSRecord(s.ctx, &models.DNSRecord{
		DomainID: domainID, RecordType: models.RecordTypeNS, Value: "ns1.example.net",
	}))
	s.Require().NoError(s.store.InsertIPAddress(s.ctx, &models.IPAddress{
		DomainID: domainID, Address: "192.0.2.1",
	}))
	s.Require().NoError(s.store.InsertSSL(s.ctx, &models.SSLCertificate{
		DomainID:  domainID,
		Issuer:    "Let's Encrypt",
		ValidFrom: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		ValidTo:   time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
	}))
	s.Require().NoError(s.store.InsertStatus(s.ctx, &models.StatusCode{
		DomainID: domainID, Code: "ok",
	}))

	graph, err := s.store.GetDomain(s.ctx, "EXAMPLE.COM", s.userID)
	s.Require().NoError(err)

	s.Equal(domainID, graph.Domain.ID)
	s.Equal("GoDaddy", graph.Registrar.Name)
	s.Equal("US", graph.Whois.Country)
	s.Require().Len(graph.DNSRecords, 1)
	s.Equal("ns1.example.net", graph.DNSRecords[0].Value)
	s.Require().Len(graph.IPAddresses, 1)
	s.Require().NotNil(graph.SSL)
	s.Equal("Let's Encrypt", graph.SSL.Issuer)
	s.Require().Len(graph.Statuses, 1)
}

func (s *PostgresStoreSuite) TestGetDomainForWrongUser() {
	s.seedDomain("example.com", time.Date(2027, 3, 15, 0, 0, 0, 0, time.UTC))

	_, err := s.store.GetDomain(s.ctx, "example.com", uuid.New())
	s.ErrorIs(err, store.ErrNotFound)
}

func (s *PostgresStoreSuite) TestFindRegistrarByNameIsCaseInsensitive() {
	s.seedDomain("example.com", time.Date(2027, 3, 15, 0, 0, 0, 0, time.UTC))

	registrar, err := s.store.FindRegistrarByName(s.ctx, "godaddy")
	s.Require().NoError(err)
	s.Equal("GoDaddy", registrar.Name)

	_, err = s.store.FindRegistrarByName(s.ctx, "unknown registrar")
	s.ErrorIs(err, store.ErrNotFound)
}

func (s *PostgresStoreSuite) TestUpsertWhoisFieldInsertsThenUpdates() {
	domainID := s.seedDomain("example.com", time.Date(2027, 3, 15, 0, 0, 0, 0, time.UTC))

	s.Require().NoError(s.store.UpsertWhoisField(s.ctx, domainID, "city", "San Francisco"))
	s.Require().NoError(s.store.UpsertWhoisField(s.ctx, domainID, "city", "Oakland"))
	s.Require().NoError(s.store.UpsertWhoisField(s.ctx, domainID, "country", "US"))

	graph, err := s.store.GetDomain(s.ctx, "example.com", s.userID)
	s.Require().NoError(err)
	s.Equal("Oakland", graph.Whois.City)
	s.Equal("US", graph.Whois.Country)
}

func (s *PostgresStoreSuite) TestUpsertWhoisFieldRejectsUnknownColumn() {
	domainID := s.seedDomain("example.com", time.Date(2027, 3, 15, 0, 0, 0, 0, time.UTC))
	s.Error(s.store.UpsertWhoisField(s.ctx, domainID, "name; DROP TABLE domains", "x"))
}

func (s *PostgresStoreSuite) TestListExpiringOnMatchesCalendarDay() {
	s.seedDomain("match.com", time.Date(2026, 11, 1, 18, 30, 0, 0, time.UTC))
	s.seedDomain("miss.com", time.Date(2026, 11, 2, 0, 0, 0, 0, time.UTC))

	expiring, err := s.store.ListExpiringOn(s.ctx, time.Date(2026, 11, 1, 9, 0, 0, 0, time.UTC))
	s.Require().NoError(err)
	s.Require().Len(expiring, 1)
	s.Equal("match.com", expiring[0].DomainName)
}

func (s *PostgresStoreSuite) TestSetDomainRegistrar() {
	domainID := s.seedDomain("example.com", time.Date(2027, 3, 15, 0, 0, 0, 0, time.UTC))

	replacement := &models.Registrar{Name: "Namecheap", URL: "https://namecheap.com"}
	s.Require().NoError(s.store.CreateRegistrar(s.ctx, replacement))
	s.Require().NoError(s.store.SetDomainRegistrar(s.ctx, domainID, replacement.ID))

	graph, err := s.store.GetDomain(s.ctx, "example.com", s.userID)
	s.Require().NoError(err)
	s.Equal("Namecheap", graph.Registrar.Name)
}
