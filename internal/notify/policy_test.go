package notify

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	monitormodels "domainwatch/internal/monitor/models"
	"domainwatch/internal/notify/models"
	"domainwatch/internal/notify/store"
)

type PolicySuite struct {
	suite.Suite
	ctx      context.Context
	store    *store.InMemory
	policy   *Policy
	domainID uuid.UUID
	userID   uuid.UUID
}

func TestPolicySuite(t *testing.T) {
	suite.Run(t, new(PolicySuite))
}

func (s *PolicySuite) SetupTest() {
	s.ctx = context.Background()
	s.store = store.NewInMemory()
	s.policy = NewPolicy(s.store, s.store)
	s.domainID = uuid.New()
	s.userID = uuid.New()
}

func (s *PolicySuite) enable(notificationType string) {
	err := s.store.SetPreference(s.ctx, models.Preference{
		DomainID:         s.domainID,
		NotificationType: notificationType,
		IsEnabled:        true,
	})
	s.Require().NoError(err)
}

func (s *PolicySuite) change(field string, kind monitormodels.ChangeType, oldValue, newValue string) monitormodels.Change {
	return monitormodels.Change{
		ID:         uuid.New(),
		DomainID:   s.domainID,
		UserID:     s.userID,
		Field:      field,
		ChangeType: kind,
		OldValue:   oldValue,
		NewValue:   newValue,
	}
}

func (s *PolicySuite) TestNotificationTypeMapping() {
	cases := map[string]string{
		"registrar":          "registrar",
		"whois_name":         "whois_",
		"whois_postal_code":  "whois_",
		"dns_ns":             "dns_",
		"dns_txt":            "dns_",
		"dns_mx":             "dns_",
		"ip_ipv4":            "ip_",
		"ip_ipv6":            "ip_",
		"ssl_issuer":         "ssl_issuer",
		"status":             "status",
		"dates_expiry":       "",
		"dates_updated":      "",
		"something_else":     "",
	}
	for field, want := range cases {
		s.Equal(want, NotificationType(field), field)
	}
}

func (s *PolicySuite) TestEnabledPreferenceCreatesNotification() {
	s.enable("registrar")

	err := s.policy.HandleChange(s.ctx, s.change("registrar", monitormodels.ChangeUpdated, "GoDaddy", "Namecheap"))
	s.Require().NoError(err)

	stored := s.store.All()
	s.Require().Len(stored, 1)
	s.Equal(s.userID, stored[0].UserID)
	s.Equal(s.domainID, stored[0].DomainID)
	s.Equal("registrar", stored[0].ChangeType)
	s.False(stored[0].Sent)
	s.Equal(`The Registrar for your domain has changed from "GoDaddy" to "Namecheap".`, stored[0].Message)
}

func (s *PolicySuite) TestDisabledPreferenceIsSilent() {
	err := s.policy.HandleChange(s.ctx, s.change("registrar", monitormodels.ChangeUpdated, "GoDaddy", "Namecheap"))
	s.Require().NoError(err)
	s.Empty(s.store.All())
}

func (s *PolicySuite) TestDateChangesNeverNotify() {
	// Even a fully opted-in domain gets no notification for date fields.
	for _, t := range []string{"registrar", "whois_", "dns_", "ip_", "ssl_issuer", "status"} {
		s.enable(t)
	}

	err := s.policy.HandleChange(s.ctx, s.change("dates_expiry", monitormodels.ChangeUpdated, "2027-03-15", "2028-03-15"))
	s.Require().NoError(err)
	s.Empty(s.store.All())
}

func (s *PolicySuite) TestOnePreferenceGatesWholeGroup() {
	s.enable("dns_")

	for _, field := range []string{"dns_ns", "dns_txt", "dns_mx"} {
		err := s.policy.HandleChange(s.ctx, s.change(field, monitormodels.ChangeAdded, "", "value"))
		s.Require().NoError(err)
	}
	s.Len(s.store.All(), 3)

	err := s.policy.HandleChange(s.ctx, s.change("ip_ipv4", monitormodels.ChangeAdded, "", "192.0.2.1"))
	s.Require().NoError(err)
	s.Len(s.store.All(), 3)
}

func (s *PolicySuite) TestAddedAndRemovedMessages() {
	s.enable("dns_")

	err := s.policy.HandleChange(s.ctx, s.change("dns_ns", monitormodels.ChangeAdded, "", "ns1.example.net"))
	s.Require().NoError(err)
	err = s.policy.HandleChange(s.ctx, s.change("dns_ns", monitormodels.ChangeRemoved, "ns2.example.net", ""))
	s.Require().NoError(err)

	var messages []string
	for _, n := range s.store.All() {
		messages = append(messages, n.Message)
	}
	s.ElementsMatch([]string{
		`Nameserver was added "ns1.example.net"`,
		`Nameserver was removed "ns2.example.net"`,
	}, messages)
}
