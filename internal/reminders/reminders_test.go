package reminders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	moni "domainwatch/internal/monitor/models"
	monitorstore "domainwatch/internal/monitor/store"
	notifystore "domainwatch/internal/notify/store"
)

type RemindersSuite struct {
	suite.Suite
	ctx           context.Context
	domains       *monitorstore.InMemory
	notifications *notifystore.InMemory
	service       *Service
	now           time.Time
	userID        uuid.UUID
}

func TestRemindersSuite(t *testing.T) {
	suite.Run(t, new(RemindersSuite))
}

func (s *RemindersSuite) SetupTest() {
	s.ctx = context.Background()
	s.domains = monitorstore.NewInMemory()
	s.notifications = notifystore.NewInMemory()
	s.now = time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	s.userID = uuid.New()
	s.service = NewService(s.domains, s.notifications, WithClock(func() time.Time { return s.now }))
}

func (s *RemindersSuite) seed(name string, expiry time.Time, registrar moni.Registrar) moni.Domain {
	domain := moni.Domain{
		ID:         uuid.New(),
		DomainName: name,
		UserID:     s.userID,
		ExpiryDate: expiry,
	}
	s.domains.SeedDomain(domain, registrar, moni.WhoisInfo{})
	return domain
}

func (s *RemindersSuite) TestQueuesReminderAtEachHorizon() {
	registrar := moni.Registrar{ID: uuid.New(), Name: "GoDaddy", URL: "https://godaddy.com"}
	s.seed("ninety.com", s.now.AddDate(0, 0, 90), registrar)
	s.seed("thirty.com", s.now.AddDate(0, 0, 30), registrar)
	s.seed("seven.com", s.now.AddDate(0, 0, 7), registrar)
	s.seed("two.com", s.now.AddDate(0, 0, 2), registrar)
	s.seed("faraway.com", s.now.AddDate(0, 0, 45), registrar)

	queued, err := s.service.Run(s.ctx)
	s.Require().NoError(err)
	s.Equal(4, queued)

	stored := s.notifications.All()
	s.Require().Len(stored, 4)
	messages := map[string]bool{}
	for _, n := range stored {
		s.Equal(ChangeTypeReminder, n.ChangeType)
		s.Equal(s.userID, n.UserID)
		s.False(n.Sent)
		messages[n.Message] = true
	}
	s.True(messages["Domain two.com expiring in 2 days. Renew it on https://godaddy.com."])
	s.True(messages["Domain ninety.com expiring in 90 days. Renew it on https://godaddy.com."])
}

func (s *RemindersSuite) TestExactDayMatchOnly() {
	registrar := moni.Registrar{ID: uuid.New(), Name: "GoDaddy", URL: "https://godaddy.com"}
	// 8 days out misses every horizon, even though it is within 90.
	s.seed("soonish.com", s.now.AddDate(0, 0, 8), registrar)

	queued, err := s.service.Run(s.ctx)
	s.Require().NoError(err)
	s.Zero(queued)
	s.Empty(s.notifications.All())
}

func (s *RemindersSuite) TestTimeOfDayDoesNotAffectMatching() {
	registrar := moni.Registrar{ID: uuid.New(), Name: "GoDaddy", URL: "https://godaddy.com"}
	expiry := s.now.AddDate(0, 0, 7).Truncate(24 * time.Hour).Add(23 * time.Hour)
	s.seed("late.com", expiry, registrar)

	queued, err := s.service.Run(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, queued)
}

func (s *RemindersSuite) TestRegistrarWithoutURLOmitsRenewalHint() {
	registrar := moni.Registrar{ID: uuid.New(), Name: "Obscure Registrar"}
	s.seed("plain.com", s.now.AddDate(0, 0, 7), registrar)

	queued, err := s.service.Run(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, queued)

	stored := s.notifications.All()
	s.Require().Len(stored, 1)
	s.Equal("Domain plain.com expiring in 7 days.", stored[0].Message)
}

// Reminders bypass notification preferences: no opt-in rows exist here and
// the reminder is still queued.
func (s *RemindersSuite) TestRemindersBypassPreferences() {
	registrar := moni.Registrar{ID: uuid.New(), Name: "GoDaddy", URL: "https://godaddy.com"}
	s.seed("nopreferences.com", s.now.AddDate(0, 0, 30), registrar)

	queued, err := s.service.Run(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, queued)
}
