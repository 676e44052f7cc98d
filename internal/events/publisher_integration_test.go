//go:build integration

package events_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"domainwatch/internal/events"
	"domainwatch/internal/monitor/models"
	"domainwatch/pkg/testutil/containers"
)

type PublisherSuite struct {
	suite.Suite
	ctx      context.Context
	redpanda *containers.RedpandaContainer
}

func TestPublisherSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PublisherSuite))
}

func (s *PublisherSuite) SetupSuite() {
	s.ctx = context.Background()
	s.redpanda = containers.NewRedpandaContainer(s.T())
}

func (s *PublisherSuite) consume(topic string, want int) []*kgo.Record {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(s.redpanda.Broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer client.Close()

	var records []*kgo.Record
	deadline := time.Now().Add(15 * time.Second)
	for len(records) < want && time.Now().Before(deadline) {
		pollCtx, cancel := context.WithTimeout(s.ctx, 2*time.Second)
		fetches := client.PollFetches(pollCtx)
		cancel()
		fetches.EachRecord(func(r *kgo.Record) {
			records = append(records, r)
		})
	}
	s.Require().Len(records, want)
	return records
}

func (s *PublisherSuite) TestPublishChangeRoundTrip() {
	publisher, err := events.NewPublisher(s.ctx, []string{s.redpanda.Broker}, "domain-changes-roundtrip")
	s.Require().NoError(err)
	defer publisher.Close()

	change := models.Change{
		ID:         uuid.New(),
		DomainID:   uuid.New(),
		UserID:     uuid.New(),
		Field:      "registrar",
		ChangeType: models.ChangeUpdated,
		OldValue:   "GoDaddy",
		NewValue:   "Namecheap",
		CreatedAt:  time.Now().UTC().Truncate(time.Second),
	}
	s.Require().NoError(publisher.PublishChange(s.ctx, change))

	records := s.consume("domain-changes-roundtrip", 1)
	s.Equal(change.DomainID.String(), string(records[0].Key))

	var event events.ChangeEvent
	s.Require().NoError(json.Unmarshal(records[0].Value, &event))
	s.Equal(change.ID.String(), event.ID)
	s.Equal(change.UserID.String(), event.UserID)
	s.Equal("registrar", event.Field)
	s.Equal("updated", event.ChangeType)
	s.Equal("GoDaddy", event.OldValue)
	s.Equal("Namecheap", event.NewValue)
	s.True(change.CreatedAt.Equal(event.CreatedAt))
}

func (s *PublisherSuite) TestChangesForOneDomainShareAKey() {
	publisher, err := events.NewPublisher(s.ctx, []string{s.redpanda.Broker}, "domain-changes-keys")
	s.Require().NoError(err)
	defer publisher.Close()

	domainID := uuid.New()
	for _, field := range []string{"dns_ns", "dns_txt"} {
		change := models.Change{
			ID:         uuid.New(),
			DomainID:   domainID,
			UserID:     uuid.New(),
			Field:      field,
			ChangeType: models.ChangeAdded,
			NewValue:   "value",
			CreatedAt:  time.Now(),
		}
		s.Require().NoError(publisher.PublishChange(s.ctx, change))
	}

	records := s.consume("domain-changes-keys", 2)
	s.Equal(string(records[0].Key), string(records[1].Key))
}

func (s *PublisherSuite) TestTopicCreationIsIdempotent() {
	first, err := events.NewPublisher(s.ctx, []string{s.redpanda.Broker}, "domain-changes-existing")
	s.Require().NoError(err)
	first.Close()

	second, err := events.NewPublisher(s.ctx, []string{s.redpanda.Broker}, "domain-changes-existing")
	s.Require().NoError(err)
	second.Close()
}

func (s *PublisherSuite) TestUnreachableBrokerFails() {
	ctx, cancel := context.WithTimeout(s.ctx, 3*time.Second)
	defer cancel()

	_, err := events.NewPublisher(ctx, []string{"localhost:1"}, "domain-changes-down")
	s.Error(err)
}
