// Package events publishes detected changes to Kafka so downstream
// consumers (analytics, alerting) see the same append-only stream the
// change log stores.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"domainwatch/internal/monitor/models"
)

// ChangeEvent is the wire shape of one published change. Keys are stable;
// consumers partition on the domain id.
type ChangeEvent struct {
	ID         string    `json:"id"`
	DomainID   string    `json:"domain_id"`
	UserID     string    `json:"user_id"`
	Field      string    `json:"field"`
	ChangeType string    `json:"change_type"`
	OldValue   string    `json:"old_value,omitempty"`
	NewValue   string    `json:"new_value,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Publisher writes change events to a single Kafka topic.
type Publisher struct {
	client *kgo.Client
	topic  string
}

// NewPublisher connects to the brokers and makes sure the topic exists.
// Topic creation is idempotent so concurrent instances race safely.
func NewPublisher(ctx context.Context, brokers []string, topic string) (*Publisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping kafka brokers: %w", err)
	}

	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopic(ctx, 1, 1, nil, topic)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("create topic %s: %w", topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		client.Close()
		return nil, fmt.Errorf("create topic %s: %w", topic, resp.Err)
	}

	return &Publisher{client: client, topic: topic}, nil
}

// PublishChange emits one change event, keyed by domain so per-domain
// ordering holds within a partition.
func (p *Publisher) PublishChange(ctx context.Context, change models.Change) error {
	event := ChangeEvent{
		ID:         change.ID.String(),
		DomainID:   change.DomainID.String(),
		UserID:     change.UserID.String(),
		Field:      change.Field,
		ChangeType: string(change.ChangeType),
		OldValue:   change.OldValue,
		NewValue:   change.NewValue,
		CreatedAt:  change.CreatedAt,
	}
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(change.DomainID.String()),
		Value: value,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce change event: %w", err)
	}
	return nil
}

func (p *Publisher) Close() {
	p.client.Close()
}
