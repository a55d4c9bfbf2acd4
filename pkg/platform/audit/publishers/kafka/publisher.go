// Package kafka relays notifications to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "poolshare/pkg/platform/audit"
)

// Message is the JSON payload written to the topic.
type Message struct {
	ID          string `json:"id"`
	Category    string `json:"category"`
	Action      string `json:"action"`
	Timestamp   string `json:"timestamp"`
	PrincipalID string `json:"principal_id,omitempty"`
	ActorID     string `json:"actor_id,omitempty"`
	ServiceID   string `json:"service_id,omitempty"`
	GroupID     uint64 `json:"group_id,omitempty"`
	ProposalID  uint64 `json:"proposal_id,omitempty"`
	Amount      int64  `json:"amount,omitempty"`
	MemberCount int    `json:"member_count,omitempty"`
	RequestID   string `json:"request_id,omitempty"`
	Detail      string `json:"detail,omitempty"`
}

// NewMessage builds the wire payload for an event with the given outbox id.
func NewMessage(eventID string, e audit.Event) Message {
	m := Message{
		ID:          eventID,
		Category:    string(e.Category),
		Action:      e.Action,
		Timestamp:   e.Timestamp.UTC().Format(time.RFC3339Nano),
		ActorID:     e.ActorID,
		ServiceID:   string(e.ServiceID),
		GroupID:     uint64(e.GroupID),
		ProposalID:  uint64(e.ProposalID),
		Amount:      e.Amount,
		MemberCount: e.MemberCount,
		RequestID:   e.RequestID,
		Detail:      e.Detail,
	}
	if !e.PrincipalID.IsNil() {
		m.PrincipalID = e.PrincipalID.String()
	}
	return m
}

// Key partitions by group so one group's history stays ordered; events
// without a group fall back to the principal.
func (m Message) Key() string {
	if m.ServiceID != "" && m.GroupID != 0 {
		return fmt.Sprintf("%s/%d", m.ServiceID, m.GroupID)
	}
	if m.ServiceID != "" {
		return m.ServiceID
	}
	return m.PrincipalID
}

// Publisher produces notification messages to a single topic.
type Publisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// Option configures the Publisher.
type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// New connects a producer to brokers.
func New(brokers []string, topic string, opts ...Option) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerLinger(5*time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka: create client: %w", err)
	}
	p := &Publisher{client: client, topic: topic, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// EnsureTopic creates the topic if it does not exist yet.
func (p *Publisher) EnsureTopic(ctx context.Context, partitions int32, replicationFactor int16) error {
	adm := kadm.NewClient(p.client)
	resp, err := adm.CreateTopics(ctx, partitions, replicationFactor, nil, p.topic)
	if err != nil {
		return fmt.Errorf("kafka: create topic: %w", err)
	}
	for _, t := range resp {
		if t.Err != nil && !errors.Is(t.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("kafka: create topic %s: %w", t.Topic, t.Err)
		}
	}
	return nil
}

// Publish synchronously produces the messages. It returns the first error;
// callers must treat the whole batch as unpublished on error.
func (p *Publisher) Publish(ctx context.Context, msgs []Message) error {
	if len(msgs) == 0 {
		return nil
	}
	records := make([]*kgo.Record, 0, len(msgs))
	for _, m := range msgs {
		value, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("kafka: marshal %s: %w", m.ID, err)
		}
		records = append(records, &kgo.Record{
			Topic: p.topic,
			Key:   []byte(m.Key()),
			Value: value,
			Headers: []kgo.RecordHeader{
				{Key: "category", Value: []byte(m.Category)},
				{Key: "action", Value: []byte(m.Action)},
			},
		})
	}
	if err := p.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("kafka: produce: %w", err)
	}
	p.logger.DebugContext(ctx, "notifications relayed", "topic", p.topic, "count", len(records))
	return nil
}

// Close flushes and closes the producer.
func (p *Publisher) Close() {
	p.client.Close()
}
