package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"warden/internal/audit"
	id "warden/pkg/domain"
)

// Producer is the subset of *kgo.Client the Kafka store needs.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// KafkaStore publishes events as JSON records keyed by user id, so all of a
// user's events land on one partition in order.
type KafkaStore struct {
	producer Producer
	topic    string
}

func NewKafkaStore(producer Producer, topic string) *KafkaStore {
	return &KafkaStore{producer: producer, topic: topic}
}

func (s *KafkaStore) Append(ctx context.Context, event audit.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.UserID.String()),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "action", Value: []byte(event.Action)},
		},
	}
	if err := s.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

// Multi appends to every store in order and reads from the first Lister.
type Multi struct {
	stores []audit.Store
}

func NewMulti(stores ...audit.Store) *Multi {
	return &Multi{stores: stores}
}

func (m *Multi) Append(ctx context.Context, event audit.Event) error {
	var firstErr error
	for _, s := range m.stores {
		if err := s.Append(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *Multi) ListByUser(ctx context.Context, userID id.UserID) ([]audit.Event, error) {
	for _, s := range m.stores {
		if l, ok := s.(audit.Lister); ok {
			return l.ListByUser(ctx, userID)
		}
	}
	return nil, nil
}
