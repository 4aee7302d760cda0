package journal

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/storefront-sync/internal/infrastructure/kafka"
)

// Event is one audit record: a versioned fact about a cart or checkout
// aggregate. Data holds the typed event payload as JSON.
type Event struct {
	ID            string          `json:"id"`
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	EventType     string          `json:"event_type"`
	Data          json.RawMessage `json:"data"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
}

// Recorder is an append-only audit journal. Appends are ordered per
// aggregate via the version column; readers get events back in version
// order.
type Recorder interface {
	Append(ctx context.Context, aggregateID, aggregateType, eventType string, data any) (*Event, error)
	Events(ctx context.Context, aggregateID string) ([]Event, error)
}

// Memory keeps the journal in process memory. It is the default backend for
// short-lived CLI sessions and the double used across the test suites.
// When a producer is set, every append is also published for downstream
// consumers.
type Memory struct {
	mu       sync.RWMutex
	events   map[string][]Event
	producer *kafka.Producer
}

func NewMemory(producer *kafka.Producer) *Memory {
	return &Memory{
		events:   make(map[string][]Event),
		producer: producer,
	}
}

func (m *Memory) Append(ctx context.Context, aggregateID, aggregateType, eventType string, data any) (*Event, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	version := len(m.events[aggregateID]) + 1
	event := Event{
		ID:            uuid.New().String(),
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Data:          jsonData,
		Timestamp:     time.Now(),
		Version:       version,
	}
	m.events[aggregateID] = append(m.events[aggregateID], event)
	m.mu.Unlock()

	if m.producer != nil {
		if err := m.producer.Publish(ctx, aggregateID, event); err != nil {
			return nil, err
		}
	}

	return &event, nil
}

func (m *Memory) Events(ctx context.Context, aggregateID string) ([]Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]Event, len(m.events[aggregateID]))
	copy(events, m.events[aggregateID])
	return events, nil
}
