package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/example/storefront-sync/internal/infrastructure/kafka"
)

// Schema for the audit table. Applied by the operator; kept here so the
// journal and its table never drift apart.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_events (
    id             UUID PRIMARY KEY,
    aggregate_id   TEXT NOT NULL,
    aggregate_type TEXT NOT NULL,
    event_type     TEXT NOT NULL,
    data           JSONB NOT NULL,
    version        INT NOT NULL,
    created_at     TIMESTAMPTZ NOT NULL,
    UNIQUE (aggregate_id, version)
);
CREATE INDEX IF NOT EXISTS audit_events_aggregate_idx ON audit_events (aggregate_id, version);
`

// Postgres persists the audit journal in PostgreSQL. This is the backend for
// deployments that need checkout outcomes to survive the process, which is
// what makes a charged-but-unconfirmed payment auditable after the fact.
type Postgres struct {
	db       *sql.DB
	producer *kafka.Producer
}

func NewPostgres(db *sql.DB, producer *kafka.Producer) *Postgres {
	return &Postgres{db: db, producer: producer}
}

func (p *Postgres) Append(ctx context.Context, aggregateID, aggregateType, eventType string, data any) (*Event, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var currentVersion int
	err = p.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(version), 0) FROM audit_events WHERE aggregate_id = $1",
		aggregateID,
	).Scan(&currentVersion)
	if err != nil {
		return nil, fmt.Errorf("query current version: %w", err)
	}

	event := Event{
		ID:            uuid.New().String(),
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Data:          jsonData,
		Timestamp:     time.Now(),
		Version:       currentVersion + 1,
	}

	_, err = p.db.ExecContext(ctx,
		`INSERT INTO audit_events (id, aggregate_id, aggregate_type, event_type, data, version, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		event.ID,
		event.AggregateID,
		event.AggregateType,
		event.EventType,
		event.Data,
		event.Version,
		event.Timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert audit event: %w", err)
	}

	if p.producer != nil {
		if err := p.producer.Publish(ctx, aggregateID, event); err != nil {
			return nil, err
		}
	}

	return &event, nil
}

func (p *Postgres) Events(ctx context.Context, aggregateID string) ([]Event, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, aggregate_id, aggregate_type, event_type, data, version, created_at
		 FROM audit_events
		 WHERE aggregate_id = $1
		 ORDER BY version ASC`,
		aggregateID,
	)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.AggregateType, &e.EventType, &e.Data, &e.Version, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Connect opens a PostgreSQL connection pool for the journal.
func Connect(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}
