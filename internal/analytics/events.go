// Package analytics records one anonymous event per handled request. Events
// carry outcome and timing only, never request or response content.
package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const dbTimeout = 5 * time.Second

// Outcome values.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Event describes one handled request.
type Event struct {
	RequestID      string
	Endpoint       string
	ClientKey      string // anonymized, see ratelimit.ClientKey
	Outcome        string
	ErrorKind      string
	UsedFallback   bool
	ImageGenerated bool
	Duration       time.Duration
	CreatedAt      time.Time
}

func (e Event) validate() error {
	if e.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}
	if e.Outcome != OutcomeSuccess && e.Outcome != OutcomeError {
		return fmt.Errorf("outcome must be %q or %q, got %q", OutcomeSuccess, OutcomeError, e.Outcome)
	}
	return nil
}

// EventLogger defines event logging behavior.
type EventLogger interface {
	LogEvent(event Event) error
}

// NopEventLogger ignores all events.
type NopEventLogger struct{}

func (NopEventLogger) LogEvent(Event) error {
	return nil
}

// MemoryEventLogger stores events in memory for tests.
type MemoryEventLogger struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryEventLogger() *MemoryEventLogger {
	return &MemoryEventLogger{
		events: []Event{},
	}
}

func (l *MemoryEventLogger) LogEvent(event Event) error {
	if err := event.validate(); err != nil {
		return err
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	l.mu.Lock()
	l.events = append(l.events, event)
	l.mu.Unlock()

	return nil
}

func (l *MemoryEventLogger) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event{}, l.events...)
}

// Execer is the subset of *pgxpool.Pool the Postgres logger needs.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Schema creates the request_events table.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS request_events (
		id              UUID PRIMARY KEY,
		request_id      TEXT NOT NULL DEFAULT '',
		endpoint        TEXT NOT NULL,
		client_key      TEXT NOT NULL DEFAULT '',
		outcome         TEXT NOT NULL,
		error_kind      TEXT NOT NULL DEFAULT '',
		used_fallback   BOOLEAN NOT NULL DEFAULT FALSE,
		image_generated BOOLEAN NOT NULL DEFAULT FALSE,
		duration_ms     BIGINT NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS request_events_endpoint_created_idx
		ON request_events (endpoint, created_at)`,
	`CREATE INDEX IF NOT EXISTS request_events_request_id_idx
		ON request_events (request_id)`,
}

// PostgresEventLogger inserts events into the request_events table.
type PostgresEventLogger struct {
	pool Execer
}

func NewPostgresEventLogger(pool Execer) *PostgresEventLogger {
	return &PostgresEventLogger{pool: pool}
}

// EnsureSchema creates the table and index when missing.
func (l *PostgresEventLogger) EnsureSchema(ctx context.Context) error {
	if l == nil || l.pool == nil {
		return fmt.Errorf("event logger pool is nil")
	}
	for _, stmt := range Schema {
		if _, err := l.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure request_events schema: %w", err)
		}
	}
	return nil
}

func (l *PostgresEventLogger) LogEvent(event Event) error {
	if l == nil || l.pool == nil {
		return fmt.Errorf("event logger pool is nil")
	}
	if err := event.validate(); err != nil {
		return err
	}

	// The request id may come from the client, so rows get their own key.
	id := uuid.New()
	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	_, err := l.pool.Exec(ctx,
		`INSERT INTO request_events
			(id, request_id, endpoint, client_key, outcome, error_kind, used_fallback, image_generated, duration_ms, created_at)
		 VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		id.String(),
		event.RequestID,
		event.Endpoint,
		event.ClientKey,
		event.Outcome,
		event.ErrorKind,
		event.UsedFallback,
		event.ImageGenerated,
		event.Duration.Milliseconds(),
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert request event: %w", err)
	}

	slog.Debug("request event logged",
		"event_id", id.String(),
		"request_id", event.RequestID,
		"endpoint", event.Endpoint,
		"outcome", event.Outcome,
	)
	return nil
}
