package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"storefront-orders/internal/model"
)

type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// Reader lists the recorded events of an order, oldest first.
type Reader interface {
	ListByOrder(ctx context.Context, orderID string) ([]Event, error)
}

// Store persists events in an append-only PostgreSQL table.
type Store struct {
	pool   pgxPool
	logger *slog.Logger
}

// NewStore connects to dsn and creates the audit schema.
func NewStore(ctx context.Context, dsn string, logger *slog.Logger) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect audit db: %w", err)
	}

	store := &Store{pool: pool, logger: logger}
	if err := store.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) initSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS audit_events (
            id UUID PRIMARY KEY,
            type TEXT NOT NULL,
            order_id TEXT NOT NULL,
            order_number TEXT NOT NULL DEFAULT '',
            actor_id TEXT NOT NULL,
            actor_role TEXT NOT NULL,
            data JSONB,
            occurred_at TIMESTAMPTZ NOT NULL,
            recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
		`CREATE INDEX IF NOT EXISTS idx_audit_events_order ON audit_events(order_id, occurred_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init audit schema: %w", err)
		}
	}
	return nil
}

// Append inserts e. Redelivered events with a known id are ignored.
func (s *Store) Append(ctx context.Context, e Event) error {
	const query = `INSERT INTO audit_events (id, type, order_id, order_number, actor_id, actor_role, data, occurred_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (id) DO NOTHING`

	data, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("encode audit data: %w", err)
	}

	if _, err := s.pool.Exec(ctx, query, e.ID, e.Type, e.OrderID, e.OrderNumber, e.ActorID, string(e.ActorRole), data, e.OccurredAt); err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

// Write lets the store act as the emitter sink when no broker is configured.
func (s *Store) Write(ctx context.Context, e Event) error {
	return s.Append(ctx, e)
}

func (s *Store) ListByOrder(ctx context.Context, orderID string) ([]Event, error) {
	const query = `SELECT id, type, order_id, order_number, actor_id, actor_role, data, occurred_at
        FROM audit_events WHERE order_id = $1 ORDER BY occurred_at, recorded_at`

	rows, err := s.pool.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0)
	for rows.Next() {
		var (
			e          Event
			role       string
			data       []byte
			occurredAt time.Time
		)
		if err := rows.Scan(&e.ID, &e.Type, &e.OrderID, &e.OrderNumber, &e.ActorID, &role, &data, &occurredAt); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.ActorRole = model.Role(role)
		e.OccurredAt = occurredAt
		if len(data) > 0 {
			if err := json.Unmarshal(data, &e.Data); err != nil {
				return nil, fmt.Errorf("decode audit data: %w", err)
			}
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

// Disabled answers reads when no audit database is configured.
type Disabled struct{}

func (Disabled) ListByOrder(context.Context, string) ([]Event, error) {
	return []Event{}, nil
}
