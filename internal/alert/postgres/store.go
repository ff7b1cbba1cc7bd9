package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"bridgemon/internal/alert"
)

const schema = `
CREATE TABLE IF NOT EXISTS bridge_alerts (
	id         BIGSERIAL PRIMARY KEY,
	kind       TEXT NOT NULL,
	severity   TEXT NOT NULL,
	component  TEXT NOT NULL,
	message    TEXT NOT NULL,
	metadata   JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Store archives alerts in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the alerts table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create bridge_alerts: %w", err)
	}
	return nil
}

const insertAlert = `
	INSERT INTO bridge_alerts (kind, severity, component, message, metadata)
	VALUES ($1, $2, $3, $4, $5)
`

// Send inserts one alert row.
func (s *Store) Send(ctx context.Context, a alert.Alert) error {
	args, err := insertArgs(a)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, insertAlert, args...); err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// insertArgs maps an alert onto the insertAlert parameters. Nil metadata is
// stored as an empty object to satisfy the NOT NULL jsonb column.
func insertArgs(a alert.Alert) ([]interface{}, error) {
	metadata := a.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	encoded, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return []interface{}{a.Kind(), string(a.Severity), a.Component, a.Message, encoded}, nil
}
