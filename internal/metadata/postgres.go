package metadata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore writes records to the event_metadata table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgresStore creates a connection pool and verifies it.
func OpenPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	// One record is written at a time; a small pool is enough.
	config.MaxConns = 4
	config.MinConns = 1
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Migrate applies the SQL migrations found at sourceURL (e.g. file://migrations).
func Migrate(sourceURL, connString string) error {
	m, err := migrate.New(sourceURL, connString)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

const upsertRecord = `
	INSERT INTO event_metadata
		(tenant_id, event_id, event_type, raw_bucket, raw_key, quarantine_key, processed_at, status)
	VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8)
	ON CONFLICT (tenant_id, event_id) DO UPDATE SET
		event_type     = EXCLUDED.event_type,
		raw_bucket     = EXCLUDED.raw_bucket,
		raw_key        = EXCLUDED.raw_key,
		quarantine_key = EXCLUDED.quarantine_key,
		processed_at   = EXCLUDED.processed_at,
		status         = EXCLUDED.status
`

// Put upserts the record.
func (s *PostgresStore) Put(ctx context.Context, record *Record) error {
	if err := record.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := s.pool.Exec(ctx, upsertRecord,
		record.TenantID,
		record.EventID,
		record.EventType,
		record.RawBucket,
		record.RawKey,
		record.QuarantineKey,
		record.ProcessedAt,
		string(record.Status),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert event metadata %s/%s: %w", record.TenantID, record.EventID, err)
	}
	return nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
