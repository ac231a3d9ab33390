package grant

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver

	"faucetd/internal/faucet"
	"faucetd/pkg/platform/sentinel"
)

// PostgresStore persists claim grants in PostgreSQL. The upsert is a single
// ON CONFLICT statement, so concurrent writers for the same beneficiary fall
// back to the database's row-level atomicity even across process instances.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed grant store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Schema is the DDL for the claim grants table, applied by migrations.
const Schema = `
CREATE TABLE IF NOT EXISTS claim_grants (
	address         TEXT PRIMARY KEY,
	last_granted_at TIMESTAMPTZ NOT NULL
)`

// EnsureSchema creates the claim grants table when migrations have not run.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure claim_grants schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) LastGrant(ctx context.Context, addr faucet.Address) (*time.Time, error) {
	query := `
		SELECT last_granted_at
		FROM claim_grants
		WHERE address = $1
	`
	var grantedAt time.Time
	err := s.db.QueryRowContext(ctx, query, addr.String()).Scan(&grantedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get last grant: %w: %w", sentinel.ErrUnavailable, err)
	}
	return &grantedAt, nil
}

// RecordGrant upserts the grant timestamp. Re-running with the same timestamp
// is a no-op at the storage layer.
func (s *PostgresStore) RecordGrant(ctx context.Context, addr faucet.Address, grantedAt time.Time) error {
	query := `
		INSERT INTO claim_grants (address, last_granted_at)
		VALUES ($1, $2)
		ON CONFLICT (address) DO UPDATE SET
			last_granted_at = EXCLUDED.last_granted_at
	`
	if _, err := s.db.ExecContext(ctx, query, addr.String(), grantedAt); err != nil {
		return fmt.Errorf("record grant: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) PurgeGrant(ctx context.Context, addr faucet.Address) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM claim_grants WHERE address = $1`, addr.String())
	if err != nil {
		return fmt.Errorf("purge grant: %w: %w", sentinel.ErrUnavailable, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("purge grant rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
