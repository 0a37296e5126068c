// Package warehouse provides the Postgres-backed analytics sink.
package warehouse

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/contractwatch/contract-fetcher/internal/contracts"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for contract rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// Store writes normalized contract rows into Postgres.
type Store struct {
	pool  execCloser
	table string
}

// New creates a Postgres-backed Store using the provided config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("warehouse.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "contracts"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool, table: table}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool execCloser, table string) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "contracts"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Store{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// InsertRecords inserts one row per record. The posted and deadline dates
// are truncated to their YYYY-MM-DD prefix; an empty date maps to NULL.
func (s *Store) InsertRecords(ctx context.Context, runID string, records []contracts.Record) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("warehouse store is not configured")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	run_id,
	notice_id,
	title,
	solicitation_number,
	posted_date,
	response_deadline,
	type,
	naics_code,
	active,
	organization,
	office_city,
	office_state,
	office_zip,
	contact_email,
	contact_phone,
	contact_name,
	ui_link,
	set_aside
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18
)`, s.table)

	for i, record := range records {
		args := []any{
			runID,
			record.NoticeID,
			record.Title,
			record.SolicitationNumber,
			datePrefix(record.PostedDate),
			datePrefix(record.ResponseDeadline),
			record.Type,
			record.NAICSCode,
			record.Active,
			record.Organization,
			record.OfficeCity,
			record.OfficeState,
			record.OfficeZip,
			record.ContactEmail,
			record.ContactPhone,
			record.ContactName,
			record.UILink,
			record.SetAside,
		}
		if _, err := s.pool.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("insert contract row %d (notice %q): %w", i, record.NoticeID, err)
		}
	}
	return nil
}

// datePrefix truncates an API datetime to its YYYY-MM-DD prefix for the
// warehouse's DATE columns. Empty input becomes NULL.
func datePrefix(value string) any {
	if value == "" {
		return nil
	}
	if len(value) > 10 {
		return value[:10]
	}
	return value
}
