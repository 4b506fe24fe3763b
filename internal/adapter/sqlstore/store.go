// Package sqlstore persists compiled tables to SQLite or PostgreSQL.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "modernc.org/sqlite"             // registers the "sqlite" driver

	"github.com/couchcryptid/cocci-climate-etl/internal/config"
	"github.com/couchcryptid/cocci-climate-etl/internal/domain"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS compiled_cases (
		run_id      TEXT NOT NULL,
		entity      TEXT NOT NULL,
		period      INTEGER,
		value       DOUBLE PRECISION,
		compiled_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS compile_runs (
		run_id      TEXT PRIMARY KEY,
		compiled_at TEXT NOT NULL,
		row_count   INTEGER NOT NULL,
		report      TEXT NOT NULL
	)`,
}

// Store writes each compiled result as the current contents of
// compiled_cases and appends a compile_runs entry.
// It implements pipeline.Sink.
type Store struct {
	db     *sql.DB
	driver string
	logger *slog.Logger
}

// Open connects with driver ("sqlite" or "pgx") and creates the tables.
func Open(ctx context.Context, driver, dsn string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if driver == config.DriverSQLite {
		// SQLite allows a single writer; keep one stable connection.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000;"); err != nil {
			db.Close()
			return nil, fmt.Errorf("configure sqlite: %w", err)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	return &Store{db: db, driver: driver, logger: logger}, nil
}

func (s *Store) Name() string { return "sql" }

// Write replaces compiled_cases with result's rows in one transaction.
func (s *Store) Write(ctx context.Context, result domain.Result) error {
	report, err := json.Marshal(result.Report)
	if err != nil {
		return fmt.Errorf("serialize compile report: %w", err)
	}
	compiledAt := result.CompiledAt.UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM compiled_cases"); err != nil {
		return fmt.Errorf("clear compiled_cases: %w", err)
	}

	insert, err := tx.PrepareContext(ctx, "INSERT INTO compiled_cases (run_id, entity, period, value, compiled_at) VALUES "+s.placeholders(5))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer insert.Close()

	for _, row := range result.Rows {
		var period sql.NullInt64
		if row.Period != nil {
			period = sql.NullInt64{Int64: int64(*row.Period), Valid: true}
		}
		var value sql.NullFloat64
		if row.Value != nil {
			value = sql.NullFloat64{Float64: *row.Value, Valid: true}
		}
		if _, err := insert.ExecContext(ctx, result.RunID, row.Entity, period, value, compiledAt); err != nil {
			return fmt.Errorf("insert %s: %w", row.Key(), err)
		}
	}

	runStmt := "INSERT INTO compile_runs (run_id, compiled_at, row_count, report) VALUES " + s.placeholders(4)
	if _, err := tx.ExecContext(ctx, runStmt, result.RunID, compiledAt, len(result.Rows), string(report)); err != nil {
		return fmt.Errorf("record run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.logger.Info("stored compiled rows", "run_id", result.RunID, "rows", len(result.Rows), "driver", s.driver)
	return nil
}

// Rows returns the stored compiled table ordered by (period, entity) with
// unknown periods last.
func (s *Store) Rows(ctx context.Context) ([]domain.ObservationRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT entity, period, value FROM compiled_cases
		 ORDER BY CASE WHEN period IS NULL THEN 1 ELSE 0 END, period, entity`)
	if err != nil {
		return nil, fmt.Errorf("query compiled_cases: %w", err)
	}
	defer rows.Close()

	var out []domain.ObservationRow
	for rows.Next() {
		var (
			entity string
			period sql.NullInt64
			value  sql.NullFloat64
		)
		if err := rows.Scan(&entity, &period, &value); err != nil {
			return nil, fmt.Errorf("scan compiled_cases: %w", err)
		}
		r := domain.ObservationRow{Entity: entity}
		if period.Valid {
			p := int(period.Int64)
			r.Period = &p
		}
		if value.Valid {
			v := value.Float64
			r.Value = &v
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RunCount returns the number of recorded compile runs.
func (s *Store) RunCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM compile_runs").Scan(&n); err != nil {
		return 0, fmt.Errorf("count compile_runs: %w", err)
	}
	return n, nil
}

// CheckReadiness pings the database.
func (s *Store) CheckReadiness(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// placeholders returns "(?, ?, ...)" for SQLite and "($1, $2, ...)" for PostgreSQL.
func (s *Store) placeholders(n int) string {
	parts := make([]string, n)
	for i := range parts {
		if s.driver == config.DriverPostgres {
			parts[i] = "$" + strconv.Itoa(i+1)
		} else {
			parts[i] = "?"
		}
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
