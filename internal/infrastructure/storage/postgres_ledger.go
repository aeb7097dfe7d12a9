package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"PaperPromoter/internal/domain"
	"PaperPromoter/internal/ports"
)

const runsTable = "project_runs"

const schema = `CREATE TABLE IF NOT EXISTS project_runs (
    project_id  TEXT        NOT NULL,
    mode        TEXT        NOT NULL,
    run_id      TEXT        NOT NULL,
    status      TEXT        NOT NULL,
    error_kind  TEXT        NOT NULL DEFAULT '',
    message     TEXT        NOT NULL DEFAULT '',
    output_path TEXT        NOT NULL DEFAULT '',
    duration_ms BIGINT      NOT NULL DEFAULT 0,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (project_id, mode)
)`

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresLedger keeps the latest outcome of every project per mode.
type PostgresLedger struct {
	db *sql.DB
}

var _ ports.ResultLedger = (*PostgresLedger)(nil)

// NewPostgresLedger wires a sql.DB implementation.
func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// OpenPostgresLedger connects to dsn and makes sure the table exists.
func OpenPostgresLedger(ctx context.Context, dsn string) (*PostgresLedger, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	l := NewPostgresLedger(db)
	if err := l.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

// EnsureSchema creates the ledger table when missing.
func (l *PostgresLedger) EnsureSchema(ctx context.Context) error {
	if l.db == nil {
		return nil
	}
	if _, err := l.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create %s: %w", runsTable, err)
	}
	return nil
}

// Close releases the connection pool.
func (l *PostgresLedger) Close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}

// AlreadySucceeded returns the subset of ids whose latest run in mode succeeded.
func (l *PostgresLedger) AlreadySucceeded(ctx context.Context, mode string, ids []string) (map[string]bool, error) {
	if l.db == nil || len(ids) == 0 {
		return map[string]bool{}, nil
	}

	query, args, err := succeededQuery(mode, ids)
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query succeeded: %w", err)
	}
	defer rows.Close()

	result := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		result[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return result, nil
}

// SaveResult upserts the outcome of one project.
func (l *PostgresLedger) SaveResult(ctx context.Context, runID, mode string, result domain.RunResult) error {
	if l.db == nil {
		return nil
	}

	query, args, err := upsertQuery(runID, mode, result)
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	if _, err := l.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert result %s: %w", result.ProjectID, err)
	}
	return nil
}

func succeededQuery(mode string, ids []string) (string, []interface{}, error) {
	return psql.Select("project_id").
		From(runsTable).
		Where(sq.Eq{"mode": mode}).
		Where(sq.Eq{"status": string(domain.ResultSucceeded)}).
		Where("project_id = ANY(?)", pq.StringArray(ids)).
		ToSql()
}

func upsertQuery(runID, mode string, r domain.RunResult) (string, []interface{}, error) {
	return psql.Insert(runsTable).
		Columns("project_id", "mode", "run_id", "status", "error_kind", "message", "output_path", "duration_ms").
		Values(r.ProjectID, mode, runID, string(r.Status), string(r.ErrorKind), r.Message, r.OutputPath, r.Duration.Milliseconds()).
		Suffix(`ON CONFLICT (project_id, mode) DO UPDATE
              SET run_id = EXCLUDED.run_id,
                  status = EXCLUDED.status,
                  error_kind = EXCLUDED.error_kind,
                  message = EXCLUDED.message,
                  output_path = EXCLUDED.output_path,
                  duration_ms = EXCLUDED.duration_ms,
                  updated_at = NOW()`).
		ToSql()
}
