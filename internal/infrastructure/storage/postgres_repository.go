package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"

	"CacheScanner/internal/domain"
	"CacheScanner/internal/ports"
)

// PostgresRepository persists finished scan runs and their outcomes.
type PostgresRepository struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var _ ports.ScanRepository = (*PostgresRepository)(nil)

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Open connects via the pq driver and verifies the connection.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// SaveRun inserts one scan_runs row and one scan_outcomes row per item,
// inside a single transaction.
func (r *PostgresRepository) SaveRun(ctx context.Context, summary domain.Summary, outcomes []domain.Outcome) error {
	if r.db == nil {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	query, args, err := r.builder.
		Insert("scan_runs").
		Columns("started_at", "finished_at", "total", "success", "warn", "error", "purged", "purge_failed").
		Values(summary.Started, summary.Finished, summary.Total, summary.Success, summary.Warn, summary.Error, summary.Purged, summary.PurgeFailed).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build run insert: %w", err)
	}

	var runID int64
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&runID); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if len(outcomes) > 0 {
		insert := r.builder.
			Insert("scan_outcomes").
			Columns("run_id", "row_id", "column_name", "url", "final_status", "cache_status", "age_seconds", "attempts_used", "validation_passed", "purge_requested", "message")
		for _, o := range outcomes {
			var age sql.NullInt64
			if o.AgeKnown {
				age = sql.NullInt64{Int64: int64(o.AgeSeconds), Valid: true}
			}
			insert = insert.Values(runID, o.RowID, o.Column, o.URL, string(o.FinalStatus), string(o.CacheStatus), age, o.AttemptsUsed, o.ValidationPassed, o.PurgeRequested, o.Message)
		}

		query, args, err = insert.ToSql()
		if err != nil {
			return fmt.Errorf("build outcome insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert outcomes: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
