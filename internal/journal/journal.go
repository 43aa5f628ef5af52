// Package journal records settled extraction attempts in an in-memory
// DuckDB database.
package journal

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"sync"

	"github.com/marcboeker/go-duckdb"
	"github.com/pdftext/backend/internal/models"
)

// DefaultLimit caps Recent when no limit is given.
const DefaultLimit = 50

// Journal is an append-only attempt log. Nothing survives a restart.
type Journal struct {
	db *sql.DB

	mu     sync.Mutex
	nextID int64
}

// Open creates an empty in-memory journal.
func Open() (*Journal, error) {
	connector, err := duckdb.NewConnector("", func(execer driver.ExecerContext) error {
		pragmas := []string{
			"PRAGMA threads=1",
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE attempts (
			id          BIGINT PRIMARY KEY,
			seq         BIGINT NOT NULL,
			file_name   VARCHAR NOT NULL,
			size_bytes  BIGINT NOT NULL,
			engine      VARCHAR,
			outcome     VARCHAR NOT NULL,
			error_kind  VARCHAR,
			page_count  INTEGER,
			word_count  INTEGER,
			started_at  TIMESTAMP NOT NULL,
			finished_at TIMESTAMP NOT NULL,
			duration_ms BIGINT NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &Journal{db: db}, nil
}

// Record appends one attempt.
func (j *Journal) Record(ctx context.Context, a models.Attempt) error {
	j.mu.Lock()
	j.nextID++
	id := j.nextID
	j.mu.Unlock()

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO attempts (id, seq, file_name, size_bytes, engine, outcome, error_kind,
			page_count, word_count, started_at, finished_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, int64(a.Seq), a.FileName, a.SizeBytes, a.Engine, string(a.Outcome), a.ErrorKind,
		a.PageCount, a.WordCount, a.StartedAt.UTC(), a.FinishedAt.UTC(), a.Duration().Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("recording attempt %d: %w", a.Seq, err)
	}
	return nil
}

// Recent returns the newest attempts first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]models.Attempt, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT seq, file_name, size_bytes, engine, outcome, error_kind,
			page_count, word_count, started_at, finished_at
		FROM attempts
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying attempts: %w", err)
	}
	defer rows.Close()

	attempts := make([]models.Attempt, 0, limit)
	for rows.Next() {
		var (
			a       models.Attempt
			seq     int64
			outcome string
			engine  sql.NullString
			kind    sql.NullString
			pages   sql.NullInt64
			words   sql.NullInt64
		)
		if err := rows.Scan(&seq, &a.FileName, &a.SizeBytes, &engine, &outcome, &kind,
			&pages, &words, &a.StartedAt, &a.FinishedAt); err != nil {
			return nil, fmt.Errorf("scanning attempt: %w", err)
		}
		a.Seq = uint64(seq)
		a.Engine = engine.String
		a.Outcome = models.AttemptOutcome(outcome)
		a.ErrorKind = kind.String
		a.PageCount = int(pages.Int64)
		a.WordCount = int(words.Int64)
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// Summary aggregates attempts per outcome, ordered by outcome name.
func (j *Journal) Summary(ctx context.Context) ([]models.AttemptSummary, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT outcome, COUNT(*), AVG(duration_ms)
		FROM attempts
		GROUP BY outcome
		ORDER BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("summarizing attempts: %w", err)
	}
	defer rows.Close()

	summary := make([]models.AttemptSummary, 0)
	for rows.Next() {
		var (
			s       models.AttemptSummary
			outcome string
		)
		if err := rows.Scan(&outcome, &s.Count, &s.AvgDurationMs); err != nil {
			return nil, fmt.Errorf("scanning summary: %w", err)
		}
		s.Outcome = models.AttemptOutcome(outcome)
		summary = append(summary, s)
	}
	return summary, rows.Err()
}

// Close releases the database.
func (j *Journal) Close() error {
	return j.db.Close()
}
