package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxIdleConns(5)
	db.SetMaxOpenConns(10)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// EnsurePresidents inserts defaults when the registry is empty.
func (s *PostgresStore) EnsurePresidents(ctx context.Context, defaults []President) error {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM presidents`).Scan(&count); err != nil {
		return fmt.Errorf("count presidents: %w", err)
	}
	if count > 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, p := range defaults {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO presidents (id, name, start_date, end_date, image_url)
			VALUES ($1, $2, $3, NULLIF($4, '')::date, $5)
			ON CONFLICT (id) DO NOTHING
		`, p.ID, p.Name, p.StartDate, p.EndDate, p.ImageURL); err != nil {
			return fmt.Errorf("seed president %s: %w", p.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed tx: %w", err)
	}
	return nil
}

// ListPresidents returns the registry ordered by start of tenure.
func (s *PostgresStore) ListPresidents(ctx context.Context) ([]President, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, to_char(start_date, 'YYYY-MM-DD'), COALESCE(to_char(end_date, 'YYYY-MM-DD'), ''), image_url
		FROM presidents
		ORDER BY start_date ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list presidents: %w", err)
	}
	defer rows.Close()

	items := make([]President, 0)
	for rows.Next() {
		var p President
		if err := rows.Scan(&p.ID, &p.Name, &p.StartDate, &p.EndDate, &p.ImageURL); err != nil {
			return nil, fmt.Errorf("scan president: %w", err)
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

// RecordCommit appends rec to the commit log, assigning its ID and timestamp
// when unset.
func (s *PostgresStore) RecordCommit(ctx context.Context, rec CommitRecord) (CommitRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CommittedAt.IsZero() {
		rec.CommittedAt = time.Now().UTC()
	}
	payload := rec.Payload
	if len(payload) == 0 {
		payload = json.RawMessage(`null`)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO commit_log (id, scope, gazette_number, gazette_date, gazette_format, records, payload, archive_key, journal_hash, committed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, $9, $10)
	`, rec.ID, rec.Scope, rec.Number, rec.Date, rec.Format, rec.Records, string(payload), rec.ArchiveKey, rec.JournalHash, rec.CommittedAt)
	if err != nil {
		return CommitRecord{}, fmt.Errorf("insert commit log: %w", err)
	}
	return rec, nil
}

// ListCommits returns the newest commits first. Payloads are not loaded.
func (s *PostgresStore) ListCommits(ctx context.Context, filter CommitFilter) ([]CommitRecord, error) {
	var (
		where []string
		args  []any
	)
	if filter.Scope != "" {
		args = append(args, filter.Scope)
		where = append(where, fmt.Sprintf("scope = $%d", len(args)))
	}
	if filter.Number != "" {
		args = append(args, filter.Number)
		where = append(where, fmt.Sprintf("gazette_number = $%d", len(args)))
	}
	query := `SELECT id, scope, gazette_number, gazette_date, gazette_format, records, archive_key, journal_hash, committed_at FROM commit_log`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, filter.limit())
	query += fmt.Sprintf(" ORDER BY committed_at DESC LIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list commits: %w", err)
	}
	defer rows.Close()

	items := make([]CommitRecord, 0)
	for rows.Next() {
		var rec CommitRecord
		if err := rows.Scan(&rec.ID, &rec.Scope, &rec.Number, &rec.Date, &rec.Format, &rec.Records, &rec.ArchiveKey, &rec.JournalHash, &rec.CommittedAt); err != nil {
			return nil, fmt.Errorf("scan commit: %w", err)
		}
		items = append(items, rec)
	}
	return items, rows.Err()
}
