package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"mediTrackAPI/internal/types/medication"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS medication_logs (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	date TEXT NOT NULL,
	taken INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	UNIQUE (user_id, date)
)`

// SQLiteStore keeps logs in a single-file SQLite database. Dates are stored as
// YYYY-MM-DD text so range filters compare lexically.
type SQLiteStore struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		path = "meditrack.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer; avoids SQLITE_BUSY under concurrent upserts
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create medication_logs table: %w", err)
	}
	return &SQLiteStore{db: db, path: path, now: time.Now}, nil
}

func (s *SQLiteStore) FindRange(ctx context.Context, userID string, start, end civil.Date) (logs []medication.Log, err error) {
	defer func() { observe(DriverSQLite, "find_range", err) }()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, date, taken, created_at, updated_at
		FROM medication_logs
		WHERE user_id = ? AND date >= ? AND date <= ?
		ORDER BY date`,
		userID, start.String(), end.String())
	if err != nil {
		return nil, fmt.Errorf("select medication logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		l, err := scanSQLiteLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return logs, nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, userID string, date civil.Date, taken bool) (_ *medication.Log, err error) {
	defer func() { observe(DriverSQLite, "upsert", err) }()

	now := s.now().UTC().Format(time.RFC3339Nano)
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO medication_logs (id, user_id, date, taken, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, date) DO UPDATE SET
			taken = excluded.taken,
			updated_at = excluded.updated_at
		RETURNING id, user_id, date, taken, created_at, updated_at`,
		uuid.NewString(), userID, date.String(), taken, now, now)

	l, err := scanSQLiteLog(row)
	if err != nil {
		return nil, fmt.Errorf("upsert medication log: %w", err)
	}
	return &l, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path returns the configured database path.
func (s *SQLiteStore) Path() string { return s.path }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteLog(row rowScanner) (medication.Log, error) {
	var (
		l                medication.Log
		date             string
		created, updated string
	)
	if err := row.Scan(&l.ID, &l.UserID, &date, &l.Taken, &created, &updated); err != nil {
		return l, fmt.Errorf("scan medication log: %w", err)
	}

	day, err := civil.ParseDate(date)
	if err != nil {
		return l, fmt.Errorf("decode date %q: %w", date, err)
	}
	l.Date = medication.DayTime(day)
	if l.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return l, fmt.Errorf("decode created_at: %w", err)
	}
	if l.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return l, fmt.Errorf("decode updated_at: %w", err)
	}
	return l, nil
}
