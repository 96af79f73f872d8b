package store

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mediTrackAPI/internal/types/medication"
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS medication_logs (
		id UUID PRIMARY KEY,
		user_id TEXT NOT NULL,
		date DATE NOT NULL,
		taken BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT medication_logs_user_date UNIQUE (user_id, date)
	)
`

type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, dbURL string) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := NewPostgresStoreFromPool(pool)
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

// NewPostgresStoreFromPool wraps an existing pool. The schema is not applied.
func NewPostgresStoreFromPool(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: pool}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("failed to create medication_logs table: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindRange(ctx context.Context, userID string, start, end civil.Date) (logs []medication.Log, err error) {
	defer func() { observe(DriverPostgres, "find_range", err) }()

	query := `
		SELECT id::text, user_id, date, taken, created_at, updated_at
		FROM medication_logs
		WHERE user_id = $1
			AND date >= $2
			AND date <= $3
		ORDER BY date
	`

	rows, err := s.db.Query(ctx, query, userID, medication.DayTime(start), medication.DayTime(end))
	if err != nil {
		return nil, fmt.Errorf("failed to query medication logs: %w", err)
	}

	logs, err = pgx.CollectRows(rows, scanPostgresLog)
	if err != nil {
		return nil, fmt.Errorf("failed to scan medication log row: %w", err)
	}

	return logs, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, userID string, date civil.Date, taken bool) (_ *medication.Log, err error) {
	defer func() { observe(DriverPostgres, "upsert", err) }()

	query := `
		INSERT INTO medication_logs (id, user_id, date, taken, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (user_id, date)
		DO UPDATE SET
			taken = EXCLUDED.taken,
			updated_at = NOW()
		RETURNING id::text, user_id, date, taken, created_at, updated_at
	`

	rows, err := s.db.Query(ctx, query, uuid.NewString(), userID, medication.DayTime(date), taken)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert medication log: %w", err)
	}

	l, err := pgx.CollectExactlyOneRow(rows, scanPostgresLog)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert medication log: %w", err)
	}

	return &l, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

func scanPostgresLog(row pgx.CollectableRow) (medication.Log, error) {
	var l medication.Log
	err := row.Scan(&l.ID, &l.UserID, &l.Date, &l.Taken, &l.CreatedAt, &l.UpdatedAt)
	l.Date = medication.DayTime(civil.DateOf(l.Date))
	return l, err
}
