// Package store persists medication logs. Every backend keeps at most one log
// per (user, date) and only ever writes through an upsert.
package store

import (
	"context"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/prometheus/client_golang/prometheus"

	"mediTrackAPI/internal/types/medication"
)

type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
	DriverMemory   Driver = "memory"
)

type Store interface {
	FindRange(ctx context.Context, userID string, start, end civil.Date) ([]medication.Log, error)
	Upsert(ctx context.Context, userID string, date civil.Date, taken bool) (*medication.Log, error)
	Ping(ctx context.Context) error
	Close() error
}

var operations = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "medication_store_operations_total",
		Help: "Medication log store operations by backend, operation and result",
	},
	[]string{"backend", "op", "result"},
)

// InitPrometheus registers the store metrics. Call this from main.go
func InitPrometheus() {
	prometheus.MustRegister(operations)
}

func observe(backend Driver, op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	operations.WithLabelValues(string(backend), op, result).Inc()
}

// Open selects a Store implementation.
//
//	postgres: dsn is a libpq URL
//	sqlite:   dsn is a file path
//	memory:   dsn is ignored
func Open(ctx context.Context, driver Driver, dsn string) (Store, error) {
	switch driver {
	case DriverPostgres:
		return NewPostgresStore(ctx, dsn)
	case DriverSQLite:
		return NewSQLiteStore(ctx, dsn)
	case DriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
