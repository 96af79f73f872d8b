package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openSQLite(t *testing.T) Store {
	t.Helper()
	s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "meditrack.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore(t *testing.T) {
	runStoreContract(t, openSQLite)
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "meditrack.db")

	s, err := NewSQLiteStore(ctx, path)
	require.NoError(t, err)
	saved, err := s.Upsert(ctx, testUser, day("2024-02-29"), true)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := Open(ctx, DriverSQLite, path)
	require.NoError(t, err)
	defer reopened.Close()

	logs, err := reopened.FindRange(ctx, testUser, day("2024-02-01"), day("2024-02-29"))
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, saved.ID, logs[0].ID)
	assert.Equal(t, day("2024-02-29"), logs[0].Day())
}
