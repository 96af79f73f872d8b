package store

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUser = "66f6f7251e72438e25762bc2"

func day(s string) civil.Date {
	d, err := civil.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// runStoreContract checks the behaviour every backend must share.
func runStoreContract(t *testing.T, open func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("round trip", func(t *testing.T) {
		s := open(t)

		saved, err := s.Upsert(ctx, testUser, day("2024-10-15"), true)
		require.NoError(t, err)
		assert.NotEmpty(t, saved.ID)
		assert.Equal(t, testUser, saved.UserID)
		assert.True(t, saved.Taken)
		assert.Equal(t, day("2024-10-15"), saved.Day())
		assert.False(t, saved.CreatedAt.IsZero())

		logs, err := s.FindRange(ctx, testUser, day("2024-10-01"), day("2024-10-31"))
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Equal(t, saved.ID, logs[0].ID)
		assert.True(t, logs[0].Taken)
		assert.Equal(t, time.Date(2024, 10, 15, 0, 0, 0, 0, time.UTC), logs[0].Date.UTC())
	})

	t.Run("upsert keeps one entry per user and day", func(t *testing.T) {
		s := open(t)

		first, err := s.Upsert(ctx, testUser, day("2024-10-15"), true)
		require.NoError(t, err)
		second, err := s.Upsert(ctx, testUser, day("2024-10-15"), true)
		require.NoError(t, err)
		third, err := s.Upsert(ctx, testUser, day("2024-10-15"), false)
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, first.ID, third.ID)
		assert.False(t, third.Taken)
		assert.True(t, first.CreatedAt.Equal(third.CreatedAt), "created_at must survive updates")

		logs, err := s.FindRange(ctx, testUser, day("2024-10-15"), day("2024-10-15"))
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.False(t, logs[0].Taken, "not taken is persisted, not deleted")
	})

	t.Run("range bounds are inclusive", func(t *testing.T) {
		s := open(t)

		for _, d := range []string{"2024-09-30", "2024-10-01", "2024-10-16", "2024-10-31", "2024-11-01"} {
			_, err := s.Upsert(ctx, testUser, day(d), true)
			require.NoError(t, err)
		}

		logs, err := s.FindRange(ctx, testUser, day("2024-10-01"), day("2024-10-31"))
		require.NoError(t, err)

		var got []civil.Date
		for _, l := range logs {
			got = append(got, l.Day())
		}
		assert.Equal(t, []civil.Date{day("2024-10-01"), day("2024-10-16"), day("2024-10-31")}, got)
	})

	t.Run("users are isolated", func(t *testing.T) {
		s := open(t)

		_, err := s.Upsert(ctx, testUser, day("2024-10-15"), true)
		require.NoError(t, err)
		_, err = s.Upsert(ctx, "someone-else", day("2024-10-15"), false)
		require.NoError(t, err)

		logs, err := s.FindRange(ctx, "someone-else", day("2024-10-01"), day("2024-10-31"))
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.False(t, logs[0].Taken)
	})

	t.Run("empty range", func(t *testing.T) {
		s := open(t)

		logs, err := s.FindRange(ctx, testUser, day("2024-10-01"), day("2024-10-31"))
		require.NoError(t, err)
		assert.Empty(t, logs)
		assert.NoError(t, s.Ping(ctx))
	})
}
