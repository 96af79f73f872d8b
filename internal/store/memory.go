package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"mediTrackAPI/internal/types/medication"
)

type logKey struct {
	userID string
	date   civil.Date
}

// MemoryStore keeps logs in a map guarded by a RWMutex. Nothing survives a restart.
type MemoryStore struct {
	mu   sync.RWMutex
	logs map[logKey]medication.Log
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		logs: make(map[logKey]medication.Log),
		now:  time.Now,
	}
}

// FindRange returns the user's logs with start <= date <= end, ordered by date.
func (s *MemoryStore) FindRange(_ context.Context, userID string, start, end civil.Date) ([]medication.Log, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []medication.Log
	for k, l := range s.logs {
		if k.userID != userID || k.date.Before(start) || k.date.After(end) {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })

	observe(DriverMemory, "find_range", nil)
	return out, nil
}

func (s *MemoryStore) Upsert(_ context.Context, userID string, date civil.Date, taken bool) (*medication.Log, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	k := logKey{userID: userID, date: date}
	l, ok := s.logs[k]
	if !ok {
		l = medication.Log{
			ID:        uuid.NewString(),
			UserID:    userID,
			Date:      medication.DayTime(date),
			CreatedAt: now,
		}
	}
	l.Taken = taken
	l.UpdatedAt = now
	s.logs[k] = l

	observe(DriverMemory, "upsert", nil)
	return &l, nil
}

// Len reports how many logs are stored across all users.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.logs)
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
