package client

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"mediTrackAPI/internal/types/medication"
)

// MonthKey identifies one cached page of logs: one user, one calendar month.
type MonthKey struct {
	UserID string
	Year   int
	Month  time.Month
}

func NewMonthKey(userID string, d civil.Date) MonthKey {
	return MonthKey{UserID: userID, Year: d.Year, Month: d.Month}
}

// String is the form prefix invalidation matches against:
// medicationLogs/<user>/<YYYY-MM>.
func (k MonthKey) String() string {
	return fmt.Sprintf("%s/%s/%04d-%02d", medication.Kind, k.UserID, k.Year, int(k.Month))
}

// Bounds returns the first and last day of the month.
func (k MonthKey) Bounds() (civil.Date, civil.Date) {
	return medication.MonthBounds(k.Year, k.Month)
}

func (k MonthKey) Contains(d civil.Date) bool {
	return d.Year == k.Year && d.Month == k.Month
}

// Add moves the key by n months, keeping the user.
func (k MonthKey) Add(n int) MonthKey {
	first, _ := k.Bounds()
	return NewMonthKey(k.UserID, civil.DateOf(first.In(time.UTC).AddDate(0, n, 0)))
}

type cacheEntry struct {
	logs      []medication.Log
	fetchedAt time.Time
	stale     bool
}

// Snapshot is a captured cache entry, taken before an optimistic patch.
// Restoring it puts the entry back exactly, including absence.
type Snapshot struct {
	present bool
	entry   cacheEntry
}

// Logs returns the captured logs, nil when the month was not cached.
func (s Snapshot) Logs() []medication.Log {
	return cloneLogs(s.entry.logs)
}

// Present reports whether the month was cached when the snapshot was taken.
func (s Snapshot) Present() bool { return s.present }

func (s Snapshot) logOn(date civil.Date) (medication.Log, bool) {
	for _, l := range s.entry.logs {
		if l.Day() == date {
			return l, true
		}
	}
	return medication.Log{}, false
}

const DefaultCacheMonths = 24

// Cache holds the last fetched logs per month. It lives for one session and is
// never persisted. Safe for concurrent use; it never touches the network.
type Cache struct {
	mu        sync.Mutex
	entries   *lru.Cache[MonthKey, *cacheEntry]
	staleTime time.Duration
	now       func() time.Time

	subMu sync.Mutex
	subs  map[int]chan MonthKey
	subID int
}

// NewCache keeps up to maxMonths months. Entries older than staleTime read as
// stale; zero staleTime means entries only go stale through Invalidate.
func NewCache(maxMonths int, staleTime time.Duration) *Cache {
	if maxMonths <= 0 {
		maxMonths = DefaultCacheMonths
	}
	entries, err := lru.New[MonthKey, *cacheEntry](maxMonths)
	if err != nil {
		// only reachable with a non-positive size
		panic(err)
	}
	return &Cache{
		entries:   entries,
		staleTime: staleTime,
		now:       time.Now,
		subs:      make(map[int]chan MonthKey),
	}
}

// Read returns the cached logs when present and fresh. A miss or a stale entry
// reads as absent so the caller refetches.
func (c *Cache) Read(key MonthKey) ([]medication.Log, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries.Get(key)
	if !ok || c.isStale(e) {
		return nil, false
	}
	return cloneLogs(e.logs), true
}

// Peek returns whatever is cached for key, stale or not. This is what a view
// shows while a refetch is running.
func (c *Cache) Peek(key MonthKey) ([]medication.Log, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries.Peek(key)
	if !ok {
		return nil, false
	}
	return cloneLogs(e.logs), true
}

// IsStale reports whether key is cached but needs a refetch.
func (c *Cache) IsStale(key MonthKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries.Peek(key)
	return ok && c.isStale(e)
}

// Write replaces the cached set for key wholesale.
func (c *Cache) Write(key MonthKey, logs []medication.Log) {
	c.mu.Lock()
	c.entries.Add(key, &cacheEntry{logs: sortedCopy(logs), fetchedAt: c.now()})
	c.mu.Unlock()

	c.publish(key)
}

// Invalidate marks every key whose string form starts with prefix as stale and
// returns how many were marked. Invalidate(medication.Kind) hits every month.
func (c *Cache) Invalidate(prefix string) int {
	var hit []MonthKey

	c.mu.Lock()
	for _, k := range c.entries.Keys() {
		if !strings.HasPrefix(k.String(), prefix) {
			continue
		}
		if e, ok := c.entries.Peek(k); ok {
			e.stale = true
			hit = append(hit, k)
		}
	}
	c.mu.Unlock()

	for _, k := range hit {
		c.publish(k)
	}
	return len(hit)
}

// Patch sets taken for date in place. A day with no log gets a placeholder
// carrying a temporary id. An uncached month gets a stale entry holding only
// the placeholder so the view shows it until the refetch lands.
func (c *Cache) Patch(key MonthKey, date civil.Date, taken bool) {
	c.mu.Lock()

	e, ok := c.entries.Peek(key)
	next := &cacheEntry{stale: true, fetchedAt: c.now()}
	if ok {
		next.fetchedAt = e.fetchedAt
		next.stale = e.stale
		next.logs = cloneLogs(e.logs)
	}

	patched := false
	for i := range next.logs {
		if next.logs[i].Day() == date {
			next.logs[i].Taken = taken
			patched = true
			break
		}
	}
	if !patched {
		next.logs = append(next.logs, medication.Log{
			ID:     medication.PlaceholderPrefix + uuid.NewString(),
			UserID: key.UserID,
			Date:   medication.DayTime(date),
			Taken:  taken,
		})
		next.logs = sortedCopy(next.logs)
	}
	c.entries.Add(key, next)
	c.mu.Unlock()

	c.publish(key)
}

// Snapshot captures the entry for key as it is now.
func (c *Cache) Snapshot(key MonthKey) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries.Peek(key)
	if !ok {
		return Snapshot{}
	}
	return Snapshot{present: true, entry: cacheEntry{
		logs:      cloneLogs(e.logs),
		fetchedAt: e.fetchedAt,
		stale:     e.stale,
	}}
}

// Restore replaces the entry for key with snap, removing it if the month was
// not cached when snap was taken.
func (c *Cache) Restore(key MonthKey, snap Snapshot) {
	c.mu.Lock()
	if snap.present {
		c.entries.Add(key, &cacheEntry{
			logs:      cloneLogs(snap.entry.logs),
			fetchedAt: snap.entry.fetchedAt,
			stale:     snap.entry.stale,
		})
	} else {
		c.entries.Remove(key)
	}
	c.mu.Unlock()

	c.publish(key)
}

// Revert undoes one Patch of date, putting the day back to how snap saw it.
// Nothing happens if the day no longer carries the patched value. Other days
// are left alone so overlapping patches of the same month survive. An entry
// that only existed because of patches is removed once it is empty.
func (c *Cache) Revert(key MonthKey, date civil.Date, patched bool, snap Snapshot) {
	c.mu.Lock()

	e, ok := c.entries.Peek(key)
	if !ok {
		c.mu.Unlock()
		return
	}
	idx := -1
	for i := range e.logs {
		if e.logs[i].Day() == date {
			idx = i
			break
		}
	}
	if idx < 0 || e.logs[idx].Taken != patched {
		c.mu.Unlock()
		return
	}

	next := &cacheEntry{logs: cloneLogs(e.logs), fetchedAt: e.fetchedAt, stale: e.stale}
	if prev, had := snap.logOn(date); had {
		next.logs[idx] = prev
	} else {
		next.logs = append(next.logs[:idx], next.logs[idx+1:]...)
	}
	if !snap.present && len(next.logs) == 0 {
		c.entries.Remove(key)
	} else {
		c.entries.Add(key, next)
	}
	c.mu.Unlock()

	c.publish(key)
}

// TakenOn is the taken value the cache currently shows for date. A day with no
// log, or a month not cached, reads as not taken.
func (c *Cache) TakenOn(key MonthKey, date civil.Date) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries.Peek(key)
	if !ok {
		return false
	}
	for _, l := range e.logs {
		if l.Day() == date {
			return l.Taken
		}
	}
	return false
}

// Subscribe returns a channel receiving the key of every changed entry, and a
// function that unsubscribes. Slow subscribers miss events rather than block
// writers.
func (c *Cache) Subscribe() (<-chan MonthKey, func()) {
	ch := make(chan MonthKey, 16)

	c.subMu.Lock()
	id := c.subID
	c.subID++
	c.subs[id] = ch
	c.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subMu.Lock()
			delete(c.subs, id)
			c.subMu.Unlock()
			close(ch)
		})
	}
}

func (c *Cache) publish(key MonthKey) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- key:
		default:
		}
	}
}

func (c *Cache) isStale(e *cacheEntry) bool {
	if e.stale {
		return true
	}
	return c.staleTime > 0 && c.now().Sub(e.fetchedAt) > c.staleTime
}

func cloneLogs(logs []medication.Log) []medication.Log {
	if logs == nil {
		return nil
	}
	out := make([]medication.Log, len(logs))
	copy(out, logs)
	return out
}

func sortedCopy(logs []medication.Log) []medication.Log {
	out := cloneLogs(logs)
	if out == nil {
		out = []medication.Log{}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
