package client

import (
	"context"
	"errors"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"mediTrackAPI/internal/types/medication"
)

// ErrSuperseded is returned by a fetch whose result was discarded because a
// newer fetch, a month switch or an optimistic patch replaced it.
var ErrSuperseded = errors.New("fetch superseded")

type Status int

const (
	StatusLoading Status = iota
	StatusReady
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// MonthState is what a view renders for one month. Logs may be stale data
// shown while Status is StatusLoading.
type MonthState struct {
	Key    MonthKey
	Logs   []medication.Log
	Status Status
	Err    error
}

type inflight struct {
	gen    uint64
	cancel context.CancelFunc
}

// Query keeps the cache filled. Every fetch carries a generation number per
// month; a response whose generation is no longer current is dropped, so a
// late response can never overwrite newer state.
type Query struct {
	api   LogAPI
	cache *Cache
	group singleflight.Group

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	gens     map[MonthKey]uint64
	inflight map[MonthKey]*inflight
	failures map[MonthKey]error
	holds    map[MonthKey]int
	active   MonthKey
}

func NewQuery(api LogAPI, cache *Cache) *Query {
	ctx, cancel := context.WithCancel(context.Background())
	return &Query{
		api:      api,
		cache:    cache,
		ctx:      ctx,
		cancel:   cancel,
		gens:     make(map[MonthKey]uint64),
		inflight: make(map[MonthKey]*inflight),
		failures: make(map[MonthKey]error),
		holds:    make(map[MonthKey]int),
	}
}

// Load never blocks on the network. A fresh cache hit is StatusReady. A miss
// or stale entry starts a background fetch and reports StatusLoading with
// whatever is cached. A month whose last fetch failed reports StatusFailed
// until Refetch is called; failures are not retried automatically.
func (q *Query) Load(key MonthKey) MonthState {
	if logs, ok := q.cache.Read(key); ok {
		return MonthState{Key: key, Logs: logs, Status: StatusReady}
	}

	logs, _ := q.cache.Peek(key)

	q.mu.Lock()
	err, failed := q.failures[key]
	_, running := q.inflight[key]
	held := q.holds[key] > 0
	q.mu.Unlock()

	if held {
		return MonthState{Key: key, Logs: logs, Status: StatusLoading}
	}
	if failed && !running {
		return MonthState{Key: key, Logs: logs, Status: StatusFailed, Err: err}
	}
	if !running {
		q.background(key)
	}
	return MonthState{Key: key, Logs: logs, Status: StatusLoading}
}

// Refetch clears a recorded failure and starts a background fetch.
func (q *Query) Refetch(key MonthKey) {
	q.mu.Lock()
	delete(q.failures, key)
	q.mu.Unlock()

	q.background(key)
}

// Fetch loads key from the API and writes it to the cache, blocking until the
// response arrives. Concurrent fetches of one month share a single request.
func (q *Query) Fetch(ctx context.Context, key MonthKey) ([]medication.Log, error) {
	v, err, _ := q.group.Do(key.String(), func() (any, error) {
		return q.fetch(ctx, key)
	})
	if err != nil {
		return nil, err
	}
	return cloneLogs(v.([]medication.Log)), nil
}

func (q *Query) fetch(ctx context.Context, key MonthKey) ([]medication.Log, error) {
	fctx, cancel := context.WithCancel(ctx)
	defer cancel()

	q.mu.Lock()
	gen := q.nextGenLocked(key)
	q.inflight[key] = &inflight{gen: gen, cancel: cancel}
	q.mu.Unlock()

	start, end := key.Bounds()
	logs, err := q.api.ListLogs(fctx, key.UserID, start, end)

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.gens[key] != gen || q.holds[key] > 0 {
		return nil, ErrSuperseded
	}
	delete(q.inflight, key)

	if err != nil {
		q.failures[key] = err
		return nil, err
	}
	delete(q.failures, key)
	q.cache.Write(key, logs)
	return logs, nil
}

// Hold supersedes any in-flight fetch for key and drops every fetch result
// for key until the matching Release. A mutation holds its month while the
// optimistic patch is unconfirmed so server data read before the write lands
// cannot overwrite the patch.
func (q *Query) Hold(key MonthKey) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.holds[key]++
	q.supersedeLocked(key)
}

// Release ends a Hold. Fetches issued while the hold was in place are
// superseded too, since their requests may predate the write.
func (q *Query) Release(key MonthKey) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.holds[key] <= 1 {
		delete(q.holds, key)
	} else {
		q.holds[key]--
	}
	q.supersedeLocked(key)
}

// SetActive records the displayed month and cancels in-flight fetches for
// every other month.
func (q *Query) SetActive(key MonthKey) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.active = key
	for k := range q.inflight {
		if k != key {
			q.supersedeLocked(k)
		}
	}
}

func (q *Query) Active() MonthKey {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.active
}

// Prefetch fetches the months either side of key when they are not already
// cached and fresh.
func (q *Query) Prefetch(ctx context.Context, key MonthKey) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, k := range []MonthKey{key.Add(-1), key.Add(1)} {
		if _, ok := q.cache.Read(k); ok {
			continue
		}
		k := k
		g.Go(func() error {
			_, err := q.Fetch(gctx, k)
			if errors.Is(err, ErrSuperseded) {
				return nil
			}
			return err
		})
	}
	return g.Wait()
}

// Close cancels every background fetch and waits for them to return.
func (q *Query) Close() {
	q.cancel()
	q.wg.Wait()
}

// Wait blocks until the background fetches started so far have finished.
func (q *Query) Wait() {
	q.wg.Wait()
}

func (q *Query) background(key MonthKey) {
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		if _, err := q.Fetch(q.ctx, key); err != nil && !errors.Is(err, ErrSuperseded) && q.ctx.Err() == nil {
			log.Printf("Query: fetch %s failed: %v", key, err)
		}
	}()
}

// nextGenLocked bumps the generation for key and cancels its in-flight fetch.
func (q *Query) nextGenLocked(key MonthKey) uint64 {
	q.gens[key]++
	if f, ok := q.inflight[key]; ok {
		f.cancel()
		delete(q.inflight, key)
	}
	return q.gens[key]
}

// supersedeLocked also detaches the old call from singleflight so the next
// Fetch starts a fresh request instead of joining a discarded one.
func (q *Query) supersedeLocked(key MonthKey) {
	q.nextGenLocked(key)
	q.group.Forget(key.String())
}
