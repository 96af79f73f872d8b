package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/civil"

	"mediTrackAPI/internal/types/medication"
)

const testUser = "66f6f7251e72438e25762bc2"

func day(y int, m time.Month, d int) civil.Date {
	return civil.Date{Year: y, Month: m, Day: d}
}

// fakeAPI is an in-memory LogAPI for a single user. Gates, when set, hold a
// call until closed.
type fakeAPI struct {
	mu      sync.Mutex
	logs    map[civil.Date]medication.Log
	nextID  int
	lists   int
	upserts []bool

	listErr   error
	upsertErr error

	listGate      chan struct{}
	listStarted   chan struct{}
	ignoreCancel  bool
	upsertGate    chan struct{}
	upsertStarted chan struct{}
	// upsertGates[n] holds the n-th upsert call; upsertErrs fails a day
	upsertGates []chan struct{}
	upsertErrs  map[civil.Date]error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{logs: make(map[civil.Date]medication.Log)}
}

func (f *fakeAPI) seed(date civil.Date, taken bool) medication.Log {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.putLocked(date, taken)
}

func (f *fakeAPI) putLocked(date civil.Date, taken bool) medication.Log {
	entry, ok := f.logs[date]
	if !ok {
		f.nextID++
		entry = medication.Log{
			ID:     fmt.Sprintf("log-%d", f.nextID),
			UserID: testUser,
			Date:   medication.DayTime(date),
		}
	}
	entry.Taken = taken
	f.logs[date] = entry
	return entry
}

func (f *fakeAPI) listCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lists
}

func (f *fakeAPI) upsertCalls() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.upserts...)
}

func (f *fakeAPI) ListLogs(ctx context.Context, userID string, start, end civil.Date) ([]medication.Log, error) {
	f.mu.Lock()
	f.lists++
	gate, started, err := f.listGate, f.listStarted, f.listErr
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		if f.ignoreCancel {
			<-gate
		} else {
			select {
			case <-gate:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	out := []medication.Log{}
	for d, l := range f.logs {
		if !d.Before(start) && !d.After(end) {
			out = append(out, l)
		}
	}
	return sortedCopy(out), nil
}

func (f *fakeAPI) UpsertLog(ctx context.Context, userID string, date civil.Date, taken bool) (*medication.Log, error) {
	f.mu.Lock()
	call := len(f.upserts)
	f.upserts = append(f.upserts, taken)
	gate, started, err := f.upsertGate, f.upsertStarted, f.upsertErr
	if call < len(f.upsertGates) {
		gate = f.upsertGates[call]
	}
	if e, ok := f.upsertErrs[date]; ok {
		err = e
	}
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	entry := f.putLocked(date, taken)
	return &entry, nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	titles   []string
	messages []string
	errors   int
}

func (n *recordingNotifier) Success(title, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.titles = append(n.titles, title)
	n.messages = append(n.messages, message)
}

func (n *recordingNotifier) Error(title, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.titles = append(n.titles, title)
	n.messages = append(n.messages, message)
	n.errors++
}

func (n *recordingNotifier) last() (string, string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.titles) == 0 {
		return "", ""
	}
	return n.titles[len(n.titles)-1], n.messages[len(n.messages)-1]
}
