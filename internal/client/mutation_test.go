package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type controllerFixture struct {
	api      *fakeAPI
	cache    *Cache
	query    *Query
	notifier *recordingNotifier
	ctrl     *Controller

	mu          sync.Mutex
	transitions []MutationState
}

func newControllerFixture(t *testing.T, now time.Time) *controllerFixture {
	t.Helper()
	f := &controllerFixture{
		api:      newFakeAPI(),
		cache:    NewCache(0, 0),
		notifier: &recordingNotifier{},
	}
	f.query = NewQuery(f.api, f.cache)
	t.Cleanup(f.query.Close)
	f.ctrl = NewController(testUser, f.api, f.cache, f.query, ControllerOptions{
		Notifier: f.notifier,
		Location: time.UTC,
		Now:      func() time.Time { return now },
		OnTransition: func(_ civil.Date, state MutationState) {
			f.mu.Lock()
			f.transitions = append(f.transitions, state)
			f.mu.Unlock()
		},
	})
	return f
}

func (f *controllerFixture) states() []MutationState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]MutationState(nil), f.transitions...)
}

func TestToggleIsVisibleBeforeResponse(t *testing.T) {
	f := newControllerFixture(t, time.Date(2024, time.October, 15, 9, 0, 0, 0, time.UTC))
	date := day(2024, time.October, 15)
	key := NewMonthKey(testUser, date)
	_, err := f.query.Fetch(context.Background(), key)
	require.NoError(t, err)

	f.api.upsertGate = make(chan struct{})
	f.api.upsertStarted = make(chan struct{}, 1)

	done := make(chan MutationResult, 1)
	go func() { done <- f.ctrl.Toggle(context.Background(), date) }()
	<-f.api.upsertStarted

	assert.True(t, f.cache.TakenOn(key, date), "the patch lands before the request settles")
	assert.Equal(t, PendingOptimistic, f.ctrl.State(date))
	logs, _ := f.cache.Peek(key)
	require.Len(t, logs, 1)
	assert.True(t, logs[0].IsPlaceholder())

	close(f.api.upsertGate)
	res := <-done
	require.NoError(t, res.Err)
	assert.Equal(t, SettledSuccess, res.State)
	assert.True(t, res.Taken)
	require.NotNil(t, res.Entry)

	f.query.Wait()
	logs, ok := f.cache.Read(key)
	require.True(t, ok, "success refetches the month")
	require.Len(t, logs, 1)
	assert.Equal(t, res.Entry.ID, logs[0].ID)
	assert.False(t, logs[0].IsPlaceholder())

	assert.Equal(t, []MutationState{PendingOptimistic, SettledSuccess}, f.states())
	title, message := f.notifier.last()
	assert.Equal(t, "Today's medication", title)
	assert.Equal(t, "Tue Oct 15 marked as taken. Great job!", message)
}

func TestToggleFlipsCachedValue(t *testing.T) {
	f := newControllerFixture(t, time.Date(2024, time.October, 20, 9, 0, 0, 0, time.UTC))
	date := day(2024, time.October, 15)
	f.api.seed(date, true)
	_, err := f.query.Fetch(context.Background(), NewMonthKey(testUser, date))
	require.NoError(t, err)

	res := f.ctrl.Toggle(context.Background(), date)
	require.Equal(t, SettledSuccess, res.State)
	assert.False(t, res.Taken)
	assert.Equal(t, []bool{false}, f.api.upsertCalls())

	title, message := f.notifier.last()
	assert.Equal(t, "Medication status", title)
	assert.Equal(t, "Tue Oct 15 marked as not taken. Take care!", message)
}

func TestSetSendsExplicitValue(t *testing.T) {
	f := newControllerFixture(t, time.Date(2024, time.October, 20, 9, 0, 0, 0, time.UTC))
	date := day(2024, time.October, 15)
	f.api.seed(date, true)

	res := f.ctrl.Set(context.Background(), date, true)
	require.Equal(t, SettledSuccess, res.State)
	assert.Equal(t, []bool{true}, f.api.upsertCalls())
}

func TestToggleFailureRollsBack(t *testing.T) {
	f := newControllerFixture(t, time.Date(2024, time.October, 20, 9, 0, 0, 0, time.UTC))
	date := day(2024, time.October, 15)
	key := NewMonthKey(testUser, date)
	f.api.seed(day(2024, time.October, 14), true)
	_, err := f.query.Fetch(context.Background(), key)
	require.NoError(t, err)
	before, _ := f.cache.Peek(key)

	f.api.upsertErr = errors.New("connection refused")
	res := f.ctrl.Toggle(context.Background(), date)

	assert.Equal(t, SettledFailure, res.State)
	assert.EqualError(t, res.Err, "connection refused")
	after, ok := f.cache.Read(key)
	require.True(t, ok)
	assert.Equal(t, before, after)
	assert.False(t, f.cache.TakenOn(key, date))

	assert.Equal(t, []MutationState{PendingOptimistic, SettledFailure}, f.states())
	assert.Equal(t, SettledFailure, f.ctrl.State(date))
	title, message := f.notifier.last()
	assert.Equal(t, "Error", title)
	assert.Equal(t, "Failed to update the medication status for Tue Oct 15. Please try again.", message)
	assert.Equal(t, 1, f.notifier.errors)
}

func TestToggleFailureOnUncachedMonth(t *testing.T) {
	f := newControllerFixture(t, time.Date(2024, time.October, 20, 9, 0, 0, 0, time.UTC))
	date := day(2024, time.March, 3)
	f.api.upsertErr = errors.New("connection refused")

	res := f.ctrl.Toggle(context.Background(), date)
	assert.Equal(t, SettledFailure, res.State)
	assert.True(t, res.Taken, "first toggle of an empty day asks for taken")

	_, ok := f.cache.Peek(NewMonthKey(testUser, date))
	assert.False(t, ok, "rollback restores the month's absence")
}

func TestToggleSuccessInvalidatesEveryMonth(t *testing.T) {
	f := newControllerFixture(t, time.Date(2024, time.October, 20, 9, 0, 0, 0, time.UTC))
	oct := october()
	require.NoError(t, f.query.Prefetch(context.Background(), oct))

	res := f.ctrl.Toggle(context.Background(), day(2024, time.October, 2))
	require.Equal(t, SettledSuccess, res.State)

	assert.True(t, f.cache.IsStale(oct.Add(-1)))
	assert.True(t, f.cache.IsStale(oct.Add(1)))
}

func TestStateIsIdleBeforeAnyToggle(t *testing.T) {
	f := newControllerFixture(t, time.Now())
	assert.Equal(t, Idle, f.ctrl.State(day(2024, time.October, 1)))
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "pending", PendingOptimistic.String())
}

// holdUpserts makes each of the next n upserts wait for its own channel.
func (f *controllerFixture) holdUpserts(n int) []chan struct{} {
	gates := make([]chan struct{}, n)
	for i := range gates {
		gates[i] = make(chan struct{})
	}
	f.api.upsertGates = gates
	f.api.upsertStarted = make(chan struct{}, n)
	return gates
}

// startToggle runs Toggle in the background and returns once its optimistic
// patch is in the cache and the request is in flight.
func (f *controllerFixture) startToggle(date civil.Date) <-chan MutationResult {
	done := make(chan MutationResult, 1)
	go func() { done <- f.ctrl.Toggle(context.Background(), date) }()
	<-f.api.upsertStarted
	return done
}

func TestOverlappingFailedTogglesRollBack(t *testing.T) {
	d10 := day(2024, time.October, 10)
	d11 := day(2024, time.October, 11)

	tests := []struct {
		name   string
		first  civil.Date
		second civil.Date
		order  []int // which toggle's response arrives first
	}{
		{name: "earlier toggle settles first", first: d10, second: d11, order: []int{0, 1}},
		{name: "later toggle settles first", first: d10, second: d11, order: []int{1, 0}},
		{name: "same day twice", first: d10, second: d10, order: []int{0, 1}},
		{name: "same day twice, reversed", first: d10, second: d10, order: []int{1, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newControllerFixture(t, time.Date(2024, time.October, 20, 9, 0, 0, 0, time.UTC))
			key := october()
			_, err := f.query.Fetch(context.Background(), key)
			require.NoError(t, err)

			f.api.upsertErrs = map[civil.Date]error{d10: errors.New("connection refused"), d11: errors.New("connection refused")}
			gates := f.holdUpserts(2)
			results := []<-chan MutationResult{f.startToggle(tt.first), f.startToggle(tt.second)}

			for _, i := range tt.order {
				close(gates[i])
				res := <-results[i]
				assert.Equal(t, SettledFailure, res.State)
			}
			f.query.Wait()

			logs, ok := f.cache.Read(key)
			require.True(t, ok, "the month is refetched once both toggles settle")
			assert.Empty(t, logs, "nothing was saved, so nothing may show as taken")
			assert.False(t, f.cache.TakenOn(key, d10))
			assert.False(t, f.cache.TakenOn(key, d11))
			assert.Equal(t, 2, f.notifier.errors)
		})
	}
}

func TestFailedToggleKeepsOtherPendingPatch(t *testing.T) {
	f := newControllerFixture(t, time.Date(2024, time.October, 20, 9, 0, 0, 0, time.UTC))
	key := october()
	d10 := day(2024, time.October, 10)
	d11 := day(2024, time.October, 11)
	_, err := f.query.Fetch(context.Background(), key)
	require.NoError(t, err)

	f.api.upsertErrs = map[civil.Date]error{d10: errors.New("connection refused")}
	gates := f.holdUpserts(2)
	first := f.startToggle(d10)
	second := f.startToggle(d11)

	close(gates[0])
	assert.Equal(t, SettledFailure, (<-first).State)
	assert.False(t, f.cache.TakenOn(key, d10))
	assert.True(t, f.cache.TakenOn(key, d11), "the still pending toggle keeps its patch")

	close(gates[1])
	assert.Equal(t, SettledSuccess, (<-second).State)
	f.query.Wait()

	logs, ok := f.cache.Read(key)
	require.True(t, ok)
	require.Len(t, logs, 1)
	assert.Equal(t, d11, logs[0].Day())
	assert.False(t, logs[0].IsPlaceholder())
}

func TestRefetchWaitsForLastPendingToggle(t *testing.T) {
	f := newControllerFixture(t, time.Date(2024, time.October, 20, 9, 0, 0, 0, time.UTC))
	key := october()
	d10 := day(2024, time.October, 10)
	d11 := day(2024, time.October, 11)
	_, err := f.query.Fetch(context.Background(), key)
	require.NoError(t, err)

	gates := f.holdUpserts(2)
	first := f.startToggle(d10)
	second := f.startToggle(d11)

	close(gates[0])
	assert.Equal(t, SettledSuccess, (<-first).State)
	f.query.Wait()

	assert.Equal(t, 1, f.api.listCalls(), "no refetch while the second toggle is pending")
	logs, _ := f.cache.Peek(key)
	require.Len(t, logs, 2)
	assert.True(t, logs[1].IsPlaceholder(), "the pending patch is still shown")
	assert.True(t, f.cache.TakenOn(key, d10))

	close(gates[1])
	assert.Equal(t, SettledSuccess, (<-second).State)
	f.query.Wait()

	assert.Equal(t, 2, f.api.listCalls())
	logs, ok := f.cache.Read(key)
	require.True(t, ok)
	require.Len(t, logs, 2)
	for _, l := range logs {
		assert.True(t, l.Taken)
		assert.False(t, l.IsPlaceholder())
	}
}

func TestSuccessReloadsActiveMonth(t *testing.T) {
	f := newControllerFixture(t, time.Date(2024, time.October, 20, 9, 0, 0, 0, time.UTC))
	oct := october()
	nov := oct.Add(1)
	_, err := f.query.Fetch(context.Background(), nov)
	require.NoError(t, err)
	f.query.SetActive(nov)

	res := f.ctrl.Toggle(context.Background(), day(2024, time.October, 2))
	require.Equal(t, SettledSuccess, res.State)
	f.query.Wait()

	_, ok := f.cache.Read(nov)
	assert.True(t, ok, "the displayed month is refetched after the invalidation")
	_, ok = f.cache.Read(oct)
	assert.True(t, ok)
}
