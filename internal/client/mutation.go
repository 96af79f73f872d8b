package client

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"cloud.google.com/go/civil"

	"mediTrackAPI/internal/types/medication"
)

type MutationState int

const (
	Idle MutationState = iota
	PendingOptimistic
	SettledSuccess
	SettledFailure
)

func (s MutationState) String() string {
	switch s {
	case Idle:
		return "idle"
	case PendingOptimistic:
		return "pending"
	case SettledSuccess:
		return "success"
	case SettledFailure:
		return "failure"
	}
	return "unknown"
}

type MutationResult struct {
	Date  civil.Date
	Taken bool
	State MutationState
	Entry *medication.Log
	Err   error
}

// Notifier surfaces the outcome of a mutation to the user. Notifications are
// dismissable messages, never blocking.
type Notifier interface {
	Success(title, message string)
	Error(title, message string)
}

// LogNotifier writes notifications through the standard logger.
type LogNotifier struct{}

func (LogNotifier) Success(title, message string) { log.Printf("%s: %s", title, message) }

func (LogNotifier) Error(title, message string) { log.Printf("ERROR %s: %s", title, message) }

type ControllerOptions struct {
	Notifier Notifier
	// Location is the display timezone; it decides which day is "today".
	Location *time.Location
	// OnTransition, when set, is called on every state change.
	OnTransition func(date civil.Date, state MutationState)
	Now          func() time.Time
}

// Controller applies day toggles optimistically: the cache shows the new value
// before the request is sent, and the toggled day is rolled back if the
// request fails. When toggles of one month overlap, the month is refetched
// once the last of them settles.
type Controller struct {
	userID string
	api    LogAPI
	cache  *Cache
	query  *Query
	opts   ControllerOptions

	mu     sync.Mutex
	locks   map[MonthKey]*sync.Mutex
	pending map[MonthKey]int
	states  map[civil.Date]MutationState
}

func NewController(userID string, api LogAPI, cache *Cache, query *Query, opts ControllerOptions) *Controller {
	if opts.Notifier == nil {
		opts.Notifier = LogNotifier{}
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Controller{
		userID: userID,
		api:    api,
		cache:  cache,
		query:  query,
		opts:   opts,
		locks:   make(map[MonthKey]*sync.Mutex),
		pending: make(map[MonthKey]int),
		states:  make(map[civil.Date]MutationState),
	}
}

// Toggle flips the taken value the cache currently shows for date. A day with
// no log counts as not taken, so the first toggle marks it taken. It blocks
// until the request settles; the optimistic patch is visible in the cache
// before the request is sent.
func (c *Controller) Toggle(ctx context.Context, date civil.Date) MutationResult {
	return c.mutate(ctx, date, func(current bool) bool { return !current })
}

// Set marks date with an explicit value, through the same optimistic lifecycle.
func (c *Controller) Set(ctx context.Context, date civil.Date, taken bool) MutationResult {
	return c.mutate(ctx, date, func(bool) bool { return taken })
}

// State is the last state of the mutation for date, Idle if none ran.
func (c *Controller) State(date civil.Date) MutationState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.states[date]
}

func (c *Controller) mutate(ctx context.Context, date civil.Date, next func(current bool) bool) MutationResult {
	key := NewMonthKey(c.userID, date)
	lock := c.monthLock(key)

	// snapshot and patch must not interleave with another toggle of this month
	lock.Lock()
	c.query.Hold(key)
	overlapping := c.begin(key)
	snapshot := c.cache.Snapshot(key)
	taken := next(c.cache.TakenOn(key, date))
	c.cache.Patch(key, date, taken)
	lock.Unlock()
	c.transition(date, PendingOptimistic)

	entry, err := c.api.UpsertLog(ctx, c.userID, date, taken)
	if err != nil {
		lock.Lock()
		c.cache.Revert(key, date, taken, snapshot)
		pending := c.end(key)
		if overlapping || pending > 0 {
			// the snapshot may carry another toggle's unconfirmed patch
			c.cache.Invalidate(key.String())
		}
		c.query.Release(key)
		lock.Unlock()
		if pending == 0 && c.cache.IsStale(key) {
			c.query.Load(key)
		}
		c.transition(date, SettledFailure)

		log.Printf("Controller: update %s failed: %v", date, err)
		c.opts.Notifier.Error("Error",
			fmt.Sprintf("Failed to update the medication status for %s. Please try again.", c.label(date)))
		return MutationResult{Date: date, Taken: taken, State: SettledFailure, Err: err}
	}

	lock.Lock()
	c.end(key)
	c.query.Release(key)
	lock.Unlock()
	c.cache.Invalidate(medication.Kind)
	c.reload(key)
	c.transition(date, SettledSuccess)

	title := "Medication status"
	if date == civil.DateOf(c.opts.Now().In(c.opts.Location)) {
		title = "Today's medication"
	}
	message := fmt.Sprintf("%s marked as not taken. Take care!", c.label(date))
	if taken {
		message = fmt.Sprintf("%s marked as taken. Great job!", c.label(date))
	}
	c.opts.Notifier.Success(title, message)

	return MutationResult{Date: date, Taken: taken, State: SettledSuccess, Entry: entry}
}

// reload refetches the toggled month and the displayed one. A month still
// held by another pending toggle is refetched when that toggle settles.
func (c *Controller) reload(key MonthKey) {
	c.query.Load(key)
	if active := c.query.Active(); active.UserID != "" && active != key {
		c.query.Load(active)
	}
}

// begin counts a mutation of key as pending and reports whether another one
// already was.
func (c *Controller) begin(key MonthKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending[key]++
	return c.pending[key] > 1
}

// end settles a mutation of key and returns how many are still pending.
func (c *Controller) end(key MonthKey) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending[key]--
	n := c.pending[key]
	if n <= 0 {
		delete(c.pending, key)
	}
	return n
}

func (c *Controller) monthLock(key MonthKey) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.locks[key]
	if !ok {
		l = &sync.Mutex{}
		c.locks[key] = l
	}
	return l
}

func (c *Controller) transition(date civil.Date, state MutationState) {
	c.mu.Lock()
	c.states[date] = state
	c.mu.Unlock()

	if c.opts.OnTransition != nil {
		c.opts.OnTransition(date, state)
	}
}

func (c *Controller) label(date civil.Date) string {
	return date.In(time.UTC).Format("Mon Jan 2")
}
