package client

import (
	"context"
	"sync"
	"time"
)

// DefaultDebounce is the pause after the last keystroke before a username
// availability request is actually issued.
const DefaultDebounce = 500 * time.Millisecond

// Availability is the outcome of a username availability query.
type Availability struct {
	Username  string
	Available bool
	Message   string
}

// CheckFunc performs the remote availability lookup.
type CheckFunc func(ctx context.Context, username string) (Availability, error)

// AvailabilityChecker debounces and coalesces username availability queries
// while a visitor is typing. Each Query supersedes the previous one: the
// in-flight request is cancelled and a stale response that still completes is
// discarded, so only the most recent query's result reaches the callback.
type AvailabilityChecker struct {
	check    CheckFunc
	onResult func(Availability, error)
	delay    time.Duration

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
}

// CheckerOption customises an AvailabilityChecker.
type CheckerOption func(*AvailabilityChecker)

// WithDebounce overrides the debounce interval.
func WithDebounce(d time.Duration) CheckerOption {
	return func(c *AvailabilityChecker) {
		if d >= 0 {
			c.delay = d
		}
	}
}

// NewAvailabilityChecker wires a checker to a lookup function and a result
// callback. The callback runs on the checker's goroutine and only ever
// receives results for the latest query.
func NewAvailabilityChecker(check CheckFunc, onResult func(Availability, error), opts ...CheckerOption) *AvailabilityChecker {
	checker := &AvailabilityChecker{
		check:    check,
		onResult: onResult,
		delay:    DefaultDebounce,
	}
	for _, opt := range opts {
		opt(checker)
	}
	return checker
}

// Query schedules an availability lookup for the username, superseding any
// pending or in-flight lookup. An empty username only cancels outstanding work.
func (c *AvailabilityChecker) Query(ctx context.Context, username string) {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	if c.cancel != nil {
		c.cancel()
	}

	if username == "" {
		c.cancel = nil
		c.mu.Unlock()
		return
	}

	queryCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	go c.run(queryCtx, cancel, gen, username)
}

// Stop cancels any pending or in-flight query.
func (c *AvailabilityChecker) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *AvailabilityChecker) run(ctx context.Context, cancel context.CancelFunc, gen uint64, username string) {
	defer cancel()

	if c.delay > 0 {
		timer := time.NewTimer(c.delay)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}

	result, err := c.check(ctx, username)
	if ctx.Err() != nil {
		return
	}

	c.mu.Lock()
	latest := gen == c.gen
	c.mu.Unlock()
	if !latest {
		return
	}

	if c.onResult != nil {
		c.onResult(result, err)
	}
}
