// Package fake provides a manually advanced clock for tests.
package fake

import (
	"sort"
	"sync"
	"time"

	"github.com/JakeFAU/searchconsole/internal/clock"
)

// Clock is a deterministic clock.Clock. Timers fire synchronously inside
// Advance, in deadline order.
type Clock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*timer
}

type timer struct {
	owner    *Clock
	deadline time.Time
	fn       func()
	stopped  bool
}

// New returns a Clock starting at now.
func New(now time.Time) *Clock {
	return &Clock{now: now}
}

// Now returns the fake current time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc schedules f to run once the clock has been advanced by d.
func (c *Clock) AfterFunc(d time.Duration, f func()) clock.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &timer{owner: c, deadline: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward and runs every timer that came due.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	var due, pending []*timer
	for _, t := range c.timers {
		switch {
		case t.stopped:
		case !t.deadline.After(now):
			due = append(due, t)
		default:
			pending = append(pending, t)
		}
	}
	c.timers = pending
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].deadline.Before(due[j].deadline) })
	for _, t := range due {
		t.fn()
	}
}

// Pending reports how many timers are still scheduled.
func (c *Clock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

func (t *timer) Stop() bool {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	if t.stopped {
		return false
	}
	for _, pending := range t.owner.timers {
		if pending == t {
			t.stopped = true
			return true
		}
	}
	return false
}
