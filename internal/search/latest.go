package search

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/JakeFAU/searchconsole/internal/clock"
)

// ErrSuperseded is returned by Latest.Do when a newer call started before
// this one finished. Its result must not be shown.
var ErrSuperseded = errors.New("superseded by a newer request")

// Latest serializes a stream of requests so only the newest one wins.
// Starting a call cancels the one in flight.
type Latest[T any] struct {
	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

// Do runs fn, cancelling any earlier call still in flight. A call overtaken by
// a newer one returns ErrSuperseded regardless of its own outcome.
func (l *Latest[T]) Do(ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	l.mu.Lock()
	l.seq++
	mine := l.seq
	if l.cancel != nil {
		l.cancel()
	}
	callCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.mu.Unlock()

	v, err := fn(callCtx)

	l.mu.Lock()
	current := l.seq == mine
	if current {
		l.cancel = nil
	}
	l.mu.Unlock()
	cancel()

	if !current {
		var zero T
		return zero, ErrSuperseded
	}
	return v, err
}

// Cancel aborts the call in flight, if any.
func (l *Latest[T]) Cancel() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
}

// Debouncer delays an action until triggers stop arriving for the configured
// interval. Only the last triggered action runs.
type Debouncer struct {
	clock clock.Clock
	delay time.Duration

	mu    sync.Mutex
	seq   uint64
	timer clock.Timer
}

// NewDebouncer builds a Debouncer. A non-positive delay runs actions immediately.
func NewDebouncer(clk clock.Clock, delay time.Duration) *Debouncer {
	return &Debouncer{clock: clk, delay: delay}
}

// Trigger schedules fn, replacing any action still waiting.
func (d *Debouncer) Trigger(fn func()) {
	if d.delay <= 0 {
		d.Stop()
		fn()
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	mine := d.seq
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = d.clock.AfterFunc(d.delay, func() {
		d.mu.Lock()
		current := d.seq == mine
		if current {
			d.timer = nil
		}
		d.mu.Unlock()
		if current {
			fn()
		}
	})
}

// Stop drops the waiting action, if any.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
