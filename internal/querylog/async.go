package querylog

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrDropped is returned by Async.Log when the buffer is full or the logger
// is closed.
var ErrDropped = errors.New("query log entry dropped")

const (
	defaultAsyncBuffer  = 256
	defaultAsyncTimeout = 5 * time.Second
)

// AsyncConfig tunes an Async logger.
type AsyncConfig struct {
	// Buffer is the number of entries queued before new ones are dropped.
	Buffer int
	// Timeout bounds each delivery to the wrapped logger.
	Timeout time.Duration
	Logger  *zap.Logger
}

// Async hands entries to a background goroutine so Log never waits on the
// wrapped logger. Close drains the queue before closing the wrapped logger.
type Async struct {
	inner   Logger
	timeout time.Duration
	logger  *zap.Logger

	mu      sync.RWMutex
	closed  bool
	entries chan Entry
	done    chan struct{}
}

// NewAsync starts the delivery goroutine for inner.
func NewAsync(inner Logger, cfg AsyncConfig) *Async {
	if cfg.Buffer <= 0 {
		cfg.Buffer = defaultAsyncBuffer
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultAsyncTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	a := &Async{
		inner:   inner,
		timeout: cfg.Timeout,
		logger:  cfg.Logger,
		entries: make(chan Entry, cfg.Buffer),
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

// Log queues e without blocking.
func (a *Async) Log(_ context.Context, e Entry) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrDropped
	}
	select {
	case a.entries <- e:
		return nil
	default:
		return ErrDropped
	}
}

func (a *Async) run() {
	defer close(a.done)
	for e := range a.entries {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		if err := a.inner.Log(ctx, e); err != nil {
			a.logger.Debug("query log delivery failed", zap.String("query_id", e.ID), zap.Error(err))
		}
		cancel()
	}
}

// Close stops accepting entries, delivers the queued ones and closes the
// wrapped logger.
func (a *Async) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	close(a.entries)
	a.mu.Unlock()

	<-a.done
	return a.inner.Close()
}
