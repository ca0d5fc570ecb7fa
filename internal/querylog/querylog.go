// Package querylog records search queries on a side channel for analytics.
// Logging is never on the critical path: callers ignore Log errors.
package querylog

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Entry is one logged search.
type Entry struct {
	ID          string        `json:"id"`
	Query       string        `json:"query"`
	UserID      string        `json:"userId,omitempty"`
	Kind        string        `json:"kind"`
	Page        int           `json:"page"`
	Size        int           `json:"size"`
	TopK        int           `json:"topK,omitempty"`
	ResultCount int           `json:"resultCount"`
	Cached      bool          `json:"cached"`
	Latency     time.Duration `json:"latencyNs"`
	Timestamp   time.Time     `json:"timestamp"`
}

// Logger accepts query log entries.
type Logger interface {
	Log(ctx context.Context, e Entry) error
	Close() error
}

// Noop discards entries.
type Noop struct{}

// Log does nothing.
func (Noop) Log(context.Context, Entry) error { return nil }

// Close does nothing.
func (Noop) Close() error { return nil }

// Zap writes entries to a zap logger at info level.
type Zap struct {
	logger *zap.Logger
}

// NewZap returns a Logger that writes through logger.
func NewZap(logger *zap.Logger) *Zap {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Zap{logger: logger}
}

// Log writes e as one structured line.
func (z *Zap) Log(_ context.Context, e Entry) error {
	z.logger.Info("search query",
		zap.String("query_id", e.ID),
		zap.String("query", e.Query),
		zap.String("kind", e.Kind),
		zap.String("user_id", e.UserID),
		zap.Int("page", e.Page),
		zap.Int("size", e.Size),
		zap.Int("top_k", e.TopK),
		zap.Int("results", e.ResultCount),
		zap.Bool("cached", e.Cached),
		zap.Duration("latency", e.Latency),
	)
	return nil
}

// Close flushes nothing; the zap logger is owned by the caller.
func (z *Zap) Close() error { return nil }
