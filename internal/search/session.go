package search

import (
	"context"
	"time"

	"github.com/JakeFAU/searchconsole/internal/clock"
)

// Session is one user's interactive search box: each new search or
// suggestion request cancels the previous one, and suggestion fetches wait
// for typing to pause.
type Session struct {
	svc      *Service
	searches Latest[*Response]
	suggests Latest[[]string]
	debounce *Debouncer
}

// NewSession starts a Session. debounce is the pause required before a
// suggestion fetch; clk drives the debounce timer.
func (s *Service) NewSession(clk clock.Clock, debounce time.Duration) *Session {
	if clk == nil {
		clk = s.clock
	}
	return &Session{svc: s, debounce: NewDebouncer(clk, debounce)}
}

// Search runs a search, cancelling the previous one still in flight. A search
// overtaken by a newer one returns ErrSuperseded.
func (ss *Session) Search(ctx context.Context, p Params) (*Response, error) {
	return ss.searches.Do(ctx, func(ctx context.Context) (*Response, error) {
		return ss.svc.Search(ctx, p)
	})
}

// Suggest fetches suggestions immediately, cancelling the previous fetch.
func (ss *Session) Suggest(ctx context.Context, prefix, userID string) ([]string, error) {
	return ss.suggests.Do(ctx, func(ctx context.Context) ([]string, error) {
		return ss.svc.Suggestions(ctx, prefix, userID), nil
	})
}

// SuggestDebounced fetches suggestions once typing pauses and hands them to
// deliver. Superseded results are dropped.
func (ss *Session) SuggestDebounced(ctx context.Context, prefix, userID string, deliver func([]string)) {
	ss.debounce.Trigger(func() {
		out, err := ss.Suggest(ctx, prefix, userID)
		if err != nil {
			return
		}
		deliver(out)
	})
}

// Close cancels everything in flight and drops pending suggestion fetches.
func (ss *Session) Close() {
	ss.debounce.Stop()
	ss.searches.Cancel()
	ss.suggests.Cancel()
}
