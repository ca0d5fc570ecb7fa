package search

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/searchconsole/internal/apierr"
	"github.com/JakeFAU/searchconsole/internal/cache"
	"github.com/JakeFAU/searchconsole/internal/clock/fake"
	"github.com/JakeFAU/searchconsole/internal/gateway"
	"github.com/JakeFAU/searchconsole/internal/policy/ratelimit"
	querymem "github.com/JakeFAU/searchconsole/internal/querylog/memory"
)

type fixture struct {
	svc    *Service
	calls  *atomic.Int32
	log    *querymem.Logger
	cache  *cache.Cache
	clock  *fake.Clock
	last   *atomic.Value
	status *atomic.Int32
}

func newFixture(t *testing.T, limiter ...*ratelimit.Limiter) *fixture {
	t.Helper()
	f := &fixture{
		calls:  &atomic.Int32{},
		log:    querymem.New(),
		clock:  fake.New(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)),
		last:   &atomic.Value{},
		status: &atomic.Int32{},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		f.last.Store(r.URL.Path + "?" + r.URL.RawQuery)
		if code := f.status.Load(); code != 0 {
			w.WriteHeader(int(code))
			return
		}
		switch r.URL.Path {
		case "/suggestions":
			_ = json.NewEncoder(w).Encode([]string{"golang", "gopher"})
		case "/feedback":
			w.WriteHeader(http.StatusCreated)
		default:
			_ = json.NewEncoder(w).Encode(Response{
				Documents:    []Document{{DocumentID: 7, URL: "https://go.dev", Title: "Go"}},
				TotalResults: 1,
				TotalPages:   1,
				CurrentPage:  1,
				PageSize:     10,
			})
		}
	}))
	t.Cleanup(srv.Close)

	cfg := gateway.Config{BaseURL: srv.URL, MaxRetries: 0, Clock: f.clock}
	if len(limiter) > 0 {
		cfg.Limiter = limiter[0]
	}
	client, err := gateway.New(cfg)
	require.NoError(t, err)
	f.cache = cache.New(cache.Config{DefaultTTL: 5 * time.Minute, Clock: f.clock})
	t.Cleanup(f.cache.Close)
	f.svc, err = New(Config{
		Client:   client,
		Cache:    f.cache,
		QueryLog: f.log,
		Clock:    f.clock,
	})
	require.NoError(t, err)
	return f
}

func TestSearchEmptyQueryNeverCallsNetwork(t *testing.T) {
	f := newFixture(t)

	for _, q := range []string{"", "   "} {
		_, err := f.svc.Search(context.Background(), Params{Query: q})
		require.True(t, apierr.Is(err, apierr.KindValidation))
	}
	require.Zero(t, f.calls.Load())
	require.Empty(t, f.log.Entries())
}

func TestSearchRejectsBadPagination(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Search(context.Background(), Params{Query: "go", Page: -1, Size: 500})
	require.True(t, apierr.Is(err, apierr.KindValidation))
	require.Zero(t, f.calls.Load())
}

func TestSearchCachesAndLogs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.svc.Search(ctx, Params{Query: "  golang ", UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, resp.Documents, 1)
	require.False(t, resp.Cached)
	require.Equal(t, "/search?page=1&query=golang&size=10&topK=50", f.last.Load())

	again, err := f.svc.Search(ctx, Params{Query: "golang"})
	require.NoError(t, err)
	require.True(t, again.Cached)
	require.Equal(t, int32(1), f.calls.Load())

	entries := f.log.Entries()
	require.Len(t, entries, 2)
	require.Equal(t, "golang", entries[0].Query)
	require.Equal(t, "u1", entries[0].UserID)
	require.Equal(t, 1, entries[0].ResultCount)
	require.True(t, entries[1].Cached)

	// Cache expiry forces a fresh call.
	f.clock.Advance(5 * time.Minute)
	_, err = f.svc.Search(ctx, Params{Query: "golang"})
	require.NoError(t, err)
	require.Equal(t, int32(2), f.calls.Load())
}

func TestSearchQueryLogFailureIsSwallowed(t *testing.T) {
	f := newFixture(t)
	f.log.FailWith(errors.New("log sink down"))

	resp, err := f.svc.Search(context.Background(), Params{Query: "golang"})
	require.NoError(t, err)
	require.NotNil(t, resp)
}

func TestSearchFailureSurfacesError(t *testing.T) {
	f := newFixture(t)
	f.status.Store(http.StatusBadGateway)

	_, err := f.svc.Search(context.Background(), Params{Query: "golang"})
	require.True(t, apierr.Is(err, apierr.KindServer))
	require.Zero(t, f.cache.Size())
	require.Empty(t, f.log.Entries())
}

func TestSearchWithFilters(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.SearchWithFilters(context.Background(), Params{Query: "go", Size: 5}, Filters{Tags: []string{"lang", " ", "web"}})
	require.NoError(t, err)
	require.Equal(t, "/search/filters?page=1&query=go&size=5&tags=lang%2Cweb&topK=50", f.last.Load())
	require.Equal(t, "filters", f.log.Entries()[0].Kind)
}

func TestSearchWithCorrections(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.SearchWithCorrections(context.Background(), Params{Query: "golnag", TopK: 5})
	require.NoError(t, err)
	require.Equal(t, "/search/corrections?page=1&query=golnag&size=10&topK=5", f.last.Load())

	_, err = f.svc.SearchWithCorrections(context.Background(), Params{Query: "<script>x</script>"})
	require.True(t, apierr.Is(err, apierr.KindValidation))
}

func TestSuggestions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	got := f.svc.Suggestions(ctx, "go", "user_1")
	require.Equal(t, []string{"golang", "gopher"}, got)
	require.Equal(t, "/suggestions?prefix=go&userId=user_1", f.last.Load())

	require.Equal(t, []string{"golang", "gopher"}, f.svc.Suggestions(ctx, "go", "user_1"))
	require.Equal(t, int32(1), f.calls.Load())

	// Suggestions use the shorter TTL.
	f.clock.Advance(time.Minute)
	f.svc.Suggestions(ctx, "go", "user_1")
	require.Equal(t, int32(2), f.calls.Load())
}

func TestSuggestionsDegradeToEmpty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.Equal(t, []string{}, f.svc.Suggestions(ctx, "", "user"))
	require.Equal(t, []string{}, f.svc.Suggestions(ctx, "go", "bad user!"))
	require.Zero(t, f.calls.Load())

	f.status.Store(http.StatusInternalServerError)
	require.Equal(t, []string{}, f.svc.Suggestions(ctx, "go", "user"))
}

func TestSuggestionsSkipWhenRateLimited(t *testing.T) {
	f := newFixture(t, ratelimit.New(ratelimit.Config{DefaultRPS: 0.001, DefaultBurst: 1}))
	ctx := context.Background()

	require.Equal(t, []string{"golang", "gopher"}, f.svc.Suggestions(ctx, "go", "user_1"))

	start := time.Now()
	require.Equal(t, []string{}, f.svc.Suggestions(ctx, "gop", "user_1"))
	require.Less(t, time.Since(start), time.Second)
	require.Equal(t, int32(1), f.calls.Load())
}

func TestSubmitFeedback(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.svc.SubmitFeedback(context.Background(), Feedback{UserID: "u1", Query: "go", DocumentID: 7, IsRelevant: true}))
	require.Equal(t, "/feedback?", f.last.Load())

	err := f.svc.SubmitFeedback(context.Background(), Feedback{UserID: "", Query: "go"})
	require.True(t, apierr.Is(err, apierr.KindValidation))
}
