package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiter_WaitDelaysSecondCall(t *testing.T) {
	t.Parallel()

	// 10 RPS with burst 1: the second token arrives after ~100ms.
	l := New(Config{DefaultRPS: 10, DefaultBurst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "query-service"))

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "query-service"))
	require.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestLimiter_ServicesAreIndependent(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 0.001, DefaultBurst: 1})
	require.True(t, l.Allow("crawler-service"))
	require.False(t, l.Allow("crawler-service"))
	require.True(t, l.Allow("indexer-service"))
}

func TestLimiter_DisabledWhenRateNotPositive(t *testing.T) {
	t.Parallel()

	l := New(Config{})
	for i := 0; i < 100; i++ {
		require.True(t, l.Allow("query-service"))
	}
}

func TestLimiter_WaitHonoursContext(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 0.001, DefaultBurst: 1})
	require.NoError(t, l.Wait(context.Background(), "auth-server"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.Wait(ctx, "auth-server")
	require.Error(t, err)
}

func TestLimiter_NilIsPermissive(t *testing.T) {
	t.Parallel()

	var l *Limiter
	require.True(t, l.Allow("x"))
	require.NoError(t, l.Wait(context.Background(), "x"))
}
