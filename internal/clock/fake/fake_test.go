package fake

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClock_AdvanceFiresDueTimersInOrder(t *testing.T) {
	t.Parallel()

	clk := New(time.Unix(0, 0))
	var order []string
	clk.AfterFunc(2*time.Second, func() { order = append(order, "second") })
	clk.AfterFunc(time.Second, func() { order = append(order, "first") })
	clk.AfterFunc(time.Minute, func() { order = append(order, "later") })

	clk.Advance(2 * time.Second)

	require.Equal(t, []string{"first", "second"}, order)
	require.Equal(t, 1, clk.Pending())
	require.Equal(t, time.Unix(2, 0), clk.Now())
}

func TestClock_StoppedTimerDoesNotFire(t *testing.T) {
	t.Parallel()

	clk := New(time.Unix(0, 0))
	fired := false
	timer := clk.AfterFunc(time.Second, func() { fired = true })
	require.True(t, timer.Stop())
	require.False(t, timer.Stop())

	clk.Advance(time.Hour)
	require.False(t, fired)
}
