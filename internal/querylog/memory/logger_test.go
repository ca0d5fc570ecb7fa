package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/searchconsole/internal/querylog"
)

func TestLoggerStoresEntries(t *testing.T) {
	t.Parallel()

	l := New()
	require.NoError(t, l.Log(context.Background(), querylog.Entry{Query: "go"}))
	require.NoError(t, l.Log(context.Background(), querylog.Entry{Query: "rust"}))

	entries := l.Entries()
	require.Len(t, entries, 2)
	require.Equal(t, "go", entries[0].Query)

	entries[0].Query = "modified"
	require.Equal(t, "go", l.Entries()[0].Query, "Entries must return a copy")
}

func TestLoggerFailWith(t *testing.T) {
	t.Parallel()

	l := New()
	boom := errors.New("boom")
	l.FailWith(boom)
	require.ErrorIs(t, l.Log(context.Background(), querylog.Entry{Query: "go"}), boom)
	require.Empty(t, l.Entries())
	require.NoError(t, l.Close())
}
