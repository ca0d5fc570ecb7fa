package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/searchconsole/internal/session"
)

func TestSessionStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewSessionStore()

	rec, err := s.Load(ctx)
	require.NoError(t, err)
	require.Nil(t, rec)

	in := session.Record{
		AccessToken:  "T1",
		RefreshToken: "R1",
		User:         session.UserInfo{Username: "alice", Authorities: []string{"ROLE_ADMIN"}, Enabled: true},
	}
	require.NoError(t, s.Save(ctx, in))

	// Mutating the caller's copy must not leak into the store.
	in.User.Authorities[0] = "ROLE_USER"

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, "T1", got.AccessToken)
	require.Equal(t, []string{"ROLE_ADMIN"}, got.User.Authorities)

	require.NoError(t, s.Clear(ctx))
	got, err = s.Load(ctx)
	require.NoError(t, err)
	require.Nil(t, got)
	require.NoError(t, s.Clear(ctx))
}
