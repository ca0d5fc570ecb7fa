package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/searchconsole/internal/session"
)

func TestSaveUpsertsWholeRecord(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "", "")
	require.NoError(t, err)

	rec := session.Record{
		AccessToken:  "T1",
		RefreshToken: "R1",
		User:         session.UserInfo{Username: "alice", Authorities: []string{"ROLE_ADMIN"}, Enabled: true},
	}

	mock.ExpectExec("INSERT INTO console_sessions").
		WithArgs(DefaultKey, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Save(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadDecodesRecord(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "sessions", "ops")
	require.NoError(t, err)

	rows := mock.NewRows([]string{"record"}).
		AddRow([]byte(`{"accessToken":"T1","refreshToken":"R1","user":{"username":"alice","authorities":["ROLE_ADMIN"],"enabled":true}}`))
	mock.ExpectQuery("SELECT record FROM sessions").WithArgs("ops").WillReturnRows(rows)

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "T1", got.AccessToken)
	require.Equal(t, "alice", got.User.Username)
	require.Equal(t, []string{"ADMIN"}, got.User.Roles())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadMissingRowReturnsNil(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "", "")
	require.NoError(t, err)

	mock.ExpectQuery("SELECT record FROM console_sessions").
		WithArgs(DefaultKey).
		WillReturnRows(mock.NewRows([]string{"record"}))

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Nil(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClearDeletesRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "", "")
	require.NoError(t, err)

	mock.ExpectExec("DELETE FROM console_sessions").
		WithArgs(DefaultKey).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, store.Clear(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSavePropagatesErrors(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "", "")
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO console_sessions").
		WithArgs(DefaultKey, pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	err = store.Save(context.Background(), session.Record{AccessToken: "T1"})
	require.ErrorContains(t, err, "upsert session")
}

func TestNewWithPoolValidation(t *testing.T) {
	t.Parallel()

	_, err := NewWithPool(nil, "", "")
	require.Error(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	_, err = NewWithPool(mock, "bad;table", "")
	require.Error(t, err)
}

func TestNewRequiresDSN(t *testing.T) {
	t.Parallel()
	_, err := New(context.Background(), Config{})
	require.Error(t, err)
}

func TestMigrateDSN(t *testing.T) {
	t.Parallel()
	require.Equal(t, "pgx5://u:p@localhost/db", migrateDSN("postgres://u:p@localhost/db"))
	require.Equal(t, "pgx5://localhost/db", migrateDSN("postgresql://localhost/db"))
}
