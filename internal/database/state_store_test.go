package database

import (
	"context"
	"errors"
	"testing"

	"dropcheck/internal/session"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRow struct {
	value []byte
	err   error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*[]byte)) = r.value
	return nil
}

// fakeQuerier stores rows in memory so StateStore can be exercised without
// a running Postgres.
type fakeQuerier struct {
	rows    map[[2]string][]byte
	execErr error
	lastSQL string
}

func newFakeQuerier() *fakeQuerier {
	return &fakeQuerier{rows: map[[2]string][]byte{}}
}

func (f *fakeQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	f.lastSQL = sql
	v, ok := f.rows[[2]string{args[0].(string), args[1].(string)}]
	if !ok {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{value: v}
}

func (f *fakeQuerier) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.lastSQL = sql
	if f.execErr != nil {
		return pgconn.CommandTag{}, f.execErr
	}
	key := [2]string{args[0].(string), args[1].(string)}
	switch sql {
	case putStateSQL:
		f.rows[key] = args[2].([]byte)
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	case deleteStateSQL:
		delete(f.rows, key)
		return pgconn.NewCommandTag("DELETE 1"), nil
	}
	return pgconn.CommandTag{}, errors.New("unexpected statement")
}

func TestStateStoreRoundTrip(t *testing.T) {
	q := newFakeQuerier()
	store := NewStateStore(q)
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "s1", session.KeyUserProfile)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Put(ctx, "s1", session.KeyUserProfile, []byte(`{"age":30}`)))
	assert.Equal(t, putStateSQL, q.lastSQL)

	v, ok, err := store.Get(ctx, "s1", session.KeyUserProfile)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"age":30}`, string(v))

	require.NoError(t, store.Delete(ctx, "s1", session.KeyUserProfile))
	_, ok, err = store.Get(ctx, "s1", session.KeyUserProfile)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStateStoreErrors(t *testing.T) {
	q := newFakeQuerier()
	q.execErr = errors.New("connection reset")
	store := NewStateStore(q)

	err := store.Put(context.Background(), "s1", session.KeyTestHistory, []byte(`[]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to store testHistory")
}

func TestStateStoreBacksSessionState(t *testing.T) {
	st, err := session.NewState(NewStateStore(newFakeQuerier()), session.Options{SeedDemoHistory: true})
	require.NoError(t, err)

	history, err := st.History(context.Background(), "s1")
	require.NoError(t, err)
	assert.Len(t, history, 4)
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := embedMigrations.ReadDir("migrations")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	raw, err := embedMigrations.ReadFile("migrations/" + entries[0].Name())
	require.NoError(t, err)
	for _, key := range session.Keys {
		assert.Contains(t, string(raw), "'"+key+"'")
	}
}
