package sessions

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	vals []any
	err  error
}

func (r row) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.vals[i].(string)
		case *time.Time:
			*p = r.vals[i].(time.Time)
		}
	}
	return nil
}

// fakeDB answers the store's three statements from a map.
type fakeDB struct {
	rows    map[string][]any
	failGet error
	execs   []string
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, sql)
	switch {
	case strings.HasPrefix(sql, "INSERT"):
		f.rows[args[0].(string)] = []any{args[0], args[1], args[2], args[3], time.Now()}
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	case strings.HasPrefix(sql, "DELETE"):
		delete(f.rows, args[0].(string))
		return pgconn.NewCommandTag("DELETE 1"), nil
	}
	return pgconn.NewCommandTag("CREATE TABLE"), nil
}

func (f *fakeDB) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	if f.failGet != nil {
		return row{err: f.failGet}
	}
	vals, ok := f.rows[args[0].(string)]
	if !ok {
		return row{err: pgx.ErrNoRows}
	}
	return row{vals: vals}
}

func TestPostgresStore(t *testing.T) {
	ctx := context.Background()
	db := &fakeDB{rows: map[string][]any{}}
	require.NoError(t, EnsureSchema(ctx, db))
	st := NewPostgresStore(db)

	_, err := st.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, st.Save(ctx, &Session{ID: "s1", Subject: "u", AccessToken: "at", RefreshToken: "rt-1"}))
	got, err := st.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "rt-1", got.RefreshToken)
	assert.Equal(t, "u", got.Subject)

	require.NoError(t, st.Save(ctx, &Session{ID: "s1", RefreshToken: "rt-2"}))
	got, _ = st.Get(ctx, "s1")
	assert.Equal(t, "rt-2", got.RefreshToken)

	require.NoError(t, st.Delete(ctx, "s1"))
	_, err = st.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresStore_QueryFailure(t *testing.T) {
	cause := errors.New("conn reset")
	st := NewPostgresStore(&fakeDB{rows: map[string][]any{}, failGet: cause})

	_, err := st.Get(context.Background(), "s1")
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrNotFound)
}
