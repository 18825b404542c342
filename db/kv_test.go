package db

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()
	category := "test_samples"

	got, err := Get[sample](ctx, s, category, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, Set(ctx, s, category, "a", sample{Name: "a", Count: 1}))
	require.NoError(t, Set(ctx, s, category, "b", sample{Name: "b", Count: 2}))
	require.NoError(t, Set(ctx, s, category, "a", sample{Name: "a", Count: 3}))

	got, err = Get[sample](ctx, s, category, "a")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 3, got.Count)

	all, err := GetAll[sample](ctx, s, category)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, s.Remove(ctx, category, "a"))
	got, err = Get[sample](ctx, s, category, "a")
	require.NoError(t, err)
	assert.Nil(t, got)
	require.NoError(t, s.Remove(ctx, category, "b"))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStoreRejectsBadCategory(t *testing.T) {
	err := NewMemoryStore().SetRaw(context.Background(), "bad; drop", "k", []byte("{}"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidCategory))
	var perr *PersistenceError
	assert.True(t, errors.As(err, &perr))
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	m := NewMemoryStore()
	v := []byte(`{"name":"x"}`)
	require.NoError(t, m.SetRaw(context.Background(), "c", "k", v))
	v[2] = 'X'
	got, ok, err := m.GetRaw(context.Background(), "c", "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"name":"x"}`, string(got))
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("BETTY_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("BETTY_TEST_PG_DSN not set, skipping postgres integration test")
	}
	s, err := OpenPostgres(context.Background(), dsn)
	require.NoError(t, err)
	defer s.Close()
	exerciseStore(t, s)
}

func TestRethinkStore(t *testing.T) {
	addr := os.Getenv("BETTY_TEST_RETHINK_ADDR")
	if addr == "" {
		t.Skip("BETTY_TEST_RETHINK_ADDR not set, skipping rethinkdb integration test")
	}
	s, err := InitRethink(RethinkOptions{Address: addr, Database: "betty_test"})
	require.NoError(t, err)
	defer s.Close()
	exerciseStore(t, s)
}

func TestTableExists(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "no error", err: nil, want: false},
		{name: "already exists", err: errors.New("gorethink: Table `betty.streamers` already exists. in:\nr.DB(\"betty\").TableCreate(\"streamers\")"), want: true},
		{name: "connection lost", err: errors.New("gorethink: connection closed"), want: false},
		{name: "timeout", err: errors.New("read tcp 127.0.0.1:28015: i/o timeout"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tableExists(tt.err))
		})
	}
}

func TestRethinkTableCacheOnlyAfterCreate(t *testing.T) {
	addr := os.Getenv("BETTY_TEST_RETHINK_ADDR")
	if addr == "" {
		t.Skip("BETTY_TEST_RETHINK_ADDR not set, skipping rethinkdb integration test")
	}
	s, err := InitRethink(RethinkOptions{Address: addr, Database: "betty_test"})
	require.NoError(t, err)

	s.ensureTable("cache_check")
	assert.True(t, s.tables["cache_check"])

	//A table that already exists is remembered as well
	delete(s.tables, "cache_check")
	s.ensureTable("cache_check")
	assert.True(t, s.tables["cache_check"])

	//Once the session is gone the create fails and nothing is cached
	require.NoError(t, s.session.Close())
	s.ensureTable("never_created")
	assert.False(t, s.tables["never_created"])
}
