package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T, s Store) {
	t.Helper()

	_, err := s.Get("missing")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set("favoriteItems", "[1,2]"))
	val, err := s.Get("favoriteItems")
	require.NoError(t, err)
	assert.Equal(t, "[1,2]", val)

	// Last write wins.
	require.NoError(t, s.Set("favoriteItems", "[2]"))
	val, err = s.Get("favoriteItems")
	require.NoError(t, err)
	assert.Equal(t, "[2]", val)
}

func TestMemory(t *testing.T) {
	s := NewMemory()
	defer s.Close()
	testStore(t, s)
	assert.Equal(t, "Memory", s.DatabaseType())
}

func TestSQLite(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "talkshelf.db"))
	require.NoError(t, err)
	defer s.Close()
	testStore(t, s)
	assert.Equal(t, "SQLite", s.DatabaseType())
}

func TestSQLite_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "talkshelf.db")

	s, err := New(path)
	require.NoError(t, err)
	require.NoError(t, s.Set("7-progress", `{"playedSeconds":42,"duration":100}`))
	require.NoError(t, s.Close())

	s, err = New(path)
	require.NoError(t, err)
	defer s.Close()

	val, err := s.Get("7-progress")
	require.NoError(t, err)
	assert.JSONEq(t, `{"playedSeconds":42,"duration":100}`, val)
}

func TestBadger(t *testing.T) {
	s, err := NewBadger(t.TempDir())
	require.NoError(t, err)
	defer s.Close()
	testStore(t, s)
}

func TestScoped(t *testing.T) {
	shared := NewMemory()
	a := NewScoped(shared, "alice")
	b := NewScoped(shared, "bob")

	require.NoError(t, a.Set("favoriteItems", "[1]"))
	_, err := b.Get("favoriteItems")
	require.ErrorIs(t, err, ErrNotFound)

	raw, err := shared.Get("alice:favoriteItems")
	require.NoError(t, err)
	assert.Equal(t, "[1]", raw)

	// Closing a view leaves the shared backend usable.
	require.NoError(t, a.Close())
	require.NoError(t, b.Set("favoriteItems", "[3]"))
}

func TestOpen(t *testing.T) {
	s, err := Open(Options{})
	require.NoError(t, err)
	assert.Equal(t, "Memory", s.DatabaseType())

	s, err = Open(Options{Backend: "SQLite", Path: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	assert.Equal(t, "SQLite", s.DatabaseType())
	require.NoError(t, s.Close())

	_, err = Open(Options{Backend: "etcd"})
	assert.Error(t, err)
}
