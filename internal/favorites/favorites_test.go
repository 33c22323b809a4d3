package favorites

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryan-buckman/talkshelf/internal/database"
)

type failingStore struct{ *database.Memory }

func (failingStore) Set(string, string) error { return errors.New("quota exceeded") }

func TestToggle_RoundTrip(t *testing.T) {
	kv := database.NewMemory()
	s := New(kv)

	assert.False(t, s.IsFavorite(7))
	assert.True(t, s.Toggle(7))
	assert.True(t, s.IsFavorite(7))

	raw, err := kv.Get("favoriteItems")
	require.NoError(t, err)
	assert.JSONEq(t, `[7]`, raw)

	assert.False(t, s.Toggle(7))
	assert.False(t, s.IsFavorite(7))

	raw, err = kv.Get("favoriteItems")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, raw)
}

func TestToggle_KeepsOtherMembers(t *testing.T) {
	kv := database.NewMemory()
	require.NoError(t, kv.Set("favoriteItems", "[1,2,3]"))

	s := New(kv)
	s.Toggle(2)
	assert.Equal(t, []int64{1, 3}, s.IDs())
	s.Toggle(2)
	assert.Equal(t, []int64{1, 3, 2}, s.IDs())
}

func TestToggle_ReadsPersistedSetFirst(t *testing.T) {
	kv := database.NewMemory()
	a := New(kv)
	b := New(kv)

	a.Toggle(1)
	// b has a stale view but toggling re-reads the persisted set.
	b.Toggle(2)
	assert.Equal(t, []int64{1, 2}, b.IDs())

	assert.False(t, a.IsFavorite(2))
	a.Reload()
	assert.True(t, a.IsFavorite(2))
}

func TestOnChange(t *testing.T) {
	s := New(database.NewMemory())

	type change struct {
		id  int64
		fav bool
	}
	var got []change
	s.OnChange(func(id int64, fav bool) { got = append(got, change{id, fav}) })

	s.Toggle(5)
	s.Toggle(5)
	assert.Equal(t, []change{{5, true}, {5, false}}, got)
}

func TestMalformedSetFallsBackToEmpty(t *testing.T) {
	kv := database.NewMemory()
	require.NoError(t, kv.Set("favoriteItems", `"oops"`))

	s := New(kv)
	assert.Empty(t, s.IDs())
	assert.True(t, s.Toggle(9))
}

func TestWriteFailureStillUpdatesView(t *testing.T) {
	s := New(failingStore{database.NewMemory()})
	assert.True(t, s.Toggle(4))
	assert.True(t, s.IsFavorite(4))
}
