package progress

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryan-buckman/talkshelf/internal/database"
	"github.com/bryan-buckman/talkshelf/internal/model"
)

type brokenStore struct{ *database.Memory }

func (brokenStore) Get(string) (string, error) { return "", errors.New("storage disabled") }
func (brokenStore) Set(string, string) error  { return errors.New("quota exceeded") }

func TestStore_SaveLoad(t *testing.T) {
	kv := database.NewMemory()
	s := New(kv)

	_, ok := s.Load(42)
	assert.False(t, ok)

	s.Save(42, model.PlaybackRecord{PlayedSeconds: 42, Duration: 100, Favorite: true})

	raw, err := kv.Get("42-progress")
	require.NoError(t, err)
	assert.JSONEq(t, `{"playedSeconds":42,"duration":100,"favorite":true}`, raw)

	rec, ok := s.Load(42)
	require.True(t, ok)
	assert.Equal(t, model.PlaybackRecord{PlayedSeconds: 42, Duration: 100, Favorite: true}, rec)
}

func TestStore_MalformedRecord(t *testing.T) {
	kv := database.NewMemory()
	require.NoError(t, kv.Set("3-progress", "{not json"))

	_, ok := New(kv).Load(3)
	assert.False(t, ok)
}

func TestStore_StorageFailuresAreSwallowed(t *testing.T) {
	s := New(brokenStore{database.NewMemory()})
	s.Save(1, model.PlaybackRecord{PlayedSeconds: 1, Duration: 2})
	_, ok := s.Load(1)
	assert.False(t, ok)
}

func TestClamp(t *testing.T) {
	tests := []struct {
		name string
		in   model.PlaybackRecord
		want model.PlaybackRecord
	}{
		{"unknown duration keeps position", model.PlaybackRecord{PlayedSeconds: 12}, model.PlaybackRecord{PlayedSeconds: 12}},
		{"negative position", model.PlaybackRecord{PlayedSeconds: -3, Duration: 10}, model.PlaybackRecord{Duration: 10}},
		{"past the end", model.PlaybackRecord{PlayedSeconds: 130, Duration: 100}, model.PlaybackRecord{PlayedSeconds: 100, Duration: 100}},
		{"in range", model.PlaybackRecord{PlayedSeconds: 50, Duration: 100}, model.PlaybackRecord{PlayedSeconds: 50, Duration: 100}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clamp(tt.in))
		})
	}
}
