// Package favorites keeps the listener's favorite episode set.
package favorites

import (
	"encoding/json"
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/bryan-buckman/talkshelf/internal/database"
	"github.com/bryan-buckman/talkshelf/internal/model"
)

// ChangeFunc is called after a toggle with the episode id and its new membership.
type ChangeFunc func(id int64, favorite bool)

// Store is the favorite set persisted under model.FavoritesKey.
type Store struct {
	kv database.Store

	mu        sync.Mutex
	ids       []int64
	callbacks []ChangeFunc
}

// New loads the persisted set from kv.
func New(kv database.Store) *Store {
	s := &Store{kv: kv}
	s.Reload()
	return s
}

// Reload re-reads the persisted set, picking up writes from other sessions.
func (s *Store) Reload() {
	ids := s.read()
	s.mu.Lock()
	s.ids = ids
	s.mu.Unlock()
}

// IsFavorite reports membership of id.
func (s *Store) IsFavorite(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return indexOf(s.ids, id) >= 0
}

// IDs returns a copy of the set in insertion order.
func (s *Store) IDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.ids...)
}

// OnChange registers fn to run after every toggle.
func (s *Store) OnChange(fn ChangeFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = append(s.callbacks, fn)
}

// Toggle flips membership of id, persists the whole set and returns the new membership.
func (s *Store) Toggle(id int64) bool {
	s.mu.Lock()
	current := s.read()
	next := make([]int64, 0, len(current)+1)
	favorite := true
	for _, v := range current {
		if v == id {
			favorite = false
			continue
		}
		next = append(next, v)
	}
	if favorite {
		next = append(next, id)
	}
	s.write(next)
	s.ids = next
	callbacks := append([]ChangeFunc(nil), s.callbacks...)
	s.mu.Unlock()

	for _, fn := range callbacks {
		fn(id, favorite)
	}
	return favorite
}

func (s *Store) read() []int64 {
	raw, err := s.kv.Get(model.FavoritesKey)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			log.WithError(err).Warn("failed to read favorites")
		}
		return nil
	}
	var ids []int64
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		log.WithError(err).Warn("malformed favorites")
		return nil
	}
	return ids
}

func (s *Store) write(ids []int64) {
	if ids == nil {
		ids = []int64{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		log.WithError(err).Error("failed to encode favorites")
		return
	}
	if err := s.kv.Set(model.FavoritesKey, string(data)); err != nil {
		log.WithError(err).Warn("failed to write favorites")
	}
}

func indexOf(ids []int64, id int64) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
