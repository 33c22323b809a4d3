// Package progress persists per-episode resume points.
package progress

import (
	"encoding/json"
	"errors"

	log "github.com/sirupsen/logrus"

	"github.com/bryan-buckman/talkshelf/internal/database"
	"github.com/bryan-buckman/talkshelf/internal/model"
)

// Store reads and writes PlaybackRecords under "<id>-progress".
type Store struct {
	kv database.Store
}

// New wraps kv.
func New(kv database.Store) *Store {
	return &Store{kv: kv}
}

// Load returns the stored record for id. A missing or unreadable record yields
// (zero, false); read failures are logged, never returned.
func (s *Store) Load(id int64) (model.PlaybackRecord, bool) {
	key := model.ProgressKey(id)
	raw, err := s.kv.Get(key)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			log.WithError(err).WithField("key", key).Warn("failed to read progress")
		}
		return model.PlaybackRecord{}, false
	}

	var rec model.PlaybackRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		log.WithError(err).WithField("key", key).Warn("malformed progress record")
		return model.PlaybackRecord{}, false
	}
	return Clamp(rec), true
}

// Save overwrites the record for id. Failures are logged.
func (s *Store) Save(id int64, rec model.PlaybackRecord) {
	key := model.ProgressKey(id)
	data, err := json.Marshal(Clamp(rec))
	if err != nil {
		log.WithError(err).WithField("key", key).Error("failed to encode progress")
		return
	}
	if err := s.kv.Set(key, string(data)); err != nil {
		log.WithError(err).WithField("key", key).Warn("failed to write progress")
	}
}

// Clamp keeps PlayedSeconds within [0, Duration] once the duration is known.
func Clamp(rec model.PlaybackRecord) model.PlaybackRecord {
	if rec.PlayedSeconds < 0 {
		rec.PlayedSeconds = 0
	}
	if rec.Duration < 0 {
		rec.Duration = 0
	}
	if rec.Duration > 0 && rec.PlayedSeconds > rec.Duration {
		rec.PlayedSeconds = rec.Duration
	}
	return rec
}
