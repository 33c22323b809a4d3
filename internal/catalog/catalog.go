// Package catalog holds the current episode list and keeps it fresh.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/bryan-buckman/talkshelf/internal/content"
	"github.com/bryan-buckman/talkshelf/internal/model"
)

const cacheKey = "posts"

// Snapshot is the published episode list.
type Snapshot struct {
	Episodes  []model.Episode
	Source    string
	UpdatedAt time.Time
	LastError error
}

// Catalog publishes the latest episode list fetched from a content source.
// Published slices are never modified, so readers may share them.
type Catalog struct {
	source content.Source
	cache  Cache
	ttl    time.Duration

	mu       sync.RWMutex
	snapshot Snapshot
	byID     map[int64]int
}

// New creates an empty catalog. ttl bounds how long a cached list is reused.
func New(source content.Source, cache Cache, ttl time.Duration) *Catalog {
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &Catalog{
		source:   source,
		cache:    cache,
		ttl:      ttl,
		snapshot: Snapshot{Source: source.Name()},
		byID:     map[int64]int{},
	}
}

// Refresh loads the episode list, from the cache unless force is set.
// On failure the previous list stays published. It returns the episode count.
func (c *Catalog) Refresh(ctx context.Context, force bool) (int, error) {
	if !force {
		episodes, err := c.cache.Get(cacheKey)
		if err == nil {
			log.Debugf("cache hit for key: %s", cacheKey)
			c.publish(episodes, nil)
			return len(episodes), nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			log.WithError(err).Warn("episode cache read failed")
		}
	}

	episodes, err := c.source.Fetch(ctx)
	if err != nil {
		c.publish(nil, err)
		return 0, fmt.Errorf("fetch %s: %w", c.source.Name(), err)
	}
	if err := c.cache.Set(cacheKey, episodes, c.ttl); err != nil {
		log.WithError(err).Warn("episode cache write failed")
	}
	c.publish(episodes, nil)
	return len(episodes), nil
}

func (c *Catalog) publish(episodes []model.Episode, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.snapshot.UpdatedAt = time.Now()
	c.snapshot.LastError = err
	if err != nil {
		return
	}
	byID := make(map[int64]int, len(episodes))
	for i, ep := range episodes {
		if _, dup := byID[ep.ID]; !dup {
			byID[ep.ID] = i
		}
	}
	c.snapshot.Episodes = episodes
	c.byID = byID
}

// Snapshot returns the published state.
func (c *Catalog) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// Episodes returns the published list. Callers must not modify it.
func (c *Catalog) Episodes() []model.Episode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot.Episodes
}

// Lookup finds an episode by id.
func (c *Catalog) Lookup(id int64) (model.Episode, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.byID[id]
	if !ok {
		return model.Episode{}, false
	}
	return c.snapshot.Episodes[i], true
}

// Categories returns every category used by the published episodes, sorted by name.
func (c *Catalog) Categories() []model.Category {
	c.mu.RLock()
	episodes := c.snapshot.Episodes
	c.mu.RUnlock()

	seen := make(map[int64]struct{})
	var cats []model.Category
	for _, ep := range episodes {
		for _, cat := range ep.Categories {
			if _, ok := seen[cat.ID]; ok {
				continue
			}
			seen[cat.ID] = struct{}{}
			cats = append(cats, cat)
		}
	}
	sort.SliceStable(cats, func(i, j int) bool {
		return cats[i].DecodedName() < cats[j].DecodedName()
	})
	return cats
}
