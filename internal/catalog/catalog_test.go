package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryan-buckman/talkshelf/internal/model"
)

type fakeSource struct {
	episodes []model.Episode
	err      error
	calls    int
}

func (s *fakeSource) Name() string { return "fake" }

func (s *fakeSource) Fetch(context.Context) ([]model.Episode, error) {
	s.calls++
	return s.episodes, s.err
}

func sampleEpisodes() []model.Episode {
	return []model.Episode{
		{ID: 1, Title: "Hello World", Categories: []model.Category{{ID: 5, Name: "Talks"}}},
		{ID: 2, Title: "Goodbye", Categories: []model.Category{{ID: 6, Name: "Music"}, {ID: 5, Name: "Talks"}}},
		{ID: 3, Title: "Here", Categories: []model.Category{{ID: 93, Name: "here &amp; now"}}},
	}
}

func TestRefresh_PublishesAndLooksUp(t *testing.T) {
	src := &fakeSource{episodes: sampleEpisodes()}
	c := New(src, nil, time.Hour)

	n, err := c.Refresh(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Len(t, c.Episodes(), 3)

	ep, ok := c.Lookup(2)
	require.True(t, ok)
	assert.Equal(t, "Goodbye", ep.Title)

	_, ok = c.Lookup(99)
	assert.False(t, ok)

	snap := c.Snapshot()
	assert.Equal(t, "fake", snap.Source)
	assert.NoError(t, snap.LastError)
	assert.False(t, snap.UpdatedAt.IsZero())
}

func TestRefresh_UsesCacheUnlessForced(t *testing.T) {
	src := &fakeSource{episodes: sampleEpisodes()}
	c := New(src, NewMemoryCache(), time.Hour)

	_, err := c.Refresh(context.Background(), false)
	require.NoError(t, err)
	_, err = c.Refresh(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)

	_, err = c.Refresh(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}

func TestRefresh_FailureKeepsPreviousList(t *testing.T) {
	src := &fakeSource{episodes: sampleEpisodes()}
	c := New(src, nil, time.Hour)
	_, err := c.Refresh(context.Background(), true)
	require.NoError(t, err)

	src.err = errors.New("api down")
	_, err = c.Refresh(context.Background(), true)
	require.Error(t, err)

	assert.Len(t, c.Episodes(), 3)
	assert.EqualError(t, c.Snapshot().LastError, "api down")
}

func TestRefresh_FirstFailureLeavesEmptyList(t *testing.T) {
	c := New(&fakeSource{err: errors.New("boom")}, nil, time.Hour)
	_, err := c.Refresh(context.Background(), false)
	require.Error(t, err)
	assert.Empty(t, c.Episodes())
}

func TestCategories(t *testing.T) {
	c := New(&fakeSource{episodes: sampleEpisodes()}, nil, time.Hour)
	_, err := c.Refresh(context.Background(), false)
	require.NoError(t, err)

	var names []string
	for _, cat := range c.Categories() {
		names = append(names, cat.DecodedName())
	}
	assert.Equal(t, []string{"Music", "Talks", "here & now"}, names)
}

func TestMemoryCache_Expiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache()
	c.now = func() time.Time { return now }

	_, err := c.Get("posts")
	require.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set("posts", sampleEpisodes(), time.Minute))
	got, err := c.Get("posts")
	require.NoError(t, err)
	assert.Len(t, got, 3)

	now = now.Add(time.Minute)
	_, err = c.Get("posts")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestSchedule(t *testing.T) {
	assert.Equal(t, "@every 1h56m40s", Schedule(7000*time.Second, ""))
	assert.Equal(t, "0 */2 * * *", Schedule(time.Hour, " 0 */2 * * * "))
}

func TestNewRefresher(t *testing.T) {
	c := New(&fakeSource{episodes: sampleEpisodes()}, nil, time.Hour)

	_, err := NewRefresher(c, "not a schedule")
	assert.Error(t, err)

	r, err := NewRefresher(c, "@every 1h")
	require.NoError(t, err)
	r.Start()
	defer r.Stop()
	assert.Eventually(t, func() bool { return len(c.Episodes()) == 3 }, time.Second, 5*time.Millisecond)
}

type blockingSource struct {
	started chan struct{}
}

func (s *blockingSource) Name() string { return "blocking" }

func (s *blockingSource) Fetch(ctx context.Context) ([]model.Episode, error) {
	close(s.started)
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRefresher_StartDoesNotWaitForFetch(t *testing.T) {
	src := &blockingSource{started: make(chan struct{})}
	c := New(src, nil, time.Hour)

	r, err := NewRefresher(c, "@every 1h")
	require.NoError(t, err)

	returned := make(chan struct{})
	go func() {
		r.Start()
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("Start blocked on the first fetch")
	}
	<-src.started

	// Stop cancels the hanging fetch.
	r.Stop()
	assert.Empty(t, c.Episodes())
	assert.Error(t, c.Snapshot().LastError)
}
