package content

import (
	"context"
	"fmt"
	"hash/fnv"
	"net/url"
	"strconv"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/bryan-buckman/talkshelf/internal/model"
)

// FeedSource reads episodes from an RSS or Atom feed.
type FeedSource struct {
	url          string
	mediaBaseURL string
	parser       *gofeed.Parser
	categories   *CategoryIndex
}

// NewFeedSource creates a feed source. Category names are resolved against
// DefaultCategories so ids line up with the WordPress source.
func NewFeedSource(feedURL, mediaBaseURL string) *FeedSource {
	return &FeedSource{
		url:          feedURL,
		mediaBaseURL: mediaBaseURL,
		parser:       gofeed.NewParser(),
		categories:   NewCategoryIndex(DefaultCategories),
	}
}

// Name identifies the source in logs.
func (f *FeedSource) Name() string {
	return "feed " + f.url
}

// Fetch parses the feed. Items without audio are kept and rendered without a player source.
func (f *FeedSource) Fetch(ctx context.Context) ([]model.Episode, error) {
	parsed, err := f.parser.ParseURLWithContext(f.url, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", f.url, err)
	}
	return f.episodes(parsed), nil
}

func (f *FeedSource) episodes(parsed *gofeed.Feed) []model.Episode {
	episodes := make([]model.Episode, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		guid := item.GUID
		if guid == "" {
			guid = item.Link
		}
		if guid == "" {
			continue
		}
		ep := model.Episode{
			ID:       episodeID(guid),
			Title:    item.Title,
			AudioURL: f.audio(item),
			Link:     item.Link,
		}
		if item.PublishedParsed != nil {
			ep.Date = item.PublishedParsed.UTC().Format(model.DateLayout)
		}
		if item.Image != nil {
			ep.ImageURL = RelativeTo(item.Image.URL, f.mediaBaseURL)
		}
		for _, name := range item.Categories {
			ep.Categories = append(ep.Categories, f.categories.ByName(name))
		}
		episodes = append(episodes, ep)
	}
	return episodes
}

func (f *FeedSource) audio(item *gofeed.Item) string {
	for _, enc := range item.Enclosures {
		if enc == nil || enc.URL == "" {
			continue
		}
		if enc.Type == "" || strings.HasPrefix(enc.Type, "audio/") {
			return RelativeTo(enc.URL, f.mediaBaseURL)
		}
	}
	body := item.Content
	if body == "" {
		body = item.Description
	}
	return ExtractAudio(body, f.mediaBaseURL)
}

// episodeID prefers the WordPress post id ("?p=123") so ids match the REST source.
func episodeID(guid string) int64 {
	if u, err := url.Parse(guid); err == nil {
		if id, err := strconv.ParseInt(u.Query().Get("p"), 10, 64); err == nil && id > 0 {
			return id
		}
	}
	h := fnv.New64a()
	h.Write([]byte(guid))
	return int64(h.Sum64() >> 1)
}
