// Package podfeed renders episode lists as a podcast RSS feed.
package podfeed

import (
	"fmt"
	"io"
	"time"

	"github.com/eduncan911/podcast"
	log "github.com/sirupsen/logrus"

	"github.com/bryan-buckman/talkshelf/internal/model"
)

// Meta describes the channel.
type Meta struct {
	Title        string
	Link         string
	Description  string
	ImageURL     string
	MediaBaseURL string
}

// Write encodes episodes as an RSS 2.0 podcast to w. Episodes that have neither
// audio nor a link cannot be represented and are skipped.
func Write(w io.Writer, meta Meta, episodes []model.Episode) error {
	now := time.Now()
	desc := meta.Description
	if desc == "" {
		desc = meta.Title
	}

	p := podcast.New(meta.Title, meta.Link, desc, nil, &now)
	if meta.ImageURL != "" {
		p.AddImage(meta.ImageURL)
	}

	for _, ep := range episodes {
		title := ep.DecodedTitle()
		item := podcast.Item{
			Title:       title,
			Description: title,
			Link:        ep.Link,
			GUID:        fmt.Sprintf("talkshelf-%d", ep.ID),
		}
		if t, err := time.Parse(model.DateLayout, ep.Date); err == nil {
			item.AddPubDate(&t)
		}
		if src := ep.AudioSource(meta.MediaBaseURL); src != "" {
			item.AddEnclosure(src, podcast.MP3, 0)
		}
		if _, err := p.AddItem(item); err != nil {
			log.WithError(err).WithField("episode", ep.ID).Debug("skipping episode in feed")
		}
	}

	if err := p.Encode(w); err != nil {
		return fmt.Errorf("encode podcast: %w", err)
	}
	return nil
}
