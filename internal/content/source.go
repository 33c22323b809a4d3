// Package content fetches episode metadata from the remote content API.
package content

import (
	"context"

	"github.com/bryan-buckman/talkshelf/internal/model"
)

// Source produces the ordered episode list.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]model.Episode, error)
}

var (
	_ Source = (*WordPress)(nil)
	_ Source = (*FeedSource)(nil)
)
