// Package model defines shared data structures.
package model

import (
	"html"
	"strconv"
	"strings"
)

// Category is a tag grouping episodes.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug,omitempty"`
}

// DecodedName returns the category name with HTML entities resolved.
func (c Category) DecodedName() string {
	return html.UnescapeString(c.Name)
}

// Episode is one playable item fetched from the content API.
// It is never modified after the catalog publishes it.
type Episode struct {
	ID         int64      `json:"id"`
	Title      string     `json:"title"`    // HTML-entity encoded, as delivered
	AudioURL   string     `json:"audioUrl"` // relative to the media base URL
	Date       string     `json:"date"`
	Categories []Category `json:"categories"`
	Link       string     `json:"link,omitempty"`
	ImageURL   string     `json:"imageUrl,omitempty"`
}

// DecodedTitle returns the title with HTML entities resolved.
func (e Episode) DecodedTitle() string {
	return html.UnescapeString(e.Title)
}

// AudioSource resolves AudioURL against base. An episode without audio yields "".
func (e Episode) AudioSource(base string) string {
	return resolve(base, e.AudioURL)
}

// ImageSource resolves ImageURL against base.
func (e Episode) ImageSource(base string) string {
	return resolve(base, e.ImageURL)
}

// HasCategory reports whether the episode carries any of the given category ids.
func (e Episode) HasCategory(ids map[int64]struct{}) bool {
	for _, c := range e.Categories {
		if _, ok := ids[c.ID]; ok {
			return true
		}
	}
	return false
}

func resolve(base, path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// PlaybackRecord is the persisted resume point for one episode.
type PlaybackRecord struct {
	PlayedSeconds float64 `json:"playedSeconds"`
	Duration      float64 `json:"duration"`
	Favorite      bool    `json:"favorite"`
}

// Remaining returns the unplayed seconds, never negative.
func (r PlaybackRecord) Remaining() float64 {
	if d := r.Duration - r.PlayedSeconds; d > 0 {
		return d
	}
	return 0
}

// Percent returns how much of the episode has been played, 0..100.
func (r PlaybackRecord) Percent() float64 {
	if r.Duration <= 0 {
		return 0
	}
	p := r.PlayedSeconds / r.Duration * 100
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}

// Started reports whether progress should be shown for the record.
func (r PlaybackRecord) Started() bool {
	return r.Duration > 0 && r.PlayedSeconds > 0
}

// Criteria narrows the episode list.
type Criteria struct {
	SearchTerms   []string `json:"searchTerms"`
	CategoryIDs   []int64  `json:"categoryIds"`
	FavoritesOnly bool     `json:"favoritesOnly"`
}

// DateLayout is the publish date layout used by the content API.
const DateLayout = "2006-01-02T15:04:05"

// Storage key constants.
const (
	FavoritesKey   = "favoriteItems"
	progressSuffix = "-progress"
)

// ProgressKey returns the storage key of an episode's PlaybackRecord.
func ProgressKey(id int64) string {
	return strconv.FormatInt(id, 10) + progressSuffix
}
