// Package filter narrows an episode list by favorites, categories and search terms.
package filter

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/bryan-buckman/talkshelf/internal/model"
)

// Result is the filtered list plus the categories it still covers.
type Result struct {
	Episodes []model.Episode
	// CategoryIDs lists the distinct category ids of Episodes in first-seen order.
	// It restricts the category selector; it is not a filter input.
	CategoryIDs []int64
}

// Apply narrows all by c. Favorites and categories are intersected first, then an
// episode survives the search if its decoded title contains any of the terms.
// Order is preserved and all is never modified.
func Apply(all []model.Episode, c model.Criteria, favoriteIDs []int64) Result {
	out := make([]model.Episode, 0, len(all))

	favs := toSet(favoriteIDs)
	useFavs := c.FavoritesOnly && len(favs) > 0
	cats := toSet(c.CategoryIDs)
	terms := foldTerms(c.SearchTerms)
	fold := cases.Fold()

	for _, ep := range all {
		if useFavs {
			if _, ok := favs[ep.ID]; !ok {
				continue
			}
		}
		if len(cats) > 0 && !ep.HasCategory(cats) {
			continue
		}
		if len(terms) > 0 && !containsAny(fold.String(ep.DecodedTitle()), terms) {
			continue
		}
		out = append(out, ep)
	}

	return Result{Episodes: out, CategoryIDs: CategoryIDs(out)}
}

// CategoryIDs returns the distinct category ids across episodes in first-seen order.
func CategoryIDs(episodes []model.Episode) []int64 {
	seen := make(map[int64]struct{})
	var ids []int64
	for _, ep := range episodes {
		for _, c := range ep.Categories {
			if _, ok := seen[c.ID]; ok {
				continue
			}
			seen[c.ID] = struct{}{}
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// ParseTerms splits a search box value into words.
func ParseTerms(query string) []string {
	return strings.Fields(query)
}

func foldTerms(terms []string) []string {
	fold := cases.Fold()
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		out = append(out, fold.String(t))
	}
	return out
}

func containsAny(title string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(title, t) {
			return true
		}
	}
	return false
}

func toSet(ids []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
