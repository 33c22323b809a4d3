package content

import (
	"hash/fnv"
	"html"
	"strings"

	"github.com/bryan-buckman/talkshelf/internal/model"
)

// DefaultCategories is used when the category endpoint cannot be reached.
var DefaultCategories = []model.Category{
	{ID: 56, Name: "anger / blame / judgement", Slug: "anger"},
	{ID: 80, Name: "audio", Slug: "podcast"},
	{ID: 50, Name: "awakening / consciousness", Slug: "awakening"},
	{ID: 75, Name: "communication", Slug: "communication"},
	{ID: 99, Name: "death / NDE", Slug: "death"},
	{ID: 69, Name: "fear / depression", Slug: "fear"},
	{ID: 76, Name: "giving back", Slug: "giving-back"},
	{ID: 57, Name: "gratitude / complaint", Slug: "gratitude-complaint"},
	{ID: 93, Name: "here &amp; now", Slug: "here-now"},
	{ID: 95, Name: "knowing &amp; not-knowing", Slug: "knowing-not-knowing"},
	{ID: 87, Name: "mind / conditioning / behaviour", Slug: "mind-conditioning-behaviour"},
	{ID: 71, Name: "peace / bliss / love", Slug: "peace-bliss-love"},
	{ID: 86, Name: "politics / economics /science", Slug: "politics-economics"},
	{ID: 83, Name: "reality", Slug: "reality"},
	{ID: 60, Name: "relationship / sexuality / jealousy", Slug: "relationship-sexuality"},
	{ID: 84, Name: "spirituality / religion", Slug: "spirituality-religion"},
	{ID: 92, Name: "state of the planet", Slug: "state-of-the-planet"},
	{ID: 94, Name: "uplifting / fun", Slug: "uplifting-fun"},
	{ID: 77, Name: "video", Slug: "video"},
	{ID: 79, Name: "writings", Slug: "writings"},
}

// CategoryIndex resolves categories by id or by (decoded, case-insensitive) name.
type CategoryIndex struct {
	byID   map[int64]model.Category
	byName map[string]model.Category
}

// NewCategoryIndex indexes cats.
func NewCategoryIndex(cats []model.Category) *CategoryIndex {
	idx := &CategoryIndex{
		byID:   make(map[int64]model.Category, len(cats)),
		byName: make(map[string]model.Category, len(cats)),
	}
	for _, c := range cats {
		idx.byID[c.ID] = c
		idx.byName[nameKey(c.Name)] = c
	}
	return idx
}

// ByID returns the category for id, or a nameless one when unknown.
func (idx *CategoryIndex) ByID(id int64) model.Category {
	if c, ok := idx.byID[id]; ok {
		return c
	}
	return model.Category{ID: id}
}

// ByName returns the category called name. Unknown names get a stable id derived
// from the name so they can still be filtered on.
func (idx *CategoryIndex) ByName(name string) model.Category {
	if c, ok := idx.byName[nameKey(name)]; ok {
		return c
	}
	h := fnv.New32a()
	h.Write([]byte(nameKey(name)))
	return model.Category{ID: int64(h.Sum32()), Name: name}
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(html.UnescapeString(name)))
}
