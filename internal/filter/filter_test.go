package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryan-buckman/talkshelf/internal/model"
)

var (
	talks = model.Category{ID: 5, Name: "Talks"}
	music = model.Category{ID: 6, Name: "Music"}
)

func scenario() []model.Episode {
	return []model.Episode{
		{ID: 1, Title: "Hello World", Categories: []model.Category{talks}},
		{ID: 2, Title: "Goodbye", Categories: []model.Category{music}},
	}
}

func ids(eps []model.Episode) []int64 {
	out := make([]int64, 0, len(eps))
	for _, e := range eps {
		out = append(out, e.ID)
	}
	return out
}

func TestApply_Scenario(t *testing.T) {
	all := scenario()

	res := Apply(all, model.Criteria{SearchTerms: []string{"hello"}}, nil)
	assert.Equal(t, []int64{1}, ids(res.Episodes))

	res = Apply(all, model.Criteria{CategoryIDs: []int64{6}}, nil)
	assert.Equal(t, []int64{2}, ids(res.Episodes))

	res = Apply(all, model.Criteria{FavoritesOnly: true}, []int64{2})
	assert.Equal(t, []int64{2}, ids(res.Episodes))
}

func TestApply_NoCriteriaReturnsEverything(t *testing.T) {
	all := scenario()
	res := Apply(all, model.Criteria{}, nil)
	assert.Equal(t, all, res.Episodes)
	assert.Equal(t, []int64{5, 6}, res.CategoryIDs)
}

func TestApply_FavoritesOnlyWithEmptySetIsNoop(t *testing.T) {
	all := scenario()
	res := Apply(all, model.Criteria{FavoritesOnly: true}, nil)
	assert.Equal(t, []int64{1, 2}, ids(res.Episodes))

	res = Apply(all, model.Criteria{FavoritesOnly: true}, []int64{})
	assert.Equal(t, []int64{1, 2}, ids(res.Episodes))
}

func TestApply_FavoritesIgnoredUnlessRequested(t *testing.T) {
	res := Apply(scenario(), model.Criteria{}, []int64{2})
	assert.Equal(t, []int64{1, 2}, ids(res.Episodes))
}

func TestApply_SearchIsOR(t *testing.T) {
	all := []model.Episode{
		{ID: 1, Title: "xylophone"},
		{ID: 2, Title: "yodel"},
		{ID: 3, Title: "both x and y"},
		{ID: 4, Title: "neither"},
	}

	x := Apply(all, model.Criteria{SearchTerms: []string{"x"}}, nil)
	y := Apply(all, model.Criteria{SearchTerms: []string{"y"}}, nil)
	xy := Apply(all, model.Criteria{SearchTerms: []string{"x", "y"}}, nil)

	union := map[int64]bool{}
	for _, e := range append(x.Episodes, y.Episodes...) {
		union[e.ID] = true
	}
	assert.Len(t, xy.Episodes, len(union))
	for _, e := range xy.Episodes {
		assert.True(t, union[e.ID], "episode %d not in union", e.ID)
	}
	assert.Equal(t, []int64{1, 2, 3}, ids(xy.Episodes))
}

func TestApply_TwoWordQueryMatchesEitherWord(t *testing.T) {
	res := Apply(scenario(), model.Criteria{SearchTerms: ParseTerms("goodbye world")}, nil)
	assert.Equal(t, []int64{1, 2}, ids(res.Episodes))
}

func TestApply_DecodesEntitiesBeforeMatching(t *testing.T) {
	all := []model.Episode{
		{ID: 1, Title: "Here &amp; Now"},
		{ID: 2, Title: "Knowing &#8211; Not Knowing"},
	}

	res := Apply(all, model.Criteria{SearchTerms: []string{"here & now"}}, nil)
	assert.Equal(t, []int64{1}, ids(res.Episodes))

	res = Apply(all, model.Criteria{SearchTerms: []string{"amp"}}, nil)
	assert.Empty(t, res.Episodes)

	res = Apply(all, model.Criteria{SearchTerms: []string{"–"}}, nil)
	assert.Equal(t, []int64{2}, ids(res.Episodes))
}

func TestApply_CaseInsensitive(t *testing.T) {
	all := []model.Episode{{ID: 1, Title: "STRASSE"}, {ID: 2, Title: "Über Alles"}}

	res := Apply(all, model.Criteria{SearchTerms: []string{"strasse"}}, nil)
	assert.Equal(t, []int64{1}, ids(res.Episodes))

	res = Apply(all, model.Criteria{SearchTerms: []string{"üBER"}}, nil)
	assert.Equal(t, []int64{2}, ids(res.Episodes))
}

func TestApply_Intersection(t *testing.T) {
	all := []model.Episode{
		{ID: 1, Title: "Fear and love", Categories: []model.Category{{ID: 69}}},
		{ID: 2, Title: "Love again", Categories: []model.Category{{ID: 71}}},
		{ID: 3, Title: "Fear itself", Categories: []model.Category{{ID: 69}, {ID: 71}}},
		{ID: 4, Title: "Unrelated", Categories: []model.Category{{ID: 71}}},
	}
	c := model.Criteria{
		FavoritesOnly: true,
		CategoryIDs:   []int64{71},
		SearchTerms:   []string{"fear", "love"},
	}

	res := Apply(all, c, []int64{2, 3, 4})
	assert.Equal(t, []int64{2, 3}, ids(res.Episodes))
	assert.Equal(t, []int64{71, 69}, res.CategoryIDs)
}

func TestApply_BlankTermsArePassthrough(t *testing.T) {
	res := Apply(scenario(), model.Criteria{SearchTerms: []string{"", "  "}}, nil)
	assert.Len(t, res.Episodes, 2)
}

func TestApply_Idempotent(t *testing.T) {
	all := scenario()
	c := model.Criteria{SearchTerms: []string{"o"}, CategoryIDs: []int64{5, 6}}

	first := Apply(all, c, nil)
	second := Apply(first.Episodes, c, nil)
	assert.Equal(t, first, second)
	require.Len(t, all, 2, "input must not be modified")
}

func TestApply_EpisodeWithoutCategories(t *testing.T) {
	all := []model.Episode{{ID: 1, Title: "Loose"}}
	res := Apply(all, model.Criteria{CategoryIDs: []int64{5}}, nil)
	assert.Empty(t, res.Episodes)
	assert.Nil(t, res.CategoryIDs)
}

func TestParseTerms(t *testing.T) {
	assert.Equal(t, []string{"foo", "bar"}, ParseTerms("  foo   bar "))
	assert.Empty(t, ParseTerms("   "))
}
