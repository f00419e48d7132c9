package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func size(mb float64) *float64 { return &mb }

func TestIdentity_IgnoresPage(t *testing.T) {
	a := QuerySpec{Text: "racing", SortKey: SortByTitle, Page: 1, PageSize: 20}
	b := a.WithPage(4)

	assert.Equal(t, 4, b.Page)
	assert.Equal(t, 1, a.Page, "WithPage copies")
	assert.True(t, IdentityEqual(a, b))
}

func TestIdentity_SetFiltersIgnoreOrder(t *testing.T) {
	a := QuerySpec{Filters: Filters{Genres: []string{"Action", "RPG"}, Languages: []string{"English", "German"}}}
	b := QuerySpec{Filters: Filters{Genres: []string{"RPG", "Action", "RPG"}, Languages: []string{"German", "English"}}}

	assert.True(t, IdentityEqual(a, b))
	assert.Equal(t, []string{"Action", "RPG"}, a.Filters.Genres, "input not reordered")
}

func TestIdentity_DefaultSortSpelledOut(t *testing.T) {
	implicit := QuerySpec{Text: "racing", PageSize: 20}
	explicit := QuerySpec{Text: "racing", PageSize: 20, SortKey: SortByRelevance, SortOrder: Asc}

	assert.True(t, IdentityEqual(implicit, explicit))
	assert.False(t, IdentityEqual(implicit, QuerySpec{Text: "racing", PageSize: 20, SortOrder: Desc}))
}

func TestIdentity_Differs(t *testing.T) {
	base := QuerySpec{Text: "racing", PageSize: 20}

	tests := []struct {
		name   string
		mutate func(*QuerySpec)
	}{
		{"text", func(q *QuerySpec) { q.Text = "racer" }},
		{"verbatim", func(q *QuerySpec) { q.Verbatim = true }},
		{"genre", func(q *QuerySpec) { q.Filters.Genres = []string{"Action"} }},
		{"language", func(q *QuerySpec) { q.Filters.Languages = []string{"English"} }},
		{"max size", func(q *QuerySpec) { q.Filters.MaxSizeMB = size(1024) }},
		{"zero max size", func(q *QuerySpec) { q.Filters.MaxSizeMB = size(0) }},
		{"sort key", func(q *QuerySpec) { q.SortKey = SortBySize }},
		{"sort order", func(q *QuerySpec) { q.SortOrder = Desc }},
		{"page size", func(q *QuerySpec) { q.PageSize = 50 }},
		{"text with separator", func(q *QuerySpec) { q.Text = `racing";v=true` }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			other := base
			tc.mutate(&other)
			assert.False(t, IdentityEqual(base, other))
		})
	}
}

func TestGamesResponse_RoundTripsPage(t *testing.T) {
	p := Page{
		Items:      []CatalogRecord{{ID: "1", Title: "Alpha"}},
		Page:       2,
		PageSize:   1,
		Total:      3,
		TotalPages: 3,
		HasNext:    true,
		HasPrev:    true,
	}

	resp := NewGamesResponse(p)
	assert.Equal(t, 1, resp.Pagination.Limit)
	assert.Equal(t, p, resp.Page())
}

func TestGamesResponse_EmptyGamesNotNull(t *testing.T) {
	resp := NewGamesResponse(Page{Page: 1, PageSize: 20})
	assert.NotNil(t, resp.Games)
	assert.Empty(t, resp.Games)
}

func TestSortSize_FallsBackToRepack(t *testing.T) {
	r := CatalogRecord{RepackSize: Size{MB: 500, Known: true}}
	mb, ok := r.SortSize()
	assert.True(t, ok)
	assert.Equal(t, 500.0, mb)

	r.OriginalSize = Size{MB: 2048, Known: true}
	mb, _ = r.SortSize()
	assert.Equal(t, 2048.0, mb)

	_, ok = CatalogRecord{}.SortSize()
	assert.False(t, ok)
}
