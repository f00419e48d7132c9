package suggest

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bad33ndj3/repack-catalog/internal/domain"
	"github.com/bad33ndj3/repack-catalog/internal/facets"
	"github.com/bad33ndj3/repack-catalog/internal/store"
)

func newSuggester(recs ...domain.CatalogRecord) *Suggester {
	s := store.New()
	s.ReplaceAll(recs)
	return New(facets.New(s), s)
}

func game(id, title string, genre []string, tags ...string) domain.CatalogRecord {
	return domain.CatalogRecord{ID: id, Title: title, Genre: genre, Tags: tags}
}

func TestSuggest_ShortQueryGetsNothing(t *testing.T) {
	s := newSuggester(game("1", "Racer", []string{"Racing"}))
	assert.Empty(t, s.Suggest("r", []string{"racer"}))
	assert.Empty(t, s.Suggest("  ", nil))
}

func TestSuggest_OrderAndKinds(t *testing.T) {
	s := newSuggester(
		game("1", "Street Racer - FitGirl Repacks", []string{"Racing"}, "Cars"),
		game("2", "Racing Legends - FitGirl Repacks", []string{"Racing", "Sports"}),
		game("3", "Quiet Farm - FitGirl Repacks", []string{"Simulation"}),
	)

	got := s.Suggest("rac", []string{"racing games", "farm"})
	assert.Equal(t, []Suggestion{
		{Text: "racing games", Type: TypeRecent},
		{Text: "Racing", Type: TypeTag},
		{Text: "Street Racer - FitGirl Repacks", Type: TypeGame},
		{Text: "Racing Legends - FitGirl Repacks", Type: TypeGame},
	}, got)
}

func TestSuggest_LimitsAndDedup(t *testing.T) {
	var recs []domain.CatalogRecord
	for i, tag := range []string{"Action A", "Action B", "Action C", "Action D", "Action E", "Action F"} {
		recs = append(recs, game(string(rune('1'+i)), "Action Hero "+tag, []string{tag}))
	}
	s := newSuggester(recs...)

	got := s.Suggest("action", []string{"Action A", "action"})
	assert.Len(t, got, DefaultMax)

	texts := map[string]bool{}
	tags, games := 0, 0
	for _, g := range got {
		assert.False(t, texts[g.Text], "duplicate %q", g.Text)
		texts[g.Text] = true
		switch g.Type {
		case TypeTag:
			tags++
		case TypeGame:
			games++
		}
	}
	assert.Equal(t, []Suggestion{{Text: "Action A", Type: TypeRecent}, {Text: "action", Type: TypeRecent}}, got[:2])
	assert.Equal(t, 4, tags, "Action A was already suggested as a recent search")
	assert.Equal(t, 2, games, "cut at the overall maximum")
}

func TestSuggest_FuzzyTitlesFillRemainingSlots(t *testing.T) {
	s := newSuggester(
		game("1", "Grand Theft Auto V", []string{"Action"}),
		game("2", "Gravity Rush", []string{"Action"}),
	)

	got := s.Suggest("gta", nil)
	assert.Equal(t, []Suggestion{{Text: "Grand Theft Auto V", Type: TypeGame}}, got)
}
