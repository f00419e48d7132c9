// Package suggest produces search-box suggestions from recent searches,
// catalog tags and game titles.
package suggest

import (
	"slices"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/bad33ndj3/repack-catalog/internal/store"
)

// Suggestion kinds.
const (
	TypeRecent = "recent"
	TypeTag    = "tag"
	TypeGame   = "game"
)

// Defaults for a Suggester.
const (
	DefaultMinQueryLen = 2
	DefaultMaxTags     = 5
	DefaultMaxGames    = 3
	DefaultMax         = 8
)

// Suggestion is one entry of the suggestion list.
type Suggestion struct {
	Text string `json:"text"`
	Type string `json:"type"`
}

// Facets provides the tag vocabulary.
type Facets interface {
	UniqueGenres() []string
	UniqueTags() []string
}

// Source is what game titles are read from.
type Source interface {
	Snapshot() *store.Snapshot
}

// Suggester builds suggestion lists.
type Suggester struct {
	facets Facets
	src    Source

	MinQueryLen int
	MaxTags     int
	MaxGames    int
	Max         int
}

// New creates a Suggester with the default limits.
func New(f Facets, src Source) *Suggester {
	return &Suggester{
		facets:      f,
		src:         src,
		MinQueryLen: DefaultMinQueryLen,
		MaxTags:     DefaultMaxTags,
		MaxGames:    DefaultMaxGames,
		Max:         DefaultMax,
	}
}

// Suggest returns suggestions for a partially typed query: matching recent
// searches first, then tags, then game titles. Texts are unique. Queries
// shorter than MinQueryLen get nothing.
func (s *Suggester) Suggest(query string, recent []string) []Suggestion {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < s.MinQueryLen {
		return []Suggestion{}
	}
	q := strings.ToLower(query)

	out := make([]Suggestion, 0, s.Max)
	seen := map[string]bool{}
	add := func(text, typ string) {
		if !seen[text] {
			seen[text] = true
			out = append(out, Suggestion{Text: text, Type: typ})
		}
	}

	for _, r := range recent {
		if strings.Contains(strings.ToLower(r), q) {
			add(r, TypeRecent)
		}
	}

	tags := 0
	for _, t := range s.tags() {
		if tags == s.MaxTags {
			break
		}
		if strings.Contains(strings.ToLower(t), q) {
			add(t, TypeTag)
			tags++
		}
	}

	for _, title := range s.games(q) {
		add(title, TypeGame)
	}

	if len(out) > s.Max {
		out = out[:s.Max]
	}
	return out
}

// tags returns genres and residual tags as one sorted vocabulary.
func (s *Suggester) tags() []string {
	all := append(s.facets.UniqueGenres(), s.facets.UniqueTags()...)
	slices.Sort(all)
	return slices.Compact(all)
}

// titles adapts a snapshot to fuzzy.Source.
type titles []string

func (t titles) String(i int) string { return t[i] }
func (t titles) Len() int            { return len(t) }

// games returns up to MaxGames titles: substring matches in store order
// first, then the best fuzzy matches to fill the remaining slots.
func (s *Suggester) games(q string) []string {
	snap := s.src.Snapshot()
	out := make([]string, 0, s.MaxGames)
	picked := map[int]bool{}

	for i, r := range snap.Records {
		if len(out) == s.MaxGames {
			return out
		}
		if strings.Contains(strings.ToLower(r.Title), q) {
			out = append(out, r.Title)
			picked[i] = true
		}
	}

	all := make(titles, len(snap.Records))
	for i, r := range snap.Records {
		all[i] = r.Title
	}
	for _, m := range fuzzy.FindFrom(q, all) {
		if len(out) == s.MaxGames {
			break
		}
		// Scattered matches with no word-start bonus score at or below zero.
		if m.Score <= 0 {
			break
		}
		if !picked[m.Index] {
			out = append(out, m.Str)
			picked[m.Index] = true
		}
	}
	return out
}
