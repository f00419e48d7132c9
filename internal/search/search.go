// Package search ranks catalog records against a free-text query.
//
// Each record is scored over a handful of weighted fields. A query token
// matches a field token exactly, by shared stem, as a prefix, as a substring,
// or (for longer tokens) within a small edit distance. Every query token has
// to match somewhere in the record for the record to be returned.
package search

import (
	"cmp"
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/hbollon/go-edlib"

	"github.com/bad33ndj3/repack-catalog/internal/domain"
	"github.com/bad33ndj3/repack-catalog/internal/store"
	"github.com/bad33ndj3/repack-catalog/internal/text"
)

// ─────────────────────────────────────────────────────────────────────────────
// Types
// ─────────────────────────────────────────────────────────────────────────────

// Ranker orders records by relevance to a query.
// Having this as an interface lets the planner be tested with a fake ranker.
type Ranker interface {
	PrepareQuery(q string, verbatim bool) string
	Rank(snap *store.Snapshot, query string) []Scored
}

// Scored is one ranked record.
type Scored struct {
	ID       string
	Position int
	Score    float64
}

// Weights sets how much each field contributes to a record's score.
type Weights struct {
	Title           float64
	NormalizedTitle float64
	Tags            float64
	Description     float64
	Companies       float64
}

// Config holds the ranker's tuning parameters.
type Config struct {
	Weights Weights

	// MinTokenLen drops shorter query tokens before scoring.
	MinTokenLen int

	// FuzzyThreshold is the minimum Levenshtein similarity (0..1) for an
	// approximate match. FuzzyMinLen is the shortest query token that is
	// matched approximately at all.
	FuzzyThreshold float64
	FuzzyMinLen    int

	// Boilerplate is stripped from non-verbatim queries.
	Boilerplate *regexp.Regexp
}

// DefaultBoilerplate matches the site-branding phrase users tend to paste
// along with a title.
var DefaultBoilerplate = regexp.MustCompile(`(?i)fit\s*girl\s*repacks`)

// DefaultConfig returns the standard weights and thresholds.
func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			Title:           0.5,
			NormalizedTitle: 0.5,
			Tags:            0.3,
			Description:     0.1,
			Companies:       0.1,
		},
		MinTokenLen:    2,
		FuzzyThreshold: 0.75,
		FuzzyMinLen:    4,
		Boilerplate:    DefaultBoilerplate,
	}
}

// Match qualities per token, best first.
const (
	qualityExact     = 1.0
	qualityStem      = 0.95
	qualityPrefix    = 0.9
	qualitySubstring = 0.8
	fuzzyScale       = 0.7
)

// field is one tokenized record field.
type field struct {
	folded string
	tokens []string
	stems  []string
	fuzzy  bool
	weight float64
}

// doc is a record prepared for scoring.
type doc struct {
	id       string
	position int
	fields   []field
}

// prepared caches tokenized records for one store version.
type prepared struct {
	version uint64
	docs    []doc
}

// FuzzyRanker is the default Ranker. It is safe for concurrent use.
type FuzzyRanker struct {
	cfg Config

	mu   sync.Mutex
	prep *prepared
}

// Option configures a FuzzyRanker.
type Option func(*FuzzyRanker)

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(r *FuzzyRanker) { r.cfg = cfg }
}

// NewFuzzyRanker creates a ranker with the default configuration.
func NewFuzzyRanker(opts ...Option) *FuzzyRanker {
	r := &FuzzyRanker{cfg: DefaultConfig()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ─────────────────────────────────────────────────────────────────────────────
// Object Pool
// ─────────────────────────────────────────────────────────────────────────────

// best holds the best quality seen per query token for one record.
var bestPool = sync.Pool{
	New: func() any { s := make([]float64, 0, 8); return &s },
}

func borrowBest(n int) *[]float64 {
	p := bestPool.Get().(*[]float64)
	*p = slices.Grow((*p)[:0], n)[:n]
	clear(*p)
	return p
}

func returnBest(p *[]float64) { bestPool.Put(p) }

// ─────────────────────────────────────────────────────────────────────────────
// Query preparation
// ─────────────────────────────────────────────────────────────────────────────

// PrepareQuery cleans user input. Unless verbatim, the boilerplate phrase is
// removed; either way surrounding whitespace is trimmed. An empty result
// means "no query".
func (r *FuzzyRanker) PrepareQuery(q string, verbatim bool) string {
	if verbatim {
		return strings.TrimSpace(q)
	}
	return text.StripBoilerplate(q, r.cfg.Boilerplate)
}

// ExactTitle returns the first record whose title equals q, ignoring case
// and surrounding whitespace.
func ExactTitle(records []domain.CatalogRecord, q string) (domain.CatalogRecord, bool) {
	q = strings.TrimSpace(q)
	if q == "" {
		return domain.CatalogRecord{}, false
	}
	for _, rec := range records {
		if strings.EqualFold(strings.TrimSpace(rec.Title), q) {
			return rec, true
		}
	}
	return domain.CatalogRecord{}, false
}

// ─────────────────────────────────────────────────────────────────────────────
// Ranking
// ─────────────────────────────────────────────────────────────────────────────

// Rank scores every record in snap against query and returns the matches by
// descending score, ties by ascending position. An empty query (or one with
// no scorable tokens) returns nil.
func (r *FuzzyRanker) Rank(snap *store.Snapshot, query string) []Scored {
	tokens := text.QueryTokens(query, r.cfg.MinTokenLen)
	if len(tokens) == 0 {
		return nil
	}
	qStems := make([]string, len(tokens))
	for i, t := range tokens {
		qStems[i] = text.Stem(t)
	}
	phrase := ""
	if len(tokens) > 1 {
		phrase = strings.Join(text.Tokens(query), " ")
	}

	docs := r.docs(snap)
	total := r.totalWeight()
	results := make([]Scored, 0, 16)
	for i := range docs {
		score, ok := r.scoreDoc(&docs[i], tokens, qStems, phrase)
		if !ok {
			continue
		}
		results = append(results, Scored{
			ID:       docs[i].id,
			Position: docs[i].position,
			Score:    score / total,
		})
	}

	slices.SortFunc(results, func(a, b Scored) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Position, b.Position)
	})
	return results
}

// scoreDoc returns the weighted score of d and whether every query token
// matched at least one field.
func (r *FuzzyRanker) scoreDoc(d *doc, tokens, qStems []string, phrase string) (float64, bool) {
	best := borrowBest(len(tokens))
	defer returnBest(best)

	score := 0.0
	for fi := range d.fields {
		f := &d.fields[fi]
		if len(f.tokens) == 0 {
			continue
		}
		if phrase != "" && strings.Contains(f.folded, phrase) {
			score += f.weight
			for i := range *best {
				(*best)[i] = qualityExact
			}
			continue
		}

		sum := 0.0
		for i, qt := range tokens {
			q := r.tokenQuality(qt, qStems[i], f)
			sum += q
			if q > (*best)[i] {
				(*best)[i] = q
			}
		}
		score += f.weight * sum / float64(len(tokens))
	}

	for _, q := range *best {
		if q == 0 {
			return 0, false
		}
	}
	return score, true
}

// tokenQuality returns how well query token qt matches the best token of f.
func (r *FuzzyRanker) tokenQuality(qt, qStem string, f *field) float64 {
	best := 0.0
	fuzzy := f.fuzzy && len([]rune(qt)) >= r.cfg.FuzzyMinLen
	for i, ft := range f.tokens {
		switch {
		case ft == qt:
			return qualityExact
		case f.stems[i] == qStem:
			best = max(best, qualityStem)
		case strings.HasPrefix(ft, qt):
			best = max(best, qualityPrefix)
		case strings.Contains(ft, qt):
			best = max(best, qualitySubstring)
		case fuzzy && best < qualitySubstring:
			if q := r.fuzzyQuality(qt, ft); q > best {
				best = q
			}
		}
	}
	return best
}

// fuzzyQuality scores an approximate match, or 0 below the threshold.
func (r *FuzzyRanker) fuzzyQuality(qt, ft string) float64 {
	// Similarity can't reach the threshold when lengths differ too much.
	ql, fl := len([]rune(qt)), len([]rune(ft))
	if float64(min(ql, fl))/float64(max(ql, fl)) < r.cfg.FuzzyThreshold {
		return 0
	}
	sim, err := edlib.StringsSimilarity(qt, ft, edlib.Levenshtein)
	if err != nil || float64(sim) < r.cfg.FuzzyThreshold {
		return 0
	}
	return fuzzyScale * float64(sim)
}

func (r *FuzzyRanker) totalWeight() float64 {
	w := r.cfg.Weights
	t := w.Title + w.NormalizedTitle + w.Tags + w.Description + w.Companies
	if t == 0 {
		return 1
	}
	return t
}

// ─────────────────────────────────────────────────────────────────────────────
// Preparation cache
// ─────────────────────────────────────────────────────────────────────────────

// docs returns the tokenized records of snap, rebuilding them only when the
// store version moved.
func (r *FuzzyRanker) docs(snap *store.Snapshot) []doc {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.prep != nil && r.prep.version == snap.Version {
		return r.prep.docs
	}

	w := r.cfg.Weights
	docs := make([]doc, len(snap.Records))
	for i, rec := range snap.Records {
		docs[i] = doc{
			id:       rec.ID,
			position: rec.Position,
			fields: []field{
				newField(rec.Title, w.Title, true),
				newField(rec.NormalizedTitle, w.NormalizedTitle, true),
				newField(strings.Join(rec.AllTags(), " "), w.Tags, true),
				newField(rec.Description, w.Description, false),
				newField(companies(rec), w.Companies, true),
			},
		}
	}
	r.prep = &prepared{version: snap.Version, docs: docs}
	return docs
}

func newField(s string, weight float64, fuzzy bool) field {
	tokens := text.Tokens(s)
	stems := make([]string, len(tokens))
	for i, t := range tokens {
		stems[i] = text.Stem(t)
	}
	return field{
		folded: strings.Join(tokens, " "),
		tokens: tokens,
		stems:  stems,
		fuzzy:  fuzzy,
		weight: weight,
	}
}

// companies joins developer and publisher, skipping placeholders.
func companies(rec domain.CatalogRecord) string {
	var parts []string
	for _, c := range []string{rec.Developer, rec.Publisher} {
		if c != "" && c != domain.Unknown {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, " ")
}
