// Package query turns a QuerySpec into an ordered, paginated result.
//
// Planning is: candidates (exact title, ranked matches, or the whole store),
// then filters, then sort, then the page window. The full ordered list is
// memoized per store version and query identity, so consecutive pages of
// one query are slices of the very same list.
package query

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"slices"
	"strings"

	"github.com/bad33ndj3/repack-catalog/internal/domain"
	"github.com/bad33ndj3/repack-catalog/internal/search"
	"github.com/bad33ndj3/repack-catalog/internal/store"
)

// ErrInvalidRequest is wrapped by every validation failure.
var ErrInvalidRequest = errors.New("invalid request")

// RequestError describes which field of a QuerySpec was rejected.
type RequestError struct {
	Field  string
	Reason string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("invalid request: %s %s", e.Field, e.Reason)
}

func (e *RequestError) Unwrap() error { return ErrInvalidRequest }

// Source is what the planner reads records from.
type Source interface {
	Snapshot() *store.Snapshot
}

// DefaultMemoSize is how many result lists the planner keeps.
const DefaultMemoSize = 64

// Planner is the Query Planner. It is safe for concurrent use.
type Planner struct {
	src    Source
	ranker search.Ranker
	memo   *memo
	logger *slog.Logger
}

// Option configures a Planner.
type Option func(*Planner)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Planner) { p.logger = l }
}

// WithMemoSize sets how many result lists are memoized. Zero disables it.
func WithMemoSize(n int) Option {
	return func(p *Planner) { p.memo = newMemo(n) }
}

// NewPlanner creates a planner over src using ranker for text queries.
func NewPlanner(src Source, ranker search.Ranker, opts ...Option) *Planner {
	p := &Planner{
		src:    src,
		ranker: ranker,
		memo:   newMemo(DefaultMemoSize),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Validate checks a spec without running it.
func Validate(spec domain.QuerySpec) error {
	if spec.Page < 1 {
		return &RequestError{Field: "page", Reason: fmt.Sprintf("must be >= 1, got %d", spec.Page)}
	}
	if spec.PageSize <= 0 {
		return &RequestError{Field: "pageSize", Reason: fmt.Sprintf("must be > 0, got %d", spec.PageSize)}
	}
	switch spec.SortKey {
	case "", domain.SortByRelevance, domain.SortByTitle, domain.SortByReleaseDate, domain.SortBySize:
	default:
		return &RequestError{Field: "sortKey", Reason: fmt.Sprintf("unknown value %q", spec.SortKey)}
	}
	switch spec.SortOrder {
	case "", domain.Asc, domain.Desc:
	default:
		return &RequestError{Field: "sortOrder", Reason: fmt.Sprintf("unknown value %q", spec.SortOrder)}
	}
	if m := spec.Filters.MaxSizeMB; m != nil {
		switch {
		case math.IsNaN(*m) || math.IsInf(*m, 0):
			return &RequestError{Field: "maxSizeMB", Reason: "must be a finite number"}
		case *m < 0:
			return &RequestError{Field: "maxSizeMB", Reason: "must not be negative"}
		}
	}
	return nil
}

// Plan runs spec and returns the requested page.
func (p *Planner) Plan(spec domain.QuerySpec) (domain.Page, error) {
	if err := Validate(spec); err != nil {
		return domain.Page{}, err
	}

	snap := p.src.Snapshot()
	ordered := p.resolve(snap, spec)
	return window(snap, ordered, spec.Page, spec.PageSize), nil
}

// Resolve returns the full ordered result list for spec, ignoring Page and
// PageSize bounds.
func (p *Planner) Resolve(spec domain.QuerySpec) ([]domain.CatalogRecord, error) {
	if spec.Page == 0 {
		spec.Page = 1
	}
	if spec.PageSize == 0 {
		spec.PageSize = domain.DefaultPageSize
	}
	if err := Validate(spec); err != nil {
		return nil, err
	}

	snap := p.src.Snapshot()
	ids := p.resolve(snap, spec)
	out := make([]domain.CatalogRecord, 0, len(ids))
	for _, i := range ids {
		out = append(out, snap.Records[i])
	}
	return out, nil
}

// resolve returns record indexes into snap, fully filtered and sorted.
func (p *Planner) resolve(snap *store.Snapshot, spec domain.QuerySpec) []int {
	identity := spec.Identity()
	if ids, ok := p.memo.get(snap.Version, identity); ok {
		return ids
	}

	candidates := p.candidates(snap, spec)
	ids := applyFilters(snap.Records, candidates, spec.Filters)
	sortIndexes(snap.Records, ids, spec.SortKey, spec.SortOrder)

	p.logger.Debug("query planned",
		"version", snap.Version,
		"text", spec.Text,
		"candidates", len(candidates),
		"results", len(ids))
	p.memo.put(snap.Version, identity, ids)
	return ids
}

// candidates picks the starting set: an exact title hit for verbatim
// queries, else the ranked matches, else every record in store order.
func (p *Planner) candidates(snap *store.Snapshot, spec domain.QuerySpec) []int {
	q := p.ranker.PrepareQuery(spec.Text, spec.Verbatim)
	if q == "" {
		return allIndexes(len(snap.Records))
	}

	if spec.Verbatim {
		if rec, ok := search.ExactTitle(snap.Records, q); ok {
			i, _ := snap.Index(rec.ID)
			return []int{i}
		}
	}

	ranked := p.ranker.Rank(snap, q)
	out := make([]int, 0, len(ranked))
	for _, s := range ranked {
		if i, ok := snap.Index(s.ID); ok {
			out = append(out, i)
		}
	}
	return out
}

func allIndexes(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// window slices the ordered list to one page. Pages past the end are empty.
func window(snap *store.Snapshot, ids []int, page, size int) domain.Page {
	total := len(ids)
	pages := total / size
	if total%size != 0 {
		pages++
	}

	// Bounds are only computed for pages that exist, so large page numbers
	// can't overflow the offset.
	start, end := total, total
	if page-1 < pages {
		start = (page - 1) * size
		end = start + min(size, total-start)
	}

	items := make([]domain.CatalogRecord, 0, end-start)
	for _, i := range ids[start:end] {
		items = append(items, snap.Records[i])
	}

	return domain.Page{
		Items:      items,
		Page:       page,
		PageSize:   size,
		Total:      total,
		TotalPages: pages,
		HasNext:    end < total,
		HasPrev:    page > 1,
	}
}

// ─── Filters ─────────────────────────────────────────────────────────────────

// applyFilters keeps the candidates that pass genre, then size, then
// language. The input slice is not modified.
func applyFilters(recs []domain.CatalogRecord, candidates []int, f domain.Filters) []int {
	out := make([]int, 0, len(candidates))
	for _, i := range candidates {
		r := &recs[i]
		if matchGenre(r, f.Genres) && matchSize(r, f.MaxSizeMB) && matchLanguage(r, f.Languages) {
			out = append(out, i)
		}
	}
	return out
}

// matchGenre passes records carrying any requested value as genre or tag.
func matchGenre(r *domain.CatalogRecord, want []string) bool {
	if len(want) == 0 {
		return true
	}
	for _, g := range want {
		if slices.Contains(r.Genre, g) || slices.Contains(r.Tags, g) {
			return true
		}
	}
	return false
}

// matchSize passes records at or under the ceiling. A record whose repack
// size couldn't be parsed always passes.
func matchSize(r *domain.CatalogRecord, ceiling *float64) bool {
	if ceiling == nil || !r.RepackSize.Known {
		return true
	}
	return r.RepackSize.MB <= *ceiling
}

// matchLanguage passes records whose raw language string contains any
// requested value.
func matchLanguage(r *domain.CatalogRecord, want []string) bool {
	if len(want) == 0 {
		return true
	}
	for _, l := range want {
		if strings.Contains(r.LanguagesRaw, l) {
			return true
		}
	}
	return false
}

// ─── Sort ────────────────────────────────────────────────────────────────────

// compareFunc compares two records on one key.
type compareFunc func(a, b *domain.CatalogRecord) int

// knownFunc reports whether a record has a value for the key at all.
type knownFunc func(r *domain.CatalogRecord) bool

// sortIndexes orders ids in place. Records without a value for the key go
// last in either direction; exact ties keep store order. Relevance leaves
// the candidate order alone.
func sortIndexes(recs []domain.CatalogRecord, ids []int, key domain.SortKey, order domain.SortOrder) {
	compare, known := comparator(key)
	if compare == nil {
		return
	}
	desc := order == domain.Desc

	slices.SortFunc(ids, func(x, y int) int {
		a, b := &recs[x], &recs[y]
		ka, kb := known(a), known(b)
		switch {
		case ka && !kb:
			return -1
		case !ka && kb:
			return 1
		case ka && kb:
			c := compare(a, b)
			if desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return cmp.Compare(x, y)
	})
}

func comparator(key domain.SortKey) (compareFunc, knownFunc) {
	switch key {
	case domain.SortByTitle:
		return func(a, b *domain.CatalogRecord) int {
				return cmp.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
			}, func(r *domain.CatalogRecord) bool {
				return r.Title != "" && r.Title != domain.Unknown
			}
	case domain.SortByReleaseDate:
		return func(a, b *domain.CatalogRecord) int {
				return a.ReleaseDate.Compare(b.ReleaseDate)
			}, func(r *domain.CatalogRecord) bool {
				return !r.ReleaseDate.IsZero()
			}
	case domain.SortBySize:
		return func(a, b *domain.CatalogRecord) int {
				sa, _ := a.SortSize()
				sb, _ := b.SortSize()
				return cmp.Compare(sa, sb)
			}, func(r *domain.CatalogRecord) bool {
				_, ok := r.SortSize()
				return ok
			}
	default:
		return nil, nil
	}
}

// MemoStats reports result-list memo hits, misses and current size.
func (p *Planner) MemoStats() (hits, misses, size int) {
	return p.memo.stats()
}
