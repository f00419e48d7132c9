package domain

import (
	"slices"
	"strconv"
	"strings"
)

// SortKey selects the field a result list is ordered by.
type SortKey string

// SortByRelevance keeps the ranker's order (store order without a query).
// It is also what an empty SortKey means.
const (
	SortByRelevance   SortKey = "relevance"
	SortByTitle       SortKey = "title"
	SortByReleaseDate SortKey = "releaseDate"
	SortBySize        SortKey = "size"
)

// SortOrder is the direction of a sort.
type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// Filters narrows a result list. Zero values mean "no filter".
type Filters struct {
	// Genres matches records carrying ANY of these values as genre or tag.
	Genres []string `json:"genres,omitempty"`

	// MaxSizeMB is a ceiling on the repack size. Records whose size is
	// unknown are never filtered out by it.
	MaxSizeMB *float64 `json:"maxSizeMB,omitempty"`

	// Languages matches records whose raw language string contains ANY
	// of these values.
	Languages []string `json:"languages,omitempty"`
}

// QuerySpec is everything that defines one catalog query.
type QuerySpec struct {
	Text string `json:"text"`

	// Verbatim marks text that came from a suggestion click: it is matched
	// as-is, trying an exact title match before ranking.
	Verbatim bool `json:"verbatim,omitempty"`

	Filters   Filters   `json:"filters"`
	SortKey   SortKey   `json:"sortKey"`
	SortOrder SortOrder `json:"sortOrder"`
	Page      int       `json:"page"`
	PageSize  int       `json:"pageSize"`
}

// WithPage returns a copy of q asking for another page.
func (q QuerySpec) WithPage(page int) QuerySpec {
	q.Page = page
	return q
}

// Identity is a canonical encoding of every field except Page.
// Two specs with the same identity describe the same logical query; an
// empty sort key or order encodes like its default.
func (q QuerySpec) Identity() string {
	var sb strings.Builder
	sb.WriteString("t=")
	sb.WriteString(strconv.Quote(q.Text))
	sb.WriteString(";v=")
	sb.WriteString(strconv.FormatBool(q.Verbatim))
	sb.WriteString(";g=")
	writeSet(&sb, q.Filters.Genres)
	sb.WriteString(";l=")
	writeSet(&sb, q.Filters.Languages)
	sb.WriteString(";m=")
	if q.Filters.MaxSizeMB != nil {
		sb.WriteString(strconv.FormatFloat(*q.Filters.MaxSizeMB, 'g', -1, 64))
	}
	sb.WriteString(";s=")
	sb.WriteString(string(q.sortKey()))
	sb.WriteString(";o=")
	sb.WriteString(string(q.sortOrder()))
	sb.WriteString(";n=")
	sb.WriteString(strconv.Itoa(q.PageSize))
	return sb.String()
}

// sortKey and sortOrder resolve the empty defaults.
func (q QuerySpec) sortKey() SortKey {
	if q.SortKey == "" {
		return SortByRelevance
	}
	return q.SortKey
}

func (q QuerySpec) sortOrder() SortOrder {
	if q.SortOrder == "" {
		return Asc
	}
	return q.SortOrder
}

// IdentityEqual reports whether a and b differ at most in Page.
func IdentityEqual(a, b QuerySpec) bool {
	return a.Identity() == b.Identity()
}

// writeSet writes values sorted and de-duplicated, so that set-valued
// filters compare equal regardless of input order.
func writeSet(sb *strings.Builder, values []string) {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	for i, v := range sorted {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Quote(v))
	}
}

// Page is one window of a query's ordered result list.
type Page struct {
	Items      []CatalogRecord `json:"items"`
	Page       int             `json:"page"`
	PageSize   int             `json:"pageSize"`
	Total      int             `json:"total"`
	TotalPages int             `json:"totalPages"`
	HasNext    bool            `json:"hasNext"`
	HasPrev    bool            `json:"hasPrev"`
}
