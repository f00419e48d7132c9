// Package facets derives filterable dimensions and statistics from the
// catalog. Results are memoized per store version: computed on first access
// after a replace, and never recomputed until the next one.
package facets

import (
	"maps"
	"slices"
	"sync"

	"github.com/bad33ndj3/repack-catalog/internal/store"
)

// Source is what the index reads records from.
type Source interface {
	Snapshot() *store.Snapshot
}

// Bucket labels, in display order.
const (
	Bucket0to1   = "0-1 GB"
	Bucket1to5   = "1-5 GB"
	Bucket5to10  = "5-10 GB"
	Bucket10to20 = "10-20 GB"
	Bucket20Plus = "20+ GB"
)

// BucketLabels lists the size buckets in ascending order.
var BucketLabels = []string{Bucket0to1, Bucket1to5, Bucket5to10, Bucket10to20, Bucket20Plus}

// SizeBucket is one histogram bar.
type SizeBucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Stats summarises a catalog version.
type Stats struct {
	TotalGames    int            `json:"totalGames"`
	Genres        map[string]int `json:"genres"`
	Languages     map[string]int `json:"languages"`
	SizeRanges    []SizeBucket   `json:"sizeRanges"`
	AverageSizeGB float64        `json:"averageSize"`
	Version       uint64         `json:"version"`
}

// computed is everything derived from one snapshot.
type computed struct {
	version   uint64
	genres    []string
	languages []string
	tags      []string
	stats     Stats
}

// Index is the Facet Index. It is safe for concurrent use.
type Index struct {
	src Source

	mu       sync.Mutex
	cur      *computed
	computes int
}

// New creates an index over src.
func New(src Source) *Index {
	return &Index{src: src}
}

// UniqueGenres returns every genre value, sorted and de-duplicated.
func (x *Index) UniqueGenres() []string {
	return slices.Clone(x.get().genres)
}

// UniqueLanguages returns every language value, sorted and de-duplicated.
func (x *Index) UniqueLanguages() []string {
	return slices.Clone(x.get().languages)
}

// UniqueTags returns every residual (non-genre) tag, sorted and de-duplicated.
func (x *Index) UniqueTags() []string {
	return slices.Clone(x.get().tags)
}

// SizeBuckets returns record counts per original-size bucket. Records with
// an unknown size aren't counted.
func (x *Index) SizeBuckets() []SizeBucket {
	return slices.Clone(x.get().stats.SizeRanges)
}

// Stats returns the statistics of the current version.
func (x *Index) Stats() Stats {
	s := x.get().stats
	s.SizeRanges = slices.Clone(s.SizeRanges)
	s.Genres = maps.Clone(s.Genres)
	s.Languages = maps.Clone(s.Languages)
	return s
}

// Computations reports how many times facets were derived. Exposed for
// tests and the health endpoint.
func (x *Index) Computations() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.computes
}

// get returns the facets of the current snapshot, recomputing them only
// when the store version moved. The snapshot is read under mu so a caller
// holding an older snapshot can never replace newer facets.
func (x *Index) get() *computed {
	x.mu.Lock()
	defer x.mu.Unlock()

	snap := x.src.Snapshot()
	if x.cur != nil && x.cur.version == snap.Version {
		return x.cur
	}
	x.cur = compute(snap)
	x.computes++
	return x.cur
}

func compute(snap *store.Snapshot) *computed {
	genreCounts := map[string]int{}
	langCounts := map[string]int{}
	tagSet := map[string]struct{}{}
	buckets := make([]SizeBucket, len(BucketLabels))
	for i, l := range BucketLabels {
		buckets[i].Label = l
	}

	totalGB, sized := 0.0, 0
	for _, r := range snap.Records {
		for _, g := range r.Genre {
			genreCounts[g]++
		}
		for _, l := range r.Languages {
			langCounts[l]++
		}
		for _, t := range r.Tags {
			tagSet[t] = struct{}{}
		}
		if r.OriginalSize.Known {
			gb := r.OriginalSize.MB / 1024
			totalGB += gb
			sized++
			buckets[bucketFor(gb)].Count++
		}
	}

	avg := 0.0
	if sized > 0 {
		avg = totalGB / float64(sized)
	}

	return &computed{
		version:   snap.Version,
		genres:    sortedKeys(genreCounts),
		languages: sortedKeys(langCounts),
		tags:      sortedKeys(tagSet),
		stats: Stats{
			TotalGames:    len(snap.Records),
			Genres:        genreCounts,
			Languages:     langCounts,
			SizeRanges:    buckets,
			AverageSizeGB: avg,
			Version:       snap.Version,
		},
	}
}

// bucketFor maps a size in GB to its bucket index. Upper bounds are
// inclusive: exactly 1 GB falls in "0-1 GB".
func bucketFor(gb float64) int {
	switch {
	case gb <= 1:
		return 0
	case gb <= 5:
		return 1
	case gb <= 10:
		return 2
	case gb <= 20:
		return 3
	default:
		return 4
	}
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
