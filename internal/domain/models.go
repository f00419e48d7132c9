// Package domain contains core data types used across the catalog.
// These are pure data structures with almost no behavior - making them easy
// to understand and test. Think of them as the "nouns" of the application.
package domain

import "time"

// CacheVersion is incremented when the persisted dataset format changes.
// This ensures old, incompatible snapshots are rejected and rebuilt.
const CacheVersion = 1

// Unknown is the placeholder for any string field missing from a raw record.
const Unknown = "Unknown"

// DefaultPageSize is the page size used when a request doesn't specify one.
const DefaultPageSize = 20

// RawMetadata is the metadata block scraped alongside each record.
// Every field is optional in the shard files.
type RawMetadata struct {
	Companies    string `json:"companies,omitempty"`
	Languages    string `json:"languages,omitempty"`
	OriginalSize string `json:"originalSize,omitempty"`
	RepackSize   string `json:"repackSize,omitempty"`
}

// RawRecord is one entry of a shard file, exactly as the scraper wrote it.
type RawRecord struct {
	Title          string      `json:"title"`
	Tags           []string    `json:"tags,omitempty"`
	Description    string      `json:"description,omitempty"`
	Image          string      `json:"image,omitempty"`
	URL            string      `json:"url,omitempty"`
	RepackFeatures []string    `json:"repackFeatures,omitempty"`
	ReleaseDate    string      `json:"releaseDate,omitempty"`
	Metadata       RawMetadata `json:"metadata"`
}

// Size is a human size string ("12.3 GB") together with its parsed magnitude.
// Known is false when Raw couldn't be parsed; MB is meaningless in that case.
type Size struct {
	Raw   string  `json:"raw"`
	MB    float64 `json:"mb"`
	Known bool    `json:"known"`
}

// DownloadLinks holds the ways a repack can be fetched.
type DownloadLinks struct {
	Direct  string `json:"direct,omitempty"`
	Magnet  string `json:"magnet,omitempty"`
	Torrent string `json:"torrent,omitempty"`
}

// CatalogRecord is one normalized repack entry.
// Every field is populated: missing raw values become Unknown or empty slices,
// so downstream code never branches on field presence.
type CatalogRecord struct {
	// ID is unique within a dataset and never reused ("1", "2", ...).
	ID string `json:"id"`

	// Position is the zero-based ingestion position, i.e. store order.
	// It is the final tie-break of every ordering in the catalog.
	Position int `json:"position"`

	Title string `json:"title"`

	// NormalizedTitle is the lower-cased title without the site-branding
	// suffix. Derived once at ingestion.
	NormalizedTitle string `json:"normalizedTitle"`

	Genre []string `json:"genre"`
	Tags  []string `json:"tags"`

	Description string `json:"description"`

	Companies    string   `json:"companies"`
	Developer    string   `json:"developer"`
	Publisher    string   `json:"publisher"`
	LanguagesRaw string   `json:"languagesRaw"`
	Languages    []string `json:"language"`

	OriginalSize Size `json:"originalSize"`
	RepackSize   Size `json:"repackSize"`

	// ReleaseDate is zero when the shard didn't carry one.
	ReleaseDate time.Time `json:"releaseDate"`

	Features      []string      `json:"features"`
	Notes         string        `json:"notes,omitempty"`
	URL           string        `json:"url"`
	Image         string        `json:"image"`
	DownloadLinks DownloadLinks `json:"downloadLinks"`
}

// AllTags returns genre and residual tags together, genre first.
func (r CatalogRecord) AllTags() []string {
	out := make([]string, 0, len(r.Genre)+len(r.Tags))
	out = append(out, r.Genre...)
	return append(out, r.Tags...)
}

// SortSize is the magnitude used when sorting by size: the original size,
// or the repack size when the original one is unknown.
func (r CatalogRecord) SortSize() (float64, bool) {
	if r.OriginalSize.Known {
		return r.OriginalSize.MB, true
	}
	return r.RepackSize.MB, r.RepackSize.Known
}

// Dataset is a fully ingested catalog as it is persisted between runs.
type Dataset struct {
	// Version identifies the cache format version
	Version int `json:"version"`

	// Fingerprint is an xxhash of the shard bytes the dataset was built from.
	// An unchanged fingerprint means the cached dataset can be reused.
	Fingerprint string `json:"fingerprint"`

	IngestedAt time.Time `json:"ingested_at"`

	// Sample marks the fallback dataset used when no shard yielded a record.
	Sample bool `json:"sample"`

	Shards       int `json:"shards"`
	FailedShards int `json:"failed_shards"`

	Records []CatalogRecord `json:"records"`
}
