// Package indexer orchestrates shard fetching, parsing, normalization and
// caching, and publishes the result to the catalog store.
// Dependency injection via interfaces makes it fully testable.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/bad33ndj3/repack-catalog/internal/cache"
	"github.com/bad33ndj3/repack-catalog/internal/domain"
	"github.com/bad33ndj3/repack-catalog/internal/fetcher"
	"github.com/bad33ndj3/repack-catalog/internal/normalizer"
	"github.com/bad33ndj3/repack-catalog/internal/parser"
)

// DefaultCacheName is the key the dataset is cached under.
const DefaultCacheName = "catalog"

// Clock abstracts time access for reproducible tests.
// In tests, you can inject a mock that returns a fixed time.
type Clock interface {
	Now() time.Time
}

// Normalizer turns raw records into catalog records.
type Normalizer interface {
	NormalizeAll(raws []domain.RawRecord) []domain.CatalogRecord
	// Digest identifies the settings records are normalized with.
	Digest() string
}

// Replacer is the part of the catalog store the indexer writes to.
type Replacer interface {
	ReplaceAll(records []domain.CatalogRecord) uint64
}

// Indexer orchestrates loading a catalog dataset.
// It's the main entry point for ingestion.
type Indexer struct {
	source     fetcher.Source
	parser     parser.Parser
	normalizer Normalizer
	cache      cache.Cache
	store      Replacer
	clock      Clock
	logger     *slog.Logger

	fetchOpts  fetcher.Options
	cacheName  string
	sampleSize int

	// mu serialises loads; a reload waits for the one in progress.
	mu   sync.Mutex
	last *LoadResult
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(ix *Indexer) { ix.logger = l }
}

// WithClock replaces the system clock.
func WithClock(c Clock) Option {
	return func(ix *Indexer) { ix.clock = c }
}

// WithFetchOptions tunes shard fetching.
func WithFetchOptions(o fetcher.Options) Option {
	return func(ix *Indexer) { ix.fetchOpts = o }
}

// WithCacheName sets the key the dataset is cached under.
func WithCacheName(name string) Option {
	return func(ix *Indexer) { ix.cacheName = name }
}

// WithSampleSize sets how many sample records stand in for an empty catalog.
func WithSampleSize(n int) Option {
	return func(ix *Indexer) { ix.sampleSize = n }
}

// New creates an Indexer with all its dependencies injected.
func New(src fetcher.Source, p parser.Parser, n Normalizer, c cache.Cache, st Replacer, opts ...Option) *Indexer {
	ix := &Indexer{
		source:     src,
		parser:     p,
		normalizer: n,
		cache:      c,
		store:      st,
		clock:      RealClock{},
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		cacheName:  DefaultCacheName,
		sampleSize: normalizer.DefaultSampleSize,
	}
	for _, opt := range opts {
		opt(ix)
	}
	if ix.fetchOpts.Logger == nil {
		ix.fetchOpts.Logger = ix.logger
	}
	return ix
}

// LoadResult describes a completed load.
type LoadResult struct {
	Version      uint64    `json:"version"`
	Records      int       `json:"records"`
	Shards       int       `json:"shards"`
	FailedShards int       `json:"failedShards"`
	Issues       int       `json:"issues"`
	Fingerprint  string    `json:"fingerprint"`
	FromCache    bool      `json:"fromCache"`
	Sample       bool      `json:"sample"`
	IngestedAt   time.Time `json:"ingestedAt"`
}

// Load fetches every shard and publishes the resulting catalog.
//
// Unchanged shards (same fingerprint as the cached dataset) reuse the cached
// records. If no shard yields a record, the last cached dataset is used, and
// failing that a flagged sample dataset, so the store is never left empty.
func (ix *Indexer) Load(ctx context.Context) (*LoadResult, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	// 1. Fetch shards; only a cancelled context aborts the load
	shards, err := fetcher.Collect(ctx, ix.source, ix.fetchOpts)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("fetch shards: %w", err)
		}
		ix.logger.Warn("no shards available", "error", err)
	}
	fingerprint := Fingerprint(shards, ix.normalizer.Digest())

	// 2. Reuse the cached dataset when the shards haven't changed
	cached := ix.cached()
	if cached != nil && !cached.Sample && fingerprint != "" && cached.Fingerprint == fingerprint {
		ix.logger.Info("shards unchanged, using cached dataset", "records", len(cached.Records))
		return ix.publish(cached, true), nil
	}

	// 3. Parse and normalize
	ds, issues := ix.build(shards)
	ds.Fingerprint = fingerprint

	// 4. Fall back rather than publish an empty catalog
	if len(ds.Records) == 0 {
		if cached != nil && !cached.Sample && len(cached.Records) > 0 {
			ix.logger.Warn("ingestion yielded no records, keeping cached dataset",
				"shards", ds.Shards, "failed", ds.FailedShards)
			return ix.publish(cached, true), nil
		}
		ix.logger.Warn("ingestion yielded no records, using sample dataset",
			"shards", ds.Shards, "failed", ds.FailedShards, "sample", ix.sampleSize)
		ds.Sample = true
		ds.Fingerprint = ""
		ds.Records = ix.normalizer.NormalizeAll(normalizer.SampleRecords(ix.sampleSize))
	}

	// 5. Publish, then persist real datasets for the next start
	res := ix.publish(ds, false)
	res.Issues = issues
	if !ds.Sample {
		if err := ix.cache.SaveToDisk(ix.cacheName, ds); err != nil {
			ix.logger.Warn("save dataset failed", "error", err)
		}
	}
	ix.logger.Info("catalog loaded",
		"version", res.Version,
		"records", res.Records,
		"shards", res.Shards,
		"failed", res.FailedShards,
		"issues", issues,
		"sample", res.Sample)
	return res, nil
}

// Last returns the result of the most recent load, or nil before the first.
func (ix *Indexer) Last() *LoadResult {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.last == nil {
		return nil
	}
	r := *ix.last
	return &r
}

// cached returns the dataset from memory, then disk, or nil.
func (ix *Indexer) cached() *domain.Dataset {
	if ds, err := ix.cache.Get(ix.cacheName); err == nil {
		return ds
	}
	ds, err := ix.cache.LoadFromDisk(ix.cacheName)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			ix.logger.Warn("cached dataset unusable", "error", err)
		}
		return nil
	}
	ix.cache.Set(ix.cacheName, ds)
	return ds
}

// build parses every fetched shard in page order and normalizes the result.
// It returns the dataset and the number of malformed fields defaulted.
func (ix *Indexer) build(shards []fetcher.Shard) (*domain.Dataset, int) {
	ds := &domain.Dataset{
		Version:    domain.CacheVersion,
		IngestedAt: ix.clock.Now(),
		Shards:     len(shards),
	}

	var raws []domain.RawRecord
	issues := 0
	for _, s := range shards {
		if s.Err != nil {
			ds.FailedShards++
			continue
		}
		decoded, err := ix.parser.Parse(s.Page, s.Data)
		if err != nil {
			ix.logger.Warn("shard unreadable", "page", s.Page, "error", err)
			ds.FailedShards++
			continue
		}
		for _, d := range decoded {
			if len(d.Issues) > 0 {
				issues += len(d.Issues)
				ix.logger.Debug("record fields defaulted", "page", d.Page, "index", d.Index, "fields", d.Issues)
			}
			raws = append(raws, d.Record)
		}
	}

	ds.Records = ix.normalizer.NormalizeAll(raws)
	return ds, issues
}

// publish swaps ds into the store and remembers it. Must be called with mu held.
func (ix *Indexer) publish(ds *domain.Dataset, fromCache bool) *LoadResult {
	version := ix.store.ReplaceAll(ds.Records)
	ix.cache.Set(ix.cacheName, ds)

	res := &LoadResult{
		Version:      version,
		Records:      len(ds.Records),
		Shards:       ds.Shards,
		FailedShards: ds.FailedShards,
		Fingerprint:  ds.Fingerprint,
		FromCache:    fromCache,
		Sample:       ds.Sample,
		IngestedAt:   ds.IngestedAt,
	}
	ix.last = res
	return res
}

// Fingerprint hashes the normalizer settings together with the page numbers
// and bytes of every shard that was fetched. It is empty when no shard was.
func Fingerprint(shards []fetcher.Shard, settings string) string {
	d := xxhash.New()
	_, _ = d.WriteString(settings)
	_, _ = d.WriteString("\n")
	n := 0
	for _, s := range shards {
		if s.Err != nil {
			continue
		}
		_, _ = d.WriteString(strconv.Itoa(s.Page))
		_, _ = d.WriteString(":")
		_, _ = d.Write(s.Data)
		_, _ = d.WriteString("\n")
		n++
	}
	if n == 0 {
		return ""
	}
	return fmt.Sprintf("%016x", d.Sum64())
}

// RealClock uses the actual system time.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time {
	return time.Now()
}
