// Package config loads the catalog's TOML configuration.
//
// A file only needs the keys it wants to change: it is decoded on top of
// Default(), so anything it leaves out keeps its default value.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/bad33ndj3/repack-catalog/internal/domain"
	"github.com/bad33ndj3/repack-catalog/internal/fetcher"
	"github.com/bad33ndj3/repack-catalog/internal/indexer"
	"github.com/bad33ndj3/repack-catalog/internal/normalizer"
	"github.com/bad33ndj3/repack-catalog/internal/query"
	"github.com/bad33ndj3/repack-catalog/internal/search"
)

// DefaultPath is where the CLI looks for a config file.
const DefaultPath = "repack-catalog.toml"

// Cache backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Duration is a time.Duration written as a string ("5s", "250ms").
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", b, err)
	}
	*d = Duration(v)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

type Config struct {
	Ingest  Ingest  `toml:"ingest"`
	Cache   Cache   `toml:"cache"`
	Catalog Catalog `toml:"catalog"`
	Search  Search  `toml:"search"`
	Server  Server  `toml:"server"`
	Prefs   Prefs   `toml:"prefs"`
	Log     Log     `toml:"log"`
}

// Ingest says where shards come from. BaseURL wins over ShardsDir when set.
type Ingest struct {
	ShardsDir         string   `toml:"shards_dir"`
	Pattern           string   `toml:"pattern"`
	BaseURL           string   `toml:"base_url"`
	MaxPages          int      `toml:"max_pages"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
	Concurrency       int      `toml:"concurrency"`
	ShardTimeout      Duration `toml:"shard_timeout"`
	Watch             bool     `toml:"watch"`
	Debounce          Duration `toml:"debounce"`
}

type Cache struct {
	Backend    string `toml:"backend"`
	Dir        string `toml:"dir"`
	SQLitePath string `toml:"sqlite_path"`
	Name       string `toml:"name"`
}

// Catalog holds normalization policy.
type Catalog struct {
	GenreKeywords []string `toml:"genre_keywords"`
	FallbackCount int      `toml:"fallback_count"`
	TitleSuffix   string   `toml:"title_suffix"`
	SampleSize    int      `toml:"sample_size"`
}

type Weights struct {
	Title           float64 `toml:"title"`
	NormalizedTitle float64 `toml:"normalized_title"`
	Tags            float64 `toml:"tags"`
	Description     float64 `toml:"description"`
	Companies       float64 `toml:"companies"`
}

type Search struct {
	Weights        Weights `toml:"weights"`
	MinTokenLen    int     `toml:"min_token_len"`
	FuzzyThreshold float64 `toml:"fuzzy_threshold"`
	FuzzyMinLen    int     `toml:"fuzzy_min_len"`
	MemoSize       int     `toml:"memo_size"`
}

type Server struct {
	Listen        string   `toml:"listen"`
	PageSize      int      `toml:"page_size"`
	MaxPageSize   int      `toml:"max_page_size"`
	LoaderTimeout Duration `toml:"loader_timeout"`
}

type Prefs struct {
	Path string `toml:"path"`
}

type Log struct {
	Level string `toml:"level"`
}

// Default returns the built-in configuration.
func Default() Config {
	rc := search.DefaultConfig()
	return Config{
		Ingest: Ingest{
			ShardsDir:         "data",
			Pattern:           fetcher.DefaultPattern,
			MaxPages:          fetcher.DefaultMaxPages,
			RequestsPerSecond: 10,
			Concurrency:       8,
			ShardTimeout:      Duration(fetcher.DefaultShardTimeout),
			Debounce:          Duration(indexer.DefaultDebounce),
		},
		Cache: Cache{
			Backend:    BackendFile,
			Dir:        ".catalog-cache",
			SQLitePath: ".catalog-cache/catalog.db",
			Name:       indexer.DefaultCacheName,
		},
		Catalog: Catalog{
			GenreKeywords: append([]string(nil), normalizer.DefaultGenreKeywords...),
			FallbackCount: normalizer.DefaultFallbackCount,
			TitleSuffix:   normalizer.DefaultTitleSuffix,
			SampleSize:    normalizer.DefaultSampleSize,
		},
		Search: Search{
			Weights: Weights{
				Title:           rc.Weights.Title,
				NormalizedTitle: rc.Weights.NormalizedTitle,
				Tags:            rc.Weights.Tags,
				Description:     rc.Weights.Description,
				Companies:       rc.Weights.Companies,
			},
			MinTokenLen:    rc.MinTokenLen,
			FuzzyThreshold: rc.FuzzyThreshold,
			FuzzyMinLen:    rc.FuzzyMinLen,
			MemoSize:       query.DefaultMemoSize,
		},
		Server: Server{
			Listen:        ":3000",
			PageSize:      domain.DefaultPageSize,
			MaxPageSize:   100,
			LoaderTimeout: Duration(5 * time.Second),
		},
		Prefs: Prefs{Path: ".catalog-cache/prefs.json"},
		Log:   Log{Level: "info"},
	}
}

// Load reads path on top of the defaults. A missing file is not an error.
// Unknown keys are rejected so typos don't go unnoticed.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return cfg, fmt.Errorf("parse config %s: %s", path, strict.String())
		}
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Encode renders cfg as TOML.
func Encode(cfg Config) ([]byte, error) {
	return toml.Marshal(cfg)
}

// Validate reports the first setting that can't work.
func (c Config) Validate() error {
	switch {
	case c.Ingest.BaseURL == "" && c.Ingest.ShardsDir == "":
		return errors.New("config: ingest needs shards_dir or base_url")
	case c.Ingest.Concurrency <= 0:
		return fmt.Errorf("config: ingest.concurrency must be positive, got %d", c.Ingest.Concurrency)
	case c.Ingest.MaxPages <= 0:
		return fmt.Errorf("config: ingest.max_pages must be positive, got %d", c.Ingest.MaxPages)
	case c.Ingest.RequestsPerSecond < 0:
		return errors.New("config: ingest.requests_per_second must not be negative")
	case c.Ingest.ShardTimeout <= 0:
		return errors.New("config: ingest.shard_timeout must be positive")
	case c.Cache.Backend != BackendFile && c.Cache.Backend != BackendSQLite:
		return fmt.Errorf("config: cache.backend must be %q or %q, got %q", BackendFile, BackendSQLite, c.Cache.Backend)
	case c.Cache.Name == "":
		return errors.New("config: cache.name must not be empty")
	case c.Catalog.FallbackCount < 0:
		return errors.New("config: catalog.fallback_count must not be negative")
	case c.Catalog.SampleSize <= 0:
		return errors.New("config: catalog.sample_size must be positive")
	case c.Search.FuzzyThreshold < 0 || c.Search.FuzzyThreshold > 1:
		return fmt.Errorf("config: search.fuzzy_threshold must be within 0..1, got %g", c.Search.FuzzyThreshold)
	case c.Search.MemoSize < 0:
		return errors.New("config: search.memo_size must not be negative")
	case c.Server.PageSize <= 0 || c.Server.PageSize > c.Server.MaxPageSize:
		return fmt.Errorf("config: server.page_size must be within 1..%d, got %d", c.Server.MaxPageSize, c.Server.PageSize)
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}

// ─── Component settings ──────────────────────────────────────────────────────

// LogLevel parses Log.Level ("debug", "info", "warn", "error").
func (c Config) LogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(c.Log.Level))); err != nil {
		return l, fmt.Errorf("config: log.level: %w", err)
	}
	return l, nil
}

// Policy returns the genre classification policy.
func (c Config) Policy() normalizer.Policy {
	return normalizer.Policy{Keywords: c.Catalog.GenreKeywords, FallbackCount: c.Catalog.FallbackCount}
}

// Ranker returns the search ranker configuration.
func (c Config) Ranker() search.Config {
	rc := search.DefaultConfig()
	w := c.Search.Weights
	rc.Weights = search.Weights{
		Title:           w.Title,
		NormalizedTitle: w.NormalizedTitle,
		Tags:            w.Tags,
		Description:     w.Description,
		Companies:       w.Companies,
	}
	rc.MinTokenLen = c.Search.MinTokenLen
	rc.FuzzyThreshold = c.Search.FuzzyThreshold
	rc.FuzzyMinLen = c.Search.FuzzyMinLen
	return rc
}

// FetchOptions returns the shard collection settings.
func (c Config) FetchOptions(logger *slog.Logger) fetcher.Options {
	return fetcher.Options{
		Concurrency:  c.Ingest.Concurrency,
		ShardTimeout: c.Ingest.ShardTimeout.Std(),
		Logger:       logger,
	}
}

// Source returns the shard source: HTTP when a base URL is set, else the
// shards directory.
func (c Config) Source() fetcher.Source {
	if c.Ingest.BaseURL != "" {
		return fetcher.NewHTTPSource(c.Ingest.BaseURL, c.Ingest.MaxPages, c.Ingest.RequestsPerSecond)
	}
	return fetcher.NewDirSource(c.Ingest.ShardsDir, c.Ingest.Pattern)
}
