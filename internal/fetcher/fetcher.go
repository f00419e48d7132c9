// Package fetcher retrieves raw catalog shards.
// A shard is one numbered JSON page produced by the scraper. Shards come
// from a local directory or from an HTTP server; either way a shard that
// can't be read is reported per shard and never aborts the whole fetch.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// DefaultPattern matches shard files inside a directory.
const DefaultPattern = "results_page_*.json"

// DefaultMaxPages is how many pages an HTTP source walks by default.
const DefaultMaxPages = 117

// DefaultShardTimeout bounds a single shard read.
const DefaultShardTimeout = 5 * time.Second

// ErrNoShards is returned when a source has nothing to offer at all.
var ErrNoShards = errors.New("no shards found")

var pageNumRe = regexp.MustCompile(`(\d+)\.json$`)

// Source abstracts where shards come from, for testability.
type Source interface {
	// Pages lists the shard page numbers in ascending order.
	Pages(ctx context.Context) ([]int, error)

	// Fetch returns the raw bytes of one shard.
	Fetch(ctx context.Context, page int) ([]byte, error)
}

// Shard is the outcome of fetching one page.
type Shard struct {
	Page int
	Data []byte
	Err  error
}

// ─── Directory source ────────────────────────────────────────────────────────

// DirSource reads shards from files in a directory.
type DirSource struct {
	dir     string
	pattern string
	paths   map[int]string
}

// NewDirSource creates a source over dir. An empty pattern means
// DefaultPattern; patterns may use doublestar syntax ("**/page_*.json").
func NewDirSource(dir, pattern string) *DirSource {
	if pattern == "" {
		pattern = DefaultPattern
	}
	return &DirSource{dir: dir, pattern: pattern}
}

// Pages globs the directory and sorts shard files by their page number, so
// page 10 comes after page 9 rather than after page 1.
func (s *DirSource) Pages(_ context.Context) ([]int, error) {
	matches, err := doublestar.Glob(os.DirFS(s.dir), s.pattern)
	if err != nil {
		return nil, fmt.Errorf("glob shards: %w", err)
	}

	s.paths = make(map[int]string, len(matches))
	pages := make([]int, 0, len(matches))
	for _, m := range matches {
		n, ok := PageNumber(m)
		if !ok {
			continue
		}
		if _, dup := s.paths[n]; dup {
			continue
		}
		s.paths[n] = filepath.Join(s.dir, filepath.FromSlash(m))
		pages = append(pages, n)
	}
	slices.Sort(pages)
	return pages, nil
}

// Fetch reads one shard file.
func (s *DirSource) Fetch(ctx context.Context, page int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, ok := s.paths[page]
	if !ok {
		path = filepath.Join(s.dir, strings.Replace(s.pattern, "*", strconv.Itoa(page), 1))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read shard %d: %w", page, err)
	}
	return data, nil
}

// PageNumber extracts the page number from a shard file name.
func PageNumber(name string) (int, bool) {
	m := pageNumRe.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// ─── HTTP source ─────────────────────────────────────────────────────────────

// HTTPSource reads shards from <base>/results_page_<n>.json.
type HTTPSource struct {
	base     string
	maxPages int
	client   *http.Client
	limiter  *rate.Limiter
}

// NewHTTPSource creates a source walking pages 1..maxPages under base.
// rps caps requests per second; zero or less means unlimited.
func NewHTTPSource(base string, maxPages int, rps float64) *HTTPSource {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &HTTPSource{
		base:     strings.TrimRight(base, "/"),
		maxPages: maxPages,
		client:   &http.Client{Timeout: 30 * time.Second},
		limiter:  rate.NewLimiter(limit, 1),
	}
}

// Pages returns 1..maxPages.
func (s *HTTPSource) Pages(_ context.Context) ([]int, error) {
	pages := make([]int, s.maxPages)
	for i := range pages {
		pages[i] = i + 1
	}
	return pages, nil
}

// Fetch downloads one shard.
func (s *HTTPSource) Fetch(ctx context.Context, page int) ([]byte, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	url := fmt.Sprintf("%s/%s", s.base, strings.Replace(DefaultPattern, "*", strconv.Itoa(page), 1))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "repack-catalog/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch shard %d: %w", page, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// ─── Collect ─────────────────────────────────────────────────────────────────

// Options tunes Collect.
type Options struct {
	Concurrency  int
	ShardTimeout time.Duration
	Logger       *slog.Logger
}

// Collect fetches every shard of src concurrently. The result is in page
// order and has one entry per page; a failed or timed-out shard carries its
// error and no data. Only listing failures (or an empty listing) are
// returned as an error.
func Collect(ctx context.Context, src Source, opts Options) ([]Shard, error) {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	if opts.ShardTimeout <= 0 {
		opts.ShardTimeout = DefaultShardTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	pages, err := src.Pages(ctx)
	if err != nil {
		return nil, fmt.Errorf("list shards: %w", err)
	}
	if len(pages) == 0 {
		return nil, ErrNoShards
	}

	shards := make([]Shard, len(pages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for i, page := range pages {
		g.Go(func() error {
			sctx, cancel := context.WithTimeout(gctx, opts.ShardTimeout)
			defer cancel()

			data, err := src.Fetch(sctx, page)
			shards[i] = Shard{Page: page, Data: data, Err: err}
			if err != nil {
				logger.Warn("shard unavailable", "page", page, "error", err)
			}
			// A shard failure is not a group failure.
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return shards, nil
}
