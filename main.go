// Package main is the entry point for the repack catalog.
// It wires together all dependencies and runs one of the CLI commands.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/urfave/cli/v2"

	"github.com/bad33ndj3/repack-catalog/internal/api"
	"github.com/bad33ndj3/repack-catalog/internal/cache"
	"github.com/bad33ndj3/repack-catalog/internal/config"
	"github.com/bad33ndj3/repack-catalog/internal/domain"
	"github.com/bad33ndj3/repack-catalog/internal/facets"
	"github.com/bad33ndj3/repack-catalog/internal/indexer"
	"github.com/bad33ndj3/repack-catalog/internal/loader"
	mcphandlers "github.com/bad33ndj3/repack-catalog/internal/mcp"
	"github.com/bad33ndj3/repack-catalog/internal/normalizer"
	"github.com/bad33ndj3/repack-catalog/internal/parser"
	"github.com/bad33ndj3/repack-catalog/internal/prefs"
	"github.com/bad33ndj3/repack-catalog/internal/query"
	"github.com/bad33ndj3/repack-catalog/internal/search"
	"github.com/bad33ndj3/repack-catalog/internal/store"
	"github.com/bad33ndj3/repack-catalog/internal/suggest"
	"github.com/bad33ndj3/repack-catalog/internal/text"
)

const (
	appName    = "repack-catalog"
	appVersion = "v0.3.0"
)

// setupLogger creates an slog logger that writes to a debug file in the cache directory.
// File format: debug-YYYY-MM-DD.txt
func setupLogger(cacheDir string, level slog.Level) (*slog.Logger, *os.File, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create cache dir: %w", err)
	}

	date := time.Now().Format("2006-01-02")
	logPath := filepath.Join(cacheDir, fmt.Sprintf("debug-%s.txt", date))

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(file, &slog.HandlerOptions{Level: level}))
	return logger, file, nil
}

// loadConfig reads the config file and applies CLI flag overrides.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cfg, err
	}
	if c.IsSet("shards") {
		cfg.Ingest.ShardsDir = c.String("shards")
	}
	if c.IsSet("base-url") {
		cfg.Ingest.BaseURL = c.String("base-url")
	}
	if c.IsSet("cache-backend") {
		cfg.Cache.Backend = c.String("cache-backend")
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	return cfg, cfg.Validate()
}

// ─── Wiring ──────────────────────────────────────────────────────────────────

// catalog is every component of a running catalog.
type catalog struct {
	cfg       config.Config
	store     *store.Store
	indexer   *indexer.Indexer
	planner   *query.Planner
	facets    *facets.Index
	suggester *suggest.Suggester
	closeFn   func() error
}

func (c *catalog) Close() error {
	if c.closeFn == nil {
		return nil
	}
	return c.closeFn()
}

func openCache(cfg config.Config) (cache.Cache, func() error, error) {
	switch cfg.Cache.Backend {
	case config.BackendSQLite:
		c, err := cache.OpenSQLite(cfg.Cache.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return c, c.Close, nil
	default:
		c, err := cache.NewFileCache(cfg.Cache.Dir)
		if err != nil {
			return nil, nil, err
		}
		return c, nil, nil
	}
}

func newCatalog(cfg config.Config, logger *slog.Logger) (*catalog, error) {
	dsCache, closeFn, err := openCache(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	st := store.New()
	norm := normalizer.New(
		normalizer.WithPolicy(cfg.Policy()),
		normalizer.WithTitleSuffix(cfg.Catalog.TitleSuffix),
	)
	ix := indexer.New(cfg.Source(), parser.NewShardParser(), norm, dsCache, st,
		indexer.WithLogger(logger),
		indexer.WithFetchOptions(cfg.FetchOptions(logger)),
		indexer.WithCacheName(cfg.Cache.Name),
		indexer.WithSampleSize(cfg.Catalog.SampleSize),
	)
	ranker := search.NewFuzzyRanker(search.WithConfig(cfg.Ranker()))
	fx := facets.New(st)

	return &catalog{
		cfg:     cfg,
		store:   st,
		indexer: ix,
		planner: query.NewPlanner(st, ranker,
			query.WithLogger(logger),
			query.WithMemoSize(cfg.Search.MemoSize)),
		facets:    fx,
		suggester: suggest.New(fx, st),
		closeFn:   closeFn,
	}, nil
}

func stderrLogger(cfg config.Config) *slog.Logger {
	level, _ := cfg.LogLevel()
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// ─── Commands ────────────────────────────────────────────────────────────────

func serve(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet("listen") {
		cfg.Server.Listen = c.String("listen")
	}
	logger := stderrLogger(cfg)

	cat, err := newCatalog(cfg, logger)
	if err != nil {
		return err
	}
	defer cat.Close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := cat.indexer.Load(ctx)
	if err != nil {
		return fmt.Errorf("initial load: %w", err)
	}
	logger.Info("catalog loaded", "records", res.Records, "version", res.Version, "from_cache", res.FromCache, "sample", res.Sample)

	if (cfg.Ingest.Watch || c.Bool("watch")) && cfg.Ingest.BaseURL == "" {
		go func() {
			if err := cat.indexer.Watch(ctx, cfg.Ingest.ShardsDir, cfg.Ingest.Pattern, cfg.Ingest.Debounce.Std()); err != nil {
				logger.Error("shard watcher stopped", "error", err)
			}
		}()
	}

	handler := api.NewHandler(api.Deps{
		Planner:   cat.planner,
		Catalog:   cat.store,
		Facets:    cat.facets,
		Suggester: cat.suggester,
		Loader:    cat.indexer,
		Prefs:     prefs.Open(cfg.Prefs.Path, prefs.WithLogger(logger)),
	},
		api.WithLogger(logger),
		api.WithLimits(api.Limits{DefaultPageSize: cfg.Server.PageSize, MaxPageSize: cfg.Server.MaxPageSize}),
	)

	srv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP API listening", "addr", cfg.Server.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func serveMCP(c *cli.Context) error {
	// MCP stdio servers must keep stdout for the protocol.
	log.SetOutput(os.Stderr)

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	level, _ := cfg.LogLevel()
	logger, logFile, err := setupLogger(cfg.Cache.Dir, level)
	if err != nil {
		log.Printf("Warning: failed to setup file logger: %v", err)
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	} else {
		defer logFile.Close()
	}

	logger.Info("server starting", "name", appName, "version", appVersion, "cache_dir", cfg.Cache.Dir)

	cat, err := newCatalog(cfg, logger)
	if err != nil {
		return err
	}
	defer cat.Close()

	if _, err := cat.indexer.Load(c.Context); err != nil {
		return fmt.Errorf("initial load: %w", err)
	}

	handlers := mcphandlers.NewHandlers(mcphandlers.Deps{
		Planner:   cat.planner,
		Catalog:   cat.store,
		Stats:     cat.facets,
		Suggester: cat.suggester,
		Loader:    cat.indexer,
	}, logger)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    appName,
		Version: appVersion,
	}, &mcp.ServerOptions{
		Instructions: "Use catalog_search to find repacks (filters, sorting, pages), catalog_get for one game's details, catalog_suggest while a query is being typed.",
	})
	handlers.Register(server)

	logger.Info("server ready, waiting for requests")
	return server.Run(c.Context, &mcp.StdioTransport{})
}

func ingest(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	cat, err := newCatalog(cfg, stderrLogger(cfg))
	if err != nil {
		return err
	}
	defer cat.Close()

	res, err := cat.indexer.Load(c.Context)
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, res)
}

// specFromFlags builds a QuerySpec from the query/browse flags.
func specFromFlags(c *cli.Context) (domain.QuerySpec, error) {
	spec := domain.QuerySpec{
		Text:      strings.Join(c.Args().Slice(), " "),
		Verbatim:  c.Bool("verbatim"),
		SortKey:   domain.SortKey(c.String("sort")),
		SortOrder: domain.SortOrder(c.String("order")),
		Page:      c.Int("page"),
		PageSize:  c.Int("limit"),
		Filters: domain.Filters{
			Genres:    c.StringSlice("genre"),
			Languages: c.StringSlice("language"),
		},
	}
	if s := c.String("max-size"); s != "" {
		mb, ok := text.ParseSizeMB(s)
		if !ok {
			return spec, fmt.Errorf("--max-size %q is not a size", s)
		}
		spec.Filters.MaxSizeMB = &mb
	}
	return spec, query.Validate(spec)
}

func runQuery(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	spec, err := specFromFlags(c)
	if err != nil {
		return err
	}
	cat, err := newCatalog(cfg, stderrLogger(cfg))
	if err != nil {
		return err
	}
	defer cat.Close()

	if _, err := cat.indexer.Load(c.Context); err != nil {
		return err
	}
	page, err := cat.planner.Plan(spec)
	if err != nil {
		return err
	}
	if c.Bool("json") {
		return printJSON(c.App.Writer, domain.NewGamesResponse(page))
	}
	w := c.App.Writer
	fmt.Fprintf(w, "%d results, page %d of %d\n", page.Total, page.Page, max(page.TotalPages, 1))
	for _, rec := range page.Items {
		fmt.Fprintf(w, "%6s  %-60s  %s\n", rec.ID, rec.Title, rec.RepackSize.Raw)
	}
	return nil
}

// browse drives the incremental loader the way a scrolling client would,
// either in-process or against a running server.
func browse(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	spec, err := specFromFlags(c)
	if err != nil {
		return err
	}
	logger := stderrLogger(cfg)

	var fetcher loader.PageFetcher
	if server := c.String("server"); server != "" {
		fetcher = loader.NewHTTPFetcher(server)
	} else {
		cat, err := newCatalog(cfg, logger)
		if err != nil {
			return err
		}
		defer cat.Close()
		if _, err := cat.indexer.Load(c.Context); err != nil {
			return err
		}
		fetcher = loader.FetcherFunc(func(_ context.Context, spec domain.QuerySpec) (domain.Page, error) {
			return cat.planner.Plan(spec)
		})
	}

	l := loader.New(fetcher, loader.WithLogger(logger), loader.WithTimeout(cfg.Server.LoaderTimeout.Std()))
	defer l.Close()

	if err := l.SetQuery(spec); err != nil {
		return err
	}
	w := c.App.Writer
	shown := 0
	for pages := 0; ; pages++ {
		v, err := l.Wait(c.Context)
		if err != nil {
			return err
		}
		if v.State == loader.Error {
			return fmt.Errorf("page %d: %w", v.Page+1, v.Err)
		}
		for _, rec := range v.Records[shown:] {
			fmt.Fprintf(w, "%6s  %s\n", rec.ID, rec.Title)
		}
		shown = len(v.Records)
		fmt.Fprintf(w, "-- %d of %d loaded --\n", shown, v.Total)

		if !v.HasNext || (c.Int("max-pages") > 0 && pages+1 >= c.Int("max-pages")) {
			return nil
		}
		if _, err := l.LoadMore(); err != nil {
			return err
		}
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func queryFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{Name: "genre", Aliases: []string{"g"}, Usage: "Keep games with any of these genres or tags"},
		&cli.StringSliceFlag{Name: "language", Aliases: []string{"l"}, Usage: "Keep games whose languages mention any of these"},
		&cli.StringFlag{Name: "max-size", Usage: "Largest repack size to keep (e.g. '20 GB')"},
		&cli.StringFlag{Name: "sort", Usage: "relevance, title, releaseDate or size"},
		&cli.StringFlag{Name: "order", Usage: "asc or desc"},
		&cli.BoolFlag{Name: "verbatim", Usage: "Treat the query as an exact title"},
		&cli.IntFlag{Name: "page", Value: 1, Usage: "Page to show"},
		&cli.IntFlag{Name: "limit", Value: domain.DefaultPageSize, Usage: "Results per page"},
	}
}

func main() {
	app := &cli.App{
		Name:    appName,
		Usage:   "Catalog, search and browse game repack listings",
		Version: appVersion,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Value: config.DefaultPath, Usage: "Config file path"},
			&cli.StringFlag{Name: "shards", Usage: "Directory holding results_page_N.json shards (overrides config)"},
			&cli.StringFlag{Name: "base-url", Usage: "Fetch shards over HTTP from this base URL (overrides config)"},
			&cli.StringFlag{Name: "cache-backend", Usage: "file or sqlite (overrides config)"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error (overrides config)"},
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Serve the HTTP API",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "listen", Usage: "Listen address (overrides config)"},
					&cli.BoolFlag{Name: "watch", Usage: "Re-ingest when shard files change"},
				},
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools over stdio",
				Action: serveMCP,
			},
			{
				Name:   "ingest",
				Usage:  "Ingest shards into the cache and print a summary",
				Action: ingest,
			},
			{
				Name:      "query",
				Aliases:   []string{"q"},
				Usage:     "Run one query and print a page of results",
				ArgsUsage: "[text...]",
				Flags:     append(queryFlags(), &cli.BoolFlag{Name: "json", Usage: "Print the API response body"}),
				Action:    runQuery,
			},
			{
				Name:      "browse",
				Usage:     "Load a query page by page like a scrolling client",
				ArgsUsage: "[text...]",
				Flags: append(queryFlags(),
					&cli.StringFlag{Name: "server", Usage: "Browse a running server instead of an in-process catalog"},
					&cli.IntFlag{Name: "max-pages", Usage: "Stop after this many pages (0 = all)"},
				),
				Action: browse,
			},
		},
	}

	if err := app.RunContext(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
