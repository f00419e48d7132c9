// Package mcp provides MCP tool handlers for the catalog.
// These handlers parse MCP request arguments and delegate to the query
// engine and the indexer.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bad33ndj3/repack-catalog/internal/domain"
	"github.com/bad33ndj3/repack-catalog/internal/facets"
	"github.com/bad33ndj3/repack-catalog/internal/indexer"
	"github.com/bad33ndj3/repack-catalog/internal/store"
	"github.com/bad33ndj3/repack-catalog/internal/suggest"
	"github.com/bad33ndj3/repack-catalog/internal/text"
)

// SearchArgs defines the arguments for the catalog_search tool.
type SearchArgs struct {
	Query     string   `json:"query,omitempty" jsonschema_description:"Free-text query (e.g. 'racing', 'dark souls'). Omit to list everything"`
	Verbatim  bool     `json:"verbatim,omitempty" jsonschema_description:"Match the query as an exact title first (default: false)"`
	Genres    []string `json:"genres,omitempty" jsonschema_description:"Keep games carrying any of these genres or tags"`
	Languages []string `json:"languages,omitempty" jsonschema_description:"Keep games whose languages mention any of these (e.g. 'RUS')"`
	MaxSize   string   `json:"max_size,omitempty" jsonschema_description:"Largest repack size to keep (e.g. '20 GB')"`
	SortBy    string   `json:"sort_by,omitempty" jsonschema_description:"relevance, title, releaseDate or size (default: relevance)"`
	SortOrder string   `json:"sort_order,omitempty" jsonschema_description:"asc or desc (default: asc)"`
	Page      int      `json:"page,omitempty" jsonschema_description:"1-based page (default 1)"`
	Limit     int      `json:"limit,omitempty" jsonschema_description:"Games per page (default 20)"`
}

// GetArgs defines the arguments for the catalog_get tool.
type GetArgs struct {
	ID string `json:"id" jsonschema_description:"Game id as returned by catalog_search"`
}

// SuggestArgs defines the arguments for the catalog_suggest tool.
type SuggestArgs struct {
	Query string `json:"query" jsonschema_description:"Partially typed query, at least 2 characters"`
}

// Planner answers catalog queries.
type Planner interface {
	Plan(spec domain.QuerySpec) (domain.Page, error)
}

// Catalog is the read side of the store.
type Catalog interface {
	Snapshot() *store.Snapshot
}

// Stats provides catalog statistics.
type Stats interface {
	Stats() facets.Stats
}

// Suggester produces query suggestions.
type Suggester interface {
	Suggest(query string, recent []string) []suggest.Suggestion
}

// Loader re-ingests the catalog.
type Loader interface {
	Load(ctx context.Context) (*indexer.LoadResult, error)
}

// Deps bundles what the tools serve from.
type Deps struct {
	Planner   Planner
	Catalog   Catalog
	Stats     Stats
	Suggester Suggester
	Loader    Loader
}

// Handlers provides MCP tool handlers.
type Handlers struct {
	deps   Deps
	logger *slog.Logger
}

// NewHandlers creates handlers. A nil logger discards output.
func NewHandlers(deps Deps, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handlers{deps: deps, logger: logger}
}

// Register adds every catalog tool to server.
func (h *Handlers) Register(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "catalog_search",
		Description: "Search the repack catalog. Supports genre, language and size filters, sorting and pagination.",
	}, h.CatalogSearch)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "catalog_get",
		Description: "Fetch one game by id with every field (sizes, languages, features, download links).",
	}, h.CatalogGet)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "catalog_stats",
		Description: "Catalog statistics: total games, per-genre and per-language counts, size histogram.",
	}, h.CatalogStats)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "catalog_suggest",
		Description: "Suggest tags and game titles for a partially typed query.",
	}, h.CatalogSuggest)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "catalog_reload",
		Description: "Re-ingest the shard files. Unchanged shards are served from cache.",
	}, h.CatalogReload)
}

// CatalogSearch handles the catalog_search tool call.
func (h *Handlers) CatalogSearch(ctx context.Context, req *mcp.CallToolRequest, args SearchArgs) (*mcp.CallToolResult, any, error) {
	spec := domain.QuerySpec{
		Text:      args.Query,
		Verbatim:  args.Verbatim,
		SortKey:   domain.SortKey(args.SortBy),
		SortOrder: domain.SortOrder(args.SortOrder),
		Page:      args.Page,
		PageSize:  args.Limit,
		Filters: domain.Filters{
			Genres:    args.Genres,
			Languages: args.Languages,
		},
	}
	if spec.Page == 0 {
		spec.Page = 1
	}
	if spec.PageSize == 0 {
		spec.PageSize = domain.DefaultPageSize
	}
	if s := strings.TrimSpace(args.MaxSize); s != "" {
		mb, ok := text.ParseSizeMB(s)
		if !ok {
			h.logger.Error("catalog_search: bad max_size", "max_size", s)
			return nil, nil, fmt.Errorf("max_size %q is not a size (try '20 GB')", s)
		}
		spec.Filters.MaxSizeMB = &mb
	}

	h.logger.Debug("catalog_search: planning", "query", spec.Text, "page", spec.Page)

	page, err := h.deps.Planner.Plan(spec)
	if err != nil {
		h.logger.Error("catalog_search: failed", "error", err)
		return nil, nil, err
	}

	h.logger.Info("catalog_search: success", "query", spec.Text, "total", page.Total)

	if page.Total == 0 {
		return textResult("No games match."), nil, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d games (page %d of %d)\n\n", page.Total, page.Page, max(page.TotalPages, 1))
	for _, rec := range page.Items {
		fmt.Fprintf(&sb, "- [%s] %s\n", rec.ID, rec.Title)
		fmt.Fprintf(&sb, "  genre: %s | repack: %s | languages: %s\n",
			joinOr(rec.Genre, domain.Unknown), rec.RepackSize.Raw, rec.LanguagesRaw)
	}
	if page.HasNext {
		fmt.Fprintf(&sb, "\nMore results: call again with page %d.", page.Page+1)
	}
	return textResult(sb.String()), nil, nil
}

// CatalogGet handles the catalog_get tool call.
func (h *Handlers) CatalogGet(ctx context.Context, req *mcp.CallToolRequest, args GetArgs) (*mcp.CallToolResult, any, error) {
	id := strings.TrimSpace(args.ID)
	if id == "" {
		h.logger.Error("catalog_get: id is required")
		return nil, nil, fmt.Errorf("id is required")
	}

	rec, ok := h.deps.Catalog.Snapshot().Get(id)
	if !ok {
		return nil, nil, fmt.Errorf("game %q not found", id)
	}
	return jsonResult(rec)
}

// CatalogStats handles the catalog_stats tool call.
func (h *Handlers) CatalogStats(ctx context.Context, req *mcp.CallToolRequest, args struct{}) (*mcp.CallToolResult, any, error) {
	return jsonResult(h.deps.Stats.Stats())
}

// CatalogSuggest handles the catalog_suggest tool call.
func (h *Handlers) CatalogSuggest(ctx context.Context, req *mcp.CallToolRequest, args SuggestArgs) (*mcp.CallToolResult, any, error) {
	got := h.deps.Suggester.Suggest(args.Query, nil)
	if len(got) == 0 {
		return textResult("No suggestions."), nil, nil
	}

	var sb strings.Builder
	for _, s := range got {
		fmt.Fprintf(&sb, "- %s (%s)\n", s.Text, s.Type)
	}
	return textResult(sb.String()), nil, nil
}

// CatalogReload handles the catalog_reload tool call.
func (h *Handlers) CatalogReload(ctx context.Context, req *mcp.CallToolRequest, args struct{}) (*mcp.CallToolResult, any, error) {
	h.logger.Debug("catalog_reload: starting")

	res, err := h.deps.Loader.Load(ctx)
	if err != nil {
		h.logger.Error("catalog_reload: failed", "error", err)
		return nil, nil, err
	}

	h.logger.Info("catalog_reload: success",
		"records", res.Records,
		"version", res.Version,
		"from_cache", res.FromCache,
	)

	var msg string
	switch {
	case res.Sample:
		msg = fmt.Sprintf("No shard yielded a record; serving %d sample games.\n", res.Records)
	case res.FromCache:
		msg = fmt.Sprintf("Shards unchanged, loaded from cache.\n\nrecords: %d\nversion: %d\ningested_at: %s\n",
			res.Records, res.Version, res.IngestedAt.Format(time.RFC3339))
	default:
		msg = fmt.Sprintf("Ingested and cached.\n\nrecords: %d\nversion: %d\nshards: %d (%d failed)\n",
			res.Records, res.Version, res.Shards, res.FailedShards)
	}
	return textResult(msg), nil, nil
}

func textResult(s string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: s}},
	}
}

func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("encode result: %w", err)
	}
	return textResult(string(b)), nil, nil
}

func joinOr(vals []string, def string) string {
	if len(vals) == 0 {
		return def
	}
	return strings.Join(vals, ", ")
}
