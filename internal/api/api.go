// Package api serves the catalog over HTTP with gin.
//
// Routes mirror the listing API browser clients already speak:
// GET /api/games returns {games, pagination} and any malformed request is
// a 400 with {error}.
package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/bad33ndj3/repack-catalog/internal/domain"
	"github.com/bad33ndj3/repack-catalog/internal/facets"
	"github.com/bad33ndj3/repack-catalog/internal/indexer"
	"github.com/bad33ndj3/repack-catalog/internal/prefs"
	"github.com/bad33ndj3/repack-catalog/internal/query"
	"github.com/bad33ndj3/repack-catalog/internal/store"
	"github.com/bad33ndj3/repack-catalog/internal/suggest"
)

// RequestIDHeader carries the per-request id in both directions.
const RequestIDHeader = "X-Request-ID"

// ─── Dependencies ────────────────────────────────────────────────────────────

// Planner answers catalog queries.
type Planner interface {
	Plan(spec domain.QuerySpec) (domain.Page, error)
}

// Catalog is the read side of the store.
type Catalog interface {
	Snapshot() *store.Snapshot
}

// Facets provides filter dimensions and statistics.
type Facets interface {
	UniqueGenres() []string
	UniqueLanguages() []string
	UniqueTags() []string
	Stats() facets.Stats
}

// Suggester produces search-box suggestions.
type Suggester interface {
	Suggest(query string, recent []string) []suggest.Suggestion
}

// Loader re-ingests the catalog.
type Loader interface {
	Load(ctx context.Context) (*indexer.LoadResult, error)
	Last() *indexer.LoadResult
}

// Prefs is the persisted client state.
type Prefs interface {
	Load() (prefs.State, error)
	Recent() ([]string, error)
	AddRecent(search string) error
	ClearRecent() error
	Favorites() ([]string, error)
	ToggleFavorite(title string) (bool, error)
}

// Deps bundles what the handler serves from. Prefs may be nil, in which
// case the preference routes aren't registered and suggestions carry no
// recent searches.
type Deps struct {
	Planner   Planner
	Catalog   Catalog
	Facets    Facets
	Suggester Suggester
	Loader    Loader
	Prefs     Prefs
}

// Handler holds the HTTP handlers.
type Handler struct {
	deps   Deps
	limits Limits
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

// WithLimits sets the page size bounds.
func WithLimits(l Limits) Option {
	return func(h *Handler) { h.limits = l }
}

// NewHandler creates a Handler.
func NewHandler(deps Deps, opts ...Option) *Handler {
	h := &Handler{
		deps:   deps,
		limits: DefaultLimits(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Router returns a gin engine with middleware and every route under /api.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), h.accessLog())
	h.RegisterRoutes(r.Group("/api"))
	return r
}

// RegisterRoutes mounts the API on rg.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/health", h.health)

	games := rg.Group("/games")
	games.GET("", h.list)
	games.GET("/stats", h.stats)
	games.GET("/facets", h.facets)
	games.GET("/suggest", h.suggest)
	games.POST("/reload", h.reload)
	games.GET("/:id", h.getByID)

	if h.deps.Prefs != nil {
		games.GET("/favorites", h.favorites)
		p := rg.Group("/prefs")
		p.GET("", h.prefs)
		p.POST("/recent", h.addRecent)
		p.DELETE("/recent", h.clearRecent)
		p.POST("/favorites", h.toggleFavorite)
	}
}

// ─── Middleware ──────────────────────────────────────────────────────────────

// RequestID tags every request with an id, reusing the caller's when it
// sent one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(RequestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(RequestIDHeader, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func (h *Handler) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"request_id", c.GetString(RequestIDHeader))
	}
}

// ─── Games ───────────────────────────────────────────────────────────────────

func (h *Handler) list(c *gin.Context) {
	spec, err := ParseQuery(c.Request.URL.Query(), h.limits)
	if err != nil {
		h.fail(c, err)
		return
	}
	page, err := h.deps.Planner.Plan(spec)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, domain.NewGamesResponse(page))
}

func (h *Handler) getByID(c *gin.Context) {
	rec, ok := h.deps.Catalog.Snapshot().Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, domain.ErrorResponse{Error: "Game not found"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *Handler) stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.deps.Facets.Stats())
}

// FacetsResponse is the body of GET /api/games/facets.
type FacetsResponse struct {
	Genres    []string `json:"genres"`
	Languages []string `json:"languages"`
	Tags      []string `json:"tags"`
}

func (h *Handler) facets(c *gin.Context) {
	c.JSON(http.StatusOK, FacetsResponse{
		Genres:    h.deps.Facets.UniqueGenres(),
		Languages: h.deps.Facets.UniqueLanguages(),
		Tags:      h.deps.Facets.UniqueTags(),
	})
}

// SuggestResponse is the body of GET /api/games/suggest.
type SuggestResponse struct {
	Suggestions []suggest.Suggestion `json:"suggestions"`
}

func (h *Handler) suggest(c *gin.Context) {
	var recent []string
	if h.deps.Prefs != nil {
		var err error
		if recent, err = h.deps.Prefs.Recent(); err != nil {
			h.logger.Warn("recent searches unavailable", "error", err)
		}
	}
	c.JSON(http.StatusOK, SuggestResponse{Suggestions: h.deps.Suggester.Suggest(c.Query("q"), recent)})
}

func (h *Handler) reload(c *gin.Context) {
	res, err := h.deps.Loader.Load(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// favorites lists the favorite games present in the catalog, in store order.
func (h *Handler) favorites(c *gin.Context) {
	titles, err := h.deps.Prefs.Favorites()
	if err != nil {
		h.fail(c, err)
		return
	}
	want := make(map[string]bool, len(titles))
	for _, t := range titles {
		want[t] = true
	}
	games := []domain.CatalogRecord{}
	for _, rec := range h.deps.Catalog.Snapshot().Records {
		if want[rec.Title] {
			games = append(games, rec)
		}
	}
	c.JSON(http.StatusOK, gin.H{"games": games, "total": len(games)})
}

// ─── Health ──────────────────────────────────────────────────────────────────

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status    string              `json:"status"`
	Timestamp time.Time           `json:"timestamp"`
	Records   int                 `json:"records"`
	Version   uint64              `json:"version"`
	Sample    bool                `json:"sample"`
	LastLoad  *indexer.LoadResult `json:"lastLoad,omitempty"`
}

func (h *Handler) health(c *gin.Context) {
	snap := h.deps.Catalog.Snapshot()
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: h.now().UTC(),
		Records:   len(snap.Records),
		Version:   snap.Version,
	}
	if h.deps.Loader != nil {
		resp.LastLoad = h.deps.Loader.Last()
	}
	switch {
	case resp.LastLoad == nil && resp.Records == 0:
		resp.Status = "starting"
	case resp.LastLoad != nil && resp.LastLoad.Sample:
		resp.Status = "degraded"
		resp.Sample = true
	}
	c.JSON(http.StatusOK, resp)
}

// ─── Prefs ───────────────────────────────────────────────────────────────────

type recentRequest struct {
	Search string `json:"search" binding:"required"`
}

type favoriteRequest struct {
	Title string `json:"title" binding:"required"`
}

func (h *Handler) prefs(c *gin.Context) {
	st, err := h.deps.Prefs.Load()
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) addRecent(c *gin.Context) {
	var req recentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, domain.ErrorResponse{Error: "search is required"})
		return
	}
	if err := h.deps.Prefs.AddRecent(req.Search); err != nil {
		h.fail(c, err)
		return
	}
	h.prefs(c)
}

func (h *Handler) clearRecent(c *gin.Context) {
	if err := h.deps.Prefs.ClearRecent(); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) toggleFavorite(c *gin.Context) {
	var req favoriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, domain.ErrorResponse{Error: "title is required"})
		return
	}
	on, err := h.deps.Prefs.ToggleFavorite(req.Title)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"title": req.Title, "favorite": on})
}

// fail maps err to a status: invalid requests are the client's fault,
// anything else is logged and reported as a 500.
func (h *Handler) fail(c *gin.Context, err error) {
	if errors.Is(err, query.ErrInvalidRequest) {
		c.JSON(http.StatusBadRequest, domain.ErrorResponse{Error: err.Error()})
		return
	}
	h.logger.Error("request failed",
		"path", c.Request.URL.Path,
		"request_id", c.GetString(RequestIDHeader),
		"error", err)
	c.JSON(http.StatusInternalServerError, domain.ErrorResponse{Error: "internal error"})
}
