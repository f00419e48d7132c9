package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bad33ndj3/repack-catalog/internal/domain"
	"github.com/bad33ndj3/repack-catalog/internal/facets"
	"github.com/bad33ndj3/repack-catalog/internal/indexer"
	"github.com/bad33ndj3/repack-catalog/internal/normalizer"
	"github.com/bad33ndj3/repack-catalog/internal/prefs"
	"github.com/bad33ndj3/repack-catalog/internal/query"
	"github.com/bad33ndj3/repack-catalog/internal/search"
	"github.com/bad33ndj3/repack-catalog/internal/store"
	"github.com/bad33ndj3/repack-catalog/internal/suggest"
	"github.com/bad33ndj3/repack-catalog/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeLoader stands in for the indexer.
type fakeLoader struct {
	res   *indexer.LoadResult
	err   error
	loads int
}

func (f *fakeLoader) Load(context.Context) (*indexer.LoadResult, error) {
	f.loads++
	return f.res, f.err
}

func (f *fakeLoader) Last() *indexer.LoadResult { return f.res }

type server struct {
	router *gin.Engine
	loader *fakeLoader
	prefs  *prefs.Store
}

func newServer(t *testing.T) *server {
	t.Helper()
	st := store.New()
	st.ReplaceAll(normalizer.New().NormalizeAll([]domain.RawRecord{
		testutil.Raw("Alpha Quest", []string{"Action", "3D"}, "65.2 GB", "from 30.1 GB", "ENG/RUS"),
		testutil.Raw("Beta Storm", []string{"Racing", "Cars"}, "35.6 GB", "from 20 GB", "ENG"),
		testutil.Raw("Gamma Rising", []string{"RPG", "Fantasy"}, "150 GB", "from 80 GB", "MULTI8"),
	}))
	fx := facets.New(st)
	ld := &fakeLoader{res: &indexer.LoadResult{Version: st.Version(), Records: 3}}
	ps := prefs.Open(filepath.Join(t.TempDir(), "prefs.json"))

	h := NewHandler(Deps{
		Planner:   query.NewPlanner(st, search.NewFuzzyRanker()),
		Catalog:   st,
		Facets:    fx,
		Suggester: suggest.New(fx, st),
		Loader:    ld,
		Prefs:     ps,
	})
	return &server{router: h.Router(), loader: ld, prefs: ps}
}

func (s *server) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func titles(resp domain.GamesResponse) []string {
	out := make([]string, len(resp.Games))
	for i, g := range resp.Games {
		out[i] = strings.TrimSuffix(g.Title, " - FitGirl Repacks")
	}
	return out
}

func TestListGames(t *testing.T) {
	s := newServer(t)

	tests := []struct {
		name   string
		target string
		want   []string
		total  int
	}{
		{"everything in store order", "/api/games", []string{"Alpha Quest", "Beta Storm", "Gamma Rising"}, 3},
		{"text query", "/api/games?q=beta", []string{"Beta Storm"}, 1},
		{"branding only is no query", "/api/games?q=fit+girl+repacks", []string{"Alpha Quest", "Beta Storm", "Gamma Rising"}, 3},
		{"genre list", "/api/games?genre=Racing,RPG&sortBy=title&sortOrder=desc", []string{"Gamma Rising", "Beta Storm"}, 2},
		{"repeated genre", "/api/games?genre=Racing&genre=Action", []string{"Alpha Quest", "Beta Storm"}, 2},
		{"size string", "/api/games?size=25%20GB", []string{"Beta Storm"}, 1},
		{"size in MB", "/api/games?maxSizeMB=40000", []string{"Alpha Quest", "Beta Storm"}, 2},
		{"language", "/api/games?language=RUS", []string{"Alpha Quest"}, 1},
		{"sort by size", "/api/games?sortBy=size&sortOrder=desc", []string{"Gamma Rising", "Alpha Quest", "Beta Storm"}, 3},
		{"second page", "/api/games?limit=2&page=2", []string{"Gamma Rising"}, 3},
		{"verbatim exact title", "/api/games?q=Beta+Storm+-+FitGirl+Repacks&verbatim=true", []string{"Beta Storm"}, 1},
		{"page far past the end", "/api/games?limit=100&page=92233720368547760", []string{}, 3},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := s.do(t, http.MethodGet, tc.target, "")
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			resp := decode[domain.GamesResponse](t, w)
			assert.Equal(t, tc.want, titles(resp))
			assert.Equal(t, tc.total, resp.Pagination.Total)
		})
	}
}

func TestListGames_Pagination(t *testing.T) {
	s := newServer(t)

	resp := decode[domain.GamesResponse](t, s.do(t, http.MethodGet, "/api/games?limit=2", ""))
	assert.Equal(t, domain.Pagination{Page: 1, Limit: 2, Total: 3, TotalPages: 2, HasNext: true, HasPrev: false}, resp.Pagination)

	resp = decode[domain.GamesResponse](t, s.do(t, http.MethodGet, "/api/games?limit=2&page=2", ""))
	assert.Equal(t, domain.Pagination{Page: 2, Limit: 2, Total: 3, TotalPages: 2, HasNext: false, HasPrev: true}, resp.Pagination)

	resp = decode[domain.GamesResponse](t, s.do(t, http.MethodGet, "/api/games?q=zzzz", ""))
	assert.NotNil(t, resp.Games)
	assert.Empty(t, resp.Games)
}

func TestListGames_InvalidRequests(t *testing.T) {
	s := newServer(t)

	tests := map[string]string{
		"page zero":        "/api/games?page=0",
		"page not integer": "/api/games?page=two",
		"limit zero":       "/api/games?limit=0",
		"limit too large":  "/api/games?limit=1000",
		"unknown sort key": "/api/games?sortBy=rating",
		"unknown order":    "/api/games?sortOrder=up",
		"bad size":         "/api/games?size=huge",
		"bad maxSizeMB":    "/api/games?maxSizeMB=lots",
		"negative size":    "/api/games?maxSizeMB=-1",
		"NaN size":         "/api/games?maxSizeMB=NaN",
		"infinite size":    "/api/games?maxSizeMB=%2BInf",
		"bad verbatim":     "/api/games?verbatim=maybe",
	}
	for name, target := range tests {
		t.Run(name, func(t *testing.T) {
			w := s.do(t, http.MethodGet, target, "")
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, decode[domain.ErrorResponse](t, w).Error, "invalid request")
		})
	}
}

func TestGetGame(t *testing.T) {
	s := newServer(t)

	w := s.do(t, http.MethodGet, "/api/games/2", "")
	require.Equal(t, http.StatusOK, w.Code)
	rec := decode[domain.CatalogRecord](t, w)
	assert.Equal(t, "Beta Storm - FitGirl Repacks", rec.Title)
	assert.Equal(t, []string{"Racing"}, rec.Genre)

	w = s.do(t, http.MethodGet, "/api/games/99", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Game not found", decode[domain.ErrorResponse](t, w).Error)
}

func TestStatsAndFacets(t *testing.T) {
	s := newServer(t)

	stats := decode[facets.Stats](t, s.do(t, http.MethodGet, "/api/games/stats", ""))
	assert.Equal(t, 3, stats.TotalGames)
	assert.Equal(t, 1, stats.Genres["Racing"])

	fx := decode[FacetsResponse](t, s.do(t, http.MethodGet, "/api/games/facets", ""))
	assert.Contains(t, fx.Genres, "Racing")
	assert.Contains(t, fx.Tags, "Cars")
}

func TestSuggest(t *testing.T) {
	s := newServer(t)
	require.NoError(t, s.prefs.AddRecent("racing games"))

	resp := decode[SuggestResponse](t, s.do(t, http.MethodGet, "/api/games/suggest?q=rac", ""))
	require.NotEmpty(t, resp.Suggestions)
	assert.Equal(t, suggest.Suggestion{Text: "racing games", Type: suggest.TypeRecent}, resp.Suggestions[0])
	assert.Contains(t, resp.Suggestions, suggest.Suggestion{Text: "Racing", Type: suggest.TypeTag})

	resp = decode[SuggestResponse](t, s.do(t, http.MethodGet, "/api/games/suggest?q=r", ""))
	assert.Empty(t, resp.Suggestions)
}

func TestReload(t *testing.T) {
	s := newServer(t)

	w := s.do(t, http.MethodPost, "/api/games/reload", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, decode[indexer.LoadResult](t, w).Records)
	assert.Equal(t, 1, s.loader.loads)

	s.loader.err = errors.New("disk on fire")
	w = s.do(t, http.MethodPost, "/api/games/reload", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "disk on fire")
}

func TestHealth(t *testing.T) {
	s := newServer(t)

	h := decode[HealthResponse](t, s.do(t, http.MethodGet, "/api/health", ""))
	assert.Equal(t, "healthy", h.Status)
	assert.Equal(t, 3, h.Records)
	assert.False(t, h.Sample)

	s.loader.res = &indexer.LoadResult{Sample: true, Records: 50}
	h = decode[HealthResponse](t, s.do(t, http.MethodGet, "/api/health", ""))
	assert.Equal(t, "degraded", h.Status)
	assert.True(t, h.Sample)
}

func TestRequestID(t *testing.T) {
	s := newServer(t)

	w := s.do(t, http.MethodGet, "/api/health", "")
	_, err := uuid.Parse(w.Header().Get(RequestIDHeader))
	assert.NoError(t, err, "generated id is a uuid")

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestPrefsRoutes(t *testing.T) {
	s := newServer(t)

	w := s.do(t, http.MethodPost, "/api/prefs/recent", `{"search":"  beta  "}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"beta"}, decode[prefs.State](t, w).RecentSearches)

	w = s.do(t, http.MethodPost, "/api/prefs/recent", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/prefs/favorites", `{"title":"Gamma Rising - FitGirl Repacks"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode[map[string]any](t, w)["favorite"])

	w = s.do(t, http.MethodGet, "/api/games/favorites", "")
	require.Equal(t, http.StatusOK, w.Code)
	favs := decode[domain.GamesResponse](t, w)
	assert.Equal(t, []string{"Gamma Rising"}, titles(favs))

	w = s.do(t, http.MethodDelete, "/api/prefs/recent", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	st := decode[prefs.State](t, s.do(t, http.MethodGet, "/api/prefs", ""))
	assert.Empty(t, st.RecentSearches)
	assert.Equal(t, []string{"Gamma Rising - FitGirl Repacks"}, st.FavoriteGames)
}

func TestParseQuery_Defaults(t *testing.T) {
	spec, err := ParseQuery(nil, DefaultLimits())
	require.NoError(t, err)
	assert.Equal(t, 1, spec.Page)
	assert.Equal(t, domain.DefaultPageSize, spec.PageSize)
	assert.Nil(t, spec.Filters.MaxSizeMB)
	assert.Nil(t, spec.Filters.Genres)
}
