package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bad33ndj3/repack-catalog/internal/domain"
)

// HTTPFetcher reads pages from a catalog server's /api/games endpoint.
type HTTPFetcher struct {
	base   string
	client *http.Client
}

// NewHTTPFetcher creates a fetcher for the server at base
// (e.g. "http://localhost:8080").
func NewHTTPFetcher(base string) *HTTPFetcher {
	return &HTTPFetcher{
		base:   strings.TrimRight(base, "/"),
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// FetchPage implements PageFetcher.
func (f *HTTPFetcher) FetchPage(ctx context.Context, spec domain.QuerySpec) (domain.Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.base+"/api/games?"+EncodeQuery(spec).Encode(), nil)
	if err != nil {
		return domain.Page{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return domain.Page{}, fmt.Errorf("fetch page %d: %w", spec.Page, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Page{}, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var e domain.ErrorResponse
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			return domain.Page{}, fmt.Errorf("HTTP %d: %s", resp.StatusCode, e.Error)
		}
		return domain.Page{}, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	var out domain.GamesResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return domain.Page{}, fmt.Errorf("decode page: %w", err)
	}
	return out.Page(), nil
}

// EncodeQuery renders spec as /api/games query parameters.
func EncodeQuery(spec domain.QuerySpec) url.Values {
	v := url.Values{}
	if spec.Text != "" {
		v.Set("q", spec.Text)
	}
	if spec.Verbatim {
		v.Set("verbatim", "true")
	}
	if len(spec.Filters.Genres) > 0 {
		v.Set("genre", strings.Join(spec.Filters.Genres, ","))
	}
	if len(spec.Filters.Languages) > 0 {
		v.Set("language", strings.Join(spec.Filters.Languages, ","))
	}
	if spec.Filters.MaxSizeMB != nil {
		v.Set("maxSizeMB", strconv.FormatFloat(*spec.Filters.MaxSizeMB, 'f', -1, 64))
	}
	if spec.SortKey != "" {
		v.Set("sortBy", string(spec.SortKey))
	}
	if spec.SortOrder != "" {
		v.Set("sortOrder", string(spec.SortOrder))
	}
	v.Set("page", strconv.Itoa(spec.Page))
	v.Set("limit", strconv.Itoa(spec.PageSize))
	return v
}
