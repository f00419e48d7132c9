package api

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/bad33ndj3/repack-catalog/internal/domain"
	"github.com/bad33ndj3/repack-catalog/internal/query"
	"github.com/bad33ndj3/repack-catalog/internal/text"
)

// Limits bounds the page size a client may ask for.
type Limits struct {
	DefaultPageSize int
	MaxPageSize     int
}

// DefaultLimits returns the standard page size bounds.
func DefaultLimits() Limits {
	return Limits{DefaultPageSize: domain.DefaultPageSize, MaxPageSize: 100}
}

// ParseQuery builds a QuerySpec from /api/games parameters.
//
// genre and language take comma-separated lists (or repeated keys). The
// size ceiling is either maxSizeMB (a number) or size (a human string such
// as "12 GB"). Malformed values are rejected with a *query.RequestError.
func ParseQuery(v url.Values, lim Limits) (domain.QuerySpec, error) {
	spec := domain.QuerySpec{
		Text:      v.Get("q"),
		SortKey:   domain.SortKey(v.Get("sortBy")),
		SortOrder: domain.SortOrder(v.Get("sortOrder")),
		Filters: domain.Filters{
			Genres:    list(v["genre"]),
			Languages: list(v["language"]),
		},
	}

	var err error
	if spec.Verbatim, err = boolParam(v, "verbatim"); err != nil {
		return spec, err
	}
	if spec.Page, err = intParam(v, "page", 1); err != nil {
		return spec, err
	}
	if spec.PageSize, err = intParam(v, "limit", lim.DefaultPageSize); err != nil {
		return spec, err
	}
	if lim.MaxPageSize > 0 && spec.PageSize > lim.MaxPageSize {
		return spec, &query.RequestError{Field: "limit", Reason: fmt.Sprintf("must be <= %d, got %d", lim.MaxPageSize, spec.PageSize)}
	}

	switch {
	case v.Get("maxSizeMB") != "":
		mb, err := strconv.ParseFloat(v.Get("maxSizeMB"), 64)
		if err != nil {
			return spec, &query.RequestError{Field: "maxSizeMB", Reason: fmt.Sprintf("not a number: %q", v.Get("maxSizeMB"))}
		}
		spec.Filters.MaxSizeMB = &mb
	case v.Get("size") != "":
		mb, ok := text.ParseSizeMB(v.Get("size"))
		if !ok {
			return spec, &query.RequestError{Field: "size", Reason: fmt.Sprintf("not a size: %q", v.Get("size"))}
		}
		spec.Filters.MaxSizeMB = &mb
	}

	return spec, query.Validate(spec)
}

// list flattens repeated and comma-separated values, dropping blanks.
func list(raw []string) []string {
	var out []string
	for _, r := range raw {
		for _, part := range strings.Split(r, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func intParam(v url.Values, key string, def int) (int, error) {
	s := strings.TrimSpace(v.Get(key))
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, &query.RequestError{Field: key, Reason: fmt.Sprintf("not an integer: %q", s)}
	}
	return n, nil
}

func boolParam(v url.Values, key string) (bool, error) {
	s := strings.TrimSpace(v.Get(key))
	if s == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, &query.RequestError{Field: key, Reason: fmt.Sprintf("not a boolean: %q", s)}
	}
	return b, nil
}
