package parser

import (
	"encoding/json"
	"strings"

	"github.com/bad33ndj3/repack-catalog/internal/domain"
)

// fieldSet is one JSON object split into its raw fields.
type fieldSet map[string]json.RawMessage

// decodeRecord decodes a single shard entry field by field, so a type error
// in one field doesn't discard the others. It returns the names of the
// fields that couldn't be used.
func decodeRecord(raw json.RawMessage) (domain.RawRecord, []string) {
	var fields fieldSet
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return domain.RawRecord{}, []string{"record"}
	}

	var issues []string
	str := func(f fieldSet, key string) string {
		s, ok := f.str(key)
		if !ok {
			issues = append(issues, key)
		}
		return s
	}
	list := func(f fieldSet, key string) []string {
		l, ok := f.list(key)
		if !ok {
			issues = append(issues, key)
		}
		return l
	}

	rec := domain.RawRecord{
		Title:          str(fields, "title"),
		Tags:           list(fields, "tags"),
		Description:    str(fields, "description"),
		Image:          str(fields, "image"),
		URL:            str(fields, "url"),
		RepackFeatures: list(fields, "repackFeatures"),
		ReleaseDate:    str(fields, "releaseDate"),
	}

	if metaRaw, ok := fields["metadata"]; ok {
		var meta fieldSet
		if err := json.Unmarshal(metaRaw, &meta); err != nil {
			issues = append(issues, "metadata")
		} else {
			rec.Metadata = domain.RawMetadata{
				Companies:    str(meta, "companies"),
				Languages:    str(meta, "languages"),
				OriginalSize: str(meta, "originalSize"),
				RepackSize:   str(meta, "repackSize"),
			}
		}
	}

	return rec, issues
}

// str reads a string field. Numbers are accepted and kept as their literal
// text. A missing or null field is not an issue; a wrong type is.
func (f fieldSet) str(key string) (string, bool) {
	raw, ok := f[key]
	if !ok || isNull(raw) {
		return "", true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	return "", false
}

// list reads an array of strings. Non-string elements are skipped, and a
// single comma-separated string is accepted as a list.
func (f fieldSet) list(key string) ([]string, bool) {
	raw, ok := f[key]
	if !ok || isNull(raw) {
		return nil, true
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err == nil {
		out := make([]string, 0, len(items))
		clean := true
		for _, item := range items {
			var s string
			if err := json.Unmarshal(item, &s); err != nil {
				clean = false
				continue
			}
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out, clean
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		var out []string
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out, true
	}
	return nil, false
}

func isNull(raw json.RawMessage) bool {
	return string(raw) == "null"
}
