// Package parser decodes shard files into raw records.
// It's designed to be forgiving - a shard is scraped data, and one bad field
// must never cost us the record, let alone the whole shard.
package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bad33ndj3/repack-catalog/internal/domain"
)

// ErrNotArray is returned when a shard's top-level JSON value isn't an array.
var ErrNotArray = errors.New("shard is not a JSON array")

// Parser defines how one shard file is turned into raw records.
// Having this as an interface allows tests to inject canned records.
type Parser interface {
	// Parse decodes the shard numbered page.
	// An error means the shard as a whole was unusable.
	Parse(page int, data []byte) ([]Decoded, error)
}

// Decoded is one raw record together with where it came from.
type Decoded struct {
	Page   int
	Index  int
	Record domain.RawRecord

	// Issues lists the fields that had to be dropped while decoding.
	Issues []string
}

// ShardParser is the production implementation for scraper output.
type ShardParser struct{}

// NewShardParser creates a ShardParser.
func NewShardParser() *ShardParser {
	return &ShardParser{}
}

// Parse decodes a shard. Records that aren't JSON objects, or whose fields
// have unexpected types, are kept with those fields left empty.
func (p *ShardParser) Parse(page int, data []byte) ([]Decoded, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	if data[0] != '[' {
		return nil, fmt.Errorf("shard %d: %w", page, ErrNotArray)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("shard %d: decode: %w", page, err)
	}

	out := make([]Decoded, 0, len(items))
	for i, item := range items {
		rec, issues := decodeRecord(item)
		out = append(out, Decoded{Page: page, Index: i, Record: rec, Issues: issues})
	}
	return out, nil
}
