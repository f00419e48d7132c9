// Package normalizer turns raw shard records into canonical catalog records.
// It never fails: absent or malformed fields degrade to placeholders.
package normalizer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/bad33ndj3/repack-catalog/internal/domain"
	"github.com/bad33ndj3/repack-catalog/internal/text"
)

// DefaultTitleSuffix is the site branding appended to every scraped title.
const DefaultTitleSuffix = " - FitGirl Repacks"

// metadataLabelRe finds the boilerplate the scraper leaves inside
// descriptions. Everything from the first label on is metadata.
var metadataLabelRe = regexp.MustCompile(`(?i)(Genres/Tags:|Companies:|Languages:|Original Size:|Repack Size:|Download)`)

// releaseLayouts are the date spellings accepted for releaseDate.
var releaseLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"January 2, 2006",
	"Jan 2, 2006",
	"02/01/2006",
}

// Normalizer converts raw records. The zero value is not usable; call New.
type Normalizer struct {
	policy      Policy
	titleSuffix string
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithPolicy replaces the genre classification policy.
func WithPolicy(p Policy) Option {
	return func(n *Normalizer) { n.policy = p }
}

// WithTitleSuffix replaces the branding suffix stripped from titles.
func WithTitleSuffix(suffix string) Option {
	return func(n *Normalizer) { n.titleSuffix = suffix }
}

// New creates a Normalizer with the default policy and suffix.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		policy:      DefaultPolicy(),
		titleSuffix: DefaultTitleSuffix,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Digest hashes the policy and title suffix. Records normalized under
// different digests may differ for the same input.
func (n *Normalizer) Digest() string {
	d := xxhash.New()
	_, _ = d.WriteString(n.titleSuffix)
	_, _ = fmt.Fprintf(d, "\x00%d", n.policy.FallbackCount)
	for _, kw := range n.policy.Keywords {
		_, _ = d.WriteString("\x00")
		_, _ = d.WriteString(kw)
	}
	return fmt.Sprintf("%016x", d.Sum64())
}

// NormalizeAll converts raws in order, assigning ids 1..len(raws).
func (n *Normalizer) NormalizeAll(raws []domain.RawRecord) []domain.CatalogRecord {
	out := make([]domain.CatalogRecord, len(raws))
	for i, raw := range raws {
		out[i] = n.Normalize(raw, i+1)
	}
	return out
}

// Normalize converts one raw record. seq is its 1-based ingestion sequence
// number and becomes the record's id.
func (n *Normalizer) Normalize(raw domain.RawRecord, seq int) domain.CatalogRecord {
	title := strings.TrimSpace(raw.Title)
	if title == "" {
		title = domain.Unknown
	}

	genre, tags := n.policy.Split(raw.Tags)

	companies := placeholder(raw.Metadata.Companies)
	developer, publisher := splitCompanies(raw.Metadata.Companies)

	rec := domain.CatalogRecord{
		ID:              strconv.Itoa(seq),
		Position:        seq - 1,
		Title:           title,
		NormalizedTitle: text.NormalizeTitle(title, n.titleSuffix),
		Genre:           genre,
		Tags:            tags,
		Description:     CleanDescription(raw.Description),
		Companies:       companies,
		Developer:       developer,
		Publisher:       publisher,
		LanguagesRaw:    placeholder(raw.Metadata.Languages),
		Languages:       splitLanguages(raw.Metadata.Languages),
		OriginalSize:    parseSize(raw.Metadata.OriginalSize),
		RepackSize:      parseSize(raw.Metadata.RepackSize),
		ReleaseDate:     parseReleaseDate(raw.ReleaseDate),
		Features:        nonNil(raw.RepackFeatures),
		URL:             strings.TrimSpace(raw.URL),
		Image:           strings.TrimSpace(raw.Image),
		DownloadLinks:   domain.DownloadLinks{Direct: strings.TrimSpace(raw.URL)},
	}
	if len(rec.Features) > 0 {
		rec.Notes = "• " + strings.Join(rec.Features, "\n• ")
	}
	return rec
}

// CleanDescription removes the metadata block scraped into a description.
// If nothing but metadata was there, the raw text is kept.
func CleanDescription(desc string) string {
	clean := desc
	if loc := metadataLabelRe.FindStringIndex(clean); loc != nil {
		clean = clean[:loc[0]]
	}
	clean = strings.TrimSpace(text.StripHTML(clean))
	if clean == "" {
		return strings.TrimSpace(text.StripHTML(desc))
	}
	return clean
}

// splitCompanies splits "Developer, Publisher" on the first comma.
// With a single company the whole string is the publisher too.
func splitCompanies(companies string) (developer, publisher string) {
	companies = strings.TrimSpace(companies)
	if companies == "" {
		return domain.Unknown, domain.Unknown
	}
	dev, pub, found := strings.Cut(companies, ",")
	developer = placeholder(dev)
	if found {
		publisher = placeholder(pub)
	} else {
		publisher = companies
	}
	return developer, publisher
}

func splitLanguages(raw string) []string {
	out := []string{}
	for _, part := range strings.Split(raw, "/") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseSize(raw string) domain.Size {
	raw = strings.TrimSpace(raw)
	mb, ok := text.ParseSizeMB(raw)
	return domain.Size{Raw: placeholder(raw), MB: mb, Known: ok}
}

func parseReleaseDate(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range releaseLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func placeholder(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return domain.Unknown
	}
	return s
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
