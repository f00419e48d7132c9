package normalizer

import "strings"

// DefaultGenreKeywords is the vocabulary the scraper's tags are classified
// against. It is a policy, not a contract: config may replace it wholesale.
var DefaultGenreKeywords = []string{
	"Action", "RPG", "Strategy", "Adventure", "Shooter", "Racing", "Sports",
	"Puzzle", "Simulation", "Horror", "Sci-Fi", "Fantasy", "Open World",
	"Multiplayer", "Indie", "Platformer", "Fighting", "Stealth", "Survival",
	"Roguelike", "Metroidvania", "Visual Novel", "Point & Click",
	"Turn-based", "Real-time",
}

// DefaultFallbackCount is how many leading tags become genres when no tag
// matches the vocabulary.
const DefaultFallbackCount = 3

// Policy decides which raw tags are genres.
type Policy struct {
	Keywords      []string
	FallbackCount int
}

// DefaultPolicy returns the vocabulary used by the original scraper pipeline.
func DefaultPolicy() Policy {
	return Policy{Keywords: DefaultGenreKeywords, FallbackCount: DefaultFallbackCount}
}

// Split partitions tags into genre and residual tags, preserving order.
// A tag is a genre when it contains any keyword, case-insensitively. When
// nothing matches, the first FallbackCount tags become the genre, so a record
// with any tags always has a non-empty genre.
func (p Policy) Split(tags []string) (genre, rest []string) {
	genre = make([]string, 0, len(tags))
	rest = make([]string, 0, len(tags))
	for _, tag := range tags {
		if p.isGenre(tag) {
			genre = append(genre, tag)
		} else {
			rest = append(rest, tag)
		}
	}
	if len(genre) > 0 {
		return genre, rest
	}

	n := min(max(p.FallbackCount, 0), len(tags))
	genre = append(genre, tags[:n]...)
	rest = append(rest[:0], tags[n:]...)
	return genre, rest
}

func (p Policy) isGenre(tag string) bool {
	lower := strings.ToLower(tag)
	for _, kw := range p.Keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
