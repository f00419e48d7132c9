package normalizer

import (
	"fmt"
	"strings"

	"github.com/bad33ndj3/repack-catalog/internal/domain"
)

// DefaultSampleSize is how many records the fallback dataset holds.
const DefaultSampleSize = 50

var sampleTags = []string{
	"Action", "RPG", "Strategy", "Adventure", "Shooter", "Racing", "Sports",
	"Puzzle", "Simulation", "Horror", "Sci-Fi", "Fantasy", "Open World", "3D",
	"Multiplayer", "Indie", "Platformer", "Fighting",
}

// SampleRecords builds the fallback dataset served when ingestion yields no
// record at all. It is deterministic so that queries over it stay
// reproducible; callers must flag the dataset as a sample.
func SampleRecords(n int) []domain.RawRecord {
	out := make([]domain.RawRecord, 0, n)
	for i := range n {
		count := 2 + i%5
		tags := make([]string, 0, count)
		for j := range count {
			tags = append(tags, sampleTags[(i+j*5)%len(sampleTags)])
		}
		original := 20 + (i*7)%80
		repack := 5 + (i*3)%30

		out = append(out, domain.RawRecord{
			Title: fmt.Sprintf("Game %d - Epic Adventure%s", i+1, DefaultTitleSuffix),
			Tags:  tags,
			Description: fmt.Sprintf("An epic %s game with stunning graphics and immersive gameplay.",
				strings.ToLower(tags[0])),
			Image: fmt.Sprintf("https://picsum.photos/300/400?random=%d", i+1),
			URL:   fmt.Sprintf("https://fitgirl-repacks.site/game-%d/", i+1),
			RepackFeatures: []string{
				"100% Lossless & MD5 Perfect",
				"NOTHING ripped, NOTHING re-encoded",
				fmt.Sprintf("Compressed from %d to %d GB", original, repack),
			},
			Metadata: domain.RawMetadata{
				Companies:    fmt.Sprintf("Game Studio %d", i+1),
				Languages:    "ENG/MULTI8",
				OriginalSize: fmt.Sprintf("%d GB", original),
				RepackSize:   fmt.Sprintf("%d GB", repack),
			},
		})
	}
	return out
}
