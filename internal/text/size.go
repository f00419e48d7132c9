package text

import (
	"regexp"
	"strconv"
	"strings"
)

// sizeRe matches the first "<number> <unit>" pair of a size string, e.g.
// "12.3 GB", "from 4,7 GB [Selective Download]", "900KB".
var sizeRe = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(TB|GB|MB|KB)\b`)

// unitMB converts one unit into megabytes (binary multiples).
var unitMB = map[string]float64{
	"KB": 1.0 / 1024,
	"MB": 1,
	"GB": 1024,
	"TB": 1024 * 1024,
}

// ParseSizeMB parses a human size string into megabytes.
// ok is false for empty, placeholder or otherwise unparsable input.
func ParseSizeMB(s string) (mb float64, ok bool) {
	m := sizeRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	n, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n * unitMB[strings.ToUpper(m[2])], true
}

// FormatSizeMB renders megabytes the way the shard files spell sizes.
func FormatSizeMB(mb float64) string {
	if mb >= 1024 {
		return strconv.FormatFloat(mb/1024, 'f', 1, 64) + " GB"
	}
	return strconv.FormatFloat(mb, 'f', 0, 64) + " MB"
}
