package ingest

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/width"
)

const maxVolumeNumber = 200

// in priority order; the first pattern that matches decides
var volumePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d+)\s*巻`),
	regexp.MustCompile(`\((\d+)\)`),
	regexp.MustCompile(`[\s\x{3000}](\d+)$`),
}

// ParseVolumeNumber extracts a volume number from a catalog title.
// Full-width digits and brackets are folded first, so "（７７）" reads as 77.
// Values outside (0, 200) are rejected rather than passed to a lower-priority
// pattern, which keeps years such as "キングダム 2020" from becoming volumes.
func ParseVolumeNumber(title string) (int, bool) {
	s := strings.TrimSpace(width.Fold.String(title))
	for _, re := range volumePatterns {
		m := re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 || n >= maxVolumeNumber {
			return 0, false
		}
		return n, true
	}
	return 0, false
}
