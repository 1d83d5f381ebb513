package validate

import (
	"regexp"
	"strings"
)

// Extraction passes over raw OCR text. The strict pass matches the exact
// container grammar; the flexible pass tolerates common OCR misreads such as
// a dropped leading letter or a missing digit.
var (
	strictPattern   = regexp.MustCompile(`[A-Z]{4}[0-9]{7}`)
	flexiblePattern = regexp.MustCompile(`[A-Z]{3,4}[0-9]{6,7}`)
)

// ExtractCandidates pulls plausible container numbers out of raw OCR text.
// Both passes run per line; all matches are unioned and deduplicated
// preserving first occurrence, so extraction is idempotent.
func ExtractCandidates(ocrText string) []string {
	var candidates []string
	seen := make(map[string]struct{})

	add := func(token string) {
		if _, ok := seen[token]; ok {
			return
		}
		seen[token] = struct{}{}
		candidates = append(candidates, token)
	}

	for _, line := range strings.Split(ocrText, "\n") {
		for _, m := range strictPattern.FindAllString(line, -1) {
			add(m)
		}
		for _, m := range flexiblePattern.FindAllString(line, -1) {
			// The flexible grammar overlaps shorter garbage tokens; keep
			// only those within plausible container-number length.
			if len(m) >= 10 && len(m) <= 12 {
				add(m)
			}
		}
	}

	return candidates
}
