package validate

import (
	"math"
	"strings"

	"gatewatch/pkg/models"
)

// matchThreshold is the minimum similarity (percent) at which an OCR
// candidate is accepted as matching the recorded container number.
const matchThreshold = 90.0

// Compare cross-checks an OCR candidate against the container number stored
// for the scan. Both inputs are trimmed and upper-cased first. For double
// containers the candidate is scored against each side independently and the
// better side wins.
func Compare(ocrCandidate, dbValue string) models.ComparisonResult {
	ocr := strings.ToUpper(strings.TrimSpace(ocrCandidate))
	db := strings.ToUpper(strings.TrimSpace(dbValue))

	if ocr == "" {
		return models.ComparisonResult{Status: models.StatusNoOCR}
	}
	if db == "" || db == noContainer {
		return models.ComparisonResult{Status: models.StatusNoDBContainer}
	}
	if ocr == db {
		return models.ComparisonResult{
			Match:      true,
			Similarity: 100,
			Status:     models.StatusExactMatch,
			BestMatch:  db,
		}
	}

	if strings.Contains(db, "/") {
		return compareDouble(ocr, db)
	}

	similarity := Similarity(ocr, db)
	result := models.ComparisonResult{
		Similarity: similarity,
		BestMatch:  db,
	}
	if similarity >= matchThreshold {
		result.Match = true
		result.Status = models.StatusSingleMatch
	} else {
		result.Status = models.StatusMismatch
		result.Differences = diffChars(db, ocr)
	}
	return result
}

// compareDouble scores the candidate against each side of a double container
// and selects the side with the higher similarity.
func compareDouble(ocr, db string) models.ComparisonResult {
	best := ""
	bestSim := -1.0
	for _, part := range strings.Split(db, "/") {
		part = strings.TrimSpace(part)
		if sim := Similarity(ocr, part); sim > bestSim {
			bestSim = sim
			best = part
		}
	}

	result := models.ComparisonResult{
		Similarity: bestSim,
		BestMatch:  best,
	}
	if bestSim >= matchThreshold {
		result.Match = true
		result.Status = models.StatusDoubleMatch
	} else {
		result.Status = models.StatusDoubleMismatch
		result.Differences = diffChars(best, ocr)
	}
	return result
}

// Similarity returns a normalized edit-distance score between 0 and 100,
// rounded to two decimals. Two empty strings are defined as 100% similar.
func Similarity(a, b string) float64 {
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 100
	}
	dist := levenshtein(a, b)
	score := 100 * float64(maxLen-dist) / float64(maxLen)
	return math.Round(score*100) / 100
}

// levenshtein computes the edit distance between two strings using the
// two-row dynamic programming form.
func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

// diffChars builds a position-by-position difference list between the
// expected container number and the OCR candidate, padding the shorter
// string. IsNumeric flags positions where both differing characters are
// digits, the typical OCR confusion (0/O aside).
func diffChars(expected, actual string) []models.CharDiff {
	maxLen := len(expected)
	if len(actual) > maxLen {
		maxLen = len(actual)
	}

	var diffs []models.CharDiff
	for i := 0; i < maxLen; i++ {
		var e, a string
		if i < len(expected) {
			e = string(expected[i])
		}
		if i < len(actual) {
			a = string(actual[i])
		}
		if e == a {
			continue
		}
		diffs = append(diffs, models.CharDiff{
			Position:  i,
			Expected:  e,
			Actual:    a,
			IsNumeric: isDigit(e) && isDigit(a),
		})
	}
	return diffs
}

func isDigit(s string) bool {
	return len(s) == 1 && s[0] >= '0' && s[0] <= '9'
}
