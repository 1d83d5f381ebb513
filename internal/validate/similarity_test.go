package validate

import (
	"testing"

	"gatewatch/pkg/models"
)

func TestCompareExactMatch(t *testing.T) {
	got := Compare("ABCD1234567", "ABCD1234567")
	if got.Status != models.StatusExactMatch || !got.Match || got.Similarity != 100 {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestCompareEmptyInputs(t *testing.T) {
	if got := Compare("", "ABCD1234567"); got.Status != models.StatusNoOCR || got.Match || got.Similarity != 0 {
		t.Fatalf("empty OCR: %+v", got)
	}
	if got := Compare("ABCD1234567", ""); got.Status != models.StatusNoDBContainer {
		t.Fatalf("empty DB: %+v", got)
	}
	if got := Compare("ABCD1234567", "N/A"); got.Status != models.StatusNoDBContainer {
		t.Fatalf("N/A DB: %+v", got)
	}
}

func TestCompareSingleMismatch(t *testing.T) {
	// Two OCR misreads: D->O and 5->S.
	got := Compare("ABCO1234S67", "ABCD1234567")
	if got.Status != models.StatusMismatch || got.Match {
		t.Fatalf("unexpected status: %+v", got)
	}
	if got.Similarity >= 90 {
		t.Errorf("similarity = %v, want < 90", got.Similarity)
	}
	if len(got.Differences) != 2 {
		t.Fatalf("differences = %+v, want 2 entries", got.Differences)
	}
	if got.Differences[0].Position != 3 || got.Differences[0].Expected != "D" || got.Differences[0].Actual != "O" {
		t.Errorf("first diff = %+v", got.Differences[0])
	}
	if got.Differences[0].IsNumeric {
		t.Errorf("D/O diff flagged numeric")
	}
}

func TestCompareSingleNearMatch(t *testing.T) {
	// One edit out of eleven characters: 90.91, over the threshold.
	got := Compare("ABCD1234568", "ABCD1234567")
	if got.Status != models.StatusSingleMatch || !got.Match {
		t.Fatalf("unexpected result: %+v", got)
	}
	if got.Similarity != 90.91 {
		t.Errorf("similarity = %v, want 90.91", got.Similarity)
	}
}

func TestCompareDoubleContainer(t *testing.T) {
	got := Compare("EFGH7654321", "ABCD1234567/EFGH7654321")
	if got.Status != models.StatusDoubleMatch || !got.Match {
		t.Fatalf("unexpected result: %+v", got)
	}
	if got.BestMatch != "EFGH7654321" {
		t.Errorf("best match = %q", got.BestMatch)
	}
	if got.Similarity != 100 {
		t.Errorf("similarity = %v, want 100", got.Similarity)
	}

	miss := Compare("ZZZZ9999999", "ABCD1234567/EFGH7654321")
	if miss.Status != models.StatusDoubleMismatch || miss.Match {
		t.Fatalf("unexpected result: %+v", miss)
	}
}

func TestCompareNumericDiffFlag(t *testing.T) {
	got := Compare("ABCD1234561", "ABCD1234567")
	if got.Status != models.StatusSingleMatch {
		// 1 edit over 11 chars is 90.91: a match, no diff list.
		t.Fatalf("unexpected status: %+v", got)
	}

	// Force a mismatch with numeric confusions.
	got = Compare("ABCD1230007", "ABCD1234567")
	if got.Status != models.StatusMismatch {
		t.Fatalf("unexpected status: %+v", got)
	}
	for _, d := range got.Differences {
		if !d.IsNumeric {
			t.Errorf("diff %+v should be numeric", d)
		}
	}
}

func TestSimilaritySymmetric(t *testing.T) {
	pairs := [][2]string{
		{"ABCD1234567", "ABCO1234S67"},
		{"MAEU1234567", "AEU1234567"},
		{"kitten", "sitting"},
	}
	for _, p := range pairs {
		if Similarity(p[0], p[1]) != Similarity(p[1], p[0]) {
			t.Errorf("Similarity(%q, %q) not symmetric", p[0], p[1])
		}
	}
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"saturday", "sunday", 3},
		{"abc", "abc", 0},
	}
	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			if got := levenshtein(tt.a, tt.b); got != tt.want {
				t.Errorf("levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestSimilarityEmptyStrings(t *testing.T) {
	if got := Similarity("", ""); got != 100 {
		t.Errorf("Similarity of two empty strings = %v, want 100", got)
	}
}
