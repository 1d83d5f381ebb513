package models

// MatchStatus describes the outcome of comparing one OCR candidate against
// the container number recorded for a scan.
type MatchStatus string

const (
	StatusExactMatch       MatchStatus = "EXACT_MATCH"
	StatusSingleMatch      MatchStatus = "SINGLE_MATCH"
	StatusMismatch         MatchStatus = "MISMATCH"
	StatusDoubleMatch      MatchStatus = "DOUBLE_CONTAINER_MATCH"
	StatusDoubleMismatch   MatchStatus = "DOUBLE_CONTAINER_MISMATCH"
	StatusNoOCR            MatchStatus = "NO_OCR"
	StatusNoDBContainer    MatchStatus = "NO_DB_CONTAINER"
)

// CharDiff is one position-by-position difference between an OCR candidate
// and the expected container number. IsNumeric is set when both differing
// characters are digits (a common OCR confusion class).
type CharDiff struct {
	Position  int    `json:"position" bson:"position"`
	Expected  string `json:"expected" bson:"expected"`
	Actual    string `json:"actual" bson:"actual"`
	IsNumeric bool   `json:"is_numeric" bson:"is_numeric"`
}

// ComparisonResult is the verdict for one OCR candidate against the
// authoritative container number. Similarity is 0-100 with two decimals.
type ComparisonResult struct {
	Match       bool        `json:"match" bson:"match"`
	Similarity  float64     `json:"similarity" bson:"similarity"`
	Status      MatchStatus `json:"status" bson:"status"`
	BestMatch   string      `json:"best_match,omitempty" bson:"best_match,omitempty"`
	Differences []CharDiff  `json:"differences,omitempty" bson:"differences,omitempty"`
}

// OCRResult is what the engine boundary returns for one image. Failures
// surface here as Success=false with Error set, never as Go errors.
type OCRResult struct {
	Success    bool     `json:"success" bson:"success"`
	Text       string   `json:"text,omitempty" bson:"text,omitempty"`
	Candidates []string `json:"candidates,omitempty" bson:"candidates,omitempty"`
	Primary    string   `json:"primary,omitempty" bson:"primary,omitempty"`
	Error      string   `json:"error,omitempty" bson:"error,omitempty"`
}

// ImageResult is the per-image outcome within one scan validation.
// Index is the 1-based image slot.
type ImageResult struct {
	Index      int               `json:"index" bson:"index"`
	Processed  bool              `json:"processed" bson:"processed"`
	Reason     string            `json:"reason,omitempty" bson:"reason,omitempty"`
	OCR        *OCRResult        `json:"ocr,omitempty" bson:"ocr,omitempty"`
	Comparison *ComparisonResult `json:"comparison,omitempty" bson:"comparison,omitempty"`
	Match      bool              `json:"match" bson:"match"`
}

// ValidationStatus is the aggregated per-scan verdict.
type ValidationStatus string

const (
	ValidationNoImages     ValidationStatus = "NO_IMAGES"
	ValidationOCRFailed    ValidationStatus = "OCR_FAILED"
	ValidationAllMatch     ValidationStatus = "ALL_MATCH"
	ValidationPartialMatch ValidationStatus = "PARTIAL_MATCH"
	ValidationMismatch     ValidationStatus = "MISMATCH"
	ValidationUnknown      ValidationStatus = "UNKNOWN"
)

// ValidationSummary aggregates all image results of one scan. Confidence is
// the percentage of successfully processed images that matched.
type ValidationSummary struct {
	TotalImages      int              `json:"total_images" bson:"total_images"`
	SuccessfulImages int              `json:"successful_images" bson:"successful_images"`
	MatchCount       int              `json:"match_count" bson:"match_count"`
	MismatchCount    int              `json:"mismatch_count" bson:"mismatch_count"`
	AvgSimilarity    float64          `json:"avg_similarity" bson:"avg_similarity"`
	Status           ValidationStatus `json:"validation_status" bson:"validation_status"`
	IsValid          bool             `json:"is_valid" bson:"is_valid"`
	Confidence       float64          `json:"confidence" bson:"confidence"`
}

// ScanValidation is the full result of validating one scan record.
type ScanValidation struct {
	ScanID       string            `json:"scan_id" bson:"scan_id"`
	ContainerNo  string            `json:"container_no" bson:"container_no"`
	ImageResults []ImageResult     `json:"image_results" bson:"image_results"`
	Summary      ValidationSummary `json:"summary" bson:"summary"`
}

// BatchError records one scan that failed validation outright.
type BatchError struct {
	ScanID string `json:"scan_id"`
	Error  string `json:"error"`
}

// BatchSummary aggregates a batch validation run. SuccessRate is
// successful/total, ValidationRate is valid/successful.
type BatchSummary struct {
	BatchID        string       `json:"batch_id"`
	Total          int          `json:"total"`
	Successful     int          `json:"successful"`
	Failed         int          `json:"failed"`
	Valid          int          `json:"valid"`
	Invalid        int          `json:"invalid"`
	SuccessRate    float64      `json:"success_rate"`
	ValidationRate float64      `json:"validation_rate"`
	Errors         []BatchError `json:"errors,omitempty"`
}
