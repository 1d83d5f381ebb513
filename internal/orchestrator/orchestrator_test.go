package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"gatewatch/internal/images"
	"gatewatch/internal/validate"
	"gatewatch/pkg/models"

	"go.uber.org/zap"
)

// fakeEngine returns canned OCR text keyed by image content.
type fakeEngine struct {
	texts map[string]string // image bytes (as string) -> recognized text
	fail  map[string]string // image bytes -> error message
	calls int
}

func (e *fakeEngine) Recognize(_ context.Context, image []byte) models.OCRResult {
	e.calls++
	key := string(image)
	if msg, ok := e.fail[key]; ok {
		return models.OCRResult{Success: false, Error: msg}
	}
	text := e.texts[key]
	result := models.OCRResult{
		Success:    true,
		Text:       text,
		Candidates: validate.ExtractCandidates(text),
	}
	if len(result.Candidates) > 0 {
		result.Primary = result.Candidates[0]
	}
	return result
}

// fakeResolver maps paths to bytes; unknown paths are not found, and paths
// listed in hardFail simulate an unreachable share.
type fakeResolver struct {
	files    map[string][]byte
	hardFail map[string]bool
}

func (r *fakeResolver) Resolve(_ context.Context, path string) ([]byte, error) {
	if r.hardFail[path] {
		return nil, fmt.Errorf("share unreachable")
	}
	data, ok := r.files[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", images.ErrNotFound, path)
	}
	return data, nil
}

func record(scanID, containerNo string, paths ...string) models.ScanRecord {
	rec := models.ScanRecord{ScanID: scanID, ContainerNo: containerNo, Status: models.ScanStatusOK}
	copy(rec.ImagePaths[:], paths)
	return rec
}

func newTestOrchestrator(engine *fakeEngine, resolver *fakeResolver) *Orchestrator {
	return New(engine, resolver, nil, nil, zap.NewNop())
}

func TestValidateScanAllMatch(t *testing.T) {
	engine := &fakeEngine{texts: map[string]string{"img1": "GATE 22G1 ABCD1234567"}}
	resolver := &fakeResolver{files: map[string][]byte{"a.jpg": []byte("img1")}}
	orch := newTestOrchestrator(engine, resolver)

	v, err := orch.ValidateScan(context.Background(), record("S1", "ABCD1234567", "a.jpg"))
	if err != nil {
		t.Fatal(err)
	}

	if v.Summary.Status != models.ValidationAllMatch {
		t.Errorf("status = %v, want ALL_MATCH", v.Summary.Status)
	}
	if !v.Summary.IsValid {
		t.Error("summary should be valid")
	}
	if v.Summary.Confidence != 100 {
		t.Errorf("confidence = %v, want 100", v.Summary.Confidence)
	}
	if len(v.ImageResults) != models.MaxScanImages {
		t.Fatalf("image results = %d, want %d", len(v.ImageResults), models.MaxScanImages)
	}
	if !v.ImageResults[0].Match || v.ImageResults[0].Comparison.Status != models.StatusExactMatch {
		t.Errorf("first image = %+v", v.ImageResults[0])
	}
	for _, img := range v.ImageResults[1:] {
		if img.Processed || img.Reason != "No image path" {
			t.Errorf("empty slot = %+v", img)
		}
	}
}

func TestValidateScanMismatch(t *testing.T) {
	// Two digit misreads push similarity below the threshold.
	engine := &fakeEngine{texts: map[string]string{"img1": "ABCD1234512"}}
	resolver := &fakeResolver{files: map[string][]byte{"a.jpg": []byte("img1")}}
	orch := newTestOrchestrator(engine, resolver)

	v, err := orch.ValidateScan(context.Background(), record("S2", "ABCD1234567", "a.jpg"))
	if err != nil {
		t.Fatal(err)
	}

	if v.Summary.Status != models.ValidationMismatch {
		t.Errorf("status = %v, want MISMATCH", v.Summary.Status)
	}
	if v.Summary.IsValid {
		t.Error("summary should not be valid")
	}
	cmp := v.ImageResults[0].Comparison
	if cmp.Similarity >= 90 {
		t.Errorf("similarity = %v, want < 90", cmp.Similarity)
	}
}

func TestValidateScanPartialMatch(t *testing.T) {
	engine := &fakeEngine{texts: map[string]string{
		"good": "ABCD1234567",
		"bad":  "ZZZZ9999999",
	}}
	resolver := &fakeResolver{files: map[string][]byte{
		"a.jpg": []byte("good"),
		"b.jpg": []byte("bad"),
	}}
	orch := newTestOrchestrator(engine, resolver)

	v, err := orch.ValidateScan(context.Background(), record("S3", "ABCD1234567", "a.jpg", "b.jpg"))
	if err != nil {
		t.Fatal(err)
	}

	if v.Summary.Status != models.ValidationPartialMatch {
		t.Errorf("status = %v, want PARTIAL_MATCH", v.Summary.Status)
	}
	if !v.Summary.IsValid {
		t.Error("one matching image should still be valid")
	}
	if v.Summary.Confidence != 50 {
		t.Errorf("confidence = %v, want 50", v.Summary.Confidence)
	}
}

func TestValidateScanDoubleContainer(t *testing.T) {
	engine := &fakeEngine{texts: map[string]string{"img1": "EFGH7654321"}}
	resolver := &fakeResolver{files: map[string][]byte{"a.jpg": []byte("img1")}}
	orch := newTestOrchestrator(engine, resolver)

	v, err := orch.ValidateScan(context.Background(), record("S4", "ABCD1234567/EFGH7654321", "a.jpg"))
	if err != nil {
		t.Fatal(err)
	}

	cmp := v.ImageResults[0].Comparison
	if cmp.Status != models.StatusDoubleMatch {
		t.Errorf("status = %v, want DOUBLE_CONTAINER_MATCH", cmp.Status)
	}
	if cmp.BestMatch != "EFGH7654321" || cmp.Similarity != 100 {
		t.Errorf("comparison = %+v", cmp)
	}
}

func TestValidateScanNoImages(t *testing.T) {
	orch := newTestOrchestrator(&fakeEngine{}, &fakeResolver{})

	v, err := orch.ValidateScan(context.Background(), record("S5", "ABCD1234567"))
	if err != nil {
		t.Fatal(err)
	}
	if v.Summary.Status != models.ValidationNoImages || v.Summary.IsValid {
		t.Errorf("summary = %+v", v.Summary)
	}
}

func TestValidateScanMissingImageNotFatal(t *testing.T) {
	engine := &fakeEngine{texts: map[string]string{"img1": "ABCD1234567"}}
	resolver := &fakeResolver{files: map[string][]byte{"a.jpg": []byte("img1")}}
	orch := newTestOrchestrator(engine, resolver)

	v, err := orch.ValidateScan(context.Background(), record("S6", "ABCD1234567", "gone.jpg", "a.jpg"))
	if err != nil {
		t.Fatal(err)
	}

	if v.ImageResults[0].Processed {
		t.Errorf("missing image marked processed: %+v", v.ImageResults[0])
	}
	if !strings.Contains(v.ImageResults[0].Reason, "not found") {
		t.Errorf("reason = %q", v.ImageResults[0].Reason)
	}
	if v.Summary.Status != models.ValidationAllMatch {
		t.Errorf("status = %v, want ALL_MATCH from the surviving image", v.Summary.Status)
	}
}

func TestValidateScanOCRFailed(t *testing.T) {
	engine := &fakeEngine{fail: map[string]string{"img1": "engine crashed"}}
	resolver := &fakeResolver{files: map[string][]byte{"a.jpg": []byte("img1")}}
	orch := newTestOrchestrator(engine, resolver)

	v, err := orch.ValidateScan(context.Background(), record("S7", "ABCD1234567", "a.jpg"))
	if err != nil {
		t.Fatal(err)
	}
	if v.Summary.Status != models.ValidationOCRFailed {
		t.Errorf("status = %v, want OCR_FAILED", v.Summary.Status)
	}
	img := v.ImageResults[0]
	if !img.Processed || img.Reason != "engine crashed" {
		t.Errorf("image = %+v", img)
	}
}

func TestValidateScanIdempotent(t *testing.T) {
	engine := &fakeEngine{texts: map[string]string{"img1": "ABCD1234567"}}
	resolver := &fakeResolver{files: map[string][]byte{"a.jpg": []byte("img1")}}
	orch := newTestOrchestrator(engine, resolver)

	rec := record("S8", "ABCD1234567", "a.jpg")
	first, err := orch.ValidateScan(context.Background(), rec)
	if err != nil {
		t.Fatal(err)
	}
	second, err := orch.ValidateScan(context.Background(), rec)
	if err != nil {
		t.Fatal(err)
	}
	if first.Summary != second.Summary {
		t.Errorf("summaries differ: %+v vs %+v", first.Summary, second.Summary)
	}
}

func TestValidateBatchIsolatesFailures(t *testing.T) {
	engine := &fakeEngine{texts: map[string]string{"img": "ABCD1234567"}}
	resolver := &fakeResolver{
		files:    map[string][]byte{"ok.jpg": []byte("img")},
		hardFail: map[string]bool{"broken.jpg": true},
	}
	orch := newTestOrchestrator(engine, resolver)

	var recs []models.ScanRecord
	for i := 1; i <= 25; i++ {
		path := "ok.jpg"
		if i == 13 {
			path = "broken.jpg"
		}
		recs = append(recs, record(fmt.Sprintf("S%02d", i), "ABCD1234567", path))
	}

	summary := orch.ValidateBatch(context.Background(), recs, BatchOptions{}, nil)

	if summary.Total != 25 {
		t.Errorf("total = %d, want 25", summary.Total)
	}
	if summary.Failed != 1 {
		t.Errorf("failed = %d, want 1", summary.Failed)
	}
	if summary.Successful != 24 {
		t.Errorf("successful = %d, want 24", summary.Successful)
	}
	if len(summary.Errors) != 1 || summary.Errors[0].ScanID != "S13" {
		t.Errorf("errors = %+v", summary.Errors)
	}
	if summary.SuccessRate != 96 {
		t.Errorf("success rate = %v, want 96", summary.SuccessRate)
	}
	if summary.ValidationRate != 100 {
		t.Errorf("validation rate = %v, want 100", summary.ValidationRate)
	}
}

func TestValidateBatchLimit(t *testing.T) {
	engine := &fakeEngine{texts: map[string]string{"img": "ABCD1234567"}}
	resolver := &fakeResolver{files: map[string][]byte{"ok.jpg": []byte("img")}}
	orch := newTestOrchestrator(engine, resolver)

	var recs []models.ScanRecord
	for i := 0; i < 30; i++ {
		recs = append(recs, record(fmt.Sprintf("S%02d", i), "ABCD1234567", "ok.jpg"))
	}

	summary := orch.ValidateBatch(context.Background(), recs, BatchOptions{Limit: 5}, nil)
	if summary.Total != 5 || summary.Successful != 5 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestValidateScanContextCancelled(t *testing.T) {
	orch := newTestOrchestrator(&fakeEngine{}, &fakeResolver{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := orch.ValidateScan(ctx, record("S9", "ABCD1234567", "a.jpg"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
