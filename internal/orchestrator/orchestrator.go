package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gatewatch/internal/event"
	"gatewatch/internal/images"
	"gatewatch/internal/ocr"
	"gatewatch/internal/validate"
	"gatewatch/pkg/models"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// progressEvery is how many scans a batch processes between progress
// notifications. The rate limiter burst matches it so a batch runs ten
// scans back to back, then waits for tokens.
const progressEvery = 10

// Orchestrator cross-validates scan records against what the OCR engine
// reads from their photographs. All collaborators are injected so tests can
// substitute fakes for the engine and the image share.
type Orchestrator struct {
	engine   ocr.Engine
	resolver images.Resolver
	bus      *event.Bus
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// New creates an orchestrator. limiter may be nil to disable batch
// throttling (single-scan validation never throttles).
func New(engine ocr.Engine, resolver images.Resolver, bus *event.Bus, limiter *rate.Limiter, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		engine:   engine,
		resolver: resolver,
		bus:      bus,
		limiter:  limiter,
		logger:   logger,
	}
}

// ValidateScan resolves each image slot of the record, runs OCR, compares
// the primary candidate against the recorded container number and derives
// the per-scan summary. The record itself is never mutated and the same
// inputs always produce the same result.
//
// Per-image problems (missing file, failed recognition) are recorded as data
// on the ImageResult. Only infrastructure failures (unreachable share,
// cancelled context) return an error.
func (o *Orchestrator) ValidateScan(ctx context.Context, rec models.ScanRecord) (*models.ScanValidation, error) {
	result := &models.ScanValidation{
		ScanID:      rec.ScanID,
		ContainerNo: rec.ContainerNo,
	}

	for i, path := range rec.ImagePaths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		idx := i + 1
		if path == "" {
			result.ImageResults = append(result.ImageResults, models.ImageResult{
				Index:  idx,
				Reason: "No image path",
			})
			continue
		}

		img, err := o.processImage(ctx, idx, path, rec.ContainerNo)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", idx, err)
		}
		result.ImageResults = append(result.ImageResults, img)
	}

	result.Summary = summarize(result.ImageResults)

	o.logger.Debug("Scan validated",
		zap.String("scan_id", rec.ScanID),
		zap.String("container_no", rec.ContainerNo),
		zap.String("status", string(result.Summary.Status)),
		zap.Float64("confidence", result.Summary.Confidence))

	return result, nil
}

// processImage handles one populated image slot.
func (o *Orchestrator) processImage(ctx context.Context, idx int, path, containerNo string) (models.ImageResult, error) {
	data, err := o.resolver.Resolve(ctx, path)
	if err != nil {
		if errors.Is(err, images.ErrNotFound) {
			return models.ImageResult{
				Index:  idx,
				Reason: "Image not found: " + path,
			}, nil
		}
		// Infrastructure failure: fail the scan, let the batch record it.
		return models.ImageResult{}, err
	}

	ocrResult := o.engine.Recognize(ctx, data)
	img := models.ImageResult{
		Index:     idx,
		Processed: true,
		OCR:       &ocrResult,
	}
	if !ocrResult.Success {
		img.Reason = ocrResult.Error
		return img, nil
	}

	cmp := validate.Compare(ocrResult.Primary, containerNo)
	img.Comparison = &cmp
	img.Match = cmp.Match
	return img, nil
}

// summarize derives the per-scan verdict from the image results.
func summarize(imgs []models.ImageResult) models.ValidationSummary {
	s := models.ValidationSummary{Status: models.ValidationUnknown}

	processed := 0
	var simSum float64
	for _, img := range imgs {
		if !img.Processed {
			continue
		}
		processed++
		if img.OCR == nil || !img.OCR.Success {
			continue
		}
		s.SuccessfulImages++
		if img.Comparison != nil {
			simSum += img.Comparison.Similarity
		}
		if img.Match {
			s.MatchCount++
		} else {
			s.MismatchCount++
		}
	}
	s.TotalImages = processed

	switch {
	case processed == 0:
		s.Status = models.ValidationNoImages
	case s.SuccessfulImages == 0:
		s.Status = models.ValidationOCRFailed
	case s.MatchCount == s.SuccessfulImages:
		s.Status = models.ValidationAllMatch
		s.IsValid = true
	case s.MatchCount*2 >= s.SuccessfulImages:
		s.Status = models.ValidationPartialMatch
		s.IsValid = s.MatchCount > 0
	default:
		s.Status = models.ValidationMismatch
	}

	if s.SuccessfulImages > 0 {
		s.AvgSimilarity = math.Round(simSum/float64(s.SuccessfulImages)*100) / 100
		s.Confidence = math.Round(float64(s.MatchCount)/float64(s.SuccessfulImages)*10000) / 100
	}

	return s
}
