package orchestrator

import (
	"context"
	"math"

	"gatewatch/internal/event"
	"gatewatch/pkg/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BatchOptions controls a batch validation run.
type BatchOptions struct {
	// Limit caps how many records are processed. Zero means all.
	Limit int
}

// ResultHandler receives each completed scan validation, typically to write
// the summary back to the store.
type ResultHandler func(ctx context.Context, v *models.ScanValidation)

// ValidateBatch runs ValidateScan over the records sequentially under the
// orchestrator's rate limiter. The limiter's burst is sized so ten scans run
// back to back before the cooldown kicks in, which keeps the shared OCR
// engine and the file share from being saturated.
//
// One scan failing does not stop the batch: the failure becomes an error
// entry and processing continues. Progress is pushed after every tenth scan.
func (o *Orchestrator) ValidateBatch(ctx context.Context, recs []models.ScanRecord, opts BatchOptions, onResult ResultHandler) models.BatchSummary {
	if opts.Limit > 0 && len(recs) > opts.Limit {
		recs = recs[:opts.Limit]
	}

	summary := models.BatchSummary{
		BatchID: uuid.NewString(),
		Total:   len(recs),
	}

	o.logger.Info("Starting batch validation",
		zap.String("batch_id", summary.BatchID),
		zap.Int("records", summary.Total))

	for i, rec := range recs {
		if o.limiter != nil {
			if err := o.limiter.Wait(ctx); err != nil {
				// Context cancelled mid-batch: everything not yet started
				// counts as failed, in-flight work has already completed.
				for _, rest := range recs[i:] {
					summary.Failed++
					summary.Errors = append(summary.Errors, models.BatchError{
						ScanID: rest.ScanID,
						Error:  err.Error(),
					})
				}
				break
			}
		}

		v, err := o.ValidateScan(ctx, rec)
		if err != nil {
			summary.Failed++
			summary.Errors = append(summary.Errors, models.BatchError{
				ScanID: rec.ScanID,
				Error:  err.Error(),
			})
			o.logger.Warn("Scan validation failed",
				zap.String("batch_id", summary.BatchID),
				zap.String("scan_id", rec.ScanID),
				zap.Error(err))
		} else {
			summary.Successful++
			if v.Summary.IsValid {
				summary.Valid++
			} else {
				summary.Invalid++
			}
			if onResult != nil {
				onResult(ctx, v)
			}
			o.publishValidation(v)
		}

		if (i+1)%progressEvery == 0 && i+1 < len(recs) {
			o.publishProgress(summary.BatchID, i+1, len(recs))
		}
	}

	if summary.Total > 0 {
		summary.SuccessRate = math.Round(float64(summary.Successful)/float64(summary.Total)*10000) / 100
	}
	if summary.Successful > 0 {
		summary.ValidationRate = math.Round(float64(summary.Valid)/float64(summary.Successful)*10000) / 100
	}

	if o.bus != nil {
		o.bus.Publish(event.Event{
			Type: event.BatchComplete,
			Data: map[string]any{
				"batch_id":  summary.BatchID,
				"processed": summary.Total,
			},
		})
	}

	o.logger.Info("Batch validation complete",
		zap.String("batch_id", summary.BatchID),
		zap.Int("successful", summary.Successful),
		zap.Int("failed", summary.Failed),
		zap.Int("valid", summary.Valid),
		zap.Float64("success_rate", summary.SuccessRate))

	return summary
}

func (o *Orchestrator) publishValidation(v *models.ScanValidation) {
	if o.bus == nil {
		return
	}
	o.bus.Publish(event.Event{
		Type: event.ValidationComplete,
		Data: map[string]any{
			"scan_id": v.ScanID,
			"summary": v.Summary,
		},
	})
}

func (o *Orchestrator) publishProgress(batchID string, done, total int) {
	if o.bus == nil {
		return
	}
	percent := math.Round(float64(done)/float64(total)*10000) / 100
	o.bus.Publish(event.Event{
		Type: event.BatchProgress,
		Data: map[string]any{
			"batch_id":         batchID,
			"processed":        done,
			"total":            total,
			"percent_complete": percent,
		},
	})
	o.logger.Info("Batch progress",
		zap.String("batch_id", batchID),
		zap.Int("processed", done),
		zap.Int("total", total),
		zap.Float64("percent", percent))
}
