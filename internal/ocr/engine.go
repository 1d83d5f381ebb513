package ocr

import (
	"context"

	"gatewatch/pkg/models"
)

// Engine is the recognition boundary: image bytes in, raw text out. The
// engine is a shared stateful resource (model load is expensive); one
// instance is created at startup and injected into every consumer.
// Recognition failures surface in the result, never as Go errors, so one
// bad image can never abort a validation run.
type Engine interface {
	Recognize(ctx context.Context, image []byte) models.OCRResult
}
