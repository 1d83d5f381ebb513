package ingest

import (
	"context"
	"strconv"
	"time"

	"gatewatch/internal/event"
	"gatewatch/pkg/models"

	"go.uber.org/zap"
)

// Recorder is the persistence seam the pipeline writes through.
type Recorder interface {
	InsertEvents(ctx context.Context, events []models.LogEvent) error
	UpsertScan(ctx context.Context, rec models.ScanRecord) error
}

// Pipeline sits between the tailer and the store. Scan confirmations are
// upserted immediately (validation depends on them); all events are also
// accumulated and flushed to the audit collection in batches, by size or by
// age, whichever comes first.
type Pipeline struct {
	recorder Recorder
	bus      *event.Bus
	logger   *zap.Logger
	maxSize  int
	maxWait  time.Duration

	eventChan chan models.LogEvent
	pending   []models.LogEvent
}

// NewPipeline creates an ingest pipeline.
func NewPipeline(recorder Recorder, bus *event.Bus, maxSize int, maxWait time.Duration, queueSize int, logger *zap.Logger) *Pipeline {
	if maxSize <= 0 {
		maxSize = 100
	}
	if queueSize <= 0 {
		queueSize = 1000
	}
	return &Pipeline{
		recorder:  recorder,
		bus:       bus,
		logger:    logger,
		maxSize:   maxSize,
		maxWait:   maxWait,
		eventChan: make(chan models.LogEvent, queueSize),
		pending:   make([]models.LogEvent, 0, maxSize),
	}
}

// Enqueue hands one classified event to the pipeline. It is the tailer's
// sink; a full queue drops the event with a warning rather than stalling
// the ingestion loop.
func (p *Pipeline) Enqueue(ev models.LogEvent) {
	select {
	case p.eventChan <- ev:
	default:
		p.logger.Warn("Ingest queue full, dropping event",
			zap.String("type", string(ev.Type)))
	}
}

// Start runs the pipeline loop until the context is cancelled. Events are
// handled strictly in arrival order, which preserves the tailer's file
// ordering guarantee.
func (p *Pipeline) Start(ctx context.Context) error {
	ticker := time.NewTicker(p.maxWait)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.flush(context.Background())
			return ctx.Err()

		case ev := <-p.eventChan:
			p.handle(ctx, ev)
			if len(p.pending) >= p.maxSize {
				p.flush(ctx)
				ticker.Reset(p.maxWait)
			}

		case <-ticker.C:
			p.flush(ctx)
		}
	}
}

// handle applies the per-variant side effects and queues the event for the
// audit batch.
func (p *Pipeline) handle(ctx context.Context, ev models.LogEvent) {
	switch ev.Type {
	case models.EventScan:
		rec := scanRecordFromEvent(ev)
		if err := p.recorder.UpsertScan(ctx, rec); err != nil {
			p.logger.Error("Failed to upsert scan",
				zap.String("scan_id", rec.ScanID),
				zap.Error(err))
		} else {
			p.bus.Publish(event.Event{
				Type: event.ScanIngested,
				Data: map[string]any{
					"scan_id":      rec.ScanID,
					"container_no": rec.ContainerNo,
					"truck_no":     rec.TruckNo,
					"status":       rec.Status,
					"repaired":     ev.Repaired,
				},
			})
		}

	case models.EventFtpUpload:
		p.bus.Publish(event.Event{
			Type: event.UploadReceived,
			Data: map[string]any{
				"ip":   ev.UploadIP,
				"file": ev.UploadFile,
			},
		})
	}

	p.pending = append(p.pending, ev)
}

// flush writes the accumulated events to the audit collection. Failures are
// logged and the batch is dropped; raw event audit is best effort.
func (p *Pipeline) flush(ctx context.Context) {
	if len(p.pending) == 0 {
		return
	}
	batch := p.pending
	p.pending = make([]models.LogEvent, 0, p.maxSize)

	if err := p.recorder.InsertEvents(ctx, batch); err != nil {
		p.logger.Error("Failed to flush event batch",
			zap.Int("size", len(batch)),
			zap.Error(err))
		return
	}
	p.logger.Debug("Event batch flushed", zap.Int("size", len(batch)))
}

// scanRecordFromEvent builds the scan record a confirmation line describes.
// The payload keys are the terminal's own field names.
func scanRecordFromEvent(ev models.LogEvent) models.ScanRecord {
	rec := models.ScanRecord{
		ScanID:   ev.ScanID,
		ScanTime: ev.Timestamp,
		Status:   models.ScanStatusNOK,
	}
	if ev.ResultCode == "200" {
		rec.Status = models.ScanStatusOK
	}
	if v, ok := ev.Payload["CONTAINER_NO"].(string); ok && v != "" {
		rec.ContainerNo = v
	} else {
		rec.ContainerNo = "N/A"
	}
	if v, ok := ev.Payload["VEHICLE_NO"].(string); ok {
		rec.TruckNo = v
	}
	for i := range rec.ImagePaths {
		key := "IMAGE" + strconv.Itoa(i+1)
		if v, ok := ev.Payload[key].(string); ok {
			rec.ImagePaths[i] = v
		}
	}
	return rec
}
