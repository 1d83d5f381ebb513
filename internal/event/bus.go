package event

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Type identifies a category of event.
type Type string

// Events pushed to external consumers (dashboard transport, webhooks).
const (
	ScanIngested       Type = "scan_ingested"
	UploadReceived     Type = "upload_received"
	ValidationComplete Type = "validation_complete"
	BatchProgress      Type = "batch_progress"
	BatchComplete      Type = "batch_complete"
)

// Event is one notification published by the core.
type Event struct {
	Type      Type           `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// Handler processes one event.
type Handler func(Event)

// Bus is an in-process event bus backed by a buffered channel. Publishing
// never blocks the producer: when the buffer is full the event is dropped
// with a warning, which is acceptable for the push-notification path.
type Bus struct {
	ch      chan Event
	mu      sync.RWMutex
	subs    map[Type][]Handler
	logger  *zap.Logger
	done    chan struct{}
	stopped bool
}

// NewBus creates a bus with the given buffer size.
func NewBus(logger *zap.Logger, bufSize int) *Bus {
	if bufSize <= 0 {
		bufSize = 256
	}
	return &Bus{
		ch:     make(chan Event, bufSize),
		subs:   make(map[Type][]Handler),
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Subscribe registers a handler for the given event type.
func (b *Bus) Subscribe(t Type, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[t] = append(b.subs[t], h)
}

// Publish sends an event to the bus.
func (b *Bus) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	select {
	case b.ch <- e:
	default:
		b.logger.Warn("Event bus full, dropping event", zap.String("type", string(e.Type)))
	}
}

// Start drains the channel and dispatches to subscribers. Call in a
// goroutine; blocks until Stop.
func (b *Bus) Start() {
	for {
		select {
		case e := <-b.ch:
			b.dispatch(e)
		case <-b.done:
			for {
				select {
				case e := <-b.ch:
					b.dispatch(e)
				default:
					return
				}
			}
		}
	}
}

// Stop signals the bus to finish after draining the buffer.
func (b *Bus) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.stopped {
		b.stopped = true
		close(b.done)
	}
}

func (b *Bus) dispatch(e Event) {
	b.mu.RLock()
	handlers := b.subs[e.Type]
	b.mu.RUnlock()

	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("Event handler panicked",
						zap.String("type", string(e.Type)),
						zap.Any("panic", r))
				}
			}()
			h(e)
		}()
	}
}
