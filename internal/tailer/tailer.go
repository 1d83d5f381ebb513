package tailer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gatewatch/pkg/models"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// EventSink receives classified events in file order.
type EventSink func(models.LogEvent)

// Classifier maps one raw line to an event. A nil return skips the line.
type Classifier interface {
	Classify(line string, fallback time.Time) *models.LogEvent
}

// Tailer follows a single append-only log file. It owns the file's read
// cursor: on each change notification it reads exactly the unread byte
// range, classifies the new lines, dispatches them in order, and only then
// advances the cursor. A shrinking file is treated as rotation and the
// cursor resets to zero.
type Tailer struct {
	path         string
	stateFile    string
	pollInterval time.Duration
	classifier   Classifier
	sink         EventSink
	logger       *zap.Logger

	mu      sync.Mutex
	offset  int64
	partial string // trailing fragment of the last read, not yet newline-terminated
}

// New creates a tailer for the given file. The file must exist: a missing
// operational log at startup is a configuration error, not a wait condition.
// The cursor starts at the current file size so pre-existing content is not
// replayed, unless a saved state file holds a still-valid offset.
func New(path, stateFile string, pollInterval time.Duration, classifier Classifier, sink EventSink, logger *zap.Logger) (*Tailer, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("log file not accessible: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("log path %s is a directory", path)
	}

	t := &Tailer{
		path:         path,
		stateFile:    stateFile,
		pollInterval: pollInterval,
		classifier:   classifier,
		sink:         sink,
		logger:       logger,
		offset:       info.Size(),
	}

	if off, ok := t.loadState(); ok && off <= info.Size() {
		t.offset = off
		logger.Info("Resuming from saved position",
			zap.String("file", path),
			zap.Int64("offset", off))
	}

	return t, nil
}

// Start blocks until the context is cancelled. File growth is detected via
// fsnotify write events, with a poll ticker as fallback for filesystems
// (network shares in particular) where change notifications are unreliable.
func (t *Tailer) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fs watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the parent directory so rotation (remove+create) is still seen.
	if err := watcher.Add(filepath.Dir(t.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(t.path), err)
	}

	t.logger.Info("Tailing file",
		zap.String("file", t.path),
		zap.Int64("offset", t.offset))

	poll := time.NewTicker(t.pollInterval)
	defer poll.Stop()

	saveTicker := time.NewTicker(10 * time.Second)
	defer saveTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := t.saveState(); err != nil {
				t.logger.Error("Failed to save final state", zap.Error(err))
			}
			t.logger.Info("Stopping tail", zap.String("file", t.path))
			return ctx.Err()

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Name != t.path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				t.drain(time.Now())
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			t.logger.Error("Watcher error", zap.Error(err))

		case <-poll.C:
			t.drain(time.Now())

		case <-saveTicker.C:
			if err := t.saveState(); err != nil {
				t.logger.Error("Failed to save state", zap.Error(err))
			}
		}
	}
}

// drain reads and dispatches whatever has been appended since the last read.
// It is serialized by the tailer mutex so two change notifications can never
// race on the cursor.
func (t *Tailer) drain(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	info, err := os.Stat(t.path)
	if err != nil {
		t.logger.Warn("Stat failed during drain", zap.Error(err))
		return
	}
	size := info.Size()

	if size < t.offset {
		// Truncation or rotation: start over from the top of the new file.
		t.logger.Warn("File shrank, resetting cursor",
			zap.String("file", t.path),
			zap.Int64("old_offset", t.offset),
			zap.Int64("size", size))
		t.offset = 0
		t.partial = ""
	}
	if size == t.offset {
		return
	}

	f, err := os.Open(t.path)
	if err != nil {
		t.logger.Error("Failed to open file", zap.Error(err))
		return
	}
	defer f.Close()

	if _, err := f.Seek(t.offset, io.SeekStart); err != nil {
		t.logger.Error("Seek failed", zap.Error(err))
		return
	}

	buf := make([]byte, size-t.offset)
	if _, err := io.ReadFull(f, buf); err != nil {
		t.logger.Error("Read failed", zap.Error(err))
		return
	}

	text := t.partial + string(buf)
	lines := strings.Split(text, "\n")
	// The final fragment has no newline yet; hold it for the next drain.
	t.partial = lines[len(lines)-1]
	lines = lines[:len(lines)-1]

	for _, line := range lines {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			continue
		}
		if ev := t.classifier.Classify(line, now); ev != nil {
			t.sink(*ev)
		}
	}

	// Advance only after every line in the range was dispatched.
	t.offset = size
}

func (t *Tailer) loadState() (int64, bool) {
	if t.stateFile == "" {
		return 0, false
	}
	state, err := readStateFile(t.stateFile)
	if err != nil {
		if !os.IsNotExist(err) {
			t.logger.Warn("Failed to load state, starting fresh", zap.Error(err))
		}
		return 0, false
	}
	fs, ok := state[t.path]
	if !ok {
		return 0, false
	}
	return fs.Offset, true
}

func (t *Tailer) saveState() error {
	if t.stateFile == "" {
		return nil
	}
	t.mu.Lock()
	state := map[string]models.FileState{
		t.path: {Offset: t.offset, LastRead: time.Now()},
	}
	t.mu.Unlock()
	return writeStateFile(t.stateFile, state)
}
