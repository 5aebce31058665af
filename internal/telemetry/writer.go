package telemetry

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/aigoflow/relay-service/internal/models"
)

// Writer drains a bounded queue of telemetry records into an append-only
// CSV file. A single worker goroutine owns the file, so no write locking
// is needed. Producers never block: Enqueue is fire-and-forget and drops
// the newest record when the queue is full.
type Writer struct {
	path  string
	queue chan *models.TelemetryRecord
	done  chan struct{}

	mu      sync.Mutex
	started bool
	closed  bool

	dropped  atomic.Int64
	written  atomic.Int64
	ioErrors atomic.Int64
}

// NewWriter creates a writer for the given CSV path with a bounded
// queue of queueSize records.
func NewWriter(path string, queueSize int) *Writer {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Writer{
		path:  path,
		queue: make(chan *models.TelemetryRecord, queueSize),
		done:  make(chan struct{}),
	}
}

// Start launches the background worker. The log file is created lazily
// on the first record, writing the header row first only when the file
// did not already exist.
func (w *Writer) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started || w.closed {
		return
	}
	w.started = true
	go w.drain()
}

// Enqueue queues a record for writing without blocking. Returns false
// when the record was dropped, either because the queue is full or the
// writer has already been closed. Safe to call concurrently with Close:
// late records during shutdown are dropped, never a panic.
func (w *Writer) Enqueue(rec *models.TelemetryRecord) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		w.dropped.Add(1)
		slog.Warn("Telemetry writer closed, dropping record",
			"path", w.path,
			"dropped_total", w.dropped.Load())
		return false
	}
	select {
	case w.queue <- rec:
		return true
	default:
		w.dropped.Add(1)
		slog.Warn("Telemetry queue full, dropping record",
			"path", w.path,
			"dropped_total", w.dropped.Load())
		return false
	}
}

// Close stops accepting records, drains everything already queued, and
// waits for the worker to exit. Idempotent.
func (w *Writer) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.queue)
	started := w.started
	w.mu.Unlock()

	if !started {
		return nil
	}
	<-w.done
	return nil
}

// Dropped returns how many records were discarded due to queue overflow.
func (w *Writer) Dropped() int64 {
	return w.dropped.Load()
}

// Written returns how many records have been flushed to the file.
func (w *Writer) Written() int64 {
	return w.written.Load()
}

func (w *Writer) drain() {
	defer close(w.done)

	var file *os.File
	var csvw *csv.Writer
	defer func() {
		if file != nil {
			file.Close()
		}
	}()

	for rec := range w.queue {
		if file == nil {
			f, cw, err := w.open()
			if err != nil {
				w.ioErrors.Add(1)
				slog.Error("Failed to open telemetry log", "path", w.path, "error", err)
				continue
			}
			file, csvw = f, cw
		}
		if err := w.append(file, csvw, rec); err != nil {
			w.ioErrors.Add(1)
			slog.Error("Failed to write telemetry record", "path", w.path, "error", err)
			continue
		}
		w.written.Add(1)
	}
}

// open opens the log file for appending, writing the header row first
// if the file is newly created.
func (w *Writer) open() (*os.File, *csv.Writer, error) {
	_, statErr := os.Stat(w.path)
	isNew := os.IsNotExist(statErr)

	file, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, err
	}
	csvw := csv.NewWriter(file)

	if isNew {
		if err := csvw.Write(models.CSVHeader()); err != nil {
			file.Close()
			return nil, nil, err
		}
		csvw.Flush()
		if err := csvw.Error(); err != nil {
			file.Close()
			return nil, nil, err
		}
	}
	return file, csvw, nil
}

// append writes one record and makes it durable before returning.
func (w *Writer) append(file *os.File, csvw *csv.Writer, rec *models.TelemetryRecord) error {
	if err := csvw.Write(rec.Row()); err != nil {
		return err
	}
	csvw.Flush()
	if err := csvw.Error(); err != nil {
		return err
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("fsync failed: %w", err)
	}
	return nil
}
