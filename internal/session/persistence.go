// ABOUTME: JSONL mode-history persistence for session resume, append-only writes off the event path
// ABOUTME: One transition record per line; reads skip malformed lines; missing file means no history

package session

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/mailru/easyjson"
	"github.com/mauromedda/pi-modes/internal/config"
	pilog "github.com/mauromedda/pi-modes/internal/log"
	"github.com/mauromedda/pi-modes/internal/modes"
)

var historyLog = pilog.Named("history")

// historyQueue bounds transitions waiting for the writer goroutine.
const historyQueue = 64

// HistoryPath returns the mode-history file for a session.
func HistoryPath(sessionID string) string {
	return filepath.Join(config.SessionDir(sessionID), "modes.jsonl")
}

// HistoryWriter appends transition records to a JSONL file. Append writes
// inline; Enqueue hands the record to a single writer goroutine so callers
// on the event path never touch the disk. Records keep their enqueue order.
type HistoryWriter struct {
	mu   sync.Mutex
	file *os.File

	qmu    sync.Mutex
	queue  chan modes.Transition
	closed bool
	done   chan struct{}
}

// OpenHistory opens (creating if needed) the history file at path for appending.
func OpenHistory(path string) (*HistoryWriter, error) {
	if err := config.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("creating history dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening history file: %w", err)
	}
	w := &HistoryWriter{
		file:  f,
		queue: make(chan modes.Transition, historyQueue),
		done:  make(chan struct{}),
	}
	go w.drain()
	return w, nil
}

func (w *HistoryWriter) drain() {
	defer close(w.done)
	for tr := range w.queue {
		if err := w.Append(tr); err != nil {
			historyLog.Warn("persisting transition: %v", err)
		}
	}
}

// Enqueue schedules tr for writing and reports whether it was accepted.
// It blocks only when the queue is full; after Close it drops tr.
func (w *HistoryWriter) Enqueue(tr modes.Transition) bool {
	w.qmu.Lock()
	defer w.qmu.Unlock()
	if w.closed {
		return false
	}
	w.queue <- tr
	return true
}

// Append writes one transition record.
func (w *HistoryWriter) Append(tr modes.Transition) error {
	line, err := easyjson.Marshal(tr)
	if err != nil {
		return fmt.Errorf("marshaling transition: %w", err)
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.file.Write(line); err != nil {
		return fmt.Errorf("writing transition: %w", err)
	}
	return nil
}

// Close flushes queued records, stops the writer goroutine and closes the
// file. Safe to call more than once.
func (w *HistoryWriter) Close() error {
	w.qmu.Lock()
	if w.closed {
		w.qmu.Unlock()
		return nil
	}
	w.closed = true
	close(w.queue)
	w.qmu.Unlock()
	<-w.done

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

// ReadHistory reads all transition records from path.
// A missing file yields no records and no error.
func ReadHistory(path string) ([]modes.Transition, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening history %s: %w", path, err)
	}
	defer f.Close()

	var out []modes.Transition
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var tr modes.Transition
		if err := easyjson.Unmarshal(scanner.Bytes(), &tr); err != nil {
			continue // Skip malformed lines
		}
		out = append(out, tr)
	}
	if err := scanner.Err(); err != nil {
		return out, fmt.Errorf("scanning history %s: %w", path, err)
	}
	return out, nil
}
