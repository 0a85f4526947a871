// Package trace implements an append-only JSONL audit trail of flow
// resolution and generation. Every event carries the hash of the line
// before it so a trail can be checked for tampering or truncation.
package trace

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates trace event types.
type EventType string

const (
	EventFlowBuild      EventType = "flow_build"
	EventInputResolved  EventType = "input_resolved"
	EventInputSuspended EventType = "input_suspended"
	EventFlowReady      EventType = "flow_ready"
	EventFlowDone       EventType = "flow_done"
	EventFileWritten    EventType = "file_written"
)

// Genesis is the prev_hash of the first event of a trail.
var Genesis = strings.Repeat("0", 64)

// Event is a single trace event written to the JSONL stream.
type Event struct {
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	RunID     string         `json:"run_id"`
	PrevHash  string         `json:"prev_hash"`
	Data      map[string]any `json:"data,omitempty"`
}

// NewRunID returns a run identifier of the form YYYYMMDDTHHmmss-xxxxxxxx.
func NewRunID() string {
	return time.Now().Format("20060102T150405") + "-" + uuid.NewString()[:8]
}

// Writer writes trace events. It is safe for concurrent use. A nil
// *Writer discards events, so callers can emit unconditionally.
type Writer struct {
	mu       sync.Mutex
	w        io.Writer
	runID    string
	prevHash string
	now      func() time.Time
}

// NewWriter creates a trace writer that writes to w.
func NewWriter(w io.Writer, runID string) *Writer {
	return &Writer{w: w, runID: runID, prevHash: Genesis, now: time.Now}
}

// NewFileWriter creates a trace writer that appends to a JSONL file. The
// returned closer closes the file.
func NewFileWriter(path, runID string) (*Writer, io.Closer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open trace file: %w", err)
	}
	return NewWriter(f, runID), f, nil
}

// Emit writes a single trace event.
func (tw *Writer) Emit(eventType EventType, data map[string]any) error {
	if tw == nil {
		return nil
	}
	tw.mu.Lock()
	defer tw.mu.Unlock()

	line, err := json.Marshal(Event{
		Type:      eventType,
		Timestamp: tw.now().UTC(),
		RunID:     tw.runID,
		PrevHash:  tw.prevHash,
		Data:      data,
	})
	if err != nil {
		return fmt.Errorf("encode trace event: %w", err)
	}
	h := sha256.Sum256(line)
	if _, err := tw.w.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write trace event: %w", err)
	}
	tw.prevHash = hex.EncodeToString(h[:])
	return nil
}

// EmitFlowBuild records the start of a build with the number of answers
// already known.
func (tw *Writer) EmitFlowBuild(script string, answers int) error {
	return tw.Emit(EventFlowBuild, map[string]any{
		"script":  script,
		"answers": answers,
	})
}

// EmitInputResolved records where the value of an input came from.
func (tw *Writer) EmitInputResolved(path, source string, v any) error {
	return tw.Emit(EventInputResolved, map[string]any{
		"path":   path,
		"source": source,
		"value":  v,
	})
}

// EmitInputSuspended records the input a build stopped at.
func (tw *Writer) EmitInputSuspended(path, location string, optional bool) error {
	return tw.Emit(EventInputSuspended, map[string]any{
		"path":     path,
		"location": location,
		"optional": optional,
	})
}

// EmitFlowReady records a completed resolution.
func (tw *Writer) EmitFlowReady(outputs int) error {
	return tw.Emit(EventFlowReady, map[string]any{"outputs": outputs})
}

// EmitFlowDone records the end of generation.
func (tw *Writer) EmitFlowDone(files int, duration time.Duration) error {
	return tw.Emit(EventFlowDone, map[string]any{
		"files":    files,
		"duration": duration.String(),
	})
}

// EmitFileWritten records one generated file.
func (tw *Writer) EmitFileWritten(path, source string, size int) error {
	return tw.Emit(EventFileWritten, map[string]any{
		"path":   path,
		"source": source,
		"size":   size,
	})
}
