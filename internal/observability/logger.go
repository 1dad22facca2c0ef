package observability

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rahul/foundry/internal/usage"
)

// EventType defines the category of the log event.
type EventType string

const (
	EventTypeStageStart  EventType = "stage_start"
	EventTypeStageDone   EventType = "stage_done"
	EventTypeStageFailed EventType = "stage_failed"
	EventTypeRetry       EventType = "retry"
	EventTypeFallback    EventType = "fallback"
	EventTypeCheckpoint  EventType = "checkpoint"
	EventTypeTransition  EventType = "transition"
	EventTypeCost        EventType = "cost"
	EventTypeImage       EventType = "image"
	EventTypeHeartbeat   EventType = "heartbeat"
	EventTypeLLM         EventType = "llm"
)

// Event represents a structured log entry.
type Event struct {
	Type      EventType `json:"type"`
	RunID     string    `json:"run_id,omitempty"`
	Stage     string    `json:"stage,omitempty"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Logger handles structured logging. A nil *Logger discards everything.
type Logger struct {
	mu         sync.Mutex
	out        io.Writer
	llmLogPath string
	maxSize    int64
}

func NewLogger() *Logger {
	return NewLoggerTo(os.Stdout, filepath.Join("logs", "llm.jsonl"))
}

// NewLoggerTo writes events to out. LLM transcripts go to llmLogPath
// unless it is empty.
func NewLoggerTo(out io.Writer, llmLogPath string) *Logger {
	return &Logger{
		out:        out,
		llmLogPath: llmLogPath,
		maxSize:    10 * 1024 * 1024, // 10MB
	}
}

// Log emits a structured JSON event.
func (l *Logger) Log(evt Event) {
	if l == nil {
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		data = []byte(fmt.Sprintf("{\"error\": \"failed to marshal event: %v\"}", err))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.out, string(data))

	if evt.Type == EventTypeLLM && l.llmLogPath != "" {
		l.writeToFile(data)
	}
}

func (l *Logger) writeToFile(data []byte) {
	if err := os.MkdirAll(filepath.Dir(l.llmLogPath), 0755); err != nil {
		log.Printf("failed to create log directory: %v", err)
		return
	}

	info, err := os.Stat(l.llmLogPath)
	if err == nil && info.Size() > l.maxSize {
		l.rotateLogs()
	}

	f, err := os.OpenFile(l.llmLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("failed to open log file: %v", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		log.Printf("failed to write to log file: %v", err)
	}
}

func (l *Logger) rotateLogs() {
	// keep one .old file
	oldPath := l.llmLogPath + ".old"
	_ = os.Remove(oldPath)
	_ = os.Rename(l.llmLogPath, oldPath)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func (l *Logger) LogStage(runID, stage string, typ EventType, elapsed time.Duration, err error) {
	data := map[string]any{"elapsed_ms": elapsed.Milliseconds()}
	if err != nil {
		data["error"] = err.Error()
	}
	l.Log(Event{Type: typ, RunID: runID, Stage: stage, Data: data})
}

func (l *Logger) LogRetry(runID, stage, tier string, attempt int, delay time.Duration, err error) {
	l.Log(Event{
		Type:  EventTypeRetry,
		RunID: runID,
		Stage: stage,
		Data: map[string]any{
			"tier":     tier,
			"attempt":  attempt,
			"delay_ms": delay.Milliseconds(),
			"error":    errString(err),
		},
	})
}

func (l *Logger) LogFallback(runID, stage, from, to string, err error) {
	l.Log(Event{
		Type:  EventTypeFallback,
		RunID: runID,
		Stage: stage,
		Data: map[string]string{
			"from":  from,
			"to":    to,
			"error": errString(err),
		},
	})
}

func (l *Logger) LogCheckpoint(runID, kind string, options int) {
	l.Log(Event{
		Type:  EventTypeCheckpoint,
		RunID: runID,
		Data:  map[string]any{"kind": kind, "options": options},
	})
}

func (l *Logger) LogTransition(runID, from, to string) {
	l.Log(Event{
		Type:  EventTypeTransition,
		RunID: runID,
		Data:  map[string]string{"from": from, "to": to},
	})
}

func (l *Logger) LogCost(runID, stage string, u usage.Usage, tier string) {
	l.Log(Event{
		Type:  EventTypeCost,
		RunID: runID,
		Stage: stage,
		Data: map[string]any{
			"prompt_tokens":     u.Input,
			"completion_tokens": u.Output,
			"total_tokens":      u.Total,
			"tier":              tier,
		},
	})
}

func (l *Logger) LogImage(runID, stage string, ok bool, err error) {
	l.Log(Event{
		Type:  EventTypeImage,
		RunID: runID,
		Stage: stage,
		Data:  map[string]any{"ok": ok, "error": errString(err)},
	})
}

func (l *Logger) LogHeartbeat() {
	l.Log(Event{
		Type: EventTypeHeartbeat,
		Data: map[string]string{"status": "alive"},
	})
}

func (l *Logger) LogLLM(runID, stage, step string, prompt any, response string) {
	l.Log(Event{
		Type:  EventTypeLLM,
		RunID: runID,
		Stage: stage,
		Data: map[string]any{
			"step":     step,
			"prompt":   prompt,
			"response": response,
		},
	})
}
