package observability

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rahul/foundry/internal/usage"
)

func decodeEvents(t *testing.T, data []byte) []Event {
	t.Helper()
	var out []Event
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		var e Event
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		out = append(out, e)
	}
	return out
}

func TestLoggerEvents(t *testing.T) {
	var buf bytes.Buffer
	llmLog := filepath.Join(t.TempDir(), "logs", "llm.jsonl")
	l := NewLoggerTo(&buf, llmLog)

	l.LogStage("run-1", "Problem Research", EventTypeStageFailed, 1500*time.Millisecond, errors.New("boom"))
	l.LogRetry("run-1", "Problem Research", "fast", 2, 20*time.Second, errors.New("429"))
	l.LogCost("run-1", "Problem Research", usage.Usage{Input: 10, Output: 5, Total: 15}, "quality")
	l.LogLLM("run-1", "Problem Research", "ground", "prompt text", "answer")

	events := decodeEvents(t, buf.Bytes())
	require.Len(t, events, 4)
	assert.Equal(t, EventTypeStageFailed, events[0].Type)
	assert.Equal(t, "run-1", events[0].RunID)
	data := events[0].Data.(map[string]any)
	assert.Equal(t, float64(1500), data["elapsed_ms"])
	assert.Equal(t, "boom", data["error"])
	assert.Equal(t, float64(20000), events[1].Data.(map[string]any)["delay_ms"])
	assert.Equal(t, float64(15), events[2].Data.(map[string]any)["total_tokens"])

	file, err := os.ReadFile(llmLog)
	require.NoError(t, err)
	llmEvents := decodeEvents(t, file)
	require.Len(t, llmEvents, 1, "only llm events go to the transcript file")
	assert.Equal(t, EventTypeLLM, llmEvents[0].Type)
}

func TestLoggerRotation(t *testing.T) {
	llmLog := filepath.Join(t.TempDir(), "llm.jsonl")
	l := NewLoggerTo(&bytes.Buffer{}, llmLog)
	l.maxSize = 10

	l.LogLLM("r", "s", "generate", "p", strings.Repeat("x", 50))
	l.LogLLM("r", "s", "generate", "p", "second")

	_, err := os.Stat(llmLog + ".old")
	require.NoError(t, err)
	file, err := os.ReadFile(llmLog)
	require.NoError(t, err)
	assert.Contains(t, string(file), "second")
	assert.NotContains(t, string(file), "xxxxx")
}

func TestNilLogger(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() {
		l.LogTransition("r", "idle", "core_running")
		l.LogHeartbeat()
	})
}

func TestStatus(t *testing.T) {
	SetStatus("core_running", "Customer Persona")
	SetUsage(12345, 2.47)
	s := GetStatus()
	assert.Equal(t, "core_running", s.Phase)
	assert.Equal(t, 12345, s.Tokens)

	line := StatusLine(s)
	assert.Contains(t, line, "Customer Persona")
	assert.Contains(t, line, "12,345 tokens")
	assert.Contains(t, line, "2.47g CO2")

	SetStatus("checkpoint_brand_name", "")
	assert.Contains(t, StatusLine(GetStatus()), "Waiting...")
}
