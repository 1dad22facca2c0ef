package llm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scenario struct {
	Kind  string `json:"kind"`
	Score int    `json:"score"`
}

func (s scenario) Validate() error {
	if s.Score == 13 {
		return errors.New("unlucky score")
	}
	return nil
}

var scenarioSchema = Object(map[string]any{
	"kind":  Enum("scenario", "base", "optimistic"),
	"score": Range("score", 0, 100),
}, "kind", "score")

func TestDecodeStripsFencesAndProse(t *testing.T) {
	raw := "Here you go:\n```json\n{\"kind\": \"base\", \"score\": 42}\n```"
	var out scenario
	require.NoError(t, Decode(raw, scenarioSchema, &out))
	assert.Equal(t, scenario{Kind: "base", Score: 42}, out)

	out = scenario{}
	require.NoError(t, Decode(`noise {"kind":"optimistic","score":1} trailing`, scenarioSchema, &out))
	assert.Equal(t, "optimistic", out.Kind)
}

func TestDecodeRejectsSchemaMismatch(t *testing.T) {
	var out scenario
	err := Decode(`{"kind": "pessimistic", "score": 42}`, scenarioSchema, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match schema")

	err = Decode(`{"kind": "base"}`, scenarioSchema, &out)
	require.Error(t, err)

	err = Decode(`{"kind": "base", "score": 101}`, scenarioSchema, &out)
	require.Error(t, err)
}

func TestDecodeRunsValidator(t *testing.T) {
	var out scenario
	err := Decode(`{"kind": "base", "score": 13}`, scenarioSchema, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unlucky")
}

func TestDecodeEmpty(t *testing.T) {
	var out scenario
	assert.ErrorIs(t, Decode("   ", scenarioSchema, &out), ErrEmptyResponse)
}

func TestUsageFrom(t *testing.T) {
	u := usageFrom(map[string]any{"PromptTokens": 7, "CompletionTokens": 3})
	assert.Equal(t, 7, u.Input)
	assert.Equal(t, 3, u.Output)
	assert.Equal(t, 10, u.Total)

	u = usageFrom(map[string]any{"input_tokens": float64(4), "output_tokens": int64(6), "total_tokens": int32(11)})
	assert.Equal(t, 11, u.Total)

	assert.True(t, usageFrom(nil).IsZero())
}
