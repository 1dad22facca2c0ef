package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rahul/foundry/internal/governance"
	"github.com/rahul/foundry/internal/llm"
	"github.com/rahul/foundry/internal/pipeline"
	"github.com/rahul/foundry/pkg/config"
)

type countOf int

func (c countOf) RunCount(context.Context, string) (int, error) { return int(c), nil }

func TestRunDefaults(t *testing.T) {
	cfg := &config.Config{Pipeline: config.PipelineConfig{
		Framing:      false,
		Refinement:   true,
		Fast:         true,
		Deliverables: []string{"lean-canvas", "pitch_deck"},
	}}
	opts, err := runDefaults(cfg)
	require.NoError(t, err)
	assert.False(t, opts.Framing)
	assert.True(t, opts.Refinement)
	assert.True(t, opts.Fast)
	assert.Equal(t, []pipeline.DeliverableID{pipeline.DeliverableLeanCanvas, pipeline.DeliverablePitchDeck}, opts.Deliverables)

	cfg.Pipeline.Deliverables = nil
	opts, err = runDefaults(cfg)
	require.NoError(t, err)
	assert.Equal(t, pipeline.AllDeliverables(), opts.Deliverables)

	cfg.Pipeline.Deliverables = []string{"brochure"}
	_, err = runDefaults(cfg)
	assert.Error(t, err)
}

func TestNewGuard(t *testing.T) {
	cfg := &config.Config{Pipeline: config.PipelineConfig{
		DeniedOwners:    []string{`^telegram:666$`},
		MaxRunsPerOwner: 2,
	}}
	guard, err := newGuard(cfg, countOf(2))
	require.NoError(t, err)
	ctx := context.Background()

	err = guard.Authorize(ctx, "telegram:666")
	assert.ErrorIs(t, err, governance.ErrNotAuthorized)
	err = guard.Authorize(ctx, "telegram:1")
	assert.ErrorIs(t, err, governance.ErrNotAuthorized, "quota reached")
	err = guard.Check(ctx, governance.Request{Owner: "telegram:1", Action: governance.ActionVideo})
	assert.ErrorIs(t, err, governance.ErrNotAuthorized, "video disabled")
	assert.NoError(t, guard.Check(ctx, governance.Request{Owner: "telegram:1", Action: governance.ActionExport}))

	cfg.Pipeline.DeniedOwners = []string{"("}
	_, err = newGuard(cfg, nil)
	assert.Error(t, err)
}

func TestNewModels(t *testing.T) {
	cfg := &config.Config{Models: config.ModelsConfig{Fast: "small", Quality: "large", Creative: "large"}}
	models, err := newModels(cfg, "openai", config.ProviderConfig{APIKey: "sk-test"})
	require.NoError(t, err)
	require.Len(t, models, 3)
	assert.Same(t, models[llm.TierQuality], models[llm.TierCreative])
	assert.NotSame(t, models[llm.TierFast], models[llm.TierQuality])

	_, err = newModels(cfg, "bedrock", config.ProviderConfig{})
	assert.Error(t, err)
}

func TestOpenStoreCreatesDirectory(t *testing.T) {
	cfg := &config.Config{Memory: config.MemoryConfig{Path: filepath.Join(t.TempDir(), "data", "runs.db")}}
	rs, err := openStore(cfg)
	require.NoError(t, err)
	require.NoError(t, rs.Close())
}
