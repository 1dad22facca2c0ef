package llm_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/rahul/foundry/internal/llm"
	"github.com/rahul/foundry/internal/llm/llmtest"
	"github.com/rahul/foundry/internal/usage"
)

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
	err    error
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return s.err
}

type persona struct {
	Name string `json:"name"`
}

var personaSchema = llm.Object(map[string]any{"name": llm.String("name")}, "name")

func newInvoker(t *testing.T, model *llmtest.Model, opts ...llm.Option) (*llm.Invoker, *sleepRecorder) {
	t.Helper()
	rec := &sleepRecorder{}
	opts = append([]llm.Option{llm.WithSleep(rec.sleep)}, opts...)
	inv, err := llm.NewInvoker(map[llm.Tier]llms.Model{
		llm.TierFast:     model,
		llm.TierQuality:  model,
		llm.TierCreative: model,
	}, opts...)
	require.NoError(t, err)
	return inv, rec
}

func tiers(calls []llmtest.Call) []llm.Tier {
	var out []llm.Tier
	for _, c := range calls {
		out = append(out, c.Info.Tier)
	}
	return out
}

func TestNewInvokerRequiresFastTier(t *testing.T) {
	_, err := llm.NewInvoker(map[llm.Tier]llms.Model{llm.TierQuality: llmtest.NewModel(nil)})
	require.Error(t, err)
}

func TestGenerateDecodesAndReportsUsage(t *testing.T) {
	model := llmtest.NewModel(func(info llm.CallInfo, system, prompt string) (string, error) {
		return `{"name": "Ada"}`, nil
	})
	inv, rec := newInvoker(t, model)

	var out persona
	u, err := inv.Generate(context.Background(), llm.Request{
		Stage:  "Customer Persona",
		System: "sys",
		Prompt: "make a persona",
		Schema: personaSchema,
		Tier:   llm.TierQuality,
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, "Ada", out.Name)
	assert.Equal(t, llmtest.CallUsage, u)
	assert.Empty(t, rec.delays)

	calls := model.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "Customer Persona", calls[0].Info.Stage)
	assert.Equal(t, llm.TierQuality, calls[0].Info.Tier)
	assert.Contains(t, calls[0].System, "JSON schema")
}

func TestRateLimitFallsBackOnceThenBacksOff(t *testing.T) {
	model := llmtest.NewModel(func(llm.CallInfo, string, string) (string, error) {
		return "", errors.New("API returned unexpected status code: 429")
	})
	inv, rec := newInvoker(t, model)

	var out persona
	_, err := inv.Generate(context.Background(), llm.Request{
		Stage:  "Customer Persona",
		Schema: personaSchema,
		Tier:   llm.TierQuality,
	}, &out)
	require.Error(t, err)

	var se *llm.StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, llm.KindOther, se.Kind)
	assert.Equal(t, "Customer Persona", se.Stage)
	assert.ErrorIs(t, err, llm.ErrRetriesExhausted)
	assert.Contains(t, err.Error(), "Customer Persona")

	assert.Equal(t, []llm.Tier{
		llm.TierQuality,
		llm.TierFast,
		llm.TierFast,
		llm.TierFast,
		llm.TierFast,
	}, tiers(model.Calls()))
	assert.Equal(t, []time.Duration{10 * time.Second, 20 * time.Second, 40 * time.Second}, rec.delays)
}

func TestFallbackSucceedsWithoutBackoff(t *testing.T) {
	model := llmtest.NewModel(func(info llm.CallInfo, _, _ string) (string, error) {
		if info.Tier == llm.TierCreative {
			return "", errors.New("503 Service Unavailable")
		}
		return `{"name": "Grace"}`, nil
	})
	inv, rec := newInvoker(t, model)

	var out persona
	_, err := inv.Generate(context.Background(), llm.Request{Stage: "Brand Naming", Schema: personaSchema, Tier: llm.TierCreative}, &out)
	require.NoError(t, err)
	assert.Equal(t, "Grace", out.Name)
	assert.Equal(t, []llm.Tier{llm.TierCreative, llm.TierFast}, tiers(model.Calls()))
	assert.Empty(t, rec.delays)
}

func TestFastTierSkipsFallback(t *testing.T) {
	model := llmtest.NewModel(func(llm.CallInfo, string, string) (string, error) {
		return "", errors.New("RESOURCE_EXHAUSTED")
	})
	inv, rec := newInvoker(t, model, llm.WithRetries(2), llm.WithBaseDelay(time.Second))

	_, _, err := inv.Text(context.Background(), llm.Request{Stage: "Problem Research", Tier: llm.TierFast})
	require.Error(t, err)
	assert.Len(t, model.Calls(), 3)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, rec.delays)
}

func TestHardQuotaFailsImmediately(t *testing.T) {
	model := llmtest.NewModel(func(llm.CallInfo, string, string) (string, error) {
		return "", errors.New("429 RESOURCE_EXHAUSTED: you reached the daily limit")
	})
	inv, rec := newInvoker(t, model)

	var out persona
	_, err := inv.Generate(context.Background(), llm.Request{Stage: "Pitch Deck", Schema: personaSchema, Tier: llm.TierQuality}, &out)
	require.Error(t, err)
	assert.Equal(t, llm.KindHardQuota, llm.Classify(err))
	assert.Len(t, model.Calls(), 1)
	assert.Empty(t, rec.delays)
	assert.Contains(t, err.Error(), "Pitch Deck")
}

func TestOtherErrorIsNotRetried(t *testing.T) {
	model := llmtest.NewModel(func(llm.CallInfo, string, string) (string, error) {
		return "", errors.New("invalid api key")
	})
	inv, rec := newInvoker(t, model)

	_, _, err := inv.Text(context.Background(), llm.Request{Stage: "Lean Canvas", Tier: llm.TierQuality})
	require.Error(t, err)
	assert.Equal(t, llm.KindOther, llm.Classify(err))
	assert.Len(t, model.Calls(), 1)
	assert.Empty(t, rec.delays)
}

func TestValidationFailureIsNotRetried(t *testing.T) {
	model := llmtest.NewModel(func(llm.CallInfo, string, string) (string, error) {
		return `{"nickname": "x"}`, nil
	})
	inv, _ := newInvoker(t, model)

	var out persona
	_, err := inv.Generate(context.Background(), llm.Request{Stage: "Customer Persona", Schema: personaSchema, Tier: llm.TierFast}, &out)
	require.Error(t, err)
	assert.Equal(t, llm.KindOther, llm.Classify(err))
	assert.Contains(t, err.Error(), "invalid response")
	assert.Len(t, model.Calls(), 1)
}

func TestCancelledDuringBackoff(t *testing.T) {
	model := llmtest.NewModel(func(llm.CallInfo, string, string) (string, error) {
		return "", errors.New("429")
	})
	inv, rec := newInvoker(t, model)
	rec.err = context.Canceled

	_, _, err := inv.Text(context.Background(), llm.Request{Stage: "Storyboard", Tier: llm.TierFast})
	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrCancelled)
	assert.Equal(t, llm.KindCancelled, llm.Classify(err))
}

func TestGroundDedupesSources(t *testing.T) {
	model := llmtest.NewModel(func(_ llm.CallInfo, _, prompt string) (string, error) {
		return "grounded: " + prompt, nil
	})
	searcher := &llmtest.Searcher{Default: []llm.Source{
		{URI: "https://a", Title: "A"},
		{URI: "https://a", Title: "A dup"},
		{URI: "https://b", Title: "B"},
	}}
	inv, _ := newInvoker(t, model, llm.WithSearcher(searcher))

	g, u, err := inv.Ground(context.Background(), llm.Request{Stage: "Problem Research", Prompt: "research", Tier: llm.TierQuality}, "pet food waste")
	require.NoError(t, err)
	assert.Equal(t, llmtest.CallUsage, u)
	assert.Equal(t, []string{"pet food waste"}, searcher.Queries())
	require.Len(t, g.Sources, 2)
	assert.Equal(t, "https://a", g.Sources[0].URI)
	assert.Equal(t, "https://b", g.Sources[1].URI)
	assert.True(t, strings.Contains(g.Text, "WEB RESULTS"))
	assert.Equal(t, "ground", model.Calls()[0].Info.Step)
}

func TestGroundSearchFailureIsNotRetried(t *testing.T) {
	model := llmtest.NewModel(func(llm.CallInfo, string, string) (string, error) {
		return "unused", nil
	})
	searcher := &llmtest.Searcher{Err: errors.New("search API: 429 quota exhausted")}
	inv, rec := newInvoker(t, model, llm.WithSearcher(searcher))

	_, _, err := inv.Ground(context.Background(), llm.Request{Stage: "Problem Research", Tier: llm.TierQuality}, "pet food waste")
	var se *llm.StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, llm.KindOther, se.Kind)
	assert.Contains(t, err.Error(), "web search")
	assert.Equal(t, []string{"pet food waste"}, searcher.Queries())
	assert.Empty(t, model.Calls(), "no model tier is tried")
	assert.Empty(t, rec.delays)
}

func TestGroundRetriesModelWithoutSearchingAgain(t *testing.T) {
	model := llmtest.NewModel(func(info llm.CallInfo, _, prompt string) (string, error) {
		if info.Tier == llm.TierQuality {
			return "", errors.New("429 Too Many Requests")
		}
		return "grounded: " + prompt, nil
	})
	searcher := &llmtest.Searcher{Default: []llm.Source{{URI: "https://a", Title: "A"}}}
	inv, _ := newInvoker(t, model, llm.WithSearcher(searcher))

	g, _, err := inv.Ground(context.Background(), llm.Request{Stage: "Problem Research", Prompt: "research", Tier: llm.TierQuality}, "pet food waste")
	require.NoError(t, err)
	assert.Equal(t, []string{"pet food waste"}, searcher.Queries())
	assert.Equal(t, []llm.Tier{llm.TierQuality, llm.TierFast}, tiers(model.Calls()))
	assert.Contains(t, g.Text, "https://a")
	require.Len(t, g.Sources, 1)
}

func TestGroundWithoutSearcher(t *testing.T) {
	model := llmtest.NewModel(func(llm.CallInfo, string, string) (string, error) {
		return "plain", nil
	})
	inv, _ := newInvoker(t, model)

	g, _, err := inv.Ground(context.Background(), llm.Request{Stage: "Technology Scout", Tier: llm.TierFast}, "q")
	require.NoError(t, err)
	assert.Equal(t, "plain", g.Text)
	assert.Empty(t, g.Sources)
}

func TestImageFailuresDegrade(t *testing.T) {
	images := &llmtest.Images{Fail: map[string]error{
		"broken": errors.New("content policy violation"),
		"quota":  errors.New("429 quota: plan and billing"),
	}}
	inv, rec := newInvoker(t, llmtest.NewModel(nil), llm.WithImages(images))

	img, _ := inv.Image(context.Background(), "Customer Persona", "broken", llm.AspectSquare)
	assert.Empty(t, img)

	img, _ = inv.Image(context.Background(), "Customer Persona", "quota", llm.AspectSquare)
	assert.Empty(t, img)
	assert.Empty(t, rec.delays)

	imgs, u := inv.ImageBatch(context.Background(), "Storyboard", []string{"one", "broken", "three"}, llm.AspectWide)
	assert.Equal(t, []string{"img:one", "", "img:three"}, imgs)
	assert.Equal(t, usage.Usage{Output: 2, Total: 2}, u)
}

func TestImageWithoutGenerator(t *testing.T) {
	inv, _ := newInvoker(t, llmtest.NewModel(nil))
	img, u := inv.Image(context.Background(), "Brand Identity", "banner", llm.AspectWide)
	assert.Empty(t, img)
	assert.True(t, u.IsZero())
}
