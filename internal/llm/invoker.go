package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"

	"github.com/rahul/foundry/internal/observability"
	"github.com/rahul/foundry/internal/usage"
)

const (
	DefaultRetries   = 3
	DefaultBaseDelay = 10 * time.Second
)

// Request is one structured or free-text generation.
type Request struct {
	Stage       string
	Step        string
	System      string
	Prompt      string
	Schema      Schema
	Tier        Tier
	Temperature *float64
}

// Temperature returns a pointer suitable for Request.Temperature.
func Temperature(t float64) *float64 {
	return &t
}

// Invoker executes external model calls with schema validation, tier
// fallback and exponential backoff.
type Invoker struct {
	models    map[Tier]llms.Model
	searcher  Searcher
	images    ImageGenerator
	retries   int
	baseDelay time.Duration
	sleep     func(ctx context.Context, d time.Duration) error
	logger    *observability.Logger
	metrics   *observability.Metrics
}

type Option func(*Invoker)

func WithRetries(n int) Option {
	return func(inv *Invoker) { inv.retries = n }
}

func WithBaseDelay(d time.Duration) Option {
	return func(inv *Invoker) { inv.baseDelay = d }
}

// WithSleep replaces the backoff wait. Tests use it to record delays.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(inv *Invoker) { inv.sleep = fn }
}

func WithLogger(l *observability.Logger) Option {
	return func(inv *Invoker) { inv.logger = l }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(inv *Invoker) { inv.metrics = m }
}

func WithSearcher(s Searcher) Option {
	return func(inv *Invoker) { inv.searcher = s }
}

func WithImages(g ImageGenerator) Option {
	return func(inv *Invoker) { inv.images = g }
}

// NewInvoker builds an invoker over one model per tier. The fast tier is
// mandatory; missing tiers are served by the fast model.
func NewInvoker(models map[Tier]llms.Model, opts ...Option) (*Invoker, error) {
	if models[Cheapest] == nil {
		return nil, fmt.Errorf("a %s tier model is required", Cheapest)
	}
	inv := &Invoker{
		models:    models,
		retries:   DefaultRetries,
		baseDelay: DefaultBaseDelay,
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv, nil
}

func (inv *Invoker) model(tier Tier) llms.Model {
	if m, ok := inv.models[tier]; ok && m != nil {
		return m
	}
	return inv.models[Cheapest]
}

// Generate runs a JSON-mode call and decodes the response into out.
func (inv *Invoker) Generate(ctx context.Context, req Request, out any) (usage.Usage, error) {
	step := req.Step
	if step == "" {
		step = "generate"
	}
	system := req.System
	if req.Schema != nil {
		system += "\n\nRespond ONLY with a JSON object matching this JSON schema:\n" + req.Schema.JSON()
	}

	text, u, err := inv.do(ctx, req.Stage, req.Tier, func(ctx context.Context, tier Tier) (string, usage.Usage, error) {
		return inv.call(ctx, req.Stage, step, tier, system, req.Prompt, req.Temperature, llms.WithJSONMode())
	})
	if err != nil {
		return u, err
	}
	if err := Decode(text, req.Schema, out); err != nil {
		return u, newStageError(req.Stage, KindValidation, err)
	}
	return u, nil
}

// Text runs a free-text call.
func (inv *Invoker) Text(ctx context.Context, req Request) (string, usage.Usage, error) {
	step := req.Step
	if step == "" {
		step = "text"
	}
	return inv.do(ctx, req.Stage, req.Tier, func(ctx context.Context, tier Tier) (string, usage.Usage, error) {
		return inv.call(ctx, req.Stage, step, tier, req.System, req.Prompt, req.Temperature)
	})
}

type attemptFunc func(ctx context.Context, tier Tier) (string, usage.Usage, error)

// do is the retry loop shared by every external call.
func (inv *Invoker) do(ctx context.Context, stage string, tier Tier, fn attemptFunc) (string, usage.Usage, error) {
	retries := inv.retries
	delay := inv.baseDelay
	fellBack := false
	runID := CallInfoFrom(ctx).RunID

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", usage.Usage{}, newStageError(stage, KindCancelled, fmt.Errorf("%w: %v", ErrCancelled, err))
		}

		text, u, err := fn(ctx, tier)
		if err == nil {
			inv.logger.LogCost(runID, stage, u, string(tier))
			inv.metrics.AddTokens(ctx, stage, u)
			return text, u, nil
		}
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return "", usage.Usage{}, newStageError(stage, KindCancelled, fmt.Errorf("%w: %v", ErrCancelled, err))
		}

		msg := err.Error()
		if !IsRateLimit(msg) {
			return "", usage.Usage{}, newStageError(stage, KindOther, err)
		}
		if IsHardQuota(msg) {
			return "", usage.Usage{}, newStageError(stage, KindHardQuota, err)
		}

		if tier != Cheapest && !fellBack {
			fellBack = true
			inv.logger.LogFallback(runID, stage, string(tier), string(Cheapest), err)
			inv.metrics.RecordRetry(ctx, stage, "fallback")
			tier = Cheapest
			continue
		}

		if retries <= 0 {
			return "", usage.Usage{}, newStageError(stage, KindOther, fmt.Errorf("%w: %v", ErrRetriesExhausted, err))
		}

		inv.logger.LogRetry(runID, stage, string(tier), attempt, delay, err)
		inv.metrics.RecordRetry(ctx, stage, "backoff")
		if err := inv.sleep(ctx, delay); err != nil {
			return "", usage.Usage{}, newStageError(stage, KindCancelled, fmt.Errorf("%w: %v", ErrCancelled, err))
		}
		delay *= 2
		retries--
	}
}

func (inv *Invoker) call(ctx context.Context, stage, step string, tier Tier, system, prompt string, temp *float64, extra ...llms.CallOption) (string, usage.Usage, error) {
	ctx = withStep(ctx, stage, step, tier)

	messages := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(system)},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(prompt)},
		},
	}

	opts := extra
	if temp != nil {
		opts = append(opts, llms.WithTemperature(*temp))
	}

	resp, err := inv.model(tier).GenerateContent(ctx, messages, opts...)
	if err != nil {
		return "", usage.Usage{}, err
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", usage.Usage{}, ErrEmptyResponse
	}

	choice := resp.Choices[0]
	inv.logger.LogLLM(CallInfoFrom(ctx).RunID, stage, step, prompt, choice.Content)
	return choice.Content, usageFrom(choice.GenerationInfo), nil
}

// usageFrom reads token counts from provider generation info. Providers
// disagree on key names.
func usageFrom(info map[string]any) usage.Usage {
	u := usage.Usage{
		Input:  firstInt(info, "PromptTokens", "InputTokens", "input_tokens", "prompt_tokens"),
		Output: firstInt(info, "CompletionTokens", "OutputTokens", "output_tokens", "completion_tokens"),
		Total:  firstInt(info, "TotalTokens", "total_tokens"),
	}
	if u.Total == 0 {
		u.Total = u.Input + u.Output
	}
	return u
}

func firstInt(info map[string]any, keys ...string) int {
	for _, k := range keys {
		switch v := info[k].(type) {
		case int:
			return v
		case int32:
			return int(v)
		case int64:
			return int(v)
		case float64:
			return int(v)
		}
	}
	return 0
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
