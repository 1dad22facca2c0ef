package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/rahul/foundry/internal/llm"
	"github.com/rahul/foundry/internal/usage"
)

// DefaultPollInterval is the delay between video operation status checks.
const DefaultPollInterval = 10 * time.Second

// Runner executes pipeline stages. It never touches pipeline state: every
// method returns a result for the caller to fold in.
type Runner struct {
	inv          *llm.Invoker
	prompts      *PromptManager
	video        llm.VideoGenerator
	gapAnalysis  bool
	fast         bool
	pollInterval time.Duration
}

type RunnerOption func(*Runner)

// WithGapAnalysis toggles the follow-up search loop of grounded stages.
func WithGapAnalysis(enabled bool) RunnerOption {
	return func(r *Runner) { r.gapAnalysis = enabled }
}

func WithPrompts(pm *PromptManager) RunnerOption {
	return func(r *Runner) { r.prompts = pm }
}

func WithVideo(v llm.VideoGenerator) RunnerOption {
	return func(r *Runner) { r.video = v }
}

func WithPollInterval(d time.Duration) RunnerOption {
	return func(r *Runner) { r.pollInterval = d }
}

func NewRunner(inv *llm.Invoker, opts ...RunnerOption) *Runner {
	r := &Runner{
		inv:          inv,
		prompts:      NewPromptManager(""),
		gapAnalysis:  true,
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Fast returns a copy of the runner that keeps every call on the cheapest
// tier.
func (r *Runner) Fast() *Runner {
	cp := *r
	cp.fast = true
	return &cp
}

func (r *Runner) tier(t llm.Tier) llm.Tier {
	if r.fast {
		return llm.Cheapest
	}
	return t
}

func (r *Runner) system(stage, key string) (string, error) {
	sys, err := r.prompts.System(key)
	if err != nil {
		return "", &llm.StageError{Stage: stage, Kind: llm.KindOther, Err: err}
	}
	return sys, nil
}

// generate runs one structured call for a stage.
func (r *Runner) generate(ctx context.Context, stage, key string, tier llm.Tier, temp *float64, prompt string, schema llm.Schema, out any) (usage.Usage, error) {
	sys, err := r.system(stage, key)
	if err != nil {
		return usage.Usage{}, err
	}
	return r.inv.Generate(ctx, llm.Request{
		Stage:       stage,
		Step:        StepGenerate,
		System:      sys,
		Prompt:      prompt,
		Schema:      schema,
		Tier:        r.tier(tier),
		Temperature: temp,
	}, out)
}

// prompt assembles labelled sections. Nil values and empty strings are
// skipped; structured values are rendered as JSON.
type prompt struct {
	b strings.Builder
}

func (p *prompt) section(title string, v any) *prompt {
	var body string
	switch val := v.(type) {
	case nil:
		return p
	case string:
		body = strings.TrimSpace(val)
	default:
		if isNil(v) {
			return p
		}
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return p
		}
		body = string(data)
	}
	if body == "" {
		return p
	}
	if p.b.Len() > 0 {
		p.b.WriteString("\n\n")
	}
	fmt.Fprintf(&p.b, "## %s\n%s", title, body)
	return p
}

func (p *prompt) String() string {
	return p.b.String()
}

func isNil(v any) bool {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map:
		return rv.IsNil()
	}
	return false
}

var (
	temperatureCreative = llm.Temperature(0.9)
	temperaturePrecise  = llm.Temperature(0.2)
)
