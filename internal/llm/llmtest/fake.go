// Package llmtest provides in-memory doubles for the external model,
// search, image and video collaborators.
package llmtest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"

	"github.com/rahul/foundry/internal/llm"
	"github.com/rahul/foundry/internal/usage"
)

// CallUsage is reported for every successful fake model call.
var CallUsage = usage.Usage{Input: 10, Output: 5, Total: 15}

// Call is one recorded model request.
type Call struct {
	Info   llm.CallInfo
	System string
	Prompt string
}

// Handler answers a model request.
type Handler func(info llm.CallInfo, system, prompt string) (string, error)

// Model is a scripted llms.Model.
type Model struct {
	Handler Handler

	mu    sync.Mutex
	calls []Call
}

func NewModel(h Handler) *Model {
	return &Model{Handler: h}
}

func (m *Model) GenerateContent(ctx context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	call := Call{Info: llm.CallInfoFrom(ctx)}
	for _, msg := range messages {
		var parts []string
		for _, p := range msg.Parts {
			if tc, ok := p.(llms.TextContent); ok {
				parts = append(parts, tc.Text)
			}
		}
		switch msg.Role {
		case llms.ChatMessageTypeSystem:
			call.System = strings.Join(parts, "\n")
		case llms.ChatMessageTypeHuman:
			call.Prompt = strings.Join(parts, "\n")
		}
	}

	m.mu.Lock()
	m.calls = append(m.calls, call)
	m.mu.Unlock()

	text, err := m.Handler(call.Info, call.System, call.Prompt)
	if err != nil {
		return nil, err
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{
			Content: text,
			GenerationInfo: map[string]any{
				"PromptTokens":     CallUsage.Input,
				"CompletionTokens": CallUsage.Output,
				"TotalTokens":      CallUsage.Total,
			},
		}},
	}, nil
}

func (m *Model) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

// Calls returns a copy of the recorded requests.
func (m *Model) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallsFor returns the recorded requests of one stage.
func (m *Model) CallsFor(stage string) []Call {
	var out []Call
	for _, c := range m.Calls() {
		if c.Info.Stage == stage {
			out = append(out, c)
		}
	}
	return out
}

// Searcher returns fixed sources per query.
type Searcher struct {
	Results map[string][]llm.Source
	Default []llm.Source
	Err     error

	mu      sync.Mutex
	queries []string
}

func (s *Searcher) Search(_ context.Context, query string) ([]llm.Source, error) {
	s.mu.Lock()
	s.queries = append(s.queries, query)
	s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	if r, ok := s.Results[query]; ok {
		return r, nil
	}
	return s.Default, nil
}

func (s *Searcher) Queries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queries...)
}

// Images returns "img:<prompt>" unless the prompt is listed in Fail.
type Images struct {
	Fail map[string]error

	mu    sync.Mutex
	count int
}

func (g *Images) Generate(_ context.Context, prompt string, _ llm.AspectRatio) (string, usage.Usage, error) {
	g.mu.Lock()
	g.count++
	g.mu.Unlock()
	if err, ok := g.Fail[prompt]; ok {
		return "", usage.Usage{}, err
	}
	return "img:" + prompt, usage.Usage{Output: 1, Total: 1}, nil
}

func (g *Images) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.count
}

// Video completes after Steps polls. Block, when set, is received from
// before every poll so tests can hold the operation open.
type Video struct {
	Steps int
	Block chan struct{}

	mu    sync.Mutex
	polls int
}

func (v *Video) Start(_ context.Context, prompt string) (string, error) {
	if prompt == "" {
		return "", fmt.Errorf("empty video prompt")
	}
	return "op-1", nil
}

func (v *Video) Poll(ctx context.Context, _ string) (llm.VideoStatus, error) {
	if v.Block != nil {
		select {
		case <-v.Block:
		case <-ctx.Done():
			return llm.VideoStatus{}, ctx.Err()
		}
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.polls++
	if v.polls >= v.Steps {
		return llm.VideoStatus{Done: true, URI: "https://video.example/op-1.mp4"}, nil
	}
	return llm.VideoStatus{}, nil
}

func (v *Video) Polls() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.polls
}
