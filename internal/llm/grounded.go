package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rahul/foundry/internal/usage"
)

// Source is a citation collected from a grounded call.
type Source struct {
	URI     string `json:"uri"`
	Title   string `json:"title"`
	Snippet string `json:"snippet,omitempty"`
}

// Grounded is the free-text output of a web-grounded call.
type Grounded struct {
	Text    string
	Sources []Source
}

// Searcher looks up web sources for a query.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Source, error)
}

// Ground searches the web for query and generates req.Prompt grounded on
// the results. Without a searcher it degrades to an ungrounded Text call.
func (inv *Invoker) Ground(ctx context.Context, req Request, query string) (Grounded, usage.Usage, error) {
	step := req.Step
	if step == "" {
		step = "ground"
	}
	if inv.searcher == nil {
		req.Step = step
		text, u, err := inv.Text(ctx, req)
		return Grounded{Text: text}, u, err
	}

	// The search runs once. Only the model call is retried, and a failed
	// search never triggers a tier fallback.
	sources, err := inv.searcher.Search(ctx, query)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return Grounded{}, usage.Usage{}, newStageError(req.Stage, KindCancelled, fmt.Errorf("%w: %v", ErrCancelled, err))
		}
		return Grounded{}, usage.Usage{}, newStageError(req.Stage, KindOther, fmt.Errorf("web search: %w", err))
	}
	prompt := req.Prompt + "\n\n" + FormatSources(sources)
	text, u, err := inv.do(ctx, req.Stage, req.Tier, func(ctx context.Context, tier Tier) (string, usage.Usage, error) {
		return inv.call(ctx, req.Stage, step, tier, req.System, prompt, req.Temperature)
	})
	if err != nil {
		return Grounded{}, u, err
	}
	return Grounded{Text: text, Sources: DedupeSources(sources)}, u, nil
}

// FormatSources renders search results as a numbered prompt section.
func FormatSources(sources []Source) string {
	if len(sources) == 0 {
		return "WEB RESULTS: none found. Rely on general knowledge and say so."
	}
	var b strings.Builder
	b.WriteString("WEB RESULTS (cite by number):\n")
	for i, s := range sources {
		fmt.Fprintf(&b, "[%d] %s (%s)\n", i+1, s.Title, s.URI)
		if s.Snippet != "" {
			fmt.Fprintf(&b, "    %s\n", s.Snippet)
		}
	}
	return b.String()
}

// DedupeSources keeps the first occurrence of every URI.
func DedupeSources(sources []Source) []Source {
	if len(sources) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(sources))
	out := make([]Source, 0, len(sources))
	for _, s := range sources {
		if seen[s.URI] {
			continue
		}
		seen[s.URI] = true
		out = append(out, s)
	}
	return out
}
