package tools

import (
	"context"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/tools/duckduckgo"
	"golang.org/x/sync/errgroup"

	"github.com/rahul/foundry/internal/llm"
)

const (
	DefaultMaxResults = 8
	snippetChars      = 600
)

// caller is the slice of a langchaingo tool the searcher needs.
type caller interface {
	Call(ctx context.Context, input string) (string, error)
}

// WebSearcher implements llm.Searcher on DuckDuckGo. When a Scraper is
// attached the first Enrich results get their snippet replaced by the
// page's readable excerpt.
type WebSearcher struct {
	client  caller
	scraper *Scraper
	enrich  int
}

type SearchOption func(*WebSearcher)

// WithEnrichment fetches the top n result pages with s.
func WithEnrichment(s *Scraper, n int) SearchOption {
	return func(w *WebSearcher) {
		w.scraper = s
		w.enrich = n
	}
}

func NewWebSearcher(maxResults int, opts ...SearchOption) (*WebSearcher, error) {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	ddg, err := duckduckgo.New(maxResults, duckduckgo.DefaultUserAgent)
	if err != nil {
		return nil, err
	}
	return newWebSearcher(ddg, opts...), nil
}

func newWebSearcher(c caller, opts ...SearchOption) *WebSearcher {
	w := &WebSearcher{client: c}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Search returns the parsed results for query. No results is not an error.
func (w *WebSearcher) Search(ctx context.Context, query string) ([]llm.Source, error) {
	raw, err := w.client.Call(ctx, query)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "no good") {
			return nil, nil
		}
		return nil, fmt.Errorf("search failed: %w", err)
	}
	sources := ParseResults(raw)
	if w.scraper != nil && w.enrich > 0 {
		w.enrichSources(ctx, sources)
	}
	return sources, nil
}

func (w *WebSearcher) enrichSources(ctx context.Context, sources []llm.Source) {
	n := min(w.enrich, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	for i := range n {
		g.Go(func() error {
			page, err := w.scraper.Fetch(gctx, sources[i].URI)
			if err != nil {
				log.Printf("[search] enrich %s: %v", sources[i].URI, err)
				return nil
			}
			if text := page.Summary(); text != "" {
				sources[i].Snippet = clip(text, snippetChars)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// ParseResults reads the "Title: / Description: / URL:" blocks produced by
// the DuckDuckGo tool. Blocks without a URL are dropped.
func ParseResults(raw string) []llm.Source {
	var (
		out []llm.Source
		cur llm.Source
	)
	flush := func() {
		if cur.URI != "" {
			out = append(out, cur)
		}
		cur = llm.Source{}
	}
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, "Title:"):
			if cur.URI != "" || cur.Title != "" {
				flush()
			}
			cur.Title = strings.TrimSpace(strings.TrimPrefix(line, "Title:"))
		case strings.HasPrefix(line, "Description:"):
			cur.Snippet = strings.TrimSpace(strings.TrimPrefix(line, "Description:"))
		case strings.HasPrefix(line, "URL:"):
			cur.URI = strings.TrimSpace(strings.TrimPrefix(line, "URL:"))
		}
	}
	flush()
	return llm.DedupeSources(out)
}

func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n])) + "..."
}
