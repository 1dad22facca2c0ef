package tools

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"
)

const (
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	maxPageChars     = 50000
)

// Page is the readable content of a fetched URL.
type Page struct {
	Title   string
	Excerpt string
	Text    string
}

// Summary prefers the excerpt and falls back to the body text.
func (p Page) Summary() string {
	if p.Excerpt != "" {
		return p.Excerpt
	}
	return strings.Join(strings.Fields(p.Text), " ")
}

// Scraper fetches pages and extracts their main content as sanitized text.
type Scraper struct {
	UserAgent string
	Client    *http.Client
}

func NewScraper() *Scraper {
	return &Scraper{
		UserAgent: defaultUserAgent,
		Client:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *Scraper) Fetch(ctx context.Context, rawURL string) (Page, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return Page{}, fmt.Errorf("failed to parse URL: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Page{}, fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("User-Agent", s.UserAgent)

	resp, err := s.Client.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("failed to fetch URL: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Page{}, fmt.Errorf("failed to fetch URL: status code %d", resp.StatusCode)
	}

	article, err := readability.FromReader(resp.Body, parsedURL)
	if err != nil {
		return Page{}, fmt.Errorf("failed to parse article: %v", err)
	}

	// Strip anything readability left behind.
	p := bluemonday.StrictPolicy()
	text := p.Sanitize(article.TextContent)
	if len(text) > maxPageChars {
		text = text[:maxPageChars] + "\n... (content truncated) ..."
	}
	return Page{
		Title:   p.Sanitize(article.Title),
		Excerpt: strings.TrimSpace(p.Sanitize(article.Excerpt)),
		Text:    text,
	}, nil
}
