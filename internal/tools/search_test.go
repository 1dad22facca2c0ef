package tools

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCaller struct {
	out string
	err error
}

func (f fakeCaller) Call(context.Context, string) (string, error) { return f.out, f.err }

const ddgOutput = `Title: Kerb data platform
Description: Cities measure kerb usage
URL: https://example.com/kerb

Title: Parking apps compared
Description: A roundup
URL: https://example.com/apps

Title: Duplicate
Description: same page again
URL: https://example.com/kerb

Title: Broken entry
Description: no url here
`

func TestParseResults(t *testing.T) {
	got := ParseResults(ddgOutput)
	require.Len(t, got, 2)
	assert.Equal(t, "Kerb data platform", got[0].Title)
	assert.Equal(t, "https://example.com/kerb", got[0].URI)
	assert.Equal(t, "Cities measure kerb usage", got[0].Snippet)
	assert.Equal(t, "https://example.com/apps", got[1].URI)

	assert.Empty(t, ParseResults("No good DuckDuckGo Search Results was found"))
}

func TestWebSearcherErrors(t *testing.T) {
	ctx := context.Background()

	w := newWebSearcher(fakeCaller{err: errors.New("no good search results found")})
	got, err := w.Search(ctx, "q")
	require.NoError(t, err)
	assert.Empty(t, got)

	w = newWebSearcher(fakeCaller{err: errors.New("connection reset")})
	_, err = w.Search(ctx, "q")
	assert.ErrorContains(t, err, "search failed")
}

func TestWebSearcherEnrichment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, articleHTML)
	}))
	defer srv.Close()

	raw := fmt.Sprintf("Title: Good\nDescription: short\nURL: %s/article\n\nTitle: Gone\nDescription: keep me\nURL: %s/missing\n\nTitle: Third\nDescription: untouched\nURL: %s/third\n",
		srv.URL, srv.URL, srv.URL)
	w := newWebSearcher(fakeCaller{out: raw}, WithEnrichment(NewScraper(), 2))

	got, err := w.Search(context.Background(), "kerb")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.NotEqual(t, "short", got[0].Snippet)
	assert.Contains(t, strings.ToLower(got[0].Snippet), "kerb")
	assert.Equal(t, "keep me", got[1].Snippet, "failed fetches keep the search snippet")
	assert.Equal(t, "untouched", got[2].Snippet)
}

func TestClip(t *testing.T) {
	assert.Equal(t, "abc", clip("abc", 5))
	assert.Equal(t, "ab...", clip("abcdef", 2))
}
