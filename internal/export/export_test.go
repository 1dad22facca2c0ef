package export

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rahul/foundry/internal/pipeline"
	"github.com/rahul/foundry/internal/stages"
	"github.com/rahul/foundry/internal/usage"
)

func sampleState() *pipeline.State {
	return &pipeline.State{
		RunID:     "0123456789abcdef",
		Mode:      pipeline.ModeProblemFirst,
		Phase:     pipeline.PhaseFinished,
		Challenge: "Parking in dense cities",
		Persona: &stages.Persona{
			Name:   "Maya",
			Age:    34,
			Goals:  []string{"arrive on time"},
			Avatar: "data:image/png;base64,AAAA",
		},
		SolutionHistory: []stages.Solution{
			{Title: "ShiftPark", Summary: "Employer parking pools", KeyFeatures: []string{"reservations"}},
		},
		Solution: &stages.Solution{
			Title:       "ShiftPark Pro",
			Summary:     "Split cost between employer and worker <script>alert(1)</script>",
			KeyFeatures: []string{"cost sharing"},
			Origin:      stages.OriginAI,
		},
		Brand: &stages.BrandIdentity{Name: "Shiftspot", Tagline: "Your space, every shift"},
		Usage: []usage.Entry{
			{Stage: "Problem Research", Usage: usage.Usage{Input: 1000, Output: 500, Total: 1500}},
			{Stage: "Customer Persona", Usage: usage.Usage{Input: 10, Output: 5, Total: 15}},
			{Stage: "Problem Research", Usage: usage.Usage{Input: 10, Output: 5, Total: 15}},
		},
	}
}

type fakePDF struct {
	got []byte
	err error
}

func (f *fakePDF) Render(_ context.Context, html []byte) ([]byte, error) {
	f.got = html
	return []byte("%PDF-1.4"), f.err
}

func TestWorkspacePath(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir())
	require.NoError(t, err)

	p, err := ws.Path("reports/run.html")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(ws.Root, "reports", "run.html"), p)

	for _, name := range []string{"../escape.html", "a/../../escape", "..", ""} {
		_, err := ws.Path(name)
		assert.ErrorIs(t, err, ErrOutsideWorkspace, name)
	}
}

func TestHTMLReport(t *testing.T) {
	doc, err := HTML(sampleState(), time.Date(2026, 1, 2, 3, 4, 0, 0, time.UTC))
	require.NoError(t, err)
	page := string(doc)

	assert.Contains(t, page, "<title>Shiftspot</title>")
	assert.Contains(t, page, "<h2>Persona</h2>")
	assert.Contains(t, page, "Key features")
	assert.Contains(t, page, `src="data:image/png;base64,AAAA"`)
	assert.Contains(t, page, "Solution revisions")
	assert.Contains(t, page, "2 Jan 2026")
	assert.NotContains(t, page, "<script>")
	assert.NotContains(t, page, "<h2>Lean canvas</h2>", "empty slots are skipped")
}

func TestRevisions(t *testing.T) {
	s := sampleState()
	revs := Revisions(s.SolutionHistory, s.Solution)
	require.Len(t, revs, 1)
	assert.Equal(t, "ShiftPark", revs[0].From)
	assert.Equal(t, "ShiftPark Pro", revs[0].To)

	text := revs[0].Text()
	assert.Contains(t, text, "{+")
	assert.Contains(t, text, "[-")
	assert.Contains(t, string(revs[0].HTML()), "<ins")

	assert.Nil(t, Revisions(nil, s.Solution))
}

func TestYAMLKeepsFieldOrder(t *testing.T) {
	out, err := YAML(sampleState())
	require.NoError(t, err)
	doc := string(out)

	assert.Contains(t, doc, "runId: 0123456789abcdef")
	assert.Contains(t, doc, "challenge: Parking in dense cities")
	assert.Less(t, strings.Index(doc, "runId:"), strings.Index(doc, "persona:"))
	assert.Less(t, strings.Index(doc, "persona:"), strings.Index(doc, "solution:"))
	assert.NotContains(t, doc, "{")
}

func TestUsageTable(t *testing.T) {
	out := UsageTable(sampleState().Usage)
	assert.Contains(t, out, "Problem Research")
	assert.Contains(t, out, "1,515")
	assert.Contains(t, out, "1,530")
	assert.Contains(t, out, "g CO2")
	assert.Equal(t, 1, strings.Count(out, "Problem Research"), "stages are grouped")
}

func TestExportWritesFiles(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir())
	require.NoError(t, err)
	pdf := &fakePDF{}
	e := New(ws, WithPDF(pdf))

	paths, err := e.Export(context.Background(), sampleState(), FormatHTML, FormatPDF, FormatYAML, FormatText)
	require.NoError(t, err)
	require.Len(t, paths, 4)
	assert.Equal(t, filepath.Join(ws.Root, "shiftspot-01234567.html"), paths[0])
	assert.Contains(t, string(pdf.got), "<h1>Shiftspot</h1>")

	data, err := os.ReadFile(paths[3])
	require.NoError(t, err)
	assert.Contains(t, string(data), "Brand: Shiftspot")
	assert.Contains(t, string(data), "Revision 1 (ShiftPark -> ShiftPark Pro)")
}

func TestExportErrors(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = New(ws).Export(ctx, &pipeline.State{})
	assert.Error(t, err)

	_, err = New(ws).Export(ctx, sampleState(), FormatPDF)
	assert.ErrorContains(t, err, "not configured")

	_, err = New(ws, WithPDF(&fakePDF{err: errors.New("chrome missing")})).Export(ctx, sampleState(), FormatPDF)
	assert.ErrorContains(t, err, "chrome missing")
}

func TestParseFormats(t *testing.T) {
	got, err := ParseFormats("PDF, yml text")
	require.NoError(t, err)
	assert.Equal(t, []Format{FormatPDF, FormatYAML, FormatText}, got)

	got, err = ParseFormats("")
	require.NoError(t, err)
	assert.Equal(t, []Format{FormatHTML}, got)

	_, err = ParseFormats("docx")
	assert.Error(t, err)
}
