// Package export writes finished runs to documents under a workspace.
package export

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rahul/foundry/internal/pipeline"
)

type Format string

const (
	FormatHTML Format = "html"
	FormatPDF  Format = "pdf"
	FormatYAML Format = "yaml"
	FormatText Format = "txt"
)

var AllFormats = []Format{FormatHTML, FormatPDF, FormatYAML, FormatText}

// ParseFormats reads a comma or space separated list. Empty means HTML.
func ParseFormats(s string) ([]Format, error) {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool { return r == ',' || r == ' ' })
	if len(fields) == 0 {
		return []Format{FormatHTML}, nil
	}
	var out []Format
	for _, f := range fields {
		switch Format(f) {
		case FormatHTML, FormatPDF, FormatYAML, FormatText:
			out = append(out, Format(f))
		case "yml":
			out = append(out, FormatYAML)
		case "text":
			out = append(out, FormatText)
		default:
			return nil, fmt.Errorf("unknown export format %q", f)
		}
	}
	return out, nil
}

// Exporter renders runs into workspace files.
type Exporter struct {
	ws  *Workspace
	pdf PDFRenderer
	now func() time.Time
}

type Option func(*Exporter)

// WithPDF sets the renderer used for FormatPDF. Without one PDF export
// fails.
func WithPDF(r PDFRenderer) Option { return func(e *Exporter) { e.pdf = r } }

func New(ws *Workspace, opts ...Option) *Exporter {
	e := &Exporter{ws: ws, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export writes one file per format and returns their paths.
func (e *Exporter) Export(ctx context.Context, s *pipeline.State, formats ...Format) ([]string, error) {
	if s.RunID == "" {
		return nil, fmt.Errorf("nothing to export")
	}
	if len(formats) == 0 {
		formats = []Format{FormatHTML}
	}
	base := fileBase(s)

	var (
		paths []string
		page  []byte
	)
	htmlDoc := func() ([]byte, error) {
		if page != nil {
			return page, nil
		}
		var err error
		page, err = HTML(s, e.now())
		return page, err
	}

	for _, f := range formats {
		var (
			data []byte
			err  error
		)
		switch f {
		case FormatHTML:
			data, err = htmlDoc()
		case FormatPDF:
			if e.pdf == nil {
				return paths, fmt.Errorf("pdf export is not configured")
			}
			var doc []byte
			if doc, err = htmlDoc(); err == nil {
				data, err = e.pdf.Render(ctx, doc)
			}
		case FormatYAML:
			data, err = YAML(s)
		case FormatText:
			data = []byte(Text(s))
		default:
			err = fmt.Errorf("unknown export format %q", f)
		}
		if err != nil {
			return paths, fmt.Errorf("export %s: %w", f, err)
		}
		path, err := e.ws.Write(base+"."+string(f), data)
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func fileBase(s *pipeline.State) string {
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s.Title()), "-"), "-")
	if len(slug) > 40 {
		slug = strings.TrimRight(slug[:40], "-")
	}
	id := s.RunID
	if len(id) > 8 {
		id = id[:8]
	}
	if slug == "" {
		return id
	}
	return slug + "-" + id
}

// Text is a plain summary of the run for chat and terminal output.
func Text(s *pipeline.State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", s.Title())
	if s.Challenge != "" {
		fmt.Fprintf(&b, "Challenge: %s\n", s.Challenge)
	}
	if s.Problem != nil {
		fmt.Fprintf(&b, "Problem: %s\n", s.Problem.Statement)
	}
	if s.Solution != nil {
		fmt.Fprintf(&b, "\nSolution: %s\n%s\n", s.Solution.Title, s.Solution.Summary)
		for _, f := range s.Solution.KeyFeatures {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}
	if s.Brand != nil {
		fmt.Fprintf(&b, "\nBrand: %s, %q\n", s.Brand.Name, s.Brand.Tagline)
	}
	for i, r := range Revisions(s.SolutionHistory, s.Solution) {
		fmt.Fprintf(&b, "\nRevision %d (%s -> %s):\n%s\n", i+1, r.From, r.To, r.Text())
	}
	if filled := s.FilledSlots(); len(filled) > 0 {
		fmt.Fprintf(&b, "\nProduced: %s\n", strings.Join(filled, ", "))
	}
	if len(s.Usage) > 0 {
		b.WriteString("\n")
		b.WriteString(UsageTable(s.Usage))
		b.WriteString("\n")
	}
	return b.String()
}
