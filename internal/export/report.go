package export

import (
	"bytes"
	_ "embed"
	"fmt"
	"html"
	"html/template"
	"reflect"
	"strings"
	"time"
	"unicode"

	"github.com/microcosm-cc/bluemonday"

	"github.com/rahul/foundry/internal/pipeline"
)

//go:embed report.html.tmpl
var reportSource string

var reportTemplate = template.Must(template.New("report").Parse(reportSource))

// sanitizer cleans every fragment built from model output.
var sanitizer = func() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowDataURIImages()
	return p
}()

// imageFields hold rendered images rather than text.
var imageFields = map[string]bool{"avatar": true, "banner": true, "image": true}

type section struct {
	Title string
	Body  template.HTML
}

type reportData struct {
	Title     string
	Challenge string
	Mode      string
	Phase     string
	Generated string
	Sections  []section
	Revisions []Revision
	Usage     string
}

// HTML renders the run as a standalone document.
func HTML(s *pipeline.State, now time.Time) ([]byte, error) {
	data := reportData{
		Title:     s.Title(),
		Challenge: s.Challenge,
		Mode:      string(s.Mode),
		Phase:     string(s.Phase),
		Generated: now.Format("2 Jan 2006 15:04"),
		Revisions: Revisions(s.SolutionHistory, s.Solution),
	}
	for _, sec := range sectionsOf(s) {
		v := reflect.ValueOf(sec.value)
		if isEmpty(v) {
			continue
		}
		var b strings.Builder
		renderValue(&b, v)
		data.Sections = append(data.Sections, section{
			Title: sec.title,
			Body:  template.HTML(sanitizer.Sanitize(b.String())),
		})
	}
	if len(s.Usage) > 0 {
		data.Usage = UsageTable(s.Usage)
	}

	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	return buf.Bytes(), nil
}

type namedValue struct {
	title string
	value any
}

func sectionsOf(s *pipeline.State) []namedValue {
	return []namedValue{
		{"Market fit", s.MarketFit},
		{"Selected challenge", s.SelectedChallenge},
		{"Research", s.Research},
		{"Problem frame", s.SelectedFrame},
		{"Persona", s.Persona},
		{"Empathy map", s.Empathy},
		{"Problem statement", s.Problem},
		{"Technology", s.Technology},
		{"Ideas", s.Ideas},
		{"Idea scores", s.Scores},
		{"Solution", s.Solution},
		{"Refinements", s.Refinements},
		{"Brand", s.Brand},
		{"Value proposition", s.ValueProposition},
		{"Lean canvas", s.LeanCanvas},
		{"Storyboard", s.Storyboard},
		{"Financial model", s.FinancialModel},
		{"Strategy", s.Strategy},
		{"Risks", s.Risks},
		{"Blueprint", s.Blueprint},
		{"Go-to-market", s.GoToMarket},
		{"Pitch deck", s.PitchDeck},
		{"Investment memo", s.InvestmentMemo},
		{"Red team", s.RedTeam},
		{"Ethics audit", s.EthicsAudit},
		{"Success score", s.SuccessScore},
		{"Promo video", s.Video},
	}
}

func isEmpty(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		return v.IsNil()
	case reflect.Slice, reflect.Map:
		return v.Len() == 0
	}
	return v.IsZero()
}

// renderValue writes v as nested definition lists. Struct fields are
// labelled by their JSON names.
func renderValue(b *strings.Builder, v reflect.Value) {
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Struct:
		b.WriteString("<dl>")
		t := v.Type()
		for i := range t.NumField() {
			f := t.Field(i)
			name := jsonName(f)
			fv := v.Field(i)
			if name == "" || isEmpty(fv) {
				continue
			}
			if imageFields[name] && fv.Kind() == reflect.String {
				fmt.Fprintf(b, `<dd><img src="%s" alt="%s"></dd>`, html.EscapeString(fv.String()), name)
				continue
			}
			fmt.Fprintf(b, "<dt>%s</dt><dd>", html.EscapeString(label(name)))
			renderValue(b, fv)
			b.WriteString("</dd>")
		}
		b.WriteString("</dl>")
	case reflect.Slice, reflect.Array:
		b.WriteString("<ul>")
		for i := range v.Len() {
			b.WriteString("<li>")
			renderValue(b, v.Index(i))
			b.WriteString("</li>")
		}
		b.WriteString("</ul>")
	case reflect.String:
		b.WriteString(html.EscapeString(v.String()))
	default:
		fmt.Fprintf(b, "%v", v.Interface())
	}
}

func jsonName(f reflect.StructField) string {
	if !f.IsExported() {
		return ""
	}
	tag := f.Tag.Get("json")
	name, _, _ := strings.Cut(tag, ",")
	switch name {
	case "-":
		return ""
	case "":
		return f.Name
	}
	return name
}

// label turns "keyFeatures" into "Key features".
func label(name string) string {
	var b strings.Builder
	for i, r := range name {
		switch {
		case i == 0:
			b.WriteRune(unicode.ToUpper(r))
		case unicode.IsUpper(r):
			b.WriteRune(' ')
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
