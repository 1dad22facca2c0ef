package export

import (
	"html/template"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/rahul/foundry/internal/stages"
)

// Revision is the change between two consecutive solutions.
type Revision struct {
	From  string
	To    string
	Diffs []diffmatchpatch.Diff
}

// Revisions diffs every refinement step, oldest first. current is the
// solution the last history entry was revised into.
func Revisions(history []stages.Solution, current *stages.Solution) []Revision {
	if len(history) == 0 || current == nil {
		return nil
	}
	chain := append(append([]stages.Solution(nil), history...), *current)
	dmp := diffmatchpatch.New()
	out := make([]Revision, 0, len(history))
	for i := 1; i < len(chain); i++ {
		diffs := dmp.DiffMain(solutionText(chain[i-1]), solutionText(chain[i]), false)
		out = append(out, Revision{
			From:  chain[i-1].Title,
			To:    chain[i].Title,
			Diffs: dmp.DiffCleanupSemantic(diffs),
		})
	}
	return out
}

// Text renders the revision with [-deleted-] and {+inserted+} markers.
func (r Revision) Text() string {
	var b strings.Builder
	for _, d := range r.Diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			b.WriteString("{+" + d.Text + "+}")
		case diffmatchpatch.DiffDelete:
			b.WriteString("[-" + d.Text + "-]")
		default:
			b.WriteString(d.Text)
		}
	}
	return b.String()
}

// HTML renders the revision with ins/del markup, sanitized.
func (r Revision) HTML() template.HTML {
	return template.HTML(sanitizer.Sanitize(diffmatchpatch.New().DiffPrettyHtml(r.Diffs)))
}

func solutionText(s stages.Solution) string {
	var b strings.Builder
	b.WriteString(s.Title)
	b.WriteString("\n\n")
	b.WriteString(s.Summary)
	b.WriteString("\n")
	for _, f := range s.KeyFeatures {
		b.WriteString("\n- ")
		b.WriteString(f)
	}
	return b.String()
}
