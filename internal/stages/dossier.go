package stages

import (
	"encoding/json"
	"strings"
)

// Dossier is the distilled view of a run handed to deliverable and
// analysis stages. Images and citations are stripped so the prompt stays
// small.
type Dossier struct {
	Challenge        string            `json:"challenge,omitempty"`
	Research         *ResearchResult   `json:"research,omitempty"`
	Technology       *TechScoutResult  `json:"technology,omitempty"`
	Persona          *Persona          `json:"persona,omitempty"`
	Empathy          *EmpathyMap       `json:"empathy,omitempty"`
	Problem          *ProblemStatement `json:"problem,omitempty"`
	Solution         *Solution         `json:"solution,omitempty"`
	Brand            *BrandIdentity    `json:"brand,omitempty"`
	ValueProposition *ValueProposition `json:"valueProposition,omitempty"`
	LeanCanvas       *LeanCanvas       `json:"leanCanvas,omitempty"`
	Storyboard       *Storyboard       `json:"storyboard,omitempty"`
	FinancialModel   *FinancialModel   `json:"financialModel,omitempty"`
	Strategy         *Strategy         `json:"strategy,omitempty"`
	Risks            *RiskAssessment   `json:"risks,omitempty"`
	Blueprint        *Blueprint        `json:"blueprint,omitempty"`
	GoToMarket       *GoToMarket       `json:"goToMarket,omitempty"`
	PitchDeck        *PitchDeck        `json:"pitchDeck,omitempty"`
	InvestmentMemo   *InvestmentMemo   `json:"investmentMemo,omitempty"`
}

// Distill returns a copy with generated images and sources removed.
func (d Dossier) Distill() Dossier {
	if d.Research != nil {
		cp := *d.Research
		cp.Sources = nil
		d.Research = &cp
	}
	if d.Technology != nil {
		cp := *d.Technology
		cp.Sources = nil
		d.Technology = &cp
	}
	d.Persona = withoutAvatar(d.Persona)
	if d.Brand != nil {
		cp := *d.Brand
		cp.Banner = ""
		d.Brand = &cp
	}
	if d.Storyboard != nil {
		panels := make([]Panel, len(d.Storyboard.Panels))
		for i, p := range d.Storyboard.Panels {
			p.Image = ""
			panels[i] = p
		}
		d.Storyboard = &Storyboard{Panels: panels}
	}
	if d.PitchDeck != nil {
		slides := make([]Slide, len(d.PitchDeck.Slides))
		for i, s := range d.PitchDeck.Slides {
			s.Image = ""
			slides[i] = s
		}
		d.PitchDeck = &PitchDeck{Slides: slides}
	}
	return d
}

// Render serializes the distilled dossier for a prompt.
func (d Dossier) Render() string {
	data, err := json.MarshalIndent(d.Distill(), "", "  ")
	if err != nil {
		return d.Challenge
	}
	return string(data)
}

// Name is the brand name when chosen, the solution title otherwise.
func (d Dossier) Name() string {
	if d.Brand != nil && strings.TrimSpace(d.Brand.Name) != "" {
		return d.Brand.Name
	}
	if d.Solution != nil {
		return d.Solution.Title
	}
	return ""
}
