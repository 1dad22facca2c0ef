package pipeline

import (
	"fmt"
	"time"

	"github.com/rahul/foundry/internal/llm"
	"github.com/rahul/foundry/internal/stages"
	"github.com/rahul/foundry/internal/usage"
)

// Mode selects the core workflow. It is fixed for the lifetime of a run.
type Mode string

const (
	ModeProblemFirst  Mode = "problem_first"
	ModeSolutionFirst Mode = "solution_first"
)

// Failure is the user-visible record of the stage that stopped a run.
type Failure struct {
	Stage   string        `json:"stage"`
	Kind    llm.ErrorKind `json:"kind"`
	Message string        `json:"message"`
}

// State is the accumulated output of a run: one slot per stage, filled
// monotonically by the controller and never rolled back on failure.
type State struct {
	RunID        string        `json:"runId"`
	Owner        string        `json:"owner"`
	Mode         Mode          `json:"mode"`
	Phase        Phase         `json:"phase"`
	Options      RunOptions    `json:"options"`
	Challenge    string        `json:"challenge,omitempty"`
	UserSolution string        `json:"userSolution,omitempty"`
	LastError    *Failure      `json:"lastError,omitempty"`
	Usage        []usage.Entry `json:"usage,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`

	MarketFit         *stages.MarketFitResult  `json:"marketFit,omitempty"`
	SelectedChallenge *stages.Challenge        `json:"selectedChallenge,omitempty"`
	Research          *stages.ResearchResult   `json:"research,omitempty"`
	Framing           *stages.FramingResult    `json:"framing,omitempty"`
	SelectedFrame     *stages.ProblemFrame     `json:"selectedFrame,omitempty"`
	Persona           *stages.Persona          `json:"persona,omitempty"`
	Empathy           *stages.EmpathyMap       `json:"empathy,omitempty"`
	Problem           *stages.ProblemStatement `json:"problem,omitempty"`
	Technology        *stages.TechScoutResult  `json:"technology,omitempty"`
	Ideas             *stages.IdeationResult   `json:"ideas,omitempty"`
	Critiques         *stages.CritiqueResult   `json:"critiques,omitempty"`
	Scores            *stages.ScoringResult    `json:"scores,omitempty"`
	SelectedIdea      *stages.Idea             `json:"selectedIdea,omitempty"`
	Solution          *stages.Solution         `json:"solution,omitempty"`
	SolutionHistory   []stages.Solution        `json:"solutionHistory,omitempty"`
	Refinements       []stages.Refinement      `json:"refinements,omitempty"`
	BrandNames        *stages.BrandNameResult  `json:"brandNames,omitempty"`
	SelectedBrandName *stages.BrandName        `json:"selectedBrandName,omitempty"`
	Brand             *stages.BrandIdentity    `json:"brand,omitempty"`

	ValueProposition *stages.ValueProposition `json:"valueProposition,omitempty"`
	LeanCanvas       *stages.LeanCanvas       `json:"leanCanvas,omitempty"`
	Storyboard       *stages.Storyboard       `json:"storyboard,omitempty"`
	FinancialModel   *stages.FinancialModel   `json:"financialModel,omitempty"`
	Strategy         *stages.Strategy         `json:"strategy,omitempty"`
	Risks            *stages.RiskAssessment   `json:"risks,omitempty"`
	Blueprint        *stages.Blueprint        `json:"blueprint,omitempty"`
	GoToMarket       *stages.GoToMarket       `json:"goToMarket,omitempty"`
	PitchDeck        *stages.PitchDeck        `json:"pitchDeck,omitempty"`
	InvestmentMemo   *stages.InvestmentMemo   `json:"investmentMemo,omitempty"`

	RedTeam      *stages.RedTeamReport `json:"redTeam,omitempty"`
	EthicsAudit  *stages.EthicsAudit   `json:"ethicsAudit,omitempty"`
	SuccessScore *stages.SuccessScore  `json:"successScore,omitempty"`
	Video        *stages.Video         `json:"video,omitempty"`
}

// Slot names used by the dependency table.
const (
	SlotMarketFit         = "marketFit"
	SlotSelectedChallenge = "selectedChallenge"
	SlotResearch          = "research"
	SlotFraming           = "framing"
	SlotSelectedFrame     = "selectedFrame"
	SlotPersona           = "persona"
	SlotEmpathy           = "empathy"
	SlotProblem           = "problem"
	SlotTechnology        = "technology"
	SlotIdeas             = "ideas"
	SlotCritiques         = "critiques"
	SlotScores            = "scores"
	SlotSelectedIdea      = "selectedIdea"
	SlotSolution          = "solution"
	SlotBrandNames        = "brandNames"
	SlotSelectedBrandName = "selectedBrandName"
	SlotBrand             = "brand"
	SlotValueProposition  = "valueProposition"
	SlotLeanCanvas        = "leanCanvas"
	SlotStoryboard        = "storyboard"
	SlotFinancialModel    = "financialModel"
	SlotStrategy          = "strategy"
	SlotRisks             = "risks"
	SlotBlueprint         = "blueprint"
	SlotGoToMarket        = "goToMarket"
	SlotPitchDeck         = "pitchDeck"
	SlotInvestmentMemo    = "investmentMemo"
	SlotRedTeam           = "redTeam"
	SlotEthicsAudit       = "ethicsAudit"
	SlotSuccessScore      = "successScore"
	SlotVideo             = "video"
)

type slot struct {
	name   string
	filled func(*State) bool
	deps   []string
}

// slots is the declared dependency table. Investment memo deliberately
// does not depend on the pitch deck: a deselected deck leaves it nil.
var slots = []slot{
	{SlotMarketFit, func(s *State) bool { return s.MarketFit != nil }, nil},
	{SlotSelectedChallenge, func(s *State) bool { return s.SelectedChallenge != nil }, []string{SlotMarketFit}},
	{SlotResearch, func(s *State) bool { return s.Research != nil }, nil},
	{SlotFraming, func(s *State) bool { return s.Framing != nil }, []string{SlotResearch}},
	{SlotSelectedFrame, func(s *State) bool { return s.SelectedFrame != nil }, []string{SlotFraming}},
	{SlotPersona, func(s *State) bool { return s.Persona != nil }, []string{SlotResearch}},
	{SlotEmpathy, func(s *State) bool { return s.Empathy != nil }, []string{SlotPersona}},
	{SlotProblem, func(s *State) bool { return s.Problem != nil }, []string{SlotResearch, SlotPersona, SlotEmpathy}},
	{SlotTechnology, func(s *State) bool { return s.Technology != nil }, []string{SlotResearch}},
	{SlotIdeas, func(s *State) bool { return s.Ideas != nil }, []string{SlotProblem}},
	{SlotCritiques, func(s *State) bool { return s.Critiques != nil }, []string{SlotIdeas}},
	{SlotScores, func(s *State) bool { return s.Scores != nil }, []string{SlotCritiques}},
	{SlotSelectedIdea, func(s *State) bool { return s.SelectedIdea != nil }, []string{SlotScores}},
	{SlotSolution, func(s *State) bool { return s.Solution != nil }, nil},
	{SlotBrandNames, func(s *State) bool { return s.BrandNames != nil }, []string{SlotSolution}},
	{SlotSelectedBrandName, func(s *State) bool { return s.SelectedBrandName != nil }, []string{SlotBrandNames}},
	{SlotBrand, func(s *State) bool { return s.Brand != nil }, []string{SlotSelectedBrandName}},
	{SlotValueProposition, func(s *State) bool { return s.ValueProposition != nil }, []string{SlotSolution}},
	{SlotLeanCanvas, func(s *State) bool { return s.LeanCanvas != nil }, []string{SlotSolution}},
	{SlotStoryboard, func(s *State) bool { return s.Storyboard != nil }, []string{SlotValueProposition, SlotLeanCanvas}},
	{SlotFinancialModel, func(s *State) bool { return s.FinancialModel != nil }, []string{SlotLeanCanvas}},
	{SlotStrategy, func(s *State) bool { return s.Strategy != nil }, []string{SlotSolution}},
	{SlotRisks, func(s *State) bool { return s.Risks != nil }, []string{SlotSolution}},
	{SlotBlueprint, func(s *State) bool { return s.Blueprint != nil }, []string{SlotSolution}},
	{SlotGoToMarket, func(s *State) bool { return s.GoToMarket != nil }, []string{SlotSolution}},
	{SlotPitchDeck, func(s *State) bool { return s.PitchDeck != nil }, []string{SlotSolution}},
	{SlotInvestmentMemo, func(s *State) bool { return s.InvestmentMemo != nil }, []string{SlotSolution}},
	{SlotRedTeam, func(s *State) bool { return s.RedTeam != nil }, []string{SlotSolution}},
	{SlotEthicsAudit, func(s *State) bool { return s.EthicsAudit != nil }, []string{SlotSolution}},
	{SlotSuccessScore, func(s *State) bool { return s.SuccessScore != nil }, []string{SlotSolution}},
	{SlotVideo, func(s *State) bool { return s.Video != nil }, []string{SlotSolution}},
}

var slotIndex = func() map[string]slot {
	m := make(map[string]slot, len(slots))
	for _, s := range slots {
		m[s.name] = s
	}
	return m
}()

// Filled reports whether the named slot holds a value.
func (s *State) Filled(name string) bool {
	sl, ok := slotIndex[name]
	return ok && sl.filled(s)
}

// Validate checks that no slot is filled while one of its declared
// dependencies is empty. An AI-evolved solution also needs the selected
// idea it came from.
func (s *State) Validate() error {
	for _, sl := range slots {
		if !sl.filled(s) {
			continue
		}
		for _, dep := range sl.deps {
			if !slotIndex[dep].filled(s) {
				return fmt.Errorf("slot %s is filled but its dependency %s is empty", sl.name, dep)
			}
		}
	}
	if s.Solution != nil && s.Solution.Origin == stages.OriginAI && s.SelectedIdea == nil {
		return fmt.Errorf("slot %s is filled but its dependency %s is empty", SlotSolution, SlotSelectedIdea)
	}
	return nil
}

// FilledSlots lists the names of filled slots in table order.
func (s *State) FilledSlots() []string {
	var out []string
	for _, sl := range slots {
		if sl.filled(s) {
			out = append(out, sl.name)
		}
	}
	return out
}

// Clear empties every slot and returns the state to idle.
func (s *State) Clear() {
	*s = State{Phase: PhaseIdle}
}

// Title names the run for listings.
func (s *State) Title() string {
	switch {
	case s.Brand != nil && s.Brand.Name != "":
		return s.Brand.Name
	case s.Solution != nil && s.Solution.Title != "":
		return s.Solution.Title
	case s.Challenge != "":
		return truncate(s.Challenge, 60)
	}
	return truncate(s.UserSolution, 60)
}

// Dossier is the distilled view handed to deliverable and analysis stages.
func (s *State) Dossier() stages.Dossier {
	return stages.Dossier{
		Challenge:        s.Challenge,
		Research:         s.Research,
		Technology:       s.Technology,
		Persona:          s.Persona,
		Empathy:          s.Empathy,
		Problem:          s.Problem,
		Solution:         s.Solution,
		Brand:            s.Brand,
		ValueProposition: s.ValueProposition,
		LeanCanvas:       s.LeanCanvas,
		Storyboard:       s.Storyboard,
		FinancialModel:   s.FinancialModel,
		Strategy:         s.Strategy,
		Risks:            s.Risks,
		Blueprint:        s.Blueprint,
		GoToMarket:       s.GoToMarket,
		PitchDeck:        s.PitchDeck,
		InvestmentMemo:   s.InvestmentMemo,
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
