package stages

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rahul/foundry/internal/llm"
)

// ResearchResult is the structured output of Problem Research.
type ResearchResult struct {
	Summary     string       `json:"summary"`
	MarketSize  string       `json:"marketSize"`
	Trends      []string     `json:"trends"`
	PainPoints  []string     `json:"painPoints"`
	Competitors []Competitor `json:"competitors"`
	Sources     []llm.Source `json:"sources,omitempty"`
}

type Competitor struct {
	Name     string `json:"name"`
	Offering string `json:"offering"`
	Weakness string `json:"weakness"`
}

// Maturity of a scouted technology.
type Maturity string

const (
	MaturityEmerging Maturity = "emerging"
	MaturityGrowing  Maturity = "growing"
	MaturityMature   Maturity = "mature"
)

func (m Maturity) Valid() bool {
	switch m {
	case MaturityEmerging, MaturityGrowing, MaturityMature:
		return true
	}
	return false
}

type Technology struct {
	Name        string   `json:"name"`
	Maturity    Maturity `json:"maturity"`
	Application string   `json:"application"`
}

type TechScoutResult struct {
	Summary      string       `json:"summary"`
	Technologies []Technology `json:"technologies"`
	Sources      []llm.Source `json:"sources,omitempty"`
}

func (r *TechScoutResult) Validate() error {
	for _, t := range r.Technologies {
		if !t.Maturity.Valid() {
			return fmt.Errorf("technology %q: unknown maturity %q", t.Name, t.Maturity)
		}
	}
	return nil
}

// Challenge is a problem statement suggested from a user's solution.
type Challenge struct {
	Title     string `json:"title"`
	Statement string `json:"statement"`
	Rationale string `json:"rationale"`
}

type MarketFitResult struct {
	Assessment          string      `json:"assessment"`
	TargetMarket        string      `json:"targetMarket"`
	SuggestedChallenges []Challenge `json:"suggestedChallenges"`
}

func (r *MarketFitResult) Validate() error {
	if len(r.SuggestedChallenges) == 0 {
		return errors.New("no challenges suggested")
	}
	return nil
}

// ProblemFrame is one candidate framing of the challenge.
type ProblemFrame struct {
	Title       string `json:"title"`
	CoreProblem string `json:"coreProblem"`
	Rationale   string `json:"rationale"`
}

type FramingResult struct {
	Frames []ProblemFrame `json:"frames"`
}

func (r *FramingResult) Validate() error {
	if len(r.Frames) != FrameCount {
		return fmt.Errorf("expected %d problem frames, got %d", FrameCount, len(r.Frames))
	}
	return nil
}

type Persona struct {
	Name         string   `json:"name"`
	Age          int      `json:"age"`
	Occupation   string   `json:"occupation"`
	Bio          string   `json:"bio"`
	Goals        []string `json:"goals"`
	Frustrations []string `json:"frustrations"`
	AvatarPrompt string   `json:"avatarPrompt"`
	Avatar       string   `json:"avatar,omitempty"`
}

type EmpathyMap struct {
	Says   []string `json:"says"`
	Thinks []string `json:"thinks"`
	Does   []string `json:"does"`
	Feels  []string `json:"feels"`
	Pains  []string `json:"pains"`
	Gains  []string `json:"gains"`
}

type ProblemStatement struct {
	Statement  string   `json:"statement"`
	HowMightWe string   `json:"howMightWe"`
	Insights   []string `json:"insights"`
}

type Idea struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Mechanism   string `json:"mechanism"`
}

type IdeationResult struct {
	Ideas []Idea `json:"ideas"`
}

type Critique struct {
	IdeaTitle  string   `json:"ideaTitle"`
	Strengths  []string `json:"strengths"`
	Weaknesses []string `json:"weaknesses"`
	Verdict    string   `json:"verdict"`
}

type CritiqueResult struct {
	Critiques []Critique `json:"critiques"`
}

type IdeaScore struct {
	IdeaTitle    string `json:"ideaTitle"`
	Desirability int    `json:"desirability"`
	Feasibility  int    `json:"feasibility"`
	Viability    int    `json:"viability"`
	Rationale    string `json:"rationale"`
}

// Total is the unweighted sum of the three lenses.
func (s IdeaScore) Total() int {
	return s.Desirability + s.Feasibility + s.Viability
}

// ScoringResult holds scores ranked best first.
type ScoringResult struct {
	Scores []IdeaScore `json:"scores"`
}

func (r *ScoringResult) Validate() error {
	if len(r.Scores) == 0 {
		return errors.New("no ideas scored")
	}
	return nil
}

// matchIdeas rewrites every score title to the idea it names. A score for
// an idea that was never proposed is an error.
func (r *ScoringResult) matchIdeas(ideas *IdeationResult) error {
	if ideas == nil {
		return nil
	}
	for i, sc := range r.Scores {
		title := strings.TrimSpace(sc.IdeaTitle)
		found := false
		for _, idea := range ideas.Ideas {
			if strings.EqualFold(idea.Title, title) {
				r.Scores[i].IdeaTitle = idea.Title
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("score for unknown idea %q", sc.IdeaTitle)
		}
	}
	return nil
}

// SolutionOrigin records who proposed the solution.
type SolutionOrigin string

const (
	OriginUser SolutionOrigin = "user"
	OriginAI   SolutionOrigin = "ai"
)

type Solution struct {
	Title       string         `json:"title"`
	Summary     string         `json:"summary"`
	KeyFeatures []string       `json:"keyFeatures"`
	Origin      SolutionOrigin `json:"origin"`
}

type BrandName struct {
	Name      string `json:"name"`
	Rationale string `json:"rationale"`
}

type BrandNameResult struct {
	Names []BrandName `json:"names"`
}

func (r *BrandNameResult) Validate() error {
	if len(r.Names) == 0 {
		return errors.New("no brand names suggested")
	}
	return nil
}

type BrandIdentity struct {
	Name         string `json:"name"`
	Tagline      string `json:"tagline"`
	Voice        string `json:"voice"`
	BannerPrompt string `json:"bannerPrompt"`
	Banner       string `json:"banner,omitempty"`
}

// Refinement is one Devil's Advocate iteration.
type Refinement struct {
	Critique   string   `json:"critique"`
	Objections []string `json:"objections"`
	Revised    Solution `json:"revised"`
}

type ValueProposition struct {
	CustomerJobs  []string `json:"customerJobs"`
	Pains         []string `json:"pains"`
	Gains         []string `json:"gains"`
	Products      []string `json:"products"`
	PainRelievers []string `json:"painRelievers"`
	GainCreators  []string `json:"gainCreators"`
}

type LeanCanvas struct {
	Problem                []string `json:"problem"`
	CustomerSegments       []string `json:"customerSegments"`
	UniqueValueProposition string   `json:"uniqueValueProposition"`
	Solution               []string `json:"solution"`
	Channels               []string `json:"channels"`
	RevenueStreams         []string `json:"revenueStreams"`
	CostStructure          []string `json:"costStructure"`
	KeyMetrics             []string `json:"keyMetrics"`
	UnfairAdvantage        string   `json:"unfairAdvantage"`
}

type Panel struct {
	Caption     string `json:"caption"`
	ImagePrompt string `json:"imagePrompt"`
	Image       string `json:"image,omitempty"`
}

type Storyboard struct {
	Panels []Panel `json:"panels"`
}

// ScenarioType is the closed set of financial scenarios.
type ScenarioType string

const (
	ScenarioConservative ScenarioType = "conservative"
	ScenarioBase         ScenarioType = "base"
	ScenarioOptimistic   ScenarioType = "optimistic"
)

func (s ScenarioType) Valid() bool {
	switch s {
	case ScenarioConservative, ScenarioBase, ScenarioOptimistic:
		return true
	}
	return false
}

type YearProjection struct {
	Year    int     `json:"year"`
	Revenue float64 `json:"revenue"`
	Costs   float64 `json:"costs"`
	Profit  float64 `json:"profit"`
}

type Scenario struct {
	Type        ScenarioType     `json:"type"`
	Projections []YearProjection `json:"projections"`
}

type FinancialModel struct {
	Assumptions    []string   `json:"assumptions"`
	Scenarios      []Scenario `json:"scenarios"`
	BreakEvenMonth int        `json:"breakEvenMonth"`
}

func (f *FinancialModel) Validate() error {
	seen := make(map[ScenarioType]bool)
	for _, s := range f.Scenarios {
		if !s.Type.Valid() {
			return fmt.Errorf("unknown scenario type %q", s.Type)
		}
		if seen[s.Type] {
			return fmt.Errorf("duplicate scenario %q", s.Type)
		}
		seen[s.Type] = true
	}
	return nil
}

type Strategy struct {
	Vision     string   `json:"vision"`
	Objectives []string `json:"objectives"`
	Moat       string   `json:"moat"`
}

// RiskCategory is the closed set of risk areas.
type RiskCategory string

const (
	RiskMarket      RiskCategory = "market"
	RiskTechnical   RiskCategory = "technical"
	RiskFinancial   RiskCategory = "financial"
	RiskRegulatory  RiskCategory = "regulatory"
	RiskOperational RiskCategory = "operational"
)

func (c RiskCategory) Valid() bool {
	switch c {
	case RiskMarket, RiskTechnical, RiskFinancial, RiskRegulatory, RiskOperational:
		return true
	}
	return false
}

// Level is a low/medium/high rating.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

func (l Level) Valid() bool {
	switch l {
	case LevelLow, LevelMedium, LevelHigh:
		return true
	}
	return false
}

type Risk struct {
	Category    RiskCategory `json:"category"`
	Description string       `json:"description"`
	Likelihood  Level        `json:"likelihood"`
	Mitigation  string       `json:"mitigation"`
}

type RiskAssessment struct {
	Risks []Risk `json:"risks"`
}

func (r *RiskAssessment) Validate() error {
	for _, risk := range r.Risks {
		if !risk.Category.Valid() {
			return fmt.Errorf("unknown risk category %q", risk.Category)
		}
		if !risk.Likelihood.Valid() {
			return fmt.Errorf("unknown likelihood %q", risk.Likelihood)
		}
	}
	return nil
}

type BlueprintPhase struct {
	Name       string   `json:"name"`
	Duration   string   `json:"duration"`
	Milestones []string `json:"milestones"`
}

type Blueprint struct {
	Phases []BlueprintPhase `json:"phases"`
}

type GoToMarket struct {
	Segments     []string `json:"segments"`
	Channels     []string `json:"channels"`
	LaunchPlan   []string `json:"launchPlan"`
	PricingModel string   `json:"pricingModel"`
}

type Slide struct {
	Title       string   `json:"title"`
	Bullets     []string `json:"bullets"`
	ImagePrompt string   `json:"imagePrompt"`
	Image       string   `json:"image,omitempty"`
}

type PitchDeck struct {
	Slides []Slide `json:"slides"`
}

type InvestmentMemo struct {
	Thesis         string   `json:"thesis"`
	Opportunity    string   `json:"opportunity"`
	Risks          []string `json:"risks"`
	Ask            string   `json:"ask"`
	Recommendation string   `json:"recommendation"`
}

type Attack struct {
	Vector         string `json:"vector"`
	Severity       Level  `json:"severity"`
	Countermeasure string `json:"countermeasure"`
}

type RedTeamReport struct {
	Attacks []Attack `json:"attacks"`
}

func (r *RedTeamReport) Validate() error {
	for _, a := range r.Attacks {
		if !a.Severity.Valid() {
			return fmt.Errorf("unknown severity %q", a.Severity)
		}
	}
	return nil
}

type EthicsConcern struct {
	Area           string `json:"area"`
	Issue          string `json:"issue"`
	Recommendation string `json:"recommendation"`
}

type EthicsAudit struct {
	Rating   Level           `json:"rating"`
	Concerns []EthicsConcern `json:"concerns"`
}

func (e *EthicsAudit) Validate() error {
	if !e.Rating.Valid() {
		return fmt.Errorf("unknown ethics rating %q", e.Rating)
	}
	return nil
}

type SuccessScore struct {
	Score      int      `json:"score"`
	Drivers    []string `json:"drivers"`
	Detractors []string `json:"detractors"`
	Summary    string   `json:"summary"`
}

// GapAnalysis lists follow-up searches for a research draft.
type GapAnalysis struct {
	Queries []string `json:"queries"`
}

// Video is the result of the promo video stage.
type Video struct {
	OperationID string `json:"operationId"`
	URI         string `json:"uri"`
}
