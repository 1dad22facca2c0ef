package stages

// Human-readable stage names. They appear in errors, logs and metrics.
const (
	StageResearch         = "Problem Research"
	StageTechScout        = "Technology Scout"
	StageMarketFit        = "Market Fit Analysis"
	StageFraming          = "Problem Framing"
	StagePersona          = "Customer Persona"
	StageEmpathy          = "Empathy Map"
	StageSynthesis        = "Problem Synthesis"
	StageIdeation         = "Solution Ideation"
	StageCritique         = "Idea Critique"
	StageScoring          = "Idea Scoring"
	StageEvolution        = "Solution Evolution"
	StageBrandNaming      = "Brand Naming"
	StageBrandIdentity    = "Brand Identity"
	StageDevilsAdvocate   = "Devil's Advocate"
	StageValueProposition = "Value Proposition"
	StageLeanCanvas       = "Lean Canvas"
	StageStoryboard       = "Storyboard"
	StageFinancialModel   = "Financial Model"
	StageStrategy         = "Strategy"
	StageRisks            = "Risk Assessment"
	StageBlueprint        = "Blueprint"
	StageGoToMarket       = "Go-To-Market"
	StagePitchDeck        = "Pitch Deck"
	StageInvestmentMemo   = "Investment Memo"
	StageRedTeam          = "Red Team"
	StageEthicsAudit      = "Ethics Audit"
	StageSuccessScore     = "Success Score"
	StageVideo            = "Promo Video"
)

// Steps within a multi-call stage.
const (
	StepGround    = "ground"
	StepGaps      = "gaps"
	StepFollowUp  = "follow_up"
	StepMerge     = "merge"
	StepParse     = "parse"
	StepGenerate  = "generate"
	StepImage     = "image"
	StepVideoPoll = "poll"
)

// FrameCount is the number of candidate problem frames offered.
const FrameCount = 3

// MaxFollowUps bounds the gap-analysis search batch.
const MaxFollowUps = 3

const (
	promptResearch         = "research"
	promptTechScout        = "tech_scout"
	promptMarketFit        = "market_fit"
	promptFraming          = "problem_framing"
	promptPersona          = "persona"
	promptEmpathy          = "empathy"
	promptSynthesis        = "synthesis"
	promptIdeation         = "ideation"
	promptCritique         = "critique"
	promptScoring          = "scoring"
	promptEvolution        = "evolution"
	promptBrandNaming      = "brand_naming"
	promptBrandIdentity    = "brand_identity"
	promptDevilsAdvocate   = "devils_advocate"
	promptValueProposition = "value_proposition"
	promptLeanCanvas       = "lean_canvas"
	promptStoryboard       = "storyboard"
	promptFinancialModel   = "financial_model"
	promptStrategy         = "strategy"
	promptRisks            = "risks"
	promptBlueprint        = "blueprint"
	promptGoToMarket       = "gtm"
	promptPitchDeck        = "pitch_deck"
	promptInvestmentMemo   = "investment_memo"
	promptRedTeam          = "red_team"
	promptEthicsAudit      = "ethics_audit"
	promptSuccessScore     = "success_score"
	promptVideo            = "video"
	promptGaps             = "gap_analysis"
	promptMerge            = "merge"
	promptParse            = "parse"
)

var promptKeys = []string{
	promptResearch, promptTechScout, promptMarketFit, promptFraming,
	promptPersona, promptEmpathy, promptSynthesis, promptIdeation,
	promptCritique, promptScoring, promptEvolution, promptBrandNaming,
	promptBrandIdentity, promptDevilsAdvocate, promptValueProposition,
	promptLeanCanvas, promptStoryboard, promptFinancialModel, promptStrategy,
	promptRisks, promptBlueprint, promptGoToMarket, promptPitchDeck,
	promptInvestmentMemo, promptRedTeam, promptEthicsAudit,
	promptSuccessScore, promptVideo, promptGaps, promptMerge, promptParse,
}
