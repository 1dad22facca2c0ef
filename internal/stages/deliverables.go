package stages

import (
	"context"

	"github.com/rahul/foundry/internal/llm"
	"github.com/rahul/foundry/internal/usage"
)

func (r *Runner) ValueProposition(ctx context.Context, d Dossier) (*ValueProposition, usage.Usage, error) {
	var res ValueProposition
	p := (&prompt{}).
		section("Solution", d.Solution).
		section("Persona", withoutAvatar(d.Persona)).
		section("Empathy map", d.Empathy).
		section("Problem statement", d.Problem)
	u, err := r.generate(ctx, StageValueProposition, promptValueProposition, llm.TierQuality, nil, p.String(), valuePropositionSchema, &res)
	if err != nil {
		return nil, u, err
	}
	return &res, u, nil
}

func (r *Runner) LeanCanvas(ctx context.Context, d Dossier) (*LeanCanvas, usage.Usage, error) {
	var res LeanCanvas
	p := (&prompt{}).
		section("Challenge", d.Challenge).
		section("Solution", d.Solution).
		section("Research", researchSummary(d.Research)).
		section("Value proposition", d.ValueProposition)
	u, err := r.generate(ctx, StageLeanCanvas, promptLeanCanvas, llm.TierQuality, nil, p.String(), leanCanvasSchema, &res)
	if err != nil {
		return nil, u, err
	}
	return &res, u, nil
}

// Storyboard writes the panels and renders their images in parallel.
func (r *Runner) Storyboard(ctx context.Context, d Dossier, vp *ValueProposition, canvas *LeanCanvas) (*Storyboard, usage.Usage, error) {
	var res Storyboard
	p := (&prompt{}).
		section("Persona", withoutAvatar(d.Persona)).
		section("Solution", d.Solution).
		section("Value proposition", vp).
		section("Lean canvas", canvas)
	u, err := r.generate(ctx, StageStoryboard, promptStoryboard, llm.TierCreative, nil, p.String(), storyboardSchema, &res)
	if err != nil {
		return nil, u, err
	}
	prompts := make([]string, len(res.Panels))
	for i, panel := range res.Panels {
		prompts[i] = panel.ImagePrompt
	}
	images, iu := r.inv.ImageBatch(ctx, StageStoryboard, prompts, llm.AspectWide)
	for i := range res.Panels {
		res.Panels[i].Image = images[i]
	}
	return &res, u.Add(iu), nil
}

func (r *Runner) FinancialModel(ctx context.Context, d Dossier, canvas *LeanCanvas) (*FinancialModel, usage.Usage, error) {
	var res FinancialModel
	p := (&prompt{}).
		section("Solution", d.Solution).
		section("Market", researchSummary(d.Research)).
		section("Lean canvas", canvas)
	u, err := r.generate(ctx, StageFinancialModel, promptFinancialModel, llm.TierQuality, temperaturePrecise, p.String(), financialModelSchema, &res)
	if err != nil {
		return nil, u, err
	}
	return &res, u, nil
}

func (r *Runner) Strategy(ctx context.Context, d Dossier) (*Strategy, usage.Usage, error) {
	var res Strategy
	u, err := r.generate(ctx, StageStrategy, promptStrategy, llm.TierQuality, nil, d.Render(), strategySchema, &res)
	if err != nil {
		return nil, u, err
	}
	return &res, u, nil
}

func (r *Runner) Risks(ctx context.Context, d Dossier) (*RiskAssessment, usage.Usage, error) {
	var res RiskAssessment
	u, err := r.generate(ctx, StageRisks, promptRisks, llm.TierQuality, nil, d.Render(), riskSchema, &res)
	if err != nil {
		return nil, u, err
	}
	return &res, u, nil
}

func (r *Runner) Blueprint(ctx context.Context, d Dossier) (*Blueprint, usage.Usage, error) {
	var res Blueprint
	u, err := r.generate(ctx, StageBlueprint, promptBlueprint, llm.TierQuality, nil, d.Render(), blueprintSchema, &res)
	if err != nil {
		return nil, u, err
	}
	return &res, u, nil
}

func (r *Runner) GoToMarket(ctx context.Context, d Dossier) (*GoToMarket, usage.Usage, error) {
	var res GoToMarket
	u, err := r.generate(ctx, StageGoToMarket, promptGoToMarket, llm.TierQuality, nil, d.Render(), goToMarketSchema, &res)
	if err != nil {
		return nil, u, err
	}
	return &res, u, nil
}

// PitchDeck writes slides from the distilled dossier and renders slide art
// in parallel.
func (r *Runner) PitchDeck(ctx context.Context, d Dossier) (*PitchDeck, usage.Usage, error) {
	var res PitchDeck
	p := (&prompt{}).
		section("Venture", d.Name()).
		section("Dossier", d.Render())
	u, err := r.generate(ctx, StagePitchDeck, promptPitchDeck, llm.TierCreative, nil, p.String(), pitchDeckSchema, &res)
	if err != nil {
		return nil, u, err
	}
	prompts := make([]string, len(res.Slides))
	for i, s := range res.Slides {
		prompts[i] = s.ImagePrompt
	}
	images, iu := r.inv.ImageBatch(ctx, StagePitchDeck, prompts, llm.AspectWide)
	for i := range res.Slides {
		res.Slides[i].Image = images[i]
	}
	return &res, u.Add(iu), nil
}

// InvestmentMemo works from the distilled dossier. A nil deck is allowed.
func (r *Runner) InvestmentMemo(ctx context.Context, d Dossier, deck *PitchDeck) (*InvestmentMemo, usage.Usage, error) {
	d.PitchDeck = deck
	var res InvestmentMemo
	p := (&prompt{}).
		section("Venture", d.Name()).
		section("Dossier", d.Render())
	if deck == nil {
		p.section("Note", "No pitch deck was produced for this venture.")
	}
	u, err := r.generate(ctx, StageInvestmentMemo, promptInvestmentMemo, llm.TierQuality, nil, p.String(), investmentMemoSchema, &res)
	if err != nil {
		return nil, u, err
	}
	return &res, u, nil
}
