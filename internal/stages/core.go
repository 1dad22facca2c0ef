package stages

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rahul/foundry/internal/llm"
	"github.com/rahul/foundry/internal/usage"
)

// MarketFit assesses a user-provided solution and suggests challenges it
// could address.
func (r *Runner) MarketFit(ctx context.Context, solution string) (*MarketFitResult, usage.Usage, error) {
	var res MarketFitResult
	p := (&prompt{}).section("Proposed solution", solution)
	u, err := r.generate(ctx, StageMarketFit, promptMarketFit, llm.TierQuality, nil, p.String(), marketFitSchema, &res)
	if err != nil {
		return nil, u, err
	}
	return &res, u, nil
}

// FrameProblem returns exactly FrameCount candidate framings.
func (r *Runner) FrameProblem(ctx context.Context, challenge string, research *ResearchResult) (*FramingResult, usage.Usage, error) {
	var res FramingResult
	p := (&prompt{}).
		section("Challenge", challenge).
		section("Research", researchSummary(research))
	u, err := r.generate(ctx, StageFraming, promptFraming, llm.TierQuality, nil, p.String(), framingSchema, &res)
	if err != nil {
		return nil, u, err
	}
	return &res, u, nil
}

// Persona creates a customer persona and renders its avatar.
func (r *Runner) Persona(ctx context.Context, challenge string, research *ResearchResult, frame *ProblemFrame) (*Persona, usage.Usage, error) {
	var res Persona
	p := (&prompt{}).
		section("Challenge", challenge).
		section("Selected problem frame", coreProblem(frame)).
		section("Research", researchSummary(research))
	u, err := r.generate(ctx, StagePersona, promptPersona, llm.TierQuality, nil, p.String(), personaSchema, &res)
	if err != nil {
		return nil, u, err
	}
	img, iu := r.inv.Image(ctx, StagePersona, res.AvatarPrompt, llm.AspectSquare)
	res.Avatar = img
	return &res, u.Add(iu), nil
}

func (r *Runner) Empathy(ctx context.Context, challenge string, persona *Persona, frame *ProblemFrame) (*EmpathyMap, usage.Usage, error) {
	var res EmpathyMap
	p := (&prompt{}).
		section("Challenge", challenge).
		section("Selected problem frame", coreProblem(frame)).
		section("Persona", withoutAvatar(persona))
	u, err := r.generate(ctx, StageEmpathy, promptEmpathy, llm.TierQuality, nil, p.String(), empathySchema, &res)
	if err != nil {
		return nil, u, err
	}
	return &res, u, nil
}

func (r *Runner) SynthesizeProblem(ctx context.Context, challenge string, research *ResearchResult, persona *Persona, empathy *EmpathyMap, frame *ProblemFrame) (*ProblemStatement, usage.Usage, error) {
	var res ProblemStatement
	p := (&prompt{}).
		section("Challenge", challenge).
		section("Selected problem frame", coreProblem(frame)).
		section("Research", researchSummary(research)).
		section("Persona", withoutAvatar(persona)).
		section("Empathy map", empathy)
	u, err := r.generate(ctx, StageSynthesis, promptSynthesis, llm.TierQuality, nil, p.String(), problemStatementSchema, &res)
	if err != nil {
		return nil, u, err
	}
	return &res, u, nil
}

func (r *Runner) Ideate(ctx context.Context, problem *ProblemStatement, tech *TechScoutResult) (*IdeationResult, usage.Usage, error) {
	var res IdeationResult
	p := (&prompt{}).
		section("Problem statement", problem).
		section("Technologies", techSummary(tech))
	u, err := r.generate(ctx, StageIdeation, promptIdeation, llm.TierCreative, temperatureCreative, p.String(), ideationSchema, &res)
	if err != nil {
		return nil, u, err
	}
	return &res, u, nil
}

func (r *Runner) Critique(ctx context.Context, problem *ProblemStatement, ideas *IdeationResult) (*CritiqueResult, usage.Usage, error) {
	var res CritiqueResult
	p := (&prompt{}).
		section("Problem statement", problem).
		section("Ideas", ideas)
	u, err := r.generate(ctx, StageCritique, promptCritique, llm.TierQuality, nil, p.String(), critiqueSchema, &res)
	if err != nil {
		return nil, u, err
	}
	return &res, u, nil
}

// Score rates every idea and ranks them by total, best first. Ties keep the
// model's order.
func (r *Runner) Score(ctx context.Context, ideas *IdeationResult, critiques *CritiqueResult) (*ScoringResult, usage.Usage, error) {
	var res ScoringResult
	p := (&prompt{}).
		section("Ideas", ideas).
		section("Critiques", critiques)
	u, err := r.generate(ctx, StageScoring, promptScoring, llm.TierQuality, temperaturePrecise, p.String(), scoringSchema, &res)
	if err != nil {
		return nil, u, err
	}
	if err := res.matchIdeas(ideas); err != nil {
		return nil, u, &llm.StageError{Stage: StageScoring, Kind: llm.KindOther, Err: fmt.Errorf("invalid response: %w", err)}
	}
	sort.SliceStable(res.Scores, func(i, j int) bool {
		return res.Scores[i].Total() > res.Scores[j].Total()
	})
	return &res, u, nil
}

// Evolve turns the selected idea into a solution.
func (r *Runner) Evolve(ctx context.Context, problem *ProblemStatement, idea Idea, critique *Critique) (*Solution, usage.Usage, error) {
	var res Solution
	p := (&prompt{}).
		section("Problem statement", problem).
		section("Selected idea", idea).
		section("Critique", critique)
	u, err := r.generate(ctx, StageEvolution, promptEvolution, llm.TierCreative, nil, p.String(), solutionSchema, &res)
	if err != nil {
		return nil, u, err
	}
	res.Origin = OriginAI
	return &res, u, nil
}

func (r *Runner) BrandNames(ctx context.Context, challenge string, solution *Solution) (*BrandNameResult, usage.Usage, error) {
	var res BrandNameResult
	p := (&prompt{}).
		section("Challenge", challenge).
		section("Solution", solution)
	u, err := r.generate(ctx, StageBrandNaming, promptBrandNaming, llm.TierCreative, temperatureCreative, p.String(), brandNameSchema, &res)
	if err != nil {
		return nil, u, err
	}
	return &res, u, nil
}

// BrandIdentity builds the identity for the chosen name and renders a
// banner.
func (r *Runner) BrandIdentity(ctx context.Context, name BrandName, solution *Solution) (*BrandIdentity, usage.Usage, error) {
	var res BrandIdentity
	p := (&prompt{}).
		section("Brand name", name.Name).
		section("Solution", solution)
	u, err := r.generate(ctx, StageBrandIdentity, promptBrandIdentity, llm.TierCreative, nil, p.String(), brandIdentitySchema, &res)
	if err != nil {
		return nil, u, err
	}
	res.Name = name.Name
	img, iu := r.inv.Image(ctx, StageBrandIdentity, res.BannerPrompt, llm.AspectWide)
	res.Banner = img
	return &res, u.Add(iu), nil
}

// DevilsAdvocate critiques the current solution and proposes a revision.
// Earlier iterations are passed so the critique does not repeat itself.
func (r *Runner) DevilsAdvocate(ctx context.Context, solution Solution, history []Refinement) (*Refinement, usage.Usage, error) {
	var res Refinement
	p := (&prompt{}).section("Current solution", solution)
	if len(history) > 0 {
		var prior []string
		for _, h := range history {
			prior = append(prior, h.Critique)
		}
		p.section("Earlier critiques", "- "+strings.Join(prior, "\n- "))
	}
	u, err := r.generate(ctx, StageDevilsAdvocate, promptDevilsAdvocate, llm.TierQuality, nil, p.String(), refinementSchema, &res)
	if err != nil {
		return nil, u, err
	}
	res.Revised.Origin = solution.Origin
	return &res, u, nil
}

func coreProblem(frame *ProblemFrame) string {
	if frame == nil {
		return ""
	}
	return frame.CoreProblem
}

func withoutAvatar(p *Persona) *Persona {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Avatar = ""
	return &cp
}

func techSummary(tech *TechScoutResult) string {
	if tech == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(tech.Summary)
	for _, t := range tech.Technologies {
		b.WriteString("\n- " + t.Name + " (" + string(t.Maturity) + "): " + t.Application)
	}
	return b.String()
}
