package stages

import (
	"context"
	"log"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/rahul/foundry/internal/llm"
	"github.com/rahul/foundry/internal/usage"
)

// grounded runs the two-phase research strategy: a web-grounded draft,
// an optional gap-analysis round with parallel follow-up searches merged
// into the draft, then a structured parse on the cheapest tier.
func (r *Runner) grounded(ctx context.Context, stage, key, query, task string, tier llm.Tier, schema llm.Schema, out any) ([]llm.Source, usage.Usage, error) {
	tier = r.tier(tier)
	sys, err := r.system(stage, key)
	if err != nil {
		return nil, usage.Usage{}, err
	}

	draft, total, err := r.inv.Ground(ctx, llm.Request{
		Stage:  stage,
		Step:   StepGround,
		System: sys,
		Prompt: task,
		Tier:   tier,
	}, query)
	if err != nil {
		return nil, total, err
	}
	text := draft.Text
	sources := draft.Sources

	if r.gapAnalysis && tier != llm.Cheapest {
		merged, extra, u := r.closeGaps(ctx, stage, tier, sys, task, text)
		total = total.Add(u)
		text = merged
		sources = append(sources, extra...)
	}

	parseSys, err := r.system(stage, promptParse)
	if err != nil {
		return nil, total, err
	}
	u, err := r.inv.Generate(ctx, llm.Request{
		Stage:       stage,
		Step:        StepParse,
		System:      parseSys,
		Prompt:      text,
		Schema:      schema,
		Tier:        llm.Cheapest,
		Temperature: temperaturePrecise,
	}, out)
	total = total.Add(u)
	if err != nil {
		return nil, total, err
	}
	return llm.DedupeSources(sources), total, nil
}

// closeGaps asks for follow-up queries, runs them in parallel and merges
// what came back into the draft. Every failure here degrades to the draft.
func (r *Runner) closeGaps(ctx context.Context, stage string, tier llm.Tier, sys, task, draft string) (string, []llm.Source, usage.Usage) {
	var total usage.Usage

	gapSys, err := r.system(stage, promptGaps)
	if err != nil {
		return draft, nil, total
	}
	var gaps GapAnalysis
	u, err := r.inv.Generate(ctx, llm.Request{
		Stage:  stage,
		Step:   StepGaps,
		System: gapSys,
		Prompt: (&prompt{}).section("Task", task).section("Draft", draft).String(),
		Schema: gapSchema,
		Tier:   tier,
	}, &gaps)
	total = total.Add(u)
	if err != nil {
		log.Printf("[%s] gap analysis skipped: %v", stage, err)
		return draft, nil, total
	}

	queries := cleanQueries(gaps.Queries)
	if len(queries) == 0 {
		return draft, nil, total
	}

	findings := make([]llm.Grounded, len(queries))
	usages := make([]usage.Usage, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(MaxFollowUps)
	for i, q := range queries {
		g.Go(func() error {
			res, u, err := r.inv.Ground(gctx, llm.Request{
				Stage:  stage,
				Step:   StepFollowUp,
				System: sys,
				Prompt: "Answer this research question concisely: " + q,
				Tier:   tier,
			}, q)
			usages[i] = u
			if err != nil {
				log.Printf("[%s] follow-up %q failed: %v", stage, q, err)
				return nil
			}
			findings[i] = res
			return nil
		})
	}
	_ = g.Wait()
	total = total.Add(usage.Sum(usages...))

	var notes prompt
	var sources []llm.Source
	for i, f := range findings {
		if f.Text == "" {
			continue
		}
		notes.section("Follow-up: "+queries[i], f.Text)
		sources = append(sources, f.Sources...)
	}
	if notes.b.Len() == 0 {
		return draft, nil, total
	}

	mergeSys, err := r.system(stage, promptMerge)
	if err != nil {
		return draft, sources, total
	}
	merged, u, err := r.inv.Text(ctx, llm.Request{
		Stage:  stage,
		Step:   StepMerge,
		System: mergeSys,
		Prompt: (&prompt{}).section("Draft", draft).section("Findings", notes.String()).String(),
		Tier:   tier,
	})
	total = total.Add(u)
	if err != nil || strings.TrimSpace(merged) == "" {
		log.Printf("[%s] merge failed, keeping draft: %v", stage, err)
		return draft, sources, total
	}
	return merged, sources, total
}

func cleanQueries(in []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, q := range in {
		q = strings.TrimSpace(q)
		if q == "" || seen[strings.ToLower(q)] {
			continue
		}
		seen[strings.ToLower(q)] = true
		out = append(out, q)
		if len(out) == MaxFollowUps {
			break
		}
	}
	return out
}

// Research investigates the challenge with web grounding.
func (r *Runner) Research(ctx context.Context, challenge string) (*ResearchResult, usage.Usage, error) {
	task := (&prompt{}).section("Challenge", challenge).String()
	var res ResearchResult
	sources, u, err := r.grounded(ctx, StageResearch, promptResearch, challenge, task, llm.TierQuality, researchSchema, &res)
	if err != nil {
		return nil, u, err
	}
	res.Sources = sources
	return &res, u, nil
}

// TechScout maps technologies applicable to the challenge.
func (r *Runner) TechScout(ctx context.Context, challenge string, research *ResearchResult, problem *ProblemStatement) (*TechScoutResult, usage.Usage, error) {
	task := (&prompt{}).
		section("Challenge", challenge).
		section("Problem statement", problem).
		section("Research summary", researchSummary(research)).
		String()
	query := challenge + " emerging technology"
	var res TechScoutResult
	sources, u, err := r.grounded(ctx, StageTechScout, promptTechScout, query, task, llm.TierQuality, techScoutSchema, &res)
	if err != nil {
		return nil, u, err
	}
	res.Sources = sources
	return &res, u, nil
}

func researchSummary(res *ResearchResult) string {
	if res == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(res.Summary)
	if len(res.PainPoints) > 0 {
		b.WriteString("\nPain points: " + strings.Join(res.PainPoints, "; "))
	}
	return b.String()
}
