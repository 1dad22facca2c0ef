package pipeline

import (
	"context"
	"strings"

	"github.com/rahul/foundry/internal/stages"
	"github.com/rahul/foundry/internal/usage"
)

// stageFn runs one stage against a snapshot of the state and returns the
// fold that writes its result. It must not mutate the snapshot.
type stageFn func(ctx context.Context, r *stages.Runner, s *State) (fold func(*State), u usage.Usage, err error)

// step is one entry of a workflow table. A step with a checkpoint halts the
// run until a resume event fills its slot.
type step struct {
	slot       string
	stage      string
	checkpoint Phase
	skip       func(*State) bool
	run        stageFn
}

func framingDisabled(s *State) bool { return !s.Options.Framing }

func hasUserSolution(s *State) bool { return strings.TrimSpace(s.UserSolution) != "" }

// problemFirst: research, optional framing checkpoint, persona, empathy,
// synthesis, tech scouting, then AI ideation unless the user brought a
// solution, then branding.
var problemFirst = []step{
	{slot: SlotResearch, stage: stages.StageResearch, run: runResearch},
	{slot: SlotFraming, stage: stages.StageFraming, skip: framingDisabled, run: runFraming},
	{slot: SlotSelectedFrame, checkpoint: PhaseCheckpointFraming, skip: framingDisabled},
	{slot: SlotPersona, stage: stages.StagePersona, run: runPersona},
	{slot: SlotEmpathy, stage: stages.StageEmpathy, run: runEmpathy},
	{slot: SlotProblem, stage: stages.StageSynthesis, run: runSynthesis},
	{slot: SlotTechnology, stage: stages.StageTechScout, run: runTechScout},
	{slot: SlotIdeas, stage: stages.StageIdeation, skip: hasUserSolution, run: runIdeation},
	{slot: SlotCritiques, stage: stages.StageCritique, skip: hasUserSolution, run: runCritique},
	{slot: SlotScores, stage: stages.StageScoring, skip: hasUserSolution, run: runScoring},
	{slot: SlotSelectedIdea, checkpoint: PhaseCheckpointIdea, skip: hasUserSolution},
	{slot: SlotSolution, stage: stages.StageEvolution, run: runEvolution},
	{slot: SlotBrandNames, stage: stages.StageBrandNaming, run: runBrandNames},
	{slot: SlotSelectedBrandName, checkpoint: PhaseCheckpointBrandName},
	{slot: SlotBrand, stage: stages.StageBrandIdentity, run: runBrandIdentity},
}

// solutionFirst starts from the user's solution: market fit, challenge
// checkpoint, research, persona, empathy, tech scouting, then branding.
var solutionFirst = []step{
	{slot: SlotMarketFit, stage: stages.StageMarketFit, run: runMarketFit},
	{slot: SlotSelectedChallenge, checkpoint: PhaseCheckpointChallenge},
	{slot: SlotResearch, stage: stages.StageResearch, run: runResearch},
	{slot: SlotPersona, stage: stages.StagePersona, run: runPersona},
	{slot: SlotEmpathy, stage: stages.StageEmpathy, run: runEmpathy},
	{slot: SlotTechnology, stage: stages.StageTechScout, run: runTechScout},
	{slot: SlotBrandNames, stage: stages.StageBrandNaming, run: runBrandNames},
	{slot: SlotSelectedBrandName, checkpoint: PhaseCheckpointBrandName},
	{slot: SlotBrand, stage: stages.StageBrandIdentity, run: runBrandIdentity},
}

func workflowFor(m Mode) []step {
	if m == ModeSolutionFirst {
		return solutionFirst
	}
	return problemFirst
}

func runMarketFit(ctx context.Context, r *stages.Runner, s *State) (func(*State), usage.Usage, error) {
	res, u, err := r.MarketFit(ctx, s.UserSolution)
	return func(st *State) { st.MarketFit = res }, u, err
}

func runResearch(ctx context.Context, r *stages.Runner, s *State) (func(*State), usage.Usage, error) {
	res, u, err := r.Research(ctx, s.Challenge)
	return func(st *State) { st.Research = res }, u, err
}

func runFraming(ctx context.Context, r *stages.Runner, s *State) (func(*State), usage.Usage, error) {
	res, u, err := r.FrameProblem(ctx, s.Challenge, s.Research)
	return func(st *State) { st.Framing = res }, u, err
}

func runPersona(ctx context.Context, r *stages.Runner, s *State) (func(*State), usage.Usage, error) {
	res, u, err := r.Persona(ctx, s.Challenge, s.Research, s.SelectedFrame)
	return func(st *State) { st.Persona = res }, u, err
}

func runEmpathy(ctx context.Context, r *stages.Runner, s *State) (func(*State), usage.Usage, error) {
	res, u, err := r.Empathy(ctx, s.Challenge, s.Persona, s.SelectedFrame)
	return func(st *State) { st.Empathy = res }, u, err
}

func runSynthesis(ctx context.Context, r *stages.Runner, s *State) (func(*State), usage.Usage, error) {
	res, u, err := r.SynthesizeProblem(ctx, s.Challenge, s.Research, s.Persona, s.Empathy, s.SelectedFrame)
	return func(st *State) { st.Problem = res }, u, err
}

func runTechScout(ctx context.Context, r *stages.Runner, s *State) (func(*State), usage.Usage, error) {
	res, u, err := r.TechScout(ctx, s.Challenge, s.Research, s.Problem)
	return func(st *State) { st.Technology = res }, u, err
}

func runIdeation(ctx context.Context, r *stages.Runner, s *State) (func(*State), usage.Usage, error) {
	res, u, err := r.Ideate(ctx, s.Problem, s.Technology)
	return func(st *State) { st.Ideas = res }, u, err
}

func runCritique(ctx context.Context, r *stages.Runner, s *State) (func(*State), usage.Usage, error) {
	res, u, err := r.Critique(ctx, s.Problem, s.Ideas)
	return func(st *State) { st.Critiques = res }, u, err
}

func runScoring(ctx context.Context, r *stages.Runner, s *State) (func(*State), usage.Usage, error) {
	res, u, err := r.Score(ctx, s.Ideas, s.Critiques)
	return func(st *State) { st.Scores = res }, u, err
}

func runEvolution(ctx context.Context, r *stages.Runner, s *State) (func(*State), usage.Usage, error) {
	res, u, err := r.Evolve(ctx, s.Problem, *s.SelectedIdea, critiqueFor(s.Critiques, s.SelectedIdea.Title))
	return func(st *State) { st.Solution = res }, u, err
}

func runBrandNames(ctx context.Context, r *stages.Runner, s *State) (func(*State), usage.Usage, error) {
	res, u, err := r.BrandNames(ctx, s.Challenge, s.Solution)
	return func(st *State) { st.BrandNames = res }, u, err
}

func runBrandIdentity(ctx context.Context, r *stages.Runner, s *State) (func(*State), usage.Usage, error) {
	res, u, err := r.BrandIdentity(ctx, *s.SelectedBrandName, s.Solution)
	return func(st *State) { st.Brand = res }, u, err
}

func critiqueFor(c *stages.CritiqueResult, title string) *stages.Critique {
	if c == nil {
		return nil
	}
	for i := range c.Critiques {
		if strings.EqualFold(c.Critiques[i].IdeaTitle, title) {
			cp := c.Critiques[i]
			return &cp
		}
	}
	return nil
}

func ideaByTitle(ideas *stages.IdeationResult, title string) (stages.Idea, bool) {
	if ideas == nil {
		return stages.Idea{}, false
	}
	for _, idea := range ideas.Ideas {
		if strings.EqualFold(idea.Title, title) {
			return idea, true
		}
	}
	return stages.Idea{}, false
}
