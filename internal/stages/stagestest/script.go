// Package stagestest answers every pipeline stage with canned responses
// that satisfy the stage schemas.
package stagestest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tmc/langchaingo/llms"

	"github.com/rahul/foundry/internal/llm"
	"github.com/rahul/foundry/internal/llm/llmtest"
	"github.com/rahul/foundry/internal/stages"
)

// Frames are the candidate problem frames returned by Problem Framing.
var Frames = [stages.FrameCount]string{
	"Commuters waste forty minutes a day searching for parking",
	"Cities cannot see how kerb space is actually used",
	"Drivers have no trusted way to reserve a space ahead of time",
}

var canned = map[string]string{
	stages.StageResearch: `{"summary":"Urban parking is scarce","marketSize":"$5B (2025)",
		"trends":["EV charging"],"painPoints":["circling for spaces","fines"],
		"competitors":[{"name":"ParkRight","offering":"payment app","weakness":"no availability data"}]}`,
	stages.StageTechScout: `{"summary":"Sensing is cheap","technologies":[
		{"name":"Computer vision","maturity":"mature","application":"count free spaces"},
		{"name":"LoRaWAN","maturity":"growing","application":"low power sensors"}]}`,
	stages.StageMarketFit: `{"assessment":"Strong pull in dense cities","targetMarket":"Urban drivers",
		"suggestedChallenges":[
		{"title":"Search time","statement":"Drivers waste time looking for parking","rationale":"direct fit"},
		{"title":"Kerb data","statement":"Cities lack kerb usage data","rationale":"B2G angle"}]}`,
	stages.StageFraming: fmt.Sprintf(`{"frames":[
		{"title":"Time","coreProblem":%q,"rationale":"time is money"},
		{"title":"Visibility","coreProblem":%q,"rationale":"policy lever"},
		{"title":"Trust","coreProblem":%q,"rationale":"certainty matters"}]}`, Frames[0], Frames[1], Frames[2]),
	stages.StagePersona: `{"name":"Maya","age":34,"occupation":"Nurse","bio":"Drives to shifts downtown",
		"goals":["arrive on time"],"frustrations":["no spaces"],"avatarPrompt":"portrait of a nurse"}`,
	stages.StageEmpathy: `{"says":["I'm late again"],"thinks":["there must be a better way"],
		"does":["circles the block"],"feels":["stressed"],"pains":["fines"],"gains":["calm commute"]}`,
	stages.StageSynthesis: `{"statement":"Shift workers cannot find parking near work",
		"howMightWe":"How might we guarantee a space for shift workers?","insights":["timing is predictable"]}`,
	stages.StageIdeation: `{"ideas":[
		{"title":"SpotShare","description":"Share private driveways","mechanism":"marketplace"},
		{"title":"KerbSense","description":"Sensors on kerbs","mechanism":"IoT"},
		{"title":"ShiftPark","description":"Employer parking pools","mechanism":"B2B"}]}`,
	stages.StageCritique: `{"critiques":[
		{"ideaTitle":"SpotShare","strengths":["asset light"],"weaknesses":["trust"],"verdict":"promising"},
		{"ideaTitle":"KerbSense","strengths":["data"],"weaknesses":["capex"],"verdict":"hard"},
		{"ideaTitle":"ShiftPark","strengths":["clear buyer"],"weaknesses":["small"],"verdict":"solid"}]}`,
	stages.StageScoring: `{"scores":[
		{"ideaTitle":"SpotShare","desirability":7,"feasibility":6,"viability":6,"rationale":"ok"},
		{"ideaTitle":"KerbSense","desirability":6,"feasibility":4,"viability":5,"rationale":"capex"},
		{"ideaTitle":"ShiftPark","desirability":8,"feasibility":8,"viability":7,"rationale":"clear buyer"}]}`,
	stages.StageEvolution: `{"title":"ShiftPark","summary":"Employer-funded parking pools for shift workers",
		"keyFeatures":["reservations","payroll billing"]}`,
	stages.StageBrandNaming: `{"names":[{"name":"Parklane","rationale":"calm"},{"name":"Shiftspot","rationale":"direct"}]}`,
	stages.StageBrandIdentity: `{"tagline":"Your space, every shift","voice":"warm","bannerPrompt":"sunrise over a car park"}`,
	stages.StageDevilsAdvocate: `{"critique":"Employers may not pay","objections":["budget"],
		"revised":{"title":"ShiftPark Pro","summary":"Split cost between employer and worker","keyFeatures":["cost sharing"]}}`,
	stages.StageValueProposition: `{"customerJobs":["get to work"],"pains":["late"],"gains":["calm"],
		"products":["app"],"painRelievers":["reserved spot"],"gainCreators":["predictable commute"]}`,
	stages.StageLeanCanvas: `{"problem":["no parking"],"customerSegments":["hospitals"],"uniqueValueProposition":"A space every shift",
		"solution":["pooling"],"channels":["HR teams"],"revenueStreams":["subscription"],"costStructure":["ops"],
		"keyMetrics":["seats"],"unfairAdvantage":"hospital partnerships"}`,
	stages.StageStoryboard: `{"panels":[{"caption":"Maya is late","imagePrompt":"panel one"},{"caption":"Maya parks","imagePrompt":"panel two"}]}`,
	stages.StageFinancialModel: `{"assumptions":["100 sites"],"breakEvenMonth":18,"scenarios":[
		{"type":"base","projections":[{"year":1,"revenue":100000,"costs":150000,"profit":-50000}]},
		{"type":"optimistic","projections":[{"year":1,"revenue":200000,"costs":150000,"profit":50000}]}]}`,
	stages.StageStrategy:   `{"vision":"No nurse late again","objectives":["10 hospitals"],"moat":"contracts"}`,
	stages.StageRisks:      `{"risks":[{"category":"market","description":"slow sales","likelihood":"medium","mitigation":"pilots"}]}`,
	stages.StageBlueprint:  `{"phases":[{"name":"MVP","duration":"3 months","milestones":["first site"]}]}`,
	stages.StageGoToMarket: `{"segments":["hospitals"],"channels":["direct"],"launchPlan":["pilot"],"pricingModel":"per seat"}`,
	stages.StagePitchDeck: `{"slides":[{"title":"Problem","bullets":["late nurses"],"imagePrompt":"slide one"},
		{"title":"Solution","bullets":["ShiftPark"],"imagePrompt":"slide two"}]}`,
	stages.StageInvestmentMemo: `{"thesis":"Healthcare logistics","opportunity":"large","risks":["sales cycle"],
		"ask":"$1M seed","recommendation":"invest"}`,
	stages.StageRedTeam:      `{"attacks":[{"vector":"incumbent bundles parking","severity":"high","countermeasure":"lock-in"}]}`,
	stages.StageEthicsAudit:  `{"rating":"low","concerns":[{"area":"privacy","issue":"location data","recommendation":"minimise"}]}`,
	stages.StageSuccessScore: `{"score":62,"drivers":["clear buyer"],"detractors":["sales cycle"],"summary":"Plausible"}`,
	stages.StageVideo:        "A nurse arrives calmly at sunrise.",
}

// Script is a llmtest.Handler answering each stage with canned JSON.
// Override and Fail take precedence per stage.
type Script struct {
	mu       sync.Mutex
	override map[string]llmtest.Handler
	fail     map[string]error
}

func NewScript() *Script {
	return &Script{
		override: make(map[string]llmtest.Handler),
		fail:     make(map[string]error),
	}
}

// Override replaces the answer of one stage.
func (s *Script) Override(stage string, h llmtest.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.override[stage] = h
}

// Fail makes every call of a stage return err.
func (s *Script) Fail(stage string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[stage] = err
}

func (s *Script) Handle(info llm.CallInfo, system, prompt string) (string, error) {
	s.mu.Lock()
	h := s.override[info.Stage]
	err := s.fail[info.Stage]
	s.mu.Unlock()
	if err != nil {
		return "", err
	}
	if h != nil {
		return h(info, system, prompt)
	}
	return Answer(info)
}

// Answer is the canned reply for a stage step.
func Answer(info llm.CallInfo) (string, error) {
	switch info.Step {
	case stages.StepGround:
		return "Draft findings about " + info.Stage + " [1].", nil
	case stages.StepGaps:
		return `{"queries":[]}`, nil
	case stages.StepFollowUp:
		return "Follow-up finding.", nil
	case stages.StepMerge:
		return "Merged findings about " + info.Stage + ".", nil
	}
	out, ok := canned[info.Stage]
	if !ok {
		return "", fmt.Errorf("no canned answer for stage %q step %q", info.Stage, info.Step)
	}
	return out, nil
}

// Env is a runner wired to in-memory collaborators.
type Env struct {
	Script   *Script
	Model    *llmtest.Model
	Searcher *llmtest.Searcher
	Images   *llmtest.Images
	Video    *llmtest.Video
	Invoker  *llm.Invoker
	Runner   *stages.Runner
}

// NewEnv builds an Env. Backoff waits are skipped.
func NewEnv(opts ...stages.RunnerOption) *Env {
	env := &Env{
		Script: NewScript(),
		Searcher: &llmtest.Searcher{Default: []llm.Source{
			{URI: "https://example.com/a", Title: "A"},
			{URI: "https://example.com/b", Title: "B"},
		}},
		Images: &llmtest.Images{},
		Video:  &llmtest.Video{Steps: 2},
	}
	env.Model = llmtest.NewModel(env.Script.Handle)
	models := map[llm.Tier]llms.Model{
		llm.TierFast:     env.Model,
		llm.TierQuality:  env.Model,
		llm.TierCreative: env.Model,
	}
	inv, err := llm.NewInvoker(models,
		llm.WithSearcher(env.Searcher),
		llm.WithImages(env.Images),
		llm.WithSleep(func(context.Context, time.Duration) error { return nil }),
	)
	if err != nil {
		panic(err)
	}
	env.Invoker = inv
	base := []stages.RunnerOption{
		stages.WithVideo(env.Video),
		stages.WithPollInterval(time.Millisecond),
	}
	env.Runner = stages.NewRunner(inv, append(base, opts...)...)
	return env
}
