package stages_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rahul/foundry/internal/llm"
	"github.com/rahul/foundry/internal/llm/llmtest"
	"github.com/rahul/foundry/internal/stages"
	"github.com/rahul/foundry/internal/stages/stagestest"
	"github.com/rahul/foundry/internal/usage"
)

func steps(calls []llmtest.Call) []string {
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Info.Step
	}
	return out
}

func TestResearchTwoPhase(t *testing.T) {
	env := stagestest.NewEnv()
	env.Searcher.Results = map[string][]llm.Source{
		"parking sensors": {{URI: "https://example.com/b", Title: "B again"}, {URI: "https://example.com/c", Title: "C"}},
	}
	env.Script.Override(stages.StageResearch, func(info llm.CallInfo, system, prompt string) (string, error) {
		switch info.Step {
		case stages.StepGaps:
			return `{"queries":["parking sensors","parking prices"]}`, nil
		case stages.StepFollowUp:
			return "finding for " + prompt, nil
		}
		return stagestest.Answer(info)
	})

	res, u, err := env.Runner.Research(context.Background(), "Parking in cities")
	require.NoError(t, err)

	calls := env.Model.CallsFor(stages.StageResearch)
	require.Len(t, calls, 6)
	assert.Equal(t, stages.StepGround, calls[0].Info.Step)
	assert.Equal(t, stages.StepGaps, calls[1].Info.Step)
	assert.ElementsMatch(t, []string{stages.StepFollowUp, stages.StepFollowUp}, steps(calls[2:4]))
	assert.Equal(t, stages.StepMerge, calls[4].Info.Step)
	assert.Equal(t, stages.StepParse, calls[5].Info.Step)

	assert.Equal(t, llm.TierQuality, calls[0].Info.Tier)
	assert.Equal(t, llm.TierFast, calls[5].Info.Tier, "structured parse always runs on the cheapest tier")
	assert.Contains(t, calls[5].Prompt, "Merged findings")

	uris := make([]string, len(res.Sources))
	for i, s := range res.Sources {
		uris[i] = s.URI
	}
	assert.Equal(t, []string{"https://example.com/a", "https://example.com/b", "https://example.com/c"}, uris)
	assert.Equal(t, "A", res.Sources[0].Title)
	assert.Equal(t, "Urban parking is scarce", res.Summary)

	assert.Equal(t, usage.Usage{Input: 60, Output: 30, Total: 90}, u)
}

func TestResearchFastRunnerSkipsGapAnalysis(t *testing.T) {
	env := stagestest.NewEnv()

	_, u, err := env.Runner.Fast().Research(context.Background(), "Parking")
	require.NoError(t, err)

	calls := env.Model.CallsFor(stages.StageResearch)
	assert.Equal(t, []string{stages.StepGround, stages.StepParse}, steps(calls))
	assert.Equal(t, llm.TierFast, calls[0].Info.Tier)
	assert.Equal(t, 30, u.Total)
}

func TestResearchGapAnalysisDisabled(t *testing.T) {
	env := stagestest.NewEnv(stages.WithGapAnalysis(false))

	_, _, err := env.Runner.TechScout(context.Background(), "Parking", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{stages.StepGround, stages.StepParse}, steps(env.Model.CallsFor(stages.StageTechScout)))
}

func TestFollowUpFailuresAreIgnored(t *testing.T) {
	env := stagestest.NewEnv()
	env.Script.Override(stages.StageResearch, func(info llm.CallInfo, system, prompt string) (string, error) {
		switch info.Step {
		case stages.StepGaps:
			return `{"queries":["q1","q2"]}`, nil
		case stages.StepFollowUp:
			return "", errors.New("upstream exploded")
		}
		return stagestest.Answer(info)
	})

	res, _, err := env.Runner.Research(context.Background(), "Parking")
	require.NoError(t, err)
	require.NotNil(t, res)

	calls := env.Model.CallsFor(stages.StageResearch)
	last := calls[len(calls)-1]
	assert.Equal(t, stages.StepParse, last.Info.Step)
	assert.True(t, strings.HasPrefix(last.Prompt, "Draft findings"), "parse falls back to the draft")
	assert.NotContains(t, steps(calls), stages.StepMerge)
}

func TestGapAnalysisFailureDegrades(t *testing.T) {
	env := stagestest.NewEnv()
	env.Script.Override(stages.StageTechScout, func(info llm.CallInfo, system, prompt string) (string, error) {
		if info.Step == stages.StepGaps {
			return "not json at all", nil
		}
		return stagestest.Answer(info)
	})

	res, _, err := env.Runner.TechScout(context.Background(), "Parking", nil, nil)
	require.NoError(t, err)
	assert.Len(t, res.Technologies, 2)
}

func TestGroundingFailureFailsStage(t *testing.T) {
	env := stagestest.NewEnv()
	env.Searcher.Err = errors.New("search backend down")

	_, _, err := env.Runner.Research(context.Background(), "Parking")
	require.Error(t, err)
	var se *llm.StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, stages.StageResearch, se.Stage)
	assert.Equal(t, llm.KindOther, se.Kind)
}

func TestPersonaUsesFrameAndAvatar(t *testing.T) {
	env := stagestest.NewEnv()
	frame := &stages.ProblemFrame{Title: "Visibility", CoreProblem: stagestest.Frames[1]}

	p, u, err := env.Runner.Persona(context.Background(), "Parking", nil, frame)
	require.NoError(t, err)

	calls := env.Model.CallsFor(stages.StagePersona)
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Prompt, stagestest.Frames[1])
	assert.Equal(t, "img:portrait of a nurse", p.Avatar)
	assert.Equal(t, usage.Usage{Input: 10, Output: 6, Total: 16}, u)
}

func scriptIdeas() *stages.IdeationResult {
	return &stages.IdeationResult{Ideas: []stages.Idea{
		{Title: "SpotShare"}, {Title: "KerbSense"}, {Title: "ShiftPark"},
	}}
}

func TestScoreRanksDescending(t *testing.T) {
	env := stagestest.NewEnv()

	res, _, err := env.Runner.Score(context.Background(), scriptIdeas(), nil)
	require.NoError(t, err)

	var titles []string
	for _, s := range res.Scores {
		titles = append(titles, s.IdeaTitle)
	}
	assert.Equal(t, []string{"ShiftPark", "SpotShare", "KerbSense"}, titles)
	assert.Equal(t, 23, res.Scores[0].Total())
}

func TestScoreRejectsEmptyAndUnknownIdeas(t *testing.T) {
	for name, body := range map[string]string{
		"empty":   `{"scores":[]}`,
		"unknown": `{"scores":[{"ideaTitle":"ParkGhost","desirability":9,"feasibility":9,"viability":9,"rationale":"x"}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			env := stagestest.NewEnv()
			env.Script.Override(stages.StageScoring, func(llm.CallInfo, string, string) (string, error) {
				return body, nil
			})

			res, _, err := env.Runner.Score(context.Background(), scriptIdeas(), nil)
			assert.Nil(t, res)
			var se *llm.StageError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, stages.StageScoring, se.Stage)
			assert.Equal(t, llm.KindOther, se.Kind)
			assert.Len(t, env.Model.CallsFor(stages.StageScoring), 1)
		})
	}
}

func TestScoreCanonicalizesIdeaTitles(t *testing.T) {
	env := stagestest.NewEnv()
	env.Script.Override(stages.StageScoring, func(llm.CallInfo, string, string) (string, error) {
		return `{"scores":[{"ideaTitle":" shiftpark ","desirability":8,"feasibility":8,"viability":7,"rationale":"ok"}]}`, nil
	})

	res, _, err := env.Runner.Score(context.Background(), scriptIdeas(), nil)
	require.NoError(t, err)
	require.Len(t, res.Scores, 1)
	assert.Equal(t, "ShiftPark", res.Scores[0].IdeaTitle)
}

func TestFramingRequiresThreeFrames(t *testing.T) {
	env := stagestest.NewEnv()
	env.Script.Override(stages.StageFraming, func(llm.CallInfo, string, string) (string, error) {
		return `{"frames":[{"title":"a","coreProblem":"a"},{"title":"b","coreProblem":"b"}]}`, nil
	})

	_, _, err := env.Runner.FrameProblem(context.Background(), "Parking", nil)
	var se *llm.StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, stages.StageFraming, se.Stage)
	assert.Equal(t, llm.KindOther, se.Kind)
	assert.Len(t, env.Model.CallsFor(stages.StageFraming), 1, "validation failures are not retried")
}

func TestClosedEnumsRejected(t *testing.T) {
	env := stagestest.NewEnv()
	env.Script.Override(stages.StageRisks, func(llm.CallInfo, string, string) (string, error) {
		return `{"risks":[{"category":"social","description":"x","likelihood":"low"}]}`, nil
	})
	env.Script.Override(stages.StageFinancialModel, func(llm.CallInfo, string, string) (string, error) {
		return `{"scenarios":[{"type":"base","projections":[]},{"type":"base","projections":[]}]}`, nil
	})

	_, _, err := env.Runner.Risks(context.Background(), stages.Dossier{})
	assert.Error(t, err)
	_, _, err = env.Runner.FinancialModel(context.Background(), stages.Dossier{}, &stages.LeanCanvas{})
	assert.ErrorContains(t, err, "duplicate scenario")
}

func TestStoryboardImageFailuresDegrade(t *testing.T) {
	env := stagestest.NewEnv()
	env.Images.Fail = map[string]error{"panel two": errors.New("429 daily limit reached")}

	sb, u, err := env.Runner.Storyboard(context.Background(), stages.Dossier{}, &stages.ValueProposition{}, &stages.LeanCanvas{})
	require.NoError(t, err)
	require.Len(t, sb.Panels, 2)
	assert.Equal(t, "img:panel one", sb.Panels[0].Image)
	assert.Empty(t, sb.Panels[1].Image)
	assert.Equal(t, 16, u.Total)
}

func TestPitchDeckImagesAndMemoWithoutDeck(t *testing.T) {
	env := stagestest.NewEnv()
	d := stages.Dossier{
		Challenge: "Parking",
		Brand:     &stages.BrandIdentity{Name: "Parklane", Banner: "huge-base64"},
	}

	deck, _, err := env.Runner.PitchDeck(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, "img:slide two", deck.Slides[1].Image)
	assert.NotContains(t, env.Model.CallsFor(stages.StagePitchDeck)[0].Prompt, "huge-base64")

	memo, _, err := env.Runner.InvestmentMemo(context.Background(), d, nil)
	require.NoError(t, err)
	assert.Equal(t, "invest", memo.Recommendation)
	assert.Contains(t, env.Model.CallsFor(stages.StageInvestmentMemo)[0].Prompt, "No pitch deck")
}

func TestDevilsAdvocateKeepsOrigin(t *testing.T) {
	env := stagestest.NewEnv()
	current := stages.Solution{Title: "ShiftPark", Origin: stages.OriginUser}
	history := []stages.Refinement{{Critique: "too expensive"}}

	ref, _, err := env.Runner.DevilsAdvocate(context.Background(), current, history)
	require.NoError(t, err)
	assert.Equal(t, "ShiftPark Pro", ref.Revised.Title)
	assert.Equal(t, stages.OriginUser, ref.Revised.Origin)
	assert.Contains(t, env.Model.CallsFor(stages.StageDevilsAdvocate)[0].Prompt, "- too expensive")
}

func TestEvolveMarksAIOrigin(t *testing.T) {
	env := stagestest.NewEnv()
	sol, _, err := env.Runner.Evolve(context.Background(), nil, stages.Idea{Title: "ShiftPark"}, nil)
	require.NoError(t, err)
	assert.Equal(t, stages.OriginAI, sol.Origin)
}

func TestVideoPollsUntilDone(t *testing.T) {
	env := stagestest.NewEnv()

	v, u, err := env.Runner.Video(context.Background(), stages.Dossier{})
	require.NoError(t, err)
	assert.Equal(t, "op-1", v.OperationID)
	assert.Equal(t, "https://video.example/op-1.mp4", v.URI)
	assert.Equal(t, 2, env.Video.Polls())
	assert.Equal(t, 15, u.Total)
}

func TestVideoCancellation(t *testing.T) {
	env := stagestest.NewEnv()
	env.Video.Block = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	v, _, err := env.Runner.Video(ctx, stages.Dossier{})
	assert.Nil(t, v)
	require.ErrorIs(t, err, llm.ErrCancelled)
	assert.Equal(t, llm.KindCancelled, llm.Classify(err))
}

func TestVideoWithoutGenerator(t *testing.T) {
	env := stagestest.NewEnv(stages.WithVideo(nil))

	_, _, err := env.Runner.Video(context.Background(), stages.Dossier{})
	require.ErrorIs(t, err, stages.ErrNoVideoGenerator)
	assert.Empty(t, env.Model.Calls())
}

func TestDossierDistill(t *testing.T) {
	d := stages.Dossier{
		Persona:    &stages.Persona{Name: "Maya", Avatar: "AVATAR-DATA"},
		Storyboard: &stages.Storyboard{Panels: []stages.Panel{{Caption: "c", Image: "img"}}},
		Research:   &stages.ResearchResult{Summary: "s", Sources: []llm.Source{{URI: "u"}}},
	}

	out := d.Distill()
	assert.Empty(t, out.Persona.Avatar)
	assert.Empty(t, out.Storyboard.Panels[0].Image)
	assert.Nil(t, out.Research.Sources)

	assert.Equal(t, "AVATAR-DATA", d.Persona.Avatar, "original is untouched")
	assert.Equal(t, "img", d.Storyboard.Panels[0].Image)
	assert.Len(t, d.Research.Sources, 1)
	assert.NotContains(t, d.Render(), "AVATAR-DATA")
}

func TestParseAnalysisKind(t *testing.T) {
	for in, want := range map[string]stages.AnalysisKind{
		"red_team":      stages.AnalysisRedTeam,
		"red-team":      stages.AnalysisRedTeam,
		"ethics":        stages.AnalysisEthics,
		"success_score": stages.AnalysisSuccessScore,
		"score":         stages.AnalysisSuccessScore,
	} {
		got, err := stages.ParseAnalysisKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := stages.ParseAnalysisKind("horoscope")
	assert.Error(t, err)
}
