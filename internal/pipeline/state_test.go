package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rahul/foundry/internal/stages"
)

func TestPhaseTransitions(t *testing.T) {
	cases := []struct {
		from, to Phase
		ok       bool
	}{
		{PhaseIdle, PhaseCoreRunning, true},
		{PhaseIdle, PhaseFinished, false},
		{PhaseCoreRunning, PhaseCheckpointFraming, true},
		{PhaseCheckpointFraming, PhaseCoreRunning, true},
		{PhaseCheckpointFraming, PhaseCoreFinished, false},
		{PhaseCoreFinished, PhaseDeliverablesGenerating, true},
		{PhaseDeliverablesGenerating, PhaseFinished, true},
		{PhaseFinished, PhaseCoreRunning, false},
		{PhaseError, PhaseCoreRunning, false},
		{PhaseError, PhaseIdle, true},
		{PhaseFinished, PhaseIdle, true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, tc.from.CanTransition(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestEveryPhaseHasTransitions(t *testing.T) {
	for _, p := range []Phase{
		PhaseIdle, PhaseCoreRunning, PhaseCheckpointChallenge, PhaseCheckpointFraming,
		PhaseCheckpointIdea, PhaseCheckpointBrandName, PhaseCoreFinished,
		PhaseDeliverablesGenerating, PhaseFinished, PhaseError,
	} {
		_, ok := transitions[p]
		assert.True(t, ok, p)
	}
}

func TestStateValidate(t *testing.T) {
	s := &State{
		Solution:   &stages.Solution{Origin: stages.OriginUser},
		LeanCanvas: &stages.LeanCanvas{},
		Storyboard: &stages.Storyboard{},
	}
	err := s.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), SlotValueProposition)

	s.ValueProposition = &stages.ValueProposition{}
	assert.NoError(t, s.Validate())

	s.InvestmentMemo = &stages.InvestmentMemo{}
	assert.NoError(t, s.Validate(), "investment memo does not need the pitch deck")

	s.Solution.Origin = stages.OriginAI
	assert.Error(t, s.Validate(), "an AI solution needs its selected idea")
}

func TestStateClear(t *testing.T) {
	s := &State{RunID: "r", Phase: PhaseFinished, Research: &stages.ResearchResult{}}
	s.Clear()
	assert.Equal(t, PhaseIdle, s.Phase)
	assert.Empty(t, s.RunID)
	assert.Empty(t, s.FilledSlots())
}

func TestWorkflowSlotsAreKnown(t *testing.T) {
	for _, wf := range [][]step{problemFirst, solutionFirst} {
		for _, st := range wf {
			_, ok := slotIndex[st.slot]
			assert.True(t, ok, st.slot)
			if st.checkpoint == "" {
				assert.NotNil(t, st.run, st.slot)
			}
		}
	}
	for _, d := range deliverables {
		_, ok := slotIndex[d.slot]
		assert.True(t, ok, d.slot)
	}
}

func TestParseDeliverables(t *testing.T) {
	ids, err := ParseDeliverables("financial-modeler, LEAN_CANVAS pitch_deck")
	require.NoError(t, err)
	assert.Equal(t, []DeliverableID{DeliverableFinancialModeler, DeliverableLeanCanvas, DeliverablePitchDeck}, ids)

	_, err = ParseDeliverables("NOPE")
	assert.Error(t, err)
	assert.Len(t, AllDeliverables(), 10)
}
