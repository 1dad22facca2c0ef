package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/rahul/foundry/internal/stages"
	"github.com/rahul/foundry/internal/usage"
)

// DeliverableID identifies an independently selectable deliverable.
type DeliverableID string

const (
	DeliverableValueProposition DeliverableID = "VALUE_PROPOSITION"
	DeliverableLeanCanvas       DeliverableID = "LEAN_CANVAS"
	DeliverableStoryboard       DeliverableID = "STORYBOARD"
	DeliverableFinancialModeler DeliverableID = "FINANCIAL_MODELER"
	DeliverableStrategy         DeliverableID = "STRATEGY"
	DeliverableRisk             DeliverableID = "RISK"
	DeliverableBlueprint        DeliverableID = "BLUEPRINT"
	DeliverableGTM              DeliverableID = "GTM"
	DeliverablePitchDeck        DeliverableID = "PITCH_DECK"
	DeliverableInvestmentMemo   DeliverableID = "INVESTMENT_MEMO"
)

type deliverable struct {
	id    DeliverableID
	slot  string
	stage string
	run   stageFn
}

// deliverables is ordered by dependency. Strategy, risk, blueprint and GTM
// only need the solution but still run one at a time.
var deliverables = []deliverable{
	{DeliverableValueProposition, SlotValueProposition, stages.StageValueProposition, func(ctx context.Context, r *stages.Runner, s *State) (func(*State), usage.Usage, error) {
		res, u, err := r.ValueProposition(ctx, s.Dossier())
		return func(st *State) { st.ValueProposition = res }, u, err
	}},
	{DeliverableLeanCanvas, SlotLeanCanvas, stages.StageLeanCanvas, func(ctx context.Context, r *stages.Runner, s *State) (func(*State), usage.Usage, error) {
		res, u, err := r.LeanCanvas(ctx, s.Dossier())
		return func(st *State) { st.LeanCanvas = res }, u, err
	}},
	{DeliverableStoryboard, SlotStoryboard, stages.StageStoryboard, func(ctx context.Context, r *stages.Runner, s *State) (func(*State), usage.Usage, error) {
		res, u, err := r.Storyboard(ctx, s.Dossier(), s.ValueProposition, s.LeanCanvas)
		return func(st *State) { st.Storyboard = res }, u, err
	}},
	{DeliverableFinancialModeler, SlotFinancialModel, stages.StageFinancialModel, func(ctx context.Context, r *stages.Runner, s *State) (func(*State), usage.Usage, error) {
		res, u, err := r.FinancialModel(ctx, s.Dossier(), s.LeanCanvas)
		return func(st *State) { st.FinancialModel = res }, u, err
	}},
	{DeliverableStrategy, SlotStrategy, stages.StageStrategy, func(ctx context.Context, r *stages.Runner, s *State) (func(*State), usage.Usage, error) {
		res, u, err := r.Strategy(ctx, s.Dossier())
		return func(st *State) { st.Strategy = res }, u, err
	}},
	{DeliverableRisk, SlotRisks, stages.StageRisks, func(ctx context.Context, r *stages.Runner, s *State) (func(*State), usage.Usage, error) {
		res, u, err := r.Risks(ctx, s.Dossier())
		return func(st *State) { st.Risks = res }, u, err
	}},
	{DeliverableBlueprint, SlotBlueprint, stages.StageBlueprint, func(ctx context.Context, r *stages.Runner, s *State) (func(*State), usage.Usage, error) {
		res, u, err := r.Blueprint(ctx, s.Dossier())
		return func(st *State) { st.Blueprint = res }, u, err
	}},
	{DeliverableGTM, SlotGoToMarket, stages.StageGoToMarket, func(ctx context.Context, r *stages.Runner, s *State) (func(*State), usage.Usage, error) {
		res, u, err := r.GoToMarket(ctx, s.Dossier())
		return func(st *State) { st.GoToMarket = res }, u, err
	}},
	{DeliverablePitchDeck, SlotPitchDeck, stages.StagePitchDeck, func(ctx context.Context, r *stages.Runner, s *State) (func(*State), usage.Usage, error) {
		res, u, err := r.PitchDeck(ctx, s.Dossier())
		return func(st *State) { st.PitchDeck = res }, u, err
	}},
	{DeliverableInvestmentMemo, SlotInvestmentMemo, stages.StageInvestmentMemo, func(ctx context.Context, r *stages.Runner, s *State) (func(*State), usage.Usage, error) {
		res, u, err := r.InvestmentMemo(ctx, s.Dossier(), s.PitchDeck)
		return func(st *State) { st.InvestmentMemo = res }, u, err
	}},
}

// AllDeliverables lists every deliverable in generation order.
func AllDeliverables() []DeliverableID {
	out := make([]DeliverableID, len(deliverables))
	for i, d := range deliverables {
		out[i] = d.id
	}
	return out
}

// ParseDeliverables reads a comma or space separated list of ids. Case and
// dashes are ignored.
func ParseDeliverables(s string) ([]DeliverableID, error) {
	known := make(map[DeliverableID]bool, len(deliverables))
	for _, d := range deliverables {
		known[d.id] = true
	}
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	var out []DeliverableID
	for _, f := range fields {
		id := DeliverableID(strings.ToUpper(strings.ReplaceAll(f, "-", "_")))
		if !known[id] {
			return nil, fmt.Errorf("unknown deliverable %q", f)
		}
		out = append(out, id)
	}
	return out, nil
}

func selected(ids []DeliverableID) map[DeliverableID]bool {
	m := make(map[DeliverableID]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}

// missingDeps returns the empty dependency slots of a deliverable.
func missingDeps(s *State, d deliverable) []string {
	var missing []string
	for _, dep := range slotIndex[d.slot].deps {
		if !s.Filled(dep) {
			missing = append(missing, dep)
		}
	}
	return missing
}
