package pipeline

import (
	"context"
	"fmt"

	"github.com/rahul/foundry/internal/llm"
	"github.com/rahul/foundry/internal/stages"
	"github.com/rahul/foundry/internal/usage"
)

// Refine runs one Devil's Advocate iteration on the current solution. The
// previous solution is appended to the history. If CancelRefinement is
// called before the iteration completes its result is discarded.
func (c *Controller) Refine(ctx context.Context) error {
	if err := c.acquire(); err != nil {
		return err
	}
	defer c.release()

	snap := c.Snapshot()
	if snap.Phase != PhaseCoreFinished {
		return fmt.Errorf("%w: refinement needs %s, run is %s", ErrInvalidPhase, PhaseCoreFinished, snap.Phase)
	}
	if snap.Solution == nil {
		return fmt.Errorf("%w: no solution to refine", ErrInvalidPhase)
	}

	rctx, cancel := context.WithCancel(ctx)
	defer cancel()
	op := &inflight{cancel: cancel}
	c.mu.Lock()
	c.refining = op
	c.mu.Unlock()

	before := *snap.Solution
	fold, err := c.callStage(rctx, c.runnerFor(&snap), stages.StageDevilsAdvocate,
		func(ctx context.Context, r *stages.Runner, s *State) (func(*State), usage.Usage, error) {
			res, u, err := r.DevilsAdvocate(ctx, before, s.Refinements)
			return func(st *State) {
				st.SolutionHistory = append(st.SolutionHistory, before)
				st.Refinements = append(st.Refinements, *res)
				revised := res.Revised
				st.Solution = &revised
			}, u, err
		})

	c.mu.Lock()
	cancelled := op.cancelled
	c.refining = nil
	c.mu.Unlock()

	if cancelled {
		return &llm.StageError{Stage: stages.StageDevilsAdvocate, Kind: llm.KindCancelled, Err: llm.ErrCancelled}
	}
	if err != nil {
		c.fail(ctx, stages.StageDevilsAdvocate, err)
		return err
	}
	c.apply(fold)
	c.persist(ctx)
	return nil
}

// CancelRefinement abandons the in-flight refinement. The solution it was
// started from stays current.
func (c *Controller) CancelRefinement() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.refining == nil {
		return ErrNothingToCancel
	}
	c.refining.cancelled = true
	c.refining.cancel()
	return nil
}

// Approve accepts the current solution and generates the selected
// deliverables.
func (c *Controller) Approve(ctx context.Context) error {
	if err := c.acquire(); err != nil {
		return err
	}
	defer c.release()

	snap := c.Snapshot()
	if snap.Phase != PhaseCoreFinished {
		return fmt.Errorf("%w: approval needs %s, run is %s", ErrInvalidPhase, PhaseCoreFinished, snap.Phase)
	}
	return c.generateDeliverables(ctx, c.runnerFor(&snap))
}
