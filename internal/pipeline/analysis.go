package pipeline

import (
	"context"
	"fmt"

	"github.com/rahul/foundry/internal/llm"
	"github.com/rahul/foundry/internal/stages"
	"github.com/rahul/foundry/internal/usage"
)

var analyses = map[stages.AnalysisKind]struct {
	stage string
	run   stageFn
}{
	stages.AnalysisRedTeam: {stages.StageRedTeam, func(ctx context.Context, r *stages.Runner, s *State) (func(*State), usage.Usage, error) {
		res, u, err := r.RedTeam(ctx, s.Dossier())
		return func(st *State) { st.RedTeam = res }, u, err
	}},
	stages.AnalysisEthics: {stages.StageEthicsAudit, func(ctx context.Context, r *stages.Runner, s *State) (func(*State), usage.Usage, error) {
		res, u, err := r.EthicsAudit(ctx, s.Dossier())
		return func(st *State) { st.EthicsAudit = res }, u, err
	}},
	stages.AnalysisSuccessScore: {stages.StageSuccessScore, func(ctx context.Context, r *stages.Runner, s *State) (func(*State), usage.Usage, error) {
		res, u, err := r.SuccessScore(ctx, s.Dossier())
		return func(st *State) { st.SuccessScore = res }, u, err
	}},
}

// Analyze runs a post-finish analysis. It may be repeated; the latest
// result replaces the previous one and the phase never changes, even on
// failure.
func (c *Controller) Analyze(ctx context.Context, kind stages.AnalysisKind) error {
	a, ok := analyses[kind]
	if !ok {
		return fmt.Errorf("unknown analysis %q", kind)
	}
	if err := c.acquire(); err != nil {
		return err
	}
	defer c.release()

	snap := c.Snapshot()
	if snap.Phase != PhaseFinished {
		return fmt.Errorf("%w: analyses need %s, run is %s", ErrInvalidPhase, PhaseFinished, snap.Phase)
	}
	fold, err := c.callStage(ctx, c.runnerFor(&snap), a.stage, a.run)
	if err != nil {
		return err
	}
	c.apply(fold)
	c.persist(ctx)
	return nil
}

// GenerateVideo renders the promo video. It blocks until the operation
// completes or CancelVideo is called; a cancelled video leaves no trace.
func (c *Controller) GenerateVideo(ctx context.Context) error {
	if err := c.acquire(); err != nil {
		return err
	}
	defer c.release()

	snap := c.Snapshot()
	if snap.Phase != PhaseFinished {
		return fmt.Errorf("%w: video needs %s, run is %s", ErrInvalidPhase, PhaseFinished, snap.Phase)
	}

	vctx, cancel := context.WithCancel(ctx)
	defer cancel()
	op := &inflight{cancel: cancel}
	c.mu.Lock()
	c.filming = op
	c.mu.Unlock()

	fold, err := c.callStage(vctx, c.runnerFor(&snap), stages.StageVideo,
		func(ctx context.Context, r *stages.Runner, s *State) (func(*State), usage.Usage, error) {
			res, u, err := r.Video(ctx, s.Dossier())
			return func(st *State) { st.Video = res }, u, err
		})

	c.mu.Lock()
	cancelled := op.cancelled
	c.filming = nil
	c.mu.Unlock()

	if cancelled {
		return &llm.StageError{Stage: stages.StageVideo, Kind: llm.KindCancelled, Err: llm.ErrCancelled}
	}
	if err != nil {
		return err
	}
	c.apply(fold)
	c.persist(ctx)
	return nil
}

func (c *Controller) CancelVideo() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.filming == nil {
		return ErrNothingToCancel
	}
	c.filming.cancelled = true
	c.filming.cancel()
	return nil
}
