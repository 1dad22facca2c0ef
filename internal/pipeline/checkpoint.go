package pipeline

import (
	"context"
	"fmt"
)

// CheckpointOption is one candidate presented to the user.
type CheckpointOption struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// Checkpoint is the pending user decision, derived from phase and state.
type Checkpoint struct {
	Kind    Phase              `json:"kind"`
	Options []CheckpointOption `json:"options"`
}

// Checkpoint returns the pending decision, or nil outside checkpoint
// phases.
func (c *Controller) Checkpoint() *Checkpoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return checkpointOf(&c.state)
}

func checkpointOf(s *State) *Checkpoint {
	if !s.Phase.IsCheckpoint() {
		return nil
	}
	cp := &Checkpoint{Kind: s.Phase}
	switch s.Phase {
	case PhaseCheckpointChallenge:
		if s.MarketFit != nil {
			for _, ch := range s.MarketFit.SuggestedChallenges {
				cp.Options = append(cp.Options, CheckpointOption{Title: ch.Title, Detail: ch.Statement})
			}
		}
	case PhaseCheckpointFraming:
		if s.Framing != nil {
			for _, f := range s.Framing.Frames {
				cp.Options = append(cp.Options, CheckpointOption{Title: f.Title, Detail: f.CoreProblem})
			}
		}
	case PhaseCheckpointIdea:
		if s.Scores != nil {
			for _, sc := range s.Scores.Scores {
				cp.Options = append(cp.Options, CheckpointOption{
					Title:  sc.IdeaTitle,
					Detail: fmt.Sprintf("score %d (D%d F%d V%d) %s", sc.Total(), sc.Desirability, sc.Feasibility, sc.Viability, sc.Rationale),
				})
			}
		}
	case PhaseCheckpointBrandName:
		if s.BrandNames != nil {
			for _, n := range s.BrandNames.Names {
				cp.Options = append(cp.Options, CheckpointOption{Title: n.Name, Detail: n.Rationale})
			}
		}
	}
	return cp
}

// ResumeChallenge folds the selected suggested challenge into the run.
func (c *Controller) ResumeChallenge(ctx context.Context, index int) error {
	return c.resume(ctx, PhaseCheckpointChallenge, index, func(s *State) error {
		ch := s.MarketFit.SuggestedChallenges[index]
		s.SelectedChallenge = &ch
		s.Challenge = ch.Statement
		return nil
	})
}

// ResumeProblemFrame folds the selected problem frame into the run.
func (c *Controller) ResumeProblemFrame(ctx context.Context, index int) error {
	return c.resume(ctx, PhaseCheckpointFraming, index, func(s *State) error {
		f := s.Framing.Frames[index]
		s.SelectedFrame = &f
		return nil
	})
}

// ResumeIdea selects an idea by its rank in the scoring.
func (c *Controller) ResumeIdea(ctx context.Context, index int) error {
	return c.resume(ctx, PhaseCheckpointIdea, index, func(s *State) error {
		title := s.Scores.Scores[index].IdeaTitle
		idea, ok := ideaByTitle(s.Ideas, title)
		if !ok {
			return fmt.Errorf("%w: no idea titled %q", ErrInvalidSelection, title)
		}
		s.SelectedIdea = &idea
		return nil
	})
}

func (c *Controller) ResumeBrandName(ctx context.Context, index int) error {
	return c.resume(ctx, PhaseCheckpointBrandName, index, func(s *State) error {
		n := s.BrandNames.Names[index]
		s.SelectedBrandName = &n
		return nil
	})
}

// resume applies a selection if the run is paused at kind and continues
// the workflow. Anything else leaves the state untouched.
func (c *Controller) resume(ctx context.Context, kind Phase, index int, fold func(*State) error) error {
	if err := c.acquire(); err != nil {
		return err
	}
	defer c.release()

	c.mu.Lock()
	if c.state.Phase != kind {
		phase := c.state.Phase
		c.mu.Unlock()
		return fmt.Errorf("%w: expected %s, run is %s", ErrCheckpointMismatch, kind, phase)
	}
	cp := checkpointOf(&c.state)
	if index < 0 || index >= len(cp.Options) {
		c.mu.Unlock()
		return fmt.Errorf("%w: %d of %d", ErrInvalidSelection, index+1, len(cp.Options))
	}
	if err := fold(&c.state); err != nil {
		c.mu.Unlock()
		return err
	}
	c.state.UpdatedAt = c.now()
	c.mu.Unlock()

	if err := c.transition(PhaseCoreRunning); err != nil {
		return err
	}
	return c.advance(ctx)
}
