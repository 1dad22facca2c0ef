package stages

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rahul/foundry/internal/llm"
	"github.com/rahul/foundry/internal/usage"
)

// ErrNoVideoGenerator is returned when no video backend is configured.
var ErrNoVideoGenerator = errors.New("no video generator configured")

// Video writes a promo prompt, starts the operation and polls it at a
// fixed interval until it completes. Cancelling ctx stops the loop at the
// next check and discards the operation.
func (r *Runner) Video(ctx context.Context, d Dossier) (*Video, usage.Usage, error) {
	if r.video == nil {
		return nil, usage.Usage{}, &llm.StageError{Stage: StageVideo, Kind: llm.KindOther, Err: ErrNoVideoGenerator}
	}
	sys, err := r.system(StageVideo, promptVideo)
	if err != nil {
		return nil, usage.Usage{}, err
	}
	p := (&prompt{}).
		section("Venture", d.Name()).
		section("Brand", d.Distill().Brand).
		section("Solution", d.Solution)
	text, u, err := r.inv.Text(ctx, llm.Request{
		Stage:  StageVideo,
		Step:   StepGenerate,
		System: sys,
		Prompt: p.String(),
		Tier:   r.tier(llm.TierCreative),
	})
	if err != nil {
		return nil, u, err
	}

	op, err := r.video.Start(ctx, strings.TrimSpace(text))
	if err != nil {
		return nil, u, llm.AsStageError(StageVideo, err)
	}

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, u, cancelled(StageVideo, ctx.Err())
		case <-ticker.C:
		}

		status, err := r.video.Poll(ctx, op)
		if err != nil {
			if ctx.Err() != nil {
				return nil, u, cancelled(StageVideo, ctx.Err())
			}
			return nil, u, llm.AsStageError(StageVideo, fmt.Errorf("poll %s: %w", op, err))
		}
		if status.Error != "" {
			return nil, u, &llm.StageError{Stage: StageVideo, Kind: llm.KindOther, Err: errors.New(status.Error)}
		}
		if status.Done {
			return &Video{OperationID: op, URI: status.URI}, u, nil
		}
	}
}

func cancelled(stage string, cause error) *llm.StageError {
	return &llm.StageError{Stage: stage, Kind: llm.KindCancelled, Err: fmt.Errorf("%w: %v", llm.ErrCancelled, cause)}
}
