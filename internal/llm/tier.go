package llm

import (
	"context"
	"fmt"
)

// Tier selects a model by cost/latency trade-off.
type Tier string

const (
	TierFast     Tier = "fast"
	TierQuality  Tier = "quality"
	TierCreative Tier = "creative"
)

// Cheapest is the tier every fallback lands on.
const Cheapest = TierFast

func ParseTier(s string) (Tier, error) {
	switch Tier(s) {
	case TierFast, TierQuality, TierCreative:
		return Tier(s), nil
	}
	return "", fmt.Errorf("unknown model tier %q", s)
}

// CallInfo describes the call in flight. It travels in the context so that
// loggers and test doubles can attribute a model request.
type CallInfo struct {
	RunID string
	Stage string
	Step  string
	Tier  Tier
}

type callInfoKey struct{}

// WithCallInfo returns a context carrying info.
func WithCallInfo(ctx context.Context, info CallInfo) context.Context {
	return context.WithValue(ctx, callInfoKey{}, info)
}

// CallInfoFrom returns the call info stored in ctx, if any.
func CallInfoFrom(ctx context.Context) CallInfo {
	info, _ := ctx.Value(callInfoKey{}).(CallInfo)
	return info
}

func withStep(ctx context.Context, stage, step string, tier Tier) context.Context {
	info := CallInfoFrom(ctx)
	info.Stage = stage
	info.Step = step
	info.Tier = tier
	return WithCallInfo(ctx, info)
}
