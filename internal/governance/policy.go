package governance

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// Effect defines the result of a policy evaluation.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Actions evaluated by the engine.
const (
	ActionStartRun = "start_run"
	ActionAnalyze  = "analyze"
	ActionVideo    = "video"
	ActionExport   = "export"
)

// ErrNotAuthorized is returned by RunGuard when the policy denies a request.
var ErrNotAuthorized = errors.New("not authorized")

// Request describes who wants to do what.
type Request struct {
	Owner  string
	Action string
	Detail string
}

// Result contains the outcome of a policy evaluation.
type Result struct {
	Effect Effect
	Reason string
}

// PolicyEngine evaluates requests against a set of rules.
type PolicyEngine interface {
	Evaluate(ctx context.Context, req Request) (Result, error)
}

// RunCounter reports how many runs an owner has started.
type RunCounter interface {
	RunCount(ctx context.Context, owner string) (int, error)
}

// DefaultPolicyEngine denies listed actions, owners matching a pattern and
// owners over their run quota.
type DefaultPolicyEngine struct {
	DeniedActions map[string]bool
	DeniedOwners  []*regexp.Regexp
	// AllowedOwners, when non-empty, is the only set of owners let through.
	AllowedOwners map[string]bool
	// MaxRunsPerOwner is ignored when zero or when Counter is nil.
	MaxRunsPerOwner int
	Counter         RunCounter
}

func NewDefaultPolicyEngine() *DefaultPolicyEngine {
	return &DefaultPolicyEngine{
		DeniedActions: make(map[string]bool),
		DeniedOwners:  make([]*regexp.Regexp, 0),
		AllowedOwners: make(map[string]bool),
	}
}

func (e *DefaultPolicyEngine) DenyAction(name string) {
	e.DeniedActions[name] = true
}

func (e *DefaultPolicyEngine) AllowOwner(owner string) {
	e.AllowedOwners[owner] = true
}

func (e *DefaultPolicyEngine) DenyOwners(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	e.DeniedOwners = append(e.DeniedOwners, re)
	return nil
}

func (e *DefaultPolicyEngine) Evaluate(ctx context.Context, req Request) (Result, error) {
	if e.DeniedActions[req.Action] {
		return Result{
			Effect: EffectDeny,
			Reason: fmt.Sprintf("Action '%s' is restricted by system policy", req.Action),
		}, nil
	}

	if len(e.AllowedOwners) > 0 && !e.AllowedOwners[req.Owner] {
		return Result{
			Effect: EffectDeny,
			Reason: fmt.Sprintf("Owner '%s' is not on the allow list", req.Owner),
		}, nil
	}

	for _, re := range e.DeniedOwners {
		if re.MatchString(req.Owner) {
			return Result{
				Effect: EffectDeny,
				Reason: fmt.Sprintf("Owner matches restricted pattern: %s", re.String()),
			}, nil
		}
	}

	if req.Action == ActionStartRun && e.MaxRunsPerOwner > 0 && e.Counter != nil {
		n, err := e.Counter.RunCount(ctx, req.Owner)
		if err != nil {
			return Result{}, fmt.Errorf("count runs for %s: %w", req.Owner, err)
		}
		if n >= e.MaxRunsPerOwner {
			return Result{
				Effect: EffectDeny,
				Reason: fmt.Sprintf("Run limit reached (%d of %d)", n, e.MaxRunsPerOwner),
			}, nil
		}
	}

	return Result{
		Effect: EffectAllow,
		Reason: "Approved by default policy",
	}, nil
}

// RunGuard adapts a PolicyEngine to the controller's authorization hook.
type RunGuard struct {
	Engine PolicyEngine
}

// Authorize evaluates a start_run request for owner.
func (g RunGuard) Authorize(ctx context.Context, owner string) error {
	return g.Check(ctx, Request{Owner: owner, Action: ActionStartRun})
}

// Check returns ErrNotAuthorized wrapped with the denial reason.
func (g RunGuard) Check(ctx context.Context, req Request) error {
	if g.Engine == nil {
		return nil
	}
	res, err := g.Engine.Evaluate(ctx, req)
	if err != nil {
		return err
	}
	if res.Effect == EffectDeny {
		return fmt.Errorf("%w: %s", ErrNotAuthorized, res.Reason)
	}
	return nil
}
