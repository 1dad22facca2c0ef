package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rahul/foundry/internal/llm"
	"github.com/rahul/foundry/internal/observability"
	"github.com/rahul/foundry/internal/stages"
	"github.com/rahul/foundry/internal/store"
	"github.com/rahul/foundry/internal/usage"
)

// Store persists runs and counts them per owner.
type Store interface {
	SaveRun(ctx context.Context, run store.Run) error
	LoadRun(ctx context.Context, id string) (store.Run, error)
	IncrementUsage(ctx context.Context, owner string) (int, error)
}

// Authorizer decides whether owner may start a new run.
type Authorizer interface {
	Authorize(ctx context.Context, owner string) error
}

// Observer is notified of phase changes and stage progress. Callbacks run
// on the controller's goroutine without locks held.
type Observer interface {
	OnTransition(runID string, from, to Phase)
	OnStage(runID, stage string, done bool, err error)
}

// RunOptions are fixed when a run starts.
type RunOptions struct {
	Framing      bool            `json:"framing"`
	Refinement   bool            `json:"refinement"`
	Fast         bool            `json:"fast"`
	Deliverables []DeliverableID `json:"deliverables"`
}

// DefaultRunOptions enables framing and refinement and every deliverable.
func DefaultRunOptions() RunOptions {
	return RunOptions{
		Framing:      true,
		Refinement:   true,
		Deliverables: AllDeliverables(),
	}
}

// RunInput starts a run. Problem-first needs a challenge; solution-first
// needs a solution. A solution given to a problem-first run replaces AI
// ideation.
type RunInput struct {
	Owner     string
	Mode      Mode
	Challenge string
	Solution  string
	Options   *RunOptions
}

func (in RunInput) validate() error {
	switch in.Mode {
	case ModeProblemFirst, "":
		if strings.TrimSpace(in.Challenge) == "" {
			return ErrEmptyInput
		}
	case ModeSolutionFirst:
		if strings.TrimSpace(in.Solution) == "" {
			return ErrEmptyInput
		}
	default:
		return fmt.Errorf("unknown workflow mode %q", in.Mode)
	}
	return nil
}

// inflight tracks a cancellable operation.
type inflight struct {
	cancel    context.CancelFunc
	cancelled bool
}

// Controller drives one run at a time through the phase machine. All
// operations are safe to call from multiple goroutines; long-running ones
// are rejected with ErrBusy while another is in progress.
type Controller struct {
	runner   *stages.Runner
	store    Store
	auth     Authorizer
	logger   *observability.Logger
	metrics  *observability.Metrics
	observer Observer
	defaults RunOptions
	acc      *usage.Accumulator
	now      func() time.Time

	mu       sync.Mutex
	state    State
	busy     bool
	refining *inflight
	filming  *inflight
}

type Option func(*Controller)

func WithStore(s Store) Option { return func(c *Controller) { c.store = s } }

func WithAuthorizer(a Authorizer) Option { return func(c *Controller) { c.auth = a } }

func WithLogger(l *observability.Logger) Option { return func(c *Controller) { c.logger = l } }

func WithMetrics(m *observability.Metrics) Option { return func(c *Controller) { c.metrics = m } }

func WithObserver(o Observer) Option { return func(c *Controller) { c.observer = o } }

// WithDefaults sets the options used when RunInput.Options is nil.
func WithDefaults(o RunOptions) Option { return func(c *Controller) { c.defaults = o } }

func NewController(runner *stages.Runner, opts ...Option) *Controller {
	c := &Controller{
		runner:   runner,
		defaults: DefaultRunOptions(),
		acc:      usage.NewAccumulator(),
		now:      time.Now,
		state:    State{Phase: PhaseIdle},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Phase
}

// Snapshot returns a copy of the state safe to read without locks.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() State {
	s := c.state
	s.SolutionHistory = append([]stages.Solution(nil), c.state.SolutionHistory...)
	s.Refinements = append([]stages.Refinement(nil), c.state.Refinements...)
	s.Usage = append([]usage.Entry(nil), c.state.Usage...)
	s.Options.Deliverables = append([]DeliverableID(nil), c.state.Options.Deliverables...)
	return s
}

// Usage returns the running total and per-stage breakdown.
func (c *Controller) Usage() (usage.Usage, []usage.Entry) {
	return c.acc.Total(), c.acc.Breakdown()
}

func (c *Controller) acquire() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return ErrBusy
	}
	c.busy = true
	return nil
}

func (c *Controller) release() {
	c.mu.Lock()
	c.busy = false
	c.mu.Unlock()
}

// Start authorizes the owner, records the run against their quota and
// runs the selected workflow until the first checkpoint or the end.
func (c *Controller) Start(ctx context.Context, in RunInput) error {
	if err := in.validate(); err != nil {
		return err
	}
	if err := c.acquire(); err != nil {
		return err
	}
	defer c.release()

	if p := c.Phase(); p != PhaseIdle {
		return fmt.Errorf("%w: run is %s, reset first", ErrInvalidPhase, p)
	}
	if c.auth != nil {
		if err := c.auth.Authorize(ctx, in.Owner); err != nil {
			return err
		}
	}
	if c.store != nil {
		if _, err := c.store.IncrementUsage(ctx, in.Owner); err != nil {
			return fmt.Errorf("record run usage: %w", err)
		}
	}

	opts := c.defaults
	if in.Options != nil {
		opts = *in.Options
	}
	mode := in.Mode
	if mode == "" {
		mode = ModeProblemFirst
	}
	now := c.now()

	c.mu.Lock()
	c.state = State{
		RunID:        uuid.NewString(),
		Owner:        in.Owner,
		Mode:         mode,
		Phase:        PhaseIdle,
		Options:      opts,
		Challenge:    strings.TrimSpace(in.Challenge),
		UserSolution: strings.TrimSpace(in.Solution),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if c.state.UserSolution != "" {
		c.state.Solution = userSolution(c.state.UserSolution)
	}
	c.mu.Unlock()
	c.acc.Reset()

	if err := c.transition(PhaseCoreRunning); err != nil {
		return err
	}
	return c.advance(ctx)
}

func userSolution(text string) *stages.Solution {
	title := text
	if i := strings.IndexAny(title, ".\n"); i > 0 {
		title = title[:i]
	}
	return &stages.Solution{Title: truncate(strings.TrimSpace(title), 60), Summary: text, Origin: stages.OriginUser}
}

func (c *Controller) runnerFor(s *State) *stages.Runner {
	if s.Options.Fast {
		return c.runner.Fast()
	}
	return c.runner
}

// advance executes workflow steps until a checkpoint halts the run or the
// core is finished.
func (c *Controller) advance(ctx context.Context) error {
	snap := c.Snapshot()
	runner := c.runnerFor(&snap)

	for _, st := range workflowFor(snap.Mode) {
		snap = c.Snapshot()
		if st.skip != nil && st.skip(&snap) {
			continue
		}
		if snap.Filled(st.slot) {
			continue
		}
		if st.checkpoint != "" {
			if err := c.transition(st.checkpoint); err != nil {
				return err
			}
			cp := c.Checkpoint()
			c.logger.LogCheckpoint(snap.RunID, string(st.checkpoint), len(cp.Options))
			c.persist(ctx)
			return nil
		}
		if err := c.runStage(ctx, runner, st.stage, st.run); err != nil {
			return err
		}
	}

	if err := c.transition(PhaseCoreFinished); err != nil {
		return err
	}
	c.persist(ctx)

	if !snap.Options.Refinement {
		return c.generateDeliverables(ctx, runner)
	}
	return nil
}

// runStage executes one stage and folds its result. A failure moves the
// run to the error phase and keeps everything produced so far.
func (c *Controller) runStage(ctx context.Context, runner *stages.Runner, stage string, fn stageFn) error {
	fold, err := c.callStage(ctx, runner, stage, fn)
	if err != nil {
		c.fail(ctx, stage, err)
		return err
	}
	c.apply(fold)
	c.persist(ctx)
	return nil
}

// callStage runs fn against a snapshot and records usage, logs and
// metrics. It does not touch the phase.
func (c *Controller) callStage(ctx context.Context, runner *stages.Runner, stage string, fn stageFn) (func(*State), error) {
	snap := c.Snapshot()
	ctx = llm.WithCallInfo(ctx, llm.CallInfo{RunID: snap.RunID, Stage: stage})

	observability.SetStatus(string(snap.Phase), stage)
	c.logger.LogStage(snap.RunID, stage, observability.EventTypeStageStart, 0, nil)
	c.notifyStage(snap.RunID, stage, false, nil)

	start := time.Now()
	fold, u, err := fn(ctx, runner, &snap)
	elapsed := time.Since(start)
	c.recordUsage(stage, u)

	if err != nil {
		err = llm.AsStageError(stage, err)
		status := "error"
		if errors.Is(err, llm.ErrCancelled) {
			status = "cancelled"
		}
		c.logger.LogStage(snap.RunID, stage, observability.EventTypeStageFailed, elapsed, err)
		c.metrics.RecordStage(ctx, stage, status, elapsed)
		c.notifyStage(snap.RunID, stage, true, err)
		return nil, err
	}

	c.logger.LogStage(snap.RunID, stage, observability.EventTypeStageDone, elapsed, nil)
	c.metrics.RecordStage(ctx, stage, "ok", elapsed)
	c.notifyStage(snap.RunID, stage, true, nil)
	observability.SetStatus(string(snap.Phase), "")
	return fold, nil
}

func (c *Controller) apply(fold func(*State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fold(&c.state)
	c.state.UpdatedAt = c.now()
}

func (c *Controller) recordUsage(stage string, u usage.Usage) {
	if u.IsZero() {
		return
	}
	c.acc.Add(stage, u)
	c.mu.Lock()
	c.state.Usage = c.acc.Ledger()
	c.mu.Unlock()
	observability.SetUsage(c.acc.Total().Total, c.acc.CO2Grams())
}

func (c *Controller) fail(ctx context.Context, stage string, err error) {
	se := llm.AsStageError(stage, err)
	c.mu.Lock()
	c.state.LastError = &Failure{Stage: se.Stage, Kind: se.Kind, Message: se.Error()}
	c.mu.Unlock()
	if terr := c.transition(PhaseError); terr != nil {
		log.Printf("[pipeline] %v", terr)
	}
	c.persist(ctx)
}

// transition moves to phase to if the table allows it.
func (c *Controller) transition(to Phase) error {
	c.mu.Lock()
	from := c.state.Phase
	if !from.CanTransition(to) {
		c.mu.Unlock()
		return &transitionError{from: from, to: to}
	}
	c.state.Phase = to
	c.state.UpdatedAt = c.now()
	runID := c.state.RunID
	c.mu.Unlock()

	c.logger.LogTransition(runID, string(from), string(to))
	observability.SetStatus(string(to), "")
	if c.observer != nil {
		c.observer.OnTransition(runID, from, to)
	}
	return nil
}

func (c *Controller) notifyStage(runID, stage string, done bool, err error) {
	if c.observer != nil {
		c.observer.OnStage(runID, stage, done, err)
	}
}

// persist saves the state. Store failures are logged and never fail the
// run.
func (c *Controller) persist(ctx context.Context) {
	if c.store == nil {
		return
	}
	snap := c.Snapshot()
	if snap.RunID == "" {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		log.Printf("[pipeline] encode run %s: %v", snap.RunID, err)
		return
	}
	run := store.Run{
		ID:        snap.RunID,
		Owner:     snap.Owner,
		Title:     snap.Title(),
		Phase:     string(snap.Phase),
		State:     data,
		CreatedAt: snap.CreatedAt,
	}
	if err := c.store.SaveRun(context.WithoutCancel(ctx), run); err != nil {
		log.Printf("[pipeline] save run %s: %v", snap.RunID, err)
	}
}

// Reset clears the run and returns to idle.
func (c *Controller) Reset() error {
	if err := c.acquire(); err != nil {
		return err
	}
	defer c.release()

	c.mu.Lock()
	from := c.state.Phase
	runID := c.state.RunID
	c.state.Clear()
	c.mu.Unlock()
	c.acc.Reset()

	c.logger.LogTransition(runID, string(from), string(PhaseIdle))
	observability.SetStatus(string(PhaseIdle), "")
	observability.SetUsage(0, 0)
	if c.observer != nil && from != PhaseIdle {
		c.observer.OnTransition(runID, from, PhaseIdle)
	}
	return nil
}

// Load replaces the current run with a persisted one. A run saved while a
// stage was executing is marked as interrupted.
func (c *Controller) Load(ctx context.Context, runID string) error {
	if c.store == nil {
		return errors.New("no store configured")
	}
	if err := c.acquire(); err != nil {
		return err
	}
	defer c.release()

	rec, err := c.store.LoadRun(ctx, runID)
	if err != nil {
		return err
	}
	var st State
	if err := json.Unmarshal(rec.State, &st); err != nil {
		return fmt.Errorf("decode run %s: %w", runID, err)
	}
	if err := st.Validate(); err != nil {
		return fmt.Errorf("run %s is inconsistent: %w", runID, err)
	}
	if st.Phase.IsRunning() {
		st.Phase = PhaseError
		st.LastError = &Failure{Kind: llm.KindOther, Message: "run was interrupted"}
	}

	c.mu.Lock()
	c.state = st
	c.mu.Unlock()
	c.acc.Restore(st.Usage)
	observability.SetStatus(string(st.Phase), "")
	observability.SetUsage(c.acc.Total().Total, c.acc.CO2Grams())
	return nil
}

// SetDeliverables changes the deliverable selection before generation
// starts.
func (c *Controller) SetDeliverables(ids []DeliverableID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state.Phase {
	case PhaseDeliverablesGenerating, PhaseFinished:
		return fmt.Errorf("%w: deliverables already generated", ErrInvalidPhase)
	}
	c.state.Options.Deliverables = append([]DeliverableID(nil), ids...)
	return nil
}

// generateDeliverables runs every selected deliverable whose dependencies
// exist, in table order, then finishes the run.
func (c *Controller) generateDeliverables(ctx context.Context, runner *stages.Runner) error {
	if err := c.transition(PhaseDeliverablesGenerating); err != nil {
		return err
	}
	c.persist(ctx)

	want := selected(c.Snapshot().Options.Deliverables)
	for _, d := range deliverables {
		snap := c.Snapshot()
		if !want[d.id] || snap.Filled(d.slot) {
			continue
		}
		if missing := missingDeps(&snap, d); len(missing) > 0 {
			log.Printf("[pipeline] skipping %s: missing %s", d.id, strings.Join(missing, ", "))
			continue
		}
		if err := c.runStage(ctx, runner, d.stage, d.run); err != nil {
			return err
		}
	}

	if err := c.transition(PhaseFinished); err != nil {
		return err
	}
	c.persist(ctx)
	return nil
}
