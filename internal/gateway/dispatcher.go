package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/rahul/foundry/internal/export"
	"github.com/rahul/foundry/internal/governance"
	"github.com/rahul/foundry/internal/llm"
	"github.com/rahul/foundry/internal/pipeline"
	"github.com/rahul/foundry/internal/stages"
	"github.com/rahul/foundry/internal/store"
)

// ControllerFactory builds a controller reporting to obs.
type ControllerFactory func(obs pipeline.Observer) *pipeline.Controller

// Guard vets owner actions other than starting a run.
type Guard interface {
	Check(ctx context.Context, req governance.Request) error
}

// RunLister lists persisted runs.
type RunLister interface {
	ListRuns(ctx context.Context, owner string, limit int) ([]store.Run, error)
}

const helpText = `Commands:
/run <challenge> [--fast] [--no-framing] [--no-refine]  start problem-first
/solve <solution> [--fast] [--no-refine]  start solution-first
/pick N  answer the pending checkpoint
/refine  challenge the solution (Devil's Advocate)
/cancel  cancel a running refinement or video
/approve  accept the solution and generate deliverables
/deliverables [IDS]  show or change the deliverable selection
/analyze red_team|ethics|success_score
/video  render the promo video
/status  show the current run
/export [html,pdf,yaml,txt]  write the run to files
/runs  list saved runs
/load <run-id>  reopen a saved run
/reset  discard the current run`

// Dispatcher routes chat commands to one controller per chat.
type Dispatcher struct {
	out      Sender
	factory  ControllerFactory
	defaults pipeline.RunOptions
	exporter *export.Exporter
	runs     RunLister
	guard    Guard

	mu       sync.Mutex
	sessions map[string]*session
	wg       sync.WaitGroup
}

type DispatcherOption func(*Dispatcher)

func WithRunDefaults(o pipeline.RunOptions) DispatcherOption {
	return func(d *Dispatcher) { d.defaults = o }
}

func WithExporter(e *export.Exporter) DispatcherOption {
	return func(d *Dispatcher) { d.exporter = e }
}

func WithRunLister(r RunLister) DispatcherOption {
	return func(d *Dispatcher) { d.runs = r }
}

func WithGuard(g Guard) DispatcherOption {
	return func(d *Dispatcher) { d.guard = g }
}

func NewDispatcher(out Sender, factory ControllerFactory, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		out:      out,
		factory:  factory,
		defaults: pipeline.DefaultRunOptions(),
		sessions: make(map[string]*session),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// session binds a chat to its controller and relays controller events.
type session struct {
	chatID string
	d      *Dispatcher
	ctrl   *pipeline.Controller
}

func (d *Dispatcher) session(chatID string) *session {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.sessions[chatID]
	if !ok {
		s = &session{chatID: chatID, d: d}
		s.ctrl = d.factory(s)
		d.sessions[chatID] = s
	}
	return s
}

// Controller returns the controller of a chat, creating it on first use.
func (d *Dispatcher) Controller(chatID string) *pipeline.Controller {
	return d.session(chatID).ctrl
}

// Wait blocks until every background command has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) send(chatID, text string) {
	if err := d.out.Send(chatID, text); err != nil {
		log.Printf("[gateway] send to %s: %v", chatID, err)
	}
}

// background runs a long command off the receive loop so /cancel and
// /status stay responsive.
func (d *Dispatcher) background(chatID string, fn func() error) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := fn(); err != nil {
			d.send(chatID, formatError(err))
		}
	}()
}

// allowed reports a denial to the chat.
func (d *Dispatcher) allowed(ctx context.Context, msg Message, action, detail string) bool {
	if d.guard == nil {
		return true
	}
	err := d.guard.Check(ctx, governance.Request{Owner: msg.Owner, Action: action, Detail: detail})
	if err != nil {
		d.send(msg.ChatID, formatError(err))
		return false
	}
	return true
}

func (d *Dispatcher) Handle(ctx context.Context, msg Message) {
	cmd, arg := parseCommand(msg.Text)
	s := d.session(msg.ChatID)
	c := s.ctrl

	switch cmd {
	case "/start", "/help":
		d.send(msg.ChatID, helpText)

	case "/run", "/solve":
		text, opts := d.runOptions(arg)
		in := pipeline.RunInput{Owner: msg.Owner, Options: &opts}
		if cmd == "/run" {
			in.Mode, in.Challenge = pipeline.ModeProblemFirst, text
		} else {
			in.Mode, in.Solution = pipeline.ModeSolutionFirst, text
		}
		if text == "" {
			d.send(msg.ChatID, "Usage: "+cmd+" <text>")
			return
		}
		d.send(msg.ChatID, "Starting a new venture run...")
		d.background(msg.ChatID, func() error { return c.Start(ctx, in) })

	case "/pick":
		n, err := strconv.Atoi(strings.TrimSpace(arg))
		if err != nil || n < 1 {
			d.send(msg.ChatID, "Usage: /pick N")
			return
		}
		d.background(msg.ChatID, func() error { return resume(ctx, c, n-1) })

	case "/refine":
		d.send(msg.ChatID, "Playing devil's advocate...")
		d.background(msg.ChatID, func() error {
			if err := c.Refine(ctx); err != nil {
				return err
			}
			return d.out.Send(msg.ChatID, refinedText(c.Snapshot()))
		})

	case "/cancel":
		if c.CancelRefinement() == nil || c.CancelVideo() == nil {
			d.send(msg.ChatID, "Cancelling...")
			return
		}
		d.send(msg.ChatID, "Nothing to cancel.")

	case "/approve":
		d.send(msg.ChatID, "Generating deliverables...")
		d.background(msg.ChatID, func() error { return c.Approve(ctx) })

	case "/deliverables":
		if strings.TrimSpace(arg) == "" {
			d.send(msg.ChatID, deliverablesText(c.Snapshot()))
			return
		}
		ids, err := pipeline.ParseDeliverables(arg)
		if err == nil {
			err = c.SetDeliverables(ids)
		}
		if err != nil {
			d.send(msg.ChatID, formatError(err))
			return
		}
		d.send(msg.ChatID, deliverablesText(c.Snapshot()))

	case "/analyze":
		kind, err := stages.ParseAnalysisKind(arg)
		if err != nil {
			d.send(msg.ChatID, formatError(err))
			return
		}
		if !d.allowed(ctx, msg, governance.ActionAnalyze, string(kind)) {
			return
		}
		d.background(msg.ChatID, func() error {
			if err := c.Analyze(ctx, kind); err != nil {
				return err
			}
			return d.out.Send(msg.ChatID, analysisText(c.Snapshot(), kind))
		})

	case "/video":
		if !d.allowed(ctx, msg, governance.ActionVideo, "") {
			return
		}
		d.send(msg.ChatID, "Rendering the promo video. This can take minutes; /cancel to stop.")
		d.background(msg.ChatID, func() error {
			if err := c.GenerateVideo(ctx); err != nil {
				return err
			}
			return d.out.Send(msg.ChatID, videoText(c.Snapshot()))
		})

	case "/status":
		d.send(msg.ChatID, statusText(c))

	case "/export":
		if !d.allowed(ctx, msg, governance.ActionExport, arg) {
			return
		}
		d.exportRun(ctx, msg.ChatID, c, arg)

	case "/runs":
		d.listRuns(ctx, msg.ChatID, msg.Owner)

	case "/load":
		if err := c.Load(ctx, strings.TrimSpace(arg)); err != nil {
			d.send(msg.ChatID, formatError(err))
			return
		}
		d.send(msg.ChatID, statusText(c))

	case "/reset":
		if err := c.Reset(); err != nil {
			d.send(msg.ChatID, formatError(err))
			return
		}
		d.send(msg.ChatID, "Run cleared.")

	case "":
		if c.Phase() == pipeline.PhaseIdle && strings.TrimSpace(arg) != "" {
			d.Handle(ctx, Message{ChatID: msg.ChatID, Owner: msg.Owner, Text: "/run " + arg})
			return
		}
		d.send(msg.ChatID, "Send /help for the list of commands.")

	default:
		d.send(msg.ChatID, fmt.Sprintf("Unknown command %s. Send /help.", cmd))
	}
}

// parseCommand splits "/cmd@bot args" into "/cmd" and "args". Plain text
// returns an empty command.
func parseCommand(text string) (string, string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", text
	}
	cmd, arg, _ := strings.Cut(text, " ")
	if i := strings.Index(cmd, "@"); i > 0 {
		cmd = cmd[:i]
	}
	return strings.ToLower(cmd), strings.TrimSpace(arg)
}

// runOptions strips --flags from arg and applies them to the defaults.
func (d *Dispatcher) runOptions(arg string) (string, pipeline.RunOptions) {
	opts := d.defaults
	opts.Deliverables = append([]pipeline.DeliverableID(nil), d.defaults.Deliverables...)
	var words []string
	for _, w := range strings.Fields(arg) {
		switch w {
		case "--fast":
			opts.Fast = true
		case "--no-framing":
			opts.Framing = false
		case "--no-refine":
			opts.Refinement = false
		default:
			words = append(words, w)
		}
	}
	return strings.Join(words, " "), opts
}

func resume(ctx context.Context, c *pipeline.Controller, index int) error {
	switch c.Phase() {
	case pipeline.PhaseCheckpointChallenge:
		return c.ResumeChallenge(ctx, index)
	case pipeline.PhaseCheckpointFraming:
		return c.ResumeProblemFrame(ctx, index)
	case pipeline.PhaseCheckpointIdea:
		return c.ResumeIdea(ctx, index)
	case pipeline.PhaseCheckpointBrandName:
		return c.ResumeBrandName(ctx, index)
	}
	return fmt.Errorf("%w: nothing to pick", pipeline.ErrCheckpointMismatch)
}

func (d *Dispatcher) exportRun(ctx context.Context, chatID string, c *pipeline.Controller, arg string) {
	if d.exporter == nil {
		d.send(chatID, "Export is not configured.")
		return
	}
	formats, err := export.ParseFormats(arg)
	if err != nil {
		d.send(chatID, formatError(err))
		return
	}
	snap := c.Snapshot()
	d.background(chatID, func() error {
		paths, err := d.exporter.Export(ctx, &snap, formats...)
		if err != nil {
			return err
		}
		return d.out.Send(chatID, "Exported:\n"+strings.Join(paths, "\n"))
	})
}

func (d *Dispatcher) listRuns(ctx context.Context, chatID, owner string) {
	if d.runs == nil {
		d.send(chatID, "No run store configured.")
		return
	}
	runs, err := d.runs.ListRuns(ctx, owner, 10)
	if err != nil {
		d.send(chatID, formatError(err))
		return
	}
	if len(runs) == 0 {
		d.send(chatID, "No saved runs.")
		return
	}
	var b strings.Builder
	for _, r := range runs {
		fmt.Fprintf(&b, "%s  %s  [%s]  %s\n", r.ID, r.Title, r.Phase, humanize.Time(r.UpdatedAt))
	}
	b.WriteString("\n/load <run-id> to reopen")
	d.send(chatID, b.String())
}

// OnTransition announces checkpoints and milestones.
func (s *session) OnTransition(_ string, _, to pipeline.Phase) {
	switch {
	case to.IsCheckpoint():
		if cp := s.ctrl.Checkpoint(); cp != nil {
			s.d.send(s.chatID, checkpointText(cp))
		}
	case to == pipeline.PhaseCoreFinished:
		snap := s.ctrl.Snapshot()
		text := "Core complete."
		if snap.Solution != nil {
			text = fmt.Sprintf("Core complete: %s\n%s", snap.Solution.Title, snap.Solution.Summary)
		}
		if snap.Options.Refinement {
			text += "\n\n/refine to stress-test it, /approve to generate deliverables"
		}
		s.d.send(s.chatID, text)
	case to == pipeline.PhaseFinished:
		s.d.send(s.chatID, "All deliverables are ready. /export, /analyze or /video")
	}
}

func (s *session) OnStage(_ string, stage string, done bool, err error) {
	if done && err == nil {
		s.d.send(s.chatID, "✓ "+stage)
	}
}

var checkpointTitles = map[pipeline.Phase]string{
	pipeline.PhaseCheckpointChallenge: "Pick the challenge to pursue:",
	pipeline.PhaseCheckpointFraming:   "Pick a problem frame:",
	pipeline.PhaseCheckpointIdea:      "Pick an idea to evolve:",
	pipeline.PhaseCheckpointBrandName: "Pick a brand name:",
}

func checkpointText(cp *pipeline.Checkpoint) string {
	var b strings.Builder
	b.WriteString(checkpointTitles[cp.Kind])
	b.WriteString("\n")
	for i, o := range cp.Options {
		fmt.Fprintf(&b, "%d. %s: %s\n", i+1, o.Title, o.Detail)
	}
	b.WriteString("\nReply /pick N")
	return b.String()
}

func statusText(c *pipeline.Controller) string {
	snap := c.Snapshot()
	if snap.RunID == "" {
		return "No active run. /run <challenge> to start."
	}
	total, _ := c.Usage()
	var b strings.Builder
	fmt.Fprintf(&b, "%s\nRun %s, phase %s\n", snap.Title(), snap.RunID, snap.Phase)
	fmt.Fprintf(&b, "Tokens: %s\n", humanize.Comma(int64(total.Total)))
	if snap.LastError != nil {
		fmt.Fprintf(&b, "Last error: %s\n", snap.LastError.Message)
	}
	if cp := c.Checkpoint(); cp != nil {
		b.WriteString("\n")
		b.WriteString(checkpointText(cp))
	}
	return b.String()
}

func deliverablesText(snap pipeline.State) string {
	chosen := make(map[pipeline.DeliverableID]bool)
	for _, id := range snap.Options.Deliverables {
		chosen[id] = true
	}
	var b strings.Builder
	b.WriteString("Deliverables:\n")
	for _, id := range pipeline.AllDeliverables() {
		mark := " "
		if chosen[id] {
			mark = "x"
		}
		fmt.Fprintf(&b, "[%s] %s\n", mark, id)
	}
	return b.String()
}

// runChanged is shown when a /reset or /load lands between an operation
// finishing and its result being rendered.
const runChanged = "The run changed before the result could be shown. /status shows the current step."

func refinedText(snap pipeline.State) string {
	if snap.Solution == nil {
		return runChanged
	}
	return fmt.Sprintf("Revised solution: %s\n%s\n\n/refine again or /approve",
		snap.Solution.Title, snap.Solution.Summary)
}

func videoText(snap pipeline.State) string {
	if snap.Video == nil {
		return runChanged
	}
	return "Video ready: " + snap.Video.URI
}

func analysisText(snap pipeline.State, kind stages.AnalysisKind) string {
	var b strings.Builder
	switch kind {
	case stages.AnalysisRedTeam:
		if snap.RedTeam == nil {
			return runChanged
		}
		b.WriteString("Red team report:\n")
		for _, a := range snap.RedTeam.Attacks {
			fmt.Fprintf(&b, "- [%s] %s. Counter: %s\n", a.Severity, a.Vector, a.Countermeasure)
		}
	case stages.AnalysisEthics:
		if snap.EthicsAudit == nil {
			return runChanged
		}
		fmt.Fprintf(&b, "Ethics audit (overall risk %s):\n", snap.EthicsAudit.Rating)
		for _, c := range snap.EthicsAudit.Concerns {
			fmt.Fprintf(&b, "- %s: %s. %s\n", c.Area, c.Issue, c.Recommendation)
		}
	case stages.AnalysisSuccessScore:
		if snap.SuccessScore == nil {
			return runChanged
		}
		fmt.Fprintf(&b, "Success score: %d/100\n%s\n", snap.SuccessScore.Score, snap.SuccessScore.Summary)
	}
	return b.String()
}

func formatError(err error) string {
	if errors.Is(err, llm.ErrCancelled) {
		return "Cancelled."
	}
	switch {
	case errors.Is(err, pipeline.ErrBusy):
		return "Still working on the previous step, please wait."
	case errors.Is(err, pipeline.ErrCheckpointMismatch):
		return "There is no matching choice pending. /status shows the current step."
	case errors.Is(err, governance.ErrNotAuthorized):
		return "⛔ " + err.Error()
	}
	return "✖ " + err.Error()
}
