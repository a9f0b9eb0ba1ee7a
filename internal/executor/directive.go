package executor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hallgrim/golem/internal/action"
	"github.com/hallgrim/golem/internal/actuator"
	"github.com/hallgrim/golem/internal/events"
	"github.com/hallgrim/golem/internal/notify"
	"github.com/hallgrim/golem/internal/plan"
	"github.com/hallgrim/golem/internal/status"
)

// MissionRunner hands a directive off to a long-running remote
// subsystem. Launch returns once the mission is accepted, not once it
// finishes.
type MissionRunner interface {
	Launch(ctx context.Context, name string, args map[string]any) error
}

// interpreter is one link in the fixed dispatch chain. claimed=false
// means the directive is not this interpreter's business and the next
// one gets a look.
type interpreter struct {
	name string
	fn   func(ctx context.Context, sc *action.StepContext) (res action.Result, claimed bool)
}

// DirectiveExecutor resolves one directive to a concrete effect by
// walking a fixed-priority interpreter chain. The first interpreter
// that claims the directive decides the outcome; the terminal link
// always claims, so every directive produces a Result.
type DirectiveExecutor struct {
	graph     *action.Graph
	client    actuator.Client
	refresher *status.Refresher
	reporter  *events.Reporter
	notifier  notify.Notifier
	missions  MissionRunner // may be nil
	logger    *slog.Logger

	chain []interpreter
}

// NewDirectiveExecutor wires the chain. missions may be nil when no
// remote mission subsystem is configured.
func NewDirectiveExecutor(graph *action.Graph, client actuator.Client,
	refresher *status.Refresher, reporter *events.Reporter, notifier notify.Notifier,
	missions MissionRunner, logger *slog.Logger) *DirectiveExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	d := &DirectiveExecutor{
		graph:     graph,
		client:    client,
		refresher: refresher,
		reporter:  reporter,
		notifier:  notifier,
		missions:  missions,
		logger:    logger,
	}
	d.chain = []interpreter{
		{"remote_mission", d.remoteMission},
		{"chat", d.chatOnly},
		{"hybrid", d.hybrid},
		{"detection", d.detection},
		{"coordinates", d.coordinates},
		{"status_only", d.statusOnly},
		{"continuation", d.continuation},
		{"action_graph", d.actionGraph},
		{"fallback", d.unresolved},
	}
	return d
}

// Execute resolves one directive. The chain order never changes at
// runtime; the caller can rely on the same step text always reaching
// the same interpreter.
func (d *DirectiveExecutor) Execute(ctx context.Context, sc *action.StepContext) action.Result {
	if sc.Directive == nil {
		sc.Directive = plan.SynthesizeDirective(sc.Step)
	}
	for _, link := range d.chain {
		res, claimed := link.fn(ctx, sc)
		if !claimed {
			continue
		}
		d.logger.Debug("directive resolved",
			"step", sc.Step,
			"interpreter", link.name,
			"status", res.Status)
		return res
	}
	// Unreachable: the terminal link always claims.
	return action.Result{}
}

// remoteMission hands ExecMission directives to the mission subsystem.
func (d *DirectiveExecutor) remoteMission(ctx context.Context, sc *action.StepContext) (action.Result, bool) {
	if sc.Directive.Executor != plan.ExecMission {
		return action.Result{}, false
	}
	name := missionName(sc.Directive)
	if d.missions == nil {
		return action.Result{
			Handled:       true,
			Status:        action.StatusFailed,
			Observation:   fmt.Sprintf("step %q needs the remote mission subsystem, which is not configured", sc.Step),
			Level:         events.LevelWarning,
			FailureReason: "no mission subsystem configured",
		}, true
	}
	if err := d.missions.Launch(ctx, name, sc.Directive.Args); err != nil {
		return action.Result{
			Handled:       true,
			Status:        action.StatusFailed,
			Observation:   fmt.Sprintf("could not launch mission %q", name),
			Level:         events.LevelWarning,
			FailureReason: err.Error(),
			Halt:          true,
		}, true
	}
	return action.Result{
		Handled:     true,
		Status:      action.StatusCompleted,
		Observation: fmt.Sprintf("handed %q to the mission subsystem", name),
		Level:       events.LevelInfo,
	}, true
}

func missionName(dir *plan.Directive) string {
	if v, ok := dir.Args["mission"].(string); ok && v != "" {
		return v
	}
	if dir.Label != "" {
		return dir.Label
	}
	return dir.Step
}

// chatOnly relays ExecChat directives to the user. Chat never fails.
func (d *DirectiveExecutor) chatOnly(_ context.Context, sc *action.StepContext) (action.Result, bool) {
	if sc.Directive.Executor != plan.ExecChat {
		return action.Result{}, false
	}
	text, _ := sc.Directive.Args["message"].(string)
	if text == "" {
		text = sc.Directive.Fallback
	}
	if text == "" {
		text = sc.Step
	}
	d.notifier.Say(text)
	return action.Result{
		Handled:     true,
		Status:      action.StatusCompleted,
		Observation: "relayed a message to the user",
		Level:       events.LevelInfo,
		// The relay itself is the record; a trace line would repeat it.
		SuppressTrace: true,
	}, true
}

// hybrid runs an inline low-level action sequence when the directive
// carries one, falling back to a single named actuator command. A
// hybrid directive with neither is malformed.
func (d *DirectiveExecutor) hybrid(ctx context.Context, sc *action.StepContext) (action.Result, bool) {
	if sc.Directive.Executor != plan.ExecHybrid {
		return action.Result{}, false
	}

	cmdType, _ := sc.Directive.Args["command"].(string)

	if seq, ok := sc.Directive.Args["actions"].([]any); ok && len(seq) > 0 {
		res := d.runSequence(ctx, sc, seq)
		if res.Status == action.StatusCompleted || cmdType == "" {
			return res, true
		}
		d.logger.Warn("action sequence failed, trying fallback command",
			"step", sc.Step, "reason", res.FailureReason)
	}

	if cmdType != "" {
		args, _ := sc.Directive.Args["command_args"].(map[string]any)
		resp, err := d.client.Dispatch(ctx, actuator.Command{Type: cmdType, Args: args})
		if err != nil {
			return failedResult(fmt.Sprintf("command %s failed", cmdType), err.Error(), true), true
		}
		if !resp.OK {
			return failedResult(fmt.Sprintf("the actuator rejected %s", cmdType), resp.Error, true), true
		}
		return action.Result{
			Handled:     true,
			Status:      action.StatusCompleted,
			Observation: fmt.Sprintf("ran command %s", cmdType),
			Level:       events.LevelInfo,
		}, true
	}

	d.notifier.Say(fmt.Sprintf(
		"I could not carry out %q: the plan gave me neither an action sequence nor a command for it.",
		sc.Step))
	return failedResult(
		fmt.Sprintf("step %q asked for a hybrid action but carried neither a sequence nor a command", sc.Step),
		"hybrid directive without actions or command", false), true
}

// runSequence dispatches an inline action list in order. The sequence
// stops at the first rejection.
func (d *DirectiveExecutor) runSequence(ctx context.Context, sc *action.StepContext, seq []any) action.Result {
	ran := 0
	for i, raw := range seq {
		entry, ok := raw.(map[string]any)
		if !ok {
			return failedResult(
				fmt.Sprintf("action %d in %q is not an object", i, sc.Step),
				"malformed action sequence", false)
		}
		cmdType, _ := entry["type"].(string)
		if cmdType == "" {
			return failedResult(
				fmt.Sprintf("action %d in %q has no type", i, sc.Step),
				"malformed action sequence", false)
		}
		args, _ := entry["args"].(map[string]any)
		resp, err := d.client.Dispatch(ctx, actuator.Command{Type: cmdType, Args: args})
		if err != nil {
			return failedResult(
				fmt.Sprintf("action %d (%s) failed after %d succeeded", i, cmdType, ran),
				err.Error(), true)
		}
		if !resp.OK {
			return failedResult(
				fmt.Sprintf("the actuator rejected action %d (%s) after %d succeeded", i, cmdType, ran),
				resp.Error, true)
		}
		ran++
	}
	return action.Result{
		Handled:     true,
		Status:      action.StatusCompleted,
		Observation: fmt.Sprintf("ran a %d-action sequence", ran),
		Level:       events.LevelInfo,
	}
}

// detection gathers a world snapshot and files a human-readable
// observation. Detection failures raise a barrier but never halt the
// plan: losing one look around is not worth a replan.
func (d *DirectiveExecutor) detection(ctx context.Context, sc *action.StepContext) (action.Result, bool) {
	if sc.Directive.Category != plan.CategoryDetect && !action.IsDetection(sc.Step) {
		return action.Result{}, false
	}

	snap, err := d.refresher.Snapshot(ctx, 0)
	if err != nil {
		d.notifier.Say("I tried to look around but could not read the world state.")
		return failedResult("I tried to look around but could not read the world state", err.Error(), false), true
	}

	summary := summarizeSnapshot(snap)
	level := events.LevelInfo
	if snap.LowFood() || snap.Health < 8 {
		level = events.LevelAlert
	}
	d.reporter.AddDetection(sc.Step, summary, level)

	return action.Result{
		Handled:     true,
		Status:      action.StatusCompleted,
		Observation: summary,
		Level:       level,
	}, true
}

func summarizeSnapshot(snap *status.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "at (%.0f, %.0f, %.0f), health %.0f, food %.0f",
		snap.Position[0], snap.Position[1], snap.Position[2], snap.Health, snap.Food)
	if snap.Role != "" {
		fmt.Fprintf(&b, ", role %s", snap.Role)
	}
	if len(snap.Inventory) > 0 {
		fmt.Fprintf(&b, ", carrying %d item kinds", len(snap.Inventory))
	}
	return b.String()
}

// coordinates claims any step carrying an explicit or text-derived
// coordinate and routes it through the movement pipeline: a named
// position is a place to go first, whatever else the step implies.
func (d *DirectiveExecutor) coordinates(ctx context.Context, sc *action.StepContext) (action.Result, bool) {
	coord := sc.CoordHint
	if coord == nil {
		if c, ok := action.CoordsFromArgs(sc.Directive.Args); ok {
			coord = c
		}
	}
	if coord == nil {
		if c, ok := action.ParseCoords(sc.Step); ok {
			coord = c
		}
	}
	if coord == nil {
		return action.Result{}, false
	}

	moveSC := *sc
	moveSC.CoordHint = coord
	moveSC.Directive = &plan.Directive{
		ID:       sc.Directive.ID,
		Step:     sc.Step,
		Category: plan.CategoryMove,
		Executor: plan.ExecActuator,
	}
	return d.graph.Execute(ctx, moveSC), true
}

// statusOnly skips passive verification steps without touching the
// actuator. The planning service likes to emit "check your inventory"
// steps; acknowledging them is enough.
func (d *DirectiveExecutor) statusOnly(_ context.Context, sc *action.StepContext) (action.Result, bool) {
	if sc.Directive.Category != plan.CategoryStatus && !action.IsStatusOnly(sc.Step) {
		return action.Result{}, false
	}
	return action.Result{
		Handled:     true,
		Status:      action.StatusSkipped,
		Observation: "nothing to act on, noted the current state",
		Level:       events.LevelInfo,
	}, true
}

// continuation reuses the last movement target for "keep going" style
// steps instead of asking the planner what "going" meant.
func (d *DirectiveExecutor) continuation(ctx context.Context, sc *action.StepContext) (action.Result, bool) {
	if sc.LastTarget == nil || !action.IsContinuation(sc.Step) {
		return action.Result{}, false
	}

	moveSC := *sc
	moveSC.CoordHint = sc.LastTarget
	moveSC.Directive = &plan.Directive{
		ID:       sc.Directive.ID,
		Step:     sc.Step,
		Category: plan.CategoryMove,
		Executor: plan.ExecActuator,
	}
	return d.graph.Execute(ctx, moveSC), true
}

// actionGraph routes plain actuator directives into the per-step
// action pipeline.
func (d *DirectiveExecutor) actionGraph(ctx context.Context, sc *action.StepContext) (action.Result, bool) {
	if sc.Directive.Executor != plan.ExecActuator {
		return action.Result{}, false
	}
	return d.graph.Execute(ctx, *sc), true
}

// unresolved is the terminal link: the directive named an executor
// nothing upstream understands. Failed but recoverable, so the plan
// can replan around it.
func (d *DirectiveExecutor) unresolved(_ context.Context, sc *action.StepContext) (action.Result, bool) {
	observation := sc.Directive.Fallback
	if observation == "" {
		observation = fmt.Sprintf("I do not know how to carry out %q", sc.Step)
	}
	d.reporter.AddBacklog(plan.BacklogEntry{
		Category: string(sc.Directive.Category),
		Step:     sc.Step,
		Label:    "no interpreter could route this step",
	})
	return action.Result{
		Handled:       true,
		Status:        action.StatusFailed,
		Observation:   observation,
		Level:         events.LevelWarning,
		FailureReason: fmt.Sprintf("no interpreter accepts executor %q", sc.Directive.Executor),
	}, true
}

func failedResult(observation, reason string, halt bool) action.Result {
	return action.Result{
		Handled:       true,
		Status:        action.StatusFailed,
		Observation:   observation,
		Level:         events.LevelWarning,
		FailureReason: reason,
		Halt:          halt,
	}
}
