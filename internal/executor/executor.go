// Package executor carries plans out. The PlanExecutor walks a plan
// step by step, threading the movement target and run reports across
// steps; each step's directive is resolved by the DirectiveExecutor's
// fixed interpreter chain. Halting failures hand over to the recovery
// coordinator, whose replacement plans re-enter the same walk with a
// shared depth budget.
package executor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hallgrim/golem/internal/action"
	"github.com/hallgrim/golem/internal/events"
	"github.com/hallgrim/golem/internal/memory"
	"github.com/hallgrim/golem/internal/notify"
	"github.com/hallgrim/golem/internal/plan"
	"github.com/hallgrim/golem/internal/planner"
	"github.com/hallgrim/golem/internal/recovery"
	"github.com/hallgrim/golem/internal/status"
)

// PlanExecutor runs whole plans.
type PlanExecutor struct {
	directives  *DirectiveExecutor
	coordinator *recovery.Coordinator
	reflections *recovery.ReflectionStore
	reporter    *events.Reporter
	refresher   *status.Refresher
	mem         *memory.Store
	notifier    notify.Notifier
	logger      *slog.Logger
}

// NewPlanExecutor wires a plan executor. mem carries the movement
// target across task boundaries; it may be nil.
func NewPlanExecutor(directives *DirectiveExecutor, coordinator *recovery.Coordinator,
	reflections *recovery.ReflectionStore, reporter *events.Reporter,
	refresher *status.Refresher, mem *memory.Store, notifier notify.Notifier,
	logger *slog.Logger) *PlanExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &PlanExecutor{
		directives:  directives,
		coordinator: coordinator,
		reflections: reflections,
		reporter:    reporter,
		refresher:   refresher,
		mem:         mem,
		notifier:    notifier,
		logger:      logger,
	}
}

// Run executes one plan for an utterance. initialTarget seeds the
// movement target carried across steps; it may be nil. Failures are
// absorbed: a halting step triggers bounded replanning, a panic in any
// handler becomes a barrier notice, and Run itself only errors when
// the context is done.
func (e *PlanExecutor) Run(ctx context.Context, utterance string, p *plan.Plan, initialTarget *[3]float64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("plan execution panicked", "utterance", utterance, "panic", r)
			e.notifier.Say("Something went wrong inside me while working on that. I stopped to be safe.")
			e.recordPanic(utterance, r)
		}
	}()

	p.Normalize()

	if p.ChatOnly() {
		response := p.Response
		if response == "" {
			response = "Got it."
		}
		e.notifier.Say(response)
		e.reporter.AddBacklog(plan.BacklogEntry{
			Category: string(plan.CategoryChat),
			Step:     utterance,
			Label:    "answered in chat",
		})
		return nil
	}

	if len(p.Steps) == 0 {
		e.notifier.Say("I could not turn that into any concrete steps. Could you rephrase?")
		return nil
	}

	if p.Response != "" {
		e.notifier.Say(p.Response)
	}
	if len(p.Backlog) > 0 {
		e.reporter.AddBacklog(p.Backlog...)
	}

	target := initialTarget
	if target == nil {
		target = e.storedTarget()
	}
	current := p
	depth := 0

	// Replanning is a loop, not recursion: every replacement plan
	// re-enters here and the accumulated depth bounds the whole
	// failure chain, nested or not.
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		halt := e.runSteps(ctx, utterance, current, &target)
		if err := ctx.Err(); err != nil {
			return err
		}
		if halt == nil {
			e.coordinator.MarkLineSuccess()
			e.storeTarget(target)
			e.reporter.Flush()
			return nil
		}

		halt.Utterance = utterance
		halt.Depth = depth
		replacement, ok := e.coordinator.Recover(ctx, *halt)
		if !ok {
			// Depth budget exhausted. The coordinator already logged;
			// the silence toward the user is deliberate.
			e.storeTarget(target)
			return nil
		}

		depth++
		replacement.Normalize()
		if len(replacement.Backlog) > 0 {
			e.reporter.AddBacklog(replacement.Backlog...)
		}
		if replacement.ChatOnly() || len(replacement.Steps) == 0 {
			// The coordinator already relayed the response; an empty
			// replacement means the planner chose to stand down.
			e.storeTarget(target)
			e.reporter.Flush()
			return nil
		}
		current = replacement
	}
}

// runSteps walks the plan's steps in order. It returns nil when every
// step ran to completion (including failures that do not halt), or the
// halt handover when a step demands recovery.
func (e *PlanExecutor) runSteps(ctx context.Context, utterance string, p *plan.Plan, target **[3]float64) *recovery.Halt {
	for i, step := range p.Steps {
		if ctx.Err() != nil {
			return nil
		}

		sc := action.StepContext{
			Utterance:  utterance,
			Step:       step,
			Directive:  p.Directives[i],
			LastTarget: *target,
		}
		res := e.directives.Execute(ctx, &sc)

		if !res.SuppressTrace {
			e.logger.Info("step trace",
				"thought", step,
				"action", traceAction(p.Directives[i]),
				"observation", res.Observation,
				"status", res.Status)
		}

		if res.UpdatedTarget != nil {
			*target = res.UpdatedTarget
		}

		if res.Halt {
			return &recovery.Halt{
				FailedStep:     step,
				Reason:         res.FailureReason,
				RemainingSteps: append([]string(nil), p.Steps[i+1:]...),
				Snapshot:       e.snapshotContext(p.Steps[i+1:]),
			}
		}
	}
	return nil
}

// storedTarget reads the movement target left behind by an earlier
// run, so "keep going" style steps work across task boundaries.
func (e *PlanExecutor) storedTarget() *[3]float64 {
	if e.mem == nil {
		return nil
	}
	v, ok := e.mem.Get(memory.KeyLastTarget)
	if !ok {
		return nil
	}
	t, ok := v.([3]float64)
	if !ok {
		return nil
	}
	return &t
}

func (e *PlanExecutor) storeTarget(target *[3]float64) {
	if e.mem == nil || target == nil {
		return
	}
	e.mem.Set(memory.KeyLastTarget, *target)
}

// snapshotContext gathers what the planning service should know when
// asked for a replacement plan.
func (e *PlanExecutor) snapshotContext(remaining []string) planner.Snapshot {
	snap := planner.Snapshot{
		Backlog:        e.reporter.Backlog(),
		RemainingSteps: append([]string(nil), remaining...),
	}
	for _, det := range e.reporter.Detections() {
		snap.Detections = append(snap.Detections, det.Summary)
	}
	if cached := e.refresher.Cached(); cached != nil {
		snap.Position = cached.Position
		snap.Inventory = cached.Inventory
	}
	return snap
}

// recordPanic persists a failed reflection so the next attempt at the
// same task line knows this one blew up.
func (e *PlanExecutor) recordPanic(utterance string, cause any) {
	if e.reflections == nil {
		return
	}
	entry, err := e.reflections.Append(
		recovery.Signature(utterance),
		utterance,
		fmt.Sprintf("internal error: %v", cause),
		"",
		map[string]string{"kind": "panic"},
	)
	if err != nil {
		e.logger.Error("persist panic reflection failed", "error", err)
		return
	}
	if err := e.reflections.Finalize(entry.ID, recovery.RetryFailed); err != nil {
		e.logger.Error("finalize panic reflection failed", "error", err)
	}
}

func traceAction(dir *plan.Directive) string {
	if dir == nil {
		return "unknown"
	}
	if dir.Executor != plan.ExecActuator {
		return string(dir.Executor)
	}
	return string(action.RouteModule(dir.Category))
}
