package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hallgrim/golem/internal/events"
	"github.com/hallgrim/golem/internal/memory"
	"github.com/hallgrim/golem/internal/notify"
	"github.com/hallgrim/golem/internal/plan"
	"github.com/hallgrim/golem/internal/planner"
)

// How many prior reflections of the same signature seed the prompt.
const priorReflectionLimit = 3

// Halt describes a halted plan step handed over by the executor.
type Halt struct {
	Utterance      string
	FailedStep     string
	Reason         string
	RemainingSteps []string
	Depth          int
	Snapshot       planner.Snapshot
}

// Coordinator turns halted steps into bounded replans. It persists a
// reflection for every failure and reuses prior reflections of the
// same task signature to avoid repeating mistakes.
type Coordinator struct {
	store    *ReflectionStore
	svc      planner.Service
	reporter *events.Reporter
	mem      *memory.Store
	notifier notify.Notifier
	logger   *slog.Logger
	maxDepth int
}

// NewCoordinator wires a coordinator. maxDepth bounds nested replans
// for one failure chain.
func NewCoordinator(store *ReflectionStore, svc planner.Service, reporter *events.Reporter,
	mem *memory.Store, notifier notify.Notifier, maxDepth int, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if maxDepth < 0 {
		maxDepth = 0
	}
	return &Coordinator{
		store:    store,
		svc:      svc,
		reporter: reporter,
		mem:      mem,
		notifier: notifier,
		logger:   logger,
		maxDepth: maxDepth,
	}
}

// Recover handles one halt. It reports the barrier, finalizes the
// pending reflection for this task line as failed, persists a new
// pending reflection holding the recovery prompt, flushes the run
// reports, and, while the depth budget lasts, requests a replacement
// plan from the planning service. Returns (nil, false) when the depth
// limit is reached: that outcome is deliberately silent to the user.
func (c *Coordinator) Recover(ctx context.Context, h Halt) (*plan.Plan, bool) {
	c.notifier.Say(fmt.Sprintf(
		"I hit a wall on %q: %s. Let me rethink.", h.FailedStep, h.Reason))

	c.finalizePending(RetryFailed)

	reason := c.mergeAlerts(h.Reason)
	signature := Signature(h.FailedStep)

	prior, err := c.store.BySignature(signature, priorReflectionLimit)
	if err != nil {
		c.logger.Error("load prior reflections failed", "signature", signature, "error", err)
	}

	prompt := c.composePrompt(h, reason, prior)

	entry, err := c.store.Append(signature, h.FailedStep, reason, prompt, map[string]string{
		"utterance": h.Utterance,
	})
	if err != nil {
		c.logger.Error("persist reflection failed", "signature", signature, "error", err)
	} else {
		c.mem.Set(memory.KeyPendingReflection, entry.ID)
	}

	c.reporter.Flush()

	if h.Depth >= c.maxDepth {
		// Deliberate silence: surfacing every exhausted chain would
		// flood the user with notification storms.
		c.logger.Warn("replan depth limit reached, stopping",
			"depth", h.Depth,
			"max_depth", c.maxDepth,
			"signature", signature)
		return nil, false
	}

	snapshot := h.Snapshot
	snapshot.RecoveryPrompt = prompt
	snapshot.RemainingSteps = h.RemainingSteps

	newPlan, err := c.svc.Plan(ctx, h.Utterance, snapshot)
	if err != nil {
		c.logger.Error("replan request failed", "error", err)
		return nil, false
	}

	if newPlan.Response != "" {
		c.notifier.Say(newPlan.Response)
	}
	c.logger.Info("replan received",
		"depth", h.Depth+1,
		"steps", len(newPlan.Steps))
	return newPlan, true
}

// MarkLineSuccess finalizes the still-pending reflection for the
// current task line as successful. Called by the executor on normal
// plan completion.
func (c *Coordinator) MarkLineSuccess() {
	c.finalizePending(RetrySuccess)
}

func (c *Coordinator) finalizePending(result RetryResult) {
	id := c.mem.GetString(memory.KeyPendingReflection)
	if id == "" {
		return
	}
	c.mem.Delete(memory.KeyPendingReflection)
	if err := c.store.Finalize(id, result); err != nil {
		c.logger.Error("finalize reflection failed", "id", id, "error", err)
	}
}

// mergeAlerts augments the failure reason with externally observed
// alert-level detections.
func (c *Coordinator) mergeAlerts(reason string) string {
	var alerts []string
	for _, d := range c.reporter.Detections() {
		if d.Level == events.LevelAlert {
			alerts = append(alerts, d.Summary)
		}
	}
	if len(alerts) == 0 {
		return reason
	}
	return reason + " (observed: " + strings.Join(alerts, "; ") + ")"
}

// composePrompt builds the recovery prompt from the failure reason,
// merged detections, the accumulated backlog, and prior improvements.
func (c *Coordinator) composePrompt(h Halt, reason string, prior []*ReflectionEntry) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "The step %q failed: %s.\n", h.FailedStep, reason)

	if detections := c.reporter.Detections(); len(detections) > 0 {
		sb.WriteString("Recent observations:\n")
		for _, d := range detections {
			fmt.Fprintf(&sb, "- %s\n", d.Summary)
		}
	}
	if backlog := c.reporter.Backlog(); len(backlog) > 0 {
		sb.WriteString("Deferred work:\n")
		for _, b := range backlog {
			fmt.Fprintf(&sb, "- %s\n", b.String())
		}
	}
	if len(prior) > 0 {
		sb.WriteString("What helped before for this task:\n")
		for _, p := range prior {
			if p.Improvement == "" {
				continue
			}
			fmt.Fprintf(&sb, "- %s\n", firstLine(p.Improvement))
		}
	}
	sb.WriteString("Produce a corrected plan that avoids this failure.")
	return sb.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
