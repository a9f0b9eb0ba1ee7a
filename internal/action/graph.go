package action

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hallgrim/golem/internal/actuator"
	"github.com/hallgrim/golem/internal/build"
	"github.com/hallgrim/golem/internal/events"
	"github.com/hallgrim/golem/internal/memory"
	"github.com/hallgrim/golem/internal/plan"
	"github.com/hallgrim/golem/internal/skills"
	"github.com/hallgrim/golem/internal/status"
)

// Config tunes the action pipeline.
type Config struct {
	// DefaultTarget is the configured fallback movement target. Using
	// it signals an ambiguous instruction and raises a barrier notice.
	DefaultTarget [3]float64
	// SearchRadius is the default gather radius in blocks.
	SearchRadius int
	// GatherCount is the default number of blocks to gather.
	GatherCount int
	// BatchSize bounds one placement batch.
	BatchSize int
	// SnapshotMaxAge is how stale a cached inventory snapshot may be
	// before handlers refresh it.
	SnapshotMaxAge int // seconds
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() Config {
	return Config{
		DefaultTarget:  [3]float64{0, 64, 0},
		SearchRadius:   32,
		GatherCount:    8,
		BatchSize:      16,
		SnapshotMaxAge: 30,
	}
}

// handlerFunc is the common contract every module handler implements:
// step context in, structured result out.
type handlerFunc func(ctx context.Context, sc *StepContext) Result

// Graph runs one action-category step through the fixed stage order:
// initialize, seek_skill, apply_role_policy, route_module, the module
// handler, finalize.
type Graph struct {
	cfg       Config
	client    actuator.Client
	skills    *skills.Repository
	refresher *status.Refresher
	builds    *build.Store
	layouts   map[string]*build.Layout
	mem       *memory.Store
	reporter  *events.Reporter
	logger    *slog.Logger

	handlers map[Module]handlerFunc
}

// NewGraph wires the pipeline. skillRepo may be nil when no skill
// database is configured; seek_skill then always falls through.
func NewGraph(cfg Config, client actuator.Client, skillRepo *skills.Repository,
	refresher *status.Refresher, builds *build.Store, layouts map[string]*build.Layout,
	mem *memory.Store, reporter *events.Reporter, logger *slog.Logger) *Graph {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SearchRadius <= 0 {
		cfg.SearchRadius = DefaultConfig().SearchRadius
	}
	if cfg.GatherCount <= 0 {
		cfg.GatherCount = DefaultConfig().GatherCount
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if layouts == nil {
		layouts = map[string]*build.Layout{}
	}

	g := &Graph{
		cfg:       cfg,
		client:    client,
		skills:    skillRepo,
		refresher: refresher,
		builds:    builds,
		layouts:   layouts,
		mem:       mem,
		reporter:  reporter,
		logger:    logger,
	}
	g.handlers = map[Module]handlerFunc{
		ModuleMove:    g.handleMove,
		ModuleEquip:   g.handleEquip,
		ModuleMine:    g.handleMine,
		ModuleBuild:   g.handleBuild,
		ModuleFight:   g.handleUnimplemented(ModuleFight),
		ModuleGeneric: g.handleUnimplemented(ModuleGeneric),
	}
	return g
}

// Execute runs the stages in fixed order and returns the step result.
func (g *Graph) Execute(ctx context.Context, sc StepContext) Result {
	g.initialize(&sc)

	if res, shortCircuit := g.seekSkill(ctx, &sc); shortCircuit {
		g.finalize(&sc, &res)
		return res
	}

	g.applyRolePolicy(ctx, &sc)

	module := RouteModule(sc.Directive.Category)
	g.logger.Debug("step routed", "step", sc.Step, "module", module)

	res := g.handlers[module](ctx, &sc)
	g.finalize(&sc, &res)
	return res
}

// initialize fills defaults so later stages never see nil fields.
func (g *Graph) initialize(sc *StepContext) {
	if sc.Directive == nil {
		sc.Directive = plan.SynthesizeDirective(sc.Step)
	}
	if sc.Step == "" {
		sc.Step = sc.Directive.Step
	}
	if sc.CoordHint == nil {
		if c, ok := CoordsFromArgs(sc.Directive.Args); ok {
			sc.CoordHint = c
		}
	}
}

// seekSkill queries the repository by category and step text. An
// unlocked match short-circuits into a skill replay; a locked match
// short-circuits into the exploration-trigger path. No match falls
// through to the rest of the pipeline.
func (g *Graph) seekSkill(ctx context.Context, sc *StepContext) (Result, bool) {
	if g.skills == nil {
		return Result{}, false
	}

	skill, err := g.skills.Find(string(sc.Directive.Category), sc.Step)
	if errors.Is(err, skills.ErrNotFound) {
		return Result{}, false
	}
	if err != nil {
		g.logger.Error("skill lookup failed", "step", sc.Step, "error", err)
		return Result{}, false
	}

	if !skill.Unlocked {
		g.reporter.AddBacklog(plan.BacklogEntry{
			Category: string(sc.Directive.Category),
			Step:     sc.Step,
			Label:    "exploration needed",
			Extra:    map[string]string{"skill": skill.Name},
		})
		return deferred(fmt.Sprintf(
			"I know a skill for this (%s) but it is still locked; queued exploration to unlock it.",
			skill.Name)), true
	}

	resp, err := g.client.Dispatch(ctx, actuator.Command{
		Type: actuator.CmdReplay,
		Args: map[string]any{"skill": skill.Name, "body": skill.Body},
	})
	if err != nil {
		return failed("skill replay failed", err.Error(), true), true
	}
	if !resp.OK {
		return failed(
			fmt.Sprintf("skill %s replay was rejected", skill.Name),
			resp.Error, true), true
	}

	if err := g.skills.RecordUse(skill.Name); err != nil {
		g.logger.Warn("record skill use failed", "skill", skill.Name, "error", err)
	}
	return completed(fmt.Sprintf("replayed skill %s", skill.Name)), true
}

// applyRolePolicy consumes a pending externally triggered role switch,
// attempts it via the actuator, and records the transition for the
// backlog. Role failures never fail the step itself.
func (g *Graph) applyRolePolicy(ctx context.Context, sc *StepContext) {
	v, ok := g.mem.Take(memory.KeyPendingRole)
	if !ok {
		return
	}
	role, _ := v.(string)
	if role == "" {
		return
	}

	resp, err := g.client.Dispatch(ctx, actuator.Command{
		Type: actuator.CmdSwitchRole,
		Args: map[string]any{"role": role},
	})
	switched := err == nil && resp.OK
	if !switched {
		reason := "dispatch failed"
		if err != nil {
			reason = err.Error()
		} else if resp.Error != "" {
			reason = resp.Error
		}
		g.logger.Warn("role switch failed", "role", role, "reason", reason)
	}

	g.reporter.AddBacklog(plan.BacklogEntry{
		Category: "role",
		Step:     sc.Step,
		Label:    fmt.Sprintf("role switch attempted (ok=%t)", switched),
		Role:     role,
	})
}

// finalize guarantees the updated target falls back to the previous
// target when the handler produced none.
func (g *Graph) finalize(sc *StepContext, res *Result) {
	if res.UpdatedTarget == nil {
		res.UpdatedTarget = sc.LastTarget
	}
	if res.Status == "" {
		res.Status = StatusCompleted
	}
	if res.Level == "" {
		res.Level = events.LevelInfo
	}
}

// handleUnimplemented queues a labeled backlog entry for modules with
// no actuator handler yet. This is deferred work, not a failure.
func (g *Graph) handleUnimplemented(module Module) handlerFunc {
	return func(ctx context.Context, sc *StepContext) Result {
		g.reporter.AddBacklog(plan.BacklogEntry{
			Category: string(sc.Directive.Category),
			Step:     sc.Step,
			Label:    "not implemented yet",
			Module:   string(module),
		})
		return deferred(fmt.Sprintf(
			"no %s handler exists yet; noted %q for later", module, sc.Step))
	}
}
