// Package agent assembles the engine: intake queue, planning client,
// plan executor, recovery coordinator, and the stores they share.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hallgrim/golem/internal/action"
	"github.com/hallgrim/golem/internal/actuator"
	"github.com/hallgrim/golem/internal/build"
	"github.com/hallgrim/golem/internal/config"
	"github.com/hallgrim/golem/internal/events"
	"github.com/hallgrim/golem/internal/executor"
	"github.com/hallgrim/golem/internal/memory"
	"github.com/hallgrim/golem/internal/notify"
	"github.com/hallgrim/golem/internal/planner"
	"github.com/hallgrim/golem/internal/queue"
	"github.com/hallgrim/golem/internal/recovery"
	"github.com/hallgrim/golem/internal/skills"
	"github.com/hallgrim/golem/internal/status"
)

// Agent ties the subsystems together and drives the intake loop.
type Agent struct {
	cfg       *config.Config
	client    actuator.Client
	svc       planner.Service
	notifier  notify.Notifier
	logger    *slog.Logger
	queue     *queue.Queue
	exec      *executor.PlanExecutor
	refresher *status.Refresher
	reporter  *events.Reporter
	skills    *skills.Repository
	mem       *memory.Store
}

// New assembles an agent from configuration and the two external
// collaborators: the actuator bridge and the planning service.
// missions may be nil.
func New(cfg *config.Config, client actuator.Client, svc planner.Service,
	notifier notify.Notifier, missions executor.MissionRunner, logger *slog.Logger) (*Agent, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = notify.NewLogNotifier(logger)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	skillRepo, err := skills.Open(filepath.Join(cfg.DataDir, "skills.db"))
	if err != nil {
		return nil, fmt.Errorf("open skill repository: %w", err)
	}

	layouts, err := loadLayouts(cfg.LayoutsDir, logger)
	if err != nil {
		skillRepo.Close()
		return nil, err
	}

	mem := memory.NewStore()
	reporter := events.NewReporter(notifier, logger)
	refresher := status.NewRefresher(client, logger)
	builds := build.NewStore(filepath.Join(cfg.DataDir, "checkpoints"))
	reflections := recovery.NewReflectionStore(filepath.Join(cfg.DataDir, "reflections.json"))

	graph := action.NewGraph(action.Config{
		DefaultTarget:  cfg.Action.DefaultTarget,
		SearchRadius:   cfg.Action.SearchRadius,
		GatherCount:    cfg.Action.GatherCount,
		BatchSize:      cfg.Action.BatchSize,
		SnapshotMaxAge: cfg.Action.SnapshotMaxAgeSeconds,
	}, client, skillRepo, refresher, builds, layouts, mem, reporter, logger)

	directives := executor.NewDirectiveExecutor(graph, client, refresher, reporter, notifier, missions, logger)
	coordinator := recovery.NewCoordinator(reflections, svc, reporter, mem, notifier,
		cfg.Recovery.MaxReplanDepth, logger)
	exec := executor.NewPlanExecutor(directives, coordinator, reflections, reporter, refresher, mem, notifier, logger)

	q := queue.New(queue.Config{
		Capacity:    cfg.Queue.Capacity,
		TaskTimeout: cfg.Queue.TaskTimeout,
		RetryLimit:  cfg.Queue.RetryLimit,
	}, notifier, logger)

	return &Agent{
		cfg:       cfg,
		client:    client,
		svc:       svc,
		notifier:  notifier,
		logger:    logger,
		queue:     q,
		exec:      exec,
		refresher: refresher,
		reporter:  reporter,
		skills:    skillRepo,
		mem:       mem,
	}, nil
}

// RequestRole queues a role switch; the next action step consumes and
// applies it. A later request before that overwrites the earlier one.
func (a *Agent) RequestRole(role string) {
	role = strings.TrimSpace(role)
	if role == "" {
		return
	}
	a.mem.Set(memory.KeyPendingRole, role)
	a.logger.Info("role switch queued", "role", role)
}

// HandleUtterance queues one user utterance for processing. Safe to
// call from any goroutine; never blocks.
func (a *Agent) HandleUtterance(source, message string) {
	message = strings.TrimSpace(message)
	if message == "" {
		return
	}
	a.queue.Enqueue(queue.NewTask(source, message))
}

// Start runs the intake loop until ctx is canceled.
func (a *Agent) Start(ctx context.Context) error {
	return a.queue.Start(ctx, a.process)
}

// Wait blocks until the intake loop has stopped.
func (a *Agent) Wait() {
	a.queue.Wait()
}

// Close releases the agent's resources. The intake loop should be
// stopped (via context cancellation) first.
func (a *Agent) Close() error {
	var firstErr error
	if err := a.skills.Close(); err != nil {
		firstErr = err
	}
	if err := a.client.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// process handles one queued utterance: ask the planning service for a
// plan, then run it.
func (a *Agent) process(ctx context.Context, task queue.Task) error {
	started := time.Now()
	a.logger.Info("task started", "task_id", task.ID, "source", task.Source)

	p, err := a.svc.Plan(ctx, task.Message, a.worldContext())
	if err != nil {
		a.logger.Error("planning failed", "task_id", task.ID, "error", err)
		a.notifier.Say("I could not reach my planner just now. I will need that request again later.")
		return err
	}

	err = a.exec.Run(ctx, task.Message, p, nil)
	a.logger.Info("task finished",
		"task_id", task.ID,
		"duration", time.Since(started),
		"error", err)
	return err
}

// worldContext gathers what the planner should know before planning.
func (a *Agent) worldContext() planner.Snapshot {
	snap := planner.Snapshot{Backlog: a.reporter.Backlog()}
	for _, det := range a.reporter.Detections() {
		snap.Detections = append(snap.Detections, det.Summary)
	}
	if cached := a.refresher.Cached(); cached != nil {
		snap.Position = cached.Position
		snap.Inventory = cached.Inventory
	}
	return snap
}

// loadLayouts reads every blueprint under dir. A missing directory is
// fine: building steps then fail with a clear "no blueprint" message.
func loadLayouts(dir string, logger *slog.Logger) (map[string]*build.Layout, error) {
	layouts := make(map[string]*build.Layout)

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return layouts, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read layouts dir: %w", err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || (!strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml")) {
			continue
		}
		layout, err := build.LoadLayout(filepath.Join(dir, name))
		if err != nil {
			logger.Warn("skipping unreadable layout", "file", name, "error", err)
			continue
		}
		key := layout.Name
		if key == "" {
			key = strings.TrimSuffix(strings.TrimSuffix(name, ".yaml"), ".yml")
		}
		layouts[key] = layout
	}
	logger.Info("layouts loaded", "count", len(layouts))
	return layouts, nil
}
