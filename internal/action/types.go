// Package action implements the per-step action pipeline: one
// action-category step is classified into a concrete handler (skill
// replay, movement, equip, mining, building, combat, generic backlog)
// through a fixed sequence of stages.
package action

import (
	"github.com/hallgrim/golem/internal/events"
	"github.com/hallgrim/golem/internal/plan"
)

// Status is the outcome class of one executed step.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
	StatusDeferred  Status = "deferred"
)

// StepContext is the input to one pipeline run.
type StepContext struct {
	Utterance  string
	Step       string
	Directive  *plan.Directive
	CoordHint  *[3]float64 // explicit coordinate from the directive or step text
	LastTarget *[3]float64 // carried across steps within a plan run
}

// Result is the structured outcome a handler returns. Failures travel
// as data, not as errors, so the executor decides what halts a plan.
type Result struct {
	Handled       bool
	Status        Status
	Observation   string
	Level         events.Level
	UpdatedTarget *[3]float64
	FailureReason string
	Halt          bool
	// SuppressTrace skips the executor's thought-action-observation
	// record when the handler already logged an equivalent one.
	SuppressTrace bool
}

// Module is the handler family a category routes to.
type Module string

const (
	ModuleMove    Module = "move"
	ModuleEquip   Module = "equip"
	ModuleMine    Module = "mine"
	ModuleBuild   Module = "build"
	ModuleFight   Module = "fight"
	ModuleGeneric Module = "generic"
)

// RouteModule maps an action category to its handler module.
func RouteModule(cat plan.Category) Module {
	switch cat {
	case plan.CategoryMove:
		return ModuleMove
	case plan.CategoryEquip:
		return ModuleEquip
	case plan.CategoryMine:
		return ModuleMine
	case plan.CategoryBuild:
		return ModuleBuild
	case plan.CategoryFight:
		return ModuleFight
	default:
		return ModuleGeneric
	}
}

func completed(observation string) Result {
	return Result{Handled: true, Status: StatusCompleted, Observation: observation, Level: events.LevelInfo}
}

func failed(observation, reason string, halt bool) Result {
	return Result{
		Handled:       true,
		Status:        StatusFailed,
		Observation:   observation,
		Level:         events.LevelWarning,
		FailureReason: reason,
		Halt:          halt,
	}
}

func deferred(observation string) Result {
	return Result{Handled: true, Status: StatusDeferred, Observation: observation, Level: events.LevelInfo}
}
