// Package plan defines the plan/directive data model produced by the
// planning service and consumed by the executor.
package plan

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Category classifies what kind of world action a step asks for.
type Category string

const (
	CategoryMove    Category = "move"
	CategoryEquip   Category = "equip"
	CategoryMine    Category = "mine"
	CategoryBuild   Category = "build"
	CategoryFight   Category = "fight"
	CategoryDetect  Category = "detect"
	CategoryChat    Category = "chat"
	CategoryStatus  Category = "status"
	CategoryGeneric Category = "generic"
)

// ExecutorKind selects which subsystem carries out a directive.
type ExecutorKind string

const (
	ExecActuator ExecutorKind = "actuator"
	ExecMission  ExecutorKind = "remote-mission"
	ExecChat     ExecutorKind = "chat"
	ExecHybrid   ExecutorKind = "hybrid"
)

// Intent values the planning service may attach to a plan.
const (
	IntentTask    = "task"
	IntentChat    = "chat"
	IntentClarify = "clarify"
)

// Directive is the structured, per-step instruction bound to a plan step.
type Directive struct {
	ID       string         `json:"id"`
	Step     string         `json:"step"`
	Label    string         `json:"label,omitempty"`
	Category Category       `json:"category"`
	Executor ExecutorKind   `json:"executor"`
	Args     map[string]any `json:"args,omitempty"`
	Fallback string         `json:"fallback,omitempty"`
}

// Plan is a structured multi-step instruction set produced by the
// planning service for one utterance.
type Plan struct {
	Steps         []string       `json:"steps"`
	Directives    []*Directive   `json:"directives"`
	Response      string         `json:"response,omitempty"`
	Intent        string         `json:"intent,omitempty"`
	Confidence    float64        `json:"confidence,omitempty"`
	Blocking      bool           `json:"blocking,omitempty"`
	Backlog       []BacklogEntry `json:"backlog,omitempty"`
	RecoveryHints []string       `json:"recovery_hints,omitempty"`
}

// ChatOnly reports whether the plan should produce no actuator calls:
// it is blocking, asks for clarification, or carries pure chat intent.
func (p *Plan) ChatOnly() bool {
	return p.Blocking || p.Intent == IntentChat || p.Intent == IntentClarify
}

// Normalize enforces the directive-per-step invariant: missing or nil
// directive entries are synthesized from the raw step text, and extra
// entries beyond the step count are dropped.
func (p *Plan) Normalize() {
	if len(p.Directives) > len(p.Steps) {
		p.Directives = p.Directives[:len(p.Steps)]
	}
	for len(p.Directives) < len(p.Steps) {
		p.Directives = append(p.Directives, nil)
	}
	for i, d := range p.Directives {
		if d == nil {
			p.Directives[i] = SynthesizeDirective(p.Steps[i])
			continue
		}
		if d.ID == "" {
			d.ID = uuid.NewString()
		}
		if d.Step == "" {
			d.Step = p.Steps[i]
		}
		if d.Category == "" {
			d.Category = ClassifyStep(d.Step)
		}
		if d.Executor == "" {
			d.Executor = ExecActuator
		}
	}
}

// SynthesizeDirective builds a directive from raw step text alone.
func SynthesizeDirective(step string) *Directive {
	return &Directive{
		ID:       uuid.NewString(),
		Step:     step,
		Category: ClassifyStep(step),
		Executor: ExecActuator,
	}
}

// Fallback returns the minimal plan substituted when the planning
// service produces malformed or empty output: zero steps and a generic
// acknowledgement.
func Fallback(ack string) *Plan {
	if ack == "" {
		ack = "I could not work out a plan for that, could you rephrase?"
	}
	return &Plan{Response: ack, Intent: IntentTask, Confidence: 0}
}

// categoryKeywords drives ClassifyStep. First category whose keyword
// list matches wins; order matters (equip before mine so "equip a
// pickaxe for mining" does not classify as mining).
var categoryKeywords = []struct {
	cat   Category
	words []string
}{
	{CategoryEquip, []string{"equip", "wield", "hold ", "switch to", "put on"}},
	{CategoryMine, []string{"mine", "dig", "gather", "harvest", "excavate", "collect"}},
	{CategoryBuild, []string{"build", "place block", "construct", "erect", "assemble"}},
	{CategoryFight, []string{"fight", "attack", "kill", "defend", "slay"}},
	{CategoryDetect, []string{"scan", "look around", "detect", "survey the area", "report", "check surroundings"}},
	{CategoryStatus, []string{"check status", "check inventory", "check health", "verify", "confirm"}},
	{CategoryChat, []string{"say ", "tell ", "reply", "announce"}},
	{CategoryMove, []string{"move", "go to", "walk", "travel", "head ", "navigate", "approach", "return to"}},
}

// ClassifyStep maps raw step text to an action category by keyword.
// Unmatched steps are generic.
func ClassifyStep(step string) Category {
	lower := strings.ToLower(step)
	for _, ck := range categoryKeywords {
		for _, w := range ck.words {
			if strings.Contains(lower, w) {
				return ck.cat
			}
		}
	}
	return CategoryGeneric
}

// Validate checks internal consistency. Normalize must run first.
func (p *Plan) Validate() error {
	if len(p.Directives) != len(p.Steps) {
		return fmt.Errorf("plan has %d steps but %d directives", len(p.Steps), len(p.Directives))
	}
	for i, d := range p.Directives {
		if d == nil {
			return fmt.Errorf("directive %d is nil", i)
		}
		switch d.Executor {
		case ExecActuator, ExecMission, ExecChat, ExecHybrid:
		default:
			return fmt.Errorf("directive %d has unknown executor %q", i, d.Executor)
		}
	}
	return nil
}
