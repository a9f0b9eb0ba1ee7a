// Package build implements the resumable building subtask: a pure
// checkpoint state machine over the phases survey, procurement,
// placement, and inspection, plus blueprint math for material
// shortfalls and placement batches.
package build

import (
	"encoding/json"
	"fmt"
)

// Phase is a building phase. The order is fixed:
// survey < procurement < placement < inspection.
type Phase string

const (
	PhaseSurvey      Phase = "survey"
	PhaseProcurement Phase = "procurement"
	PhasePlacement   Phase = "placement"
	PhaseInspection  Phase = "inspection"
)

var phaseOrder = []Phase{PhaseSurvey, PhaseProcurement, PhasePlacement, PhaseInspection}

// Index returns the phase's position in the fixed order, or -1.
func (p Phase) Index() int {
	for i, ph := range phaseOrder {
		if ph == p {
			return i
		}
	}
	return -1
}

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool { return p.Index() >= 0 }

// Checkpoint is the persisted progress state of one building job. It
// survives across plan executions until inspection completes.
type Checkpoint struct {
	Phase             Phase          `json:"phase"`
	ReservedMaterials map[string]int `json:"reserved_materials"`
	PlacedBlocks      int            `json:"placed_blocks"`
}

// NewCheckpoint returns a fresh survey-phase checkpoint.
func NewCheckpoint() *Checkpoint {
	return &Checkpoint{
		Phase:             PhaseSurvey,
		ReservedMaterials: make(map[string]int),
	}
}

// Serialize encodes the checkpoint as JSON.
func (c *Checkpoint) Serialize() ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal checkpoint: %w", err)
	}
	return data, nil
}

// Restore decodes a checkpoint from JSON, rejecting unknown phases and
// negative counters.
func Restore(data []byte) (*Checkpoint, error) {
	var c Checkpoint
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse checkpoint: %w", err)
	}
	if !c.Phase.Valid() {
		return nil, fmt.Errorf("checkpoint has unknown phase %q", c.Phase)
	}
	if c.PlacedBlocks < 0 {
		return nil, fmt.Errorf("checkpoint has negative placed_blocks %d", c.PlacedBlocks)
	}
	if c.ReservedMaterials == nil {
		c.ReservedMaterials = make(map[string]int)
	}
	return &c, nil
}

// Advance applies the deterministic phase-transition rule given the
// current shortfall and the size of the next placement batch. The
// phase never auto-regresses: inspection is terminal except via
// explicit rollback, and the rule only moves forward or holds.
func (c *Checkpoint) Advance(shortfall map[string]int, batchRemaining int, layoutSize int) {
	if c.Phase == PhaseInspection {
		return
	}

	next := PhaseSurvey
	switch {
	case len(shortfall) > 0:
		next = PhaseProcurement
	case batchRemaining > 0:
		next = PhasePlacement
	case layoutSize > 0 && c.PlacedBlocks >= layoutSize:
		next = PhaseInspection
	}

	if next.Index() < c.Phase.Index() {
		return
	}
	c.Phase = next
}

// Rollback steps back exactly one phase after an externally detected
// failure during a build attempt. Rolling back to survey clears the
// reserved materials and placed-block count; any other rollback
// subtracts the attempted batch size from placed blocks, floored at
// zero.
func (c *Checkpoint) Rollback(attemptedBatch int) {
	idx := c.Phase.Index()
	if idx <= 0 {
		c.Phase = PhaseSurvey
		c.ReservedMaterials = make(map[string]int)
		c.PlacedBlocks = 0
		return
	}

	c.Phase = phaseOrder[idx-1]
	if c.Phase == PhaseSurvey {
		c.ReservedMaterials = make(map[string]int)
		c.PlacedBlocks = 0
		return
	}

	c.PlacedBlocks -= attemptedBatch
	if c.PlacedBlocks < 0 {
		c.PlacedBlocks = 0
	}
}

// Reserve records materials set aside for this job.
func (c *Checkpoint) Reserve(materials map[string]int) {
	if c.ReservedMaterials == nil {
		c.ReservedMaterials = make(map[string]int)
	}
	for name, count := range materials {
		c.ReservedMaterials[name] += count
	}
}
