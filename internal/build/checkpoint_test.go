package build

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpointRoundTrip(t *testing.T) {
	cp := &Checkpoint{
		Phase:             PhasePlacement,
		ReservedMaterials: map[string]int{"oak_planks": 12, "glass": 4},
		PlacedBlocks:      7,
	}

	data, err := cp.Serialize()
	require.NoError(t, err)

	restored, err := Restore(data)
	require.NoError(t, err)
	assert.Equal(t, cp, restored)
}

func TestRestoreRejectsUnknownPhase(t *testing.T) {
	_, err := Restore([]byte(`{"phase": "demolition", "reserved_materials": {}, "placed_blocks": 0}`))
	require.Error(t, err)
}

func TestRestoreRejectsNegativePlaced(t *testing.T) {
	_, err := Restore([]byte(`{"phase": "survey", "placed_blocks": -1}`))
	require.Error(t, err)
}

func TestAdvanceIsDeterministicAndForwardMonotonic(t *testing.T) {
	tests := []struct {
		name      string
		start     Phase
		placed    int
		shortfall map[string]int
		batch     int
		size      int
		want      Phase
	}{
		{"survey with shortfall", PhaseSurvey, 0, map[string]int{"glass": 4}, 5, 16, PhaseProcurement},
		{"survey with batch ready", PhaseSurvey, 0, nil, 5, 16, PhasePlacement},
		{"placement holds while batches remain", PhasePlacement, 8, nil, 5, 16, PhasePlacement},
		{"all placed goes to inspection", PhasePlacement, 16, nil, 0, 16, PhaseInspection},
		{"inspection never auto-regresses", PhaseInspection, 16, map[string]int{"glass": 4}, 5, 16, PhaseInspection},
		{"procurement does not regress to survey", PhaseProcurement, 0, nil, 0, 0, PhaseProcurement},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cp := NewCheckpoint()
			cp.Phase = tt.start
			cp.PlacedBlocks = tt.placed

			cp.Advance(tt.shortfall, tt.batch, tt.size)
			assert.Equal(t, tt.want, cp.Phase)

			// Determinism: the same inputs yield the same phase again.
			cp2 := NewCheckpoint()
			cp2.Phase = tt.start
			cp2.PlacedBlocks = tt.placed
			cp2.Advance(tt.shortfall, tt.batch, tt.size)
			assert.Equal(t, cp.Phase, cp2.Phase)
		})
	}
}

func TestRollbackStepsBackOnePhase(t *testing.T) {
	cp := &Checkpoint{
		Phase:             PhaseInspection,
		ReservedMaterials: map[string]int{"glass": 4},
		PlacedBlocks:      16,
	}

	cp.Rollback(5)
	assert.Equal(t, PhasePlacement, cp.Phase)
	assert.Equal(t, 11, cp.PlacedBlocks)
	assert.Equal(t, map[string]int{"glass": 4}, cp.ReservedMaterials)

	cp.Rollback(20)
	assert.Equal(t, PhaseProcurement, cp.Phase)
	assert.Equal(t, 0, cp.PlacedBlocks, "placed blocks floor at zero")

	cp.Rollback(0)
	assert.Equal(t, PhaseSurvey, cp.Phase)
	assert.Empty(t, cp.ReservedMaterials, "rollback to survey clears reservations")
	assert.Zero(t, cp.PlacedBlocks)

	cp.Rollback(3)
	assert.Equal(t, PhaseSurvey, cp.Phase, "survey has nothing earlier to roll back to")
}

func TestShortfall(t *testing.T) {
	req := map[string]int{"oak_planks": 12, "glass": 4}
	inv := map[string]int{"oak_planks": 8}

	missing := Shortfall(req, inv, nil)
	assert.Equal(t, map[string]int{"oak_planks": 4, "glass": 4}, missing)

	missing = Shortfall(req, inv, map[string]int{"oak_planks": 4, "glass": 4})
	assert.Empty(t, missing)
}

func TestSurveyToProcurementScenario(t *testing.T) {
	// Requirements {oak_planks:12, glass:4}, inventory {oak_planks:8},
	// phase survey: one advance lands in procurement with both
	// materials short.
	layout := &Layout{Name: "hut"}
	for i := 0; i < 12; i++ {
		layout.Placements = append(layout.Placements, Placement{Material: "oak_planks", Offset: [3]int{i, 0, 0}})
	}
	for i := 0; i < 4; i++ {
		layout.Placements = append(layout.Placements, Placement{Material: "glass", Offset: [3]int{i, 1, 0}})
	}

	cp := NewCheckpoint()
	inv := map[string]int{"oak_planks": 8}
	shortfall := Shortfall(layout.Requirements(), inv, cp.ReservedMaterials)
	batch := layout.NextBatch(cp.PlacedBlocks, 5)

	cp.Advance(shortfall, len(batch), layout.Size())

	assert.Equal(t, PhaseProcurement, cp.Phase)
	assert.Equal(t, map[string]int{"oak_planks": 4, "glass": 4}, shortfall)
	assert.Equal(t, "glass x4, oak_planks x4", FormatShortfall(shortfall))
}

func TestNextBatch(t *testing.T) {
	layout := &Layout{Placements: make([]Placement, 16)}

	assert.Len(t, layout.NextBatch(0, 5), 5)
	assert.Len(t, layout.NextBatch(14, 5), 2)
	assert.Nil(t, layout.NextBatch(16, 5))
	assert.Len(t, layout.NextBatch(0, 0), 16, "zero batch size means unbounded")
}

func TestStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	// Missing checkpoint loads fresh.
	cp, err := store.Load("watchtower")
	require.NoError(t, err)
	assert.Equal(t, PhaseSurvey, cp.Phase)

	cp.Phase = PhaseProcurement
	cp.Reserve(map[string]int{"glass": 4})
	require.NoError(t, store.Save("watchtower", cp))

	loaded, err := store.Load("watchtower")
	require.NoError(t, err)
	assert.Equal(t, cp, loaded)

	// No temp file left behind.
	matches, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)

	require.NoError(t, store.Delete("watchtower"))
	fresh, err := store.Load("watchtower")
	require.NoError(t, err)
	assert.Equal(t, PhaseSurvey, fresh.Phase)
}

func TestLoadLayout(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hut.yaml")
	yaml := `name: hut
placements:
  - material: oak_planks
    offset: [0, 0, 0]
  - material: glass
    offset: [1, 0, 0]
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	l, err := LoadLayout(path)
	require.NoError(t, err)
	assert.Equal(t, "hut", l.Name)
	assert.Equal(t, 2, l.Size())
	assert.Equal(t, map[string]int{"oak_planks": 1, "glass": 1}, l.Requirements())
}
