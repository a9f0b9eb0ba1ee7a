package recovery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignatureCollapsesWhitespace(t *testing.T) {
	assert.Equal(t, "Mine Nearby Diamond ore", Signature("  Mine   Nearby\tDiamond ore "))
}

func TestAppendAndFinalize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reflections.json")
	store := NewReflectionStore(path)

	entry, err := store.Append("equip a pickaxe", "equip a pickaxe", "item unavailable", "refresh inventory first", nil)
	require.NoError(t, err)
	assert.Equal(t, RetryPending, entry.RetryResult)

	require.NoError(t, store.Finalize(entry.ID, RetryFailed))

	// Reload from disk through a fresh store.
	reloaded := NewReflectionStore(path)
	all, err := reloaded.All()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, RetryFailed, all[0].RetryResult)
	assert.Equal(t, "item unavailable", all[0].FailureReason)
}

func TestFinalizeIsIdempotent(t *testing.T) {
	store := NewReflectionStore(filepath.Join(t.TempDir(), "reflections.json"))
	entry, err := store.Append("sig", "step", "reason", "", nil)
	require.NoError(t, err)

	require.NoError(t, store.Finalize(entry.ID, RetrySuccess))
	require.NoError(t, store.Finalize(entry.ID, RetryFailed))

	all, err := store.All()
	require.NoError(t, err)
	assert.Equal(t, RetrySuccess, all[0].RetryResult, "first finalization wins")
}

func TestBySignatureReturnsNewestFirstBounded(t *testing.T) {
	store := NewReflectionStore(filepath.Join(t.TempDir(), "reflections.json"))

	for i := 0; i < 5; i++ {
		_, err := store.Append("mine iron", "mine iron", "reason", string(rune('a'+i)), nil)
		require.NoError(t, err)
	}
	_, err := store.Append("other", "other", "reason", "x", nil)
	require.NoError(t, err)

	got, err := store.BySignature("mine iron", 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "e", got[0].Improvement)
	assert.Equal(t, "d", got[1].Improvement)
	assert.Equal(t, "c", got[2].Improvement)
}

func TestPersistLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	store := NewReflectionStore(filepath.Join(dir, "reflections.json"))
	_, err := store.Append("sig", "step", "reason", "", nil)
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "reflections.json", entries[0].Name())
}
