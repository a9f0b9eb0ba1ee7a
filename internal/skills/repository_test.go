package skills

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSaveAndGet(t *testing.T) {
	repo := openTestRepo(t)

	skill := &Skill{
		Name:     "strip_mine_iron",
		Category: "mine",
		Pattern:  "iron ore",
		Body:     `[{"type":"gather_blocks","args":{"material":"iron_ore"}}]`,
		Unlocked: true,
	}
	require.NoError(t, repo.Save(skill))

	got, err := repo.Get("strip_mine_iron")
	require.NoError(t, err)
	assert.Equal(t, skill.Pattern, got.Pattern)
	assert.True(t, got.Unlocked)

	_, err = repo.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindMatchesByPatternKeywords(t *testing.T) {
	repo := openTestRepo(t)

	require.NoError(t, repo.Save(&Skill{
		Name: "mine_any", Category: "mine", Pattern: "mine", Unlocked: true,
	}))
	require.NoError(t, repo.Save(&Skill{
		Name: "mine_diamond", Category: "mine", Pattern: "mine diamond", Unlocked: true,
	}))

	got, err := repo.Find("mine", "mine nearby diamond ore")
	require.NoError(t, err)
	assert.Equal(t, "mine_diamond", got.Name, "more specific pattern wins")

	got, err = repo.Find("mine", "mine some cobblestone")
	require.NoError(t, err)
	assert.Equal(t, "mine_any", got.Name)

	_, err = repo.Find("build", "mine nearby diamond ore")
	assert.ErrorIs(t, err, ErrNotFound, "category is part of the key")

	_, err = repo.Find("mine", "chop down a tree")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindPrefersUnlockedOnTie(t *testing.T) {
	repo := openTestRepo(t)

	require.NoError(t, repo.Save(&Skill{
		Name: "locked_tower", Category: "build", Pattern: "tower", Unlocked: false,
	}))
	require.NoError(t, repo.Save(&Skill{
		Name: "open_tower", Category: "build", Pattern: "tower", Unlocked: true,
	}))

	got, err := repo.Find("build", "build a tower")
	require.NoError(t, err)
	assert.Equal(t, "open_tower", got.Name)
}

func TestUnlockAndRecordUse(t *testing.T) {
	repo := openTestRepo(t)

	require.NoError(t, repo.Save(&Skill{
		Name: "bridge_gap", Category: "build", Pattern: "bridge",
	}))

	require.NoError(t, repo.Unlock("bridge_gap"))
	require.NoError(t, repo.RecordUse("bridge_gap"))
	require.NoError(t, repo.RecordUse("bridge_gap"))

	got, err := repo.Get("bridge_gap")
	require.NoError(t, err)
	assert.True(t, got.Unlocked)
	assert.Equal(t, 2, got.Uses)

	assert.ErrorIs(t, repo.Unlock("missing"), ErrNotFound)
}

func TestList(t *testing.T) {
	repo := openTestRepo(t)
	require.NoError(t, repo.Save(&Skill{Name: "b", Category: "mine", Pattern: "x"}))
	require.NoError(t, repo.Save(&Skill{Name: "a", Category: "mine", Pattern: "y"}))

	all, err := repo.List()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].Name)
}
