package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hallgrim/golem/internal/skills"
)

func TestSkillsListEmpty(t *testing.T) {
	viper.Set("data_dir", t.TempDir())
	defer viper.Reset()

	var out bytes.Buffer
	rootCmd.SetArgs([]string{"skills", "list"})
	rootCmd.SetOut(&out)
	require.NoError(t, rootCmd.Execute())
}

func TestSkillsListShowsEntries(t *testing.T) {
	dir := t.TempDir()
	viper.Set("data_dir", dir)
	defer viper.Reset()

	repo, err := skills.Open(filepath.Join(dir, "skills.db"))
	require.NoError(t, err)
	require.NoError(t, repo.Save(&skills.Skill{
		Name: "strip_mine", Category: "mine", Pattern: "iron", Unlocked: true,
	}))
	require.NoError(t, repo.Close())

	var out bytes.Buffer
	rootCmd.SetArgs([]string{"skills", "list"})
	rootCmd.SetOut(&out)
	require.NoError(t, rootCmd.Execute())

	assert.Contains(t, out.String(), "strip_mine")
	assert.Contains(t, out.String(), "mine")
}

func TestSkillsUnlockUnknownFails(t *testing.T) {
	viper.Set("data_dir", t.TempDir())
	defer viper.Reset()

	rootCmd.SetArgs([]string{"skills", "unlock", "no_such_skill"})
	rootCmd.SetOut(new(bytes.Buffer))
	rootCmd.SetErr(new(bytes.Buffer))
	err := rootCmd.Execute()
	require.Error(t, err)
}
