package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hallgrim/golem/internal/golemerr"
)

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	return v
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(newViper())
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Queue.Capacity)
	assert.Equal(t, 5*time.Minute, cfg.Queue.TaskTimeout)
	assert.Equal(t, 1, cfg.Queue.RetryLimit)
	assert.Equal(t, 2, cfg.Recovery.MaxReplanDepth)
	assert.Equal(t, [3]float64{0, 64, 0}, cfg.Action.DefaultTarget)
	assert.Equal(t, 16, cfg.Action.BatchSize)
	assert.NotEmpty(t, cfg.Actuator.Endpoint)
	assert.NotEmpty(t, cfg.Planner.Endpoint)
}

func TestLoadFromFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
queue:
  capacity: 3
  task_timeout: 90s
recovery:
  max_replan_depth: 5
action:
  default_target: [100, 70, -40]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	v := newViper()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Queue.Capacity)
	assert.Equal(t, 90*time.Second, cfg.Queue.TaskTimeout)
	assert.Equal(t, 5, cfg.Recovery.MaxReplanDepth)
	assert.Equal(t, [3]float64{100, 70, -40}, cfg.Action.DefaultTarget)
	// Untouched keys keep their defaults.
	assert.Equal(t, 1, cfg.Queue.RetryLimit)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*viper.Viper)
	}{
		{"zero capacity", func(v *viper.Viper) { v.Set("queue.capacity", 0) }},
		{"negative retry limit", func(v *viper.Viper) { v.Set("queue.retry_limit", -1) }},
		{"zero timeout", func(v *viper.Viper) { v.Set("queue.task_timeout", "0s") }},
		{"negative replan depth", func(v *viper.Viper) { v.Set("recovery.max_replan_depth", -1) }},
		{"empty actuator endpoint", func(v *viper.Viper) { v.Set("actuator.endpoint", "") }},
		{"empty planner endpoint", func(v *viper.Viper) { v.Set("planner.endpoint", "") }},
		{"zero batch size", func(v *viper.Viper) { v.Set("action.batch_size", 0) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newViper()
			tt.mutate(v)
			_, err := Load(v)
			require.Error(t, err)
			assert.Equal(t, golemerr.CodeConfigInvalid, golemerr.CodeOf(err))
		})
	}
}
