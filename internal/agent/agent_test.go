package agent

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hallgrim/golem/internal/actuator"
	"github.com/hallgrim/golem/internal/config"
	"github.com/hallgrim/golem/internal/notify"
	"github.com/hallgrim/golem/internal/plan"
	"github.com/hallgrim/golem/internal/planner"
)

type fakeClient struct {
	mu       sync.Mutex
	commands []actuator.Command
}

func (c *fakeClient) Dispatch(ctx context.Context, cmd actuator.Command) (*actuator.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cmd.Type == actuator.CmdStatus {
		data, _ := json.Marshal(map[string]any{
			"position": []float64{0, 64, 0}, "health": 20.0, "food": 20.0,
			"inventory": map[string]int{},
		})
		return &actuator.Response{OK: true, Data: data}, nil
	}
	c.commands = append(c.commands, cmd)
	return &actuator.Response{OK: true}, nil
}

func (c *fakeClient) Close() error { return nil }

func (c *fakeClient) commandTypes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.commands))
	for i, cmd := range c.commands {
		out[i] = cmd.Type
	}
	return out
}

type fixedPlanner struct {
	mu    sync.Mutex
	plans []*plan.Plan
	seen  []string
}

func (f *fixedPlanner) Plan(ctx context.Context, utterance string, snapshot planner.Snapshot) (*plan.Plan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, utterance)
	if len(f.plans) == 0 {
		return plan.Fallback(""), nil
	}
	p := f.plans[0]
	f.plans = f.plans[1:]
	return p, nil
}

type collectNotifier struct {
	mu      sync.Mutex
	notices []string
}

func (c *collectNotifier) Say(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notices = append(c.notices, text)
}

func (c *collectNotifier) all() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.notices...)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		DataDir:    filepath.Join(dir, "data"),
		LayoutsDir: filepath.Join(dir, "layouts"),
		Queue:      config.QueueConfig{Capacity: 4, TaskTimeout: 30 * time.Second, RetryLimit: 1},
		Actuator:   config.ActuatorConfig{Endpoint: "ws://test"},
		Planner:    config.PlannerConfig{Endpoint: "http://test"},
		Recovery:   config.RecoveryConfig{MaxReplanDepth: 2},
		Action: config.ActionConfig{
			DefaultTarget: [3]float64{0, 64, 0},
			SearchRadius:  32, GatherCount: 8, BatchSize: 16, SnapshotMaxAgeSeconds: 30,
		},
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		if cond() {
			return
		}
		select {
		case <-deadline:
			t.Fatal("condition never became true")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestAgentProcessesUtteranceEndToEnd(t *testing.T) {
	client := &fakeClient{}
	svc := &fixedPlanner{plans: []*plan.Plan{{
		Steps:    []string{"go to 10 64 10"},
		Intent:   plan.IntentTask,
		Response: "Heading over.",
	}}}
	notifier := &collectNotifier{}

	a, err := New(testConfig(t), client, svc, notifier, nil, slog.Default())
	require.NoError(t, err)
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, a.Start(ctx))

	a.HandleUtterance("chat", "come here")

	waitFor(t, func() bool {
		return len(client.commandTypes()) > 0
	})
	assert.Equal(t, []string{actuator.CmdMove}, client.commandTypes())
	assert.Contains(t, notifier.all(), "Heading over.")

	svc.mu.Lock()
	defer svc.mu.Unlock()
	assert.Equal(t, []string{"come here"}, svc.seen)
}

func TestRequestRoleAppliesOnNextActionStep(t *testing.T) {
	client := &fakeClient{}
	svc := &fixedPlanner{plans: []*plan.Plan{{
		Steps:  []string{"go to 3 64 3"},
		Intent: plan.IntentTask,
	}}}

	a, err := New(testConfig(t), client, svc, &collectNotifier{}, nil, slog.Default())
	require.NoError(t, err)
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, a.Start(ctx))

	a.RequestRole("miner")
	a.HandleUtterance("chat", "head to the quarry")

	waitFor(t, func() bool {
		return len(client.commandTypes()) >= 2
	})
	assert.Equal(t, []string{actuator.CmdSwitchRole, actuator.CmdMove}, client.commandTypes())

	client.mu.Lock()
	switchCmd := client.commands[0]
	client.mu.Unlock()
	assert.Equal(t, "miner", switchCmd.Args["role"])
}

func TestHandleUtteranceIgnoresBlankInput(t *testing.T) {
	client := &fakeClient{}
	a, err := New(testConfig(t), client, &fixedPlanner{}, &collectNotifier{}, nil, slog.Default())
	require.NoError(t, err)
	defer a.Close()

	a.HandleUtterance("chat", "   ")
	// Nothing was queued, so starting and immediately stopping leaves
	// no commands behind.
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, a.Start(ctx))
	time.Sleep(50 * time.Millisecond)
	cancel()
	a.Wait()
	assert.Empty(t, client.commandTypes())
}

func TestLoadLayoutsSkipsUnreadableFiles(t *testing.T) {
	dir := t.TempDir()
	good := `name: hut
placements:
  - material: oak_planks
    offset: [0, 0, 0]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hut.yaml"), []byte(good), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("{not yaml"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0o644))

	layouts, err := loadLayouts(dir, slog.Default())
	require.NoError(t, err)
	require.Len(t, layouts, 1)
	assert.Equal(t, 1, layouts["hut"].Size())
}

func TestLoadLayoutsMissingDirIsEmpty(t *testing.T) {
	layouts, err := loadLayouts(filepath.Join(t.TempDir(), "nope"), slog.Default())
	require.NoError(t, err)
	assert.Empty(t, layouts)
}

var _ notify.Notifier = (*collectNotifier)(nil)
