package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlan(t *testing.T) {
	raw := `Here is the plan you asked for:
` + "```json" + `
{
  "steps": ["equip a pickaxe", "mine nearby diamond ore"],
  "directives": [
    {"id": "d1", "step": "equip a pickaxe", "category": "equip", "executor": "actuator", "args": {"item": "pickaxe"}},
    {"id": "d2", "step": "mine nearby diamond ore", "category": "mine", "executor": "actuator"}
  ],
  "response": "On it, getting diamonds.",
  "intent": "task",
  "confidence": 0.92,
  "blocking": false
}
` + "```"

	p, err := Parse(raw)
	require.NoError(t, err)
	require.Len(t, p.Steps, 2)
	require.Len(t, p.Directives, 2)
	assert.Equal(t, CategoryEquip, p.Directives[0].Category)
	assert.Equal(t, "pickaxe", p.Directives[0].Args["item"])
	assert.Equal(t, "On it, getting diamonds.", p.Response)
	assert.InDelta(t, 0.92, p.Confidence, 1e-9)
	assert.False(t, p.ChatOnly())
}

func TestParsePlanWithoutDirectives(t *testing.T) {
	raw := `{"steps": ["go to 10 64 10", "build a hut"], "response": "ok"}`

	p, err := Parse(raw)
	require.NoError(t, err)
	require.Len(t, p.Directives, 2)
	assert.Equal(t, CategoryMove, p.Directives[0].Category)
	assert.Equal(t, CategoryBuild, p.Directives[1].Category)
	assert.Equal(t, IntentTask, p.Intent)
}

func TestParseRejectsNonJSON(t *testing.T) {
	_, err := Parse("sorry, I have no idea what to do")
	require.Error(t, err)
}

func TestParseMissionExecutorAliases(t *testing.T) {
	raw := `{"steps": ["run the scouting mission"], "directives": [{"step": "run the scouting mission", "executor": "remote_mission"}]}`

	p, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, ExecMission, p.Directives[0].Executor)
}

func TestParseBraceInStringField(t *testing.T) {
	raw := `{"steps": ["say {hello} to the player"], "response": "sure"}`

	p, err := Parse(raw)
	require.NoError(t, err)
	require.Len(t, p.Steps, 1)
	assert.Equal(t, "say {hello} to the player", p.Steps[0])
}

func TestParseBacklogEntries(t *testing.T) {
	raw := `{"steps": [], "blocking": true, "response": "which ore?",
	  "backlog": [{"category": "chat", "step": "clarify target ore", "label": "clarification"}]}`

	p, err := Parse(raw)
	require.NoError(t, err)
	require.Len(t, p.Backlog, 1)
	assert.Equal(t, "chat", p.Backlog[0].Category)
	assert.True(t, p.ChatOnly())
}
