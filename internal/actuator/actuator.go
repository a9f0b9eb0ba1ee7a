// Package actuator provides the command channel to the remote actuator
// bridge: the system that actually performs world-affecting operations.
package actuator

import (
	"context"
	"encoding/json"
)

// Command is one world-affecting request.
type Command struct {
	Type string         `json:"type"`
	Args map[string]any `json:"args,omitempty"`
}

// Response is the actuator's answer to a command.
type Response struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

// Client dispatches commands to the remote actuator. Dispatch blocks
// until the actuator answers, the context is done, or the connection
// drops. Implementations must be safe for use from multiple goroutines,
// although the executor only ever issues one command at a time.
type Client interface {
	Dispatch(ctx context.Context, cmd Command) (*Response, error)
	Close() error
}

// Well-known command types understood by the bridge.
const (
	CmdMove       = "move_to"
	CmdEquip      = "equip_item"
	CmdGather     = "gather_blocks"
	CmdPlace      = "place_blocks"
	CmdReplay     = "replay_skill"
	CmdSwitchRole = "switch_role"
	CmdStatus     = "query_status"
	CmdChat       = "chat"
)
