package plan

import (
	"fmt"
	"strings"
)

// BacklogEntry records a deferred or unimplemented action request.
// Backlog entries are the only channel for surfacing such work to the
// human-facing summarizer; they are never silently dropped.
type BacklogEntry struct {
	Category string            `json:"category"`
	Step     string            `json:"step"`
	Label    string            `json:"label,omitempty"`
	Module   string            `json:"module,omitempty"`
	Role     string            `json:"role,omitempty"`
	Extra    map[string]string `json:"extra,omitempty"`
}

// String renders the entry for human summaries.
func (b BacklogEntry) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s]", b.Category)
	if b.Label != "" {
		fmt.Fprintf(&sb, " %s:", b.Label)
	}
	fmt.Fprintf(&sb, " %s", b.Step)
	if b.Module != "" {
		fmt.Fprintf(&sb, " (module=%s)", b.Module)
	}
	if b.Role != "" {
		fmt.Fprintf(&sb, " (role=%s)", b.Role)
	}
	return sb.String()
}
