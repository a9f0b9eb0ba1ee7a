package build

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Placement is one block of a blueprint: a material at an offset from
// the structure origin.
type Placement struct {
	Material string `yaml:"material" json:"material"`
	Offset   [3]int `yaml:"offset" json:"offset"`
}

// Layout is a building blueprint.
type Layout struct {
	Name       string      `yaml:"name" json:"name"`
	Placements []Placement `yaml:"placements" json:"placements"`
}

// LoadLayout reads a blueprint YAML file.
func LoadLayout(path string) (*Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layout: %w", err)
	}
	var l Layout
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("parse layout %s: %w", path, err)
	}
	if len(l.Placements) == 0 {
		return nil, fmt.Errorf("layout %s has no placements", path)
	}
	return &l, nil
}

// Size returns the total number of blocks in the layout.
func (l *Layout) Size() int { return len(l.Placements) }

// Requirements returns the total material counts the layout needs.
func (l *Layout) Requirements() map[string]int {
	req := make(map[string]int)
	for _, p := range l.Placements {
		req[p.Material]++
	}
	return req
}

// NextBatch returns the next bounded-size slice of still-unplaced
// blocks, given how many have already been placed.
func (l *Layout) NextBatch(placed, batchSize int) []Placement {
	if placed < 0 {
		placed = 0
	}
	if placed >= len(l.Placements) {
		return nil
	}
	remaining := l.Placements[placed:]
	if batchSize > 0 && len(remaining) > batchSize {
		remaining = remaining[:batchSize]
	}
	return remaining
}

// Shortfall computes, per material, how many blocks are still missing
// after counting both inventory and already-reserved materials.
// Materials with no shortfall are omitted.
func Shortfall(requirements, inventory, reserved map[string]int) map[string]int {
	missing := make(map[string]int)
	for name, need := range requirements {
		have := inventory[name] + reserved[name]
		if have < need {
			missing[name] = need - have
		}
	}
	return missing
}

// FormatShortfall renders a shortfall map deterministically for
// backlog summaries.
func FormatShortfall(shortfall map[string]int) string {
	if len(shortfall) == 0 {
		return "no materials missing"
	}
	names := make([]string, 0, len(shortfall))
	for name := range shortfall {
		names = append(names, name)
	}
	sort.Strings(names)
	out := ""
	for i, name := range names {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%s x%d", name, shortfall[name])
	}
	return out
}
