package action

import (
	"regexp"
	"strconv"
	"strings"
)

// Tool tiers in ascending capability order.
var toolTiers = []string{"wooden", "stone", "iron", "diamond", "netherite"}

// tierRank returns the capability rank of a tier, or -1.
func tierRank(tier string) int {
	for i, t := range toolTiers {
		if t == tier {
			return i
		}
	}
	return -1
}

// minTierFor is the minimum pickaxe tier required per target material.
// Unlisted materials need any tool.
var minTierFor = map[string]string{
	"diamond_ore":  "iron",
	"gold_ore":     "iron",
	"redstone_ore": "iron",
	"emerald_ore":  "iron",
	"iron_ore":     "stone",
	"copper_ore":   "stone",
	"lapis_ore":    "stone",
	"obsidian":     "diamond",
}

// MinTierFor returns the minimum tool tier required to harvest material.
func MinTierFor(material string) string {
	if tier, ok := minTierFor[material]; ok {
		return tier
	}
	return "wooden"
}

// TierSatisfies reports whether a tool of tier `have` can harvest a
// material requiring tier `need`.
func TierSatisfies(have, need string) bool {
	return tierRank(have) >= tierRank(need)
}

// oreWords maps step vocabulary to canonical block materials.
var oreWords = map[string]string{
	"diamond":     "diamond_ore",
	"iron":        "iron_ore",
	"gold":        "gold_ore",
	"coal":        "coal_ore",
	"redstone":    "redstone_ore",
	"emerald":     "emerald_ore",
	"copper":      "copper_ore",
	"lapis":       "lapis_ore",
	"obsidian":    "obsidian",
	"stone":       "stone",
	"cobblestone": "cobblestone",
	"sand":        "sand",
	"gravel":      "gravel",
	"dirt":        "dirt",
	"wood":        "oak_log",
	"log":         "oak_log",
}

// InferMaterials extracts target block materials from step text, in
// order of first appearance.
func InferMaterials(step string) []string {
	lower := strings.ToLower(step)
	type hit struct {
		pos      int
		material string
	}
	var hits []hit
	seen := make(map[string]bool)
	for word, material := range oreWords {
		pos := strings.Index(lower, word)
		if pos < 0 || seen[material] {
			continue
		}
		seen[material] = true
		hits = append(hits, hit{pos, material})
	}
	// Order by position in the text.
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j-1].pos > hits[j].pos; j-- {
			hits[j-1], hits[j] = hits[j], hits[j-1]
		}
	}
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.material
	}
	return out
}

var radiusPattern = regexp.MustCompile(`within\s+(\d+)\s*(?:blocks?|meters?)?`)

// InferRadius extracts a search radius from step text. Vocabulary
// beats the default; an explicit "within N blocks" beats vocabulary.
func InferRadius(step string, fallback int) int {
	lower := strings.ToLower(step)
	if m := radiusPattern.FindStringSubmatch(lower); m != nil {
		if r, err := strconv.Atoi(m[1]); err == nil && r > 0 {
			return r
		}
	}
	switch {
	case strings.Contains(lower, "nearby") || strings.Contains(lower, "close"):
		return 16
	case strings.Contains(lower, "far") || strings.Contains(lower, "distant"):
		return 64
	}
	return fallback
}

var countPattern = regexp.MustCompile(`\b(\d+)\b`)

// InferCount extracts a target block count from step text.
func InferCount(step string, fallback int) int {
	lower := strings.ToLower(step)
	if m := countPattern.FindStringSubmatch(lower); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			return n
		}
	}
	switch {
	case strings.Contains(lower, "a few"):
		return 3
	case strings.Contains(lower, "some"):
		return 8
	case strings.Contains(lower, "stack"):
		return 64
	}
	return fallback
}

// toolWords are recognized equipment keywords, checked in order so
// "pickaxe" wins over "axe".
var toolWords = []string{"pickaxe", "axe", "sword", "shovel", "hoe", "shield", "bow", "torch"}

// EquipIntent is what an equip step asks for.
type EquipIntent struct {
	Item     string // concrete item when the step names a tier, e.g. "iron_pickaxe"
	ToolType string // tool family, e.g. "pickaxe"
	Tier     string // named tier or "" when unspecified
	OffHand  bool
}

// InferEquip extracts the desired item, tool family, tier, and
// handedness from an equip step.
func InferEquip(step string) EquipIntent {
	lower := strings.ToLower(step)

	var intent EquipIntent
	for _, tool := range toolWords {
		if strings.Contains(lower, tool) {
			intent.ToolType = tool
			break
		}
	}
	for _, tier := range toolTiers {
		if strings.Contains(lower, tier) {
			intent.Tier = tier
			break
		}
	}
	if intent.ToolType != "" && intent.Tier != "" {
		intent.Item = intent.Tier + "_" + intent.ToolType
	}
	intent.OffHand = strings.Contains(lower, "offhand") ||
		strings.Contains(lower, "off-hand") ||
		strings.Contains(lower, "left hand")
	return intent
}

// BestTool returns the highest-tier tool of the given family present
// in the inventory, or "" when none is held.
func BestTool(inventory map[string]int, toolType string) string {
	best := ""
	bestRank := -1
	for item, count := range inventory {
		if count <= 0 || !strings.HasSuffix(item, "_"+toolType) {
			continue
		}
		tier := strings.TrimSuffix(item, "_"+toolType)
		if r := tierRank(tier); r > bestRank {
			best = item
			bestRank = r
		}
	}
	return best
}

// ToolTier returns the tier prefix of a concrete tool item name.
func ToolTier(item string) string {
	if i := strings.IndexByte(item, '_'); i > 0 {
		if tierRank(item[:i]) >= 0 {
			return item[:i]
		}
	}
	return ""
}

// continuationWords is the vocabulary that marks a step as carrying on
// toward the previous target (terrain-adjustment language and the like).
var continuationWords = []string{
	"continue", "keep going", "proceed", "carry on", "onward",
	"adjust", "flatten", "clear the path", "clear a path", "make way",
	"bridge across", "tunnel through",
}

// IsContinuation reports whether step text matches the continuation
// vocabulary.
func IsContinuation(step string) bool {
	lower := strings.ToLower(step)
	for _, w := range continuationWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// statusOnlyWords mark passive steps that need no actuator call.
var statusOnlyWords = []string{
	"check status", "check inventory", "check health", "check your",
	"verify", "confirm", "make sure", "ensure", "review progress",
}

// IsStatusOnly reports whether a step is a recognized passive check.
func IsStatusOnly(step string) bool {
	lower := strings.ToLower(step)
	for _, w := range statusOnlyWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// detectionWords mark detection/report steps when the directive does
// not classify them explicitly.
var detectionWords = []string{
	"scan", "look around", "survey the area", "check surroundings",
	"detect", "report", "observe",
}

// IsDetection reports whether a step asks for a detection/report.
func IsDetection(step string) bool {
	lower := strings.ToLower(step)
	for _, w := range detectionWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
