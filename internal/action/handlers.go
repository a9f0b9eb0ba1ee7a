package action

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/hallgrim/golem/internal/actuator"
	"github.com/hallgrim/golem/internal/build"
	"github.com/hallgrim/golem/internal/events"
	"github.com/hallgrim/golem/internal/memory"
	"github.com/hallgrim/golem/internal/plan"
)

// handleMove resolves a movement target by priority (explicit hint,
// text-parsed, last known, configured default) and dispatches it.
// Falling back to the configured default means the instruction was
// ambiguous, which is worth a barrier notice.
func (g *Graph) handleMove(ctx context.Context, sc *StepContext) Result {
	target := sc.CoordHint
	usedDefault := false

	if target == nil {
		if parsed, ok := ParseCoords(sc.Step); ok {
			target = parsed
		}
	}
	if target == nil {
		target = sc.LastTarget
	}
	if target == nil {
		t := g.cfg.DefaultTarget
		target = &t
		usedDefault = true
	}

	resp, err := g.client.Dispatch(ctx, actuator.Command{
		Type: actuator.CmdMove,
		Args: map[string]any{"x": target[0], "y": target[1], "z": target[2]},
	})
	if err != nil {
		return failed("movement dispatch failed", err.Error(), true)
	}
	if !resp.OK {
		return failed(
			fmt.Sprintf("could not move to (%.0f, %.0f, %.0f)", target[0], target[1], target[2]),
			resp.Error, true)
	}

	res := completed(fmt.Sprintf("moved to (%.0f, %.0f, %.0f)", target[0], target[1], target[2]))
	res.UpdatedTarget = target

	if usedDefault {
		res.Level = events.LevelWarning
		res.Observation += "; no destination was given, I used my home position"
		g.reporter.AddDetection(sc.Step,
			"the movement instruction had no destination; defaulted to home position",
			events.LevelWarning)
	}

	// Post-move hints ride the backlog rather than interrupting the plan.
	if snap := g.refresher.Cached(); snap != nil && snap.LowFood() {
		g.reporter.AddBacklog(plan.BacklogEntry{
			Category: "status",
			Step:     sc.Step,
			Label:    "food is running low",
		})
	}
	if suggested := gjson.GetBytes(resp.Data, "suggested_role").String(); suggested != "" {
		g.reporter.AddBacklog(plan.BacklogEntry{
			Category: "role",
			Step:     sc.Step,
			Label:    "area suggests a role change",
			Role:     suggested,
		})
	}
	return res
}

// handleEquip infers the desired item and handedness, verifies it
// against a refreshed inventory snapshot with the minimum-tier rule,
// and dispatches the equip. An "item unavailable" rejection forces a
// fresh refresh and reports a barrier that includes the refreshed
// state.
func (g *Graph) handleEquip(ctx context.Context, sc *StepContext) Result {
	intent := InferEquip(sc.Step)
	if arg, ok := sc.Directive.Args["item"].(string); ok && arg != "" {
		intent.Item = arg
		if intent.ToolType == "" {
			if i := strings.LastIndexByte(arg, '_'); i >= 0 {
				intent.ToolType = arg[i+1:]
			}
		}
	}
	if intent.Item == "" && intent.ToolType == "" {
		return failed(
			"I could not tell what to equip from that instruction",
			"no recognizable item in step text", false)
	}

	snap, err := g.refresher.Snapshot(ctx, time.Duration(g.cfg.SnapshotMaxAge)*time.Second)
	if err != nil {
		return failed("could not read my inventory", err.Error(), true)
	}

	// Minimum tier keyed by the target material mentioned in the step.
	needTier := "wooden"
	for _, material := range InferMaterials(sc.Step) {
		if tier := MinTierFor(material); tierRank(tier) > tierRank(needTier) {
			needTier = tier
		}
	}

	item := intent.Item
	if item == "" {
		item = BestTool(snap.Inventory, intent.ToolType)
		if item == "" {
			return failed(
				fmt.Sprintf("I have no %s in my inventory", intent.ToolType),
				"item not present", true)
		}
	}
	if !snap.Has(item, 1) {
		return failed(
			fmt.Sprintf("I do not have a %s right now", item),
			"item not present", true)
	}
	if tier := ToolTier(item); tier != "" && !TierSatisfies(tier, needTier) {
		return failed(
			fmt.Sprintf("my %s is too weak, this needs at least a %s tool", item, needTier),
			"tool tier below required minimum", true)
	}

	hand := "main"
	if intent.OffHand {
		hand = "off"
	}
	resp, err := g.client.Dispatch(ctx, actuator.Command{
		Type: actuator.CmdEquip,
		Args: map[string]any{"item": item, "hand": hand},
	})
	if err != nil {
		return failed("equip dispatch failed", err.Error(), true)
	}
	if !resp.OK {
		if strings.Contains(strings.ToLower(resp.Error), "item unavailable") {
			// The cached view lied; force a fresh snapshot and show it.
			fresh, ferr := g.refresher.Refresh(ctx)
			detail := "inventory refresh also failed"
			if ferr == nil {
				detail = fmt.Sprintf("refreshed inventory: %v", fresh.Inventory)
			}
			return failed(
				fmt.Sprintf("the actuator says %s is unavailable; %s", item, detail),
				resp.Error, true)
		}
		return failed(fmt.Sprintf("could not equip %s", item), resp.Error, true)
	}

	return completed(fmt.Sprintf("equipped %s in %s hand", item, hand))
}

// handleMine infers target materials, radius, and count. When a
// sufficiently capable tool is already held, it equips that tool
// instead of issuing a raw gather command; otherwise it gathers.
func (g *Graph) handleMine(ctx context.Context, sc *StepContext) Result {
	materials := InferMaterials(sc.Step)
	if len(materials) == 0 {
		materials = []string{"stone"}
	}
	radius := InferRadius(sc.Step, g.cfg.SearchRadius)
	count := InferCount(sc.Step, g.cfg.GatherCount)

	needTier := "wooden"
	for _, material := range materials {
		if tier := MinTierFor(material); tierRank(tier) > tierRank(needTier) {
			needTier = tier
		}
	}

	snap, err := g.refresher.Snapshot(ctx, time.Duration(g.cfg.SnapshotMaxAge)*time.Second)
	if err != nil {
		return failed("could not read my inventory before mining", err.Error(), true)
	}

	if tool := BestTool(snap.Inventory, "pickaxe"); tool != "" && TierSatisfies(ToolTier(tool), needTier) {
		resp, derr := g.client.Dispatch(ctx, actuator.Command{
			Type: actuator.CmdEquip,
			Args: map[string]any{"item": tool, "hand": "main"},
		})
		if derr != nil {
			return failed("equip before mining failed", derr.Error(), true)
		}
		if !resp.OK {
			return failed(fmt.Sprintf("could not ready my %s for mining", tool), resp.Error, true)
		}
		return completed(fmt.Sprintf(
			"readied %s for %s within %d blocks", tool, strings.Join(materials, ", "), radius))
	}

	resp, err := g.client.Dispatch(ctx, actuator.Command{
		Type: actuator.CmdGather,
		Args: map[string]any{
			"materials": materials,
			"radius":    radius,
			"count":     count,
		},
	})
	if err != nil {
		return failed("gather dispatch failed", err.Error(), true)
	}
	if !resp.OK {
		return failed(
			fmt.Sprintf("gathering %s failed", strings.Join(materials, ", ")),
			resp.Error, true)
	}

	return completed(fmt.Sprintf(
		"gathering %d of %s within %d blocks", count, strings.Join(materials, ", "), radius))
}

// handleBuild restores the persisted checkpoint, computes shortfall
// and the next placement batch, applies the deterministic phase
// transition, persists, and summarizes to the backlog.
func (g *Graph) handleBuild(ctx context.Context, sc *StepContext) Result {
	structureID, layout, res := g.resolveLayout(sc)
	if layout == nil {
		return res
	}

	cp, err := g.builds.Load(structureID)
	if err != nil {
		return failed("could not restore building progress", err.Error(), true)
	}

	snap, err := g.refresher.Snapshot(ctx, time.Duration(g.cfg.SnapshotMaxAge)*time.Second)
	if err != nil {
		return failed("could not read my inventory before building", err.Error(), true)
	}

	shortfall := build.Shortfall(layout.Requirements(), snap.Inventory, cp.ReservedMaterials)
	batch := layout.NextBatch(cp.PlacedBlocks, g.cfg.BatchSize)
	cp.Advance(shortfall, len(batch), layout.Size())

	var out Result
	switch cp.Phase {
	case build.PhaseProcurement:
		out = deferred(fmt.Sprintf(
			"cannot place blocks yet, still missing %s", build.FormatShortfall(shortfall)))

	case build.PhasePlacement:
		placements := make([]map[string]any, len(batch))
		for i, p := range batch {
			placements[i] = map[string]any{
				"material": p.Material,
				"offset":   []int{p.Offset[0], p.Offset[1], p.Offset[2]},
			}
		}
		resp, derr := g.client.Dispatch(ctx, actuator.Command{
			Type: actuator.CmdPlace,
			Args: map[string]any{"structure": structureID, "placements": placements},
		})
		if derr != nil || !resp.OK {
			reason := ""
			if derr != nil {
				reason = derr.Error()
			} else {
				reason = resp.Error
			}
			cp.Rollback(len(batch))
			if perr := g.builds.Save(structureID, cp); perr != nil {
				g.logger.Error("persist checkpoint after rollback failed",
					"structure", structureID, "error", perr)
			}
			return failed("block placement failed, rolled progress back one phase", reason, true)
		}
		// Placed blocks leave the inventory for good; reserving them
		// keeps the total-requirement shortfall math counting them.
		placedMaterials := make(map[string]int, len(batch))
		for _, p := range batch {
			placedMaterials[p.Material]++
		}
		cp.Reserve(placedMaterials)
		cp.PlacedBlocks += len(batch)
		if cp.PlacedBlocks >= layout.Size() {
			cp.Advance(nil, 0, layout.Size())
		}
		out = completed(fmt.Sprintf(
			"placed %d blocks of %s (%d/%d done)",
			len(batch), layout.Name, cp.PlacedBlocks, layout.Size()))

	case build.PhaseInspection:
		out = completed(fmt.Sprintf("%s is fully placed, inspecting the result", layout.Name))

	default:
		out = completed(fmt.Sprintf("surveyed the %s site", layout.Name))
	}

	if err := g.builds.Save(structureID, cp); err != nil {
		return failed("could not persist building progress", err.Error(), true)
	}
	g.mem.Set(memory.KeyActiveStructure, structureID)

	summary := plan.BacklogEntry{
		Category: string(plan.CategoryBuild),
		Step:     sc.Step,
		Label:    fmt.Sprintf("phase=%s placed=%d/%d", cp.Phase, cp.PlacedBlocks, layout.Size()),
		Module:   string(ModuleBuild),
	}
	if len(shortfall) > 0 {
		summary.Extra = map[string]string{"shortfall": build.FormatShortfall(shortfall)}
	}
	g.reporter.AddBacklog(summary)

	return out
}

// resolveLayout picks the structure id and blueprint for a build step.
func (g *Graph) resolveLayout(sc *StepContext) (string, *build.Layout, Result) {
	structureID := ""
	if arg, ok := sc.Directive.Args["structure"].(string); ok {
		structureID = arg
	}
	if structureID == "" {
		structureID = g.mem.GetString(memory.KeyActiveStructure)
	}
	if structureID == "" {
		// Fall back to the only configured blueprint, if unambiguous.
		if len(g.layouts) == 1 {
			for name := range g.layouts {
				structureID = name
			}
		}
	}

	layout := g.layouts[structureID]
	if layout == nil {
		return "", nil, failed(
			"I do not have a blueprint for that structure",
			fmt.Sprintf("no layout named %q is configured", structureID), true)
	}
	return structureID, layout, Result{}
}
