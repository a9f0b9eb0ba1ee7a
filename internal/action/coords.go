package action

import (
	"encoding/json"
	"regexp"
	"strconv"
)

// coordPattern matches "x y z", "x, y, z", and "(x, y, z)" triples of
// integers or decimals, with optional signs.
var coordPattern = regexp.MustCompile(
	`\(?\s*(-?\d+(?:\.\d+)?)\s*,?\s+(-?\d+(?:\.\d+)?)\s*,?\s+(-?\d+(?:\.\d+)?)\s*\)?`)

// ParseCoords extracts the first coordinate triple from step text.
func ParseCoords(step string) (*[3]float64, bool) {
	m := coordPattern.FindStringSubmatch(step)
	if m == nil {
		return nil, false
	}
	var out [3]float64
	for i := 0; i < 3; i++ {
		v, err := strconv.ParseFloat(m[i+1], 64)
		if err != nil {
			return nil, false
		}
		out[i] = v
	}
	return &out, true
}

// CoordsFromArgs reads an explicit coordinate from directive args,
// accepting {"x":..,"y":..,"z":..} or {"target":[x,y,z]} shapes.
func CoordsFromArgs(args map[string]any) (*[3]float64, bool) {
	if args == nil {
		return nil, false
	}

	if target, ok := args["target"]; ok {
		if list, ok := target.([]any); ok && len(list) == 3 {
			var out [3]float64
			for i, v := range list {
				f, ok := toFloat(v)
				if !ok {
					return nil, false
				}
				out[i] = f
			}
			return &out, true
		}
	}

	x, okX := toFloat(args["x"])
	y, okY := toFloat(args["y"])
	z, okZ := toFloat(args["z"])
	if okX && okY && okZ {
		return &[3]float64{x, y, z}, true
	}
	return nil, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
