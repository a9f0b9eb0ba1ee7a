package plan

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Parse extracts a Plan from raw planning-service output. The output
// is expected to contain a JSON object but may wrap it in prose or a
// code fence; extraction is tolerant and missing directives are
// synthesized. Returns an error only when no usable JSON object is
// present; callers substitute Fallback in that case.
func Parse(raw string) (*Plan, error) {
	blob := extractJSON(raw)
	if blob == "" {
		return nil, fmt.Errorf("no JSON object found in planner output")
	}

	root := gjson.Parse(blob)
	if !root.IsObject() {
		return nil, fmt.Errorf("planner output is not a JSON object")
	}

	p := &Plan{
		Response:   root.Get("response").String(),
		Intent:     root.Get("intent").String(),
		Confidence: root.Get("confidence").Float(),
		Blocking:   root.Get("blocking").Bool(),
	}
	if p.Intent == "" {
		p.Intent = IntentTask
	}

	for _, s := range root.Get("steps").Array() {
		text := strings.TrimSpace(s.String())
		if text == "" {
			continue
		}
		p.Steps = append(p.Steps, text)
	}

	for _, d := range root.Get("directives").Array() {
		p.Directives = append(p.Directives, parseDirective(d))
	}

	for _, h := range root.Get("recovery_hints").Array() {
		p.RecoveryHints = append(p.RecoveryHints, h.String())
	}

	for _, b := range root.Get("backlog").Array() {
		entry := BacklogEntry{
			Category: b.Get("category").String(),
			Step:     b.Get("step").String(),
			Label:    b.Get("label").String(),
			Module:   b.Get("module").String(),
			Role:     b.Get("role").String(),
		}
		if entry.Category == "" {
			entry.Category = string(CategoryGeneric)
		}
		if entry.Step == "" && b.Type == gjson.String {
			entry.Step = b.String()
		}
		p.Backlog = append(p.Backlog, entry)
	}

	p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("validate parsed plan: %w", err)
	}
	return p, nil
}

// parseDirective maps one JSON directive object. Unknown or missing
// fields are left for Normalize to fill.
func parseDirective(d gjson.Result) *Directive {
	if !d.IsObject() {
		return nil
	}
	dir := &Directive{
		ID:       d.Get("id").String(),
		Step:     d.Get("step").String(),
		Label:    d.Get("label").String(),
		Category: Category(strings.ToLower(d.Get("category").String())),
		Executor: ExecutorKind(strings.ToLower(d.Get("executor").String())),
		Fallback: d.Get("fallback").String(),
	}
	if args := d.Get("args"); args.IsObject() {
		dir.Args = make(map[string]any)
		args.ForEach(func(k, v gjson.Result) bool {
			dir.Args[k.String()] = v.Value()
			return true
		})
	}
	switch dir.Executor {
	case ExecActuator, ExecMission, ExecChat, ExecHybrid:
	case "mission", "remote", "remote_mission":
		dir.Executor = ExecMission
	default:
		dir.Executor = ""
	}
	return dir
}

// extractJSON locates the outermost JSON object in text, stripping
// markdown fences if present.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if idx := strings.Index(text, "```"); idx >= 0 {
		rest := text[idx+3:]
		rest = strings.TrimPrefix(rest, "json")
		if end := strings.Index(rest, "```"); end >= 0 {
			rest = rest[:end]
		}
		if candidate := extractBraces(rest); candidate != "" {
			return candidate
		}
	}
	return extractBraces(text)
}

// extractBraces returns the substring from the first '{' to its
// matching close brace, tracking strings so braces in text fields do
// not unbalance the scan.
func extractBraces(text string) string {
	start := strings.Index(text, "{")
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return text[start : i+1]
				}
			}
		}
	}
	return ""
}
