package ai

import (
	"encoding/json"
	"strings"
)

// ScanResult is the classified text of a scanned image.
type ScanResult struct {
	HasProblem      bool     `json:"has_problem"`
	ProblemContent  string   `json:"problem_content"`
	HasPrompts      bool     `json:"has_prompts"`
	DetectedPrompts []string `json:"detected_prompts"`
}

// ParseScan decodes a scan reply. A reply that cannot be decoded, or that
// flags neither part, is folded entirely into the problem bucket.
func ParseScan(text string) ScanResult {
	text = strings.TrimSpace(text)
	var out ScanResult
	if !decodeLoose(text, &out) {
		return fallbackScan(text)
	}
	if !out.HasProblem && !out.HasPrompts {
		all := out.ProblemContent
		if len(out.DetectedPrompts) > 0 {
			all = strings.TrimSpace(all + "\n" + strings.Join(out.DetectedPrompts, "\n"))
		}
		if all == "" {
			all = text
		}
		return fallbackScan(all)
	}
	if out.DetectedPrompts == nil {
		out.DetectedPrompts = []string{}
	}
	return out
}

func fallbackScan(all string) ScanResult {
	return ScanResult{HasProblem: true, ProblemContent: all, HasPrompts: false, DetectedPrompts: []string{}}
}

func decodeLoose(s string, v any) bool {
	s = stripCodeFences(s)
	if err := json.Unmarshal([]byte(s), v); err == nil {
		return true
	}
	if obj := findFirstJSON(s); obj != "" {
		return json.Unmarshal([]byte(obj), v) == nil
	}
	return false
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if nl := strings.Index(s, "\n"); nl != -1 {
			s = s[nl+1:]
		}
	}
	if strings.HasSuffix(s, "```") {
		s = strings.TrimSpace(strings.TrimSuffix(s, "```"))
	}
	return s
}

// findFirstJSON returns the first balanced {...} span, ignoring braces in strings.
func findFirstJSON(s string) string {
	start, depth := -1, 0
	inStr, esc := false, false
	for i, r := range s {
		if inStr {
			switch {
			case esc:
				esc = false
			case r == '\\':
				esc = true
			case r == '"':
				inStr = false
			}
			continue
		}
		switch r {
		case '"':
			if start != -1 {
				inStr = true
			}
		case '{':
			if start == -1 {
				start = i
			}
			depth++
		case '}':
			if start != -1 {
				depth--
				if depth == 0 {
					return s[start : i+1]
				}
			}
		}
	}
	return ""
}
