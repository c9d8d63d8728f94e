package extract

import (
	"encoding/json"
	"log/slog"
	"strings"
)

// ParseObject pulls a JSON object out of raw model output. It tolerates
// markdown code fences and surrounding prose by parsing only the substring
// between the first '{' and the last '}'. Any failure returns nil, logged;
// it never returns an error.
func ParseObject(raw string) map[string]any {
	if raw == "" {
		return nil
	}

	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimSpace(strings.TrimPrefix(s, "```json"))
		if strings.HasSuffix(s, "```") {
			s = strings.TrimSpace(strings.TrimSuffix(s, "```"))
		}
	} else if strings.HasPrefix(s, "```") && strings.HasSuffix(s, "```") {
		s = strings.TrimSpace(s[3 : len(s)-3])
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || start >= end {
		slog.Warn("no JSON object found in model output", "output", truncate(raw, 200))
		return nil
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(s[start:end+1]), &obj); err != nil {
		slog.Warn("failed to parse JSON from model output", "error", err, "output", truncate(raw, 200))
		return nil
	}
	return obj
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
