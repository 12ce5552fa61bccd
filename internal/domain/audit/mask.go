package audit

import (
	"encoding/json"
	"strings"
)

const (
	redacted = "[REDACTED]"
	masked   = "[MASKED]"
)

// Scrub returns a JSON-shaped copy of value with secrets and personal
// financial fields hidden. Snapshots pass through here before they are
// hashed and stored.
func Scrub(value any) (json.RawMessage, error) {
	if value == nil {
		return nil, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return json.Marshal(scrubValue("", generic))
}

func scrubValue(key string, value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, inner := range v {
			out[k] = scrubValue(k, inner)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, inner := range v {
			out[i] = scrubValue(key, inner)
		}
		return out
	case nil:
		return nil
	default:
		return scrubScalar(key, v)
	}
}

func scrubScalar(key string, value any) any {
	lower := strings.ToLower(key)
	switch {
	case lower == "":
		return value
	case containsAny(lower, "token", "secret", "password"):
		return redacted
	case containsAny(lower, "salary", "compensation"):
		return masked
	case strings.HasSuffix(lower, "url"):
		return masked
	case containsAny(lower, "bank", "account", "iban"):
		s, ok := value.(string)
		if !ok || len(s) <= 4 {
			return "****"
		}
		return "****" + s[len(s)-4:]
	}
	return value
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
