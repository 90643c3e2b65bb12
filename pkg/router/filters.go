package router

import (
	"fmt"
	"strings"
)

// ParseFilters parses a comma-separated list of key=value or key:value
// tokens into a filter map. Whitespace around keys and values is trimmed.
// Later values for a repeated key overwrite earlier ones. A token with
// neither separator is a parse error.
func ParseFilters(s string) (map[string]string, error) {
	filters := make(map[string]string)

	for _, token := range strings.Split(s, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}

		var key, value string
		switch {
		case strings.Contains(token, "="):
			parts := strings.SplitN(token, "=", 2)
			key, value = parts[0], parts[1]
		case strings.Contains(token, ":"):
			parts := strings.SplitN(token, ":", 2)
			key, value = parts[0], parts[1]
		default:
			return nil, fmt.Errorf("invalid filter %q: expected key=value or key:value", token)
		}

		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" {
			return nil, fmt.Errorf("invalid filter %q: empty key", token)
		}
		filters[key] = value
	}

	return filters, nil
}

// ParseParams parses a comma-separated list of key=value build parameters.
// Values may contain any character except the comma separator; only the
// first '=' splits key from value. Tokens without '=' are ignored, matching
// how Jenkins itself drops unnamed parameters.
func ParseParams(s string) map[string]string {
	params := make(map[string]string)

	for _, token := range strings.Split(s, ",") {
		token = strings.TrimSpace(token)
		if token == "" || !strings.Contains(token, "=") {
			continue
		}
		parts := strings.SplitN(token, "=", 2)
		key := strings.TrimSpace(parts[0])
		if key == "" {
			continue
		}
		params[key] = strings.TrimSpace(parts[1])
	}

	return params
}
