package textutil

import "strings"

// NormalizeStringMap trims keys and values and drops entries whose key becomes
// empty. Payment metadata arrives this way from the webhook payload, so a nil
// result means there was nothing usable.
func NormalizeStringMap(values map[string]string) map[string]string {
	result := make(map[string]string, len(values))
	for key, value := range values {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		result[key] = strings.TrimSpace(value)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
