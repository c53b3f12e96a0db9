package observability

import "unicode"

const defaultStringLimit = 256

// sanitizeString strips control characters and caps length so request-derived
// values cannot inject newlines into log output.
func sanitizeString(value string, limit int) string {
	if limit <= 0 {
		limit = defaultStringLimit
	}

	out := make([]rune, 0, len(value))
	for _, r := range value {
		switch {
		case r == '\n', r == '\r', r == '\t':
			out = append(out, r)
		case unicode.IsControl(r):
			continue
		default:
			out = append(out, r)
		}
		if len(out) == limit {
			break
		}
	}
	return string(out)
}

// SanitizeRoute cleans a chi route pattern before logging it.
func SanitizeRoute(route string) string {
	if route == "" {
		return "/"
	}
	return sanitizeString(route, 180)
}

// SanitizeMethod cleans an HTTP method string.
func SanitizeMethod(method string) string {
	return sanitizeString(method, 10)
}

// SanitizeUserID caps identifiers so Firebase UIDs stay loggable without
// leaking arbitrary-length input.
func SanitizeUserID(uid string) string {
	if uid == "" {
		return ""
	}
	return sanitizeString(uid, 64)
}
