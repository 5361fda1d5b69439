package logging

import (
	"regexp"
	"strings"
)

// Redacted replaces sensitive payload values
const Redacted = "[REDACTED]"

var sensitiveKeys = []string{"secret", "passphrase", "password", "key", "code", "token"}

// otpauth URIs carry the secret in the query string
var otpauthSecretPattern = regexp.MustCompile(`(?i)(secret=)([^&\s]+)`)

// IsSensitiveKey reports whether a payload key may carry secret material
func IsSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, keyword := range sensitiveKeys {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// RedactString masks secrets embedded in free text such as otpauth URIs
func RedactString(input string) string {
	return otpauthSecretPattern.ReplaceAllString(input, "${1}"+Redacted)
}

// redactPayload returns a copy of payload with sensitive values masked.
// The caller's map is left untouched.
func redactPayload(payload map[string]interface{}) map[string]interface{} {
	if len(payload) == 0 {
		return payload
	}

	out := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		if IsSensitiveKey(k) {
			out[k] = Redacted
			continue
		}
		if s, ok := v.(string); ok {
			out[k] = RedactString(s)
			continue
		}
		out[k] = v
	}
	return out
}
