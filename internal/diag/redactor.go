package diag

import (
	"regexp"
	"strings"

	"otpdeck/internal/logging"
)

// Redactor removes secrets from log and config text
type Redactor struct {
	patterns []redactionPattern
}

type redactionPattern struct {
	regex       *regexp.Regexp
	replacement string
}

// NewRedactor creates a redactor for the secrets otpdeck handles
func NewRedactor() *Redactor {
	return &Redactor{
		patterns: []redactionPattern{
			// JSON string values under sensitive keys
			{
				regex:       regexp.MustCompile(`(?i)"([a-z_]*(?:secret|passphrase|password|code|token)[a-z_]*)"\s*:\s*"[^"]*"`),
				replacement: `"$1": "` + logging.Redacted + `"`,
			},
			// YAML-style secrets; passphrase_file is a path and stays readable
			{
				regex:       regexp.MustCompile(`(?im)^(\s*(?:secret|passphrase|password|token)):\s*(.+)$`),
				replacement: `$1: ` + logging.Redacted,
			},
			// Environment assignments
			{
				regex:       regexp.MustCompile(`(?i)(OTPDECK_PASSPHRASE)\s*=\s*\S+`),
				replacement: `$1=` + logging.Redacted,
			},
		},
	}
}

// Redact applies all redaction patterns to the input text
func (r *Redactor) Redact(input string) string {
	result := logging.RedactString(input)
	for _, pattern := range r.patterns {
		result = pattern.regex.ReplaceAllString(result, pattern.replacement)
	}
	return result
}

// IsLikelySensitive checks if a line contains potentially sensitive data
func IsLikelySensitive(line string) bool {
	lowerLine := strings.ToLower(line)
	for _, keyword := range []string{"secret", "passphrase", "password", "otpauth://"} {
		if strings.Contains(lowerLine, keyword) {
			return true
		}
	}
	return false
}
