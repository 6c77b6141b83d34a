package logging

import (
	"regexp"
	"strings"
)

// RedactedValue is the replacement for sensitive values.
const RedactedValue = "[REDACTED]"

var sensitiveFields = []string{
	"password",
	"passwd",
	"passphrase",
	"secret",
	"token",
	"api_key",
	"apikey",
	"authorization",
	"credential",
	"private_key",
}

var secretPatterns = []*regexp.Regexp{
	// KEY=value and KEY='value' assignments, as produced by the command builder
	regexp.MustCompile(`(?i)\b([a-z0-9_]*(?:password|passwd|passphrase|secret|token|api_?key)[a-z0-9_]*)=('[^']*'|"[^"]*"|\S+)`),
	// --password value / --token=value flags
	regexp.MustCompile(`(?i)(--?(?:password|passphrase|token|secret))(?:=|\s+)('[^']*'|"[^"]*"|\S+)`),
	// Bearer tokens
	regexp.MustCompile(`(?i)(bearer)\s+([a-z0-9._-]{8,})`),
	// sshpass -p secret
	regexp.MustCompile(`(sshpass\s+-p)\s*('[^']*'|\S+)`),
}

// Redact replaces secrets in a command line or message with RedactedValue.
func Redact(s string) string {
	result := s

	for _, pattern := range secretPatterns {
		result = pattern.ReplaceAllStringFunc(result, func(match string) string {
			sub := pattern.FindStringSubmatch(match)

			sep := "="
			if !strings.Contains(match, sub[1]+"=") {
				sep = " "
			}

			return sub[1] + sep + RedactedValue
		})
	}

	return result
}

// IsSensitiveField checks if a field name is considered sensitive.
func IsSensitiveField(name string) bool {
	lowerName := strings.ToLower(name)
	for _, field := range sensitiveFields {
		if strings.Contains(lowerName, field) {
			return true
		}
	}

	return false
}
