// Package redact scrubs sensitive material from strings before they reach
// logs or error responses. Error values in this codebase can carry database
// connection strings, API keys for the lookup providers, JWT tokens, and user
// email addresses; none of those belong in log output.
package redact

import "regexp"

// Placeholders substituted for matched sensitive content.
const (
	redactedCredential = "[REDACTED_CREDENTIAL]"
	redactedKey        = "[REDACTED_KEY]"
	redactedJWT        = "[REDACTED_JWT]"
	redactedEmail      = "[REDACTED_EMAIL]"
	redactedSQL        = "[REDACTED_SQL]"
	redactedPath       = "[REDACTED_PATH]"
)

type rule struct {
	re          *regexp.Regexp
	placeholder string
}

// Rules are applied in order; earlier rules see the raw input, later rules
// see the partially redacted result.
var rules = []rule{
	// Database connection URLs with inline credentials
	{regexp.MustCompile(`(?i)(postgres|postgresql|mysql)://[^@\s]+@`), redactedCredential},

	// Password-like key/value fragments
	{regexp.MustCompile(`(?i)(password|passwd|pwd)([=:\s]?['"]?)[^'"&\s]{3,}`), redactedCredential},

	// API keys and secrets, including the external lookup provider keys
	{regexp.MustCompile(`(?i)(api[_-]?key|token|secret|key|auth)(['"\s:=]+)[A-Za-z0-9_\-.~+/]{8,}`), redactedKey},

	// Three-part base64url-encoded JWT tokens
	{regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`), redactedJWT},

	// Email addresses
	{regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Z|a-z]{2,}\b`), redactedEmail},

	// SQL statement fragments that may embed user data
	{regexp.MustCompile(`(?i)(SELECT|INSERT|UPDATE|DELETE|CREATE|ALTER|DROP)[\s\w,*()]+(?:FROM|INTO|SET|TABLE)(?:[\s\w,*()='"]+)?`), redactedSQL},

	// Filesystem paths
	{regexp.MustCompile(`(/[\w.-]+){2,}`), redactedPath},
}

// String redacts sensitive information from the input string.
func String(input string) string {
	if input == "" {
		return input
	}

	result := input
	for _, r := range rules {
		result = r.re.ReplaceAllString(result, r.placeholder)
	}
	return result
}

// Error redacts sensitive information from an error's Error() output.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}
