package config

import (
	"regexp"
	"strings"
)

var (
	invalidChars = regexp.MustCompile(`[^a-z0-9_]+`)
	versionTail  = regexp.MustCompile(`[_-]v\d+$`)
)

// NormalizeEnvName converts a user-provided environment name into a
// registry key:
//   - lowercase, surrounding space trimmed
//   - a trailing version suffix ("_v2", "-v0") dropped
//   - remaining invalid characters removed
func NormalizeEnvName(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	lower = versionTail.ReplaceAllString(lower, "")
	return invalidChars.ReplaceAllString(lower, "")
}
