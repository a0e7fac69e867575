package utils

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const maxErrorMessageLength = 500

var (
	// Unix-style absolute paths. Collaborator errors routinely embed temp
	// file locations that mean nothing to a client and may leak host layout.
	localPathPattern = regexp.MustCompile(`(/[\w.\-]+){2,}`)

	// Credential-looking fragments: bearer tokens, key=value secrets, long
	// opaque tokens.
	bearerPattern = regexp.MustCompile(`(?i)bearer\s+[\w\-.~+/]+=*`)
	secretPattern = regexp.MustCompile(`(?i)(api[_-]?key|apikey|token|secret|password)\s*[=:]\s*\S+`)
)

// SanitizeErrorMessage strips local paths and credential-looking fragments
// from an error message before it is persisted on a failed job. The stored
// message is diagnostic, not forensic; losing detail is fine, leaking a
// service key is not.
func SanitizeErrorMessage(msg string) string {
	msg = bearerPattern.ReplaceAllString(msg, "[redacted]")
	msg = secretPattern.ReplaceAllString(msg, "$1=[redacted]")
	msg = localPathPattern.ReplaceAllString(msg, "[path]")
	msg = strings.TrimSpace(msg)
	if msg == "" {
		msg = "processing failed"
	}
	if len(msg) > maxErrorMessageLength {
		// Back off to a rune boundary so the stored column stays valid UTF-8.
		cut := maxErrorMessageLength
		for cut > 0 && !utf8.RuneStart(msg[cut]) {
			cut--
		}
		msg = msg[:cut]
	}
	return msg
}
