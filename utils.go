package dams

import (
	"path"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

const maxFilenameLength = 200

// NewStorageKey returns a fresh, never reused blob key of the form
// "<uuid>-<sanitised filename>".
func NewStorageKey(filename string) string {
	return uuid.NewString() + "-" + SanitizeFilename(filename)
}

// SanitizeFilename reduces a client supplied filename to a single key
// segment. Directory components are dropped and any character rejected by
// IsValidStorageKey is replaced with "_". The result is never empty.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = path.Base(name)
	if !utf8.ValidString(name) {
		name = strings.ToValidUTF8(name, "_")
	}

	var b strings.Builder
	for _, r := range name {
		if isForbiddenKeyRune(r) {
			b.WriteRune('_')
			continue
		}
		b.WriteRune(r)
	}

	out := strings.Trim(b.String(), ".")
	for strings.Contains(out, "..") {
		out = strings.ReplaceAll(out, "..", ".")
	}

	if len(out) > maxFilenameLength {
		out = truncateUTF8(out, maxFilenameLength)
	}

	if out == "" {
		return "file"
	}
	return out
}

// IsValidStorageKey validates that a key is a single flat segment safe to use
// as a filesystem name and an object store key. It checks that the key:
//   - is not empty, "." or ".."
//   - does not contain "/" or "\"
//   - does not contain ".." (path traversal)
//   - does not contain the characters ? # ~
//   - is valid UTF-8
//   - does not contain null bytes, control characters (< 0x20), DEL (0x7f), or whitespace
func IsValidStorageKey(k string) bool {
	if k == "" || k == "." {
		return false
	}

	if strings.Contains(k, "..") {
		return false
	}

	if !utf8.ValidString(k) {
		return false
	}

	for _, r := range k {
		if isForbiddenKeyRune(r) {
			return false
		}
	}

	return true
}

func isForbiddenKeyRune(r rune) bool {
	if r == 0 || r < 0x20 || r == 0x7f || unicode.IsSpace(r) {
		return true
	}
	return strings.ContainsRune(`/\?#~%`, r)
}

func truncateUTF8(s string, limit int) string {
	for len(s) > limit {
		_, size := utf8.DecodeLastRuneInString(s)
		s = s[:len(s)-size]
	}
	return s
}
