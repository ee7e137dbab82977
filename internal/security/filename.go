// Package security provides filename and storage key sanitization for
// client-supplied upload names.
package security

import (
	"errors"
	"regexp"
	"strings"
)

var (
	ErrEmptyKey     = errors.New("storage key cannot be empty")
	ErrKeyTraversal = errors.New("storage key contains traversal sequences")
	ErrInvalidKey   = errors.New("storage key contains invalid characters")
)

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SanitizeFilename reduces a client-supplied filename to a name safe to
// embed in a storage key. Path separators and whitespace runs collapse to
// single underscores, characters outside [A-Za-z0-9_.-] are dropped, and
// leading/trailing dots and underscores are trimmed. An empty result means
// the name carried no usable characters and must be rejected by the caller.
func SanitizeFilename(name string) string {
	name = strings.NewReplacer("/", " ", "\\", " ").Replace(name)
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	return strings.Trim(name, "._")
}

// ValidateStorageKey checks a derived storage key before it is sent to the
// store. Keys are generated server-side, so a failure here indicates a bug
// rather than bad client input.
func ValidateStorageKey(key string) error {
	if key == "" {
		return ErrEmptyKey
	}

	if strings.ContainsRune(key, 0) {
		return ErrInvalidKey
	}

	// Dots inside a segment are fine ("a..b.pdf"); a bare ".." segment
	// is a traversal attempt.
	for _, segment := range strings.Split(key, "/") {
		if segment == ".." {
			return ErrKeyTraversal
		}
	}

	if strings.HasPrefix(key, "/") || strings.Contains(key, "//") {
		return ErrInvalidKey
	}

	for _, r := range key {
		if !isAllowedKeyChar(r) {
			return ErrInvalidKey
		}
	}

	return nil
}

// isAllowedKeyChar returns true if the character is allowed in storage keys
func isAllowedKeyChar(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '/' || r == '-' || r == '_' || r == '.':
		return true
	}
	return false
}
