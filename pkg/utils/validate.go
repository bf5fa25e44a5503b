package utils

import (
	"errors"
	"strings"
)

// ValidateScopeID checks a board scope identifier (a doctor ID) before it is
// placed in a request path. It must be non-empty and free of path separators
// or "..".
func ValidateScopeID(id string) error {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return errors.New("scope id is required and must be a non-empty string")
	}
	if strings.ContainsAny(trimmed, "/\\?#") || strings.Contains(trimmed, "..") {
		return errors.New("scope id must not contain path separators, query characters or '..'")
	}
	return nil
}
