package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// HasHomePrefix reports whether p starts with the home marker: "~" alone or
// followed by a separator. "~user" forms are not expanded.
func HasHomePrefix(p string) bool {
	return p == "~" || strings.HasPrefix(p, "~/") || strings.HasPrefix(p, "~\\")
}

// ExpandHome replaces the home marker of p with home, rendered in style.
func ExpandHome(p, home string, style PathStyle) string {
	if !HasHomePrefix(p) {
		return p
	}
	if p == "~" {
		return style.Normalize(home)
	}
	return style.Join(home, p[2:])
}

// ExpandHomeLocal expands the home marker against the local user's home directory.
func ExpandHomeLocal(p string) (string, error) {
	if !HasHomePrefix(p) {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %v", err)
	}
	if p == "~" {
		return filepath.Clean(home), nil
	}
	return filepath.Join(home, p[2:]), nil
}
