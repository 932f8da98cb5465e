// Package util provides small helpers shared across the application.
package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// UserWritableDirPerms represents the standard permissions for newly created directories (rwxr-xr-x).
const UserWritableDirPerms os.FileMode = 0755

// UserWritableFilePerms represents the standard permissions for newly created files (rw-r--r--).
const UserWritableFilePerms os.FileMode = 0644

// ExpandPath expands the tilde (~) prefix in a path to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil // No tilde, return as-is.
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not get user home directory: %w", err)
	}

	// Replace the tilde with the home directory.
	return filepath.Join(home, path[1:]), nil
}

// NormalizePath converts a path to forward slashes for use as a portable
// key or archive entry name.
func NormalizePath(path string) string {
	return filepath.ToSlash(path)
}

// DenormalizePath converts a normalized path back to the host separator.
func DenormalizePath(path string) string {
	return filepath.FromSlash(path)
}

// InvertMap takes a map[K]V and returns a map[V]K.
// It's a generic helper for creating reverse lookup maps for enums.
func InvertMap[K comparable, V comparable](m map[K]V) map[V]K {
	inv := make(map[V]K, len(m))
	for k, v := range m {
		inv[v] = k
	}
	return inv
}

// ByteCountIEC formats a byte count into a human-readable IEC string (KiB, MiB, ...).
func ByteCountIEC(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
