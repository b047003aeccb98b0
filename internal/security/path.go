package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ConfigFormat is the serialization of a config file
type ConfigFormat string

const (
	FormatJSON ConfigFormat = "json"
	FormatYAML ConfigFormat = "yaml"
)

// ValidateFilePath rejects empty paths and paths that climb out of their
// directory with ".." components.
func ValidateFilePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("file path cannot be empty")
	}
	if strings.ContainsRune(path, 0) {
		return fmt.Errorf("path contains NUL byte: %q", path)
	}

	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return fmt.Errorf("path contains directory traversal: %s", path)
		}
	}
	return nil
}

// ValidateConfigPath validates path and reports the format implied by its
// extension.
func ValidateConfigPath(path string) (ConfigFormat, error) {
	if err := ValidateFilePath(path); err != nil {
		return "", err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported config file extension: %s", filepath.Ext(path))
	}
}
