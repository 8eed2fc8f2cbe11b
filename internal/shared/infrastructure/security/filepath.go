// Package security validates operator-supplied file paths before they are read.
package security

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrFileTooLarge is returned when a file exceeds the permitted size.
var ErrFileTooLarge = errors.New("file exceeds size limit")

var forbiddenChars = []string{";", "&", "|", "$", "`", "<", ">", "\n", "\r"}

// ValidateFilePath cleans path, makes it absolute and resolves symlinks.
// Paths containing shell metacharacters are rejected.
func ValidateFilePath(path string) (string, error) {
	if path == "" {
		return "", errors.New("file path cannot be empty")
	}
	for _, c := range forbiddenChars {
		if strings.Contains(path, c) {
			return "", fmt.Errorf("file path contains forbidden character %q", c)
		}
	}

	clean, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("failed to resolve file path: %w", err)
	}

	resolved, err := filepath.EvalSymlinks(clean)
	if err != nil {
		if os.IsNotExist(err) {
			return clean, nil
		}
		return "", fmt.Errorf("failed to resolve file path: %w", err)
	}
	return resolved, nil
}

// ReadFileLimited reads a validated file, failing with ErrFileTooLarge when
// it holds more than maxBytes.
func ReadFileLimited(path string, maxBytes int64) ([]byte, error) {
	clean, err := ValidateFilePath(path)
	if err != nil {
		return nil, err
	}
	// #nosec G304 - path is validated above
	f, err := os.Open(clean)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%s: %w (%d bytes)", path, ErrFileTooLarge, maxBytes)
	}
	return data, nil
}
