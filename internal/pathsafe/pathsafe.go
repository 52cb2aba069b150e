// Package pathsafe guards filesystem writes under a trusted root so that
// engagement identifiers and report names taken from flags can never
// traverse outside the results directory.
package pathsafe

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrEscape indicates the resolved path would leave the trusted root.
var ErrEscape = errors.New("path escapes results directory")

// Join resolves elems under root and rejects any result that escapes it.
// The returned path is absolute.
func Join(root string, elems ...string) (string, error) {
	if root == "" {
		return "", errors.New("results directory is required")
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve results directory: %w", err)
	}

	target, err := filepath.Abs(filepath.Join(append([]string{absRoot}, elems...)...))
	if err != nil {
		return "", fmt.Errorf("resolve target path: %w", err)
	}

	rel, err := filepath.Rel(absRoot, target)
	if err != nil {
		return "", fmt.Errorf("relativize target path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %s", ErrEscape, target)
	}

	return target, nil
}
