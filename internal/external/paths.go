package external

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideWorkDir is returned when a tracker file path escapes the
// tracker's WorkDir.
var ErrOutsideWorkDir = errors.New("path escapes work directory")

// checkWithinDir verifies that path, after resolving symlinks on its longest
// existing prefix, lies inside dir.
func checkWithinDir(path, dir string) error {
	root, err := canonical(dir)
	if err != nil {
		return fmt.Errorf("resolve work directory: %w", err)
	}
	target, err := canonical(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s not under %s", ErrOutsideWorkDir, path, dir)
	}
	return nil
}

// canonical returns the absolute path with symlinks resolved. For a path
// that does not exist yet, the nearest existing ancestor is resolved and the
// rest appended, so a symlinked parent cannot redirect a new file.
func canonical(path string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", err
	}
	var rest []string
	for cur := abs; ; {
		resolved, err := filepath.EvalSymlinks(cur)
		if err == nil {
			return filepath.Join(append([]string{resolved}, rest...)...), nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return abs, nil
		}
		rest = append([]string{filepath.Base(cur)}, rest...)
		cur = parent
	}
}
