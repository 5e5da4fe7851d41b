package pathutil

import (
	"os"
	"path/filepath"
	"strings"
)

// ResolveLocalPath turns a local path typed on the command line (files to put,
// the drop folder, a download destination) into an absolute path. "~" expands to
// the home directory. Symlinks are resolved on the longest existing prefix so a
// destination that does not exist yet still resolves through a linked parent.
func ResolveLocalPath(p string) (string, error) {
	if p == "" {
		return os.Getwd()
	}

	if p == "~" || strings.HasPrefix(p, "~/") || strings.HasPrefix(p, `~\`) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		p = filepath.Join(home, p[1:])
	}

	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}

	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}

	// Walk up to the deepest existing ancestor, resolve it, re-append the rest
	existing := abs
	var missing []string
	for {
		if _, err := os.Stat(existing); err == nil {
			break
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			return abs, nil
		}
		missing = append([]string{filepath.Base(existing)}, missing...)
		existing = parent
	}

	resolved, err := filepath.EvalSymlinks(existing)
	if err != nil {
		resolved = existing
	}
	return filepath.Join(append([]string{resolved}, missing...)...), nil
}
