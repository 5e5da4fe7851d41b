// Package pathutil implements the remote path model: absolute, "/"-delimited
// paths where directories end with "/" and the root is "/".
package pathutil

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/rescale/webup/internal/constants"
	"github.com/rescale/webup/internal/models"
)

// Root is the root directory path
const Root = "/"

// ErrInvalidName is returned by ValidateName
var ErrInvalidName = errors.New("invalid name")

// Components splits p into its non-empty segments.
// Components("/a/b/c/") == ["a", "b", "c"]; Components("/") == [].
func Components(p string) []string {
	parts := strings.Split(p, "/")
	out := make([]string, 0, len(parts))
	for _, s := range parts {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Breadcrumbs builds the navigation trail for directory p. The first crumb is the
// root label targeting "/"; each ancestor targets its components re-joined plus
// "/"; the last crumb is marked Current. At the root only the root label is
// returned, marked Current. An empty rootLabel uses the default device label.
func Breadcrumbs(p, rootLabel string) []models.Breadcrumb {
	if rootLabel == "" {
		rootLabel = constants.RootLabel
	}
	comps := Components(p)

	crumbs := make([]models.Breadcrumb, 0, len(comps)+1)
	crumbs = append(crumbs, models.Breadcrumb{
		Label:   rootLabel,
		Target:  Root,
		Current: len(comps) == 0,
	})
	for i, c := range comps {
		crumbs = append(crumbs, models.Breadcrumb{
			Label:   c,
			Target:  "/" + strings.Join(comps[:i+1], "/") + "/",
			Current: i == len(comps)-1,
		})
	}
	return crumbs
}

// Clean normalizes user input into a directory path: resolves "." and "..",
// collapses duplicate slashes, adds the leading slash and the trailing slash.
// ".." never climbs above the root.
func Clean(p string) string {
	c := path.Clean("/" + p)
	if c == "/" {
		return Root
	}
	return c + "/"
}

// Resolve interprets p relative to the directory base (as a shell would for
// `cd`). Absolute inputs ignore base. The result is a directory path.
func Resolve(base, p string) string {
	if strings.HasPrefix(p, "/") {
		return Clean(p)
	}
	return Clean(base + p)
}

// ResolveFile is like Resolve but keeps the result as a file path (no trailing
// slash). Used for download sources typed by the user.
func ResolveFile(base, p string) string {
	dir := Resolve(base, p)
	if dir == Root {
		return Root
	}
	return strings.TrimSuffix(dir, "/")
}

// Join builds the path of child name inside directory dir
func Join(dir, name string) string {
	if !IsDir(dir) {
		dir += "/"
	}
	return dir + name
}

// JoinDir builds the path of child folder name inside directory dir
func JoinDir(dir, name string) string {
	return Join(dir, name) + "/"
}

// Parent returns the directory containing p. The parent of the root is the root.
func Parent(p string) string {
	comps := Components(p)
	if len(comps) <= 1 {
		return Root
	}
	return "/" + strings.Join(comps[:len(comps)-1], "/") + "/"
}

// IsDir reports whether p is a directory path
func IsDir(p string) bool {
	return strings.HasSuffix(p, "/")
}

// Base returns the last component of p, or "" for the root
func Base(p string) string {
	comps := Components(p)
	if len(comps) == 0 {
		return ""
	}
	return comps[len(comps)-1]
}

// ValidateName checks a single entry name typed by the user (new folder name,
// rename target). Rejects empty names, "." and "..", and names containing "/" or
// NUL, which would address a different directory than the one shown.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}
	if strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: name contains null byte", ErrInvalidName)
	}
	if strings.ContainsRune(name, '/') {
		return fmt.Errorf("%w: name cannot contain '/': %s", ErrInvalidName, name)
	}
	if name == "." || name == ".." {
		return fmt.Errorf("%w: name cannot be %q", ErrInvalidName, name)
	}
	return nil
}
