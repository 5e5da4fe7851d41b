package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// EntryKind distinguishes files from folders in a listing
type EntryKind string

const (
	KindFile   EntryKind = "file"
	KindFolder EntryKind = "folder"
)

// DirectoryEntry is one item of a server listing. Entries are produced fresh on
// every listing fetch and never mutated in place.
type DirectoryEntry struct {
	Name    string    `json:"name" yaml:"name"`
	Path    string    `json:"path" yaml:"path"` // absolute; folders end with "/"
	Kind    EntryKind `json:"kind" yaml:"kind"`
	Size    int64     `json:"size,omitempty" yaml:"size,omitempty"` // files only
	ModTime time.Time `json:"modified,omitempty" yaml:"modified,omitempty"`
}

// IsFolder reports whether the entry is a folder
func (e DirectoryEntry) IsFolder() bool {
	return e.Kind == KindFolder
}

// wireEntry matches the uploader's list response:
// [{"path": "/docs/", "name": "docs"}, {"path": "/a.txt", "name": "a.txt", "size": 12}]
type wireEntry struct {
	Path     string `json:"path"`
	Name     string `json:"name"`
	Size     *int64 `json:"size"`
	Modified string `json:"modified"`
}

// UnmarshalJSON decodes a wire listing item. The kind is derived from the
// trailing slash on the path; a "kind" key, if any, is ignored.
func (e *DirectoryEntry) UnmarshalJSON(data []byte) error {
	var w wireEntry
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.Path == "" {
		return fmt.Errorf("listing entry has no path")
	}

	entry := DirectoryEntry{
		Path: w.Path,
		Name: w.Name,
		Kind: KindFile,
	}
	if strings.HasSuffix(w.Path, "/") {
		entry.Kind = KindFolder
	} else if w.Size != nil {
		entry.Size = *w.Size
	}
	if entry.Name == "" {
		entry.Name = nameFromPath(w.Path)
	}
	if w.Modified != "" {
		t, err := time.Parse(time.RFC3339, w.Modified)
		if err != nil {
			return fmt.Errorf("invalid modified time %q for %s: %w", w.Modified, w.Path, err)
		}
		entry.ModTime = t
	}

	*e = entry
	return nil
}

// MarshalJSON emits the same shape the server sends, plus "kind", so output of
// `ls --output json` can be fed back through UnmarshalJSON.
func (e DirectoryEntry) MarshalJSON() ([]byte, error) {
	out := struct {
		Name     string    `json:"name"`
		Path     string    `json:"path"`
		Kind     EntryKind `json:"kind"`
		Size     *int64    `json:"size,omitempty"`
		Modified string    `json:"modified,omitempty"`
	}{
		Name: e.Name,
		Path: e.Path,
		Kind: e.Kind,
	}
	if e.Kind == KindFile {
		size := e.Size
		out.Size = &size
	}
	if !e.ModTime.IsZero() {
		out.Modified = e.ModTime.UTC().Format(time.RFC3339)
	}
	return json.Marshal(out)
}

// ParseListing decodes a list response body
func ParseListing(data []byte) ([]DirectoryEntry, error) {
	var entries []DirectoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode listing: %w", err)
	}
	if entries == nil {
		entries = []DirectoryEntry{}
	}
	return entries, nil
}

func nameFromPath(p string) string {
	p = strings.TrimSuffix(p, "/")
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}

// Breadcrumb is one element of the navigation trail for the current location
type Breadcrumb struct {
	Label   string // root label or path component
	Target  string // directory path to navigate to
	Current bool   // the last crumb; not clickable
}
