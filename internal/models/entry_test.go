package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseListing(t *testing.T) {
	body := `[
		{"path": "/docs/", "name": "docs"},
		{"path": "/a.txt", "name": "a.txt", "size": 12},
		{"path": "/b.bin", "name": "b.bin", "size": 0, "modified": "2024-03-01T10:00:00Z"}
	]`

	entries, err := ParseListing([]byte(body))
	if err != nil {
		t.Fatalf("ParseListing() error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("len(entries) = %d, want 3", len(entries))
	}

	tests := []struct {
		idx      int
		wantName string
		wantKind EntryKind
		wantSize int64
	}{
		{0, "docs", KindFolder, 0},
		{1, "a.txt", KindFile, 12},
		{2, "b.bin", KindFile, 0},
	}
	for _, tt := range tests {
		e := entries[tt.idx]
		if e.Name != tt.wantName || e.Kind != tt.wantKind || e.Size != tt.wantSize {
			t.Errorf("entries[%d] = %+v, want name=%s kind=%s size=%d", tt.idx, e, tt.wantName, tt.wantKind, tt.wantSize)
		}
	}

	want := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	if !entries[2].ModTime.Equal(want) {
		t.Errorf("ModTime = %v, want %v", entries[2].ModTime, want)
	}
	if !entries[0].IsFolder() || entries[1].IsFolder() {
		t.Error("IsFolder() mismatch")
	}
}

func TestParseListing_Empty(t *testing.T) {
	for _, body := range []string{"[]", "null"} {
		entries, err := ParseListing([]byte(body))
		if err != nil {
			t.Fatalf("ParseListing(%s) error = %v", body, err)
		}
		if entries == nil || len(entries) != 0 {
			t.Errorf("ParseListing(%s) = %v, want empty non-nil slice", body, entries)
		}
	}
}

func TestParseListing_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "<html>"},
		{"object instead of array", `{"path": "/a"}`},
		{"missing path", `[{"name": "a"}]`},
		{"bad modified", `[{"path": "/a", "modified": "yesterday"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseListing([]byte(tt.body)); err == nil {
				t.Error("ParseListing() should fail")
			}
		})
	}
}

func TestDirectoryEntry_NameFallback(t *testing.T) {
	entries, err := ParseListing([]byte(`[{"path": "/x/y/"}, {"path": "/x/z.txt"}]`))
	if err != nil {
		t.Fatal(err)
	}
	if entries[0].Name != "y" {
		t.Errorf("folder name = %q, want y", entries[0].Name)
	}
	if entries[1].Name != "z.txt" {
		t.Errorf("file name = %q, want z.txt", entries[1].Name)
	}
}

func TestDirectoryEntry_MarshalJSON(t *testing.T) {
	entry := DirectoryEntry{Name: "a.txt", Path: "/a.txt", Kind: KindFile, Size: 0}
	data, err := json.Marshal(entry)
	if err != nil {
		t.Fatal(err)
	}
	if got := string(data); got != `{"name":"a.txt","path":"/a.txt","kind":"file","size":0}` {
		t.Errorf("json.Marshal() = %s", got)
	}

	var back DirectoryEntry
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back != entry {
		t.Errorf("round trip = %+v, want %+v", back, entry)
	}
}
