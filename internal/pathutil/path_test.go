package pathutil

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/rescale/webup/internal/models"
)

func TestComponents(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"/", []string{}},
		{"", []string{}},
		{"/a/", []string{"a"}},
		{"/a/b/c/", []string{"a", "b", "c"}},
		{"/a//b/", []string{"a", "b"}},
		{"/docs/old.txt", []string{"docs", "old.txt"}},
	}

	for _, tt := range tests {
		if got := Components(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Components(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestBreadcrumbs(t *testing.T) {
	got := Breadcrumbs("/a/b/c/", "Device")
	want := []models.Breadcrumb{
		{Label: "Device", Target: "/"},
		{Label: "a", Target: "/a/"},
		{Label: "b", Target: "/a/b/"},
		{Label: "c", Target: "/a/b/c/", Current: true},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Breadcrumbs(/a/b/c/) = %+v, want %+v", got, want)
	}
}

func TestBreadcrumbs_Root(t *testing.T) {
	got := Breadcrumbs("/", "Device")
	want := []models.Breadcrumb{{Label: "Device", Target: "/", Current: true}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Breadcrumbs(/) = %+v, want %+v", got, want)
	}
}

func TestBreadcrumbs_DefaultLabel(t *testing.T) {
	got := Breadcrumbs("/docs/", "")
	if got[0].Label == "" {
		t.Error("root crumb should fall back to the default label")
	}
	if got[0].Current {
		t.Error("root crumb should not be current below the root")
	}
}

func TestClean(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", "/"},
		{"/", "/"},
		{"docs", "/docs/"},
		{"/docs", "/docs/"},
		{"/docs/", "/docs/"},
		{"//docs///sub", "/docs/sub/"},
		{"/docs/./sub/../x", "/docs/x/"},
		{"/../..", "/"},
	}
	for _, tt := range tests {
		if got := Clean(tt.in); got != tt.want {
			t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		base, in, want string
	}{
		{"/docs/", "sub", "/docs/sub/"},
		{"/docs/", "..", "/"},
		{"/docs/", "/other", "/other/"},
		{"/a/b/", "../c/", "/a/c/"},
		{"/", ".", "/"},
	}
	for _, tt := range tests {
		if got := Resolve(tt.base, tt.in); got != tt.want {
			t.Errorf("Resolve(%q, %q) = %q, want %q", tt.base, tt.in, got, tt.want)
		}
	}

	if got := ResolveFile("/docs/", "a.txt"); got != "/docs/a.txt" {
		t.Errorf("ResolveFile() = %q, want /docs/a.txt", got)
	}
}

func TestJoinParentBase(t *testing.T) {
	if got := Join("/docs/", "a.txt"); got != "/docs/a.txt" {
		t.Errorf("Join() = %q", got)
	}
	if got := Join("/docs", "a.txt"); got != "/docs/a.txt" {
		t.Errorf("Join() without trailing slash = %q", got)
	}
	if got := JoinDir("/", "new"); got != "/new/" {
		t.Errorf("JoinDir() = %q", got)
	}

	parents := map[string]string{
		"/":           "/",
		"/docs/":      "/",
		"/docs/a.txt": "/docs/",
		"/a/b/c/":     "/a/b/",
		"/a/b/c.tar":  "/a/b/",
	}
	for in, want := range parents {
		if got := Parent(in); got != want {
			t.Errorf("Parent(%q) = %q, want %q", in, got, want)
		}
	}

	if Base("/") != "" || Base("/docs/") != "docs" || Base("/docs/a.txt") != "a.txt" {
		t.Error("Base() mismatch")
	}
	if !IsDir("/docs/") || IsDir("/docs/a.txt") {
		t.Error("IsDir() mismatch")
	}
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"reports", false},
		{"foo..bar.txt", false},
		{"with space", false},
		{"", true},
		{".", true},
		{"..", true},
		{"a/b", true},
		{"nul\x00", true},
	}
	for _, tt := range tests {
		err := ValidateName(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateName(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrInvalidName) {
			t.Errorf("ValidateName(%q) error should wrap ErrInvalidName", tt.name)
		}
	}
}

func TestResolveLocalPath(t *testing.T) {
	dir := t.TempDir()
	want, err := filepath.EvalSymlinks(dir)
	if err != nil {
		t.Fatal(err)
	}

	got, err := ResolveLocalPath(filepath.Join(dir, "missing", "file.txt"))
	if err != nil {
		t.Fatalf("ResolveLocalPath() error = %v", err)
	}
	if got != filepath.Join(want, "missing", "file.txt") {
		t.Errorf("ResolveLocalPath() = %q, want %q", got, filepath.Join(want, "missing", "file.txt"))
	}

	home, err := os.UserHomeDir()
	if err == nil {
		got, err := ResolveLocalPath("~")
		if err != nil {
			t.Fatalf("ResolveLocalPath(~) error = %v", err)
		}
		resolvedHome, _ := filepath.EvalSymlinks(home)
		if got != resolvedHome && got != home {
			t.Errorf("ResolveLocalPath(~) = %q, want %q", got, home)
		}
	}
}
