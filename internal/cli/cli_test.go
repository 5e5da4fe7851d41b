package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/rescale/webup/internal/constants"
	"github.com/rescale/webup/internal/models"
	"github.com/rescale/webup/internal/testserver"
)

// safeBuffer is a bytes.Buffer safe for the queue display and the logger
// writing at the same time
type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// runCLI executes the root command against srv with a throwaway config path
func runCLI(t *testing.T, srv *testserver.Server, stdin string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("WEBUP_SERVER", "")
	t.Setenv("WEBUP_USERNAME", "")
	t.Setenv("WEBUP_PASSWORD", "")

	root := NewRootCmd()
	AddCommands(root)

	full := []string{"--config", filepath.Join(t.TempDir(), "config")}
	if srv != nil {
		full = append(full, "--server", srv.URL())
	}
	full = append(full, args...)
	root.SetArgs(full)

	var stdout, stderr safeBuffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetIn(strings.NewReader(stdin))

	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestAddCommands(t *testing.T) {
	root := NewRootCmd()
	AddCommands(root)

	for _, name := range []string{"ls", "mkdir", "mv", "rm", "put", "get", "shell", "watch", "config"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("command %q not registered", name)
		}
	}
	for _, flag := range []string{"config", "server", "verbose", "log-file", "proxy-mode"} {
		if root.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("--%s flag not found", flag)
		}
	}
}

func TestLsTable(t *testing.T) {
	srv := testserver.New()
	defer srv.Close()
	srv.WriteFile("/docs/b.txt", []byte("bb"))
	srv.WriteFile("/docs/a.txt", []byte("a"))
	srv.Mkdir("/docs/zeta")

	out, _, err := runCLI(t, srv, "", "ls", "docs")
	if err != nil {
		t.Fatalf("ls error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 4 {
		t.Fatalf("ls output =\n%s", out)
	}
	// Folders first, then files by name
	for i, prefix := range []string{"NAME", "zeta/", "a.txt", "b.txt"} {
		if !strings.HasPrefix(lines[i], prefix) {
			t.Errorf("line %d = %q, want prefix %q", i, lines[i], prefix)
		}
	}
}

func TestLsSortBySizeReversed(t *testing.T) {
	srv := testserver.New()
	defer srv.Close()
	srv.WriteFile("/small.txt", []byte("a"))
	srv.WriteFile("/large.txt", []byte("aaaaaaaa"))

	out, _, err := runCLI(t, srv, "", "ls", "--sort", "size", "--reverse", "--output", "json")
	if err != nil {
		t.Fatalf("ls error = %v", err)
	}
	var entries []models.DirectoryEntry
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if len(entries) != 2 || entries[0].Name != "large.txt" {
		t.Errorf("entries = %+v, want large.txt first", entries)
	}
}

func TestLsYAML(t *testing.T) {
	srv := testserver.New()
	defer srv.Close()
	srv.WriteFile("/a.txt", []byte("abc"))

	out, _, err := runCLI(t, srv, "", "ls", "-o", "yaml")
	if err != nil {
		t.Fatalf("ls error = %v", err)
	}
	var entries []map[string]interface{}
	if err := yaml.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("output is not YAML: %v\n%s", err, out)
	}
	if len(entries) != 1 || entries[0]["name"] != "a.txt" || entries[0]["path"] != "/a.txt" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestLsRejectsBadFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"output", []string{"ls", "--output", "xml"}},
		{"sort", []string{"ls", "--sort", "owner"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := runCLI(t, nil, "", tt.args...); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestLsMissingFolderFails(t *testing.T) {
	srv := testserver.New()
	defer srv.Close()

	_, stderr, err := runCLI(t, srv, "", "ls", "/missing")
	if err == nil {
		t.Fatal("ls of a missing folder should fail")
	}
	if !strings.Contains(stderr, `Failed retrieving contents of "/missing/"`) {
		t.Errorf("stderr should carry the alert, got:\n%s", stderr)
	}
}

func TestMkdirMvRm(t *testing.T) {
	srv := testserver.New()
	defer srv.Close()
	srv.WriteFile("/docs/draft.txt", []byte("x"))

	if _, _, err := runCLI(t, srv, "", "mkdir", "/docs/reports"); err != nil {
		t.Fatalf("mkdir error = %v", err)
	}
	if !srv.Exists("/docs/reports") {
		t.Error("folder not created")
	}

	if _, _, err := runCLI(t, srv, "", "mv", "/docs/draft.txt", "final.txt"); err != nil {
		t.Fatalf("mv error = %v", err)
	}
	if !srv.Exists("/docs/final.txt") || srv.Exists("/docs/draft.txt") {
		t.Error("file not renamed")
	}

	if _, _, err := runCLI(t, srv, "", "rm", "/docs/final.txt"); err != nil {
		t.Fatalf("rm error = %v", err)
	}
	if srv.Exists("/docs/final.txt") {
		t.Error("file not deleted")
	}
}

func TestMkdirInvalidNameSendsNoRequest(t *testing.T) {
	srv := testserver.New()
	defer srv.Close()

	if _, _, err := runCLI(t, srv, "", "mkdir", "/.."); err == nil {
		t.Error("mkdir with an invalid name should fail")
	}
	if n := len(srv.Requests("create")); n != 0 {
		t.Errorf("create requests = %d, want 0", n)
	}
}

func TestRmMissingEntry(t *testing.T) {
	srv := testserver.New()
	defer srv.Close()

	_, _, err := runCLI(t, srv, "", "rm", "/nope.txt")
	if err == nil || !strings.Contains(err.Error(), "no such file or folder") {
		t.Errorf("rm error = %v, want no such file or folder", err)
	}
	if n := len(srv.Requests("delete")); n != 0 {
		t.Errorf("delete requests = %d, want 0", n)
	}
}

func TestPutUploadsSequentially(t *testing.T) {
	srv := testserver.New()
	defer srv.Close()
	srv.Mkdir("/inbox")

	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")
	_ = os.WriteFile(a, []byte("alpha"), 0644)
	_ = os.WriteFile(b, []byte("beta"), 0644)

	_, stderr, err := runCLI(t, srv, "", "put", a, b, "--to", "/inbox")
	if err != nil {
		t.Fatalf("put error = %v\n%s", err, stderr)
	}

	got, _ := srv.ReadFile("/inbox/a.txt")
	if string(got) != "alpha" {
		t.Errorf("a.txt = %q, want alpha", got)
	}
	if !srv.Exists("/inbox/b.txt") {
		t.Error("b.txt not uploaded")
	}

	var ops []string
	for _, r := range srv.Requests("") {
		ops = append(ops, r.Op)
	}
	want := []string{"list", "upload", "list", "upload", "list"}
	if strings.Join(ops, ",") != strings.Join(want, ",") {
		t.Errorf("requests = %v, want %v", ops, want)
	}
	if !strings.Contains(stderr, "Uploads finished: 2 completed, 0 failed, 0 aborted") {
		t.Errorf("stderr should carry the summary, got:\n%s", stderr)
	}
}

func TestPutReportsFailures(t *testing.T) {
	srv := testserver.New()
	defer srv.Close()
	srv.Fail("upload", 500, "disk full", 1)

	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	_ = os.WriteFile(a, []byte("alpha"), 0644)

	_, stderr, err := runCLI(t, srv, "", "put", a)
	if err == nil || !strings.Contains(err.Error(), "1 of 1 upload(s) failed") {
		t.Errorf("put error = %v", err)
	}
	if !strings.Contains(stderr, `Failed uploading`) {
		t.Errorf("stderr should carry the alert, got:\n%s", stderr)
	}
}

func TestPutRejectsMissingFile(t *testing.T) {
	_, _, err := runCLI(t, nil, "", "put", filepath.Join(t.TempDir(), "missing.txt"))
	if err == nil {
		t.Error("put of a missing file should fail before contacting the server")
	}
}

func TestGet(t *testing.T) {
	srv := testserver.New()
	defer srv.Close()
	srv.WriteFile("/docs/report.txt", []byte("quarterly"))

	dir := t.TempDir()
	out, _, err := runCLI(t, srv, "", "get", "/docs/report.txt", dir)
	if err != nil {
		t.Fatalf("get error = %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "report.txt"))
	if err != nil || string(data) != "quarterly" {
		t.Errorf("downloaded = %q, %v", data, err)
	}
	if _, err := os.Stat(filepath.Join(dir, "report.txt.part")); !os.IsNotExist(err) {
		t.Error("partial file left behind")
	}
	if !strings.Contains(out, "Downloaded /docs/report.txt") {
		t.Errorf("output = %q", out)
	}
}

func TestGetMissingFileLeavesNothing(t *testing.T) {
	srv := testserver.New()
	defer srv.Close()

	dir := t.TempDir()
	if _, _, err := runCLI(t, srv, "", "get", "/missing.txt", dir); err == nil {
		t.Fatal("get of a missing file should fail")
	}
	if entries, _ := os.ReadDir(dir); len(entries) != 0 {
		t.Errorf("destination should stay empty, has %d entries", len(entries))
	}
}

func TestConfigInitAndShow(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config")

	root := NewRootCmd()
	AddCommands(root)
	root.SetArgs([]string{"--config", path, "config", "init"})
	root.SetIn(strings.NewReader("http://10.0.0.5:8080/\nalice\nsecret\n\ny\n"))
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	if err := root.Execute(); err != nil {
		t.Fatalf("config init error = %v\n%s", err, out.String())
	}

	show, _, err := runCLIWithConfig(t, path, "config", "show")
	if err != nil {
		t.Fatalf("config show error = %v", err)
	}
	for _, want := range []string{"http://10.0.0.5:8080/", "alice", "********", "Notifications:       true"} {
		if !strings.Contains(show, want) {
			t.Errorf("config show missing %q:\n%s", want, show)
		}
	}
	if strings.Contains(show, "secret") {
		t.Error("config show must not print the password")
	}
}

func TestConfigTest(t *testing.T) {
	srv := testserver.New()
	defer srv.Close()
	srv.WriteFile("/a.txt", []byte("a"))

	out, _, err := runCLI(t, srv, "", "config", "test")
	if err != nil {
		t.Fatalf("config test error = %v", err)
	}
	if !strings.Contains(out, "Connection SUCCESSFUL") || !strings.Contains(out, "1 entries") {
		t.Errorf("output = %q", out)
	}
}

func runCLIWithConfig(t *testing.T, path string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("WEBUP_SERVER", "")

	root := NewRootCmd()
	AddCommands(root)
	root.SetArgs(append([]string{"--config", path}, args...))
	var stdout, stderr safeBuffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestPromptConfigProxy(t *testing.T) {
	input := "\n\nntlm\nproxy.corp\n3128\nbob\nhunter2\n\n"
	var out bytes.Buffer

	cfg, err := promptConfig(bufio.NewReader(strings.NewReader(input)), &out)
	if err != nil {
		t.Fatalf("promptConfig() error = %v", err)
	}

	if cfg.ServerURL != constants.DefaultServerURL {
		t.Errorf("ServerURL = %q, want default %q", cfg.ServerURL, constants.DefaultServerURL)
	}
	if cfg.Username != "" || cfg.Password != "" {
		t.Errorf("credentials = %q/%q, want empty", cfg.Username, cfg.Password)
	}
	if cfg.ProxyMode != "ntlm" || cfg.ProxyHost != "proxy.corp" || cfg.ProxyPort != 3128 {
		t.Errorf("proxy = %s %s:%d, want ntlm proxy.corp:3128", cfg.ProxyMode, cfg.ProxyHost, cfg.ProxyPort)
	}
	if cfg.ProxyUser != "bob" || cfg.ProxyPassword != "hunter2" {
		t.Errorf("proxy credentials = %q/%q, want bob/hunter2", cfg.ProxyUser, cfg.ProxyPassword)
	}
	if cfg.NotificationsEnabled {
		t.Error("NotificationsEnabled = true, want false by default")
	}
	if strings.Contains(out.String(), "Password:") {
		t.Error("server password should not be asked without a username")
	}
}

func TestGetQuiet(t *testing.T) {
	srv := testserver.New()
	defer srv.Close()
	srv.WriteFile("/report.txt", []byte("quarterly"))

	dir := t.TempDir()
	_, stderr, err := runCLI(t, srv, "", "get", "-q", "/report.txt", dir)
	if err != nil {
		t.Fatalf("get error = %v", err)
	}
	if strings.Contains(stderr, "✓") {
		t.Errorf("quiet download should not report progress, stderr = %q", stderr)
	}
}
