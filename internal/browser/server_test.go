package browser

import (
	"context"
	"testing"
	"time"

	"github.com/rescale/webup/internal/alerts"
	"github.com/rescale/webup/internal/api"
	"github.com/rescale/webup/internal/config"
	"github.com/rescale/webup/internal/testserver"
)

func serverEngine(t *testing.T) (*Engine, *testserver.Server, *alerts.Sink) {
	t.Helper()
	srv := testserver.New()
	t.Cleanup(srv.Close)

	cfg := config.NewConfig()
	cfg.ServerURL = srv.URL()
	client, err := api.NewClient(cfg, api.WithRetry(0, time.Millisecond, time.Millisecond))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	sink := alerts.NewSink(nil, nil, nil)
	return NewEngine(client, sink, Options{}), srv, sink
}

func TestEngineWithServer_MutationsRoundTrip(t *testing.T) {
	e, srv, sink := serverEngine(t)
	srv.WriteFile("/docs/old.txt", []byte("data"))
	ctx := context.Background()

	if err := e.Navigate(ctx, "/docs/"); err != nil {
		t.Fatalf("Navigate() error = %v", err)
	}

	if err := e.CreateFolder(ctx, "reports"); err != nil {
		t.Fatalf("CreateFolder() error = %v", err)
	}
	if _, ok := e.Lookup("reports"); !ok {
		t.Error("new folder should appear after the refresh")
	}

	old, _ := e.Lookup("old.txt")
	if err := e.Rename(ctx, old, "new.txt"); err != nil {
		t.Fatalf("Rename() error = %v", err)
	}
	if _, ok := e.Lookup("new.txt"); !ok {
		t.Error("renamed file should appear after the refresh")
	}
	if !srv.Exists("/docs/new.txt") || srv.Exists("/docs/old.txt") {
		t.Error("server state not updated by move")
	}

	renamed, _ := e.Lookup("new.txt")
	if err := e.Delete(ctx, renamed); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok := e.Lookup("new.txt"); ok {
		t.Error("deleted file should be gone after the refresh")
	}

	if sink.Len() != 0 {
		t.Errorf("unexpected alerts: %+v", sink.List())
	}
	if n := len(srv.Requests("list")); n != 4 {
		t.Errorf("list requests = %d, want 4 (navigate + one per mutation)", n)
	}
}

func TestEngineWithServer_RenameOntoExistingName(t *testing.T) {
	e, srv, sink := serverEngine(t)
	srv.WriteFile("/docs/a.txt", []byte("a"))
	srv.WriteFile("/docs/b.txt", []byte("b"))
	ctx := context.Background()
	_ = e.Navigate(ctx, "/docs/")

	a, _ := e.Lookup("a.txt")
	err := e.Rename(ctx, a, "b.txt")
	if !api.IsConflict(err) {
		t.Errorf("Rename() error = %v, want a 409 StatusError", err)
	}
	if sink.Len() != 1 {
		t.Errorf("raised %d alerts, want 1", sink.Len())
	}
	if data, _ := srv.ReadFile("/docs/b.txt"); string(data) != "b" {
		t.Error("existing target must be left untouched")
	}
}

func TestEngineWithServer_StaleNavigation(t *testing.T) {
	e, srv, _ := serverEngine(t)
	srv.Mkdir("/slow")
	srv.Mkdir("/fast")
	gate := srv.Hold("list", "/slow/")
	ctx := context.Background()

	slow := e.RefreshAsync(ctx, "/slow/")
	<-gate.Entered()
	if err := e.Navigate(ctx, "/fast/"); err != nil {
		t.Fatalf("Navigate(/fast/) error = %v", err)
	}
	gate.Release()
	<-slow

	if e.Location() != "/fast/" {
		t.Errorf("Location() = %q, want /fast/", e.Location())
	}
}
