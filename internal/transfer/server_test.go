package transfer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rescale/webup/internal/alerts"
	"github.com/rescale/webup/internal/api"
	"github.com/rescale/webup/internal/browser"
	"github.com/rescale/webup/internal/config"
	"github.com/rescale/webup/internal/testserver"
)

func TestQueueWithServer_UploadRefreshesListing(t *testing.T) {
	srv := testserver.New()
	defer srv.Close()
	srv.Mkdir("/docs")

	cfg := config.NewConfig()
	cfg.ServerURL = srv.URL()
	client, err := api.NewClient(cfg, api.WithRetry(0, time.Millisecond, time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}

	sink := alerts.NewSink(nil, nil, nil)
	engine := browser.NewEngine(client, sink, browser.Options{})
	if err := engine.Navigate(context.Background(), "/docs/"); err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	var sources []Source
	for name, content := range map[string]string{"a.txt": "alpha", "b.txt": "bravo!"} {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		src, err := FileSource(p)
		if err != nil {
			t.Fatal(err)
		}
		sources = append(sources, src)
	}

	q := NewQueue(client, Options{Alerts: sink, Refresher: engine})
	defer q.Close()
	tasks := q.Enqueue(sources, engine.Location())
	waitDrained(t, q)

	var ops []string
	for _, r := range srv.Requests("") {
		if r.Op == "upload" || r.Op == "list" {
			ops = append(ops, r.Op)
		}
	}
	// Initial navigation, then each upload followed by its refresh
	want := []string{"list", "upload", "list", "upload", "list"}
	if !equalLog(ops, want) {
		t.Errorf("request order = %v, want %v", ops, want)
	}

	for _, task := range tasks {
		if task.GetState() != TaskCompleted {
			t.Errorf("%s state = %v, error = %v", task.Name, task.GetState(), task.GetError())
		}
		if _, ok := engine.Lookup(task.Name); !ok {
			t.Errorf("%s missing from the refreshed listing", task.Name)
		}
	}
	if data, _ := srv.ReadFile("/docs/b.txt"); string(data) != "bravo!" {
		t.Errorf("server content = %q", data)
	}
	if sink.Len() != 0 {
		t.Errorf("unexpected alerts: %+v", sink.List())
	}
}

func TestQueueWithServer_AbortTearsDownRequest(t *testing.T) {
	srv := testserver.New()
	defer srv.Close()
	srv.Mkdir("/docs")
	gate := srv.Hold("upload", "/docs/")

	cfg := config.NewConfig()
	cfg.ServerURL = srv.URL()
	client, err := api.NewClient(cfg)
	if err != nil {
		t.Fatal(err)
	}
	sink := alerts.NewSink(nil, nil, nil)
	q := NewQueue(client, Options{Alerts: sink})
	defer q.Close()

	tasks := q.Enqueue([]Source{memSource("big.bin", "payload")}, "/docs/")
	<-gate.Entered()

	if err := q.Abort(tasks[0].ID); err != nil {
		t.Fatalf("Abort() error = %v", err)
	}
	waitDrained(t, q)

	if tasks[0].GetState() != TaskAborted {
		t.Errorf("state = %v, want aborted", tasks[0].GetState())
	}
	if srv.Exists("/docs/big.bin") {
		t.Error("aborted upload must not reach the server filesystem")
	}
	if sink.Len() != 0 {
		t.Errorf("abort raised alerts: %+v", sink.List())
	}
}
