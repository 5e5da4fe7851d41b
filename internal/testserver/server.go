// Package testserver runs an in-memory uploader service for tests. It serves the
// list/upload/move/delete/create/download endpoints over an afero.MemMapFs and
// lets tests inject failures and hold requests in flight.
package testserver

import (
	"net/http"
	"net/http/httptest"
	"path"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/afero"
)

// Request is one call recorded by the server, in arrival order
type Request struct {
	Op      string
	Path    string // list/delete/create/download path, move oldPath, upload target
	NewPath string // move only
	Name    string // upload only: file name of the part
	Size    int64  // upload only: bytes received
}

type failure struct {
	status int
	body   string
	times  int // remaining; <0 means forever
}

// Gate holds matching requests until released
type Gate struct {
	entered     chan struct{}
	release     chan struct{}
	enterOnce   sync.Once
	releaseOnce sync.Once
}

// Entered is closed when the first matching request reaches the gate
func (g *Gate) Entered() <-chan struct{} { return g.entered }

// Release lets held and future matching requests proceed
func (g *Gate) Release() { g.releaseOnce.Do(func() { close(g.release) }) }

type gateKey struct {
	op   string
	path string
}

// Server is the fake uploader
type Server struct {
	Fs afero.Fs

	// ShowHidden lists dot-files, off by default like the real uploader
	ShowHidden bool

	mu       sync.Mutex
	failures map[string]*failure
	gates    map[gateKey]*Gate
	requests []Request

	srv *httptest.Server
}

// New starts a server over an empty filesystem containing only "/"
func New() *Server {
	s := &Server{
		Fs:       afero.NewMemMapFs(),
		failures: make(map[string]*failure),
		gates:    make(map[gateKey]*Gate),
	}
	_ = s.Fs.MkdirAll("/", 0755)
	s.srv = httptest.NewServer(s.routes())
	return s
}

func (s *Server) routes() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(middleware.RequestID)

	router.Get("/list", s.handleList)
	router.Post("/upload", s.handleUpload)
	router.Post("/move", s.handleMove)
	router.Post("/delete", s.handleDelete)
	router.Post("/create", s.handleCreate)
	router.Get("/download", s.handleDownload)

	return router
}

// URL returns the base URL, with a trailing slash
func (s *Server) URL() string { return s.srv.URL + "/" }

// Close shuts the server down, releasing any held requests first
func (s *Server) Close() {
	s.mu.Lock()
	for _, g := range s.gates {
		g.Release()
	}
	s.mu.Unlock()
	s.srv.Close()
}

// Fail makes the next `times` requests for op answer status with body.
// times < 0 fails forever.
func (s *Server) Fail(op string, status int, body string, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = &failure{status: status, body: body, times: times}
}

// Hold returns a gate that parks requests for op on p (any path when p is "")
// until released or the client goes away.
func (s *Server) Hold(op, p string) *Gate {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := &Gate{entered: make(chan struct{}), release: make(chan struct{})}
	s.gates[gateKey{op, p}] = g
	return g
}

// Requests returns the recorded requests for op, or all of them when op is ""
func (s *Server) Requests(op string) []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, 0, len(s.requests))
	for _, r := range s.requests {
		if op == "" || r.Op == op {
			out = append(out, r)
		}
	}
	return out
}

// WriteFile creates a file, making parent directories as needed
func (s *Server) WriteFile(p string, data []byte) {
	_ = s.Fs.MkdirAll(path.Dir(p), 0755)
	_ = afero.WriteFile(s.Fs, p, data, 0644)
}

// Mkdir creates a directory and its parents
func (s *Server) Mkdir(p string) {
	_ = s.Fs.MkdirAll(p, 0755)
}

// Exists reports whether p exists on the fake filesystem
func (s *Server) Exists(p string) bool {
	ok, _ := afero.Exists(s.Fs, p)
	return ok
}

// ReadFile returns the content of p
func (s *Server) ReadFile(p string) ([]byte, error) {
	return afero.ReadFile(s.Fs, p)
}

func (s *Server) record(r Request) {
	s.mu.Lock()
	s.requests = append(s.requests, r)
	s.mu.Unlock()
}

// intercept applies gates and injected failures. It returns false when the
// handler must stop (response already written or client gone).
func (s *Server) intercept(w http.ResponseWriter, req *http.Request, op, p string) bool {
	s.mu.Lock()
	g := s.gates[gateKey{op, p}]
	if g == nil {
		g = s.gates[gateKey{op, ""}]
	}
	s.mu.Unlock()

	if g != nil {
		g.enterOnce.Do(func() { close(g.entered) })
		select {
		case <-g.release:
		case <-req.Context().Done():
			return false
		}
	}

	s.mu.Lock()
	f := s.failures[op]
	var status int
	var body string
	if f != nil && f.times != 0 {
		status, body = f.status, f.body
		if f.times > 0 {
			f.times--
		}
	}
	s.mu.Unlock()

	if status != 0 {
		http.Error(w, body, status)
		return false
	}
	return true
}
