package testserver

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"
)

type listItem struct {
	Path     string `json:"path"`
	Name     string `json:"name"`
	Size     *int64 `json:"size,omitempty"`
	Modified string `json:"modified,omitempty"`
}

func sendJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func sendOK(w http.ResponseWriter) {
	sendJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) handleList(w http.ResponseWriter, req *http.Request) {
	dir := req.URL.Query().Get("path")
	s.record(Request{Op: "list", Path: dir})
	if !s.intercept(w, req, "list", dir) {
		return
	}

	if !strings.HasSuffix(dir, "/") {
		http.Error(w, "path must be a directory", http.StatusBadRequest)
		return
	}

	infos, err := afero.ReadDir(s.Fs, dir)
	if err != nil {
		if os.IsNotExist(err) {
			http.Error(w, "directory not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	items := make([]listItem, 0, len(infos))
	for _, info := range infos {
		name := info.Name()
		if !s.ShowHidden && strings.HasPrefix(name, ".") {
			continue
		}
		if info.IsDir() {
			items = append(items, listItem{Path: dir + name + "/", Name: name})
			continue
		}
		size := info.Size()
		items = append(items, listItem{
			Path:     dir + name,
			Name:     name,
			Size:     &size,
			Modified: info.ModTime().UTC().Format(time.RFC3339),
		})
	}
	sendJSON(w, http.StatusOK, items)
}

func (s *Server) handleUpload(w http.ResponseWriter, req *http.Request) {
	reader, err := req.MultipartReader()
	if err != nil {
		s.record(Request{Op: "upload"})
		http.Error(w, "expected multipart body", http.StatusBadRequest)
		return
	}

	// The "path" field precedes the file part, as the browser form sends it
	part, err := reader.NextPart()
	if err != nil || part.FormName() != "path" {
		s.record(Request{Op: "upload"})
		http.Error(w, "missing path field", http.StatusBadRequest)
		return
	}
	target, _ := io.ReadAll(part)
	dir := string(target)

	file, err := reader.NextPart()
	if err != nil || file.FormName() != "files[]" {
		s.record(Request{Op: "upload", Path: dir})
		http.Error(w, "missing files[] part", http.StatusBadRequest)
		return
	}
	name := file.FileName()

	if !s.intercept(w, req, "upload", dir) {
		s.record(Request{Op: "upload", Path: dir, Name: name})
		return
	}

	if ok, _ := afero.DirExists(s.Fs, dir); !ok {
		s.record(Request{Op: "upload", Path: dir, Name: name})
		http.Error(w, "target directory not found", http.StatusNotFound)
		return
	}

	dst, err := s.Fs.Create(path.Join(dir, name))
	if err != nil {
		s.record(Request{Op: "upload", Path: dir, Name: name})
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	n, err := io.Copy(dst, file)
	dst.Close()
	s.record(Request{Op: "upload", Path: dir, Name: name, Size: n})
	if err != nil {
		_ = s.Fs.Remove(path.Join(dir, name))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sendOK(w)
}

func (s *Server) handleMove(w http.ResponseWriter, req *http.Request) {
	oldPath := req.PostFormValue("oldPath")
	newPath := req.PostFormValue("newPath")
	s.record(Request{Op: "move", Path: oldPath, NewPath: newPath})
	if !s.intercept(w, req, "move", oldPath) {
		return
	}

	if ok, _ := afero.Exists(s.Fs, oldPath); !ok {
		http.Error(w, "source not found", http.StatusNotFound)
		return
	}
	if ok, _ := afero.Exists(s.Fs, newPath); ok {
		http.Error(w, "destination already exists", http.StatusConflict)
		return
	}
	if err := s.Fs.Rename(path.Clean(oldPath), path.Clean(newPath)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	sendOK(w)
}

func (s *Server) handleDelete(w http.ResponseWriter, req *http.Request) {
	p := req.PostFormValue("path")
	s.record(Request{Op: "delete", Path: p})
	if !s.intercept(w, req, "delete", p) {
		return
	}

	if ok, _ := afero.Exists(s.Fs, p); !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if err := s.Fs.RemoveAll(path.Clean(p)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	sendOK(w)
}

func (s *Server) handleCreate(w http.ResponseWriter, req *http.Request) {
	p := req.PostFormValue("path")
	s.record(Request{Op: "create", Path: p})
	if !s.intercept(w, req, "create", p) {
		return
	}

	if ok, _ := afero.Exists(s.Fs, p); ok {
		http.Error(w, "already exists", http.StatusConflict)
		return
	}
	if ok, _ := afero.DirExists(s.Fs, path.Dir(path.Clean(p))); !ok {
		http.Error(w, "parent not found", http.StatusNotFound)
		return
	}
	if err := s.Fs.Mkdir(path.Clean(p), 0755); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	sendOK(w)
}

func (s *Server) handleDownload(w http.ResponseWriter, req *http.Request) {
	p := req.URL.Query().Get("path")
	s.record(Request{Op: "download", Path: p})
	if !s.intercept(w, req, "download", p) {
		return
	}

	f, err := s.Fs.Open(p)
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.Error(w, "not a file", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+info.Name()+`"`)
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, f)
}
