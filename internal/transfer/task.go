// Package transfer runs the upload queue: files dropped or selected by the user
// are uploaded strictly one at a time, in enqueue order, each abortable.
package transfer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rescale/webup/internal/constants"
)

// TaskState represents the current state of an upload task.
type TaskState string

const (
	TaskQueued    TaskState = "queued"    // Waiting for the uploader to become free
	TaskUploading TaskState = "uploading" // Bytes are being sent
	TaskCompleted TaskState = "completed" // Server accepted the file
	TaskFailed    TaskState = "failed"    // Transport or server error
	TaskAborted   TaskState = "aborted"   // Cancelled by the user
)

// IsTerminal reports whether no further transition is possible
func (s TaskState) IsTerminal() bool {
	return s == TaskCompleted || s == TaskFailed || s == TaskAborted
}

// Source is a file to upload. Its content is opened only when the task starts.
type Source struct {
	Name string
	Size int64 // 0 when unknown
	Path string // local path, empty for reader sources

	open func() (io.ReadCloser, error)
}

// FileSource describes the local regular file at path
func FileSource(path string) (Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Source{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return Source{}, fmt.Errorf("%s is not a regular file", path)
	}
	return Source{Name: filepath.Base(path), Size: info.Size(), Path: path}, nil
}

// ReaderSource describes content produced by open, e.g. a pipe or an in-memory
// buffer.
func ReaderSource(name string, size int64, open func() (io.ReadCloser, error)) Source {
	return Source{Name: name, Size: size, open: open}
}

// Open returns the content of the source
func (s Source) Open() (io.ReadCloser, error) {
	if s.open != nil {
		return s.open()
	}
	if s.Path == "" {
		return nil, fmt.Errorf("source %q has no content", s.Name)
	}
	return os.Open(s.Path)
}

// UploadTask is one file in the upload queue.
// Thread-safe: use the provided methods to read state.
type UploadTask struct {
	ID     string // Unique task ID
	Name   string // File name sent to the server
	Target string // Remote directory, bound at enqueue time
	Size   int64  // Source size in bytes, 0 when unknown

	source Source

	state     TaskState
	progress  float64 // 0.0 to 1.0
	bytesSent int64
	speed     float64 // bytes/sec (smoothed with EMA)
	err       error

	// Speed calculation internals (for EMA smoothing)
	lastBytes      int64
	lastUpdateTime time.Time
	lastPublish    time.Time

	CreatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time

	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
}

// NewUploadTask creates a queued task uploading src into target
func NewUploadTask(src Source, target string) *UploadTask {
	ctx, cancel := context.WithCancel(context.Background())
	return &UploadTask{
		ID:        uuid.NewString(),
		Name:      src.Name,
		Target:    target,
		Size:      src.Size,
		source:    src,
		state:     TaskQueued,
		CreatedAt: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// GetState returns the current state (thread-safe).
func (t *UploadTask) GetState() TaskState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// GetProgress returns current progress (thread-safe).
func (t *UploadTask) GetProgress() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.progress
}

// GetBytesSent returns the bytes handed to the transport so far
func (t *UploadTask) GetBytesSent() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.bytesSent
}

// GetSpeed returns current transfer speed in bytes/sec (thread-safe).
func (t *UploadTask) GetSpeed() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.speed
}

// GetError returns the failure cause, nil unless Failed
func (t *UploadTask) GetError() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.err
}

// Context is cancelled when the task is aborted
func (t *UploadTask) Context() context.Context {
	return t.ctx
}

// IsTerminal returns true if the task is completed, failed or aborted.
func (t *UploadTask) IsTerminal() bool {
	return t.GetState().IsTerminal()
}

// start moves Queued -> Uploading. Returns false if the task was aborted first.
func (t *UploadTask) start() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != TaskQueued {
		return false
	}
	t.state = TaskUploading
	t.StartedAt = time.Now()
	t.lastUpdateTime = t.StartedAt
	return true
}

// finish moves Uploading -> Completed or Failed. Returns false if the task is
// no longer uploading (aborted meanwhile).
func (t *UploadTask) finish(err error) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != TaskUploading {
		return false
	}
	if err != nil {
		t.state = TaskFailed
		t.err = err
	} else {
		t.state = TaskCompleted
		t.progress = 1.0
	}
	t.CompletedAt = time.Now()
	t.cancel()
	return true
}

// abort moves Queued or Uploading -> Aborted and cancels the task context so an
// in-flight request is torn down. Returns the state it left, or "" when the
// task was already terminal.
func (t *UploadTask) abort() TaskState {
	t.mu.Lock()
	defer t.mu.Unlock()
	prev := t.state
	if prev.IsTerminal() {
		return ""
	}
	t.state = TaskAborted
	t.CompletedAt = time.Now()
	t.cancel()
	return prev
}

// updateBytes records cumulative bytes sent and recalculates speed using EMA.
// live is false once the task has left Uploading, and nothing is recorded
// then. due is true when a progress event should be published.
func (t *UploadTask) updateBytes(sent int64) (live, due bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != TaskUploading {
		return false, false
	}

	now := time.Now()
	t.bytesSent = sent
	if t.Size > 0 {
		t.progress = float64(sent) / float64(t.Size)
		if t.progress > 1 {
			t.progress = 1
		}
	}

	// Need at least 100ms between samples for a meaningful rate
	elapsed := now.Sub(t.lastUpdateTime).Seconds()
	if sent > t.lastBytes && elapsed > 0.1 {
		instantRate := float64(sent-t.lastBytes) / elapsed
		if t.speed > 0 {
			t.speed = constants.SpeedSmoothingAlpha*instantRate + (1-constants.SpeedSmoothingAlpha)*t.speed
		} else {
			t.speed = instantRate
		}
		t.lastBytes = sent
		t.lastUpdateTime = now
	}

	if now.Sub(t.lastPublish) < constants.ProgressUpdateInterval {
		return true, false
	}
	t.lastPublish = now
	return true, true
}

// TaskInfo is a point-in-time copy of a task for rendering
type TaskInfo struct {
	ID          string
	Name        string
	Target      string
	Size        int64
	State       TaskState
	Progress    float64
	BytesSent   int64
	Speed       float64
	Error       error
	CreatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time
}

// Snapshot returns a copy of the task's current state
func (t *UploadTask) Snapshot() TaskInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return TaskInfo{
		ID:          t.ID,
		Name:        t.Name,
		Target:      t.Target,
		Size:        t.Size,
		State:       t.state,
		Progress:    t.progress,
		BytesSent:   t.bytesSent,
		Speed:       t.speed,
		Error:       t.err,
		CreatedAt:   t.CreatedAt,
		StartedAt:   t.StartedAt,
		CompletedAt: t.CompletedAt,
	}
}
