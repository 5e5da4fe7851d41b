package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rescale/webup/internal/alerts"
	"github.com/rescale/webup/internal/api"
	"github.com/rescale/webup/internal/events"
	"github.com/rescale/webup/internal/logging"
	"github.com/rescale/webup/internal/metrics"
	"github.com/rescale/webup/internal/pathutil"
)

// ErrTaskNotFound is returned for task IDs the queue has never seen
var ErrTaskNotFound = errors.New("task not found")

// Uploader sends one file to the server. *api.Client satisfies it.
type Uploader interface {
	Upload(ctx context.Context, targetDir, name string, src io.Reader, progress api.ProgressFunc) error
}

// Refresher re-lists the directory currently shown to the user.
// *browser.Engine satisfies it.
type Refresher interface {
	RefreshCurrent(ctx context.Context) error
}

// Options configures a Queue. Zero values are usable; a nil Refresher skips
// the refresh after each completed upload.
type Options struct {
	EventBus  *events.EventBus
	Logger    *logging.Logger
	Alerts    alerts.Raiser
	Refresher Refresher
}

// Stats holds counts for the current batch.
type Stats struct {
	Queued     int
	Uploading  int
	Completed  int
	Failed     int
	Aborted    int
	TotalBytes int64
	SentBytes  int64
}

// Pending returns the number of tasks not yet terminal
func (s Stats) Pending() int {
	return s.Queued + s.Uploading
}

// batch aggregates progress from the moment the queue leaves empty until it
// drains again. Sizes of failed and aborted tasks leave the total.
type batch struct {
	total     int64
	done      int64 // bytes of completed tasks
	current   int64 // bytes sent by the uploading task
	completed int
	failed    int
	aborted   int
	pending   int
}

func (b *batch) progress() float64 {
	if b.total <= 0 {
		return 0
	}
	p := float64(b.done+b.current) / float64(b.total)
	if p > 1 {
		return 1
	}
	return p
}

// Queue is the upload queue. A single scheduler goroutine starts the oldest
// queued task whenever nothing is uploading, so at most one task is in the
// Uploading state at any time.
type Queue struct {
	uploader  Uploader
	refresher Refresher
	alerts    alerts.Raiser
	eventBus  *events.EventBus
	logger    *logging.Logger

	mu        sync.RWMutex
	visible   []*UploadTask          // Non-removed tasks in enqueue order
	tasksByID map[string]*UploadTask // Every task ever enqueued
	batch     batch
	idle      chan struct{} // Closed while the queue is drained

	wake   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewQueue creates a queue and starts its scheduler. Call Close to stop it.
func NewQueue(uploader Uploader, opts Options) *Queue {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	idle := make(chan struct{})
	close(idle)

	q := &Queue{
		uploader:  uploader,
		refresher: opts.Refresher,
		alerts:    opts.Alerts,
		eventBus:  opts.EventBus,
		logger:    logger,
		tasksByID: make(map[string]*UploadTask),
		idle:      idle,
		wake:      make(chan struct{}, 1),
		ctx:       ctx,
		cancel:    cancel,
	}

	q.wg.Add(1)
	go q.run()
	return q
}

// Enqueue appends one task per source, all bound to target. The scheduler
// picks them up in order.
func (q *Queue) Enqueue(files []Source, target string) []*UploadTask {
	if len(files) == 0 {
		return nil
	}
	target = pathutil.Clean(target)

	tasks := make([]*UploadTask, 0, len(files))
	for _, src := range files {
		tasks = append(tasks, NewUploadTask(src, target))
	}

	q.mu.Lock()
	startsBatch := q.batch.pending == 0
	if startsBatch {
		q.batch = batch{}
		q.idle = make(chan struct{})
	}
	for _, task := range tasks {
		q.visible = append(q.visible, task)
		q.tasksByID[task.ID] = task
		q.batch.total += task.Size
		q.batch.pending++
	}
	b := q.batch
	q.mu.Unlock()

	metrics.SetQueueDepth(b.pending)
	for _, task := range tasks {
		q.logger.Debug().Str("task", task.ID).Str("name", task.Name).Str("target", target).Msg("Upload queued")
		q.publishTask(events.EventTaskQueued, task)
	}
	if startsBatch {
		q.publishBatch(events.EventBatchStarted, b)
	} else {
		q.publishBatch(events.EventBatchProgress, b)
	}

	q.signal()
	return tasks
}

// Abort stops a queued or uploading task. Aborting a finished task does
// nothing. Aborts never raise alerts.
func (q *Queue) Abort(taskID string) error {
	q.mu.RLock()
	task, ok := q.tasksByID[taskID]
	q.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}

	prev := task.abort()
	if prev == "" {
		return nil
	}

	q.logger.Info().Str("task", task.ID).Str("name", task.Name).Msg("Upload aborted")
	metrics.RecordUpload(string(TaskAborted), 0)
	q.publishTask(events.EventTaskAborted, task)

	// The scheduler owns uploading tasks and removes them once the transfer
	// has unwound.
	if prev == TaskQueued {
		q.finalize(task)
	}
	return nil
}

// AbortAll aborts every task that has not finished. Tasks are aborted newest
// first so the scheduler cannot start a queued task while the uploading one
// unwinds.
func (q *Queue) AbortAll() {
	q.mu.RLock()
	ids := make([]string, 0, len(q.visible))
	for i := len(q.visible) - 1; i >= 0; i-- {
		ids = append(ids, q.visible[i].ID)
	}
	q.mu.RUnlock()

	for _, id := range ids {
		_ = q.Abort(id)
	}
}

// Wait blocks until the queue has drained or ctx is done.
func (q *Queue) Wait(ctx context.Context) error {
	q.mu.RLock()
	idle := q.idle
	q.mu.RUnlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Tasks returns a copy of the visible queue in enqueue order.
func (q *Queue) Tasks() []TaskInfo {
	q.mu.RLock()
	defer q.mu.RUnlock()

	result := make([]TaskInfo, len(q.visible))
	for i, task := range q.visible {
		result[i] = task.Snapshot()
	}
	return result
}

// Task returns a copy of any task the queue has seen, including removed ones.
func (q *Queue) Task(taskID string) (TaskInfo, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	task, ok := q.tasksByID[taskID]
	if !ok {
		return TaskInfo{}, false
	}
	return task.Snapshot(), true
}

// Stats returns counts and byte totals for the current batch.
func (q *Queue) Stats() Stats {
	q.mu.RLock()
	defer q.mu.RUnlock()

	stats := Stats{
		Completed:  q.batch.completed,
		Failed:     q.batch.failed,
		Aborted:    q.batch.aborted,
		TotalBytes: q.batch.total,
		SentBytes:  q.batch.done + q.batch.current,
	}
	for _, task := range q.visible {
		switch task.GetState() {
		case TaskQueued:
			stats.Queued++
		case TaskUploading:
			stats.Uploading++
		}
	}
	return stats
}

// Close aborts outstanding tasks and stops the scheduler.
func (q *Queue) Close() {
	q.AbortAll()
	q.cancel()
	q.wg.Wait()
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// run is the scheduler loop
func (q *Queue) run() {
	defer q.wg.Done()
	for {
		task := q.next()
		if task == nil {
			select {
			case <-q.wake:
				continue
			case <-q.ctx.Done():
				return
			}
		}
		q.execute(task)
	}
}

// next returns the oldest queued task, or nil
func (q *Queue) next() *UploadTask {
	q.mu.RLock()
	defer q.mu.RUnlock()
	for _, task := range q.visible {
		if task.GetState() == TaskQueued {
			return task
		}
	}
	return nil
}

// execute runs one task to a terminal state and dispatches its side effect
// before returning, so the next task never starts early.
func (q *Queue) execute(task *UploadTask) {
	if !task.start() {
		return
	}
	q.logger.Info().Str("task", task.ID).Str("name", task.Name).Str("target", task.Target).Msg("Upload started")
	q.publishTask(events.EventTaskStarted, task)

	err := q.upload(task)

	if !task.finish(err) {
		// Aborted while uploading
		q.finalize(task)
		return
	}

	if err != nil {
		q.logger.Error().Err(err).Str("task", task.ID).Str("name", task.Name).Msg("Upload failed")
		metrics.RecordUpload(string(TaskFailed), 0)
		q.publishTask(events.EventTaskFailed, task)
		if q.alerts != nil {
			q.alerts.Raise(alerts.SeverityDanger,
				fmt.Sprintf("Failed uploading %q to %q", task.Name, task.Target),
				err.Error())
		}
		q.finalize(task)
		return
	}

	q.logger.Info().Str("task", task.ID).Str("name", task.Name).Int64("bytes", task.GetBytesSent()).Msg("Upload completed")
	metrics.RecordUpload(string(TaskCompleted), task.GetBytesSent())
	q.publishTask(events.EventTaskCompleted, task)

	if q.refresher != nil {
		if err := q.refresher.RefreshCurrent(q.ctx); err != nil {
			q.logger.Debug().Err(err).Msg("Refresh after upload failed")
		}
	}
	q.finalize(task)
}

func (q *Queue) upload(task *UploadTask) error {
	rc, err := task.source.Open()
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", task.Name, err)
	}
	defer rc.Close()

	return q.uploader.Upload(task.Context(), task.Target, task.Name, rc, func(sent int64) {
		live, due := task.updateBytes(sent)
		if !live {
			return
		}

		q.mu.Lock()
		q.batch.current = sent
		b := q.batch
		q.mu.Unlock()

		if due {
			q.publishTask(events.EventTaskProgress, task)
			q.publishBatch(events.EventBatchProgress, b)
		}
	})
}

// finalize removes a terminal task from the visible queue and settles the
// batch accounting.
func (q *Queue) finalize(task *UploadTask) {
	info := task.Snapshot()

	q.mu.Lock()
	for i, t := range q.visible {
		if t == task {
			q.visible = append(q.visible[:i], q.visible[i+1:]...)
			break
		}
	}
	q.batch.pending--
	switch info.State {
	case TaskCompleted:
		q.batch.completed++
		q.batch.done += info.BytesSent
		// Unknown-size sources count once they are known
		if info.Size <= 0 {
			q.batch.total += info.BytesSent
		}
	case TaskFailed:
		q.batch.failed++
		q.batch.total -= info.Size
	case TaskAborted:
		q.batch.aborted++
		q.batch.total -= info.Size
	}
	if !info.StartedAt.IsZero() {
		q.batch.current = 0
	}
	b := q.batch
	drained := b.pending == 0
	idle := q.idle
	q.mu.Unlock()

	metrics.SetQueueDepth(b.pending)
	q.publishTask(events.EventTaskRemoved, task)
	q.publishBatch(events.EventBatchProgress, b)
	if drained {
		q.logger.Debug().
			Int("completed", b.completed).
			Int("failed", b.failed).
			Int("aborted", b.aborted).
			Msg("Upload queue drained")
		q.publishBatch(events.EventBatchDrained, b)
		// Waiters wake after the drained event is on the bus
		close(idle)
	}
}

func (q *Queue) publishTask(eventType events.EventType, task *UploadTask) {
	if q.eventBus == nil {
		return
	}
	info := task.Snapshot()
	q.eventBus.PublishTask(eventType, events.TaskEvent{
		TaskID:    info.ID,
		Name:      info.Name,
		Target:    info.Target,
		Size:      info.Size,
		BytesSent: info.BytesSent,
		Progress:  info.Progress,
		Speed:     info.Speed,
		Error:     info.Error,
	})
}

func (q *Queue) publishBatch(eventType events.EventType, b batch) {
	if q.eventBus == nil {
		return
	}
	q.eventBus.PublishBatch(eventType, events.BatchEvent{
		TotalBytes: b.total,
		SentBytes:  b.done + b.current,
		Progress:   b.progress(),
		Pending:    b.pending,
		Completed:  b.completed,
		Failed:     b.failed,
		Aborted:    b.aborted,
	})
}
