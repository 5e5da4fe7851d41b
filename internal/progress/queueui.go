package progress

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/rescale/webup/internal/constants"
	"github.com/rescale/webup/internal/events"
)

// QueueUI renders the upload queue from event bus traffic. On a terminal each
// uploading task gets an mpb bar; otherwise one line is printed per transition.
type QueueUI struct {
	out        io.Writer
	bus        *events.EventBus
	progress   *mpb.Progress
	isTerminal bool

	bars map[string]*taskBar // task ID -> bar, owned by the loop goroutine

	sub  <-chan events.Event
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

type taskBar struct {
	bar        *mpb.Bar
	size       int64
	lastUpdate time.Time
}

// NewQueueUI creates a display writing to out. Call Start to begin consuming
// events and Stop to flush and release the terminal.
func NewQueueUI(out io.Writer, bus *events.EventBus) *QueueUI {
	return newQueueUI(out, bus, isTerminal(out))
}

// NewQueueLog creates a display that only prints lines, even on a terminal.
// The interactive shell uses it so bars never fight with the prompt.
func NewQueueLog(out io.Writer, bus *events.EventBus) *QueueUI {
	return newQueueUI(out, bus, false)
}

func newQueueUI(out io.Writer, bus *events.EventBus, bars bool) *QueueUI {
	u := &QueueUI{
		out:        out,
		bus:        bus,
		isTerminal: bars,
		bars:       make(map[string]*taskBar),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	if u.isTerminal {
		f := out.(*os.File)
		enableANSI(f)
		u.progress = mpb.New(
			mpb.WithOutput(f),
			mpb.WithRefreshRate(constants.ProgressBarRefreshRate),
			mpb.WithWidth(100),
		)
	}
	return u
}

// Start subscribes to the bus and renders until Stop.
func (u *QueueUI) Start() {
	u.sub = u.bus.SubscribeAll()
	go u.loop()
}

// Stop renders any buffered events, aborts bars still running and waits for
// the terminal to settle. Safe to call more than once.
func (u *QueueUI) Stop() {
	u.once.Do(func() {
		if u.sub == nil {
			close(u.done)
		} else {
			close(u.stop)
		}
		<-u.done
		if u.sub != nil {
			u.bus.UnsubscribeAll(u.sub)
		}
		for id, tb := range u.bars {
			tb.bar.Abort(true)
			delete(u.bars, id)
		}
		if u.progress != nil {
			u.progress.Wait()
		}
	})
}

// Writer returns a writer that prints above the bars.
func (u *QueueUI) Writer() io.Writer {
	if u.progress != nil {
		return u.progress
	}
	return u.out
}

// IsTerminal reports whether bars are being drawn.
func (u *QueueUI) IsTerminal() bool {
	return u.isTerminal
}

func (u *QueueUI) loop() {
	defer close(u.done)
	for {
		select {
		case ev, ok := <-u.sub:
			if !ok {
				return
			}
			u.handle(ev)
		case <-u.stop:
			for {
				select {
				case ev, ok := <-u.sub:
					if !ok {
						return
					}
					u.handle(ev)
				default:
					return
				}
			}
		}
	}
}

func (u *QueueUI) handle(ev events.Event) {
	switch e := ev.(type) {
	case *events.TaskEvent:
		u.handleTask(e)
	case *events.BatchEvent:
		u.handleBatch(e)
	case *events.AlertEvent:
		u.printf("! %s: %s\n", e.Title, e.Description)
	}
}

func (u *QueueUI) handleTask(e *events.TaskEvent) {
	switch e.Type() {
	case events.EventTaskStarted:
		if u.progress == nil {
			u.printf("Uploading %s (%s) → %s\n", e.Name, formatBytes(e.Size), e.Target)
			return
		}
		u.bars[e.TaskID] = &taskBar{
			bar:        u.newBar(e),
			size:       e.Size,
			lastUpdate: time.Now(),
		}

	case events.EventTaskProgress:
		tb, ok := u.bars[e.TaskID]
		if !ok {
			return
		}
		now := time.Now()
		tb.bar.EwmaSetCurrent(e.BytesSent, now.Sub(tb.lastUpdate))
		tb.lastUpdate = now

	case events.EventTaskCompleted:
		if tb, ok := u.bars[e.TaskID]; ok {
			tb.bar.SetCurrent(e.BytesSent)
			tb.bar.SetTotal(-1, true)
			delete(u.bars, e.TaskID)
		}
		u.printf("✓ %s → %s (%s)\n", e.Name, e.Target, formatBytes(e.BytesSent))

	case events.EventTaskFailed:
		if tb, ok := u.bars[e.TaskID]; ok {
			tb.bar.Abort(false)
			delete(u.bars, e.TaskID)
		}
		u.printf("✗ %s → %s: %v\n", e.Name, e.Target, e.Error)

	case events.EventTaskAborted:
		if tb, ok := u.bars[e.TaskID]; ok {
			tb.bar.Abort(true)
			delete(u.bars, e.TaskID)
		}
		u.printf("- %s → %s: aborted\n", e.Name, e.Target)
	}
}

func (u *QueueUI) handleBatch(e *events.BatchEvent) {
	if e.Type() != events.EventBatchDrained {
		return
	}
	u.printf("Uploads finished: %d completed, %d failed, %d aborted (%s)\n",
		e.Completed, e.Failed, e.Aborted, formatBytes(e.SentBytes))
}

func (u *QueueUI) newBar(e *events.TaskEvent) *mpb.Bar {
	label := fmt.Sprintf("%s (%.1f MiB) → %s", truncatePath(e.Name, 2), float64(e.Size)/(1024*1024), e.Target)
	return u.progress.New(e.Size,
		mpb.BarStyle().
			Lbound("[").
			Filler("█").
			Tip("█").
			Padding("░").
			Rbound("]"),
		mpb.PrependDecorators(
			decor.Name(label, decor.WCSyncSpaceR),
		),
		mpb.AppendDecorators(
			decor.CountersKibiByte("% .1f / % .1f", decor.WCSyncSpace),
			decor.Name("  "),
			decor.Percentage(decor.WCSyncSpace),
			decor.Name("  "),
			decor.EwmaSpeed(decor.SizeB1024(0), "% .1f", 30, decor.WCSyncSpace),
			decor.Name("  "),
			decor.Name("ETA ", decor.WCSyncWidth),
			decor.EwmaETA(decor.ET_STYLE_GO, 30),
		),
		mpb.BarRemoveOnComplete(),
	)
}

// printf writes through mpb when bars are active so lines land above them
func (u *QueueUI) printf(format string, args ...interface{}) {
	fmt.Fprintf(u.Writer(), format, args...)
}

// truncatePath keeps the last maxComponents components of a path.
// Example: truncatePath("/a/b/c/d/file.txt", 3) → "…/c/d/file.txt"
func truncatePath(path string, maxComponents int) string {
	parts := strings.Split(filepath.ToSlash(path), "/")
	if len(parts) <= maxComponents {
		return filepath.Base(path)
	}
	relevant := parts[len(parts)-maxComponents:]
	return "…/" + strings.Join(relevant, "/")
}
