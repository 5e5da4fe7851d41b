package watch

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounce coalesces bursts of events on the same path into one callback,
// fired once the path has been quiet for the configured duration.
type debounce struct {
	duration time.Duration

	evs   map[string]*time.Timer
	evsMu sync.Mutex
}

func newDebounce(duration time.Duration) *debounce {
	return &debounce{
		duration: duration,
		evs:      map[string]*time.Timer{},
	}
}

func (d *debounce) add(event fsnotify.Event, fn func(fsnotify.Event)) {
	d.evsMu.Lock()
	defer d.evsMu.Unlock()
	event.Name = filepath.Clean(event.Name)

	if timer, ok := d.evs[event.Name]; ok {
		timer.Reset(d.duration)
		return
	}

	d.evs[event.Name] = time.AfterFunc(d.duration, func() {
		d.evsMu.Lock()
		delete(d.evs, event.Name)
		d.evsMu.Unlock()

		fn(event)
	})
}

// stop cancels pending callbacks
func (d *debounce) stop() {
	d.evsMu.Lock()
	defer d.evsMu.Unlock()
	for name, timer := range d.evs {
		timer.Stop()
		delete(d.evs, name)
	}
}

// pending returns the number of paths waiting to fire
func (d *debounce) pending() int {
	d.evsMu.Lock()
	defer d.evsMu.Unlock()
	return len(d.evs)
}

func isOp(orig, compareTo fsnotify.Op) bool {
	return orig&compareTo == compareTo
}
