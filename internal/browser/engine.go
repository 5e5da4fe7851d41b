// Package browser keeps the displayed remote directory consistent with the
// server across concurrent navigation and mutations.
//
// Every mutation is followed by exactly one re-list of the current location;
// the cache is never patched locally. Listing responses carry the sequence
// number they were issued with and a response older than the last settled one
// is dropped.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rescale/webup/internal/alerts"
	"github.com/rescale/webup/internal/events"
	"github.com/rescale/webup/internal/logging"
	"github.com/rescale/webup/internal/metrics"
	"github.com/rescale/webup/internal/models"
	"github.com/rescale/webup/internal/pathutil"
	"github.com/rescale/webup/internal/state"
)

// Lister fetches directory listings
type Lister interface {
	List(ctx context.Context, path string) ([]models.DirectoryEntry, error)
}

// Mutator applies changes on the server
type Mutator interface {
	Move(ctx context.Context, oldPath, newPath string) error
	Delete(ctx context.Context, path string) error
	Create(ctx context.Context, path string) error
}

// Transport is everything the engine needs from the server. *api.Client
// satisfies it.
type Transport interface {
	Lister
	Mutator
}

// Engine is the directory sync engine. Safe for concurrent use.
type Engine struct {
	transport Transport
	listing   *state.ListingState
	alerts    alerts.Raiser
	logger    *logging.Logger

	// seqMu orders listing responses. issued is the last sequence number
	// handed out, settled the highest one whose response has been processed
	// and shown the one whose listing is on display.
	seqMu   sync.Mutex
	issued  uint64
	settled uint64
	shown   uint64
}

// Options configures an Engine. Zero values are usable.
type Options struct {
	EventBus  *events.EventBus
	Logger    *logging.Logger
	RootLabel string
}

// NewEngine creates an engine positioned at the root. Nothing is fetched until
// the first Refresh.
func NewEngine(transport Transport, sink alerts.Raiser, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	return &Engine{
		transport: transport,
		listing:   state.NewListingState(opts.EventBus, opts.RootLabel),
		alerts:    sink,
		logger:    logger,
	}
}

// Refresh lists path and, on success, makes it the current location. On
// failure an alert is raised and the current location and listing are kept.
func (e *Engine) Refresh(ctx context.Context, path string) error {
	seq, path := e.issue(path)
	entries, err := e.transport.List(ctx, path)
	return e.settle(seq, path, entries, err)
}

// RefreshAsync issues the listing request now and completes it in the
// background. The returned channel yields the outcome once and is closed.
func (e *Engine) RefreshAsync(ctx context.Context, path string) <-chan error {
	seq, path := e.issue(path)
	done := make(chan error, 1)
	go func() {
		defer close(done)
		entries, err := e.transport.List(ctx, path)
		done <- e.settle(seq, path, entries, err)
	}()
	return done
}

// Navigate moves to path
func (e *Engine) Navigate(ctx context.Context, path string) error {
	return e.Refresh(ctx, path)
}

// Reload re-lists the current location
func (e *Engine) Reload(ctx context.Context) error {
	return e.Refresh(ctx, e.Location())
}

// RefreshCurrent re-lists the current location; used by the upload queue
// after a completed upload.
func (e *Engine) RefreshCurrent(ctx context.Context) error {
	return e.Reload(ctx)
}

// Open navigates into a folder entry
func (e *Engine) Open(ctx context.Context, entry models.DirectoryEntry) error {
	if !entry.IsFolder() {
		return fmt.Errorf("%q is not a folder", entry.Name)
	}
	return e.Refresh(ctx, entry.Path)
}

// Up navigates to the parent of the current location
func (e *Engine) Up(ctx context.Context) error {
	return e.Refresh(ctx, pathutil.Parent(e.Location()))
}

// Rename moves entry to newName inside the current location, then re-lists.
// Renaming to the same name does nothing.
func (e *Engine) Rename(ctx context.Context, entry models.DirectoryEntry, newName string) error {
	if newName == entry.Name {
		return nil
	}

	location := e.Location()
	newPath := pathutil.Join(location, newName)
	if entry.IsFolder() {
		newPath = pathutil.JoinDir(location, newName)
	}
	title := fmt.Sprintf("Failed moving %q to %q", entry.Path, newPath)

	if err := pathutil.ValidateName(newName); err != nil {
		e.raise(title, err)
		return err
	}

	err := e.transport.Move(ctx, entry.Path, newPath)
	if err != nil {
		e.raise(title, err)
	}
	e.refreshAfterMutate(ctx, location)
	return err
}

// Delete removes entry, then re-lists
func (e *Engine) Delete(ctx context.Context, entry models.DirectoryEntry) error {
	location := e.Location()

	err := e.transport.Delete(ctx, entry.Path)
	if err != nil {
		e.raise(fmt.Sprintf("Failed deleting %q", entry.Path), err)
	}
	e.refreshAfterMutate(ctx, location)
	return err
}

// CreateFolder creates name inside the current location, then re-lists. An
// invalid name raises an alert without contacting the server.
func (e *Engine) CreateFolder(ctx context.Context, name string) error {
	location := e.Location()
	title := fmt.Sprintf("Failed creating folder %q in %q", name, location)

	if err := pathutil.ValidateName(name); err != nil {
		e.raise(title, err)
		return err
	}

	err := e.transport.Create(ctx, pathutil.Join(location, name))
	if err != nil {
		e.raise(title, err)
	}
	e.refreshAfterMutate(ctx, location)
	return err
}

// Location returns the current directory path
func (e *Engine) Location() string {
	return e.listing.Location()
}

// Entries returns the current listing
func (e *Engine) Entries() []models.DirectoryEntry {
	return e.listing.Entries()
}

// Breadcrumbs returns the trail for the current location
func (e *Engine) Breadcrumbs() []models.Breadcrumb {
	return e.listing.Breadcrumbs()
}

// Lookup finds an entry of the current listing by name
func (e *Engine) Lookup(name string) (models.DirectoryEntry, bool) {
	return e.listing.Lookup(name)
}

// Listing exposes the observable cache for renderers (sorting, loading flag)
func (e *Engine) Listing() *state.ListingState {
	return e.listing
}

// issue assigns the next sequence number. The number is taken at call time so
// that ordering follows the order the user acted in.
func (e *Engine) issue(path string) (uint64, string) {
	path = pathutil.Clean(path)

	e.seqMu.Lock()
	e.issued++
	seq := e.issued
	e.seqMu.Unlock()

	e.listing.SetLoading(path, true)
	return seq, path
}

// settle applies the outcome of listing request seq. A response older than
// one already processed is stale: it may still refresh the location on
// display, but never moves away from it. Failures change nothing when stale
// and are alerted either way.
func (e *Engine) settle(seq uint64, path string, entries []models.DirectoryEntry, err error) error {
	e.seqMu.Lock()
	stale := seq < e.settled
	if err != nil {
		if !stale {
			e.settled = seq
			e.listing.SetError(path, err)
		}
		e.seqMu.Unlock()
		e.raise(fmt.Sprintf("Failed retrieving contents of %q", path), err)
		return err
	}

	if stale && (path != e.listing.Location() || seq < e.shown) {
		settled := e.settled
		e.seqMu.Unlock()
		e.logger.Debug().
			Uint64("seq", seq).
			Uint64("settled", settled).
			Str("path", path).
			Msg("Discarding stale listing response")
		metrics.RecordStaleListing()
		return nil
	}
	if !stale {
		e.settled = seq
	}
	e.shown = seq

	moved := e.listing.Apply(path, entries)
	e.seqMu.Unlock()

	if moved {
		e.logger.Debugf("Location changed to %s", path)
	}
	return nil
}

// refreshAfterMutate re-lists location. Its failure has already been alerted
// by Refresh and does not replace the mutation's own outcome.
func (e *Engine) refreshAfterMutate(ctx context.Context, location string) {
	if err := e.Refresh(ctx, location); err != nil {
		e.logger.Debug().Err(err).Str("path", location).Msg("Refresh after mutation failed")
	}
}

// raise reports a failure. Cancellation is the user's own doing and is never
// alerted.
func (e *Engine) raise(title string, err error) {
	if e.alerts == nil || errors.Is(err, context.Canceled) {
		return
	}
	e.alerts.Raise(alerts.SeverityDanger, title, err.Error())
}
