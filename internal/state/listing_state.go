package state

import (
	"sort"
	"strings"
	"sync"

	"github.com/rescale/webup/internal/events"
	"github.com/rescale/webup/internal/models"
	"github.com/rescale/webup/internal/pathutil"
)

// ListingState is the observable cache of the displayed directory.
// It holds the current location, its breadcrumbs and the last authoritative
// listing, and publishes events on changes. Thread-safe for concurrent access.
//
// The sync engine is the only writer; everything else reads.
type ListingState struct {
	eventBus  *events.EventBus
	rootLabel string

	location    string
	breadcrumbs []models.Breadcrumb
	entries     []models.DirectoryEntry
	sortBy      string // "name", "size", "date"
	ascending   bool
	loading     bool
	lastError   error

	mu sync.RWMutex
}

// NewListingState creates a ListingState positioned at the root with an empty listing.
func NewListingState(eventBus *events.EventBus, rootLabel string) *ListingState {
	return &ListingState{
		eventBus:    eventBus,
		rootLabel:   rootLabel,
		location:    pathutil.Root,
		breadcrumbs: pathutil.Breadcrumbs(pathutil.Root, rootLabel),
		entries:     make([]models.DirectoryEntry, 0),
		sortBy:      SortByName,
		ascending:   true,
	}
}

// Apply installs a fresh listing for path. When path differs from the current
// location the location moves and breadcrumbs are rebuilt; breadcrumbs are left
// untouched otherwise. Returns whether the location changed.
func (s *ListingState) Apply(path string, entries []models.DirectoryEntry) bool {
	s.mu.Lock()
	oldPath := s.location
	moved := path != s.location
	if moved {
		s.location = path
		s.breadcrumbs = pathutil.Breadcrumbs(path, s.rootLabel)
	}
	s.entries = make([]models.DirectoryEntry, len(entries))
	copy(s.entries, entries)
	s.sortEntries()
	s.loading = false
	s.lastError = nil
	entriesCopy := s.copyEntriesLocked()
	crumbsCopy := s.copyBreadcrumbsLocked()
	s.mu.Unlock()

	if s.eventBus != nil {
		if moved {
			s.eventBus.Publish(NewLocationChangedEvent(oldPath, path, crumbsCopy))
		}
		s.eventBus.Publish(NewListingChangedEvent(path, entriesCopy))
	}
	return moved
}

// SetLoading marks the listing as loading and publishes an event.
func (s *ListingState) SetLoading(path string, loading bool) {
	s.mu.Lock()
	s.loading = loading
	s.mu.Unlock()

	if s.eventBus != nil {
		s.eventBus.Publish(NewListingLoadingEvent(path, loading))
	}
}

// IsLoading returns whether a listing fetch is in flight.
func (s *ListingState) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// SetError records a failed fetch for path. The location and the stale listing
// are kept.
func (s *ListingState) SetError(path string, err error) {
	s.mu.Lock()
	s.lastError = err
	s.loading = false
	s.mu.Unlock()

	if s.eventBus != nil && err != nil {
		s.eventBus.Publish(NewListingErrorEvent(path, err))
	}
}

// GetError returns the last fetch error, cleared by the next successful Apply.
func (s *ListingState) GetError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

// Location returns the current directory path.
func (s *ListingState) Location() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.location
}

// Breadcrumbs returns a copy of the trail for the current location.
func (s *ListingState) Breadcrumbs() []models.Breadcrumb {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyBreadcrumbsLocked()
}

// Entries returns a copy of the current listing.
func (s *ListingState) Entries() []models.DirectoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyEntriesLocked()
}

// Lookup finds an entry of the current listing by name.
func (s *ListingState) Lookup(name string) (models.DirectoryEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries {
		if e.Name == name {
			return e, true
		}
	}
	return models.DirectoryEntry{}, false
}

// Count returns the number of entries.
func (s *ListingState) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// SetSort updates the sort order and re-sorts the listing.
func (s *ListingState) SetSort(sortBy string, ascending bool) {
	s.mu.Lock()
	s.sortBy = sortBy
	s.ascending = ascending
	s.sortEntries()
	entriesCopy := s.copyEntriesLocked()
	path := s.location
	s.mu.Unlock()

	if s.eventBus != nil {
		s.eventBus.Publish(NewListingChangedEvent(path, entriesCopy))
	}
}

// GetSort returns the current sort settings.
func (s *ListingState) GetSort() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortBy, s.ascending
}

// sortEntries sorts by current settings (must hold lock). Folders always come first.
func (s *ListingState) sortEntries() {
	sort.SliceStable(s.entries, func(i, j int) bool {
		a, b := s.entries[i], s.entries[j]

		if a.IsFolder() != b.IsFolder() {
			return a.IsFolder()
		}

		var less bool
		switch s.sortBy {
		case SortBySize:
			less = a.Size < b.Size
		case SortByDate:
			less = a.ModTime.Before(b.ModTime)
		default:
			less = strings.ToLower(a.Name) < strings.ToLower(b.Name)
		}

		if s.ascending {
			return less
		}
		return !less
	})
}

func (s *ListingState) copyEntriesLocked() []models.DirectoryEntry {
	out := make([]models.DirectoryEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

func (s *ListingState) copyBreadcrumbsLocked() []models.Breadcrumb {
	out := make([]models.Breadcrumb, len(s.breadcrumbs))
	copy(out, s.breadcrumbs)
	return out
}
