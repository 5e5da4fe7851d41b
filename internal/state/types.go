// Package state provides observable state containers for webup.
// These containers emit events when state changes, allowing any front-end
// (one-shot commands, the interactive shell) to subscribe and redraw.
package state

import (
	"time"

	"github.com/rescale/webup/internal/events"
	"github.com/rescale/webup/internal/models"
)

// Sort keys accepted by ListingState.SetSort
const (
	SortByName = "name"
	SortBySize = "size"
	SortByDate = "date"
)

// NewListingChangedEvent creates a listing_changed event.
func NewListingChangedEvent(path string, entries []models.DirectoryEntry) *events.ListingEvent {
	return &events.ListingEvent{
		BaseEvent: events.BaseEvent{
			EventType: events.EventListingChanged,
			Time:      time.Now(),
		},
		Path:    path,
		Entries: entries,
	}
}

// NewListingLoadingEvent creates a listing_loading event.
func NewListingLoadingEvent(path string, loading bool) *events.ListingEvent {
	return &events.ListingEvent{
		BaseEvent: events.BaseEvent{
			EventType: events.EventListingLoading,
			Time:      time.Now(),
		},
		Path:    path,
		Loading: loading,
	}
}

// NewListingErrorEvent creates a listing_error event.
func NewListingErrorEvent(path string, err error) *events.ListingEvent {
	return &events.ListingEvent{
		BaseEvent: events.BaseEvent{
			EventType: events.EventListingError,
			Time:      time.Now(),
		},
		Path:  path,
		Error: err,
	}
}

// NewLocationChangedEvent creates a location_changed event.
func NewLocationChangedEvent(oldPath, newPath string, crumbs []models.Breadcrumb) *events.LocationEvent {
	return &events.LocationEvent{
		BaseEvent: events.BaseEvent{
			EventType: events.EventLocationChanged,
			Time:      time.Now(),
		},
		OldPath:     oldPath,
		NewPath:     newPath,
		Breadcrumbs: crumbs,
	}
}
