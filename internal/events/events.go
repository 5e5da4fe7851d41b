package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rescale/webup/internal/constants"
	"github.com/rescale/webup/internal/models"
)

// EventType defines the types of events that can be emitted
type EventType string

const (
	// Listing events, published by the listing state
	EventListingChanged  EventType = "listing_changed"  // New authoritative listing applied
	EventListingLoading  EventType = "listing_loading"  // Fetch issued / finished
	EventListingError    EventType = "listing_error"    // Fetch failed, stale listing kept
	EventLocationChanged EventType = "location_changed" // CurrentLocation moved, breadcrumbs rebuilt

	// Upload queue events
	EventTaskQueued    EventType = "task_queued"    // Task appended to the visible queue
	EventTaskStarted   EventType = "task_started"   // Queued -> Uploading
	EventTaskProgress  EventType = "task_progress"  // Bytes sent update
	EventTaskCompleted EventType = "task_completed" // Uploading -> Completed
	EventTaskFailed    EventType = "task_failed"    // Uploading -> Failed
	EventTaskAborted   EventType = "task_aborted"   // Queued/Uploading -> Aborted
	EventTaskRemoved   EventType = "task_removed"   // Terminal task left the visible queue

	// Whole-batch progress
	EventBatchStarted  EventType = "batch_started"
	EventBatchProgress EventType = "batch_progress"
	EventBatchDrained  EventType = "batch_drained"

	EventAlertRaised EventType = "alert_raised"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common event fields
type BaseEvent struct {
	EventType EventType
	Time      time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.Time }

// ListingEvent carries a listing snapshot. Entries is a copy owned by the receiver.
type ListingEvent struct {
	BaseEvent
	Path    string
	Entries []models.DirectoryEntry
	Loading bool
	Error   error
}

// LocationEvent is published when the current location changes
type LocationEvent struct {
	BaseEvent
	OldPath     string
	NewPath     string
	Breadcrumbs []models.Breadcrumb
}

// TaskEvent represents upload queue task transitions and progress
type TaskEvent struct {
	BaseEvent
	TaskID    string
	Name      string  // Display name (filename)
	Target    string  // Remote directory bound at enqueue
	Size      int64   // File size in bytes, 0 when unknown
	BytesSent int64   // Bytes handed to the transport
	Progress  float64 // 0.0 to 1.0
	Speed     float64 // bytes/sec
	Error     error   // Error if failed
}

// BatchEvent represents whole-batch progress across the visible queue
type BatchEvent struct {
	BaseEvent
	TotalBytes int64
	SentBytes  int64
	Progress   float64 // 0.0 to 1.0
	Pending    int     // Tasks not yet terminal
	Completed  int
	Failed     int
	Aborted    int
}

// AlertEvent mirrors an alert raised on the sink
type AlertEvent struct {
	BaseEvent
	Severity    string
	Title       string
	Description string
}

// EventBus manages event subscriptions and publishing
type EventBus struct {
	subscribers   map[EventType][]chan Event
	all           []chan Event // Subscribers to all events
	mu            sync.RWMutex
	bufferSize    int
	closed        bool
	droppedEvents atomic.Int64 // Count of dropped events due to full buffers
}

// NewEventBus creates a new event bus with specified buffer size
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = constants.EventBusDefaultBuffer
	}
	if bufferSize > constants.EventBusMaxBuffer {
		bufferSize = constants.EventBusMaxBuffer
	}
	return &EventBus{
		subscribers: make(map[EventType][]chan Event),
		all:         make([]chan Event, 0),
		bufferSize:  bufferSize,
	}
}

// Subscribe creates a subscription to a specific event type
func (eb *EventBus) Subscribe(eventType EventType) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.subscribers[eventType] = append(eb.subscribers[eventType], ch)
	return ch
}

// SubscribeAll creates a subscription to all events
func (eb *EventBus) SubscribeAll() <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.all = append(eb.all, ch)
	return ch
}

// Publish sends an event to all subscribers. Never blocks: when a subscriber's
// buffer is full the event is dropped for that subscriber and counted.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}

	for _, ch := range eb.subscribers[event.Type()] {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}

	for _, ch := range eb.all {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}
}

// Close shuts down the event bus and closes all channels
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	eb.closed = true

	for _, channels := range eb.subscribers {
		for _, ch := range channels {
			close(ch)
		}
	}

	for _, ch := range eb.all {
		close(ch)
	}
}

// PublishTask is a convenience method for publishing task events
func (eb *EventBus) PublishTask(eventType EventType, ev TaskEvent) {
	ev.BaseEvent = BaseEvent{EventType: eventType, Time: time.Now()}
	eb.Publish(&ev)
}

// PublishBatch is a convenience method for publishing batch events
func (eb *EventBus) PublishBatch(eventType EventType, ev BatchEvent) {
	ev.BaseEvent = BaseEvent{EventType: eventType, Time: time.Now()}
	eb.Publish(&ev)
}

// PublishAlert is a convenience method for publishing alert events
func (eb *EventBus) PublishAlert(severity, title, description string) {
	eb.Publish(&AlertEvent{
		BaseEvent: BaseEvent{
			EventType: EventAlertRaised,
			Time:      time.Now(),
		},
		Severity:    severity,
		Title:       title,
		Description: description,
	})
}

// Unsubscribe removes a subscription channel from a specific event type.
// The channel is not closed; the caller stops reading from it.
func (eb *EventBus) Unsubscribe(eventType EventType, ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	subscribers := eb.subscribers[eventType]
	for i, subCh := range subscribers {
		if subCh == ch {
			subscribers[i] = subscribers[len(subscribers)-1]
			eb.subscribers[eventType] = subscribers[:len(subscribers)-1]
			break
		}
	}
}

// UnsubscribeAll removes a subscription channel from all event types
func (eb *EventBus) UnsubscribeAll(ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	for eventType, subscribers := range eb.subscribers {
		for i, subCh := range subscribers {
			if subCh == ch {
				subscribers[i] = subscribers[len(subscribers)-1]
				eb.subscribers[eventType] = subscribers[:len(subscribers)-1]
				break
			}
		}
	}

	for i, subCh := range eb.all {
		if subCh == ch {
			eb.all[i] = eb.all[len(eb.all)-1]
			eb.all = eb.all[:len(eb.all)-1]
			break
		}
	}
}

// GetDroppedEventCount returns the total number of events dropped due to full buffers
func (eb *EventBus) GetDroppedEventCount() int64 {
	return eb.droppedEvents.Load()
}
