// Package alerts is the user-visible failure sink: an append-only, most recent
// first list of dismissible messages.
package alerts

import (
	"fmt"
	"sync"
	"time"

	"github.com/rescale/webup/internal/events"
	"github.com/rescale/webup/internal/logging"
	"github.com/rescale/webup/internal/metrics"
)

// Severity of an alert
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityDanger  Severity = "danger"
)

// Alert is one message shown to the user
type Alert struct {
	Severity    Severity
	Title       string
	Description string
	Time        time.Time
}

// Notifier mirrors alerts outside the terminal (desktop notifications)
type Notifier interface {
	Notify(a Alert) error
}

// Raiser is the part of the sink the engine and queue depend on
type Raiser interface {
	Raise(severity Severity, title, description string)
}

// Sink holds raised alerts. Safe for concurrent use.
type Sink struct {
	mu     sync.RWMutex
	alerts []Alert // index 0 is the most recent

	logger   *logging.Logger
	eventBus *events.EventBus
	notifier Notifier
}

// NewSink creates an empty sink. Any of the collaborators may be nil.
func NewSink(logger *logging.Logger, eventBus *events.EventBus, notifier Notifier) *Sink {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Sink{
		logger:   logger,
		eventBus: eventBus,
		notifier: notifier,
	}
}

// Raise prepends a new alert
func (s *Sink) Raise(severity Severity, title, description string) {
	a := Alert{
		Severity:    severity,
		Title:       title,
		Description: description,
		Time:        time.Now(),
	}

	s.mu.Lock()
	s.alerts = append([]Alert{a}, s.alerts...)
	s.mu.Unlock()

	ev := s.logger.Info()
	if severity == SeverityDanger || severity == SeverityWarning {
		ev = s.logger.Warn()
	}
	ev.Str("severity", string(severity)).Str("description", description).Msg(title)

	metrics.RecordAlert(string(severity))

	if s.eventBus != nil {
		s.eventBus.PublishAlert(string(severity), title, description)
	}
	if s.notifier != nil {
		if err := s.notifier.Notify(a); err != nil {
			s.logger.Debugf("desktop notification failed: %v", err)
		}
	}
}

// List returns the alerts, most recent first
func (s *Sink) List() []Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Alert, len(s.alerts))
	copy(out, s.alerts)
	return out
}

// Dismiss removes the alert at display index i (0 = most recent)
func (s *Sink) Dismiss(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.alerts) {
		return fmt.Errorf("no alert at index %d", i)
	}
	s.alerts = append(s.alerts[:i], s.alerts[i+1:]...)
	return nil
}

// Clear removes every alert
func (s *Sink) Clear() {
	s.mu.Lock()
	s.alerts = nil
	s.mu.Unlock()
}

// Len returns the number of alerts
func (s *Sink) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.alerts)
}
