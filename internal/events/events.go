// Package events provides the event bus for the input adapter. It
// carries session lifecycle and plugin notifications to whatever the
// host wires up (diagnostics, catalog, logging).
package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of event
type EventType string

const (
	// Session events
	EventSessionOpened EventType = "session.opened"
	EventSessionClosed EventType = "session.closed"
	EventSessionLeaked EventType = "session.leaked"

	// Plugin events
	EventPluginLoaded   EventType = "plugin.loaded"
	EventPluginUnloaded EventType = "plugin.unloaded"

	// System events
	EventSystemStarted EventType = "system.started"
	EventSystemStopped EventType = "system.stopped"

	// General events
	EventError EventType = "error"
)

// Event represents a system event
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Source    string                 `json:"source"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// EventHandler represents a function that handles events
type EventHandler func(event Event)

// Subscription represents an event subscription
type Subscription struct {
	ID      string      `json:"id"`
	Types   []EventType `json:"types"`
	Handler EventHandler `json:"-"`
	Created time.Time   `json:"created"`
}

// NewEvent creates an event with a fresh ID and timestamp.
func NewEvent(eventType EventType, source, title, message string) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    source,
		Title:     title,
		Message:   message,
		Data:      make(map[string]interface{}),
		Timestamp: time.Now(),
	}
}

// NewSessionOpenedEvent creates an event for a newly opened session.
func NewSessionOpenedEvent(handle, path string, hasVideo, hasAudio bool) Event {
	event := NewEvent(EventSessionOpened, "input-adapter", "Session opened", path)
	event.Data["handle"] = handle
	event.Data["path"] = path
	event.Data["has_video"] = hasVideo
	event.Data["has_audio"] = hasAudio
	return event
}

// NewSessionClosedEvent creates an event for a closed session.
func NewSessionClosedEvent(handle string) Event {
	event := NewEvent(EventSessionClosed, "input-adapter", "Session closed", handle)
	event.Data["handle"] = handle
	return event
}
