package events

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mantonx/avinput/internal/logger"
)

// EventBus delivers events to subscribers and keeps a bounded history
// for diagnostics.
type EventBus interface {
	Publish(event Event) error
	Subscribe(handler EventHandler, types ...EventType) *Subscription
	Unsubscribe(subscriptionID string)
	GetEvents(limit int) []Event
}

// defaultHistorySize bounds the in-memory event history.
const defaultHistorySize = 256

type eventBus struct {
	mu      sync.RWMutex
	subs    map[string]*Subscription
	history []Event
	maxSize int
}

// NewBus creates an event bus with the default history size.
func NewBus() EventBus {
	return &eventBus{
		subs:    make(map[string]*Subscription),
		maxSize: defaultHistorySize,
	}
}

func (b *eventBus) Publish(event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.Lock()
	b.history = append(b.history, event)
	if len(b.history) > b.maxSize {
		b.history = b.history[len(b.history)-b.maxSize:]
	}
	handlers := make([]EventHandler, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.matches(event.Type) {
			handlers = append(handlers, sub.Handler)
		}
	}
	b.mu.Unlock()

	for _, handler := range handlers {
		handler(event)
	}
	return nil
}

func (b *eventBus) Subscribe(handler EventHandler, types ...EventType) *Subscription {
	sub := &Subscription{
		ID:      uuid.NewString(),
		Types:   types,
		Handler: handler,
		Created: time.Now(),
	}

	b.mu.Lock()
	b.subs[sub.ID] = sub
	b.mu.Unlock()

	logger.Debug("event subscription added: %s (%d types)", sub.ID, len(types))
	return sub
}

func (b *eventBus) Unsubscribe(subscriptionID string) {
	b.mu.Lock()
	delete(b.subs, subscriptionID)
	b.mu.Unlock()
}

func (b *eventBus) GetEvents(limit int) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if limit <= 0 || limit > len(b.history) {
		limit = len(b.history)
	}
	out := make([]Event, limit)
	copy(out, b.history[len(b.history)-limit:])
	return out
}

// matches reports whether the subscription wants this event type. An
// empty type list subscribes to everything.
func (s *Subscription) matches(eventType EventType) bool {
	if len(s.Types) == 0 {
		return true
	}
	for _, t := range s.Types {
		if t == eventType {
			return true
		}
	}
	return false
}
