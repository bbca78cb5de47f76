package events

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToMatchingSubscribers(t *testing.T) {
	bus := NewBus()

	var sessionEvents, allEvents []Event
	bus.Subscribe(func(event Event) {
		sessionEvents = append(sessionEvents, event)
	}, EventSessionOpened, EventSessionClosed)
	bus.Subscribe(func(event Event) {
		allEvents = append(allEvents, event)
	})

	require.NoError(t, bus.Publish(NewSessionOpenedEvent("h1", "a.avi", true, false)))
	require.NoError(t, bus.Publish(NewEvent(EventSystemStarted, "test", "", "")))
	require.NoError(t, bus.Publish(NewSessionClosedEvent("h1")))

	assert.Len(t, sessionEvents, 2)
	assert.Len(t, allEvents, 3)
	assert.Equal(t, EventSessionOpened, sessionEvents[0].Type)
	assert.Equal(t, "a.avi", sessionEvents[0].Data["path"])
	assert.Equal(t, true, sessionEvents[0].Data["has_video"])
	assert.Equal(t, EventSessionClosed, sessionEvents[1].Type)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus()

	var count int
	sub := bus.Subscribe(func(Event) { count++ })

	bus.Publish(NewEvent(EventError, "test", "", ""))
	bus.Unsubscribe(sub.ID)
	bus.Publish(NewEvent(EventError, "test", "", ""))

	assert.Equal(t, 1, count)
}

func TestHistoryIsBounded(t *testing.T) {
	bus := NewBus()

	for i := 0; i < defaultHistorySize+50; i++ {
		bus.Publish(NewEvent(EventError, "test", "", fmt.Sprintf("%d", i)))
	}

	history := bus.GetEvents(0)
	require.Len(t, history, defaultHistorySize)
	// Oldest entries were dropped.
	assert.Equal(t, "50", history[0].Message)
	assert.Equal(t, fmt.Sprintf("%d", defaultHistorySize+49), history[len(history)-1].Message)
}

func TestGetEventsLimit(t *testing.T) {
	bus := NewBus()
	for i := 0; i < 10; i++ {
		bus.Publish(NewEvent(EventError, "test", "", fmt.Sprintf("%d", i)))
	}

	recent := bus.GetEvents(3)
	require.Len(t, recent, 3)
	assert.Equal(t, "7", recent[0].Message)
	assert.Equal(t, "9", recent[2].Message)
}

func TestPublishStampsIDAndTimestamp(t *testing.T) {
	bus := NewBus()
	bus.Publish(Event{Type: EventError})

	events := bus.GetEvents(1)
	require.Len(t, events, 1)
	assert.NotEmpty(t, events[0].ID)
	assert.False(t, events[0].Timestamp.IsZero())
}
