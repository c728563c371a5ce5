// Package events is the in-process change notification bus. Stores publish
// after every durable write; the websocket hub, notifier and webhook
// dispatcher subscribe.
package events

import (
	"time"

	"github.com/asaskevich/EventBus"
)

// Topics published by the domain stores.
const (
	CartUpdated      = "cartUpdated"
	ProfileUpdated   = "profileUpdated"
	BookingConfirmed = "bookingConfirmed"
)

// Topics lists the topics a websocket client may subscribe to.
var Topics = []string{CartUpdated, ProfileUpdated, BookingConfirmed}

// Event is the single argument every handler receives.
type Event struct {
	Topic     string    `json:"type"`
	SessionID string    `json:"sessionId"`
	Data      any       `json:"data,omitempty"`
	At        time.Time `json:"at"`
}

// Handler receives published events.
type Handler func(Event)

// Bus wraps EventBus so that every publish carries exactly one Event.
type Bus struct {
	bus EventBus.Bus
	now func() time.Time
}

// New returns an empty bus.
func New() *Bus {
	return &Bus{bus: EventBus.New(), now: time.Now}
}

// Publish stamps the event and delivers it to every subscriber of topic.
// Synchronous subscribers have run by the time Publish returns.
func (b *Bus) Publish(topic, sessionID string, data any) {
	b.bus.Publish(topic, Event{
		Topic:     topic,
		SessionID: sessionID,
		Data:      data,
		At:        b.now(),
	})
}

// Subscribe registers a synchronous handler.
func (b *Bus) Subscribe(topic string, h Handler) error {
	return b.bus.Subscribe(topic, func(e Event) { h(e) })
}

// SubscribeAsync registers a handler that runs on its own goroutine. Handlers
// for the same topic run one at a time.
func (b *Bus) SubscribeAsync(topic string, h Handler) error {
	return b.bus.SubscribeAsync(topic, func(e Event) { h(e) }, true)
}

// Wait blocks until in-flight async handlers have finished.
func (b *Bus) Wait() {
	b.bus.WaitAsync()
}
