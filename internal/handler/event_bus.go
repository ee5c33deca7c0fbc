// internal/handler/event_bus.go
package handler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"cyton-service/internal/cyton"
)

// Event is the wire form of a session event
type Event struct {
	Type      string      `json:"type"`
	SessionID string      `json:"session_id"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewEvent converts a session event for publishing
func NewEvent(e cyton.Event) Event {
	out := Event{
		Type:      string(e.Type),
		SessionID: e.SessionID,
		Timestamp: e.Time,
	}
	if out.Timestamp.IsZero() {
		out.Timestamp = time.Now()
	}

	switch {
	case e.Sample != nil:
		out.Data = e.Sample
	case e.Impedance != nil:
		out.Data = e.Impedance
	case e.Sync != nil:
		out.Data = e.Sync
	case e.Info != nil:
		out.Data = e.Info
	case e.Missed != nil:
		out.Data = map[string]interface{}{"missed": e.Missed}
	case e.Text != "":
		out.Data = map[string]interface{}{"text": e.Text}
	}
	if e.Err != nil {
		out.Error = e.Err.Error()
	}
	return out
}

type subscriber struct {
	ch    chan Event
	types map[string]bool
}

func (s *subscriber) wants(t string) bool {
	return len(s.types) == 0 || s.types[t]
}

// EventBus fans session events out to subscribers. Publish never blocks;
// a full queue or a slow subscriber loses events.
type EventBus struct {
	subscribers map[*subscriber]struct{}
	events      chan Event
	mutex       sync.RWMutex
	logger      *zap.Logger

	// samples are only published when enabled
	samples bool
}

// NewEventBus creates a new event bus
func NewEventBus(logger *zap.Logger, withSamples bool) *EventBus {
	return &EventBus{
		subscribers: make(map[*subscriber]struct{}),
		events:      make(chan Event, 1000),
		logger:      logger.With(zap.String("component", "event-bus")),
		samples:     withSamples,
	}
}

// Start distributes events until ctx is cancelled
func (eb *EventBus) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-eb.events:
			eb.distributeEvent(event)
		}
	}
}

// Handle is a cyton.EventHandler
func (eb *EventBus) Handle(e cyton.Event) {
	if e.Type == cyton.EventSample && !eb.samples {
		return
	}
	eb.Publish(NewEvent(e))
}

// Publish queues an event for distribution
func (eb *EventBus) Publish(event Event) {
	select {
	case eb.events <- event:
	default:
		eb.logger.Warn("Event bus full, dropping event", zap.String("event_type", event.Type))
	}
}

// Subscribe returns a channel receiving the given event types, or every
// type when none are given. cancel must be called to release it.
func (eb *EventBus) Subscribe(types ...string) (events <-chan Event, cancel func()) {
	sub := &subscriber{ch: make(chan Event, 100), types: make(map[string]bool)}
	for _, t := range types {
		sub.types[t] = true
	}

	eb.mutex.Lock()
	eb.subscribers[sub] = struct{}{}
	eb.mutex.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			eb.mutex.Lock()
			delete(eb.subscribers, sub)
			close(sub.ch)
			eb.mutex.Unlock()
		})
	}
}

// SubscriberCount returns the number of live subscriptions
func (eb *EventBus) SubscriberCount() int {
	eb.mutex.RLock()
	defer eb.mutex.RUnlock()
	return len(eb.subscribers)
}

func (eb *EventBus) distributeEvent(event Event) {
	eb.mutex.RLock()
	defer eb.mutex.RUnlock()

	for sub := range eb.subscribers {
		if !sub.wants(event.Type) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			// slow subscriber
		}
	}
}
