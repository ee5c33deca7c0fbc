// internal/cyton/events.go
package cyton

import "time"

// EventType names what a session reports to its handler.
type EventType string

const (
	EventConnected      EventType = "connected"
	EventDisconnected   EventType = "disconnected"
	EventReady          EventType = "ready"
	EventStreamStarted  EventType = "stream_started"
	EventStreamStopped  EventType = "stream_stopped"
	EventSample         EventType = "sample"
	EventImpedance      EventType = "impedance"
	EventEndOfText      EventType = "eot"
	EventSynced         EventType = "synced"
	EventDroppedPackets EventType = "dropped_packets"
	EventBadPacket      EventType = "bad_packet"
	EventLog            EventType = "log"
	EventError          EventType = "error"
)

// Event carries one notification. Only the field matching Type is set.
type Event struct {
	Type      EventType
	SessionID string
	Time      time.Time

	Info      *BoardInfo
	Sample    *Sample
	Impedance *ImpedanceResult
	Sync      *SyncResult
	Text      string
	Missed    []int
	Err       error
}

// EventHandler is called on the session goroutine and must not block.
type EventHandler func(Event)

// Handlers fans one event out to several handlers in order.
func Handlers(hs ...EventHandler) EventHandler {
	return func(e Event) {
		for _, h := range hs {
			if h != nil {
				h(e)
			}
		}
	}
}
