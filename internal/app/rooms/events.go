package rooms

import (
	"sync"
	"time"

	"github.com/dkeye/signalroom/internal/domain"
)

type EventKind string

const (
	RoomCreated             EventKind = "room-created"
	ParticipantJoined       EventKind = "participant-joined"
	ParticipantLeft         EventKind = "participant-left"
	ParticipantStateChanged EventKind = "participant-state-changed"
	ParticipantRemoved      EventKind = "participant-removed"
	RoomClosed              EventKind = "room-closed"
	RoomMetadataUpdated     EventKind = "room-metadata-updated"
)

type Event struct {
	Kind        EventKind           `json:"kind"`
	RoomID      domain.RoomID       `json:"roomId"`
	Participant *domain.Participant `json:"participant,omitempty"`
	Metadata    map[string]any      `json:"metadata,omitempty"`
	At          time.Time           `json:"at"`
}

// Listener is called synchronously on the goroutine that performed the
// mutation, after the room lock has been released. It must not block.
type Listener func(Event)

type bus struct {
	mu        sync.RWMutex
	listeners []Listener
}

func (b *bus) subscribe(l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, l)
}

func (b *bus) publish(events []Event) {
	if len(events) == 0 {
		return
	}
	b.mu.RLock()
	ls := b.listeners
	b.mu.RUnlock()
	for _, e := range events {
		for _, l := range ls {
			l(e)
		}
	}
}
