package rooms

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// FakeBroadcaster records broadcasts for assertions in tests.
type FakeBroadcaster struct {
	mu     sync.Mutex
	events []Event
}

func NewFakeBroadcaster() *FakeBroadcaster {
	return &FakeBroadcaster{}
}

func (f *FakeBroadcaster) Broadcast(_ context.Context, roomID uuid.UUID, event Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	event.RoomID = roomID
	f.events = append(f.events, event)
}

// Events returns a copy of everything broadcast so far.
func (f *FakeBroadcaster) Events() []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Event, len(f.events))
	copy(out, f.events)
	return out
}

// EventsOfType filters recorded events by type.
func (f *FakeBroadcaster) EventsOfType(eventType string) []Event {
	var out []Event
	for _, e := range f.Events() {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
