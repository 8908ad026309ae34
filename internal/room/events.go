package room

import (
	"sync"

	"github.com/charmbracelet/log"
)

// Event names the lifecycle notifications providers dispatch internally.
// The vocabulary is closed; emitting an event nobody listens to is a no-op.
type Event string

const (
	EventJoinRoom      Event = "join_room"
	EventJoinConfirmed Event = "join_confirmed"
	EventAddPlayer     Event = "add_player"
	EventRemovePlayer  Event = "remove_player"
	EventPlayerJoined  Event = "player_joined"
	EventPlayerLeft    Event = "player_left"
	EventRoomClosed    Event = "room_closed"
	EventRoomCreated   Event = "room_created"
	EventState         Event = "state"
)

// Handler consumes an event payload. Payload types are event-specific
// (Player for roster events, GameState for state events, string for ids).
type Handler func(payload any)

// Bus is a synchronous publish/subscribe dispatcher. Handlers run in
// registration order on the emitting goroutine; a panicking handler is
// recovered and logged so later handlers still run.
type Bus struct {
	mu       sync.Mutex
	handlers map[Event][]Handler
	logger   *log.Logger
}

// NewBus returns an empty bus. logger may be nil.
func NewBus(logger *log.Logger) *Bus {
	if logger == nil {
		logger = log.Default()
	}
	return &Bus{
		handlers: make(map[Event][]Handler),
		logger:   logger,
	}
}

// On appends h to the handler list for event. There is no unsubscribe;
// listeners are expected to live for the session.
func (b *Bus) On(event Event, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[event] = append(b.handlers[event], h)
}

// Emit invokes every handler registered for event, in registration order.
func (b *Bus) Emit(event Event, payload any) {
	b.mu.Lock()
	handlers := append([]Handler(nil), b.handlers[event]...)
	b.mu.Unlock()

	for _, h := range handlers {
		b.dispatch(event, h, payload)
	}
}

func (b *Bus) dispatch(event Event, h Handler, payload any) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked", "event", event, "panic", r)
		}
	}()
	h(payload)
}
