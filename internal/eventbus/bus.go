package eventbus

import (
	"context"
	"sync"

	"pkt.systems/consoleshell/schema"
	"pkt.systems/pslog"
)

// EventType identifies the event payload.
type EventType string

const (
	// EventTheme carries a changed theme preference.
	EventTheme EventType = "theme"
	// EventState carries a session state transition.
	EventState EventType = "state"
)

// Event is delivered to subscribers of one user.
type Event struct {
	Type  EventType
	Theme schema.ThemeEvent
	State schema.StateEvent
}

// Bus fans out events to per-user subscribers without blocking publishers.
type Bus struct {
	mu    sync.Mutex
	subs  map[schema.UserID]map[chan Event]struct{}
	log   pslog.Logger
	depth int
}

// New constructs a Bus.
func New(logger pslog.Logger) *Bus {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Bus{
		subs:  make(map[schema.UserID]map[chan Event]struct{}),
		log:   logger,
		depth: 64,
	}
}

// Subscribe registers a subscriber for the user and returns a channel + cancel.
func (b *Bus) Subscribe(userID schema.UserID) (<-chan Event, func()) {
	if b == nil {
		return nil, func() {}
	}
	ch := make(chan Event, b.depth)
	b.mu.Lock()
	userSubs := b.subs[userID]
	if userSubs == nil {
		userSubs = make(map[chan Event]struct{})
		b.subs[userID] = userSubs
	}
	userSubs[ch] = struct{}{}
	count := len(userSubs)
	b.mu.Unlock()
	b.log.With("user", userID).Debug("eventbus subscribe", "subs", count)
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			if subs := b.subs[userID]; subs != nil {
				delete(subs, ch)
				if len(subs) == 0 {
					delete(b.subs, userID)
				}
			}
			close(ch)
			b.mu.Unlock()
			b.log.With("user", userID).Debug("eventbus unsubscribe")
		})
	}
}

// OnTheme publishes a theme change.
func (b *Bus) OnTheme(event schema.ThemeEvent) {
	b.publish(event.UserID, Event{Type: EventTheme, Theme: event})
}

// OnState publishes a session state transition.
func (b *Bus) OnState(event schema.StateEvent) {
	b.publish(event.UserID, Event{Type: EventState, State: event})
}

func (b *Bus) publish(userID schema.UserID, event Event) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	userSubs := b.subs[userID]
	if len(userSubs) == 0 {
		return
	}
	dropped := 0
	for sub := range userSubs {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		b.log.With("user", userID).Trace("eventbus dropped", "type", event.Type, "count", dropped)
	}
}
