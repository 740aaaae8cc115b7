package transport

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"pkt.systems/pslog"
)

// ChannelState is the lifecycle state of a channel.
type ChannelState int

const (
	// ChannelIdle is the state before Join.
	ChannelIdle ChannelState = iota
	// ChannelJoining waits for the join acknowledgment.
	ChannelJoining
	// ChannelJoined exchanges frames.
	ChannelJoined
	// ChannelErrored is entered on rejection, timeout or transport loss.
	ChannelErrored
	// ChannelLeft is terminal.
	ChannelLeft
)

func (s ChannelState) String() string {
	switch s {
	case ChannelIdle:
		return "idle"
	case ChannelJoining:
		return "joining"
	case ChannelJoined:
		return "joined"
	case ChannelErrored:
		return "errored"
	case ChannelLeft:
		return "left"
	default:
		return "unknown"
	}
}

// Subscription cancels a handler registration.
type Subscription interface {
	Cancel()
}

// SubscriptionFunc adapts a function to Subscription.
type SubscriptionFunc func()

// Cancel calls f.
func (f SubscriptionFunc) Cancel() {
	if f != nil {
		f()
	}
}

// ChannelHandle is a topic-scoped subscription multiplexed over a socket.
type ChannelHandle interface {
	Topic() string
	State() ChannelState
	// Join sends the join request. It does not wait for the acknowledgment.
	Join() error
	// On registers a handler invoked once per inbound frame named event, in
	// arrival order.
	On(event string, handler func(Payload)) Subscription
	// OnJoin registers a handler invoked with the server response when the
	// join is acknowledged.
	OnJoin(handler func(Payload)) Subscription
	// OnError registers a handler invoked on join or transport errors.
	OnError(handler func(error)) Subscription
	// Push sends one frame. It returns ErrNotJoined without touching the
	// wire unless the channel is joined.
	Push(event string, payload Payload) error
	// Leave sends the leave request and discards all handlers. Idempotent.
	Leave() error
}

type bindingKind int

const (
	bindEvent bindingKind = iota
	bindJoin
	bindError
)

type binding struct {
	id      uint64
	kind    bindingKind
	event   string
	handler func(Payload)
	onError func(error)
}

// Channel is the socket-backed ChannelHandle.
type Channel struct {
	socket *Socket
	topic  string
	params Payload
	log    pslog.Logger

	mu        sync.Mutex
	state     ChannelState
	joinRef   string
	joinTimer *time.Timer
	nextID    uint64
	bindings  []binding
}

var _ ChannelHandle = (*Channel)(nil)

func newChannel(socket *Socket, topic string, params Payload) *Channel {
	return &Channel{
		socket: socket,
		topic:  topic,
		params: params.normalized(),
		log:    socket.log.With("topic", topic),
	}
}

// Topic returns the channel topic.
func (c *Channel) Topic() string {
	return c.topic
}

// State returns the current channel state.
func (c *Channel) State() ChannelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Join implements ChannelHandle.
func (c *Channel) Join() error {
	c.mu.Lock()
	if c.state != ChannelIdle {
		state := c.state
		c.mu.Unlock()
		c.log.Warn("channel join rejected", "reason", "already attempted", "state", state.String())
		return fmt.Errorf("join %s: %w", c.topic, ErrAlreadyJoined)
	}
	ref := c.socket.makeRef()
	c.joinRef = ref
	c.state = ChannelJoining
	if timeout := c.socket.joinTimeout; timeout > 0 {
		c.joinTimer = time.AfterFunc(timeout, func() { c.joinTimedOut(ref) })
	}
	c.mu.Unlock()

	err := c.socket.send(Message{
		JoinRef: ref,
		Ref:     ref,
		Topic:   c.topic,
		Event:   eventJoin,
		Payload: c.params,
	})
	if err != nil {
		c.mu.Lock()
		if c.joinRef == ref && c.state == ChannelJoining {
			c.state = ChannelErrored
			c.stopJoinTimerLocked()
		}
		c.mu.Unlock()
		c.log.Warn("channel join failed", "err", err)
		return fmt.Errorf("join %s: %w", c.topic, err)
	}
	c.log.Debug("channel join sent", "join_ref", ref)
	return nil
}

// On implements ChannelHandle.
func (c *Channel) On(event string, handler func(Payload)) Subscription {
	return c.bind(binding{kind: bindEvent, event: event, handler: handler})
}

// OnJoin implements ChannelHandle.
func (c *Channel) OnJoin(handler func(Payload)) Subscription {
	return c.bind(binding{kind: bindJoin, handler: handler})
}

// OnError implements ChannelHandle.
func (c *Channel) OnError(handler func(error)) Subscription {
	return c.bind(binding{kind: bindError, onError: handler})
}

func (c *Channel) bind(b binding) Subscription {
	if b.handler == nil && b.onError == nil {
		return SubscriptionFunc(nil)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == ChannelLeft {
		return SubscriptionFunc(nil)
	}
	c.nextID++
	b.id = c.nextID
	c.bindings = append(c.bindings, b)
	id := b.id
	return SubscriptionFunc(func() { c.unbind(id) })
}

func (c *Channel) unbind(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, b := range c.bindings {
		if b.id == id {
			c.bindings = append(c.bindings[:i], c.bindings[i+1:]...)
			return
		}
	}
}

// Push implements ChannelHandle.
func (c *Channel) Push(event string, payload Payload) error {
	c.mu.Lock()
	state := c.state
	joinRef := c.joinRef
	c.mu.Unlock()
	if state != ChannelJoined {
		c.log.Debug("channel push dropped", "event", event, "state", state.String())
		return fmt.Errorf("push %s on %s: %w", event, c.topic, ErrNotJoined)
	}
	err := c.socket.send(Message{
		JoinRef: joinRef,
		Ref:     c.socket.makeRef(),
		Topic:   c.topic,
		Event:   event,
		Payload: payload,
	})
	if err != nil {
		c.log.Debug("channel push failed", "event", event, "err", err)
		return fmt.Errorf("push %s on %s: %w", event, c.topic, err)
	}
	return nil
}

// Leave implements ChannelHandle.
func (c *Channel) Leave() error {
	c.mu.Lock()
	if c.state == ChannelLeft {
		c.mu.Unlock()
		return nil
	}
	prev := c.state
	joinRef := c.joinRef
	c.state = ChannelLeft
	c.stopJoinTimerLocked()
	c.bindings = nil
	c.mu.Unlock()

	c.socket.remove(c)
	if prev == ChannelIdle {
		c.log.Debug("channel discarded", "reason", "never joined")
		return nil
	}
	err := c.socket.send(Message{
		JoinRef: joinRef,
		Ref:     c.socket.makeRef(),
		Topic:   c.topic,
		Event:   eventLeave,
		Payload: EmptyPayload,
	})
	if err != nil {
		if errors.Is(err, ErrNotConnected) {
			c.log.Debug("channel left", "from", prev.String(), "sent", false)
			return nil
		}
		c.log.Warn("channel leave failed", "err", err)
		return fmt.Errorf("leave %s: %w", c.topic, err)
	}
	c.log.Debug("channel left", "from", prev.String(), "sent", true)
	return nil
}

// trigger routes one inbound frame. It runs on the socket read goroutine.
func (c *Channel) trigger(msg Message) {
	c.mu.Lock()
	if c.state == ChannelIdle || c.state == ChannelLeft {
		c.mu.Unlock()
		return
	}
	if msg.JoinRef != "" && msg.JoinRef != c.joinRef {
		c.mu.Unlock()
		c.log.Trace("channel frame stale", "event", msg.Event, "join_ref", msg.JoinRef)
		return
	}
	switch msg.Event {
	case eventReply:
		if msg.Ref != c.joinRef || c.state != ChannelJoining {
			c.mu.Unlock()
			return
		}
		c.stopJoinTimerLocked()
		response := payloadOf(msg.Payload.Get("response"))
		if msg.Payload.Get("status").String() == "ok" {
			c.state = ChannelJoined
			handlers := c.snapshotLocked(bindJoin, "")
			c.mu.Unlock()
			c.log.Debug("channel joined")
			for _, b := range handlers {
				b.handler(response)
			}
			return
		}
		c.mu.Unlock()
		c.fault(&JoinError{Topic: c.topic, Response: response})
	case eventError:
		c.mu.Unlock()
		c.fault(fmt.Errorf("channel %s: %w", c.topic, ErrChannelCrashed))
	case eventClose:
		c.mu.Unlock()
		c.fault(fmt.Errorf("channel %s: %w", c.topic, ErrChannelClosed))
	default:
		if c.state != ChannelJoining && c.state != ChannelJoined {
			c.mu.Unlock()
			return
		}
		handlers := c.snapshotLocked(bindEvent, msg.Event)
		c.mu.Unlock()
		for _, b := range handlers {
			b.handler(msg.Payload)
		}
	}
}

func (c *Channel) transportFailed(err error) {
	c.fault(fmt.Errorf("channel %s: %w", c.topic, err))
}

func (c *Channel) joinTimedOut(ref string) {
	c.mu.Lock()
	current := c.joinRef == ref && c.state == ChannelJoining
	c.mu.Unlock()
	if current {
		c.fault(fmt.Errorf("channel %s: %w", c.topic, ErrJoinTimeout))
	}
}

// fault moves a live channel to errored and notifies error handlers once.
func (c *Channel) fault(err error) {
	c.mu.Lock()
	if c.state != ChannelJoining && c.state != ChannelJoined {
		c.mu.Unlock()
		return
	}
	c.state = ChannelErrored
	c.stopJoinTimerLocked()
	handlers := c.snapshotLocked(bindError, "")
	c.mu.Unlock()
	c.log.Warn("channel errored", "err", err)
	for _, b := range handlers {
		b.onError(err)
	}
}

func (c *Channel) snapshotLocked(kind bindingKind, event string) []binding {
	out := make([]binding, 0, len(c.bindings))
	for _, b := range c.bindings {
		if b.kind != kind {
			continue
		}
		if kind == bindEvent && b.event != event {
			continue
		}
		out = append(out, b)
	}
	return out
}

func (c *Channel) stopJoinTimerLocked() {
	if c.joinTimer != nil {
		c.joinTimer.Stop()
		c.joinTimer = nil
	}
}
