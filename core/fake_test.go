package core

import (
	"fmt"
	"sync"

	"pkt.systems/consoleshell/transport"
)

type fakeTransport struct {
	mu       sync.Mutex
	channels []*fakeChannel
	journal  []string
	joinErr  error
}

func (f *fakeTransport) Channel(topic string, params transport.Payload) transport.ChannelHandle {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := &fakeChannel{owner: f, topic: topic, params: params, joinErr: f.joinErr}
	f.channels = append(f.channels, ch)
	return ch
}

func (f *fakeTransport) record(entry string) {
	f.mu.Lock()
	f.journal = append(f.journal, entry)
	f.mu.Unlock()
}

func (f *fakeTransport) entries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.journal...)
}

func (f *fakeTransport) last() *fakeChannel {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.channels) == 0 {
		return nil
	}
	return f.channels[len(f.channels)-1]
}

// liveJoined counts channels currently in the joined state.
func (f *fakeTransport) liveJoined() int {
	f.mu.Lock()
	channels := append([]*fakeChannel(nil), f.channels...)
	f.mu.Unlock()
	n := 0
	for _, ch := range channels {
		if ch.State() == transport.ChannelJoined {
			n++
		}
	}
	return n
}

type fakeBinding struct {
	id      int
	event   string
	join    bool
	handler func(transport.Payload)
	onError func(error)
}

type fakeChannel struct {
	owner   *fakeTransport
	topic   string
	params  transport.Payload
	joinErr error

	mu       sync.Mutex
	state    transport.ChannelState
	bindings []fakeBinding
	nextID   int
	joins    int
	leaves   int
	pushes   []transport.Message
}

func (c *fakeChannel) Topic() string { return c.topic }

func (c *fakeChannel) State() transport.ChannelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *fakeChannel) Join() error {
	c.mu.Lock()
	c.joins++
	if c.state != transport.ChannelIdle {
		c.mu.Unlock()
		return transport.ErrAlreadyJoined
	}
	if c.joinErr != nil {
		c.state = transport.ChannelErrored
		c.mu.Unlock()
		return c.joinErr
	}
	c.state = transport.ChannelJoining
	c.mu.Unlock()
	c.owner.record("join:" + c.topic)
	return nil
}

func (c *fakeChannel) bind(b fakeBinding) transport.Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == transport.ChannelLeft {
		return transport.SubscriptionFunc(nil)
	}
	c.nextID++
	b.id = c.nextID
	c.bindings = append(c.bindings, b)
	id := b.id
	return transport.SubscriptionFunc(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, existing := range c.bindings {
			if existing.id == id {
				c.bindings = append(c.bindings[:i], c.bindings[i+1:]...)
				return
			}
		}
	})
}

func (c *fakeChannel) On(event string, handler func(transport.Payload)) transport.Subscription {
	return c.bind(fakeBinding{event: event, handler: handler})
}

func (c *fakeChannel) OnJoin(handler func(transport.Payload)) transport.Subscription {
	return c.bind(fakeBinding{join: true, handler: handler})
}

func (c *fakeChannel) OnError(handler func(error)) transport.Subscription {
	return c.bind(fakeBinding{onError: handler})
}

func (c *fakeChannel) Push(event string, payload transport.Payload) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != transport.ChannelJoined {
		return fmt.Errorf("push %s: %w", event, transport.ErrNotJoined)
	}
	c.pushes = append(c.pushes, transport.Message{Topic: c.topic, Event: event, Payload: payload})
	return nil
}

func (c *fakeChannel) Leave() error {
	c.mu.Lock()
	c.leaves++
	if c.state == transport.ChannelLeft {
		c.mu.Unlock()
		return nil
	}
	c.state = transport.ChannelLeft
	c.bindings = nil
	c.mu.Unlock()
	c.owner.record("leave:" + c.topic)
	return nil
}

// ack acknowledges the join and runs join handlers.
func (c *fakeChannel) ack() {
	c.mu.Lock()
	if c.state != transport.ChannelJoining {
		c.mu.Unlock()
		return
	}
	c.state = transport.ChannelJoined
	handlers := c.snapshot(func(b fakeBinding) bool { return b.join })
	c.mu.Unlock()
	for _, b := range handlers {
		b.handler(transport.EmptyPayload)
	}
}

// fail moves the channel to errored and runs error handlers.
func (c *fakeChannel) fail(err error) {
	c.mu.Lock()
	if c.state != transport.ChannelJoining && c.state != transport.ChannelJoined {
		c.mu.Unlock()
		return
	}
	c.state = transport.ChannelErrored
	handlers := c.snapshot(func(b fakeBinding) bool { return b.onError != nil })
	c.mu.Unlock()
	for _, b := range handlers {
		b.onError(err)
	}
}

// deliver dispatches an inbound frame to handlers bound to event.
func (c *fakeChannel) deliver(event string, payload transport.Payload) {
	c.mu.Lock()
	handlers := c.snapshot(func(b fakeBinding) bool { return !b.join && b.handler != nil && b.event == event })
	c.mu.Unlock()
	for _, b := range handlers {
		b.handler(payload)
	}
}

// snapshotHandlers captures handlers bound to event, as a transport does
// before releasing its lock.
func (c *fakeChannel) snapshotHandlers(event string) []func(transport.Payload) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []func(transport.Payload)
	for _, b := range c.bindings {
		if !b.join && b.handler != nil && b.event == event {
			out = append(out, b.handler)
		}
	}
	return out
}

func (c *fakeChannel) snapshot(match func(fakeBinding) bool) []fakeBinding {
	var out []fakeBinding
	for _, b := range c.bindings {
		if match(b) {
			out = append(out, b)
		}
	}
	return out
}

func (c *fakeChannel) pushed() []transport.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]transport.Message(nil), c.pushes...)
}

func (c *fakeChannel) counts() (joins, leaves int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.joins, c.leaves
}

func output(message string) transport.Payload {
	payload, _ := transport.EmptyPayload.Set("message", message)
	return payload
}
