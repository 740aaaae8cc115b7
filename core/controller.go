package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"pkt.systems/consoleshell/internal/logx"
	"pkt.systems/consoleshell/schema"
	"pkt.systems/consoleshell/transport"
	"pkt.systems/pslog"
)

// ControllerConfig wires one terminal session.
type ControllerConfig struct {
	Session   schema.Session
	Transport Transport
	Emulator  Emulator
	// Container and Cell drive the viewport. A nil container fits the
	// emulator to 80x24.
	Container Container
	Cell      schema.CellSize
	// Theme is applied on mount when set.
	Theme  schema.Theme
	Events StateSink
}

// Controller drives one terminal session: it owns the channel for the
// session's room, renders channel output into the emulator and forwards
// emulator input to the channel.
//
// All emulator writes, state transitions and pushes are serialized on one
// mutex. Channel callbacks arrive on the socket read goroutine.
type Controller struct {
	session  schema.Session
	tr       Transport
	emu      Emulator
	viewport *Viewport
	events   StateSink
	log      pslog.Logger

	mu          sync.Mutex
	state       schema.SessionState
	err         error
	theme       schema.Theme
	channel     transport.ChannelHandle
	subs        []transport.Subscription
	cancelInput func()

	disposeOnce sync.Once
}

// NewController validates cfg and returns an unmounted controller.
func NewController(ctx context.Context, cfg ControllerConfig) (*Controller, error) {
	session := cfg.Session
	session.Room = schema.Room(strings.TrimSpace(string(session.Room)))
	if session.Room == "" {
		return nil, schema.ErrInvalidRoom
	}
	if cfg.Transport == nil {
		return nil, ErrMissingTransport
	}
	if cfg.Emulator == nil {
		return nil, ErrMissingEmulator
	}
	if session.ID == "" {
		session.ID = schema.SessionID(uuid.NewString())
	}
	log := logx.WithSession(ctx, session)
	return &Controller{
		session:  session,
		tr:       cfg.Transport,
		emu:      cfg.Emulator,
		viewport: NewViewport(cfg.Container, cfg.Cell, cfg.Emulator, log),
		events:   cfg.Events,
		log:      log,
		theme:    cfg.Theme,
	}, nil
}

// Banner frames a header the way it is printed at session start.
func Banner(header string) string {
	if header == "" {
		return ""
	}
	return "\r\n" + header + "\r\n\r\n"
}

// JoinParams returns the join payload for a session.
func JoinParams(session schema.Session) transport.Payload {
	if session.InitialCommand == "" {
		return transport.EmptyPayload
	}
	params, err := transport.EmptyPayload.Set("command", session.InitialCommand)
	if err != nil {
		return transport.EmptyPayload
	}
	return params
}

// Session returns the session this controller serves.
func (c *Controller) Session() schema.Session {
	return c.session
}

// State returns the current lifecycle state.
func (c *Controller) State() schema.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the error that moved the session to errored, if any.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Geometry returns the grid last applied to the emulator.
func (c *Controller) Geometry() schema.Geometry {
	return c.viewport.Geometry()
}

// Mount fits the viewport, prints the banner and joins the session's room.
// The join is not awaited; the session moves to joined when the server
// acknowledges it. A join that cannot be sent moves the session to errored.
func (c *Controller) Mount() error {
	c.mu.Lock()
	if c.state != schema.StateUninitialized {
		state := c.state
		c.mu.Unlock()
		c.log.Warn("session mount rejected", "state", state.String())
		return fmt.Errorf("mount %s: %w", c.session.Room, schema.ErrSessionMounted)
	}
	if _, err := c.viewport.Fit(); err != nil {
		c.log.Debug("session fit failed", "err", err)
	}
	if c.theme.Name != "" {
		if err := c.emu.SetTheme(c.theme); err != nil {
			c.log.Warn("session theme failed", "theme", c.theme.Name, "err", err)
		}
	}
	if banner := Banner(c.session.Header); banner != "" {
		if _, err := c.emu.Write([]byte(banner)); err != nil {
			c.log.Debug("session banner write failed", "err", err)
		}
	}

	ch := c.tr.Channel(string(c.session.Room), JoinParams(c.session))
	c.channel = ch
	c.subs = append(c.subs,
		ch.On(schema.WireEventOutput, func(p transport.Payload) {
			c.HandleOutput(p.Get("message").String())
		}),
		ch.OnJoin(func(transport.Payload) { c.joined() }),
		ch.OnError(c.fail),
	)
	c.cancelInput = c.emu.OnInput(c.HandleInput)
	event := c.transitionLocked(schema.StateJoining, nil)
	c.mu.Unlock()
	c.publish(event)
	c.log.Info("session mount", "command", c.session.InitialCommand != "")

	if err := ch.Join(); err != nil {
		c.fail(err)
		return err
	}
	return nil
}

// HandleOutput writes an inbound message verbatim. Output is accepted while
// joining or joined and dropped otherwise.
func (c *Controller) HandleOutput(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != schema.StateJoining && c.state != schema.StateJoined {
		c.log.Trace("session output dropped", "state", c.state.String(), "bytes", len(message))
		return
	}
	if message == "" {
		return
	}
	if _, err := c.emu.Write([]byte(message)); err != nil {
		c.log.Debug("session output write failed", "err", err)
	}
}

// HandleInput pushes one command frame for text. Input is only sent while
// joined; anything earlier or later is dropped. There is no local echo.
func (c *Controller) HandleInput(text string) {
	if text == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != schema.StateJoined {
		c.log.Debug("session input dropped", "state", c.state.String(), "bytes", len(text))
		return
	}
	payload, err := transport.EmptyPayload.Set("cmd", text)
	if err != nil {
		c.log.Warn("session input encode failed", "err", err)
		return
	}
	if err := c.channel.Push(schema.WireEventCommand, payload); err != nil {
		c.log.Debug("session input dropped", "err", err)
	}
}

// Resize refits the viewport after a container resize.
func (c *Controller) Resize() (schema.Geometry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == schema.StateLeft {
		return c.viewport.Geometry(), nil
	}
	return c.viewport.Fit()
}

// ApplyTheme recolours the emulator.
func (c *Controller) ApplyTheme(theme schema.Theme) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == schema.StateLeft {
		return nil
	}
	c.theme = theme
	if err := c.emu.SetTheme(theme); err != nil {
		c.log.Warn("session theme failed", "theme", theme.Name, "err", err)
		return err
	}
	c.log.Debug("session theme applied", "theme", theme.Name)
	return nil
}

// Dispose leaves the channel and releases the emulator. It runs once; later
// calls are no-ops. Frames arriving afterwards are ignored.
func (c *Controller) Dispose() {
	c.disposeOnce.Do(func() {
		c.mu.Lock()
		ch := c.channel
		subs := c.subs
		cancelInput := c.cancelInput
		c.subs = nil
		c.cancelInput = nil
		event := c.transitionLocked(schema.StateLeft, nil)
		c.mu.Unlock()

		if cancelInput != nil {
			cancelInput()
		}
		for _, sub := range subs {
			if sub != nil {
				sub.Cancel()
			}
		}
		if ch != nil {
			if err := ch.Leave(); err != nil {
				c.log.Debug("session leave failed", "err", err)
			}
		}
		c.publish(event)
		c.log.Info("session disposed", "from", event.From.String())
	})
}

func (c *Controller) joined() {
	c.mu.Lock()
	if c.state != schema.StateJoining {
		c.mu.Unlock()
		return
	}
	event := c.transitionLocked(schema.StateJoined, nil)
	c.mu.Unlock()
	c.publish(event)
	c.log.Info("session joined")
}

func (c *Controller) fail(err error) {
	c.mu.Lock()
	if c.state != schema.StateJoining && c.state != schema.StateJoined {
		c.mu.Unlock()
		return
	}
	if err == nil {
		err = errors.New("channel error")
	}
	c.err = err
	event := c.transitionLocked(schema.StateErrored, err)
	c.mu.Unlock()
	c.publish(event)
	c.log.Warn("session errored", "err", err)
}

func (c *Controller) transitionLocked(to schema.SessionState, err error) schema.StateEvent {
	from := c.state
	c.state = to
	return schema.StateEvent{
		SessionID: c.session.ID,
		UserID:    c.session.User,
		Room:      c.session.Room,
		From:      from,
		To:        to,
		Err:       err,
	}
}

func (c *Controller) publish(event schema.StateEvent) {
	if c.events != nil && event.From != event.To {
		c.events.OnState(event)
	}
}
