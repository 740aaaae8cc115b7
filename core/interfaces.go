package core

import (
	"errors"
	"io"

	"pkt.systems/consoleshell/schema"
	"pkt.systems/consoleshell/transport"
)

var (
	// ErrMissingTransport indicates a controller was built without a transport.
	ErrMissingTransport = errors.New("missing transport")
	// ErrMissingEmulator indicates a controller was built without an emulator.
	ErrMissingEmulator = errors.New("missing emulator")
)

// Transport opens channels on a shared connection.
type Transport interface {
	Channel(topic string, params transport.Payload) transport.ChannelHandle
}

// Resizer applies a grid to an emulator.
type Resizer interface {
	Resize(geometry schema.Geometry) error
}

// Emulator is the terminal a controller renders into.
type Emulator interface {
	io.Writer
	Resizer
	SetTheme(theme schema.Theme) error
	// OnInput subscribes to keystroke and paste events; the returned func
	// cancels the subscription.
	OnInput(fn func(text string)) func()
}

// Container reports the size of the surface hosting an emulator.
type Container interface {
	Dimensions() (schema.Dimensions, error)
}

// ContainerFunc adapts a function to Container.
type ContainerFunc func() (schema.Dimensions, error)

// Dimensions calls f.
func (f ContainerFunc) Dimensions() (schema.Dimensions, error) {
	return f()
}

// StateSink receives session state transitions.
type StateSink interface {
	OnState(event schema.StateEvent)
}
