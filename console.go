// Package consoleshell composes the channel socket, session controllers,
// theme preferences and the SSH gateway into one client.
package consoleshell

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"pkt.systems/consoleshell/core"
	"pkt.systems/consoleshell/internal/appconfig"
	"pkt.systems/consoleshell/internal/eventbus"
	"pkt.systems/consoleshell/internal/prefs"
	"pkt.systems/consoleshell/internal/theme"
	"pkt.systems/consoleshell/internal/version"
	"pkt.systems/consoleshell/schema"
	"pkt.systems/consoleshell/sshserver"
	"pkt.systems/consoleshell/transport"
	"pkt.systems/pslog"
)

// Console owns the process-wide socket and the local preference state shared
// by every session it hosts.
type Console struct {
	cfg    appconfig.Config
	socket *transport.Socket
	store  *prefs.Store
	bus    *eventbus.Bus
	themes *theme.Resolver
	events core.StateSink
	logger pslog.Logger
}

// Option customises a Console.
type Option func(*options)

type options struct {
	logger     pslog.Logger
	stateSink  core.StateSink
	httpClient *http.Client
}

// WithLogger sets the logger.
func WithLogger(logger pslog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithStateSink receives session state transitions next to the event bus.
func WithStateSink(sink core.StateSink) Option {
	return func(o *options) { o.stateSink = sink }
}

// WithHTTPClient sets the client used for the websocket handshake.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.httpClient = client }
}

// New constructs a Console. The socket is not connected until Connect.
func New(cfg appconfig.Config, opts ...Option) (*Console, error) {
	o := options{}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.logger == nil {
		o.logger = pslog.Ctx(context.Background())
	}
	if err := appconfig.Validate(cfg); err != nil {
		return nil, err
	}
	socketOpts, err := SocketOptions(cfg.Socket)
	if err != nil {
		return nil, err
	}
	socketOpts = append(socketOpts, transport.WithLogger(o.logger))
	if o.httpClient != nil {
		socketOpts = append(socketOpts, transport.WithHTTPClient(o.httpClient))
	}
	socket, err := transport.NewSocket(cfg.Socket.URL, socketOpts...)
	if err != nil {
		return nil, err
	}
	store, err := prefs.NewStoreWithLogger(cfg.PrefsDir(), o.logger)
	if err != nil {
		return nil, err
	}
	bus := eventbus.New(o.logger)
	return &Console{
		cfg:    cfg,
		socket: socket,
		store:  store,
		bus:    bus,
		themes: theme.NewResolver(store, bus, o.logger),
		events: joinSinks(bus, o.stateSink),
		logger: o.logger,
	}, nil
}

// SocketOptions translates socket configuration to transport options.
func SocketOptions(cfg appconfig.SocketConfig) ([]transport.Option, error) {
	params := url.Values{}
	for key, value := range cfg.Params {
		params.Set(key, value)
	}
	if token := strings.TrimSpace(cfg.Token); token != "" {
		params.Set("token", token)
	}
	header := http.Header{}
	header.Set("User-Agent", version.UserAgent())
	for key, value := range cfg.Headers {
		header.Set(key, value)
	}
	serializer, err := transport.SerializerFor(cfg.Vsn)
	if err != nil {
		return nil, err
	}
	opts := []transport.Option{
		transport.WithParams(params),
		transport.WithHeader(header),
		transport.WithSerializer(serializer),
		transport.WithHeartbeat(cfg.Heartbeat()),
		transport.WithJoinTimeout(cfg.JoinTimeout()),
	}
	if d := cfg.DialTimeout(); d > 0 {
		opts = append(opts, transport.WithDialTimeout(d))
	}
	return opts, nil
}

// Config returns the configuration the console was built with.
func (c *Console) Config() appconfig.Config {
	return c.cfg
}

// Connect opens the socket. It is a no-op while connected.
func (c *Console) Connect(ctx context.Context) error {
	return c.socket.Connect(ctx)
}

// Socket returns the shared socket.
func (c *Console) Socket() *transport.Socket {
	return c.socket
}

// Bus returns the event bus carrying theme and state events.
func (c *Console) Bus() *eventbus.Bus {
	return c.bus
}

// Themes returns the theme resolver.
func (c *Console) Themes() *theme.Resolver {
	return c.themes
}

// Session describes a session for the configured user.
func (c *Console) Session(room schema.Room, command string) schema.Session {
	return schema.Session{
		User:           schema.UserID(c.cfg.User),
		Room:           room,
		InitialCommand: command,
		Header:         c.cfg.Terminal.Header,
	}
}

// HostOption customises the controllers a host builds.
type HostOption func(*hostOptions)

type hostOptions struct {
	theme string
}

// WithSessionTheme themes every session of the host with key instead of the
// user's stored preference. Unknown keys fall back to the default theme.
func WithSessionTheme(key string) HostOption {
	return func(o *hostOptions) { o.theme = key }
}

// NewHost returns a host mounting sessions into emu. Each controller is
// themed with its user's preference unless a session theme is set.
func (c *Console) NewHost(ctx context.Context, emu core.Emulator, container core.Container, opts ...HostOption) *core.Host {
	o := hostOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	cell := schema.CellSize{Width: c.cfg.Terminal.CellWidth, Height: c.cfg.Terminal.CellHeight}
	return core.NewHost(func(session schema.Session) (*core.Controller, error) {
		return core.NewController(ctx, core.ControllerConfig{
			Session:   session,
			Transport: c.socket,
			Emulator:  emu,
			Container: container,
			Cell:      cell,
			Theme:     c.themes.Resolve(session.User, o.theme),
			Events:    c.events,
		})
	}, c.logger)
}

// SSHServer returns the SSH gateway bound to this console.
func (c *Console) SSHServer() (*sshserver.Server, error) {
	detach, err := appconfig.ParseDetachKey(c.cfg.Terminal.DetachKey)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(c.cfg.SSH.AuthorizedKeysPath) == "" {
		return nil, errors.New("ssh.authorized_keys_path is required")
	}
	return &sshserver.Server{
		Config: sshserver.Config{
			Addr:               c.cfg.SSH.Addr,
			HostKeyPath:        c.cfg.SSH.HostKeyPath,
			AuthorizedKeysPath: c.cfg.SSH.AuthorizedKeysPath,
			DefaultRoom:        c.cfg.SSH.DefaultRoom,
			Header:             c.cfg.Terminal.Header,
			DetachKey:          detach,
			OSCThemes:          c.cfg.Terminal.OSCThemes,
		},
		Transport: c.socket,
		Keys:      sshserver.AuthorizedKeysFile{Path: c.cfg.SSH.AuthorizedKeysPath},
		Themes:    c.themes,
		Events:    c.events,
	}, nil
}

// Close closes the socket.
func (c *Console) Close() error {
	return c.socket.Close()
}
