package sshserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	gliderssh "github.com/gliderlabs/ssh"

	"pkt.systems/consoleshell/core"
	"pkt.systems/consoleshell/emulator"
	"pkt.systems/consoleshell/internal/logx"
	"pkt.systems/consoleshell/internal/theme"
	"pkt.systems/consoleshell/schema"
)

// ptyWindow reports the client's PTY size as the viewport container.
type ptyWindow struct {
	mu  sync.Mutex
	win gliderssh.Window
}

func (w *ptyWindow) set(win gliderssh.Window) {
	w.mu.Lock()
	w.win = win
	w.mu.Unlock()
}

func (w *ptyWindow) Dimensions() (schema.Dimensions, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return schema.Dimensions{Cols: w.win.Width, Rows: w.win.Height}, nil
}

// connector is implemented by transports that can re-establish a dropped
// connection. The gateway reconnects when a new session starts.
type connector interface {
	Connect(ctx context.Context) error
}

// gatewaySession hosts one controller on one SSH channel.
type gatewaySession struct {
	srv    *Server
	rw     io.ReadWriter
	user   schema.UserID
	target schema.Session
	window *ptyWindow
	stream *emulator.Stream
}

func newGatewaySession(srv *Server, rw io.ReadWriter, user schema.UserID, target schema.Session, win gliderssh.Window) *gatewaySession {
	window := &ptyWindow{}
	window.set(win)
	return &gatewaySession{
		srv:    srv,
		rw:     rw,
		user:   user,
		target: target,
		window: window,
		stream: emulator.NewStream(rw, rw,
			emulator.WithDetachKey(srv.Config.DetachKey),
			emulator.WithThemeSequences(srv.Config.OSCThemes),
		),
	}
}

func (g *gatewaySession) resolveTheme() schema.Theme {
	if g.srv.Themes == nil {
		return theme.Default()
	}
	return g.srv.Themes.Resolve(g.user, "")
}

// Run mounts the session and relays window and theme changes until the
// client detaches, closes its input or ctx ends.
func (g *gatewaySession) Run(ctx context.Context, winCh <-chan gliderssh.Window) error {
	log := logx.WithSession(ctx, g.target)
	host := core.NewHost(func(session schema.Session) (*core.Controller, error) {
		return core.NewController(ctx, core.ControllerConfig{
			Session:   session,
			Transport: g.srv.Transport,
			Emulator:  g.stream,
			Container: g.window,
			Theme:     g.resolveTheme(),
			Events:    g.srv.Events,
		})
	}, log)

	if c, ok := g.srv.Transport.(connector); ok {
		if err := c.Connect(ctx); err != nil {
			return fmt.Errorf("connect: %w", err)
		}
	}

	var themes <-chan schema.Theme
	if g.srv.Themes != nil {
		ch, cancel := g.srv.Themes.Subscribe(g.user)
		defer cancel()
		themes = ch
	}

	ctrl, err := host.Mount(g.target)
	if ctrl == nil {
		return err
	}
	if err != nil {
		log.Warn("ssh session mount failed", "err", err)
	}
	defer g.finish(host)

	inputDone := make(chan error, 1)
	go func() {
		inputDone <- g.stream.Run(ctx)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-inputDone:
			if errors.Is(err, emulator.ErrDetached) {
				log.Info("ssh session detached")
				return nil
			}
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		case win, ok := <-winCh:
			if !ok {
				winCh = nil
				continue
			}
			g.window.set(win)
			host.Resize()
			log.Debug("ssh session resize", "cols", win.Width, "rows", win.Height)
		case th, ok := <-themes:
			if !ok {
				themes = nil
				continue
			}
			host.ApplyTheme(th)
		}
	}
}

func (g *gatewaySession) finish(host *core.Host) {
	host.Unmount()
	_ = g.stream.ResetTheme()
	_, _ = fmt.Fprintf(g.stream, "\r\n[detached from %s]\r\n", g.target.Room)
}
