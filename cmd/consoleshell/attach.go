package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"pkt.systems/consoleshell"
	"pkt.systems/consoleshell/emulator"
	"pkt.systems/consoleshell/internal/appconfig"
	"pkt.systems/consoleshell/internal/eventbus"
	"pkt.systems/consoleshell/schema"
	"pkt.systems/pslog"
)

func newAttachCmd() *cobra.Command {
	var command string
	var header string
	var themeKey string
	cmd := &cobra.Command{
		Use:   "attach <room>",
		Short: "Attach this terminal to a remote room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appconfig.Load(configPath(cmd))
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("header") {
				cfg.Terminal.Header = header
			}
			return runAttach(cmd.Context(), cfg, attachTarget{
				room:    schema.Room(strings.TrimSpace(args[0])),
				command: command,
				theme:   themeKey,
			}, os.Stdin, os.Stdout)
		},
	}
	cmd.Flags().StringVar(&command, "command", "", "initial command sent with the join")
	cmd.Flags().StringVar(&header, "header", "", "banner printed before joining")
	cmd.Flags().StringVar(&themeKey, "theme", "", "theme for this session only")
	return cmd
}

type attachTarget struct {
	room    schema.Room
	command string
	theme   string
}

func runAttach(ctx context.Context, cfg appconfig.Config, target attachTarget, in *os.File, out *os.File) error {
	logger := pslog.Ctx(ctx)
	if target.room == "" {
		return schema.ErrInvalidRoom
	}
	detach, err := appconfig.ParseDetachKey(cfg.Terminal.DetachKey)
	if err != nil {
		return err
	}
	console, err := consoleshell.New(cfg, consoleshell.WithLogger(logger))
	if err != nil {
		return err
	}
	defer func() { _ = console.Close() }()
	if err := console.Connect(ctx); err != nil {
		return err
	}

	fd := int(in.Fd())
	if term.IsTerminal(fd) {
		state, err := term.MakeRaw(fd)
		if err != nil {
			return fmt.Errorf("raw mode: %w", err)
		}
		defer func() { _ = term.Restore(fd, state) }()
	} else {
		logger.Debug("attach stdin is not a terminal")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream := emulator.NewStream(in, out,
		emulator.WithDetachKey(detach),
		emulator.WithThemeSequences(cfg.Terminal.OSCThemes),
		emulator.WithStreamLogger(logger),
	)
	session := console.Session(target.room, target.command)
	host := console.NewHost(ctx, stream, ttyContainer{fd: int(out.Fd())}, consoleshell.WithSessionTheme(target.theme))

	events, cancelEvents := console.Bus().Subscribe(session.User)
	defer cancelEvents()

	ctrl, err := host.Mount(session)
	if ctrl == nil {
		return err
	}
	defer func() {
		host.Unmount()
		_ = stream.ResetTheme()
		_, _ = fmt.Fprintf(out, "\r\n[detached from %s]\r\n", target.room)
	}()
	if err != nil {
		return err
	}

	winch := make(chan os.Signal, 1)
	if sigs := resizeSignals(); len(sigs) > 0 {
		signal.Notify(winch, sigs...)
		defer signal.Stop(winch)
	}

	inputDone := make(chan error, 1)
	go func() {
		inputDone <- stream.Run(ctx)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-inputDone:
			if errors.Is(err, emulator.ErrDetached) {
				return nil
			}
			return err
		case <-winch:
			host.Resize()
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if done, err := handleAttachEvent(ev, ctrl.Session().ID, target.theme, host.ApplyTheme); done {
				return err
			}
		}
	}
}

// handleAttachEvent applies theme changes and reports whether the attached
// session has ended.
func handleAttachEvent(ev eventbus.Event, id schema.SessionID, pinnedTheme string, apply func(schema.Theme)) (bool, error) {
	switch ev.Type {
	case eventbus.EventTheme:
		if pinnedTheme == "" {
			apply(ev.Theme.Theme)
		}
	case eventbus.EventState:
		if ev.State.SessionID != id {
			return false, nil
		}
		if ev.State.To == schema.StateErrored {
			err := ev.State.Err
			if err == nil {
				err = errors.New("session errored")
			}
			return true, fmt.Errorf("%s: %w", ev.State.Room, err)
		}
	}
	return false, nil
}
