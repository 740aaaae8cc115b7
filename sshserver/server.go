// Package sshserver exposes remote terminal rooms over SSH: each SSH session
// with a PTY is bridged to one channel on the shared socket.
package sshserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	gliderssh "github.com/gliderlabs/ssh"
	"golang.org/x/crypto/ssh"

	"pkt.systems/consoleshell/core"
	"pkt.systems/consoleshell/internal/logx"
	"pkt.systems/consoleshell/internal/theme"
	"pkt.systems/consoleshell/schema"
	"pkt.systems/pslog"
)

// Server bridges SSH sessions to terminal rooms.
type Server struct {
	Config    Config
	Listener  net.Listener
	Transport core.Transport
	Keys      KeyAuthorizer
	Themes    *theme.Resolver
	Events    core.StateSink
	logger    pslog.Logger
}

// ListenAndServe starts the SSH server and shuts down on context cancellation.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s.logger == nil {
		s.logger = pslog.Ctx(ctx)
	}
	if s.Transport == nil {
		return errors.New("transport is required for SSH")
	}
	if s.Keys == nil {
		return errors.New("key authorizer is required for SSH")
	}

	signer, err := EnsureHostKey(s.Config.HostKeyPath)
	if err != nil {
		return err
	}

	server := &gliderssh.Server{
		Addr:             s.Config.Addr,
		Handler:          s.handleSession,
		PublicKeyHandler: s.handlePublicKey,
	}
	server.AddHostKey(signer)

	errCh := make(chan error, 1)
	go func() {
		if s.Listener != nil {
			errCh <- server.Serve(s.Listener)
			return
		}
		errCh <- server.ListenAndServe()
	}()
	s.logger.Info("ssh gateway listening", "addr", s.listenAddr(), "fingerprint", ssh.FingerprintSHA256(signer.PublicKey()))

	select {
	case <-ctx.Done():
		_ = server.Close()
		return nil
	case err := <-errCh:
		if errors.Is(err, gliderssh.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) listenAddr() string {
	if s.Listener != nil {
		return s.Listener.Addr().String()
	}
	return s.Config.Addr
}

func (s *Server) handlePublicKey(ctx gliderssh.Context, key gliderssh.PublicKey) bool {
	log := s.logger
	if log == nil {
		log = pslog.Ctx(ctx)
	}
	fingerprint := ssh.FingerprintSHA256(key)
	remote := remoteAddr(ctx)
	userID := schema.UserID(ctx.User())
	if userID == "" {
		log.Warn("ssh pubkey rejected", "reason", "missing user", "remote", remote, "fingerprint", fingerprint)
		return false
	}
	log = log.With("user", userID, "remote", remote, "fingerprint", fingerprint)
	ok, err := s.Keys.Authorized(userID, key)
	if err != nil {
		log.Warn("ssh pubkey rejected", "err", err)
		return false
	}
	if !ok {
		log.Warn("ssh pubkey rejected", "reason", "no matching key")
		return false
	}
	log.Info("ssh pubkey accepted")
	return true
}

func remoteAddr(ctx gliderssh.Context) string {
	if ctx == nil || ctx.RemoteAddr() == nil {
		return ""
	}
	return ctx.RemoteAddr().String()
}

// parseTarget maps the SSH command line to a room and an optional initial
// command: "ssh host shell-1 top -d 1" joins shell-1 running "top -d 1".
func parseTarget(args []string, defaultRoom string) (schema.Room, string) {
	if len(args) == 0 {
		return schema.Room(strings.TrimSpace(defaultRoom)), ""
	}
	room := schema.Room(strings.TrimSpace(args[0]))
	command := strings.TrimSpace(strings.Join(args[1:], " "))
	return room, command
}

func (s *Server) handleSession(sess gliderssh.Session) {
	log := s.logger
	if log == nil {
		log = pslog.Ctx(sess.Context())
	}
	userID := schema.UserID(sess.User())
	remote := sess.RemoteAddr().String()
	if userID == "" {
		log.Info("ssh session rejected", "reason", "missing user", "remote", remote)
		_, _ = io.WriteString(sess, "missing user\n")
		_ = sess.Exit(1)
		return
	}
	log = log.With("user", userID, "remote", remote)
	if sshSession := sess.Context().SessionID(); sshSession != "" {
		log = log.With("ssh_session", sshSession)
	}

	if args := sess.Command(); len(args) > 0 && args[0] == themeCommand {
		s.handleThemeCommand(sess, log, userID, args[1:])
		return
	}

	pty, winCh, ok := sess.Pty()
	if !ok {
		log.Info("ssh session rejected", "reason", "pty required")
		_, _ = io.WriteString(sess, "pty required\n")
		_ = sess.Exit(1)
		return
	}
	room, command := parseTarget(sess.Command(), s.Config.DefaultRoom)
	if room == "" {
		log.Info("ssh session rejected", "reason", "missing room")
		_, _ = io.WriteString(sess, "usage: ssh <host> <room> [command...]\n")
		_ = sess.Exit(2)
		return
	}
	log = log.With("room", room)
	ctx := logx.ContextWithUserLogger(sess.Context(), log, userID)
	ctx = logx.ContextWithRoom(ctx, room)

	log.Info("ssh session opened", "term", pty.Term, "cols", pty.Window.Width, "rows", pty.Window.Height)
	gs := newGatewaySession(s, sess, userID, schema.Session{
		User:           userID,
		Room:           room,
		InitialCommand: command,
		Header:         s.Config.Header,
	}, pty.Window)
	status := 0
	if err := gs.Run(ctx, winCh); err != nil {
		log.Warn("ssh session failed", "err", err)
		_, _ = fmt.Fprintf(sess, "\r\nconsoleshell: %v\r\n", err)
		status = 1
	}
	_ = sess.Exit(status)
	log.Info("ssh session closed", "term", pty.Term)
}
