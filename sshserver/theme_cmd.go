package sshserver

import (
	"errors"
	"fmt"
	"io"

	gliderssh "github.com/gliderlabs/ssh"

	"pkt.systems/consoleshell/internal/theme"
	"pkt.systems/consoleshell/schema"
	"pkt.systems/pslog"
)

// themeCommand is the SSH command that manages the caller's theme instead of
// joining a room: "ssh host theme" lists, "ssh host theme nord" sets.
const themeCommand = "theme"

func (s *Server) handleThemeCommand(sess gliderssh.Session, log pslog.Logger, userID schema.UserID, args []string) {
	status := 0
	if err := s.runThemeCommand(sess, userID, args); err != nil {
		log.Info("ssh theme command failed", "err", err)
		_, _ = fmt.Fprintf(sess.Stderr(), "%v\n", err)
		status = 1
	}
	_ = sess.Exit(status)
}

func (s *Server) runThemeCommand(out io.Writer, userID schema.UserID, args []string) error {
	if s.Themes == nil {
		return errors.New("themes are not available")
	}
	switch len(args) {
	case 0:
		current := s.Themes.Preferred(userID)
		for _, name := range theme.Names() {
			marker := " "
			if name == current {
				marker = "*"
			}
			if _, err := fmt.Fprintf(out, "%s %s\n", marker, name); err != nil {
				return err
			}
		}
		return nil
	case 1:
		selected, err := s.Themes.Set(userID, args[0])
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "theme set to %s\n", selected.Name)
		return err
	default:
		return errors.New("usage: theme [name]")
	}
}
