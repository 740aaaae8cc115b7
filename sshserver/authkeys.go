package sshserver

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/ssh"

	"pkt.systems/consoleshell/schema"
)

// KeyAuthorizer decides whether a public key may open sessions for a user.
type KeyAuthorizer interface {
	Authorized(userID schema.UserID, key ssh.PublicKey) (bool, error)
}

// AuthorizedKeysFile authorizes keys listed in an OpenSSH authorized_keys
// file. The file is read on every check so edits apply without a restart.
// A key whose comment is "user=<name>" is limited to that user.
type AuthorizedKeysFile struct {
	Path string
}

// Authorized implements KeyAuthorizer.
func (f AuthorizedKeysFile) Authorized(userID schema.UserID, key ssh.PublicKey) (bool, error) {
	if strings.TrimSpace(f.Path) == "" {
		return false, errors.New("authorized keys path is required")
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read authorized keys: %w", err)
	}
	return authorizedIn(data, userID, key)
}

func authorizedIn(data []byte, userID schema.UserID, key ssh.PublicKey) (bool, error) {
	want := key.Marshal()
	rest := data
	for !onlyComments(rest) {
		pub, comment, _, next, err := ssh.ParseAuthorizedKey(rest)
		if err != nil {
			return false, fmt.Errorf("parse authorized keys: %w", err)
		}
		rest = next
		if !bytes.Equal(pub.Marshal(), want) {
			continue
		}
		if restricted, ok := strings.CutPrefix(comment, "user="); ok && restricted != string(userID) {
			continue
		}
		return true, nil
	}
	return false, nil
}

func onlyComments(data []byte) bool {
	for _, line := range bytes.Split(data, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) > 0 && line[0] != '#' {
			return false
		}
	}
	return true
}
