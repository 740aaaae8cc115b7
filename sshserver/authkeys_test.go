package sshserver

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/ssh"

	"pkt.systems/consoleshell/internal/eventbus"
	"pkt.systems/consoleshell/internal/prefs"
	"pkt.systems/consoleshell/internal/theme"
	"pkt.systems/consoleshell/schema"
)

func newTestSigner(t *testing.T) ssh.Signer {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	return signer
}

func authorizedLine(key ssh.PublicKey, comment string) string {
	line := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(key)))
	if comment != "" {
		line += " " + comment
	}
	return line + "\n"
}

func TestAuthorizedKeysFile(t *testing.T) {
	alice := newTestSigner(t)
	shared := newTestSigner(t)
	stranger := newTestSigner(t)

	path := filepath.Join(t.TempDir(), "authorized_keys")
	content := "# consoleshell keys\n\n" +
		authorizedLine(alice.PublicKey(), "user=alice") +
		authorizedLine(shared.PublicKey(), "ops@example") +
		"# trailing comment\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write keys: %v", err)
	}
	keys := AuthorizedKeysFile{Path: path}

	cases := []struct {
		name string
		user string
		key  ssh.PublicKey
		want bool
	}{
		{"restricted key for its user", "alice", alice.PublicKey(), true},
		{"restricted key for another user", "bob", alice.PublicKey(), false},
		{"shared key", "bob", shared.PublicKey(), true},
		{"unknown key", "alice", stranger.PublicKey(), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := keys.Authorized(schemaUser(tc.user), tc.key)
			if err != nil {
				t.Fatalf("authorized: %v", err)
			}
			if got != tc.want {
				t.Fatalf("want %v, got %v", tc.want, got)
			}
		})
	}
}

func TestAuthorizedKeysMissingFile(t *testing.T) {
	keys := AuthorizedKeysFile{Path: filepath.Join(t.TempDir(), "missing")}
	ok, err := keys.Authorized("alice", newTestSigner(t).PublicKey())
	if err != nil || ok {
		t.Fatalf("expected rejection without error, got %v %v", ok, err)
	}
	if _, err := (AuthorizedKeysFile{}).Authorized("alice", newTestSigner(t).PublicKey()); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestAuthorizedKeysMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "authorized_keys")
	if err := os.WriteFile(path, []byte("not a key\n"), 0o600); err != nil {
		t.Fatalf("write keys: %v", err)
	}
	if _, err := (AuthorizedKeysFile{Path: path}).Authorized("alice", newTestSigner(t).PublicKey()); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestEnsureHostKeyPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "ssh_host_key")
	first, err := EnsureHostKey(path)
	if err != nil {
		t.Fatalf("ensure host key: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected 0600, got %v", info.Mode().Perm())
	}
	second, err := EnsureHostKey(path)
	if err != nil {
		t.Fatalf("reload host key: %v", err)
	}
	if ssh.FingerprintSHA256(first.PublicKey()) != ssh.FingerprintSHA256(second.PublicKey()) {
		t.Fatalf("host key changed on reload")
	}
	if _, err := EnsureHostKey(" "); err == nil {
		t.Fatalf("expected error for empty path")
	}
	if err := os.Chmod(path, 0o644); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	if _, err := EnsureHostKey(path); err == nil {
		t.Fatalf("expected world-readable host key to be refused")
	}
}

func TestParseTarget(t *testing.T) {
	cases := []struct {
		args        []string
		def         string
		wantRoom    string
		wantCommand string
	}{
		{nil, "", "", ""},
		{nil, "lobby", "lobby", ""},
		{[]string{"shell-1"}, "lobby", "shell-1", ""},
		{[]string{"shell-1", "top", "-d", "1"}, "", "shell-1", "top -d 1"},
	}
	for _, tc := range cases {
		room, command := parseTarget(tc.args, tc.def)
		if string(room) != tc.wantRoom || command != tc.wantCommand {
			t.Fatalf("%v: got %q %q", tc.args, room, command)
		}
	}
}

func TestRunThemeCommand(t *testing.T) {
	store, err := prefs.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	bus := eventbus.New(nil)
	events, cancel := bus.Subscribe("alice")
	defer cancel()
	srv := &Server{Themes: theme.NewResolver(store, bus, nil)}

	var out strings.Builder
	if err := srv.runThemeCommand(&out, "alice", nil); err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out.String(), "* chalk\n") {
		t.Fatalf("expected chalk marked current, got %q", out.String())
	}

	out.Reset()
	if err := srv.runThemeCommand(&out, "alice", []string{"Dracula"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if out.String() != "theme set to dracula\n" {
		t.Fatalf("unexpected output %q", out.String())
	}
	select {
	case ev := <-events:
		if ev.Type != eventbus.EventTheme || ev.Theme.Theme.Name != "dracula" {
			t.Fatalf("unexpected event %+v", ev)
		}
	default:
		t.Fatalf("expected theme event")
	}

	if err := srv.runThemeCommand(&out, "alice", []string{"neon"}); !errors.Is(err, schema.ErrUnknownTheme) {
		t.Fatalf("expected ErrUnknownTheme, got %v", err)
	}
	if err := srv.runThemeCommand(&out, "alice", []string{"a", "b"}); err == nil {
		t.Fatalf("expected usage error")
	}
}
