package consoleshell

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"pkt.systems/consoleshell/emulator"
	"pkt.systems/consoleshell/internal/appconfig"
	"pkt.systems/consoleshell/internal/phxtest"
	"pkt.systems/consoleshell/schema"
	"pkt.systems/consoleshell/transport"
)

func testConfig(t *testing.T, url string) appconfig.Config {
	t.Helper()
	dir := t.TempDir()
	cfg, err := appconfig.DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	cfg.StateDir = filepath.Join(dir, "state")
	cfg.User = "alice"
	cfg.Socket.URL = url
	cfg.Socket.HeartbeatSeconds = 0
	cfg.SSH.Addr = "127.0.0.1:0"
	cfg.SSH.HostKeyPath = filepath.Join(dir, "ssh_host_key")
	cfg.SSH.AuthorizedKeysPath = filepath.Join(dir, "authorized_keys")
	return cfg
}

func TestSocketOptionsCarryTokenParamsAndVersion(t *testing.T) {
	opts, err := SocketOptions(appconfig.SocketConfig{
		Token:  " tok ",
		Params: map[string]string{"tenant": "acme"},
		Vsn:    transport.VersionV1,
	})
	if err != nil {
		t.Fatalf("SocketOptions: %v", err)
	}
	socket, err := transport.NewSocket("ws://example.test/socket", opts...)
	if err != nil {
		t.Fatalf("NewSocket: %v", err)
	}
	endpoint := socket.EndpointURL()
	for _, want := range []string{"token=tok", "tenant=acme", "vsn=1.0.0"} {
		if !containsQuery(endpoint, want) {
			t.Fatalf("expected %q in %s", want, endpoint)
		}
	}
}

func TestSocketOptionsRejectUnknownVersion(t *testing.T) {
	if _, err := SocketOptions(appconfig.SocketConfig{Vsn: "9.9.9"}); err == nil {
		t.Fatalf("expected unknown vsn to fail")
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t, "ftp://example.test/socket")
	if _, err := New(cfg); err == nil {
		t.Fatalf("expected invalid socket url to fail")
	}
}

func TestConsoleSessionUsesConfiguredUserAndHeader(t *testing.T) {
	cfg := testConfig(t, "ws://example.test/socket")
	cfg.Terminal.Header = "welcome"
	console, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	session := console.Session("shell-1", "top")
	if session.User != "alice" || session.Room != "shell-1" || session.InitialCommand != "top" || session.Header != "welcome" {
		t.Fatalf("unexpected session %+v", session)
	}
}

func TestConsoleSSHServerMapsTerminalConfig(t *testing.T) {
	cfg := testConfig(t, "ws://example.test/socket")
	cfg.Terminal.DetachKey = "ctrl-q"
	cfg.Terminal.OSCThemes = false
	cfg.SSH.DefaultRoom = "lobby"
	console, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	srv, err := console.SSHServer()
	if err != nil {
		t.Fatalf("SSHServer: %v", err)
	}
	if srv.Config.DetachKey != 0x11 {
		t.Fatalf("expected ctrl-q detach key, got %#x", srv.Config.DetachKey)
	}
	if srv.Config.OSCThemes || srv.Config.DefaultRoom != "lobby" {
		t.Fatalf("unexpected ssh config %+v", srv.Config)
	}
	if srv.Themes != console.Themes() || srv.Transport == nil {
		t.Fatalf("expected ssh server wired to the console")
	}
}

func TestConsoleHostMountsWithPreferredTheme(t *testing.T) {
	phx := phxtest.New(t)
	cfg := testConfig(t, phx.URL())
	cfg.Socket.Token = "tok"
	sink := &recordingSink{}
	console, err := New(cfg, WithStateSink(sink))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = console.Close() })
	if _, err := console.Themes().Set("alice", "nord"); err != nil {
		t.Fatalf("set theme: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := console.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if got := phx.LastQuery().Get("token"); got != "tok" {
		t.Fatalf("expected token in upgrade query, got %q", got)
	}

	events, cancelEvents := console.Bus().Subscribe("alice")
	defer cancelEvents()

	buf := emulator.NewBuffer(0)
	host := console.NewHost(ctx, buf, nil)
	ctrl, err := host.Mount(console.Session("shell-1", ""))
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	phx.Expect("phx_join", 2*time.Second)
	if got := buf.Theme().Name; got != "nord" {
		t.Fatalf("expected nord theme, got %q", got)
	}
	waitState(t, events, schema.StateJoined)
	host.Unmount()
	if ctrl.State() != schema.StateLeft {
		t.Fatalf("expected left after unmount, got %s", ctrl.State())
	}
	if got := sink.states(); len(got) < 2 || got[0] != schema.StateJoining {
		t.Fatalf("expected state sink to see joining first, got %v", got)
	}
}

func TestConsoleHostSessionThemeOverridesPreference(t *testing.T) {
	console, err := New(testConfig(t, "ws://example.test/socket"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := console.Themes().Set("alice", "nord"); err != nil {
		t.Fatalf("set theme: %v", err)
	}
	cases := []struct {
		key  string
		want schema.ThemeName
	}{
		{key: "", want: "nord"},
		{key: "dracula", want: "dracula"},
		{key: "neon", want: schema.DefaultTheme},
	}
	for _, tc := range cases {
		buf := emulator.NewBuffer(0)
		host := console.NewHost(context.Background(), buf, nil, WithSessionTheme(tc.key))
		// The socket is not connected, so the join fails after the theme is painted.
		ctrl, _ := host.Mount(console.Session("shell-1", ""))
		if ctrl == nil {
			t.Fatalf("%q: expected a controller", tc.key)
		}
		if got := buf.Theme().Name; got != tc.want {
			t.Fatalf("%q: expected theme %q on mount, got %q", tc.key, tc.want, got)
		}
		host.Unmount()
	}
}

func TestJoinSinks(t *testing.T) {
	if joinSinks(nil, nil) != nil {
		t.Fatalf("expected nil for no sinks")
	}
	only := &recordingSink{}
	if joinSinks(nil, only) != only {
		t.Fatalf("expected single sink returned as is")
	}
	other := &recordingSink{}
	fan := joinSinks(only, nil, other)
	fan.OnState(schema.StateEvent{From: schema.StateJoining, To: schema.StateJoined})
	if len(only.states()) != 1 || len(other.states()) != 1 {
		t.Fatalf("expected both sinks to receive the event")
	}
}

type recordingSink struct {
	mu     sync.Mutex
	events []schema.StateEvent
}

func (r *recordingSink) OnState(event schema.StateEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingSink) states() []schema.SessionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]schema.SessionState, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.To)
	}
	return out
}
