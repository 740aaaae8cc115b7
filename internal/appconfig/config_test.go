package appconfig

import "testing"

func TestDefaultConfig(t *testing.T) {
	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Socket.JoinTimeoutSeconds != 0 {
		t.Fatalf("expected join timeout to default off")
	}
	if cfg.Terminal.DetachKey != "ctrl-]" {
		t.Fatalf("unexpected detach key %q", cfg.Terminal.DetachKey)
	}
}

func TestParseDetachKey(t *testing.T) {
	cases := []struct {
		in      string
		want    byte
		wantErr bool
	}{
		{"ctrl-]", 0x1d, false},
		{"Ctrl-Q", 0x11, false},
		{"^a", 0x01, false},
		{"c-\\", 0x1c, false},
		{"none", 0, false},
		{"", 0, false},
		{"alt-x", 0, true},
		{"ctrl-1", 0, true},
		{"ctrl-ab", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseDetachKey(tc.in)
		if (err != nil) != tc.wantErr {
			t.Fatalf("%q: unexpected err %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("%q: want %#x, got %#x", tc.in, tc.want, got)
		}
	}
}
