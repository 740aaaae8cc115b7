package emulator

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"testing/iotest"

	"pkt.systems/consoleshell/internal/theme"
	"pkt.systems/consoleshell/schema"
)

func TestBufferRetainsTail(t *testing.T) {
	buf := NewBuffer(8)
	_, _ = buf.Write([]byte("hello "))
	_, _ = buf.Write([]byte("world"))
	if got := buf.String(); got != "lo world" {
		t.Fatalf("unexpected tail %q", got)
	}
	if buf.Written() != 11 || buf.Writes() != 2 {
		t.Fatalf("unexpected counters written=%d writes=%d", buf.Written(), buf.Writes())
	}
}

func TestBufferTextStripsEscapes(t *testing.T) {
	buf := NewBuffer(0)
	_, _ = buf.Write([]byte("\x1b[32mgreen\x1b[0m $ "))
	if got := buf.Text(); got != "green $ " {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestBufferTypeAndCancel(t *testing.T) {
	buf := NewBuffer(0)
	var got []string
	cancel := buf.OnInput(func(text string) { got = append(got, text) })
	if n := buf.Type("ls\n"); n != 1 {
		t.Fatalf("expected one subscriber, got %d", n)
	}
	cancel()
	cancel()
	if n := buf.Type("pwd\n"); n != 0 {
		t.Fatalf("expected no subscribers, got %d", n)
	}
	if len(got) != 1 || got[0] != "ls\n" {
		t.Fatalf("unexpected input %q", got)
	}
}

func TestThemeSequence(t *testing.T) {
	seq, err := ThemeSequence(theme.Default())
	if err != nil {
		t.Fatalf("sequence: %v", err)
	}
	for _, want := range []string{
		"\x1b]4;0;rgb:7d/8b/8f\x1b\\",
		"\x1b]4;15;rgb:d2/d8/d9\x1b\\",
		"\x1b]10;rgb:d2/d8/d9\x1b\\",
		"\x1b]11;rgb:2b/2d/2e\x1b\\",
	} {
		if !strings.Contains(seq, want) {
			t.Fatalf("sequence missing %q", want)
		}
	}
	bad := theme.Default()
	bad.Red = "nope"
	if _, err := ThemeSequence(bad); err == nil {
		t.Fatalf("expected error for invalid colour")
	}
}

func TestStreamSetThemeAndReset(t *testing.T) {
	var out bytes.Buffer
	s := NewStream(strings.NewReader(""), &out)
	if err := s.ResetTheme(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("reset without theme should write nothing")
	}
	if err := s.SetTheme(theme.Default()); err != nil {
		t.Fatalf("set theme: %v", err)
	}
	if err := s.ResetTheme(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if !strings.HasSuffix(out.String(), ResetThemeSequence()) {
		t.Fatalf("expected reset sequence at end")
	}

	var plain bytes.Buffer
	off := NewStream(strings.NewReader(""), &plain, WithThemeSequences(false))
	if err := off.SetTheme(theme.Default()); err != nil {
		t.Fatalf("set theme: %v", err)
	}
	if plain.Len() != 0 {
		t.Fatalf("expected no output when theming disabled")
	}
}

func TestStreamRunDeliversInputUntilEOF(t *testing.T) {
	s := NewStream(strings.NewReader("ls\n"), io.Discard)
	var mu sync.Mutex
	var got strings.Builder
	s.OnInput(func(text string) {
		mu.Lock()
		got.WriteString(text)
		mu.Unlock()
	})
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got.String() != "ls\n" {
		t.Fatalf("unexpected input %q", got.String())
	}
}

func TestStreamRunDetach(t *testing.T) {
	s := NewStream(strings.NewReader("ab\x1dcd"), io.Discard)
	var got []string
	s.OnInput(func(text string) { got = append(got, text) })
	if err := s.Run(context.Background()); !errors.Is(err, ErrDetached) {
		t.Fatalf("expected ErrDetached, got %v", err)
	}
	if len(got) != 1 || got[0] != "ab" {
		t.Fatalf("unexpected input %q", got)
	}

	custom := NewStream(strings.NewReader("\x1d"), io.Discard, WithDetachKey(0))
	var raw []string
	custom.OnInput(func(text string) { raw = append(raw, text) })
	if err := custom.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(raw) != 1 || raw[0] != "\x1d" {
		t.Fatalf("expected detach key passed through, got %q", raw)
	}
}

type chunkReader struct {
	chunks [][]byte
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	r.chunks = r.chunks[1:]
	return n, nil
}

func TestStreamRunJoinsSplitRunes(t *testing.T) {
	cases := []struct {
		name   string
		in     io.Reader
		detach bool
		want   []string
	}{
		{name: "two-byte rune split", in: iotest.OneByteReader(strings.NewReader("é")), want: []string{"é"}},
		{name: "ascii then split rune", in: &chunkReader{chunks: [][]byte{[]byte("a\xe2\x82"), []byte("\xacb")}}, want: []string{"a", "€b"}},
		{name: "partial rune flushed at eof", in: &chunkReader{chunks: [][]byte{[]byte("x\xf0\x9f")}}, want: []string{"x", "\xf0\x9f"}},
		{name: "invalid lead byte not held", in: &chunkReader{chunks: [][]byte{[]byte("\xc3"), []byte("a")}}, want: []string{"\xc3a"}},
		{name: "partial rune flushed on detach", in: &chunkReader{chunks: [][]byte{[]byte("\xc3"), []byte("\x1d")}}, detach: true, want: []string{"\xc3"}},
	}
	for _, tc := range cases {
		s := NewStream(tc.in, io.Discard)
		var got []string
		s.OnInput(func(text string) { got = append(got, text) })
		err := s.Run(context.Background())
		if tc.detach {
			if !errors.Is(err, ErrDetached) {
				t.Fatalf("%s: expected ErrDetached, got %v", tc.name, err)
			}
		} else if err != nil {
			t.Fatalf("%s: run: %v", tc.name, err)
		}
		if strings.Join(got, "|") != strings.Join(tc.want, "|") || len(got) != len(tc.want) {
			t.Fatalf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestStreamResizeRecordsGeometry(t *testing.T) {
	s := NewStream(strings.NewReader(""), io.Discard)
	if err := s.Resize(schema.Geometry{Rows: 40, Cols: 120}); err != nil {
		t.Fatalf("resize: %v", err)
	}
	if got := s.Geometry(); got.Rows != 40 || got.Cols != 120 {
		t.Fatalf("unexpected geometry %+v", got)
	}
}
