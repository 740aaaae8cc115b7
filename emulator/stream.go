package emulator

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"unicode/utf8"

	"pkt.systems/consoleshell/schema"
	"pkt.systems/pslog"
)

// DefaultDetachKey is Ctrl-].
const DefaultDetachKey byte = 0x1d

const readChunk = 4096

// ErrDetached is returned by Run when the user pressed the detach key.
var ErrDetached = errors.New("detached")

// Stream is an emulator backed by a real terminal: output is written to out
// and keystrokes are read from in.
type Stream struct {
	in  io.Reader
	out io.Writer
	log pslog.Logger

	detachKey byte
	detach    bool
	theming   bool

	writeMu  sync.Mutex
	geometry schema.Geometry
	themed   bool

	inputs inputHandlers
}

// StreamOption configures a Stream.
type StreamOption func(*Stream)

// WithDetachKey sets the byte that ends Run with ErrDetached. Zero disables it.
func WithDetachKey(key byte) StreamOption {
	return func(s *Stream) {
		s.detachKey = key
		s.detach = key != 0
	}
}

// WithThemeSequences controls whether SetTheme emits OSC colour sequences.
func WithThemeSequences(enabled bool) StreamOption {
	return func(s *Stream) {
		s.theming = enabled
	}
}

// WithStreamLogger sets the logger.
func WithStreamLogger(logger pslog.Logger) StreamOption {
	return func(s *Stream) {
		if logger != nil {
			s.log = logger
		}
	}
}

// NewStream constructs a Stream over in and out.
func NewStream(in io.Reader, out io.Writer, opts ...StreamOption) *Stream {
	s := &Stream{
		in:        in,
		out:       out,
		log:       pslog.Ctx(context.Background()),
		detachKey: DefaultDetachKey,
		detach:    true,
		theming:   true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Write writes raw output to the terminal.
func (s *Stream) Write(p []byte) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.out.Write(p)
}

// Resize records the grid the terminal was fitted to.
func (s *Stream) Resize(geometry schema.Geometry) error {
	s.writeMu.Lock()
	s.geometry = geometry
	s.writeMu.Unlock()
	s.log.Trace("stream resize", "rows", geometry.Rows, "cols", geometry.Cols)
	return nil
}

// Geometry returns the last applied grid.
func (s *Stream) Geometry() schema.Geometry {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.geometry
}

// SetTheme recolours the terminal.
func (s *Stream) SetTheme(t schema.Theme) error {
	if !s.theming {
		return nil
	}
	seq, err := ThemeSequence(t)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := io.WriteString(s.out, seq); err != nil {
		return err
	}
	s.themed = true
	return nil
}

// ResetTheme restores the terminal's colours if SetTheme changed them.
func (s *Stream) ResetTheme() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if !s.themed {
		return nil
	}
	s.themed = false
	_, err := io.WriteString(s.out, ResetThemeSequence())
	return err
}

// OnInput subscribes fn to keystrokes. The returned func cancels it.
func (s *Stream) OnInput(fn func(string)) func() {
	return s.inputs.add(fn)
}

// Run reads keystrokes until the input ends, ctx is done or the detach key
// is pressed. Input read before the detach key is still delivered. A UTF-8
// sequence split across reads is held back until it completes.
func (s *Stream) Run(ctx context.Context) error {
	buf := make([]byte, readChunk)
	var pending []byte
	flush := func() {
		if len(pending) > 0 && ctx.Err() == nil {
			s.inputs.emit(string(pending))
		}
		pending = nil
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := s.in.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			detached := false
			if s.detach {
				if i := bytes.IndexByte(chunk, s.detachKey); i >= 0 {
					chunk = chunk[:i]
					detached = true
				}
			}
			pending = append(pending, chunk...)
			if detached {
				flush()
				s.log.Debug("stream detach")
				return ErrDetached
			}
			complete, rest := splitIncompleteRune(pending)
			if len(complete) > 0 && ctx.Err() == nil {
				s.inputs.emit(string(complete))
			}
			pending = append([]byte(nil), rest...)
		}
		if err != nil {
			flush()
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// splitIncompleteRune separates a trailing partial UTF-8 sequence from p.
func splitIncompleteRune(p []byte) (complete, rest []byte) {
	for i := len(p) - 1; i >= 0 && i >= len(p)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(p[i]) {
			continue
		}
		if utf8.FullRune(p[i:]) {
			return p, nil
		}
		return p[:i], p[i:]
	}
	return p, nil
}
