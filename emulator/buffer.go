package emulator

import (
	"sync"

	"github.com/charmbracelet/x/ansi"

	"pkt.systems/consoleshell/schema"
)

// DefaultBufferSize bounds the bytes a Buffer retains.
const DefaultBufferSize = 1024 * 1024

// Buffer is an in-memory emulator. It retains the most recent output bytes,
// the applied grid and theme, and lets callers inject keystrokes with Type.
// All methods are safe for concurrent use.
type Buffer struct {
	mu       sync.Mutex
	data     []byte
	capacity int
	written  uint64
	writes   int
	geometry schema.Geometry
	resizes  int
	theme    schema.Theme
	inputs   inputHandlers
}

// NewBuffer creates a buffer retaining up to capacity bytes.
// A non-positive capacity uses DefaultBufferSize.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultBufferSize
	}
	return &Buffer{capacity: capacity}
}

// Write appends output, dropping the oldest bytes beyond capacity.
func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = append(b.data, p...)
	if over := len(b.data) - b.capacity; over > 0 {
		b.data = append(b.data[:0], b.data[over:]...)
	}
	b.written += uint64(len(p))
	b.writes++
	return len(p), nil
}

// Resize records the grid.
func (b *Buffer) Resize(geometry schema.Geometry) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.geometry = geometry
	b.resizes++
	return nil
}

// SetTheme records the theme.
func (b *Buffer) SetTheme(t schema.Theme) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.theme = t
	return nil
}

// OnInput subscribes fn to typed input. The returned func cancels it.
func (b *Buffer) OnInput(fn func(string)) func() {
	return b.inputs.add(fn)
}

// Type delivers text to input subscribers as one keystroke event and
// reports how many subscribers received it.
func (b *Buffer) Type(text string) int {
	return b.inputs.emit(text)
}

// String returns the retained raw output.
func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.data)
}

// Text returns the retained output without escape sequences.
func (b *Buffer) Text() string {
	return ansi.Strip(b.String())
}

// Written returns the total number of bytes ever written.
func (b *Buffer) Written() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.written
}

// Writes returns the number of Write calls.
func (b *Buffer) Writes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writes
}

// Geometry returns the last applied grid and how many times it was applied.
func (b *Buffer) Geometry() (schema.Geometry, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.geometry, b.resizes
}

// Theme returns the last applied theme.
func (b *Buffer) Theme() schema.Theme {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.theme
}
