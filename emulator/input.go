// Package emulator provides terminal emulators a session controller can drive:
// Stream renders onto a real terminal, Buffer keeps output in memory.
package emulator

import (
	"sort"
	"sync"
)

// inputHandlers fans user input out to subscribed handlers.
type inputHandlers struct {
	mu       sync.Mutex
	next     int
	handlers map[int]func(string)
}

func (h *inputHandlers) add(fn func(string)) func() {
	if fn == nil {
		return func() {}
	}
	h.mu.Lock()
	if h.handlers == nil {
		h.handlers = make(map[int]func(string))
	}
	id := h.next
	h.next++
	h.handlers[id] = fn
	h.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.handlers, id)
			h.mu.Unlock()
		})
	}
}

func (h *inputHandlers) emit(text string) int {
	if text == "" {
		return 0
	}
	h.mu.Lock()
	ids := make([]int, 0, len(h.handlers))
	for id := range h.handlers {
		ids = append(ids, id)
	}
	fns := make([]func(string), 0, len(ids))
	sort.Ints(ids)
	for _, id := range ids {
		fns = append(fns, h.handlers[id])
	}
	h.mu.Unlock()
	for _, fn := range fns {
		fn(text)
	}
	return len(fns)
}
