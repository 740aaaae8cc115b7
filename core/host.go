package core

import (
	"context"
	"sync"

	"pkt.systems/consoleshell/schema"
	"pkt.systems/pslog"
)

// ControllerFactory builds an unmounted controller for a session.
type ControllerFactory func(session schema.Session) (*Controller, error)

// Host owns at most one live controller, the way a view owns the terminal
// it renders. Mounting a session for another target disposes the current
// controller before the next one is created, so two channels never write
// into the same emulator.
type Host struct {
	factory ControllerFactory
	log     pslog.Logger

	mu      sync.Mutex
	current *Controller
}

// NewHost constructs a host.
func NewHost(factory ControllerFactory, logger pslog.Logger) *Host {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Host{factory: factory, log: logger}
}

// Mount shows session. Mounting the target already shown is a no-op.
func (h *Host) Mount(session schema.Session) (*Controller, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current != nil {
		if h.current.Session().SameTarget(session) && h.current.State() != schema.StateLeft {
			return h.current, nil
		}
		prev := h.current.Session()
		h.current.Dispose()
		h.current = nil
		h.log.Debug("host session replaced", "from_room", prev.Room, "to_room", session.Room)
	}
	ctrl, err := h.factory(session)
	if err != nil {
		h.log.Warn("host session create failed", "room", session.Room, "err", err)
		return nil, err
	}
	h.current = ctrl
	return ctrl, ctrl.Mount()
}

// Current returns the mounted controller, or nil.
func (h *Host) Current() *Controller {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// Resize refits the mounted controller.
func (h *Host) Resize() {
	if ctrl := h.Current(); ctrl != nil {
		if _, err := ctrl.Resize(); err != nil {
			h.log.Debug("host resize failed", "err", err)
		}
	}
}

// ApplyTheme recolours the mounted controller.
func (h *Host) ApplyTheme(theme schema.Theme) {
	if ctrl := h.Current(); ctrl != nil {
		_ = ctrl.ApplyTheme(theme)
	}
}

// Unmount disposes the mounted controller.
func (h *Host) Unmount() {
	h.mu.Lock()
	ctrl := h.current
	h.current = nil
	h.mu.Unlock()
	if ctrl != nil {
		ctrl.Dispose()
	}
}
