package theme

import (
	"context"
	"fmt"
	"strings"

	"pkt.systems/consoleshell/internal/eventbus"
	"pkt.systems/consoleshell/internal/prefs"
	"pkt.systems/consoleshell/schema"
	"pkt.systems/pslog"
)

// PrefStore is the persistence used by the resolver.
type PrefStore interface {
	Load(userID schema.UserID) (prefs.Prefs, bool, error)
	Update(userID schema.UserID, fn func(*prefs.Prefs)) (prefs.Prefs, error)
}

// Bus carries theme change notifications to subscribers.
type Bus interface {
	OnTheme(event schema.ThemeEvent)
	Subscribe(userID schema.UserID) (<-chan eventbus.Event, func())
}

// Resolver maps theme keys and persisted preferences to themes.
type Resolver struct {
	store PrefStore
	bus   Bus
	log   pslog.Logger
}

// NewResolver constructs a resolver. store and bus may be nil.
func NewResolver(store PrefStore, bus Bus, logger pslog.Logger) *Resolver {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Resolver{store: store, bus: bus, log: logger}
}

// Preferred returns the user's persisted theme name, or the default.
func (r *Resolver) Preferred(userID schema.UserID) schema.ThemeName {
	if r == nil || r.store == nil {
		return schema.DefaultTheme
	}
	p, ok, err := r.store.Load(userID)
	if err != nil {
		r.log.Warn("theme preference load failed", "user", userID, "err", err)
		return schema.DefaultTheme
	}
	if !ok || p.Theme == "" {
		return schema.DefaultTheme
	}
	name, known := schema.NormalizeThemeName(string(p.Theme))
	if !known {
		r.log.Debug("theme preference unknown", "user", userID, "theme", p.Theme)
		return schema.DefaultTheme
	}
	if _, exists := themes[name]; !exists {
		return schema.DefaultTheme
	}
	return name
}

// Resolve returns the theme for key. An empty key resolves the user's
// persisted preference. Unknown keys resolve to the default theme.
func (r *Resolver) Resolve(userID schema.UserID, key string) schema.Theme {
	if strings.TrimSpace(key) == "" {
		key = string(r.Preferred(userID))
	}
	if theme, ok := Lookup(key); ok {
		return theme
	}
	if r != nil {
		r.log.Debug("theme unknown, using default", "user", userID, "theme", key)
	}
	return Default()
}

// Set persists key as the user's preference and notifies subscribers.
func (r *Resolver) Set(userID schema.UserID, key string) (schema.Theme, error) {
	theme, ok := Lookup(key)
	if !ok {
		return schema.Theme{}, fmt.Errorf("%w: %q", schema.ErrUnknownTheme, key)
	}
	if r.store != nil {
		if _, err := r.store.Update(userID, func(p *prefs.Prefs) {
			p.Theme = theme.Name
		}); err != nil {
			r.log.Warn("theme preference save failed", "user", userID, "theme", theme.Name, "err", err)
			return schema.Theme{}, err
		}
	}
	r.log.Info("theme set", "user", userID, "theme", theme.Name)
	if r.bus != nil {
		r.bus.OnTheme(schema.ThemeEvent{UserID: userID, Theme: theme})
	}
	return theme, nil
}

// Subscribe returns the user's theme changes until cancel is called.
func (r *Resolver) Subscribe(userID schema.UserID) (<-chan schema.Theme, func()) {
	if r == nil || r.bus == nil {
		return nil, func() {}
	}
	events, cancel := r.bus.Subscribe(userID)
	out := make(chan schema.Theme, 8)
	go func() {
		defer close(out)
		for event := range events {
			if event.Type != eventbus.EventTheme {
				continue
			}
			select {
			case out <- event.Theme.Theme:
			default:
				r.log.Trace("theme event dropped", "user", userID, "theme", event.Theme.Theme.Name)
			}
		}
	}()
	return out, cancel
}
