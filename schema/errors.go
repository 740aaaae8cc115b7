package schema

import "errors"

var (
	// ErrInvalidRoom indicates an empty or malformed room identifier.
	ErrInvalidRoom = errors.New("invalid room")
	// ErrInvalidUser indicates an invalid user identifier.
	ErrInvalidUser = errors.New("invalid user")
	// ErrUnknownTheme indicates a theme key outside the supported set.
	ErrUnknownTheme = errors.New("unknown theme")
	// ErrSessionMounted indicates a controller was mounted twice.
	ErrSessionMounted = errors.New("session already mounted")
)
