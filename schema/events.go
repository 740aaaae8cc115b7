package schema

const (
	// WireEventOutput carries interpreter output to the emulator.
	WireEventOutput = "stdo"
	// WireEventCommand carries user input to the interpreter.
	WireEventCommand = "command"
)

// SessionState is the lifecycle state of a terminal session controller.
type SessionState int

const (
	// StateUninitialized is the state before mount.
	StateUninitialized SessionState = iota
	// StateJoining is entered on mount, before the join is acknowledged.
	StateJoining
	// StateJoined accepts input and output.
	StateJoined
	// StateErrored is entered on join rejection or transport loss.
	StateErrored
	// StateLeft is terminal.
	StateLeft
)

func (s SessionState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateJoining:
		return "joining"
	case StateJoined:
		return "joined"
	case StateErrored:
		return "errored"
	case StateLeft:
		return "left"
	default:
		return "unknown"
	}
}

// StateEvent reports a session state transition.
type StateEvent struct {
	SessionID SessionID
	UserID    UserID
	Room      Room
	From      SessionState
	To        SessionState
	Err       error
}

// ThemeEvent reports a changed theme preference.
type ThemeEvent struct {
	UserID UserID
	Theme  Theme
}
