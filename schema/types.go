package schema

// UserID identifies the principal owning local preferences.
type UserID string

// SessionID identifies one terminal session instance.
type SessionID string

// Room is the opaque channel topic addressing one remote terminal.
type Room string

// ThemeName identifies a terminal colour theme.
type ThemeName string

// Session identifies one terminal instance hosted by a controller.
type Session struct {
	ID             SessionID
	User           UserID
	Room           Room
	InitialCommand string
	Header         string
}

// SameTarget reports whether two sessions address the same remote terminal
// with the same join parameters.
func (s Session) SameTarget(other Session) bool {
	return s.Room == other.Room && s.InitialCommand == other.InitialCommand
}

// Geometry is the emulator grid measured in character cells.
type Geometry struct {
	Rows int
	Cols int
}

// Dimensions describes the container hosting an emulator. Pixel sizes are
// zero when the container cannot report them.
type Dimensions struct {
	Cols        int
	Rows        int
	PixelWidth  int
	PixelHeight int
}

// CellSize is the pixel size of one character cell.
type CellSize struct {
	Width  int
	Height int
}
