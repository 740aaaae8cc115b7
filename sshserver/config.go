package sshserver

// Config defines SSH gateway settings.
type Config struct {
	Addr               string
	HostKeyPath        string
	AuthorizedKeysPath string
	// DefaultRoom is joined when the client runs no command.
	DefaultRoom string
	Header      string
	DetachKey   byte
	OSCThemes   bool
}
