//go:build unix

package main

import (
	"os"

	"golang.org/x/sys/unix"

	"pkt.systems/consoleshell/schema"
)

// ttyContainer measures the controlling terminal.
type ttyContainer struct {
	fd int
}

func (t ttyContainer) Dimensions() (schema.Dimensions, error) {
	ws, err := unix.IoctlGetWinsize(t.fd, unix.TIOCGWINSZ)
	if err != nil {
		return schema.Dimensions{}, err
	}
	return schema.Dimensions{
		Cols:        int(ws.Col),
		Rows:        int(ws.Row),
		PixelWidth:  int(ws.Xpixel),
		PixelHeight: int(ws.Ypixel),
	}, nil
}

func resizeSignals() []os.Signal {
	return []os.Signal{unix.SIGWINCH}
}
