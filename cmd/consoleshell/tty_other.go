//go:build !unix

package main

import (
	"os"

	"golang.org/x/term"

	"pkt.systems/consoleshell/schema"
)

type ttyContainer struct {
	fd int
}

func (t ttyContainer) Dimensions() (schema.Dimensions, error) {
	cols, rows, err := term.GetSize(t.fd)
	if err != nil {
		return schema.Dimensions{}, err
	}
	return schema.Dimensions{Cols: cols, Rows: rows}, nil
}

func resizeSignals() []os.Signal {
	return nil
}
