package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"pkt.systems/consoleshell/internal/version"
	"pkt.systems/consoleshell/transport"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and channel protocol information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printVersion(cmd.OutOrStdout())
		},
	}
}

// printVersion reports the build and the socket vsn values it can speak,
// default first.
func printVersion(w io.Writer) error {
	_, err := fmt.Fprintf(w, "%s %s\nchannel protocol vsn %s (default), %s\n",
		version.Module(), version.Current(), transport.VersionV2, transport.VersionV1)
	return err
}
