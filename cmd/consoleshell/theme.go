package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"pkt.systems/consoleshell"
	"pkt.systems/consoleshell/internal/appconfig"
	"pkt.systems/consoleshell/internal/theme"
	"pkt.systems/consoleshell/schema"
	"pkt.systems/pslog"
)

func newThemeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "theme",
		Short: "List or change the terminal theme",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List themes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			console, err := loadConsole(cmd)
			if err != nil {
				return err
			}
			user := schema.UserID(console.Config().User)
			return listThemes(cmd.OutOrStdout(), console.Themes().Preferred(user))
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Print the preferred theme",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			console, err := loadConsole(cmd)
			if err != nil {
				return err
			}
			user := schema.UserID(console.Config().User)
			_, err = fmt.Fprintln(cmd.OutOrStdout(), console.Themes().Preferred(user))
			return err
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set <name>",
		Short: "Store the preferred theme",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			console, err := loadConsole(cmd)
			if err != nil {
				return err
			}
			user := schema.UserID(console.Config().User)
			th, err := console.Themes().Set(user, args[0])
			if err != nil {
				return err
			}
			pslog.Ctx(cmd.Context()).Info("theme set", "user", user, "theme", th.Name)
			return nil
		},
	})
	return cmd
}

func listThemes(w io.Writer, current schema.ThemeName) error {
	for _, name := range theme.Names() {
		mark := " "
		if name == current {
			mark = "*"
		}
		if _, err := fmt.Fprintf(w, "%s %s\n", mark, name); err != nil {
			return err
		}
	}
	return nil
}

func loadConsole(cmd *cobra.Command) (*consoleshell.Console, error) {
	cfg, err := appconfig.Load(configPath(cmd))
	if err != nil {
		return nil, err
	}
	return consoleshell.New(cfg, consoleshell.WithLogger(pslog.Ctx(cmd.Context())))
}
