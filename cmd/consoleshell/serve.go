package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/consoleshell"
	"pkt.systems/consoleshell/internal/appconfig"
	"pkt.systems/pslog"
)

func newServeCmd() *cobra.Command {
	var addr string
	var defaultRoom string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve remote rooms to SSH clients",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			cfg, err := appconfig.Load(configPath(cmd))
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.SSH.Addr = addr
			}
			if defaultRoom != "" {
				cfg.SSH.DefaultRoom = defaultRoom
			}
			console, err := consoleshell.New(cfg, consoleshell.WithLogger(logger))
			if err != nil {
				return err
			}
			server, err := consoleshell.NewServer(console)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Stop(stopCtx); err != nil {
					logger.Warn("server stop failed", "err", err)
				}
			}()
			logger.Info("ssh server listening", "addr", cfg.SSH.Addr)
			if err := server.Start(ctx); err != nil {
				return err
			}
			return server.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "ssh listen address")
	cmd.Flags().StringVar(&defaultRoom, "default-room", "", "room used when the client names none")
	return cmd
}
