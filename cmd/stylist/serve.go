package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	configx "github.com/tanpawarit/ali-stylist-agent/pkg/config"
	"github.com/tanpawarit/ali-stylist-agent/server"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP and websocket API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			httpCfg, err := configx.New[server.Config]("HTTP")
			if err != nil {
				return err
			}
			if addr != "" {
				httpCfg.Addr = addr
			}

			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			return server.New(a.orch, *httpCfg).Run(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides HTTP_ADDR)")
	return cmd
}
