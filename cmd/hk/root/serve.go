package root

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"homekeep/internal/api"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP/JSON API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc, _, cleanup, err := openService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			if addr == "" {
				addr = cfg.Server.Addr
			}
			srv := api.NewServer(svc, api.Options{Logger: logger, JWTKey: cfg.Server.JWTKey})
			return srv.Run(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default server.addr)")

	return cmd
}
