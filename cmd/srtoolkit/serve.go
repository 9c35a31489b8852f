package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/henrybloomingdale/srtoolkit/internal/dashboard"
)

var flagAddr string

func init() {
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "Listen address (default server.addr)")
}

// serveCmd runs the dashboard until interrupted.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web dashboard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}

		addr := flagAddr
		if addr == "" {
			addr = appConfig.Server.Addr
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := dashboard.New(svc, dashboard.Options{
			Logger:    appLogger,
			StartYear: appConfig.Trend.StartYear,
		})
		return srv.Start(ctx, addr)
	},
}

// configCmd prints the effective configuration with secrets masked.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(appConfig.Redacted()); err != nil {
			return err
		}
		return enc.Close()
	},
}
