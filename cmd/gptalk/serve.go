package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"gptalk/internal/adapter/channel"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the Slack Events API over HTTP",
	Long: `Starts an HTTP server exposing POST /slack/events for the Slack Events API
and GET /healthz. Requests are processed before Slack is answered.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		a, err := initApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.cleanup()

		addr := a.cfg.Server.Addr
		if serveAddr != "" {
			addr = serveAddr
		}
		handler := channel.NewEventsHandler(a.router, a.budget, a.log)
		srv := channel.NewEventsServer(addr, handler.Routes(), a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.log)
		if err := srv.Start(ctx); err != nil {
			return err
		}

		<-ctx.Done()
		a.log.Info("shutting down")

		shutdownCtx, stop := context.WithTimeout(context.Background(), 30*time.Second)
		defer stop()
		return srv.Stop(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	rootCmd.AddCommand(serveCmd)
}
