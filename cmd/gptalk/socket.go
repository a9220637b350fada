package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"gptalk/internal/adapter/channel"
)

var socketCmd = &cobra.Command{
	Use:   "socket",
	Short: "Receive Slack events over Socket Mode",
	Long:  `Connects to Slack with the app-level token and processes events without a public endpoint.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		a, err := initApp(ctx, true)
		if err != nil {
			return err
		}
		defer a.cleanup()

		runner := channel.NewSocketRunner(a.gateway.Client(), a.router, a.budget, a.log)
		err = runner.Run(ctx)
		a.log.Info("socket mode stopped")
		return err
	},
}

func init() {
	rootCmd.AddCommand(socketCmd)
}
