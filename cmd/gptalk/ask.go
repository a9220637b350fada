package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"gptalk/internal/domain"
	"gptalk/internal/usecase"
)

var askCmd = &cobra.Command{
	Use:   "ask <text>",
	Short: "Send one message through the completion pipeline and print the reply",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		cfg, log, cleanup, err := initInfra(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		provider, err := initLLM(ctx, cfg, log)
		if err != nil {
			return fmt.Errorf("llm: %w", err)
		}

		text := usecase.SanitizeMentions(strings.Join(args, " "))
		outcome := newCompletionClient(cfg, provider, log).Complete(ctx, domain.ConversationWindow{{Text: text}})
		fmt.Fprintln(cmd.OutOrStdout(), outcome.Text)
		if outcome.Fallback {
			return fmt.Errorf("completion failed after %d attempt(s)", outcome.Attempts)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
}
