package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gptalk/internal/infra/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "gptalk",
	Short: "Slack bot that answers mentions and direct messages with an LLM",
	Long: `gptalk listens for Slack app mentions and direct messages, rebuilds the
conversation from the thread, asks the configured chat-completion endpoint
for a reply and posts it back into the thread.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", defaultConfigPath(),
		"config file path (env GPTALK_CONFIG)")
}

func defaultConfigPath() string {
	if p := os.Getenv("GPTALK_CONFIG"); p != "" {
		return p
	}
	return "config.yaml"
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
