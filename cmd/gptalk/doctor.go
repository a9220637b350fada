package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"gptalk/internal/adapter/channel"
	"gptalk/internal/infra/config"
	"gptalk/internal/infra/logger"
)

// CheckStatus represents the result of a health check.
type CheckStatus string

const (
	StatusPass CheckStatus = "PASS"
	StatusWarn CheckStatus = "WARN"
	StatusFail CheckStatus = "FAIL"
)

// CheckResult holds the outcome of a single health check.
type CheckResult struct {
	Name    string
	Status  CheckStatus
	Message string
	Fix     string // optional fix suggestion
}

// Check is a named health check function.
type Check struct {
	Name string
	Fn   func(cfg *config.Config) CheckResult
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration and Slack credentials",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, cfgErr := config.Load(cfgFile)
		checks := []Check{
			{Name: "Config file", Fn: checkConfigFile(cfgFile, cfgErr)},
			{Name: "LLM settings", Fn: checkLLMSettings},
			{Name: "Slack tokens", Fn: checkSlackTokens},
			{Name: "Slack auth", Fn: checkSlackAuth(cmd.Context())},
		}
		return runDoctor(cmd.OutOrStdout(), cfg, checks)
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

// runDoctor executes checks and reports results.
func runDoctor(w io.Writer, cfg *config.Config, checks []Check) error {
	fmt.Fprintln(w, "gptalk doctor")
	fmt.Fprintln(w, strings.Repeat("=", 50))

	var pass, warn, fail int
	for _, check := range checks {
		result := check.Fn(cfg)
		result.Name = check.Name

		fmt.Fprintf(w, "  %s %s: %s\n", statusIcon(result.Status), result.Name, result.Message)
		if result.Fix != "" {
			fmt.Fprintf(w, "      Fix: %s\n", result.Fix)
		}

		switch result.Status {
		case StatusPass:
			pass++
		case StatusWarn:
			warn++
		case StatusFail:
			fail++
		}
	}

	fmt.Fprintln(w, strings.Repeat("-", 50))
	fmt.Fprintf(w, "Results: %d passed, %d warnings, %d failed\n", pass, warn, fail)
	if fail > 0 {
		return fmt.Errorf("%d check(s) failed", fail)
	}
	return nil
}

func statusIcon(s CheckStatus) string {
	switch s {
	case StatusPass:
		return "[PASS]"
	case StatusWarn:
		return "[WARN]"
	case StatusFail:
		return "[FAIL]"
	default:
		return "[????]"
	}
}

// checkConfigFile reports whether the config file exists and loads. A missing
// file is only a warning since defaults and environment may be enough.
func checkConfigFile(cfgPath string, cfgErr error) func(*config.Config) CheckResult {
	return func(_ *config.Config) CheckResult {
		if cfgErr != nil {
			return CheckResult{
				Status:  StatusFail,
				Message: fmt.Sprintf("config error: %v", cfgErr),
				Fix:     "Check config.yaml syntax and permissions (0600 or 0644)",
			}
		}
		if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
			return CheckResult{
				Status:  StatusWarn,
				Message: fmt.Sprintf("no config file at %s, using defaults and environment", cfgPath),
			}
		}
		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("config loaded from %s", cfgPath),
		}
	}
}

func checkLLMSettings(cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusFail, Message: "cannot check, config not loaded"}
	}
	if err := config.RequireLLM(cfg); err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: err.Error(),
			Fix:     "Set GPTALK_LLM_* (or OPENAI_API_*) environment variables",
		}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("provider %s, engine %s", cfg.LLM.Provider, cfg.LLM.Engine),
	}
}

func checkSlackTokens(cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusFail, Message: "cannot check, config not loaded"}
	}
	if err := config.RequireSlack(cfg, false); err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: err.Error(),
			Fix:     "Set GPTALK_SLACK_BOT_TOKEN",
		}
	}
	if cfg.Slack.AppToken == "" {
		return CheckResult{
			Status:  StatusWarn,
			Message: "bot token set; no app token, socket mode unavailable",
		}
	}
	return CheckResult{Status: StatusPass, Message: "bot and app tokens set"}
}

// checkSlackAuth calls auth.test with the bot token.
func checkSlackAuth(ctx context.Context) func(*config.Config) CheckResult {
	return func(cfg *config.Config) CheckResult {
		if cfg == nil || cfg.Slack.BotToken == "" {
			return CheckResult{Status: StatusWarn, Message: "skipped, no bot token"}
		}

		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		gateway := channel.NewSlackGateway(cfg.Slack.BotToken, logger.Discard(),
			channel.WithSlackAPIURL(cfg.Slack.APIURL))
		start := time.Now()
		id, err := gateway.BotUserID(ctx)
		if err != nil {
			return CheckResult{
				Status:  StatusFail,
				Message: fmt.Sprintf("auth.test failed: %v", err),
				Fix:     "Check that the bot token is valid and the app is installed",
			}
		}
		if cfg.Slack.BotUserID != "" && cfg.Slack.BotUserID != id {
			return CheckResult{
				Status:  StatusWarn,
				Message: fmt.Sprintf("token belongs to %s but slack.bot_user_id is %s", id, cfg.Slack.BotUserID),
			}
		}
		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("authenticated as %s (latency: %dms)", id, time.Since(start).Milliseconds()),
		}
	}
}
