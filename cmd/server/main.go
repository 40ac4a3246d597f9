// vcsearch - Telegram assistant for searching and maintaining a people
// directory and a task list.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/ashureev/vcsearch/internal/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := newRootCommand(logger).ExecuteContext(context.Background()); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func newRootCommand(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "vcsearch",
		Short:         "Telegram bot for people search and task tracking",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), logger)
		},
	}

	cmd.AddCommand(newServeCommand(logger))
	cmd.AddCommand(newWebhookCommand(logger))

	return cmd
}

// loadConfig reads .env (if present) and the process environment.
func loadConfig() (*config.Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}
	return config.Load()
}
