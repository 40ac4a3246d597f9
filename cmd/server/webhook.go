package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
)

func newWebhookCommand(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webhook",
		Short: "Manage the Telegram webhook",
	}
	cmd.AddCommand(newWebhookSetCommand(logger))
	return cmd
}

func newWebhookSetCommand(logger *slog.Logger) *cobra.Command {
	var url string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Point Telegram at this server's /webhook endpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			url = strings.TrimSpace(url)
			if url == "" {
				return fmt.Errorf("--url is required")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Telegram.Token == "" {
				return fmt.Errorf("TELEGRAM_API_KEY cannot be empty")
			}

			if err := newTelegramClient(cfg, logger).SetWebhook(cmd.Context(), url, cfg.Telegram.WebhookSecret); err != nil {
				return fmt.Errorf("set webhook: %w", err)
			}

			slog.Info("Webhook configured", "url", url)
			fmt.Fprintf(cmd.OutOrStdout(), "Webhook set to %s\n", url)
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "public HTTPS URL of the /webhook endpoint")
	return cmd
}
