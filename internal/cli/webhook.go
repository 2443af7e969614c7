package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sellsync/supplier-invoice-sync/internal/webhook"
)

func newWebhookCmd(configPath *string) *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "webhook",
		Short: "Serve the webhook endpoint",
		Long:  "Starts the HTTP server that receives Sellsy notifications and syncs the referenced invoice immediately.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap(*configPath)
			if err != nil {
				return err
			}
			defer logger.Sync()

			if host != "" {
				cfg.Server.Host = host
			}
			if port != 0 {
				cfg.Server.Port = port
			}

			p, err := buildPipeline(cfg, logger)
			if err != nil {
				return err
			}

			verifier := webhook.NewVerifier(cfg.Webhook.Secret, logger)
			if !verifier.Enabled() {
				logger.Warn("webhook signature verification is disabled, set WEBHOOK_SECRET")
			}

			handler := webhook.NewHandler(verifier, p.syncer, logger)
			server := webhook.NewServer(webhook.ServerConfig{
				Host:         cfg.Server.Host,
				Port:         cfg.Server.Port,
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
				Debug:        !cfg.Production(),
			}, handler, map[string]webhook.Checker{
				"sellsy":   p.sellsy,
				"airtable": p.airtable,
			}, logger)

			logger.Info("starting webhook server",
				zap.String("host", cfg.Server.Host),
				zap.Int("port", cfg.Server.Port),
				zap.String("environment", cfg.Environment))
			return server.Run()
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "listen address (defaults to SERVER_HOST)")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (defaults to SERVER_PORT)")
	return cmd
}
