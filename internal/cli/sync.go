package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newSyncCmd(configPath *string) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run a one-shot batch sync",
		Long:  "Fetches all supplier invoices issued within the lookback window and upserts them into Airtable.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap(*configPath)
			if err != nil {
				return err
			}
			defer logger.Sync()

			if days <= 0 {
				days = cfg.Sync.Days
			}

			p, err := buildPipeline(cfg, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			report, err := p.syncer.Run(ctx, days)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "synced %d/%d invoices (%d errors)\n",
				report.Succeeded, report.Total, report.Errors)
			if report.Errors > 0 {
				logger.Warn("sync finished with errors", zap.Int("errors", report.Errors))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "lookback window in days (defaults to SYNC_DAYS)")
	return cmd
}
