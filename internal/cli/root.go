package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/sellsync/supplier-invoice-sync/internal/airtable"
	"github.com/sellsync/supplier-invoice-sync/internal/config"
	"github.com/sellsync/supplier-invoice-sync/internal/normalize"
	"github.com/sellsync/supplier-invoice-sync/internal/sellsy"
	"github.com/sellsync/supplier-invoice-sync/internal/storage"
	"github.com/sellsync/supplier-invoice-sync/internal/syncer"
	"github.com/sellsync/supplier-invoice-sync/pkg/utils"
)

// Execute runs the command tree.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "supplier-sync",
		Short:         "Sync Sellsy supplier invoices into Airtable",
		Long:          "supplier-sync pulls supplier invoices from the Sellsy API, normalizes them and mirrors them into an Airtable table, either in batch or driven by webhooks.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to an optional yaml config file")

	cmd.AddCommand(newSyncCmd(&configPath))
	cmd.AddCommand(newWebhookCmd(&configPath))

	return cmd
}

// bootstrap loads .env, the configuration and the logger. A missing .env is
// fine, the environment may already be populated.
func bootstrap(configPath string) (*config.Config, *zap.Logger, error) {
	_ = gotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return cfg, logger, nil
}

// pipeline holds the wired components shared by the sync and webhook
// commands.
type pipeline struct {
	sellsy   *sellsy.Client
	airtable *airtable.Client
	syncer   *syncer.Syncer
}

func buildPipeline(cfg *config.Config, logger *zap.Logger) (*pipeline, error) {
	store, err := storage.NewPDFStore(cfg.Storage.PDFDir, logger)
	if err != nil {
		return nil, err
	}

	sellsyClient := sellsy.NewClient(sellsy.Config{
		APIURL:         cfg.Sellsy.APIURL,
		ClientID:       cfg.Sellsy.ClientID,
		ClientSecret:   cfg.Sellsy.ClientSecret,
		ConsumerToken:  cfg.Sellsy.ConsumerToken,
		ConsumerSecret: cfg.Sellsy.ConsumerSecret,
		UserToken:      cfg.Sellsy.UserToken,
		UserSecret:     cfg.Sellsy.UserSecret,
	}, store, logger)

	airtableClient := airtable.NewClient(airtable.Config{
		APIKey: cfg.Airtable.APIKey,
		BaseID: cfg.Airtable.BaseID,
		Table:  cfg.Airtable.TableName,
	}, logger)

	normalizer := normalize.NewNormalizer(cfg.Sync.DefaultTaxRate, logger)

	return &pipeline{
		sellsy:   sellsyClient,
		airtable: airtableClient,
		syncer:   syncer.NewSyncer(sellsyClient, airtableClient, normalizer, logger),
	}, nil
}
