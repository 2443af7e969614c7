package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SELLSY_CLIENT_ID", "client-id")
	t.Setenv("SELLSY_CLIENT_SECRET", "client-secret")
	t.Setenv("AIRTABLE_API_KEY", "key")
	t.Setenv("AIRTABLE_BASE_ID", "appBase")
}

func TestLoad(t *testing.T) {
	t.Run("loads from environment with defaults", func(t *testing.T) {
		setBaseEnv(t)

		cfg, err := Load("")
		require.NoError(t, err)

		assert.Equal(t, "development", cfg.Environment)
		assert.False(t, cfg.Production())
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, "Factures Fournisseurs", cfg.Airtable.TableName)
		assert.Equal(t, 30, cfg.Sync.Days)
		assert.Equal(t, 20.0, cfg.Sync.DefaultTaxRate)
		assert.Equal(t, "data/pdfs", cfg.Storage.PDFDir)
		assert.Equal(t, "info", cfg.Logger.Level)
	})

	t.Run("environment variables override defaults", func(t *testing.T) {
		setBaseEnv(t)
		t.Setenv("SERVER_PORT", "9090")
		t.Setenv("SYNC_DAYS", "7")
		t.Setenv("DEFAULT_TAX_RATE", "5.5")

		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, 7, cfg.Sync.Days)
		assert.Equal(t, 5.5, cfg.Sync.DefaultTaxRate)
	})

	t.Run("accepts the legacy token credential set", func(t *testing.T) {
		t.Setenv("SELLSY_CONSUMER_TOKEN", "ct")
		t.Setenv("SELLSY_CONSUMER_SECRET", "cs")
		t.Setenv("SELLSY_USER_TOKEN", "ut")
		t.Setenv("SELLSY_USER_SECRET", "us")
		t.Setenv("AIRTABLE_API_KEY", "key")
		t.Setenv("AIRTABLE_BASE_ID", "appBase")

		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, "ct", cfg.Sellsy.ConsumerToken)
	})

	t.Run("rejects missing upstream credentials", func(t *testing.T) {
		t.Setenv("AIRTABLE_API_KEY", "key")
		t.Setenv("AIRTABLE_BASE_ID", "appBase")

		_, err := Load("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sellsy credentials")
	})

	t.Run("rejects an incomplete token set", func(t *testing.T) {
		t.Setenv("SELLSY_CONSUMER_TOKEN", "ct")
		t.Setenv("SELLSY_CONSUMER_SECRET", "cs")
		t.Setenv("AIRTABLE_API_KEY", "key")
		t.Setenv("AIRTABLE_BASE_ID", "appBase")

		_, err := Load("")
		assert.Error(t, err)
	})

	t.Run("rejects missing airtable settings", func(t *testing.T) {
		t.Setenv("SELLSY_CLIENT_ID", "client-id")
		t.Setenv("SELLSY_CLIENT_SECRET", "client-secret")

		_, err := Load("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "airtable")
	})

	t.Run("production requires a webhook secret", func(t *testing.T) {
		setBaseEnv(t)
		t.Setenv("ENVIRONMENT", "production")

		_, err := Load("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "webhook.secret")

		t.Setenv("WEBHOOK_SECRET", "s3cret")
		cfg, err := Load("")
		require.NoError(t, err)
		assert.True(t, cfg.Production())
	})

	t.Run("rejects nonsensical sync settings", func(t *testing.T) {
		setBaseEnv(t)
		t.Setenv("SYNC_DAYS", "0")

		_, err := Load("")
		assert.Error(t, err)
	})
}
