package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Environment string         `mapstructure:"environment"`
	Server      ServerConfig   `mapstructure:"server"`
	Sellsy      SellsyConfig   `mapstructure:"sellsy"`
	Airtable    AirtableConfig `mapstructure:"airtable"`
	Webhook     WebhookConfig  `mapstructure:"webhook"`
	Sync        SyncConfig     `mapstructure:"sync"`
	Storage     StorageConfig  `mapstructure:"storage"`
	Logger      LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// SellsyConfig holds upstream API credentials. Either the OAuth2 pair or the
// full OAuth1 token set must be present.
type SellsyConfig struct {
	ClientID       string        `mapstructure:"client_id"`
	ClientSecret   string        `mapstructure:"client_secret"`
	ConsumerToken  string        `mapstructure:"consumer_token"`
	ConsumerSecret string        `mapstructure:"consumer_secret"`
	UserToken      string        `mapstructure:"user_token"`
	UserSecret     string        `mapstructure:"user_secret"`
	APIURL         string        `mapstructure:"api_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// AirtableConfig holds downstream store settings.
type AirtableConfig struct {
	APIKey    string `mapstructure:"api_key"`
	BaseID    string `mapstructure:"base_id"`
	TableName string `mapstructure:"table_name"`
}

// WebhookConfig holds delivery verification settings.
type WebhookConfig struct {
	Secret string `mapstructure:"secret"`
}

// SyncConfig holds batch run settings.
type SyncConfig struct {
	Days           int     `mapstructure:"days"`
	DefaultTaxRate float64 `mapstructure:"default_tax_rate"`
}

// StorageConfig holds local document cache settings.
type StorageConfig struct {
	PDFDir string `mapstructure:"pdf_dir"`
}

// LoggerConfig holds logger configuration.
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load builds the configuration from environment variables, optionally
// layered over a yaml file. An empty configPath skips the file.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	setDefaults(v)
	bindEnvVars(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)

	v.SetDefault("sellsy.timeout", 30*time.Second)

	v.SetDefault("airtable.table_name", "Factures Fournisseurs")

	v.SetDefault("sync.days", 30)
	v.SetDefault("sync.default_tax_rate", 20.0)

	v.SetDefault("storage.pdf_dir", "data/pdfs")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

func bindEnvVars(v *viper.Viper) {
	v.BindEnv("environment", "ENVIRONMENT")

	v.BindEnv("server.host", "SERVER_HOST")
	v.BindEnv("server.port", "SERVER_PORT")

	v.BindEnv("sellsy.client_id", "SELLSY_CLIENT_ID")
	v.BindEnv("sellsy.client_secret", "SELLSY_CLIENT_SECRET")
	v.BindEnv("sellsy.consumer_token", "SELLSY_CONSUMER_TOKEN")
	v.BindEnv("sellsy.consumer_secret", "SELLSY_CONSUMER_SECRET")
	v.BindEnv("sellsy.user_token", "SELLSY_USER_TOKEN")
	v.BindEnv("sellsy.user_secret", "SELLSY_USER_SECRET")
	v.BindEnv("sellsy.api_url", "SELLSY_API_URL")

	v.BindEnv("airtable.api_key", "AIRTABLE_API_KEY")
	v.BindEnv("airtable.base_id", "AIRTABLE_BASE_ID")
	v.BindEnv("airtable.table_name", "AIRTABLE_TABLE_NAME")

	v.BindEnv("webhook.secret", "WEBHOOK_SECRET")

	v.BindEnv("sync.days", "SYNC_DAYS")
	v.BindEnv("sync.default_tax_rate", "DEFAULT_TAX_RATE")

	v.BindEnv("storage.pdf_dir", "PDF_STORAGE_DIR")

	v.BindEnv("logger.level", "LOG_LEVEL")
	v.BindEnv("logger.format", "LOG_FORMAT")
}

// Production reports whether the service runs with production guarantees.
func (c *Config) Production() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Validate checks that a usable credential set is present.
func (c *Config) Validate() error {
	oauth2 := c.Sellsy.ClientID != "" && c.Sellsy.ClientSecret != ""
	oauth1 := c.Sellsy.ConsumerToken != "" && c.Sellsy.ConsumerSecret != "" &&
		c.Sellsy.UserToken != "" && c.Sellsy.UserSecret != ""
	if !oauth2 && !oauth1 {
		return fmt.Errorf("sellsy credentials are required: set SELLSY_CLIENT_ID/SELLSY_CLIENT_SECRET or the SELLSY_CONSUMER/USER token set")
	}

	if c.Airtable.APIKey == "" {
		return fmt.Errorf("airtable.api_key is required")
	}
	if c.Airtable.BaseID == "" {
		return fmt.Errorf("airtable.base_id is required")
	}
	if c.Airtable.TableName == "" {
		return fmt.Errorf("airtable.table_name is required")
	}

	if c.Production() && c.Webhook.Secret == "" {
		return fmt.Errorf("webhook.secret is required in production")
	}

	if c.Sync.Days <= 0 {
		return fmt.Errorf("sync.days must be positive")
	}
	if c.Sync.DefaultTaxRate < 0 {
		return fmt.Errorf("sync.default_tax_rate must not be negative")
	}

	return nil
}
