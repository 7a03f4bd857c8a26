package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/ledgerclerk/clerk/internal/upstream/plaid"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	DatabaseURL string

	PlaidClientID   string
	PlaidSecret     string
	PlaidEnv        plaid.Environment
	PlaidClientName string

	DefaultCurrency string
	CountryCodes    []string
	RuleFiles       []string
	SyncPageSize    int

	LinkServerPort string
}

// LoadConfig loads configuration from environment variables and a .env file if
// present. Environment variables win over .env values.
func LoadConfig() (*Config, error) {
	// Attempt to load .env file, ignore error if it doesn't exist
	_ = godotenv.Load()

	viper.SetDefault("PGSQL_URL", "")
	viper.SetDefault("PLAID_CLIENT_ID", "")
	viper.SetDefault("PLAID_SECRET", "")
	viper.SetDefault("PLAID_ENV", "sandbox")
	viper.SetDefault("PLAID_CLIENT_NAME", "clerk")
	viper.SetDefault("DEFAULT_CURRENCY", "USD")
	viper.SetDefault("COUNTRY_CODES", "US")
	viper.SetDefault("RULE_FILES", "")
	viper.SetDefault("SYNC_PAGE_SIZE", 500)
	viper.SetDefault("LINK_SERVER_PORT", "8080")

	viper.AutomaticEnv()

	cfg := &Config{
		DatabaseURL:     viper.GetString("PGSQL_URL"),
		PlaidClientID:   viper.GetString("PLAID_CLIENT_ID"),
		PlaidSecret:     viper.GetString("PLAID_SECRET"),
		PlaidClientName: viper.GetString("PLAID_CLIENT_NAME"),
		DefaultCurrency: viper.GetString("DEFAULT_CURRENCY"),
		CountryCodes:    splitList(viper.GetString("COUNTRY_CODES")),
		RuleFiles:       splitList(viper.GetString("RULE_FILES")),
		SyncPageSize:    viper.GetInt("SYNC_PAGE_SIZE"),
		LinkServerPort:  viper.GetString("LINK_SERVER_PORT"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("PGSQL_URL environment variable not set")
	}

	env, err := plaid.ParseEnvironment(viper.GetString("PLAID_ENV"))
	if err != nil {
		return nil, err
	}
	cfg.PlaidEnv = env

	if cfg.SyncPageSize < 1 || cfg.SyncPageSize > 500 {
		return nil, fmt.Errorf("SYNC_PAGE_SIZE must be between 1 and 500, got %d", cfg.SyncPageSize)
	}

	return cfg, nil
}

// splitList parses a comma-separated environment value into its entries,
// dropping empties.
func splitList(value string) []string {
	var entries []string
	for _, entry := range strings.Split(value, ",") {
		entry = strings.TrimSpace(entry)
		if entry != "" {
			entries = append(entries, entry)
		}
	}
	return entries
}
