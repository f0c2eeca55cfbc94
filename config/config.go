package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// EVMNetwork holds the connection and signing settings for one
// EVM-compatible network.
type EVMNetwork struct {
	RPCUrl     string  `mapstructure:"rpc_url"`
	ChainID    int64   `mapstructure:"chain_id"`
	PrivateKey string  `mapstructure:"private_key"`
	GasLimit   *uint64 `mapstructure:"gas_limit"`
}

// EVMConfig holds all configured EVM networks, keyed by network name
// (ethereum, base, arbitrum, ...).
type EVMConfig struct {
	Networks map[string]EVMNetwork `mapstructure:"networks"`
}

// SolanaConfig holds Solana connection and signing settings.
type SolanaConfig struct {
	RPCUrl        string `mapstructure:"rpc_url"`
	PrivateKey    string `mapstructure:"private_key"`
	Commitment    string `mapstructure:"commitment"`
	SkipPreflight bool   `mapstructure:"skip_preflight"`
}

// WalletConfig groups the per-chain wallet settings.
type WalletConfig struct {
	EVM         EVMConfig    `mapstructure:"evm"`
	Solana      SolanaConfig `mapstructure:"solana"`
	AutoDeposit bool         `mapstructure:"auto_deposit"`
}

// Config holds the application configuration
type Config struct {
	JWTToken    string
	BaseURL     string
	EventsURL   string
	HistoryFile string
	AutoConfirm bool
	Wallet      WalletConfig
}

var globalConfig *Config

// Load reads configuration from environment variables and config file
func Load() (*Config, error) {
	viper.SetConfigName(".crosswallet")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME")
	viper.AddConfigPath(".")

	// Set default values
	viper.SetDefault("base_url", "https://1click.chaindefuser.com")
	viper.SetDefault("wallet.solana.commitment", "confirmed")

	// Read from environment variables
	viper.SetEnvPrefix("CROSSWALLET")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Read config file (optional)
	_ = viper.ReadInConfig()

	// Create config struct
	cfg := &Config{
		JWTToken:    viper.GetString("jwt_token"),
		BaseURL:     viper.GetString("base_url"),
		EventsURL:   viper.GetString("events_url"),
		HistoryFile: viper.GetString("history_file"),
		AutoConfirm: viper.GetBool("auto_confirm"),
	}

	if err := viper.UnmarshalKey("wallet", &cfg.Wallet); err != nil {
		return nil, fmt.Errorf("invalid wallet configuration: %w", err)
	}

	// Validate JWT token
	if cfg.JWTToken == "" {
		return nil, fmt.Errorf("JWT token not found. Please set CROSSWALLET_JWT_TOKEN environment variable or create a .crosswallet.yaml config file")
	}

	globalConfig = cfg
	return cfg, nil
}

// Get returns the global configuration
func Get() *Config {
	if globalConfig == nil {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
			os.Exit(1)
		}
		return cfg
	}
	return globalConfig
}

// Set updates the global configuration
func Set(cfg *Config) {
	globalConfig = cfg
}
