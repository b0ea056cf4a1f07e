package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration. It is loaded once and handed to
// each component's constructor.
type Config struct {
	Env      string
	LogLevel string

	OneClick   OneClickConfig
	Relay      RelayConfig
	Near       NearConfig
	Swap       SwapConfig
	Poller     PollerConfig
	Balance    BalanceConfig
	Publish    RetryConfig
	Settlement SettlementConfig
	Server     ServerConfig
	EVM        EVMConfig
	Solana     SolanaConfig
}

// OneClickConfig configures the token catalog source
type OneClickConfig struct {
	BaseURL  string
	JWTToken string
}

// RelayConfig configures the solver relay JSON-RPC endpoint
type RelayConfig struct {
	URL              string
	QuoteMinDeadline time.Duration
	QuoteTimeout     time.Duration
}

// NearConfig configures NEAR RPC access and the intents contract
type NearConfig struct {
	RPCUrl            string
	VerifyingContract string
}

// SwapConfig controls signed intent lifetime
type SwapConfig struct {
	TTL time.Duration
}

// PollerConfig controls background re-quoting
type PollerConfig struct {
	Delay   time.Duration
	Timeout time.Duration
}

// BalanceConfig controls balance fetching
type BalanceConfig struct {
	Concurrency     int
	Spacing         time.Duration
	RefreshInterval time.Duration
}

// RetryConfig is a bounded exponential backoff policy
type RetryConfig struct {
	Attempts     int
	InitialDelay time.Duration
	Factor       float64
	Jitter       float64
}

// SettlementConfig controls intent status polling
type SettlementConfig struct {
	Interval          time.Duration
	NotFoundThreshold int
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Addr string
}

// EVMConfig holds EVM network settings
type EVMConfig struct {
	PrivateKey string                `mapstructure:"private_key"`
	Networks   map[string]EVMNetwork `mapstructure:"networks"`
}

// EVMNetwork holds the settings for one EVM network
type EVMNetwork struct {
	RPCUrl  string `mapstructure:"rpc_url"`
	ChainID int64  `mapstructure:"chain_id"`
}

// SolanaConfig holds Solana settings
type SolanaConfig struct {
	RPCUrl     string `mapstructure:"rpc_url"`
	PrivateKey string `mapstructure:"private_key"`
	Commitment string `mapstructure:"commitment"`
}

// SetDefaults registers default values on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("env", "dev")
	v.SetDefault("log_level", "info")
	v.SetDefault("oneclick.base_url", "https://1click.chaindefuser.com")
	v.SetDefault("relay.url", "https://solver-relay-v2.chaindefuser.com/rpc")
	v.SetDefault("relay.quote_min_deadline", "60s")
	v.SetDefault("relay.quote_timeout", "10s")
	v.SetDefault("near.rpc_url", "https://rpc.mainnet.near.org")
	v.SetDefault("near.verifying_contract", "intents.near")
	v.SetDefault("swap.ttl", "10m")
	v.SetDefault("poller.delay", "2s")
	v.SetDefault("poller.timeout", "10s")
	v.SetDefault("balance.concurrency", 5)
	v.SetDefault("balance.spacing", "500ms")
	v.SetDefault("balance.refresh_interval", "30s")
	v.SetDefault("publish.attempts", 7)
	v.SetDefault("publish.initial_delay", "1s")
	v.SetDefault("publish.factor", 1.5)
	v.SetDefault("publish.jitter", 0.2)
	v.SetDefault("settlement.interval", "200ms")
	v.SetDefault("settlement.not_found_threshold", 3)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("solana.commitment", "confirmed")
}

// Load reads configuration from environment variables and an optional config file
func Load(configFile string) (*Config, error) {
	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(".near-intents")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME")
		v.AddConfigPath(".")
	}

	SetDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix("NEAR_INTENTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound || configFile != "" {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	return FromViper(v)
}

// FromViper builds a Config from an already populated viper instance
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Env:      v.GetString("env"),
		LogLevel: v.GetString("log_level"),
		OneClick: OneClickConfig{
			BaseURL:  v.GetString("oneclick.base_url"),
			JWTToken: v.GetString("oneclick.jwt_token"),
		},
		Relay: RelayConfig{
			URL:              v.GetString("relay.url"),
			QuoteMinDeadline: v.GetDuration("relay.quote_min_deadline"),
			QuoteTimeout:     v.GetDuration("relay.quote_timeout"),
		},
		Near: NearConfig{
			RPCUrl:            v.GetString("near.rpc_url"),
			VerifyingContract: v.GetString("near.verifying_contract"),
		},
		Swap: SwapConfig{TTL: v.GetDuration("swap.ttl")},
		Poller: PollerConfig{
			Delay:   v.GetDuration("poller.delay"),
			Timeout: v.GetDuration("poller.timeout"),
		},
		Balance: BalanceConfig{
			Concurrency:     v.GetInt("balance.concurrency"),
			Spacing:         v.GetDuration("balance.spacing"),
			RefreshInterval: v.GetDuration("balance.refresh_interval"),
		},
		Publish: RetryConfig{
			Attempts:     v.GetInt("publish.attempts"),
			InitialDelay: v.GetDuration("publish.initial_delay"),
			Factor:       v.GetFloat64("publish.factor"),
			Jitter:       v.GetFloat64("publish.jitter"),
		},
		Settlement: SettlementConfig{
			Interval:          v.GetDuration("settlement.interval"),
			NotFoundThreshold: v.GetInt("settlement.not_found_threshold"),
		},
		Server: ServerConfig{Addr: v.GetString("server.addr")},
	}

	cfg.EVM.PrivateKey = v.GetString("evm.private_key")
	if err := v.UnmarshalKey("evm.networks", &cfg.EVM.Networks); err != nil {
		return nil, fmt.Errorf("invalid evm config: %w", err)
	}
	cfg.Solana = SolanaConfig{
		RPCUrl:     v.GetString("solana.rpc_url"),
		PrivateKey: v.GetString("solana.private_key"),
		Commitment: v.GetString("solana.commitment"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings that would stall or disable a component
func (c *Config) Validate() error {
	if c.Relay.URL == "" {
		return fmt.Errorf("relay.url is required")
	}
	if c.Near.VerifyingContract == "" {
		return fmt.Errorf("near.verifying_contract is required")
	}
	if c.Swap.TTL <= 0 {
		return fmt.Errorf("swap.ttl must be positive")
	}
	if c.Relay.QuoteTimeout <= 0 || c.Poller.Timeout <= 0 {
		return fmt.Errorf("quote timeouts must be positive")
	}
	if c.Poller.Delay <= 0 {
		return fmt.Errorf("poller.delay must be positive")
	}
	if c.Balance.Concurrency < 1 {
		return fmt.Errorf("balance.concurrency must be at least 1")
	}
	if c.Publish.Attempts < 1 {
		return fmt.Errorf("publish.attempts must be at least 1")
	}
	if c.Publish.Factor < 1 {
		return fmt.Errorf("publish.factor must be at least 1")
	}
	if c.Settlement.Interval <= 0 {
		return fmt.Errorf("settlement.interval must be positive")
	}
	if c.Settlement.NotFoundThreshold < 1 {
		return fmt.Errorf("settlement.not_found_threshold must be at least 1")
	}
	return nil
}
