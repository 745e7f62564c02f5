// Package config loads the process configuration from the environment,
// optionally seeded from a .env file.
package config

import (
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	x402 "github.com/x402-foundation/x402-fetch"
	"github.com/x402-foundation/x402-fetch/mechanisms/evm"
)

// Environment variable names
const (
	EnvPrivateKey      = "EVM_PRIVATE_KEY"
	EnvPrivateKeyAlias = "PRIVATE_KEY"
	EnvNetwork         = "X402_NETWORK"
	EnvMaxPayment      = "X402_MAX_PAYMENT"
	EnvFetchTimeout    = "X402_FETCH_TIMEOUT"
	EnvLogLevel        = "LOG_LEVEL"
	EnvMetricsAddr     = "METRICS_ADDR"
)

// Defaults
const (
	DefaultNetwork      = "base-sepolia"
	DefaultFetchTimeout = 30 * time.Second
	DefaultLogLevel     = "info"
)

// Config is built once at startup and passed explicitly
type Config struct {
	PrivateKey   string
	Network      x402.Network
	SpendCeiling x402.SpendCeiling
	FetchTimeout time.Duration
	LogLevel     string
	MetricsAddr  string
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment take precedence over the file.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !os.IsNotExist(err) {
		return nil, x402.WrapPaymentError(x402.ErrCodeConfig, "failed to read .env", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		Network:      DefaultNetwork,
		SpendCeiling: x402.DefaultSpendCeiling,
		FetchTimeout: DefaultFetchTimeout,
		LogLevel:     DefaultLogLevel,
	}

	cfg.PrivateKey = strings.TrimSpace(getenv(EnvPrivateKey))
	if cfg.PrivateKey == "" {
		cfg.PrivateKey = strings.TrimSpace(getenv(EnvPrivateKeyAlias))
	}
	if cfg.PrivateKey == "" {
		return nil, x402.NewPaymentError(x402.ErrCodeConfig, EnvPrivateKey+" environment variable is required", nil)
	}

	if network := strings.TrimSpace(getenv(EnvNetwork)); network != "" {
		if !evm.IsValidNetwork(network) {
			return nil, x402.NewPaymentError(x402.ErrCodeConfig, "unsupported network "+network, map[string]interface{}{
				"variable": EnvNetwork,
			})
		}
		cfg.Network = x402.Network(network)
	}

	if raw := strings.TrimSpace(getenv(EnvMaxPayment)); raw != "" {
		amount, ok := new(big.Int).SetString(raw, 10)
		if !ok || amount.Sign() <= 0 {
			return nil, x402.NewPaymentError(x402.ErrCodeConfig, EnvMaxPayment+" must be a positive integer in the asset's smallest unit", map[string]interface{}{
				"value": raw,
			})
		}
		cfg.SpendCeiling = x402.NewSpendCeiling(amount)
	}

	if raw := strings.TrimSpace(getenv(EnvFetchTimeout)); raw != "" {
		timeout, err := time.ParseDuration(raw)
		if err != nil || timeout <= 0 {
			return nil, x402.NewPaymentError(x402.ErrCodeConfig, EnvFetchTimeout+" must be a positive duration such as 30s", map[string]interface{}{
				"value": raw,
			})
		}
		cfg.FetchTimeout = timeout
	}

	if level := strings.TrimSpace(getenv(EnvLogLevel)); level != "" {
		switch strings.ToLower(level) {
		case "debug", "info", "warn", "error":
			cfg.LogLevel = strings.ToLower(level)
		default:
			return nil, x402.NewPaymentError(x402.ErrCodeConfig, "unknown log level "+level, map[string]interface{}{
				"variable": EnvLogLevel,
			})
		}
	}

	cfg.MetricsAddr = strings.TrimSpace(getenv(EnvMetricsAddr))
	return cfg, nil
}

// Policy returns the payment policy described by the configuration
func (c *Config) Policy() x402.Policy {
	return x402.NewPolicy(c.Network, c.SpendCeiling, x402.WithNetworkResolver(evm.CanonicalNetwork))
}
