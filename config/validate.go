package config

import (
	"fmt"
	"net/url"

	"github.com/Klingon-tech/btc-transfer/internal/log"
	"github.com/Klingon-tech/btc-transfer/pkg/types"
)

// Validate checks runtime config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if !cfg.Network.Valid() {
		return fmt.Errorf("network must be %q or %q", types.Mainnet, types.Testnet)
	}
	if err := validateURL(cfg.Indexer.MainnetURL, "indexer.mainnet"); err != nil {
		return err
	}
	if err := validateURL(cfg.Indexer.TestnetURL, "indexer.testnet"); err != nil {
		return err
	}
	if cfg.Indexer.Timeout <= 0 {
		return fmt.Errorf("indexer.timeout must be positive")
	}
	if cfg.Indexer.FeeTarget < 1 {
		return fmt.Errorf("indexer.feetarget must be at least 1 block")
	}
	if cfg.Indexer.FallbackFee < 1 {
		return fmt.Errorf("indexer.fallbackfee must be at least 1 sat/vB")
	}
	if cfg.Indexer.FetchWorkers < 1 || cfg.Indexer.FetchWorkers > MaxFetchWorkers {
		return fmt.Errorf("indexer.fetchworkers must be in range [1, %d]", MaxFetchWorkers)
	}
	if !log.ValidLevel(cfg.Log.Level) {
		return fmt.Errorf("log.level %q is not a known level", cfg.Log.Level)
	}
	return nil
}

func validateURL(raw, field string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) URL, got %q", field, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%s has no host", field)
	}
	return nil
}
