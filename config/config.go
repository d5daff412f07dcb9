// Package config handles wallet configuration.
//
// Settings come from built-in defaults, then <datadir>/btc-wallet.conf,
// then command-line flags, with later sources taking precedence.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/Klingon-tech/btc-transfer/pkg/types"
)

// Config holds runtime configuration.
type Config struct {
	// Core
	Network types.Network `conf:"network"`
	DataDir string        `conf:"datadir"`

	// Chain data provider
	Indexer IndexerConfig

	// Logging
	Log LogConfig
}

// MaxFetchWorkers caps concurrent previous-transaction fetches per transfer.
const MaxFetchWorkers = 16

// IndexerConfig holds Esplora indexer settings.
type IndexerConfig struct {
	MainnetURL   string        `conf:"indexer.mainnet"`
	TestnetURL   string        `conf:"indexer.testnet"`
	Timeout      time.Duration `conf:"indexer.timeout"`
	FeeTarget    int           `conf:"indexer.feetarget"`   // confirmation target in blocks
	FallbackFee  uint64        `conf:"indexer.fallbackfee"` // sat/vB
	FetchWorkers int           `conf:"indexer.fetchworkers"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// IndexerURL returns the indexer base URL for the configured network.
func (c *Config) IndexerURL() string {
	if c.Network == types.Testnet {
		return c.Indexer.TestnetURL
	}
	return c.Indexer.MainnetURL
}

// =============================================================================
// Directory helpers
// =============================================================================

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.btc-wallet
//	macOS:   ~/Library/Application Support/BTCWallet
//	Windows: %APPDATA%\BTCWallet
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".btc-wallet"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "BTCWallet")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "BTCWallet")
		}
		return filepath.Join(home, "AppData", "Roaming", "BTCWallet")
	default:
		return filepath.Join(home, ".btc-wallet")
	}
}

// NetworkDataDir returns the network-specific data directory.
func (c *Config) NetworkDataDir() string {
	return filepath.Join(c.DataDir, string(c.Network))
}

// KeystoreDir returns the keystore directory.
func (c *Config) KeystoreDir() string {
	return filepath.Join(c.NetworkDataDir(), "keystore")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "btc-wallet.conf")
}
