package config

import (
	"time"

	"github.com/Klingon-tech/btc-transfer/pkg/types"
)

// Public Esplora instances.
const (
	DefaultMainnetIndexer = "https://blockstream.info/api"
	DefaultTestnetIndexer = "https://blockstream.info/testnet/api"
)

// DefaultMainnet returns the default configuration for mainnet.
func DefaultMainnet() *Config {
	return &Config{
		Network: types.Mainnet,
		DataDir: DefaultDataDir(),
		Indexer: IndexerConfig{
			MainnetURL:   DefaultMainnetIndexer,
			TestnetURL:   DefaultTestnetIndexer,
			Timeout:      30 * time.Second,
			FeeTarget:    6,
			FallbackFee:  10,
			FetchWorkers: 4,
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}

// DefaultTestnet returns the default configuration for testnet.
func DefaultTestnet() *Config {
	cfg := DefaultMainnet()
	cfg.Network = types.Testnet
	return cfg
}

// Default returns the default configuration for the given network.
func Default(network types.Network) *Config {
	switch network {
	case types.Testnet:
		return DefaultTestnet()
	default:
		return DefaultMainnet()
	}
}
