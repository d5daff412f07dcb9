package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Klingon-tech/btc-transfer/pkg/types"
)

// LoadFile loads configuration from a .conf file. A missing file yields
// an empty map.
// Format: key = value (one per line, # for comments)
func LoadFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse key = value
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("line %d: invalid format (expected key = value)", lineNum)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove quotes if present
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		values[key] = value
	}

	return values, scanner.Err()
}

// ApplyFileConfig applies file configuration to a Config struct.
func ApplyFileConfig(cfg *Config, values map[string]string) error {
	for key, value := range values {
		if err := setConfigValue(cfg, key, value); err != nil {
			return fmt.Errorf("config key %q: %w", key, err)
		}
	}
	return nil
}

// setConfigValue sets a config value by key.
func setConfigValue(cfg *Config, key, value string) error {
	switch key {
	// Core
	case "network":
		cfg.Network = types.Network(strings.ToLower(value))
	case "datadir":
		cfg.DataDir = value

	// Indexer
	case "indexer.mainnet":
		cfg.Indexer.MainnetURL = value
	case "indexer.testnet":
		cfg.Indexer.TestnetURL = value
	case "indexer.timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Indexer.Timeout = d
	case "indexer.feetarget":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Indexer.FeeTarget = n
	case "indexer.fallbackfee":
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		cfg.Indexer.FallbackFee = n
	case "indexer.fetchworkers":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Indexer.FetchWorkers = n

	// Logging
	case "log.level":
		cfg.Log.Level = value
	case "log.file":
		cfg.Log.File = value
	case "log.json":
		cfg.Log.JSON = parseBool(value)

	default:
		// Unknown keys are ignored
	}
	return nil
}

// parseBool parses a boolean value.
func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// WriteDefaultConfig writes a default configuration file.
func WriteDefaultConfig(path string, network types.Network) error {
	content := `# BTC Wallet Configuration

# Network: mainnet or testnet (--network overrides)
# network = ` + string(network) + `

# Data directory (default: ~/.btc-wallet)
# datadir = ~/.btc-wallet

# ============================================================================
# Indexer (Esplora-compatible HTTP API)
# ============================================================================

indexer.mainnet = ` + DefaultMainnetIndexer + `
indexer.testnet = ` + DefaultTestnetIndexer + `

# Per-request timeout
indexer.timeout = 30s

# Confirmation target (blocks) used as the medium fee tier
indexer.feetarget = 6

# Fee rate (sat/vB) used when the indexer has no estimate
indexer.fallbackfee = 10

# Parallel previous-transaction fetches per transfer (1-16)
indexer.fetchworkers = 4

# ============================================================================
# Logging
# ============================================================================

log.level = info
# log.file =
log.json = false
`
	return os.WriteFile(path, []byte(content), 0600)
}
