package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Klingon-tech/btc-transfer/pkg/types"
)

// ErrHelp is returned by Load and ParseFlags when help was requested.
var ErrHelp = flag.ErrHelp

// Flags holds parsed global command-line flags.
type Flags struct {
	// Commands
	Help    bool
	Version bool

	// Core
	Network string
	Testnet bool
	DataDir string
	Config  string

	// Indexer
	Indexer      string
	Timeout      time.Duration
	FeeTarget    int
	FallbackFee  uint64
	FetchWorkers int

	// Logging
	LogLevel string
	LogFile  string
	LogJSON  bool

	// Subcommand and its arguments
	Args []string

	// Explicitly-set bool flags (for true/false overrides).
	SetLogJSON bool
}

// ParseFlags parses the global flags that precede the subcommand. Parsing
// stops at the first non-flag argument; it and everything after it end
// up in Args.
func ParseFlags(args []string) (*Flags, error) {
	f := &Flags{}
	fs := flag.NewFlagSet("btc-wallet", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	// Commands
	fs.BoolVar(&f.Help, "help", false, "Show help message")
	fs.BoolVar(&f.Help, "h", false, "Show help message (shorthand)")
	fs.BoolVar(&f.Version, "version", false, "Show version information")

	// Core
	fs.StringVar(&f.Network, "network", "", "Network type (mainnet or testnet)")
	fs.BoolVar(&f.Testnet, "testnet", false, "Use testnet (shorthand for --network=testnet)")
	fs.StringVar(&f.DataDir, "datadir", "", "Data directory path")
	fs.StringVar(&f.Config, "config", "", "Config file path")
	fs.StringVar(&f.Config, "c", "", "Config file path (shorthand)")

	// Indexer
	fs.StringVar(&f.Indexer, "indexer", "", "Indexer base URL for the selected network")
	fs.DurationVar(&f.Timeout, "timeout", 0, "Indexer request timeout")
	fs.IntVar(&f.FeeTarget, "fee-target", 0, "Fee confirmation target in blocks")
	fs.Uint64Var(&f.FallbackFee, "fallback-fee", 0, "Fallback fee rate in sat/vB")
	fs.IntVar(&f.FetchWorkers, "fetch-workers", 0, "Parallel previous-transaction fetches")

	// Logging
	fs.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.LogFile, "log-file", "", "Log file path")
	fs.BoolVar(&f.LogJSON, "log-json", false, "Output logs as JSON")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, ErrHelp
		}
		return nil, err
	}
	if f.Help {
		return nil, ErrHelp
	}

	if f.Testnet {
		if f.Network != "" && !strings.EqualFold(f.Network, string(types.Testnet)) {
			return nil, fmt.Errorf("--testnet conflicts with --network=%s", f.Network)
		}
		f.Network = string(types.Testnet)
	}
	f.SetLogJSON = isFlagSet(fs, "log-json")
	f.Args = fs.Args()
	return f, nil
}

// ApplyFlags applies command-line flags to a Config struct.
func ApplyFlags(cfg *Config, f *Flags) {
	// Core
	if f.Network != "" {
		cfg.Network = types.Network(strings.ToLower(f.Network))
	}
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}

	// Indexer. --indexer applies to the selected network only.
	if f.Indexer != "" {
		if cfg.Network == types.Testnet {
			cfg.Indexer.TestnetURL = f.Indexer
		} else {
			cfg.Indexer.MainnetURL = f.Indexer
		}
	}
	if f.Timeout != 0 {
		cfg.Indexer.Timeout = f.Timeout
	}
	if f.FeeTarget != 0 {
		cfg.Indexer.FeeTarget = f.FeeTarget
	}
	if f.FallbackFee != 0 {
		cfg.Indexer.FallbackFee = f.FallbackFee
	}
	if f.FetchWorkers != 0 {
		cfg.Indexer.FetchWorkers = f.FetchWorkers
	}

	// Logging
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.LogFile != "" {
		cfg.Log.File = f.LogFile
	}
	if f.SetLogJSON {
		cfg.Log.JSON = f.LogJSON
	}
}

// isFlagSet checks if a flag was explicitly set.
func isFlagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// Usage is the global part of the command-line help.
const Usage = `Global flags:
  --network <net>       mainnet (default) or testnet
  --testnet             Shorthand for --network=testnet
  --datadir <path>      Data directory (default: ~/.btc-wallet)
  --config, -c <path>   Config file (default: <datadir>/btc-wallet.conf)
  --indexer <url>       Esplora base URL for the selected network
  --timeout <dur>       Indexer request timeout (default: 30s)
  --fee-target <n>      Fee confirmation target in blocks (default: 6)
  --fallback-fee <n>    Fee rate when no estimate is available, sat/vB (default: 10)
  --fetch-workers <n>   Parallel previous-transaction fetches (default: 4)
  --log-level <lvl>     trace, debug, info, warn, error (default: info)
  --log-file <path>     Also write JSON logs to a file
  --log-json            Output logs as JSON
`

// Load loads configuration with the following precedence:
// 1. Default values
// 2. Auto-create data dirs + default config (idempotent)
// 3. Config file
// 4. Command-line flags
func Load(args []string) (*Config, *Flags, error) {
	flags, err := ParseFlags(args)
	if err != nil {
		return nil, nil, err
	}
	if flags.Version {
		return nil, flags, nil
	}

	// Determine network first (needed for defaults)
	network := types.Mainnet
	if flags.Network != "" {
		network, err = types.ParseNetwork(flags.Network)
		if err != nil {
			return nil, nil, err
		}
		flags.Network = string(network)
	}

	cfg := Default(network)
	if flags.DataDir != "" {
		cfg.DataDir = flags.DataDir
	}

	if err := EnsureDataDirs(cfg); err != nil {
		return nil, nil, fmt.Errorf("ensuring data dirs: %w", err)
	}

	configPath := flags.Config
	if configPath == "" {
		configPath = cfg.ConfigFile()
	}
	fileValues, err := LoadFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config file: %w", err)
	}
	if err := ApplyFileConfig(cfg, fileValues); err != nil {
		return nil, nil, fmt.Errorf("applying config file: %w", err)
	}

	// Apply flags (highest precedence)
	ApplyFlags(cfg, flags)
	if err := Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	// The file may have moved the network; its directories must exist too.
	if err := EnsureDataDirs(cfg); err != nil {
		return nil, nil, fmt.Errorf("ensuring data dirs: %w", err)
	}

	return cfg, flags, nil
}

// EnsureDataDirs creates the data directory structure and a default config
// file if they don't already exist. It is idempotent.
func EnsureDataDirs(cfg *Config) error {
	dirs := []string{
		cfg.DataDir,
		cfg.NetworkDataDir(),
		cfg.KeystoreDir(),
		cfg.LogsDir(),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	configPath := cfg.ConfigFile()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := WriteDefaultConfig(configPath, cfg.Network); err != nil {
			return fmt.Errorf("writing config file: %w", err)
		}
	}

	return nil
}
