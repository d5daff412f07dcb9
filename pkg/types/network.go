package types

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/chaincfg"
)

// Network identifies mainnet or testnet.
type Network string

const (
	Mainnet Network = "mainnet"
	Testnet Network = "testnet"
)

// BIP-44 coin types. Testnet uses coin type 1 for every coin.
const (
	CoinTypeBitcoin = 0
	CoinTypeTestnet = 1
)

// ParseNetwork converts a user-supplied network name.
func ParseNetwork(s string) (Network, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mainnet", "main", "":
		return Mainnet, nil
	case "testnet", "test", "testnet3":
		return Testnet, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownNetwork, s)
	}
}

// Valid reports whether n is one of the supported networks.
func (n Network) Valid() bool {
	return n == Mainnet || n == Testnet
}

// Params returns the btcd chain parameters for the network.
func (n Network) Params() *chaincfg.Params {
	if n == Testnet {
		return &chaincfg.TestNet3Params
	}
	return &chaincfg.MainNetParams
}

// CoinType returns the unhardened BIP-44 coin type for the network.
func (n Network) CoinType() uint32 {
	if n == Testnet {
		return CoinTypeTestnet
	}
	return CoinTypeBitcoin
}

func (n Network) String() string {
	return string(n)
}
