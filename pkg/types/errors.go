// Package types defines the Bitcoin primitives shared by the wallet,
// indexer client and transaction builder.
package types

import "errors"

var (
	// ErrUnsupportedScript is returned when an output script matches none
	// of the spend templates this wallet can sign.
	ErrUnsupportedScript = errors.New("unsupported script")

	// ErrInvalidAmount is returned for non-positive, malformed or
	// out-of-range amounts.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidAddress is returned when an address does not decode or
	// belongs to another network.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrUnknownNetwork is returned for network names other than mainnet
	// and testnet.
	ErrUnknownNetwork = errors.New("unknown network")
)
