package types

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
)

// DecodeAddress parses a base58 or bech32 address and checks that it
// belongs to the given network.
func DecodeAddress(s string, network Network) (btcutil.Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty address", ErrInvalidAddress)
	}
	params := network.Params()
	addr, err := btcutil.DecodeAddress(s, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if !addr.IsForNet(params) {
		return nil, fmt.Errorf("%w: %s is not a %s address", ErrInvalidAddress, s, network)
	}
	return addr, nil
}

// AddressScript returns the output script that pays to addr.
func AddressScript(addr btcutil.Address) ([]byte, error) {
	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return script, nil
}
