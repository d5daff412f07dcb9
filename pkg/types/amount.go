package types

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
)

// Decimals is the number of fractional digits in one BTC.
const Decimals = 8

// SatoshiPerBitcoin is the number of satoshis in one BTC.
const SatoshiPerBitcoin = btcutil.SatoshiPerBitcoin

// MaxSatoshi is the largest value an output may carry.
const MaxSatoshi = uint64(btcutil.MaxSatoshi)

// ParseAmount converts a decimal BTC string ("0.0015") to satoshis.
// The result is always in (0, MaxSatoshi].
func ParseAmount(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty amount", ErrInvalidAmount)
	}
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return 0, fmt.Errorf("%w: signed amount %q", ErrInvalidAmount, s)
	}

	parts := strings.SplitN(s, ".", 2)
	if parts[0] == "" {
		parts[0] = "0"
	}
	whole, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid whole part %q", ErrInvalidAmount, parts[0])
	}

	var frac uint64
	if len(parts) == 2 {
		fracStr := parts[1]
		if fracStr == "" || len(fracStr) > Decimals {
			return 0, fmt.Errorf("%w: fractional part must have 1 to %d digits", ErrInvalidAmount, Decimals)
		}
		fracStr += strings.Repeat("0", Decimals-len(fracStr))
		frac, err = strconv.ParseUint(fracStr, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: invalid fractional part %q", ErrInvalidAmount, parts[1])
		}
	}

	if whole > MaxSatoshi/SatoshiPerBitcoin {
		return 0, fmt.Errorf("%w: %s exceeds the 21M supply", ErrInvalidAmount, s)
	}
	sats := whole*SatoshiPerBitcoin + frac
	if sats == 0 {
		return 0, fmt.Errorf("%w: amount must be positive", ErrInvalidAmount)
	}
	if sats > MaxSatoshi {
		return 0, fmt.Errorf("%w: %s exceeds the 21M supply", ErrInvalidAmount, s)
	}
	return sats, nil
}

// FormatAmount renders satoshis as a decimal BTC string.
func FormatAmount(sats uint64) string {
	return fmt.Sprintf("%d.%08d", sats/SatoshiPerBitcoin, sats%SatoshiPerBitcoin)
}
