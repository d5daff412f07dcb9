package wallet

import "errors"

var (
	// ErrInvalidMnemonic is returned when a phrase fails BIP-39 wordlist
	// or checksum validation.
	ErrInvalidMnemonic = errors.New("invalid mnemonic")

	// ErrUnusableKey is returned when derivation yields no usable
	// private scalar.
	ErrUnusableKey = errors.New("derived key is unusable")

	// ErrInsufficientFunds is returned when the UTXO set cannot cover
	// amount plus fee.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrWalletExists is returned when creating a wallet whose name is taken.
	ErrWalletExists = errors.New("wallet already exists")

	// ErrWalletNotFound is returned for operations on a missing wallet file.
	ErrWalletNotFound = errors.New("wallet not found")
)
