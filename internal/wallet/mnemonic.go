// Package wallet derives Bitcoin spending keys from BIP-39 mnemonics,
// selects coins and keeps encrypted mnemonics on disk.
package wallet

import (
	"fmt"
	"strings"

	"github.com/tyler-smith/go-bip39"
)

// MnemonicEntropyBits is the entropy size for 24-word mnemonics.
const MnemonicEntropyBits = 256

// GenerateMnemonic creates a new 24-word BIP-39 mnemonic.
func GenerateMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(MnemonicEntropyBits)
	if err != nil {
		return "", fmt.Errorf("generate entropy: %w", err)
	}
	defer zero(entropy)
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("generate mnemonic: %w", err)
	}
	return mnemonic, nil
}

// NormalizeMnemonic lowercases a phrase and collapses runs of whitespace,
// so pasted phrases with stray spaces or newlines still validate.
func NormalizeMnemonic(mnemonic string) string {
	return strings.Join(strings.Fields(strings.ToLower(mnemonic)), " ")
}

// ValidateMnemonic checks if a mnemonic is valid per BIP-39
// (correct word count, valid words, valid checksum).
func ValidateMnemonic(mnemonic string) bool {
	return bip39.IsMnemonicValid(NormalizeMnemonic(mnemonic))
}
