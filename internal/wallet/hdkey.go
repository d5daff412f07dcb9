package wallet

import (
	"fmt"

	"github.com/Klingon-tech/btc-transfer/pkg/crypto"
	"github.com/tyler-smith/go-bip32"
)

// BIP-84 derivation path constants.
// Full path: m/84'/coin'/account'/change/index
const (
	// PurposeBIP84 is the BIP-84 purpose field (hardened).
	PurposeBIP84 = bip32.FirstHardenedChild + 84

	// ChangeExternal is for receiving addresses.
	ChangeExternal = 0

	// ChangeInternal is for change addresses.
	ChangeInternal = 1
)

// HDKey represents a hierarchical deterministic key (BIP-32).
type HDKey struct {
	key *bip32.Key
}

// NewMasterKey creates a master HD key from a 64-byte seed.
func NewMasterKey(seed []byte) (*HDKey, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", SeedSize, len(seed))
	}
	master, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("create master key: %w", err)
	}
	return &HDKey{key: master}, nil
}

// DeriveChild derives a child key at the given index.
// For hardened derivation, add bip32.FirstHardenedChild to the index.
func (k *HDKey) DeriveChild(index uint32) (*HDKey, error) {
	child, err := k.key.NewChildKey(index)
	if err != nil {
		return nil, fmt.Errorf("derive child %d: %w", index, err)
	}
	return &HDKey{key: child}, nil
}

// DerivePath derives a key along a sequence of indices.
func (k *HDKey) DerivePath(indices ...uint32) (*HDKey, error) {
	current := k
	for _, idx := range indices {
		child, err := current.DeriveChild(idx)
		if err != nil {
			return nil, err
		}
		current = child
	}
	return current, nil
}

// DeriveBIP84 derives the key at m/84'/coin'/account'/change/index.
func (k *HDKey) DeriveBIP84(coinType, account, change, index uint32) (*HDKey, error) {
	return k.DerivePath(
		PurposeBIP84,
		bip32.FirstHardenedChild+coinType,
		bip32.FirstHardenedChild+account,
		change,
		index,
	)
}

// BIP84Path formats a BIP-84 path for display.
func BIP84Path(coinType, account, change, index uint32) string {
	return fmt.Sprintf("m/84'/%d'/%d'/%d/%d", coinType, account, change, index)
}

// PrivateKeyBytes returns the raw 32-byte private key.
// Returns nil if this is a public-only key.
func (k *HDKey) PrivateKeyBytes() []byte {
	if !k.key.IsPrivate {
		return nil
	}
	// bip32 may hold 33 bytes with a leading 0x00, or fewer than 32.
	raw := k.key.Key
	switch {
	case len(raw) == 33 && raw[0] == 0:
		return raw[1:]
	case len(raw) < 32:
		padded := make([]byte, 32)
		copy(padded[32-len(raw):], raw)
		return padded
	}
	return raw
}

// PublicKeyBytes returns the compressed 33-byte public key.
func (k *HDKey) PublicKeyBytes() []byte {
	pub := k.key.PublicKey()
	return pub.Key
}

// Signer returns a crypto.PrivateKey from this HD key's private key.
// Returns error if this is a public-only key.
func (k *HDKey) Signer() (*crypto.PrivateKey, error) {
	priv := k.PrivateKeyBytes()
	if priv == nil {
		return nil, fmt.Errorf("cannot create signer from public key")
	}
	return crypto.PrivateKeyFromBytes(priv)
}

// IsPrivate returns true if this key contains a private key.
func (k *HDKey) IsPrivate() bool {
	return k.key.IsPrivate
}

// Depth returns the derivation depth (0 for master).
func (k *HDKey) Depth() uint8 {
	return k.key.Depth
}

// Neuter returns a public-key-only copy (for watch-only wallets).
func (k *HDKey) Neuter() *HDKey {
	return &HDKey{key: k.key.PublicKey()}
}

// Zero scrubs the private key bytes held by bip32.
func (k *HDKey) Zero() {
	if k.key.IsPrivate {
		zero(k.key.Key)
	}
}
