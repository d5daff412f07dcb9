package crypto

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// ErrInvalidKey is returned for private key material that is not a
// usable secp256k1 scalar (zero or not below the curve order).
var ErrInvalidKey = errors.New("invalid private key")

// Signer signs 32-byte digests with ECDSA over secp256k1.
type Signer interface {
	// Sign produces a DER-encoded low-S ECDSA signature over a 32-byte hash.
	Sign(hash []byte) ([]byte, error)
	// PublicKey returns the compressed 33-byte public key.
	PublicKey() []byte
}

// PrivateKey wraps a secp256k1 private key.
type PrivateKey struct {
	key *secp256k1.PrivateKey
}

// GenerateKey creates a new random secp256k1 private key.
func GenerateKey() (*PrivateKey, error) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return &PrivateKey{key: key}, nil
}

// PrivateKeyFromBytes parses a 32-byte scalar. Zero and out-of-range
// scalars are rejected rather than reduced.
func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("private key must be 32 bytes, got %d", len(b))
	}
	var s secp256k1.ModNScalar
	if overflow := s.SetByteSlice(b); overflow {
		return nil, fmt.Errorf("%w: scalar exceeds curve order", ErrInvalidKey)
	}
	if s.IsZero() {
		return nil, fmt.Errorf("%w: zero scalar", ErrInvalidKey)
	}
	return &PrivateKey{key: secp256k1.NewPrivateKey(&s)}, nil
}

// Sign produces a DER-encoded ECDSA signature over a 32-byte hash.
// Nonces follow RFC 6979 and S is always in the lower half of the order.
func (pk *PrivateKey) Sign(hash []byte) ([]byte, error) {
	if len(hash) != 32 {
		return nil, fmt.Errorf("hash must be 32 bytes, got %d", len(hash))
	}
	if pk.key.Key.IsZero() {
		return nil, fmt.Errorf("%w: key has been zeroed", ErrInvalidKey)
	}
	return ecdsa.Sign(pk.key, hash).Serialize(), nil
}

// PublicKey returns the compressed 33-byte public key.
func (pk *PrivateKey) PublicKey() []byte {
	return pk.key.PubKey().SerializeCompressed()
}

// Serialize returns the 32-byte private key scalar.
func (pk *PrivateKey) Serialize() []byte {
	return pk.key.Serialize()
}

// BTCEC exposes the key in the form txscript signing helpers accept.
func (pk *PrivateKey) BTCEC() *btcec.PrivateKey {
	return pk.key
}

// Zero securely zeroes the private key memory.
func (pk *PrivateKey) Zero() {
	pk.key.Zero()
}

// VerifySignature checks a DER ECDSA signature against a 32-byte hash
// and a compressed public key. Returns false on any error.
func VerifySignature(hash, signature, publicKey []byte) bool {
	pubKey, err := secp256k1.ParsePubKey(publicKey)
	if err != nil {
		return false
	}
	sig, err := ecdsa.ParseDERSignature(signature)
	if err != nil {
		return false
	}
	return sig.Verify(hash, pubKey)
}
