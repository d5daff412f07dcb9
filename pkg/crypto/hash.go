// Package crypto provides the hashing and signing primitives used to
// derive Bitcoin addresses and sign transaction inputs.
package crypto

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Hash160Size is the length of a RIPEMD160(SHA256(x)) digest.
const Hash160Size = 20

// Hash160 computes RIPEMD160(SHA256(data)).
func Hash160(data []byte) []byte {
	return btcutil.Hash160(data)
}

// DoubleHash computes SHA256(SHA256(data)).
func DoubleHash(data []byte) chainhash.Hash {
	return chainhash.DoubleHashH(data)
}

// PubKeyHash returns the 20-byte hash committed to by P2WPKH and P2PKH
// scripts for a compressed public key.
func PubKeyHash(pubKey []byte) []byte {
	return Hash160(pubKey)
}
