package types

import (
	"fmt"

	"github.com/btcsuite/btcd/txscript"
)

// SpendType identifies how an output is unlocked.
type SpendType uint8

const (
	SpendTypeUnknown          SpendType = 0x00
	SpendTypeWitnessV0KeyHash SpendType = 0x01 // P2WPKH
	SpendTypePubKeyHash       SpendType = 0x02 // P2PKH
	SpendTypeScriptHash       SpendType = 0x03 // P2SH (signed as P2SH-P2WPKH)
)

// Script template sizes.
const (
	witnessV0KeyHashLen = 22
	pubKeyHashLen       = 25
	scriptHashLen       = 23
)

// String returns a human-readable name for the spend type.
func (st SpendType) String() string {
	switch st {
	case SpendTypeWitnessV0KeyHash:
		return "WitnessV0KeyHash"
	case SpendTypePubKeyHash:
		return "PubKeyHash"
	case SpendTypeScriptHash:
		return "ScriptHash"
	default:
		return "Unknown"
	}
}

// IsWitness reports whether the previous output can be signed from its
// value and script alone. Every other type needs the full previous
// transaction.
func (st SpendType) IsWitness() bool {
	return st == SpendTypeWitnessV0KeyHash
}

// ClassifyScript matches a raw output script against the supported spend
// templates. The templates have distinct lengths, so at most one matches.
// Anything else is ErrUnsupportedScript; there is no default type.
func ClassifyScript(script []byte) (SpendType, error) {
	switch len(script) {
	case witnessV0KeyHashLen:
		if script[0] == txscript.OP_0 && script[1] == txscript.OP_DATA_20 {
			return SpendTypeWitnessV0KeyHash, nil
		}
	case pubKeyHashLen:
		if script[0] == txscript.OP_DUP &&
			script[1] == txscript.OP_HASH160 &&
			script[2] == txscript.OP_DATA_20 &&
			script[23] == txscript.OP_EQUALVERIFY &&
			script[24] == txscript.OP_CHECKSIG {
			return SpendTypePubKeyHash, nil
		}
	case scriptHashLen:
		if script[0] == txscript.OP_HASH160 &&
			script[1] == txscript.OP_DATA_20 &&
			script[22] == txscript.OP_EQUAL {
			return SpendTypeScriptHash, nil
		}
	}
	return SpendTypeUnknown, fmt.Errorf("%w: %x", ErrUnsupportedScript, script)
}

// ScriptHash returns the 20-byte hash embedded in a classified script.
func ScriptHash(st SpendType, script []byte) ([]byte, error) {
	switch st {
	case SpendTypeWitnessV0KeyHash:
		return script[2:22], nil
	case SpendTypePubKeyHash:
		return script[3:23], nil
	case SpendTypeScriptHash:
		return script[2:22], nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScript, st)
	}
}
