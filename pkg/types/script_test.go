package types

import (
	"bytes"
	"errors"
	"testing"

	"github.com/btcsuite/btcd/txscript"
)

func hash20(b byte) []byte {
	return bytes.Repeat([]byte{b}, 20)
}

func p2wpkhScript(h []byte) []byte {
	return append([]byte{txscript.OP_0, txscript.OP_DATA_20}, h...)
}

func p2pkhScript(h []byte) []byte {
	s := []byte{txscript.OP_DUP, txscript.OP_HASH160, txscript.OP_DATA_20}
	s = append(s, h...)
	return append(s, txscript.OP_EQUALVERIFY, txscript.OP_CHECKSIG)
}

func p2shScript(h []byte) []byte {
	s := append([]byte{txscript.OP_HASH160, txscript.OP_DATA_20}, h...)
	return append(s, txscript.OP_EQUAL)
}

func TestSpendType_String(t *testing.T) {
	tests := []struct {
		st   SpendType
		want string
	}{
		{SpendTypeWitnessV0KeyHash, "WitnessV0KeyHash"},
		{SpendTypePubKeyHash, "PubKeyHash"},
		{SpendTypeScriptHash, "ScriptHash"},
		{SpendTypeUnknown, "Unknown"},
		{SpendType(0xFF), "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.st.String(); got != tt.want {
				t.Errorf("SpendType(%#x).String() = %q, want %q", uint8(tt.st), got, tt.want)
			}
		})
	}
}

func TestSpendType_IsWitness(t *testing.T) {
	if !SpendTypeWitnessV0KeyHash.IsWitness() {
		t.Error("WitnessV0KeyHash should be a witness type")
	}
	if SpendTypePubKeyHash.IsWitness() || SpendTypeScriptHash.IsWitness() {
		t.Error("legacy types must not be witness types")
	}
}

func TestClassifyScript(t *testing.T) {
	tests := []struct {
		name   string
		script []byte
		want   SpendType
	}{
		{"p2wpkh", p2wpkhScript(hash20(0x11)), SpendTypeWitnessV0KeyHash},
		{"p2pkh", p2pkhScript(hash20(0x22)), SpendTypePubKeyHash},
		{"p2sh", p2shScript(hash20(0x33)), SpendTypeScriptHash},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ClassifyScript(tt.script)
			if err != nil {
				t.Fatalf("ClassifyScript: %v", err)
			}
			if got != tt.want {
				t.Errorf("ClassifyScript = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestClassifyScript_Unsupported(t *testing.T) {
	p2wsh := append([]byte{txscript.OP_0, txscript.OP_DATA_32}, bytes.Repeat([]byte{0x44}, 32)...)
	p2tr := append([]byte{txscript.OP_1, txscript.OP_DATA_32}, bytes.Repeat([]byte{0x55}, 32)...)

	// Right length, wrong opcodes.
	badWitness := p2wpkhScript(hash20(0x11))
	badWitness[0] = txscript.OP_1
	badP2PKH := p2pkhScript(hash20(0x22))
	badP2PKH[24] = txscript.OP_CHECKSIGVERIFY
	badP2SH := p2shScript(hash20(0x33))
	badP2SH[22] = txscript.OP_EQUALVERIFY

	tests := []struct {
		name   string
		script []byte
	}{
		{"empty", nil},
		{"op_return", []byte{txscript.OP_RETURN, 0x01, 0x00}},
		{"p2wsh", p2wsh},
		{"p2tr", p2tr},
		{"witness v1 with 20-byte program", badWitness},
		{"p2pkh with wrong trailer", badP2PKH},
		{"p2sh with wrong trailer", badP2SH},
		{"truncated p2pkh", p2pkhScript(hash20(0x22))[:24]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := ClassifyScript(tt.script)
			if !errors.Is(err, ErrUnsupportedScript) {
				t.Fatalf("expected ErrUnsupportedScript, got %v (type %s)", err, st)
			}
			if st != SpendTypeUnknown {
				t.Errorf("failed classification returned %s, want Unknown", st)
			}
		})
	}
}

func TestScriptHash(t *testing.T) {
	h := hash20(0x7a)
	for _, tc := range []struct {
		st     SpendType
		script []byte
	}{
		{SpendTypeWitnessV0KeyHash, p2wpkhScript(h)},
		{SpendTypePubKeyHash, p2pkhScript(h)},
		{SpendTypeScriptHash, p2shScript(h)},
	} {
		got, err := ScriptHash(tc.st, tc.script)
		if err != nil {
			t.Fatalf("ScriptHash(%s): %v", tc.st, err)
		}
		if !bytes.Equal(got, h) {
			t.Errorf("ScriptHash(%s) = %x, want %x", tc.st, got, h)
		}
	}

	if _, err := ScriptHash(SpendTypeUnknown, nil); !errors.Is(err, ErrUnsupportedScript) {
		t.Errorf("expected ErrUnsupportedScript, got %v", err)
	}
}
