package tx

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/wire"
)

// SignedTransaction is a fully signed transaction in network encoding.
type SignedTransaction struct {
	Raw  []byte
	TxID string
	Tx   *wire.MsgTx
}

// Hex returns the raw transaction as lowercase hex, the form broadcast
// endpoints accept.
func (s *SignedTransaction) Hex() string {
	return hex.EncodeToString(s.Raw)
}

// VSize returns the virtual size of the signed transaction.
func (s *SignedTransaction) VSize() int {
	return VSize(s.Tx)
}

func newSignedTransaction(msg *wire.MsgTx) (*SignedTransaction, error) {
	var buf bytes.Buffer
	buf.Grow(msg.SerializeSize())
	if err := msg.Serialize(&buf); err != nil {
		return nil, fmt.Errorf("serialize transaction: %w", err)
	}
	return &SignedTransaction{
		Raw:  buf.Bytes(),
		TxID: msg.TxHash().String(),
		Tx:   msg,
	}, nil
}

// Decode parses a transaction in network encoding, with or without
// witness data. Trailing bytes are rejected.
func Decode(raw []byte) (*wire.MsgTx, error) {
	msg := new(wire.MsgTx)
	r := bytes.NewReader(raw)
	if err := msg.Deserialize(r); err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("decode transaction: %d trailing bytes", r.Len())
	}
	return msg, nil
}
