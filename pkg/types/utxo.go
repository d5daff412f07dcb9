package types

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// UTXO is an unspent output at the wallet's address. Script and Type stay
// empty until the transaction builder resolves the previous output.
type UTXO struct {
	TxID   string    `json:"txid"`
	Vout   uint32    `json:"vout"`
	Value  uint64    `json:"value"`
	Script []byte    `json:"-"`
	Type   SpendType `json:"-"`
}

// Outpoint returns the wire outpoint referenced by the UTXO.
func (u UTXO) Outpoint() (*wire.OutPoint, error) {
	hash, err := chainhash.NewHashFromStr(u.TxID)
	if err != nil {
		return nil, fmt.Errorf("invalid txid %q: %w", u.TxID, err)
	}
	return wire.NewOutPoint(hash, u.Vout), nil
}

// String returns "txid:vout".
func (u UTXO) String() string {
	return fmt.Sprintf("%s:%d", u.TxID, u.Vout)
}
