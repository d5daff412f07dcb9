package tx

import (
	"fmt"

	"github.com/Klingon-tech/btc-transfer/pkg/types"
)

// TransferParams describes a payment: selected inputs, one recipient
// output and an optional change output back to the sender.
type TransferParams struct {
	Network      types.Network
	Inputs       []types.UTXO
	Recipient    []byte
	Amount       uint64
	ChangeScript []byte
	Change       uint64
}

// NewTransfer returns a Builder holding the inputs, the recipient output
// and, iff Change > 0, a single change output.
func NewTransfer(p TransferParams) (*Builder, error) {
	if p.Amount == 0 || p.Amount > types.MaxSatoshi {
		return nil, fmt.Errorf("%w: %d satoshis", types.ErrInvalidAmount, p.Amount)
	}
	if len(p.Recipient) == 0 {
		return nil, fmt.Errorf("%w: empty recipient script", types.ErrInvalidAddress)
	}
	if p.Change > 0 && len(p.ChangeScript) == 0 {
		return nil, fmt.Errorf("change of %d needs a change script", p.Change)
	}

	b := NewBuilder(p.Network)
	for _, u := range p.Inputs {
		b.AddInput(u)
	}
	b.AddOutput(p.Amount, p.Recipient)
	if p.Change > 0 {
		b.AddOutput(p.Change, p.ChangeScript)
	}
	return b, nil
}
