package wallet

import (
	"fmt"
	"math"

	"github.com/Klingon-tech/btc-transfer/pkg/types"
)

// CoinSelection holds the result of coin selection.
type CoinSelection struct {
	Inputs []types.UTXO // Selected UTXOs, a prefix of the candidate list.
	Total  uint64       // Sum of selected input values.
	Amount uint64
	Fee    uint64
	Change uint64 // Total - Amount - Fee.
}

// HasChange reports whether a change output is needed.
func (s *CoinSelection) HasChange() bool {
	return s.Change > 0
}

// SelectCoins accumulates UTXOs in list order until their sum covers
// amount+fee. The list order is kept as given: the selection is always
// the shortest qualifying prefix, never a value-sorted subset.
func SelectCoins(utxos []types.UTXO, amount, fee uint64) (*CoinSelection, error) {
	if amount == 0 {
		return nil, fmt.Errorf("%w: amount must be positive", types.ErrInvalidAmount)
	}
	if amount > math.MaxUint64-fee {
		return nil, fmt.Errorf("%w: amount plus fee overflows", types.ErrInvalidAmount)
	}
	need := amount + fee

	var total uint64
	for i, u := range utxos {
		if total > math.MaxUint64-u.Value {
			return nil, fmt.Errorf("utxo %s: value sum overflows", u)
		}
		total += u.Value
		if total >= need {
			return &CoinSelection{
				Inputs: utxos[:i+1:i+1],
				Total:  total,
				Amount: amount,
				Fee:    fee,
				Change: total - need,
			}, nil
		}
	}
	return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientFunds, total, need)
}
