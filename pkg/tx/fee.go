package tx

import (
	"fmt"
	"math"

	"github.com/Klingon-tech/btc-transfer/pkg/types"
	"github.com/btcsuite/btcd/wire"
)

// Worst-case virtual sizes, assuming 72-byte DER signatures (with the
// sighash byte) and compressed public keys.
const (
	// version(4) + locktime(4) + input and output counts(1+1)
	baseOverheadVBytes = 10
	// segwit marker and flag add half a vbyte, rounded up
	witnessOverheadVBytes = 11

	p2wpkhInputVBytes     = 68
	p2pkhInputVBytes      = 148
	p2shP2WPKHInputVBytes = 91
)

// InputVSize returns the virtual size of one signed input of type st.
func InputVSize(st types.SpendType) (int, error) {
	switch st {
	case types.SpendTypeWitnessV0KeyHash:
		return p2wpkhInputVBytes, nil
	case types.SpendTypePubKeyHash:
		return p2pkhInputVBytes, nil
	case types.SpendTypeScriptHash:
		return p2shP2WPKHInputVBytes, nil
	default:
		return 0, fmt.Errorf("%w: no size for spend type %s", types.ErrUnsupportedScript, st)
	}
}

// OutputVSize returns the size of an output paying to script.
func OutputVSize(script []byte) int {
	return 8 + wire.VarIntSerializeSize(uint64(len(script))) + len(script)
}

// EstimateMixedVSize estimates the signed size of a transaction spending
// one input per entry of inputs and paying to outputScripts.
func EstimateMixedVSize(inputs []types.SpendType, outputScripts [][]byte) (int, error) {
	overhead := baseOverheadVBytes
	size := 0
	for _, st := range inputs {
		n, err := InputVSize(st)
		if err != nil {
			return 0, err
		}
		// Both segwit spends we sign carry a witness.
		if st != types.SpendTypePubKeyHash {
			overhead = witnessOverheadVBytes
		}
		size += n
	}
	for _, s := range outputScripts {
		size += OutputVSize(s)
	}
	// Input and output counts above 252 need 3-byte varints.
	size += wire.VarIntSerializeSize(uint64(len(inputs))) - 1
	size += wire.VarIntSerializeSize(uint64(len(outputScripts))) - 1
	return overhead + size, nil
}

// EstimateVSize estimates the signed size of a transaction with nInputs
// inputs of type st paying to outputScripts.
func EstimateVSize(st types.SpendType, nInputs int, outputScripts [][]byte) (int, error) {
	if nInputs < 0 {
		return 0, fmt.Errorf("negative input count %d", nInputs)
	}
	inputs := make([]types.SpendType, nInputs)
	for i := range inputs {
		inputs[i] = st
	}
	return EstimateMixedVSize(inputs, outputScripts)
}

// EstimateFee returns rate (sat/vB) times EstimateVSize.
func EstimateFee(st types.SpendType, nInputs int, outputScripts [][]byte, rate uint64) (uint64, error) {
	vsize, err := EstimateVSize(st, nInputs, outputScripts)
	if err != nil {
		return 0, err
	}
	if rate > math.MaxUint64/uint64(vsize) {
		return 0, fmt.Errorf("%w: fee overflows at %d sat/vB", types.ErrInvalidAmount, rate)
	}
	return uint64(vsize) * rate, nil
}

// VSize returns the virtual size of a serialized transaction:
// ceil((3*stripped + total) / 4).
func VSize(msg *wire.MsgTx) int {
	weight := msg.SerializeSizeStripped()*3 + msg.SerializeSize()
	return (weight + 3) / 4
}
