// Package tx assembles, signs and sizes Bitcoin transactions that spend
// P2WPKH, P2PKH and P2SH-wrapped P2WPKH outputs.
package tx

import (
	"bytes"
	"context"
	"fmt"

	"github.com/Klingon-tech/btc-transfer/pkg/types"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/wire"
	"golang.org/x/sync/errgroup"
)

// DefaultFetchWorkers bounds concurrent previous-output fetches.
const DefaultFetchWorkers = 4

// txVersion is the version of transactions built here.
const txVersion = 2

// PrevOutFetcher resolves the outputs being spent.
type PrevOutFetcher interface {
	// PrevOut returns output vout of transaction txid.
	PrevOut(ctx context.Context, txid string, vout uint32) (*wire.TxOut, error)
	// PrevTx returns the complete transaction txid.
	PrevTx(ctx context.Context, txid string) (*wire.MsgTx, error)
}

// DraftInput is a selected UTXO with the previous-output data its spend
// type needs for signing.
type DraftInput struct {
	UTXO    types.UTXO
	PrevOut *wire.TxOut
	PrevTx  *wire.MsgTx // nil for witness inputs
}

// Draft is an unsigned transaction ready for Sign.
type Draft struct {
	Packet  *psbt.Packet
	Inputs  []DraftInput
	Network types.Network
}

// Outputs returns the draft's outputs in order.
func (d *Draft) Outputs() []*wire.TxOut {
	return d.Packet.UnsignedTx.TxOut
}

// InputValue is the sum of the spent outputs.
func (d *Draft) InputValue() uint64 {
	var sum uint64
	for _, in := range d.Inputs {
		sum += in.UTXO.Value
	}
	return sum
}

// OutputValue is the sum of the new outputs.
func (d *Draft) OutputValue() uint64 {
	var sum uint64
	for _, out := range d.Outputs() {
		sum += uint64(out.Value)
	}
	return sum
}

// Fee is the implicit miner fee, InputValue - OutputValue.
func (d *Draft) Fee() uint64 {
	return d.InputValue() - d.OutputValue()
}

// Builder constructs a Draft incrementally.
type Builder struct {
	network  types.Network
	inputs   []types.UTXO
	outputs  []*wire.TxOut
	lockTime uint32
	workers  int
	err      error
}

// NewBuilder creates a new transaction builder for network.
func NewBuilder(network types.Network) *Builder {
	return &Builder{network: network, workers: DefaultFetchWorkers}
}

// AddInput adds a UTXO to spend. Inputs keep the order they are added in.
func (b *Builder) AddInput(u types.UTXO) *Builder {
	b.inputs = append(b.inputs, u)
	return b
}

// AddOutput adds an output with a value and script. An invalid value is
// reported by Build.
func (b *Builder) AddOutput(value uint64, script []byte) *Builder {
	if b.err == nil {
		switch {
		case value == 0:
			b.err = fmt.Errorf("%w: output %d has zero value", types.ErrInvalidAmount, len(b.outputs))
		case value > types.MaxSatoshi:
			b.err = fmt.Errorf("%w: output %d value %d exceeds supply", types.ErrInvalidAmount, len(b.outputs), value)
		case len(script) == 0:
			b.err = fmt.Errorf("output %d has an empty script", len(b.outputs))
		}
	}
	b.outputs = append(b.outputs, wire.NewTxOut(int64(value), script))
	return b
}

// SetLockTime sets the transaction lock time.
func (b *Builder) SetLockTime(lockTime uint32) *Builder {
	b.lockTime = lockTime
	return b
}

// WithWorkers bounds the number of concurrent fetches made by Build.
func (b *Builder) WithWorkers(n int) *Builder {
	if n > 0 {
		b.workers = n
	}
	return b
}

// Build resolves and classifies every input's previous output, attaches
// the data its spend type needs, and returns the unsigned draft. Witness
// inputs carry only the previous output; legacy inputs also carry the
// full previous transaction. Fetches run concurrently but the draft keeps
// the order inputs were added in.
func (b *Builder) Build(ctx context.Context, fetcher PrevOutFetcher) (*Draft, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.inputs) == 0 {
		return nil, ErrNoInputs
	}
	if len(b.outputs) == 0 {
		return nil, ErrNoOutputs
	}

	var inTotal, outTotal uint64
	for _, u := range b.inputs {
		inTotal += u.Value
	}
	for _, out := range b.outputs {
		outTotal += uint64(out.Value)
	}
	if outTotal > types.MaxSatoshi {
		return nil, fmt.Errorf("%w: outputs total %d exceeds supply", types.ErrInvalidAmount, outTotal)
	}
	if inTotal < outTotal {
		return nil, fmt.Errorf("%w: inputs %d do not cover outputs %d", types.ErrInvalidAmount, inTotal, outTotal)
	}

	resolved := make([]DraftInput, len(b.inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for i, u := range b.inputs {
		g.Go(func() error {
			in, err := resolveInput(gctx, fetcher, u)
			if err != nil {
				return fmt.Errorf("input %d (%s): %w", i, u, err)
			}
			resolved[i] = *in
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return b.assemble(resolved)
}

func resolveInput(ctx context.Context, fetcher PrevOutFetcher, u types.UTXO) (*DraftInput, error) {
	prevOut, err := fetcher.PrevOut(ctx, u.TxID, u.Vout)
	if err != nil {
		return nil, err
	}
	if prevOut.Value < 0 || uint64(prevOut.Value) != u.Value {
		return nil, fmt.Errorf("%w: value %d, utxo says %d", ErrPrevOutMismatch, prevOut.Value, u.Value)
	}
	if u.Script != nil && !bytes.Equal(u.Script, prevOut.PkScript) {
		return nil, fmt.Errorf("%w: script differs", ErrPrevOutMismatch)
	}

	st, err := types.ClassifyScript(prevOut.PkScript)
	if err != nil {
		return nil, err
	}
	u.Script = prevOut.PkScript
	u.Type = st

	in := &DraftInput{UTXO: u, PrevOut: prevOut}
	if st.IsWitness() {
		return in, nil
	}

	prevTx, err := fetcher.PrevTx(ctx, u.TxID)
	if err != nil {
		return nil, err
	}
	if got := prevTx.TxHash().String(); got != u.TxID {
		return nil, fmt.Errorf("%w: previous tx hashes to %s", ErrPrevOutMismatch, got)
	}
	if int(u.Vout) >= len(prevTx.TxOut) {
		return nil, fmt.Errorf("%w: previous tx has %d outputs", ErrPrevOutMismatch, len(prevTx.TxOut))
	}
	if full := prevTx.TxOut[u.Vout]; full.Value != prevOut.Value || !bytes.Equal(full.PkScript, prevOut.PkScript) {
		return nil, fmt.Errorf("%w: previous tx output differs from indexed output", ErrPrevOutMismatch)
	}
	in.PrevTx = prevTx
	return in, nil
}

func (b *Builder) assemble(inputs []DraftInput) (*Draft, error) {
	outpoints := make([]*wire.OutPoint, len(inputs))
	sequences := make([]uint32, len(inputs))
	for i, in := range inputs {
		op, err := in.UTXO.Outpoint()
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		outpoints[i] = op
		sequences[i] = wire.MaxTxInSequenceNum
	}

	outputs := make([]*wire.TxOut, len(b.outputs))
	for i, out := range b.outputs {
		outputs[i] = wire.NewTxOut(out.Value, append([]byte(nil), out.PkScript...))
	}

	packet, err := psbt.New(outpoints, outputs, txVersion, b.lockTime, sequences)
	if err != nil {
		return nil, fmt.Errorf("create draft: %w", err)
	}
	updater, err := psbt.NewUpdater(packet)
	if err != nil {
		return nil, fmt.Errorf("create draft: %w", err)
	}
	for i, in := range inputs {
		if in.PrevTx != nil {
			err = updater.AddInNonWitnessUtxo(in.PrevTx, i)
		} else {
			err = updater.AddInWitnessUtxo(in.PrevOut, i)
		}
		if err != nil {
			return nil, fmt.Errorf("attach previous output to input %d: %w", i, err)
		}
	}

	return &Draft{Packet: packet, Inputs: inputs, Network: b.network}, nil
}
