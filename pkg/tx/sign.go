package tx

import (
	"bytes"
	"fmt"

	"github.com/Klingon-tech/btc-transfer/pkg/crypto"
	"github.com/Klingon-tech/btc-transfer/pkg/types"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// Sign signs every input of the draft with key, finalizes the scripts and
// witnesses, and checks each input against the script engine before
// returning. Every input must pay to key: P2WPKH and P2PKH to its public
// key hash, P2SH to the hash of its P2WPKH program. The draft is not
// modified.
func Sign(d *Draft, key *crypto.PrivateKey) (*SignedTransaction, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: no key", ErrSigning)
	}
	if len(d.Inputs) != len(d.Packet.UnsignedTx.TxIn) {
		return nil, fmt.Errorf("%w: draft has %d inputs, transaction %d",
			ErrSigning, len(d.Inputs), len(d.Packet.UnsignedTx.TxIn))
	}

	packet, err := copyPacket(d.Packet)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigning, err)
	}
	unsigned := packet.UnsignedTx

	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for i, in := range d.Inputs {
		if in.PrevOut == nil {
			return nil, fmt.Errorf("%w: input %d has no previous output", ErrSigning, i)
		}
		fetcher.AddPrevOut(unsigned.TxIn[i].PreviousOutPoint, in.PrevOut)
	}
	sigHashes := txscript.NewTxSigHashes(unsigned, fetcher)

	pubKey := key.PublicKey()
	pkHash := crypto.PubKeyHash(pubKey)
	// P2WPKH program for this key; also the P2SH redeem script.
	witnessProgram := append([]byte{txscript.OP_0, txscript.OP_DATA_20}, pkHash...)

	updater, err := psbt.NewUpdater(packet)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigning, err)
	}

	for i, in := range d.Inputs {
		pkScript := in.PrevOut.PkScript
		st, err := types.ClassifyScript(pkScript)
		if err != nil {
			return nil, fmt.Errorf("%w: input %d: %v", ErrSigning, i, err)
		}
		hash, err := types.ScriptHash(st, pkScript)
		if err != nil {
			return nil, fmt.Errorf("%w: input %d: %v", ErrSigning, i, err)
		}

		var (
			digest []byte
			redeem []byte
		)
		switch st {
		case types.SpendTypeWitnessV0KeyHash:
			if !bytes.Equal(hash, pkHash) {
				return nil, fmt.Errorf("%w: input %d does not pay to the signing key", ErrSigning, i)
			}
			digest, err = txscript.CalcWitnessSigHash(pkScript, sigHashes,
				txscript.SigHashAll, unsigned, i, in.PrevOut.Value)

		case types.SpendTypePubKeyHash:
			if in.PrevTx == nil {
				return nil, fmt.Errorf("%w: input %d needs the previous transaction", ErrSigning, i)
			}
			if !bytes.Equal(hash, pkHash) {
				return nil, fmt.Errorf("%w: input %d does not pay to the signing key", ErrSigning, i)
			}
			digest, err = txscript.CalcSignatureHash(pkScript, txscript.SigHashAll, unsigned, i)

		case types.SpendTypeScriptHash:
			if in.PrevTx == nil {
				return nil, fmt.Errorf("%w: input %d needs the previous transaction", ErrSigning, i)
			}
			if !bytes.Equal(hash, crypto.Hash160(witnessProgram)) {
				return nil, fmt.Errorf("%w: input %d script hash is not the key's P2WPKH program", ErrSigning, i)
			}
			redeem = witnessProgram
			digest, err = txscript.CalcWitnessSigHash(witnessProgram, sigHashes,
				txscript.SigHashAll, unsigned, i, in.PrevOut.Value)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: input %d sighash: %v", ErrSigning, i, err)
		}

		sig, err := key.Sign(digest)
		if err != nil {
			return nil, fmt.Errorf("%w: input %d: %v", ErrSigning, i, err)
		}
		sig = append(sig, byte(txscript.SigHashAll))

		outcome, err := updater.Sign(i, sig, pubKey, redeem, nil)
		if err != nil || outcome != psbt.SignSuccesful {
			return nil, fmt.Errorf("%w: input %d: outcome %d: %v", ErrSigning, i, outcome, err)
		}
	}

	if err := psbt.MaybeFinalizeAll(packet); err != nil {
		return nil, fmt.Errorf("%w: finalize: %v", ErrSigning, err)
	}
	final, err := psbt.Extract(packet)
	if err != nil {
		return nil, fmt.Errorf("%w: extract: %v", ErrSigning, err)
	}

	if err := verify(final, d.Inputs, fetcher); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigning, err)
	}
	return newSignedTransaction(final)
}

// verify runs every input script of a signed transaction.
func verify(msg *wire.MsgTx, inputs []DraftInput, fetcher txscript.PrevOutputFetcher) error {
	sigHashes := txscript.NewTxSigHashes(msg, fetcher)
	for i, in := range inputs {
		vm, err := txscript.NewEngine(in.PrevOut.PkScript, msg, i,
			txscript.StandardVerifyFlags, nil, sigHashes, in.PrevOut.Value, fetcher)
		if err != nil {
			return fmt.Errorf("input %d: %w", i, err)
		}
		if err := vm.Execute(); err != nil {
			return fmt.Errorf("input %d: %w", i, err)
		}
	}
	return nil
}

func copyPacket(p *psbt.Packet) (*psbt.Packet, error) {
	var buf bytes.Buffer
	if err := p.Serialize(&buf); err != nil {
		return nil, err
	}
	return psbt.NewFromRawBytes(&buf, false)
}
