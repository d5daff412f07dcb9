package tx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/Klingon-tech/btc-transfer/pkg/crypto"
	"github.com/Klingon-tech/btc-transfer/pkg/types"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

var errNotFound = errors.New("not found")

// fakeChain serves previous outputs from transactions it was given.
type fakeChain struct {
	txs        map[string]*wire.MsgTx
	prevTxHits atomic.Int32
}

func newFakeChain() *fakeChain {
	return &fakeChain{txs: make(map[string]*wire.MsgTx)}
}

// fund creates a transaction paying value to script and returns the UTXO.
func (c *fakeChain) fund(value uint64, script []byte) types.UTXO {
	msg := wire.NewMsgTx(2)
	var prev chainhash.Hash
	prev[0] = byte(len(c.txs) + 1)
	msg.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&prev, 0), nil, nil))
	// A filler output first so vout is not always zero.
	msg.AddTxOut(wire.NewTxOut(1000, []byte{txscript.OP_TRUE}))
	msg.AddTxOut(wire.NewTxOut(int64(value), script))
	txid := msg.TxHash().String()
	c.txs[txid] = msg
	return types.UTXO{TxID: txid, Vout: 1, Value: value}
}

func (c *fakeChain) PrevOut(_ context.Context, txid string, vout uint32) (*wire.TxOut, error) {
	msg, ok := c.txs[txid]
	if !ok || int(vout) >= len(msg.TxOut) {
		return nil, fmt.Errorf("%s:%d: %w", txid, vout, errNotFound)
	}
	out := msg.TxOut[vout]
	return wire.NewTxOut(out.Value, append([]byte(nil), out.PkScript...)), nil
}

func (c *fakeChain) PrevTx(_ context.Context, txid string) (*wire.MsgTx, error) {
	c.prevTxHits.Add(1)
	msg, ok := c.txs[txid]
	if !ok {
		return nil, fmt.Errorf("%s: %w", txid, errNotFound)
	}
	return msg.Copy(), nil
}

func testKey(t *testing.T, seed byte) *crypto.PrivateKey {
	t.Helper()
	b := bytes.Repeat([]byte{seed}, 32)
	key, err := crypto.PrivateKeyFromBytes(b)
	if err != nil {
		t.Fatalf("PrivateKeyFromBytes: %v", err)
	}
	return key
}

func p2wpkhScript(key *crypto.PrivateKey) []byte {
	return append([]byte{txscript.OP_0, txscript.OP_DATA_20}, crypto.PubKeyHash(key.PublicKey())...)
}

func p2pkhScript(key *crypto.PrivateKey) []byte {
	s := []byte{txscript.OP_DUP, txscript.OP_HASH160, txscript.OP_DATA_20}
	s = append(s, crypto.PubKeyHash(key.PublicKey())...)
	return append(s, txscript.OP_EQUALVERIFY, txscript.OP_CHECKSIG)
}

func p2shP2WPKHScript(key *crypto.PrivateKey) []byte {
	s := []byte{txscript.OP_HASH160, txscript.OP_DATA_20}
	s = append(s, crypto.Hash160(p2wpkhScript(key))...)
	return append(s, txscript.OP_EQUAL)
}
