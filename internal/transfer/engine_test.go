package transfer

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Klingon-tech/btc-transfer/internal/indexer"
	"github.com/Klingon-tech/btc-transfer/internal/wallet"
	"github.com/Klingon-tech/btc-transfer/pkg/tx"
	"github.com/Klingon-tech/btc-transfer/pkg/types"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testMnemonic  = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	senderAddr    = "tb1q6rz28mcfaxtmd6v789l9rrlrusdprr9pqcpvkl"
	recipientAddr = "tb1qw508d6qejxtdg4y5r3zarvary0c5xw7kxpjzsx"
)

var session = Session{Mnemonic: testMnemonic}

// esplora is an in-memory indexer serving the Esplora endpoints the
// engine uses.
type esplora struct {
	t *testing.T

	mu          sync.Mutex
	txs         map[string]*wire.MsgTx
	utxos       []types.UTXO
	feeBody     string
	feeStatus   int
	utxoStatus  int
	rejectWith  string
	acceptReply string
	requests    atomic.Int32
	posts       atomic.Int32
	broadcasted []byte
}

func newEsplora(t *testing.T) *esplora {
	return &esplora{t: t, txs: make(map[string]*wire.MsgTx), feeStatus: http.StatusOK}
}

// fund records a confirmed output of value to script at the sender address.
func (e *esplora) fund(value uint64, script []byte) types.UTXO {
	msg := wire.NewMsgTx(2)
	prev := chainhash.Hash{byte(len(e.txs) + 1)}
	msg.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&prev, 0), nil, nil))
	msg.AddTxOut(wire.NewTxOut(int64(value), script))
	u := types.UTXO{TxID: msg.TxHash().String(), Vout: 0, Value: value}
	e.txs[u.TxID] = msg
	e.utxos = append(e.utxos, u)
	return u
}

func (e *esplora) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /address/{addr}/utxo", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(e.t, senderAddr, r.PathValue("addr"))
		if e.utxoStatus != 0 {
			w.WriteHeader(e.utxoStatus)
			return
		}
		list := make([]map[string]any, len(e.utxos))
		for i, u := range e.utxos {
			list[i] = map[string]any{"txid": u.TxID, "vout": u.Vout, "value": u.Value,
				"status": map[string]any{"confirmed": true}}
		}
		_ = json.NewEncoder(w).Encode(list)
	})
	mux.HandleFunc("GET /address/{addr}", func(w http.ResponseWriter, r *http.Request) {
		var sum uint64
		for _, u := range e.utxos {
			sum += u.Value
		}
		fmt.Fprintf(w, `{"address":%q,"chain_stats":{"funded_txo_sum":%d,"spent_txo_sum":0},"mempool_stats":{}}`,
			r.PathValue("addr"), sum)
	})
	mux.HandleFunc("GET /tx/{txid}", func(w http.ResponseWriter, r *http.Request) {
		msg, ok := e.txs[r.PathValue("txid")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		vout := make([]map[string]any, len(msg.TxOut))
		for i, out := range msg.TxOut {
			vout[i] = map[string]any{"scriptpubkey": hex.EncodeToString(out.PkScript), "value": out.Value}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"txid": msg.TxHash().String(), "vout": vout, "status": map[string]any{"confirmed": true},
		})
	})
	mux.HandleFunc("GET /tx/{txid}/hex", func(w http.ResponseWriter, r *http.Request) {
		msg, ok := e.txs[r.PathValue("txid")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		var buf bytes.Buffer
		require.NoError(e.t, msg.Serialize(&buf))
		fmt.Fprint(w, hex.EncodeToString(buf.Bytes()))
	})
	mux.HandleFunc("GET /fee-estimates", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(e.feeStatus)
		fmt.Fprint(w, e.feeBody)
	})
	mux.HandleFunc("POST /tx", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(e.t, err)
		e.posts.Add(1)

		if e.rejectWith != "" {
			http.Error(w, e.rejectWith, http.StatusBadRequest)
			return
		}
		raw, err := hex.DecodeString(string(body))
		require.NoError(e.t, err)
		msg, err := tx.Decode(raw)
		require.NoError(e.t, err)
		e.mu.Lock()
		e.broadcasted = raw
		e.mu.Unlock()
		if e.acceptReply != "" {
			fmt.Fprint(w, e.acceptReply)
			return
		}
		fmt.Fprint(w, msg.TxHash().String())
	})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		e.requests.Add(1)
		mux.ServeHTTP(w, r)
	})
}

func (e *esplora) lastBroadcast() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.broadcasted
}

func newTestEngine(t *testing.T, e *esplora) *Engine {
	t.Helper()
	srv := httptest.NewServer(e.handler())
	t.Cleanup(srv.Close)
	client := indexer.New(srv.URL, indexer.WithTimeout(2*time.Second))
	return New(client, types.Testnet, WithLogger(zerolog.Nop()), WithFetchWorkers(2))
}

func senderScript(t *testing.T) []byte {
	t.Helper()
	acct, err := wallet.DeriveAccount(testMnemonic, "", types.Testnet)
	require.NoError(t, err)
	defer acct.Zero()
	require.Equal(t, senderAddr, acct.Address.EncodeAddress())
	return acct.Script()
}

func requireKind(t *testing.T, err error, stage Stage, kind Kind) *Error {
	t.Helper()
	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, stage, terr.Stage, "stage")
	assert.Equal(t, kind, terr.Kind, "kind")
	return terr
}

func TestEngine_Address(t *testing.T) {
	eng := newTestEngine(t, newEsplora(t))
	addr, err := eng.Address(session)
	require.NoError(t, err)
	assert.Equal(t, senderAddr, addr)
}

func TestEngine_Balance(t *testing.T) {
	e := newEsplora(t)
	script := senderScript(t)
	e.fund(30_000, script)
	e.fund(12_500, script)

	bal, err := newTestEngine(t, e).Balance(context.Background(), session)
	require.NoError(t, err)
	assert.Equal(t, uint64(42_500), bal)
}

func TestEngine_BalanceNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)
	eng := New(indexer.New(srv.URL, indexer.WithTimeout(2*time.Second)), types.Testnet, WithLogger(zerolog.Nop()))

	_, err := eng.Balance(context.Background(), session)
	terr := requireKind(t, err, StageBalance, KindNetwork)
	assert.Contains(t, terr.Error(), "balance: network error")
	assert.ErrorIs(t, err, indexer.ErrNetwork)
}

// Fee estimates unavailable: the transfer proceeds at the 10 sat/vB fallback.
func TestTransfer_FeeFallback(t *testing.T) {
	e := newEsplora(t)
	u := e.fund(100_000, senderScript(t))

	res, err := newTestEngine(t, e).Transfer(context.Background(), session, recipientAddr, "0.0005")
	require.NoError(t, err)

	// 1 P2WPKH input, recipient + change: 141 vB.
	assert.Equal(t, uint64(1410), res.Fee)
	assert.Equal(t, uint64(48_590), res.Change)
	assert.Equal(t, 1, res.Inputs)
	assert.Equal(t, senderAddr, res.Address)
	assert.EqualValues(t, 1, e.posts.Load())

	msg, err := tx.Decode(e.lastBroadcast())
	require.NoError(t, err)
	assert.Equal(t, res.TxID, msg.TxHash().String())
	require.Len(t, msg.TxIn, 1)
	assert.Equal(t, u.TxID, msg.TxIn[0].PreviousOutPoint.Hash.String())
	require.Len(t, msg.TxOut, 2)
	assert.Equal(t, int64(50_000), msg.TxOut[0].Value)
	assert.Equal(t, int64(48_590), msg.TxOut[1].Value)
	assert.Equal(t, senderScript(t), msg.TxOut[1].PkScript)
}

func TestTransfer_FeeEstimateTier(t *testing.T) {
	e := newEsplora(t)
	e.feeBody = `{"1": 20.5, "3": 12.0, "6": 4.2, "144": 1.0}`
	e.fund(100_000, senderScript(t))

	res, err := newTestEngine(t, e).Transfer(context.Background(), session, recipientAddr, "0.0005")
	require.NoError(t, err)
	// ceil(4.2) = 5 sat/vB.
	assert.Equal(t, uint64(705), res.Fee)
}

func TestTransfer_ReselectsForInputCount(t *testing.T) {
	e := newEsplora(t)
	script := senderScript(t)
	first := e.fund(30_000, script)
	second := e.fund(30_000, script)
	e.fund(30_000, script)

	res, err := newTestEngine(t, e).Transfer(context.Background(), session, recipientAddr, "0.0005")
	require.NoError(t, err)

	// Two inputs: 209 vB at 10 sat/vB.
	assert.Equal(t, 2, res.Inputs)
	assert.Equal(t, uint64(2090), res.Fee)
	assert.Equal(t, uint64(7910), res.Change)

	msg, err := tx.Decode(e.lastBroadcast())
	require.NoError(t, err)
	require.Len(t, msg.TxIn, 2)
	assert.Equal(t, first.TxID, msg.TxIn[0].PreviousOutPoint.Hash.String())
	assert.Equal(t, second.TxID, msg.TxIn[1].PreviousOutPoint.Hash.String())
	assert.LessOrEqual(t, tx.VSize(msg), 209)
}

func TestTransfer_NoChangeOutput(t *testing.T) {
	e := newEsplora(t)
	e.fund(51_410, senderScript(t))

	res, err := newTestEngine(t, e).Transfer(context.Background(), session, recipientAddr, "0.0005")
	require.NoError(t, err)
	assert.Zero(t, res.Change)

	msg, err := tx.Decode(e.lastBroadcast())
	require.NoError(t, err)
	assert.Len(t, msg.TxOut, 1)
}

// A rejected broadcast surfaces the provider text and is not retried.
func TestTransfer_BroadcastRejected(t *testing.T) {
	e := newEsplora(t)
	e.rejectWith = `sendrawtransaction RPC error: {"code":-25,"message":"bad-txns-inputs-missingorspent"}`
	e.fund(100_000, senderScript(t))

	_, err := newTestEngine(t, e).Transfer(context.Background(), session, recipientAddr, "0.0005")
	requireKind(t, err, StageBroadcast, KindBroadcast)

	var be *indexer.BroadcastError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, http.StatusBadRequest, be.StatusCode)
	assert.Contains(t, be.Reason, "bad-txns-inputs-missingorspent")
	assert.EqualValues(t, 1, e.posts.Load())
}

// An accepted broadcast without a txid in the reply is still a success.
func TestTransfer_BroadcastAcceptedWithoutTxID(t *testing.T) {
	e := newEsplora(t)
	e.acceptReply = "OK"
	e.fund(100_000, senderScript(t))

	res, err := newTestEngine(t, e).Transfer(context.Background(), session, recipientAddr, "0.0005")
	require.NoError(t, err)
	assert.EqualValues(t, 1, e.posts.Load())

	msg, err := tx.Decode(e.lastBroadcast())
	require.NoError(t, err)
	assert.Equal(t, msg.TxHash().String(), res.TxID)
}

func TestTransfer_InsufficientFunds(t *testing.T) {
	tests := []struct {
		name   string
		values []uint64
	}{
		{"no utxos", nil},
		{"too small", []uint64{3_000, 2_000}},
		{"amount covered but not fee", []uint64{50_000}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEsplora(t)
			script := senderScript(t)
			for _, v := range tt.values {
				e.fund(v, script)
			}
			_, err := newTestEngine(t, e).Transfer(context.Background(), session, recipientAddr, "0.0005")
			requireKind(t, err, StageSelectCoins, KindInsufficientFunds)
			assert.True(t, errors.Is(err, wallet.ErrInsufficientFunds))
			assert.Zero(t, e.posts.Load())
		})
	}
}

// Validation failures happen before any request reaches the indexer.
func TestTransfer_Validation(t *testing.T) {
	tests := []struct {
		name      string
		recipient string
		amount    string
		wantErr   error
	}{
		{"bad address", "not-an-address", "0.001", types.ErrInvalidAddress},
		{"mainnet address", "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4", "0.001", types.ErrInvalidAddress},
		{"zero amount", recipientAddr, "0", types.ErrInvalidAmount},
		{"negative amount", recipientAddr, "-1", types.ErrInvalidAmount},
		{"unparsable amount", recipientAddr, "one", types.ErrInvalidAmount},
		{"too many decimals", recipientAddr, "0.000000001", types.ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEsplora(t)
			_, err := newTestEngine(t, e).Transfer(context.Background(), session, tt.recipient, tt.amount)
			requireKind(t, err, StageValidate, KindValidation)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Zero(t, e.requests.Load())
		})
	}
}

func TestTransfer_InvalidMnemonic(t *testing.T) {
	e := newEsplora(t)
	bad := Session{Mnemonic: "abandon abandon abandon"}
	_, err := newTestEngine(t, e).Transfer(context.Background(), bad, recipientAddr, "0.001")
	requireKind(t, err, StageDeriveAccount, KindKeyDerivation)
	assert.ErrorIs(t, err, wallet.ErrInvalidMnemonic)
	assert.Zero(t, e.requests.Load())
}

func TestTransfer_UnsupportedScript(t *testing.T) {
	e := newEsplora(t)
	e.fund(100_000, []byte{txscript.OP_TRUE})

	_, err := newTestEngine(t, e).Transfer(context.Background(), session, recipientAddr, "0.0005")
	requireKind(t, err, StageBuildDraft, KindUnsupportedScript)
	assert.ErrorIs(t, err, types.ErrUnsupportedScript)
	assert.Zero(t, e.posts.Load())
}

func TestTransfer_NetworkError(t *testing.T) {
	e := newEsplora(t)
	e.utxoStatus = http.StatusServiceUnavailable

	_, err := newTestEngine(t, e).Transfer(context.Background(), session, recipientAddr, "0.0005")
	requireKind(t, err, StageFetchUTXOs, KindNetwork)
	assert.ErrorIs(t, err, indexer.ErrNetwork)
}

func TestTransfer_PrevOutMissing(t *testing.T) {
	e := newEsplora(t)
	u := e.fund(100_000, senderScript(t))
	delete(e.txs, u.TxID)

	_, err := newTestEngine(t, e).Transfer(context.Background(), session, recipientAddr, "0.0005")
	requireKind(t, err, StageBuildDraft, KindNetwork)
}

func TestError_Format(t *testing.T) {
	err := stageErr(StageSign, fmt.Errorf("input 0: %w", tx.ErrSigning))
	assert.Equal(t, KindSigning, err.Kind)
	assert.Equal(t, "sign: signing error: input 0: signing failed", err.Error())
	assert.Equal(t, KindSigning, KindOf(err))
	assert.Equal(t, Kind(0), KindOf(errors.New("plain")))
}
