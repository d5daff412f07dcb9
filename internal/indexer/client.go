// Package indexer is a client for Esplora-compatible block explorer APIs.
// It reads balances, UTXOs, previous transactions and fee estimates, and
// broadcasts signed transactions.
package indexer

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/Klingon-tech/btc-transfer/pkg/types"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// Defaults used when no option overrides them.
const (
	DefaultTimeout         = 30 * time.Second
	DefaultFeeTarget       = 6
	DefaultFallbackFeeRate = 10
)

// maxErrorBody bounds how much of an error body is kept in messages.
const maxErrorBody = 512

// Client talks to one indexer base URL. It holds no per-call state and is
// safe for concurrent use.
type Client struct {
	http        *resty.Client
	feeTarget   int
	fallbackFee uint64
	logger      zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds every request made by the client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.SetTimeout(d)
		}
	}
}

// WithFeeTarget sets the confirmation target (in blocks) FeeRate prefers.
func WithFeeTarget(blocks int) Option {
	return func(c *Client) {
		if blocks > 0 {
			c.feeTarget = blocks
		}
	}
}

// WithFallbackFeeRate sets the sat/vB rate used when no estimate is available.
func WithFallbackFeeRate(rate uint64) Option {
	return func(c *Client) {
		if rate > 0 {
			c.fallbackFee = rate
		}
	}
}

// WithLogger sets the logger used for request and fallback logging.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = l
		c.http.SetLogger(restyLogger{l})
	}
}

// New creates a client for the indexer at baseURL, e.g.
// https://blockstream.info/testnet/api.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(DefaultTimeout).
			SetHeader("User-Agent", "btc-transfer"),
		feeTarget:   DefaultFeeTarget,
		fallbackFee: DefaultFallbackFeeRate,
		logger:      zerolog.Nop(),
	}
	c.http.SetLogger(restyLogger{c.logger})
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// get performs a GET and returns the body of a 2xx response.
func (c *Client) get(ctx context.Context, path string, params map[string]string) ([]byte, error) {
	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParams(params).
		Get(path)
	if err != nil {
		return nil, networkErr("GET %s: %v", path, err)
	}
	c.logger.Debug().
		Str("path", resp.Request.URL).
		Int("status", resp.StatusCode()).
		Dur("duration", time.Since(start)).
		Msg("indexer request")

	if !resp.IsSuccess() {
		return nil, networkErr("GET %s: status %d: %s", resp.Request.URL, resp.StatusCode(), truncate(resp.String()))
	}
	return resp.Body(), nil
}

func (c *Client) getJSON(ctx context.Context, path string, params map[string]string, v any) error {
	body, err := c.get(ctx, path, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return networkErr("decode %s: %v", path, err)
	}
	return nil
}

type chainStats struct {
	FundedTxoSum uint64 `json:"funded_txo_sum"`
	SpentTxoSum  uint64 `json:"spent_txo_sum"`
	TxCount      uint64 `json:"tx_count"`
}

type addressResponse struct {
	Address      string     `json:"address"`
	ChainStats   chainStats `json:"chain_stats"`
	MempoolStats chainStats `json:"mempool_stats"`
}

// AddressBalance splits a balance into its confirmed and mempool parts.
// Unconfirmed is negative when pending spends exceed pending receipts.
type AddressBalance struct {
	Confirmed   uint64
	Unconfirmed int64
}

// Total returns funded minus spent over chain and mempool.
func (b AddressBalance) Total() uint64 {
	if b.Unconfirmed < 0 {
		return b.Confirmed - uint64(-b.Unconfirmed)
	}
	return b.Confirmed + uint64(b.Unconfirmed)
}

// AddressBalance fetches GET /address/{addr}.
func (c *Client) AddressBalance(ctx context.Context, addr string) (*AddressBalance, error) {
	var resp addressResponse
	if err := c.getJSON(ctx, "/address/{addr}", map[string]string{"addr": addr}, &resp); err != nil {
		return nil, err
	}
	cs, ms := resp.ChainStats, resp.MempoolStats
	if cs.SpentTxoSum > cs.FundedTxoSum {
		return nil, networkErr("address %s: spent %d exceeds funded %d", addr, cs.SpentTxoSum, cs.FundedTxoSum)
	}
	confirmed := cs.FundedTxoSum - cs.SpentTxoSum
	pending := int64(ms.FundedTxoSum) - int64(ms.SpentTxoSum)
	if pending < 0 && uint64(-pending) > confirmed {
		return nil, networkErr("address %s: mempool spends exceed confirmed balance", addr)
	}
	return &AddressBalance{Confirmed: confirmed, Unconfirmed: pending}, nil
}

// Balance returns funded minus spent for addr, mempool included.
func (c *Client) Balance(ctx context.Context, addr string) (uint64, error) {
	b, err := c.AddressBalance(ctx, addr)
	if err != nil {
		return 0, err
	}
	return b.Total(), nil
}

type utxoResponse struct {
	TxID   string `json:"txid"`
	Vout   uint32 `json:"vout"`
	Value  uint64 `json:"value"`
	Status struct {
		Confirmed bool `json:"confirmed"`
	} `json:"status"`
}

// UTXOs fetches GET /address/{addr}/utxo. Provider order is preserved
// because coin selection depends on it. An empty list is not an error.
// Scripts are not part of this response and are resolved by the builder.
func (c *Client) UTXOs(ctx context.Context, addr string) ([]types.UTXO, error) {
	var resp []utxoResponse
	if err := c.getJSON(ctx, "/address/{addr}/utxo", map[string]string{"addr": addr}, &resp); err != nil {
		return nil, err
	}

	utxos := make([]types.UTXO, 0, len(resp))
	for _, u := range resp {
		if _, err := chainhash.NewHashFromStr(u.TxID); err != nil || len(u.TxID) != chainhash.MaxHashStringSize {
			return nil, networkErr("utxo list for %s: bad txid %q", addr, u.TxID)
		}
		utxos = append(utxos, types.UTXO{TxID: u.TxID, Vout: u.Vout, Value: u.Value})
	}
	return utxos, nil
}

// TxOutput is one output of an indexed transaction.
type TxOutput struct {
	Script []byte
	Value  uint64
}

// Transaction is the indexer's view of a transaction.
type Transaction struct {
	TxID      string
	Outputs   []TxOutput
	Confirmed bool
}

type txResponse struct {
	TxID string `json:"txid"`
	Vout []struct {
		ScriptPubKey string `json:"scriptpubkey"`
		Value        uint64 `json:"value"`
	} `json:"vout"`
	Status struct {
		Confirmed bool `json:"confirmed"`
	} `json:"status"`
}

// Transaction fetches GET /tx/{txid}.
func (c *Client) Transaction(ctx context.Context, txid string) (*Transaction, error) {
	var resp txResponse
	if err := c.getJSON(ctx, "/tx/{txid}", map[string]string{"txid": txid}, &resp); err != nil {
		return nil, err
	}
	if resp.TxID != txid {
		return nil, networkErr("tx %s: response is for %q", txid, resp.TxID)
	}

	tx := &Transaction{TxID: resp.TxID, Confirmed: resp.Status.Confirmed}
	for i, out := range resp.Vout {
		script, err := hex.DecodeString(out.ScriptPubKey)
		if err != nil {
			return nil, networkErr("tx %s output %d: bad script hex: %v", txid, i, err)
		}
		tx.Outputs = append(tx.Outputs, TxOutput{Script: script, Value: out.Value})
	}
	return tx, nil
}

// RawTransaction is a previous transaction in wire form.
type RawTransaction struct {
	Raw     []byte
	Tx      *wire.MsgTx
	Outputs []TxOutput
}

// RawTransaction fetches GET /tx/{txid}/hex and decodes it. The decoded
// transaction must hash to txid.
func (c *Client) RawTransaction(ctx context.Context, txid string) (*RawTransaction, error) {
	body, err := c.get(ctx, "/tx/{txid}/hex", map[string]string{"txid": txid})
	if err != nil {
		return nil, err
	}
	raw, err := hex.DecodeString(strings.TrimSpace(string(body)))
	if err != nil {
		return nil, networkErr("tx %s: bad hex body: %v", txid, err)
	}

	var msg wire.MsgTx
	if err := msg.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, networkErr("tx %s: decode: %v", txid, err)
	}
	if got := msg.TxHash().String(); got != txid {
		return nil, networkErr("tx %s: body hashes to %s", txid, got)
	}

	rt := &RawTransaction{Raw: raw, Tx: &msg}
	for _, out := range msg.TxOut {
		rt.Outputs = append(rt.Outputs, TxOutput{Script: out.PkScript, Value: uint64(out.Value)})
	}
	return rt, nil
}

// PrevOut returns output vout of txid.
func (c *Client) PrevOut(ctx context.Context, txid string, vout uint32) (*wire.TxOut, error) {
	tx, err := c.Transaction(ctx, txid)
	if err != nil {
		return nil, err
	}
	if int(vout) >= len(tx.Outputs) {
		return nil, networkErr("tx %s has %d outputs, want index %d", txid, len(tx.Outputs), vout)
	}
	out := tx.Outputs[vout]
	return wire.NewTxOut(int64(out.Value), out.Script), nil
}

// PrevTx returns the full decoded transaction txid.
func (c *Client) PrevTx(ctx context.Context, txid string) (*wire.MsgTx, error) {
	rt, err := c.RawTransaction(ctx, txid)
	if err != nil {
		return nil, err
	}
	return rt.Tx, nil
}

// Broadcast posts a signed transaction to POST /tx and returns the txid the
// indexer reports. A rejection is a *BroadcastError. Any 2xx reply means the
// transaction was accepted; if its body is not a txid, Broadcast returns ""
// and a nil error. Broadcast is never retried here.
func (c *Client) Broadcast(ctx context.Context, raw []byte) (string, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "text/plain").
		SetBody(hex.EncodeToString(raw)).
		Post("/tx")
	if err != nil {
		return "", networkErr("POST /tx: %v", err)
	}

	body := strings.TrimSpace(resp.String())
	if !resp.IsSuccess() {
		c.logger.Warn().Int("status", resp.StatusCode()).Str("reason", truncate(body)).Msg("broadcast rejected")
		return "", &BroadcastError{StatusCode: resp.StatusCode(), Reason: truncate(body)}
	}
	if _, err := chainhash.NewHashFromStr(body); err != nil || len(body) != chainhash.MaxHashStringSize {
		c.logger.Warn().Int("status", resp.StatusCode()).Str("body", truncate(body)).Msg("broadcast accepted without a txid")
		return "", nil
	}
	return body, nil
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}

// restyLogger routes resty's own diagnostics into zerolog.
type restyLogger struct {
	l zerolog.Logger
}

func (r restyLogger) Errorf(format string, v ...any) { r.l.Error().Msgf(format, v...) }
func (r restyLogger) Warnf(format string, v ...any)  { r.l.Warn().Msgf(format, v...) }
func (r restyLogger) Debugf(format string, v ...any) { r.l.Debug().Msgf(format, v...) }
