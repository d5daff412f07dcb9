// Package transfer runs a payment from a wallet mnemonic end to end:
// validate, derive the account, estimate the fee, fetch and select coins,
// build, sign and broadcast.
package transfer

import (
	"context"
	"fmt"

	"github.com/Klingon-tech/btc-transfer/internal/log"
	"github.com/Klingon-tech/btc-transfer/internal/wallet"
	"github.com/Klingon-tech/btc-transfer/pkg/tx"
	"github.com/Klingon-tech/btc-transfer/pkg/types"
	"github.com/rs/zerolog"
)

// ChainClient is the chain state the engine needs. *indexer.Client
// implements it.
type ChainClient interface {
	tx.PrevOutFetcher
	Balance(ctx context.Context, addr string) (uint64, error)
	UTXOs(ctx context.Context, addr string) ([]types.UTXO, error)
	FeeRate(ctx context.Context) uint64
	Broadcast(ctx context.Context, raw []byte) (string, error)
}

// Session carries the caller's wallet secret for one call.
type Session struct {
	Mnemonic   string
	Passphrase string
}

// Result describes a broadcast transfer.
type Result struct {
	TxID    string
	Fee     uint64
	Change  uint64
	Inputs  int
	Address string // sender address
}

// Engine performs transfers for one network through one chain client.
type Engine struct {
	client  ChainClient
	network types.Network
	workers int
	logger  zerolog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithFetchWorkers bounds concurrent previous-output fetches per transfer.
func WithFetchWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// New creates an engine. The client must serve network.
func New(client ChainClient, network types.Network, opts ...Option) *Engine {
	e := &Engine{
		client:  client,
		network: network,
		workers: tx.DefaultFetchWorkers,
		logger:  log.Transfer,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = log.WithNetwork(e.logger, network.String())
	return e
}

// Network returns the network the engine transfers on.
func (e *Engine) Network() types.Network {
	return e.network
}

// Address returns the session's receive address on the engine's network.
func (e *Engine) Address(s Session) (string, error) {
	acct, err := e.deriveAccount(s)
	if err != nil {
		return "", err
	}
	defer acct.Zero()
	return acct.Address.EncodeAddress(), nil
}

// Balance returns the confirmed plus unconfirmed balance of the session's
// address.
func (e *Engine) Balance(ctx context.Context, s Session) (uint64, error) {
	acct, err := e.deriveAccount(s)
	if err != nil {
		return 0, err
	}
	addr := acct.Address.EncodeAddress()
	acct.Zero()

	bal, err := e.client.Balance(ctx, addr)
	if err != nil {
		return 0, stageErr(StageBalance, err)
	}
	return bal, nil
}

func (e *Engine) deriveAccount(s Session) (*wallet.Account, error) {
	if !e.network.Valid() {
		return nil, stageErr(StageValidate, fmt.Errorf("%w: %q", types.ErrUnknownNetwork, e.network))
	}
	acct, err := wallet.DeriveAccount(s.Mnemonic, s.Passphrase, e.network)
	if err != nil {
		return nil, stageErr(StageDeriveAccount, err)
	}
	return acct, nil
}

// Transfer sends amount, a decimal BTC string, to recipient. It either
// returns the broadcast txid or an *Error naming the failed stage.
// Broadcast is attempted at most once.
func (e *Engine) Transfer(ctx context.Context, s Session, recipient, amount string) (*Result, error) {
	f := &flow{engine: e, logger: e.logger}
	defer log.Benchmark(e.logger, "transfer")()
	return f.run(ctx, s, recipient, amount)
}

// flow holds the state of one transfer as it moves through the stages.
type flow struct {
	engine *Engine
	logger zerolog.Logger

	recipient []byte
	amount    uint64
	account   *wallet.Account
	feeRate   uint64
	utxos     []types.UTXO
	selection *wallet.CoinSelection
	draft     *tx.Draft
	signed    *tx.SignedTransaction
	txid      string
}

func (f *flow) run(ctx context.Context, s Session, recipient, amount string) (*Result, error) {
	steps := []struct {
		stage Stage
		fn    func() error
	}{
		{StageValidate, func() error { return f.validate(recipient, amount) }},
		{StageDeriveAccount, func() error { return f.derive(s) }},
		{StageEstimateFee, func() error { return f.estimateFee(ctx) }},
		{StageFetchUTXOs, func() error { return f.fetchUTXOs(ctx) }},
		{StageSelectCoins, f.selectCoins},
		{StageBuildDraft, func() error { return f.build(ctx) }},
		{StageSign, f.sign},
		{StageBroadcast, func() error { return f.broadcast(ctx) }},
	}

	defer func() {
		if f.account != nil {
			f.account.Zero()
		}
	}()

	for _, step := range steps {
		ev := f.logger.Debug().Str("stage", step.stage.String())
		if f.account != nil {
			ev = ev.Str("address", f.account.Address.EncodeAddress())
		}
		ev.Msg("transfer stage")

		if err := step.fn(); err != nil {
			terr := stageErr(step.stage, err)
			f.logger.Warn().
				Str("stage", step.stage.String()).
				Str("kind", terr.Kind.String()).
				Err(err).
				Msg("transfer failed")
			return nil, terr
		}
	}

	f.logger.Info().
		Str("txid", f.txid).
		Uint64("fee", f.selection.Fee).
		Int("inputs", len(f.selection.Inputs)).
		Msg("transaction broadcast")

	return &Result{
		TxID:    f.txid,
		Fee:     f.selection.Fee,
		Change:  f.selection.Change,
		Inputs:  len(f.selection.Inputs),
		Address: f.account.Address.EncodeAddress(),
	}, nil
}

func (f *flow) validate(recipient, amount string) error {
	network := f.engine.network
	if !network.Valid() {
		return fmt.Errorf("%w: %q", types.ErrUnknownNetwork, network)
	}
	addr, err := types.DecodeAddress(recipient, network)
	if err != nil {
		return err
	}
	script, err := types.AddressScript(addr)
	if err != nil {
		return err
	}
	sats, err := types.ParseAmount(amount)
	if err != nil {
		return err
	}
	f.recipient = script
	f.amount = sats
	return nil
}

func (f *flow) derive(s Session) error {
	acct, err := wallet.DeriveAccount(s.Mnemonic, s.Passphrase, f.engine.network)
	if err != nil {
		return err
	}
	f.account = acct
	return nil
}

func (f *flow) estimateFee(ctx context.Context) error {
	f.feeRate = f.engine.client.FeeRate(ctx)
	f.logger.Debug().Uint64("rate", f.feeRate).Msg("fee rate")
	return nil
}

func (f *flow) fetchUTXOs(ctx context.Context) error {
	utxos, err := f.engine.client.UTXOs(ctx, f.account.Address.EncodeAddress())
	if err != nil {
		return err
	}
	f.logger.Debug().Int("count", len(utxos)).Msg("utxos fetched")
	f.utxos = utxos
	return nil
}

// selectCoins sizes the fee for n inputs and re-selects until the number
// of selected inputs stops growing. The fee always budgets for a change
// output.
func (f *flow) selectCoins() error {
	outputs := [][]byte{f.recipient, f.account.Script()}
	st := f.account.SpendType()

	n := 1
	for {
		fee, err := tx.EstimateFee(st, n, outputs, f.feeRate)
		if err != nil {
			return err
		}
		sel, err := wallet.SelectCoins(f.utxos, f.amount, fee)
		if err != nil {
			return err
		}
		if len(sel.Inputs) <= n {
			f.selection = sel
			f.logger.Debug().
				Int("inputs", len(sel.Inputs)).
				Uint64("fee", sel.Fee).
				Uint64("change", sel.Change).
				Msg("coins selected")
			return nil
		}
		n = len(sel.Inputs)
	}
}

func (f *flow) build(ctx context.Context) error {
	b, err := tx.NewTransfer(tx.TransferParams{
		Network:      f.engine.network,
		Inputs:       f.selection.Inputs,
		Recipient:    f.recipient,
		Amount:       f.amount,
		ChangeScript: f.account.Script(),
		Change:       f.selection.Change,
	})
	if err != nil {
		return err
	}
	draft, err := b.WithWorkers(f.engine.workers).Build(ctx, f.engine.client)
	if err != nil {
		return err
	}
	f.draft = draft
	return nil
}

func (f *flow) sign() error {
	signed, err := tx.Sign(f.draft, f.account.PrivateKey)
	if err != nil {
		return err
	}
	f.logger.Debug().
		Str("txid", signed.TxID).
		Int("vsize", signed.VSize()).
		Msg("transaction signed")
	f.signed = signed
	return nil
}

func (f *flow) broadcast(ctx context.Context) error {
	txid, err := f.engine.client.Broadcast(ctx, f.signed.Raw)
	if err != nil {
		return err
	}
	switch {
	case txid == "":
		f.logger.Warn().Str("txid", f.signed.TxID).Msg("indexer accepted the transaction without reporting a txid")
		txid = f.signed.TxID
	case txid != f.signed.TxID:
		f.logger.Warn().Str("reported", txid).Str("computed", f.signed.TxID).Msg("indexer reported a different txid")
	}
	f.txid = txid
	return nil
}
