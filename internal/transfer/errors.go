package transfer

import (
	"errors"
	"fmt"

	"github.com/Klingon-tech/btc-transfer/internal/indexer"
	"github.com/Klingon-tech/btc-transfer/internal/wallet"
	"github.com/Klingon-tech/btc-transfer/pkg/tx"
	"github.com/Klingon-tech/btc-transfer/pkg/types"
)

// Stage is a step of a transfer, in execution order.
type Stage uint8

const (
	StageValidate Stage = iota
	StageDeriveAccount
	StageEstimateFee
	StageFetchUTXOs
	StageSelectCoins
	StageBuildDraft
	StageSign
	StageBroadcast
	StageDone

	// StageBalance tags failures of Engine.Balance, which is not part of a
	// transfer.
	StageBalance
)

var stageNames = [...]string{
	StageValidate:      "validate",
	StageDeriveAccount: "derive-account",
	StageEstimateFee:   "estimate-fee",
	StageFetchUTXOs:    "fetch-utxos",
	StageSelectCoins:   "select-coins",
	StageBuildDraft:    "build-draft",
	StageSign:          "sign",
	StageBroadcast:     "broadcast",
	StageDone:          "done",
	StageBalance:       "balance",
}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("stage(%d)", uint8(s))
}

// Kind classifies why a transfer failed.
type Kind uint8

const (
	KindValidation Kind = iota + 1
	KindKeyDerivation
	KindInsufficientFunds
	KindUnsupportedScript
	KindNetwork
	KindSigning
	KindBroadcast
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindKeyDerivation:
		return "key derivation"
	case KindInsufficientFunds:
		return "insufficient funds"
	case KindUnsupportedScript:
		return "unsupported script"
	case KindNetwork:
		return "network"
	case KindSigning:
		return "signing"
	case KindBroadcast:
		return "broadcast"
	default:
		return "unknown"
	}
}

// Error is the only error type returned by Engine methods.
type Error struct {
	Stage Stage
	Kind  Kind
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s error: %v", e.Stage, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of a transfer error, or 0 if err is not one.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return 0
}

// stageErr tags err with the stage it happened in. The kind comes from
// the cause where it is recognised and from the stage otherwise.
func stageErr(stage Stage, err error) *Error {
	return &Error{Stage: stage, Kind: kindOf(stage, err), Err: err}
}

func kindOf(stage Stage, err error) Kind {
	var be *indexer.BroadcastError
	switch {
	case errors.As(err, &be):
		return KindBroadcast
	case errors.Is(err, indexer.ErrNetwork), errors.Is(err, tx.ErrPrevOutMismatch):
		return KindNetwork
	case errors.Is(err, wallet.ErrInsufficientFunds):
		return KindInsufficientFunds
	case errors.Is(err, types.ErrUnsupportedScript):
		return KindUnsupportedScript
	case errors.Is(err, wallet.ErrInvalidMnemonic), errors.Is(err, wallet.ErrUnusableKey):
		return KindKeyDerivation
	case errors.Is(err, tx.ErrSigning):
		return KindSigning
	case errors.Is(err, types.ErrInvalidAmount), errors.Is(err, types.ErrInvalidAddress),
		errors.Is(err, types.ErrUnknownNetwork):
		return KindValidation
	}

	switch stage {
	case StageDeriveAccount:
		return KindKeyDerivation
	case StageFetchUTXOs, StageBuildDraft, StageBalance:
		return KindNetwork
	case StageSign:
		return KindSigning
	case StageBroadcast:
		return KindNetwork
	default:
		return KindValidation
	}
}
