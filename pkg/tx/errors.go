package tx

import "errors"

var (
	// ErrSigning is returned when an input lacks the data its type needs
	// at sign time, or its script is not spendable by the signing key.
	ErrSigning = errors.New("signing failed")

	// ErrPrevOutMismatch is returned when the fetched previous output
	// disagrees with the UTXO being spent.
	ErrPrevOutMismatch = errors.New("previous output does not match utxo")

	// ErrNoInputs and ErrNoOutputs reject empty drafts.
	ErrNoInputs  = errors.New("transaction has no inputs")
	ErrNoOutputs = errors.New("transaction has no outputs")
)
