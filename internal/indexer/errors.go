package indexer

import (
	"errors"
	"fmt"
)

// ErrNetwork wraps every transport failure, timeout, non-2xx response
// and malformed body returned by the indexer.
var ErrNetwork = errors.New("indexer network error")

// BroadcastError is returned when the indexer rejects a transaction.
// Reason carries the provider's text, e.g. a mempool policy message.
type BroadcastError struct {
	StatusCode int
	Reason     string
}

func (e *BroadcastError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("broadcast rejected (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("broadcast rejected (status %d): %s", e.StatusCode, e.Reason)
}

func networkErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNetwork, fmt.Sprintf(format, args...))
}
