package service

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/nexusbq/portal/internal/portal/store"
	"github.com/nexusbq/portal/pkg/slogx"
)

// ErrTxConflict is returned once a transaction keeps losing optimistic
// conflicts after txMaxAttempts tries. Callers may resubmit the command;
// nothing was committed.
var ErrTxConflict = errors.New("transaction conflict, retries exhausted")

const (
	txMaxAttempts = 3
	txBackoffBase = 10 * time.Millisecond
)

// withTxRetry runs fn in a store transaction, retrying only on
// store.ErrConflict. Application errors pass through untouched on the first
// attempt: retrying an exhausted quota or a used invite cannot change the
// outcome.
func withTxRetry(ctx context.Context, st store.Store, fn func(tx store.Tx) error) error {
	log := slogx.FromContext(ctx)

	var err error
	for attempt := 1; attempt <= txMaxAttempts; attempt++ {
		err = st.WithTx(ctx, fn)
		if err == nil || !errors.Is(err, store.ErrConflict) {
			return err
		}

		log.Debug("transaction conflict, retrying", "attempt", attempt)

		if attempt < txMaxAttempts {
			backoff := txBackoffBase*time.Duration(attempt) + rand.N(txBackoffBase)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	log.Warn("transaction retries exhausted", "attempts", txMaxAttempts)
	return ErrTxConflict
}
