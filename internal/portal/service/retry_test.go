package service

import (
	"context"
	"errors"
	"testing"

	"github.com/nexusbq/portal/internal/portal/store"
	"github.com/stretchr/testify/require"
)

// flakyStore fails WithTx with the configured errors in order, then delegates
// nothing: once the script runs out it succeeds. Only WithTx is exercised.
type flakyStore struct {
	store.Store
	script []error
	calls  int
}

func (s *flakyStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	s.calls++
	if len(s.script) > 0 {
		err := s.script[0]
		s.script = s.script[1:]
		return err
	}
	return nil
}

func TestWithTxRetry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	noop := func(tx store.Tx) error { return nil }

	t.Run("succeeds first try", func(t *testing.T) {
		st := &flakyStore{}
		require.NoError(t, withTxRetry(ctx, st, noop))
		require.Equal(t, 1, st.calls)
	})

	t.Run("retries conflicts until success", func(t *testing.T) {
		st := &flakyStore{script: []error{store.ErrConflict, store.ErrConflict}}
		require.NoError(t, withTxRetry(ctx, st, noop))
		require.Equal(t, 3, st.calls)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		st := &flakyStore{script: []error{store.ErrConflict, store.ErrConflict, store.ErrConflict}}
		err := withTxRetry(ctx, st, noop)
		require.ErrorIs(t, err, ErrTxConflict)
		require.Equal(t, txMaxAttempts, st.calls)
	})

	t.Run("application errors pass through without retry", func(t *testing.T) {
		st := &flakyStore{script: []error{ErrQuotaExhausted}}
		err := withTxRetry(ctx, st, noop)
		require.ErrorIs(t, err, ErrQuotaExhausted)
		require.Equal(t, 1, st.calls)
	})

	t.Run("cancelled context stops the backoff", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		st := &flakyStore{script: []error{store.ErrConflict, store.ErrConflict, store.ErrConflict}}
		err := withTxRetry(cancelled, st, noop)
		require.True(t, errors.Is(err, context.Canceled) || errors.Is(err, ErrTxConflict))
		require.LessOrEqual(t, st.calls, txMaxAttempts)
	})
}
