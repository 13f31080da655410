package service

import (
	"context"
	"time"

	"github.com/nexusbq/portal/internal/portal/event"
	"github.com/nexusbq/portal/internal/portal/store"
	"github.com/nexusbq/portal/pkg/slogx"
)

// publishAccount pushes the account's committed state onto the bus. It runs
// after the transaction has committed, so a failed read here only costs
// observers one notification, never correctness.
func publishAccount(ctx context.Context, st store.Store, bus *event.Bus, accountID string, at time.Time) {
	if bus == nil {
		return
	}

	account, err := st.Accounts().GetAccountByID(ctx, accountID)
	if err != nil {
		slogx.FromContext(ctx).Warn("skipping account update publish", "account_id", accountID, "err", err)
		return
	}

	bus.Publish(event.AccountUpdate{
		AccountID:   accountID,
		Account:     account,
		CommittedAt: at,
	})
}
