package service

import (
	"context"
	"errors"

	"github.com/nexusbq/portal/internal/portal/domain"
	"github.com/nexusbq/portal/internal/portal/store"
)

// AccountService is the read path over the account projection. It never
// writes: every mutation goes through the invite or focus engines so the
// quota and accrual invariants hold. That boundary is a design contract for
// anyone adding new surfaces, not something enforced at runtime.
type AccountService struct {
	Store store.Store
}

// Get returns the account with its full day -> focus aggregate map.
func (s *AccountService) Get(ctx context.Context, accountID string) (domain.Account, error) {
	if accountID == "" {
		return domain.Account{}, ErrInvalidRequest
	}

	account, err := s.Store.Accounts().GetAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Account{}, ErrAccountNotFound
		}
		return domain.Account{}, err
	}

	focusData, err := s.Store.FocusDays().GetFocusData(ctx, accountID)
	if err != nil {
		return domain.Account{}, err
	}
	account.FocusData = focusData

	return account, nil
}
