package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nexusbq/portal/internal/portal/domain"
	"github.com/nexusbq/portal/internal/portal/event"
	"github.com/nexusbq/portal/internal/portal/store"
	"github.com/nexusbq/portal/pkg/idx"
	"github.com/nexusbq/portal/pkg/slogx"
)

var (
	ErrInvalidRequest    = errors.New("invalid request")
	ErrAccountNotFound   = errors.New("account not found")
	ErrAccountExists     = errors.New("account already exists")
	ErrQuotaExhausted    = errors.New("no invites available")
	ErrInviteNotFound    = errors.New("invite not found or already used")
	ErrInviteAlreadyUsed = errors.New("invite has already been used")
	ErrInviteExpired     = errors.New("invite has expired")
)

// codeAttempts bounds regeneration when a freshly minted code collides with
// an existing one. Codes are 8 hex chars, so more than one retry is already
// statistically absurd.
const codeAttempts = 3

// DefaultInviteGrant is the quota every invited account starts with: one
// invite to pass along.
const DefaultInviteGrant = 1

// InviteService manages the invite lifecycle: quota-gated generation, the
// advisory code check, and exactly-once redemption. Everything that mutates
// state runs inside a store transaction; the transactional re-read is the
// sole source of truth, never state read earlier.
type InviteService struct {
	Store store.Store
	Bus   *event.Bus

	// Horizon is the program-wide expiry shared by all invites and by the
	// premium grant handed to redeemed accounts. A fixed date, not a TTL.
	Horizon time.Time

	// Now is the clock, overridable in tests. Nil means time.Now.
	Now func() time.Time
}

func (s *InviteService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// NewCode derives a short human-enterable invite code: the first segment of
// a random UUID, uppercased.
func NewCode() string {
	return strings.ToUpper(strings.SplitN(uuid.NewString(), "-", 2)[0])
}

// NormalizeCode maps user input onto the stored code form.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Generate mints a new invite for the requesting account. Admins bypass the
// quota; everyone else must hold quota, which drops to zero in the same
// transaction that creates the invite. Two concurrent calls against a single
// remaining unit of quota can never both succeed.
func (s *InviteService) Generate(ctx context.Context, requestingAccountID string) (domain.Invite, error) {
	log := slogx.FromContext(ctx)

	if requestingAccountID == "" {
		return domain.Invite{}, ErrInvalidRequest
	}

	var invite domain.Invite
	run := func(tx store.Tx) error {
		// 1. Re-read the account inside the transaction; a quota value read
		// earlier may already be stale.
		account, err := tx.Accounts().GetAccountByID(ctx, requestingAccountID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrAccountNotFound
			}
			return err
		}

		// 2. Enforce the quota gate.
		if !account.IsAdmin && account.InvitesAvailable <= 0 {
			return ErrQuotaExhausted
		}

		// 3. Create the invite with a fresh code.
		invite = domain.Invite{
			ID:        idx.New().String(),
			Code:      NewCode(),
			CreatedBy: requestingAccountID,
			CreatedAt: s.now(),
			ExpiresAt: s.Horizon,
		}
		if err := tx.Invites().CreateInvite(ctx, invite); err != nil {
			return err
		}

		// 4. Non-admins spend their whole grant on one invite.
		if !account.IsAdmin {
			return tx.Accounts().SetInvitesAvailable(ctx, requestingAccountID, 0)
		}
		return nil
	}

	err := withTxRetry(ctx, s.Store, run)
	for attempt := 1; errors.Is(err, store.ErrAlreadyExists) && attempt < codeAttempts; attempt++ {
		// Code collision: mint another code and run the whole transaction again.
		log.Debug("invite code collision, regenerating")
		err = withTxRetry(ctx, s.Store, run)
	}
	if err != nil {
		return domain.Invite{}, err
	}

	log.Info("invite generated",
		slog.String("invite_id", invite.ID),
		slog.String("created_by", requestingAccountID),
		slog.Time("expires_at", invite.ExpiresAt),
	)

	publishAccount(ctx, s.Store, s.Bus, requestingAccountID, s.now())
	return invite, nil
}

// Validate looks up an unused invite by code. This is an advisory pre-check
// for signup forms: it reserves nothing and can race with a concurrent
// redemption, which is why Redeem re-checks everything transactionally.
func (s *InviteService) Validate(ctx context.Context, code string) (domain.Invite, error) {
	code = NormalizeCode(code)
	if code == "" {
		return domain.Invite{}, ErrInvalidRequest
	}

	invite, err := s.Store.Invites().GetUnusedInviteByCode(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Invite{}, ErrInviteNotFound
		}
		return domain.Invite{}, err
	}

	if invite.Expired(s.now()) {
		return domain.Invite{}, ErrInviteExpired
	}
	return invite, nil
}

// Redeem consumes an invite and creates the new account's projection, both
// in one transaction. Exactly one redemption ever succeeds per invite, no
// matter how many callers race: the invite is re-read inside the transaction
// and the used flag is a one-way transition.
func (s *InviteService) Redeem(ctx context.Context, inviteID, newAccountID, displayName string) (domain.Account, error) {
	log := slogx.FromContext(ctx)

	if inviteID == "" || newAccountID == "" {
		return domain.Account{}, ErrInvalidRequest
	}

	now := s.now()
	var account domain.Account
	err := withTxRetry(ctx, s.Store, func(tx store.Tx) error {
		// 1. Re-read the invite; the advisory Validate step may have raced.
		invite, err := tx.Invites().GetInviteByID(ctx, inviteID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInviteNotFound
			}
			return err
		}
		if invite.Used {
			return ErrInviteAlreadyUsed
		}
		if invite.Expired(now) {
			return ErrInviteExpired
		}

		// 2. Create the new account's projection: zeroed counters, one
		// invite to pass along, premium until the shared horizon. The
		// account row must exist before the invite can reference it as
		// used_by.
		account = domain.Account{
			ID:               newAccountID,
			DisplayName:      strings.TrimSpace(displayName),
			InvitesAvailable: DefaultInviteGrant,
			PremiumUntil:     s.Horizon,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := tx.Accounts().CreateAccount(ctx, account); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return ErrAccountExists
			}
			return err
		}

		// 3. Consume the invite.
		if err := tx.Invites().MarkInviteUsed(ctx, invite.ID, newAccountID, now); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				// Lost the race between the read above and the guarded update.
				return ErrInviteAlreadyUsed
			}
			return err
		}
		return nil
	})
	if err != nil {
		return domain.Account{}, err
	}

	log.Info("invite redeemed",
		slog.String("invite_id", inviteID),
		slog.String("account_id", newAccountID),
	)

	publishAccount(ctx, s.Store, s.Bus, newAccountID, now)
	return account, nil
}

// ListByCreator returns the caller's minted invites, newest first, including
// redeemed ones.
func (s *InviteService) ListByCreator(ctx context.Context, accountID string) ([]domain.Invite, error) {
	if accountID == "" {
		return nil, ErrInvalidRequest
	}
	return s.Store.Invites().ListInvitesByCreator(ctx, accountID)
}
