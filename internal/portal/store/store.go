package store

import (
	"context"
	"errors"
	"time"

	"github.com/nexusbq/portal/internal/portal/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrConflict marks a transient serialization failure (e.g. SQLITE_BUSY).
	// Callers may retry; everything else is terminal.
	ErrConflict = errors.New("store: transaction conflict")
)

// Store is the root data access interface implemented by concrete drivers.
// It exposes sub-repositories to keep concerns tidy and testable, and a
// transaction helper that is the only synchronization primitive the engines
// rely on: either every write inside fn lands, or none do.
type Store interface {
	Accounts() Accounts
	Invites() Invites
	FocusDays() FocusDays

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction, committing when fn returns
	// nil and rolling back otherwise. Prefer this over Tx directly.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transaction-scoped store. Reads through it see the transaction's
// own writes; nested transactions are not supported.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Accounts interface {
	// GetAccountByID returns the bare account row without focus data.
	GetAccountByID(ctx context.Context, id string) (domain.Account, error)

	// CreateAccount inserts a new account projection. Returns
	// ErrAlreadyExists when the id is taken.
	CreateAccount(ctx context.Context, a domain.Account) error

	// SetInvitesAvailable overwrites the invite quota.
	SetInvitesAvailable(ctx context.Context, accountID string, n int) error

	// AddAccrual applies commutative increments to total_study_time and
	// points so that concurrent writers to the same account compose instead
	// of clobbering each other.
	AddAccrual(ctx context.Context, accountID string, seconds, points int64) error

	// ListAccountIDs returns every account id, oldest first.
	ListAccountIDs(ctx context.Context) ([]string, error)

	// IsEmpty reports whether no accounts exist yet.
	IsEmpty(ctx context.Context) (bool, error)
}

type Invites interface {
	// CreateInvite writes a new invite. The code column is unique; a
	// collision surfaces as ErrAlreadyExists.
	CreateInvite(ctx context.Context, inv domain.Invite) error

	// GetInviteByID returns an invite regardless of its used state.
	GetInviteByID(ctx context.Context, id string) (domain.Invite, error)

	// GetUnusedInviteByCode returns the unused invite with the given
	// (already normalized) code.
	GetUnusedInviteByCode(ctx context.Context, code string) (domain.Invite, error)

	// MarkInviteUsed flips used and stamps used_by/used_at. The used flag is
	// a one-way transition; drivers must not allow it to clear.
	MarkInviteUsed(ctx context.Context, inviteID, usedBy string, usedAt time.Time) error

	// ListInvitesByCreator returns all invites minted by an account, newest
	// first. Redeemed invites are included: they are the audit trail.
	ListInvitesByCreator(ctx context.Context, accountID string) ([]domain.Invite, error)
}

type FocusDays interface {
	// AppendSession inserts a finished session under the given day bucket.
	AppendSession(ctx context.Context, accountID, day string, s domain.FocusSession) error

	// AddDayTime upserts the day row, adding seconds to its running total.
	AddDayTime(ctx context.Context, accountID, day string, seconds int64) error

	// GetDay returns one day's aggregate with sessions in commit order.
	GetDay(ctx context.Context, accountID, day string) (domain.DayFocus, error)

	// GetFocusData assembles the full day -> DayFocus map for an account.
	GetFocusData(ctx context.Context, accountID string) (map[string]domain.DayFocus, error)

	// SumDayTotals returns the sum of total_time across all of an account's
	// days, used to audit the accrual invariant.
	SumDayTotals(ctx context.Context, accountID string) (int64, error)
}
