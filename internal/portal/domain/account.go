package domain

import "time"

// Account is the per-user projection mutated only by the invite and focus
// engines. Direct field writes bypassing those transactional paths break the
// quota and accrual invariants, so nothing else may take a write path here.
type Account struct {
	ID               string
	DisplayName      string
	IsAdmin          bool
	InvitesAvailable int // never negative
	PremiumUntil     time.Time
	TotalStudyTime   int64 // seconds, equals the sum of all DayFocus totals
	Points           int64
	CreatedAt        time.Time
	UpdatedAt        time.Time

	// FocusData maps UTC calendar days ("2006-01-02") to that day's accrual.
	// Populated only on projection reads.
	FocusData map[string]DayFocus
}

// Premium reports whether the account's premium grant is still active.
func (a Account) Premium(now time.Time) bool {
	return a.PremiumUntil.After(now)
}
