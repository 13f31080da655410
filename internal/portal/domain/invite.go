package domain

import "time"

// Invite is a single-use access token gating account creation. Invites are
// never deleted; redeemed ones remain as an audit trail of who let whom in.
type Invite struct {
	ID        string
	Code      string // human-enterable, stored uppercase, globally unique
	CreatedBy string
	Used      bool
	UsedBy    string // empty until redeemed
	CreatedAt time.Time
	UsedAt    time.Time // zero until redeemed
	ExpiresAt time.Time
}

// Expired reports whether the invite's horizon has passed at the given time.
func (i Invite) Expired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}
