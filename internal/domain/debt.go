package domain

import "time"

// DebtAccrual is a ledger row recording that an accepted repair cost
// must be added to a tenant's balance. Exactly one row exists per issue
// (the accept transition is the only writer), which makes applying it
// idempotent: appliers flip Applied and increment the balance in one
// transaction, and a row is never applied twice.
type DebtAccrual struct {
	ID        string
	IssueID   string
	TenantID  string
	Amount    float64
	Applied   bool
	CreatedAt time.Time
	AppliedAt *time.Time
}
