package commission

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// EventType classifies a monetizable action. Persisted strings are part
// of the interop contract and must not change.
type EventType string

const (
	EventTypePackagePurchase EventType = "PACKAGE_PURCHASE"
	EventTypeCreditTopup     EventType = "CREDIT_TOPUP"
)

func (t EventType) Valid() bool {
	switch t {
	case EventTypePackagePurchase, EventTypeCreditTopup:
		return true
	}
	return false
}

// LedgerStatus is the lifecycle state of a commission ledger entry.
type LedgerStatus string

const (
	StatusPending  LedgerStatus = "PENDING"
	StatusApproved LedgerStatus = "APPROVED"
	StatusPaid     LedgerStatus = "PAID"
	StatusReversed LedgerStatus = "REVERSED"
)

func (s LedgerStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusPaid, StatusReversed:
		return true
	}
	return false
}

// Action is an admin-requested ledger transition.
type Action string

const (
	ActionApprove  Action = "approve"
	ActionMarkPaid Action = "mark_paid"
	ActionReverse  Action = "reverse"
)

func (a Action) Valid() bool {
	switch a {
	case ActionApprove, ActionMarkPaid, ActionReverse:
		return true
	}
	return false
}

// Apply returns the target status for the action given the current
// status, or ErrInvalidTransition. PAID and REVERSED are terminal except
// that reverse is allowed from PAID: already-paid money can be reversed,
// with any compensating payout handled out of band.
func (a Action) Apply(current LedgerStatus) (LedgerStatus, error) {
	switch a {
	case ActionApprove:
		if current == StatusPending {
			return StatusApproved, nil
		}
	case ActionMarkPaid:
		if current == StatusApproved {
			return StatusPaid, nil
		}
	case ActionReverse:
		switch current {
		case StatusPending, StatusApproved, StatusPaid:
			return StatusReversed, nil
		}
	}
	return "", ErrInvalidTransition
}

// Event is one monetizable action. Create-only: rows are never mutated
// after insert, and at most one exists per external ref.
type Event struct {
	ID             uuid.UUID     `db:"id" json:"id"`
	BuyerID        uuid.UUID     `db:"buyer_id" json:"buyer_id"`
	ShopID         uuid.NullUUID `db:"shop_id" json:"shop_id,omitempty"`
	EventType      EventType     `db:"event_type" json:"event_type"`
	AmountCents    int64         `db:"amount_cents" json:"amount_cents"`
	ClassifierCode string        `db:"classifier_code" json:"classifier_code"`
	ExternalRef    string        `db:"external_ref" json:"external_ref"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
}

// LedgerEntry is one commission row: (event, earner, level). Entries are
// never deleted, only transitioned in place.
type LedgerEntry struct {
	ID          uuid.UUID      `db:"id" json:"id"`
	EventID     uuid.UUID      `db:"event_id" json:"event_id"`
	EarnerID    uuid.UUID      `db:"earner_id" json:"earner_id"`
	BuyerID     uuid.UUID      `db:"buyer_id" json:"buyer_id"`
	Level       int            `db:"level" json:"level"`
	RateBps     int64          `db:"rate_bps" json:"rate_bps"`
	AmountCents int64          `db:"amount_cents" json:"amount_cents"`
	Status      LedgerStatus   `db:"status" json:"status"`
	Note        sql.NullString `db:"note" json:"note,omitempty"`
	ApprovedAt  sql.NullTime   `db:"approved_at" json:"approved_at,omitempty"`
	PaidAt      sql.NullTime   `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
}

// RecordResult reports what an event recording call did.
type RecordResult struct {
	EventID uuid.UUID
	Created bool // false when the external ref had already been recorded
	Entries []LedgerEntry
}

// SearchFilter narrows ledger listing.
type SearchFilter struct {
	EarnerID *uuid.UUID
	BuyerID  *uuid.UUID
	Status   *LedgerStatus
	DateFrom *time.Time
	DateTo   *time.Time
	Limit    int
	Offset   int
}

// StatusTotals aggregates ledger amounts per status for one earner.
type StatusTotals struct {
	PendingCents  int64 `db:"pending_cents" json:"pending_cents"`
	ApprovedCents int64 `db:"approved_cents" json:"approved_cents"`
	PaidCents     int64 `db:"paid_cents" json:"paid_cents"`
	ReversedCents int64 `db:"reversed_cents" json:"reversed_cents"`
}
