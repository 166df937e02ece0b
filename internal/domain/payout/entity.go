package payout

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MinPayoutCents is the smallest withdrawable amount (100 currency
// units). A financial invariant, compiled in rather than configured.
const MinPayoutCents int64 = 10000

// Status is the lifecycle state of a payout request. Persisted strings
// are part of the interop contract.
type Status string

const (
	StatusRequested Status = "REQUESTED"
	StatusApproved  Status = "APPROVED"
	StatusPaid      Status = "PAID"
	StatusRejected  Status = "REJECTED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusRequested, StatusApproved, StatusPaid, StatusRejected:
		return true
	}
	return false
}

// Action is an admin-requested payout transition.
type Action string

const (
	ActionApprove  Action = "approve"
	ActionMarkPaid Action = "mark_paid"
	ActionReject   Action = "reject"
)

func (a Action) Valid() bool {
	switch a {
	case ActionApprove, ActionMarkPaid, ActionReject:
		return true
	}
	return false
}

// Apply returns the target status for the action given the current
// status, or ErrInvalidTransition. PAID and REJECTED are terminal.
func (a Action) Apply(current Status) (Status, error) {
	switch a {
	case ActionApprove:
		if current == StatusRequested {
			return StatusApproved, nil
		}
	case ActionMarkPaid:
		if current == StatusApproved {
			return StatusPaid, nil
		}
	case ActionReject:
		switch current {
		case StatusRequested, StatusApproved:
			return StatusRejected, nil
		}
	}
	return "", ErrInvalidTransition
}

// BankInfo is the opaque destination payload attached to a request.
// Payouts are reconciled manually, so the engine only stores it.
type BankInfo struct {
	BankName      string `json:"bank_name"`
	AccountName   string `json:"account_name"`
	AccountNumber string `json:"account_number"`
	Note          string `json:"note,omitempty"`
}

func (b BankInfo) Value() (driver.Value, error) {
	return json.Marshal(b)
}

func (b *BankInfo) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, b)
	case string:
		return json.Unmarshal([]byte(v), b)
	case nil:
		*b = BankInfo{}
		return nil
	default:
		return fmt.Errorf("unsupported bank_info type %T", src)
	}
}

// Request is one withdrawal request. Immutable once PAID or REJECTED.
type Request struct {
	ID          uuid.UUID    `db:"id" json:"id"`
	UserID      uuid.UUID    `db:"user_id" json:"user_id"`
	AmountCents int64        `db:"amount_cents" json:"amount_cents"`
	Status      Status       `db:"status" json:"status"`
	BankInfo    BankInfo     `db:"bank_info" json:"bank_info"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	ApprovedAt  sql.NullTime `db:"approved_at" json:"approved_at,omitempty"`
	PaidAt      sql.NullTime `db:"paid_at" json:"paid_at,omitempty"`
}

// Balance is the computed withdrawable state for one affiliate.
type Balance struct {
	ApprovedEarningsCents int64 `json:"approved_earnings_cents"`
	ReservedCents         int64 `json:"reserved_cents"`
	AvailableCents        int64 `json:"available_cents"`
}
