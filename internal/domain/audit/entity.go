package audit

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Entry is one admin action record. Writes are best-effort side effects
// of the ledger and payout state machines.
type Entry struct {
	ID         uuid.UUID      `db:"id" json:"id"`
	ActorID    uuid.UUID      `db:"actor_id" json:"actor_id"`
	Action     string         `db:"action" json:"action"`
	EntityType string         `db:"entity_type" json:"entity_type"`
	EntityIDs  pq.StringArray `db:"entity_ids" json:"entity_ids"`
	OldStatus  sql.NullString `db:"old_status" json:"old_status,omitempty"`
	NewStatus  sql.NullString `db:"new_status" json:"new_status,omitempty"`
	Note       sql.NullString `db:"note" json:"note,omitempty"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
}

// Filter narrows audit listing for the admin dashboard.
type Filter struct {
	ActorID    *uuid.UUID
	Action     *string
	EntityType *string
	DateFrom   *time.Time
	DateTo     *time.Time
	Limit      int
	Offset     int
}
