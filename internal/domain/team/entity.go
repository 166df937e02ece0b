package team

import (
	"time"

	"github.com/google/uuid"
)

// Member is one downline member as seen from a given root affiliate.
type Member struct {
	MemberID           uuid.UUID  `json:"member_id"`
	Level              int        `json:"level"` // 1..3, distance from the root
	DirectChildren     int        `json:"direct_children"`
	ContributedCents   int64      `json:"contributed_cents"`
	LastContributionAt *time.Time `json:"last_contribution_at,omitempty"`
	PackageEvents      int        `json:"package_events"`
	TopupEvents        int        `json:"topup_events"`
}

// Tree is the reconstructed 3-level downline of a root affiliate.
type Tree struct {
	RootID       uuid.UUID `json:"root_id"`
	LevelCounts  [3]int    `json:"level_counts"`
	TotalMembers int       `json:"total_members"`
	Members      []Member  `json:"members"`
}

// downlineRow is the raw profile scan before level classification.
type downlineRow struct {
	ID         uuid.UUID
	Path       string
	ReferredBy *uuid.UUID
}

// contribution aggregates ledger rows the root earned from one buyer.
type contribution struct {
	BuyerID            uuid.UUID  `db:"buyer_id"`
	TotalCents         int64      `db:"total_cents"`
	LastContributionAt *time.Time `db:"last_at"`
	PackageEvents      int        `db:"package_events"`
	TopupEvents        int        `db:"topup_events"`
}
