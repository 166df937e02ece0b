package team

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const queryTimeout = 3 * time.Second

type Repository interface {
	ListDownlineRows(ctx context.Context, rootID uuid.UUID) ([]downlineRow, error)
	DirectChildrenCounts(ctx context.Context, memberIDs []uuid.UUID) (map[uuid.UUID]int, error)
	Contributions(ctx context.Context, rootID uuid.UUID, buyerIDs []uuid.UUID) (map[uuid.UUID]contribution, error)
}

type PostgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// ListDownlineRows scans every profile whose referral path mentions the
// root. Level classification happens in the service, where the path is
// parsed properly; the LIKE here is only a coarse pre-filter.
func (r *PostgresRepository) ListDownlineRows(ctx context.Context, rootID uuid.UUID) ([]downlineRow, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var raw []struct {
		ID         uuid.UUID      `db:"id"`
		Path       sql.NullString `db:"referral_path"`
		ReferredBy uuid.NullUUID  `db:"referred_by"`
	}
	err := r.db.SelectContext(ctx2, &raw, `
		SELECT id, referral_path, referred_by
		FROM profiles
		WHERE referral_path LIKE '%' || $1 || '%'
	`, rootID.String())
	if err != nil {
		return nil, fmt.Errorf("list downline: %w", err)
	}

	rows := make([]downlineRow, 0, len(raw))
	for _, row := range raw {
		dr := downlineRow{ID: row.ID, Path: row.Path.String}
		if row.ReferredBy.Valid {
			id := row.ReferredBy.UUID
			dr.ReferredBy = &id
		}
		rows = append(rows, dr)
	}
	return rows, nil
}

func (r *PostgresRepository) DirectChildrenCounts(ctx context.Context, memberIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	counts := make(map[uuid.UUID]int, len(memberIDs))
	if len(memberIDs) == 0 {
		return counts, nil
	}

	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var rows []struct {
		ReferredBy uuid.UUID `db:"referred_by"`
		Count      int       `db:"count"`
	}
	err := r.db.SelectContext(ctx2, &rows, `
		SELECT referred_by, COUNT(*) AS count
		FROM profiles
		WHERE referred_by = ANY($1)
		GROUP BY referred_by
	`, pq.Array(memberIDs))
	if err != nil {
		return nil, fmt.Errorf("children counts: %w", err)
	}

	for _, row := range rows {
		counts[row.ReferredBy] = row.Count
	}
	return counts, nil
}

// Contributions joins the root's ledger rows back to their originating
// events to split counts per event type.
func (r *PostgresRepository) Contributions(ctx context.Context, rootID uuid.UUID, buyerIDs []uuid.UUID) (map[uuid.UUID]contribution, error) {
	out := make(map[uuid.UUID]contribution, len(buyerIDs))
	if len(buyerIDs) == 0 {
		return out, nil
	}

	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var rows []contribution
	err := r.db.SelectContext(ctx2, &rows, `
		SELECT
			l.buyer_id,
			COALESCE(SUM(l.amount_cents), 0) AS total_cents,
			MAX(l.created_at) AS last_at,
			COUNT(*) FILTER (WHERE e.event_type = 'PACKAGE_PURCHASE') AS package_events,
			COUNT(*) FILTER (WHERE e.event_type = 'CREDIT_TOPUP') AS topup_events
		FROM commission_ledger l
		JOIN affiliate_events e ON e.id = l.event_id
		WHERE l.earner_id = $1 AND l.buyer_id = ANY($2)
		GROUP BY l.buyer_id
	`, rootID, pq.Array(buyerIDs))
	if err != nil {
		return nil, fmt.Errorf("contributions: %w", err)
	}

	for _, row := range rows {
		out[row.BuyerID] = row
	}
	return out, nil
}
