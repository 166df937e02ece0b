package commission

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const queryTimeout = 3 * time.Second

type Repository interface {
	GetEventByExternalRef(ctx context.Context, externalRef string) (*Event, error)
	InsertEventWithEntries(ctx context.Context, event *Event, entries []LedgerEntry) error
	GetEntriesByIDs(ctx context.Context, ids []uuid.UUID) ([]LedgerEntry, error)
	TransitionEntries(ctx context.Context, ids []uuid.UUID, from, to LedgerStatus, note string) error
	Search(ctx context.Context, filter SearchFilter) ([]LedgerEntry, error)
	TotalsByEarner(ctx context.Context, earnerID uuid.UUID) (*StatusTotals, error)
}

type PostgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetEventByExternalRef(ctx context.Context, externalRef string) (*Event, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var event Event
	err := r.db.GetContext(ctx2, &event, `
		SELECT id, buyer_id, shop_id, event_type, amount_cents, classifier_code, external_ref, created_at
		FROM affiliate_events
		WHERE external_ref = $1
	`, externalRef)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get event by ref", ErrInternal)
	}
	return &event, nil
}

// InsertEventWithEntries writes the event and its commission fan-out in a
// single transaction: either the event and every ledger row land together
// or none do. A 23505 on external_ref surfaces as ErrDuplicateRef so a
// racing caller can treat the event as already created.
func (r *PostgresRepository) InsertEventWithEntries(ctx context.Context, event *Event, entries []LedgerEntry) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx2, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx2, `
		INSERT INTO affiliate_events (id, buyer_id, shop_id, event_type, amount_cents, classifier_code, external_ref, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		event.ID,
		event.BuyerID,
		event.ShopID,
		event.EventType,
		event.AmountCents,
		event.ClassifierCode,
		event.ExternalRef,
		event.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateRef
		}
		return fmt.Errorf("%w: insert event", ErrInternal)
	}

	for _, e := range entries {
		_, err := tx.ExecContext(ctx2, `
			INSERT INTO commission_ledger (id, event_id, earner_id, buyer_id, level, rate_bps, amount_cents, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, e.ID, e.EventID, e.EarnerID, e.BuyerID, e.Level, e.RateBps, e.AmountCents, e.Status, e.CreatedAt)
		if err != nil {
			return fmt.Errorf("%w: insert ledger entry", ErrInternal)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit tx", ErrInternal)
	}
	return nil
}

func (r *PostgresRepository) GetEntriesByIDs(ctx context.Context, ids []uuid.UUID) ([]LedgerEntry, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	entries := make([]LedgerEntry, 0, len(ids))
	err := r.db.SelectContext(ctx2, &entries, `
		SELECT id, event_id, earner_id, buyer_id, level, rate_bps, amount_cents, status, note, approved_at, paid_at, created_at
		FROM commission_ledger
		WHERE id = ANY($1)
	`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("%w: get entries", ErrInternal)
	}
	return entries, nil
}

// TransitionEntries advances every selected entry from `from` to `to` in
// one conditional bulk update. If any row no longer matches `from`, the
// whole batch rolls back and ErrStatusConflict is returned: no partial
// application.
func (r *PostgresRepository) TransitionEntries(ctx context.Context, ids []uuid.UUID, from, to LedgerStatus, note string) error {
	if len(ids) == 0 {
		return nil
	}

	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx2, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx2, `
		UPDATE commission_ledger
		SET status = $1,
		    approved_at = CASE WHEN $1 = 'APPROVED' THEN now() ELSE approved_at END,
		    paid_at     = CASE WHEN $1 = 'PAID'     THEN now() ELSE paid_at     END,
		    note        = COALESCE(NULLIF($2, ''), note)
		WHERE id = ANY($3) AND status = $4
	`, to, note, pq.Array(ids), from)
	if err != nil {
		return fmt.Errorf("%w: transition entries", ErrInternal)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected", ErrInternal)
	}
	if rows != int64(len(ids)) {
		return ErrStatusConflict
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit tx", ErrInternal)
	}
	return nil
}

func (r *PostgresRepository) Search(ctx context.Context, filter SearchFilter) ([]LedgerEntry, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		SELECT id, event_id, earner_id, buyer_id, level, rate_bps, amount_cents, status, note, approved_at, paid_at, created_at
		FROM commission_ledger
		WHERE 1=1`
	args := make([]interface{}, 0, 7)
	idx := 1

	if filter.EarnerID != nil {
		query += fmt.Sprintf(" AND earner_id = $%d", idx)
		args = append(args, *filter.EarnerID)
		idx++
	}
	if filter.BuyerID != nil {
		query += fmt.Sprintf(" AND buyer_id = $%d", idx)
		args = append(args, *filter.BuyerID)
		idx++
	}
	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, *filter.Status)
		idx++
	}
	if filter.DateFrom != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", idx)
		args = append(args, *filter.DateFrom)
		idx++
	}
	if filter.DateTo != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", idx)
		args = append(args, *filter.DateTo)
		idx++
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, filter.Offset)

	entries := make([]LedgerEntry, 0)
	if err := r.db.SelectContext(ctx2, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("%w: search ledger", ErrInternal)
	}
	return entries, nil
}

func (r *PostgresRepository) TotalsByEarner(ctx context.Context, earnerID uuid.UUID) (*StatusTotals, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var totals StatusTotals
	err := r.db.GetContext(ctx2, &totals, `
		SELECT
			COALESCE(SUM(amount_cents) FILTER (WHERE status = 'PENDING'),  0) AS pending_cents,
			COALESCE(SUM(amount_cents) FILTER (WHERE status = 'APPROVED'), 0) AS approved_cents,
			COALESCE(SUM(amount_cents) FILTER (WHERE status = 'PAID'),     0) AS paid_cents,
			COALESCE(SUM(amount_cents) FILTER (WHERE status = 'REVERSED'), 0) AS reversed_cents
		FROM commission_ledger
		WHERE earner_id = $1
	`, earnerID)
	if err != nil {
		return nil, fmt.Errorf("%w: totals by earner", ErrInternal)
	}
	return &totals, nil
}
